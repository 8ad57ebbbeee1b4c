// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

// Package identity is the in-memory registry of local profiles, devices
// and agents, plus a cache of externally resolved node identities.
package identity

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Grade is a local identity's permission level.
type Grade int

const (
	GradeNone Grade = iota
	GradeStandard
	GradeAdmin
)

// LocalIdentity is a profile, device, or agent owned by this node.
type LocalIdentity struct {
	Name       string
	SigPK      [32]byte
	EncPK      [32]byte
	ParentName string // non-empty for devices/agents projected from a profile
	Grade      Grade
}

// HasAdmin reports whether this identity carries admin permission.
func (l LocalIdentity) HasAdmin() bool { return l.Grade == GradeAdmin }

// ExternalIdentity is a cached, resolved remote node identity.
type ExternalIdentity struct {
	SocketAddr    string
	NodeSigPK     [32]byte
	NodeEncPK     [32]byte
	LastRefreshed time.Time
}

// Resolver looks up a node's identity via an external collaborator
// (name-service RPC or on-chain registry). The core treats it purely as
// this function.
type Resolver interface {
	Resolve(ctx context.Context, nodeName string) (ExternalIdentity, error)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(ctx context.Context, nodeName string) (ExternalIdentity, error)

func (f ResolverFunc) Resolve(ctx context.Context, nodeName string) (ExternalIdentity, error) {
	return f(ctx, nodeName)
}

// ErrNotFound is returned when a local identity is not registered.
var ErrNotFound = fmt.Errorf("identity: not found")

// Manager is the protected, single-mutex registry described in spec §5:
// its critical sections are O(1) hashmap operations.
type Manager struct {
	mu       sync.Mutex
	local    map[string]LocalIdentity
	external map[string]ExternalIdentity
	resolver Resolver
}

// NewManager constructs an empty Manager backed by resolver for external
// lookups.
func NewManager(resolver Resolver) *Manager {
	return &Manager{
		local:    make(map[string]LocalIdentity),
		external: make(map[string]ExternalIdentity),
		resolver: resolver,
	}
}

// Register adds or replaces a local identity.
func (m *Manager) Register(id LocalIdentity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.local[id.Name] = id
}

// Deregister removes a local identity.
func (m *Manager) Deregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.local, name)
}

// Get returns a registered local identity.
func (m *Manager) Get(name string) (LocalIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.local[name]
	if !ok {
		return LocalIdentity{}, ErrNotFound
	}
	return id, nil
}

// ProjectedIdentity is the profile-scoped view of a device identity that
// Project returns: the device keeps its own keypair for fine-grained
// signing, and the parent profile's public signing and encryption keys
// are returned alongside it so no information is lost.
type ProjectedIdentity struct {
	Device      LocalIdentity
	ParentSigPK [32]byte
	ParentEncPK [32]byte
}

// Project resolves deviceName's parent profile and returns both keysets.
func (m *Manager) Project(deviceName string) (ProjectedIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	device, ok := m.local[deviceName]
	if !ok {
		return ProjectedIdentity{}, ErrNotFound
	}
	if device.ParentName == "" {
		return ProjectedIdentity{}, fmt.Errorf("identity: %q has no parent profile", deviceName)
	}
	parent, ok := m.local[device.ParentName]
	if !ok {
		return ProjectedIdentity{}, fmt.Errorf("identity: parent profile %q not registered", device.ParentName)
	}
	return ProjectedIdentity{
		Device:      device,
		ParentSigPK: parent.SigPK,
		ParentEncPK: parent.EncPK,
	}, nil
}

// CacheExternal stores a freshly resolved external identity.
func (m *Manager) CacheExternal(nodeName string, id ExternalIdentity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.external[nodeName] = id
}

// Resolve returns the cached external identity for nodeName, refreshing
// it via the resolver if maxAge has elapsed since LastRefreshed or it
// has never been cached.
func (m *Manager) Resolve(ctx context.Context, nodeName string, maxAge time.Duration) (ExternalIdentity, error) {
	m.mu.Lock()
	cached, ok := m.external[nodeName]
	m.mu.Unlock()
	if ok && time.Since(cached.LastRefreshed) < maxAge {
		return cached, nil
	}
	if m.resolver == nil {
		if ok {
			return cached, nil
		}
		return ExternalIdentity{}, ErrNotFound
	}
	fresh, err := m.resolver.Resolve(ctx, nodeName)
	if err != nil {
		if ok {
			return cached, nil // stale-but-present beats a hard failure
		}
		return ExternalIdentity{}, err
	}
	fresh.LastRefreshed = time.Now()
	m.CacheExternal(nodeName, fresh)
	return fresh, nil
}

// VerifyAgainstCache cross-checks a message sender's claimed signing key
// against the cached external identity, per the orchestrator's inbound
// pipeline step 3.
func (m *Manager) VerifyAgainstCache(nodeName string, claimedSigPK [32]byte) bool {
	m.mu.Lock()
	cached, ok := m.external[nodeName]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return cached.NodeSigPK == claimedSigPK
}
