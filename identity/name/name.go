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

// Package name parses and validates the hierarchical node/profile/device/
// agent name space (spec §4.3) and the inbox naming scheme built on top of
// it (spec §3, "Inbox").
package name

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind distinguishes the shape of a fully-qualified name.
type Kind int

const (
	// KindStandard names only a node, optionally a profile.
	KindStandard Kind = iota
	// KindDevice names a node/profile/device leaf.
	KindDevice
	// KindAgent names a node/profile/agent leaf.
	KindAgent
)

// closedSuffixes is the small closed set of trailing labels a node segment
// must end with, per spec §3.
var closedSuffixes = map[string]bool{
	"sep-shinkai": true,
	"shinkai":     true,
	"arb-sep-shinkai": true,
}

var segmentRe = regexp.MustCompile(`^[a-z0-9_-]+$`)
var nodeLabelRe = regexp.MustCompile(`^[a-z0-9-]+$`)

// Name is a parsed, validated fully-qualified name:
// @@node.tld[/profile[/kind/leaf]]
type Name struct {
	full    string
	node    string
	profile string
	leafKey string // "device" or "agent", empty for KindStandard
	leaf    string
	kind    Kind
}

// New parses and validates s, returning a typed Name or an error
// describing which segment failed to parse.
func New(s string) (*Name, error) {
	lower := strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(lower, "@@") {
		return nil, fmt.Errorf("name: must begin with @@: %q", s)
	}
	body := strings.TrimPrefix(lower, "@@")
	parts := strings.Split(body, "/")
	if len(parts) > 100 {
		return nil, fmt.Errorf("name: too many segments (%d)", len(parts))
	}

	node := parts[0]
	if err := validateNode(node); err != nil {
		return nil, err
	}

	n := &Name{full: lower, node: "@@" + node, kind: KindStandard}

	switch len(parts) {
	case 1:
		return n, nil
	case 2:
		if err := validateSegment(parts[1]); err != nil {
			return nil, fmt.Errorf("name: invalid profile segment: %w", err)
		}
		n.profile = parts[1]
		return n, nil
	case 4:
		if err := validateSegment(parts[1]); err != nil {
			return nil, fmt.Errorf("name: invalid profile segment: %w", err)
		}
		n.profile = parts[1]
		switch parts[2] {
		case "device":
			n.kind = KindDevice
		case "agent":
			n.kind = KindAgent
		default:
			return nil, fmt.Errorf("name: unknown kind segment %q (want device|agent)", parts[2])
		}
		if err := validateSegment(parts[3]); err != nil {
			return nil, fmt.Errorf("name: invalid leaf segment: %w", err)
		}
		n.leafKey = parts[2]
		n.leaf = parts[3]
		return n, nil
	default:
		return nil, fmt.Errorf("name: unexpected segment count %d", len(parts))
	}
}

// IsFullyValid reports whether s parses without error.
func IsFullyValid(s string) bool {
	_, err := New(s)
	return err == nil
}

func validateNode(node string) error {
	if node == "" {
		return fmt.Errorf("name: empty node segment")
	}
	labels := strings.Split(node, ".")
	if len(labels) < 2 {
		return fmt.Errorf("name: node segment must be dns-like: %q", node)
	}
	for _, l := range labels {
		if l == "" || !nodeLabelRe.MatchString(l) {
			return fmt.Errorf("name: invalid node label %q", l)
		}
	}
	trailing := labels[len(labels)-1]
	if !closedSuffixes[trailing] {
		return fmt.Errorf("name: node suffix %q is not in the closed suffix set", trailing)
	}
	return nil
}

func validateSegment(seg string) error {
	if seg == "" {
		return fmt.Errorf("name: empty segment")
	}
	if !segmentRe.MatchString(seg) {
		return fmt.Errorf("name: segment %q must be lowercase alphanumeric + underscore/dash", seg)
	}
	return nil
}

// Full returns the canonical (lowercased) string form of the name.
func (n *Name) Full() string { return n.full }

// Node returns the base node view, e.g. "@@alice.shinkai".
func (n *Name) Node() string { return n.node }

// Profile returns the profile segment, or "" if absent.
func (n *Name) Profile() string { return n.profile }

// DeviceOrAgent returns the leaf segment (device or agent name), or "" if
// this name doesn't carry one.
func (n *Name) DeviceOrAgent() string { return n.leaf }

// Kind reports whether this is a standard, device, or agent name.
func (n *Name) Kind() Kind { return n.kind }

// String implements fmt.Stringer; equality on names ignores case because
// Full() is already lowercased.
func (n *Name) String() string { return n.full }

// Equal reports case-insensitive equality between two name strings.
func Equal(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// IsSubNameOf reports whether child is the same node/profile as parent, or
// a device/agent leaf nested under it. Used by inbox creation-access
// checks (spec §4.3, has_creation_access).
func IsSubNameOf(child, parent string) bool {
	c, err := New(child)
	if err != nil {
		return false
	}
	p, err := New(parent)
	if err != nil {
		return false
	}
	if !strings.EqualFold(c.node, p.node) {
		return false
	}
	if p.profile == "" {
		return true
	}
	return strings.EqualFold(c.profile, p.profile)
}
