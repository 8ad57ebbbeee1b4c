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

package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	m := NewManager(nil)
	id := LocalIdentity{Name: "@@alice.shinkai/main", Grade: GradeAdmin}
	m.Register(id)

	got, err := m.Get("@@alice.shinkai/main")
	require.NoError(t, err)
	assert.True(t, got.HasAdmin())
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	m := NewManager(nil)
	_, err := m.Get("@@nobody.shinkai")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProjectPreservesParentKeys(t *testing.T) {
	m := NewManager(nil)
	parent := LocalIdentity{
		Name:  "@@alice.shinkai/main",
		SigPK: [32]byte{1},
		EncPK: [32]byte{2},
		Grade: GradeStandard,
	}
	device := LocalIdentity{
		Name:       "@@alice.shinkai/main/device/phone",
		SigPK:      [32]byte{3},
		EncPK:      [32]byte{4},
		ParentName: parent.Name,
		Grade:      GradeStandard,
	}
	m.Register(parent)
	m.Register(device)

	proj, err := m.Project(device.Name)
	require.NoError(t, err)
	assert.Equal(t, device.SigPK, proj.Device.SigPK)
	assert.Equal(t, parent.SigPK, proj.ParentSigPK)
	assert.Equal(t, parent.EncPK, proj.ParentEncPK)
}

func TestProjectRejectsIdentityWithoutParent(t *testing.T) {
	m := NewManager(nil)
	m.Register(LocalIdentity{Name: "@@alice.shinkai/main"})
	_, err := m.Project("@@alice.shinkai/main")
	assert.Error(t, err)
}

func TestResolveCachesAndReusesWithinMaxAge(t *testing.T) {
	calls := 0
	resolver := ResolverFunc(func(ctx context.Context, node string) (ExternalIdentity, error) {
		calls++
		return ExternalIdentity{SocketAddr: "127.0.0.1:9000", NodeSigPK: [32]byte{9}}, nil
	})
	m := NewManager(resolver)

	first, err := m.Resolve(context.Background(), "@@bob.shinkai", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", first.SocketAddr)

	second, err := m.Resolve(context.Background(), "@@bob.shinkai", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestVerifyAgainstCache(t *testing.T) {
	m := NewManager(nil)
	m.CacheExternal("@@bob.shinkai", ExternalIdentity{NodeSigPK: [32]byte{7}, LastRefreshed: time.Now()})

	assert.True(t, m.VerifyAgainstCache("@@bob.shinkai", [32]byte{7}))
	assert.False(t, m.VerifyAgainstCache("@@bob.shinkai", [32]byte{8}))
	assert.False(t, m.VerifyAgainstCache("@@unknown.shinkai", [32]byte{7}))
}
