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

package name

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStandard(t *testing.T) {
	n, err := New("@@alice.shinkai")
	require.NoError(t, err)
	assert.Equal(t, "@@alice.shinkai", n.Node())
	assert.Equal(t, "", n.Profile())
	assert.Equal(t, KindStandard, n.Kind())
}

func TestNewWithProfile(t *testing.T) {
	n, err := New("@@alice.shinkai/main")
	require.NoError(t, err)
	assert.Equal(t, "main", n.Profile())
}

func TestNewDeviceLeaf(t *testing.T) {
	n, err := New("@@alice.shinkai/main/device/phone")
	require.NoError(t, err)
	assert.Equal(t, KindDevice, n.Kind())
	assert.Equal(t, "phone", n.DeviceOrAgent())
}

func TestNewAgentLeaf(t *testing.T) {
	n, err := New("@@alice.shinkai/main/agent/assistant")
	require.NoError(t, err)
	assert.Equal(t, KindAgent, n.Kind())
	assert.Equal(t, "assistant", n.DeviceOrAgent())
}

func TestNewRejectsMissingPrefix(t *testing.T) {
	_, err := New("alice.shinkai")
	assert.Error(t, err)
}

func TestNewRejectsUnknownSuffix(t *testing.T) {
	_, err := New("@@alice.example")
	assert.Error(t, err)
}

func TestNewRejectsBareLabel(t *testing.T) {
	_, err := New("@@shinkai")
	assert.Error(t, err)
}

func TestNewRejectsThreeSegments(t *testing.T) {
	_, err := New("@@alice.shinkai/main/device")
	assert.Error(t, err)
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New("@@alice.shinkai/main/robot/leaf")
	assert.Error(t, err)
}

func TestNewRejectsTooManySegments(t *testing.T) {
	body := make([]string, 101)
	for i := range body {
		body[i] = "x"
	}
	_, err := New("@@alice.shinkai/" + strings.Join(body, "/"))
	assert.Error(t, err)
}

func TestRoundTripLowercasesAndReparses(t *testing.T) {
	inputs := []string{
		"@@Alice.Shinkai",
		"@@alice.shinkai/Main",
		"@@alice.shinkai/main/device/Phone",
		"@@alice.shinkai/main/agent/assistant",
	}
	for _, in := range inputs {
		n, err := New(in)
		require.NoError(t, err)
		assert.True(t, IsFullyValid(n.String()))

		reparsed, err := New(n.String())
		require.NoError(t, err)
		assert.Equal(t, n.String(), reparsed.String())
		assert.Equal(t, strings.ToLower(in), n.String())
	}
}

func TestEqualIsCaseInsensitive(t *testing.T) {
	assert.True(t, Equal("@@Alice.Shinkai", "@@alice.shinkai"))
	assert.False(t, Equal("@@alice.shinkai", "@@bob.shinkai"))
}

func TestIsSubNameOfSameProfile(t *testing.T) {
	assert.True(t, IsSubNameOf("@@alice.shinkai/main/device/phone", "@@alice.shinkai/main"))
}

func TestIsSubNameOfParentHasNoProfile(t *testing.T) {
	assert.True(t, IsSubNameOf("@@alice.shinkai/main", "@@alice.shinkai"))
}

func TestIsSubNameOfDifferentProfileFails(t *testing.T) {
	assert.False(t, IsSubNameOf("@@alice.shinkai/work/device/phone", "@@alice.shinkai/main"))
}

func TestIsSubNameOfDifferentNodeFails(t *testing.T) {
	assert.False(t, IsSubNameOf("@@bob.shinkai/main", "@@alice.shinkai/main"))
}

func TestIsSubNameOfInvalidNamesFail(t *testing.T) {
	assert.False(t, IsSubNameOf("not-a-name", "@@alice.shinkai"))
}
