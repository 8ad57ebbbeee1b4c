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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEthereumResolverDialsLazily(t *testing.T) {
	r, err := NewEthereumResolver("http://127.0.0.1:8545", "0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestNewSolanaResolverRejectsInvalidProgramID(t *testing.T) {
	_, err := NewSolanaResolver("http://127.0.0.1:8899", "not-base58!!")
	assert.Error(t, err)
}

func TestNewSolanaResolverAcceptsValidProgramID(t *testing.T) {
	r, err := NewSolanaResolver("http://127.0.0.1:8899", "11111111111111111111111111111111")
	require.NoError(t, err)
	assert.NotNil(t, r)
}
