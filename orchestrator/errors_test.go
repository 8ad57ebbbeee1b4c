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

package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shinkainet/node/envelope"
	"github.com/shinkainet/node/store"
)

func TestStatusForMapsKnownErrors(t *testing.T) {
	assert.Equal(t, 200, StatusFor(nil))
	assert.Equal(t, 401, StatusFor(errUnauthorized))
	assert.Equal(t, 404, StatusFor(store.ErrNotFound))
	assert.Equal(t, 400, StatusFor(&envelope.MissingFieldError{Field: "recipient_node"}))
	assert.Equal(t, 500, StatusFor(assert.AnError))
}
