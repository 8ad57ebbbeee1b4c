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
	"errors"

	"github.com/shinkainet/node/envelope"
	"github.com/shinkainet/node/store"
)

// StatusFor maps an orchestrator-surfaced error to the HTTP-equivalent
// status class an external router should report, per spec §7's
// propagation policy (bearer-auth failure -> 401, unknown inbox/job ->
// 404, malformed envelope -> 400, everything else -> 500).
func StatusFor(err error) int {
	var missing *envelope.MissingFieldError
	switch {
	case err == nil:
		return 200
	case errors.Is(err, errUnauthorized):
		return 401
	case errors.Is(err, store.ErrNotFound):
		return 404
	case errors.As(err, &missing):
		return 400
	default:
		return 500
	}
}
