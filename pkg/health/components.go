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

package health

import (
	"context"
	"fmt"
)

// StorePingFunc performs a cheap round-trip write/read against the
// node's persistent store.
type StorePingFunc func(ctx context.Context) error

// StoreHealthCheck creates a health check for the persistent store,
// grounded on a caller-supplied round-trip ping so this package stays
// free of a direct store import.
func StoreHealthCheck(ping StorePingFunc) HealthCheck {
	return func(ctx context.Context) error {
		if ping == nil {
			return fmt.Errorf("store ping not configured")
		}
		return ping(ctx)
	}
}

// TransportPingFunc reports the overlay transport's current connected
// peer count, or an error if the host is unreachable.
type TransportPingFunc func(ctx context.Context) (peers int, err error)

// TransportHealthCheck creates a health check for the overlay transport.
// Zero connected peers fails the check with "no connected peers", so its
// result is unhealthy; there is no degraded state for the transport.
func TransportHealthCheck(ping TransportPingFunc) HealthCheck {
	return func(ctx context.Context) error {
		if ping == nil {
			return fmt.Errorf("transport ping not configured")
		}
		peers, err := ping(ctx)
		if err != nil {
			return err
		}
		if peers == 0 {
			return fmt.Errorf("no connected peers")
		}
		return nil
	}
}

// QueueDepthFunc reports the current pending-entry count across a
// node's work queues.
type QueueDepthFunc func() int

// QueueHealthCheck creates a health check that fails once pending work
// exceeds maxDepth, a sign the supervisor's processors have stalled.
func QueueHealthCheck(depth QueueDepthFunc, maxDepth int) HealthCheck {
	return func(ctx context.Context) error {
		if depth == nil {
			return fmt.Errorf("queue depth function not configured")
		}
		d := depth()
		if d > maxDepth {
			return fmt.Errorf("queue depth %d exceeds threshold %d", d, maxDepth)
		}
		return nil
	}
}
