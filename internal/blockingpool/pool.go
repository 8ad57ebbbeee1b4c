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

// Package blockingpool bounds how many CPU-heavy crypto/canonicalization
// calls run concurrently, so a burst of inbound envelopes can't starve
// the rest of the node by piling up unbounded goroutines doing signature
// verification, key derivation, or BLAKE3 hashing at once.
package blockingpool

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent execution of blocking work to N in flight,
// using the same semaphore primitive workqueue.Supervisor uses to bound
// job processing.
type Pool struct {
	sem *semaphore.Weighted
}

// New constructs a Pool that admits at most n callers at once.
func New(n int) *Pool {
	return &Pool{sem: semaphore.NewWeighted(int64(n))}
}

// Run blocks until a slot is free (or ctx is done), then calls fn and
// releases the slot once fn returns. The error is either ctx's (if the
// pool was full and the wait was cancelled) or fn's.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}

// RunValue is Run for functions that also produce a value, for callers
// that don't want to close over a result variable.
func RunValue[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var out T
	err := p.Run(ctx, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
