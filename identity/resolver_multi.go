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

import "context"

// ChainResolver tries each registered chain resolver in order, returning
// the first successful resolution. A node may register both an Ethereum
// and a Solana registry client; most node names will only live on one.
type ChainResolver struct {
	chains []Resolver
}

// NewChainResolver builds a resolver that fans a lookup out across chains.
func NewChainResolver(chains ...Resolver) *ChainResolver {
	return &ChainResolver{chains: chains}
}

// Resolve tries each chain in registration order.
func (c *ChainResolver) Resolve(ctx context.Context, nodeName string) (ExternalIdentity, error) {
	var lastErr error
	for _, chain := range c.chains {
		id, err := chain.Resolve(ctx, nodeName)
		if err == nil {
			return id, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrNotFound
	}
	return ExternalIdentity{}, lastErr
}
