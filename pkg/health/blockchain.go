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
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// EthereumRegistryCheck probes connectivity to the Ethereum RPC endpoint
// backing an identity.EthereumResolver. It dials lazily, so the actual
// network round-trip happens on the ChainID/BlockNumber calls below.
func EthereumRegistryCheck(rpcURL string) HealthCheck {
	return BlockchainHealthCheck(func(ctx context.Context) error {
		if rpcURL == "" {
			return fmt.Errorf("RPC URL not configured")
		}

		client, err := ethclient.Dial(rpcURL)
		if err != nil {
			return fmt.Errorf("connection failed: %w", err)
		}
		defer client.Close()

		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if _, err := client.ChainID(callCtx); err != nil {
			return fmt.Errorf("failed to get chain ID: %w", err)
		}
		if _, err := client.BlockNumber(callCtx); err != nil {
			return fmt.Errorf("failed to get block number: %w", err)
		}
		return nil
	})
}
