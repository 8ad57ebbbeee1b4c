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
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// nodeRegistryABI is the subset of the on-chain node registry's interface
// this resolver needs: a single view function mapping a node name to its
// two public keys and last-updated socket address.
const nodeRegistryABI = `[{
	"name": "resolveNode",
	"type": "function",
	"stateMutability": "view",
	"inputs": [{"name": "nodeName", "type": "string"}],
	"outputs": [
		{"name": "sigPK", "type": "bytes32"},
		{"name": "encPK", "type": "bytes32"},
		{"name": "socketAddr", "type": "string"}
	]
}]`

// EthereumResolver resolves node identities against a registry contract,
// the Ethereum counterpart of the teacher's did/ethereum client.
type EthereumResolver struct {
	client  *ethclient.Client
	address common.Address
	abi     abi.ABI
}

// NewEthereumResolver dials rpcEndpoint and binds to the registry contract
// at contractAddress.
func NewEthereumResolver(rpcEndpoint, contractAddress string) (*EthereumResolver, error) {
	client, err := ethclient.Dial(rpcEndpoint)
	if err != nil {
		return nil, fmt.Errorf("identity: dial ethereum rpc: %w", err)
	}
	parsedABI, err := abi.JSON(strings.NewReader(nodeRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("identity: parse registry abi: %w", err)
	}
	return &EthereumResolver{
		client:  client,
		address: common.HexToAddress(contractAddress),
		abi:     parsedABI,
	}, nil
}

// Resolve implements Resolver over the bound registry contract.
func (r *EthereumResolver) Resolve(ctx context.Context, nodeName string) (ExternalIdentity, error) {
	callData, err := r.abi.Pack("resolveNode", nodeName)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("identity: pack resolveNode call: %w", err)
	}
	output, err := r.client.CallContract(ctx, ethereum.CallMsg{
		To:   &r.address,
		Data: callData,
	}, nil)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("identity: call registry contract: %w", err)
	}

	var decoded struct {
		SigPK      [32]byte
		EncPK      [32]byte
		SocketAddr string
	}
	if err := r.abi.UnpackIntoInterface(&decoded, "resolveNode", output); err != nil {
		return ExternalIdentity{}, fmt.Errorf("identity: unpack resolveNode result: %w", err)
	}
	if decoded.SigPK == ([32]byte{}) {
		return ExternalIdentity{}, fmt.Errorf("identity: node %q not registered", nodeName)
	}

	return ExternalIdentity{
		SocketAddr:    decoded.SocketAddr,
		NodeSigPK:     decoded.SigPK,
		NodeEncPK:     decoded.EncPK,
		LastRefreshed: time.Now(),
	}, nil
}
