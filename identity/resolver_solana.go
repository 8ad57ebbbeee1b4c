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
	"encoding/binary"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// SolanaResolver resolves node identities from program-derived accounts on
// a Solana registry program, the Solana counterpart of the teacher's
// did/solana client.
type SolanaResolver struct {
	client    *rpc.Client
	programID solana.PublicKey
}

// NewSolanaResolver connects to rpcEndpoint and binds to programID (base58).
func NewSolanaResolver(rpcEndpoint, programID string) (*SolanaResolver, error) {
	pid, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("identity: invalid solana program id: %w", err)
	}
	return &SolanaResolver{
		client:    rpc.New(rpcEndpoint),
		programID: pid,
	}, nil
}

// nodeAccountFixedLen is the size of a node record account's fixed part:
// 32 bytes signing pubkey and 32 bytes encryption pubkey, followed by a
// length-prefixed socket address string.
const nodeAccountFixedLen = 64

// Resolve derives nodeName's PDA under the registry program and decodes its
// account data.
func (r *SolanaResolver) Resolve(ctx context.Context, nodeName string) (ExternalIdentity, error) {
	pda, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("node"), []byte(nodeName)},
		r.programID,
	)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("identity: derive node pda: %w", err)
	}

	info, err := r.client.GetAccountInfo(ctx, pda)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("identity: fetch node account: %w", err)
	}
	if info == nil || info.Value == nil {
		return ExternalIdentity{}, fmt.Errorf("identity: node %q not registered", nodeName)
	}

	data := info.Value.Data.GetBinary()
	if len(data) < nodeAccountFixedLen+4 {
		return ExternalIdentity{}, fmt.Errorf("identity: malformed node account for %q", nodeName)
	}

	var sigPK, encPK [32]byte
	copy(sigPK[:], data[0:32])
	copy(encPK[:], data[32:64])
	addrLen := binary.LittleEndian.Uint32(data[64:68])
	end := 68 + int(addrLen)
	if end > len(data) {
		return ExternalIdentity{}, fmt.Errorf("identity: malformed socket address for %q", nodeName)
	}
	socketAddr := string(data[68:end])

	return ExternalIdentity{
		SocketAddr:    socketAddr,
		NodeSigPK:     sigPK,
		NodeEncPK:     encPK,
		LastRefreshed: time.Now(),
	}, nil
}
