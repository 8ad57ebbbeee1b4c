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

// Package transport implements the node's libp2p overlay: a gossip
// pub/sub mesh with identify, Kademlia peer routing, ping, and DCUtR
// hole-punching, plus direct per-peer topics and a discovery loop.
package transport

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
)

// IdentityFromSeed derives a libp2p Ed25519 private key deterministically
// from a 32-byte seed, for test and bootstrap reproducibility. Production
// nodes should pass a persisted random seed rather than a fixed one.
func IdentityFromSeed(seed [32]byte) (libp2pcrypto.PrivKey, error) {
	h := sha256.Sum256(seed[:])
	priv, _, err := libp2pcrypto.GenerateEd25519Key(newDeterministicReader(h[:]))
	if err != nil {
		return nil, fmt.Errorf("transport: derive identity: %w", err)
	}
	return priv, nil
}

// RandomIdentity generates a fresh random libp2p identity.
func RandomIdentity() (libp2pcrypto.PrivKey, error) {
	priv, _, err := libp2pcrypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("transport: generate identity: %w", err)
	}
	return priv, nil
}

// deterministicReader is an io.Reader that repeats a fixed seed,
// sufficient entropy for Ed25519 key generation's fixed-size read.
type deterministicReader struct {
	seed []byte
	pos  int
}

func newDeterministicReader(seed []byte) io.Reader {
	return &deterministicReader{seed: seed}
}

func (r *deterministicReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.seed[r.pos%len(r.seed)]
		r.pos++
	}
	return len(p), nil
}
