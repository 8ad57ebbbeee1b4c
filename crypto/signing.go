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

package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/shinkainet/node/internal/metrics"
)

// GenerateSigningKeyPair draws a fresh random Ed25519 keypair from the OS
// CSPRNG.
func GenerateSigningKeyPair() (SigningKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return SigningKeyPair{}, fmt.Errorf("crypto: generate ed25519 key: %w", err)
	}
	var kp SigningKeyPair
	copy(kp.PublicKey[:], pub)
	copy(kp.PrivateKey[:], priv)
	return kp, nil
}

// SigningKeyPairFromSeed derives a deterministic Ed25519 keypair from a
// 32-byte seed via SHA-256 of that seed, per spec §3 ("Keys are derivable
// from a 32-byte seed via SHA-256 of that seed for deterministic test/
// bootstrap use; production keys are random").
func SigningKeyPairFromSeed(seed [32]byte) (SigningKeyPair, error) {
	derived := sha256.Sum256(seed[:])
	priv := ed25519.NewKeyFromSeed(derived[:])
	pub := priv.Public().(ed25519.PublicKey)
	var kp SigningKeyPair
	copy(kp.PublicKey[:], pub)
	copy(kp.PrivateKey[:], priv)
	return kp, nil
}

// Sign produces a 64-byte Ed25519 signature over bytes.
func Sign(sk SigningKeyPair, message []byte) ([]byte, error) {
	metrics.CryptoOperations.WithLabelValues("sign", "ed25519").Inc()
	if len(sk.PrivateKey) != ed25519.PrivateKeySize {
		metrics.CryptoErrors.WithLabelValues("sign").Inc()
		return nil, ErrInvalidKeyFormat
	}
	sig := ed25519.Sign(ed25519.PrivateKey(sk.PrivateKey[:]), message)
	if len(sig) != ed25519.SignatureSize {
		metrics.CryptoErrors.WithLabelValues("sign").Inc()
		return nil, ErrSigningFailed
	}
	return sig, nil
}

// Verify reports whether sig is a valid Ed25519 signature over message
// under pk.
func Verify(pk [32]byte, message, sig []byte) bool {
	metrics.CryptoOperations.WithLabelValues("verify", "ed25519").Inc()
	if len(sig) != ed25519.SignatureSize {
		metrics.CryptoErrors.WithLabelValues("verify").Inc()
		return false
	}
	ok := ed25519.Verify(ed25519.PublicKey(pk[:]), message, sig)
	if !ok {
		metrics.CryptoErrors.WithLabelValues("verify").Inc()
	}
	return ok
}
