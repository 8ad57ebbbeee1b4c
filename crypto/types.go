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

// Package crypto implements the node's cryptographic primitives: Ed25519
// signing, X25519 key agreement, ChaCha20-Poly1305 AEAD, BLAKE3 hashing,
// and hex/base58 codecs. The functions do no I/O other than reading OS
// randomness (key generation and encryption nonces); Sign and Verify
// also increment the process-wide crypto metrics counters.
package crypto

import "errors"

// Error taxonomy for the crypto primitives (spec §4.1).
var (
	ErrSigningFailed     = errors.New("crypto: signing failed")
	ErrVerifyFailed      = errors.New("crypto: signature verification failed")
	ErrDecryptionFailed  = errors.New("crypto: decryption failed (MAC check failed)")
	ErrInvalidKeyFormat  = errors.New("crypto: invalid key format or length")
	ErrAlreadyEncrypted  = errors.New("crypto: value is already in ciphertext form")
	ErrSignNotSupported  = errors.New("crypto: key type does not support signing")
	ErrVerifyNotSupported = errors.New("crypto: key type does not support verification")
)

// SigningKeyPair is an Ed25519 identity keypair.
type SigningKeyPair struct {
	PublicKey  [32]byte
	PrivateKey [64]byte
}

// EncryptionKeyPair is an X25519 key-agreement keypair.
type EncryptionKeyPair struct {
	PublicKey  [32]byte
	PrivateKey [32]byte
}

// IdentityKeyPair bundles the two keypairs every node/profile identity
// owns, per spec §3 ("Keypair").
type IdentityKeyPair struct {
	Signing    SigningKeyPair
	Encryption EncryptionKeyPair
}
