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
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// GenerateEncryptionKeyPair draws a fresh random X25519 keypair.
func GenerateEncryptionKeyPair() (EncryptionKeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return EncryptionKeyPair{}, fmt.Errorf("crypto: generate x25519 key: %w", err)
	}
	var kp EncryptionKeyPair
	copy(kp.PrivateKey[:], priv.Bytes())
	copy(kp.PublicKey[:], priv.PublicKey().Bytes())
	return kp, nil
}

// EncryptionKeyPairFromSeed derives a deterministic X25519 keypair from a
// 32-byte seed via SHA-256, mirroring SigningKeyPairFromSeed.
func EncryptionKeyPairFromSeed(seed [32]byte) (EncryptionKeyPair, error) {
	derived := sha256.Sum256(seed[:])
	priv, err := ecdh.X25519().NewPrivateKey(derived[:])
	if err != nil {
		return EncryptionKeyPair{}, fmt.Errorf("crypto: derive x25519 key: %w", err)
	}
	var kp EncryptionKeyPair
	copy(kp.PrivateKey[:], priv.Bytes())
	copy(kp.PublicKey[:], priv.PublicKey().Bytes())
	return kp, nil
}

// DH computes the X25519 shared secret between our private key and a
// peer's public key, then runs it through BLAKE3 to derive a 32-byte AEAD
// key, per spec §4.1 ("key derivation for AEAD is BLAKE3(shared32)").
func DH(sk EncryptionKeyPair, peerPub [32]byte) ([32]byte, error) {
	curve := ecdh.X25519()
	priv, err := curve.NewPrivateKey(sk.PrivateKey[:])
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	pub, err := curve.NewPublicKey(peerPub[:])
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	shared, err := priv.ECDH(pub)
	if err != nil {
		return [32]byte{}, fmt.Errorf("crypto: dh exchange: %w", err)
	}
	return BLAKE3(shared), nil
}

// Encrypt seals plaintext under key with ChaCha20-Poly1305, returning
// nonce(12B) || ciphertext, per spec §4.1 / §4.2.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: draw nonce: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ciphertext...), nil
}

// Decrypt reverses Encrypt. MAC failures are returned as
// ErrDecryptionFailed, never leaking a partial plaintext.
func Decrypt(sealed, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	if len(sealed) < chacha20poly1305.NonceSize {
		return nil, ErrDecryptionFailed
	}
	nonce, ciphertext := sealed[:chacha20poly1305.NonceSize], sealed[chacha20poly1305.NonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
