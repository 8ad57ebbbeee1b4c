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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/test-go/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateSigningKeyPair()
	require.NoError(t, err)

	msg := []byte("hello shinkai")
	sig, err := Sign(kp, msg)
	require.NoError(t, err)
	assert.True(t, Verify(kp.PublicKey, msg, sig))
}

func TestSignVerifyMutationFails(t *testing.T) {
	kp, err := GenerateSigningKeyPair()
	require.NoError(t, err)

	msg := []byte("hello shinkai")
	sig, err := Sign(kp, msg)
	require.NoError(t, err)

	mutated := append([]byte(nil), msg...)
	mutated[0] ^= 0xFF
	assert.False(t, Verify(kp.PublicKey, mutated, sig))
}

func TestSigningKeyPairFromSeedDeterministic(t *testing.T) {
	var seed [32]byte
	copy(seed[:], []byte("deterministic-test-seed-000000"))

	kp1, err := SigningKeyPairFromSeed(seed)
	require.NoError(t, err)
	kp2, err := SigningKeyPairFromSeed(seed)
	require.NoError(t, err)

	assert.Equal(t, kp1.PublicKey, kp2.PublicKey)
	assert.Equal(t, kp1.PrivateKey, kp2.PrivateKey)
}

func TestDHAgreement(t *testing.T) {
	a, err := GenerateEncryptionKeyPair()
	require.NoError(t, err)
	b, err := GenerateEncryptionKeyPair()
	require.NoError(t, err)

	sharedA, err := DH(a, b.PublicKey)
	require.NoError(t, err)
	sharedB, err := DH(b, a.PublicKey)
	require.NoError(t, err)

	assert.Equal(t, sharedA, sharedB)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	a, err := GenerateEncryptionKeyPair()
	require.NoError(t, err)
	b, err := GenerateEncryptionKeyPair()
	require.NoError(t, err)

	key, err := DH(a, b.PublicKey)
	require.NoError(t, err)

	plaintext := []byte("ping")
	sealed, err := Encrypt(plaintext, key[:])
	require.NoError(t, err)

	opened, err := Decrypt(sealed, key[:])
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestDecryptTamperedFails(t *testing.T) {
	var key [32]byte
	sealed, err := Encrypt([]byte("secret"), key[:])
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0x01
	_, err = Decrypt(sealed, key[:])
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecodeKey32RejectsWrongLength(t *testing.T) {
	_, err := DecodeKey32("deadbeef")
	assert.Error(t, err)
}

func TestDecodeKey32AcceptsHexAndBase58(t *testing.T) {
	kp, err := GenerateEncryptionKeyPair()
	require.NoError(t, err)

	hexForm := EncodeKeyHex(kp.PublicKey)
	decoded, err := DecodeKey32(hexForm)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, decoded)

	b58Form := EncodeBase58(kp.PublicKey[:])
	decoded2, err := DecodeKey32(b58Form)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, decoded2)
}

func TestBLAKE3Deterministic(t *testing.T) {
	h1 := BLAKE3Hex([]byte("shinkai"))
	h2 := BLAKE3Hex([]byte("shinkai"))
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestShortIDIsHalfOfFullHash(t *testing.T) {
	full := BLAKE3Hex([]byte("inbox::a::b::false"))
	short := ShortID([]byte("inbox::a::b::false"))
	assert.Equal(t, full[:len(full)/2], short)
}
