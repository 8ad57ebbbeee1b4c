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
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// EncodeKeyHex lowercase-hex-encodes a 32-byte key, the canonical output
// encoding for both Ed25519 and X25519 public keys per spec §4.1.
func EncodeKeyHex(key [32]byte) string {
	return hex.EncodeToString(key[:])
}

// DecodeKey32 accepts either lowercase hex or base58 input and returns the
// decoded 32-byte key, rejecting anything that doesn't decode to exactly
// 32 bytes. Hex is tried first since it is the canonical wire encoding;
// base58 is accepted for compatibility with legacy callers.
func DecodeKey32(s string) ([32]byte, error) {
	var out [32]byte
	s = strings.TrimSpace(s)
	if raw, err := hex.DecodeString(s); err == nil {
		if len(raw) != 32 {
			return out, fmt.Errorf("%w: hex key must decode to 32 bytes, got %d", ErrInvalidKeyFormat, len(raw))
		}
		copy(out[:], raw)
		return out, nil
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return out, fmt.Errorf("%w: not valid hex or base58: %v", ErrInvalidKeyFormat, err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("%w: base58 key must decode to 32 bytes, got %d", ErrInvalidKeyFormat, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// DecodeSignature64 decodes a hex-encoded 64-byte Ed25519 signature.
func DecodeSignature64(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	if len(raw) != 64 {
		return nil, fmt.Errorf("%w: signature must be 64 bytes, got %d", ErrInvalidKeyFormat, len(raw))
	}
	return raw, nil
}

// EncodeBase58 base58-encodes arbitrary bytes (used by legacy-compatible
// address/identifier formats).
func EncodeBase58(b []byte) string {
	return base58.Encode(b)
}
