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

	"github.com/zeebo/blake3"
)

// BLAKE3 hashes data and returns the full 32-byte digest.
func BLAKE3(data []byte) [32]byte {
	var out [32]byte
	h := blake3.Sum256(data)
	copy(out[:], h[:])
	return out
}

// BLAKE3Hex hashes data and returns the lowercase hex digest.
func BLAKE3Hex(data []byte) string {
	h := BLAKE3(data)
	return hex.EncodeToString(h[:])
}

// ShortID returns the first half of hex(BLAKE3(value)), the "hash-derived
// short id" spec §3 defines for inboxes.
func ShortID(value []byte) string {
	full := BLAKE3Hex(value)
	return full[:len(full)/2]
}
