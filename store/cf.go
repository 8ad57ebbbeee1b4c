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

// Package store implements the node's column-family key-value store: a
// single pebble database with byte-prefixed column families, per-CF
// fixed-length prefix extraction for bloom-filtered range scans, and
// atomic write batches for composing secondary indices.
package store

import "github.com/cockroachdb/pebble"

// CF identifies a column family. Pebble has no native CF concept, so
// each CF is a one-byte header prepended to every key it owns.
type CF byte

const (
	CFInbox CF = iota
	CFNodeAndUsers
	CFAllMessages
	CFAnyQueuesPrefixed
	CFScheduledMessage
	CFCronQueues
	CFMessagesToRetry
	CFMessageBoxSymmetricKeys
)

// cfPrefixLen gives the fixed-length visible prefix (after the one-byte
// CF header) that pebble's bloom filter indexes for this CF. CFs absent
// from this map get no prefix extraction: whole-CF scans are acceptable
// for them per spec.
var cfPrefixLen = map[CF]int{
	CFInbox:             47,
	CFNodeAndUsers:       47,
	CFAllMessages:       47,
	CFAnyQueuesPrefixed: 24,
}

// cfKey prepends c's one-byte header to key.
func cfKey(c CF, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = byte(c)
	copy(out[1:], key)
	return out
}

// cfPrefix returns the bare CF header, the lower bound of every key the
// CF owns.
func cfPrefix(c CF) []byte {
	return []byte{byte(c)}
}

// prefixSplit implements pebble.Comparer.Split: it returns how many
// leading bytes of key form its bloom-filter prefix. The first byte
// selects the CF; CFs with a configured prefix length extend the split
// point by that many more bytes (capped to the key's actual length),
// CFs without one split at the whole key so no prefix bloom filter
// applies.
func prefixSplit(key []byte) int {
	if len(key) == 0 {
		return 0
	}
	c := CF(key[0])
	n, ok := cfPrefixLen[c]
	if !ok {
		return len(key)
	}
	split := 1 + n
	if split > len(key) {
		return len(key)
	}
	return split
}

// newComparer clones pebble's default byte-order comparer, overriding
// only Split so range scans within a CF get prefix bloom filtering.
func newComparer() *pebble.Comparer {
	c := *pebble.DefaultComparer
	c.Split = prefixSplit
	c.Name = "shinkai.cf-prefix.v1"
	return &c
}
