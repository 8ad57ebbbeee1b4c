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

package envelope

import (
	"encoding/json"

	"github.com/shinkainet/node/crypto"
)

// canonicalJSON re-serializes v with object keys sorted lexicographically
// at every depth. encoding/json already sorts map[string]any keys, so a
// marshal → generic-unmarshal → marshal round trip is sufficient: struct
// field order never survives the intermediate map.
func canonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// hashValue computes hex(BLAKE3(canonical_json(v))).
func hashValue(v interface{}) (string, error) {
	canon, err := canonicalJSON(v)
	if err != nil {
		return "", err
	}
	return crypto.BLAKE3Hex(canon), nil
}

// cloneMessage deep-copies msg via a JSON round trip.
func cloneMessage(msg Message) (Message, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return Message{}, err
	}
	var out Message
	if err := json.Unmarshal(raw, &out); err != nil {
		return Message{}, err
	}
	return out, nil
}

// cloneBody deep-copies a Body via a JSON round trip.
func cloneBody(b Body) (Body, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return Body{}, err
	}
	var out Body
	if err := json.Unmarshal(raw, &out); err != nil {
		return Body{}, err
	}
	return out, nil
}

// Hash computes the pagination hash of msg: the canonical hash of the
// message with node_api_data cleared (spec: message_hash_for_pagination).
func Hash(msg Message) (string, error) {
	clone, err := cloneMessage(msg)
	if err != nil {
		return "", err
	}
	clone.Body.InternalMetadata.NodeAPIData = nil
	return hashValue(clone)
}
