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

// Package envelope implements the two-layer (outer/inner) signed and
// optionally encrypted message envelope: building, signing, verifying,
// encrypting and decrypting both layers, and the canonical JSON hashing
// rule used for signatures and pagination.
package envelope

import (
	"fmt"
	"strings"
)

// EncryptionMethod names the AEAD scheme (or its absence) applied to a
// layer.
type EncryptionMethod string

const (
	EncryptionNone                   EncryptionMethod = "none"
	EncryptionX25519ChaCha20Poly1305 EncryptionMethod = "x25519-chacha20poly1305"
)

// Version is the envelope wire-format version.
type Version string

const (
	VersionV1_0       Version = "v1_0"
	VersionUnsupported Version = "unsupported"
)

// encryptedPrefix marks both body.content and data.content strings that
// hold sealed bytes rather than plaintext.
const encryptedPrefix = "encrypted:"

// NodeAPIData is server-assigned provenance metadata. It MUST be absent
// when signing either layer or when computing the pagination hash.
type NodeAPIData struct {
	ParentHash      string `json:"parent_hash,omitempty"`
	NodeMessageHash string `json:"node_message_hash,omitempty"`
	NodeTimestamp   string `json:"node_timestamp,omitempty"`
}

// Data is the inner payload: either a sealed Content string, or the
// plaintext RawContent plus its SchemaType.
type Data struct {
	Content    string `json:"content,omitempty"`
	RawContent string `json:"raw_content,omitempty"`
	SchemaType string `json:"schema_type,omitempty"`
}

// IsEncrypted reports whether Content carries sealed bytes.
func (d Data) IsEncrypted() bool { return strings.HasPrefix(d.Content, encryptedPrefix) }

// InternalMetadata travels alongside Data inside a Plain body. Unlike
// Data, it stays visible to the transport even when Data is sealed.
type InternalMetadata struct {
	SenderSubidentity    string           `json:"sender_subidentity"`
	RecipientSubidentity string           `json:"recipient_subidentity"`
	Inbox                string           `json:"inbox"`
	Signature            string           `json:"signature,omitempty"`
	Encryption           EncryptionMethod `json:"encryption"`
	NodeAPIData          *NodeAPIData     `json:"node_api_data,omitempty"`
}

// Body is either Encrypted (only Content set) or Plain (Data and
// InternalMetadata set, Content empty).
type Body struct {
	Content          string           `json:"content,omitempty"`
	Data             Data             `json:"data,omitempty"`
	InternalMetadata InternalMetadata `json:"internal_metadata,omitempty"`
}

// IsEncrypted reports whether this body is the Encrypted variant.
func (b Body) IsEncrypted() bool { return strings.HasPrefix(b.Content, encryptedPrefix) }

// ExternalMetadata is the outer envelope header.
type ExternalMetadata struct {
	Sender        string `json:"sender"`
	Recipient     string `json:"recipient"`
	ScheduledTime string `json:"scheduled_time"`
	Signature     string `json:"signature,omitempty"`
	IntraSender   string `json:"intra_sender,omitempty"`
	Other         string `json:"other,omitempty"`
}

// Message is the full two-layer envelope.
type Message struct {
	Body             Body             `json:"body"`
	ExternalMetadata ExternalMetadata `json:"external_metadata"`
	Encryption       EncryptionMethod `json:"encryption"`
	Version          Version          `json:"version"`
}

// MissingFieldError reports a required builder field that was never set.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("envelope: missing field %q", e.Field)
}

func missingField(name string) error { return &MissingFieldError{Field: name} }
