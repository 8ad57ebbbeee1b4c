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
	"time"

	"github.com/shinkainet/node/crypto"
	"github.com/shinkainet/node/identity/name"
)

// TimeLayout is RFC3339 with millisecond resolution, the timestamp form
// used throughout external_metadata and storage composite keys.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Builder fluently accumulates envelope fields and performs the signing
// and encryption steps in Build.
type Builder struct {
	senderSigSK crypto.SigningKeyPair
	senderEncSK crypto.EncryptionKeyPair
	haveSigSK   bool
	haveEncSK   bool

	senderNode           string
	senderSubidentity    string
	recipientNode        string
	recipientSubidentity string
	recipientEncPK       [32]byte
	haveRecipientEncPK   bool

	bodyContent string
	schemaType  string
	encryption  EncryptionMethod

	scheduledTime *time.Time
	inbox         string
	proxyRelay    string
}

// NewBuilder starts a builder for a message signed (and, if requested,
// encrypted) on behalf of the given identity keypairs.
func NewBuilder(sigSK crypto.SigningKeyPair, encSK crypto.EncryptionKeyPair) *Builder {
	return &Builder{
		senderSigSK: sigSK,
		senderEncSK: encSK,
		haveSigSK:   true,
		haveEncSK:   true,
		encryption:  EncryptionNone,
	}
}

// WithSender sets the sender's node and subidentity (profile/device/agent
// leaf string, may be empty).
func (b *Builder) WithSender(node, subidentity string) *Builder {
	b.senderNode = node
	b.senderSubidentity = subidentity
	return b
}

// WithRecipient sets the recipient's node, subidentity, and X25519
// encryption public key (required only when encryption is requested).
func (b *Builder) WithRecipient(node, subidentity string, encPK [32]byte) *Builder {
	b.recipientNode = node
	b.recipientSubidentity = subidentity
	b.recipientEncPK = encPK
	b.haveRecipientEncPK = true
	return b
}

// WithBody sets the plaintext body content and schema type.
func (b *Builder) WithBody(content, schemaType string) *Builder {
	b.bodyContent = content
	b.schemaType = schemaType
	return b
}

// WithEncryption selects the encryption method applied to both layers.
func (b *Builder) WithEncryption(method EncryptionMethod) *Builder {
	b.encryption = method
	return b
}

// WithScheduledTime pins scheduled_time; if never called, Build sets it
// to the current time.
func (b *Builder) WithScheduledTime(t time.Time) *Builder {
	b.scheduledTime = &t
	return b
}

// WithInbox overrides the computed inbox string.
func (b *Builder) WithInbox(inbox string) *Builder {
	b.inbox = inbox
	return b
}

// WithProxy sets proxy-relay metadata carried in external_metadata.other.
func (b *Builder) WithProxy(info string) *Builder {
	b.proxyRelay = info
	return b
}

// Build performs, in order: set scheduled_time if absent; compute inbox
// from participants if not set; sign inner; encrypt inner if requested;
// sign outer; encrypt outer if requested.
func (b *Builder) Build() (*Message, error) {
	if !b.haveSigSK {
		return nil, missingField("sender_signing_key")
	}
	if b.senderNode == "" {
		return nil, missingField("sender_node")
	}
	if b.recipientNode == "" {
		return nil, missingField("recipient_node")
	}
	if b.schemaType == "" {
		return nil, missingField("schema_type")
	}
	if b.encryption != EncryptionNone && !b.haveRecipientEncPK {
		return nil, missingField("recipient_enc_pk")
	}

	scheduled := b.scheduledTime
	if scheduled == nil {
		now := time.Now().UTC()
		scheduled = &now
	}

	inbox := b.inbox
	if inbox == "" {
		isE2E := b.encryption != EncryptionNone
		built, err := name.RegularFromEndpoints(b.senderNode, b.senderSubidentity, b.recipientNode, b.recipientSubidentity, isE2E)
		if err != nil {
			return nil, err
		}
		inbox = built.String()
	}

	msg := &Message{
		Body: Body{
			Data: Data{
				RawContent: b.bodyContent,
				SchemaType: b.schemaType,
			},
			InternalMetadata: InternalMetadata{
				SenderSubidentity:    b.senderSubidentity,
				RecipientSubidentity: b.recipientSubidentity,
				Inbox:                inbox,
				Encryption:           b.encryption,
			},
		},
		ExternalMetadata: ExternalMetadata{
			Sender:        b.senderNode,
			Recipient:     b.recipientNode,
			ScheduledTime: scheduled.Format(TimeLayout),
			Other:         b.proxyRelay,
		},
		Encryption: b.encryption,
		Version:    VersionV1_0,
	}

	if err := SignInner(msg, b.senderSigSK); err != nil {
		return nil, err
	}
	if b.encryption != EncryptionNone {
		if err := EncryptInner(msg, b.senderEncSK, b.recipientEncPK); err != nil {
			return nil, err
		}
	}
	if err := SignOuter(msg, b.senderSigSK); err != nil {
		return nil, err
	}
	if b.encryption != EncryptionNone {
		if err := EncryptOuter(msg, b.senderEncSK, b.recipientEncPK); err != nil {
			return nil, err
		}
	}
	return msg, nil
}
