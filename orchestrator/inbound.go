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

package orchestrator

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/shinkainet/node/crypto"
	"github.com/shinkainet/node/envelope"
	"github.com/shinkainet/node/identity"
	"github.com/shinkainet/node/identity/name"
	"github.com/shinkainet/node/internal/blockingpool"
	"github.com/shinkainet/node/internal/metrics"
)

// schemaJob, schemaSubscription, and schemaRegistration route inbound
// plaintext bodies to the work queue, subscription state, and identity
// manager respectively; anything else is persisted but not dispatched
// further.
const (
	schemaJob          = "job_message"
	schemaSubscription = "subscription_control"
	schemaRegistration = "registration"
)

// subscriptionControl is the decoded payload of a schemaSubscription body.
type subscriptionControl struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Topic  string `json:"topic"`
}

// registrationAnnouncement is the decoded payload of a schemaRegistration
// body: a peer announcing (or refreshing) its own identity keys.
type registrationAnnouncement struct {
	SigPK      string `json:"sig_pk"`
	EncPK      string `json:"enc_pk"`
	SocketAddr string `json:"socket_addr,omitempty"`
}

// HandleInbound runs the inbound pipeline of spec §4.8 steps 1-8 over a
// single envelope received from from.
func (o *Orchestrator) HandleInbound(ctx context.Context, from peer.ID, msg envelope.Message) {
	ok := false
	defer func() {
		if ok {
			metrics.MessagesProcessed.WithLabelValues("envelope", "success").Inc()
		} else {
			metrics.MessagesProcessed.WithLabelValues("envelope", "failure").Inc()
		}
	}()

	senderName := msg.ExternalMetadata.Sender

	// Step 3 happens before step 1's verify target is known only when the
	// sender's key isn't cached yet; resolve first so VerifyOuter has a
	// key to check against, then cross-check it explicitly per step 3.
	senderID, err := o.ids.Resolve(ctx, senderName, 5*time.Second)
	if err != nil {
		log.Printf("orchestrator: cannot resolve sender %q: %v", senderName, err)
		return
	}

	// Step 1: verify outer signature, bounded by the crypto pool so a
	// burst of inbound envelopes can't spawn unbounded verification work.
	// The outer signature covers the pre-encryption form, so an
	// outer-encrypted body is verified on a decrypted copy.
	outerOK, err := blockingpool.RunValue(ctx, o.crypto, func() (bool, error) {
		signed := msg
		if signed.Body.IsEncrypted() && o.destinedToUs(signed) {
			if err := envelope.DecryptOuter(&signed, o.self.Enc, senderID.NodeEncPK); err != nil {
				return false, nil
			}
		}
		return envelope.VerifyOuter(signed, senderID.NodeSigPK), nil
	})
	if err != nil {
		log.Printf("orchestrator: crypto pool wait for %q: %v", senderName, err)
		return
	}
	if !outerOK {
		o.incrementTampered()
		log.Printf("orchestrator: dropping envelope from %q: outer signature invalid", senderName)
		return
	}

	// Step 2: decrypt outer if encrypted and destined to us. The declared
	// Encryption field must agree with the body's content shape before
	// any decrypt is attempted: a body that looks sealed but declares
	// encryption "none" (or the reverse) is rejected outright.
	bodyLooksEncrypted := msg.Body.IsEncrypted()
	if bodyLooksEncrypted != (msg.Encryption != envelope.EncryptionNone) {
		log.Printf("orchestrator: dropping envelope from %q: encryption field does not match body", senderName)
		return
	}
	if bodyLooksEncrypted {
		if !o.destinedToUs(msg) {
			log.Printf("orchestrator: dropping outer-encrypted envelope not destined to us")
			return
		}
		if err := envelope.DecryptOuter(&msg, o.self.Enc, senderID.NodeEncPK); err != nil {
			log.Printf("orchestrator: outer decrypt failed from %q: %v", senderName, err)
			return
		}
	}

	// Step 3: cross-check sender's claimed signing key against the cache.
	if !o.ids.VerifyAgainstCache(senderName, senderID.NodeSigPK) {
		log.Printf("orchestrator: sender %q signing key does not match cache", senderName)
		return
	}

	// Step 4: verify inner signature, if the body is plain.
	if !msg.Body.IsEncrypted() {
		innerOK, err := blockingpool.RunValue(ctx, o.crypto, func() (bool, error) {
			return envelope.VerifyInner(msg, senderID.NodeSigPK), nil
		})
		if err != nil {
			log.Printf("orchestrator: crypto pool wait for %q: %v", senderName, err)
			return
		}
		if !innerOK {
			log.Printf("orchestrator: dropping envelope from %q: inner signature invalid", senderName)
			return
		}
	}

	// Step 5: decrypt inner if encrypted and destined to us. Same
	// field-vs-content check as step 2, applied to the inner layer.
	innerLooksEncrypted := msg.Body.Data.IsEncrypted()
	if innerLooksEncrypted != (msg.Body.InternalMetadata.Encryption != envelope.EncryptionNone) {
		log.Printf("orchestrator: dropping envelope from %q: inner encryption field does not match body", senderName)
		return
	}
	if innerLooksEncrypted && o.destinedToUs(msg) {
		if err := envelope.DecryptInner(&msg, o.self.Enc, senderID.NodeEncPK); err != nil {
			log.Printf("orchestrator: inner decrypt failed from %q: %v", senderName, err)
			return
		}
	}

	inbox := msg.Body.InternalMetadata.Inbox

	// Step 6: attach node_api_data.
	parentHash, err := o.store.LastHashInInbox(inbox)
	if err != nil {
		log.Printf("orchestrator: reading parent hash for inbox %q: %v", inbox, err)
	}
	msgHash, err := envelope.Hash(msg)
	if err != nil {
		log.Printf("orchestrator: hashing inbound envelope failed: %v", err)
		return
	}
	msg.Body.InternalMetadata.NodeAPIData = &envelope.NodeAPIData{
		ParentHash:      parentHash,
		NodeMessageHash: msgHash,
		NodeTimestamp:   time.Now().UTC().Format(envelope.TimeLayout),
	}

	if o.replay != nil {
		if err := o.replay.CheckAndStore(ctx, msgHash, senderName, time.Now().Add(replayWindow)); err != nil {
			metrics.ReplayAttacksDetected.Inc()
			log.Printf("orchestrator: rejecting replayed envelope from %q: %v", senderName, err)
			return
		}
	}

	// Step 7: persist and index.
	hash, err := o.store.InsertMessage(msg)
	if err != nil {
		log.Printf("orchestrator: persisting inbound envelope failed: %v", err)
		return
	}
	scheduled, err := time.Parse(envelope.TimeLayout, msg.ExternalMetadata.ScheduledTime)
	if err != nil {
		scheduled = time.Now().UTC()
	}
	if err := o.store.AppendToInbox(inbox, scheduled, hash); err != nil {
		log.Printf("orchestrator: indexing inbound envelope into inbox %q failed: %v", inbox, err)
	}

	// Step 8: dispatch by schema type.
	ok = true
	o.dispatch(ctx, from, msg)
}

func (o *Orchestrator) dispatch(ctx context.Context, from peer.ID, msg envelope.Message) {
	switch msg.Body.Data.SchemaType {
	case schemaJob:
		if o.queue == nil {
			return
		}
		inbox, err := name.Parse(msg.Body.InternalMetadata.Inbox)
		if err != nil || !inbox.IsJob() {
			return
		}
		if err := o.queue.Dispatch(inbox.ShortID(), []byte(msg.Body.Data.RawContent)); err != nil {
			log.Printf("orchestrator: dispatching job message failed: %v", err)
		}
	case schemaSubscription:
		var ctrl subscriptionControl
		if err := json.Unmarshal([]byte(msg.Body.Data.RawContent), &ctrl); err != nil {
			log.Printf("orchestrator: malformed subscription control payload from %q: %v", msg.ExternalMetadata.Sender, err)
			return
		}
		if err := o.applySubscription(msg.ExternalMetadata.Sender, ctrl); err != nil {
			log.Printf("orchestrator: applying subscription control from %q failed: %v", msg.ExternalMetadata.Sender, err)
		}
	case schemaRegistration:
		var ann registrationAnnouncement
		if err := json.Unmarshal([]byte(msg.Body.Data.RawContent), &ann); err != nil {
			log.Printf("orchestrator: malformed registration payload from %q: %v", msg.ExternalMetadata.Sender, err)
			return
		}
		sigPK, err := crypto.DecodeKey32(ann.SigPK)
		if err != nil {
			log.Printf("orchestrator: registration from %q carries invalid signing key: %v", msg.ExternalMetadata.Sender, err)
			return
		}
		encPK, err := crypto.DecodeKey32(ann.EncPK)
		if err != nil {
			log.Printf("orchestrator: registration from %q carries invalid encryption key: %v", msg.ExternalMetadata.Sender, err)
			return
		}
		o.ids.CacheExternal(msg.ExternalMetadata.Sender, identity.ExternalIdentity{
			SocketAddr:    ann.SocketAddr,
			NodeSigPK:     sigPK,
			NodeEncPK:     encPK,
			LastRefreshed: time.Now(),
		})
	}
}
