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
	"errors"
	"fmt"
	"time"

	"github.com/shinkainet/node/envelope"
	"github.com/shinkainet/node/identity/name"
	"github.com/shinkainet/node/store"
	"github.com/shinkainet/node/transport/direct"
)

// Key prefixes within CFNodeAndUsers. Each command-surface record type
// gets its own namespace so a whole-CF scan (no prefix bloom filter is
// configured for CFNodeAndUsers beyond the 47-byte acceleration prefix)
// stays cheap to filter in memory.
const (
	bearerPrefix     = "bearer::"
	regcodePrefix    = "regcode::"
	offeringPrefix   = "offering::"
	inboxLabelPrefix = "inboxlabel::"
	subscriptionPrefix = "subscription::"
	llmProviderPrefix  = "llmprovider::"
	jobProviderPrefix  = "jobprovider::"
)

// bearerRecord is what a validated bearer token resolves to.
type bearerRecord struct {
	NodeName string `json:"node_name"`
	Grade    int    `json:"grade"`
}

// authorize validates token against CFNodeAndUsers, per spec §6 ("All
// commands carry a bearer token; the orchestrator MUST validate it
// against the NodeAndUsers CF before executing").
func (o *Orchestrator) authorize(token string) (bearerRecord, error) {
	if o.jwtSecret != nil && isJWT(token) {
		return authorizeJWT(token, o.jwtSecret)
	}
	raw, err := o.store.Get(store.CFNodeAndUsers, []byte(bearerPrefix+token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return bearerRecord{}, errUnauthorized
		}
		return bearerRecord{}, err
	}
	var rec bearerRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return bearerRecord{}, errUnauthorized
	}
	return rec, nil
}

// CreateRegistrationCode mints a one-time code that UseRegistrationCode
// later exchanges for a bearer token.
func (o *Orchestrator) CreateRegistrationCode(bearer, code string, grade int) error {
	if _, err := o.authorize(bearer); err != nil {
		return err
	}
	rec := struct {
		Grade int  `json:"grade"`
		Used  bool `json:"used"`
	}{Grade: grade}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return o.store.Set(store.CFNodeAndUsers, []byte(regcodePrefix+code), encoded)
}

// UseRegistrationCode redeems code for nodeName, storing the caller-chosen
// newBearer as nodeName's bearer token. Redeeming an already-used or
// unknown code fails.
func (o *Orchestrator) UseRegistrationCode(code, nodeName, newBearer string) error {
	key := []byte(regcodePrefix + code)
	raw, err := o.store.Get(store.CFNodeAndUsers, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("orchestrator: unknown registration code")
		}
		return err
	}
	var rec struct {
		Grade int  `json:"grade"`
		Used  bool `json:"used"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return err
	}
	if rec.Used {
		return fmt.Errorf("orchestrator: registration code already used")
	}
	rec.Used = true
	encoded, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	batch := o.store.NewBatch()
	if err := batch.Set(store.CFNodeAndUsers, key, encoded); err != nil {
		return err
	}
	bearerEncoded, err := json.Marshal(bearerRecord{NodeName: nodeName, Grade: rec.Grade})
	if err != nil {
		return err
	}
	if err := batch.Set(store.CFNodeAndUsers, []byte(bearerPrefix+newBearer), bearerEncoded); err != nil {
		return err
	}
	return batch.Commit()
}

// Offering is a tool/agent offering advertised by this node.
type Offering struct {
	ToolKeyName string  `json:"tool_key_name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	UsageType   string  `json:"usage_type"`
	// Endpoint, when set, is a direct (non-overlay) address this
	// offering is settled against -- a provider not reachable through
	// the libp2p swarm, e.g. a centrally hosted tool.
	Endpoint string `json:"endpoint,omitempty"`
}

// SetOffering creates or replaces a tool offering.
func (o *Orchestrator) SetOffering(bearer string, off Offering) error {
	if _, err := o.authorize(bearer); err != nil {
		return err
	}
	encoded, err := json.Marshal(off)
	if err != nil {
		return err
	}
	return o.store.Set(store.CFNodeAndUsers, []byte(offeringPrefix+off.ToolKeyName), encoded)
}

// GetOffering resolves a previously set offering.
func (o *Orchestrator) GetOffering(bearer, toolKeyName string) (Offering, error) {
	if _, err := o.authorize(bearer); err != nil {
		return Offering{}, err
	}
	raw, err := o.store.Get(store.CFNodeAndUsers, []byte(offeringPrefix+toolKeyName))
	if err != nil {
		return Offering{}, err
	}
	var off Offering
	if err := json.Unmarshal(raw, &off); err != nil {
		return Offering{}, err
	}
	return off, nil
}

// RemoveOffering deletes a previously set offering.
func (o *Orchestrator) RemoveOffering(bearer, toolKeyName string) error {
	if _, err := o.authorize(bearer); err != nil {
		return err
	}
	return o.store.Delete(store.CFNodeAndUsers, []byte(offeringPrefix+toolKeyName))
}

// LLMProvider is a registered inference backend a job can be routed to.
type LLMProvider struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"` // direct (non-overlay) inference endpoint
	Model    string `json:"model"`
}

func llmProviderKey(id string) []byte {
	return []byte(llmProviderPrefix + id)
}

// SetLLMProvider registers or replaces an inference backend.
func (o *Orchestrator) SetLLMProvider(bearer string, p LLMProvider) error {
	if _, err := o.authorize(bearer); err != nil {
		return err
	}
	encoded, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return o.store.Set(store.CFNodeAndUsers, llmProviderKey(p.ID), encoded)
}

// GetLLMProvider resolves a previously registered inference backend.
func (o *Orchestrator) GetLLMProvider(id string) (LLMProvider, error) {
	raw, err := o.store.Get(store.CFNodeAndUsers, llmProviderKey(id))
	if err != nil {
		return LLMProvider{}, err
	}
	var p LLMProvider
	if err := json.Unmarshal(raw, &p); err != nil {
		return LLMProvider{}, err
	}
	return p, nil
}

// RunInference dials job's LLM provider directly and exchanges prompt for
// its completion. The job queue's processor calls this once per job.
func (o *Orchestrator) RunInference(ctx context.Context, providerID string, prompt []byte) (*direct.Response, error) {
	p, err := o.GetLLMProvider(providerID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: resolve llm provider %q: %w", providerID, err)
	}
	return o.settleClient.Send(ctx, p.Endpoint, direct.Request{ToolKeyName: p.Model, Payload: prompt})
}

// subscriptionRecord is the persisted state behind one (subscriber, topic)
// pair, keyed by subscriptionPrefix+topic+"::"+subscriber.
type subscriptionRecord struct {
	Subscriber string    `json:"subscriber"`
	Topic      string    `json:"topic"`
	Since      time.Time `json:"since"`
}

func subscriptionKey(topic, subscriber string) []byte {
	return []byte(subscriptionPrefix + topic + "::" + subscriber)
}

// applySubscription mutates subscription state in response to an inbound
// schemaSubscription envelope; subscriber is the envelope's sender.
func (o *Orchestrator) applySubscription(subscriber string, ctrl subscriptionControl) error {
	if ctrl.Topic == "" {
		return fmt.Errorf("orchestrator: subscription control missing topic")
	}
	key := subscriptionKey(ctrl.Topic, subscriber)
	switch ctrl.Action {
	case "subscribe":
		encoded, err := json.Marshal(subscriptionRecord{Subscriber: subscriber, Topic: ctrl.Topic, Since: time.Now().UTC()})
		if err != nil {
			return err
		}
		return o.store.Set(store.CFNodeAndUsers, key, encoded)
	case "unsubscribe":
		return o.store.Delete(store.CFNodeAndUsers, key)
	default:
		return fmt.Errorf("orchestrator: unknown subscription action %q", ctrl.Action)
	}
}

// Subscribers lists every node currently subscribed to topic, per the
// bearer-authorized command surface.
func (o *Orchestrator) Subscribers(bearer, topic string) ([]string, error) {
	if _, err := o.authorize(bearer); err != nil {
		return nil, err
	}
	prefix := []byte(subscriptionPrefix + topic + "::")
	var out []string
	err := o.store.ScanPrefix(store.CFNodeAndUsers, prefix, func(e store.Entry) (bool, error) {
		var rec subscriptionRecord
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			return true, nil
		}
		out = append(out, rec.Subscriber)
		return true, nil
	})
	return out, err
}

// UpdateInboxName sets a custom display label for inbox.
func (o *Orchestrator) UpdateInboxName(bearer, inbox, label string) error {
	if _, err := o.authorize(bearer); err != nil {
		return err
	}
	return o.store.Set(store.CFNodeAndUsers, []byte(inboxLabelPrefix+inbox), []byte(label))
}

// InboxSummary is one entry of the AllSmartInboxes listing.
type InboxSummary struct {
	Inbox      string `json:"inbox"`
	Label      string `json:"label,omitempty"`
	LastHash   string `json:"last_hash,omitempty"`
}

// AllSmartInboxes lists every inbox this node has a custom label for,
// alongside its most recent message hash.
func (o *Orchestrator) AllSmartInboxes(bearer string) ([]InboxSummary, error) {
	if _, err := o.authorize(bearer); err != nil {
		return nil, err
	}
	var out []InboxSummary
	err := o.store.ScanPrefix(store.CFNodeAndUsers, []byte(inboxLabelPrefix), func(e store.Entry) (bool, error) {
		inbox := string(e.Key[len(inboxLabelPrefix):])
		lastHash, _ := o.store.LastHashInInbox(inbox)
		out = append(out, InboxSummary{Inbox: inbox, Label: string(e.Value), LastHash: lastHash})
		return true, nil
	})
	return out, err
}

// LastMessages returns up to n messages from inbox, most recent first,
// skipping the first offset entries.
func (o *Orchestrator) LastMessages(bearer, inbox string, n, offset int) ([]envelope.Message, error) {
	if _, err := o.authorize(bearer); err != nil {
		return nil, err
	}
	hashes, err := o.store.LastMessagesFromInbox(inbox, n, offset)
	if err != nil {
		return nil, err
	}
	out := make([]envelope.Message, 0, len(hashes))
	for _, h := range hashes {
		msg, err := o.store.GetMessage(h)
		if err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// CreateJob opens a fresh job inbox and persists its creation as a job
// message under that inbox, returning the job inbox's canonical string.
func (o *Orchestrator) CreateJob(ctx context.Context, bearer, jobID, llmProviderID, initialContent string) (string, error) {
	rec, err := o.authorize(bearer)
	if err != nil {
		return "", err
	}
	jobInbox, err := name.JobFromID(jobID)
	if err != nil {
		return "", err
	}
	msg, err := o.buildJobMessage(rec.NodeName, jobInbox.String(), schemaJob, initialContent)
	if err != nil {
		return "", err
	}
	if _, err := o.persistLocal(jobInbox.String(), msg); err != nil {
		return "", err
	}
	if llmProviderID != "" {
		if err := o.store.Set(store.CFNodeAndUsers, jobProviderKey(jobInbox.ShortID()), []byte(llmProviderID)); err != nil {
			return "", err
		}
	}
	return jobInbox.String(), nil
}

func jobProviderKey(jobShortID string) []byte {
	return []byte(jobProviderPrefix + jobShortID)
}

// JobProvider resolves the LLM provider a job was created against, if any.
func (o *Orchestrator) JobProvider(jobShortID string) (string, error) {
	raw, err := o.store.Get(store.CFNodeAndUsers, jobProviderKey(jobShortID))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// JobMessage appends a user message to an existing job inbox and enqueues
// it for inference.
func (o *Orchestrator) JobMessage(ctx context.Context, bearer, jobID, content, filesInbox string) error {
	rec, err := o.authorize(bearer)
	if err != nil {
		return err
	}
	jobInbox, err := name.JobFromID(jobID)
	if err != nil {
		return err
	}
	msg, err := o.buildJobMessage(rec.NodeName, jobInbox.String(), schemaJob, content)
	if err != nil {
		return err
	}
	if _, err := o.persistLocal(jobInbox.String(), msg); err != nil {
		return err
	}
	if o.queue != nil {
		return o.queue.Dispatch(jobInbox.ShortID(), []byte(content))
	}
	return nil
}

// buildJobMessage constructs a local, unencrypted envelope addressed from
// and to self, carrying content under the given inbox and schema.
func (o *Orchestrator) buildJobMessage(senderName, inbox, schema, content string) (envelope.Message, error) {
	b := envelope.NewBuilder(o.self.Signing, o.self.Enc).
		WithSender(senderName, "").
		WithRecipient(senderName, "", o.self.Enc.PublicKey).
		WithBody(content, schema).
		WithEncryption(envelope.EncryptionNone)
	msg, err := b.Build()
	if err != nil {
		return envelope.Message{}, err
	}
	msg.Body.InternalMetadata.Inbox = inbox
	return *msg, nil
}

// persistLocal runs the store-facing tail of the inbound pipeline
// (node_api_data attachment, insert, inbox append) for a message built
// locally rather than received over the wire.
func (o *Orchestrator) persistLocal(inbox string, msg envelope.Message) (string, error) {
	parentHash, _ := o.store.LastHashInInbox(inbox)
	msgHash, err := envelope.Hash(msg)
	if err != nil {
		return "", err
	}
	msg.Body.InternalMetadata.NodeAPIData = &envelope.NodeAPIData{
		ParentHash:      parentHash,
		NodeMessageHash: msgHash,
		NodeTimestamp:   time.Now().UTC().Format(envelope.TimeLayout),
	}
	hash, err := o.store.InsertMessage(msg)
	if err != nil {
		return "", err
	}
	scheduled, err := time.Parse(envelope.TimeLayout, msg.ExternalMetadata.ScheduledTime)
	if err != nil {
		scheduled = time.Now().UTC()
	}
	if err := o.store.AppendToInbox(inbox, scheduled, hash); err != nil {
		return "", err
	}
	return hash, nil
}

// SettleOffering dials a previously-set offering's direct endpoint and
// exchanges payload for the provider's settlement response. Offerings
// with no Endpoint are overlay-only and cannot be settled this way.
func (o *Orchestrator) SettleOffering(ctx context.Context, bearer, toolKeyName string, payload []byte) (*direct.Response, error) {
	off, err := o.GetOffering(bearer, toolKeyName)
	if err != nil {
		return nil, err
	}
	if off.Endpoint == "" {
		return nil, fmt.Errorf("orchestrator: offering %q has no direct settlement endpoint", toolKeyName)
	}
	return o.settleClient.Send(ctx, off.Endpoint, direct.Request{ToolKeyName: toolKeyName, Payload: payload})
}
