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
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinkainet/node/crypto"
	"github.com/shinkainet/node/envelope"
	"github.com/shinkainet/node/identity"
	"github.com/shinkainet/node/identity/name"
	"github.com/shinkainet/node/store"
	"github.com/shinkainet/node/transport/direct"
)

type fakeSender struct {
	sent []envelope.Message
	fail bool
}

func (f *fakeSender) SendToPeer(ctx context.Context, p peer.ID, msg envelope.Message) error {
	if f.fail {
		return assert.AnError
	}
	f.sent = append(f.sent, msg)
	return nil
}
func (f *fakeSender) Broadcast(ctx context.Context, topic string, msg envelope.Message) error {
	return nil
}
func (f *fakeSender) Ping(ctx context.Context, p peer.ID) (time.Duration, error) { return 0, nil }

func newTestNode(t *testing.T, nodeName string) (*Orchestrator, Identity, *store.Store) {
	t.Helper()
	st, err := store.Open("", store.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sig, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)
	enc, err := crypto.GenerateEncryptionKeyPair()
	require.NoError(t, err)

	self := Identity{
		Name:    nodeName,
		Signing: sig,
		Enc:     enc,
	}

	ids := identity.NewManager(nil)
	ids.CacheExternal(nodeName, identity.ExternalIdentity{
		NodeSigPK:     self.Signing.PublicKey,
		NodeEncPK:     self.Enc.PublicKey,
		LastRefreshed: time.Now(),
	})

	dispatcher := NewJobDispatcher(st)
	orc := New(self, st, ids, &fakeSender{}, dispatcher)
	return orc, self, st
}

// TestLocalEchoScenario matches spec end-to-end scenario 1: an envelope
// from a node to itself lands in the store exactly once and LastN(1)
// reproduces its body.
func TestLocalEchoScenario(t *testing.T) {
	orc, self, st := newTestNode(t, "@@alice.shinkai")

	b := envelope.NewBuilder(self.Signing, self.Enc).
		WithSender("@@alice.shinkai", "").
		WithRecipient("@@alice.shinkai", "", self.Enc.PublicKey).
		WithBody("ping", "text").
		WithEncryption(envelope.EncryptionNone)
	msg, err := b.Build()
	require.NoError(t, err)

	orc.HandleInbound(context.Background(), "", *msg)

	hashes, err := st.LastMessagesFromInbox(msg.Body.InternalMetadata.Inbox, 1, 0)
	require.NoError(t, err)
	require.Len(t, hashes, 1)

	got, err := st.GetMessage(hashes[0])
	require.NoError(t, err)
	assert.Equal(t, "ping", got.Body.Data.RawContent)

	h1, err := envelope.Hash(got)
	require.NoError(t, err)
	h2, err := envelope.Hash(got)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

// TestE2EBetweenTwoNodes matches scenario 2: A signs+encrypts to B; B's
// inbound pipeline verifies, decrypts, and persists it with sender=A.
func TestE2EBetweenTwoNodes(t *testing.T) {
	orcB, selfB, stB := newTestNode(t, "@@bob.shinkai")

	sigA, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)
	encA, err := crypto.GenerateEncryptionKeyPair()
	require.NoError(t, err)
	selfA := Identity{
		Name:    "@@alice.shinkai",
		Signing: sigA,
		Enc:     encA,
	}
	orcB.ids.CacheExternal(selfA.Name, identity.ExternalIdentity{
		NodeSigPK:     selfA.Signing.PublicKey,
		NodeEncPK:     selfA.Enc.PublicKey,
		LastRefreshed: time.Now(),
	})

	b := envelope.NewBuilder(selfA.Signing, selfA.Enc).
		WithSender(selfA.Name, "").
		WithRecipient(selfB.Name, "", selfB.Enc.PublicKey).
		WithBody("hello", "text").
		WithEncryption(envelope.EncryptionX25519ChaCha20Poly1305)
	msg, err := b.Build()
	require.NoError(t, err)

	orcB.HandleInbound(context.Background(), "", *msg)

	hashes, err := stB.LastMessagesFromInbox(extractInbox(t, selfA, selfB), 1, 0)
	require.NoError(t, err)
	require.Len(t, hashes, 1)

	got, err := stB.GetMessage(hashes[0])
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Body.Data.RawContent)
	assert.Equal(t, selfA.Name, got.ExternalMetadata.Sender)
}

func extractInbox(t *testing.T, a, b Identity) string {
	t.Helper()
	built, err := envelope.NewBuilder(a.Signing, a.Enc).
		WithSender(a.Name, "").
		WithRecipient(b.Name, "", b.Enc.PublicKey).
		WithBody("x", "text").
		WithEncryption(envelope.EncryptionX25519ChaCha20Poly1305).
		Build()
	require.NoError(t, err)
	require.NoError(t, envelope.DecryptOuter(built, a.Enc, b.Enc.PublicKey))
	return built.Body.InternalMetadata.Inbox
}

// TestTamperDetectionScenario matches scenario 6: flipping a byte in
// body.content invalidates the outer signature and increments the
// tampered counter instead of persisting the message.
func TestTamperDetectionScenario(t *testing.T) {
	orc, self, st := newTestNode(t, "@@alice.shinkai")

	b := envelope.NewBuilder(self.Signing, self.Enc).
		WithSender(self.Name, "").
		WithRecipient(self.Name, "", self.Enc.PublicKey).
		WithBody("ping", "text").
		WithEncryption(envelope.EncryptionX25519ChaCha20Poly1305)
	msg, err := b.Build()
	require.NoError(t, err)

	tampered := *msg
	tampered.Body.Content = tampered.Body.Content + "00"

	orc.HandleInbound(context.Background(), "", tampered)

	assert.Equal(t, 1, orc.TamperedCount())

	hashes, err := st.LastMessagesFromInbox(msg.Body.InternalMetadata.Inbox, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, hashes)
}

// TestBearerAuthRejectsUnknownToken exercises the command-surface
// authorization gate.
func TestBearerAuthRejectsUnknownToken(t *testing.T) {
	orc, _, _ := newTestNode(t, "@@alice.shinkai")
	_, err := orc.GetOffering("not-a-real-token", "some-tool")
	assert.ErrorIs(t, err, errUnauthorized)
}

// TestRegistrationCodeGrantsBearerToken exercises the full
// create-code/redeem-code/authorized-command path.
func TestRegistrationCodeGrantsBearerToken(t *testing.T) {
	orc, _, _ := newTestNode(t, "@@alice.shinkai")

	adminBearer := "admin-token"
	require.NoError(t, orc.store.Set(store.CFNodeAndUsers, []byte(bearerPrefix+adminBearer),
		mustJSON(t, bearerRecord{NodeName: "@@alice.shinkai", Grade: 2})))

	require.NoError(t, orc.CreateRegistrationCode(adminBearer, "code-1", 1))
	require.NoError(t, orc.UseRegistrationCode("code-1", "@@bob.shinkai", "bob-token"))

	err := orc.UseRegistrationCode("code-1", "@@carol.shinkai", "carol-token")
	assert.Error(t, err)

	require.NoError(t, orc.SetOffering("bob-token", Offering{ToolKeyName: "echo", Price: 1, UsageType: "per_call"}))
	off, err := orc.GetOffering("bob-token", "echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", off.ToolKeyName)
}

// TestSettleOffering exercises the direct (non-overlay) settlement path
// for an offering advertising an endpoint.
func TestSettleOffering(t *testing.T) {
	orc, _, _ := newTestNode(t, "@@alice.shinkai")
	require.NoError(t, orc.store.Set(store.CFNodeAndUsers, []byte(bearerPrefix+"bob-token"),
		mustJSON(t, bearerRecord{NodeName: "@@bob.shinkai", Grade: 1})))

	srv := httptest.NewServer(direct.NewServer(func(req direct.Request) direct.Response {
		return direct.Response{Success: true, Data: append([]byte("settled:"), req.Payload...)}
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	require.NoError(t, orc.SetOffering("bob-token", Offering{ToolKeyName: "echo", Endpoint: wsURL}))

	resp, err := orc.SettleOffering(context.Background(), "bob-token", "echo", []byte("payload"))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, []byte("settled:payload"), resp.Data)
}

// TestSettleOfferingNoEndpoint rejects settlement for overlay-only
// offerings.
func TestSettleOfferingNoEndpoint(t *testing.T) {
	orc, _, _ := newTestNode(t, "@@alice.shinkai")
	require.NoError(t, orc.store.Set(store.CFNodeAndUsers, []byte(bearerPrefix+"bob-token"),
		mustJSON(t, bearerRecord{NodeName: "@@bob.shinkai", Grade: 1})))
	require.NoError(t, orc.SetOffering("bob-token", Offering{ToolKeyName: "echo"}))

	_, err := orc.SettleOffering(context.Background(), "bob-token", "echo", nil)
	assert.Error(t, err)
}

// TestInboundRegistrationCachesIdentity exercises the schemaRegistration
// dispatch branch: a plaintext envelope announcing fresh keys updates the
// identity manager's external cache.
func TestInboundRegistrationCachesIdentity(t *testing.T) {
	orc, self, _ := newTestNode(t, "@@alice.shinkai")

	sigB, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)
	encB, err := crypto.GenerateEncryptionKeyPair()
	require.NoError(t, err)

	payload, err := json.Marshal(struct {
		SigPK string `json:"sig_pk"`
		EncPK string `json:"enc_pk"`
	}{
		SigPK: crypto.EncodeKeyHex(sigB.PublicKey),
		EncPK: crypto.EncodeKeyHex(encB.PublicKey),
	})
	require.NoError(t, err)

	orc.ids.CacheExternal("@@bob.shinkai", identity.ExternalIdentity{
		NodeSigPK:     sigB.PublicKey,
		NodeEncPK:     encB.PublicKey,
		LastRefreshed: time.Now(),
	})

	b := envelope.NewBuilder(sigB, encB).
		WithSender("@@bob.shinkai", "").
		WithRecipient(self.Name, "", self.Enc.PublicKey).
		WithBody(string(payload), schemaRegistration).
		WithEncryption(envelope.EncryptionNone)
	msg, err := b.Build()
	require.NoError(t, err)

	orc.HandleInbound(context.Background(), "", *msg)

	cached, err := orc.ids.Resolve(context.Background(), "@@bob.shinkai", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, sigB.PublicKey, cached.NodeSigPK)
	assert.Equal(t, encB.PublicKey, cached.NodeEncPK)
}

// TestApplySubscriptionSubscribeAndUnsubscribe exercises the subscription
// command surface and the inbound schemaSubscription dispatch branch.
func TestApplySubscriptionSubscribeAndUnsubscribe(t *testing.T) {
	orc, _, _ := newTestNode(t, "@@alice.shinkai")
	require.NoError(t, orc.store.Set(store.CFNodeAndUsers, []byte(bearerPrefix+"admin-token"),
		mustJSON(t, bearerRecord{NodeName: "@@alice.shinkai", Grade: 2})))

	require.NoError(t, orc.applySubscription("@@bob.shinkai", subscriptionControl{Action: "subscribe", Topic: "news"}))
	subs, err := orc.Subscribers("admin-token", "news")
	require.NoError(t, err)
	assert.Equal(t, []string{"@@bob.shinkai"}, subs)

	require.NoError(t, orc.applySubscription("@@bob.shinkai", subscriptionControl{Action: "unsubscribe", Topic: "news"}))
	subs, err = orc.Subscribers("admin-token", "news")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

// TestJWTBearerAuthorizesAlongsideOpaqueTokens exercises the JWT bearer
// path (IssueJWTBearer/authorizeJWT) alongside the store-backed opaque
// bearer path, confirming both validate against the same command
// surface once a JWT secret is configured.
func TestJWTBearerAuthorizesAlongsideOpaqueTokens(t *testing.T) {
	orc, _, _ := newTestNode(t, "@@alice.shinkai")
	adminBearer := "admin-token"
	require.NoError(t, orc.store.Set(store.CFNodeAndUsers, []byte(bearerPrefix+adminBearer),
		mustJSON(t, bearerRecord{NodeName: "@@alice.shinkai", Grade: 2})))

	secret := []byte("test-shared-secret")
	orc.SetJWTSecret(secret)

	tok, err := orc.IssueJWTBearer(adminBearer, "@@bob.shinkai", 1, time.Hour, secret)
	require.NoError(t, err)

	require.NoError(t, orc.SetOffering(tok, Offering{ToolKeyName: "echo", Price: 1, UsageType: "per_call"}))
	off, err := orc.GetOffering(tok, "echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", off.ToolKeyName)
}

// TestJWTBearerRejectsWrongSecret confirms a token signed with a
// different secret is rejected rather than silently trusted.
func TestJWTBearerRejectsWrongSecret(t *testing.T) {
	orc, _, _ := newTestNode(t, "@@alice.shinkai")
	adminBearer := "admin-token"
	require.NoError(t, orc.store.Set(store.CFNodeAndUsers, []byte(bearerPrefix+adminBearer),
		mustJSON(t, bearerRecord{NodeName: "@@alice.shinkai", Grade: 2})))

	orc.SetJWTSecret([]byte("real-secret"))
	tok, err := orc.IssueJWTBearer(adminBearer, "@@bob.shinkai", 1, time.Hour, []byte("wrong-secret"))
	require.NoError(t, err)

	_, err = orc.GetOffering(tok, "echo")
	assert.ErrorIs(t, err, errUnauthorized)
}

// TestCreateJobRunInference exercises the LLM provider registry and the
// job-to-provider linkage CreateJob establishes: a job created against a
// registered provider resolves back to it and RunInference reaches the
// provider's direct endpoint.
func TestCreateJobRunInference(t *testing.T) {
	orc, _, _ := newTestNode(t, "@@alice.shinkai")
	adminBearer := "admin-token"
	require.NoError(t, orc.store.Set(store.CFNodeAndUsers, []byte(bearerPrefix+adminBearer),
		mustJSON(t, bearerRecord{NodeName: "@@alice.shinkai", Grade: 2})))

	srv := httptest.NewServer(direct.NewServer(func(req direct.Request) direct.Response {
		return direct.Response{Success: true, Data: append([]byte("completion:"), req.Payload...)}
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	require.NoError(t, orc.SetLLMProvider(adminBearer, LLMProvider{ID: "gpt-test", Endpoint: wsURL, Model: "test-model"}))

	jobInbox, err := orc.CreateJob(context.Background(), adminBearer, "job-1", "gpt-test", "hello")
	require.NoError(t, err)
	require.NotEmpty(t, jobInbox)

	parsed, err := name.Parse(jobInbox)
	require.NoError(t, err)
	providerID, err := orc.JobProvider(parsed.ShortID())
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", providerID)

	resp, err := orc.RunInference(context.Background(), providerID, []byte("hello"))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, []byte("completion:hello"), resp.Data)
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
