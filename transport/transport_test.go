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

package transport

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/shinkainet/node/crypto"
	"github.com/shinkainet/node/envelope"
)

func TestIdentityFromSeedDeterministic(t *testing.T) {
	var seed [32]byte
	copy(seed[:], []byte("fixed-node-identity-seed-012345"))

	k1, err := IdentityFromSeed(seed)
	require.NoError(t, err)
	k2, err := IdentityFromSeed(seed)
	require.NoError(t, err)

	b1, err := k1.Raw()
	require.NoError(t, err)
	b2, err := k2.Raw()
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func newTestTransport(t *testing.T, handler MessageHandler) *Transport {
	t.Helper()
	priv, err := RandomIdentity()
	require.NoError(t, err)

	tr, err := New(context.Background(), Config{
		PrivKey:    priv,
		ListenPort: 0,
		Handler:    handler,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestSendToPeerDeliversEnvelope(t *testing.T) {
	var mu sync.Mutex
	var received []envelope.Message

	sender := newTestTransport(t, nil)
	target := newTestTransport(t, func(from peer.ID, msg envelope.Message) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, msg)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	targetInfo := target.host.Peerstore().PeerInfo(target.host.ID())
	targetInfo.Addrs = target.host.Addrs()
	require.NoError(t, sender.host.Connect(ctx, targetInfo))

	sig, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)
	enc, err := crypto.GenerateEncryptionKeyPair()
	require.NoError(t, err)
	msg, err := envelope.NewBuilder(sig, enc).
		WithSender("@@alice.shinkai", "main").
		WithRecipient("@@bob.shinkai", "main", enc.PublicKey).
		WithBody("ping", "text").
		Build()
	require.NoError(t, err)

	require.NoError(t, sender.SendToPeer(ctx, target.host.ID(), *msg))

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if assert.Len(t, received, 1) {
		assert.Equal(t, "ping", received[0].Body.Data.RawContent)
	}
}

// TestDiscoveryViaRelayWithin30Seconds matches spec end-to-end scenario 5:
// two nodes that only know a shared relay's address discover each other's
// peer ID (via DHT routing-table merge on identify) within 30 seconds,
// without either dialing the other directly.
func TestDiscoveryViaRelayWithin30Seconds(t *testing.T) {
	relay := newTestTransport(t, nil)
	relayInfo := relay.host.Peerstore().PeerInfo(relay.host.ID())
	relayInfo.Addrs = relay.host.Addrs()
	relayAddr := peerAddrString(t, relayInfo)

	priv1, err := RandomIdentity()
	require.NoError(t, err)
	n1, err := New(context.Background(), Config{PrivKey: priv1, ListenPort: 0, RelayAddress: relayAddr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = n1.Close() })

	priv2, err := RandomIdentity()
	require.NoError(t, err)
	n2, err := New(context.Background(), Config{PrivKey: priv2, ListenPort: 0, RelayAddress: relayAddr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = n2.Close() })

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		if n1.dht.RoutingTable().Find(n2.host.ID()) != "" {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("node1 never discovered node2 via relay %s within 30s", relayAddr)
}

func peerAddrString(t *testing.T, info peer.AddrInfo) string {
	t.Helper()
	require.NotEmpty(t, info.Addrs)
	return fmt.Sprintf("%s/p2p/%s", info.Addrs[0].String(), info.ID.String())
}

func TestIsDiscoveryFrameRecognizesBothTypes(t *testing.T) {
	assert.True(t, isDiscoveryFrame([]byte(`{"type":"discovery","peer_id":"x"}`)))
	assert.True(t, isDiscoveryFrame([]byte(`{"type":"peer_joined","peer_id":"x"}`)))
	assert.False(t, isDiscoveryFrame([]byte(`{"body":{}}`)))
}
