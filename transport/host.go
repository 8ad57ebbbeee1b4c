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
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/protocol/ping"

	"github.com/shinkainet/node/envelope"
	"github.com/shinkainet/node/internal/metrics"
)

// ProtocolID is the identify/DHT protocol family every node advertises.
const ProtocolID = "/shinkai/1.0.0"

// MainTopic is subscribed unconditionally by every node.
const MainTopic = "shinkai-network"

const directTopicPrefix = "shinkai-direct-"

// discoveryInterval is how often the discovery loop re-bootstraps
// Kademlia and publishes a heartbeat.
const discoveryInterval = 10 * time.Second

// Gossip mesh parameters, per spec.
const (
	meshLow      = 1
	meshD        = 2
	meshHigh     = 4
	fanoutTTL    = 30 * time.Second
	gossipFactor = 2
)

// MessageHandler receives a decoded envelope and the peer it arrived
// from. Non-envelope gossip payloads (discovery frames) never reach it.
type MessageHandler func(from peer.ID, msg envelope.Message)

// Config configures a Transport.
type Config struct {
	PrivKey      libp2pcrypto.PrivKey
	ListenPort   int // 0 = random
	RelayAddress string
	Handler      MessageHandler
}

// Transport owns the libp2p host and its composed behaviours: gossip
// pub/sub, identify, Kademlia, ping, and DCUtR hole-punching.
type Transport struct {
	host    host.Host
	dht     *dht.IpfsDHT
	pubsub  *pubsub.PubSub
	ping    *ping.PingService
	handler MessageHandler

	mainTopic *pubsub.Topic
	mainSub   *pubsub.Subscription

	mu           sync.Mutex
	directTopics map[peer.ID]*pubsub.Topic
	directSubs   map[peer.ID]*pubsub.Subscription

	cancel context.CancelFunc
}

// New constructs and starts a Transport: it opens the libp2p swarm,
// joins the main gossip topic, and launches the discovery loop.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	listenAddr := fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", cfg.ListenPort)

	h, err := libp2p.New(
		libp2p.Identity(cfg.PrivKey),
		libp2p.ListenAddrStrings(listenAddr),
		libp2p.EnableHolePunching(),
		libp2p.UserAgent(ProtocolID),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: create host: %w", err)
	}

	kad, err := dht.New(ctx, h,
		dht.Mode(dht.ModeServer),
		dht.ProtocolPrefix("/shinkai"),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: create dht: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h,
		pubsub.WithMessageSigning(true),
		pubsub.WithStrictSignatureVerification(false),
		pubsub.WithGossipSubParams(gossipParams()),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: create pubsub: %w", err)
	}

	pingSvc := ping.NewPingService(h)

	tr := &Transport{
		host:         h,
		dht:          kad,
		pubsub:       ps,
		ping:         pingSvc,
		handler:      cfg.Handler,
		directTopics: make(map[peer.ID]*pubsub.Topic),
		directSubs:   make(map[peer.ID]*pubsub.Subscription),
	}

	runCtx, cancel := context.WithCancel(ctx)
	tr.cancel = cancel

	if err := tr.subscribeMain(runCtx); err != nil {
		cancel()
		return nil, err
	}

	if cfg.RelayAddress != "" {
		if err := tr.dialRelay(runCtx, cfg.RelayAddress); err != nil {
			cancel()
			return nil, err
		}
	}

	tr.watchConnections(runCtx)
	h.Network().Notify(tr.sessionNotifiee())
	go tr.discoveryLoop(runCtx)

	return tr, nil
}

// gossipParams returns the gossipsub tuning the spec requires.
func gossipParams() pubsub.GossipSubParams {
	p := pubsub.DefaultGossipSubParams()
	p.Dlo = meshLow
	p.D = meshD
	p.Dhi = meshHigh
	p.FanoutTTL = fanoutTTL
	p.GossipFactor = gossipFactor
	p.HeartbeatInterval = time.Second
	return p
}

// Host returns the underlying libp2p host.
func (t *Transport) Host() host.Host { return t.host }

// Close tears down the swarm and background loops.
func (t *Transport) Close() error {
	t.cancel()
	if t.mainSub != nil {
		t.mainSub.Cancel()
	}
	if err := t.dht.Close(); err != nil {
		return err
	}
	return t.host.Close()
}

func (t *Transport) subscribeMain(ctx context.Context) error {
	topic, err := t.pubsub.Join(MainTopic)
	if err != nil {
		return fmt.Errorf("transport: join main topic: %w", err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return fmt.Errorf("transport: subscribe main topic: %w", err)
	}
	t.mainTopic = topic
	t.mainSub = sub
	go t.readLoop(ctx, sub)
	return nil
}

func (t *Transport) dialRelay(ctx context.Context, addr string) error {
	info, err := parseRelayAddr(addr)
	if err != nil {
		return err
	}
	return t.host.Connect(ctx, *info)
}

// watchConnections publishes a peer_joined heartbeat and merges the
// identified peer's addresses into Kademlia on every new connection.
func (t *Transport) watchConnections(ctx context.Context) {
	sub, err := t.host.EventBus().Subscribe(new(event.EvtPeerIdentificationCompleted))
	if err != nil {
		return
	}
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-sub.Out():
				if !ok {
					return
				}
				e := evt.(event.EvtPeerIdentificationCompleted)
				t.dht.RoutingTable().TryAddPeer(e.Peer, false, false)
				metrics.HandshakesCompleted.WithLabelValues("success").Inc()
				t.publishDiscoveryFrame(ctx, discoveryFrame{Type: "peer_joined", PeerID: t.host.ID().String()})
			}
		}
	}()
}

// sessionNotifiee tracks each libp2p connection as a session: a new
// swarm connection counts as both a handshake attempt and a created
// session, and its teardown closes the session. Identify completion is
// counted separately, in watchConnections.
func (t *Transport) sessionNotifiee() network.Notifiee {
	return &network.NotifyBundle{
		ConnectedF: func(_ network.Network, conn network.Conn) {
			metrics.HandshakesInitiated.WithLabelValues("server").Inc()
			metrics.SessionsCreated.WithLabelValues("success").Inc()
			metrics.SessionsActive.Inc()
		},
		DisconnectedF: func(_ network.Network, conn network.Conn) {
			metrics.SessionsActive.Dec()
			metrics.SessionsClosed.Inc()
		},
	}
}

func (t *Transport) discoveryLoop(ctx context.Context) {
	ticker := time.NewTicker(discoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = t.dht.Bootstrap(ctx)
			t.publishDiscoveryFrame(ctx, discoveryFrame{Type: "discovery", PeerID: t.host.ID().String()})
		}
	}
}

type discoveryFrame struct {
	Type   string `json:"type"`
	PeerID string `json:"peer_id"`
}

func (t *Transport) publishDiscoveryFrame(ctx context.Context, f discoveryFrame) {
	raw, err := json.Marshal(f)
	if err != nil {
		return
	}
	_ = t.mainTopic.Publish(ctx, raw)
}

// Ping pings peer p, returning round-trip latency.
func (t *Transport) Ping(ctx context.Context, p peer.ID) (time.Duration, error) {
	result := <-t.ping.Ping(ctx, p)
	return result.RTT, result.Error
}
