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

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	multiaddr "github.com/multiformats/go-multiaddr"

	"github.com/shinkainet/node/envelope"
)

// readLoop drains one subscription: discovery frames update routing
// only, anything else that decodes as an envelope is forwarded to the
// handler. Gossip is unordered, at-most-once best-effort delivery, so
// the handler must already be idempotent by hash.
func (t *Transport) readLoop(ctx context.Context, sub *pubsub.Subscription) {
	for {
		m, err := sub.Next(ctx)
		if err != nil {
			return // context cancelled or subscription closed
		}
		if m.ReceivedFrom == t.host.ID() {
			continue
		}
		if isDiscoveryFrame(m.Data) {
			continue
		}
		var msg envelope.Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			continue
		}
		if t.handler != nil {
			t.handler(m.ReceivedFrom, msg)
		}
	}
}

func isDiscoveryFrame(data []byte) bool {
	var frame discoveryFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return false
	}
	return frame.Type == "discovery" || frame.Type == "peer_joined"
}

// parseRelayAddr parses a multiaddr string into connectable peer info.
func parseRelayAddr(addr string) (*peer.AddrInfo, error) {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return nil, err
	}
	return peer.AddrInfoFromP2pAddr(ma)
}
