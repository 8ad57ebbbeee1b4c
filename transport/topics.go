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

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/shinkainet/node/envelope"
)

func directTopicName(p peer.ID) string {
	return directTopicPrefix + p.String()
}

// directTopic returns (creating and subscribing if needed) the direct
// channel for peer p.
func (t *Transport) directTopic(ctx context.Context, p peer.ID) (*pubsub.Topic, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if topic, ok := t.directTopics[p]; ok {
		return topic, nil
	}

	topic, err := t.pubsub.Join(directTopicName(p))
	if err != nil {
		return nil, fmt.Errorf("transport: join direct topic for %s: %w", p, err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("transport: subscribe direct topic for %s: %w", p, err)
	}
	t.directTopics[p] = topic
	t.directSubs[p] = sub
	go t.readLoop(ctx, sub)
	return topic, nil
}

// SendToPeer serializes msg to JSON and publishes it on the peer's
// direct topic, subscribing to it first if this is the first send.
func (t *Transport) SendToPeer(ctx context.Context, p peer.ID, msg envelope.Message) error {
	topic, err := t.directTopic(ctx, p)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return topic.Publish(ctx, raw)
}

// Broadcast publishes msg to both the main network topic and the named
// topic.
func (t *Transport) Broadcast(ctx context.Context, topicName string, msg envelope.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := t.mainTopic.Publish(ctx, raw); err != nil {
		return err
	}
	if topicName == MainTopic {
		return nil
	}
	topic, err := t.pubsub.Join(topicName)
	if err != nil {
		return fmt.Errorf("transport: join broadcast topic %q: %w", topicName, err)
	}
	return topic.Publish(ctx, raw)
}
