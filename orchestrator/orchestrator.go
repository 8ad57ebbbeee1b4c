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

// Package orchestrator owns the store, identity manager, transport command
// sender, and work queue, and runs the inbound/outbound message pipelines
// that tie them together. It generalizes the teacher's Core type (which
// owns a crypto manager, a DID manager, and a verification service behind
// thin pass-through methods) to this node's subsystems.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/shinkainet/node/crypto"
	"github.com/shinkainet/node/envelope"
	"github.com/shinkainet/node/identity"
	"github.com/shinkainet/node/identity/name"
	"github.com/shinkainet/node/internal/blockingpool"
	"github.com/shinkainet/node/pkg/storage"
	"github.com/shinkainet/node/store"
	"github.com/shinkainet/node/transport/direct"
	"github.com/shinkainet/node/workqueue"
)

// cryptoPoolSize bounds how many outer/inner envelope verifications run
// concurrently, so a burst of inbound traffic can't pile up unbounded
// signature-verification goroutines.
const cryptoPoolSize = 8

// replayWindow bounds how long a message hash is remembered by the
// optional replay guard before it is allowed to recur.
const replayWindow = 24 * time.Hour

// Sender is the subset of *transport.Transport the orchestrator needs, so
// tests can substitute a fake command sender without a live swarm.
type Sender interface {
	SendToPeer(ctx context.Context, p peer.ID, msg envelope.Message) error
	Broadcast(ctx context.Context, topic string, msg envelope.Message) error
	Ping(ctx context.Context, p peer.ID) (time.Duration, error)
}

// Identity is this node's own keypair and name, used to sign outbound
// envelopes and to decide whether an inbound envelope is destined to us.
type Identity struct {
	Name    string
	Signing crypto.SigningKeyPair
	Enc     crypto.EncryptionKeyPair
}

// Orchestrator is the node's central coordinator.
type Orchestrator struct {
	self         Identity
	store        *store.Store
	ids          *identity.Manager
	xport        Sender
	queue        *JobDispatcher
	replay       storage.NonceStore
	settleClient *direct.Client
	crypto       *blockingpool.Pool
	jwtSecret    []byte

	mu       sync.Mutex
	tampered int // count of inbound envelopes dropped for failed outer verification
}

// New constructs an Orchestrator over already-opened subsystems.
func New(self Identity, st *store.Store, ids *identity.Manager, xport Sender, dispatcher *JobDispatcher) *Orchestrator {
	return &Orchestrator{
		self:         self,
		store:        st,
		ids:          ids,
		xport:        xport,
		queue:        dispatcher,
		settleClient: direct.NewClient(),
		crypto:       blockingpool.New(cryptoPoolSize),
	}
}

// SetReplayGuard attaches a durable nonce store (e.g. the Postgres-backed
// one in pkg/storage/postgres) that HandleInbound consults to reject
// envelopes whose message hash has already been seen. Optional: with a
// nil or unset guard, inbound envelopes are not checked for replay.
func (o *Orchestrator) SetReplayGuard(ns storage.NonceStore) {
	o.replay = ns
}

// SetJWTSecret enables validation of JWT-formatted bearer tokens (see
// IssueJWTBearer) against secret, alongside the existing opaque,
// store-backed bearer tokens. A nil secret (the default) disables JWT
// bearer support entirely.
func (o *Orchestrator) SetJWTSecret(secret []byte) {
	o.jwtSecret = secret
}

// JobDispatcher routes job-schema inbound messages onto a named work
// queue, keyed by the job inbox's short id.
type JobDispatcher struct {
	mu       sync.Mutex
	queues   map[string]*workqueue.Queue
	st       *store.Store
	newQueue chan *workqueue.Queue
}

// NewJobDispatcher constructs a dispatcher backed by st, lazily creating a
// queue per job inbox on first dispatch.
func NewJobDispatcher(st *store.Store) *JobDispatcher {
	return &JobDispatcher{
		queues:   make(map[string]*workqueue.Queue),
		st:       st,
		newQueue: make(chan *workqueue.Queue, 16),
	}
}

// NewQueueNotify returns a channel that receives each job queue the
// instant it is lazily created, so a supervisor launcher can pick it up
// without polling Queues.
func (d *JobDispatcher) NewQueueNotify() <-chan *workqueue.Queue {
	return d.newQueue
}

func (d *JobDispatcher) queueFor(inboxShortID string) *workqueue.Queue {
	d.mu.Lock()
	q, ok := d.queues[inboxShortID]
	if ok {
		d.mu.Unlock()
		return q
	}
	q = workqueue.NewQueue(d.st, "job::"+inboxShortID)
	d.queues[inboxShortID] = q
	d.mu.Unlock()

	select {
	case d.newQueue <- q:
	default:
	}
	return q
}

// Dispatch enqueues a job message keyed by the job inbox's short id so
// duplicate submissions against the same job serialize.
func (d *JobDispatcher) Dispatch(inboxShortID string, payload []byte) error {
	return d.queueFor(inboxShortID).Enqueue(workqueue.Job{Identity: inboxShortID, Payload: payload})
}

// Queues exposes the live queue set so a supervisor can be built over it.
func (d *JobDispatcher) Queues() []*workqueue.Queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*workqueue.Queue, 0, len(d.queues))
	for _, q := range d.queues {
		out = append(out, q)
	}
	return out
}

// TamperedCount returns how many inbound envelopes were dropped for
// failing outer-signature verification, per spec scenario 6's counter.
func (o *Orchestrator) TamperedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tampered
}

func (o *Orchestrator) incrementTampered() {
	o.mu.Lock()
	o.tampered++
	o.mu.Unlock()
}

// destinedToUs reports whether an envelope's external recipient is this
// node's own name, or a device/agent/profile nested under it.
func (o *Orchestrator) destinedToUs(msg envelope.Message) bool {
	recipient := msg.ExternalMetadata.Recipient
	return name.Equal(recipient, o.self.Name) ||
		name.IsSubNameOf(recipient, o.self.Name) ||
		name.IsSubNameOf(o.self.Name, recipient)
}

var errUnauthorized = fmt.Errorf("orchestrator: invalid or missing bearer token")
