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

// Package workqueue implements the bounded-concurrency job engine: named
// persisted FIFOs drained by a worker pool with in-flight deduplication
// and fair interleaving across queues.
package workqueue

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/shinkainet/node/store"
)

// Job is a single unit of queued work.
type Job struct {
	Identity string // dedup key, e.g. tool_key_name or invoice_id
	Payload  []byte
}

// Queue is a named, persisted FIFO over the AnyQueuesPrefixed CF. Each
// queue's keys are prefixed by its name so CF-level prefix extraction
// keeps per-queue scans bloom-filtered.
type Queue struct {
	name string
	st   *store.Store

	mu       sync.Mutex
	notifyCh chan struct{}
	seq      uint64
}

// NewQueue opens (without creating persistent state beyond what's
// already stored) a named queue backed by st.
func NewQueue(st *store.Store, name string) *Queue {
	return &Queue{name: name, st: st, notifyCh: make(chan struct{})}
}

func (q *Queue) prefix() []byte {
	return []byte(q.name + "::")
}

func (q *Queue) itemKey(seq uint64) []byte {
	key := make([]byte, len(q.prefix())+8)
	copy(key, q.prefix())
	binary.BigEndian.PutUint64(key[len(q.prefix()):], seq)
	return key
}

// Enqueue appends job to the tail of the queue and wakes any waiters.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	encoded, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := q.st.Set(store.CFAnyQueuesPrefixed, q.itemKey(q.seq), encoded); err != nil {
		return err
	}
	close(q.notifyCh)
	q.notifyCh = make(chan struct{})
	return nil
}

// waitCh returns the channel closed on the next Enqueue.
func (q *Queue) waitCh() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.notifyCh
}

// Peek returns the queue's items in FIFO order without removing them.
func (q *Queue) Peek() ([]QueueEntry, error) {
	var out []QueueEntry
	err := q.st.ScanPrefix(store.CFAnyQueuesPrefixed, q.prefix(), func(e store.Entry) (bool, error) {
		job, err := decodeJob(e.Value)
		if err != nil {
			return true, nil
		}
		out = append(out, QueueEntry{Key: append([]byte(nil), e.Key...), Job: job})
		return true, nil
	})
	return out, err
}

// QueueEntry pairs a persisted job with the raw key it's stored under.
type QueueEntry struct {
	Key []byte
	Job Job
}

// Dequeue removes the entry at key.
func (q *Queue) Dequeue(key []byte) error {
	return q.st.Delete(store.CFAnyQueuesPrefixed, key)
}

func encodeJob(job Job) ([]byte, error) {
	idLen := len(job.Identity)
	out := make([]byte, 4+idLen+len(job.Payload))
	binary.BigEndian.PutUint32(out[:4], uint32(idLen))
	copy(out[4:4+idLen], job.Identity)
	copy(out[4+idLen:], job.Payload)
	return out, nil
}

func decodeJob(raw []byte) (Job, error) {
	if len(raw) < 4 {
		return Job{}, fmt.Errorf("workqueue: malformed job record")
	}
	idLen := binary.BigEndian.Uint32(raw[:4])
	if int(4+idLen) > len(raw) {
		return Job{}, fmt.Errorf("workqueue: malformed job record")
	}
	identity := string(raw[4 : 4+idLen])
	payload := append([]byte(nil), raw[4+idLen:]...)
	return Job{Identity: identity, Payload: payload}, nil
}
