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

package workqueue

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/shinkainet/node/internal/metrics"
)

// Processor handles a single job. Its error is logged; the job is
// removed from the queue regardless of outcome. Callers that want retry
// semantics must re-enqueue under a different identity themselves.
type Processor func(ctx context.Context, job Job) error

// Supervisor drains a fixed set of named queues with bounded
// parallelism N, interleaving fairly across queues and deduplicating by
// job identity so no two workers process the same identity at once.
type Supervisor struct {
	queues    []*Queue
	n         int64
	processor Processor
	sem       *semaphore.Weighted

	inFlightMu sync.Mutex
	inFlight   map[string]bool
}

// NewSupervisor constructs a supervisor over queues with bounded
// parallelism n (= thread_number).
func NewSupervisor(queues []*Queue, n int, processor Processor) *Supervisor {
	return &Supervisor{
		queues:    queues,
		n:         int64(n),
		processor: processor,
		sem:       semaphore.NewWeighted(int64(n)),
		inFlight:  make(map[string]bool),
	}
}

// getAllElementsInterleave round-robins across queues, returning up to
// limit entries whose identity is not currently in-flight. Order is
// interleaved (one from each queue in turn) rather than queue-by-queue,
// so no single busy queue starves the others.
func (s *Supervisor) getAllElementsInterleave(limit int) ([]QueueEntry, error) {
	perQueue := make([][]QueueEntry, len(s.queues))
	for i, q := range s.queues {
		entries, err := q.Peek()
		if err != nil {
			return nil, err
		}
		perQueue[i] = entries
	}

	var totalPending int
	for _, entries := range perQueue {
		totalPending += len(entries)
	}
	metrics.QueueDepth.Set(float64(totalPending))

	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()

	var out []QueueEntry
	idx := make([]int, len(perQueue))
	for len(out) < limit {
		progressed := false
		for qi := range perQueue {
			if idx[qi] >= len(perQueue[qi]) {
				continue
			}
			entry := perQueue[qi][idx[qi]]
			idx[qi]++
			progressed = true
			if s.inFlight[entry.Job.Identity] {
				metrics.JobsDeduplicated.Inc()
				continue
			}
			out = append(out, entry)
			if len(out) >= limit {
				break
			}
		}
		if !progressed {
			break
		}
	}
	return out, nil
}

// Run drives the supervisor loop until ctx is cancelled. Each iteration
// pulls up to N eligible jobs, processes them concurrently bounded by
// the semaphore, then loops immediately if exactly N were scheduled or
// otherwise waits for the next enqueue notification.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Take the wake channels before scanning, so an enqueue that
		// lands while this batch is processed still wakes the next wait.
		wake := make([]<-chan struct{}, len(s.queues))
		for i, q := range s.queues {
			wake[i] = q.waitCh()
		}

		batch, err := s.getAllElementsInterleave(int(s.n))
		if err != nil {
			log.Printf("workqueue: interleave scan failed: %v", err)
			return
		}
		if len(batch) == 0 {
			if !s.awaitNotification(ctx, wake) {
				return
			}
			continue
		}

		s.inFlightMu.Lock()
		for _, e := range batch {
			s.inFlight[e.Job.Identity] = true
		}
		s.inFlightMu.Unlock()

		var wg sync.WaitGroup
		queueByEntry := s.queueIndexLookup()
		for _, entry := range batch {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				s.releaseInFlight(entry.Job.Identity)
				continue
			}
			wg.Add(1)
			go func(e QueueEntry) {
				defer wg.Done()
				defer s.sem.Release(1)
				defer s.releaseInFlight(e.Job.Identity)

				start := time.Now()
				err := s.processor(ctx, e.Job)
				metrics.JobProcessingDuration.Observe(time.Since(start).Seconds())
				if err != nil {
					metrics.JobsProcessed.WithLabelValues("failure").Inc()
					log.Printf("workqueue: processor failed for %q: %v", e.Job.Identity, err)
				} else {
					metrics.JobsProcessed.WithLabelValues("success").Inc()
				}
				if q := queueByEntry(e); q != nil {
					if err := q.Dequeue(e.Key); err != nil {
						log.Printf("workqueue: dequeue failed for %q: %v", e.Job.Identity, err)
					}
				}
			}(entry)
		}
		wg.Wait()

		if len(batch) < int(s.n) {
			if !s.awaitNotification(ctx, wake) {
				return
			}
		}
	}
}

func (s *Supervisor) releaseInFlight(identity string) {
	s.inFlightMu.Lock()
	delete(s.inFlight, identity)
	s.inFlightMu.Unlock()
}

// queueIndexLookup resolves which queue an entry came from by
// re-checking membership; entries carry no back-reference so this scans
// the (small, already in-memory) queue list.
func (s *Supervisor) queueIndexLookup() func(QueueEntry) *Queue {
	return func(e QueueEntry) *Queue {
		for _, q := range s.queues {
			if hasPrefix(e.Key, q.prefix()) {
				return q
			}
		}
		return nil
	}
}

func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}

// awaitNotification blocks until any of chans (one waitCh per queue)
// fires or ctx is cancelled. Each channel gets its own forwarding
// goroutine so all queues are watched concurrently; a single select over
// chans[0] would only ever wake on that one queue's enqueues.
func (s *Supervisor) awaitNotification(ctx context.Context, chans []<-chan struct{}) bool {
	woken := make(chan struct{})
	var once sync.Once
	fire := func() { once.Do(func() { close(woken) }) }

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for _, ch := range chans {
		wg.Add(1)
		go func(ch <-chan struct{}) {
			defer wg.Done()
			select {
			case <-ch:
				fire()
			case <-ctx.Done():
				fire()
			case <-stop:
			}
		}(ch)
	}
	defer func() {
		close(stop)
		wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return false
	case <-woken:
		return ctx.Err() == nil
	}
}
