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

package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shinkainet/node/internal/logger"
	"github.com/shinkainet/node/orchestrator"
	"github.com/shinkainet/node/store"
	"github.com/shinkainet/node/transport"
	"github.com/shinkainet/node/workqueue"
)

// shutdownTimeout bounds how long the health server gets to drain
// in-flight requests on SIGTERM.
const shutdownTimeout = 5 * time.Second

// healthProbeKey is the sentinel store entry StoreHealthCheck round-trips.
var healthProbeKey = []byte("__health_probe__")

func parseLevel(s string) logger.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logger.DebugLevel
	case "warn", "warning":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}

// jobProcessor adapts the orchestrator's job-message handling into a
// workqueue.Processor. Queued payloads are the raw plaintext bodies of
// job_message-schema envelopes already persisted by HandleInbound; jobs
// created against a registered LLM provider (orchestrator.CreateJob's
// llmProviderID) are routed to it directly, jobs with none are merely
// acknowledged.
func jobProcessor(orch *orchestrator.Orchestrator) workqueue.Processor {
	return func(ctx context.Context, job workqueue.Job) error {
		providerID, err := orch.JobProvider(job.Identity)
		if err != nil {
			log.Printf("workqueue: job %q has no registered llm provider, skipping inference", job.Identity)
			return nil
		}
		resp, err := orch.RunInference(ctx, providerID, job.Payload)
		if err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("workqueue: job %q inference failed: %s", job.Identity, resp.Error)
		}
		log.Printf("workqueue: job %q completed via provider %q (%d bytes)", job.Identity, providerID, len(resp.Data))
		return nil
	}
}

func storePing(st *store.Store) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := st.Set(store.CFNodeAndUsers, healthProbeKey, []byte("ok")); err != nil {
			return err
		}
		_, err := st.Get(store.CFNodeAndUsers, healthProbeKey)
		return err
	}
}

func transportPing(t *transport.Transport) func(ctx context.Context) (int, error) {
	return func(ctx context.Context) (int, error) {
		return len(t.Host().Network().Peers()), nil
	}
}

func queueDepth(d *orchestrator.JobDispatcher) func() int {
	return func() int {
		total := 0
		for _, q := range d.Queues() {
			entries, err := q.Peek()
			if err != nil {
				continue
			}
			total += len(entries)
		}
		return total
	}
}
