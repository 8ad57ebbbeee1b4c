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
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/shinkainet/node/envelope"
	"github.com/shinkainet/node/store"
)

// retryKey namespaces MessagesToRetry entries by destination peer so a
// retry task can resume a scan per peer.
func retryKey(p peer.ID, hash string) []byte {
	return []byte(p.String() + indexSep + hash)
}

const indexSep = ":::"

// Send implements the outbound pipeline: a retry record is written with
// attempt=0 before handing the envelope to the transport, and removed once
// the transport send acknowledges.
func (o *Orchestrator) Send(ctx context.Context, msg envelope.Message, p peer.ID) error {
	hash, err := envelope.Hash(msg)
	if err != nil {
		return fmt.Errorf("orchestrator: hash outbound envelope: %w", err)
	}

	record := retryRecord{Envelope: msg, Attempt: 0}
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("orchestrator: encode retry record: %w", err)
	}
	key := retryKey(p, hash)
	if err := o.store.Set(store.CFMessagesToRetry, key, encoded); err != nil {
		return fmt.Errorf("orchestrator: write retry record: %w", err)
	}

	if err := o.xport.SendToPeer(ctx, p, msg); err != nil {
		// Left in MessagesToRetry for a later retry-task scan.
		return fmt.Errorf("orchestrator: transport send: %w", err)
	}

	if err := o.store.Delete(store.CFMessagesToRetry, key); err != nil {
		return fmt.Errorf("orchestrator: clear retry record: %w", err)
	}
	return nil
}

// retryRecord is the persisted form of an in-flight outbound send.
type retryRecord struct {
	Envelope envelope.Message `json:"envelope"`
	Attempt  int              `json:"attempt"`
}

// PendingRetries returns every outbound envelope still awaiting
// acknowledgement, for a retry task to resend with exponential backoff.
func (o *Orchestrator) PendingRetries() ([]retryRecord, error) {
	var out []retryRecord
	err := o.store.ScanPrefix(store.CFMessagesToRetry, nil, func(e store.Entry) (bool, error) {
		var rec retryRecord
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			return true, nil
		}
		out = append(out, rec)
		return true, nil
	})
	return out, err
}
