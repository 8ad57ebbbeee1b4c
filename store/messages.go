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

package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shinkainet/node/envelope"
)

const (
	forwardIndexPrefix = "fwd"
	reverseIndexPrefix = "rev"
	indexSep           = ":::"
)

// reverseTimeEpoch is the far-future sentinel subtracted from a
// timestamp's millisecond value to produce a descending-sortable key.
// Year 2420, matching the source's choice; any constant safely beyond
// plausible message timestamps would work.
var reverseTimeEpoch = time.Date(2420, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

func parseScheduledTime(msg envelope.Message) (time.Time, error) {
	return time.Parse(envelope.TimeLayout, msg.ExternalMetadata.ScheduledTime)
}

func forwardTimeKey(t time.Time) string {
	return t.UTC().Format(envelope.TimeLayout)
}

func reverseTimeKey(t time.Time) string {
	return fmt.Sprintf("%020d", reverseTimeEpoch-t.UTC().UnixMilli())
}

// InsertMessage writes the message under its content hash and both
// time-ordered secondary indices in a single atomic batch. Re-inserting
// the same message (same hash) is a no-op in effect: identical bytes
// overwrite identical bytes and the composite index keys already embed
// the hash, so no duplicate index entries appear.
func (s *Store) InsertMessage(msg envelope.Message) (string, error) {
	hash, err := envelope.Hash(msg)
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	scheduled, err := parseScheduledTime(msg)
	if err != nil {
		return "", err
	}

	fwdKey := []byte(forwardIndexPrefix + "_" + forwardTimeKey(scheduled) + indexSep + hash)
	revKey := []byte(reverseIndexPrefix + "_" + reverseTimeKey(scheduled) + indexSep + hash)

	batch := s.NewBatch()
	if err := batch.Set(CFAllMessages, []byte(hash), encoded); err != nil {
		return "", err
	}
	if err := batch.Set(CFAllMessages, fwdKey, []byte(hash)); err != nil {
		return "", err
	}
	if err := batch.Set(CFAllMessages, revKey, []byte(hash)); err != nil {
		return "", err
	}
	if err := batch.Commit(); err != nil {
		return "", err
	}
	return hash, nil
}

// GetMessage resolves a message by its content hash.
func (s *Store) GetMessage(hash string) (envelope.Message, error) {
	raw, err := s.Get(CFAllMessages, []byte(hash))
	if err != nil {
		return envelope.Message{}, err
	}
	var msg envelope.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return envelope.Message{}, err
	}
	return msg, nil
}

// LastNMessages resolves up to n messages from the reverse-time index,
// most recent first.
func (s *Store) LastNMessages(n int) ([]envelope.Message, error) {
	var out []envelope.Message
	err := s.ScanPrefix(CFAllMessages, []byte(reverseIndexPrefix+"_"), func(e Entry) (bool, error) {
		hash, err := hashFromIndexKey(e.Value)
		if err != nil {
			return true, nil // malformed index entries are skipped, not fatal
		}
		msg, err := s.GetMessage(hash)
		if err != nil {
			return true, nil
		}
		out = append(out, msg)
		return len(out) < n, nil
	})
	return out, err
}

func hashFromIndexKey(value []byte) (string, error) {
	if len(value) == 0 {
		return "", fmt.Errorf("store: empty index value")
	}
	return string(value), nil
}

// ScheduleMessage persists msg for future delivery, keyed by its
// scheduled time so DueScheduled can drain it in order.
func (s *Store) ScheduleMessage(msg envelope.Message) (string, error) {
	hash, err := envelope.Hash(msg)
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	scheduled, err := parseScheduledTime(msg)
	if err != nil {
		return "", err
	}
	key := []byte(forwardTimeKey(scheduled) + indexSep + hash)
	if err := s.Set(CFScheduledMessage, key, encoded); err != nil {
		return "", err
	}
	return string(key), nil
}

// ScheduledEntry pairs a scheduled message with the raw key it was
// stored under, so callers can remove it once processed.
type ScheduledEntry struct {
	Key     string
	Message envelope.Message
}

// DueScheduled forward-iterates ScheduledMessage, stopping at the first
// key whose time component exceeds upTo. Malformed keys are skipped
// rather than treated as fatal, since a single corrupt entry must not
// block the rest of the queue.
func (s *Store) DueScheduled(upTo time.Time) ([]ScheduledEntry, error) {
	var out []ScheduledEntry
	err := s.ScanPrefix(CFScheduledMessage, nil, func(e Entry) (bool, error) {
		keyTime, _, err := splitTimeKey(string(e.Key))
		if err != nil {
			return true, nil
		}
		t, err := time.Parse(envelope.TimeLayout, keyTime)
		if err != nil {
			return true, nil
		}
		if t.After(upTo) {
			return false, nil
		}
		var msg envelope.Message
		if err := json.Unmarshal(e.Value, &msg); err != nil {
			return true, nil
		}
		out = append(out, ScheduledEntry{Key: string(e.Key), Message: msg})
		return true, nil
	})
	return out, err
}

// RemoveScheduled deletes a scheduled entry by the key DueScheduled or
// ScheduleMessage returned.
func (s *Store) RemoveScheduled(key string) error {
	return s.Delete(CFScheduledMessage, []byte(key))
}

func splitTimeKey(key string) (timePart, hashPart string, err error) {
	idx := strings.Index(key, indexSep)
	if idx < 0 {
		return "", "", fmt.Errorf("store: malformed time-ordered key %q", key)
	}
	return key[:idx], key[idx+len(indexSep):], nil
}
