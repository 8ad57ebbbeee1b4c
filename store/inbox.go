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
	"time"
)

// AppendToInbox records hash as the latest message in inbox, indexed both
// forward (strictly increasing by scheduled time, ties by hash) and
// reverse (for offset-based LastMessages pagination) under CFInbox.
func (s *Store) AppendToInbox(inbox string, scheduled time.Time, hash string) error {
	fwdKey := []byte(inbox + indexSep + forwardIndexPrefix + "_" + forwardTimeKey(scheduled) + indexSep + hash)
	revKey := []byte(inbox + indexSep + reverseIndexPrefix + "_" + reverseTimeKey(scheduled) + indexSep + hash)

	batch := s.NewBatch()
	if err := batch.Set(CFInbox, fwdKey, []byte(hash)); err != nil {
		return err
	}
	if err := batch.Set(CFInbox, revKey, []byte(hash)); err != nil {
		return err
	}
	return batch.Commit()
}

// LastHashInInbox returns the most recently appended message hash for
// inbox, or "" if the inbox is empty.
func (s *Store) LastHashInInbox(inbox string) (string, error) {
	var hash string
	err := s.ScanPrefix(CFInbox, []byte(inbox+indexSep+reverseIndexPrefix+"_"), func(e Entry) (bool, error) {
		hash = string(e.Value)
		return false, nil
	})
	return hash, err
}

// LastMessagesFromInbox returns up to n message hashes from inbox, most
// recent first, skipping the first offset entries. An empty inbox yields
// an empty (non-nil-error) slice.
func (s *Store) LastMessagesFromInbox(inbox string, n, offset int) ([]string, error) {
	var out []string
	skipped := 0
	err := s.ScanPrefix(CFInbox, []byte(inbox+indexSep+reverseIndexPrefix+"_"), func(e Entry) (bool, error) {
		if skipped < offset {
			skipped++
			return true, nil
		}
		out = append(out, string(e.Value))
		return len(out) < n, nil
	})
	return out, err
}
