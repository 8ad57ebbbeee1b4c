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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinkainet/node/crypto"
	"github.com/shinkainet/node/envelope"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func buildTestMessage(t *testing.T, content string, scheduled time.Time) envelope.Message {
	t.Helper()
	sig, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)
	enc, err := crypto.GenerateEncryptionKeyPair()
	require.NoError(t, err)

	msg, err := envelope.NewBuilder(sig, enc).
		WithSender("@@alice.shinkai", "main").
		WithRecipient("@@alice.shinkai", "main", enc.PublicKey).
		WithScheduledTime(scheduled).
		WithBody(content, "text").
		Build()
	require.NoError(t, err)
	return *msg
}

func TestSetGetDeleteRoundTrip(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set(CFNodeAndUsers, []byte("k1"), []byte("v1")))
	v, err := s.Get(CFNodeAndUsers, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	require.NoError(t, s.Delete(CFNodeAndUsers, []byte("k1")))
	_, err = s.Get(CFNodeAndUsers, []byte("k1"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBatchIsAtomic(t *testing.T) {
	s := openTestStore(t)

	b := s.NewBatch()
	require.NoError(t, b.Set(CFNodeAndUsers, []byte("a"), []byte("1")))
	require.NoError(t, b.Set(CFNodeAndUsers, []byte("b"), []byte("2")))
	require.NoError(t, b.Commit())

	va, err := s.Get(CFNodeAndUsers, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), va)
	vb, err := s.Get(CFNodeAndUsers, []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), vb)
}

func TestScanPrefixIsolatesCFs(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set(CFNodeAndUsers, []byte("user:1"), []byte("a")))
	require.NoError(t, s.Set(CFAnyQueuesPrefixed, []byte("user:1"), []byte("b")))

	var seen []string
	err := s.ScanPrefix(CFNodeAndUsers, []byte("user:"), func(e Entry) (bool, error) {
		seen = append(seen, string(e.Value))
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, seen)
}

func TestInsertMessageIsIdempotentByHash(t *testing.T) {
	s := openTestStore(t)
	msg := buildTestMessage(t, "ping", time.Now())

	h1, err := s.InsertMessage(msg)
	require.NoError(t, err)
	h2, err := s.InsertMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	msgs, err := s.LastNMessages(10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.Equal(t, "ping", msgs[0].Body.Data.RawContent)
}

func TestLastNMessagesOrdersByRecency(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, content := range []string{"one", "two", "three"} {
		msg := buildTestMessage(t, content, base.Add(time.Duration(i)*time.Minute))
		_, err := s.InsertMessage(msg)
		require.NoError(t, err)
	}

	msgs, err := s.LastNMessages(2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "three", msgs[0].Body.Data.RawContent)
	assert.Equal(t, "two", msgs[1].Body.Data.RawContent)
}

func TestScheduleAndDueScheduled(t *testing.T) {
	s := openTestStore(t)
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	dueMsg := buildTestMessage(t, "due", past)
	notDueMsg := buildTestMessage(t, "not-due", future)

	dueKey, err := s.ScheduleMessage(dueMsg)
	require.NoError(t, err)
	_, err = s.ScheduleMessage(notDueMsg)
	require.NoError(t, err)

	entries, err := s.DueScheduled(time.Now())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "due", entries[0].Message.Body.Data.RawContent)
	assert.Equal(t, dueKey, entries[0].Key)

	require.NoError(t, s.RemoveScheduled(dueKey))
	entries, err = s.DueScheduled(time.Now())
	require.NoError(t, err)
	assert.Len(t, entries, 0)
}
