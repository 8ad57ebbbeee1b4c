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

package name

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shinkainet/node/crypto"
)

const (
	regularPrefix = "inbox"
	jobPrefix     = "job_inbox"
	sep           = "::"
)

// Inbox is a canonical, participant-derived conversation/job identifier
// (spec §3, "Inbox").
type Inbox struct {
	value      string
	isJob      bool
	jobID      string
	isE2E      bool
	participants []string
}

// RegularFromEndpoints canonicalizes the four-endpoint form into a
// regular inbox, sorting participant names so construction order never
// affects the resulting string (spec §4.3).
func RegularFromEndpoints(senderNode, senderProfile, recipientNode, recipientProfile string, isE2E bool) (*Inbox, error) {
	a := joinNodeProfile(senderNode, senderProfile)
	b := joinNodeProfile(recipientNode, recipientProfile)
	return NewRegular([]string{a, b}, isE2E)
}

func joinNodeProfile(node, profile string) string {
	if profile == "" {
		return node
	}
	return node + "/" + profile
}

// NewRegular builds a regular inbox from participant name strings,
// validating each one and sorting them canonically.
func NewRegular(participants []string, isE2E bool) (*Inbox, error) {
	if len(participants) < 2 || len(participants) > 100 {
		return nil, fmt.Errorf("inbox: participant count %d out of range [2,100]", len(participants))
	}
	sorted := make([]string, len(participants))
	for i, p := range participants {
		lower := strings.ToLower(strings.TrimSpace(p))
		if !IsFullyValid(lower) {
			return nil, fmt.Errorf("inbox: participant %q is not a fully valid name", p)
		}
		sorted[i] = lower
	}
	sort.Strings(sorted)

	value := strings.Join(append([]string{regularPrefix}, append(sorted, strconv.FormatBool(isE2E))...), sep)
	return &Inbox{value: value, participants: sorted, isE2E: isE2E}, nil
}

// JobFromID builds a job inbox for id, which must be non-empty. Job
// inboxes are never marked e2e at the inbox level.
func JobFromID(id string) (*Inbox, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("inbox: job id must not be empty")
	}
	value := strings.ToLower(strings.Join([]string{jobPrefix, id, "false"}, sep))
	return &Inbox{value: value, isJob: true, jobID: id}, nil
}

// Parse validates and decomposes an existing inbox string.
func Parse(s string) (*Inbox, error) {
	lower := strings.ToLower(strings.TrimSpace(s))
	parts := strings.Split(lower, sep)
	if len(parts) < 3 {
		return nil, fmt.Errorf("inbox: too few fields in %q", s)
	}

	switch parts[0] {
	case jobPrefix:
		if len(parts) != 3 {
			return nil, fmt.Errorf("inbox: job inbox must have exactly 3 fields: %q", s)
		}
		if parts[1] == "" {
			return nil, fmt.Errorf("inbox: job inbox id must not be empty: %q", s)
		}
		if parts[2] != "false" {
			return nil, fmt.Errorf("inbox: job inbox e2e bit must be false: %q", s)
		}
		return &Inbox{value: lower, isJob: true, jobID: parts[1]}, nil
	case regularPrefix:
		if len(parts) < 4 {
			return nil, fmt.Errorf("inbox: regular inbox needs >=2 participants plus e2e bit: %q", s)
		}
		e2eStr := parts[len(parts)-1]
		e2e, err := strconv.ParseBool(e2eStr)
		if err != nil {
			return nil, fmt.Errorf("inbox: invalid e2e bit %q: %w", e2eStr, err)
		}
		participants := parts[1 : len(parts)-1]
		if len(participants) < 2 || len(participants) > 100 {
			return nil, fmt.Errorf("inbox: participant count %d out of range [2,100]", len(participants))
		}
		for _, p := range participants {
			if !IsFullyValid(p) {
				return nil, fmt.Errorf("inbox: participant %q is not a fully valid name", p)
			}
		}
		return &Inbox{value: lower, isE2E: e2e, participants: participants}, nil
	default:
		return nil, fmt.Errorf("inbox: unknown prefix %q", parts[0])
	}
}

// String returns the canonical inbox value.
func (i *Inbox) String() string { return i.value }

// IsJob reports whether this is a job_inbox variant.
func (i *Inbox) IsJob() bool { return i.isJob }

// GetJobID returns the job id and true only for job inboxes.
func (i *Inbox) GetJobID() (string, bool) {
	if !i.isJob {
		return "", false
	}
	return i.jobID, true
}

// IsE2E reports whether this regular inbox is marked end-to-end encrypted.
func (i *Inbox) IsE2E() bool { return i.isE2E }

// Participants returns the canonicalized participant list (empty for job
// inboxes).
func (i *Inbox) Participants() []string {
	out := make([]string, len(i.participants))
	copy(out, i.participants)
	return out
}

// HasCreationAccess reports whether requester is a sub-name of any
// participant in this inbox (spec §4.3, has_creation_access).
func (i *Inbox) HasCreationAccess(requester string) bool {
	for _, p := range i.participants {
		if IsSubNameOf(requester, p) {
			return true
		}
	}
	return false
}

// ShortID returns the hash-derived short id for this inbox (spec §3):
// the first half of hex(BLAKE3(value)).
func (i *Inbox) ShortID() string {
	return crypto.ShortID([]byte(i.value))
}
