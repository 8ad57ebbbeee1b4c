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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegularFromEndpointsCanonicalizesOrder(t *testing.T) {
	a, err := RegularFromEndpoints("@@bob.shinkai", "main", "@@alice.shinkai", "main", false)
	require.NoError(t, err)
	b, err := RegularFromEndpoints("@@alice.shinkai", "main", "@@bob.shinkai", "main", false)
	require.NoError(t, err)
	assert.Equal(t, a.String(), b.String())
}

func TestRegularFromEndpointsNoProfile(t *testing.T) {
	inbox, err := RegularFromEndpoints("@@alice.shinkai", "", "@@bob.shinkai", "", true)
	require.NoError(t, err)
	assert.True(t, inbox.IsE2E())
	assert.ElementsMatch(t, []string{"@@alice.shinkai", "@@bob.shinkai"}, inbox.Participants())
}

func TestNewRegularRejectsTooFew(t *testing.T) {
	_, err := NewRegular([]string{"@@alice.shinkai"}, false)
	assert.Error(t, err)
}

func TestNewRegularRejectsInvalidParticipant(t *testing.T) {
	_, err := NewRegular([]string{"@@alice.shinkai", "not-a-name"}, false)
	assert.Error(t, err)
}

func TestJobFromIDFormat(t *testing.T) {
	inbox, err := JobFromID("job-123")
	require.NoError(t, err)
	assert.True(t, inbox.IsJob())
	assert.Equal(t, "job_inbox::job-123::false", inbox.String())

	id, ok := inbox.GetJobID()
	assert.True(t, ok)
	assert.Equal(t, "job-123", id)
}

func TestJobFromIDRejectsEmpty(t *testing.T) {
	_, err := JobFromID("  ")
	assert.Error(t, err)
}

func TestParseRegularRoundTrip(t *testing.T) {
	inbox, err := RegularFromEndpoints("@@alice.shinkai", "main", "@@bob.shinkai", "main", true)
	require.NoError(t, err)

	reparsed, err := Parse(inbox.String())
	require.NoError(t, err)
	assert.Equal(t, inbox.String(), reparsed.String())
	assert.Equal(t, inbox.Participants(), reparsed.Participants())
	assert.True(t, reparsed.IsE2E())
}

func TestParseJobRoundTrip(t *testing.T) {
	inbox, err := JobFromID("abc")
	require.NoError(t, err)

	reparsed, err := Parse(inbox.String())
	require.NoError(t, err)
	assert.True(t, reparsed.IsJob())
	id, ok := reparsed.GetJobID()
	require.True(t, ok)
	assert.Equal(t, "abc", id)
}

func TestParseJobRejectsTrueE2EBit(t *testing.T) {
	_, err := Parse("job_inbox::abc::true")
	assert.Error(t, err)
}

func TestParseRejectsUnknownPrefix(t *testing.T) {
	_, err := Parse("mailbox::a::b::false")
	assert.Error(t, err)
}

func TestParseRejectsBadBool(t *testing.T) {
	_, err := Parse("inbox::@@alice.shinkai::@@bob.shinkai::maybe")
	assert.Error(t, err)
}

func TestHasCreationAccessViaSubName(t *testing.T) {
	inbox, err := RegularFromEndpoints("@@alice.shinkai", "main", "@@bob.shinkai", "main", false)
	require.NoError(t, err)

	assert.True(t, inbox.HasCreationAccess("@@alice.shinkai/main/device/phone"))
	assert.False(t, inbox.HasCreationAccess("@@carol.shinkai/main"))
}

func TestInboxShortIDIsStableAndHalfLength(t *testing.T) {
	inbox, err := JobFromID("fixed-id")
	require.NoError(t, err)
	short := inbox.ShortID()
	assert.Len(t, short, 32)

	again, err := JobFromID("fixed-id")
	require.NoError(t, err)
	assert.Equal(t, short, again.ShortID())
}
