// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package episode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSessions builds n sessions of turnLimit turns each, IDs 0..n-1.
func newTestSessions(t *testing.T, n, turnLimit int) []*Session {
	t.Helper()
	sessions := make([]*Session, 0, n)
	for i := 0; i < n; i++ {
		handle := NewScriptedHandle("ep", turnLimit)
		session, err := NewSession(i, handle, nil)
		require.NoError(t, err)
		sessions = append(sessions, session)
	}
	return sessions
}

// sessionIDs projects the observations onto their session IDs.
func sessionIDs(observations []Observation) []int {
	ids := make([]int, 0, len(observations))
	for _, obs := range observations {
		ids = append(ids, obs.SessionID)
	}
	return ids
}

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNewSinglePassPoller_Empty(t *testing.T) {
	poller, err := NewSinglePassPoller(nil)
	require.NoError(t, err)
	assert.True(t, poller.AllExhausted())
	assert.Equal(t, 0, poller.Len())

	observations, err := poller.PollPass()
	require.NoError(t, err)
	assert.Empty(t, observations)
}

func TestNewSinglePassPoller_NilSession(t *testing.T) {
	sessions := newTestSessions(t, 2, 1)
	sessions[1] = nil

	_, err := NewSinglePassPoller(sessions)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNilSession)
	assert.Contains(t, err.Error(), "position 1")
}

func TestNewSinglePassPoller_DuplicateID(t *testing.T) {
	sessions := newTestSessions(t, 2, 1)
	sessions[1].ID = sessions[0].ID

	_, err := NewSinglePassPoller(sessions)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateSessionID)
}

// =============================================================================
// PollPass Tests
// =============================================================================

func TestPollPass_VisitsInInputOrder(t *testing.T) {
	sessions := newTestSessions(t, 3, 1)
	poller, err := NewSinglePassPoller(sessions)
	require.NoError(t, err)

	observations, err := poller.PollPass()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, sessionIDs(observations))
}

func TestPollPass_SkipsExhausted(t *testing.T) {
	sessions := newTestSessions(t, 3, 2)
	// Session 1 finishes before the next pass.
	_, err := sessions[1].Handle.Step("r1")
	require.NoError(t, err)
	_, err = sessions[1].Handle.Step("r2")
	require.NoError(t, err)

	poller, err := NewSinglePassPoller(sessions)
	require.NoError(t, err)

	observations, err := poller.PollPass()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, sessionIDs(observations))
	assert.True(t, poller.Exhausted(1))
}

func TestPollPass_ExhaustionIsMonotonic(t *testing.T) {
	sessions := newTestSessions(t, 2, 1)
	poller, err := NewSinglePassPoller(sessions)
	require.NoError(t, err)

	// Pass 1: both pending.
	observations, err := poller.PollPass()
	require.NoError(t, err)
	require.Len(t, observations, 2)

	for _, obs := range observations {
		_, err := sessions[obs.SessionID].Handle.Step("done")
		require.NoError(t, err)
	}

	// Pass 2: both yield nothing and get marked.
	observations, err = poller.PollPass()
	require.NoError(t, err)
	assert.Empty(t, observations)
	assert.True(t, poller.AllExhausted())

	// Pass 3: marks persist; handles are not even consulted.
	observations, err = poller.PollPass()
	require.NoError(t, err)
	assert.Empty(t, observations)
	assert.True(t, poller.AllExhausted())
}

func TestPollPass_RepeatedPassesIdenticalWithoutMutation(t *testing.T) {
	sessions := newTestSessions(t, 3, 2)
	poller, err := NewSinglePassPoller(sessions)
	require.NoError(t, err)

	first, err := poller.PollPass()
	require.NoError(t, err)
	second, err := poller.PollPass()
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].SessionID, second[i].SessionID)
		assert.True(t, first[i].Context.Equal(second[i].Context))
	}
}

func TestPollPass_HandleErrorAbortsPass(t *testing.T) {
	boom := errors.New("observe failed")
	sessions := newTestSessions(t, 3, 1)
	sessions[1].Handle.(*ScriptedHandle).FailObserve = boom

	poller, err := NewSinglePassPoller(sessions)
	require.NoError(t, err)

	_, err = poller.PollPass()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "session 1")

	// The failing session is not marked exhausted.
	assert.False(t, poller.Exhausted(1))
}

func TestPollPass_NoAdvanceWithinPass(t *testing.T) {
	sessions := newTestSessions(t, 1, 3)
	poller, err := NewSinglePassPoller(sessions)
	require.NoError(t, err)

	observations, err := poller.PollPass()
	require.NoError(t, err)
	require.Len(t, observations, 1)
	assert.Equal(t, "ep: turn 1", observations[0].Context.Content)
	assert.Equal(t, 0, sessions[0].Handle.(*ScriptedHandle).Turn())
}

// =============================================================================
// AllExhausted Tests
// =============================================================================

func TestAllExhausted_Progression(t *testing.T) {
	sessions := newTestSessions(t, 2, 1)
	poller, err := NewSinglePassPoller(sessions)
	require.NoError(t, err)

	assert.False(t, poller.AllExhausted())

	observations, err := poller.PollPass()
	require.NoError(t, err)
	for _, obs := range observations {
		_, err := sessions[obs.SessionID].Handle.Step("only turn")
		require.NoError(t, err)
	}
	assert.False(t, poller.AllExhausted())

	_, err = poller.PollPass()
	require.NoError(t, err)
	assert.True(t, poller.AllExhausted())
}
