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

import "fmt"

// SinglePassPoller drains pending turns from an ordered session list,
// one visit per session per pass.
//
// Description:
//
//	The poller owns the run's exhaustion table: session ID -> bool,
//	monotonic for the poller's lifetime. A pass visits every session
//	strictly in input order, skips the ones already exhausted, marks a
//	session exhausted the first time it yields nothing, and appends
//	the yields of the rest in visiting order. Two passes over
//	unmutated sessions produce identical observations.
//
// Thread Safety: NOT safe for concurrent use. The rollout core is
// single-threaded; passes are strictly sequential.
type SinglePassPoller struct {
	// sessions is the ordered session list, fixed at construction.
	sessions []*Session

	// exhausted maps session ID to its terminal flag. Entries only
	// ever flip false -> true.
	exhausted map[int]bool
}

// NewSinglePassPoller creates a poller over sessions in the given
// order.
//
// Inputs:
//
//	sessions - the ordered session list. May be empty (the poller is
//	then trivially exhausted). Entries must be non-nil and carry
//	unique IDs.
//
// Outputs:
//
//	The poller, or a validation error (ErrNilSession,
//	ErrDuplicateSessionID) naming the offending position.
func NewSinglePassPoller(sessions []*Session) (*SinglePassPoller, error) {
	exhausted := make(map[int]bool, len(sessions))
	for i, session := range sessions {
		if session == nil {
			return nil, fmt.Errorf("%w: position %d", ErrNilSession, i)
		}
		if _, dup := exhausted[session.ID]; dup {
			return nil, fmt.Errorf("%w: %d at position %d", ErrDuplicateSessionID, session.ID, i)
		}
		exhausted[session.ID] = false
	}
	return &SinglePassPoller{
		sessions:  sessions,
		exhausted: exhausted,
	}, nil
}

// PollPass performs one ordered pass over the sessions and returns
// their pending observations in visiting order.
//
// Description:
//
//	Exhausted sessions are skipped without touching their handles. A
//	session that yields nothing is marked exhausted for every later
//	pass. A handle error aborts the pass immediately and propagates;
//	exhaustion marks made earlier in the aborted pass persist, the
//	failing session stays unmarked.
func (p *SinglePassPoller) PollPass() ([]Observation, error) {
	observations := make([]Observation, 0, len(p.sessions))
	for _, session := range p.sessions {
		if p.exhausted[session.ID] {
			continue
		}
		obs, ok, err := session.Poll()
		if err != nil {
			return nil, fmt.Errorf("poll session %d: %w", session.ID, err)
		}
		if !ok {
			p.exhausted[session.ID] = true
			continue
		}
		observations = append(observations, obs)
	}
	return observations, nil
}

// Exhausted reports whether the session with the given ID has been
// marked exhausted. Unknown IDs report false.
func (p *SinglePassPoller) Exhausted(sessionID int) bool {
	return p.exhausted[sessionID]
}

// AllExhausted reports whether every session has been marked exhausted.
// Vacuously true for an empty session list.
func (p *SinglePassPoller) AllExhausted() bool {
	for _, session := range p.sessions {
		if !p.exhausted[session.ID] {
			return false
		}
	}
	return true
}

// Len returns the number of sessions under the poller.
func (p *SinglePassPoller) Len() int {
	return len(p.sessions)
}
