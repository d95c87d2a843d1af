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

// Session pairs one episode handle with a stable per-run integer
// identity and the instance that seeded it.
//
// Description:
//
//	Sessions are created once at run start and their identity never
//	mutates afterwards. A session is exhausted exactly when its handle
//	reports done; the poller tracks exhaustion, the session itself
//	stays stateless beyond its handle.
type Session struct {
	// ID is the dense per-run session index. Batches reference
	// sessions by this ID.
	ID int

	// Handle is the episode state this session drives.
	Handle Handle

	// Instance is the seed payload the episode was constructed from.
	// Carried for recording; never inspected here.
	Instance Instance
}

// NewSession creates a session over handle. Returns ErrNilHandle when
// handle is nil.
func NewSession(id int, handle Handle, instance Instance) (*Session, error) {
	if handle == nil {
		return nil, ErrNilHandle
	}
	return &Session{ID: id, Handle: handle, Instance: instance}, nil
}

// Poll reports the session's pending turn, if any.
//
// Outputs:
//
//	A single Observation and true when the episode has a pending turn;
//	a zero Observation and false when the handle is done. Observe
//	errors propagate unmodified.
func (s *Session) Poll() (Observation, bool, error) {
	if s.Handle.Done() {
		return Observation{}, false, nil
	}
	player, obs, err := s.Handle.Observe()
	if err != nil {
		return Observation{}, false, err
	}
	return Observation{SessionID: s.ID, Player: player, Context: obs}, true, nil
}

// Observation is one pending turn surfaced by a session poll: which
// session, which player acts, and what that player sees.
type Observation struct {
	// SessionID identifies the session the observation came from.
	SessionID int

	// Player is the participant whose turn it is.
	Player Player

	// Context is what the player must respond to.
	Context Context
}

// Batch is the default dense representation of collated observations:
// three parallel sequences aligned by position. Row i of a batch is
// (SessionIDs[i], Players[i], Contexts[i]).
type Batch struct {
	// SessionIDs are the originating sessions, in observation order.
	SessionIDs []int

	// Players are the acting participants, aligned with SessionIDs.
	Players []Player

	// Contexts are the observed payloads, aligned with SessionIDs.
	Contexts []Context
}

// Size returns the number of rows in the batch.
func (b Batch) Size() int {
	return len(b.SessionIDs)
}

// CollateFunc converts one chunk of observations into a batch. The
// scheduler never inspects the result; alternative representations only
// need to agree with their consumer.
type CollateFunc func(observations []Observation) Batch

// Collate is the default CollateFunc: parallel sequences in observation
// order.
func Collate(observations []Observation) Batch {
	batch := Batch{
		SessionIDs: make([]int, 0, len(observations)),
		Players:    make([]Player, 0, len(observations)),
		Contexts:   make([]Context, 0, len(observations)),
	}
	for _, obs := range observations {
		batch.SessionIDs = append(batch.SessionIDs, obs.SessionID)
		batch.Players = append(batch.Players, obs.Player)
		batch.Contexts = append(batch.Contexts, obs.Context)
	}
	return batch
}
