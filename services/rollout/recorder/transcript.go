// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recorder

import (
	"time"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/episode"
)

// TurnRecord is one observe/respond/step cycle in a transcript.
type TurnRecord struct {
	// Turn is the 1-based turn number.
	Turn int `json:"turn"`

	// Player is the acting player's name.
	Player string `json:"player"`

	// Context is the observed context content.
	Context string `json:"context"`

	// Response is the player's response.
	Response string `json:"response"`

	// Done reports whether this turn finished the episode.
	Done bool `json:"done"`

	// Requests is the number of model requests spent on this turn.
	Requests int `json:"requests"`

	// Info carries the step's info map.
	Info episode.Info `json:"info,omitempty"`
}

// TranscriptRecord is a finalized, storable transcript.
type TranscriptRecord struct {
	RunID     string           `json:"run_id"`
	SessionID int              `json:"session_id"`
	HandleID  string           `json:"handle_id"`
	Instance  episode.Instance `json:"instance,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	EndedAt   time.Time        `json:"ended_at"`
	Turns     []TurnRecord     `json:"turns"`
	Done      bool             `json:"done"`
}

// Transcript accumulates one episode's turn log.
//
// Description:
//
//	A runner creates one Transcript per session, appends a turn per
//	observe/respond/step cycle, and finalizes it into a storable
//	record when the episode ends.
//
// Thread Safety: NOT safe for concurrent use. Each session owns its
// transcript exclusively, like its handle.
type Transcript struct {
	runID     string
	sessionID int
	handleID  string
	instance  episode.Instance
	startedAt time.Time
	turns     []TurnRecord
}

// NewTranscript starts a transcript for one session's episode.
func NewTranscript(runID string, sessionID int, handleID string, instance episode.Instance) *Transcript {
	return &Transcript{
		runID:     runID,
		sessionID: sessionID,
		handleID:  handleID,
		instance:  instance,
		startedAt: time.Now(),
	}
}

// AddTurn appends one answered turn. Each call accounts for one model
// request.
func (t *Transcript) AddTurn(player string, obs episode.Context, response string, result episode.StepResult) {
	t.turns = append(t.turns, TurnRecord{
		Turn:     len(t.turns) + 1,
		Player:   player,
		Context:  obs.Content,
		Response: response,
		Done:     result.Done,
		Requests: 1,
		Info:     result.Info,
	})
}

// Len returns the number of recorded turns.
func (t *Transcript) Len() int {
	return len(t.turns)
}

// SessionID returns the transcript's session index.
func (t *Transcript) SessionID() int {
	return t.sessionID
}

// Finalize closes the transcript into a storable record.
//
// Inputs:
//
//	done - Whether the episode reached Done before the run ended.
//
// Outputs:
//
//	TranscriptRecord - Copy-safe record; later AddTurn calls do not
//	affect it.
func (t *Transcript) Finalize(done bool) TranscriptRecord {
	turns := make([]TurnRecord, len(t.turns))
	copy(turns, t.turns)

	return TranscriptRecord{
		RunID:     t.runID,
		SessionID: t.sessionID,
		HandleID:  t.handleID,
		Instance:  t.instance,
		StartedAt: t.startedAt,
		EndedAt:   time.Now(),
		Turns:     turns,
		Done:      done,
	}
}
