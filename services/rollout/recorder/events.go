// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package recorder provides rollout event types and fan-out.
//
// Events let external systems observe runs, collect metrics, and stream
// progress without coupling to the runner implementations.
//
// Thread Safety:
//
//	All types in this package are designed for concurrent use unless
//	noted otherwise.
package recorder

import (
	"time"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/episode"
)

// Type identifies the kind of event.
type Type string

const (
	// TypeRunStart is emitted when a run begins.
	TypeRunStart Type = "run_start"

	// TypeRunEnd is emitted when a run finishes or fails.
	TypeRunEnd Type = "run_end"

	// TypeEpisodeStart is emitted when a session's episode begins.
	TypeEpisodeStart Type = "episode_start"

	// TypeEpisodeEnd is emitted when a session's episode finishes.
	TypeEpisodeEnd Type = "episode_end"

	// TypeTurn is emitted for each observe/respond/step cycle.
	TypeTurn Type = "turn"

	// TypeBatch is emitted when a scheduler batch has been answered.
	TypeBatch Type = "batch"

	// TypeBranch is emitted after each branching round.
	TypeBranch Type = "branch"

	// TypeError is emitted when a run-level error occurs.
	TypeError Type = "error"
)

// Event represents one rollout event.
//
// Thread Safety:
//
//	Event structs should be treated as immutable after creation.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`

	// Type identifies the kind of event.
	Type Type `json:"type"`

	// RunID links the event to a run.
	RunID string `json:"run_id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Data contains event-specific data. Use the typed data structs
	// (RunStartData, TurnData, BranchData, ...) when setting it.
	Data any `json:"data,omitempty"`
}

// RunStartData is the data for run start events.
type RunStartData struct {
	// Game names the episode implementation.
	Game string `json:"game"`

	// Experiment names the run configuration.
	Experiment string `json:"experiment,omitempty"`

	// Sessions is the number of episodes in the run.
	Sessions int `json:"sessions"`
}

// RunEndData is the data for run end events.
type RunEndData struct {
	// Episodes is the number of episodes driven.
	Episodes int `json:"episodes"`

	// Completed is the number that reached Done.
	Completed int `json:"completed"`

	// Duration is the wall-clock run time.
	Duration time.Duration `json:"duration"`

	// Failed is set when the run aborted on an error.
	Failed bool `json:"failed,omitempty"`
}

// EpisodeStartData is the data for episode start events.
type EpisodeStartData struct {
	// SessionID is the session index within the run.
	SessionID int `json:"session_id"`

	// HandleID is the episode handle identity.
	HandleID string `json:"handle_id"`

	// Instance carries the episode's task payload.
	Instance episode.Instance `json:"instance,omitempty"`
}

// EpisodeEndData is the data for episode end events.
type EpisodeEndData struct {
	// SessionID is the session index within the run.
	SessionID int `json:"session_id"`

	// HandleID is the episode handle identity.
	HandleID string `json:"handle_id"`

	// Turns is the number of turns stepped.
	Turns int `json:"turns"`

	// Done reports whether the episode finished before the run ended.
	Done bool `json:"done"`
}

// TurnData is the data for turn events.
type TurnData struct {
	// SessionID is the session index within the run.
	SessionID int `json:"session_id"`

	// HandleID is the episode handle identity.
	HandleID string `json:"handle_id,omitempty"`

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

	// Info carries the step's info map.
	Info episode.Info `json:"info,omitempty"`
}

// BatchData is the data for batch events.
type BatchData struct {
	// Size is the number of rows in the batch.
	Size int `json:"size"`

	// SessionIDs lists the sessions answered.
	SessionIDs []int `json:"session_ids"`

	// Duration is how long the batched dispatch took.
	Duration time.Duration `json:"duration"`
}

// BranchData is the data for branching round events.
type BranchData struct {
	// Round is the 1-based round number.
	Round int `json:"round"`

	// Parents is the number of leaves branched from.
	Parents int `json:"parents"`

	// Candidates is the number of branches created.
	Candidates int `json:"candidates"`

	// TreeSize is the node count after attachment.
	TreeSize int `json:"tree_size"`
}

// ErrorData is the data for error events.
type ErrorData struct {
	// SessionID is the failing session, -1 for run-level failures.
	SessionID int `json:"session_id"`

	// Stage names the operation that failed.
	Stage string `json:"stage"`

	// Message is the error text.
	Message string `json:"message"`
}
