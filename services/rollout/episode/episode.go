// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package episode defines the episode handle contract and the dynamic
// batching primitives built on it.
//
// An episode is one independent, stateful, multi-turn dialogue advancing
// through an observe -> respond -> step cycle. The package owns three
// layers:
//
//   - Handle: the minimal surface an episode implementation must expose
//     (Observe, Step, Done, Clone, ID).
//   - Session + SinglePassPoller: stable per-run identity for many
//     episodes of unequal length, polled strictly in order with a
//     monotonic exhaustion table.
//   - DynamicBatchScheduler: packs the pending turns of each pass into
//     dense batches of bounded size via a pluggable collate function.
//
// The package performs no model inference, persists nothing, and is
// single-threaded by design: one pass visits sessions strictly in input
// order and no session advances more than once per pass. Callers that
// want concurrency batch the model calls, not the episode state.
package episode

import "context"

// Context is one observation payload handed to a player: a role, the
// content to respond to, and optional metadata. The orchestration layers
// treat it as opaque; only players and episode implementations interpret
// it.
type Context struct {
	// Role identifies the speaker slot the content belongs to
	// (game-defined, e.g. "system", "guesser").
	Role string `json:"role"`

	// Content is the text the current player must respond to.
	Content string `json:"content"`

	// Meta carries optional game-defined annotations. May be nil.
	Meta map[string]any `json:"meta,omitempty"`
}

// Equal reports whether two contexts carry the same role and content.
// Meta is deliberately excluded: it annotates, it does not address.
func (c Context) Equal(other Context) bool {
	return c.Role == other.Role && c.Content == other.Content
}

// Info is the opaque per-step annotation map returned by episode
// implementations (scores, turn counters, termination reasons).
type Info map[string]any

// StepResult is the outcome of advancing an episode by one turn.
type StepResult struct {
	// Done is true when the acting participant has terminated or the
	// episode was truncated.
	Done bool `json:"done"`

	// Info carries game-defined step annotations. May be nil.
	Info Info `json:"info,omitempty"`
}

// Instance is the opaque seed payload an episode is constructed from
// (dataset row, task description, experiment parameters). The
// orchestration layers never inspect it.
type Instance map[string]any

// Player produces one response for one observation. Implementations
// wrap a model backend, a script, or a human surface.
type Player interface {
	// Name returns the stable player identity within an episode
	// (e.g. "guesser", "judge").
	Name() string

	// Respond produces the player's response to the observed context.
	Respond(ctx context.Context, obs Context) (string, error)
}

// Handle is the contract every episode implementation exposes to the
// orchestration layers.
//
// Description:
//
//	A Handle owns exactly one episode's dialogue state. Orchestrators
//	drive it cooperatively: Observe to learn whose turn it is and what
//	they see, Step to apply that player's response, Done to learn
//	whether the episode can still advance, Clone to fork the state
//	into an independently-owned copy.
//
//	Errors from Observe, Step, and Clone propagate to the caller
//	unmodified in meaning: no retries, no suppression, no partial
//	salvage. A failing handle is fatal to the pass or branching round
//	that touched it.
//
// Thread Safety: implementations are NOT required to be safe for
// concurrent use; the orchestration layers never share a handle across
// goroutines.
type Handle interface {
	// ID returns the opaque unique identity of this episode state,
	// assigned at construction and reassigned at every Clone. All tree
	// and candidate bookkeeping keys on ID, never on structural
	// equality: sibling branches may be byte-identical.
	ID() string

	// Observe returns the player whose turn it is and the context that
	// player must respond to. The episode state does not advance.
	Observe() (Player, Context, error)

	// Step applies one sampled response for the current player and
	// advances the episode one turn.
	Step(response string) (StepResult, error)

	// Done reports whether the episode has terminated or been
	// truncated. A done episode yields no further observations.
	Done() bool

	// Clone returns an independent deep copy of the episode state
	// under a fresh ID. Mutating the copy must never affect the
	// original or any sibling copy.
	Clone() (Handle, error)
}
