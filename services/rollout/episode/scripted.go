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
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ScriptedHandle is a deterministic in-memory episode used by tests and
// offline runs.
//
// Description:
//
//	The episode runs for a fixed number of turns. Turn t is acted by
//	players[t mod len(players)], observing a context whose content
//	names the episode label and the 1-based turn number, so batch
//	contents are assertable. Clones copy the full state (including the
//	turn counter) under a fresh ID; the label is shared so sibling
//	clones observe identical contexts.
//
// Thread Safety: NOT safe for concurrent use, matching the Handle
// contract.
type ScriptedHandle struct {
	// FailObserve, when set, is returned by the next Observe call.
	FailObserve error

	// FailStep, when set, is returned by the next Step call.
	FailStep error

	// FailClone, when set, is returned by the next Clone call.
	FailClone error

	id        string
	label     string
	players   []Player
	turnLimit int
	turn      int
	history   []string
}

// NewScriptedHandle creates a scripted episode running for turnLimit
// turns. When no players are given a single ScriptedPlayer named
// "player" acts every turn.
func NewScriptedHandle(label string, turnLimit int, players ...Player) *ScriptedHandle {
	if len(players) == 0 {
		players = []Player{NewScriptedPlayer("player")}
	}
	return &ScriptedHandle{
		id:        uuid.NewString(),
		label:     label,
		players:   players,
		turnLimit: turnLimit,
	}
}

// ID returns the episode's unique identity.
func (h *ScriptedHandle) ID() string {
	return h.id
}

// Label returns the episode label shared across clones.
func (h *ScriptedHandle) Label() string {
	return h.label
}

// Turn returns the number of turns already stepped.
func (h *ScriptedHandle) Turn() int {
	return h.turn
}

// History returns the responses accepted so far, in turn order.
func (h *ScriptedHandle) History() []string {
	out := make([]string, len(h.history))
	copy(out, h.history)
	return out
}

// Observe returns the current turn's player and context.
func (h *ScriptedHandle) Observe() (Player, Context, error) {
	if h.FailObserve != nil {
		return nil, Context{}, h.FailObserve
	}
	if h.Done() {
		return nil, Context{}, ErrEpisodeFinished
	}
	player := h.players[h.turn%len(h.players)]
	obs := Context{
		Role:    player.Name(),
		Content: fmt.Sprintf("%s: turn %d", h.label, h.turn+1),
	}
	return player, obs, nil
}

// Step accepts one response and advances a turn. The episode is done
// once turnLimit turns have been stepped.
func (h *ScriptedHandle) Step(response string) (StepResult, error) {
	if h.FailStep != nil {
		return StepResult{}, h.FailStep
	}
	if h.Done() {
		return StepResult{}, ErrEpisodeFinished
	}
	h.history = append(h.history, response)
	h.turn++
	return StepResult{
		Done: h.Done(),
		Info: Info{"turn": h.turn},
	}, nil
}

// Done reports whether the turn limit has been reached.
func (h *ScriptedHandle) Done() bool {
	return h.turn >= h.turnLimit
}

// Clone returns an independent copy under a fresh ID.
func (h *ScriptedHandle) Clone() (Handle, error) {
	if h.FailClone != nil {
		return nil, h.FailClone
	}
	players := make([]Player, len(h.players))
	copy(players, h.players)
	history := make([]string, len(h.history))
	copy(history, h.history)
	return &ScriptedHandle{
		id:        uuid.NewString(),
		label:     h.label,
		players:   players,
		turnLimit: h.turnLimit,
		turn:      h.turn,
		history:   history,
	}, nil
}

var _ Handle = (*ScriptedHandle)(nil)

// ScriptedPlayer replays a fixed response cycle.
//
// Description:
//
//	Respond returns the scripted responses in order, cycling when the
//	script is shorter than the episode; with no script every call
//	answers "ack". Calls counts Respond invocations for dispatch
//	assertions.
type ScriptedPlayer struct {
	// FailRespond, when set, is returned by the next Respond call.
	FailRespond error

	// Calls counts Respond invocations.
	Calls int

	name      string
	responses []string
	next      int
}

// NewScriptedPlayer creates a player that cycles through responses.
func NewScriptedPlayer(name string, responses ...string) *ScriptedPlayer {
	return &ScriptedPlayer{name: name, responses: responses}
}

// Name returns the player's name.
func (p *ScriptedPlayer) Name() string {
	return p.name
}

// Respond returns the next scripted response.
func (p *ScriptedPlayer) Respond(ctx context.Context, obs Context) (string, error) {
	p.Calls++
	if p.FailRespond != nil {
		return "", p.FailRespond
	}
	if len(p.responses) == 0 {
		return "ack", nil
	}
	response := p.responses[p.next%len(p.responses)]
	p.next++
	return response, nil
}

var _ Player = (*ScriptedPlayer)(nil)
