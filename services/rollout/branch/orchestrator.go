// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package branch

import (
	"fmt"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/episode"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/tree"
)

// Root is the episode surface a branching rollout grows from: a regular
// handle that can additionally initialize itself from an instance.
type Root interface {
	episode.Handle

	// Setup initializes the episode from its seed instance. Called
	// exactly once, before the first observation.
	Setup(instance episode.Instance) error
}

// State is the orchestrator lifecycle phase.
type State int

const (
	// StateNotStarted means Setup has not run; only Setup is legal.
	StateNotStarted State = iota

	// StateRunning means the rollout is advancing rounds.
	StateRunning

	// StateDone means a Step round ended with every candidate done.
	StateDone
)

// String returns "not_started", "running", or "done".
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Orchestrator drives one branching rollout: a root episode, the tree
// grown from it, and the active leaf set the next round forks from.
//
// Description:
//
//	The cycle is Setup once, then rounds of Observe -> generate ->
//	Step. Step applies every candidate, attaches one response node per
//	candidate under its parent's node, and replaces the active set
//	with all candidate branches, finished ones included. Pruning is
//	the caller's policy: filter the handles returned by Observe before
//	generating (run.BranchRunner does exactly that).
//
// Thread Safety: NOT safe for concurrent use; the branching path is
// single-threaded and cooperative.
type Orchestrator struct {
	root      Root
	generator *Generator
	tree      *tree.Tree
	active    []episode.Handle
	state     State
}

// NewOrchestrator creates an orchestrator in StateNotStarted.
func NewOrchestrator(root Root, generator *Generator) (*Orchestrator, error) {
	if root == nil {
		return nil, ErrNilRoot
	}
	if generator == nil {
		return nil, ErrNilGenerator
	}
	return &Orchestrator{
		root:      root,
		generator: generator,
		state:     StateNotStarted,
	}, nil
}

// State returns the lifecycle phase.
func (o *Orchestrator) State() State {
	return o.state
}

// Tree returns the full rollout tree, or nil before Setup.
func (o *Orchestrator) Tree() *tree.Tree {
	return o.tree
}

// Setup initializes the root episode from instance, creates the tree
// around it, and seeds the active set with the root.
func (o *Orchestrator) Setup(instance episode.Instance) error {
	if o.state != StateNotStarted {
		return fmt.Errorf("%w: state %s", ErrAlreadySetup, o.state)
	}
	if err := o.root.Setup(instance); err != nil {
		return fmt.Errorf("setup root episode: %w", err)
	}
	t, err := tree.New(o.root)
	if err != nil {
		return err
	}
	o.tree = t
	o.active = []episode.Handle{o.root}
	o.state = StateRunning
	return nil
}

// Observe returns a branch-generation closure bound to the run's
// generator plus the current active-leaf handles. The returned slice is
// a copy; callers filter it freely.
func (o *Orchestrator) Observe() (BranchFunc, []episode.Handle, error) {
	if o.state == StateNotStarted {
		return nil, nil, ErrNotSetup
	}
	leaves := make([]episode.Handle, len(o.active))
	copy(leaves, o.active)
	return o.generator.Generate, leaves, nil
}

// Step applies the candidate groups and advances the rollout one round.
//
// Description:
//
//	Every candidate is applied in order (apply errors abort the round
//	and propagate); its done flag is recorded into the candidate's
//	info under "done"; a response node is attached under the node
//	wrapping the candidate's parent handle. A parent handle without a
//	tree node is a programming-contract violation and panics; the
//	caller fed a candidate whose parent never entered this rollout.
//
//	The active set is replaced by all candidate branches, finished or
//	not. Overall done is true when every candidate finished; the
//	orchestrator then moves to StateDone.
//
// Outputs:
//
//	Overall done plus the info maps aligned with the input grouping.
func (o *Orchestrator) Step(groups [][]Candidate) (bool, [][]episode.Info, error) {
	if o.state == StateNotStarted {
		return false, nil, ErrNotSetup
	}

	overallDone := true
	infoGroups := make([][]episode.Info, 0, len(groups))
	var newActive []episode.Handle

	for _, group := range groups {
		infos := make([]episode.Info, 0, len(group))
		for _, candidate := range group {
			result, err := candidate.Apply()
			if err != nil {
				return false, nil, fmt.Errorf("apply candidate on branch %s: %w",
					candidate.Branch.ID(), err)
			}

			info := result.Info
			if info == nil {
				info = episode.Info{}
			}
			info["done"] = result.Done

			parentNode, ok := o.tree.FindNode(candidate.Parent.ID())
			if !ok {
				panic(fmt.Sprintf("branch: parent handle %s has no node in the rollout tree",
					candidate.Parent.ID()))
			}
			childNode, err := o.tree.AddResponseNode(candidate.Branch, tree.ResponsePayload{
				Player:   candidate.ParentPlayer,
				Context:  candidate.ParentContext,
				Response: candidate.Response,
				Done:     result.Done,
				Info:     info,
			})
			if err != nil {
				return false, nil, fmt.Errorf("add response node: %w", err)
			}
			if err := o.tree.Connect(parentNode, childNode); err != nil {
				return false, nil, fmt.Errorf("connect response node: %w", err)
			}

			if !result.Done {
				overallDone = false
			}
			newActive = append(newActive, candidate.Branch)
			infos = append(infos, info)
		}
		infoGroups = append(infoGroups, infos)
	}

	o.active = newActive
	if overallDone {
		o.state = StateDone
	}
	return overallDone, infoGroups, nil
}

// ActiveSubtree extracts the subtree spanned by the current active set.
func (o *Orchestrator) ActiveSubtree() (*tree.Tree, error) {
	if o.state == StateNotStarted {
		return nil, ErrNotSetup
	}
	ids := make([]string, 0, len(o.active))
	for _, handle := range o.active {
		ids = append(ids, handle.ID())
	}
	return o.tree.ActiveSubtree(ids), nil
}
