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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/episode"
)

// scriptedRoot adds the Root setup surface to a scripted episode.
type scriptedRoot struct {
	*episode.ScriptedHandle

	setupCalls int
	instance   episode.Instance
	failSetup  error
}

func (r *scriptedRoot) Setup(instance episode.Instance) error {
	if r.failSetup != nil {
		return r.failSetup
	}
	r.setupCalls++
	r.instance = instance
	return nil
}

func newScriptedRoot(turnLimit int, players ...episode.Player) *scriptedRoot {
	return &scriptedRoot{ScriptedHandle: episode.NewScriptedHandle("ep", turnLimit, players...)}
}

// setupOrchestrator builds a running orchestrator over a scripted root.
func setupOrchestrator(t *testing.T, root *scriptedRoot, factor int, predicate Predicate) *Orchestrator {
	t.Helper()
	g, err := NewGenerator(factor, predicate)
	require.NoError(t, err)
	o, err := NewOrchestrator(root, g)
	require.NoError(t, err)
	require.NoError(t, o.Setup(episode.Instance{"task": "demo"}))
	return o
}

// runRound observes, generates over all returned leaves, and steps.
func runRound(t *testing.T, o *Orchestrator) (bool, [][]episode.Info) {
	t.Helper()
	generate, leaves, err := o.Observe()
	require.NoError(t, err)
	groups, err := generate(context.Background(), leaves)
	require.NoError(t, err)
	done, infos, err := o.Step(groups)
	require.NoError(t, err)
	return done, infos
}

// =============================================================================
// Constructor / Lifecycle Tests
// =============================================================================

func TestNewOrchestrator_Validation(t *testing.T) {
	g, err := NewGenerator(2, nil)
	require.NoError(t, err)

	_, err = NewOrchestrator(nil, g)
	assert.ErrorIs(t, err, ErrNilRoot)

	_, err = NewOrchestrator(newScriptedRoot(2), nil)
	assert.ErrorIs(t, err, ErrNilGenerator)
}

func TestOrchestrator_SetupInitializes(t *testing.T) {
	root := newScriptedRoot(2)
	o := setupOrchestrator(t, root, 2, nil)

	assert.Equal(t, StateRunning, o.State())
	assert.Equal(t, 1, root.setupCalls)
	assert.Equal(t, episode.Instance{"task": "demo"}, root.instance)

	require.NotNil(t, o.Tree())
	assert.Equal(t, 1, o.Tree().Len())

	_, leaves, err := o.Observe()
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Equal(t, root.ID(), leaves[0].ID())
}

func TestOrchestrator_SetupTwiceRejected(t *testing.T) {
	o := setupOrchestrator(t, newScriptedRoot(2), 2, nil)

	err := o.Setup(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadySetup)
}

func TestOrchestrator_SetupRootErrorPropagates(t *testing.T) {
	boom := errors.New("bad instance")
	root := newScriptedRoot(2)
	root.failSetup = boom

	g, err := NewGenerator(2, nil)
	require.NoError(t, err)
	o, err := NewOrchestrator(root, g)
	require.NoError(t, err)

	err = o.Setup(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateNotStarted, o.State())
}

func TestOrchestrator_CallsBeforeSetupRejected(t *testing.T) {
	g, err := NewGenerator(2, nil)
	require.NoError(t, err)
	o, err := NewOrchestrator(newScriptedRoot(2), g)
	require.NoError(t, err)

	_, _, err = o.Observe()
	assert.ErrorIs(t, err, ErrNotSetup)

	_, _, err = o.Step(nil)
	assert.ErrorIs(t, err, ErrNotSetup)

	_, err = o.ActiveSubtree()
	assert.ErrorIs(t, err, ErrNotSetup)
}

// =============================================================================
// Round Tests
// =============================================================================

func TestOrchestrator_RoundTrip(t *testing.T) {
	// One leaf, factor 2: one round adds two response nodes and the
	// active set becomes those two branches.
	o := setupOrchestrator(t, newScriptedRoot(3), 2, nil)

	done, infos := runRound(t, o)
	assert.False(t, done)
	require.Len(t, infos, 1)
	require.Len(t, infos[0], 2)
	assert.Equal(t, false, infos[0][0]["done"])

	assert.Equal(t, 3, o.Tree().Len()) // root + 2 responses

	_, leaves, err := o.Observe()
	require.NoError(t, err)
	assert.Len(t, leaves, 2)
	assert.Equal(t, StateRunning, o.State())
}

func TestOrchestrator_CompoundingGrowth(t *testing.T) {
	// Alternating players, branch on every turn, factor 2, three
	// turns: active set grows 1 -> 2 -> 4 -> 8.
	root := newScriptedRoot(3,
		episode.NewScriptedPlayer("alpha"),
		episode.NewScriptedPlayer("beta"))
	o := setupOrchestrator(t, root, 2, nil)

	wantSizes := []int{2, 4, 8}
	for round, want := range wantSizes {
		done, _ := runRound(t, o)

		_, leaves, err := o.Observe()
		require.NoError(t, err)
		assert.Len(t, leaves, want, "round %d", round+1)

		if round < len(wantSizes)-1 {
			assert.False(t, done)
		} else {
			assert.True(t, done)
		}
	}

	// 1 + 2 + 4 + 8 nodes in the full tree.
	assert.Equal(t, 15, o.Tree().Len())
	assert.Equal(t, StateDone, o.State())
}

func TestOrchestrator_SelectivePredicateGrowth(t *testing.T) {
	// Alternating players, factor 2, but only alpha turns branch:
	// fork-1 rounds (beta) interleave with doubling rounds (alpha),
	// so the active set grows 1 -> 2 -> 2 -> 4 -> 4.
	root := newScriptedRoot(4,
		episode.NewScriptedPlayer("alpha"),
		episode.NewScriptedPlayer("beta"))
	o := setupOrchestrator(t, root, 2, PlayerNameIs("alpha"))

	wantSizes := []int{2, 2, 4, 4}
	for round, want := range wantSizes {
		done, _ := runRound(t, o)

		_, leaves, err := o.Observe()
		require.NoError(t, err)
		assert.Len(t, leaves, want, "round %d", round+1)

		if round < len(wantSizes)-1 {
			assert.False(t, done, "round %d", round+1)
		} else {
			assert.True(t, done)
		}
	}

	// 1 root + 2 + 2 + 4 + 4 response nodes.
	assert.Equal(t, 13, o.Tree().Len())
	assert.Equal(t, StateDone, o.State())
}

func TestOrchestrator_DoneRecordedInInfo(t *testing.T) {
	// Single-turn episode: the first round finishes every branch.
	o := setupOrchestrator(t, newScriptedRoot(1), 2, nil)

	done, infos := runRound(t, o)
	assert.True(t, done)
	for _, info := range infos[0] {
		assert.Equal(t, true, info["done"])
	}
	assert.Equal(t, StateDone, o.State())
}

func TestOrchestrator_ActiveSetKeepsFinishedBranches(t *testing.T) {
	// No pruning: after the finishing round the active set still holds
	// the done branches; filtering is the caller's job.
	o := setupOrchestrator(t, newScriptedRoot(1), 2, nil)

	done, _ := runRound(t, o)
	require.True(t, done)

	_, leaves, err := o.Observe()
	require.NoError(t, err)
	require.Len(t, leaves, 2)
	for _, leaf := range leaves {
		assert.True(t, leaf.Done())
	}
}

func TestOrchestrator_NonBranchingParentStillAdvances(t *testing.T) {
	// Predicate never matches: every round forks exactly once and the
	// active set stays size 1 while the episode advances.
	o := setupOrchestrator(t, newScriptedRoot(2), 2, PlayerNameIs("nobody"))

	done, _ := runRound(t, o)
	assert.False(t, done)

	_, leaves, err := o.Observe()
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Equal(t, 1, leaves[0].(*episode.ScriptedHandle).Turn())

	done, _ = runRound(t, o)
	assert.True(t, done)
}

func TestOrchestrator_StepEmptyGroups(t *testing.T) {
	o := setupOrchestrator(t, newScriptedRoot(2), 2, nil)

	done, infos, err := o.Step(nil)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Empty(t, infos)
	assert.Equal(t, StateDone, o.State())
}

func TestOrchestrator_ApplyErrorPropagates(t *testing.T) {
	boom := errors.New("step failed")
	o := setupOrchestrator(t, newScriptedRoot(3), 1, nil)

	generate, leaves, err := o.Observe()
	require.NoError(t, err)
	groups, err := generate(context.Background(), leaves)
	require.NoError(t, err)

	groups[0][0].Branch.(*episode.ScriptedHandle).FailStep = boom

	_, _, err = o.Step(groups)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestOrchestrator_MissingParentPanics(t *testing.T) {
	o := setupOrchestrator(t, newScriptedRoot(3), 1, nil)

	// A candidate whose parent never entered this rollout.
	foreign := episode.NewScriptedHandle("foreign", 3)
	branch, err := foreign.Clone()
	require.NoError(t, err)
	player, obs, err := foreign.Observe()
	require.NoError(t, err)

	groups := [][]Candidate{{{
		Parent:        foreign,
		ParentPlayer:  player,
		ParentContext: obs,
		Branch:        branch,
		Response:      "r",
	}}}

	assert.Panics(t, func() {
		_, _, _ = o.Step(groups)
	})
}

// =============================================================================
// ActiveSubtree Tests
// =============================================================================

func TestOrchestrator_ActiveSubtree(t *testing.T) {
	o := setupOrchestrator(t, newScriptedRoot(3), 2, nil)

	done, _ := runRound(t, o)
	require.False(t, done)

	sub, err := o.ActiveSubtree()
	require.NoError(t, err)

	// root + both active branches.
	assert.Equal(t, 3, sub.Len())
	assert.Len(t, sub.FindLeaves(), 2)
}

func TestOrchestrator_ActiveSubtree_AfterFiltering(t *testing.T) {
	// Two rounds deep, then extract: only chains to the current active
	// set survive, in particular first-round nodes with no active
	// descendants are pruned.
	o := setupOrchestrator(t, newScriptedRoot(3), 2, nil)

	done, _ := runRound(t, o)
	require.False(t, done)
	done, _ = runRound(t, o)
	require.False(t, done)

	// Full tree: 1 + 2 + 4; active = 4 leaves.
	require.Equal(t, 7, o.Tree().Len())

	sub, err := o.ActiveSubtree()
	require.NoError(t, err)
	assert.Equal(t, 7, sub.Len())
	assert.Len(t, sub.FindLeaves(), 4)
}

func TestOrchestrator_StateString(t *testing.T) {
	assert.Equal(t, "not_started", StateNotStarted.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "unknown", State(42).String())
}
