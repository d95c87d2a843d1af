// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/episode"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/game"
)

func TestBuildRegistry_Scripted(t *testing.T) {
	spec := validSpec()
	spec.Models[0].Responses = []string{"50", "correct"}

	registry, err := BuildRegistry(spec)
	require.NoError(t, err)

	client, err := registry.Get("scripted")
	require.NoError(t, err)
	assert.Equal(t, "scripted", client.Name())
}

func TestBuildRegistry_UnknownBackend(t *testing.T) {
	spec := validSpec()
	// Bypass Validate to hit the builder's own backend check.
	spec.Models[0].Backend = "bedrock"

	_, err := BuildRegistry(spec)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestBuildPlayers(t *testing.T) {
	spec := validSpec()
	registry, err := BuildRegistry(spec)
	require.NoError(t, err)

	players, err := BuildPlayers(spec, registry)
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, RoleGuesser, players[RoleGuesser].Name())
	assert.Equal(t, RoleJudge, players[RoleJudge].Name())
}

func TestBuildPlayers_UnknownModel(t *testing.T) {
	spec := validSpec()
	registry, err := BuildRegistry(spec)
	require.NoError(t, err)

	spec.Players[1].Model = "missing"
	_, err = BuildPlayers(spec, registry)
	assert.Error(t, err)
}

func TestBuildRoot_RequiresRoles(t *testing.T) {
	spec := validSpec()
	registry, err := BuildRegistry(spec)
	require.NoError(t, err)
	players, err := BuildPlayers(spec, registry)
	require.NoError(t, err)

	games := game.DefaultRegistry()

	root, err := BuildRoot(spec, games, players)
	require.NoError(t, err)
	assert.NotNil(t, root)

	delete(players, RoleJudge)
	_, err = BuildRoot(spec, games, players)
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestBuildSessions(t *testing.T) {
	spec := validSpec()
	spec.Experiments = []Experiment{{
		Name: "default",
		Instances: []episode.Instance{
			{"target": 10},
			{"target": 90},
		},
	}}

	registry, err := BuildRegistry(spec)
	require.NoError(t, err)
	players, err := BuildPlayers(spec, registry)
	require.NoError(t, err)

	it, err := NewIterator(spec.Experiments, nil)
	require.NoError(t, err)

	sessions, err := BuildSessions(spec, game.DefaultRegistry(), players, it)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	for i, session := range sessions {
		assert.Equal(t, i, session.ID)
		assert.False(t, session.Handle.Done())
	}
	assert.Equal(t, 10, sessions[0].Handle.(*game.GuessingDialogue).Target())
	assert.Equal(t, 90, sessions[1].Handle.(*game.GuessingDialogue).Target())
}

func TestBuildSessions_SetupErrorNamesTask(t *testing.T) {
	spec := validSpec()
	spec.Experiments = []Experiment{{
		Name:      "default",
		Instances: []episode.Instance{{"target": 9999}},
	}}

	registry, err := BuildRegistry(spec)
	require.NoError(t, err)
	players, err := BuildPlayers(spec, registry)
	require.NoError(t, err)

	it, err := NewIterator(spec.Experiments, nil)
	require.NoError(t, err)

	_, err = BuildSessions(spec, game.DefaultRegistry(), players, it)
	require.Error(t, err)
	assert.ErrorIs(t, err, game.ErrBadInstance)
	assert.Contains(t, err.Error(), "default[0]")
}

func TestBranchPredicate(t *testing.T) {
	spec := validSpec()
	assert.Nil(t, BranchPredicate(spec))

	spec.BranchPlayers = []string{RoleGuesser}
	predicate := BranchPredicate(spec)
	require.NotNil(t, predicate)
	assert.True(t, predicate(episode.NewScriptedPlayer(RoleGuesser)))
	assert.False(t, predicate(episode.NewScriptedPlayer(RoleJudge)))
}
