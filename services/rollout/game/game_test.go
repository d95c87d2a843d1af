// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/branch"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/episode"
)

// newDialogue builds a set-up dialogue with scripted players.
func newDialogue(t *testing.T, guesserScript, judgeScript []string, instance episode.Instance) *GuessingDialogue {
	t.Helper()

	d, err := NewGuessingDialogue(Config{
		Guesser: episode.NewScriptedPlayer("guesser", guesserScript...),
		Judge:   episode.NewScriptedPlayer("judge", judgeScript...),
	})
	require.NoError(t, err)
	require.NoError(t, d.Setup(instance))
	return d
}

// play drives the dialogue to completion and returns the step results.
func play(t *testing.T, d *GuessingDialogue) []episode.StepResult {
	t.Helper()

	var results []episode.StepResult
	for !d.Done() {
		p, obs, err := d.Observe()
		require.NoError(t, err)

		response, err := p.Respond(context.Background(), obs)
		require.NoError(t, err)

		result, err := d.Step(response)
		require.NoError(t, err)
		results = append(results, result)

		require.Less(t, len(results), 100, "dialogue failed to terminate")
	}
	return results
}

func TestNewGuessingDialogue_Validation(t *testing.T) {
	guesser := episode.NewScriptedPlayer("guesser")
	judge := episode.NewScriptedPlayer("judge")

	t.Run("missing players", func(t *testing.T) {
		_, err := NewGuessingDialogue(Config{Guesser: guesser})
		assert.ErrorIs(t, err, ErrNilPlayer)
	})

	t.Run("inverted bounds", func(t *testing.T) {
		_, err := NewGuessingDialogue(Config{Guesser: guesser, Judge: judge, Low: 10, High: 5})
		assert.ErrorIs(t, err, ErrBadBounds)
	})

	t.Run("negative turn limit", func(t *testing.T) {
		_, err := NewGuessingDialogue(Config{Guesser: guesser, Judge: judge, TurnLimit: -1})
		assert.ErrorIs(t, err, ErrBadInstance)
	})

	t.Run("defaults", func(t *testing.T) {
		d, err := NewGuessingDialogue(Config{Guesser: guesser, Judge: judge})
		require.NoError(t, err)
		require.NoError(t, d.Setup(nil))
		assert.Equal(t, (DefaultLow+DefaultHigh)/2, d.Target())
	})
}

func TestSetup_InstanceValues(t *testing.T) {
	t.Run("target", func(t *testing.T) {
		d := newDialogue(t, nil, nil, episode.Instance{"target": 37})
		assert.Equal(t, 37, d.Target())
	})

	t.Run("target from yaml float", func(t *testing.T) {
		d := newDialogue(t, nil, nil, episode.Instance{"target": float64(42)})
		assert.Equal(t, 42, d.Target())
	})

	t.Run("target out of range", func(t *testing.T) {
		d, err := NewGuessingDialogue(Config{
			Guesser: episode.NewScriptedPlayer("guesser"),
			Judge:   episode.NewScriptedPlayer("judge"),
		})
		require.NoError(t, err)
		err = d.Setup(episode.Instance{"target": 1000})
		assert.ErrorIs(t, err, ErrBadInstance)
	})

	t.Run("unparsable target", func(t *testing.T) {
		d, err := NewGuessingDialogue(Config{
			Guesser: episode.NewScriptedPlayer("guesser"),
			Judge:   episode.NewScriptedPlayer("judge"),
		})
		require.NoError(t, err)
		err = d.Setup(episode.Instance{"target": "not a number"})
		assert.ErrorIs(t, err, ErrBadInstance)
	})

	t.Run("turn limit override", func(t *testing.T) {
		d := newDialogue(t, []string{"1"}, []string{"higher"},
			episode.Instance{"turn_limit": 2})
		play(t, d)
		assert.Equal(t, 2, d.Turn())
	})

	t.Run("zero turn limit rejected", func(t *testing.T) {
		d, err := NewGuessingDialogue(Config{
			Guesser: episode.NewScriptedPlayer("guesser"),
			Judge:   episode.NewScriptedPlayer("judge"),
		})
		require.NoError(t, err)
		err = d.Setup(episode.Instance{"turn_limit": 0})
		assert.ErrorIs(t, err, ErrBadInstance)
	})

	t.Run("double setup", func(t *testing.T) {
		d := newDialogue(t, nil, nil, nil)
		assert.ErrorIs(t, d.Setup(nil), ErrAlreadySetup)
	})
}

func TestDialogue_RequiresSetup(t *testing.T) {
	d, err := NewGuessingDialogue(Config{
		Guesser: episode.NewScriptedPlayer("guesser"),
		Judge:   episode.NewScriptedPlayer("judge"),
	})
	require.NoError(t, err)

	_, _, err = d.Observe()
	assert.ErrorIs(t, err, ErrNotSetup)

	_, err = d.Step("50")
	assert.ErrorIs(t, err, ErrNotSetup)
}

func TestDialogue_SolvedPlaythrough(t *testing.T) {
	d := newDialogue(t,
		[]string{"50", "75", "63"},
		[]string{"higher", "lower", "correct"},
		episode.Instance{"target": 63},
	)

	results := play(t, d)

	assert.True(t, d.Solved())
	assert.Equal(t, 6, d.Turn())
	assert.Equal(t, []int{50, 75, 63}, d.Guesses())

	final := results[len(results)-1]
	assert.True(t, final.Done)
	assert.Equal(t, true, final.Info["solved"])
	assert.Equal(t, "correct", final.Info["feedback"])
}

func TestDialogue_TurnLimitExhaustion(t *testing.T) {
	d := newDialogue(t,
		[]string{"1"},
		[]string{"higher"},
		episode.Instance{"target": 99, "turn_limit": 4},
	)

	results := play(t, d)

	assert.False(t, d.Solved())
	assert.Len(t, results, 4)
	assert.True(t, results[3].Done)
	assert.False(t, results[2].Done)
}

func TestDialogue_AlternatesPlayers(t *testing.T) {
	d := newDialogue(t, []string{"50"}, []string{"higher"},
		episode.Instance{"turn_limit": 4})

	var roles []string
	for !d.Done() {
		p, obs, err := d.Observe()
		require.NoError(t, err)
		roles = append(roles, obs.Role)

		response, err := p.Respond(context.Background(), obs)
		require.NoError(t, err)
		_, err = d.Step(response)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"guesser", "judge", "guesser", "judge"}, roles)
}

func TestDialogue_Prompts(t *testing.T) {
	d := newDialogue(t, []string{"50"}, []string{"higher"},
		episode.Instance{"target": 63, "turn_limit": 6})

	_, obs, err := d.Observe()
	require.NoError(t, err)
	assert.Contains(t, obs.Content, "between 1 and 100")

	_, err = d.Step("50")
	require.NoError(t, err)

	_, obs, err = d.Observe()
	require.NoError(t, err)
	assert.Contains(t, obs.Content, "secret number is 63")
	assert.Contains(t, obs.Content, "guessed 50")

	_, err = d.Step("higher")
	require.NoError(t, err)

	_, obs, err = d.Observe()
	require.NoError(t, err)
	assert.Contains(t, obs.Content, `50 was answered "higher"`)
}

func TestDialogue_UnparsableGuessWastesTurn(t *testing.T) {
	d := newDialogue(t, nil, nil, episode.Instance{"turn_limit": 4})

	result, err := d.Step("no idea, sorry")
	require.NoError(t, err)

	assert.Equal(t, false, result.Info["parsed"])
	assert.False(t, result.Done)
	assert.Empty(t, d.Guesses())
}

func TestDialogue_LyingJudgeEndsUnsolved(t *testing.T) {
	d := newDialogue(t,
		[]string{"10"},
		[]string{"correct"},
		episode.Instance{"target": 50},
	)

	results := play(t, d)

	assert.True(t, d.Done())
	assert.False(t, d.Solved())

	final := results[len(results)-1]
	assert.Equal(t, false, final.Info["solved"])
	assert.Equal(t, true, final.Info["judge_error"])
}

func TestDialogue_VerdictParsing(t *testing.T) {
	tests := []struct {
		response string
		want     string
	}{
		{"higher", "higher"},
		{"The secret is HIGHER than that.", "higher"},
		{"lower", "lower"},
		{"Correct!", "correct"},
		{"maybe", "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseVerdict(tt.response), "response %q", tt.response)
	}
}

func TestDialogue_CloneIndependence(t *testing.T) {
	d := newDialogue(t, []string{"50", "75"}, []string{"higher"},
		episode.Instance{"target": 63, "turn_limit": 8})

	_, err := d.Step("50")
	require.NoError(t, err)
	_, err = d.Step("higher")
	require.NoError(t, err)

	cloned, err := d.Clone()
	require.NoError(t, err)
	clone := cloned.(*GuessingDialogue)

	assert.NotEqual(t, d.ID(), clone.ID())

	// Both observe the identical next context.
	_, parentObs, err := d.Observe()
	require.NoError(t, err)
	_, cloneObs, err := clone.Observe()
	require.NoError(t, err)
	assert.True(t, parentObs.Equal(cloneObs))

	// Stepping the parent leaves the clone untouched.
	_, err = d.Step("75")
	require.NoError(t, err)
	assert.Equal(t, 3, d.Turn())
	assert.Equal(t, 2, clone.Turn())
	assert.Equal(t, []int{50}, clone.Guesses())
	assert.Equal(t, []int{50, 75}, d.Guesses())
}

func TestDialogue_FinishedErrors(t *testing.T) {
	d := newDialogue(t, []string{"50"}, []string{"correct"},
		episode.Instance{"target": 50})
	play(t, d)

	_, _, err := d.Observe()
	assert.ErrorIs(t, err, episode.ErrEpisodeFinished)

	_, err = d.Step("anything")
	assert.ErrorIs(t, err, episode.ErrEpisodeFinished)
}

func TestDialogue_DrivesOrchestrator(t *testing.T) {
	root, err := NewGuessingDialogue(Config{
		Guesser: episode.NewScriptedPlayer("guesser", "63"),
		Judge:   episode.NewScriptedPlayer("judge", "correct"),
	})
	require.NoError(t, err)

	generator, err := branch.NewGenerator(2, branch.PlayerNameIs("guesser"))
	require.NoError(t, err)

	o, err := branch.NewOrchestrator(root, generator)
	require.NoError(t, err)
	require.NoError(t, o.Setup(episode.Instance{"target": 63, "turn_limit": 8}))

	// Round 1: the guesser acts, fanning the root into two branches.
	generate, leaves, err := o.Observe()
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	groups, err := generate(context.Background(), leaves)
	require.NoError(t, err)
	done, _, err := o.Step(groups)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, 3, o.Tree().Len())

	// Round 2: judges confirm on both branches, finishing the run.
	generate, leaves, err = o.Observe()
	require.NoError(t, err)
	require.Len(t, leaves, 2)
	groups, err = generate(context.Background(), leaves)
	require.NoError(t, err)
	done, infos, err := o.Step(groups)
	require.NoError(t, err)
	require.True(t, done)

	assert.Equal(t, branch.StateDone, o.State())
	assert.Equal(t, 5, o.Tree().Len())
	for _, group := range infos {
		for _, info := range group {
			assert.Equal(t, true, info["done"])
		}
	}
}
