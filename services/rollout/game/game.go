// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package game ships a built-in dialogue episode so runs work end to
// end without external episode code.
//
// The guessing dialogue alternates two players: a guesser proposing
// numbers and a judge relaying higher/lower/correct feedback. The
// episode ends when the judge answers "correct" or the turn limit is
// reached. It implements both episode.Handle and branch.Root, so the
// same type drives batch runs and branching runs.
package game

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/branch"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/episode"
)

// firstInt extracts the first integer in a response.
var firstInt = regexp.MustCompile(`-?\d+`)

// Default bounds and turn limit for the guessing dialogue.
const (
	DefaultLow       = 1
	DefaultHigh      = 100
	DefaultTurnLimit = 16
)

// Config configures a guessing dialogue.
type Config struct {
	// Guesser proposes numbers. Required.
	Guesser episode.Player

	// Judge relays higher/lower/correct feedback. Required.
	Judge episode.Player

	// Low and High bound the guessing range inclusively. Zero values
	// mean 1..100.
	Low  int
	High int

	// TurnLimit caps total turns (guesser and judge turns both count).
	// Zero means 16.
	TurnLimit int
}

// GuessingDialogue is a two-player number guessing episode.
//
// Description:
//
//	Even turns observe the guesser with the range and the latest
//	feedback; odd turns observe the judge with the target and the
//	latest guess. All state is plain values, so Clone yields a fully
//	independent copy whose next observation matches the parent's.
//
// Thread Safety: NOT safe for concurrent use, matching the Handle
// contract.
type GuessingDialogue struct {
	id        string
	guesser   episode.Player
	judge     episode.Player
	low       int
	high      int
	turnLimit int

	setup     bool
	target    int
	turn      int
	lastGuess int
	haveGuess bool
	feedback  string
	solved    bool
	guesses   []int
}

// NewGuessingDialogue creates a dialogue. Setup must be called before
// the episode is observed or stepped.
func NewGuessingDialogue(config Config) (*GuessingDialogue, error) {
	if config.Guesser == nil || config.Judge == nil {
		return nil, ErrNilPlayer
	}

	low, high := config.Low, config.High
	if low == 0 && high == 0 {
		low, high = DefaultLow, DefaultHigh
	}
	if low >= high {
		return nil, fmt.Errorf("%w: [%d, %d]", ErrBadBounds, low, high)
	}

	turnLimit := config.TurnLimit
	if turnLimit == 0 {
		turnLimit = DefaultTurnLimit
	}
	if turnLimit < 0 {
		return nil, fmt.Errorf("%w: turn limit %d", ErrBadInstance, turnLimit)
	}

	return &GuessingDialogue{
		id:        uuid.NewString(),
		guesser:   config.Guesser,
		judge:     config.Judge,
		low:       low,
		high:      high,
		turnLimit: turnLimit,
	}, nil
}

// Setup binds per-episode instance values and arms the episode.
//
// Recognized instance keys:
//
//	"target" - the number to guess (defaults to the range midpoint)
//	"turn_limit" - overrides the configured turn limit
//
// Outputs:
//
//	error - ErrAlreadySetup on a second call, ErrBadInstance for
//	out-of-range values.
func (g *GuessingDialogue) Setup(instance episode.Instance) error {
	if g.setup {
		return ErrAlreadySetup
	}

	target := (g.low + g.high) / 2
	if v, ok := instance["target"]; ok {
		n, err := instanceInt(v)
		if err != nil {
			return fmt.Errorf("%w: target: %v", ErrBadInstance, err)
		}
		target = n
	}
	if target < g.low || target > g.high {
		return fmt.Errorf("%w: target %d outside [%d, %d]",
			ErrBadInstance, target, g.low, g.high)
	}

	if v, ok := instance["turn_limit"]; ok {
		n, err := instanceInt(v)
		if err != nil {
			return fmt.Errorf("%w: turn_limit: %v", ErrBadInstance, err)
		}
		if n <= 0 {
			return fmt.Errorf("%w: turn_limit %d", ErrBadInstance, n)
		}
		g.turnLimit = n
	}

	g.target = target
	g.setup = true
	return nil
}

// ID implements episode.Handle.
func (g *GuessingDialogue) ID() string {
	return g.id
}

// Target returns the number being guessed. Zero before Setup.
func (g *GuessingDialogue) Target() int {
	return g.target
}

// Turn returns the number of turns already stepped.
func (g *GuessingDialogue) Turn() int {
	return g.turn
}

// Guesses returns the parsed guesses so far, in order.
func (g *GuessingDialogue) Guesses() []int {
	out := make([]int, len(g.guesses))
	copy(out, g.guesses)
	return out
}

// Solved reports whether the judge confirmed a correct guess.
func (g *GuessingDialogue) Solved() bool {
	return g.solved
}

// Observe implements episode.Handle.
func (g *GuessingDialogue) Observe() (episode.Player, episode.Context, error) {
	if !g.setup {
		return nil, episode.Context{}, ErrNotSetup
	}
	if g.Done() {
		return nil, episode.Context{}, episode.ErrEpisodeFinished
	}

	if g.guesserTurn() {
		return g.guesser, episode.Context{
			Role:    g.guesser.Name(),
			Content: g.guesserPrompt(),
		}, nil
	}
	return g.judge, episode.Context{
		Role:    g.judge.Name(),
		Content: g.judgePrompt(),
	}, nil
}

// Step implements episode.Handle.
func (g *GuessingDialogue) Step(response string) (episode.StepResult, error) {
	if !g.setup {
		return episode.StepResult{}, ErrNotSetup
	}
	if g.Done() {
		return episode.StepResult{}, episode.ErrEpisodeFinished
	}

	var info episode.Info
	if g.guesserTurn() {
		info = g.stepGuesser(response)
	} else {
		info = g.stepJudge(response)
	}
	g.turn++
	info["turn"] = g.turn

	return episode.StepResult{Done: g.Done(), Info: info}, nil
}

// Done implements episode.Handle.
func (g *GuessingDialogue) Done() bool {
	return g.solved || g.ended() || g.turn >= g.turnLimit
}

// Clone implements episode.Handle. The copy shares the player values
// (players are stateless from the episode's point of view) and copies
// everything else under a fresh ID.
func (g *GuessingDialogue) Clone() (episode.Handle, error) {
	guesses := make([]int, len(g.guesses))
	copy(guesses, g.guesses)

	clone := *g
	clone.id = uuid.NewString()
	clone.guesses = guesses
	return &clone, nil
}

// guesserTurn reports whether the next turn belongs to the guesser.
func (g *GuessingDialogue) guesserTurn() bool {
	return g.turn%2 == 0
}

// ended reports whether the judge has delivered a verdict of correct,
// truthful or not.
func (g *GuessingDialogue) ended() bool {
	return g.feedback == "correct"
}

func (g *GuessingDialogue) guesserPrompt() string {
	if !g.haveGuess {
		return fmt.Sprintf(
			"Guess the secret number between %d and %d. Reply with one number.",
			g.low, g.high)
	}
	return fmt.Sprintf(
		"Your guess %d was answered %q. Guess the secret number between %d and %d. Reply with one number.",
		g.lastGuess, g.feedback, g.low, g.high)
}

func (g *GuessingDialogue) judgePrompt() string {
	return fmt.Sprintf(
		"The secret number is %d. The player guessed %d. Reply with exactly one word: higher if the secret is higher, lower if the secret is lower, correct if the guess is right.",
		g.target, g.lastGuess)
}

// stepGuesser records the guesser's response. An unparsable response
// wastes the turn but does not fail the episode.
func (g *GuessingDialogue) stepGuesser(response string) episode.Info {
	match := firstInt.FindString(response)
	if match == "" {
		return episode.Info{"role": "guesser", "parsed": false}
	}

	guess, err := strconv.Atoi(match)
	if err != nil {
		return episode.Info{"role": "guesser", "parsed": false}
	}

	g.lastGuess = guess
	g.haveGuess = true
	g.guesses = append(g.guesses, guess)
	return episode.Info{"role": "guesser", "parsed": true, "guess": guess}
}

// stepJudge records the judge's verdict. "correct" ends the episode;
// the solved flag is only set when the guess actually matches, so a
// lying judge ends the run unsolved.
func (g *GuessingDialogue) stepJudge(response string) episode.Info {
	verdict := parseVerdict(response)
	g.feedback = verdict

	info := episode.Info{"role": "judge", "feedback": verdict}
	if verdict == "correct" {
		g.solved = g.haveGuess && g.lastGuess == g.target
		info["solved"] = g.solved
		if !g.solved {
			info["judge_error"] = true
		}
	}
	return info
}

// parseVerdict normalizes a judge response to one of correct, higher,
// lower, or unknown.
func parseVerdict(response string) string {
	lowered := strings.ToLower(response)
	switch {
	case strings.Contains(lowered, "correct"):
		return "correct"
	case strings.Contains(lowered, "higher"):
		return "higher"
	case strings.Contains(lowered, "lower"):
		return "lower"
	default:
		return "unknown"
	}
}

// instanceInt coerces instance values decoded from YAML or JSON.
func instanceInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

var (
	_ episode.Handle = (*GuessingDialogue)(nil)
	_ branch.Root    = (*GuessingDialogue)(nil)
)
