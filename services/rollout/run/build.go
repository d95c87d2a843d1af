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
	"fmt"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/branch"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/episode"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/game"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/model"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/player"
)

// Player role names the built-in game binds to.
const (
	RoleGuesser = "guesser"
	RoleJudge   = "judge"
)

// BuildRegistry constructs the model clients a spec declares.
//
// Description:
//
//	One client per ModelSpec, registered under the spec's name. The
//	"openai" backend resolves its key from the spec's env var or
//	secret file; the "scripted" backend queues the spec's responses
//	(intended for offline runs and tests).
//
// Outputs:
//
//	*model.Registry - Registry holding every declared client.
//	error - ErrUnknownBackend, key resolution failures, or duplicate
//	names (already rejected by Validate, but the registry enforces it
//	too).
func BuildRegistry(spec *RunSpec) (*model.Registry, error) {
	registry := model.NewRegistry()

	for _, ms := range spec.Models {
		var client model.Client

		switch ms.Backend {
		case "openai":
			keyEnv := ms.KeyEnv
			if keyEnv == "" {
				keyEnv = "OPENAI_API_KEY"
			}
			cfg := model.DefaultOpenAIConfig()
			cfg.Model = ms.Model
			cfg.BaseURL = ms.BaseURL
			cfg.Key = model.LoadAPIKey(keyEnv, ms.KeyFile)
			cfg.RequestsPerSecond = ms.RequestsPerSecond

			c, err := model.NewOpenAIClient(cfg)
			if err != nil {
				return nil, fmt.Errorf("build model %q: %w", ms.Name, err)
			}
			client = c

		case "scripted":
			c := model.NewScriptedClient().WithName(ms.Name).WithModel(ms.Model)
			for _, response := range ms.Responses {
				c.QueueContent(response)
			}
			client = c

		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, ms.Backend)
		}

		if err := registry.Register(ms.Name, client); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// BuildPlayers constructs the players a spec declares, keyed by role
// name.
func BuildPlayers(spec *RunSpec, registry *model.Registry) (map[string]episode.Player, error) {
	players := make(map[string]episode.Player, len(spec.Players))

	for _, ps := range spec.Players {
		client, err := registry.Get(ps.Model)
		if err != nil {
			return nil, fmt.Errorf("build player %q: %w", ps.Name, err)
		}

		p, err := player.New(player.Config{
			Name:         ps.Name,
			Client:       client,
			SystemPrompt: ps.SystemPrompt,
			MaxTokens:    ps.MaxTokens,
			Temperature:  ps.Temperature,
		})
		if err != nil {
			return nil, err
		}
		players[ps.Name] = p
	}

	return players, nil
}

// BuildRoot constructs one fresh, un-setup episode root for the spec's
// game.
//
// The built-in game expects the "guesser" and "judge" roles; a spec
// missing either fails here, before any session exists.
func BuildRoot(spec *RunSpec, games *game.Registry, players map[string]episode.Player) (branch.Root, error) {
	factory, err := games.Get(spec.Game)
	if err != nil {
		return nil, err
	}

	guesser, ok := players[RoleGuesser]
	if !ok {
		return nil, fmt.Errorf("%w: game %q needs a %q player", ErrInvalidSpec, spec.Game, RoleGuesser)
	}
	judge, ok := players[RoleJudge]
	if !ok {
		return nil, fmt.Errorf("%w: game %q needs a %q player", ErrInvalidSpec, spec.Game, RoleJudge)
	}

	return factory(game.Config{
		Guesser:   guesser,
		Judge:     judge,
		TurnLimit: spec.TurnLimit,
	})
}

// BuildSessions constructs one set-up session per iterator task, in
// task order. Session ids are assigned sequentially from zero.
func BuildSessions(spec *RunSpec, games *game.Registry, players map[string]episode.Player, it *Iterator) ([]*episode.Session, error) {
	sessions := make([]*episode.Session, 0, it.Remaining())

	id := 0
	for {
		task, ok := it.Next()
		if !ok {
			break
		}

		root, err := BuildRoot(spec, games, players)
		if err != nil {
			return nil, err
		}
		if err := root.Setup(task.Instance); err != nil {
			return nil, fmt.Errorf("setup %s[%d]: %w", task.Experiment, task.Index, err)
		}

		session, err := episode.NewSession(id, root, task.Instance)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
		id++
	}

	if len(sessions) == 0 {
		return nil, ErrNoSessions
	}
	return sessions, nil
}

// BranchPredicate converts the spec's branch player selection into a
// generator predicate. Nil (always branch) when no players are named.
func BranchPredicate(spec *RunSpec) branch.Predicate {
	if len(spec.BranchPlayers) == 0 {
		return nil
	}
	return branch.PlayerNameIs(spec.BranchPlayers...)
}
