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
	"fmt"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/episode"
)

// Predicate decides whether a parent whose turn belongs to the given
// player branches at full factor. A nil predicate branches always.
type Predicate func(player episode.Player) bool

// PlayerNameIs returns a predicate matching players by name, the common
// policy of branching only on one participant's turns.
func PlayerNameIs(names ...string) Predicate {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return func(player episode.Player) bool {
		_, ok := set[player.Name()]
		return ok
	}
}

// Generator forks parent episodes into candidate continuations.
//
// Description:
//
//	For each parent, in input order: observe the decision point; fork
//	at the configured factor when the predicate holds for the acting
//	player, otherwise fork once (the episode still advances, it just
//	does not multiply); per fork, clone the parent, verify the clone
//	observes the parent's exact (player, context), sample one response
//	from the clone's player given the parent context, and package the
//	five-tuple Candidate. Output groups align positionally with the
//	parents.
//
// Thread Safety: safe for concurrent use; the generator itself is
// immutable. The handles it touches follow the Handle contract and are
// never shared across calls by the orchestration layers.
type Generator struct {
	factor    int
	predicate Predicate
}

// NewGenerator creates a generator with the given fork factor and
// branching predicate. factor must be positive; a nil predicate
// branches every parent.
func NewGenerator(factor int, predicate Predicate) (*Generator, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidFactor, factor)
	}
	return &Generator{factor: factor, predicate: predicate}, nil
}

// Factor returns the configured fork factor.
func (g *Generator) Factor() int {
	return g.factor
}

// Generate produces one candidate group per parent, aligned with the
// input order.
//
// Outputs:
//
//	groups[i] holds the candidates forked from parents[i]: factor
//	candidates when the predicate holds for parents[i]'s acting
//	player, exactly one otherwise. Any handle or player error aborts
//	generation and propagates; a clone that observes a different
//	(player, context) than its parent fails with ErrBranchDiverged.
func (g *Generator) Generate(ctx context.Context, parents []episode.Handle) ([][]Candidate, error) {
	groups := make([][]Candidate, 0, len(parents))
	for i, parent := range parents {
		if parent == nil {
			return nil, fmt.Errorf("%w: position %d", ErrNilParent, i)
		}
		player, obs, err := parent.Observe()
		if err != nil {
			return nil, fmt.Errorf("observe parent %s: %w", parent.ID(), err)
		}

		forks := 1
		if g.predicate == nil || g.predicate(player) {
			forks = g.factor
		}

		group := make([]Candidate, 0, forks)
		for f := 0; f < forks; f++ {
			branch, err := parent.Clone()
			if err != nil {
				return nil, fmt.Errorf("clone parent %s (fork %d): %w", parent.ID(), f, err)
			}
			branchPlayer, branchObs, err := branch.Observe()
			if err != nil {
				return nil, fmt.Errorf("observe branch %s: %w", branch.ID(), err)
			}
			if branchPlayer.Name() != player.Name() {
				return nil, fmt.Errorf("%w: clone of %s observes player %q, parent observed %q",
					ErrBranchDiverged, parent.ID(), branchPlayer.Name(), player.Name())
			}
			if !branchObs.Equal(obs) {
				return nil, fmt.Errorf("%w: clone of %s observes role %q content %q, parent observed role %q content %q",
					ErrBranchDiverged, parent.ID(),
					branchObs.Role, branchObs.Content, obs.Role, obs.Content)
			}

			response, err := branchPlayer.Respond(ctx, obs)
			if err != nil {
				return nil, fmt.Errorf("sample response for branch %s: %w", branch.ID(), err)
			}

			group = append(group, Candidate{
				Parent:        parent,
				ParentPlayer:  player,
				ParentContext: obs,
				Branch:        branch,
				Response:      response,
			})
		}
		groups = append(groups, group)
	}
	return groups, nil
}
