// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package player

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/episode"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/model"
)

// ModelBacked is implemented by players whose responses come from a
// model backend. Rows whose players share a Client are answered with
// one batched generation instead of per-row calls.
type ModelBacked interface {
	episode.Player

	// Client returns the backing model client.
	Client() model.Client

	// BuildRequest converts an observed context into a model request.
	BuildRequest(obs episode.Context) model.Request
}

// Result is one answered batch row.
type Result struct {
	// RowID is the caller's row identifier (session id for scheduler
	// batches).
	RowID int

	// Context is the observation the row answered.
	Context episode.Context

	// Response is the player's generated response.
	Response string
}

// BatchRespond answers every row of one scheduler batch.
//
// Description:
//
//	Validates that the parallel inputs agree on row count, groups rows
//	by backing model client, dispatches one batched generation per
//	backend (backends run concurrently), and reassembles per-row
//	results in input order. Rows whose players do not expose a backend
//	are answered row-by-row via Respond.
//
// Inputs:
//
//	ctx - Context for cancellation and timeout.
//	rowIDs - Caller row identifiers, aligned with players/contexts.
//	players - The player observed on each row.
//	contexts - The observation for each row.
//
// Outputs:
//
//	[]Result - One result per row, in input order.
//	error - ErrLengthMismatch before any dispatch, or the first
//	dispatch failure (the whole batch fails).
//
// Thread Safety: This function is safe for concurrent use.
func BatchRespond(
	ctx context.Context,
	rowIDs []int,
	players []episode.Player,
	contexts []episode.Context,
) ([]Result, error) {
	if len(players) != len(contexts) || len(players) != len(rowIDs) {
		return nil, fmt.Errorf("%w: %d ids, %d players, %d contexts",
			ErrLengthMismatch, len(rowIDs), len(players), len(contexts))
	}
	if len(players) == 0 {
		return nil, nil
	}

	results := make([]Result, len(players))
	for i := range results {
		results[i] = Result{RowID: rowIDs[i], Context: contexts[i]}
	}

	// Group rows by backing client. Map iteration order does not
	// matter; each group writes disjoint result indices.
	grouped := make(map[model.Client][]int)
	var loose []int
	for i, p := range players {
		if mb, ok := p.(ModelBacked); ok && mb.Client() != nil {
			client := mb.Client()
			grouped[client] = append(grouped[client], i)
			continue
		}
		loose = append(loose, i)
	}

	g, gCtx := errgroup.WithContext(ctx)

	for client, rows := range grouped {
		g.Go(func() error {
			requests := make([]model.Request, len(rows))
			for j, i := range rows {
				requests[j] = players[i].(ModelBacked).BuildRequest(contexts[i])
			}

			responses, err := client.GenerateBatch(gCtx, requests)
			if err != nil {
				return fmt.Errorf("batch dispatch via %s/%s: %w",
					client.Name(), client.Model(), err)
			}
			if len(responses) != len(requests) {
				return fmt.Errorf("%w: %s/%s returned %d responses for %d requests",
					ErrBadBatchShape, client.Name(), client.Model(),
					len(responses), len(requests))
			}

			for j, i := range rows {
				results[i].Response = responses[j].Content
			}
			return nil
		})
	}

	for _, i := range loose {
		g.Go(func() error {
			response, err := players[i].Respond(gCtx, contexts[i])
			if err != nil {
				return fmt.Errorf("respond row %d: %w", rowIDs[i], err)
			}
			results[i].Response = response
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RespondBatch answers an episode scheduler batch directly.
//
// Thin adapter over BatchRespond for callers holding an episode.Batch.
func RespondBatch(ctx context.Context, batch episode.Batch) ([]Result, error) {
	return BatchRespond(ctx, batch.SessionIDs, batch.Players, batch.Contexts)
}
