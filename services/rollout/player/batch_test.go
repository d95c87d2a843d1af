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
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/episode"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/model"
)

// batchCountingClient counts GenerateBatch dispatches.
type batchCountingClient struct {
	*model.ScriptedClient
	batchCalls atomic.Int32
}

func newBatchCountingClient(prefix string) *batchCountingClient {
	scripted := model.NewScriptedClient().
		WithResponseFunc(func(req model.Request) (model.Response, error) {
			return model.Response{Content: prefix + ": " + req.Messages[0].Content}, nil
		})
	return &batchCountingClient{ScriptedClient: scripted}
}

func (c *batchCountingClient) GenerateBatch(ctx context.Context, requests []model.Request) ([]model.Response, error) {
	c.batchCalls.Add(1)
	return c.ScriptedClient.GenerateBatch(ctx, requests)
}

// misalignedClient drops the last response of every batch.
type misalignedClient struct {
	*model.ScriptedClient
}

func (c *misalignedClient) GenerateBatch(ctx context.Context, requests []model.Request) ([]model.Response, error) {
	responses, err := c.ScriptedClient.GenerateBatch(ctx, requests)
	if err != nil || len(responses) == 0 {
		return responses, err
	}
	return responses[:len(responses)-1], nil
}

func batchContexts(contents ...string) []episode.Context {
	contexts := make([]episode.Context, len(contents))
	for i, content := range contents {
		contexts[i] = episode.Context{Role: "game", Content: content}
	}
	return contexts
}

func TestBatchRespond_LengthMismatch(t *testing.T) {
	client := model.NewScriptedClient()
	p := newTestPlayer(t, "alpha", client)

	_, err := BatchRespond(context.Background(),
		[]int{1, 2},
		[]episode.Player{p},
		batchContexts("only one"),
	)

	require.ErrorIs(t, err, ErrLengthMismatch)
	assert.Zero(t, client.CallCount(), "no dispatch before validation")
}

func TestBatchRespond_Empty(t *testing.T) {
	results, err := BatchRespond(context.Background(), nil, nil, nil)

	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestBatchRespond_SharedBackendBatchesOnce(t *testing.T) {
	client := newBatchCountingClient("m")
	alpha := newTestPlayer(t, "alpha", client)
	beta := newTestPlayer(t, "beta", client)

	results, err := BatchRespond(context.Background(),
		[]int{10, 11, 12},
		[]episode.Player{alpha, beta, alpha},
		batchContexts("c0", "c1", "c2"),
	)

	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, int32(1), client.batchCalls.Load(), "one batched dispatch for the shared backend")
	for i, want := range []string{"m: c0", "m: c1", "m: c2"} {
		assert.Equal(t, want, results[i].Response)
	}
	assert.Equal(t, []int{10, 11, 12}, []int{results[0].RowID, results[1].RowID, results[2].RowID})
}

func TestBatchRespond_GroupsPerBackend(t *testing.T) {
	clientA := newBatchCountingClient("A")
	clientB := newBatchCountingClient("B")
	pa := newTestPlayer(t, "alpha", clientA)
	pb := newTestPlayer(t, "beta", clientB)

	results, err := BatchRespond(context.Background(),
		[]int{0, 1, 2},
		[]episode.Player{pa, pb, pa},
		batchContexts("x", "y", "z"),
	)

	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, int32(1), clientA.batchCalls.Load())
	assert.Equal(t, int32(1), clientB.batchCalls.Load())
	assert.Equal(t, "A: x", results[0].Response)
	assert.Equal(t, "B: y", results[1].Response)
	assert.Equal(t, "A: z", results[2].Response)
}

func TestBatchRespond_LoosePlayersAnswerRowByRow(t *testing.T) {
	looseA := episode.NewScriptedPlayer("plain-a", "one")
	looseB := episode.NewScriptedPlayer("plain-b", "two")

	results, err := BatchRespond(context.Background(),
		[]int{7, 8},
		[]episode.Player{looseA, looseB},
		batchContexts("first", "second"),
	)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, looseA.Calls)
	assert.Equal(t, 1, looseB.Calls)
	assert.Equal(t, "one", results[0].Response)
	assert.Equal(t, "two", results[1].Response)
}

func TestBatchRespond_MixedGroupedAndLoose(t *testing.T) {
	client := newBatchCountingClient("m")
	backed := newTestPlayer(t, "backed", client)
	loose := episode.NewScriptedPlayer("plain", "loose answer")

	results, err := BatchRespond(context.Background(),
		[]int{0, 1},
		[]episode.Player{backed, loose},
		batchContexts("for model", "for script"),
	)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "m: for model", results[0].Response)
	assert.Equal(t, "loose answer", results[1].Response)
	assert.Equal(t, int32(1), client.batchCalls.Load())
}

func TestBatchRespond_DispatchErrorFailsBatch(t *testing.T) {
	backendErr := errors.New("backend down")
	client := model.NewScriptedClient().WithError(backendErr)
	p := newTestPlayer(t, "alpha", client)

	_, err := BatchRespond(context.Background(),
		[]int{0, 1},
		[]episode.Player{p, p},
		batchContexts("a", "b"),
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, backendErr)
	assert.Contains(t, err.Error(), "batch dispatch via")
}

func TestBatchRespond_LooseErrorNamesRow(t *testing.T) {
	loose := episode.NewScriptedPlayer("plain")
	loose.FailRespond = errors.New("scripted failure")

	_, err := BatchRespond(context.Background(),
		[]int{42},
		[]episode.Player{loose},
		batchContexts("a"),
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, loose.FailRespond)
	assert.Contains(t, err.Error(), "respond row 42")
}

func TestBatchRespond_MisalignedBackend(t *testing.T) {
	client := &misalignedClient{ScriptedClient: model.NewScriptedClient()}
	p := newTestPlayer(t, "alpha", client)

	_, err := BatchRespond(context.Background(),
		[]int{0, 1},
		[]episode.Player{p, p},
		batchContexts("a", "b"),
	)

	require.ErrorIs(t, err, ErrBadBatchShape)
}

func TestRespondBatch_AdaptsEpisodeBatch(t *testing.T) {
	client := newBatchCountingClient("m")
	p := newTestPlayer(t, "alpha", client)

	batch := episode.Batch{
		SessionIDs: []int{3, 4},
		Players:    []episode.Player{p, p},
		Contexts:   batchContexts("c3", "c4"),
	}

	results, err := RespondBatch(context.Background(), batch)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 3, results[0].RowID)
	assert.Equal(t, "m: c3", results[0].Response)
	assert.Equal(t, "m: c4", results[1].Response)
}
