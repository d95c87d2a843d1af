// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianRollouts/pkg/logging"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/branch"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/game"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/observability"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/recorder"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/run"
)

// runBranchCommand grows a branching rollout tree from a branch-mode
// spec. The iterator's first task seeds the root episode; use
// --experiment/--index to pick a different instance.
func runBranchCommand(cmd *cobra.Command, args []string) error {
	start := time.Now()
	cfg := outputConfig()
	logger := logging.Default().With("command", "branch")

	report, err := executeBranch(logger)
	partial := report != nil && !report.Done

	if err == nil && report != nil {
		printTitle(cfg, "Branch run complete")
		printLine(cfg, "  run id:    %s", report.RunID)
		printLine(cfg, "  rounds:    %d (%d branches)", report.Rounds, report.Branches)
		printLine(cfg, "  tree size: %d nodes, %d active leaves", report.TreeSize, report.ActiveLeaves)
		printLine(cfg, "  duration:  %s", report.Duration.Round(time.Millisecond))
	}

	code := OutputResult(cfg, "branch", start, report, partial, err)
	if code != CLIExitSuccess {
		os.Exit(code)
	}
	return nil
}

// executeBranch loads the spec, builds the orchestrator, and grows the
// tree.
func executeBranch(logger *logging.Logger) (*run.BranchReport, error) {
	spec, err := run.LoadSpec(specPath)
	if err != nil {
		return nil, err
	}
	if spec.Mode != run.ModeBranch {
		return nil, fmt.Errorf("spec mode is %q; use the run command", spec.Mode)
	}

	registry, err := run.BuildRegistry(spec)
	if err != nil {
		return nil, err
	}
	players, err := run.BuildPlayers(spec, registry)
	if err != nil {
		return nil, err
	}
	it, err := run.NewIterator(spec.Experiments, selector())
	if err != nil {
		return nil, err
	}
	task, ok := it.Next()
	if !ok {
		return nil, run.ErrNoInstances
	}

	root, err := run.BuildRoot(spec, game.DefaultRegistry(), players)
	if err != nil {
		return nil, err
	}
	generator, err := branch.NewGenerator(spec.Factor, run.BranchPredicate(spec))
	if err != nil {
		return nil, err
	}
	orch, err := branch.NewOrchestrator(root, generator)
	if err != nil {
		return nil, err
	}

	id := runID
	if id == "" {
		id = uuid.NewString()
	}
	rec := recorder.NewRecorder(recorder.WithRunID(id))

	store, err := openStore(logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if stop := startEventServer(rec, store, logger); stop != nil {
		defer stop()
	}

	rounds := maxRounds
	if rounds == 0 {
		rounds = spec.MaxRounds
	}
	runner, err := run.NewBranchRunner(orch, run.BranchConfig{
		RunID:              id,
		Game:               spec.Game,
		Experiment:         task.Experiment,
		MaxRounds:          rounds,
		KeepFinishedLeaves: keepDone,
		Logger:             logger.Slog(),
		Recorder:           rec,
		Store:              store,
		Metrics:            observability.InitMetrics(),
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := signalContext()
	defer cancel()

	return runner.Run(ctx, task.Instance)
}
