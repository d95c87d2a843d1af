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
	"github.com/AleutianAI/AleutianRollouts/services/rollout/game"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/observability"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/recorder"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/run"
)

// runBatchCommand drives a batch-mode spec to completion.
func runBatchCommand(cmd *cobra.Command, args []string) error {
	start := time.Now()
	cfg := outputConfig()
	logger := logging.Default().With("command", "run")

	report, err := executeBatch(logger)
	partial := report != nil && report.Completed < report.Episodes

	if err == nil && report != nil {
		printTitle(cfg, "Batch run complete")
		printLine(cfg, "  run id:    %s", report.RunID)
		printLine(cfg, "  episodes:  %d (%d completed)", report.Episodes, report.Completed)
		printLine(cfg, "  turns:     %d in %d batches", report.Turns, report.Batches)
		printLine(cfg, "  duration:  %s", report.Duration.Round(time.Millisecond))
	}

	code := OutputResult(cfg, "run", start, report, partial, err)
	if code != CLIExitSuccess {
		os.Exit(code)
	}
	return nil
}

// executeBatch loads the spec, builds the run, and drives it.
func executeBatch(logger *logging.Logger) (*run.BatchReport, error) {
	spec, err := run.LoadSpec(specPath)
	if err != nil {
		return nil, err
	}
	if spec.Mode != run.ModeBatch {
		return nil, fmt.Errorf("spec mode is %q; use the branch command", spec.Mode)
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
	sessions, err := run.BuildSessions(spec, game.DefaultRegistry(), players, it)
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

	runner, err := run.NewBatchRunner(run.BatchConfig{
		RunID:      id,
		Game:       spec.Game,
		Experiment: experiment,
		BatchSize:  spec.BatchSize,
		Logger:     logger.Slog(),
		Recorder:   rec,
		Store:      store,
		Metrics:    observability.InitMetrics(),
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := signalContext()
	defer cancel()

	return runner.Run(ctx, sessions)
}
