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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianRollouts/pkg/logging"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/branch"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/episode"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/observability"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/recorder"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/storage/badger"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/telemetry"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/tree"
)

// DefaultMaxRounds caps branching rounds when the config leaves
// MaxRounds zero. Branching fan-out is exponential; an uncapped loop
// over a non-terminating episode would exhaust memory.
const DefaultMaxRounds = 32

// BranchConfig configures a branch runner.
type BranchConfig struct {
	// RunID identifies the run. Empty means a fresh uuid.
	RunID string

	// Game labels the run for events, records, and metrics.
	Game string

	// Experiment labels the run's experiment, if any.
	Experiment string

	// MaxRounds caps branching rounds. Zero means DefaultMaxRounds.
	MaxRounds int

	// KeepFinishedLeaves disables the runner's done-leaf filtering.
	// The orchestrator never prunes finished branches itself; by
	// default this runner filters them out of the active set before
	// each round so finished branches stop fanning out. Set this to
	// keep handing finished leaves back to the generator instead.
	KeepFinishedLeaves bool

	// Logger receives run progress. Nil means the package default.
	Logger *slog.Logger

	// Recorder receives rollout events. Nil means events are dropped.
	Recorder *recorder.Recorder

	// Store persists the run record and final tree snapshot. Nil
	// disables persistence.
	Store *badger.Store

	// Metrics receives rollout metrics. Nil disables metering.
	Metrics *observability.RolloutMetrics
}

// BranchReport summarizes one finished branching run.
type BranchReport struct {
	// RunID identifies the run.
	RunID string `json:"run_id"`

	// Rounds is the number of branching rounds driven.
	Rounds int `json:"rounds"`

	// Branches is the total number of branch clones created.
	Branches int `json:"branches"`

	// TreeSize is the node count of the full tree.
	TreeSize int `json:"tree_size"`

	// ActiveLeaves is the size of the final active set after
	// filtering.
	ActiveLeaves int `json:"active_leaves"`

	// Done reports whether the tree finished before the round cap.
	Done bool `json:"done"`

	// Duration is the wall-clock run time.
	Duration time.Duration `json:"duration"`
}

// BranchRunner drives one episode through the branching orchestrator.
//
// Description:
//
//	Each round observes the current active leaves, generates branch
//	candidates for them, and steps the orchestrator, growing the
//	rollout tree. Between rounds the runner filters finished leaves
//	out of the active set (the orchestrator leaves pruning to its
//	caller); a round cap bounds the exponential fan-out. The final
//	active subtree is persisted when a store is configured.
//
// Thread Safety: NOT safe for concurrent use; one Run at a time.
type BranchRunner struct {
	orch       *branch.Orchestrator
	runID      string
	game       string
	experiment string
	maxRounds  int
	keepDone   bool
	logger     *slog.Logger
	rec        *recorder.Recorder
	store      *badger.Store
	metrics    *observability.RolloutMetrics
}

// NewBranchRunner creates a branch runner over orchestrator.
//
// Outputs:
//
//	*BranchRunner - The configured runner.
//	error - ErrNilOrchestrator.
func NewBranchRunner(orchestrator *branch.Orchestrator, config BranchConfig) (*BranchRunner, error) {
	if orchestrator == nil {
		return nil, ErrNilOrchestrator
	}

	runID := config.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	maxRounds := config.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.Default().Slog().With("component", "branch_runner")
	}

	return &BranchRunner{
		orch:       orchestrator,
		runID:      runID,
		game:       config.Game,
		experiment: config.Experiment,
		maxRounds:  maxRounds,
		keepDone:   config.KeepFinishedLeaves,
		logger:     logger,
		rec:        config.Recorder,
		store:      config.Store,
		metrics:    config.Metrics,
	}, nil
}

// RunID returns the run's identity.
func (r *BranchRunner) RunID() string {
	return r.runID
}

// Run sets up the root episode and grows the tree until it is globally
// done or the round cap is reached.
//
// Inputs:
//
//	ctx - Cancels the run between rounds.
//	instance - The root episode's task payload.
//
// Outputs:
//
//	*BranchReport - Totals for the finished run.
//	error - Setup failures, context cancellation, ErrMaxRounds, or the
//	first generation/step failure.
func (r *BranchRunner) Run(ctx context.Context, instance episode.Instance) (*BranchReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "rollout.run", "BranchRunner.Run")
	defer span.End()

	start := time.Now()
	report := &BranchReport{RunID: r.runID}

	if err := r.orch.Setup(instance); err != nil {
		return nil, fmt.Errorf("setup root episode: %w", err)
	}

	r.record(recorder.TypeRunStart, recorder.RunStartData{
		Game:       r.game,
		Experiment: r.experiment,
		Sessions:   1,
	})
	if err := r.putRun(ctx, badger.StatusRunning, start, time.Time{}); err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.EpisodeStarted(r.game)
	}

	runErr := r.grow(ctx, report)

	report.Duration = time.Since(start)
	report.TreeSize = r.orch.Tree().Len()

	r.record(recorder.TypeRunEnd, recorder.RunEndData{
		Episodes:  1,
		Completed: boolToInt(report.Done),
		Duration:  report.Duration,
		Failed:    runErr != nil && !errors.Is(runErr, ErrMaxRounds),
	})
	if r.metrics != nil {
		r.metrics.EpisodeEnded(r.game)
		outcome := "done"
		if !report.Done {
			outcome = "truncated"
		}
		if runErr != nil && !errors.Is(runErr, ErrMaxRounds) {
			outcome = "error"
		}
		r.metrics.RecordEpisode(r.game, outcome)
	}

	status := badger.StatusDone
	if runErr != nil && !errors.Is(runErr, ErrMaxRounds) {
		status = badger.StatusFailed
	}
	if err := r.persist(ctx, status, start); err != nil {
		if runErr == nil {
			runErr = err
		} else {
			r.logger.Error("persist after failed run", "error", err)
		}
	}

	if runErr != nil {
		telemetry.RecordError(span, runErr)
		return report, runErr
	}

	r.logger.Info("branch run complete",
		"run_id", r.runID,
		"rounds", report.Rounds,
		"branches", report.Branches,
		"tree_size", report.TreeSize,
		"active_leaves", report.ActiveLeaves,
		"duration", report.Duration,
	)
	telemetry.SetSpanOK(span)
	return report, nil
}

// grow is the round loop: observe, filter, generate, step.
func (r *BranchRunner) grow(ctx context.Context, report *BranchReport) error {
	for round := 1; round <= r.maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		branchFn, active, err := r.orch.Observe()
		if err != nil {
			return err
		}

		parents := active
		if !r.keepDone {
			parents = filterDone(active)
		}
		report.ActiveLeaves = len(parents)
		if len(parents) == 0 {
			report.Done = true
			return nil
		}

		groups, err := branchFn(ctx, parents)
		if err != nil {
			r.fail(observability.StageGenerate, err)
			return fmt.Errorf("round %d: %w", round, err)
		}

		done, _, err := r.orch.Step(groups)
		if err != nil {
			r.fail(observability.StageStep, err)
			return fmt.Errorf("round %d: %w", round, err)
		}

		candidates := 0
		for _, group := range groups {
			candidates += len(group)
		}
		report.Rounds = round
		report.Branches += candidates

		r.record(recorder.TypeBranch, recorder.BranchData{
			Round:      round,
			Parents:    len(parents),
			Candidates: candidates,
			TreeSize:   r.orch.Tree().Len(),
		})
		if r.metrics != nil {
			r.metrics.RecordBranches(r.game, candidates)
		}
		r.logger.Debug("branching round complete",
			"round", round,
			"parents", len(parents),
			"candidates", candidates,
			"tree_size", r.orch.Tree().Len(),
		)

		if done {
			report.Done = true
			report.ActiveLeaves = activeCount(r.orch)
			return nil
		}
	}

	return fmt.Errorf("%w: %d", ErrMaxRounds, r.maxRounds)
}

// ActiveSubtree returns the subtree reachable from the current active
// leaves.
func (r *BranchRunner) ActiveSubtree() (*tree.Tree, error) {
	return r.orch.ActiveSubtree()
}

// fail emits the error event and error metric for a failed stage.
func (r *BranchRunner) fail(stage observability.Stage, err error) {
	r.logger.Error("branch run failed", "run_id", r.runID, "stage", string(stage), "error", err)
	r.record(recorder.TypeError, recorder.ErrorData{
		SessionID: -1,
		Stage:     string(stage),
		Message:   err.Error(),
	})
	if r.metrics != nil {
		r.metrics.RecordErrorStage(stage)
	}
}

// record emits one event when a recorder is configured.
func (r *BranchRunner) record(eventType recorder.Type, data any) {
	if r.rec == nil {
		return
	}
	r.rec.Record(eventType, data)
}

// putRun writes the run record when a store is configured.
func (r *BranchRunner) putRun(ctx context.Context, status string, start, end time.Time) error {
	if r.store == nil {
		return nil
	}
	rec := badger.RunRecord{
		ID:         r.runID,
		Game:       r.game,
		Experiment: r.experiment,
		Mode:       ModeBranch,
		Status:     status,
		StartedAt:  start,
		EndedAt:    end,
		Episodes:   1,
	}
	if status == badger.StatusDone {
		rec.Completed = 1
	}
	if err := r.store.PutRun(ctx, rec); err != nil {
		return fmt.Errorf("persist run %s: %w", r.runID, err)
	}
	return nil
}

// persist writes the active subtree snapshot and final run record.
func (r *BranchRunner) persist(ctx context.Context, status string, start time.Time) error {
	if r.store == nil {
		return nil
	}

	subtree, err := r.orch.ActiveSubtree()
	if err != nil {
		// Only reachable before Setup; the run record is still worth
		// writing, so log the skipped snapshot instead of failing.
		r.logger.Warn("skipping tree snapshot", "run_id", r.runID, "error", err)
	} else if err := r.store.PutTree(ctx, r.runID, subtree); err != nil {
		if r.metrics != nil {
			r.metrics.RecordErrorStage(observability.StagePersist)
		}
		return fmt.Errorf("persist tree %s: %w", r.runID, err)
	}

	return r.putRun(ctx, status, start, time.Now())
}

// filterDone drops handles whose episodes have finished.
func filterDone(handles []episode.Handle) []episode.Handle {
	alive := make([]episode.Handle, 0, len(handles))
	for _, h := range handles {
		if !h.Done() {
			alive = append(alive, h)
		}
	}
	return alive
}

// activeCount returns the surviving active-leaf count after filtering.
func activeCount(orch *branch.Orchestrator) int {
	_, active, err := orch.Observe()
	if err != nil {
		return 0
	}
	return len(filterDone(active))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
