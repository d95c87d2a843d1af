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
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianRollouts/pkg/logging"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/episode"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/observability"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/player"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/recorder"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/storage/badger"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/telemetry"
)

// BatchConfig configures a batch runner.
type BatchConfig struct {
	// RunID identifies the run. Empty means a fresh uuid.
	RunID string

	// Game labels the run for events, records, and metrics.
	Game string

	// Experiment labels the run's experiment, if any.
	Experiment string

	// BatchSize bounds scheduler batches. Must be positive.
	BatchSize int

	// Collate converts observation chunks into batches. Nil means
	// episode.Collate.
	Collate episode.CollateFunc

	// Logger receives run progress. Nil means the package default.
	Logger *slog.Logger

	// Recorder receives rollout events. Nil means events are dropped.
	Recorder *recorder.Recorder

	// Store persists the run record and transcripts. Nil disables
	// persistence.
	Store *badger.Store

	// Metrics receives rollout metrics. Nil disables metering.
	Metrics *observability.RolloutMetrics
}

// BatchReport summarizes one finished batch run.
type BatchReport struct {
	// RunID identifies the run.
	RunID string `json:"run_id"`

	// Episodes is the number of sessions scheduled.
	Episodes int `json:"episodes"`

	// Completed is the number of episodes that reached Done.
	Completed int `json:"completed"`

	// Turns is the total number of turns stepped.
	Turns int `json:"turns"`

	// Batches is the number of batches emitted.
	Batches int `json:"batches"`

	// Duration is the wall-clock run time.
	Duration time.Duration `json:"duration"`
}

// BatchRunner drives many episodes to completion through the dynamic
// batch scheduler.
//
// Description:
//
//	One Run drains a session set: each scheduler batch is answered by
//	one batched player dispatch, then every answered session is
//	stepped by its response. Turns are recorded into per-session
//	transcripts and emitted as events; the run record and transcripts
//	are persisted when a store is configured. A handle or dispatch
//	error aborts the run (no retries, no partial salvage) and marks
//	the run failed.
//
// Thread Safety: NOT safe for concurrent use; one Run at a time.
type BatchRunner struct {
	runID      string
	game       string
	experiment string
	batchSize  int
	collate    episode.CollateFunc
	logger     *slog.Logger
	rec        *recorder.Recorder
	store      *badger.Store
	metrics    *observability.RolloutMetrics
}

// NewBatchRunner creates a batch runner from the given configuration.
//
// Outputs:
//
//	*BatchRunner - The configured runner.
//	error - episode.ErrInvalidBatchSize for a non-positive batch size.
func NewBatchRunner(config BatchConfig) (*BatchRunner, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", episode.ErrInvalidBatchSize, config.BatchSize)
	}

	runID := config.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	collate := config.Collate
	if collate == nil {
		collate = episode.Collate
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.Default().Slog().With("component", "batch_runner")
	}

	return &BatchRunner{
		runID:      runID,
		game:       config.Game,
		experiment: config.Experiment,
		batchSize:  config.BatchSize,
		collate:    collate,
		logger:     logger,
		rec:        config.Recorder,
		store:      config.Store,
		metrics:    config.Metrics,
	}, nil
}

// RunID returns the run's identity.
func (r *BatchRunner) RunID() string {
	return r.runID
}

// Run drives the session set until every session is exhausted.
//
// Inputs:
//
//	ctx - Cancels the run between batches.
//	sessions - The episodes to drive. Must be non-empty, already set up.
//
// Outputs:
//
//	*BatchReport - Totals for the finished run.
//	error - ErrNoSessions, context cancellation, or the first handle,
//	dispatch, or persistence failure.
func (r *BatchRunner) Run(ctx context.Context, sessions []*episode.Session) (*BatchReport, error) {
	if len(sessions) == 0 {
		return nil, ErrNoSessions
	}

	ctx, span := telemetry.StartSpan(ctx, "rollout.run", "BatchRunner.Run")
	defer span.End()

	poller, err := episode.NewSinglePassPoller(sessions)
	if err != nil {
		return nil, err
	}
	scheduler, err := episode.NewDynamicBatchScheduler(poller, r.collate, r.batchSize)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report := &BatchReport{RunID: r.runID, Episodes: len(sessions)}

	bySession := make(map[int]*episode.Session, len(sessions))
	transcripts := make(map[int]*recorder.Transcript, len(sessions))
	turns := make(map[int]int, len(sessions))
	finished := make(map[int]bool, len(sessions))

	r.record(recorder.TypeRunStart, recorder.RunStartData{
		Game:       r.game,
		Experiment: r.experiment,
		Sessions:   len(sessions),
	})
	if err := r.putRun(ctx, badger.StatusRunning, start, time.Time{}, report); err != nil {
		return nil, err
	}

	for _, session := range sessions {
		bySession[session.ID] = session
		transcripts[session.ID] = recorder.NewTranscript(r.runID, session.ID, session.Handle.ID(), session.Instance)
		r.record(recorder.TypeEpisodeStart, recorder.EpisodeStartData{
			SessionID: session.ID,
			HandleID:  session.Handle.ID(),
			Instance:  session.Instance,
		})
		if r.metrics != nil {
			r.metrics.EpisodeStarted(r.game)
		}
	}

	runErr := r.drive(ctx, scheduler, bySession, transcripts, turns, finished, report)

	// Sessions the run never finished (error or cancellation) still end.
	for id, session := range bySession {
		if finished[id] {
			continue
		}
		r.endEpisode(session, turns[id], false)
	}

	report.Duration = time.Since(start)
	report.Completed = len(finished)

	r.record(recorder.TypeRunEnd, recorder.RunEndData{
		Episodes:  report.Episodes,
		Completed: report.Completed,
		Duration:  report.Duration,
		Failed:    runErr != nil,
	})

	status := badger.StatusDone
	if runErr != nil {
		status = badger.StatusFailed
	}
	if err := r.persist(ctx, status, start, transcripts, finished, report); err != nil {
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

	r.logger.Info("batch run complete",
		"run_id", r.runID,
		"episodes", report.Episodes,
		"completed", report.Completed,
		"turns", report.Turns,
		"batches", report.Batches,
		"duration", report.Duration,
	)
	telemetry.SetSpanOK(span)
	return report, nil
}

// drive is the scheduler loop: batch, dispatch, step, until exhaustion.
func (r *BatchRunner) drive(
	ctx context.Context,
	scheduler *episode.DynamicBatchScheduler,
	bySession map[int]*episode.Session,
	transcripts map[int]*recorder.Transcript,
	turns map[int]int,
	finished map[int]bool,
	report *BatchReport,
) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, ok, err := scheduler.Next()
		if err != nil {
			r.fail(observability.StagePoll, -1, err)
			return err
		}
		if !ok {
			return nil
		}

		dispatchStart := time.Now()
		results, err := player.RespondBatch(ctx, batch)
		if err != nil {
			r.fail(observability.StageGenerate, -1, err)
			return err
		}

		report.Batches++
		if r.metrics != nil {
			r.metrics.RecordPass(r.game)
			r.metrics.RecordBatch(r.game, batch.Size())
		}
		r.record(recorder.TypeBatch, recorder.BatchData{
			Size:       batch.Size(),
			SessionIDs: batch.SessionIDs,
			Duration:   time.Since(dispatchStart),
		})

		for i, result := range results {
			session := bySession[result.RowID]
			stepResult, err := session.Handle.Step(result.Response)
			if err != nil {
				r.fail(observability.StageStep, result.RowID, err)
				return fmt.Errorf("step session %d: %w", result.RowID, err)
			}

			playerName := batch.Players[i].Name()
			turns[result.RowID]++
			report.Turns++

			transcripts[result.RowID].AddTurn(playerName, result.Context, result.Response, stepResult)
			r.record(recorder.TypeTurn, recorder.TurnData{
				SessionID: result.RowID,
				HandleID:  session.Handle.ID(),
				Turn:      turns[result.RowID],
				Player:    playerName,
				Context:   result.Context.Content,
				Response:  result.Response,
				Done:      stepResult.Done,
				Info:      stepResult.Info,
			})
			if r.metrics != nil {
				r.metrics.RecordTurn(r.game, playerName)
			}

			if stepResult.Done && !finished[result.RowID] {
				finished[result.RowID] = true
				r.endEpisode(session, turns[result.RowID], true)
			}
		}
	}
}

// endEpisode emits the episode end event and settles the gauges.
func (r *BatchRunner) endEpisode(session *episode.Session, turns int, done bool) {
	r.record(recorder.TypeEpisodeEnd, recorder.EpisodeEndData{
		SessionID: session.ID,
		HandleID:  session.Handle.ID(),
		Turns:     turns,
		Done:      done,
	})
	if r.metrics != nil {
		r.metrics.EpisodeEnded(r.game)
		outcome := "done"
		if !done {
			outcome = "truncated"
		}
		r.metrics.RecordEpisode(r.game, outcome)
	}
}

// fail emits the error event and error metric for a failed stage.
func (r *BatchRunner) fail(stage observability.Stage, sessionID int, err error) {
	r.logger.Error("batch run failed", "run_id", r.runID, "stage", string(stage), "error", err)
	r.record(recorder.TypeError, recorder.ErrorData{
		SessionID: sessionID,
		Stage:     string(stage),
		Message:   err.Error(),
	})
	if r.metrics != nil {
		r.metrics.RecordErrorStage(stage)
	}
}

// record emits one event when a recorder is configured.
func (r *BatchRunner) record(eventType recorder.Type, data any) {
	if r.rec == nil {
		return
	}
	r.rec.Record(eventType, data)
}

// putRun writes the run record when a store is configured.
func (r *BatchRunner) putRun(ctx context.Context, status string, start, end time.Time, report *BatchReport) error {
	if r.store == nil {
		return nil
	}
	rec := badger.RunRecord{
		ID:         r.runID,
		Game:       r.game,
		Experiment: r.experiment,
		Mode:       ModeBatch,
		Status:     status,
		StartedAt:  start,
		EndedAt:    end,
		Episodes:   report.Episodes,
		Completed:  report.Completed,
	}
	if err := r.store.PutRun(ctx, rec); err != nil {
		return fmt.Errorf("persist run %s: %w", r.runID, err)
	}
	return nil
}

// persist finalizes transcripts and the run record.
func (r *BatchRunner) persist(
	ctx context.Context,
	status string,
	start time.Time,
	transcripts map[int]*recorder.Transcript,
	finished map[int]bool,
	report *BatchReport,
) error {
	if r.store == nil {
		return nil
	}

	for id, transcript := range transcripts {
		rec := transcript.Finalize(finished[id])
		if err := r.store.PutTranscript(ctx, rec); err != nil {
			if r.metrics != nil {
				r.metrics.RecordErrorStage(observability.StagePersist)
			}
			return fmt.Errorf("persist transcript %s/%d: %w", r.runID, id, err)
		}
	}

	return r.putRun(ctx, status, start, time.Now(), report)
}
