// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the rollout
// platform.
//
// # Description
//
// This package implements Prometheus metrics for monitoring episode
// rollouts. Metrics include:
//   - Pass and batch counters (by game)
//   - Batch fill histograms (rows per emitted batch)
//   - Episode and turn counters (by game, player, outcome)
//   - Branching counters (forks created per round)
//   - Model dispatch latency histograms (by backend and model)
//   - Active episode gauges
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint of `rollouts serve`.
// Use with Prometheus + Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "rollouts"

// Subsystem for episode rollout metrics
const rolloutSubsystem = "episode"

// RolloutMetrics holds all Prometheus metrics for episode rollouts.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring scheduler
// throughput, branching fan-out, and model dispatch latency. Initialize
// once at startup via InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type RolloutMetrics struct {
	// PassesTotal counts poller passes by game.
	// Labels: game
	PassesTotal *prometheus.CounterVec

	// BatchesTotal counts emitted batches by game.
	// Labels: game
	BatchesTotal *prometheus.CounterVec

	// BatchRows measures the fill of emitted batches in rows.
	// Labels: game
	BatchRows *prometheus.HistogramVec

	// EpisodesTotal counts finished episodes by game and outcome.
	// Labels: game, outcome (done, truncated, error)
	EpisodesTotal *prometheus.CounterVec

	// TurnsTotal counts applied turns by game and player.
	// Labels: game, player
	TurnsTotal *prometheus.CounterVec

	// BranchesTotal counts branch clones created by game.
	// Labels: game
	BranchesTotal *prometheus.CounterVec

	// ActiveEpisodes tracks episodes not yet exhausted.
	// Labels: game
	ActiveEpisodes *prometheus.GaugeVec

	// ModelRequestsTotal counts model dispatches by backend, model, and status.
	// Labels: backend, model, status (success, error)
	ModelRequestsTotal *prometheus.CounterVec

	// ModelLatencySeconds measures model dispatch latency.
	// Labels: backend, model
	ModelLatencySeconds *prometheus.HistogramVec

	// ErrorsTotal counts rollout errors by stage.
	// Labels: stage (poll, generate, step, persist)
	ErrorsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of RolloutMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *RolloutMetrics

var initOnce sync.Once

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics with the default
// registry. Call once at application startup; repeated calls return
// the same instance (registration happens exactly once).
//
// # Outputs
//
//   - *RolloutMetrics: The initialized metrics instance.
//
// # Examples
//
//	func main() {
//	    metrics := observability.InitMetrics()
//	    // ... start runners ...
//	}
func InitMetrics() *RolloutMetrics {
	initOnce.Do(func() {
		DefaultMetrics = &RolloutMetrics{
			PassesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: rolloutSubsystem,
					Name:      "passes_total",
					Help:      "Total poller passes by game",
				},
				[]string{"game"},
			),

			BatchesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: rolloutSubsystem,
					Name:      "batches_total",
					Help:      "Total emitted batches by game",
				},
				[]string{"game"},
			),

			BatchRows: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: rolloutSubsystem,
					Name:      "batch_rows",
					Help:      "Rows per emitted batch",
					Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
				},
				[]string{"game"},
			),

			EpisodesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: rolloutSubsystem,
					Name:      "episodes_total",
					Help:      "Total finished episodes by game and outcome",
				},
				[]string{"game", "outcome"},
			),

			TurnsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: rolloutSubsystem,
					Name:      "turns_total",
					Help:      "Total applied turns by game and player",
				},
				[]string{"game", "player"},
			),

			BranchesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: rolloutSubsystem,
					Name:      "branches_total",
					Help:      "Total branch clones created by game",
				},
				[]string{"game"},
			),

			ActiveEpisodes: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Subsystem: rolloutSubsystem,
					Name:      "active_episodes",
					Help:      "Episodes not yet exhausted",
				},
				[]string{"game"},
			),

			ModelRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: "model",
					Name:      "requests_total",
					Help:      "Total model dispatches by backend, model, and status",
				},
				[]string{"backend", "model", "status"},
			),

			ModelLatencySeconds: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: "model",
					Name:      "latency_seconds",
					Help:      "Model dispatch latency in seconds",
					Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
				},
				[]string{"backend", "model"},
			),

			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: rolloutSubsystem,
					Name:      "errors_total",
					Help:      "Total rollout errors by stage",
				},
				[]string{"stage"},
			),
		}
	})

	return DefaultMetrics
}

// =============================================================================
// Stage Names
// =============================================================================

// Stage labels an error's origin for metrics.
type Stage string

const (
	// StagePoll indicates a handle failure during a poller pass.
	StagePoll Stage = "poll"

	// StageGenerate indicates a model or player dispatch failure.
	StageGenerate Stage = "generate"

	// StageStep indicates a handle failure while applying a response.
	StageStep Stage = "step"

	// StagePersist indicates a storage failure.
	StagePersist Stage = "persist"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordPass records one completed poller pass.
func (m *RolloutMetrics) RecordPass(game string) {
	m.PassesTotal.WithLabelValues(game).Inc()
}

// RecordBatch records one emitted batch and its fill.
//
// # Inputs
//
//   - game: The game the batch belongs to.
//   - rows: Number of rows in the batch.
func (m *RolloutMetrics) RecordBatch(game string, rows int) {
	m.BatchesTotal.WithLabelValues(game).Inc()
	m.BatchRows.WithLabelValues(game).Observe(float64(rows))
}

// RecordEpisode records one finished episode.
//
// # Inputs
//
//   - game: The game the episode belongs to.
//   - outcome: Terminal outcome label (done, truncated, error).
func (m *RolloutMetrics) RecordEpisode(game, outcome string) {
	m.EpisodesTotal.WithLabelValues(game, outcome).Inc()
}

// RecordTurn records one applied turn.
func (m *RolloutMetrics) RecordTurn(game, player string) {
	m.TurnsTotal.WithLabelValues(game, player).Inc()
}

// RecordBranches records branch clones created in one round.
func (m *RolloutMetrics) RecordBranches(game string, count int) {
	m.BranchesTotal.WithLabelValues(game).Add(float64(count))
}

// EpisodeStarted increments the active episodes gauge.
func (m *RolloutMetrics) EpisodeStarted(game string) {
	m.ActiveEpisodes.WithLabelValues(game).Inc()
}

// EpisodeEnded decrements the active episodes gauge.
func (m *RolloutMetrics) EpisodeEnded(game string) {
	m.ActiveEpisodes.WithLabelValues(game).Dec()
}

// RecordModelRequest records one model dispatch.
//
// # Inputs
//
//   - backend: The backend name (e.g. "openai", "scripted").
//   - model: The model identifier.
//   - seconds: Dispatch latency in seconds.
//   - success: Whether the dispatch succeeded.
func (m *RolloutMetrics) RecordModelRequest(backend, model string, seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.ModelRequestsTotal.WithLabelValues(backend, model, status).Inc()
	m.ModelLatencySeconds.WithLabelValues(backend, model).Observe(seconds)
}

// RecordErrorStage records one rollout error by stage.
func (m *RolloutMetrics) RecordErrorStage(stage Stage) {
	m.ErrorsTotal.WithLabelValues(string(stage)).Inc()
}
