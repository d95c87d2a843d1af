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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianRollouts/cmd/rollouts/gcs"
	"github.com/AleutianAI/AleutianRollouts/pkg/logging"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/recorder"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/storage/badger"
)

// RunListResult holds run list output.
type RunListResult struct {
	Runs  []badger.RunRecord `json:"runs"`
	Count int                `json:"count"`
}

// RunShowResult holds run show output.
type RunShowResult struct {
	Run         badger.RunRecord            `json:"run"`
	Transcripts []recorder.TranscriptRecord `json:"transcripts"`
}

// RunExportResult holds run export output.
type RunExportResult struct {
	RunID    string   `json:"run_id"`
	OutDir   string   `json:"out_dir"`
	Files    []string `json:"files"`
	Uploaded bool     `json:"uploaded"`
	Bucket   string   `json:"bucket,omitempty"`
}

// runRunsList handles `rollouts runs list`.
func runRunsList(cmd *cobra.Command, args []string) error {
	start := time.Now()
	cfg := outputConfig()
	logger := logging.Default().With("command", "runs list")

	store, err := openStore(logger)
	if err != nil {
		os.Exit(OutputResult(cfg, "runs list", start, nil, false, err))
	}
	defer store.Close()

	runs, err := store.ListRuns(context.Background())
	if err == nil && !cfg.JSON && !cfg.Quiet {
		printTitle(cfg, fmt.Sprintf("%d runs", len(runs)))
		for _, rec := range runs {
			printLine(cfg, "  %s  %-8s  %s/%s  %d/%d episodes  %s",
				rec.ID, statusLabel(rec.Status), rec.Game, rec.Mode,
				rec.Completed, rec.Episodes,
				rec.StartedAt.Format(time.RFC3339))
		}
	}

	code := OutputResult(cfg, "runs list", start, RunListResult{Runs: runs, Count: len(runs)}, false, err)
	if code != CLIExitSuccess {
		os.Exit(code)
	}
	return nil
}

// runRunsShow handles `rollouts runs show <run-id>`.
func runRunsShow(cmd *cobra.Command, args []string) error {
	start := time.Now()
	cfg := outputConfig()
	logger := logging.Default().With("command", "runs show")
	id := args[0]

	store, err := openStore(logger)
	if err != nil {
		os.Exit(OutputResult(cfg, "runs show", start, nil, false, err))
	}
	defer store.Close()

	result, err := collectRun(context.Background(), store, id)
	if err == nil && !cfg.JSON && !cfg.Quiet {
		rec := result.Run
		printTitle(cfg, fmt.Sprintf("Run %s", rec.ID))
		printLine(cfg, "  status:      %s", statusLabel(rec.Status))
		printLine(cfg, "  game:        %s (%s mode)", rec.Game, rec.Mode)
		printLine(cfg, "  episodes:    %d (%d completed, %d failed)", rec.Episodes, rec.Completed, rec.Failed)
		printLine(cfg, "  started:     %s", rec.StartedAt.Format(time.RFC3339))
		if !rec.EndedAt.IsZero() {
			printLine(cfg, "  duration:    %s", rec.EndedAt.Sub(rec.StartedAt).Round(time.Millisecond))
		}
		printLine(cfg, "  transcripts: %d", len(result.Transcripts))
		for _, transcript := range result.Transcripts {
			printLine(cfg, "    session %d: %d turns, done=%t",
				transcript.SessionID, len(transcript.Turns), transcript.Done)
		}
	}

	code := OutputResult(cfg, "runs show", start, result, false, err)
	if code != CLIExitSuccess {
		os.Exit(code)
	}
	return nil
}

// runRunsExport handles `rollouts runs export <run-id>`.
//
// The run record, transcripts, and tree snapshot (when present) are
// written as JSON files; with --bucket the export directory is then
// uploaded to GCS.
func runRunsExport(cmd *cobra.Command, args []string) error {
	start := time.Now()
	cfg := outputConfig()
	logger := logging.Default().With("command", "runs export")
	id := args[0]

	result, err := executeExport(logger, id)
	if err == nil && !cfg.JSON {
		printTitle(cfg, fmt.Sprintf("Exported run %s", id))
		for _, file := range result.Files {
			printLine(cfg, "  %s", file)
		}
		if result.Uploaded {
			printLine(cfg, "  uploaded to gs://%s/%s/%s", result.Bucket, gcsPrefix, id)
		}
	}

	code := OutputResult(cfg, "runs export", start, result, false, err)
	if code != CLIExitSuccess {
		os.Exit(code)
	}
	return nil
}

// executeExport writes the run's records to disk and uploads them when
// a bucket is configured.
func executeExport(logger *logging.Logger, id string) (*RunExportResult, error) {
	store, err := openStore(logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	ctx := context.Background()
	collected, err := collectRun(ctx, store, id)
	if err != nil {
		return nil, err
	}

	outDir := exportOut
	if outDir == "" {
		outDir = filepath.Join("export", id)
	}
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return nil, fmt.Errorf("create export directory %s: %w", outDir, err)
	}

	result := &RunExportResult{RunID: id, OutDir: outDir}

	if err := writeJSONFile(filepath.Join(outDir, "run.json"), collected.Run); err != nil {
		return nil, err
	}
	result.Files = append(result.Files, filepath.Join(outDir, "run.json"))

	if len(collected.Transcripts) > 0 {
		path := filepath.Join(outDir, "transcripts.json")
		if err := writeJSONFile(path, collected.Transcripts); err != nil {
			return nil, err
		}
		result.Files = append(result.Files, path)
	}

	if snapshot, err := store.GetTreeSnapshot(ctx, id); err == nil {
		path := filepath.Join(outDir, "tree.json")
		if err := os.WriteFile(path, snapshot, 0640); err != nil {
			return nil, fmt.Errorf("write tree snapshot: %w", err)
		}
		result.Files = append(result.Files, path)
	} else if !errors.Is(err, badger.ErrNotFound) {
		return nil, err
	}

	if gcsBucket != "" {
		client, err := gcs.NewClient(ctx, gcsProject, gcsBucket, gcsKeyPath)
		if err != nil {
			return nil, err
		}
		if err := client.UploadDir(ctx, outDir, filepath.Join(gcsPrefix, id)); err != nil {
			return nil, err
		}
		result.Uploaded = true
		result.Bucket = gcsBucket
	}

	return result, nil
}

// collectRun fetches one run record with its transcripts.
func collectRun(ctx context.Context, store *badger.Store, id string) (*RunShowResult, error) {
	rec, err := store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	transcripts, err := store.ListTranscripts(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RunShowResult{Run: rec, Transcripts: transcripts}, nil
}

// writeJSONFile writes v as indented JSON.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
