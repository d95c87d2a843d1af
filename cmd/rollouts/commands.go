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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/server"
)

// --- Global Command Variables ---
var (
	// Output flags (persistent).
	jsonOutput    bool
	compactOutput bool
	quietOutput   bool
	dbPath        string

	// Run/branch flags.
	specPath   string
	runID      string
	experiment string
	indices    []int
	eventsAddr string
	maxRounds  int
	keepDone   bool

	// Export flags.
	exportOut  string
	gcsBucket  string
	gcsProject string
	gcsKeyPath string
	gcsPrefix  string

	// Serve flags.
	servePort  int
	serveDebug bool

	rootCmd = &cobra.Command{
		Use:   "rollouts",
		Short: "A cli to drive batched and branching LLM dialogue episodes",
		Long: `Rollouts drives multi-turn dialogue episodes against model
backends, either as a batched fleet of independent episodes or as a
branching tree grown from a single root episode.`,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Drive a batch of episodes to completion from a run spec",
		RunE:  runBatchCommand, // Defined in cmd_run.go
	}

	branchCmd = &cobra.Command{
		Use:   "branch",
		Short: "Grow a branching rollout tree from a single root episode",
		RunE:  runBranchCommand, // Defined in cmd_branch.go
	}

	runsCmd = &cobra.Command{
		Use:   "runs",
		Short: "Inspect and export persisted rollout runs",
	}
	runsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List persisted run records",
		RunE:  runRunsList, // Defined in cmd_runs.go
	}
	runsShowCmd = &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show one run record with its transcripts",
		Args:  cobra.ExactArgs(1),
		RunE:  runRunsShow,
	}
	runsExportCmd = &cobra.Command{
		Use:   "export [run-id]",
		Short: "Export a run's records to JSON files, optionally uploading to GCS",
		Args:  cobra.ExactArgs(1),
		RunE:  runRunsExport,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve persisted runs and Prometheus metrics over HTTP",
		RunE:  runServeCommand, // Defined in cmd_serve.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the rollouts version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rollouts %s\n", server.ServiceVersion)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&compactOutput, "compact", false, "JSON without indentation")
	rootCmd.PersistentFlags().BoolVar(&quietOutput, "quiet", false, "No output, exit code only")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath(), "BadgerDB directory for run records")

	for _, cmd := range []*cobra.Command{runCmd, branchCmd} {
		cmd.Flags().StringVar(&specPath, "spec", "", "Path to the run spec YAML (required)")
		cmd.Flags().StringVar(&runID, "run-id", "", "Run id (default: fresh uuid)")
		cmd.Flags().StringVar(&experiment, "experiment", "", "Restrict to one experiment by name")
		cmd.Flags().IntSliceVar(&indices, "index", nil, "Restrict to instance indices within the experiment")
		cmd.Flags().StringVar(&eventsAddr, "events-addr", "", "Serve the live event websocket on this address during the run (e.g. :8081)")
		_ = cmd.MarkFlagRequired("spec")
	}
	branchCmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "Cap branching rounds (default: spec or runner default)")
	branchCmd.Flags().BoolVar(&keepDone, "keep-finished", false, "Keep finished leaves in the active set between rounds")

	runsExportCmd.Flags().StringVar(&exportOut, "out", "", "Output directory (default: export/<run-id>)")
	runsExportCmd.Flags().StringVar(&gcsBucket, "bucket", "", "GCS bucket to upload the export to")
	runsExportCmd.Flags().StringVar(&gcsProject, "project", "", "GCP project id for the upload")
	runsExportCmd.Flags().StringVar(&gcsKeyPath, "sa-key", "", "Path to the service account key for the upload")
	runsExportCmd.Flags().StringVar(&gcsPrefix, "prefix", "rollouts", "Object prefix within the bucket")
	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsExportCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug mode")

	rootCmd.AddCommand(runCmd, branchCmd, runsCmd, serveCmd, versionCmd)
}
