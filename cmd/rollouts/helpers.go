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
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianRollouts/pkg/logging"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/recorder"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/run"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/server"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/storage/badger"
)

// defaultDBPath places the record store under the user's home
// directory, falling back to the working directory when home is
// unavailable.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rollouts/db"
	}
	return filepath.Join(home, ".rollouts", "db")
}

// openStore opens the record store at the --db path.
func openStore(logger *logging.Logger) (*badger.Store, error) {
	cfg := badger.DefaultConfig()
	cfg.Path = dbPath
	cfg.Logger = logger.Slog().With("component", "store")
	return badger.NewStore(cfg)
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// selector converts the --experiment/--index flags into an iterator
// selector. Nil when neither flag was given.
func selector() *run.Selector {
	if experiment == "" && len(indices) == 0 {
		return nil
	}
	return &run.Selector{Experiment: experiment, Indices: indices}
}

// startEventServer serves the live event websocket on --events-addr
// for the duration of a run. Returns a shutdown func; both are nil
// when the flag is unset.
func startEventServer(rec *recorder.Recorder, store *badger.Store, logger *logging.Logger) func() {
	if eventsAddr == "" {
		return nil
	}

	gin.SetMode(gin.ReleaseMode)
	handlers := server.NewHandlers(store).
		WithRecorder(rec).
		WithLogger(logger.Slog().With("component", "events"))
	srv := &http.Server{
		Addr:              eventsAddr,
		Handler:           server.NewRouter(handlers),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("event server listening", "addr", eventsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("event server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
