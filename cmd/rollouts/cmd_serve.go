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
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianRollouts/pkg/logging"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/server"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/telemetry"
)

// runServeCommand handles `rollouts serve`.
//
// Serves persisted run records, transcripts, and tree snapshots from
// the record store, plus the Prometheus scrape endpoint. Telemetry is
// configured from the standard OTEL_* environment variables.
func runServeCommand(cmd *cobra.Command, args []string) error {
	logger := logging.Default().With("command", "serve")

	if serveDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := signalContext()
	defer cancel()

	tcfg := telemetry.DefaultConfig()
	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	store, err := openStore(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	handlers := server.NewHandlers(store).
		WithLogger(logger.Slog().With("component", "server"))
	router := server.NewRouter(handlers)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", servePort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rollout server listening", "addr", srv.Addr, "db", dbPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down rollout server")
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
	}
	return nil
}
