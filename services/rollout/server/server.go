// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes rollout runs over HTTP.
//
// The API serves run records, transcripts, and tree snapshots from the
// store, streams live rollout events over a websocket, and exposes the
// Prometheus scrape endpoint when metrics are enabled.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianRollouts/pkg/logging"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/recorder"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/storage/badger"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/telemetry"
)

// ServiceVersion is the rollout API version.
const ServiceVersion = "0.1.0"

// Handlers contains the HTTP handlers for the rollout API.
type Handlers struct {
	store  *badger.Store
	rec    *recorder.Recorder
	logger *slog.Logger
}

// NewHandlers creates handlers over the given store. A nil store is
// allowed; record endpoints then answer 503.
func NewHandlers(store *badger.Store) *Handlers {
	return &Handlers{
		store:  store,
		logger: logging.Default().Slog().With("component", "server"),
	}
}

// WithRecorder sets the recorder backing the event stream endpoint.
func (h *Handlers) WithRecorder(rec *recorder.Recorder) *Handlers {
	h.rec = rec
	return h
}

// WithLogger overrides the handlers' logger.
func (h *Handlers) WithLogger(logger *slog.Logger) *Handlers {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// NewRouter builds the API router.
//
// Description:
//
//	Recovery middleware, the /v1/rollouts API group, and /metrics when
//	the Prometheus exporter is active. Gin's mode (debug/release) is
//	the caller's concern.
//
// Inputs:
//
//	handlers - The handlers instance.
//
// Outputs:
//
//	*gin.Engine - The configured router, ready to serve.
func NewRouter(handlers *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)

	if metrics := telemetry.MetricsHandler(); metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	return router
}

// ErrorResponse is the error body returned by all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// getOrCreateRequestID returns the X-Request-ID header or a fresh id.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// storeUnavailable answers 503 when no store is configured.
func (h *Handlers) storeUnavailable(c *gin.Context) bool {
	if h.store != nil {
		return false
	}
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{
		Error: "no store configured",
		Code:  "STORE_UNAVAILABLE",
	})
	return true
}
