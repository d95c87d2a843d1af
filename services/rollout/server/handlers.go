// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/storage/badger"
)

// HealthResponse is the body returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// HandleHealth handles GET /v1/rollouts/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: ServiceVersion,
	})
}

// ListRunsResponse is the body returned by the run listing endpoint.
type ListRunsResponse struct {
	Runs  []badger.RunRecord `json:"runs"`
	Count int                `json:"count"`
}

// HandleListRuns handles GET /v1/rollouts/runs.
//
// Response:
//
//	200 OK: ListRunsResponse
//	500 Internal Server Error: Scan failure
//	503 Service Unavailable: No store configured
func (h *Handlers) HandleListRuns(c *gin.Context) {
	if h.storeUnavailable(c) {
		return
	}
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleListRuns")

	runs, err := h.store.ListRuns(c.Request.Context())
	if err != nil {
		logger.Error("list runs failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "LIST_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, ListRunsResponse{Runs: runs, Count: len(runs)})
}

// HandleGetRun handles GET /v1/rollouts/runs/:id.
//
// Response:
//
//	200 OK: badger.RunRecord
//	404 Not Found: Unknown run id
func (h *Handlers) HandleGetRun(c *gin.Context) {
	if h.storeUnavailable(c) {
		return
	}
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleGetRun")

	id := c.Param("id")
	rec, err := h.store.GetRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, badger.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: err.Error(),
				Code:  "RUN_NOT_FOUND",
			})
			return
		}
		logger.Error("get run failed", "run_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "GET_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// HandleListTranscripts handles GET /v1/rollouts/runs/:id/transcripts.
//
// Transcripts are returned in session order; a run without stored
// transcripts yields an empty list, not 404, so batch and branch runs
// share the endpoint.
func (h *Handlers) HandleListTranscripts(c *gin.Context) {
	if h.storeUnavailable(c) {
		return
	}
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleListTranscripts")

	id := c.Param("id")
	transcripts, err := h.store.ListTranscripts(c.Request.Context(), id)
	if err != nil {
		logger.Error("list transcripts failed", "run_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "LIST_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":      id,
		"transcripts": transcripts,
		"count":       len(transcripts),
	})
}

// HandleGetTree handles GET /v1/rollouts/runs/:id/tree.
//
// The stored snapshot is already a JSON document; it is served as-is.
func (h *Handlers) HandleGetTree(c *gin.Context) {
	if h.storeUnavailable(c) {
		return
	}
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleGetTree")

	id := c.Param("id")
	snapshot, err := h.store.GetTreeSnapshot(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, badger.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: err.Error(),
				Code:  "TREE_NOT_FOUND",
			})
			return
		}
		logger.Error("get tree failed", "run_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "GET_FAILED",
		})
		return
	}

	c.Data(http.StatusOK, "application/json", snapshot)
}
