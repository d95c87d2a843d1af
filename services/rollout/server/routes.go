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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the rollout API routes with the router.
//
// Description:
//
//	Registers all /v1/rollouts/* endpoints with the given Gin router
//	group. The router group should already have any required
//	middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	GET /v1/rollouts/health - Health check
//	GET /v1/rollouts/runs - List run records
//	GET /v1/rollouts/runs/:id - Get one run record
//	GET /v1/rollouts/runs/:id/transcripts - List a run's transcripts
//	GET /v1/rollouts/runs/:id/tree - Get a run's tree snapshot
//	GET /v1/rollouts/events - Websocket event stream
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rollouts := rg.Group("/rollouts")
	{
		rollouts.GET("/health", handlers.HandleHealth)

		rollouts.GET("/runs", handlers.HandleListRuns)
		rollouts.GET("/runs/:id", handlers.HandleGetRun)
		rollouts.GET("/runs/:id/transcripts", handlers.HandleListTranscripts)
		rollouts.GET("/runs/:id/tree", handlers.HandleGetTree)

		rollouts.GET("/events", handlers.HandleEvents)
	}
}
