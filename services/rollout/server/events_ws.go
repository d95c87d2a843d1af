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
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/recorder"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// wsConn serializes writes to one websocket client. Recorder handlers
// fire from the run goroutine while the replay happens on the request
// goroutine, so writes need the lock.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) sendJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// HandleEvents handles GET /v1/rollouts/events.
//
// Description:
//
//	Upgrades to a websocket and streams rollout events as JSON, one
//	message per event, until the client disconnects. The stream is
//	best-effort: events recorded before the subscription (beyond the
//	requested replay) are not delivered.
//
// Query Parameters:
//
//	types - Comma-separated event types to stream (empty = all).
//	replay - "true" to send the recorder's buffered events first.
//
// Response:
//
//	101 Switching Protocols on success
//	503 Service Unavailable: No recorder configured
func (h *Handlers) HandleEvents(c *gin.Context) {
	if h.rec == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "no recorder configured",
			Code:  "EVENTS_UNAVAILABLE",
		})
		return
	}

	types := parseEventTypes(c.Query("types"))
	replay := c.Query("replay") == "true"

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	conn := &wsConn{ws: ws}
	h.logger.Info("event stream client connected", "types", types, "replay", replay)

	if replay {
		for _, event := range h.rec.Buffer() {
			if !typeMatches(types, event.Type) {
				continue
			}
			if err := conn.sendJSON(event); err != nil {
				h.logger.Info("event stream client disconnected during replay", "error", err)
				return
			}
		}
	}

	subID := h.rec.Subscribe(func(event *recorder.Event) {
		if err := conn.sendJSON(event); err != nil {
			h.logger.Debug("event stream write failed", "error", err)
		}
	}, types...)
	defer h.rec.Unsubscribe(subID)

	// Drain client messages until the connection drops. Clients only
	// send control frames; anything else is ignored.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			h.logger.Info("event stream client disconnected", "error", err)
			return
		}
	}
}

// parseEventTypes converts a comma-separated list into recorder types.
func parseEventTypes(raw string) []recorder.Type {
	if raw == "" {
		return nil
	}
	var types []recorder.Type
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			types = append(types, recorder.Type(part))
		}
	}
	return types
}

// typeMatches applies the subscription type filter to replayed events.
func typeMatches(types []recorder.Type, eventType recorder.Type) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == eventType {
			return true
		}
	}
	return false
}
