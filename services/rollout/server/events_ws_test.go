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
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/recorder"
)

func dialEvents(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/rollouts/events" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	return ws
}

func TestHandleEvents_NoRecorder(t *testing.T) {
	router := setupTestRouter(NewHandlers(nil))

	req, _ := http.NewRequest("GET", "/v1/rollouts/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestHandleEvents_StreamsLiveEvents(t *testing.T) {
	rec := recorder.NewRecorder(recorder.WithRunID("run-ws"))
	router := setupTestRouter(NewHandlers(nil).WithRecorder(rec))
	server := httptest.NewServer(router)
	defer server.Close()

	ws := dialEvents(t, server, "")

	// The subscription is registered before the read loop starts;
	// wait for it so the event is not recorded into the void.
	deadline := time.Now().Add(2 * time.Second)
	for rec.SubscriptionCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec.Record(recorder.TypeRunStart, recorder.RunStartData{Game: "guessing", Sessions: 3})

	var event recorder.Event
	if err := ws.ReadJSON(&event); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if event.Type != recorder.TypeRunStart {
		t.Errorf("expected type %q, got %q", recorder.TypeRunStart, event.Type)
	}
	if event.RunID != "run-ws" {
		t.Errorf("expected run id 'run-ws', got %q", event.RunID)
	}
}

func TestHandleEvents_ReplaySendsBuffer(t *testing.T) {
	rec := recorder.NewRecorder()
	rec.Record(recorder.TypeRunStart, recorder.RunStartData{Game: "guessing", Sessions: 1})
	rec.Record(recorder.TypeRunEnd, recorder.RunEndData{Episodes: 1, Completed: 1})

	router := setupTestRouter(NewHandlers(nil).WithRecorder(rec))
	server := httptest.NewServer(router)
	defer server.Close()

	ws := dialEvents(t, server, "?replay=true")

	var first, second recorder.Event
	if err := ws.ReadJSON(&first); err != nil {
		t.Fatalf("failed to read first event: %v", err)
	}
	if err := ws.ReadJSON(&second); err != nil {
		t.Fatalf("failed to read second event: %v", err)
	}
	if first.Type != recorder.TypeRunStart || second.Type != recorder.TypeRunEnd {
		t.Errorf("expected run_start then run_end, got %q then %q", first.Type, second.Type)
	}
}

func TestHandleEvents_TypeFilter(t *testing.T) {
	rec := recorder.NewRecorder()
	rec.Record(recorder.TypeTurn, recorder.TurnData{SessionID: 0, Turn: 1})
	rec.Record(recorder.TypeRunEnd, recorder.RunEndData{Episodes: 1})

	router := setupTestRouter(NewHandlers(nil).WithRecorder(rec))
	server := httptest.NewServer(router)
	defer server.Close()

	ws := dialEvents(t, server, "?replay=true&types=run_end")

	var event recorder.Event
	if err := ws.ReadJSON(&event); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if event.Type != recorder.TypeRunEnd {
		t.Errorf("expected the turn event filtered out, got %q", event.Type)
	}
}

func TestParseEventTypes(t *testing.T) {
	if got := parseEventTypes(""); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}

	got := parseEventTypes("turn, run_end,")
	if len(got) != 2 || got[0] != recorder.TypeTurn || got[1] != recorder.TypeRunEnd {
		t.Errorf("unexpected parse result: %v", got)
	}
}
