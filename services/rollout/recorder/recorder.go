// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recorder

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink accepts rollout events. Runners depend on this interface so
// tests can substitute MockRecorder and callers can pass NopSink.
type Sink interface {
	Record(eventType Type, data any)
}

// Handler is a function that processes events.
type Handler func(event *Event)

// Filter is a function that determines if an event should be handled.
type Filter func(event *Event) bool

// Subscription represents a subscription to events.
type Subscription struct {
	// ID uniquely identifies this subscription.
	ID string

	// Handler processes matching events.
	Handler Handler

	// Filter determines which events to handle (nil = all events).
	Filter Filter

	// Types limits which event types to handle (nil = all types).
	Types []Type
}

// Recorder broadcasts rollout events to subscribers and keeps a
// bounded buffer of recent events.
//
// Thread Safety: Recorder is safe for concurrent use.
type Recorder struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	buffer        []Event
	bufferSize    int
	runID         string
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithBufferSize sets the event buffer size.
func WithBufferSize(size int) Option {
	return func(r *Recorder) {
		r.bufferSize = size
	}
}

// WithRunID sets the run ID stamped on all events.
func WithRunID(id string) Option {
	return func(r *Recorder) {
		r.runID = id
	}
}

// NewRecorder creates a new event recorder.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		subscriptions: make(map[string]*Subscription),
		bufferSize:    1000,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.buffer = make([]Event, 0, r.bufferSize)
	return r
}

// Subscribe registers a handler for events.
//
// Inputs:
//
//	handler - Function to call for each event.
//	types - Event types to subscribe to (nil = all types).
//
// Outputs:
//
//	string - Subscription ID for unsubscribing.
func (r *Recorder) Subscribe(handler Handler, types ...Type) string {
	return r.SubscribeWithFilter(handler, nil, types...)
}

// SubscribeWithFilter registers a handler with a custom filter.
func (r *Recorder) SubscribeWithFilter(handler Handler, filter Filter, types ...Type) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := &Subscription{
		ID:      uuid.NewString(),
		Handler: handler,
		Filter:  filter,
		Types:   types,
	}

	r.subscriptions[sub.ID] = sub
	return sub.ID
}

// Unsubscribe removes a subscription.
//
// Outputs:
//
//	bool - True if the subscription was found and removed.
func (r *Recorder) Unsubscribe(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subscriptions[id]; ok {
		delete(r.subscriptions, id)
		return true
	}
	return false
}

// Record broadcasts an event to all matching subscribers.
//
// Description:
//
//	Builds the event, appends it to the bounded buffer (dropping the
//	oldest entry when full), then invokes matching handlers. Handler
//	panics are recovered so one failing subscriber cannot take down
//	the run.
//
// Inputs:
//
//	eventType - The type of event.
//	data - Event-specific data (use the typed data structs).
//
// Thread Safety: This method is safe for concurrent use.
func (r *Recorder) Record(eventType Type, data any) {
	r.mu.RLock()
	runID := r.runID
	subs := make([]*Subscription, 0, len(r.subscriptions))
	for _, sub := range r.subscriptions {
		subs = append(subs, sub)
	}
	r.mu.RUnlock()

	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		RunID:     runID,
		Timestamp: time.Now(),
		Data:      data,
	}

	r.mu.Lock()
	if len(r.buffer) >= r.bufferSize {
		r.buffer = r.buffer[1:]
	}
	r.buffer = append(r.buffer, event)
	r.mu.Unlock()

	for _, sub := range subs {
		if r.shouldHandle(sub, &event) {
			r.safeInvokeHandler(sub.Handler, &event)
		}
	}
}

// safeInvokeHandler invokes a handler with panic recovery.
func (r *Recorder) safeInvokeHandler(handler Handler, event *Event) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("event handler panicked",
				"event_type", event.Type,
				"event_id", event.ID,
				"panic", rec,
			)
		}
	}()
	handler(event)
}

// shouldHandle determines if a subscription should handle an event.
func (r *Recorder) shouldHandle(sub *Subscription, event *Event) bool {
	if len(sub.Types) > 0 {
		typeMatch := false
		for _, t := range sub.Types {
			if t == event.Type {
				typeMatch = true
				break
			}
		}
		if !typeMatch {
			return false
		}
	}

	if sub.Filter != nil && !sub.Filter(event) {
		return false
	}
	return true
}

// SetRunID updates the run ID stamped on future events.
func (r *Recorder) SetRunID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runID = id
}

// RunID returns the current run ID.
func (r *Recorder) RunID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runID
}

// Buffer returns a copy of buffered events.
func (r *Recorder) Buffer() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]Event, len(r.buffer))
	copy(events, r.buffer)
	return events
}

// BufferSince returns buffered events after a timestamp.
func (r *Recorder) BufferSince(since time.Time) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var events []Event
	for _, event := range r.buffer {
		if event.Timestamp.After(since) {
			events = append(events, event)
		}
	}
	return events
}

// BufferByType returns buffered events of a specific type.
func (r *Recorder) BufferByType(eventType Type) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var events []Event
	for _, event := range r.buffer {
		if event.Type == eventType {
			events = append(events, event)
		}
	}
	return events
}

// ClearBuffer removes all buffered events.
func (r *Recorder) ClearBuffer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffer = make([]Event, 0, r.bufferSize)
}

// SubscriptionCount returns the number of active subscriptions.
func (r *Recorder) SubscriptionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscriptions)
}

// Reset clears all state including subscriptions and buffer.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subscriptions = make(map[string]*Subscription)
	r.buffer = make([]Event, 0, r.bufferSize)
}

var _ Sink = (*Recorder)(nil)

// NopSink discards all events.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(Type, any) {}

// MockRecorder records events for test assertions.
type MockRecorder struct {
	mu     sync.RWMutex
	Events []Event
}

// NewMockRecorder creates a new mock recorder.
func NewMockRecorder() *MockRecorder {
	return &MockRecorder{Events: make([]Event, 0)}
}

// Record implements Sink.
func (m *MockRecorder) Record(eventType Type, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Events = append(m.Events, Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// EventCount returns the number of recorded events.
func (m *MockRecorder) EventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Events)
}

// GetEvents returns all recorded events.
func (m *MockRecorder) GetEvents() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]Event, len(m.Events))
	copy(events, m.Events)
	return events
}

// GetEventsByType returns events of a specific type.
func (m *MockRecorder) GetEventsByType(eventType Type) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []Event
	for _, e := range m.Events {
		if e.Type == eventType {
			events = append(events, e)
		}
	}
	return events
}

// Clear removes all recorded events.
func (m *MockRecorder) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = make([]Event, 0)
}

var _ Sink = (*MockRecorder)(nil)
