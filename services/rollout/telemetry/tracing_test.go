// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestStartSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "rollout.test", "Test.Operation")
	defer span.End()

	if ctx == nil {
		t.Fatal("context is nil")
	}
	if span == nil {
		t.Fatal("span is nil")
	}
}

func TestSpanFromContext_NoSpan(t *testing.T) {
	span := SpanFromContext(context.Background())
	if span == nil {
		t.Fatal("expected no-op span, got nil")
	}
	if span.SpanContext().IsValid() {
		t.Error("span context should be invalid without an active span")
	}
}

func TestRecordError_NilSafe(t *testing.T) {
	// Must not panic with nil span or nil error.
	RecordError(nil, errors.New("test error"))

	_, span := StartSpan(context.Background(), "rollout.test", "Test.NilError")
	defer span.End()
	RecordError(span, nil)
}

func TestRecordError_WithAttributes(t *testing.T) {
	_, span := StartSpan(context.Background(), "rollout.test", "Test.RecordError")
	defer span.End()

	RecordError(span, errors.New("step failed"),
		attribute.String("operation", "step"),
	)
}

func TestSetSpanOK_NilSafe(t *testing.T) {
	SetSpanOK(nil)

	_, span := StartSpan(context.Background(), "rollout.test", "Test.SetOK")
	defer span.End()
	SetSpanOK(span)
}

func TestAddSpanEvent_NilSafe(t *testing.T) {
	AddSpanEvent(nil, "event")

	_, span := StartSpan(context.Background(), "rollout.test", "Test.Event")
	defer span.End()
	AddSpanEvent(span, "batch_emitted", attribute.Int("rows", 3))
}

func TestTraceID_NoSpan(t *testing.T) {
	if id := TraceID(context.Background()); id != "" {
		t.Errorf("TraceID() = %q, want empty string", id)
	}
	if id := SpanID(context.Background()); id != "" {
		t.Errorf("SpanID() = %q, want empty string", id)
	}
}

func TestLoggerWithTrace_NoSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	// No span in context: logger passes through unchanged.
	result := LoggerWithTrace(context.Background(), logger)
	result.Info("test message")

	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("output should not contain trace_id when no span: %s", buf.String())
	}
}
