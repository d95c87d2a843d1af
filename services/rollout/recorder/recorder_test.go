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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_SubscribeAndRecord(t *testing.T) {
	r := NewRecorder(WithRunID("run-1"))

	var got []*Event
	r.Subscribe(func(event *Event) {
		got = append(got, event)
	})

	r.Record(TypeTurn, TurnData{SessionID: 3, Player: "guesser", Response: "50"})

	require.Len(t, got, 1)
	assert.Equal(t, TypeTurn, got[0].Type)
	assert.Equal(t, "run-1", got[0].RunID)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].Timestamp.IsZero())

	data, ok := got[0].Data.(TurnData)
	require.True(t, ok)
	assert.Equal(t, 3, data.SessionID)
	assert.Equal(t, "guesser", data.Player)
}

func TestRecorder_TypeFiltering(t *testing.T) {
	r := NewRecorder()

	var turns, all int
	r.Subscribe(func(*Event) { turns++ }, TypeTurn)
	r.Subscribe(func(*Event) { all++ })

	r.Record(TypeTurn, nil)
	r.Record(TypeBatch, nil)
	r.Record(TypeRunEnd, nil)

	assert.Equal(t, 1, turns)
	assert.Equal(t, 3, all)
}

func TestRecorder_CustomFilter(t *testing.T) {
	r := NewRecorder()

	var got int
	r.SubscribeWithFilter(
		func(*Event) { got++ },
		func(event *Event) bool {
			data, ok := event.Data.(TurnData)
			return ok && data.SessionID == 7
		},
		TypeTurn,
	)

	r.Record(TypeTurn, TurnData{SessionID: 7})
	r.Record(TypeTurn, TurnData{SessionID: 8})
	r.Record(TypeBatch, BatchData{})

	assert.Equal(t, 1, got)
}

func TestRecorder_Unsubscribe(t *testing.T) {
	r := NewRecorder()

	var got int
	id := r.Subscribe(func(*Event) { got++ })

	r.Record(TypeTurn, nil)
	assert.True(t, r.Unsubscribe(id))
	r.Record(TypeTurn, nil)

	assert.Equal(t, 1, got)
	assert.False(t, r.Unsubscribe(id), "second unsubscribe finds nothing")
	assert.Zero(t, r.SubscriptionCount())
}

func TestRecorder_HandlerPanicRecovered(t *testing.T) {
	r := NewRecorder()

	var survived int
	r.Subscribe(func(*Event) { panic("misbehaving subscriber") })
	r.Subscribe(func(*Event) { survived++ })

	require.NotPanics(t, func() {
		r.Record(TypeTurn, nil)
	})
	assert.Equal(t, 1, survived, "other subscribers still notified")
}

func TestRecorder_BoundedBuffer(t *testing.T) {
	r := NewRecorder(WithBufferSize(3))

	for _, id := range []int{0, 1, 2, 3, 4} {
		r.Record(TypeTurn, TurnData{SessionID: id})
	}

	buffer := r.Buffer()
	require.Len(t, buffer, 3)
	for i, wantID := range []int{2, 3, 4} {
		data := buffer[i].Data.(TurnData)
		assert.Equal(t, wantID, data.SessionID, "oldest events dropped first")
	}
}

func TestRecorder_BufferByType(t *testing.T) {
	r := NewRecorder()
	r.Record(TypeTurn, nil)
	r.Record(TypeBatch, nil)
	r.Record(TypeTurn, nil)

	assert.Len(t, r.BufferByType(TypeTurn), 2)
	assert.Len(t, r.BufferByType(TypeBatch), 1)
	assert.Empty(t, r.BufferByType(TypeRunEnd))
}

func TestRecorder_BufferSince(t *testing.T) {
	r := NewRecorder()
	r.Record(TypeTurn, nil)

	cut := time.Now()
	time.Sleep(5 * time.Millisecond)
	r.Record(TypeBatch, nil)

	since := r.BufferSince(cut)
	require.Len(t, since, 1)
	assert.Equal(t, TypeBatch, since[0].Type)
}

func TestRecorder_SetRunID(t *testing.T) {
	r := NewRecorder()
	r.Record(TypeRunStart, nil)

	r.SetRunID("run-42")
	r.Record(TypeRunEnd, nil)

	buffer := r.Buffer()
	assert.Empty(t, buffer[0].RunID)
	assert.Equal(t, "run-42", buffer[1].RunID)
	assert.Equal(t, "run-42", r.RunID())
}

func TestRecorder_ClearAndReset(t *testing.T) {
	r := NewRecorder()
	r.Subscribe(func(*Event) {})
	r.Record(TypeTurn, nil)

	r.ClearBuffer()
	assert.Empty(t, r.Buffer())
	assert.Equal(t, 1, r.SubscriptionCount())

	r.Reset()
	assert.Zero(t, r.SubscriptionCount())
}

func TestRecorder_ConcurrentRecord(t *testing.T) {
	r := NewRecorder(WithBufferSize(64))

	var mu sync.Mutex
	var got int
	r.Subscribe(func(*Event) {
		mu.Lock()
		got++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Record(TypeTurn, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, got)
}

func TestMockRecorder(t *testing.T) {
	m := NewMockRecorder()

	m.Record(TypeTurn, TurnData{SessionID: 1})
	m.Record(TypeBatch, BatchData{Size: 3})

	assert.Equal(t, 2, m.EventCount())
	assert.Len(t, m.GetEventsByType(TypeTurn), 1)
	assert.Len(t, m.GetEvents(), 2)

	m.Clear()
	assert.Zero(t, m.EventCount())
}

func TestNopSink(t *testing.T) {
	var sink Sink = NopSink{}
	assert.NotPanics(t, func() {
		sink.Record(TypeTurn, TurnData{})
	})
}
