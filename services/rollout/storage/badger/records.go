// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/recorder"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/tree"
)

// -----------------------------------------------------------------------------
// Store Errors
// -----------------------------------------------------------------------------

var (
	// ErrStoreClosed is returned when operations are called on a closed store.
	ErrStoreClosed = errors.New("record store is closed")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrEmptyRunID is returned when a record carries no run id.
	ErrEmptyRunID = errors.New("run id must not be empty")

	// ErrNegativeSession is returned when a transcript carries a negative
	// session id.
	ErrNegativeSession = errors.New("session id must not be negative")

	// ErrNilTree is returned when attempting to store a nil tree snapshot.
	ErrNilTree = errors.New("tree must not be nil")
)

// -----------------------------------------------------------------------------
// Records
// -----------------------------------------------------------------------------

// Run status values stored in RunRecord.Status.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// RunRecord is the stored metadata for one rollout run.
type RunRecord struct {
	// ID is the run's unique identifier.
	ID string `json:"id"`

	// Game is the registered game name the run played.
	Game string `json:"game"`

	// Experiment is the experiment label, if any.
	Experiment string `json:"experiment,omitempty"`

	// Mode is the run mode, "batch" or "branch".
	Mode string `json:"mode"`

	// Status is one of StatusRunning, StatusDone, StatusFailed.
	Status string `json:"status"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// EndedAt is when the run finished. Zero while Status is running.
	EndedAt time.Time `json:"ended_at"`

	// Episodes is the number of sessions the run scheduled.
	Episodes int `json:"episodes"`

	// Completed is the number of episodes that reached Done.
	Completed int `json:"completed"`

	// Failed is the number of episodes that errored out.
	Failed int `json:"failed"`
}

// Key layout:
//
//	run:{run_id}                 -> RunRecord (JSON)
//	episode:{run_id}:{session:06d} -> recorder.TranscriptRecord (JSON)
//	tree:{run_id}                -> tree snapshot (JSON)
//
// Session ids are zero-padded so prefix iteration yields transcripts in
// session order.
const (
	runKeyPrefix     = "run:"
	episodeKeyPrefix = "episode:"
	treeKeyPrefix    = "tree:"
)

func runKey(id string) []byte {
	return []byte(runKeyPrefix + id)
}

func episodeKey(runID string, sessionID int) []byte {
	return []byte(fmt.Sprintf("%s%s:%06d", episodeKeyPrefix, runID, sessionID))
}

func episodePrefix(runID string) []byte {
	return []byte(episodeKeyPrefix + runID + ":")
}

func treeKey(runID string) []byte {
	return []byte(treeKeyPrefix + runID)
}

// -----------------------------------------------------------------------------
// Store
// -----------------------------------------------------------------------------

// Store persists rollout records in BadgerDB.
//
// Description:
//
//	Holds run metadata, per-episode transcripts, and branch tree
//	snapshots as JSON values. Values are stored as JSON rather than a
//	binary encoding so exported archives and the ops API can serve
//	them without re-encoding.
//
// Thread Safety: Safe for concurrent use from multiple goroutines.
type Store struct {
	db     *DB
	logger *slog.Logger
	closed atomic.Bool
}

// NewStore opens a record store with the given database configuration.
//
// Inputs:
//
//	cfg - Database configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*Store - Ready-to-use store. Call Close() when done.
//	error - Non-nil if the database cannot be opened.
//
// Thread Safety: Safe for concurrent use.
func NewStore(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := OpenDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger.With(slog.String("component", "store")),
	}

	s.logger.Info("record store opened",
		slog.String("path", cfg.Path),
		slog.Bool("in_memory", cfg.InMemory))

	return s, nil
}

// Close syncs and releases the underlying database. Safe to call
// multiple times.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.logger.Info("closing record store")
	return s.db.Close()
}

// Sync flushes pending writes to disk.
func (s *Store) Sync() error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return s.db.Sync()
}

// PutRun stores or overwrites a run record.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	rec - Run record. ID must not be empty.
//
// Outputs:
//
//	error - Non-nil if validation or the write fails.
func (s *Store) PutRun(ctx context.Context, rec RunRecord) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if rec.ID == "" {
		return ErrEmptyRunID
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", rec.ID, err)
	}

	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(runKey(rec.ID), data)
	})
	if err != nil {
		return fmt.Errorf("put run %s: %w", rec.ID, err)
	}

	s.logger.Debug("run record stored",
		slog.String("run_id", rec.ID),
		slog.String("status", rec.Status))

	return nil
}

// GetRun returns the run record for the given id.
//
// Outputs:
//
//	RunRecord - The stored record.
//	error - ErrNotFound if no run with that id exists.
func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, error) {
	var rec RunRecord
	if s.closed.Load() {
		return rec, ErrStoreClosed
	}
	if id == "" {
		return rec, ErrEmptyRunID
	}

	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(runKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: run %s", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("get run %s: %w", id, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})

	return rec, err
}

// ListRuns returns all stored run records ordered by start time.
//
// Outputs:
//
//	[]RunRecord - Records sorted by StartedAt, then ID. Empty if none.
//	error - Non-nil if the scan fails.
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	var runs []RunRecord
	prefix := []byte(runKeyPrefix)

	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			err := item.Value(func(val []byte) error {
				var rec RunRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("decode run record %s: %w", item.Key(), err)
				}
				runs = append(runs, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.Before(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})

	return runs, nil
}

// PutTranscript stores or overwrites one episode's transcript.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	rec - Finalized transcript. RunID must not be empty and SessionID
//	      must be non-negative.
//
// Outputs:
//
//	error - Non-nil if validation or the write fails.
func (s *Store) PutTranscript(ctx context.Context, rec recorder.TranscriptRecord) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if rec.RunID == "" {
		return ErrEmptyRunID
	}
	if rec.SessionID < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeSession, rec.SessionID)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal transcript %s/%d: %w", rec.RunID, rec.SessionID, err)
	}

	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(episodeKey(rec.RunID, rec.SessionID), data)
	})
	if err != nil {
		return fmt.Errorf("put transcript %s/%d: %w", rec.RunID, rec.SessionID, err)
	}

	s.logger.Debug("transcript stored",
		slog.String("run_id", rec.RunID),
		slog.Int("session_id", rec.SessionID),
		slog.Int("turns", len(rec.Turns)))

	return nil
}

// GetTranscript returns one episode's transcript.
//
// Outputs:
//
//	recorder.TranscriptRecord - The stored transcript.
//	error - ErrNotFound if no transcript exists for that run/session.
func (s *Store) GetTranscript(ctx context.Context, runID string, sessionID int) (recorder.TranscriptRecord, error) {
	var rec recorder.TranscriptRecord
	if s.closed.Load() {
		return rec, ErrStoreClosed
	}
	if runID == "" {
		return rec, ErrEmptyRunID
	}

	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(episodeKey(runID, sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: episode %s/%d", ErrNotFound, runID, sessionID)
		}
		if err != nil {
			return fmt.Errorf("get transcript %s/%d: %w", runID, sessionID, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})

	return rec, err
}

// ListTranscripts returns all transcripts for a run in session order.
//
// Outputs:
//
//	[]recorder.TranscriptRecord - Transcripts ordered by session id.
//	error - Non-nil if the scan fails.
func (s *Store) ListTranscripts(ctx context.Context, runID string) ([]recorder.TranscriptRecord, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	if runID == "" {
		return nil, ErrEmptyRunID
	}

	var records []recorder.TranscriptRecord
	prefix := episodePrefix(runID)

	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		// Zero-padded session keys make key order session order.
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			err := item.Value(func(val []byte) error {
				var rec recorder.TranscriptRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("decode transcript %s: %w", item.Key(), err)
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list transcripts %s: %w", runID, err)
	}

	return records, nil
}

// PutTree stores or overwrites a run's branch tree snapshot.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	runID - The owning run. Must not be empty.
//	snapshot - The tree to snapshot. Must not be nil.
//
// Outputs:
//
//	error - Non-nil if validation, marshaling, or the write fails.
func (s *Store) PutTree(ctx context.Context, runID string, snapshot *tree.Tree) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if runID == "" {
		return ErrEmptyRunID
	}
	if snapshot == nil {
		return ErrNilTree
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal tree snapshot %s: %w", runID, err)
	}

	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(treeKey(runID), data)
	})
	if err != nil {
		return fmt.Errorf("put tree %s: %w", runID, err)
	}

	s.logger.Debug("tree snapshot stored",
		slog.String("run_id", runID),
		slog.Int("bytes", len(data)))

	return nil
}

// GetTreeSnapshot returns a run's stored tree snapshot as raw JSON.
//
// Description:
//
//	Snapshots are write-only on the tree side (handles are opaque), so
//	the store returns the JSON document rather than a reconstructed
//	tree. Callers serve or archive it as-is.
//
// Outputs:
//
//	json.RawMessage - The snapshot document.
//	error - ErrNotFound if the run has no stored tree.
func (s *Store) GetTreeSnapshot(ctx context.Context, runID string) (json.RawMessage, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	if runID == "" {
		return nil, ErrEmptyRunID
	}

	var data []byte
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(treeKey(runID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: tree %s", ErrNotFound, runID)
		}
		if err != nil {
			return fmt.Errorf("get tree %s: %w", runID, err)
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return json.RawMessage(data), nil
}
