// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package episode

import "fmt"

// DynamicBatchScheduler converts poller passes into a stream of bounded
// batches.
//
// Description:
//
//	When no chunks are pending, Next requests one pass from the
//	poller. A non-empty pass is split, in observation order, into
//	consecutive chunks of at most the configured batch size (the
//	trailing chunk may be smaller; chunks never span passes). Each
//	chunk is collated and the resulting batches are emitted one per
//	Next call. An empty pass means every session is exhausted: the
//	scheduler terminates and stays terminated.
//
//	For N sessions of k observations each and batch size B the
//	scheduler emits at most ceil(N*k/B) non-empty batches before
//	terminating.
//
// Thread Safety: NOT safe for concurrent use.
type DynamicBatchScheduler struct {
	// poller supplies one ordered pass per refill.
	poller *SinglePassPoller

	// collate converts each chunk into a batch.
	collate CollateFunc

	// batchSize is the maximum rows per batch. Always positive.
	batchSize int

	// pending holds collated batches not yet emitted, in order.
	pending []Batch

	// terminated is set on the first empty pass.
	terminated bool
}

// NewDynamicBatchScheduler creates a scheduler over poller with the
// given collate function and maximum batch size.
//
// Inputs:
//
//	poller    - the session poller. Must be non-nil.
//	collate   - the chunk-to-batch conversion. Must be non-nil.
//	batchSize - the maximum rows per emitted batch. Must be positive.
//
// Outputs:
//
//	The scheduler, or a validation error (ErrNilPoller, ErrNilCollate,
//	ErrInvalidBatchSize). Validation never defers to Next.
func NewDynamicBatchScheduler(poller *SinglePassPoller, collate CollateFunc, batchSize int) (*DynamicBatchScheduler, error) {
	if poller == nil {
		return nil, ErrNilPoller
	}
	if collate == nil {
		return nil, ErrNilCollate
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}
	return &DynamicBatchScheduler{
		poller:    poller,
		collate:   collate,
		batchSize: batchSize,
	}, nil
}

// Next emits the next batch.
//
// Outputs:
//
//	(batch, true, nil) while observations remain; (zero batch, false,
//	nil) once every session is exhausted, and on every call after
//	that. A handle error during the refill pass aborts the pass and
//	propagates; the scheduler is not terminated by an error.
func (s *DynamicBatchScheduler) Next() (Batch, bool, error) {
	if s.terminated {
		return Batch{}, false, nil
	}
	if len(s.pending) == 0 {
		observations, err := s.poller.PollPass()
		if err != nil {
			return Batch{}, false, err
		}
		if len(observations) == 0 {
			s.terminated = true
			return Batch{}, false, nil
		}
		for start := 0; start < len(observations); start += s.batchSize {
			end := start + s.batchSize
			if end > len(observations) {
				end = len(observations)
			}
			s.pending = append(s.pending, s.collate(observations[start:end]))
		}
	}
	batch := s.pending[0]
	s.pending = s.pending[1:]
	return batch, true, nil
}

// BatchSize returns the configured maximum batch size.
func (s *DynamicBatchScheduler) BatchSize() int {
	return s.batchSize
}

// Terminated reports whether the scheduler has seen an empty pass.
func (s *DynamicBatchScheduler) Terminated() bool {
	return s.terminated
}
