// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package player

import "errors"

var (
	// ErrEmptyName indicates a player was configured without a name.
	ErrEmptyName = errors.New("player: name must not be empty")

	// ErrNilClient indicates a player was configured without a backend.
	ErrNilClient = errors.New("player: model client must not be nil")

	// ErrLengthMismatch indicates the parallel batch inputs disagree on
	// row count.
	ErrLengthMismatch = errors.New("player: batch inputs must have equal lengths")

	// ErrBadBatchShape indicates a backend returned a response count
	// that does not match its request count.
	ErrBadBatchShape = errors.New("player: backend returned misaligned batch")
)
