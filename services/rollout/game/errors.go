// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package game

import "errors"

var (
	// ErrNilPlayer indicates a dialogue was configured without both
	// players.
	ErrNilPlayer = errors.New("game: both players must be set")

	// ErrBadBounds indicates an invalid guessing range.
	ErrBadBounds = errors.New("game: low bound must be below high bound")

	// ErrBadInstance indicates instance values that fail validation.
	ErrBadInstance = errors.New("game: invalid instance value")

	// ErrNotSetup indicates the episode was used before Setup.
	ErrNotSetup = errors.New("game: episode not set up")

	// ErrAlreadySetup indicates a second Setup call on one episode.
	ErrAlreadySetup = errors.New("game: episode already set up")

	// ErrNilFactory indicates a nil factory registration.
	ErrNilFactory = errors.New("game: factory must not be nil")

	// ErrDuplicateGame indicates a registry name collision.
	ErrDuplicateGame = errors.New("game: game already registered")

	// ErrUnknownGame indicates a registry lookup for an unregistered
	// name.
	ErrUnknownGame = errors.New("game: unknown game")
)
