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

import "errors"

// Sentinel errors for episode construction and scheduling. Wrap with
// fmt.Errorf("...: %w", err) to add call-site context.
var (
	// ErrNilHandle indicates a session was constructed without an
	// episode handle.
	ErrNilHandle = errors.New("episode handle is nil")

	// ErrNilSession indicates a poller was constructed over a session
	// list containing a nil entry.
	ErrNilSession = errors.New("session is nil")

	// ErrDuplicateSessionID indicates two sessions in one poller share
	// an ID; the exhaustion table requires unique session identities.
	ErrDuplicateSessionID = errors.New("duplicate session id")

	// ErrNilPoller indicates a scheduler was constructed without a
	// poller.
	ErrNilPoller = errors.New("session poller is nil")

	// ErrNilCollate indicates a scheduler was constructed without a
	// collate function.
	ErrNilCollate = errors.New("collate function is nil")

	// ErrInvalidBatchSize indicates a non-positive maximum batch size.
	ErrInvalidBatchSize = errors.New("batch size must be positive")

	// ErrEpisodeFinished indicates an Observe or Step call on an
	// episode that has already terminated.
	ErrEpisodeFinished = errors.New("episode already finished")
)
