// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package branch

import "errors"

// Sentinel errors for branch generation and orchestration.
var (
	// ErrInvalidFactor indicates a non-positive branching factor.
	ErrInvalidFactor = errors.New("branching factor must be positive")

	// ErrNilParent indicates a nil handle in the parents slice.
	ErrNilParent = errors.New("parent handle is nil")

	// ErrBranchDiverged indicates a clone that does not observe the
	// same (player, context) as its parent; clones must start from the
	// parent's exact decision point.
	ErrBranchDiverged = errors.New("cloned branch diverged from parent observation")

	// ErrNilRoot indicates an orchestrator constructed without a root
	// episode.
	ErrNilRoot = errors.New("root episode is nil")

	// ErrNilGenerator indicates an orchestrator constructed without a
	// branch generator.
	ErrNilGenerator = errors.New("branch generator is nil")

	// ErrNotSetup indicates Observe, Step, or ActiveSubtree was called
	// before Setup.
	ErrNotSetup = errors.New("orchestrator not set up")

	// ErrAlreadySetup indicates a second Setup call.
	ErrAlreadySetup = errors.New("orchestrator already set up")
)
