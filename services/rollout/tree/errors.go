// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tree

import "errors"

// Sentinel errors for tree construction and wiring.
var (
	// ErrNilHandle indicates a node was created without an episode
	// handle.
	ErrNilHandle = errors.New("node handle is nil")

	// ErrNodeNotFound indicates a NodeID outside the arena.
	ErrNodeNotFound = errors.New("node not found")

	// ErrSelfConnect indicates an attempt to connect a node to itself.
	ErrSelfConnect = errors.New("cannot connect node to itself")

	// ErrRootAsChild indicates an attempt to give the root a parent.
	ErrRootAsChild = errors.New("cannot connect the root as a child")

	// ErrAlreadyConnected indicates the child already has a different
	// parent; nodes are connected exactly once.
	ErrAlreadyConnected = errors.New("node already connected to a different parent")
)
