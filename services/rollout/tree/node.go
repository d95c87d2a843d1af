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

import (
	"github.com/AleutianAI/AleutianRollouts/services/rollout/episode"
)

// NodeID is a dense index into a tree's node arena. IDs are assigned in
// creation order and are only meaningful within their owning tree.
type NodeID int

// NoParent marks a node without a parent (the root, or a node not yet
// connected).
const NoParent NodeID = -1

// ResponsePayload is the turn record a response node carries: what the
// parent observed and what the branch answered.
type ResponsePayload struct {
	// Player is the participant that produced the response.
	Player episode.Player

	// Context is the observation the response answers.
	Context episode.Context

	// Response is the sampled response text.
	Response string

	// Done reports whether applying the response finished the episode.
	Done bool

	// Info carries the step annotations returned when the response was
	// applied. May be nil.
	Info episode.Info
}

// Node is one arena entry: exactly one episode handle snapshot, ordered
// children, and at most one parent. Response nodes additionally carry
// the turn that produced them.
//
// Nodes are created through Tree.AddNode/AddResponseNode and wired
// through Tree.Connect; fields stay unexported so the parent/children
// invariants hold.
type Node struct {
	id       NodeID
	parent   NodeID
	children []NodeID
	handle   episode.Handle
	payload  *ResponsePayload

	// epoch is the last extraction epoch that tagged this node; see
	// Tree.ActiveSubtree.
	epoch uint64
}

// ID returns the node's arena index.
func (n *Node) ID() NodeID {
	return n.id
}

// Parent returns the parent node ID and true, or (NoParent, false) for
// the root and unconnected nodes.
func (n *Node) Parent() (NodeID, bool) {
	if n.parent == NoParent {
		return NoParent, false
	}
	return n.parent, true
}

// Children returns the child IDs in insertion order. The slice is a
// copy; mutating it does not affect the tree.
func (n *Node) Children() []NodeID {
	out := make([]NodeID, len(n.children))
	copy(out, n.children)
	return out
}

// Handle returns the episode handle snapshot the node wraps.
func (n *Node) Handle() episode.Handle {
	return n.handle
}

// HandleID returns the wrapped handle's identity.
func (n *Node) HandleID() string {
	return n.handle.ID()
}

// Payload returns the response record, or nil for non-response nodes
// (the root).
func (n *Node) Payload() *ResponsePayload {
	return n.payload
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.children) == 0
}
