// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tree holds the rollout tree: branching episode states as an
// arena of nodes addressed by dense indices.
//
// The arena layout keeps ownership flat: nodes reference each other by
// NodeID through explicit parent and children fields, so there are no
// owning pointer cycles and snapshots marshal cleanly. Lookup by handle
// identity is an explicit depth-first walk from the root; handle IDs are
// the only cross-component addressing scheme, since sibling branches can
// be byte-identical in content.
package tree

import (
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/episode"
)

// Tree owns a node arena rooted at node 0.
//
// Thread Safety: NOT safe for concurrent use. Branching rollouts are
// single-threaded; snapshots for other goroutines go through
// ActiveSubtree or MarshalJSON.
type Tree struct {
	nodes []*Node
	root  NodeID

	// epoch is bumped by each ActiveSubtree call; nodes tagged with the
	// current epoch survive extraction.
	epoch uint64
}

// New creates a tree whose root wraps rootHandle. Returns ErrNilHandle
// when rootHandle is nil.
func New(rootHandle episode.Handle) (*Tree, error) {
	if rootHandle == nil {
		return nil, ErrNilHandle
	}
	t := &Tree{}
	t.root = t.append(rootHandle, nil)
	return t, nil
}

// append places a node in the arena, unconnected.
func (t *Tree) append(handle episode.Handle, payload *ResponsePayload) NodeID {
	node := &Node{
		id:      NodeID(len(t.nodes)),
		parent:  NoParent,
		handle:  handle,
		payload: payload,
	}
	t.nodes = append(t.nodes, node)
	return node.id
}

// AddNode places a plain node in the arena. The node is unreachable
// until connected.
func (t *Tree) AddNode(handle episode.Handle) (NodeID, error) {
	if handle == nil {
		return 0, ErrNilHandle
	}
	return t.append(handle, nil), nil
}

// AddResponseNode places a response node in the arena. The node is
// unreachable until connected.
func (t *Tree) AddResponseNode(handle episode.Handle, payload ResponsePayload) (NodeID, error) {
	if handle == nil {
		return 0, ErrNilHandle
	}
	return t.append(handle, &payload), nil
}

// Node returns the arena entry for id.
func (t *Tree) Node(id NodeID) (*Node, error) {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return t.nodes[id], nil
}

// Root returns the root node's ID (always 0).
func (t *Tree) Root() NodeID {
	return t.root
}

// Len returns the number of nodes in the arena, connected or not.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Connect appends child to parent's ordered children and records the
// parent reference.
//
// Description:
//
//	Re-connecting the same child to the same parent is a no-op, so
//	wiring code may connect defensively. Connecting a child that
//	already has a different parent is a contract violation and errors:
//	tree nodes are connected exactly once.
func (t *Tree) Connect(parent, child NodeID) error {
	parentNode, err := t.Node(parent)
	if err != nil {
		return fmt.Errorf("connect parent: %w", err)
	}
	childNode, err := t.Node(child)
	if err != nil {
		return fmt.Errorf("connect child: %w", err)
	}
	if parent == child {
		return fmt.Errorf("%w: %d", ErrSelfConnect, child)
	}
	if child == t.root {
		return ErrRootAsChild
	}
	if childNode.parent == parent {
		return nil
	}
	if childNode.parent != NoParent {
		return fmt.Errorf("%w: node %d has parent %d, got %d",
			ErrAlreadyConnected, child, childNode.parent, parent)
	}
	childNode.parent = parent
	parentNode.children = append(parentNode.children, child)
	return nil
}

// FindNode locates the node wrapping the handle with the given ID by a
// depth-first walk from the root. Returns (0, false) when no reachable
// node matches.
func (t *Tree) FindNode(handleID string) (NodeID, bool) {
	stack := []NodeID{t.root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := t.nodes[id]
		if node.handle.ID() == handleID {
			return id, true
		}
		// Push in reverse so the first child is visited first.
		for i := len(node.children) - 1; i >= 0; i-- {
			stack = append(stack, node.children[i])
		}
	}
	return 0, false
}

// FindLeaves collects the childless reachable nodes in depth-first
// visiting order.
func (t *Tree) FindLeaves() []NodeID {
	var leaves []NodeID
	stack := []NodeID{t.root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := t.nodes[id]
		if len(node.children) == 0 {
			leaves = append(leaves, id)
			continue
		}
		for i := len(node.children) - 1; i >= 0; i-- {
			stack = append(stack, node.children[i])
		}
	}
	return leaves
}

// ActiveSubtree extracts the subtree spanned by the root, the nodes
// whose handle IDs appear in activeHandleIDs, and every ancestor in
// between.
//
// Description:
//
//	The extraction epoch is bumped, every matching node and its
//	ancestor chain is tagged with the new epoch, and a structurally
//	independent copy is built keeping only tagged children. Tags from
//	earlier extractions never leak in: the result reflects the current
//	active set only. Node copies share the underlying handles; arena,
//	wiring, and payload records are fresh. The root always survives,
//	so an empty or unmatched active set yields a single-node tree.
func (t *Tree) ActiveSubtree(activeHandleIDs []string) *Tree {
	t.epoch++
	active := make(map[string]struct{}, len(activeHandleIDs))
	for _, id := range activeHandleIDs {
		active[id] = struct{}{}
	}

	t.nodes[t.root].epoch = t.epoch
	stack := []NodeID{t.root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := t.nodes[id]
		if _, ok := active[node.handle.ID()]; ok {
			// Tag the node and walk up until the root or an ancestor
			// already tagged this epoch.
			for cur := id; ; {
				curNode := t.nodes[cur]
				curNode.epoch = t.epoch
				if curNode.parent == NoParent || t.nodes[curNode.parent].epoch == t.epoch {
					break
				}
				cur = curNode.parent
			}
		}
		for i := len(node.children) - 1; i >= 0; i-- {
			stack = append(stack, node.children[i])
		}
	}

	out := &Tree{}
	out.root = t.copyTagged(t.root, NoParent, out)
	return out
}

// copyTagged clones the node at oldID into dst under newParent and
// recurses over the children tagged with the current epoch.
func (t *Tree) copyTagged(oldID, newParent NodeID, dst *Tree) NodeID {
	old := t.nodes[oldID]
	clone := &Node{
		id:     NodeID(len(dst.nodes)),
		parent: newParent,
		handle: old.handle,
	}
	if old.payload != nil {
		payload := *old.payload
		clone.payload = &payload
	}
	dst.nodes = append(dst.nodes, clone)
	for _, childID := range old.children {
		if t.nodes[childID].epoch != t.epoch {
			continue
		}
		clone.children = append(clone.children, t.copyTagged(childID, clone.id, dst))
	}
	return clone.id
}

// =============================================================================
// JSON snapshots
// =============================================================================

// nodeJSON is the persisted shape of one node: children only, never
// parent references, so snapshots stay acyclic.
type nodeJSON struct {
	HandleID string       `json:"handle_id"`
	Response *payloadJSON `json:"response,omitempty"`
	Children []nodeJSON   `json:"children"`
}

// payloadJSON flattens a ResponsePayload; the player is recorded by
// name.
type payloadJSON struct {
	Player   string          `json:"player"`
	Context  episode.Context `json:"context"`
	Text     string          `json:"text"`
	Done     bool            `json:"done"`
	Info     episode.Info    `json:"info,omitempty"`
}

// MarshalJSON renders the reachable tree from the root. Snapshots are
// write-only: handles are opaque, so trees are never reconstructed from
// JSON.
func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.nodeToJSON(t.root))
}

func (t *Tree) nodeToJSON(id NodeID) nodeJSON {
	node := t.nodes[id]
	out := nodeJSON{
		HandleID: node.handle.ID(),
		Children: make([]nodeJSON, 0, len(node.children)),
	}
	if node.payload != nil {
		out.Response = &payloadJSON{
			Player:   node.payload.Player.Name(),
			Context:  node.payload.Context,
			Text:     node.payload.Response,
			Done:     node.payload.Done,
			Info:     node.payload.Info,
		}
	}
	for _, childID := range node.children {
		out.Children = append(out.Children, t.nodeToJSON(childID))
	}
	return out
}
