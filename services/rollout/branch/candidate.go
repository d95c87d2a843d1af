// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package branch grows rollout trees: it forks episode handles at
// chosen turns, samples one candidate continuation per fork, and drives
// the setup/observe/step cycle that attaches the surviving branches to
// the tree.
package branch

import (
	"context"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/episode"
)

// Candidate is one proposed continuation: an exclusively-owned branch
// clone plus the sampled response that would advance it, together with
// the parent decision point it forked from.
type Candidate struct {
	// Parent is the handle the branch was cloned from. Kept for tree
	// attachment; never stepped by the branching path.
	Parent episode.Handle

	// ParentPlayer is the participant observed at the fork point.
	ParentPlayer episode.Player

	// ParentContext is the observation the response answers.
	ParentContext episode.Context

	// Branch is the independently-owned clone the response applies to.
	Branch episode.Handle

	// Response is the sampled continuation text.
	Response string
}

// Apply steps the branch handle with the sampled response. Step errors
// propagate unmodified.
func (c Candidate) Apply() (episode.StepResult, error) {
	return c.Branch.Step(c.Response)
}

// BranchFunc generates candidate groups for a set of parent handles,
// aligned positionally with the input. Orchestrator.Observe returns one
// bound to the run's generator.
type BranchFunc func(ctx context.Context, parents []episode.Handle) ([][]Candidate, error)
