// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package run

import "errors"

// Sentinel errors for run configuration and execution.
var (
	// ErrNoExperiments indicates an iterator was constructed without
	// any experiments.
	ErrNoExperiments = errors.New("run: no experiments")

	// ErrNoInstances indicates an experiment carries no instances.
	ErrNoInstances = errors.New("run: experiment has no instances")

	// ErrUnknownExperiment indicates a selector names an experiment
	// that does not exist.
	ErrUnknownExperiment = errors.New("run: unknown experiment")

	// ErrBadSelector indicates a selector index outside the selected
	// experiment's instance range.
	ErrBadSelector = errors.New("run: selector index out of range")

	// ErrInvalidSpec indicates a run spec that failed validation.
	ErrInvalidSpec = errors.New("run: invalid spec")

	// ErrUnknownBackend indicates a model spec naming an unsupported
	// backend.
	ErrUnknownBackend = errors.New("run: unknown model backend")

	// ErrUnknownModel indicates a player spec referencing a model name
	// that no model spec defines.
	ErrUnknownModel = errors.New("run: player references unknown model")

	// ErrNoSessions indicates a batch run was started without sessions.
	ErrNoSessions = errors.New("run: no sessions")

	// ErrNilOrchestrator indicates a branch runner was constructed
	// without an orchestrator.
	ErrNilOrchestrator = errors.New("run: orchestrator is nil")

	// ErrMaxRounds indicates a branching run hit its round limit before
	// the tree was globally done.
	ErrMaxRounds = errors.New("run: maximum branching rounds reached")
)
