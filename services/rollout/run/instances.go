// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package run drives complete rollout runs over the episode and branch
// cores: experiment/instance iteration, YAML run specs, and the batch
// and branching runner loops that wire scheduling, player dispatch,
// event recording, persistence, and metrics together.
package run

import (
	"fmt"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/episode"
)

// Experiment is one named group of episode instances.
type Experiment struct {
	// Name labels the experiment (e.g. "easy", "hard").
	Name string `json:"name" yaml:"name"`

	// Instances are the per-episode task payloads, played in order.
	Instances []episode.Instance `json:"instances" yaml:"instances"`
}

// Selector restricts iteration to a sub-selection of the experiment
// queue.
type Selector struct {
	// Experiment restricts iteration to the named experiment. Empty
	// means all experiments.
	Experiment string

	// Indices restricts iteration to specific instance positions within
	// each selected experiment. Nil means all instances.
	Indices []int
}

// Task is one scheduled episode: the experiment it came from, its
// position there, and its instance payload.
type Task struct {
	// Experiment is the owning experiment's name.
	Experiment string

	// Index is the instance's position within the experiment.
	Index int

	// Instance is the episode's task payload.
	Instance episode.Instance
}

// Iterator yields episode tasks from an ordered experiment queue.
//
// Description:
//
//	Experiments are visited in input order, instances within each
//	experiment in input order. A Selector narrows the queue to one
//	experiment and/or specific instance indices; the narrowed queue is
//	materialized at construction, so selector errors surface before
//	any episode is created. Reset rewinds to the first task.
//
// Thread Safety: NOT safe for concurrent use.
type Iterator struct {
	tasks []Task
	next  int
}

// NewIterator builds an iterator over experiments, optionally narrowed
// by selector.
//
// Inputs:
//
//	experiments - The ordered experiment queue. Must be non-empty, and
//	each experiment must carry at least one instance.
//	selector - Optional narrowing. Nil selects everything.
//
// Outputs:
//
//	*Iterator - Positioned at the first task.
//	error - ErrNoExperiments, ErrNoInstances, ErrUnknownExperiment, or
//	ErrBadSelector. Validation never defers to Next.
func NewIterator(experiments []Experiment, selector *Selector) (*Iterator, error) {
	if len(experiments) == 0 {
		return nil, ErrNoExperiments
	}

	selected := experiments
	if selector != nil && selector.Experiment != "" {
		selected = nil
		for _, exp := range experiments {
			if exp.Name == selector.Experiment {
				selected = append(selected, exp)
			}
		}
		if len(selected) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownExperiment, selector.Experiment)
		}
	}

	var tasks []Task
	for _, exp := range selected {
		if len(exp.Instances) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrNoInstances, exp.Name)
		}

		if selector == nil || selector.Indices == nil {
			for i, instance := range exp.Instances {
				tasks = append(tasks, Task{Experiment: exp.Name, Index: i, Instance: instance})
			}
			continue
		}

		for _, i := range selector.Indices {
			if i < 0 || i >= len(exp.Instances) {
				return nil, fmt.Errorf("%w: index %d in experiment %q (have %d instances)",
					ErrBadSelector, i, exp.Name, len(exp.Instances))
			}
			tasks = append(tasks, Task{Experiment: exp.Name, Index: i, Instance: exp.Instances[i]})
		}
	}

	return &Iterator{tasks: tasks}, nil
}

// Next returns the next task, or false when the queue is drained.
func (it *Iterator) Next() (Task, bool) {
	if it.next >= len(it.tasks) {
		return Task{}, false
	}
	task := it.tasks[it.next]
	it.next++
	return task, true
}

// Reset rewinds the iterator to the first task.
func (it *Iterator) Reset() {
	it.next = 0
}

// Len returns the total number of tasks in the (narrowed) queue.
func (it *Iterator) Len() int {
	return len(it.tasks)
}

// Remaining returns the number of tasks not yet yielded.
func (it *Iterator) Remaining() int {
	return len(it.tasks) - it.next
}
