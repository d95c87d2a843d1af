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

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/branch"
)

// Factory builds one fresh episode root from a dialogue configuration.
// Runners call it once per session or branching run.
type Factory func(config Config) (branch.Root, error)

// Registry maps game names to factories.
//
// Thread Safety:
//
//	Registry is fully thread-safe. All methods can be called concurrently.
type Registry struct {
	mu sync.RWMutex

	byName map[string]Factory
}

// NewRegistry creates an empty game registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with the built-in games
// registered. Currently that is "guessing".
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register("guessing", func(config Config) (branch.Root, error) {
		return NewGuessingDialogue(config)
	})
	return r
}

// Register adds a factory under the given name. Duplicates are
// rejected.
func (r *Registry) Register(name string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("%w: registering %q", ErrNilFactory, name)
	}
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrUnknownGame)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateGame, name)
	}
	r.byName[name] = factory
	return nil
}

// Get returns the factory registered under name.
func (r *Registry) Get(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)",
			ErrUnknownGame, name, strings.Join(r.namesLocked(), ", "))
	}
	return factory, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
