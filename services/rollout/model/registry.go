// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry manages client registration and lookup by name.
//
// Run specifications reference backends by registry name; the registry
// resolves those names to live clients at player construction time.
//
// Thread Safety:
//
//	Registry is fully thread-safe. All methods can be called concurrently.
type Registry struct {
	mu sync.RWMutex

	// byName maps registration names to client instances.
	byName map[string]Client
}

// NewRegistry creates a new empty client registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Client),
	}
}

// Register adds a client under the given name.
//
// Description:
//
//	Duplicate names are rejected rather than replaced; a run spec that
//	binds two backends to one name is a configuration error worth
//	surfacing.
//
// Inputs:
//
//	name - The registry name. Must be non-empty.
//	client - The client to register. Must not be nil.
//
// Outputs:
//
//	error - ErrNilClient or ErrDuplicateClient on misuse.
func (r *Registry) Register(name string, client Client) error {
	if client == nil {
		return fmt.Errorf("%w: registering %q", ErrNilClient, name)
	}
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrUnknownClient)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateClient, name)
	}
	r.byName[name] = client
	return nil
}

// Get returns the client registered under name.
//
// Outputs:
//
//	Client - The registered client.
//	error - ErrUnknownClient listing the registered names.
func (r *Registry) Get(name string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)",
			ErrUnknownClient, name, strings.Join(r.namesLocked(), ", "))
	}
	return client, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// namesLocked collects sorted names. Caller must hold the lock.
func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
