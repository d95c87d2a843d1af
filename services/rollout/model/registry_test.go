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
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	client := NewScriptedClient().WithName("alpha")

	if err := registry.Register("alpha", client); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := registry.Get("alpha")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != Client(client) {
		t.Error("Get() returned a different client than registered")
	}
	if registry.Len() != 1 {
		t.Errorf("Len() = %d, want 1", registry.Len())
	}
}

func TestRegistry_RejectsNilClient(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register("x", nil); !errors.Is(err, ErrNilClient) {
		t.Errorf("Register(nil) error = %v, want ErrNilClient", err)
	}
}

func TestRegistry_RejectsEmptyName(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register("", NewScriptedClient()); err == nil {
		t.Error("Register('') error = nil, want error")
	}
}

func TestRegistry_RejectsDuplicate(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register("alpha", NewScriptedClient()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	err := registry.Register("alpha", NewScriptedClient())
	if !errors.Is(err, ErrDuplicateClient) {
		t.Errorf("duplicate Register() error = %v, want ErrDuplicateClient", err)
	}
}

func TestRegistry_UnknownListsRegistered(t *testing.T) {
	registry := NewRegistry()
	_ = registry.Register("alpha", NewScriptedClient())
	_ = registry.Register("beta", NewScriptedClient())

	_, err := registry.Get("gamma")
	if !errors.Is(err, ErrUnknownClient) {
		t.Fatalf("Get() error = %v, want ErrUnknownClient", err)
	}
	if !strings.Contains(err.Error(), "alpha") || !strings.Contains(err.Error(), "beta") {
		t.Errorf("error = %v, want registered names listed", err)
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := registry.Register(name, NewScriptedClient()); err != nil {
			t.Fatalf("Register(%q) error = %v", name, err)
		}
	}

	names := registry.Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewRegistry()
	_ = registry.Register("shared", NewScriptedClient())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := registry.Get("shared"); err != nil {
				t.Errorf("Get() error = %v", err)
			}
			_ = registry.Names()
		}()
	}
	wg.Wait()
}
