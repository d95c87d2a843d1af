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
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewAPIKey_SealsSecret(t *testing.T) {
	k := NewAPIKey("sk-test-secret")
	if !k.IsSet() {
		t.Fatal("IsSet() = false, want true")
	}
	if k.Source() != "literal" {
		t.Errorf("Source() = %q, want 'literal'", k.Source())
	}

	var got string
	err := k.Reveal(func(secret string) error {
		got = strings.Clone(secret)
		return nil
	})
	if err != nil {
		t.Fatalf("Reveal() error = %v", err)
	}
	if got != "sk-test-secret" {
		t.Errorf("revealed secret = %q, want 'sk-test-secret'", got)
	}
}

func TestNewAPIKey_EmptyIsUnset(t *testing.T) {
	k := NewAPIKey("")
	if k.IsSet() {
		t.Error("IsSet() = true for empty secret, want false")
	}

	err := k.Reveal(func(string) error { return nil })
	if !errors.Is(err, ErrKeyNotSet) {
		t.Errorf("Reveal() error = %v, want ErrKeyNotSet", err)
	}
}

func TestAPIKey_NilIsUnset(t *testing.T) {
	var k *APIKey
	if k.IsSet() {
		t.Error("nil key IsSet() = true, want false")
	}
	if k.Source() != "" {
		t.Errorf("nil key Source() = %q, want empty", k.Source())
	}
	if err := k.Reveal(func(string) error { return nil }); !errors.Is(err, ErrKeyNotSet) {
		t.Errorf("nil key Reveal() error = %v, want ErrKeyNotSet", err)
	}
}

func TestAPIKey_RevealReopens(t *testing.T) {
	k := NewAPIKey("reusable")

	for i := 0; i < 2; i++ {
		var got string
		err := k.Reveal(func(secret string) error {
			got = strings.Clone(secret)
			return nil
		})
		if err != nil {
			t.Fatalf("Reveal() #%d error = %v", i+1, err)
		}
		if got != "reusable" {
			t.Errorf("Reveal() #%d secret = %q, want 'reusable'", i+1, got)
		}
	}
}

func TestAPIKey_RevealPropagatesCallbackError(t *testing.T) {
	k := NewAPIKey("sk-x")
	wantErr := errors.New("callback failed")

	err := k.Reveal(func(string) error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Errorf("Reveal() error = %v, want %v", err, wantErr)
	}
}

func TestLoadAPIKey_FromEnv(t *testing.T) {
	t.Setenv("ROLLOUTS_TEST_API_KEY", "from-env")

	k := LoadAPIKey("ROLLOUTS_TEST_API_KEY", "")
	if !k.IsSet() {
		t.Fatal("IsSet() = false, want true")
	}
	if k.Source() != "env:ROLLOUTS_TEST_API_KEY" {
		t.Errorf("Source() = %q, want 'env:ROLLOUTS_TEST_API_KEY'", k.Source())
	}

	var got string
	if err := k.Reveal(func(s string) error { got = strings.Clone(s); return nil }); err != nil {
		t.Fatalf("Reveal() error = %v", err)
	}
	if got != "from-env" {
		t.Errorf("revealed secret = %q, want 'from-env'", got)
	}
}

func TestLoadAPIKey_FromSecretFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_key")
	if err := os.WriteFile(path, []byte("  sk-from-file\n"), 0600); err != nil {
		t.Fatalf("write secret file: %v", err)
	}

	k := LoadAPIKey("ROLLOUTS_TEST_UNSET_VAR", path)
	if !k.IsSet() {
		t.Fatal("IsSet() = false, want true")
	}
	if k.Source() != "file:"+path {
		t.Errorf("Source() = %q, want 'file:%s'", k.Source(), path)
	}

	var got string
	if err := k.Reveal(func(s string) error { got = strings.Clone(s); return nil }); err != nil {
		t.Fatalf("Reveal() error = %v", err)
	}
	if got != "sk-from-file" {
		t.Errorf("revealed secret = %q, want trimmed 'sk-from-file'", got)
	}
}

func TestLoadAPIKey_EnvWinsOverFile(t *testing.T) {
	t.Setenv("ROLLOUTS_TEST_API_KEY", "env-value")
	path := filepath.Join(t.TempDir(), "api_key")
	if err := os.WriteFile(path, []byte("file-value"), 0600); err != nil {
		t.Fatalf("write secret file: %v", err)
	}

	k := LoadAPIKey("ROLLOUTS_TEST_API_KEY", path)

	var got string
	if err := k.Reveal(func(s string) error { got = strings.Clone(s); return nil }); err != nil {
		t.Fatalf("Reveal() error = %v", err)
	}
	if got != "env-value" {
		t.Errorf("revealed secret = %q, want env to win", got)
	}
}

func TestLoadAPIKey_NeitherSource(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")

	k := LoadAPIKey("ROLLOUTS_TEST_UNSET_VAR", missing)
	if k.IsSet() {
		t.Error("IsSet() = true with no sources, want false")
	}
}
