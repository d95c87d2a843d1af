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
	"os"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
)

// memguardInitOnce ensures memguard session setup happens exactly once.
var memguardInitOnce sync.Once

// initMemguard initializes the memguard session.
//
// Installs an interrupt handler so that secrets are wiped if the
// process is killed while keys are sealed.
func initMemguard() {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
	})
}

// APIKey holds a backend credential sealed in an encrypted enclave.
//
// Description:
//
//	The plaintext key exists in regular memory only inside a Reveal
//	callback, backed by a locked buffer that is destroyed when the
//	callback returns. The zero value is an unset key.
//
// Thread Safety:
//
//	APIKey is safe for concurrent use after construction.
type APIKey struct {
	enclave *memguard.Enclave
	source  string
}

// NewAPIKey seals a literal secret into an enclave.
//
// An empty secret yields an unset key. The caller's string cannot be
// wiped; prefer LoadAPIKey so the secret never passes through an
// intermediate variable the caller owns.
func NewAPIKey(secret string) *APIKey {
	if secret == "" {
		return &APIKey{}
	}
	initMemguard()

	// NewEnclave wipes the byte slice it is handed.
	return &APIKey{
		enclave: memguard.NewEnclave([]byte(secret)),
		source:  "literal",
	}
}

// LoadAPIKey resolves a key from the environment or a secret file.
//
// Description:
//
//	Checks the named environment variable first, then falls back to
//	reading the secret file (for container secret mounts). Whitespace
//	is trimmed from file contents. If neither source yields a value
//	the returned key is unset, not an error; backends that require a
//	key report ErrNoAPIKey at construction.
//
// Inputs:
//
//	envVar - Environment variable name to check first. May be empty.
//	secretFile - Path to a secret file. May be empty.
//
// Outputs:
//
//	*APIKey - The sealed key, possibly unset.
func LoadAPIKey(envVar, secretFile string) *APIKey {
	if envVar != "" {
		if v := os.Getenv(envVar); v != "" {
			k := NewAPIKey(v)
			k.source = "env:" + envVar
			return k
		}
	}
	if secretFile != "" {
		raw, err := os.ReadFile(secretFile)
		if err == nil {
			trimmed := strings.TrimSpace(string(raw))
			if trimmed != "" {
				k := NewAPIKey(trimmed)
				k.source = "file:" + secretFile
				return k
			}
		}
	}
	return &APIKey{}
}

// IsSet reports whether the key holds a secret.
func (k *APIKey) IsSet() bool {
	return k != nil && k.enclave != nil
}

// Source describes where the key was loaded from ("env:NAME",
// "file:PATH", "literal"). Safe to log; never contains the secret.
func (k *APIKey) Source() string {
	if k == nil {
		return ""
	}
	return k.source
}

// Reveal opens the enclave and passes the plaintext secret to fn.
//
// Description:
//
//	The secret is decrypted into a locked buffer for the duration of
//	the callback and destroyed when the callback returns, whether or
//	not fn fails. The callback must not retain the string beyond its
//	own scope unless it accepts holding an unprotected copy.
//
// Inputs:
//
//	fn - Callback receiving the plaintext secret.
//
// Outputs:
//
//	error - ErrKeyNotSet for an unset key, an open failure, or the
//	error returned by fn.
func (k *APIKey) Reveal(fn func(secret string) error) error {
	if !k.IsSet() {
		return ErrKeyNotSet
	}

	buf, err := k.enclave.Open()
	if err != nil {
		return fmt.Errorf("open key enclave: %w", err)
	}
	defer buf.Destroy()

	return fn(buf.String())
}

// PurgeSecrets wipes the memguard session.
//
// Call on shutdown after all backends are closed. Sealed keys are
// unrecoverable afterwards.
func PurgeSecrets() {
	memguard.Purge()
}
