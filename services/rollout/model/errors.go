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

import "errors"

var (
	// ErrNoAPIKey indicates a backend was constructed without a usable key.
	ErrNoAPIKey = errors.New("model: no API key configured")

	// ErrKeyNotSet indicates Reveal was called on an empty APIKey.
	ErrKeyNotSet = errors.New("model: API key not set")

	// ErrNoChoices indicates the backend returned an empty choice list.
	ErrNoChoices = errors.New("model: backend returned no choices")

	// ErrNilClient indicates a nil Client was passed where one is required.
	ErrNilClient = errors.New("model: client must not be nil")

	// ErrDuplicateClient indicates a registry name collision.
	ErrDuplicateClient = errors.New("model: client already registered")

	// ErrUnknownClient indicates a registry lookup for an unregistered name.
	ErrUnknownClient = errors.New("model: unknown client")
)
