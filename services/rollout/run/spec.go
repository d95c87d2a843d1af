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

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Run modes accepted by RunSpec.Mode.
const (
	ModeBatch  = "batch"
	ModeBranch = "branch"
)

// validate is the shared validator instance for spec structs.
var validate = validator.New()

// ModelSpec declares one model backend available to players.
type ModelSpec struct {
	// Name is the registry key players reference.
	Name string `yaml:"name" validate:"required"`

	// Backend selects the client implementation: "openai" or "scripted".
	Backend string `yaml:"backend" validate:"required,oneof=openai scripted"`

	// Model is the backend model identifier (e.g. "gpt-4o-mini").
	Model string `yaml:"model,omitempty"`

	// BaseURL overrides the backend endpoint for local inference
	// servers speaking the OpenAI protocol.
	BaseURL string `yaml:"base_url,omitempty"`

	// KeyEnv names the environment variable holding the API key.
	// Defaults to OPENAI_API_KEY for the openai backend.
	KeyEnv string `yaml:"key_env,omitempty"`

	// KeyFile is a secret-file fallback for the API key.
	KeyFile string `yaml:"key_file,omitempty"`

	// RequestsPerSecond throttles the backend. Zero means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty" validate:"gte=0"`

	// Responses scripts the "scripted" backend's reply queue.
	Responses []string `yaml:"responses,omitempty"`
}

// PlayerSpec binds one player role to a model.
type PlayerSpec struct {
	// Name is the player's role within episodes (e.g. "guesser").
	Name string `yaml:"name" validate:"required"`

	// Model references a ModelSpec by name.
	Model string `yaml:"model" validate:"required"`

	// SystemPrompt is prepended to every request.
	SystemPrompt string `yaml:"system_prompt,omitempty"`

	// MaxTokens limits each response. Zero means backend default.
	MaxTokens int `yaml:"max_tokens,omitempty" validate:"gte=0"`

	// Temperature controls sampling randomness.
	Temperature float64 `yaml:"temperature,omitempty" validate:"gte=0"`
}

// RunSpec is the YAML configuration for one rollout run.
//
// Description:
//
//	Declares the game, the run mode, the model backends and player
//	bindings, and the experiment queue. Load with LoadSpec; Validate
//	fails fast on structural problems so no episode is created from a
//	bad spec.
type RunSpec struct {
	// Game is the registered game name to play.
	Game string `yaml:"game" validate:"required"`

	// Mode selects the run path: "batch" or "branch".
	Mode string `yaml:"mode" validate:"required,oneof=batch branch"`

	// BatchSize bounds scheduler batches in batch mode.
	BatchSize int `yaml:"batch_size,omitempty" validate:"gte=0"`

	// Factor is the branching fan-out in branch mode.
	Factor int `yaml:"factor,omitempty" validate:"gte=0"`

	// BranchPlayers restricts branching to turns where one of the
	// named players is about to respond. Empty means always branch.
	BranchPlayers []string `yaml:"branch_players,omitempty"`

	// MaxRounds caps branching rounds. Zero means the runner default.
	MaxRounds int `yaml:"max_rounds,omitempty" validate:"gte=0"`

	// TurnLimit caps episode turns. Zero means the game default.
	TurnLimit int `yaml:"turn_limit,omitempty" validate:"gte=0"`

	// Models declares the model backends.
	Models []ModelSpec `yaml:"models" validate:"required,min=1,dive"`

	// Players binds player roles to models.
	Players []PlayerSpec `yaml:"players" validate:"required,min=1,dive"`

	// Experiments is the ordered instance queue.
	Experiments []Experiment `yaml:"experiments" validate:"required,min=1"`
}

// LoadSpec reads and validates a run spec from a YAML file.
//
// Outputs:
//
//	*RunSpec - The parsed, validated spec.
//	error - Read/parse failures, or ErrInvalidSpec-wrapped validation
//	errors.
func LoadSpec(path string) (*RunSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run spec %s: %w", path, err)
	}

	var spec RunSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("parse run spec %s: %w", path, err)
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks structural and cross-field constraints.
//
// Description:
//
//	Runs struct-tag validation, then the mode-specific requirements the
//	tags cannot express: batch mode needs a positive batch size, branch
//	mode a positive factor, and every player must reference a declared
//	model.
func (s *RunSpec) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}

	switch s.Mode {
	case ModeBatch:
		if s.BatchSize <= 0 {
			return fmt.Errorf("%w: batch mode requires batch_size > 0", ErrInvalidSpec)
		}
	case ModeBranch:
		if s.Factor <= 0 {
			return fmt.Errorf("%w: branch mode requires factor > 0", ErrInvalidSpec)
		}
	}

	declared := make(map[string]bool, len(s.Models))
	for _, m := range s.Models {
		if declared[m.Name] {
			return fmt.Errorf("%w: duplicate model name %q", ErrInvalidSpec, m.Name)
		}
		declared[m.Name] = true
	}
	for _, p := range s.Players {
		if !declared[p.Model] {
			return fmt.Errorf("%w: player %q references model %q", ErrUnknownModel, p.Name, p.Model)
		}
	}

	for _, exp := range s.Experiments {
		if len(exp.Instances) == 0 {
			return fmt.Errorf("%w: %q", ErrNoInstances, exp.Name)
		}
	}

	return nil
}
