// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package player binds episode players to model backends.
//
// A Player turns observed episode contexts into model requests and
// model responses back into episode response strings. BatchRespond is
// the outer dispatch surface: it takes one scheduler batch and answers
// every row, batching rows that share a backend into a single model
// call.
package player

import (
	"context"
	"fmt"

	"github.com/AleutianAI/AleutianRollouts/services/rollout/episode"
	"github.com/AleutianAI/AleutianRollouts/services/rollout/model"
)

// Config configures a model-backed player.
type Config struct {
	// Name identifies the player within episodes. Required.
	Name string

	// Client is the backing model backend. Required.
	Client model.Client

	// SystemPrompt is prepended to every request. Optional.
	SystemPrompt string

	// MaxTokens limits each response. Zero means backend default.
	MaxTokens int

	// Temperature controls sampling randomness. Zero means backend
	// default.
	Temperature float64
}

// Player answers episode observations through a model backend.
//
// Thread Safety:
//
//	Player is immutable after construction and safe for concurrent use
//	if its Client is.
type Player struct {
	name         string
	client       model.Client
	systemPrompt string
	maxTokens    int
	temperature  float64
}

// New creates a model-backed player.
//
// Outputs:
//
//	*Player - The configured player.
//	error - ErrEmptyName or ErrNilClient on invalid configuration.
func New(config Config) (*Player, error) {
	if config.Name == "" {
		return nil, ErrEmptyName
	}
	if config.Client == nil {
		return nil, fmt.Errorf("%w: player %q", ErrNilClient, config.Name)
	}
	return &Player{
		name:         config.Name,
		client:       config.Client,
		systemPrompt: config.SystemPrompt,
		maxTokens:    config.MaxTokens,
		temperature:  config.Temperature,
	}, nil
}

// Name implements episode.Player.
func (p *Player) Name() string {
	return p.name
}

// Client returns the backing model client. BatchRespond uses it to
// group rows that can share one batched model call.
func (p *Player) Client() model.Client {
	return p.client
}

// BuildRequest converts an observed context into a model request.
func (p *Player) BuildRequest(obs episode.Context) model.Request {
	return model.Request{
		SystemPrompt: p.systemPrompt,
		Messages:     []model.Message{model.UserMessage(obs.Content)},
		MaxTokens:    p.maxTokens,
		Temperature:  p.temperature,
	}
}

// Respond implements episode.Player.
//
// Sends the observation to the backend and returns the generated text.
// Backend errors wrap upward unswallowed.
func (p *Player) Respond(ctx context.Context, obs episode.Context) (string, error) {
	resp, err := p.client.Generate(ctx, p.BuildRequest(obs))
	if err != nil {
		return "", fmt.Errorf("player %s: %w", p.name, err)
	}
	return resp.Content, nil
}
