// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model provides the language model client interface for rollout
// players.
//
// This package defines the interface that model backends must implement
// to drive players. Actual backends are injected at runtime; the core
// rollout machinery never imports this package directly.
//
// Thread Safety:
//
//	All types in this package are designed for concurrent use.
package model

import (
	"context"
	"time"
)

// Client defines the interface for model interactions.
//
// Implementations must be safe for concurrent use.
type Client interface {
	// Generate sends one request to the model and returns its response.
	//
	// Inputs:
	//   ctx - Context for cancellation and timeout
	//   request - The generation request
	//
	// Outputs:
	//   Response - The model response
	//   error - Non-nil if the request failed
	Generate(ctx context.Context, request Request) (Response, error)

	// GenerateBatch sends a batch of requests and returns responses
	// aligned index-for-index with the input. A failure on any request
	// fails the batch.
	GenerateBatch(ctx context.Context, requests []Request) ([]Response, error)

	// Name returns the provider name (e.g., "openai", "scripted").
	Name() string

	// Model returns the model being used.
	Model() string
}

// Message represents a conversation message.
type Message struct {
	// Role is "user", "assistant", or "system".
	Role string `json:"role"`

	// Content is the text content.
	Content string `json:"content"`
}

// Request represents a generation request to the model.
type Request struct {
	// SystemPrompt is the system message.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Messages is the conversation history.
	Messages []Message `json:"messages"`

	// MaxTokens limits the response length.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0-1.0).
	Temperature float64 `json:"temperature,omitempty"`

	// TopP controls nucleus sampling.
	TopP float64 `json:"top_p,omitempty"`

	// StopSequences defines sequences that stop generation.
	StopSequences []string `json:"stop_sequences,omitempty"`

	// ModelOverride allows using a different model for this request.
	// Empty string means use the client's default model.
	ModelOverride string `json:"model_override,omitempty"`
}

// Response represents a model response.
type Response struct {
	// Content is the text response.
	Content string `json:"content"`

	// StopReason indicates why generation stopped.
	// Values: "end", "max_tokens", "stop_sequence"
	StopReason string `json:"stop_reason"`

	// TokensUsed is the total tokens consumed (input + output).
	TokensUsed int `json:"tokens_used"`

	// InputTokens is the input token count.
	InputTokens int `json:"input_tokens"`

	// OutputTokens is the output token count.
	OutputTokens int `json:"output_tokens"`

	// Duration is how long the request took.
	Duration time.Duration `json:"duration"`

	// Model is the model that generated this response.
	Model string `json:"model,omitempty"`
}

// UserMessage builds a single-turn request message from raw text.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// AssistantMessage builds an assistant turn for conversation history.
func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}
