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
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig configures an OpenAI-compatible backend.
type OpenAIConfig struct {
	// Model is the model name (e.g., "gpt-4o-mini").
	Model string

	// BaseURL overrides the API endpoint. Empty means the public
	// OpenAI API; set it to point at a local inference server that
	// speaks the same protocol.
	BaseURL string

	// Key is the sealed API credential. Required.
	Key *APIKey

	// RequestsPerSecond throttles outbound requests. Zero or negative
	// means unlimited.
	RequestsPerSecond float64

	// Burst is the limiter burst size. Defaults to 1 when throttled.
	Burst int

	// MaxConcurrency bounds parallel requests in GenerateBatch.
	// Defaults to 8.
	MaxConcurrency int
}

// DefaultOpenAIConfig returns the default backend configuration.
// The Key must still be supplied by the caller.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:          DefaultOpenAIModel,
		Burst:          1,
		MaxConcurrency: 8,
	}
}

// OpenAIClient implements Client against the OpenAI chat completion API.
//
// Description:
//
//	Works against the public API or any OpenAI-compatible local server
//	via the BaseURL override. Outbound requests share a rate limiter;
//	GenerateBatch fans requests out with bounded concurrency.
//
// Thread Safety:
//
//	OpenAIClient is safe for concurrent use.
type OpenAIClient struct {
	api            *openai.Client
	model          string
	limiter        *rate.Limiter
	maxConcurrency int
}

// NewOpenAIClient creates a backend from the given configuration.
//
// Inputs:
//
//	config - Backend configuration. Key must be set.
//
// Outputs:
//
//	*OpenAIClient - The configured backend.
//	error - ErrNoAPIKey if no key is configured, or a reveal failure.
func NewOpenAIClient(config OpenAIConfig) (*OpenAIClient, error) {
	if !config.Key.IsSet() {
		return nil, ErrNoAPIKey
	}
	if config.Model == "" {
		config.Model = DefaultOpenAIModel
		slog.Warn("model not set, using default", "model", DefaultOpenAIModel)
	}

	// The SDK retains the auth token for the client's lifetime, so it
	// must own its bytes: secret is a view into the enclave buffer,
	// which is destroyed when Reveal returns.
	var api *openai.Client
	err := config.Key.Reveal(func(secret string) error {
		cfg := openai.DefaultConfig(strings.Clone(secret))
		if config.BaseURL != "" {
			cfg.BaseURL = config.BaseURL
		}
		api = openai.NewClientWithConfig(cfg)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reveal API key: %w", err)
	}

	limit := rate.Inf
	burst := config.Burst
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	maxConcurrency := config.MaxConcurrency
	if maxConcurrency < 1 {
		maxConcurrency = 8
	}

	slog.Info("initializing OpenAI client",
		"model", config.Model,
		"base_url", config.BaseURL,
		"key_source", config.Key.Source(),
	)

	return &OpenAIClient{
		api:            api,
		model:          config.Model,
		limiter:        rate.NewLimiter(limit, burst),
		maxConcurrency: maxConcurrency,
	}, nil
}

// Generate implements Client.
func (c *OpenAIClient) Generate(ctx context.Context, request Request) (Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limit wait: %w", err)
	}

	req := c.buildRequest(request)
	slog.Debug("generating via OpenAI", "model", req.Model, "message_count", len(req.Messages))

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return Response{}, fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices")
		return Response{}, fmt.Errorf("%w: model %s", ErrNoChoices, req.Model)
	}

	choice := resp.Choices[0]
	return Response{
		Content:      choice.Message.Content,
		StopReason:   stopReason(choice.FinishReason),
		TokensUsed:   resp.Usage.TotalTokens,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Duration:     time.Since(start),
		Model:        resp.Model,
	}, nil
}

// GenerateBatch implements Client.
//
// Requests run concurrently up to MaxConcurrency, each passing through
// the shared rate limiter. Responses align index-for-index with the
// input; the first failure cancels the remaining requests.
func (c *OpenAIClient) GenerateBatch(ctx context.Context, requests []Request) ([]Response, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	responses := make([]Response, len(requests))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrency)

	for i, request := range requests {
		g.Go(func() error {
			resp, err := c.Generate(gCtx, request)
			if err != nil {
				return fmt.Errorf("batch request %d: %w", i, err)
			}
			responses[i] = resp
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}

// Name implements Client.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Model implements Client.
func (c *OpenAIClient) Model() string {
	return c.model
}

// buildRequest converts a Request to the OpenAI wire format.
func (c *OpenAIClient) buildRequest(request Request) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(request.Messages)+1)

	if request.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: request.SystemPrompt,
		})
	}

	for _, msg := range request.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    chatRole(msg.Role),
			Content: msg.Content,
		})
	}

	model := c.model
	if request.ModelOverride != "" {
		model = request.ModelOverride
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	if request.MaxTokens > 0 {
		req.MaxCompletionTokens = request.MaxTokens
	}
	if request.Temperature > 0 {
		req.Temperature = float32(request.Temperature)
	}
	if request.TopP > 0 {
		req.TopP = float32(request.TopP)
	}
	if len(request.StopSequences) > 0 {
		req.Stop = request.StopSequences
	}
	return req
}

// chatRole maps message roles to the OpenAI role constants.
func chatRole(role string) string {
	switch role {
	case "system":
		return openai.ChatMessageRoleSystem
	case "assistant":
		return openai.ChatMessageRoleAssistant
	case "user", "":
		return openai.ChatMessageRoleUser
	default:
		return role
	}
}

// stopReason maps OpenAI finish reasons to Response stop reasons.
func stopReason(reason openai.FinishReason) string {
	switch reason {
	case openai.FinishReasonStop:
		return "end"
	case openai.FinishReasonLength:
		return "max_tokens"
	default:
		return string(reason)
	}
}
