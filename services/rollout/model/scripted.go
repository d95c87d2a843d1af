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
	"sync"
	"time"
)

// ScriptedClient is a deterministic Client for tests and offline runs.
//
// Thread Safety:
//
//	ScriptedClient is safe for concurrent use.
type ScriptedClient struct {
	mu sync.RWMutex

	// name is the provider name.
	name string

	// model is the model name.
	model string

	// responses are queued responses to return in order.
	responses []Response

	// defaultResponse is returned when no queued responses remain.
	defaultResponse Response

	// responseFunc allows dynamic response generation. Takes
	// precedence over the queue when set.
	responseFunc func(Request) (Response, error)

	// calls records all requests passed to Generate.
	calls []GenerateCall

	// delay adds artificial latency to responses.
	delay time.Duration

	// errorToReturn causes Generate to return this error.
	errorToReturn error
}

// GenerateCall records a call to Generate.
type GenerateCall struct {
	Request   Request
	Timestamp time.Time
}

// NewScriptedClient creates a scripted backend with a canned default
// response.
func NewScriptedClient() *ScriptedClient {
	return &ScriptedClient{
		name:  "scripted",
		model: "scripted-model",
		defaultResponse: Response{
			Content:      "scripted response",
			StopReason:   "end",
			TokensUsed:   100,
			InputTokens:  50,
			OutputTokens: 50,
		},
		calls: make([]GenerateCall, 0),
	}
}

// WithName sets the provider name.
func (c *ScriptedClient) WithName(name string) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
	return c
}

// WithModel sets the model name.
func (c *ScriptedClient) WithModel(model string) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
	return c
}

// WithDelay adds artificial latency.
func (c *ScriptedClient) WithDelay(d time.Duration) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
	return c
}

// WithError configures Generate to fail with err.
func (c *ScriptedClient) WithError(err error) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorToReturn = err
	return c
}

// WithResponseFunc sets a dynamic response function.
func (c *ScriptedClient) WithResponseFunc(f func(Request) (Response, error)) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responseFunc = f
	return c
}

// QueueResponse appends a response to the queue.
func (c *ScriptedClient) QueueResponse(response Response) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, response)
	return c
}

// QueueContent queues a plain text response.
func (c *ScriptedClient) QueueContent(content string) *ScriptedClient {
	return c.QueueResponse(Response{
		Content:      content,
		StopReason:   "end",
		TokensUsed:   100 + len(content)/4,
		InputTokens:  50,
		OutputTokens: 50 + len(content)/4,
	})
}

// SetDefaultResponse sets the response returned when the queue is empty.
func (c *ScriptedClient) SetDefaultResponse(response Response) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultResponse = response
	return c
}

// Generate implements Client.
func (c *ScriptedClient) Generate(ctx context.Context, request Request) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, GenerateCall{
		Request:   request,
		Timestamp: time.Now(),
	})

	if c.delay > 0 {
		time.Sleep(c.delay)
	}

	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	if c.errorToReturn != nil {
		return Response{}, c.errorToReturn
	}

	if c.responseFunc != nil {
		return c.responseFunc(request)
	}

	if len(c.responses) > 0 {
		response := c.responses[0]
		c.responses = c.responses[1:]
		response.Duration = c.delay
		response.Model = c.model
		return response, nil
	}

	response := c.defaultResponse
	response.Duration = c.delay
	response.Model = c.model
	return response, nil
}

// GenerateBatch implements Client. Requests are served sequentially in
// input order so queued responses map onto batch rows predictably.
func (c *ScriptedClient) GenerateBatch(ctx context.Context, requests []Request) ([]Response, error) {
	responses := make([]Response, 0, len(requests))
	for i, request := range requests {
		resp, err := c.Generate(ctx, request)
		if err != nil {
			return nil, fmt.Errorf("batch request %d: %w", i, err)
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

// Name implements Client.
func (c *ScriptedClient) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Model implements Client.
func (c *ScriptedClient) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// Calls returns all recorded calls.
func (c *ScriptedClient) Calls() []GenerateCall {
	c.mu.RLock()
	defer c.mu.RUnlock()

	calls := make([]GenerateCall, len(c.calls))
	copy(calls, c.calls)
	return calls
}

// CallCount returns the number of Generate calls made.
func (c *ScriptedClient) CallCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.calls)
}

// LastRequest returns the most recent request, or a zero Request when
// no calls were made.
func (c *ScriptedClient) LastRequest() (Request, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.calls) == 0 {
		return Request{}, false
	}
	return c.calls[len(c.calls)-1].Request, true
}

// Reset clears queued responses, recorded calls, and failure modes.
func (c *ScriptedClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.responses = nil
	c.calls = make([]GenerateCall, 0)
	c.errorToReturn = nil
	c.responseFunc = nil
	c.delay = 0
}

// Verify ensures all queued responses were consumed.
func (c *ScriptedClient) Verify() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.responses) > 0 {
		return fmt.Errorf("scripted: %d queued responses not consumed", len(c.responses))
	}
	return nil
}
