// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/petar-djukic/go-c2rust/pkg/types"
	"google.golang.org/genai"
)

// GeminiModels is the subset of genai.Models the Gemini client calls.
type GeminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient is a Gemini-backed oracle transport.
type GeminiClient struct {
	models  GeminiModels
	model   string
	timeout time.Duration
	sleep   func(context.Context, time.Duration) error

	mu    sync.Mutex
	usage types.TokenUsage
}

// NewGeminiClient creates a client for the Gemini API.
func NewGeminiClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: gemini api key is required", ErrLLMFailure)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating genai client: %v", ErrLLMFailure, err)
	}
	return NewGeminiClientWithModels(client.Models, model, timeout), nil
}

// NewGeminiClientWithModels creates a client over a pre-configured models API.
func NewGeminiClientWithModels(models GeminiModels, model string, timeout time.Duration) *GeminiClient {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &GeminiClient{models: models, model: model, timeout: timeout, sleep: sleepCtx}
}

// Generate sends the conversation and returns the reply text.
func (c *GeminiClient) Generate(ctx context.Context, system string, messages []types.Message) (string, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, baseRetryDelay<<(attempt-1)); err != nil {
				return "", fmt.Errorf("%w: context cancelled during retry: %v", ErrLLMFailure, err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.models.GenerateContent(callCtx, c.model, contents, config)
		cancel()
		if err != nil {
			if isRateLimitError(err) {
				lastErr = err
				continue
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return "", fmt.Errorf("%w: request timed out after %s", ErrLLMFailure, c.timeout)
			}
			return "", fmt.Errorf("%w: %v", ErrLLMFailure, err)
		}

		if resp.UsageMetadata != nil {
			c.mu.Lock()
			c.usage.Add(types.TokenUsage{
				InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
				OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			})
			c.mu.Unlock()
		}
		return resp.Text(), nil
	}
	return "", fmt.Errorf("%w: rate limited after %d retries: %v", ErrLLMFailure, maxRetryAttempts, lastErr)
}

// Usage returns the total token usage across all calls.
func (c *GeminiClient) Usage() types.TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "429") || strings.Contains(s, "RESOURCE_EXHAUSTED")
}
