// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/petar-djukic/go-c2rust/pkg/types"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client    *http.Client
	apiKey    string
	model     string
	endpoint  string
	maxTokens int
	sleep     func(context.Context, time.Duration) error

	mu    sync.Mutex
	usage types.TokenUsage
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	Temperature float64             `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// NewOpenAIClient creates a client. baseURL may be empty, a host root, a /v1
// root, or the full chat completions URL.
func NewOpenAIClient(apiKey, model, baseURL string, timeout time.Duration, maxTokens int) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: openai api key is required", ErrLLMFailure)
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("%w: openai model is required", ErrLLMFailure)
	}
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	return &OpenAIClient{
		client:    &http.Client{Timeout: timeout},
		apiKey:    apiKey,
		model:     model,
		endpoint:  chatEndpoint(baseURL),
		maxTokens: maxTokens,
		sleep:     sleepCtx,
	}, nil
}

func chatEndpoint(baseURL string) string {
	endpoint := strings.TrimSpace(baseURL)
	if endpoint == "" {
		return defaultOpenAIEndpoint
	}
	endpoint = strings.TrimRight(endpoint, "/")
	if strings.HasSuffix(endpoint, "/chat/completions") {
		return endpoint
	}
	if strings.HasSuffix(endpoint, "/v1") {
		return endpoint + "/chat/completions"
	}
	return endpoint + "/v1/chat/completions"
}

// Generate sends the conversation and returns the reply text. Rate limits
// and server errors are retried with exponential backoff.
func (c *OpenAIClient) Generate(ctx context.Context, system string, messages []types.Message) (string, error) {
	reqBody := openAIChatRequest{
		Model:       c.model,
		Messages:    []openAIChatMessage{{Role: "system", Content: system}},
		Temperature: 0.1,
		MaxTokens:   c.maxTokens,
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, openAIChatMessage{Role: string(m.Role), Content: m.Content})
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: encoding request: %v", ErrLLMFailure, err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, baseRetryDelay<<(attempt-1)); err != nil {
				return "", fmt.Errorf("%w: context cancelled during retry: %v", ErrLLMFailure, err)
			}
		}

		text, retry, err := c.post(ctx, body)
		if err == nil {
			return text, nil
		}
		if !retry {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("%w: giving up after %d retries: %v", ErrLLMFailure, maxRetryAttempts, lastErr)
}

func (c *OpenAIClient) post(ctx context.Context, body []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrLLMFailure, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", ctx.Err() == nil, fmt.Errorf("%w: %v", ErrLLMFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("%w: reading response: %v", ErrLLMFailure, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retry, fmt.Errorf("%w: openai chat request failed (%d): %s", ErrLLMFailure, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed openAIChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", false, fmt.Errorf("%w: decoding response: %v", ErrLLMFailure, err)
	}

	c.mu.Lock()
	c.usage.Add(types.TokenUsage{InputTokens: parsed.Usage.PromptTokens, OutputTokens: parsed.Usage.CompletionTokens})
	c.mu.Unlock()

	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("%w: response has no choices", ErrLLMFailure)
	}
	return parsed.Choices[0].Message.Content, false, nil
}

// Usage returns the total token usage across all calls.
func (c *OpenAIClient) Usage() types.TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}
