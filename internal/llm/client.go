// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package llm provides the model transports behind the translation oracles:
// AWS Bedrock ConverseStream, Gemini, OpenAI-compatible chat completions,
// and an offline dry-run responder.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/petar-djukic/go-c2rust/pkg/types"
)

const (
	defaultTimeout   = 300 * time.Second
	defaultMaxTokens = 4096
	maxRetryAttempts = 3
	baseRetryDelay   = 1 * time.Second
)

// ErrLLMFailure indicates the model call failed (network, auth, rate limit).
var ErrLLMFailure = errors.New("LLM failure")

// ClientConfig configures the Bedrock client.
type ClientConfig struct {
	ModelID   string        // Bedrock model ID (required)
	Region    string        // AWS region (required)
	Profile   string        // AWS credential profile (optional, uses default chain if empty)
	Timeout   time.Duration // Request timeout (default 300s)
	MaxTokens int           // Max tokens for the response (default 4096)
}

// BedrockAPI abstracts the Bedrock ConverseStream call.
type BedrockAPI interface {
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// StreamOpener starts a ConverseStream call and returns its event stream.
type StreamOpener interface {
	OpenStream(ctx context.Context, input *bedrockruntime.ConverseStreamInput) (EventStream, error)
}

type bedrockOpener struct{ api BedrockAPI }

func (o bedrockOpener) OpenStream(ctx context.Context, input *bedrockruntime.ConverseStreamInput) (EventStream, error) {
	out, err := o.api.ConverseStream(ctx, input)
	if err != nil {
		return nil, err
	}
	return out.GetStream(), nil
}

// Client is a Bedrock-backed oracle transport. It is safe for concurrent use.
type Client struct {
	opener    StreamOpener
	modelID   string
	timeout   time.Duration
	maxTokens int
	sleep     func(context.Context, time.Duration) error

	mu    sync.Mutex
	usage types.TokenUsage
}

// NewClient creates a Bedrock client using the standard AWS credential chain.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("%w: model ID is required", ErrLLMFailure)
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("%w: region is required", ErrLLMFailure)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: loading AWS config: %v", ErrLLMFailure, err)
	}

	return NewClientWithAPI(bedrockruntime.NewFromConfig(awsCfg), cfg), nil
}

// NewClientWithAPI creates a client over a pre-configured Bedrock API.
func NewClientWithAPI(api BedrockAPI, cfg ClientConfig) *Client {
	return NewClientWithOpener(bedrockOpener{api: api}, cfg)
}

// NewClientWithOpener creates a client over a stream opener.
func NewClientWithOpener(opener StreamOpener, cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{
		opener:    opener,
		modelID:   cfg.ModelID,
		timeout:   timeout,
		maxTokens: maxTokens,
		sleep:     sleepCtx,
	}
}

// Generate sends the conversation and returns the full reply text.
func (c *Client) Generate(ctx context.Context, system string, messages []types.Message) (string, error) {
	sys := []brtypes.SystemContentBlock{
		&brtypes.SystemContentBlockMemberText{Value: system},
	}

	tokenCh := make(chan string, 64)
	drained := make(chan struct{})
	go func() {
		for range tokenCh {
		}
		close(drained)
	}()

	response, err := c.sendWithRetry(ctx, sys, ConstructMessages(messages), tokenCh)
	<-drained
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.usage.Add(response.Usage)
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMFailure, err)
	}
	return response.Text, nil
}

// Usage returns the total token usage across all calls.
func (c *Client) Usage() types.TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// sendWithRetry calls ConverseStream with exponential backoff on throttling.
// tokenCh is closed on every return path.
func (c *Client) sendWithRetry(ctx context.Context, system []brtypes.SystemContentBlock, messages []brtypes.Message, tokenCh chan<- string) (*streamReply, error) {
	var lastErr error
	consumed := false
	defer func() {
		if !consumed {
			close(tokenCh)
		}
	}()

	for attempt := 0; attempt <= maxRetryAttempts; attempt++ {
		if attempt > 0 {
			delay := baseRetryDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%w: context cancelled during retry: %v", ErrLLMFailure, err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)

		input := &bedrockruntime.ConverseStreamInput{
			ModelId:  aws.String(c.modelID),
			System:   system,
			Messages: messages,
			InferenceConfig: &brtypes.InferenceConfiguration{
				MaxTokens: aws.Int32(int32(c.maxTokens)),
			},
		}

		stream, err := c.opener.OpenStream(callCtx, input)
		if err != nil {
			cancel()

			var throttle *brtypes.ThrottlingException
			if errors.As(err, &throttle) {
				lastErr = err
				continue
			}

			return nil, c.classifyError(err)
		}

		consumed = true
		response := consumeStream(callCtx, stream, tokenCh)
		response.Retries = attempt
		streamErr := stream.Err()
		cancel()
		if streamErr != nil {
			return nil, c.classifyError(streamErr)
		}
		return response, nil
	}

	return nil, fmt.Errorf("%w: rate limited after %d retries: %v", ErrLLMFailure, maxRetryAttempts, lastErr)
}

// classifyError wraps Bedrock errors into ErrLLMFailure with descriptive messages.
func (c *Client) classifyError(err error) error {
	var accessDenied *brtypes.AccessDeniedException
	if errors.As(err, &accessDenied) {
		return fmt.Errorf("%w: credential or permission issue: %v", ErrLLMFailure, err)
	}

	var notFound *brtypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: model not found: %s", ErrLLMFailure, c.modelID)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out after %s", ErrLLMFailure, c.timeout)
	}

	return fmt.Errorf("%w: %v", ErrLLMFailure, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
