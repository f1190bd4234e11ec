// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/petar-djukic/go-c2rust/pkg/types"
)

// Provider names.
const (
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
	ProviderDryRun  = "dryrun"
)

// Provider is a model transport. It matches oracle.Prompter.
type Provider interface {
	Generate(ctx context.Context, system string, messages []types.Message) (string, error)
	Usage() types.TokenUsage
}

// ProviderConfig selects and configures a transport.
type ProviderConfig struct {
	Provider  string
	Model     string
	Region    string // bedrock
	Profile   string // bedrock
	APIKey    string // gemini, openai
	BaseURL   string // openai
	Timeout   time.Duration
	MaxTokens int
}

// New builds the transport named by cfg.Provider.
func New(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderBedrock, "":
		return NewClient(ctx, ClientConfig{
			ModelID:   cfg.Model,
			Region:    cfg.Region,
			Profile:   cfg.Profile,
			Timeout:   cfg.Timeout,
			MaxTokens: cfg.MaxTokens,
		})
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.Timeout)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Timeout, cfg.MaxTokens)
	case ProviderDryRun:
		return NewDryRun(), nil
	}
	return nil, fmt.Errorf("%w: unknown provider %q", ErrLLMFailure, cfg.Provider)
}
