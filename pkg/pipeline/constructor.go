// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/petar-djukic/go-c2rust/internal/cargo"
	"github.com/petar-djukic/go-c2rust/internal/convert"
	"github.com/petar-djukic/go-c2rust/internal/driver"
	"github.com/petar-djukic/go-c2rust/internal/feedback"
	"github.com/petar-djukic/go-c2rust/internal/history"
	"github.com/petar-djukic/go-c2rust/internal/ledger"
	"github.com/petar-djukic/go-c2rust/internal/llm"
	"github.com/petar-djukic/go-c2rust/internal/report"
	"github.com/petar-djukic/go-c2rust/pkg/types"
)

const (
	defaultMaxRounds      = 5
	defaultMaxArbitration = 1
	defaultMaxRestarts    = 2
	defaultMaxFixRounds   = 5
	defaultMaxTokens      = 4096
	defaultOracleTimeout  = 5 * time.Minute
	defaultBuildTimeout   = 30 * time.Second
	defaultSaveEvery      = 10
	defaultConcurrency    = 1
	defaultCargoPath      = "cargo"
	defaultJudge          = "oracle"
	defaultNameExtractor  = "regex"
)

// New validates the config, builds the oracle transport and the pipeline
// components, and returns a ready-to-run Pipeline. Nothing is loaded until
// Run.
func New(cfg Config) (Pipeline, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	applyDefaults(&cfg)

	provider, err := llm.New(context.Background(), llm.ProviderConfig{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		Region:    cfg.Region,
		Profile:   cfg.Profile,
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.OracleTimeout,
		MaxTokens: cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleFailure, err)
	}

	names := ledger.NewExtractor(cfg.NameExtractor)
	l := ledger.New(names, cfg.Logger)

	deps := convert.Deps{
		Prompter: provider,
		Judge:    convert.NewJudge(cfg.Judge, provider),
		Ledger:   l,
		Logger:   cfg.Logger,
	}
	if cfg.VerifyBuild {
		deps.Verifier = &feedback.CargoVerifier{CargoPath: cfg.CargoPath, Timeout: cfg.BuildTimeout}
	}
	machine, err := convert.New(deps, convert.Config{
		MaxRounds:      cfg.MaxRounds,
		MaxArbitration: cfg.MaxArbitration,
		MaxRestarts:    cfg.MaxRestarts,
		MaxFixRounds:   cfg.MaxFixRounds,
		VerifyBuild:    cfg.VerifyBuild,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var hist *history.Store
	if cfg.HistoryDB != "" {
		hist, err = history.Open(cfg.HistoryDB)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	runner := driver.NewRunner(driver.Deps{
		Converter: machine,
		Ledger:    l,
		Names:     names,
		History:   hist,
		Usage:     provider.Usage,
		Logger:    cfg.Logger,
	})
	return &pipelineAdapter{cfg: cfg, runner: runner, history: hist}, nil
}

// pipelineAdapter adapts driver.Runner to the public Pipeline interface.
type pipelineAdapter struct {
	cfg     Config
	runner  *driver.Runner
	history *history.Store
}

func (p *pipelineAdapter) Run(ctx context.Context) (*Result, error) {
	s, err := p.runner.Run(ctx, driver.Options{
		Input:         p.cfg.Input,
		Output:        p.cfg.Output,
		MaxItems:      p.cfg.MaxItems,
		Concurrency:   p.cfg.Concurrency,
		SaveEvery:     p.cfg.SaveEvery,
		ValidationDir: p.cfg.ValidationDir,
		Commit:        p.cfg.Commit,
	})
	if s == nil {
		return &Result{}, err
	}
	return resultFrom(s), err
}

func (p *pipelineAdapter) Close() error {
	if p.history == nil {
		return nil
	}
	return p.history.Close()
}

func resultFrom(s *report.Summary) *Result {
	r := &Result{
		RunID:      s.RunID,
		Converted:  s.Converted,
		Sweeps:     s.Sweeps,
		Success:    s.Totals.Success,
		Skipped:    s.Totals.Skipped,
		Failed:     s.Totals.Failed,
		Errors:     s.Totals.Error,
		Pending:    s.Totals.Pending,
		TokensUsed: types.TokenUsage{InputTokens: s.Tokens.Input, OutputTokens: s.Tokens.Output},
		Summary:    s,
	}
	if len(s.Blocked) > 0 {
		r.Blocked = make(map[string][]string, len(s.Blocked))
		for _, b := range s.Blocked {
			r.Blocked[b.Item] = b.Unresolved
		}
	}
	return r
}

// validateConfig checks required fields and value ranges.
func validateConfig(cfg Config) error {
	if cfg.Input == "" {
		return fmt.Errorf("Input is required")
	}
	if info, err := os.Stat(cfg.Input); err != nil || info.IsDir() {
		return fmt.Errorf("Input %q does not exist or is a directory", cfg.Input)
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.DryRun {
		provider = llm.ProviderDryRun
	}
	switch provider {
	case "", llm.ProviderBedrock:
		if cfg.Model == "" {
			return fmt.Errorf("Model is required")
		}
		if cfg.Region == "" {
			return fmt.Errorf("Region is required for bedrock")
		}
	case llm.ProviderGemini, llm.ProviderOpenAI:
		if cfg.Model == "" {
			return fmt.Errorf("Model is required")
		}
		if cfg.APIKey == "" {
			return fmt.Errorf("APIKey is required for %s", provider)
		}
	case llm.ProviderDryRun:
	default:
		return fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	limits := []struct {
		name  string
		value int
	}{
		{"MaxItems", cfg.MaxItems},
		{"MaxRounds", cfg.MaxRounds},
		{"MaxFixRounds", cfg.MaxFixRounds},
		{"MaxTokens", cfg.MaxTokens},
		{"SaveEvery", cfg.SaveEvery},
		{"Concurrency", cfg.Concurrency},
	}
	for _, l := range limits {
		if l.value < 0 {
			return fmt.Errorf("%s must not be negative", l.name)
		}
	}
	if cfg.OracleTimeout < 0 || cfg.BuildTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	switch cfg.Judge {
	case "", "oracle", "static":
	default:
		return fmt.Errorf("unknown judge %q", cfg.Judge)
	}
	switch cfg.NameExtractor {
	case "", "regex", "syntax":
	default:
		return fmt.Errorf("unknown name extractor %q", cfg.NameExtractor)
	}

	if cfg.VerifyBuild {
		if _, err := cargo.LookPath(cfg.CargoPath); err != nil {
			return err
		}
	}
	return nil
}

// applyDefaults fills in zero-value fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.Output == "" {
		cfg.Output = cfg.Input
	}
	if cfg.DryRun {
		cfg.Provider = llm.ProviderDryRun
	}
	if cfg.Provider == "" {
		cfg.Provider = llm.ProviderBedrock
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.OracleTimeout == 0 {
		cfg.OracleTimeout = defaultOracleTimeout
	}
	if cfg.MaxRounds == 0 {
		cfg.MaxRounds = defaultMaxRounds
	}
	switch {
	case cfg.MaxArbitration == 0:
		cfg.MaxArbitration = defaultMaxArbitration
	case cfg.MaxArbitration < 0:
		cfg.MaxArbitration = 0
	}
	switch {
	case cfg.MaxRestarts == 0:
		cfg.MaxRestarts = defaultMaxRestarts
	case cfg.MaxRestarts < 0:
		cfg.MaxRestarts = 0
	}
	if cfg.MaxFixRounds == 0 {
		cfg.MaxFixRounds = defaultMaxFixRounds
	}
	if cfg.CargoPath == "" {
		cfg.CargoPath = defaultCargoPath
	}
	if cfg.BuildTimeout == 0 {
		cfg.BuildTimeout = defaultBuildTimeout
	}
	if cfg.SaveEvery == 0 {
		cfg.SaveEvery = defaultSaveEvery
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Judge == "" {
		cfg.Judge = defaultJudge
	}
	if cfg.NameExtractor == "" {
		cfg.NameExtractor = defaultNameExtractor
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}
