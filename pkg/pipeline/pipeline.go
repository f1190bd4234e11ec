// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package pipeline is the public entry point of go-c2rust: it converts the
// items of a structural extractor's output from C to Rust in dependency
// order and persists the results.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/petar-djukic/go-c2rust/internal/report"
	"github.com/petar-djukic/go-c2rust/pkg/types"
)

// Error types for the pipeline API.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrOracleFailure = errors.New("oracle setup failed")
)

// Config configures a Pipeline.
type Config struct {
	Input  string // extractor output (required)
	Output string // result set (default Input)

	Provider      string        // bedrock (default), gemini, openai, dryrun
	Model         string        // model ID (required except for dryrun)
	Region        string        // AWS region (bedrock)
	Profile       string        // AWS shared config profile (bedrock)
	APIKey        string        // gemini, openai
	BaseURL       string        // openai-compatible endpoint
	MaxTokens     int           // maximum tokens per oracle reply (default 4096)
	OracleTimeout time.Duration // per oracle call (default 5m)
	DryRun        bool          // answer every oracle role offline

	MaxItems       int  // stop after this many items; 0 = no limit
	MaxRounds      int  // generate/review cycles per item (default 5)
	MaxArbitration int  // arbitration rounds per item (default 1; negative disables)
	MaxRestarts    int  // clean restarts after malformed answers (default 2; negative disables)
	MaxFixRounds   int  // repair rounds after a failed build (default 5)
	VerifyBuild    bool // check accepted items with cargo

	CargoPath    string        // default "cargo"
	BuildTimeout time.Duration // per cargo check (default 30s)

	SaveEvery     int    // persist after this many items (default 10)
	Concurrency   int    // items converted in parallel (default 1)
	Judge         string // cleanliness judge: oracle (default) or static
	NameExtractor string // canonical names: regex (default) or syntax
	HistoryDB     string // SQLite round history; empty disables
	Commit        bool   // commit results when the output lives in a git repository
	ValidationDir string // write the validation Cargo project here; empty disables

	Logger *slog.Logger // default slog.Default()
}

// Result holds the outcome of a Pipeline.Run invocation.
type Result struct {
	RunID      string
	Converted  int // items converted during the run
	Sweeps     int
	Success    int
	Skipped    int
	Failed     int
	Errors     int
	Pending    int
	Blocked    map[string][]string // item -> dependencies it is waiting on
	TokensUsed types.TokenUsage

	// Summary is the full report, rendered by report.RenderText and
	// report.RenderYAML.
	Summary *report.Summary
}

// Pipeline converts a result set.
type Pipeline interface {
	// Run sweeps the result set until no further progress is possible and
	// persists it. Item failures are recorded on the items; only
	// cancellation and persistence failures return an error.
	Run(ctx context.Context) (*Result, error)

	// Close releases the history database, if any.
	Close() error
}
