// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package driver runs the translation pipeline over a result set: it sweeps
// the not-yet-finished items, converts the ready ones in dependency order,
// commits accepted artifacts to the ledger, and persists progress so an
// interrupted run can resume.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/petar-djukic/go-c2rust/internal/convert"
	gitpkg "github.com/petar-djukic/go-c2rust/internal/git"
	"github.com/petar-djukic/go-c2rust/internal/history"
	"github.com/petar-djukic/go-c2rust/internal/ledger"
	"github.com/petar-djukic/go-c2rust/internal/report"
	"github.com/petar-djukic/go-c2rust/internal/resolver"
	"github.com/petar-djukic/go-c2rust/internal/store"
	"github.com/petar-djukic/go-c2rust/pkg/types"
)

// ErrNotConfigured is returned when a required collaborator is missing.
var ErrNotConfigured = errors.New("driver not configured")

// Converter runs the translation protocol for one item.
type Converter interface {
	Convert(ctx context.Context, req convert.Request) types.Outcome
}

// Options configures one run.
type Options struct {
	Input         string // extractor output (required)
	Output        string // result set; defaults to Input
	MaxItems      int    // stop after converting this many items; 0 = no limit
	Concurrency   int    // items converted in parallel (default 1)
	SaveEvery     int    // persist after this many items (default 10)
	ValidationDir string // write the validation project here after the run
	Commit        bool   // commit the result set when it lives in a git repository
}

// Deps holds injected collaborators.
type Deps struct {
	Converter Converter               // required
	Ledger    *ledger.Ledger          // required; shared with the converter's build checks
	Names     ledger.NameExtractor    // nil disables artifact-name matching in the resolver
	History   *history.Store          // optional
	Usage     func() types.TokenUsage // optional oracle usage reporter
	Logger    *slog.Logger
}

// Runner executes pipeline runs.
type Runner struct {
	deps Deps
}

// NewRunner creates a Runner with the given dependencies.
func NewRunner(deps Deps) *Runner {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Runner{deps: deps}
}

// run is the state of one Run call.
type run struct {
	deps  Deps
	opts  Options
	log   *slog.Logger
	runID string

	items *store.Store
	res   *resolver.Resolver
	ckpt  *store.Checkpointer
	edges map[types.ItemID][]types.ItemID

	mu        sync.Mutex
	converted int
	succeeded int
	failed    int
}

// Run loads the items, merges earlier results, and sweeps until no further
// progress is possible or the item limit is reached. It returns the summary
// of the final result set; on error the summary reflects what was persisted.
func (r *Runner) Run(ctx context.Context, opts Options) (*report.Summary, error) {
	if r.deps.Converter == nil || r.deps.Ledger == nil {
		return nil, fmt.Errorf("%w: converter and ledger are required", ErrNotConfigured)
	}
	if opts.Input == "" {
		return nil, fmt.Errorf("%w: input path is required", ErrNotConfigured)
	}
	if opts.Output == "" {
		opts.Output = opts.Input
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	start := time.Now()
	log := r.deps.Logger

	items, err := r.load(ctx, opts)
	if err != nil {
		return nil, err
	}

	rn := &run{
		deps:  r.deps,
		opts:  opts,
		log:   log,
		items: items,
		res:   resolver.New(items, r.deps.Names, log),
		ckpt:  store.NewCheckpointer(items, opts.Output, opts.SaveEvery),
	}
	rn.edges = edgeMap(rn.res.BuildGraph(items.Items()))

	if r.deps.History != nil {
		id, err := r.deps.History.BeginRun(ctx, opts.Input)
		if err != nil {
			return nil, err
		}
		rn.runID = id
		defer func() {
			if err := r.deps.History.EndRun(context.WithoutCancel(ctx), id); err != nil {
				log.Warn("recording run end failed", "error", err)
			}
		}()
	} else {
		rn.runID = uuid.NewString()
	}
	log.Info("run started", "run", rn.runID, "input", opts.Input, "items", items.Len(), "concurrency", opts.Concurrency)

	sweeps, runErr := rn.loop(ctx)
	if runErr == nil && !rn.limitReached() {
		rn.reportBlocked(ctx)
	}
	if err := rn.ckpt.Flush(); err != nil && runErr == nil {
		runErr = fmt.Errorf("saving results: %w", err)
	}

	written := []string{opts.Output}
	if runErr == nil && opts.ValidationDir != "" {
		if err := WriteValidation(opts.ValidationDir, r.deps.Ledger); err != nil {
			runErr = err
		} else {
			written = append(written, opts.ValidationDir)
		}
	}

	summary := report.Build(items.Items(), report.Run{
		ID:            rn.runID,
		Input:         opts.Input,
		Output:        opts.Output,
		Converted:     rn.converted,
		Sweeps:        sweeps,
		Duration:      time.Since(start),
		Usage:         rn.usage(),
		Ledger:        r.deps.Ledger.Stats(),
		LedgerRecords: r.deps.Ledger.Len(),
	})

	if runErr == nil && opts.Commit {
		if err := rn.commit(written, len(summary.Blocked)); err != nil {
			runErr = err
		}
	}

	log.Info("run finished",
		"run", rn.runID,
		"converted", rn.converted,
		"sweeps", sweeps,
		"blocked", len(summary.Blocked),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return summary, runErr
}

// load reads the input, reclassifies it, merges the successful items of an
// earlier result set, and seeds the ledger with them.
func (r *Runner) load(ctx context.Context, opts Options) (*store.Store, error) {
	log := r.deps.Logger
	items, err := store.Load(opts.Input)
	if err != nil {
		return nil, err
	}
	if n := items.Reclassify(); n > 0 {
		log.Info("reclassified function-like macros", "count", n)
	}

	if opts.Output != opts.Input {
		prior, err := store.Load(opts.Output)
		switch {
		case err == nil:
			prior.Reclassify()
			log.Info("merged earlier results", "count", items.Merge(prior), "path", opts.Output)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("loading earlier results: %w", err)
		}
	}
	if n := items.ResetUnfinished(); n > 0 {
		log.Info("retrying unfinished items", "count", n)
	}

	seeded := SeedLedger(ctx, r.deps.Ledger, items.Items())
	if seeded > 0 {
		log.Info("ledger seeded from earlier results", "records", seeded)
	}
	return items, nil
}

// SeedLedger commits the artifacts of successful items, header guards
// excluded, and returns how many records were stored.
func SeedLedger(ctx context.Context, l *ledger.Ledger, items []types.Item) int {
	n := 0
	for _, it := range items {
		if it.Status != types.StatusSuccess || it.HeaderGuard || it.Artifact == "" {
			continue
		}
		if ok, _ := l.Commit(ctx, it.ID, it.Artifact); ok {
			n++
		}
	}
	return n
}

func edgeMap(g *resolver.Graph) map[types.ItemID][]types.ItemID {
	out := make(map[types.ItemID][]types.ItemID, len(g.Nodes))
	for _, e := range g.Edges {
		out[e.From] = append(out[e.From], e.To)
	}
	return out
}

func (rn *run) usage() types.TokenUsage {
	if rn.deps.Usage == nil {
		return types.TokenUsage{}
	}
	return rn.deps.Usage()
}

func (rn *run) commit(paths []string, blocked int) error {
	repo, err := gitpkg.Open(gitpkg.Config{WorkDir: filepath.Dir(rn.opts.Output), AutoCommit: true})
	if err != nil {
		rn.log.Warn("results not committed", "error", err)
		return nil
	}
	committed, err := repo.AutoCommit(paths, gitpkg.RunInfo{
		RunID:     rn.runID,
		Input:     filepath.Base(rn.opts.Input),
		Converted: rn.converted,
		Success:   rn.succeeded,
		Failed:    rn.failed,
		Blocked:   blocked,
	})
	if err != nil {
		return fmt.Errorf("committing results: %w", err)
	}
	if committed {
		rn.log.Info("results committed", "paths", paths)
	}
	return nil
}
