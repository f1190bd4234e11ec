// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package resolver decides which items are ready for conversion and
// collects the already-translated code each item needs as context.
package resolver

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/petar-djukic/go-c2rust/internal/ledger"
	"github.com/petar-djukic/go-c2rust/internal/store"
	"github.com/petar-djukic/go-c2rust/pkg/types"
)

// Satisfaction says why a dependency counts as met.
type Satisfaction int

const (
	Unsatisfied Satisfaction = iota
	Committed                // the dependency has a successful artifact
	InFlight                 // the dependency is being converted right now
	FunctionDep              // function dependencies never block
)

func (s Satisfaction) String() string {
	switch s {
	case Committed:
		return "committed"
	case InFlight:
		return "in-flight"
	case FunctionDep:
		return "function"
	}
	return "unsatisfied"
}

// Resolution is the outcome of resolving one dependency reference.
type Resolution struct {
	Dep    types.DepRef
	Target types.Item // zero when nothing matched
	Found  bool
	State  Satisfaction
}

// Entry is one piece of dependency context.
type Entry struct {
	Dep    types.DepRef
	Origin types.ItemID
	Code   string
}

// Resolver answers readiness questions against an item store. It is safe
// for concurrent use.
type Resolver struct {
	items  *store.Store
	names  ledger.NameExtractor
	logger *slog.Logger

	mu         sync.Mutex
	inProgress map[types.ItemID]struct{}
}

// New creates a resolver. names may be nil, which disables matching a
// dependency against the names defined by successful artifacts.
func New(items *store.Store, names ledger.NameExtractor, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		items:      items,
		names:      names,
		logger:     logger,
		inProgress: make(map[types.ItemID]struct{}),
	}
}

// MarkInProgress adds id to the in-flight set. Items depending on it are
// then treated as ready, which breaks benign cycles.
func (r *Resolver) MarkInProgress(id types.ItemID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inProgress[id] = struct{}{}
}

// Release removes id from the in-flight set once it reached a terminal
// status.
func (r *Resolver) Release(id types.ItemID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inProgress, id)
}

// InProgress reports whether id is in the in-flight set.
func (r *Resolver) InProgress(id types.ItemID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inProgress[id]
	return ok
}

// Resolve finds the item a dependency reference points to and whether it is
// satisfied. The declared kind is tried first; on a miss every other kind
// of the same file is searched, and a mismatch is logged.
func (r *Resolver) Resolve(ctx context.Context, dep types.DepRef) Resolution {
	res := Resolution{Dep: dep}
	if dep.Kind == types.KindFunction {
		res.State = FunctionDep
	}

	file, name, ok := types.SplitQualifiedName(dep.QualifiedName)
	if !ok {
		return res
	}

	if dep.Kind != types.KindUnknown {
		if it, found := r.items.Lookup(file, dep.Kind, name); found {
			res.Target, res.Found = it, true
			if st := r.state(it); st != Unsatisfied {
				res.State = st
				return res
			}
		}
	}

	for _, it := range r.items.InFile(file) {
		if it.ID.Kind == dep.Kind && it.ID.Name == name {
			continue
		}
		if !r.matches(ctx, it, name) {
			continue
		}
		st := r.state(it)
		if st == Unsatisfied {
			if !res.Found {
				res.Target, res.Found = it, true
			}
			continue
		}
		r.logger.Warn("dependency kind mismatch",
			"dep", dep.QualifiedName,
			"declared", dep.Kind.String(),
			"actual", it.ID.Kind.String(),
		)
		res.Target, res.Found, res.State = it, true, st
		return res
	}
	return res
}

// state reports how a matched item satisfies a dependency. A successful
// item is committed; a function-kind item always satisfies.
func (r *Resolver) state(it types.Item) Satisfaction {
	if it.Status == types.StatusSuccess {
		return Committed
	}
	if r.InProgress(it.ID) {
		return InFlight
	}
	if it.ID.Kind == types.KindFunction {
		return FunctionDep
	}
	return Unsatisfied
}

// matches reports whether it answers to name: by its own name, by its name
// without a macro parameter list, or by the name its artifact defines.
func (r *Resolver) matches(ctx context.Context, it types.Item, name string) bool {
	if it.ID.Name == name || baseName(it.ID.Name) == name {
		return true
	}
	if r.names == nil || it.Status != types.StatusSuccess || it.Artifact == "" {
		return false
	}
	defined, ok := r.names.CanonicalName(ctx, it.ID.Kind, it.Artifact)
	return ok && defined == name
}

func baseName(name string) string {
	if i := strings.Index(name, "("); i > 0 {
		return strings.TrimSpace(name[:i])
	}
	return name
}

// IsReady reports whether every dependency of item is satisfied.
func (r *Resolver) IsReady(ctx context.Context, item types.Item) bool {
	for _, dep := range item.Deps {
		if r.Resolve(ctx, dep).State == Unsatisfied {
			return false
		}
	}
	return true
}

// Missing returns the qualified names of item's unsatisfied dependencies.
func (r *Resolver) Missing(ctx context.Context, item types.Item) []string {
	var out []string
	for _, dep := range item.Deps {
		if r.Resolve(ctx, dep).State == Unsatisfied {
			out = append(out, dep.QualifiedName)
		}
	}
	return out
}

// GatherContext returns the code of item's committed dependencies in
// dependency order. Function dependencies without a real body get a
// synthesized one so the context compiles on its own. Dependencies that
// resolve to the same item are included once.
func (r *Resolver) GatherContext(ctx context.Context, item types.Item) []Entry {
	var out []Entry
	seen := make(map[types.ItemID]bool)
	for _, dep := range item.Deps {
		res := r.Resolve(ctx, dep)
		if !res.Found || res.Target.Status != types.StatusSuccess || res.Target.HeaderGuard {
			continue
		}
		if seen[res.Target.ID] || res.Target.ID == item.ID {
			continue
		}
		seen[res.Target.ID] = true

		if strings.TrimSpace(res.Target.Artifact) == "" {
			continue
		}
		code := ledger.RenderCode(ledger.Record{Kind: res.Target.ID.Kind, Code: res.Target.Artifact})
		out = append(out, Entry{Dep: dep, Origin: res.Target.ID, Code: code})
	}
	return out
}
