// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package driver

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/petar-djukic/go-c2rust/internal/convert"
	"github.com/petar-djukic/go-c2rust/pkg/types"
)

// phases orders a sweep: base declarations first, then functions.
var phases = []struct {
	name  string
	match func(types.Kind) bool
}{
	{"declarations", func(k types.Kind) bool { return k != types.KindFunction }},
	{"functions", func(k types.Kind) bool { return k == types.KindFunction }},
}

// loop sweeps until a sweep converts nothing. It returns the number of
// sweeps that made progress.
func (rn *run) loop(ctx context.Context) (int, error) {
	sweeps := 0
	for {
		n, err := rn.sweep(ctx)
		if n > 0 {
			sweeps++
			rn.log.Debug("sweep finished", "sweep", sweeps, "converted", n)
		}
		if err != nil {
			return sweeps, err
		}
		if n == 0 || rn.limitReached() {
			if rn.limitReached() {
				rn.log.Info("item limit reached", "max_items", rn.opts.MaxItems)
			}
			return sweeps, nil
		}
	}
}

// sweep makes one pass over the unfinished items, phase by phase, converting
// every item that is ready when its turn comes.
func (rn *run) sweep(ctx context.Context) (int, error) {
	total := 0
	for _, phase := range phases {
		var pending []types.Item
		for _, it := range rn.items.Items() {
			if !it.Status.Terminal() && phase.match(it.ID.Kind) {
				pending = append(pending, it)
			}
		}
		queue := rn.res.Rank(pending)

		for len(queue) > 0 {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			if rn.limitReached() {
				return total, nil
			}
			var batch []types.Item
			batch, queue = rn.nextBatch(ctx, queue)
			if len(batch) == 0 {
				break
			}
			n, err := rn.runBatch(ctx, batch)
			total += n
			if err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// nextBatch takes up to Concurrency ready items from the front of queue that
// do not depend on each other. Items depending on a batch member stay queued
// for a later batch; items that are not ready are dropped until the next
// sweep.
func (rn *run) nextBatch(ctx context.Context, queue []types.Item) (batch, rest []types.Item) {
	limit := rn.opts.Concurrency
	if left := rn.remaining(); left > 0 && left < limit {
		limit = left
	}

	members := make(map[types.ItemID]bool)
	reached := make(map[types.ItemID]bool)
	for i, it := range queue {
		if len(batch) == limit {
			rest = append(rest, queue[i:]...)
			break
		}
		if rn.conflicts(it.ID, members, reached) {
			rest = append(rest, it)
			continue
		}
		if !rn.res.IsReady(ctx, it) {
			continue
		}
		batch = append(batch, it)
		members[it.ID] = true
		for _, to := range rn.edges[it.ID] {
			reached[to] = true
		}
	}
	return batch, rest
}

// conflicts reports whether id depends on a batch member or a batch member
// depends on id.
func (rn *run) conflicts(id types.ItemID, members, reached map[types.ItemID]bool) bool {
	if reached[id] {
		return true
	}
	for _, to := range rn.edges[id] {
		if members[to] {
			return true
		}
	}
	return false
}

// runBatch converts the batch in parallel and returns how many items reached
// a terminal status.
func (rn *run) runBatch(ctx context.Context, batch []types.Item) (int, error) {
	for _, it := range batch {
		rn.res.MarkInProgress(it.ID)
		rn.items.SetStatus(it.ID, types.StatusInProgress)
	}

	done := make([]bool, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for i, it := range batch {
		g.Go(func() error {
			ok, err := rn.process(gctx, it)
			done[i] = ok
			return err
		})
	}
	err := g.Wait()

	n := 0
	for _, ok := range done {
		if ok {
			n++
		}
	}
	return n, err
}

// process converts one item and records the outcome. It reports whether
// the item reached a terminal status; an item interrupted by cancellation
// goes back to unprocessed.
func (rn *run) process(ctx context.Context, item types.Item) (bool, error) {
	defer rn.res.Release(item.ID)
	id := item.ID
	start := time.Now()

	out := rn.convert(ctx, item)
	if out.Status == types.StatusError && ctx.Err() != nil {
		rn.items.SetStatus(id, types.StatusUnprocessed)
		return false, ctx.Err()
	}

	rn.items.Record(id, out)
	if out.Status == types.StatusSuccess && !out.HeaderGuard {
		stored, decision := rn.deps.Ledger.Commit(ctx, id, out.Artifact)
		if !stored {
			rn.log.Info("artifact not added to ledger", "item", id.String(), "decision", string(decision))
		}
	}

	rn.mu.Lock()
	rn.converted++
	switch out.Status {
	case types.StatusSuccess:
		rn.succeeded++
	case types.StatusFailed, types.StatusError:
		rn.failed++
	}
	rn.mu.Unlock()

	attrs := []any{
		"item", id.String(),
		"status", string(out.Status),
		"rounds", out.Rounds,
		"duration", time.Since(start).Round(time.Millisecond),
	}
	switch out.Status {
	case types.StatusFailed, types.StatusError:
		rn.log.Warn("item not converted", append(attrs, "reason", out.Reason)...)
	default:
		rn.log.Info("item finished", attrs...)
	}

	if rn.deps.History != nil {
		if err := rn.deps.History.RecordItem(ctx, rn.runID, id, out); err != nil {
			rn.log.Warn("recording history failed", "item", id.String(), "error", err)
		}
	}
	if err := rn.ckpt.Tick(); err != nil {
		return true, fmt.Errorf("saving results: %w", err)
	}
	return true, nil
}

// convert runs the converter on item with its gathered context. A panic is
// turned into an error outcome so one item cannot abort the run.
func (rn *run) convert(ctx context.Context, item types.Item) (out types.Outcome) {
	defer func() {
		if p := recover(); p != nil {
			rn.log.Error("conversion panicked", "item", item.ID.String(), "panic", p)
			out = types.Outcome{Status: types.StatusError, Reason: fmt.Sprintf("panic: %v", p)}
		}
	}()
	return rn.deps.Converter.Convert(ctx, convert.Request{
		Item:    item,
		Context: rn.res.GatherContext(ctx, item),
	})
}

func (rn *run) remaining() int {
	if rn.opts.MaxItems <= 0 {
		return 0
	}
	rn.mu.Lock()
	defer rn.mu.Unlock()
	return rn.opts.MaxItems - rn.converted
}

func (rn *run) limitReached() bool {
	return rn.opts.MaxItems > 0 && rn.remaining() <= 0
}

// reportBlocked records, on every unfinished item, the dependencies it is
// still waiting on.
func (rn *run) reportBlocked(ctx context.Context) {
	for _, it := range rn.items.Items() {
		if it.Status.Terminal() {
			continue
		}
		missing := rn.res.Missing(ctx, it)
		rn.items.SetUnresolved(it.ID, missing)
		rn.log.Warn("item blocked", "item", it.ID.String(), "waiting_on", missing)
	}
}
