// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package driver

import (
	"context"
	"fmt"

	"github.com/petar-djukic/go-c2rust/internal/cargo"
	"github.com/petar-djukic/go-c2rust/internal/ledger"
	"github.com/petar-djukic/go-c2rust/internal/store"
)

// WriteValidation writes a Cargo project holding every ledger record in
// dependency order.
func WriteValidation(dir string, l *ledger.Ledger) error {
	err := cargo.Write(dir, cargo.Project{
		Name: cargo.DefaultCrateName,
		Main: cargo.RenderValidation(l.Render()),
	})
	if err != nil {
		return fmt.Errorf("writing validation project: %w", err)
	}
	return nil
}

// ProjectFromResults builds the validation project of a persisted result
// set and returns the number of records it holds.
func ProjectFromResults(ctx context.Context, path, dir string, names ledger.NameExtractor) (int, error) {
	items, err := store.Load(path)
	if err != nil {
		return 0, err
	}
	l := ledger.New(names, nil)
	SeedLedger(ctx, l, items.Items())
	if err := WriteValidation(dir, l); err != nil {
		return 0, err
	}
	return l.Len(), nil
}
