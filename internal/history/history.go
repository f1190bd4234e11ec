// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package history records every run's per-item outcomes and round records
// in a SQLite database for later diagnosis.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/petar-djukic/go-c2rust/pkg/types"
)

// Store is a history database. It is safe for concurrent use; writes are
// serialized over a single connection.
type Store struct {
	db *sql.DB
}

// Run is one recorded pipeline run.
type Run struct {
	ID         string
	Input      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Items      int
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening history %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			input TEXT,
			started_at INTEGER,
			finished_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			run_id TEXT,
			item TEXT,
			file TEXT,
			kind TEXT,
			name TEXT,
			status TEXT,
			rounds INTEGER,
			reason TEXT,
			artifact TEXT,
			diagnostics JSON,
			recorded_at INTEGER,
			PRIMARY KEY (run_id, item)
		);`,
		`CREATE TABLE IF NOT EXISTS rounds (
			run_id TEXT,
			item TEXT,
			seq INTEGER,
			round INTEGER,
			phase TEXT,
			verdict TEXT,
			code TEXT,
			reason TEXT,
			violations JSON,
			errors JSON,
			diff TEXT,
			PRIMARY KEY (run_id, item, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_status ON outcomes(run_id, status);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// BeginRun records the start of a run and returns its identifier.
func (s *Store) BeginRun(ctx context.Context, input string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input, started_at, finished_at) VALUES (?, ?, ?, 0)`,
		id, input, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("recording run start: %w", err)
	}
	return id, nil
}

// EndRun stamps the run's finish time.
func (s *Store) EndRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET finished_at = ? WHERE id = ?`, time.Now().UnixMilli(), runID)
	if err != nil {
		return fmt.Errorf("recording run end: %w", err)
	}
	return nil
}

// RecordItem stores an item's outcome and its round history. Recording the
// same item twice in a run replaces the earlier entry.
func (s *Store) RecordItem(ctx context.Context, runID string, id types.ItemID, out types.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	diags, _ := json.Marshal(out.Diagnostics)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO outcomes (run_id, item, file, kind, name, status, rounds, reason, artifact, diagnostics, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, item) DO UPDATE SET
			status=excluded.status,
			rounds=excluded.rounds,
			reason=excluded.reason,
			artifact=excluded.artifact,
			diagnostics=excluded.diagnostics,
			recorded_at=excluded.recorded_at
	`, runID, id.String(), id.File, id.Kind.Key(), id.Name, string(out.Status), out.Rounds, out.Reason, out.Artifact, diags, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("recording outcome of %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM rounds WHERE run_id = ? AND item = ?`, runID, id.String()); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rounds (run_id, item, seq, round, phase, verdict, code, reason, violations, errors, diff)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range out.History {
		violations, _ := json.Marshal(r.Violations)
		errs, _ := json.Marshal(r.Errors)
		if _, err := stmt.ExecContext(ctx, runID, id.String(), i, r.Round, string(r.Phase), r.Verdict, r.Code, r.Reason, violations, errs, r.Diff); err != nil {
			return fmt.Errorf("recording round %d of %s: %w", i, id, err)
		}
	}
	return tx.Commit()
}

// Rounds returns an item's round records of a run in recorded order.
func (s *Store) Rounds(ctx context.Context, runID string, id types.ItemID) ([]types.RoundRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT round, phase, verdict, code, reason, violations, errors, diff
		FROM rounds WHERE run_id = ? AND item = ? ORDER BY seq
	`, runID, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	var out []types.RoundRecord
	for rows.Next() {
		var (
			r          types.RoundRecord
			phase      string
			violations []byte
			errs       []byte
		)
		if err := rows.Scan(&r.Round, &phase, &r.Verdict, &r.Code, &r.Reason, &violations, &errs, &r.Diff); err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		r.Phase = types.Phase(phase)
		if len(violations) > 0 {
			_ = json.Unmarshal(violations, &r.Violations)
		}
		if len(errs) > 0 {
			_ = json.Unmarshal(errs, &r.Errors)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// StatusCounts returns how many items of a run ended in each status.
func (s *Store) StatusCounts(ctx context.Context, runID string) (map[types.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM outcomes WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[types.Status(status)] = n
	}
	return counts, rows.Err()
}

// Runs lists recorded runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.input, r.started_at, r.finished_at, COUNT(o.item)
		FROM runs r LEFT JOIN outcomes o ON o.run_id = r.id
		GROUP BY r.id ORDER BY r.started_at DESC, r.rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished int64
		)
		if err := rows.Scan(&r.ID, &r.Input, &started, &finished, &r.Items); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		if finished > 0 {
			r.FinishedAt = time.UnixMilli(finished)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
