// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package report summarizes a result set: per-kind status counts, blocked
// items with their unmet dependencies, ledger statistics, and oracle usage.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/petar-djukic/go-c2rust/internal/ledger"
	"github.com/petar-djukic/go-c2rust/pkg/types"
)

// Counts holds the status counts of one kind.
type Counts struct {
	Kind        string  `yaml:"kind"`
	Total       int     `yaml:"total"`
	Processed   int     `yaml:"processed"`
	Success     int     `yaml:"success"`
	Skipped     int     `yaml:"skipped"`
	Failed      int     `yaml:"failed"`
	Error       int     `yaml:"error"`
	Pending     int     `yaml:"pending"`
	HeaderGuard int     `yaml:"header_guards"`
	AvgRounds   float64 `yaml:"avg_rounds"`

	rounds, converted int
}

// Blocked is an item whose dependencies never resolved.
type Blocked struct {
	Item       string   `yaml:"item"`
	Unresolved []string `yaml:"unresolved"`
}

// Tokens is the oracle token usage of a run.
type Tokens struct {
	Input  int `yaml:"input"`
	Output int `yaml:"output"`
}

// Run carries what is known about the run that produced the items. The
// zero value describes a result set read from disk.
type Run struct {
	ID            string
	Input         string
	Output        string
	Converted     int // items converted during the run
	Sweeps        int
	Duration      time.Duration
	Usage         types.TokenUsage
	Ledger        ledger.Stats
	LedgerRecords int
}

// Summary is the exit report.
type Summary struct {
	RunID         string       `yaml:"run_id,omitempty"`
	Input         string       `yaml:"input,omitempty"`
	Output        string       `yaml:"output,omitempty"`
	Converted     int          `yaml:"converted"`
	Sweeps        int          `yaml:"sweeps,omitempty"`
	Duration      string       `yaml:"duration,omitempty"`
	Kinds         []Counts     `yaml:"kinds"`
	Totals        Counts       `yaml:"totals"`
	Blocked       []Blocked    `yaml:"blocked,omitempty"`
	Ledger        ledger.Stats `yaml:"ledger"`
	LedgerRecords int          `yaml:"ledger_records"`
	Tokens        Tokens       `yaml:"tokens"`
}

// Build counts items per kind in persisted kind order.
func Build(items []types.Item, run Run) *Summary {
	s := &Summary{
		RunID:         run.ID,
		Input:         run.Input,
		Output:        run.Output,
		Converted:     run.Converted,
		Sweeps:        run.Sweeps,
		Ledger:        run.Ledger,
		LedgerRecords: run.LedgerRecords,
		Tokens:        Tokens{Input: run.Usage.InputTokens, Output: run.Usage.OutputTokens},
		Totals:        Counts{Kind: "total"},
	}
	if run.Duration > 0 {
		s.Duration = run.Duration.Round(time.Millisecond).String()
	}

	byKind := make(map[types.Kind]*Counts, len(types.Kinds))
	for _, k := range types.Kinds {
		byKind[k] = &Counts{Kind: k.Key()}
	}

	for _, it := range items {
		c, ok := byKind[it.ID.Kind]
		if !ok {
			continue
		}
		for _, target := range []*Counts{c, &s.Totals} {
			target.add(it)
		}
		if it.Status == types.StatusUnprocessed && len(it.Unresolved) > 0 {
			s.Blocked = append(s.Blocked, Blocked{Item: it.ID.String(), Unresolved: it.Unresolved})
		}
	}

	for _, k := range types.Kinds {
		c := byKind[k]
		c.finish()
		s.Kinds = append(s.Kinds, *c)
	}
	s.Totals.finish()
	sort.Slice(s.Blocked, func(i, j int) bool { return s.Blocked[i].Item < s.Blocked[j].Item })
	return s
}

func (c *Counts) add(it types.Item) {
	c.Total++
	switch it.Status {
	case types.StatusSuccess:
		c.Success++
		if it.HeaderGuard {
			c.HeaderGuard++
		}
	case types.StatusSkipped:
		c.Skipped++
	case types.StatusFailed:
		c.Failed++
	case types.StatusError:
		c.Error++
	default:
		c.Pending++
	}
	if it.Status.Terminal() {
		c.Processed++
	}
	if (it.Status == types.StatusSuccess || it.Status == types.StatusFailed) && it.Rounds > 0 {
		c.rounds += it.Rounds
		c.converted++
	}
}

func (c *Counts) finish() {
	if c.converted > 0 {
		c.AvgRounds = float64(c.rounds) / float64(c.converted)
	}
}

// RenderYAML encodes the summary as YAML.
func RenderYAML(s *Summary) ([]byte, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding summary: %w", err)
	}
	return out, nil
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	totalStyle   = cellStyle.Bold(true)
	blockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
)

// RenderText renders the summary as terminal tables.
func RenderText(s *Summary) string {
	var buf strings.Builder

	title := "Translation summary"
	if s.RunID != "" {
		title += " (run " + s.RunID + ")"
	}
	buf.WriteString(titleStyle.Render(title))
	buf.WriteString("\n")

	rows := make([][]string, 0, len(s.Kinds)+1)
	for _, c := range append(append([]Counts{}, s.Kinds...), s.Totals) {
		rows = append(rows, []string{
			c.Kind,
			fmt.Sprint(c.Total),
			fmt.Sprint(c.Processed),
			fmt.Sprint(c.Success),
			fmt.Sprint(c.Skipped),
			fmt.Sprint(c.Failed),
			fmt.Sprint(c.Error),
			fmt.Sprint(c.Pending),
			fmt.Sprintf("%.1f", c.AvgRounds),
		})
	}
	last := len(rows) - 1
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("kind", "total", "processed", "success", "skipped", "failed", "error", "pending", "avg rounds").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == last:
				return totalStyle
			}
			return cellStyle
		})
	buf.WriteString(t.String())
	buf.WriteString("\n")

	fmt.Fprintf(&buf, "ledger: %d records (%d added, %d superseded, %d duplicates dropped, %d rejected)\n",
		s.LedgerRecords, s.Ledger.Added, s.Ledger.Superseded, s.Ledger.Duplicates, s.Ledger.Rejected)
	if s.Tokens.Input+s.Tokens.Output > 0 {
		fmt.Fprintf(&buf, "tokens: %d in, %d out\n", s.Tokens.Input, s.Tokens.Output)
	}
	if s.Duration != "" {
		buf.WriteString(mutedStyle.Render(fmt.Sprintf("converted %d items in %d sweeps, %s", s.Converted, s.Sweeps, s.Duration)))
		buf.WriteString("\n")
	}

	if len(s.Blocked) > 0 {
		buf.WriteString("\n")
		buf.WriteString(blockedStyle.Render(fmt.Sprintf("blocked items (%d):", len(s.Blocked))))
		buf.WriteString("\n")
		for _, b := range s.Blocked {
			fmt.Fprintf(&buf, "  %s\n    waiting on: %s\n", b.Item, strings.Join(b.Unresolved, ", "))
		}
	}
	return buf.String()
}
