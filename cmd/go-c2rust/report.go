// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petar-djukic/go-c2rust/internal/cargo"
	"github.com/petar-djukic/go-c2rust/internal/driver"
	"github.com/petar-djukic/go-c2rust/internal/feedback"
	gitpkg "github.com/petar-djukic/go-c2rust/internal/git"
	"github.com/petar-djukic/go-c2rust/internal/history"
	"github.com/petar-djukic/go-c2rust/internal/ledger"
	"github.com/petar-djukic/go-c2rust/internal/report"
	"github.com/petar-djukic/go-c2rust/internal/store"
)

// resultsPath is the result set the inspection commands read.
func resultsPath() (string, error) {
	if p := viper.GetString("output"); p != "" {
		return p, nil
	}
	if p := viper.GetString("input"); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("--output or --input is required")
}

// newReportCmd creates the "report" command.
func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize a result set",
		Long:  "Report prints per-kind status counts, ledger statistics, and the items still waiting on dependencies.",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			if runs, _ := cmd.Flags().GetBool("runs"); runs {
				return listRuns(cmd)
			}

			path, err := resultsPath()
			if err != nil {
				return err
			}
			items, err := store.Load(path)
			if err != nil {
				return err
			}
			l := ledger.New(ledger.NewExtractor(viper.GetString("name-extractor")), nil)
			driver.SeedLedger(cmd.Context(), l, items.Items())

			s := report.Build(items.Items(), report.Run{
				Output:        path,
				Ledger:        l.Stats(),
				LedgerRecords: l.Len(),
			})
			return printSummary(cmd.OutOrStdout(), s, format)
		},
	}
	cmd.Flags().String("format", "text", "Summary format: text or yaml")
	cmd.Flags().Bool("runs", false, "List the runs recorded in --history-db")
	return cmd
}

// listRuns prints the runs recorded in the history database.
func listRuns(cmd *cobra.Command) error {
	path := viper.GetString("history-db")
	if path == "" {
		return fmt.Errorf("--history-db is required with --runs")
	}
	hist, err := history.Open(path)
	if err != nil {
		return err
	}
	defer hist.Close()

	runs, err := hist.Runs(cmd.Context())
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, r := range runs {
		finished := "running"
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s  %s  %-10s %4d items  %s\n", r.ID, r.StartedAt.Format(time.DateTime), finished, r.Items, r.Input)
	}
	return nil
}

// newProjectCmd creates the "project" command.
func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project DIR",
		Short: "Write the validation Cargo project of a result set",
		Long: "Project writes a Cargo project holding every translated item in dependency order, " +
			"with function bodies synthesized, and optionally runs cargo check on it.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resultsPath()
			if err != nil {
				return err
			}
			dir := args[0]
			n, err := driver.ProjectFromResults(cmd.Context(), path, dir, ledger.NewExtractor(viper.GetString("name-extractor")))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "wrote %d records to %s\n", n, filepath.Join(dir, "src", "main.rs"))

			if check, _ := cmd.Flags().GetBool("check"); !check {
				return nil
			}
			return checkProject(cmd.Context(), cmd, dir)
		},
	}
	cmd.Flags().Bool("check", false, "Run cargo check on the project")
	return cmd
}

func checkProject(ctx context.Context, cmd *cobra.Command, dir string) error {
	res, err := cargo.Check(ctx, viper.GetString("cargo"), dir, viper.GetDuration("build-timeout"))
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if res.OK {
		fmt.Fprintf(w, "cargo check passed in %s\n", res.Duration.Round(time.Millisecond))
		return nil
	}
	if res.TimedOut {
		return fmt.Errorf("cargo check timed out")
	}
	errs := feedback.ParseDiagnostics(res.Stderr)
	for _, e := range errs {
		fmt.Fprintln(w, e.String())
	}
	return fmt.Errorf("cargo check failed with %d errors", len(errs))
}

// newUndoCmd creates the "undo" command.
func newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Revert the last go-c2rust results commit",
		Long:  "Undo performs a soft reset of the last commit if it was made by go-c2rust.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resultsPath()
			if err != nil {
				return err
			}
			repo, err := gitpkg.Open(gitpkg.Config{WorkDir: filepath.Dir(path)})
			if err != nil {
				return fmt.Errorf("opening repository: %w", err)
			}
			if err := repo.Undo(); err != nil {
				return fmt.Errorf("undo failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Reverted the last go-c2rust commit.")
			return nil
		},
	}
}
