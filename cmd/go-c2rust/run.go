// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petar-djukic/go-c2rust/internal/report"
	"github.com/petar-djukic/go-c2rust/pkg/pipeline"
)

// newRunCmd creates the "run" command.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Translate the items of an extractor output",
		Long: "Run sweeps the item map until no further item can be translated, persisting progress " +
			"as it goes. Re-running resumes: items already translated are kept and never sent again.",
		RunE: runPipeline,
	}
	cmd.Flags().String("format", "text", "Summary format: text or yaml")
	return cmd
}

// configFromViper collects the pipeline configuration from flags,
// environment, and config file.
func configFromViper() pipeline.Config {
	return pipeline.Config{
		Input:          viper.GetString("input"),
		Output:         viper.GetString("output"),
		Provider:       viper.GetString("provider"),
		Model:          viper.GetString("model"),
		Region:         viper.GetString("region"),
		Profile:        viper.GetString("profile"),
		APIKey:         viper.GetString("api-key"),
		BaseURL:        viper.GetString("base-url"),
		MaxTokens:      viper.GetInt("max-tokens"),
		OracleTimeout:  viper.GetDuration("oracle-timeout"),
		DryRun:         viper.GetBool("dry-run"),
		MaxItems:       viper.GetInt("max-items"),
		MaxRounds:      viper.GetInt("max-rounds"),
		MaxArbitration: viper.GetInt("max-arbitration"),
		MaxRestarts:    viper.GetInt("max-restarts"),
		MaxFixRounds:   viper.GetInt("max-fix-rounds"),
		VerifyBuild:    viper.GetBool("verify-build"),
		CargoPath:      viper.GetString("cargo"),
		BuildTimeout:   viper.GetDuration("build-timeout"),
		SaveEvery:      viper.GetInt("save-every"),
		Concurrency:    viper.GetInt("concurrency"),
		Judge:          viper.GetString("judge"),
		NameExtractor:  viper.GetString("name-extractor"),
		HistoryDB:      viper.GetString("history-db"),
		Commit:         viper.GetBool("commit"),
		ValidationDir:  viper.GetString("validation-dir"),
		Logger:         slog.Default(),
	}
}

// runPipeline executes the translation run.
func runPipeline(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	p, err := pipeline.New(configFromViper())
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer p.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	result, err := p.Run(ctx)
	if result.Summary != nil {
		if perr := printSummary(cmd.OutOrStdout(), result.Summary, format); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}

// printSummary writes the summary as text tables or YAML.
func printSummary(w io.Writer, s *report.Summary, format string) error {
	switch format {
	case "", "text":
		_, err := io.WriteString(w, report.RenderText(s))
		return err
	case "yaml":
		out, err := report.RenderYAML(s)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}
	return fmt.Errorf("unknown summary format %q", format)
}
