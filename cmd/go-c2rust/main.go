// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Command go-c2rust converts C declarations extracted from a code base into
// Rust, one item at a time in dependency order.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "go-c2rust",
		Short: "Dependency-ordered C to Rust translation",
		Long: "go-c2rust reads the item map produced by a structural C extractor, translates every item " +
			"with a language-model oracle in dependency order, and writes the results back to the map.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), viper.GetString("log-format"), viper.GetBool("debug"))
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	// Global flags.
	flags := rootCmd.PersistentFlags()
	flags.String("input", "", "Extractor output (item map JSON)")
	flags.String("output", "", "Result set (default: the input file)")
	flags.String("provider", "bedrock", "Oracle provider: bedrock, gemini, openai, dryrun")
	flags.String("model", "", "Model ID")
	flags.String("region", "", "AWS region for Bedrock")
	flags.String("profile", "", "AWS shared config profile for Bedrock")
	flags.String("api-key", "", "API key for gemini and openai")
	flags.String("base-url", "", "Base URL of an OpenAI-compatible endpoint")
	flags.Int("max-tokens", 4096, "Maximum tokens per oracle reply")
	flags.Duration("oracle-timeout", 0, "Timeout per oracle call (default 5m)")
	flags.Bool("dry-run", false, "Answer every oracle role offline")
	flags.Int("max-items", 0, "Stop after converting this many items (0 = no limit)")
	flags.Int("max-rounds", 5, "Generate/review cycles per item")
	flags.Int("max-arbitration", 1, "Arbitration rounds per item (negative disables)")
	flags.Int("max-restarts", 2, "Clean restarts after malformed answers (negative disables)")
	flags.Int("max-fix-rounds", 5, "Repair rounds after a failed build")
	flags.Bool("verify-build", false, "Check accepted items with cargo")
	flags.String("cargo", "cargo", "Cargo binary")
	flags.Duration("build-timeout", 0, "Timeout per cargo check (default 30s)")
	flags.Int("save-every", 10, "Persist the result set after this many items")
	flags.Int("concurrency", 1, "Items converted in parallel")
	flags.String("judge", "oracle", "Cleanliness judge: oracle or static")
	flags.String("name-extractor", "regex", "Canonical name extraction: regex or syntax")
	flags.String("history-db", "", "SQLite database recording every round (empty disables)")
	flags.Bool("commit", false, "Commit the results when the output lives in a git repository")
	flags.String("validation-dir", "", "Write the validation Cargo project here after a run")
	flags.String("log-format", "text", "Log format: text or json")
	flags.Bool("debug", false, "Enable debug logging")

	// Bind flags to viper.
	viper.BindPFlags(flags)

	// Env vars: GO_C2RUST_MODEL, GO_C2RUST_API_KEY, etc.; .env is read first.
	_ = godotenv.Load()
	viper.SetEnvPrefix("GO_C2RUST")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Config file.
	viper.SetConfigName(".go-c2rust")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.ReadInConfig() // Ignore error; config file is optional.

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newProjectCmd())
	rootCmd.AddCommand(newUndoCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// newLogger returns a text or JSON slog logger writing to w.
func newLogger(w io.Writer, format string, debug bool) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

// newVersionCmd creates the "version" command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print go-c2rust version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "go-c2rust %s\n", version)
		},
	}
}
