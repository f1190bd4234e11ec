// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package feedback verifies candidate translations with the Rust compiler,
// formats compiler diagnostics for the fixer oracle, and runs the bounded
// repair loop.
package feedback

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/petar-djukic/go-c2rust/internal/cargo"
	"github.com/petar-djukic/go-c2rust/pkg/types"
)

// CandidateFile names diagnostics located inside the candidate itself.
const CandidateFile = "candidate.rs"

// Request is one build check: a candidate compiled after the current
// ledger context.
type Request struct {
	Code    string
	Kind    types.Kind
	Label   string // shown in the generated source, e.g. the item ID
	Context string // rendered ledger
}

// VerifyResult is the outcome of a build check.
type VerifyResult struct {
	OK       bool
	TimedOut bool
	Errors   []types.BuildError // warnings excluded
	Output   string             // raw compiler output
	Duration time.Duration
}

// Verifier is the build-verification oracle.
type Verifier interface {
	Verify(ctx context.Context, req Request) (*VerifyResult, error)
}

// CargoVerifier checks candidates by running `cargo check` on a throwaway
// project. It is safe for concurrent use; every call gets its own directory.
type CargoVerifier struct {
	CargoPath string        // default "cargo"
	Timeout   time.Duration // default 30s
	TempDir   string        // parent of the throwaway projects, default os.TempDir()
}

// Verify renders the project, runs cargo, and parses its diagnostics.
// Diagnostics inside the candidate are relocated to CandidateFile with
// candidate-relative line numbers.
func (v *CargoVerifier) Verify(ctx context.Context, req Request) (*VerifyResult, error) {
	dir, err := os.MkdirTemp(v.TempDir, "c2rust-check-*")
	if err != nil {
		return nil, fmt.Errorf("creating check dir: %w", err)
	}
	defer os.RemoveAll(dir)

	main, start := cargo.RenderMain(req.Context, req.Code, req.Label)
	if err := cargo.Write(dir, cargo.Project{Main: main}); err != nil {
		return nil, err
	}

	res, err := cargo.Check(ctx, v.CargoPath, dir, v.Timeout)
	if err != nil {
		return nil, err
	}

	out := &VerifyResult{
		OK:       res.OK,
		TimedOut: res.TimedOut,
		Output:   res.Stderr,
		Duration: res.Duration,
	}
	if res.TimedOut {
		out.Errors = []types.BuildError{{Message: fmt.Sprintf("cargo check timed out after %s", v.timeout())}}
		return out, nil
	}
	if !res.OK {
		candidateLines := strings.Count(strings.TrimSpace(req.Code), "\n") + 1
		out.Errors = Relocate(ParseDiagnostics(res.Stderr), start, candidateLines)
		if len(out.Errors) == 0 {
			out.Errors = []types.BuildError{{Message: "build failed", Detail: strings.TrimSpace(res.Stderr)}}
		}
	}
	return out, nil
}

func (v *CargoVerifier) timeout() time.Duration {
	if v.Timeout == 0 {
		return cargo.DefaultTimeout
	}
	return v.Timeout
}

var (
	diagHeaderRe   = regexp.MustCompile(`^(error|warning)(?:\[(E\d+)\])?: (.+)$`)
	diagLocationRe = regexp.MustCompile(`^\s*--> (.+?):(\d+):(\d+)$`)
)

// ParseDiagnostics extracts the errors from rustc/cargo output. Warnings
// and the trailing summary lines are dropped. Each error keeps its first
// location and its continuation lines as Detail.
func ParseDiagnostics(output string) []types.BuildError {
	var (
		errs   []types.BuildError
		cur    *types.BuildError
		detail []string
	)
	flush := func() {
		if cur != nil {
			cur.Detail = strings.TrimRight(strings.Join(detail, "\n"), "\n ")
			errs = append(errs, *cur)
		}
		cur, detail = nil, nil
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := diagHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			if m[1] == "warning" || isSummary(m[3]) {
				continue
			}
			cur = &types.BuildError{Code: m[2], Message: m[3]}
			continue
		}
		if cur == nil {
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if m := diagLocationRe.FindStringSubmatch(line); m != nil && cur.File == "" {
			cur.File = m[1]
			cur.Line, _ = strconv.Atoi(m[2])
			cur.Column, _ = strconv.Atoi(m[3])
		}
		detail = append(detail, line)
	}
	flush()
	return errs
}

func isSummary(msg string) bool {
	return strings.HasPrefix(msg, "aborting due to") ||
		strings.HasPrefix(msg, "could not compile") ||
		strings.HasPrefix(msg, "Some errors have detailed explanations")
}

// Relocate moves errors whose line falls inside the candidate (starting at
// line start, spanning n lines) to CandidateFile with candidate-relative
// line numbers.
func Relocate(errs []types.BuildError, start, n int) []types.BuildError {
	out := make([]types.BuildError, len(errs))
	for i, e := range errs {
		if strings.HasSuffix(e.File, "main.rs") && e.Line >= start && e.Line < start+n {
			e.File = CandidateFile
			e.Line = e.Line - start + 1
		}
		out[i] = e
	}
	return out
}
