// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package cargo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultTimeout bounds one `cargo check`.
const DefaultTimeout = 30 * time.Second

// ErrCargoMissing means the cargo binary could not be found.
var ErrCargoMissing = errors.New("cargo not found")

// Result is the outcome of one check.
type Result struct {
	OK       bool
	TimedOut bool
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// LookPath resolves the cargo binary, wrapping ErrCargoMissing.
func LookPath(cargoPath string) (string, error) {
	if cargoPath == "" {
		cargoPath = "cargo"
	}
	p, err := exec.LookPath(cargoPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCargoMissing, err)
	}
	return p, nil
}

// Check runs `cargo check` in dir. A failing build is reported in Result,
// not as an error; errors are reserved for being unable to run cargo.
func Check(ctx context.Context, cargoPath, dir string, timeout time.Duration) (*Result, error) {
	bin, err := LookPath(cargoPath)
	if err != nil {
		return nil, err
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, bin, "check", "--quiet", "--color", "never")
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	res := &Result{
		OK:       runErr == nil,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runErr != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
			res.TimedOut = true
			return res, nil
		}
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("running cargo: %w", runErr)
		}
	}
	return res, nil
}
