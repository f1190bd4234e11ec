// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package feedback

import (
	"context"
	"fmt"
	"strings"

	"github.com/petar-djukic/go-c2rust/pkg/types"
)

const defaultMaxRounds = 5

// rewriteThreshold is the similarity below which a repair is recorded as a
// rewrite rather than a fix.
const rewriteThreshold = 0.5

// Attempt is what the fixer is asked to repair in one round.
type Attempt struct {
	Round  int
	Code   string
	Errors []types.BuildError
	Prompt string // FormatErrors output for Code
}

// RepairFunc asks the fixer for a corrected version of the attempt's code.
type RepairFunc func(ctx context.Context, a Attempt) (string, error)

// LoopConfig configures the repair loop.
type LoopConfig struct {
	FormatConfig FormatConfig // Error formatting settings
	MaxRounds    int          // Maximum repair rounds (default 5)
}

// LoopResult holds the outcome of the repair loop.
type LoopResult struct {
	Success     bool          // The last candidate built
	Rounds      int           // Repair rounds performed
	Code        string        // Last candidate
	FinalResult *VerifyResult // Last verification result
	History     []types.RoundRecord
}

// Repair runs the verify-repair loop starting from a candidate that has
// already failed with first. Each round formats the errors, asks fix for a
// new candidate, and re-verifies it, up to MaxRounds times. An unchanged
// candidate still uses up its round. Verifier and fixer errors end the loop
// and are returned.
func Repair(ctx context.Context, v Verifier, req Request, first *VerifyResult, cfg LoopConfig, fix RepairFunc) (*LoopResult, error) {
	maxRounds := cfg.MaxRounds
	if maxRounds == 0 {
		maxRounds = defaultMaxRounds
	}

	result := &LoopResult{Code: req.Code, FinalResult: first}
	if first == nil || first.OK {
		result.Success = first != nil
		return result, nil
	}

	vr := first
	for i := 0; i < maxRounds; i++ {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("context canceled after %d repair rounds: %w", result.Rounds, err)
		}
		result.Rounds++

		attempt := Attempt{
			Round:  result.Rounds,
			Code:   result.Code,
			Errors: vr.Errors,
			Prompt: FormatErrors(vr.Errors, result.Code, cfg.FormatConfig),
		}
		fixed, err := fix(ctx, attempt)
		if err != nil {
			return result, fmt.Errorf("repair round %d failed: %w", result.Rounds, err)
		}
		fixed = strings.TrimSpace(fixed)

		record := types.RoundRecord{
			Round: result.Rounds,
			Phase: types.PhaseRepair,
			Code:  fixed,
			Diff:  PatchDiff(result.Code, fixed),
		}
		switch {
		case record.Diff == "":
			record.Reason = "fixer returned the candidate unchanged"
		case Similarity(result.Code, fixed) < rewriteThreshold:
			record.Reason = "fixer rewrote the candidate"
		}

		req.Code = fixed
		result.Code = fixed
		vr, err = v.Verify(ctx, req)
		if err != nil {
			result.History = append(result.History, record)
			return result, fmt.Errorf("verifying repair round %d: %w", result.Rounds, err)
		}
		result.FinalResult = vr
		record.Errors = vr.Errors
		if vr.OK {
			record.Verdict = "PASS"
			result.History = append(result.History, record)
			result.Success = true
			return result, nil
		}
		record.Verdict = "FAIL"
		result.History = append(result.History, record)
	}

	return result, nil
}
