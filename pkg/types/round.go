// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package types

import "fmt"

// Phase names the state-machine step a round record came from.
type Phase string

const (
	PhaseGenerate    Phase = "generate"
	PhaseReview      Phase = "review"
	PhaseCleanliness Phase = "cleanliness"
	PhaseArbitrate   Phase = "arbitrate"
	PhaseVerify      Phase = "verify"
	PhaseRepair      Phase = "repair"
)

// RoundRecord is one entry of an item's conversion history.
type RoundRecord struct {
	Round      int
	Phase      Phase
	Code       string
	Verdict    string // PASS, FAIL, CLEAN, VIOLATION, OK, ERROR
	Reason     string
	Violations []string
	Errors     []BuildError
	Diff       string // patch summary for repair rounds
}

// BuildError is one diagnostic from the build-verification oracle.
type BuildError struct {
	Code    string // e.g. E0412; empty for uncoded errors
	Message string
	File    string
	Line    int
	Column  int
	Detail  string // continuation lines (notes, help, source excerpt)
}

func (e BuildError) String() string {
	head := "error"
	if e.Code != "" {
		head = fmt.Sprintf("error[%s]", e.Code)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s (%s:%d:%d)", head, e.Message, e.File, e.Line, e.Column)
	}
	return fmt.Sprintf("%s: %s", head, e.Message)
}
