// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package git

import (
	"fmt"
	"strings"
)

const maxSubjectLength = 72

// RunInfo describes the run whose results are committed.
type RunInfo struct {
	RunID     string
	Input     string
	Converted int
	Success   int
	Failed    int // failed and error items
	Blocked   int
}

// GenerateMessage builds the commit message for a result set.
//
//	results: convert 12 items from arch.json (10 ok, 2 failed)
//
//	Run: 6f1c...
//	Blocked: 3
//
//	Committed files:
//	- out.json
//
//	Generated-By: go-c2rust
func GenerateMessage(info RunInfo, files []string) string {
	var buf strings.Builder
	buf.WriteString(buildSubject(info))
	buf.WriteString("\n\n")

	if info.RunID != "" {
		fmt.Fprintf(&buf, "Run: %s\n", info.RunID)
	}
	if info.Blocked > 0 {
		fmt.Fprintf(&buf, "Blocked: %d\n", info.Blocked)
	}
	if len(files) > 0 {
		if info.RunID != "" || info.Blocked > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString("Committed files:\n")
		for _, f := range files {
			fmt.Fprintf(&buf, "- %s\n", f)
		}
	}
	buf.WriteString("\n" + trailer)
	return buf.String()
}

func buildSubject(info RunInfo) string {
	noun := "items"
	if info.Converted == 1 {
		noun = "item"
	}
	subject := fmt.Sprintf("results: convert %d %s", info.Converted, noun)
	if info.Input != "" {
		subject += " from " + info.Input
	}
	subject += fmt.Sprintf(" (%d ok, %d failed)", info.Success, info.Failed)
	if len(subject) > maxSubjectLength {
		subject = subject[:maxSubjectLength-3] + "..."
	}
	return subject
}
