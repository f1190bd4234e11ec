// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package feedback

import (
	"fmt"
	"strings"

	"github.com/petar-djukic/go-c2rust/pkg/types"
)

const (
	defaultContextLines = 2
	defaultMaxDetail    = 1200
)

// FormatConfig configures error formatting.
type FormatConfig struct {
	ContextLines int // Lines of candidate context around each error (default 2)
	MaxDetail    int // Maximum characters of compiler detail per error (default 1200)
}

// FormatErrors renders diagnostics for the fixer. Errors inside the
// candidate show the surrounding candidate lines with the error line
// marked; errors elsewhere show the compiler's own excerpt.
func FormatErrors(errs []types.BuildError, code string, cfg FormatConfig) string {
	contextLines := cfg.ContextLines
	if contextLines == 0 {
		contextLines = defaultContextLines
	}
	maxDetail := cfg.MaxDetail
	if maxDetail == 0 {
		maxDetail = defaultMaxDetail
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "## Compiler Errors (%d)\n", len(errs))
	for i, e := range errs {
		fmt.Fprintf(&buf, "\n### %d. %s\n", i+1, e.String())
		if e.File == CandidateFile && e.Line > 0 {
			if excerpt := codeContext(code, e.Line, contextLines); excerpt != "" {
				buf.WriteString("\n```\n")
				buf.WriteString(excerpt)
				buf.WriteString("```\n")
			}
			continue
		}
		if d := strings.TrimSpace(e.Detail); d != "" {
			if len(d) > maxDetail {
				d = d[:maxDetail] + "\n... (truncated)"
			}
			buf.WriteString("\n```\n")
			buf.WriteString(d)
			buf.WriteString("\n```\n")
		}
	}
	return buf.String()
}

// codeContext returns numbered lines of code around errorLine.
func codeContext(code string, errorLine, contextLines int) string {
	lines := strings.Split(code, "\n")
	if errorLine > len(lines) {
		return ""
	}
	start := errorLine - contextLines - 1
	if start < 0 {
		start = 0
	}
	end := errorLine + contextLines
	if end > len(lines) {
		end = len(lines)
	}

	var buf strings.Builder
	for i := start; i < end; i++ {
		lineNum := i + 1
		marker := "  "
		if lineNum == errorLine {
			marker = "> "
		}
		fmt.Fprintf(&buf, "%s%4d │ %s\n", marker, lineNum, lines[i])
	}
	return buf.String()
}
