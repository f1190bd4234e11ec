// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package convert

import (
	"regexp"
	"strings"

	"github.com/petar-djukic/go-c2rust/internal/oracle"
	"github.com/petar-djukic/go-c2rust/pkg/types"
)

// HeaderGuardArtifact is recorded for include-guard macros.
const HeaderGuardArtifact = "// include guard: nothing to translate"

const maxHintExamples = 3

var (
	cBlockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	cLineCommentRe  = regexp.MustCompile(`//[^\n]*`)
	spaceRunRe      = regexp.MustCompile(`\s+`)
	punctRe         = regexp.MustCompile(`\s*([{};,])\s*`)
	starRe          = regexp.MustCompile(`(\w)\*`)

	// Underscore-prefixed guards may carry the value 1; plain names must be
	// bare, since `#define IMG_H 480` is a real constant.
	headerGuardRe = regexp.MustCompile(`^#\s*define\s+(?:_+[A-Z][A-Z0-9_]*(?:_H|_INCLUDED)_*(?:\s+1)?|[A-Z][A-Z0-9_]*(?:_H|_INCLUDED)_*)$`)
	aggregateRe   = regexp.MustCompile(`\b(struct|union|enum)\b`)
)

// constructs are checked in this order; bitfields only inside aggregates.
var constructs = []struct {
	name      string
	re        *regexp.Regexp
	aggregate bool
}{
	{"function pointer", regexp.MustCompile(`\b\w+ ?\(\s*\*\s*\w+\s*\)\s*\([^)]*\)`), false},
	{"bitfield", regexp.MustCompile(`\b\w+ ?: ?\d+\b`), true},
	{"union", regexp.MustCompile(`\bunion ?\{[^}]*\}`), false},
	{"fixed array", regexp.MustCompile(`\b\w+ \*?\w+ ?\[\d+\]`), false},
	{"nested anonymous struct", regexp.MustCompile(`\bstruct ?\{[^}]*\} ?\w+`), false},
}

// Normalize strips C comments and collapses whitespace onto one line.
func Normalize(src string) string {
	src = cBlockCommentRe.ReplaceAllString(src, " ")
	src = cLineCommentRe.ReplaceAllString(src, " ")
	src = spaceRunRe.ReplaceAllString(src, " ")
	src = punctRe.ReplaceAllString(src, " $1 ")
	src = starRe.ReplaceAllString(src, "$1 *")
	src = spaceRunRe.ReplaceAllString(src, " ")
	src = strings.ReplaceAll(src, "( ", "(")
	src = strings.ReplaceAll(src, " )", ")")
	return strings.TrimSpace(src)
}

// IsHeaderGuard reports whether a constant's source is an include guard
// such as `#define FOO_H` or `#define __FOO_H__ 1`.
func IsHeaderGuard(item types.Item) bool {
	if item.ID.Kind != types.KindConstant {
		return false
	}
	return headerGuardRe.MatchString(Normalize(item.Source))
}

// IsFunctionPointer reports whether a typedef declares a function pointer
// or function type.
func IsFunctionPointer(item types.Item) bool {
	if item.ID.Kind != types.KindAlias {
		return false
	}
	compact := strings.ReplaceAll(Normalize(item.Source), " ", "")
	if !strings.Contains(compact, "(") || !strings.Contains(compact, ")") {
		return false
	}
	return strings.Contains(compact, "(*") || strings.HasSuffix(strings.TrimSuffix(compact, ";"), ")")
}

// Hints lists the constructs in an item's source that need special care,
// with up to three examples each.
func Hints(item types.Item) []oracle.Hint {
	src := Normalize(item.Source)
	var out []oracle.Hint
	for _, c := range constructs {
		if c.aggregate && item.ID.Kind != types.KindAggregate {
			continue
		}
		examples := c.re.FindAllString(src, maxHintExamples)
		if len(examples) == 0 {
			continue
		}
		out = append(out, oracle.Hint{Construct: c.name, Examples: examples})
	}
	return out
}

// KindLabel names an item the way the prompts refer to it.
func KindLabel(item types.Item) string {
	switch item.ID.Kind {
	case types.KindField:
		return "global variable"
	case types.KindConstant:
		return "constant"
	case types.KindAlias:
		return "typedef"
	case types.KindAggregate:
		if m := aggregateRe.FindStringSubmatch(Normalize(item.Source)); m != nil {
			return m[1]
		}
		return "struct"
	case types.KindFunction:
		if item.OriginalKind == "define" {
			return "function-like macro"
		}
		return "function"
	}
	return "declaration"
}
