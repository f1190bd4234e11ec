// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package ledger

import (
	"context"
	"regexp"

	"github.com/petar-djukic/go-c2rust/internal/rustsyntax"
	"github.com/petar-djukic/go-c2rust/pkg/types"
)

// NameExtractor derives the canonical declared name of an artifact. The
// ledger keys records by (kind, canonical name), so every component that
// needs a name must go through the same extractor.
type NameExtractor interface {
	CanonicalName(ctx context.Context, kind types.Kind, code string) (string, bool)
}

var namePatterns = map[types.Kind][]*regexp.Regexp{
	types.KindField: {
		regexp.MustCompile(`(?m)^\s*(?:pub(?:\([^)]*\))?\s+)?static\s+(?:mut\s+)?(\w+)\s*:`),
		regexp.MustCompile(`(?m)^\s*(?:pub(?:\([^)]*\))?\s+)?struct\s+(\w+)`),
	},
	types.KindConstant: {
		regexp.MustCompile(`(?m)^\s*(?:pub(?:\([^)]*\))?\s+)?const\s+(\w+)\s*:`),
		regexp.MustCompile(`macro_rules!\s*(\w+)`),
	},
	types.KindAlias: {
		regexp.MustCompile(`(?m)^\s*(?:pub(?:\([^)]*\))?\s+)?type\s+(\w+)`),
		regexp.MustCompile(`(?m)^\s*(?:pub(?:\([^)]*\))?\s+)?(?:struct|union|enum)\s+(\w+)`),
	},
	types.KindAggregate: {
		regexp.MustCompile(`(?m)^\s*(?:pub(?:\([^)]*\))?\s+)?(?:struct|union|enum)\s+(\w+)`),
		regexp.MustCompile(`(?m)^\s*(?:pub(?:\([^)]*\))?\s+)?type\s+(\w+)`),
	},
	types.KindFunction: {
		regexp.MustCompile(`\bfn\s+(\w+)\s*[<(]`),
		regexp.MustCompile(`macro_rules!\s*(\w+)`),
	},
}

// RegexExtractor extracts names with per-kind patterns.
type RegexExtractor struct{}

// CanonicalName returns the first name matched by the kind's patterns.
func (RegexExtractor) CanonicalName(_ context.Context, kind types.Kind, code string) (string, bool) {
	for _, re := range namePatterns[kind] {
		if m := re.FindStringSubmatch(code); m != nil {
			return m[1], true
		}
	}
	return "", false
}

var declKindsFor = map[types.Kind][]rustsyntax.DeclKind{
	types.KindField:     {rustsyntax.DeclStatic, rustsyntax.DeclStruct},
	types.KindConstant:  {rustsyntax.DeclConst, rustsyntax.DeclMacro},
	types.KindAlias:     {rustsyntax.DeclType, rustsyntax.DeclStruct, rustsyntax.DeclUnion, rustsyntax.DeclEnum},
	types.KindAggregate: {rustsyntax.DeclStruct, rustsyntax.DeclUnion, rustsyntax.DeclEnum, rustsyntax.DeclType},
	types.KindFunction:  {rustsyntax.DeclFunction, rustsyntax.DeclMacro},
}

// SyntaxExtractor parses the artifact with tree-sitter and falls back to
// the regex patterns when no matching declaration is found.
type SyntaxExtractor struct{}

// CanonicalName returns the name of the first declaration of an expected
// syntactic category, preferring categories in the kind's listed order.
func (SyntaxExtractor) CanonicalName(ctx context.Context, kind types.Kind, code string) (string, bool) {
	decls, err := rustsyntax.Scan(ctx, code)
	if err == nil {
		for _, want := range declKindsFor[kind] {
			for _, d := range decls {
				if d.Kind == want {
					return d.Name, true
				}
			}
		}
	}
	return RegexExtractor{}.CanonicalName(ctx, kind, code)
}

// NewExtractor returns the extractor registered under name ("regex" or
// "syntax"); unknown names fall back to regex.
func NewExtractor(name string) NameExtractor {
	if name == "syntax" {
		return SyntaxExtractor{}
	}
	return RegexExtractor{}
}
