// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package ledger

import (
	"regexp"
	"strings"

	"github.com/petar-djukic/go-c2rust/pkg/types"
)

var (
	forwardAggregateRe = regexp.MustCompile(`^(?:pub(?:\([^)]*\))?\s+)?(?:struct|union|enum)\s+\w+\s*;$`)
	forwardAliasRe     = regexp.MustCompile(`^(?:pub(?:\([^)]*\))?\s+)?type\s+\w+\s*;$`)
	attributeLineRe    = regexp.MustCompile(`(?m)^\s*#!?\[[^\]]*\]\s*$`)
	lineCommentRe      = regexp.MustCompile(`(?m)//.*$`)
	blockCommentRe     = regexp.MustCompile(`(?s)/\*.*?\*/`)
	placeholderBodyRe  = regexp.MustCompile(`^(?:unimplemented|todo|unreachable)!\s*\([^)]*\)\s*;?$`)
	primitiveIntRe     = regexp.MustCompile(`^(?:i8|i16|i32|i64|i128|u8|u16|u32|u64|u128|c_int|c_uint|c_long|c_ulong|c_short|c_ushort|c_char|c_uchar|c_schar|c_longlong|c_ulonglong)$`)
)

// stripNoise removes comments and attribute lines and trims the result.
func stripNoise(code string) string {
	code = blockCommentRe.ReplaceAllString(code, "")
	code = lineCommentRe.ReplaceAllString(code, "")
	code = attributeLineRe.ReplaceAllString(code, "")
	return strings.TrimSpace(code)
}

// IsForwardDeclaration reports whether code only declares a type name
// without defining it: `struct X;` for aggregates, an opaque `type X;` for
// aliases. Other kinds never count as forward declarations.
func IsForwardDeclaration(kind types.Kind, code string) bool {
	c := stripNoise(code)
	switch kind {
	case types.KindAggregate, types.KindAlias, types.KindField:
		return forwardAggregateRe.MatchString(c) || forwardAliasRe.MatchString(c)
	}
	return false
}

// hasRealBody reports whether a function artifact carries a body other than
// a placeholder macro.
func hasRealBody(code string) bool {
	open := strings.Index(code, "{")
	end := strings.LastIndex(code, "}")
	if open < 0 || end <= open {
		return false
	}
	body := strings.TrimSpace(stripNoise(code[open+1 : end]))
	if body == "" {
		return false
	}
	return !placeholderBodyRe.MatchString(body)
}

// StubBody replaces the body of a function artifact with a default return
// value derived from its return type, keeping the signature. Artifacts that
// are not plain functions (macro_rules!) are returned unchanged.
func StubBody(code string) string {
	c := strings.TrimSpace(code)
	if strings.Contains(c, "macro_rules!") {
		return code
	}
	fnAt := strings.Index(c, "fn ")
	if fnAt < 0 {
		return code
	}

	sigEnd := signatureEnd(c, fnAt)
	if sigEnd < 0 {
		return code
	}
	sig := strings.TrimSpace(c[:sigEnd])
	return sig + " {\n    " + DefaultValue(returnType(sig)) + "\n}"
}

// signatureEnd finds the index of the '{' or ';' that ends the signature,
// skipping parentheses and angle brackets.
func signatureEnd(c string, from int) int {
	depth := 0
	for i := from; i < len(c); i++ {
		switch c[i] {
		case '(', '<', '[':
			depth++
		case ')', ']':
			depth--
		case '>':
			if i > 0 && c[i-1] == '-' {
				continue
			}
			depth--
		case '{', ';':
			if depth <= 0 {
				return i
			}
		}
	}
	return -1
}

// returnType extracts the text after the top-level "->" of a signature,
// minus any where clause.
func returnType(sig string) string {
	depth := 0
	for i := 0; i < len(sig)-1; i++ {
		switch sig[i] {
		case '(':
			depth++
		case ')':
			depth--
		case '-':
			if depth == 0 && sig[i+1] == '>' {
				rt := strings.TrimSpace(sig[i+2:])
				if w := strings.Index(rt, " where "); w >= 0 {
					rt = rt[:w]
				}
				return strings.TrimSpace(rt)
			}
		}
	}
	return ""
}

// DefaultValue returns an expression of the given Rust type usable as a
// stub return value.
func DefaultValue(rt string) string {
	rt = strings.TrimSpace(rt)
	base := rt
	if i := strings.LastIndex(base, "::"); i >= 0 && !strings.ContainsAny(base, "<*&") {
		base = base[i+2:]
	}

	switch {
	case rt == "" || rt == "()":
		return "return"
	case rt == "!":
		return "loop {}"
	case base == "bool":
		return "false"
	case base == "f32" || base == "f64" || base == "c_float" || base == "c_double":
		if strings.HasPrefix(base, "c_") {
			return "0.0"
		}
		return "0.0" + base
	case base == "usize" || base == "isize":
		return "0" + base
	case primitiveIntRe.MatchString(base):
		if strings.HasPrefix(base, "c_") {
			return "0"
		}
		return "0" + base
	case base == "char":
		return "'\\0'"
	case strings.HasPrefix(rt, "*mut"):
		return "std::ptr::null_mut()"
	case strings.HasPrefix(rt, "*const"):
		return "std::ptr::null()"
	case strings.HasPrefix(rt, "Option<") || strings.HasPrefix(rt, "Option <"):
		return "None"
	case strings.HasPrefix(rt, "Result<") || strings.HasPrefix(rt, "Result <"):
		return `Err("not implemented".into())`
	case base == "String":
		return "String::new()"
	case strings.HasPrefix(rt, "&") && strings.HasSuffix(rt, "str"):
		return `""`
	default:
		return "unimplemented!()"
	}
}
