// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package rustsyntax scans Rust source with tree-sitter and reports the
// top-level declarations it contains and what their function bodies do.
package rustsyntax

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// DeclKind is the syntactic category of a top-level declaration.
type DeclKind string

const (
	DeclStruct   DeclKind = "struct"
	DeclEnum     DeclKind = "enum"
	DeclUnion    DeclKind = "union"
	DeclType     DeclKind = "type"
	DeclConst    DeclKind = "const"
	DeclStatic   DeclKind = "static"
	DeclFunction DeclKind = "fn"
	DeclMacro    DeclKind = "macro"
)

var declNodes = map[string]DeclKind{
	"struct_item":             DeclStruct,
	"enum_item":               DeclEnum,
	"union_item":              DeclUnion,
	"type_item":               DeclType,
	"const_item":              DeclConst,
	"static_item":             DeclStatic,
	"function_item":           DeclFunction,
	"function_signature_item": DeclFunction,
	"macro_definition":        DeclMacro,
}

// Decl is one top-level declaration.
type Decl struct {
	Kind    DeclKind
	Name    string
	HasBody bool // struct/union/enum field list, or function block
	Line    int  // 1-based
	Text    string
}

// Body describes what a function body contains.
type Body struct {
	Name       string
	Statements int
	Constructs []string // distinct construct names, first-seen order
}

var language = rust.GetLanguage()

// Scan parses code and returns its top-level declarations in source order.
// Declarations nested in extern blocks are reported too.
func Scan(ctx context.Context, code string) ([]Decl, error) {
	src := []byte(code)
	root, err := sitter.ParseCtx(ctx, src, language)
	if err != nil {
		return nil, fmt.Errorf("parsing rust: %w", err)
	}
	if root == nil {
		return nil, fmt.Errorf("parsing rust: empty tree")
	}

	var decls []Decl
	collectDecls(root, src, &decls)
	return decls, nil
}

func collectDecls(parent *sitter.Node, src []byte, out *[]Decl) {
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		n := parent.NamedChild(i)
		if n == nil {
			continue
		}
		switch n.Type() {
		case "foreign_mod_item", "declaration_list":
			collectDecls(n, src, out)
			continue
		}
		kind, ok := declNodes[n.Type()]
		if !ok {
			continue
		}
		name := n.ChildByFieldName("name")
		if name == nil {
			continue
		}
		*out = append(*out, Decl{
			Kind:    kind,
			Name:    name.Content(src),
			HasBody: n.ChildByFieldName("body") != nil,
			Line:    int(n.StartPoint().Row) + 1,
			Text:    n.Content(src),
		})
	}
}

// constructNodes maps body node types to the construct names reported by
// FunctionBodies.
var constructNodes = map[string]string{
	"let_declaration":          "let",
	"binary_expression":        "arithmetic",
	"compound_assignment_expr": "arithmetic",
	"assignment_expression":    "assignment",
	"if_expression":            "if",
	"match_expression":         "match",
	"for_expression":           "for",
	"while_expression":         "while",
	"loop_expression":          "loop",
	"call_expression":          "call",
	"impl_item":                "impl",
	"closure_expression":       "closure",
	"unsafe_block":             "unsafe",
}

// FunctionBodies reports, for every function with a body, how many
// statements it has and which constructs appear in it. Placeholder macro
// invocations (unimplemented!, todo!) contribute nothing.
func FunctionBodies(ctx context.Context, code string) ([]Body, error) {
	src := []byte(code)
	root, err := sitter.ParseCtx(ctx, src, language)
	if err != nil {
		return nil, fmt.Errorf("parsing rust: %w", err)
	}
	if root == nil {
		return nil, nil
	}

	var bodies []Body
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if n.Type() == "function_item" {
			block := n.ChildByFieldName("body")
			name := n.ChildByFieldName("name")
			if block != nil && name != nil {
				b := Body{Name: name.Content(src), Statements: int(block.NamedChildCount())}
				seen := make(map[string]bool)
				walkConstructs(block, func(c string) {
					if !seen[c] {
						seen[c] = true
						b.Constructs = append(b.Constructs, c)
					}
				})
				bodies = append(bodies, b)
			}
			return
		}
		if n.Type() == "impl_item" {
			bodies = append(bodies, Body{Name: "impl", Constructs: []string{"impl"}})
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c != nil {
				visit(c)
			}
		}
	}
	visit(root)
	return bodies, nil
}

func walkConstructs(n *sitter.Node, report func(string)) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil {
			continue
		}
		if c.Type() == "macro_invocation" {
			continue
		}
		if name, ok := constructNodes[c.Type()]; ok {
			report(name)
		}
		walkConstructs(c, report)
	}
}

// HasErrors reports whether code fails to parse cleanly.
func HasErrors(ctx context.Context, code string) bool {
	root, err := sitter.ParseCtx(ctx, []byte(code), language)
	if err != nil || root == nil {
		return true
	}
	return root.HasError()
}
