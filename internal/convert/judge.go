// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package convert

import (
	"context"
	"fmt"

	"github.com/petar-djukic/go-c2rust/internal/oracle"
	"github.com/petar-djukic/go-c2rust/internal/rustsyntax"
)

// Judge decides whether a function translation is a clean signature.
type Judge interface {
	Check(ctx context.Context, code string, known []string) (oracle.Cleanliness, error)
}

// OracleJudge asks the judge role. Every check is a fresh conversation.
type OracleJudge struct {
	Prompter oracle.Prompter
}

// Check renders the judge prompt and parses the answer. An answer without
// a JSON object is read by keyword.
func (j OracleJudge) Check(ctx context.Context, code string, known []string) (oracle.Cleanliness, error) {
	system, err := oracle.SystemPrompt(oracle.RoleJudge)
	if err != nil {
		return oracle.Cleanliness{}, err
	}
	prompt, err := oracle.Render("judge", oracle.JudgeData{Code: code, KnownNames: known})
	if err != nil {
		return oracle.Cleanliness{}, err
	}
	reply, err := oracle.NewSession(j.Prompter, oracle.RoleJudge, system).Ask(ctx, prompt)
	if err != nil {
		return oracle.Cleanliness{}, err
	}
	c, _ := oracle.ParseCleanliness(reply)
	return c, nil
}

const defaultMaxStatements = 1

// StaticJudge inspects function bodies with the Rust parser instead of an
// oracle. A body may hold at most MaxStatements statements and none of the
// logic constructs; non-function declarations must not reuse a known name.
type StaticJudge struct {
	MaxStatements int // default 1
}

// Check reports violations found in code.
func (j StaticJudge) Check(ctx context.Context, code string, known []string) (oracle.Cleanliness, error) {
	maxStatements := j.MaxStatements
	if maxStatements == 0 {
		maxStatements = defaultMaxStatements
	}

	bodies, err := rustsyntax.FunctionBodies(ctx, code)
	if err != nil {
		return oracle.Cleanliness{}, err
	}
	decls, err := rustsyntax.Scan(ctx, code)
	if err != nil {
		return oracle.Cleanliness{}, err
	}

	var c oracle.Cleanliness
	for _, b := range bodies {
		if b.Statements > maxStatements {
			c.HasImplementation = true
			c.Violations = append(c.Violations, fmt.Sprintf("%s: body has %d statements", b.Name, b.Statements))
		}
		for _, construct := range b.Constructs {
			c.HasImplementation = true
			c.Violations = append(c.Violations, fmt.Sprintf("%s: body uses %s", b.Name, construct))
		}
	}

	knownSet := make(map[string]bool, len(known))
	for _, n := range known {
		knownSet[n] = true
	}
	for _, d := range decls {
		if d.Kind == rustsyntax.DeclFunction || d.Kind == rustsyntax.DeclMacro {
			continue
		}
		if knownSet[d.Name] {
			c.HasRedefinition = true
			c.Violations = append(c.Violations, fmt.Sprintf("redefines %s %s", d.Kind, d.Name))
		}
	}

	c.Clean = len(c.Violations) == 0
	switch {
	case c.Clean:
		c.Severity = "NONE"
	case c.HasRedefinition:
		c.Severity = "HIGH"
	default:
		c.Severity = "MEDIUM"
	}
	return c, nil
}

// NewJudge returns the judge registered under name ("oracle" or "static");
// unknown names select the oracle judge.
func NewJudge(name string, p oracle.Prompter) Judge {
	if name == "static" {
		return StaticJudge{}
	}
	return OracleJudge{Prompter: p}
}
