// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package oracle

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/petar-djukic/go-c2rust/pkg/types"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(
	template.New("prompts").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "templates/*.tmpl"),
)

// ContextEntry is one already-translated dependency shown to an oracle.
type ContextEntry struct {
	Name string
	Code string
}

// Hint lists examples of a C construct that needs special handling.
type Hint struct {
	Construct string
	Examples  []string
}

// ItemData describes the item being translated.
type ItemData struct {
	File      string
	Name      string
	KindLabel string
	Source    string
	Context   []ContextEntry
}

// GenerateData fills generate.tmpl.
type GenerateData struct {
	ItemData
	Hints           []Hint
	FunctionPointer bool
	IsFunction      bool
	FromMacro       bool
}

// ReviewData fills review.tmpl.
type ReviewData struct {
	ItemData
	Code  string
	Round int
}

// FeedbackData fills rejected.tmpl and unclean.tmpl.
type FeedbackData struct {
	Round      int
	Reason     string
	Code       string
	Violations []string
}

// ArbitrateData fills arbitrate.tmpl.
type ArbitrateData struct {
	ItemData
	History []types.RoundRecord
}

// JudgeData fills judge.tmpl.
type JudgeData struct {
	Code       string
	KnownNames []string
}

// RepairData fills repair.tmpl.
type RepairData struct {
	Round      int
	Code       string
	Errors     string
	Context    []ContextEntry
	Simplified bool
}

// SystemPrompt returns the system prompt of a role.
func SystemPrompt(role Role) (string, error) {
	return Render(string(role)+"_system", nil)
}

// Render executes the named template (without the .tmpl suffix).
func Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
