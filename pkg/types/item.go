// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package types holds the value types shared by the translation pipeline:
// item identity, dependency references, per-item status, round records,
// build diagnostics, and oracle conversation messages.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind classifies a source item.
type Kind int

const (
	KindField     Kind = iota // global variable or struct field declaration
	KindConstant              // preprocessor constant
	KindAlias                 // type alias
	KindAggregate             // struct, union, enum
	KindFunction              // function or function-like macro

	// KindUnknown marks a dependency whose declared kind was not recognized.
	KindUnknown Kind = -1
)

// Kinds lists every kind in persisted key order.
var Kinds = []Kind{KindField, KindConstant, KindAlias, KindAggregate, KindFunction}

var kindKeys = map[Kind]string{
	KindField:     "fields",
	KindConstant:  "defines",
	KindAlias:     "typedefs",
	KindAggregate: "structs",
	KindFunction:  "functions",
}

// Key returns the persisted JSON key for the kind ("fields", "defines", ...).
func (k Kind) Key() string {
	if s, ok := kindKeys[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) String() string {
	switch k {
	case KindField:
		return "field"
	case KindConstant:
		return "constant"
	case KindAlias:
		return "alias"
	case KindAggregate:
		return "aggregate"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// ParseKind maps a persisted key or a kind name back to a Kind.
func ParseKind(s string) (Kind, bool) {
	for k, key := range kindKeys {
		if s == key || s == k.String() {
			return k, true
		}
	}
	return 0, false
}

// Status is the processing state of an item.
type Status string

const (
	StatusUnprocessed Status = "unprocessed"
	StatusInProgress  Status = "in_progress"
	StatusSuccess     Status = "success"
	StatusFailed      Status = "failed"
	StatusError       Status = "error"
	StatusSkipped     Status = "skipped"
)

// Terminal reports whether the status ends processing for the current run.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusError, StatusSkipped:
		return true
	}
	return false
}

// ItemID identifies an item by source file, kind, and name.
type ItemID struct {
	File string
	Kind Kind
	Name string
}

func (id ItemID) String() string {
	return fmt.Sprintf("%s::%s::%s", id.File, id.Kind.Key(), id.Name)
}

// QualifiedName returns the kind-free "file::name" form used by
// dependency references.
func (id ItemID) QualifiedName() string {
	return id.File + "::" + id.Name
}

// SplitQualifiedName splits "file::name" at the first separator.
func SplitQualifiedName(qn string) (file, name string, ok bool) {
	file, name, ok = strings.Cut(qn, "::")
	if !ok || file == "" || name == "" {
		return "", "", false
	}
	return file, name, true
}

// DepRef is a dependency edge as recorded by the extractor. The declared
// kind may be wrong; the resolver falls back to other kinds in the same file.
type DepRef struct {
	QualifiedName string
	Kind          Kind
}

func (d DepRef) String() string {
	return d.Kind.Key() + ":" + d.QualifiedName
}

// Item is one unit of translation work.
type Item struct {
	ID           ItemID
	Source       string   // original C text; empty means nothing to translate
	Deps         []DepRef // outgoing edges, self-references removed
	Status       Status
	Artifact     string // target-language output once successful
	Rounds       int
	Reason       string
	OriginalKind string // set when reclassified, e.g. "define"
	HeaderGuard  bool
	Diagnostics  []BuildError
	Unresolved   []string // dependency names left unmet when the run ended

	// Extra keeps persisted fields this package does not interpret.
	Extra map[string]json.RawMessage
}

// Outcome is the result of converting one item.
type Outcome struct {
	Status      Status
	Artifact    string
	Rounds      int
	Reason      string
	HeaderGuard bool
	Diagnostics []BuildError
	History     []RoundRecord
}
