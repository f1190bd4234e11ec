// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ledger keeps the accumulated set of accepted target-language
// declarations used as build context. Records are keyed by kind and the
// canonical declared name; repeated declarations are dropped, and a full
// definition supersedes an earlier forward declaration of the same name.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/petar-djukic/go-c2rust/pkg/types"
)

// Decision is the result of a Commit.
type Decision string

const (
	DecisionAdded      Decision = "added"
	DecisionSuperseded Decision = "superseded"
	DecisionDuplicate  Decision = "duplicate"
	DecisionRejected   Decision = "rejected"
)

// Record is one accepted artifact.
type Record struct {
	Kind    types.Kind
	Name    string // canonical declared name
	Origin  types.ItemID
	Code    string
	Forward bool
	seq     int
}

// Stats counts commit decisions.
type Stats struct {
	Added      int `yaml:"added" json:"added"`
	Superseded int `yaml:"superseded" json:"superseded"`
	Duplicates int `yaml:"duplicates" json:"duplicates"`
	Rejected   int `yaml:"rejected" json:"rejected"`
}

type key struct {
	kind types.Kind
	name string
}

// sectionOrder is the dependency order of a rendered snapshot.
var sectionOrder = []types.Kind{
	types.KindConstant,
	types.KindAlias,
	types.KindAggregate,
	types.KindField,
	types.KindFunction,
}

var sectionTitles = map[types.Kind]string{
	types.KindConstant:  "constants",
	types.KindAlias:     "type aliases",
	types.KindAggregate: "aggregate types",
	types.KindField:     "globals",
	types.KindFunction:  "functions",
}

// Ledger is safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	records map[key]*Record
	next    int
	stats   Stats
	names   NameExtractor
	log     *slog.Logger
}

// New returns an empty ledger. A nil extractor selects RegexExtractor; a nil
// logger selects slog.Default().
func New(names NameExtractor, logger *slog.Logger) *Ledger {
	if names == nil {
		names = RegexExtractor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		records: make(map[key]*Record),
		names:   names,
		log:     logger,
	}
}

// ExtractCanonicalName returns the declared name of code, falling back to
// the origin item's name when nothing can be extracted.
func (l *Ledger) ExtractCanonicalName(ctx context.Context, kind types.Kind, code string, origin types.ItemID) string {
	if name, ok := l.names.CanonicalName(ctx, kind, code); ok {
		return name
	}
	return origin.Name
}

// Commit offers an artifact to the ledger. It reports whether the artifact
// was stored (added or superseding a forward declaration).
func (l *Ledger) Commit(ctx context.Context, origin types.ItemID, code string) (bool, Decision) {
	if strings.TrimSpace(code) == "" {
		l.mu.Lock()
		l.stats.Rejected++
		l.mu.Unlock()
		return false, DecisionRejected
	}

	kind := origin.Kind
	name := l.ExtractCanonicalName(ctx, kind, code, origin)
	forward := IsForwardDeclaration(kind, code)
	k := key{kind: kind, name: name}

	l.mu.Lock()
	defer l.mu.Unlock()

	existing, ok := l.records[k]
	if !ok {
		l.records[k] = &Record{Kind: kind, Name: name, Origin: origin, Code: code, Forward: forward, seq: l.next}
		l.next++
		l.stats.Added++
		return true, DecisionAdded
	}

	if existing.Forward && !forward {
		l.log.Info("full definition supersedes forward declaration",
			"name", name, "kind", kind.String(), "item", origin.String(), "previous", existing.Origin.String())
		l.records[k] = &Record{Kind: kind, Name: name, Origin: origin, Code: code, seq: existing.seq}
		l.stats.Superseded++
		return true, DecisionSuperseded
	}

	l.log.Debug("duplicate declaration dropped",
		"name", name, "kind", kind.String(), "item", origin.String(), "kept", existing.Origin.String())
	l.stats.Duplicates++
	return false, DecisionDuplicate
}

// Snapshot returns the records in dependency order: constants, aliases,
// aggregates, globals, functions; commit order within each kind.
func (l *Ledger) Snapshot() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, *r)
	}
	rank := make(map[types.Kind]int, len(sectionOrder))
	for i, k := range sectionOrder {
		rank[k] = i
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return rank[out[i].Kind] < rank[out[j].Kind]
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// Has reports whether a record with the canonical name exists for kind.
func (l *Ledger) Has(kind types.Kind, name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.records[key{kind: kind, name: name}]
	return ok
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Stats returns the commit counters.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// RenderCode returns the build-context text of a record. Functions without a
// real implementation get a synthesized default body; the stored artifact is
// never changed.
func RenderCode(r Record) string {
	if r.Kind == types.KindFunction && !hasRealBody(r.Code) {
		return StubBody(r.Code)
	}
	return strings.TrimSpace(r.Code)
}

// Render returns the snapshot as Rust source, one commented section per kind.
func (l *Ledger) Render() string {
	return render(l.Snapshot())
}

// RenderFor returns the build context for a candidate artifact of origin.
// A forward declaration the candidate would supersede is left out. When a
// record already holds the candidate's key and would not be superseded,
// RenderFor reports duplicate, since Commit would drop the candidate.
func (l *Ledger) RenderFor(ctx context.Context, origin types.ItemID, code string) (rendered string, duplicate bool) {
	k := key{kind: origin.Kind, name: l.ExtractCanonicalName(ctx, origin.Kind, code, origin)}
	forward := IsForwardDeclaration(origin.Kind, code)

	l.mu.Lock()
	existing, ok := l.records[k]
	replaces := ok && existing.Forward && !forward
	l.mu.Unlock()
	if ok && !replaces {
		return "", true
	}

	records := l.Snapshot()
	if replaces {
		kept := records[:0]
		for _, r := range records {
			if r.Kind != k.kind || r.Name != k.name {
				kept = append(kept, r)
			}
		}
		records = kept
	}
	return render(records), false
}

func render(records []Record) string {
	var buf strings.Builder
	current := types.KindUnknown
	for _, r := range records {
		if r.Kind != current {
			current = r.Kind
			fmt.Fprintf(&buf, "// ---- %s ----\n\n", sectionTitles[current])
		}
		buf.WriteString(RenderCode(r))
		buf.WriteString("\n\n")
	}
	return buf.String()
}

var (
	importLineRe = regexp.MustCompile(`(?m)^\s*(?:pub\s+)?(?:use\s+[^;]*;|mod\s+\w+\s*;|extern\s+crate\s+[^;]*;)\s*$\n?`)
	innerAttrRe  = regexp.MustCompile(`(?m)^\s*#!\[[^\]]*\]\s*$\n?`)
	constDeclRe  = regexp.MustCompile(`(?m)^(\s*(?:pub(?:\([^)]*\))?\s+)?const\s+(\w+)\s*:[^\n]*)$`)
)

// PrepareCandidate cleans a candidate artifact for a build check against
// the ledger: import lines and inner attributes are removed and constants
// already held by the ledger are commented out.
func (l *Ledger) PrepareCandidate(code string) string {
	code = importLineRe.ReplaceAllString(code, "")
	code = innerAttrRe.ReplaceAllString(code, "")

	l.mu.Lock()
	defer l.mu.Unlock()
	return constDeclRe.ReplaceAllStringFunc(code, func(line string) string {
		m := constDeclRe.FindStringSubmatch(line)
		if _, ok := l.records[key{kind: types.KindConstant, name: m[2]}]; ok && strings.HasSuffix(strings.TrimSpace(line), ";") {
			return "// already defined: " + strings.TrimSpace(line)
		}
		return line
	})
}
