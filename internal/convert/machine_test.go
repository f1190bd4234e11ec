// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package convert

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/petar-djukic/go-c2rust/internal/feedback"
	"github.com/petar-djukic/go-c2rust/internal/ledger"
	"github.com/petar-djukic/go-c2rust/internal/llm"
	"github.com/petar-djukic/go-c2rust/internal/resolver"
	"github.com/petar-djukic/go-c2rust/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roleRe = regexp.MustCompile(`^# Role: (\w+)`)

// mockPrompter answers per role from scripted queues. The last answer of
// a queue repeats once the queue is drained.
type mockPrompter struct {
	mu      sync.Mutex
	answers map[string][]string
	errs    map[string]error
	calls   map[string][][]types.Message
}

func newMockPrompter(answers map[string][]string) *mockPrompter {
	return &mockPrompter{
		answers: answers,
		errs:    make(map[string]error),
		calls:   make(map[string][][]types.Message),
	}
}

func (m *mockPrompter) Generate(_ context.Context, system string, messages []types.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	role := "unknown"
	if r := roleRe.FindStringSubmatch(system); r != nil {
		role = strings.ToLower(r[1])
	}
	m.calls[role] = append(m.calls[role], messages)
	if err := m.errs[role]; err != nil {
		return "", err
	}
	q := m.answers[role]
	if len(q) == 0 {
		return "", fmt.Errorf("no scripted answer for %s", role)
	}
	answer := q[0]
	if len(q) > 1 {
		m.answers[role] = q[1:]
	}
	return answer, nil
}

func (m *mockPrompter) Usage() types.TokenUsage { return types.TokenUsage{} }

func (m *mockPrompter) count(role string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls[role])
}

// lastPrompt returns the final user message of the n-th call (0-based).
func (m *mockPrompter) lastPrompt(role string, n int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.calls[role][n]
	return msgs[len(msgs)-1].Content
}

// scriptedVerifier returns results in order, repeating the last.
type scriptedVerifier struct {
	results []*feedback.VerifyResult
	reqs    []feedback.Request
}

func (s *scriptedVerifier) Verify(_ context.Context, req feedback.Request) (*feedback.VerifyResult, error) {
	s.reqs = append(s.reqs, req)
	r := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return r, nil
}

func answer(code string) string {
	return fmt.Sprintf(`{"rust_code": %q, "confidence": "HIGH", "warnings": []}`, code)
}

const (
	pass = `{"result": "PASS", "reason": "faithful"}`
	fail = `{"result": "FAIL", "reason": "field types differ"}`
)

func newMachine(t *testing.T, p *mockPrompter, deps Deps, cfg Config) *Machine {
	t.Helper()
	deps.Prompter = p
	m, err := New(deps, cfg)
	require.NoError(t, err)
	return m
}

func phases(h []types.RoundRecord) []string {
	var out []string
	for _, r := range h {
		out = append(out, string(r.Phase)+":"+r.Verdict)
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Deps{}, DefaultConfig())
	assert.ErrorIs(t, err, ErrNotConfigured)

	cfg := DefaultConfig()
	cfg.VerifyBuild = true
	_, err = New(Deps{Prompter: newMockPrompter(nil)}, cfg)
	assert.ErrorIs(t, err, ErrNotConfigured)

	m, err := New(Deps{Prompter: newMockPrompter(nil)}, Config{MaxArbitration: -1})
	require.NoError(t, err)
	assert.Equal(t, 5, m.Config().MaxRounds)
	assert.Equal(t, 3, m.Config().ArbitrateAfter)
	assert.Equal(t, 5, m.Config().MaxFixRounds)
	assert.Zero(t, m.Config().MaxArbitration)
}

func TestConvert_MissingSourceSkipped(t *testing.T) {
	p := newMockPrompter(nil)
	m := newMachine(t, p, Deps{}, DefaultConfig())

	out := m.Convert(context.Background(), Request{Item: item(types.KindAggregate, "Ghost", "  ")})
	assert.Equal(t, types.StatusSkipped, out.Status)
	assert.Zero(t, p.count("producer"))
}

func TestConvert_HeaderGuardShortCircuits(t *testing.T) {
	p := newMockPrompter(nil)
	m := newMachine(t, p, Deps{}, DefaultConfig())

	out := m.Convert(context.Background(), Request{Item: item(types.KindConstant, "GEO_H", "#define GEO_H")})
	assert.Equal(t, types.StatusSuccess, out.Status)
	assert.True(t, out.HeaderGuard)
	assert.Equal(t, HeaderGuardArtifact, out.Artifact)
	assert.Zero(t, out.Rounds)
	assert.Zero(t, p.count("producer"))
}

func TestConvert_StructAcceptedFirstRound(t *testing.T) {
	p := newMockPrompter(map[string][]string{
		"producer": {answer("use std::os::raw::c_int;\n#[repr(C)]\npub struct Point {\n    pub x: c_int,\n    pub y: c_int,\n}")},
		"reviewer": {pass},
	})
	m := newMachine(t, p, Deps{Ledger: ledger.New(nil, nil)}, DefaultConfig())

	out := m.Convert(context.Background(), Request{Item: item(types.KindAggregate, "Point", "typedef struct { int x; int y; } Point;")})
	require.Equal(t, types.StatusSuccess, out.Status, out.Reason)
	assert.Equal(t, 1, out.Rounds)
	assert.Equal(t, "#[repr(C)]\npub struct Point {\n    pub x: c_int,\n    pub y: c_int,\n}", out.Artifact)
	assert.Equal(t, []string{"generate:OK", "review:PASS"}, phases(out.History))
	assert.Zero(t, p.count("judge"), "non-function kinds skip the cleanliness check")

	gen := p.lastPrompt("producer", 0)
	assert.Contains(t, gen, "Translate this C struct `Point` from `geo.h` to Rust.")
	assert.Contains(t, gen, "typedef struct { int x; int y; } Point;")
}

func TestConvert_FunctionCleanlinessViolationRetries(t *testing.T) {
	p := newMockPrompter(map[string][]string{
		"producer": {
			answer("pub fn area(p: Point) -> c_int {\n    p.x * p.y\n}"),
			answer("pub fn area(p: Point) -> c_int {\n    unimplemented!()\n}"),
		},
		"reviewer": {pass},
		"judge": {
			`{"has_implementation": true, "has_redefinition": false, "is_clean": false, "violations": ["body multiplies fields"], "severity": "HIGH"}`,
			`{"has_implementation": false, "has_redefinition": false, "is_clean": true, "violations": []}`,
		},
	})
	m := newMachine(t, p, Deps{Ledger: ledger.New(nil, nil)}, DefaultConfig())

	point := resolver.Entry{
		Origin: types.ItemID{File: "geo.h", Kind: types.KindAggregate, Name: "Point"},
		Code:   "#[repr(C)]\npub struct Point {\n    pub x: c_int,\n}",
	}
	req := Request{
		Item:    types.Item{ID: types.ItemID{File: "geo.c", Kind: types.KindFunction, Name: "area"}, Source: "int area(Point p) { return p.x * p.y; }"},
		Context: []resolver.Entry{point},
	}
	out := m.Convert(context.Background(), req)

	require.Equal(t, types.StatusSuccess, out.Status, out.Reason)
	assert.Equal(t, 2, out.Rounds)
	assert.Contains(t, out.Artifact, "unimplemented!()")
	assert.Equal(t, []string{
		"generate:OK", "review:PASS", "cleanliness:VIOLATION",
		"generate:OK", "review:PASS", "cleanliness:CLEAN",
	}, phases(out.History))
	assert.Equal(t, []string{"body multiplies fields"}, out.History[2].Violations)

	assert.Contains(t, p.lastPrompt("producer", 0), "geo.h::Point")
	assert.Contains(t, p.lastPrompt("producer", 0), "Produce the signature only.")
	assert.Contains(t, p.lastPrompt("producer", 1), "- body multiplies fields")
	assert.Len(t, p.calls["producer"][1], 3, "feedback continues the producer conversation")
	assert.Contains(t, p.lastPrompt("judge", 0), "must not be redefined: Point")
}

func TestConvert_ArbitrationAfterThirdRejection(t *testing.T) {
	p := newMockPrompter(map[string][]string{
		"producer": {answer("pub type Handle = *mut c_int;")},
		"reviewer": {fail, fail, fail, pass},
		"arbiter":  {answer("pub type Handle = *mut c_void;")},
	})
	m := newMachine(t, p, Deps{}, DefaultConfig())

	out := m.Convert(context.Background(), Request{Item: item(types.KindAlias, "Handle", "typedef void *Handle;")})
	require.Equal(t, types.StatusSuccess, out.Status, out.Reason)
	assert.Equal(t, "pub type Handle = *mut c_void;", out.Artifact)
	assert.Equal(t, 3, out.Rounds, "arbitration does not use a generate round")
	assert.Equal(t, 3, p.count("producer"))
	assert.Equal(t, 1, p.count("arbiter"))
	assert.Equal(t, 4, p.count("reviewer"))

	arb := p.lastPrompt("arbiter", 0)
	assert.Contains(t, arb, "### Round 1 (generate, OK)")
	assert.Contains(t, arb, "field types differ")
	assert.Contains(t, p.lastPrompt("producer", 1), "Reason: field types differ")
}

func TestConvert_ExhaustsRounds(t *testing.T) {
	p := newMockPrompter(map[string][]string{
		"producer": {answer("pub type Handle = *mut c_int;")},
		"reviewer": {fail},
		"arbiter":  {answer("pub type Handle = *mut u8;")},
	})
	m := newMachine(t, p, Deps{}, DefaultConfig())

	out := m.Convert(context.Background(), Request{Item: item(types.KindAlias, "Handle", "typedef void *Handle;")})
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.Equal(t, 5, out.Rounds)
	assert.Contains(t, out.Reason, "no accepted translation after 5 rounds")
	assert.Contains(t, out.Reason, "field types differ")
	assert.Equal(t, 5, p.count("producer"))
	assert.Equal(t, 1, p.count("arbiter"), "one arbitration per item")
	assert.Equal(t, 6, p.count("reviewer"))

	// The arbiter's rejected candidate is shown to the producer.
	assert.Contains(t, p.lastPrompt("producer", 3), "pub type Handle = *mut u8;")
}

func TestConvert_MalformedAnswerRestartsConversation(t *testing.T) {
	p := newMockPrompter(map[string][]string{
		"producer": {"Sorry, I can only describe the translation in prose.", answer("pub const LIMIT: c_int = 8;")},
		"reviewer": {pass},
	})
	m := newMachine(t, p, Deps{}, DefaultConfig())

	out := m.Convert(context.Background(), Request{Item: item(types.KindConstant, "LIMIT", "#define LIMIT 8")})
	require.Equal(t, types.StatusSuccess, out.Status, out.Reason)
	assert.Equal(t, 2, out.Rounds)
	assert.Equal(t, "generate:ERROR", phases(out.History)[0])
	assert.Len(t, p.calls["producer"][1], 1, "restart discards the conversation")
	assert.Equal(t, p.lastPrompt("producer", 0), p.lastPrompt("producer", 1))
}

func TestConvert_MalformedAnswerWithoutRestartsFails(t *testing.T) {
	p := newMockPrompter(map[string][]string{"producer": {"no json here"}})
	cfg := DefaultConfig()
	cfg.MaxRestarts = 0
	m := newMachine(t, p, Deps{}, cfg)

	out := m.Convert(context.Background(), Request{Item: item(types.KindConstant, "LIMIT", "#define LIMIT 8")})
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.Contains(t, out.Reason, "malformed")
	assert.Equal(t, 1, out.Rounds)
}

func TestConvert_UnparseableReviewIsRejection(t *testing.T) {
	p := newMockPrompter(map[string][]string{
		"producer": {answer("pub const LIMIT: c_int = 8;")},
		"reviewer": {"I am not sure what to say.", pass},
	})
	m := newMachine(t, p, Deps{}, DefaultConfig())

	out := m.Convert(context.Background(), Request{Item: item(types.KindConstant, "LIMIT", "#define LIMIT 8")})
	require.Equal(t, types.StatusSuccess, out.Status)
	assert.Equal(t, 2, out.Rounds)
	assert.Contains(t, p.lastPrompt("producer", 1), "unparseable review")
}

func TestConvert_OracleFailureIsError(t *testing.T) {
	p := newMockPrompter(nil)
	p.errs["producer"] = errors.New("connection reset")
	m := newMachine(t, p, Deps{}, DefaultConfig())

	out := m.Convert(context.Background(), Request{Item: item(types.KindConstant, "LIMIT", "#define LIMIT 8")})
	assert.Equal(t, types.StatusError, out.Status)
	assert.Contains(t, out.Reason, "producer oracle")
	assert.Contains(t, out.Reason, "connection reset")
}

func TestConvert_CancelledContextIsError(t *testing.T) {
	p := newMockPrompter(nil)
	m := newMachine(t, p, Deps{}, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := m.Convert(ctx, Request{Item: item(types.KindConstant, "LIMIT", "#define LIMIT 8")})
	assert.Equal(t, types.StatusError, out.Status)
	assert.Zero(t, p.count("producer"))
}

func verifyConfig() Config {
	cfg := DefaultConfig()
	cfg.VerifyBuild = true
	return cfg
}

func committedLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l := ledger.New(nil, nil)
	ok, _ := l.Commit(context.Background(), types.ItemID{File: "geo.h", Kind: types.KindAggregate, Name: "Point"}, "#[repr(C)]\npub struct Point {\n    pub x: c_int,\n}")
	require.True(t, ok)
	return l
}

func TestConvert_BuildFailureRepaired(t *testing.T) {
	p := newMockPrompter(map[string][]string{
		"producer": {answer("pub type PointRef = *mut Pt;")},
		"reviewer": {pass},
		"fixer":    {answer("pub type PointRef = *mut Point;")},
	})
	v := &scriptedVerifier{results: []*feedback.VerifyResult{
		{Errors: []types.BuildError{{Code: "E0412", Message: "cannot find type `Pt` in this scope", File: feedback.CandidateFile, Line: 1, Column: 25}}},
		{OK: true},
	}}
	m := newMachine(t, p, Deps{Ledger: committedLedger(t), Verifier: v}, verifyConfig())

	out := m.Convert(context.Background(), Request{Item: item(types.KindAlias, "PointRef", "typedef Point *PointRef;")})
	require.Equal(t, types.StatusSuccess, out.Status, out.Reason)
	assert.Equal(t, "pub type PointRef = *mut Point;", out.Artifact)
	assert.Equal(t, []string{"generate:OK", "review:PASS", "verify:FAIL", "repair:PASS"}, phases(out.History))

	require.Len(t, v.reqs, 2)
	assert.Contains(t, v.reqs[0].Context, "pub struct Point")
	assert.Equal(t, "geo.h::typedefs::PointRef", v.reqs[0].Label)
	assert.Equal(t, "pub type PointRef = *mut Point;", v.reqs[1].Code)

	fix := p.lastPrompt("fixer", 0)
	assert.Contains(t, fix, "error[E0412]")
	assert.NotContains(t, fix, "function pointer type")
}

func TestConvert_BuildFailureExhaustsRepairs(t *testing.T) {
	p := newMockPrompter(map[string][]string{
		"producer": {answer("pub type PointRef = *mut Pt;")},
		"reviewer": {pass},
		"fixer":    {answer("pub type PointRef = *mut Pt2;")},
	})
	v := &scriptedVerifier{results: []*feedback.VerifyResult{
		{Errors: []types.BuildError{{Message: "cannot find type"}}},
	}}
	cfg := verifyConfig()
	cfg.MaxFixRounds = 2
	m := newMachine(t, p, Deps{Ledger: committedLedger(t), Verifier: v}, cfg)

	out := m.Convert(context.Background(), Request{Item: item(types.KindAlias, "PointRef", "typedef Point *PointRef;")})
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.Contains(t, out.Reason, "after 2 repair rounds")
	assert.Equal(t, []types.BuildError{{Message: "cannot find type"}}, out.Diagnostics)
	assert.Len(t, v.reqs, 3)
	assert.Equal(t, 2, p.count("fixer"))
	assert.Equal(t, 1, out.Rounds)
}

func TestConvert_BuildCheckLeavesOutSupersededForward(t *testing.T) {
	full := "#[repr(C)]\npub struct Node {\n    pub next: *mut Node,\n}"
	p := newMockPrompter(map[string][]string{
		"producer": {answer(full)},
		"reviewer": {pass},
	})
	l := committedLedger(t)
	ok, _ := l.Commit(context.Background(), types.ItemID{File: "list.h", Kind: types.KindAggregate, Name: "Node"}, "pub struct Node;")
	require.True(t, ok)
	v := &scriptedVerifier{results: []*feedback.VerifyResult{{OK: true}}}
	m := newMachine(t, p, Deps{Ledger: l, Verifier: v}, verifyConfig())

	out := m.Convert(context.Background(), Request{Item: item(types.KindAggregate, "Node", "struct Node { struct Node *next; };")})
	require.Equal(t, types.StatusSuccess, out.Status, out.Reason)
	assert.Equal(t, full, out.Artifact)
	assert.Equal(t, []string{"generate:OK", "review:PASS", "verify:PASS"}, phases(out.History))

	require.Len(t, v.reqs, 1)
	assert.NotContains(t, v.reqs[0].Context, "pub struct Node;")
	assert.Contains(t, v.reqs[0].Context, "pub struct Point")

	stored, d := l.Commit(context.Background(), types.ItemID{File: "geo.h", Kind: types.KindAggregate, Name: "Node"}, out.Artifact)
	assert.True(t, stored)
	assert.Equal(t, ledger.DecisionSuperseded, d)
}

func TestConvert_DuplicateNameSkipsBuildCheck(t *testing.T) {
	p := newMockPrompter(map[string][]string{
		"producer": {answer("#[repr(C)]\npub struct Point {\n    pub x: f64,\n}")},
		"reviewer": {pass},
	})
	v := &scriptedVerifier{results: []*feedback.VerifyResult{{Errors: []types.BuildError{{Code: "E0428", Message: "the name `Point` is defined multiple times"}}}}}
	m := newMachine(t, p, Deps{Ledger: committedLedger(t), Verifier: v}, verifyConfig())

	out := m.Convert(context.Background(), Request{Item: item(types.KindAggregate, "Point", "struct Point { double x; };")})
	require.Equal(t, types.StatusSuccess, out.Status, out.Reason)
	assert.Empty(t, v.reqs)
	assert.Equal(t, []string{"generate:OK", "review:PASS"}, phases(out.History))
}

func TestConvert_FunctionPointerSimplifiedRepair(t *testing.T) {
	p := newMockPrompter(map[string][]string{
		"producer": {answer("pub type cmp_fn = extern fn(a: *const c_void, b: Blob) -> c_int;")},
		"reviewer": {pass},
		"fixer":    {answer(`pub type cmp_fn = Option<unsafe extern "C" fn(*const c_void, *const c_void) -> c_int>;`)},
	})
	v := &scriptedVerifier{results: []*feedback.VerifyResult{
		{Errors: []types.BuildError{{Message: "cannot find type `Blob`"}, {Message: "mismatched types"}}},
		{OK: true},
	}}
	m := newMachine(t, p, Deps{Ledger: ledger.New(nil, nil), Verifier: v}, verifyConfig())

	out := m.Convert(context.Background(), Request{Item: item(types.KindAlias, "cmp_fn", "typedef int (*cmp_fn)(const void *, const void *);")})
	require.Equal(t, types.StatusSuccess, out.Status, out.Reason)
	assert.Contains(t, p.lastPrompt("fixer", 0), "This is a function pointer type.")
	assert.Contains(t, p.lastPrompt("producer", 0), "This typedef is a function pointer.")
}

func TestConvert_DryRunProvider(t *testing.T) {
	m, err := New(Deps{Prompter: llm.NewDryRun(), Ledger: ledger.New(nil, nil)}, DefaultConfig())
	require.NoError(t, err)
	ctx := context.Background()

	out := m.Convert(ctx, Request{Item: types.Item{
		ID:     types.ItemID{File: "geo.c", Kind: types.KindFunction, Name: "area"},
		Source: "int area(Point p) { return p.x * p.y; }",
	}})
	require.Equal(t, types.StatusSuccess, out.Status, out.Reason)
	assert.Equal(t, "pub fn area() {\n    unimplemented!()\n}", out.Artifact)

	out = m.Convert(ctx, Request{Item: item(types.KindAggregate, "Point", "struct Point { int x; };")})
	require.Equal(t, types.StatusSuccess, out.Status, out.Reason)
	assert.Contains(t, out.Artifact, "pub struct Point")
}
