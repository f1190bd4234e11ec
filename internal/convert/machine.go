// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package convert drives one item through the translation protocol:
// generate, review, cleanliness check, arbitration, build verification,
// and repair.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/petar-djukic/go-c2rust/internal/feedback"
	"github.com/petar-djukic/go-c2rust/internal/ledger"
	"github.com/petar-djukic/go-c2rust/internal/oracle"
	"github.com/petar-djukic/go-c2rust/internal/resolver"
	"github.com/petar-djukic/go-c2rust/pkg/types"
)

const (
	defaultMaxRounds      = 5
	defaultMaxArbitration = 1
	defaultArbitrateAfter = 3
	defaultMaxRestarts    = 2
	defaultMaxFixRounds   = 5
)

// ErrNotConfigured is returned by New when a required collaborator is
// missing.
var ErrNotConfigured = errors.New("state machine not configured")

// Config bounds the protocol.
type Config struct {
	MaxRounds      int  // Generate/review cycles, restarts included (default 5)
	MaxArbitration int  // Arbitration rounds per item; negative disables
	ArbitrateAfter int  // First round eligible for arbitration (default 3)
	MaxRestarts    int  // Clean restarts after malformed producer answers; negative disables
	MaxFixRounds   int  // Repair rounds after a failed build (default 5)
	VerifyBuild    bool // Check accepted candidates against the ledger
	Format         feedback.FormatConfig
}

// DefaultConfig returns the default protocol bounds with build
// verification off.
func DefaultConfig() Config {
	return Config{
		MaxRounds:      defaultMaxRounds,
		MaxArbitration: defaultMaxArbitration,
		ArbitrateAfter: defaultArbitrateAfter,
		MaxRestarts:    defaultMaxRestarts,
		MaxFixRounds:   defaultMaxFixRounds,
	}
}

// Deps holds the machine's collaborators.
type Deps struct {
	Prompter oracle.Prompter   // required
	Judge    Judge             // nil selects OracleJudge over Prompter
	Verifier feedback.Verifier // required when VerifyBuild is set
	Ledger   *ledger.Ledger    // required when VerifyBuild is set
	Logger   *slog.Logger
}

// Request is one item to convert together with its gathered context.
type Request struct {
	Item    types.Item
	Context []resolver.Entry
}

// Machine converts items. It holds no per-item state and is safe for
// concurrent use when its collaborators are.
type Machine struct {
	deps    Deps
	cfg     Config
	systems map[oracle.Role]string
}

// New validates the collaborators and renders the role system prompts.
func New(deps Deps, cfg Config) (*Machine, error) {
	if deps.Prompter == nil {
		return nil, fmt.Errorf("%w: prompter is required", ErrNotConfigured)
	}
	if cfg.VerifyBuild && (deps.Verifier == nil || deps.Ledger == nil) {
		return nil, fmt.Errorf("%w: build verification needs a verifier and a ledger", ErrNotConfigured)
	}
	if deps.Judge == nil {
		deps.Judge = OracleJudge{Prompter: deps.Prompter}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = defaultMaxRounds
	}
	if cfg.ArbitrateAfter <= 0 {
		cfg.ArbitrateAfter = defaultArbitrateAfter
	}
	if cfg.MaxFixRounds <= 0 {
		cfg.MaxFixRounds = defaultMaxFixRounds
	}
	cfg.MaxArbitration = max(cfg.MaxArbitration, 0)
	cfg.MaxRestarts = max(cfg.MaxRestarts, 0)

	systems := make(map[oracle.Role]string)
	for _, role := range []oracle.Role{oracle.RoleProducer, oracle.RoleReviewer, oracle.RoleArbiter, oracle.RoleFixer} {
		s, err := oracle.SystemPrompt(role)
		if err != nil {
			return nil, err
		}
		systems[role] = s
	}
	return &Machine{deps: deps, cfg: cfg, systems: systems}, nil
}

// Config returns the effective bounds.
func (m *Machine) Config() Config { return m.cfg }

// Convert runs the protocol for one item and returns its terminal outcome.
// Oracle and verifier failures end the item with StatusError; exhausted
// budgets end it with StatusFailed.
func (m *Machine) Convert(ctx context.Context, req Request) types.Outcome {
	item := req.Item
	if strings.TrimSpace(item.Source) == "" {
		return types.Outcome{Status: types.StatusSkipped, Reason: "no source text"}
	}
	if IsHeaderGuard(item) {
		m.deps.Logger.Info("header guard short-circuited", "item", item.ID.String())
		return types.Outcome{Status: types.StatusSuccess, Artifact: HeaderGuardArtifact, HeaderGuard: true}
	}

	c := &conversion{
		m:        m,
		item:     item,
		log:      m.deps.Logger.With("item", item.ID.String()),
		producer: oracle.NewSession(m.deps.Prompter, oracle.RoleProducer, m.systems[oracle.RoleProducer]),
		reviewer: oracle.NewSession(m.deps.Prompter, oracle.RoleReviewer, m.systems[oracle.RoleReviewer]),
		data:     itemData(item, req.Context),
		entries:  req.Context,
	}
	out, err := c.run(ctx)
	if err != nil {
		c.log.Error("conversion error", "error", err)
		return types.Outcome{
			Status:  types.StatusError,
			Rounds:  c.round,
			Reason:  err.Error(),
			History: c.history,
		}
	}
	return out
}

func itemData(item types.Item, entries []resolver.Entry) oracle.ItemData {
	data := oracle.ItemData{
		File:      item.ID.File,
		Name:      item.ID.Name,
		KindLabel: KindLabel(item),
		Source:    strings.TrimSpace(item.Source),
	}
	for _, e := range entries {
		data.Context = append(data.Context, oracle.ContextEntry{Name: e.Origin.QualifiedName(), Code: e.Code})
	}
	return data
}

// conversion is the state of one Convert call.
type conversion struct {
	m        *Machine
	item     types.Item
	log      *slog.Logger
	producer *oracle.Session
	reviewer *oracle.Session
	data     oracle.ItemData
	entries  []resolver.Entry

	round        int
	restarts     int
	arbitrations int
	reviews      int
	history      []types.RoundRecord
}

// assessment is the combined review and cleanliness verdict on a candidate.
type assessment struct {
	pass   bool
	prompt string // feedback for the producer when rejected
	reason string
}

func (c *conversion) run(ctx context.Context) (types.Outcome, error) {
	cfg := c.m.cfg
	genPrompt, err := oracle.Render("generate", oracle.GenerateData{
		ItemData:        c.data,
		Hints:           Hints(c.item),
		FunctionPointer: IsFunctionPointer(c.item),
		IsFunction:      c.item.ID.Kind == types.KindFunction,
		FromMacro:       c.item.OriginalKind == "define",
	})
	if err != nil {
		return types.Outcome{}, err
	}

	prompt := genPrompt
	lastReason := ""
	for c.round < cfg.MaxRounds {
		if err := ctx.Err(); err != nil {
			return types.Outcome{}, err
		}
		c.round++

		reply, err := c.producer.Ask(ctx, prompt)
		if err != nil {
			return types.Outcome{}, err
		}
		conv, perr := oracle.ParseConversion(reply)
		if perr != nil {
			c.record(types.RoundRecord{Phase: types.PhaseGenerate, Verdict: "ERROR", Reason: perr.Error()})
			if c.restarts >= cfg.MaxRestarts {
				return c.failed(fmt.Sprintf("producer answer malformed after %d restarts: %v", c.restarts, perr)), nil
			}
			c.restarts++
			c.log.Warn("malformed producer answer, restarting conversation", "round", c.round, "restart", c.restarts)
			c.producer.Reset()
			prompt = genPrompt
			continue
		}
		c.record(types.RoundRecord{Phase: types.PhaseGenerate, Code: conv.Code, Verdict: "OK", Reason: strings.Join(conv.Warnings, "; ")})

		a, err := c.assess(ctx, conv.Code, false)
		if err != nil {
			return types.Outcome{}, err
		}
		if a.pass {
			return c.accept(ctx, conv.Code)
		}
		lastReason = a.reason
		prompt = a.prompt

		if c.round >= cfg.ArbitrateAfter && c.arbitrations < cfg.MaxArbitration {
			code, err := c.arbitrate(ctx)
			if err != nil {
				return types.Outcome{}, err
			}
			if code != "" {
				a, err := c.assess(ctx, code, true)
				if err != nil {
					return types.Outcome{}, err
				}
				if a.pass {
					return c.accept(ctx, code)
				}
				lastReason = a.reason
				prompt = a.prompt
			}
		}
	}

	return c.failed(fmt.Sprintf("no accepted translation after %d rounds: %s", c.round, lastReason)), nil
}

// assess reviews a candidate and, for functions, checks its cleanliness.
// fromArbiter puts the rejected code into the feedback, since the producer
// has not seen it.
func (c *conversion) assess(ctx context.Context, code string, fromArbiter bool) (assessment, error) {
	c.reviews++
	reviewPrompt, err := oracle.Render("review", oracle.ReviewData{ItemData: c.data, Code: code, Round: c.reviews})
	if err != nil {
		return assessment{}, err
	}
	reply, err := c.reviewer.Ask(ctx, reviewPrompt)
	if err != nil {
		return assessment{}, err
	}
	verdict, perr := oracle.ParseReview(reply)
	if perr != nil {
		c.log.Warn("unparseable review counted as rejection", "round", c.round)
	}

	shown := ""
	if fromArbiter {
		shown = code
	}

	if !verdict.Pass {
		c.record(types.RoundRecord{Phase: types.PhaseReview, Code: code, Verdict: "FAIL", Reason: verdict.Reason})
		p, err := oracle.Render("rejected", oracle.FeedbackData{Round: c.round, Reason: verdict.Reason, Code: shown})
		if err != nil {
			return assessment{}, err
		}
		return assessment{prompt: p, reason: verdict.Reason}, nil
	}
	c.record(types.RoundRecord{Phase: types.PhaseReview, Code: code, Verdict: "PASS", Reason: verdict.Reason})

	if c.item.ID.Kind != types.KindFunction {
		return assessment{pass: true}, nil
	}

	clean, err := c.m.deps.Judge.Check(ctx, code, c.knownNames(ctx))
	if err != nil {
		return assessment{}, err
	}
	if clean.Clean {
		c.record(types.RoundRecord{Phase: types.PhaseCleanliness, Code: code, Verdict: "CLEAN"})
		return assessment{pass: true}, nil
	}

	violations := clean.Violations
	if len(violations) == 0 {
		violations = []string{"judge reported the translation as not clean"}
	}
	reason := strings.Join(violations, "; ")
	c.record(types.RoundRecord{Phase: types.PhaseCleanliness, Code: code, Verdict: "VIOLATION", Reason: reason, Violations: violations})
	c.log.Info("cleanliness violation", "round", c.round, "violations", len(violations))

	p, err := oracle.Render("unclean", oracle.FeedbackData{Round: c.round, Violations: violations, Code: shown})
	if err != nil {
		return assessment{}, err
	}
	return assessment{prompt: p, reason: reason}, nil
}

// knownNames lists the canonical names of the non-function context the
// candidate must not redefine.
func (c *conversion) knownNames(ctx context.Context) []string {
	var names []string
	for _, e := range c.entries {
		if e.Origin.Kind == types.KindFunction {
			continue
		}
		name := e.Origin.Name
		if l := c.m.deps.Ledger; l != nil {
			name = l.ExtractCanonicalName(ctx, e.Origin.Kind, e.Code, e.Origin)
		}
		names = append(names, name)
	}
	return names
}

// arbitrate asks the arbiter for a replacement candidate. An unusable
// answer yields no candidate.
func (c *conversion) arbitrate(ctx context.Context) (string, error) {
	c.arbitrations++
	prompt, err := oracle.Render("arbitrate", oracle.ArbitrateData{ItemData: c.data, History: c.history})
	if err != nil {
		return "", err
	}
	arbiter := oracle.NewSession(c.m.deps.Prompter, oracle.RoleArbiter, c.m.systems[oracle.RoleArbiter])
	reply, err := arbiter.Ask(ctx, prompt)
	if err != nil {
		return "", err
	}
	conv, perr := oracle.ParseConversion(reply)
	if perr != nil {
		c.record(types.RoundRecord{Phase: types.PhaseArbitrate, Verdict: "ERROR", Reason: perr.Error()})
		c.log.Warn("arbiter answer unusable", "error", perr)
		return "", nil
	}
	c.record(types.RoundRecord{Phase: types.PhaseArbitrate, Code: conv.Code, Verdict: "OK"})
	c.log.Info("arbitration proposed a candidate", "round", c.round)
	return conv.Code, nil
}

// accept finishes an approved candidate, verifying and repairing it when
// build verification is on.
func (c *conversion) accept(ctx context.Context, code string) (types.Outcome, error) {
	if l := c.m.deps.Ledger; l != nil {
		code = strings.TrimSpace(l.PrepareCandidate(code))
	}
	if !c.m.cfg.VerifyBuild {
		return c.success(code), nil
	}

	buildCtx, duplicate := c.m.deps.Ledger.RenderFor(ctx, c.item.ID, code)
	if duplicate {
		c.log.Info("name already in the ledger, skipping build check")
		return c.success(code), nil
	}
	vreq := feedback.Request{
		Code:    code,
		Kind:    c.item.ID.Kind,
		Label:   c.item.ID.String(),
		Context: buildCtx,
	}
	vr, err := c.m.deps.Verifier.Verify(ctx, vreq)
	if err != nil {
		return types.Outcome{}, err
	}
	rec := types.RoundRecord{Phase: types.PhaseVerify, Code: code, Verdict: "PASS", Errors: vr.Errors}
	if !vr.OK {
		rec.Verdict = "FAIL"
	}
	c.record(rec)
	if vr.OK {
		return c.success(code), nil
	}
	c.log.Info("build failed, repairing", "errors", len(vr.Errors))

	fixer := oracle.NewSession(c.m.deps.Prompter, oracle.RoleFixer, c.m.systems[oracle.RoleFixer])
	fnPointer := IsFunctionPointer(c.item)
	fix := func(ctx context.Context, a feedback.Attempt) (string, error) {
		prompt, err := oracle.Render("repair", oracle.RepairData{
			Round:      a.Round,
			Code:       a.Code,
			Errors:     a.Prompt,
			Context:    c.data.Context,
			Simplified: fnPointer && a.Round == 1 && len(a.Errors) == 2,
		})
		if err != nil {
			return "", err
		}
		reply, err := fixer.Ask(ctx, prompt)
		if err != nil {
			return "", err
		}
		conv, perr := oracle.ParseConversion(reply)
		if perr != nil {
			c.log.Warn("fixer answer unusable", "round", a.Round, "error", perr)
			return a.Code, nil
		}
		return strings.TrimSpace(c.m.deps.Ledger.PrepareCandidate(conv.Code)), nil
	}

	res, err := feedback.Repair(ctx, c.m.deps.Verifier, vreq, vr, feedback.LoopConfig{
		FormatConfig: c.m.cfg.Format,
		MaxRounds:    c.m.cfg.MaxFixRounds,
	}, fix)
	for _, r := range res.History {
		c.record(r)
	}
	if err != nil {
		return types.Outcome{}, err
	}
	if res.Success {
		return c.success(res.Code), nil
	}

	out := c.failed(fmt.Sprintf("build still failing after %d repair rounds", res.Rounds))
	if res.FinalResult != nil {
		out.Diagnostics = res.FinalResult.Errors
	}
	return out, nil
}

func (c *conversion) record(r types.RoundRecord) {
	if r.Round == 0 {
		r.Round = c.round
	}
	c.history = append(c.history, r)
}

func (c *conversion) success(code string) types.Outcome {
	c.log.Info("item converted", "rounds", c.round)
	return types.Outcome{Status: types.StatusSuccess, Artifact: code, Rounds: c.round, History: c.history}
}

func (c *conversion) failed(reason string) types.Outcome {
	c.log.Warn("item failed", "rounds", c.round, "reason", reason)
	return types.Outcome{Status: types.StatusFailed, Rounds: c.round, Reason: reason, History: c.history}
}
