// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package oracle defines the contract between the state machine and the
// language-model oracles: a Prompter transport, per-role Sessions that own
// their conversation history, the prompt templates, and parsers for the
// structured responses each role returns.
package oracle

import (
	"context"
	"fmt"

	"github.com/petar-djukic/go-c2rust/pkg/types"
)

// Prompter sends a conversation to a model and returns the reply text.
// Implementations must be safe for concurrent use.
type Prompter interface {
	Generate(ctx context.Context, system string, messages []types.Message) (string, error)
	Usage() types.TokenUsage
}

// Role names an oracle's job in the state machine.
type Role string

const (
	RoleProducer Role = "producer"
	RoleReviewer Role = "reviewer"
	RoleArbiter  Role = "arbiter"
	RoleJudge    Role = "judge"
	RoleFixer    Role = "fixer"
)

// Session is one role's conversation. It is not safe for concurrent use;
// each item gets its own sessions.
type Session struct {
	role     Role
	prompter Prompter
	system   string
	history  []types.Message
}

// NewSession starts an empty conversation for role.
func NewSession(p Prompter, role Role, system string) *Session {
	return &Session{role: role, prompter: p, system: system}
}

// Role returns the session's role.
func (s *Session) Role() Role { return s.role }

// Ask appends prompt as a user turn, sends the whole conversation, and
// appends the reply as an assistant turn. On failure the conversation is
// left as it was before the call.
func (s *Session) Ask(ctx context.Context, prompt string) (string, error) {
	msgs := append(s.History(), types.Message{Role: types.RoleUser, Content: prompt})
	reply, err := s.prompter.Generate(ctx, s.system, msgs)
	if err != nil {
		return "", fmt.Errorf("%s oracle: %w", s.role, err)
	}
	s.history = append(msgs, types.Message{Role: types.RoleAssistant, Content: reply})
	return reply, nil
}

// Reset discards the conversation, keeping the system prompt.
func (s *Session) Reset() {
	s.history = nil
}

// History returns a copy of the conversation so far.
func (s *Session) History() []types.Message {
	out := make([]types.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Turns returns the number of completed exchanges.
func (s *Session) Turns() int {
	return len(s.history) / 2
}
