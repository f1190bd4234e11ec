// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrProtocol is matched by every *ProtocolError.
var ErrProtocol = errors.New("malformed oracle response")

// ProtocolError describes a response that does not follow the structured
// format a role was asked for.
type ProtocolError struct {
	Reason string
	Raw    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%v: %s", ErrProtocol, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return ErrProtocol }

// Confidence levels reported by the producer.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// Conversion is a producer, arbiter, or fixer answer.
type Conversion struct {
	Code         string   `json:"rust_code"`
	Confidence   string   `json:"confidence"`
	Warnings     []string `json:"warnings"`
	UnsafeUsed   bool     `json:"unsafe_used"`
	UnsafeReason string   `json:"unsafe_reason"`
}

// Verdict is a reviewer answer.
type Verdict struct {
	Pass   bool
	Reason string
}

type verdictJSON struct {
	Result string `json:"result"`
	Reason string `json:"reason"`
}

// Cleanliness is a judge answer about a function signature.
type Cleanliness struct {
	HasImplementation bool     `json:"has_implementation"`
	HasRedefinition   bool     `json:"has_redefinition"`
	Clean             bool     `json:"is_clean"`
	Violations        []string `json:"violations"`
	Severity          string   `json:"severity"`
	Recommendation    string   `json:"recommendation"`
}

var (
	fencedJSONRe = regexp.MustCompile("(?s)```json\\s*\\n(.*?)```")
	fencedCodeRe = regexp.MustCompile("(?s)```(?:rust|rs)?\\s*\\n(.*?)```")
)

// ExtractJSON returns the first JSON object in text: a ```json fenced
// block when present, otherwise the first balanced {...} span.
func ExtractJSON(text string) (string, bool) {
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	start := strings.Index(text, "{")
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// decodeLenient unmarshals JSON, retrying once with raw control characters
// inside string literals escaped.
func decodeLenient(raw string, v any) error {
	err := json.Unmarshal([]byte(raw), v)
	if err == nil {
		return nil
	}
	if err2 := json.Unmarshal([]byte(escapeControlInStrings(raw)), v); err2 == nil {
		return nil
	}
	return err
}

func escapeControlInStrings(s string) string {
	var b strings.Builder
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			case c == '\n':
				b.WriteString(`\n`)
				continue
			case c == '\r':
				b.WriteString(`\r`)
				continue
			case c == '\t':
				b.WriteString(`\t`)
				continue
			}
		} else if c == '"' {
			inString = true
		}
		b.WriteByte(c)
	}
	return b.String()
}

// ParseConversion reads a conversion answer. The JSON object form is
// preferred; a fenced code block is accepted as a fallback. A code field
// that still carries protocol text is a protocol error.
func ParseConversion(text string) (*Conversion, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ProtocolError{Reason: "empty response", Raw: text}
	}

	var conv Conversion
	if raw, ok := ExtractJSON(text); ok && decodeLenient(raw, &conv) == nil && strings.TrimSpace(conv.Code) != "" {
		conv.Code = strings.TrimSpace(conv.Code)
		conv.Confidence = strings.ToUpper(strings.TrimSpace(conv.Confidence))
	} else if m := fencedCodeRe.FindStringSubmatch(text); m != nil && strings.TrimSpace(m[1]) != "" {
		conv = Conversion{Code: strings.TrimSpace(m[1]), Confidence: ConfidenceLow}
	} else {
		return nil, &ProtocolError{Reason: "no code found", Raw: text}
	}

	if looksLikeProtocolText(conv.Code) {
		return nil, &ProtocolError{Reason: "code field contains response markup", Raw: text}
	}
	return &conv, nil
}

func looksLikeProtocolText(code string) bool {
	if strings.Contains(code, `"rust_code"`) || strings.Contains(code, "```") {
		return true
	}
	trimmed := strings.TrimSpace(code)
	return strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") && strings.Contains(trimmed, `":`)
}

// ParseReview reads a reviewer answer. Without a JSON verdict it falls back
// to scanning for PASS/FAIL; an answer with neither is a protocol error.
func ParseReview(text string) (Verdict, error) {
	if raw, ok := ExtractJSON(text); ok {
		var v verdictJSON
		if decodeLenient(raw, &v) == nil && v.Result != "" {
			return Verdict{
				Pass:   strings.EqualFold(strings.TrimSpace(v.Result), "PASS"),
				Reason: strings.TrimSpace(v.Reason),
			}, nil
		}
	}

	upper := strings.ToUpper(text)
	hasPass := strings.Contains(upper, "PASS")
	hasFail := strings.Contains(upper, "FAIL")
	switch {
	case hasPass && !hasFail:
		return Verdict{Pass: true, Reason: strings.TrimSpace(text)}, nil
	case hasFail:
		return Verdict{Pass: false, Reason: strings.TrimSpace(text)}, nil
	}
	return Verdict{Reason: "unparseable review"}, &ProtocolError{Reason: "no verdict found", Raw: text}
}

// ParseCleanliness reads a judge answer. The second result is false when no
// JSON object could be decoded and keyword scanning was used instead.
func ParseCleanliness(text string) (Cleanliness, bool) {
	if raw, ok := ExtractJSON(text); ok {
		var c Cleanliness
		if decodeLenient(raw, &c) == nil {
			if !strings.Contains(raw, `"is_clean"`) {
				c.Clean = true
			}
			if c.HasImplementation || c.HasRedefinition || len(c.Violations) > 0 {
				c.Clean = false
			}
			return c, true
		}
	}

	lower := strings.ToLower(text)
	if strings.Contains(lower, "not clean") || strings.Contains(lower, "violation") {
		return Cleanliness{
			Clean:      false,
			Violations: []string{"judge reported violations"},
			Severity:   "MEDIUM",
		}, false
	}
	return Cleanliness{Clean: true}, false
}
