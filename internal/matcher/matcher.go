/*
Package matcher implements the three candidate strategies of the engine.

Each strategy turns a SessionContext into skill candidates independently of
the others:

  - RuleMatcher: static marker/hint rules, fixed high confidence
  - AgentMatcher: active agent compatibility table, medium confidence
  - PatternMatcher: patterns learned from past activations and feedback

Matchers are read-only and safe for concurrent use.
*/
package matcher

import (
	"context"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/session"
)

// Source identifies the strategy that produced a candidate.
type Source string

const (
	SourceRule    Source = "rule"
	SourceAgent   Source = "agent"
	SourcePattern Source = "pattern"
)

const (
	// DefaultRuleConfidence is the confidence of every fired rule.
	DefaultRuleConfidence = 0.9

	// DefaultAgentConfidence is the confidence of agent table entries.
	DefaultAgentConfidence = 0.7
)

// Priority orders sources on confidence ties; lower wins.
func (s Source) Priority() int {
	switch s {
	case SourceRule:
		return 0
	case SourceAgent:
		return 1
	case SourcePattern:
		return 2
	default:
		return 3
	}
}

// Candidate is one skill proposed by one strategy.
type Candidate struct {
	Skill      string  `json:"skill"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Source     Source  `json:"source"`
}

// Matcher produces candidates for a session context. hash is sc.Hash(),
// computed once by the caller.
type Matcher interface {
	Source() Source
	Match(ctx context.Context, sc session.SessionContext, hash string) ([]Candidate, error)
}
