package matcher

import (
	"context"
	"strings"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/session"
)

// RuleMatcher fires every rule whose conditions hold. Rules are independent;
// output follows table order.
type RuleMatcher struct {
	rules      []Rule
	confidence float64
}

// NewRuleMatcher returns a matcher over rules at the given confidence.
func NewRuleMatcher(rules []Rule, confidence float64) *RuleMatcher {
	return &RuleMatcher{rules: rules, confidence: confidence}
}

func (m *RuleMatcher) Source() Source { return SourceRule }

func (m *RuleMatcher) Match(_ context.Context, sc session.SessionContext, _ string) ([]Candidate, error) {
	var out []Candidate
	for _, r := range m.rules {
		if !r.Matches(sc) {
			continue
		}
		out = append(out, Candidate{
			Skill:      r.Skill,
			Confidence: m.confidence,
			Reason:     r.describe(),
			Source:     SourceRule,
		})
	}
	return out, nil
}

// Matches reports whether all of the rule's conditions hold for sc.
func (r Rule) Matches(sc session.SessionContext) bool {
	for _, m := range r.All {
		if !sc.HasMarker(m) {
			return false
		}
	}
	if len(r.Any) > 0 && !anyMarker(sc, r.Any) {
		return false
	}
	if len(r.Hints) > 0 && !anyHint(sc, r.Hints) {
		return false
	}
	return true
}

func (r Rule) describe() string {
	if r.Reason != "" {
		return r.Reason
	}
	var conds []string
	conds = append(conds, r.All...)
	conds = append(conds, r.Any...)
	if len(r.Hints) > 0 {
		conds = append(conds, "hint:"+strings.Join(r.Hints, "|"))
	}
	return "matched " + strings.Join(conds, ", ")
}

func anyMarker(sc session.SessionContext, markers []string) bool {
	for _, m := range markers {
		if sc.HasMarker(m) {
			return true
		}
	}
	return false
}

func anyHint(sc session.SessionContext, keywords []string) bool {
	for _, k := range keywords {
		if sc.HintsContain(k) {
			return true
		}
	}
	return false
}
