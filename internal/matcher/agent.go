package matcher

import (
	"context"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/session"
)

// AgentMatcher proposes the skills compatible with each active agent.
// Two agents naming the same skill yield two candidates.
type AgentMatcher struct {
	agents     map[string][]string
	confidence float64
}

// NewAgentMatcher returns a matcher over the agent table.
func NewAgentMatcher(agents map[string][]string, confidence float64) *AgentMatcher {
	return &AgentMatcher{agents: agents, confidence: confidence}
}

func (m *AgentMatcher) Source() Source { return SourceAgent }

func (m *AgentMatcher) Match(_ context.Context, sc session.SessionContext, _ string) ([]Candidate, error) {
	var out []Candidate
	for _, agent := range sc.ActiveAgents {
		for _, skill := range m.agents[agent] {
			out = append(out, Candidate{
				Skill:      skill,
				Confidence: m.confidence,
				Reason:     "compatible with active agent " + agent,
				Source:     SourceAgent,
			})
		}
	}
	return out, nil
}
