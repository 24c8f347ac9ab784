package matcher

import (
	"context"
	"fmt"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/learning"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/logger"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/session"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/storage"
)

// PatternReader is the read side of the store the pattern matcher needs.
type PatternReader interface {
	QueryPatterns(ctx context.Context, contextHash string) ([]storage.ContextPattern, error)
}

// PatternMatcher proposes skills that were activated or confirmed before in
// the exact same context. Only exact hash matches are considered.
type PatternMatcher struct {
	store  PatternReader
	scorer learning.PatternScorer
}

// NewPatternMatcher returns a matcher reading from store.
func NewPatternMatcher(store PatternReader, scorer learning.PatternScorer) *PatternMatcher {
	return &PatternMatcher{store: store, scorer: scorer}
}

func (m *PatternMatcher) Source() Source { return SourcePattern }

// Match returns one candidate per learned pattern. A context never seen
// before yields nothing. Store failures are logged and yield nothing, so a
// broken history never blocks recommendations.
func (m *PatternMatcher) Match(ctx context.Context, _ session.SessionContext, hash string) ([]Candidate, error) {
	if m.store == nil {
		return nil, nil
	}

	patterns, err := m.store.QueryPatterns(ctx, hash)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.G(ctx).WithError(err).Warn("pattern lookup failed, skipping learned patterns")
		return nil, nil
	}

	out := make([]Candidate, 0, len(patterns))
	for _, p := range patterns {
		if p.SkillName == "" {
			continue
		}
		out = append(out, Candidate{
			Skill:      p.SkillName,
			Confidence: m.scorer.Confidence(p),
			Reason:     fmt.Sprintf("used %d times in this context (avg %.2f)", p.ActivationCount, p.AvgConfidence),
			Source:     SourcePattern,
		})
	}
	return out, nil
}
