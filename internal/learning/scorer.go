package learning

import (
	"math"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/storage"
)

const (
	// DefaultDecayConstant is k in strength = (1 - e^(-count/k)) * avg.
	DefaultDecayConstant = 3.0

	// MinPatternConfidence is the confidence of a pattern with zero strength.
	MinPatternConfidence = 0.6

	// MaxPatternConfidence caps learned confidence below the rule matcher.
	MaxPatternConfidence = 0.8
)

// PatternScorer converts a stored pattern into a matcher confidence.
type PatternScorer struct {
	DecayConstant float64
}

// NewPatternScorer returns a scorer using decay constant k. A non-positive k
// falls back to DefaultDecayConstant.
func NewPatternScorer(k float64) PatternScorer {
	if k <= 0 {
		k = DefaultDecayConstant
	}
	return PatternScorer{DecayConstant: k}
}

// Strength saturates with activation count and scales by avg confidence.
// After k activations the count factor is ~0.63, after 3k ~0.95.
func (s PatternScorer) Strength(p storage.ContextPattern) float64 {
	if p.ActivationCount <= 0 {
		return 0
	}
	k := s.DecayConstant
	if k <= 0 {
		k = DefaultDecayConstant
	}
	saturation := 1 - math.Exp(-float64(p.ActivationCount)/k)
	return saturation * clamp01(p.AvgConfidence)
}

// Confidence maps strength onto [MinPatternConfidence, MaxPatternConfidence].
func (s PatternScorer) Confidence(p storage.ContextPattern) float64 {
	c := MinPatternConfidence + (MaxPatternConfidence-MinPatternConfidence)*s.Strength(p)
	return math.Max(MinPatternConfidence, math.Min(MaxPatternConfidence, c))
}
