/*
Package learning implements the feedback learner and pattern scoring.

The learner adjusts a context pattern's average confidence from activations
and helpfulness feedback with a bounded exponential update. The scorer turns
a stored pattern into the confidence the pattern matcher proposes.
*/
package learning

import (
	"math"
	"time"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/storage"
)

const (
	// DefaultRate is the EMA weight given to a confirmed observation.
	DefaultRate = 0.2

	// DefaultDamping multiplies avg_confidence on negative feedback.
	DefaultDamping = 0.8

	// DefaultFloor is the lowest avg_confidence negative feedback can reach.
	DefaultFloor = 0.05
)

// Learner applies feedback to context patterns. It holds no state of its own;
// the store calls it inside the write transaction that persists the result.
type Learner struct {
	// Rate is α in avg' = avg*(1-α) + observed*α.
	Rate float64

	// Damping is applied on unhelpful feedback.
	Damping float64

	// Floor bounds damping from below.
	Floor float64
}

// NewLearner returns a learner with the default parameters.
func NewLearner() *Learner {
	return &Learner{
		Rate:    DefaultRate,
		Damping: DefaultDamping,
		Floor:   DefaultFloor,
	}
}

// Activate counts the first activation of a recommendation. A new pattern is
// seeded with the recommendation's confidence; an existing average is left
// alone.
func (l *Learner) Activate(p *storage.ContextPattern, observed float64, now time.Time) {
	if p.ActivationCount == 0 {
		p.AvgConfidence = clamp01(observed)
	}
	p.ActivationCount++
	p.LastActivated = now
}

// Reinforce applies helpful feedback. The average moves towards observed but
// never drops: a confirmation below the current average keeps it as is.
func (l *Learner) Reinforce(p *storage.ContextPattern, observed float64, now time.Time) {
	observed = clamp01(observed)

	switch {
	case p.ActivationCount == 0:
		p.AvgConfidence = observed
	case observed > p.AvgConfidence:
		p.AvgConfidence = clamp01(p.AvgConfidence*(1-l.Rate) + observed*l.Rate)
	}
	p.ActivationCount++
	p.LastActivated = now
}

// Suppress applies unhelpful feedback. activation_count is not touched.
func (l *Learner) Suppress(p *storage.ContextPattern) {
	p.AvgConfidence = clamp01(math.Max(p.AvgConfidence*l.Damping, l.Floor))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

var _ storage.PatternLearner = (*Learner)(nil)
