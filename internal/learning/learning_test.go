package learning

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/storage"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newPattern() *storage.ContextPattern {
	return &storage.ContextPattern{ContextHash: "h", SkillName: "python-testing-patterns"}
}

func TestActivate_SeedsNewPattern(t *testing.T) {
	l := NewLearner()
	p := newPattern()

	l.Activate(p, 0.7, now)

	assert.Equal(t, 1, p.ActivationCount)
	assert.Equal(t, 0.7, p.AvgConfidence)
	assert.Equal(t, now, p.LastActivated)
}

func TestActivate_KeepsExistingAverage(t *testing.T) {
	l := NewLearner()
	p := newPattern()
	p.ActivationCount = 4
	p.AvgConfidence = 0.5

	l.Activate(p, 0.9, now)

	assert.Equal(t, 5, p.ActivationCount)
	assert.Equal(t, 0.5, p.AvgConfidence)
}

func TestReinforce_EMA(t *testing.T) {
	l := NewLearner()
	p := newPattern()
	p.ActivationCount = 1
	p.AvgConfidence = 0.6

	l.Reinforce(p, 0.9, now)

	assert.Equal(t, 2, p.ActivationCount)
	assert.InDelta(t, 0.66, p.AvgConfidence, 1e-9)
	assert.Equal(t, now, p.LastActivated)
}

func TestReinforce_NewPatternStartsAtObserved(t *testing.T) {
	l := NewLearner()
	p := newPattern()

	l.Reinforce(p, 0.9, now)

	assert.Equal(t, 1, p.ActivationCount)
	assert.Equal(t, 0.9, p.AvgConfidence)
}

func TestReinforce_NeverLowersAverage(t *testing.T) {
	l := NewLearner()

	for _, observed := range []float64{0, 0.1, 0.5, 0.79, 0.8, 0.95, 1} {
		p := newPattern()
		p.ActivationCount = 3
		p.AvgConfidence = 0.8

		l.Reinforce(p, observed, now)

		assert.GreaterOrEqual(t, p.AvgConfidence, 0.8, "observed=%v", observed)
		assert.LessOrEqual(t, p.AvgConfidence, 1.0, "observed=%v", observed)
		assert.Equal(t, 4, p.ActivationCount)
	}
}

func TestSuppress(t *testing.T) {
	tests := []struct {
		name string
		avg  float64
		want float64
	}{
		{name: "damped", avg: 0.8, want: 0.64},
		{name: "floored", avg: 0.05, want: 0.05},
		{name: "near floor", avg: 0.06, want: 0.05},
		{name: "zero rises to floor", avg: 0, want: 0.05},
	}

	l := NewLearner()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPattern()
			p.ActivationCount = 7
			p.AvgConfidence = tt.avg
			p.LastActivated = now

			l.Suppress(p)

			assert.InDelta(t, tt.want, p.AvgConfidence, 1e-9)
			assert.Equal(t, 7, p.ActivationCount)
			assert.Equal(t, now, p.LastActivated)
		})
	}
}

func TestSuppress_RepeatedConvergesToFloor(t *testing.T) {
	l := NewLearner()
	p := newPattern()
	p.ActivationCount = 1
	p.AvgConfidence = 1

	prev := p.AvgConfidence
	for i := 0; i < 50; i++ {
		l.Suppress(p)
		assert.LessOrEqual(t, p.AvgConfidence, prev)
		prev = p.AvgConfidence
	}
	assert.Equal(t, DefaultFloor, p.AvgConfidence)
}

func TestStrength(t *testing.T) {
	s := NewPatternScorer(3)

	assert.Equal(t, 0.0, s.Strength(storage.ContextPattern{ActivationCount: 0, AvgConfidence: 1}))

	got := s.Strength(storage.ContextPattern{ActivationCount: 3, AvgConfidence: 1})
	assert.InDelta(t, 1-math.Exp(-1), got, 1e-9)

	got = s.Strength(storage.ContextPattern{ActivationCount: 3, AvgConfidence: 0.5})
	assert.InDelta(t, 0.5*(1-math.Exp(-1)), got, 1e-9)
}

func TestStrength_MonotonicInCount(t *testing.T) {
	s := NewPatternScorer(DefaultDecayConstant)

	prev := 0.0
	for n := 1; n <= 30; n++ {
		got := s.Strength(storage.ContextPattern{ActivationCount: n, AvgConfidence: 0.7})
		assert.Greater(t, got, prev, "count=%d", n)
		prev = got
	}
	assert.Less(t, prev, 0.7)
}

func TestConfidence_Bounds(t *testing.T) {
	s := NewPatternScorer(0)
	require.Equal(t, DefaultDecayConstant, s.DecayConstant)

	for _, p := range []storage.ContextPattern{
		{ActivationCount: 0, AvgConfidence: 0},
		{ActivationCount: 1, AvgConfidence: 0.05},
		{ActivationCount: 10, AvgConfidence: 0.5},
		{ActivationCount: 1000, AvgConfidence: 1},
		{ActivationCount: 5, AvgConfidence: 7}, // corrupt row
	} {
		c := s.Confidence(p)
		assert.GreaterOrEqual(t, c, MinPatternConfidence, "%+v", p)
		assert.LessOrEqual(t, c, MaxPatternConfidence, "%+v", p)
	}
}

// TestLearnedPatternConfidence follows one skill through a first activation
// at 0.6 and five confirmations at 0.9.
func TestLearnedPatternConfidence(t *testing.T) {
	l := NewLearner()
	s := NewPatternScorer(DefaultDecayConstant)
	p := newPattern()

	l.Activate(p, 0.6, now)
	for i := 0; i < 5; i++ {
		l.Reinforce(p, 0.9, now.Add(time.Duration(i+1)*time.Minute))
	}

	assert.Equal(t, 6, p.ActivationCount)
	assert.InDelta(t, 0.801696, p.AvgConfidence, 1e-6)

	c := s.Confidence(*p)
	assert.Greater(t, c, 0.6)
	assert.LessOrEqual(t, c, 0.8)
	assert.InDelta(t, 0.6+0.2*(1-math.Exp(-2))*0.801696, c, 1e-6)
}
