package recommend

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/logger"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/matcher"
)

// DefaultAutoActivateThreshold is the confidence at which a recommendation
// is flagged for auto-activation.
const DefaultAutoActivateThreshold = 0.8

// Recommendation is one ranked skill suggestion.
type Recommendation struct {
	// ID is the history row id, 0 when the history append failed.
	ID int64 `json:"id"`

	SkillName    string         `json:"skill_name"`
	Confidence   float64        `json:"confidence"`
	Reason       string         `json:"reason"`
	Source       matcher.Source `json:"source"`
	AutoActivate bool           `json:"auto_activate"`
}

type group struct {
	rec     Recommendation
	reasons []string
	seen    map[string]bool
}

// Aggregate merges candidate lists into one ranked list with at most one
// entry per skill. Each skill keeps its highest confidence; the source that
// produced it wins, with rule > agent > pattern on ties. Reasons from every
// source are kept, tagged and de-duplicated.
func Aggregate(ctx context.Context, lists [][]matcher.Candidate, threshold float64) []Recommendation {
	log := logger.G(ctx)
	groups := make(map[string]*group)
	var order []string

	for _, list := range lists {
		for _, c := range list {
			skill := strings.TrimSpace(c.Skill)
			if skill == "" {
				log.WithField("source", c.Source).Warn("dropping candidate with empty skill name")
				continue
			}

			conf := c.Confidence
			if math.IsNaN(conf) || conf < 0 || conf > 1 {
				clamped := clamp(conf)
				log.WithFields(map[string]any{
					"skill":   skill,
					"source":  c.Source,
					"raw":     conf,
					"clamped": clamped,
				}).Warn("candidate confidence out of range, clamping")
				conf = clamped
			}

			g, ok := groups[skill]
			if !ok {
				g = &group{
					rec:  Recommendation{SkillName: skill, Confidence: conf, Source: c.Source},
					seen: make(map[string]bool),
				}
				groups[skill] = g
				order = append(order, skill)
			} else if conf > g.rec.Confidence ||
				(conf == g.rec.Confidence && c.Source.Priority() < g.rec.Source.Priority()) {
				g.rec.Confidence = conf
				g.rec.Source = c.Source
			}

			if c.Reason != "" {
				tagged := "[" + string(c.Source) + "] " + c.Reason
				if !g.seen[tagged] {
					g.seen[tagged] = true
					g.reasons = append(g.reasons, tagged)
				}
			}
		}
	}

	out := make([]Recommendation, 0, len(order))
	for _, skill := range order {
		g := groups[skill]
		g.rec.Reason = strings.Join(g.reasons, "; ")
		g.rec.AutoActivate = g.rec.Confidence >= threshold
		out = append(out, g.rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if pa, pb := a.Source.Priority(), b.Source.Priority(); pa != pb {
			return pa < pb
		}
		return a.SkillName < b.SkillName
	})
	return out
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
