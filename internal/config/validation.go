package config

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Validate checks every tunable against its allowed range and returns the
// first violation as an *InvalidConfigError.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return c.invalid("db_path", "must not be empty", "Set db_path or SKILL_ADVISOR_DB_PATH")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return c.invalid("log_level", err.Error(), "Use one of trace, debug, info, warn, error")
	}
	if c.LogFormat != "fmt" && c.LogFormat != "json" {
		return c.invalid("log_format", fmt.Sprintf("unknown format %q", c.LogFormat), "Use fmt or json")
	}

	checks := []struct {
		key    string
		value  float64
		lo, hi float64
		// open bounds exclude lo/hi
		openLo, openHi bool
	}{
		{"learning.rate", c.Learning.Rate, 0, 1, true, false},
		{"learning.damping", c.Learning.Damping, 0, 1, true, true},
		{"learning.floor", c.Learning.Floor, 0, 1, false, true},
		{"pattern.decay_constant", c.Pattern.DecayConstant, 0, math.Inf(1), true, true},
		{"ranking.auto_activate_threshold", c.Ranking.AutoActivateThreshold, 0, 1, false, false},
		{"ranking.rule_confidence", c.Ranking.RuleConfidence, 0, 1, false, false},
		{"ranking.agent_confidence", c.Ranking.AgentConfidence, 0, 1, false, false},
	}
	for _, ck := range checks {
		v := ck.value
		bad := math.IsNaN(v) ||
			v < ck.lo || (ck.openLo && v == ck.lo) ||
			v > ck.hi || (ck.openHi && v == ck.hi)
		if bad {
			return c.invalid(ck.key, fmt.Sprintf("%v is out of range %s", v, rangeString(ck.lo, ck.hi, ck.openLo, ck.openHi)), "")
		}
	}
	return nil
}

func (c *Config) invalid(key, msg, hint string) error {
	return &InvalidConfigError{Path: c.Source, Key: key, Message: msg, Hint: hint}
}

func rangeString(lo, hi float64, openLo, openHi bool) string {
	l, r := "[", "]"
	if openLo {
		l = "("
	}
	if openHi {
		r = ")"
	}
	return fmt.Sprintf("%s%v, %v%s", l, lo, hi, r)
}
