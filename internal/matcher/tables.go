package matcher

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	//go:embed defaults/rules.yaml
	defaultRules []byte

	//go:embed defaults/agents.yaml
	defaultAgents []byte
)

// Rule maps a combination of session signals to a skill.
type Rule struct {
	Skill  string   `yaml:"skill"`
	All    []string `yaml:"all,omitempty"`
	Any    []string `yaml:"any,omitempty"`
	Hints  []string `yaml:"hints,omitempty"`
	Reason string   `yaml:"reason,omitempty"`
}

// Tables holds the static rule and agent tables.
type Tables struct {
	Rules  []Rule
	Agents map[string][]string
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

type agentsFile struct {
	Agents map[string][]string `yaml:"agents"`
}

// TableError reports a malformed rule or agent table.
type TableError struct {
	Table  string // "rules" or "agents"
	Entry  string // rule index or agent id
	Reason string
}

func (e *TableError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("invalid %s table: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("invalid %s table entry %s: %s", e.Table, e.Entry, e.Reason)
}

// DefaultTables returns the embedded tables.
func DefaultTables() (*Tables, error) {
	return LoadTables("", "")
}

// LoadTables reads the rule and agent tables. An empty path selects the
// embedded default for that table. The result is normalized and validated.
func LoadTables(rulesPath, agentsPath string) (*Tables, error) {
	rulesData, err := readOrDefault(rulesPath, defaultRules)
	if err != nil {
		return nil, err
	}
	agentsData, err := readOrDefault(agentsPath, defaultAgents)
	if err != nil {
		return nil, err
	}

	rules, err := ParseRules(rulesData)
	if err != nil {
		return nil, err
	}
	agents, err := ParseAgents(agentsData)
	if err != nil {
		return nil, err
	}

	t := &Tables{Rules: rules, Agents: agents}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func readOrDefault(path string, fallback []byte) ([]byte, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read table %s", path)
	}
	return data, nil
}

// ParseRules decodes a rules document. Unknown keys are rejected.
func ParseRules(data []byte) ([]Rule, error) {
	var f rulesFile
	if err := decodeStrict(data, &f); err != nil {
		return nil, &TableError{Table: "rules", Reason: err.Error()}
	}
	for i := range f.Rules {
		r := &f.Rules[i]
		r.Skill = strings.TrimSpace(r.Skill)
		r.All = normalize(r.All)
		r.Any = normalize(r.Any)
		r.Hints = normalize(r.Hints)
	}
	return f.Rules, nil
}

// ParseAgents decodes an agents document. Unknown keys are rejected.
func ParseAgents(data []byte) (map[string][]string, error) {
	var f agentsFile
	if err := decodeStrict(data, &f); err != nil {
		return nil, &TableError{Table: "agents", Reason: err.Error()}
	}
	out := make(map[string][]string, len(f.Agents))
	for agent, skills := range f.Agents {
		key := strings.ToLower(strings.TrimSpace(agent))
		trimmed := make([]string, 0, len(skills))
		for _, s := range skills {
			trimmed = append(trimmed, strings.TrimSpace(s))
		}
		out[key] = append(out[key], trimmed...)
	}
	return out, nil
}

func decodeStrict(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

func normalize(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(strings.TrimSpace(v)))
	}
	return out
}

// Validate fails on the first malformed entry.
func (t *Tables) Validate() error {
	for i, r := range t.Rules {
		entry := fmt.Sprintf("#%d", i)
		if r.Skill == "" {
			return &TableError{Table: "rules", Entry: entry, Reason: "empty skill name"}
		}
		if len(r.All) == 0 && len(r.Any) == 0 && len(r.Hints) == 0 {
			return &TableError{Table: "rules", Entry: entry + " (" + r.Skill + ")", Reason: "rule has no conditions"}
		}
		for _, cond := range [][]string{r.All, r.Any, r.Hints} {
			for _, c := range cond {
				if c == "" {
					return &TableError{Table: "rules", Entry: entry + " (" + r.Skill + ")", Reason: "empty condition"}
				}
			}
		}
	}

	agents := make([]string, 0, len(t.Agents))
	for a := range t.Agents {
		agents = append(agents, a)
	}
	sort.Strings(agents)

	for _, a := range agents {
		if a == "" {
			return &TableError{Table: "agents", Reason: "empty agent id"}
		}
		seen := make(map[string]bool, len(t.Agents[a]))
		for _, skill := range t.Agents[a] {
			if skill == "" {
				return &TableError{Table: "agents", Entry: a, Reason: "empty skill name"}
			}
			if seen[skill] {
				return &TableError{Table: "agents", Entry: a, Reason: "duplicate skill " + skill}
			}
			seen[skill] = true
		}
	}
	return nil
}

// Skills returns every skill named by either table, sorted.
func (t *Tables) Skills() []string {
	set := make(map[string]struct{})
	for _, r := range t.Rules {
		set[r.Skill] = struct{}{}
	}
	for _, skills := range t.Agents {
		for _, s := range skills {
			set[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
