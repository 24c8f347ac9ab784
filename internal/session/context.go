/*
Package session normalizes raw session signals into a SessionContext.

A SessionContext is the only input of the recommendation engine. It is never
persisted directly; its Hash is what the learning store keys patterns by, so
the hash must depend only on the set of signals, never on their order.
*/
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"
)

// RawSignals is what a caller observed about the session. Collecting these is
// the caller's job; the builder only normalizes them.
type RawSignals struct {
	// WorkingDir is the session's working directory.
	WorkingDir string `json:"working_dir,omitempty"`

	// Files is a directory listing (base names or relative paths).
	Files []string `json:"files,omitempty"`

	// Markers are explicit language/project markers, e.g. "python-file".
	Markers []string `json:"markers,omitempty"`

	// ActiveAgents are the identifiers of the agents currently active.
	ActiveAgents []string `json:"active_agents,omitempty"`

	// Hints are optional free-text recent-command hints.
	Hints []string `json:"hints,omitempty"`
}

// SessionContext is a normalized snapshot of the session signals.
// All slices are sorted and free of duplicates.
type SessionContext struct {
	WorkingDir   string   `json:"working_dir,omitempty"`
	Markers      []string `json:"markers"`
	ActiveAgents []string `json:"active_agents"`
	Hints        []string `json:"hints,omitempty"`
}

// HasMarker reports whether the context carries marker m.
func (c SessionContext) HasMarker(m string) bool {
	i := sort.SearchStrings(c.Markers, m)
	return i < len(c.Markers) && c.Markers[i] == m
}

// HasAgent reports whether agent a is active.
func (c SessionContext) HasAgent(a string) bool {
	i := sort.SearchStrings(c.ActiveAgents, a)
	return i < len(c.ActiveAgents) && c.ActiveAgents[i] == a
}

// HintsContain reports whether any hint contains keyword (case-insensitive).
func (c SessionContext) HintsContain(keyword string) bool {
	keyword = strings.ToLower(keyword)
	for _, h := range c.Hints {
		if strings.Contains(h, keyword) {
			return true
		}
	}
	return false
}

// Empty reports whether the context carries no usable signal at all.
func (c SessionContext) Empty() bool {
	return len(c.Markers) == 0 && len(c.ActiveAgents) == 0 && len(c.Hints) == 0
}

// Validate checks that c is normalized and carries at least one signal.
func (c SessionContext) Validate() error {
	if c.Empty() {
		return &ValidationError{Reason: "insufficient context: no markers, agents or hints"}
	}
	for field, values := range map[string][]string{
		"markers":       c.Markers,
		"active_agents": c.ActiveAgents,
	} {
		if !sort.StringsAreSorted(values) {
			return &ValidationError{Field: field, Reason: "not normalized (unsorted)"}
		}
		for i, v := range values {
			if v == "" {
				return &ValidationError{Field: field, Reason: "empty value"}
			}
			if v != strings.ToLower(strings.TrimSpace(v)) {
				return &ValidationError{Field: field, Reason: "not normalized (case or whitespace) " + v}
			}
			if i > 0 && values[i-1] == v {
				return &ValidationError{Field: field, Reason: "duplicate value " + v}
			}
		}
	}
	return nil
}

// hashKey is the canonical form hashed by Hash. JSON keeps the encoding
// injective: separators inside values are escaped.
type hashKey struct {
	Dir     string   `json:"dir"`
	Markers []string `json:"markers"`
	Agents  []string `json:"agents"`
}

// Hash returns the context hash: a hex SHA-256 over a canonical serialization
// of the working directory, markers and active agents. Hints are free text and
// stay out of the hash so they do not fragment learned patterns.
func (c SessionContext) Hash() string {
	// A struct of strings cannot fail to marshal.
	data, _ := json.Marshal(hashKey{
		Dir:     c.WorkingDir,
		Markers: canonical(c.Markers),
		Agents:  canonical(c.ActiveAgents),
	})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// canonical returns a sorted, de-duplicated copy of values.
func canonical(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// normalizeSet lower-cases, trims and canonicalizes values, dropping blanks.
func normalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return canonical(out)
}

func normalizeDir(dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Clean(dir))
}
