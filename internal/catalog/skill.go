/*
Package catalog discovers skill definitions on disk and indexes them for
search.

A skill is a directory holding a SKILL.md file whose YAML frontmatter names
and describes it. The catalog only exposes metadata; it never interprets the
skill body.
*/
package catalog

// Skill is one discovered skill definition.
type Skill struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Directory   string   `json:"directory"`
}

// SearchResult is a skill with its relevance score.
type SearchResult struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}
