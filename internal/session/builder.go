package session

import (
	"path"
	"strings"
)

// extensionMarkers maps a lower-case file extension to the marker it implies.
var extensionMarkers = map[string]string{
	".py":    "python-file",
	".pyi":   "python-file",
	".ipynb": "jupyter-notebook",
	".go":    "go-file",
	".rs":    "rust-file",
	".ts":    "typescript-file",
	".tsx":   "typescript-file",
	".js":    "javascript-file",
	".jsx":   "javascript-file",
	".mjs":   "javascript-file",
	".java":  "java-file",
	".kt":    "kotlin-file",
	".rb":    "ruby-file",
	".php":   "php-file",
	".cs":    "csharp-file",
	".swift": "swift-file",
	".sql":   "sql-file",
	".tf":    "terraform-file",
	".proto": "protobuf-file",
	".sh":    "shell-file",
	".md":    "markdown-file",
	".yaml":  "yaml-file",
	".yml":   "yaml-file",
}

// fileMarkers maps well-known file names to project markers.
var fileMarkers = map[string]string{
	"go.mod":              "go-module",
	"package.json":        "node-project",
	"tsconfig.json":       "typescript-project",
	"pyproject.toml":      "python-project",
	"requirements.txt":    "python-project",
	"setup.py":            "python-project",
	"cargo.toml":          "rust-project",
	"pom.xml":             "maven-project",
	"build.gradle":        "gradle-project",
	"gemfile":             "ruby-project",
	"dockerfile":          "dockerfile",
	"docker-compose.yml":  "docker-compose",
	"docker-compose.yaml": "docker-compose",
	"chart.yaml":          "helm-chart",
	"kustomization.yaml":  "kubernetes-manifest",
	"makefile":            "makefile",
	".gitlab-ci.yml":      "ci-config",
}

// Builder turns RawSignals into a SessionContext. The zero value is ready to
// use; it holds no state and is safe for concurrent use.
type Builder struct{}

// NewBuilder returns a Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build normalizes raw signals. It returns a *ValidationError when the result
// has no markers, no agents and no hints.
func (b *Builder) Build(raw RawSignals) (SessionContext, error) {
	markers := make([]string, 0, len(raw.Markers)+len(raw.Files))
	markers = append(markers, raw.Markers...)
	for _, f := range raw.Files {
		markers = append(markers, MarkersForFile(f)...)
	}

	ctx := SessionContext{
		WorkingDir:   normalizeDir(raw.WorkingDir),
		Markers:      normalizeSet(markers),
		ActiveAgents: normalizeSet(raw.ActiveAgents),
		Hints:        normalizeSet(raw.Hints),
	}

	if err := ctx.Validate(); err != nil {
		return SessionContext{}, err
	}
	return ctx, nil
}

// MarkersForFile returns the markers implied by a single listing entry.
func MarkersForFile(name string) []string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return nil
	}

	var out []string
	if strings.Contains(name, ".github/workflows/") {
		out = append(out, "ci-config")
	}

	base := strings.ToLower(path.Base(name))
	if m, ok := fileMarkers[base]; ok {
		out = append(out, m)
	}
	if m, ok := extensionMarkers[path.Ext(base)]; ok {
		out = append(out, m)
	}
	if isTestFile(base) {
		out = append(out, "test-file")
	}
	return out
}

func isTestFile(base string) bool {
	switch {
	case strings.HasSuffix(base, "_test.go"):
		return true
	case strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py"):
		return true
	case strings.HasSuffix(base, "_test.py"):
		return true
	case strings.Contains(base, ".test.") || strings.Contains(base, ".spec."):
		return true
	}
	return false
}
