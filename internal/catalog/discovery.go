package catalog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/logger"
)

const skillFileName = "SKILL.md"

// DefaultDirs returns the skill directories searched when none are
// configured, highest precedence first.
func DefaultDirs() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user home directory")
	}
	return []string{
		filepath.Join(".", ".claude", "skills"),
		filepath.Join(home, ".claude", "skills"),
	}, nil
}

// Discover loads every skill under dirs. Each immediate subdirectory holding
// a SKILL.md is one skill. When two directories define the same name, the
// one listed first wins. Missing directories and malformed skills are
// skipped.
func Discover(dirs ...string) (map[string]*Skill, error) {
	md := goldmark.New(goldmark.WithExtensions(meta.Meta))
	skills := make(map[string]*Skill)

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				logger.L.WithError(err).WithField("dir", dir).Warn("cannot read skill directory")
			}
			continue
		}

		for _, entry := range entries {
			entryPath := filepath.Join(dir, entry.Name())
			info, err := os.Stat(entryPath)
			if err != nil || !info.IsDir() {
				continue
			}

			skill, err := loadSkill(md, filepath.Join(entryPath, skillFileName))
			if err != nil {
				if !os.IsNotExist(errors.Cause(err)) {
					logger.L.WithError(err).WithField("path", entryPath).Debug("skipping skill")
				}
				continue
			}
			if _, exists := skills[skill.Name]; exists {
				continue
			}
			skill.Directory = entryPath
			skills[skill.Name] = skill
		}
	}
	return skills, nil
}

func loadSkill(md goldmark.Markdown, path string) (*Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse markdown")
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return nil, errors.New("missing frontmatter")
	}

	name, _ := metaData["name"].(string)
	description, _ := metaData["description"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("skill name is required in frontmatter")
	}
	if strings.TrimSpace(description) == "" {
		return nil, errors.New("skill description is required in frontmatter")
	}

	return &Skill{
		Name:        name,
		Description: strings.TrimSpace(description),
		Tags:        toStrings(metaData["tags"]),
	}, nil
}

// toStrings accepts a YAML list or a comma-separated string.
func toStrings(v any) []string {
	var out []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
