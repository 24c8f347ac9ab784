package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/config"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/recommend"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/storage"
)

// testConfig returns defaults pointing at a fresh database, with HOME moved
// so that no user skills are discovered.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "history.db")
	return cfg
}

func writeSkill(t *testing.T, dir, name, description string) {
	t.Helper()
	skillDir := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	content := "---\nname: " + name + "\ndescription: " + description + "\n---\n\n# " + name + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0o644))
}

func pythonProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"app.py", "requirements.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	return dir
}

func recommendJSON(t *testing.T, cfg *config.Config, opts recommendOptions) recommend.Result {
	t.Helper()
	opts.jsonOutput = true
	var out bytes.Buffer
	require.NoError(t, runRecommend(context.Background(), &out, cfg, opts))

	var res recommend.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	return res
}

func TestRecommend_TextOutput(t *testing.T) {
	cfg := testConfig(t)

	var out bytes.Buffer
	err := runRecommend(context.Background(), &out, cfg, recommendOptions{
		dir:    pythonProject(t),
		agents: []string{"python-pro"},
	})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "python-performance-optimization")
	assert.Contains(t, text, "CONFIDENCE")
	assert.Contains(t, text, "✓")
	assert.NotContains(t, text, "Not recorded")
}

func TestRecommend_InsufficientContext(t *testing.T) {
	cfg := testConfig(t)

	var out bytes.Buffer
	err := runRecommend(context.Background(), &out, cfg, recommendOptions{dir: t.TempDir()})
	require.Error(t, err)
	assert.Empty(t, out.String())
}

func TestRecommend_MissingDir(t *testing.T) {
	cfg := testConfig(t)

	err := runRecommend(context.Background(), &bytes.Buffer{}, cfg, recommendOptions{
		dir: filepath.Join(t.TempDir(), "nope"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list")
}

func TestRecommend_CatalogFilter(t *testing.T) {
	cfg := testConfig(t)
	skills := t.TempDir()
	writeSkill(t, skills, "python-testing-patterns", "pytest fixtures and mocking")
	cfg.CatalogDirs = []string{skills}

	res := recommendJSON(t, cfg, recommendOptions{agents: []string{"python-pro"}})

	require.NotEmpty(t, res.Recommendations)
	for _, r := range res.Recommendations {
		assert.Equal(t, "python-testing-patterns", r.SkillName)
	}
}

func TestSignals(t *testing.T) {
	dir := pythonProject(t)

	raw, err := recommendOptions{dir: dir, hints: []string{"slow"}}.signals()
	require.NoError(t, err)
	assert.Equal(t, dir, raw.WorkingDir)
	assert.ElementsMatch(t, []string{"app.py", "requirements.txt"}, raw.Files)
	assert.Equal(t, []string{"slow"}, raw.Hints)

	raw, err = recommendOptions{markers: []string{"go-module"}}.signals()
	require.NoError(t, err)
	assert.Empty(t, raw.WorkingDir, "explicit signals do not scan the current directory")
	assert.Empty(t, raw.Files)
}

func TestActivateFeedbackAndLearning(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	res := recommendJSON(t, cfg, recommendOptions{
		dir:    pythonProject(t),
		agents: []string{"python-pro"},
	})
	require.NotEmpty(t, res.Recommendations)
	top := res.Recommendations[0]
	require.Positive(t, top.ID)

	var out bytes.Buffer
	require.NoError(t, runActivate(ctx, &out, cfg, top.ID))
	assert.Contains(t, out.String(), "Activation recorded")

	out.Reset()
	require.NoError(t, runFeedback(ctx, &out, cfg, top.ID, true, "spot on"))
	assert.Contains(t, out.String(), "helpful feedback")

	out.Reset()
	require.NoError(t, runLearningStatus(ctx, &out, cfg))
	assert.Contains(t, out.String(), "(1 helpful, 0 unhelpful)")
	assert.Contains(t, out.String(), "Patterns:         1 across 1 contexts")

	out.Reset()
	require.NoError(t, runLearningPatterns(ctx, &out, cfg, 20))
	assert.Contains(t, out.String(), top.SkillName)
	assert.Contains(t, out.String(), res.ContextHash[:12])

	out.Reset()
	require.NoError(t, runLearningExport(ctx, &out, cfg, 0))
	var doc exportDocument
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Len(t, doc.Recommendations, len(res.Recommendations))
	require.Len(t, doc.Patterns, 1)
	assert.Equal(t, top.SkillName, doc.Patterns[0].SkillName)

	var found bool
	for _, r := range doc.Recommendations {
		if r.ID == top.ID {
			found = true
			require.Len(t, r.Feedback, 1)
			assert.Equal(t, "spot on", r.Feedback[0].Comment)
		}
	}
	assert.True(t, found)
}

func TestActivate_UnknownID(t *testing.T) {
	cfg := testConfig(t)

	err := runActivate(context.Background(), &bytes.Buffer{}, cfg, 9999)

	var nf *storage.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestLearningStatus_ReportsEngineSettings(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pattern.DecayConstant = 5

	var out bytes.Buffer
	require.NoError(t, runLearningStatus(context.Background(), &out, cfg))
	assert.Contains(t, out.String(), "Decay constant:   5.0")
	assert.Contains(t, out.String(), "Static tables:")
	assert.Contains(t, out.String(), "Recommendations:  0")
}

func TestHistoryCommands_FailWithoutDatabase(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	cfg.DBPath = filepath.Join(blocker, "history.db")
	ctx := context.Background()

	var pe *storage.PersistenceError
	assert.ErrorAs(t, runActivate(ctx, &bytes.Buffer{}, cfg, 1), &pe)
	assert.ErrorAs(t, runFeedback(ctx, &bytes.Buffer{}, cfg, 1, true, ""), &pe)
	assert.ErrorAs(t, runLearningPatterns(ctx, &bytes.Buffer{}, cfg, 20), &pe)

	// recommending degrades instead
	var out bytes.Buffer
	require.NoError(t, runRecommend(ctx, &out, cfg, recommendOptions{agents: []string{"python-pro"}}))
	assert.Contains(t, out.String(), "Not recorded")
}

func TestLearningPatterns_Empty(t *testing.T) {
	cfg := testConfig(t)

	var out bytes.Buffer
	require.NoError(t, runLearningPatterns(context.Background(), &out, cfg, 20))
	assert.Contains(t, out.String(), "No patterns learned yet")
}

func TestFeedbackCmd_FlagValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no verdict", []string{"5"}, "exactly one"},
		{"both verdicts", []string{"5", "--helpful", "--unhelpful"}, "exactly one"},
		{"bad id", []string{"abc", "--helpful"}, "positive integer"},
		{"zero id", []string{"0", "--helpful"}, "positive integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewFeedbackCmd()
			cmd.SetArgs(tt.args)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})

			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCatalogListAndSearch(t *testing.T) {
	cfg := testConfig(t)
	skills := t.TempDir()
	writeSkill(t, skills, "docker-best-practices", "Multi-stage container builds")
	writeSkill(t, skills, "go-testing", "Table-driven tests and fuzzing")
	cfg.CatalogDirs = []string{skills}

	var out bytes.Buffer
	require.NoError(t, runCatalogList(&out, cfg, false))
	assert.Contains(t, out.String(), "Installed skills (2)")
	assert.Contains(t, out.String(), "docker-best-practices")

	out.Reset()
	require.NoError(t, runCatalogSearch(&out, cfg, "container", 10))
	assert.Contains(t, out.String(), "1. docker-best-practices")

	out.Reset()
	require.NoError(t, runCatalogSearch(&out, cfg, "fortran", 10))
	assert.Contains(t, out.String(), "No skills match")
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	var out bytes.Buffer
	require.NoError(t, runConfigInit(&out, path, false))
	assert.Contains(t, out.String(), "Wrote")

	out.Reset()
	require.NoError(t, runConfigInit(&out, path, false))
	assert.Contains(t, out.String(), "already exists")

	out.Reset()
	require.NoError(t, runConfigInit(&out, path, true))
	_, err := os.Stat(path + ".bak")
	assert.NoError(t, err)

	out.Reset()
	require.NoError(t, runConfigShow(&out, config.Default()))
	assert.Contains(t, out.String(), "decay_constant: 3")
	assert.Contains(t, out.String(), "auto_activate_threshold: 0.8")
}

func TestVersionOutput(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runVersion(&out))
	assert.Contains(t, out.String(), "Version:  dev")
}
