package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/config"
)

// NewCatalogCmd creates the 'catalog' command group.
func NewCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List and search installed skills",
		Long: `Inspect the skills discovered from SKILL.md files.

Skills are read from catalog_dirs, or from ./.claude/skills and
~/.claude/skills when none are configured. The first directory that
defines a skill name wins.`,
	}

	cmd.AddCommand(newCatalogListCmd())
	cmd.AddCommand(newCatalogSearchCmd())

	return cmd
}

func newCatalogListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed skills",
		Example: `  skill-advisor catalog list
  skill-advisor catalog ls --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runCatalogList(cmd.OutOrStdout(), cfg, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func runCatalogList(out io.Writer, cfg *config.Config, jsonOutput bool) error {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	skills := cat.List()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(skills)
	}

	if len(skills) == 0 {
		fmt.Fprintln(out, "No skills installed.")
		return nil
	}

	fmt.Fprintf(out, "Installed skills (%d):\n\n", len(skills))
	for _, s := range skills {
		fmt.Fprintf(out, "  %s\n", s.Name)
		if s.Description != "" {
			fmt.Fprintf(out, "    %s\n", s.Description)
		}
		if len(s.Tags) > 0 {
			fmt.Fprintf(out, "    Tags: %s\n", strings.Join(s.Tags, ", "))
		}
		fmt.Fprintf(out, "    Path: %s\n", s.Directory)
	}
	return nil
}

func newCatalogSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "search <query>",
		Short:   "Full-text search over skill names, descriptions and tags",
		Example: `  skill-advisor catalog search "container builds"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runCatalogSearch(cmd.OutOrStdout(), cfg, strings.Join(args, " "), limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")
	return cmd
}

func runCatalogSearch(out io.Writer, cfg *config.Config, text string, limit int) error {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	results, err := cat.Search(text, limit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintf(out, "No skills match %q.\n", text)
		return nil
	}

	for i, r := range results {
		fmt.Fprintf(out, "%d. %s (score: %.2f)\n", i+1, r.Name, r.Score)
		if r.Description != "" {
			fmt.Fprintf(out, "   %s\n", r.Description)
		}
	}
	return nil
}
