package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/config"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/matcher"
)

// NewVerifyCmd creates the 'verify' command for verifying configuration.
func NewVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify configuration, tables and database",
		Long: `Verify that the configuration is valid, the rule and agent tables
load, the history database opens, and report the installed skill catalog.`,
		Example: `  skill-advisor verify
  SKILL_ADVISOR_DB_PATH=/tmp/test.db skill-advisor verify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return errors.Wrap(err, "configuration error")
			}
			return runVerify(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	return cmd
}

// runVerify prints one line per check and fails if any check failed.
func runVerify(ctx context.Context, out io.Writer, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	failed := 0

	source := cfg.Source
	if source == "" {
		source = "(none, using defaults)"
	}
	fmt.Fprintf(out, "✓ Config file: %s\n", source)

	tables, err := matcher.LoadTables(cfg.RulesFile, cfg.AgentsFile)
	if err != nil {
		fmt.Fprintf(out, "✗ Tables: %v\n", err)
		failed++
	} else {
		fmt.Fprintf(out, "✓ Rules: %d\n", len(tables.Rules))
		fmt.Fprintf(out, "✓ Agents: %d\n", len(tables.Agents))
	}

	store, err := openStrictStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(out, "✗ Database %s: %v\n", cfg.DBPath, err)
		failed++
	} else {
		st, statErr := store.Stats(ctx)
		store.Close()
		if statErr != nil {
			fmt.Fprintf(out, "✗ Database %s: %v\n", cfg.DBPath, statErr)
			failed++
		} else {
			fmt.Fprintf(out, "✓ Database: %s (%d recommendations, %d patterns)\n",
				cfg.DBPath, st.Recommendations, st.Patterns)
		}
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		fmt.Fprintf(out, "✗ Catalog: %v\n", err)
		failed++
	} else {
		fmt.Fprintf(out, "✓ Skills installed: %d\n", cat.Len())
		if tables != nil && cat.Len() > 0 {
			for _, name := range tables.Skills() {
				if !cat.Has(name) {
					fmt.Fprintf(out, "  ! %s: referenced by tables, not installed\n", name)
				}
			}
		}
		cat.Close()
	}

	if failed > 0 {
		return errors.Errorf("%d check(s) failed", failed)
	}
	return nil
}
