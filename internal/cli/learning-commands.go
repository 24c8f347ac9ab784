package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/config"
)

// newLearningStatusCmd shows learning statistics.
func newLearningStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show learning statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runLearningStatus(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
}

func runLearningStatus(ctx context.Context, out io.Writer, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := openHistoryRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	st, err := rt.store.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Learning System Status")
	fmt.Fprintln(out, "======================")
	fmt.Fprintf(out, "Database:         %s\n", cfg.DBPath)
	fmt.Fprintf(out, "Recommendations:  %d (%s activated)\n", st.Recommendations, percent(st.Activated, st.Recommendations))
	fmt.Fprintf(out, "Feedback:         %d (%d helpful, %d unhelpful)\n", st.Feedback, st.Helpful, st.Unhelpful)
	fmt.Fprintf(out, "Patterns:         %d across %d contexts\n", st.Patterns, st.Contexts)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Learning rate:    %.2f\n", cfg.Learning.Rate)
	fmt.Fprintf(out, "Damping:          %.2f (floor %.2f)\n", cfg.Learning.Damping, cfg.Learning.Floor)
	fmt.Fprintf(out, "Decay constant:   %.1f\n", rt.engine.Scorer().DecayConstant)
	fmt.Fprintf(out, "Auto-activate at: %.2f\n", cfg.Ranking.AutoActivateThreshold)
	tables := rt.engine.Tables()
	fmt.Fprintf(out, "Static tables:    %d rules, %d agents\n", len(tables.Rules), len(tables.Agents))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Note: Run 'skill-advisor learning export' to view the history")

	return nil
}

// newLearningExportCmd exports recommendation history as JSON.
func newLearningExportCmd() *cobra.Command {
	var outputFile string
	var limit int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recommendation history as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputFile != "" {
				f, err := os.Create(outputFile)
				if err != nil {
					return errors.Wrap(err, "failed to create output file")
				}
				defer f.Close()
				out = f
			}
			return runLearningExport(cmd.Context(), out, cfg, limit)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Export at most n recent recommendations (0 = all)")
	return cmd
}

func runLearningExport(ctx context.Context, out io.Writer, cfg *config.Config, limit int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := openHistoryRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	doc, err := buildExport(ctx, rt.store, limit)
	if err != nil {
		return err
	}

	data, err := formatJSON(doc)
	if err != nil {
		return errors.Wrap(err, "failed to encode export")
	}
	fmt.Fprintln(out, data)
	return nil
}

// newLearningPatternsCmd lists learned patterns.
func newLearningPatternsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List learned patterns with their current confidence",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runLearningPatterns(cmd.Context(), cmd.OutOrStdout(), cfg, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Show at most n patterns")
	return cmd
}

func runLearningPatterns(ctx context.Context, out io.Writer, cfg *config.Config, limit int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := openHistoryRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	patterns, err := rt.store.ListPatterns(ctx, limit)
	if err != nil {
		return err
	}
	if len(patterns) == 0 {
		fmt.Fprintln(out, "No patterns learned yet.")
		fmt.Fprintln(out, "Patterns appear after a recommendation is activated or marked helpful.")
		return nil
	}

	scorer := rt.engine.Scorer()

	fmt.Fprintf(out, "Learned patterns (%d):\n\n", len(patterns))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  SKILL\tCONTEXT\tCOUNT\tAVG\tCONFIDENCE\tLAST ACTIVATED")
	for _, p := range patterns {
		fmt.Fprintf(w, "  %s\t%s\t%d\t%.3f\t%.3f\t%s\n",
			p.SkillName, shortHash(p.ContextHash), p.ActivationCount,
			p.AvgConfidence, scorer.Confidence(p), p.LastActivated.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
