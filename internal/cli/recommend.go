package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/config"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/recommend"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/session"
)

// recommendOptions are the signals passed on the command line.
type recommendOptions struct {
	dir        string
	markers    []string
	agents     []string
	hints      []string
	jsonOutput bool
}

// NewRecommendCmd creates the 'recommend' command.
func NewRecommendCmd() *cobra.Command {
	var opts recommendOptions

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend skills for a project directory or explicit signals",
		Long: `Rank skills for the current session context.

File markers are derived from the top-level listing of --dir (the current
directory when no other signal is given). Markers, active agents and hints
can be added explicitly. Each recommendation is recorded in the history and
printed with the id used by 'activate' and 'feedback'.`,
		Example: `  skill-advisor recommend
  skill-advisor recommend --dir ./service --agent python-pro
  skill-advisor recommend --marker go-module --hint "flaky tests" --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runRecommend(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "Project directory to scan (default: current directory)")
	cmd.Flags().StringSliceVarP(&opts.markers, "marker", "m", nil, "File marker, e.g. python-project (repeatable)")
	cmd.Flags().StringSliceVarP(&opts.agents, "agent", "a", nil, "Active agent id (repeatable)")
	cmd.Flags().StringSliceVar(&opts.hints, "hint", nil, "Free-text hint (repeatable)")
	cmd.Flags().BoolVarP(&opts.jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

func runRecommend(ctx context.Context, out io.Writer, cfg *config.Config, opts recommendOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	raw, err := opts.signals()
	if err != nil {
		return err
	}
	sc, err := session.NewBuilder().Build(raw)
	if err != nil {
		return err
	}

	rt, err := openRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.engine.Recommend(ctx, sc)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		if res.Recommendations == nil {
			res.Recommendations = []recommend.Recommendation{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	printRecommendations(out, res)
	return nil
}

// signals collects the raw context. The directory listing is used when --dir
// is given or when nothing else was.
func (o recommendOptions) signals() (session.RawSignals, error) {
	raw := session.RawSignals{
		Markers:      o.markers,
		ActiveAgents: o.agents,
		Hints:        o.hints,
	}

	dir := o.dir
	if dir == "" && len(o.markers) == 0 && len(o.agents) == 0 && len(o.hints) == 0 {
		dir = "."
	}
	if dir == "" {
		return raw, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return raw, errors.Wrapf(err, "failed to list %s", dir)
	}
	raw.WorkingDir = dir
	for _, e := range entries {
		raw.Files = append(raw.Files, e.Name())
	}
	return raw, nil
}

func printRecommendations(out io.Writer, res *recommend.Result) {
	if len(res.Recommendations) == 0 {
		fmt.Fprintln(out, "No skills to recommend for this context.")
		return
	}

	fmt.Fprintf(out, "Recommended skills (%d):\n\n", len(res.Recommendations))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tSKILL\tCONFIDENCE\tSOURCE\tAUTO")
	for _, r := range res.Recommendations {
		id := "-"
		if r.ID > 0 {
			id = strconv.FormatInt(r.ID, 10)
		}
		auto := ""
		if r.AutoActivate {
			auto = "✓"
		}
		fmt.Fprintf(w, "  %s\t%s\t%.2f\t%s\t%s\n", id, r.SkillName, r.Confidence, r.Source, auto)
	}
	w.Flush()

	fmt.Fprintln(out)
	for _, r := range res.Recommendations {
		fmt.Fprintf(out, "  %s: %s\n", r.SkillName, r.Reason)
	}

	if res.HistoryErr != nil {
		fmt.Fprintf(out, "\n⚠ Not recorded: %v\n", res.HistoryErr)
	}
}

// NewActivateCmd creates the 'activate' command.
func NewActivateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "activate <id>",
		Short:   "Report that a recommended skill was activated",
		Long:    `Mark a recommendation as activated. The first activation seeds the learned pattern for its context.`,
		Example: `  skill-advisor activate 42`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runActivate(cmd.Context(), cmd.OutOrStdout(), cfg, id)
		},
	}

	return cmd
}

func runActivate(ctx context.Context, out io.Writer, cfg *config.Config, id int64) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := openHistoryRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.engine.RecordActivation(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Activation recorded for recommendation %d\n", id)
	return nil
}

// NewFeedbackCmd creates the 'feedback' command.
func NewFeedbackCmd() *cobra.Command {
	var helpful, unhelpful bool
	var comment string

	cmd := &cobra.Command{
		Use:   "feedback <id>",
		Short: "Report whether a recommendation was helpful",
		Long: `Record a helpfulness verdict. Helpful feedback reinforces the learned
pattern for the recommendation's context; unhelpful feedback weakens it.`,
		Example: `  skill-advisor feedback 42 --helpful
  skill-advisor feedback 42 --unhelpful --comment "wrong language"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if helpful == unhelpful {
				return errors.New("specify exactly one of --helpful or --unhelpful")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runFeedback(cmd.Context(), cmd.OutOrStdout(), cfg, id, helpful, comment)
		},
	}

	cmd.Flags().BoolVar(&helpful, "helpful", false, "The recommendation was helpful")
	cmd.Flags().BoolVar(&unhelpful, "unhelpful", false, "The recommendation was not helpful")
	cmd.Flags().StringVarP(&comment, "comment", "c", "", "Optional comment")

	return cmd
}

func runFeedback(ctx context.Context, out io.Writer, cfg *config.Config, id int64, helpful bool, comment string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := openHistoryRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.engine.RecordFeedback(ctx, id, helpful, comment); err != nil {
		return err
	}

	verdict := "unhelpful"
	if helpful {
		verdict = "helpful"
	}
	fmt.Fprintf(out, "✓ Recorded %s feedback for recommendation %d\n", verdict, id)
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("invalid recommendation id %q: must be a positive integer", s)
	}
	return id, nil
}
