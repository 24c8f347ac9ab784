package cli

import (
	"github.com/spf13/cobra"
)

// NewLearningCmd creates the learning command group.
func NewLearningCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learning",
		Short: "Inspect the recommendation history and learned patterns",
		Long: `The learning system records every recommendation and the activation and
feedback reported on it. Helpful feedback reinforces a pattern linking the
session context to the skill; unhelpful feedback weakens it. Patterns feed
the pattern matcher on later recommendations.

All data is stored locally in the history database (db_path, default
~/.skill-advisor/history.db). Contexts are stored as SHA-256 hashes.

Commands:
  status    Show history counts and learning parameters
  export    Export recommendation history as JSON
  patterns  List learned patterns with their current confidence`,
	}

	cmd.AddCommand(newLearningStatusCmd())
	cmd.AddCommand(newLearningExportCmd())
	cmd.AddCommand(newLearningPatternsCmd())

	return cmd
}
