/*
Package main is the entry point for the skill-advisor CLI.

skill-advisor recommends skills for a coding session from file markers,
active agents and learned feedback, and serves the same engine to AI
clients over MCP.

Usage:

	skill-advisor [command]

Available Commands:

	recommend   Recommend skills for a project directory or explicit signals
	activate    Report that a recommended skill was activated
	feedback    Report whether a recommendation was helpful
	learning    Inspect the recommendation history and learned patterns
	catalog     List and search installed skills
	serve       Run the MCP server (stdio transport)
	verify      Verify configuration, tables and database
	config      Manage the skill-advisor configuration file
	version     Show version information

Examples:

	# Recommend for the current project
	skill-advisor recommend

	# Run as MCP server
	skill-advisor serve
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/cli"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/config"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/logger"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/version"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "skill-advisor",
		Short: "Context-aware skill recommendations that learn from feedback",
		Long: `skill-advisor ranks skills for the current coding session.

Three strategies contribute candidates:
  • rules    - file markers such as python-project or dockerfile
  • agents   - skills associated with the active agents
  • patterns - skills that were helpful before in the same context

Activation and feedback reports are stored locally and reinforce or weaken
the learned patterns.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(viper.GetViper(), configFile); err != nil {
				return err
			}
			if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
				return err
			}
			logger.SetLogFormat(viper.GetString("log_format"))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default: ~/.skill-advisor/config.yaml or ./config.yaml)")
	flags.String("db-path", "", "History database path")
	flags.String("log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.String("log-format", "", "Log format (fmt, json)")

	viper.BindPFlag("db_path", flags.Lookup("db-path"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("log_format", flags.Lookup("log-format"))

	// Add subcommands
	rootCmd.AddCommand(cli.NewRecommendCmd())
	rootCmd.AddCommand(cli.NewActivateCmd())
	rootCmd.AddCommand(cli.NewFeedbackCmd())
	rootCmd.AddCommand(cli.NewLearningCmd())
	rootCmd.AddCommand(cli.NewCatalogCmd())
	rootCmd.AddCommand(cli.NewServeCmd())
	rootCmd.AddCommand(cli.NewVerifyCmd())
	rootCmd.AddCommand(cli.NewConfigCmd())
	rootCmd.AddCommand(cli.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
