package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/config"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/logger"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/mcp"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/version"
)

// NewServeCmd creates the 'serve' command for running the MCP server.
//
// The server exposes the engine to AI clients over stdio:
// skill_recommend, skill_activate, skill_feedback and skill_search.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server (stdio transport)",
		Long: `Start the skill-advisor MCP server using stdio transport.

The server exposes these tools to AI clients:
  • skill_recommend - Rank skills for the current session context
  • skill_activate  - Report that a recommended skill was activated
  • skill_feedback  - Report whether a recommendation was helpful
  • skill_search    - Full-text search over installed skills

Logs go to stderr; stdout carries protocol frames only.`,
		Example: `  # Run directly
  skill-advisor serve

  # Add to Claude Code
  claude mcp add skill-advisor -- skill-advisor serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	return cmd
}

// runServe starts the MCP server on in/out and shuts it down on
// SIGINT/SIGTERM/SIGQUIT or when in is closed.
func runServe(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	rt, err := openRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.G(ctx).WithError(err).Warn("error during shutdown")
		}
	}()

	log := logger.G(ctx).WithField("db", cfg.DBPath)
	log.WithField("skills", rt.catalog.Len()).Info("skill-advisor MCP server starting")

	server := mcp.NewServer(rt.engine,
		mcp.WithCatalog(rt.catalog),
		mcp.WithVersion(version.Version),
		mcp.WithIO(in, out),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info("received signal, shutting down gracefully")
		return nil
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			return errors.Wrap(err, "server error")
		}
		log.Info("stdin closed, shutting down")
		return nil
	}
}
