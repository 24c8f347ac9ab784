package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/config"
)

// NewConfigCmd creates the 'config' command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the skill-advisor configuration file",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var path string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Long: `Write the built-in defaults to a YAML config file. An existing file is
kept unless --force is given, in which case it is backed up to <path>.bak.`,
		Example: `  skill-advisor config init
  skill-advisor config init --path ./config.yaml --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				p, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = p
			}
			return runConfigInit(cmd.OutOrStdout(), path, force)
		},
	}

	cmd.Flags().StringVarP(&path, "path", "p", "", "Config file to write (default: ~/.skill-advisor/config.yaml)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func runConfigInit(out io.Writer, path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		fmt.Fprintf(out, "Config already exists: %s\n", path)
		fmt.Fprintln(out, "Use --force to overwrite it.")
		return nil
	}

	if err := config.Save(config.Default(), path); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Wrote %s\n", path)
	return nil
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Long:  `Print the configuration after defaults, config file, environment and flags are merged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runConfigShow(cmd.OutOrStdout(), cfg)
		},
	}
}

func runConfigShow(out io.Writer, cfg *config.Config) error {
	data, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	if cfg.Source != "" {
		fmt.Fprintf(out, "# source: %s\n", cfg.Source)
	}
	_, err = out.Write(data)
	return err
}
