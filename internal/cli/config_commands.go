package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rescale/dlxt/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage dlxt configuration",
		Long: `Configuration management commands for dlxt.

Commands:
  show  - Display the effective configuration
  init  - Write the effective configuration to the config file
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// configPath returns --config or the default location.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the effective configuration as YAML.

Settings are merged from:
  1. Configuration file (--config, or the default path)
  2. Environment variables (DLXT_PARALLEL, DLXT_PROXY_MODE, ...)
  3. Command-line flags

Priority: flags > environment > config file > defaults.
The proxy password is never displayed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return config.WriteYAML(cmd.OutOrStdout(), cfg)
		},
	}
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Save the effective configuration to the config file",
		Long: `Write the effective configuration (defaults, environment and flags) to
the config file. A path ending in .csv is written as key,value rows;
anything else as YAML. The proxy password is never saved.

Use --force to overwrite an existing file.

Examples:
  dlxt config init -j 8 --on-duplicate rename
  dlxt --config ./dlxt.csv config init --proxy-mode system`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("configuration already exists at %s (use --force to overwrite)", path)
				}
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if strings.EqualFold(filepath.Ext(path), ".csv") {
				err = config.SaveConfigCSV(cfg, path)
			} else {
				err = config.SaveConfigYAML(cfg, path)
			}
			if err != nil {
				return err
			}

			GetLogger().Info().Str("path", path).Msg("Configuration saved")
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, path)

			if info, err := os.Stat(path); err == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Status: file exists (%d bytes, modified %s)\n",
					info.Size(), info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(cmd.ErrOrStderr(), "Status: file does not exist (create it with: dlxt config init)")
			}
			return nil
		},
	}
}
