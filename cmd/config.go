package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"panelsync/internal/config"
	"panelsync/internal/formatting"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage the panelsync configuration",
		Long: `Validates, prints or initializes the configuration file.

The file is read from --config, then $HOME/.config/panelsync/config.yaml.
Without either, the built-in defaults are used.`,
	}
	cmd.AddCommand(newConfigValidateCmd(), newConfigShowCmd(), newConfigInitCmd())
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and report every problem",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := config.LoadConfig(configPath)
			if err != nil {
				var errs *config.ConfigurationErrorCollection
				if errors.As(err, &errs) {
					fmt.Fprint(cmd.ErrOrStderr(), errs.GetDetailedReport())
				}
				var ce config.ConfigurationError
				if errors.As(err, &ce) {
					fmt.Fprintln(cmd.ErrOrStderr(), ce.DetailedError())
				}
				return err
			}
			if path == "" {
				path = "built-in defaults"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d targets, %d bindings\n",
				text.FgGreen.Sprint("✓ valid"), path, len(cfg.Targets), len(cfg.Bindings))
			return nil
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print targets and event bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := formatting.ParseFormat(output)
			if err != nil {
				return err
			}
			cfg, _, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if format != formatting.FormatTable {
				return formatting.Encode(cmd.OutOrStdout(), format, cfg)
			}
			formatting.TargetsTable(cmd.OutOrStdout(), cfg)
			formatting.BindingsTable(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json, yaml)")
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				var err error
				if path, err = config.DefaultConfigPath(); err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveConfig(config.GetDefaultConfig(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
