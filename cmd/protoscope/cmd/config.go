package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/protoscope/configs"
	"github.com/Aman-CERP/protoscope/internal/config"
	scopeerr "github.com/Aman-CERP/protoscope/internal/errors"
	"github.com/Aman-CERP/protoscope/internal/output"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage protoscope configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/protoscope/config.yaml)
  3. Project config (./protoscope.yaml) or the file given with --config
  4. Environment variables (PROTOSCOPE_*), optionally loaded with --env-file`,
		Example: `  # Create user config from template
  protoscope config init

  # Show effective configuration (merged from all sources)
  protoscope config show

  # Print config file paths
  protoscope config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd(a))
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create user configuration file",
		Long: `Create the user configuration file from the built-in template.

The file is created at ~/.config/protoscope/config.yaml
(or $XDG_CONFIG_HOME/protoscope/config.yaml if XDG_CONFIG_HOME is set).
With --force an existing file is backed up, then replaced.`,
		Example: `  # Create user config
  protoscope config init

  # Replace existing config, keeping a backup
  protoscope config init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the effective configuration after merging all sources, or the
built-in defaults with --source defaults.`,
		Example: `  # Show merged configuration
  protoscope config show

  # Show as JSON
  protoscope config show --json

  # Show built-in defaults
  protoscope config show --source defaults`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg *config.Config
			switch source {
			case "merged":
				loaded, err := a.config()
				if err != nil {
					return err
				}
				cfg = loaded
			case "defaults":
				cfg = config.NewConfig()
			default:
				return scopeerr.ValidationError(fmt.Sprintf("unknown source %q", source), nil).
					WithSuggestion("Use --source merged or --source defaults")
			}

			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				return out.JSON(cfg)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return scopeerr.InternalError("failed to render config", err)
			}
			out.Dim("# source: " + source)
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, defaults")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print config file paths",
		Long: `Print the path to the user configuration file, and the project
configuration file when one exists in the current directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(w, config.GetUserConfigPath())

			if dir, err := os.Getwd(); err == nil {
				if p := config.ProjectConfigPath(dir); p != "" {
					_, _ = fmt.Fprintln(w, p)
				}
			}
			return nil
		},
	}
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	configPath := config.GetUserConfigPath()

	var backupPath string
	if config.UserConfigExists() {
		if !force {
			out.Warning("User configuration already exists")
			out.Statusf("📁", "Location: %s", configPath)
			out.Newline()
			out.Status("💡", "Use --force to replace it (a backup is kept)")
			return nil
		}

		var err error
		backupPath, err = config.BackupUserConfig()
		if err != nil {
			return scopeerr.ConfigError("failed to back up existing config", err).
				WithDetail("path", configPath)
		}
	}

	if err := os.MkdirAll(config.GetUserConfigDir(), 0755); err != nil {
		return scopeerr.ConfigError("failed to create config directory", err)
	}
	if err := os.WriteFile(configPath, []byte(configs.UserConfigTemplate), 0644); err != nil {
		return scopeerr.ConfigError("failed to write config file", err).
			WithDetail("path", configPath)
	}

	out.Success("Created user configuration")
	out.Statusf("📁", "Location: %s", configPath)
	if backupPath != "" {
		out.Statusf("💾", "Backup: %s", backupPath)
	}
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Edit the instances list for your devices")
	out.Status("", "  2. Run 'protoscope config show' to verify")
	out.Status("", "  3. Run 'protoscope poll'")
	return nil
}
