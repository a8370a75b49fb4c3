// Package cmd provides the CLI commands for protoscope.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/protoscope/internal/config"
	scopeerr "github.com/Aman-CERP/protoscope/internal/errors"
	"github.com/Aman-CERP/protoscope/internal/logging"
	"github.com/Aman-CERP/protoscope/internal/plugin"
	"github.com/Aman-CERP/protoscope/pkg/version"
)

// app is the state shared by one command tree: global flags, the logging
// facility and the lazily loaded configuration.
type app struct {
	logLevel   string
	logFormat  string
	debug      bool
	configPath string
	envFile    string

	logs *logging.Facility
	cfg  *config.Config
}

func newApp() *app {
	return &app{logs: logging.NewFacility()}
}

// NewRootCmd creates the root command for the protoscope CLI.
// Building the tree has no side effects; nothing is logged until it runs.
func NewRootCmd() *cobra.Command {
	return newRootCmd(newApp())
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "protoscope",
		Short: "Protocol plugin host and poller",
		Long: `protoscope hosts protocol plugins: it lists them, validates their
configuration, probes them and polls configured instances concurrently.

Run without arguments it logs a single greeting and exits.`,
		Version:       version.Short(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.checkFlags()
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			a.logs.Close()
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHello(cmd, a)
		},
	}

	cmd.SetVersionTemplate("protoscope version {{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.logLevel, "log-level", "", "Minimum log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "Log record format: text, json")
	flags.BoolVar(&a.debug, "debug", false, "Enable debug logging, mirrored to ~/.protoscope/logs/")
	flags.StringVar(&a.configPath, "config", "", "Config file (default: ./protoscope.yaml)")
	flags.StringVar(&a.envFile, "env-file", "", "Load PROTOSCOPE_* variables from a dotenv file")

	cmd.AddCommand(newPluginsCmd(a))
	cmd.AddCommand(newPollCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newLogsCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints any failure to stderr.
func Execute() error {
	a := newApp()
	root := newRootCmd(a)
	return run(context.Background(), root, a)
}

func run(ctx context.Context, root *cobra.Command, a *app) error {
	defer a.logs.Close()

	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	if a.logs.Configured() {
		a.logs.Logger("").LogAttrs(ctx, slog.LevelDebug, "command failed", scopeerr.FormatForLog(err)...)
	}
	msg := scopeerr.FormatForCLI(err)
	if a.debug {
		msg = scopeerr.FormatForUser(err, true) + "\n"
	}
	_, _ = fmt.Fprint(root.ErrOrStderr(), msg)
	return err
}

func (a *app) checkFlags() error {
	if a.logLevel != "" && !logging.ValidLevel(a.logLevel) {
		return scopeerr.ValidationError(fmt.Sprintf("invalid --log-level %q", a.logLevel), nil).
			WithSuggestion("Use one of: debug, info, warn, error")
	}
	switch a.logFormat {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		return scopeerr.ValidationError(fmt.Sprintf("invalid --log-format %q", a.logFormat), nil).
			WithSuggestion("Use one of: text, json")
	}
	return nil
}

// withFlags applies --debug, --log-level and --log-format over base.
func (a *app) withFlags(base logging.Config) logging.Config {
	if a.debug {
		debug := logging.DebugConfig()
		base.Level = debug.Level
		if base.FilePath == "" {
			base.FilePath = debug.FilePath
		}
	}
	if a.logLevel != "" {
		base.Level = a.logLevel
	}
	if a.logFormat != "" {
		base.Format = a.logFormat
	}
	return base
}

// config loads the layered configuration once per command tree.
func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}

	if a.envFile != "" {
		if err := config.LoadEnvFile(a.envFile); err != nil {
			return nil, err
		}
	}

	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	cfg, err := config.Load(dir, a.configPath)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

// logger configures logging from the loaded configuration and returns a
// logger bound to name.
func (a *app) logger(cmd *cobra.Command, name string) (*slog.Logger, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	if err := a.logs.Configure(a.withFlags(cfg.LoggingSetup()), cmd.ErrOrStderr()); err != nil {
		return nil, scopeerr.ConfigError("failed to set up logging", err)
	}
	return a.logs.Logger(name), nil
}

// manager returns a plugin manager with every builtin plugin registered.
func (a *app) manager(cmd *cobra.Command) (*plugin.Manager, error) {
	log, err := a.logger(cmd, "plugin")
	if err != nil {
		return nil, err
	}
	return plugin.NewDefaultManager(plugin.WithLogger(log))
}
