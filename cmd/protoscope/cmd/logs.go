package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/protoscope/internal/config"
	scopeerr "github.com/Aman-CERP/protoscope/internal/errors"
	"github.com/Aman-CERP/protoscope/internal/logging"
	"github.com/Aman-CERP/protoscope/internal/output"
)

type logsOptions struct {
	lines   int
	level   string
	pattern string
	file    string
	follow  bool
}

func newLogsCmd(a *app) *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View protoscope log files",
		Long: `Print the tail of the protoscope log file.

The file is logging.file from the configuration, or the debug log at
~/.protoscope/logs/protoscope.log when none is configured. JSON records are
reformatted for reading; text records are printed as written.`,
		Example: `  # Last 50 lines
  protoscope logs

  # Only warnings and errors, then keep following
  protoscope logs --level warn --follow

  # Records mentioning one instance
  protoscope logs --grep 'session=plc1'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, a, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show, 0 for all")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level to show: debug, info, warn, error")
	cmd.Flags().StringVar(&opts.pattern, "grep", "", "Only show lines matching this regular expression")
	cmd.Flags().StringVar(&opts.file, "file", "", "Log file to read (default: logging.file)")
	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Keep printing new records until interrupted")

	return cmd
}

func runLogs(cmd *cobra.Command, a *app, opts logsOptions) error {
	if opts.level != "" && !logging.ValidLevel(opts.level) {
		return scopeerr.ValidationError(fmt.Sprintf("invalid --level %q", opts.level), nil).
			WithSuggestion("Use one of: debug, info, warn, error")
	}

	viewCfg := logging.ViewerConfig{Level: opts.level, NoColor: !output.New(cmd.OutOrStdout()).UseColor()}
	if opts.pattern != "" {
		re, err := regexp.Compile(opts.pattern)
		if err != nil {
			return scopeerr.ValidationError(fmt.Sprintf("invalid --grep pattern: %v", err), err)
		}
		viewCfg.Pattern = re
	}

	path := config.ExpandHome(opts.file)
	if path == "" {
		cfg, err := a.config()
		if err != nil {
			return err
		}
		path = logFilePath(cfg)
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return scopeerr.New(scopeerr.ErrCodeLogNotFound, fmt.Sprintf("log file %s does not exist", path), err).
			WithDetail("path", path).
			WithSuggestion("Set logging.file in the configuration or run a command with --debug")
	}

	viewer := logging.NewViewer(viewCfg, cmd.OutOrStdout())
	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return scopeerr.InternalError("failed to read log file", err).WithDetail("path", path)
	}
	viewer.Print(entries)

	if !opts.follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ch := make(chan logging.LogEntry)
	done := make(chan error, 1)
	go func() {
		done <- viewer.Follow(ctx, path, ch)
	}()
	for {
		select {
		case entry := <-ch:
			viewer.Print([]logging.LogEntry{entry})
		case err := <-done:
			if err != nil {
				return scopeerr.InternalError("failed to follow log file", err).WithDetail("path", path)
			}
			return nil
		}
	}
}

// logFilePath is the file records are written to: logging.file, or the
// debug log when none is configured.
func logFilePath(cfg *config.Config) string {
	if cfg.Logging.File != "" {
		return config.ExpandHome(cfg.Logging.File)
	}
	return logging.DefaultLogPath()
}
