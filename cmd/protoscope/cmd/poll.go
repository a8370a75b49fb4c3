package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	scopeerr "github.com/Aman-CERP/protoscope/internal/errors"
	"github.com/Aman-CERP/protoscope/internal/output"
	"github.com/Aman-CERP/protoscope/internal/plugin"
	"github.com/Aman-CERP/protoscope/internal/profiling"
)

type pollOptions struct {
	count      int
	interval   time.Duration
	jsonOutput bool
	profile    profiling.Options
}

func newPollCmd(a *app) *cobra.Command {
	var opts pollOptions

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll every configured instance",
		Long: `Open every instance listed under 'instances' in the configuration,
poll them concurrently and print each sample as it arrives.

Each instance is polled poll.count times (0 polls until interrupted) with
poll.interval between polls. The first failure stops every instance; all
instances are disconnected before the command returns.`,
		Example: `  # Poll with the configured count and interval
  protoscope poll

  # Poll five times, twice a second, as JSON
  protoscope poll --count 5 --interval 500ms --json

  # Poll until Ctrl+C
  protoscope poll --count 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("count") {
				opts.count = -1
			}
			if !cmd.Flags().Changed("interval") {
				opts.interval = -1
			}
			return runPoll(cmd, a, opts)
		},
	}

	cmd.Flags().IntVar(&opts.count, "count", 0, "Polls per instance, 0 for unlimited (default: poll.count)")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "Delay between polls (default: poll.interval)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print one JSON object per sample")
	cmd.Flags().StringVar(&opts.profile.CPUPath, "profile-cpu", "", "Write CPU profile to file")
	cmd.Flags().StringVar(&opts.profile.HeapPath, "profile-mem", "", "Write memory profile to file")
	cmd.Flags().StringVar(&opts.profile.TracePath, "profile-trace", "", "Write execution trace to file")

	return cmd
}

// pollRecord is the JSON form of one reading.
type pollRecord struct {
	Session string         `json:"session"`
	Plugin  string         `json:"plugin"`
	Seq     int            `json:"seq"`
	Time    time.Time      `json:"time"`
	Sample  map[string]any `json:"sample"`
}

func runPoll(cmd *cobra.Command, a *app, opts pollOptions) (err error) {
	log, err := a.logger(cmd, "poll")
	if err != nil {
		return err
	}
	cfg := a.cfg

	if opts.count < 0 {
		opts.count = cfg.Poll.Count
	}
	if opts.interval < 0 {
		opts.interval = cfg.PollInterval()
	}

	if opts.count == 0 && opts.interval <= 0 {
		return scopeerr.ValidationError("polling until interrupted needs a positive interval", nil).
			WithSuggestion("Pass --interval or set poll.interval, e.g. 1s")
	}

	specs := cfg.Sessions()
	if len(specs) == 0 {
		return scopeerr.ValidationError("no instances configured", nil).
			WithSuggestion("Add an 'instances' list to protoscope.yaml or run 'protoscope config init'")
	}

	if opts.profile.Enabled() {
		prof, perr := profiling.Start(opts.profile)
		if perr != nil {
			return scopeerr.InternalError("failed to start profiling", perr)
		}
		defer func() {
			if serr := prof.Stop(); serr != nil {
				log.Warn("failed to write profiles", slog.String("error", serr.Error()))
			}
		}()
	}

	m, err := a.manager(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionOpts := cfg.SessionOptions()
	sessions := make([]*plugin.Session, 0, len(specs))
	defer func() {
		if cerr := plugin.CloseAll(context.WithoutCancel(ctx), sessions); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}()

	for _, spec := range specs {
		s, oerr := m.Open(ctx, spec, sessionOpts)
		if oerr != nil {
			if ctx.Err() != nil {
				log.Info("interrupted while connecting", slog.String("session", spec.Name))
				return nil
			}
			return oerr
		}
		sessions = append(sessions, s)
	}
	log.Info("polling",
		slog.Int("instances", len(sessions)),
		slog.Int("count", opts.count),
		slog.Duration("interval", opts.interval))

	out := output.New(cmd.OutOrStdout())
	var writeErr error
	start := time.Now()

	err = plugin.PollAll(ctx, sessions, opts.count, opts.interval, func(r plugin.Reading) {
		if opts.jsonOutput {
			if werr := out.JSON(pollRecord{r.Session, r.Plugin, r.Seq, r.Time, r.Sample}); werr != nil && writeErr == nil {
				writeErr = werr
			}
			return
		}
		out.Statusf("•", "%s #%d %s", r.Session, r.Seq, strings.Join(formatSample(r.Sample), " "))
	})
	if err != nil {
		return err
	}
	if writeErr != nil {
		return scopeerr.InternalError("failed to write sample", writeErr)
	}

	total := 0
	for _, s := range sessions {
		total += s.Polls()
	}
	log.Info("polling finished", slog.Int("samples", total), slog.Duration("elapsed", time.Since(start)))
	if !opts.jsonOutput {
		out.Successf("%d samples from %d %s", total, len(sessions), plural(len(sessions), "instance"))
	}
	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return fmt.Sprintf("%ss", word)
}
