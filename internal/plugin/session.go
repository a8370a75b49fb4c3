package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	scopeerr "github.com/Aman-CERP/protoscope/internal/errors"
	"github.com/Aman-CERP/protoscope/internal/protocol"
)

// SessionSpec names a plugin instance and its configuration.
type SessionSpec struct {
	Name   string
	Plugin string
	Config protocol.Config
}

// SessionOptions tunes how sessions talk to their instances.
type SessionOptions struct {
	// Timeout bounds each connect, poll and disconnect call. Zero means no limit.
	Timeout time.Duration
	// Retry is applied to connect failures that are marked retryable.
	Retry scopeerr.RetryConfig
}

// DefaultSessionOptions returns a 5s call timeout and the default retry policy.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		Timeout: 5 * time.Second,
		Retry:   scopeerr.DefaultRetryConfig(),
	}
}

// Session is a connected plugin instance.
type Session struct {
	name   string
	meta   protocol.Metadata
	inst   protocol.Instance
	opts   SessionOptions
	logger *slog.Logger

	mu     sync.Mutex
	polls  int
	closed bool
}

// Open validates spec, creates the instance and connects it, retrying
// retryable connect failures.
func (m *Manager) Open(ctx context.Context, spec SessionSpec, opts SessionOptions) (*Session, error) {
	p, err := m.Lookup(spec.Plugin)
	if err != nil {
		return nil, withSession(err, spec.Name)
	}

	inst, err := create(p, spec.Config)
	if err != nil {
		return nil, withSession(err, spec.Name)
	}

	meta := p.Metadata()
	s := &Session{
		name:   spec.Name,
		meta:   meta,
		inst:   inst,
		opts:   opts,
		logger: m.logger.With(slog.String("session", spec.Name), slog.String("plugin", meta.ID)),
	}

	attempt := 0
	err = scopeerr.Retry(ctx, opts.Retry, func() error {
		attempt++
		cctx, cancel := s.callContext(ctx)
		defer cancel()

		if err := inst.Connect(cctx); err != nil {
			cerr := instanceError(cctx, scopeerr.ErrCodeConnectFailed, meta.ID, "connect", err)
			s.logger.Debug("connect attempt failed", slog.Int("attempt", attempt), slog.String("error", cerr.Error()))
			return cerr
		}
		return nil
	})
	if err != nil {
		return nil, withSession(err, spec.Name)
	}

	s.logger.Debug("session opened", slog.Int("attempts", attempt))
	return s, nil
}

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// Plugin returns the metadata of the plugin behind the session.
func (s *Session) Plugin() protocol.Metadata { return s.meta }

// Polls returns how many successful polls the session has made.
func (s *Session) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

// Poll reads one sample within the configured timeout.
func (s *Session) Poll(ctx context.Context) (protocol.Sample, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, scopeerr.New(scopeerr.ErrCodeNotConnected,
			fmt.Sprintf("session %q is closed", s.name), nil).WithDetail("session", s.name)
	}

	cctx, cancel := s.callContext(ctx)
	defer cancel()

	sample, err := s.inst.Poll(cctx)
	if err != nil {
		return nil, withSession(instanceError(cctx, scopeerr.ErrCodePollFailed, s.meta.ID, "poll", err), s.name)
	}

	s.mu.Lock()
	s.polls++
	s.mu.Unlock()
	return sample, nil
}

// Close disconnects the instance. Closing twice is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	cctx, cancel := s.callContext(context.WithoutCancel(ctx))
	defer cancel()

	if err := s.inst.Disconnect(cctx); err != nil {
		return withSession(instanceError(cctx, scopeerr.ErrCodeDisconnectFailed, s.meta.ID, "disconnect", err), s.name)
	}
	s.logger.Debug("session closed", slog.Int("polls", s.Polls()))
	return nil
}

func (s *Session) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.Timeout)
}

// Reading is one sample delivered by PollAll.
type Reading struct {
	Session string
	Plugin  string
	Seq     int
	Time    time.Time
	Sample  protocol.Sample
}

// PollAll polls every session concurrently, count times each with interval
// between polls (count <= 0 polls until ctx is done). fn is never called
// concurrently. The first failure stops all sessions and is returned.
func PollAll(ctx context.Context, sessions []*Session, count int, interval time.Duration, fn func(Reading)) error {
	g, gctx := errgroup.WithContext(ctx)
	var deliver sync.Mutex

	for _, s := range sessions {
		g.Go(func() error {
			for seq := 1; count <= 0 || seq <= count; seq++ {
				if seq > 1 && interval > 0 {
					timer := time.NewTimer(interval)
					select {
					case <-gctx.Done():
						timer.Stop()
						return nil
					case <-timer.C:
					}
				}
				if gctx.Err() != nil {
					return nil
				}

				sample, err := s.Poll(gctx)
				if err != nil {
					if gctx.Err() != nil {
						return nil
					}
					return err
				}

				deliver.Lock()
				fn(Reading{Session: s.name, Plugin: s.meta.ID, Seq: seq, Time: time.Now(), Sample: sample})
				deliver.Unlock()
			}
			return nil
		})
	}

	return g.Wait()
}

// CloseAll closes every session, even after a failure, and returns all failures.
func CloseAll(ctx context.Context, sessions []*Session) error {
	var result *multierror.Error
	for _, s := range sessions {
		if err := s.Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// withSession tags err with the session name when it is a ScopeError.
func withSession(err error, name string) error {
	if se, ok := scopeerr.As(err); ok && name != "" {
		se.WithDetail("session", name)
	}
	return err
}
