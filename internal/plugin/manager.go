// Package plugin keeps the set of available protocol plugins and drives their
// instances: one-shot probes, long-lived sessions and concurrent polling.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	scopeerr "github.com/Aman-CERP/protoscope/internal/errors"
	"github.com/Aman-CERP/protoscope/internal/plugin/example"
	"github.com/Aman-CERP/protoscope/internal/protocol"
)

// Manager holds registered plugins in registration order.
type Manager struct {
	logger *slog.Logger

	mu      sync.RWMutex
	plugins []protocol.Plugin
	byID    map[string]protocol.Plugin
	lastErr error
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for registration and instance events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager returns an empty Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		byID:   make(map[string]protocol.Plugin),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Builtin returns the plugins compiled into protoscope.
func Builtin() []protocol.Plugin {
	return []protocol.Plugin{
		example.New(),
	}
}

// NewDefaultManager returns a Manager with every builtin plugin registered.
func NewDefaultManager(opts ...Option) (*Manager, error) {
	m := NewManager(opts...)
	for _, p := range Builtin() {
		if err := m.Register(p); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Register adds p. It fails for a nil plugin, an empty or duplicate id, an
// incompatible API version or a malformed schema; the failure is also kept
// for LastError.
func (m *Manager) Register(p protocol.Plugin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.check(p)
	if err != nil {
		m.lastErr = err
		m.logger.LogAttrs(context.Background(), slog.LevelWarn, "plugin rejected", scopeerr.FormatForLog(err)...)
		return err
	}

	meta := p.Metadata()
	m.plugins = append(m.plugins, p)
	m.byID[meta.ID] = p
	m.logger.Debug("plugin registered",
		slog.String("plugin", meta.ID),
		slog.String("version", meta.Version))
	return nil
}

func (m *Manager) check(p protocol.Plugin) error {
	if p == nil {
		return scopeerr.New(scopeerr.ErrCodePluginInvalid, "plugin is nil", nil)
	}

	meta := p.Metadata()
	if meta.ID == "" {
		return scopeerr.New(scopeerr.ErrCodePluginInvalid, "plugin has an empty id", nil).
			WithDetail("name", meta.Name)
	}
	if !protocol.Compatible(meta.APIVersion) {
		return scopeerr.New(scopeerr.ErrCodePluginIncompatible,
			fmt.Sprintf("plugin %q targets API %q, this build implements %q", meta.ID, meta.APIVersion, protocol.APIVersion), nil).
			WithDetail("plugin", meta.ID)
	}
	if err := p.ConfigSchema().Check(); err != nil {
		return scopeerr.New(scopeerr.ErrCodePluginInvalid,
			fmt.Sprintf("plugin %q has an invalid config schema: %v", meta.ID, err), err).
			WithDetail("plugin", meta.ID)
	}
	if _, dup := m.byID[meta.ID]; dup {
		return scopeerr.New(scopeerr.ErrCodePluginDuplicate,
			fmt.Sprintf("plugin %q is already registered", meta.ID), nil).
			WithDetail("plugin", meta.ID)
	}
	return nil
}

// Plugins returns the registered plugins in registration order.
func (m *Manager) Plugins() []protocol.Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]protocol.Plugin, len(m.plugins))
	copy(out, m.plugins)
	return out
}

// Lookup returns the plugin registered under id.
func (m *Manager) Lookup(id string) (protocol.Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byID[id]
	if !ok {
		return nil, scopeerr.New(scopeerr.ErrCodePluginNotFound,
			fmt.Sprintf("plugin %q is not registered", id), nil).
			WithDetail("plugin", id).
			WithSuggestion("Run 'protoscope plugins list' to see available plugins")
	}
	return p, nil
}

// LastError returns the most recent registration failure, or nil.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// ProbeReport is the outcome of a successful Probe.
type ProbeReport struct {
	Metadata     protocol.Metadata `json:"metadata"`
	SchemaFields int               `json:"schema_fields"`
	Sample       protocol.Sample   `json:"sample"`
	Elapsed      time.Duration     `json:"elapsed"`
}

// Probe runs one full instance lifecycle: validate cfg, create, connect,
// poll once and disconnect. Disconnect is attempted whenever connect succeeded.
func (m *Manager) Probe(ctx context.Context, id string, cfg protocol.Config) (report *ProbeReport, err error) {
	start := time.Now()

	p, err := m.Lookup(id)
	if err != nil {
		return nil, err
	}

	meta := p.Metadata()
	schema := p.ConfigSchema()
	log := m.logger.With(slog.String("plugin", meta.ID))

	inst, err := create(p, cfg)
	if err != nil {
		return nil, err
	}

	if err := inst.Connect(ctx); err != nil {
		return nil, instanceError(ctx, scopeerr.ErrCodeConnectFailed, meta.ID, "connect", err)
	}
	log.Debug("probe connected")

	defer func() {
		if derr := inst.Disconnect(context.WithoutCancel(ctx)); derr != nil && err == nil {
			report = nil
			err = instanceError(ctx, scopeerr.ErrCodeDisconnectFailed, meta.ID, "disconnect", derr)
		}
	}()

	sample, err := inst.Poll(ctx)
	if err != nil {
		return nil, instanceError(ctx, scopeerr.ErrCodePollFailed, meta.ID, "poll", err)
	}

	report = &ProbeReport{
		Metadata:     meta,
		SchemaFields: len(schema),
		Sample:       sample,
		Elapsed:      time.Since(start),
	}
	log.Debug("probe complete", slog.Int("values", len(sample)))
	return report, nil
}

// create validates cfg and asks p for an instance.
func create(p protocol.Plugin, cfg protocol.Config) (protocol.Instance, error) {
	id := p.Metadata().ID
	if cfg == nil {
		cfg = protocol.Config{}
	}

	if err := p.Validate(cfg); err != nil {
		return nil, scopeerr.New(scopeerr.ErrCodeInvalidInput,
			fmt.Sprintf("invalid config for plugin %q: %v", id, err), err).
			WithDetail("plugin", id)
	}

	inst, err := p.Create(cfg)
	if err != nil {
		return nil, scopeerr.New(scopeerr.ErrCodePluginInvalid,
			fmt.Sprintf("plugin %q failed to create an instance: %v", id, err), err).
			WithDetail("plugin", id)
	}
	if inst == nil {
		return nil, scopeerr.New(scopeerr.ErrCodePluginInvalid,
			fmt.Sprintf("plugin %q returned no instance", id), nil).
			WithDetail("plugin", id)
	}
	return inst, nil
}

// instanceError classifies an instance failure. Errors that already carry a
// code are kept; deadline overruns become timeouts.
func instanceError(ctx context.Context, code, id, op string, err error) error {
	if _, ok := scopeerr.As(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		code = scopeerr.ErrCodeTimeout
	}
	return scopeerr.New(code, fmt.Sprintf("%s %s: %v", id, op, err), err).
		WithDetail("plugin", id)
}
