// Package example provides the reference protocol plugin, example.simple.
// Its instances report a constant reading and are used to exercise the
// plugin manager end to end.
package example

import (
	"context"
	"sync"

	scopeerr "github.com/Aman-CERP/protoscope/internal/errors"
	"github.com/Aman-CERP/protoscope/internal/protocol"
)

// ID is the plugin identifier.
const ID = "example.simple"

// Value is the reading every poll returns.
const Value = 42

// Settings is the decoded plugin configuration.
type Settings struct {
	Dummy int `config:"dummy"`
}

// Plugin implements protocol.Plugin.
type Plugin struct{}

// New returns the example plugin.
func New() *Plugin {
	return &Plugin{}
}

// Metadata implements protocol.Plugin.
func (p *Plugin) Metadata() protocol.Metadata {
	return protocol.Metadata{
		ID:         ID,
		Name:       "Example Simple Plugin",
		Version:    "0.1",
		APIVersion: protocol.APIVersion,
	}
}

// ConfigSchema implements protocol.Plugin.
func (p *Plugin) ConfigSchema() protocol.Schema {
	return protocol.Schema{
		{
			Name:        "dummy",
			Type:        protocol.FieldInteger,
			Default:     0,
			Description: "Unused setting, kept to demonstrate schema handling",
		},
	}
}

// Validate implements protocol.Plugin.
func (p *Plugin) Validate(cfg protocol.Config) error {
	return protocol.ValidateConfig(p.ConfigSchema(), cfg)
}

// Create implements protocol.Plugin.
func (p *Plugin) Create(cfg protocol.Config) (protocol.Instance, error) {
	var s Settings
	if err := protocol.Decode(protocol.WithDefaults(p.ConfigSchema(), cfg), &s); err != nil {
		return nil, err
	}
	return &Instance{settings: s}, nil
}

// Instance is a connection-less example instance.
type Instance struct {
	settings Settings

	mu        sync.Mutex
	connected bool
}

// Settings returns the configuration the instance was created with.
func (i *Instance) Settings() Settings {
	return i.settings
}

// Connect implements protocol.Instance.
func (i *Instance) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.connected = true
	return nil
}

// Poll implements protocol.Instance.
func (i *Instance) Poll(ctx context.Context) (protocol.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.connected {
		return nil, scopeerr.New(scopeerr.ErrCodeNotConnected, "example instance is not connected", nil)
	}
	return protocol.Sample{"value": Value}, nil
}

// Disconnect implements protocol.Instance.
func (i *Instance) Disconnect(_ context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.connected = false
	return nil
}
