// Package protocol defines the contract between protoscope and its protocol plugins.
//
// A Plugin describes itself (Metadata), declares the settings it accepts
// (ConfigSchema), checks a concrete configuration (Validate) and builds
// Instances from it. An Instance is a live connection that is connected once,
// polled any number of times and disconnected.
package protocol

import (
	"context"
	"strings"
)

// APIVersion is the plugin API version implemented by this build.
// Plugins must declare the same major version to be accepted.
const APIVersion = "1.0"

// Metadata identifies a plugin.
type Metadata struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Version    string `json:"version" yaml:"version"`
	APIVersion string `json:"api_version" yaml:"api_version"`
}

// Config is a plugin configuration as read from YAML or JSON.
type Config map[string]any

// Sample is one set of values returned by Instance.Poll.
type Sample map[string]any

// Plugin is implemented by every protocol plugin.
type Plugin interface {
	Metadata() Metadata
	ConfigSchema() Schema
	// Validate reports every problem with cfg, or nil.
	Validate(cfg Config) error
	// Create builds an unconnected instance from a validated configuration.
	Create(cfg Config) (Instance, error)
}

// Instance is one live use of a plugin.
type Instance interface {
	Connect(ctx context.Context) error
	Poll(ctx context.Context) (Sample, error)
	Disconnect(ctx context.Context) error
}

// MajorVersion returns the part of v before the first dot.
func MajorVersion(v string) string {
	major, _, _ := strings.Cut(strings.TrimSpace(v), ".")
	return major
}

// Compatible reports whether a plugin built against apiVersion can be loaded.
func Compatible(apiVersion string) bool {
	major := MajorVersion(apiVersion)
	return major != "" && major == MajorVersion(APIVersion)
}
