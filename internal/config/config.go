// Package config loads layered protoscope configuration: defaults, the user
// config file, the project config file and PROTOSCOPE_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	scopeerr "github.com/Aman-CERP/protoscope/internal/errors"
	"github.com/Aman-CERP/protoscope/internal/logging"
	"github.com/Aman-CERP/protoscope/internal/plugin"
	"github.com/Aman-CERP/protoscope/internal/protocol"
)

// CurrentVersion is the config file format version.
const CurrentVersion = 1

// Config represents the protoscope configuration.
type Config struct {
	Version   int              `json:"version" yaml:"version"`
	Logging   LoggingConfig    `json:"logging" yaml:"logging"`
	Poll      PollConfig       `json:"poll" yaml:"poll"`
	Instances []InstanceConfig `json:"instances,omitempty" yaml:"instances,omitempty"`
}

// LoggingConfig controls where and how records are written.
type LoggingConfig struct {
	Level     string `json:"level" yaml:"level"`
	Format    string `json:"format" yaml:"format"`
	File      string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxFiles  int    `json:"max_files" yaml:"max_files"`
}

// PollConfig controls instance sessions. Durations use Go syntax ("5s", "250ms").
type PollConfig struct {
	Timeout        string `json:"timeout" yaml:"timeout"`
	Interval       string `json:"interval" yaml:"interval"`
	Count          int    `json:"count" yaml:"count"`
	ConnectRetries int    `json:"connect_retries" yaml:"connect_retries"`
}

// InstanceConfig declares one plugin instance to open.
type InstanceConfig struct {
	Name   string         `json:"name" yaml:"name"`
	Plugin string         `json:"plugin" yaml:"plugin"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// NewConfig returns a configuration with default values.
func NewConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Logging: LoggingConfig{
			Level:     "info",
			Format:    logging.FormatText,
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
		Poll: PollConfig{
			Timeout:        "5s",
			Interval:       "1s",
			Count:          1,
			ConnectRetries: 2,
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/protoscope/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/protoscope/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "protoscope", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "protoscope", "config.yaml")
	}
	return filepath.Join(home, ".config", "protoscope", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// ProjectConfigPath returns the project config file in dir, or "" if there is none.
// protoscope.yaml wins over protoscope.yml.
func ProjectConfigPath(dir string) string {
	for _, name := range []string{"protoscope.yaml", "protoscope.yml"} {
		if p := filepath.Join(dir, name); fileExists(p) {
			return p
		}
	}
	return ""
}

// Load loads configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/protoscope/config.yaml)
//  3. explicit, when set, otherwise the project config in dir
//  4. Environment variables (PROTOSCOPE_*)
//
// An explicit path that does not exist is an error; missing implicit files are not.
func Load(dir, explicit string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, err
		}
	}

	switch {
	case explicit != "":
		if !fileExists(explicit) {
			return nil, scopeerr.New(scopeerr.ErrCodeConfigNotFound,
				fmt.Sprintf("config file %s does not exist", explicit), nil).
				WithDetail("path", explicit).
				WithSuggestion("Run 'protoscope config init' to create a config file")
		}
		if err := cfg.loadYAML(explicit); err != nil {
			return nil, err
		}
	default:
		if p := ProjectConfigPath(dir); p != "" {
			if err := cfg.loadYAML(p); err != nil {
				return nil, err
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.Logging.File = ExpandHome(cfg.Logging.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set keep their values.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return scopeerr.New(scopeerr.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to load env file %s: %v", path, err), err).
			WithDetail("path", path)
	}
	return nil
}

// loadYAML decodes path over c. Keys absent from the file keep their current
// values; unknown keys are rejected.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return scopeerr.ConfigError(fmt.Sprintf("failed to read config file %s", path), err).
			WithDetail("path", path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return scopeerr.ConfigError(fmt.Sprintf("failed to parse config file %s: %v", path, err), err).
			WithDetail("path", path)
	}
	return nil
}

// applyEnvOverrides applies PROTOSCOPE_* environment variable overrides.
// Malformed numeric values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PROTOSCOPE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PROTOSCOPE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("PROTOSCOPE_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("PROTOSCOPE_POLL_TIMEOUT"); v != "" {
		c.Poll.Timeout = v
	}
	if v := os.Getenv("PROTOSCOPE_POLL_COUNT"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			c.Poll.Count = n
		}
	}
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if !logging.ValidLevel(c.Logging.Level) {
		add("logging.level must be 'debug', 'info', 'warn', or 'error', got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		add("logging.format must be 'text' or 'json', got %q", c.Logging.Format)
	}
	if c.Logging.MaxSizeMB < 0 {
		add("logging.max_size_mb must be non-negative, got %d", c.Logging.MaxSizeMB)
	}
	if c.Logging.MaxFiles < 0 {
		add("logging.max_files must be non-negative, got %d", c.Logging.MaxFiles)
	}

	if _, err := parseDuration(c.Poll.Timeout); err != nil {
		add("poll.timeout: %v", err)
	}
	if _, err := parseDuration(c.Poll.Interval); err != nil {
		add("poll.interval: %v", err)
	}
	if c.Poll.Count < 0 {
		add("poll.count must be non-negative, got %d", c.Poll.Count)
	}
	if d, err := parseDuration(c.Poll.Interval); err == nil && d == 0 && c.Poll.Count == 0 {
		add("poll.interval must be positive when poll.count is 0 (poll until interrupted)")
	}
	if c.Poll.ConnectRetries < 0 {
		add("poll.connect_retries must be non-negative, got %d", c.Poll.ConnectRetries)
	}

	seen := make(map[string]bool, len(c.Instances))
	for i, inst := range c.Instances {
		switch {
		case inst.Name == "":
			add("instances[%d].name is required", i)
		case seen[inst.Name]:
			add("instances[%d].name %q is used more than once", i, inst.Name)
		}
		seen[inst.Name] = true
		if inst.Plugin == "" {
			add("instances[%d].plugin is required", i)
		}
	}

	if result == nil {
		return nil
	}
	result.ErrorFormat = func(errs []error) string {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return strings.Join(msgs, "; ")
	}
	return scopeerr.ConfigError("invalid configuration: "+result.Error(), result).
		WithSuggestion("Fix the listed fields or run 'protoscope config show' to see the effective values")
}

// LoggingSetup converts the logging section into a logging.Config.
func (c *Config) LoggingSetup() logging.Config {
	out := logging.DefaultConfig()
	out.Level = c.Logging.Level
	out.Format = strings.ToLower(c.Logging.Format)
	out.FilePath = c.Logging.File
	out.MaxSizeMB = c.Logging.MaxSizeMB
	out.MaxFiles = c.Logging.MaxFiles
	return out
}

// SessionOptions converts the poll section into plugin session options.
func (c *Config) SessionOptions() plugin.SessionOptions {
	opts := plugin.DefaultSessionOptions()
	if d, err := parseDuration(c.Poll.Timeout); err == nil {
		opts.Timeout = d
	}
	opts.Retry.MaxRetries = c.Poll.ConnectRetries
	return opts
}

// PollInterval returns the delay between polls, zero if unset or malformed.
func (c *Config) PollInterval() time.Duration {
	d, _ := parseDuration(c.Poll.Interval)
	return d
}

// Sessions converts the declared instances into session specs.
func (c *Config) Sessions() []plugin.SessionSpec {
	specs := make([]plugin.SessionSpec, 0, len(c.Instances))
	for _, inst := range c.Instances {
		specs = append(specs, plugin.SessionSpec{
			Name:   inst.Name,
			Plugin: inst.Plugin,
			Config: protocol.Config(inst.Config),
		})
	}
	return specs
}

// ExpandHome replaces a leading "~/" with the user's home directory.
// Other paths, and all paths when the home directory is unknown, are returned unchanged.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be non-negative, got %s", s)
	}
	return d, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
