// Package logging configures structured logging for protoscope.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Output formats understood by Setup.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// NameKey is the attribute carrying a logger's name.
const NameKey = "logger"

// Config contains logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Format is the record format: text (default) or json.
	Format string
	// FilePath is the path to the log file. Empty means no file logging.
	FilePath string
	// MaxSizeMB is the maximum size in MB before rotation (default: 10).
	MaxSizeMB int
	// MaxFiles is the maximum number of rotated files to keep (default: 5).
	MaxFiles int
	// WriteToStderr whether to also write to stderr (default: true).
	WriteToStderr bool
}

// DefaultConfig returns console logging at info level.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		Format:        FormatText,
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig returns configuration for debug mode: debug level, mirrored to the default log file.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	cfg.FilePath = DefaultLogPath()
	return cfg
}

// Setup builds a logger from cfg and returns it with a cleanup function.
// stderr is the console destination; nil means os.Stderr.
func Setup(cfg Config, stderr io.Writer) (*slog.Logger, func(), error) {
	if stderr == nil {
		stderr = os.Stderr
	}

	var writers []io.Writer
	cleanup := func() {}

	if cfg.FilePath != "" {
		writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, err
		}
		// Debug records are synced one by one.
		writer.SetImmediateSync(ParseLevel(cfg.Level) <= slog.LevelDebug)
		writers = append(writers, writer)
		cleanup = func() {
			_ = writer.Sync()
			_ = writer.Close()
		}
	}
	if cfg.WriteToStderr || len(writers) == 0 {
		writers = append(writers, stderr)
	}

	output := writers[0]
	if len(writers) > 1 {
		output = io.MultiWriter(writers...)
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", FormatText:
		handler = slog.NewTextHandler(output, opts)
	case FormatJSON:
		handler = slog.NewJSONHandler(output, opts)
	default:
		cleanup()
		return nil, nil, fmt.Errorf("unknown log format %q (use: text, json)", cfg.Format)
	}

	return slog.New(handler), cleanup, nil
}

// Facility is the process logging context. The first Configure call wins;
// later calls are no-ops, so any command may call it safely.
type Facility struct {
	once    sync.Once
	mu      sync.Mutex
	root    *slog.Logger
	cleanup func()
	err     error
}

// NewFacility returns an unconfigured Facility.
func NewFacility() *Facility {
	return &Facility{}
}

// Configure applies cfg once and returns the setup error, if any.
func (f *Facility) Configure(cfg Config, stderr io.Writer) error {
	f.once.Do(func() {
		logger, cleanup, err := Setup(cfg, stderr)

		f.mu.Lock()
		defer f.mu.Unlock()
		f.root, f.cleanup, f.err = logger, cleanup, err
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Configured reports whether a logger has been set up.
func (f *Facility) Configured() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.root != nil
}

// Logger returns a logger bound to name. Before Configure succeeds it
// returns a logger that discards everything.
func (f *Facility) Logger(name string) *slog.Logger {
	f.mu.Lock()
	root := f.root
	f.mu.Unlock()

	if root == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if name == "" {
		return root
	}
	return root.With(slog.String(NameKey, name))
}

// Close releases the log file, if one was opened.
func (f *Facility) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cleanup != nil {
		f.cleanup()
		f.cleanup = nil
	}
}

// ParseLevel converts a level string to slog.Level. Unknown values map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether level names a known log level.
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}
