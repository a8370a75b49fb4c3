package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.protoscope/logs/).
// Falls back to the temp directory if the home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".protoscope", "logs")
	}
	return filepath.Join(home, ".protoscope", "logs")
}

// DefaultLogPath returns the debug log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "protoscope.log")
}
