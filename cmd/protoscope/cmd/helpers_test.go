package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty working directory with an empty user
// config dir and no PROTOSCOPE_* overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("NO_COLOR", "1")
	for _, key := range []string{
		"PROTOSCOPE_LOG_LEVEL", "PROTOSCOPE_LOG_FORMAT", "PROTOSCOPE_LOG_FILE",
		"PROTOSCOPE_POLL_TIMEOUT", "PROTOSCOPE_POLL_COUNT",
	} {
		t.Setenv(key, "")
	}
	return dir
}

// execute runs a fresh command tree with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeProjectConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "protoscope.yaml"), []byte(content), 0644))
}

func writeFileString(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}

// unsetenv removes key for the rest of the test and restores it afterwards.
func unsetenv(t *testing.T, key string) error {
	t.Helper()
	t.Setenv(key, "")
	return os.Unsetenv(key)
}
