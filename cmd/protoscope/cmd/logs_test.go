package cmd

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scopeerr "github.com/Aman-CERP/protoscope/internal/errors"
)

const jsonLog = `{"time":"2026-01-02T03:04:05.678Z","level":"INFO","msg":"polling","logger":"poll","instances":2}
{"time":"2026-01-02T03:04:06.000Z","level":"WARN","msg":"retrying connect","logger":"plugin","session":"plc1"}
{"time":"2026-01-02T03:04:07.000Z","level":"ERROR","msg":"poll failed","logger":"poll","session":"plc2"}
`

func TestLogs_FileFlag(t *testing.T) {
	// Given: a JSON log file
	dir := isolate(t)
	path := filepath.Join(dir, "scope.log")
	require.NoError(t, writeFileString(path, jsonLog))

	// When: viewing warnings and above
	stdout, _, err := execute(t, "logs", "--file", path, "--level", "warn")

	// Then: records are reformatted and filtered
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "03:04:06.000 WARN  [plugin] retrying connect session=plc1", lines[0])
	assert.Equal(t, "03:04:07.000 ERROR [poll] poll failed session=plc2", lines[1])
}

func TestLogs_LinesAndGrep(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "scope.log")
	require.NoError(t, writeFileString(path, jsonLog))

	stdout, _, err := execute(t, "logs", "--file", path, "-n", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(stdout, "\n"))
	assert.Contains(t, stdout, "poll failed")

	stdout, _, err = execute(t, "logs", "--file", path, "--grep", "plc1")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(stdout, "\n"))
	assert.Contains(t, stdout, "retrying connect")
}

func TestLogs_ReadsConfiguredFile(t *testing.T) {
	// Given: logging.file in the project config and a poll that writes to it
	dir := isolate(t)
	path := filepath.Join(dir, "scope.log")
	writeProjectConfig(t, dir, "logging:\n  format: json\n  file: "+path+"\n"+twoInstances)

	_, _, err := execute(t, "poll")
	require.NoError(t, err)

	// When: viewing logs without --file
	stdout, _, err := execute(t, "logs", "-n", "0")

	// Then: the poll's records are shown
	require.NoError(t, err)
	assert.Contains(t, stdout, "[poll] polling finished")
}

func TestLogs_HomeRelativeLogFile(t *testing.T) {
	// Given: logging.file under ~ and a separate home directory
	dir := isolate(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeProjectConfig(t, dir, "logging:\n  format: json\n  file: ~/.protoscope/logs/scope.log\n"+twoInstances)

	// When: polling then viewing logs
	_, _, err := execute(t, "poll")
	require.NoError(t, err)
	stdout, _, err := execute(t, "logs", "-n", "0")

	// Then: the file lives under $HOME and nothing named "~" appears in the working dir
	require.NoError(t, err)
	assert.Contains(t, stdout, "[poll] polling finished")
	assert.FileExists(t, filepath.Join(home, ".protoscope", "logs", "scope.log"))
	assert.NoDirExists(t, filepath.Join(dir, "~"))
}

func TestLogs_MissingFile(t *testing.T) {
	dir := isolate(t)

	_, _, err := execute(t, "logs", "--file", filepath.Join(dir, "missing.log"))

	require.Error(t, err)
	var se *scopeerr.ScopeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, scopeerr.ErrCodeLogNotFound, se.Code)
}

func TestLogs_InvalidFlags(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "scope.log")
	require.NoError(t, writeFileString(path, jsonLog))

	_, _, err := execute(t, "logs", "--file", path, "--level", "loud")
	assert.Error(t, err)

	_, _, err = execute(t, "logs", "--file", path, "--grep", "(")
	assert.Error(t, err)
}
