package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForUser_BasicError(t *testing.T) {
	// Given: a ScopeError
	err := New(ErrCodeConfigNotFound, "config file 'protoscope.yaml' not found", nil)

	// When: formatting for user (no debug)
	result := FormatForUser(err, false)

	// Then: contains message and code
	assert.Contains(t, result, "config file 'protoscope.yaml' not found")
	assert.Contains(t, result, "[ERR_101_CONFIG_NOT_FOUND]")
}

func TestFormatForUser_WithSuggestion(t *testing.T) {
	err := New(ErrCodePluginNotFound, `plugin "modbus" is not registered`, nil).
		WithSuggestion("Run 'protoscope plugins list' to see available plugins")

	result := FormatForUser(err, false)

	assert.Contains(t, result, "Suggestion:")
	assert.Contains(t, result, "plugins list")
}

func TestFormatForUser_DebugShowsCause(t *testing.T) {
	err := New(ErrCodeConnectFailed, "connect failed", errors.New("connection refused"))

	assert.NotContains(t, FormatForUser(err, false), "connection refused")
	assert.Contains(t, FormatForUser(err, true), "Cause: connection refused")
}

func TestFormatForUser_StandardError(t *testing.T) {
	assert.Equal(t, "something went wrong", FormatForUser(errors.New("something went wrong"), false))
	assert.Equal(t, "", FormatForUser(nil, false))
}

func TestFormatForCLI(t *testing.T) {
	err := New(ErrCodeFieldRequired, `field "port" is required`, nil).
		WithSuggestion("add port to the instance config")

	result := FormatForCLI(err)

	assert.Contains(t, result, `Error: field "port" is required`)
	assert.Contains(t, result, "Hint: add port to the instance config")
	assert.Contains(t, result, "Code: ERR_402_FIELD_REQUIRED")
}

func TestFormatForCLI_StandardErrorIsInternal(t *testing.T) {
	result := FormatForCLI(errors.New("boom"))

	assert.Contains(t, result, "Error: boom")
	assert.Contains(t, result, "Code: ERR_501_INTERNAL")
}

func TestFormatJSON(t *testing.T) {
	err := New(ErrCodeTimeout, "poll timed out", errors.New("context deadline exceeded")).
		WithDetail("instance", "demo")

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "ERR_305_TIMEOUT", parsed["code"])
	assert.Equal(t, "INSTANCE", parsed["category"])
	assert.Equal(t, true, parsed["retryable"])
	assert.Equal(t, "context deadline exceeded", parsed["cause"])
	assert.Equal(t, map[string]any{"instance": "demo"}, parsed["details"])
}

func TestFormatJSON_Nil(t *testing.T) {
	data, err := FormatJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestFormatForLog(t *testing.T) {
	err := New(ErrCodePollFailed, "poll failed", errors.New("eof")).
		WithDetail("plugin", "example.simple").
		WithDetail("instance", "demo")

	attrs := FormatForLog(err)

	keys := make([]string, 0, len(attrs))
	for _, a := range attrs {
		keys = append(keys, a.Key)
	}
	assert.Equal(t, []string{
		"error_code", "error", "category", "retryable", "cause",
		"detail_instance", "detail_plugin",
	}, keys)
}

func TestFormatForLog_PlainError(t *testing.T) {
	attrs := FormatForLog(errors.New("plain"))

	require.Len(t, attrs, 1)
	assert.Equal(t, "error", attrs[0].Key)
	assert.Nil(t, FormatForLog(nil))
}
