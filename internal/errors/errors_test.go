package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	original := errors.New("dial refused")

	// When: wrapping with ScopeError
	se := New(ErrCodeConnectFailed, "connect to demo failed", original)

	// Then: unwrapping returns original error
	require.NotNil(t, se)
	assert.Equal(t, original, errors.Unwrap(se))
	assert.True(t, errors.Is(se, original))
}

func TestScopeError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "plugin error",
			code:     ErrCodePluginNotFound,
			message:  `plugin "x" is not registered`,
			expected: `[ERR_201_PLUGIN_NOT_FOUND] plugin "x" is not registered`,
		},
		{
			name:     "instance error",
			code:     ErrCodeNotConnected,
			message:  "instance is not connected",
			expected: "[ERR_303_NOT_CONNECTED] instance is not connected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.code, tt.message, nil).Error())
		})
	}
}

func TestScopeError_Is_MatchesByCode(t *testing.T) {
	// Given: a wrapped ScopeError
	err := fmt.Errorf("probe: %w", New(ErrCodePluginNotFound, "missing", nil))

	// Then: errors.Is matches a sentinel with the same code only
	assert.True(t, errors.Is(err, New(ErrCodePluginNotFound, "", nil)))
	assert.False(t, errors.Is(err, New(ErrCodePluginDuplicate, "", nil)))
}

func TestNew_DerivesCategory(t *testing.T) {
	tests := []struct {
		code     string
		category Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodePluginIncompatible, CategoryPlugin},
		{ErrCodePollFailed, CategoryInstance},
		{ErrCodeFieldType, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{"BAD", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.category, New(tt.code, "x", nil).Category)
		})
	}
}

func TestNew_RetryableAndSeverity(t *testing.T) {
	connect := New(ErrCodeConnectFailed, "x", nil)
	assert.True(t, connect.Retryable)
	assert.Equal(t, SeverityWarning, connect.Severity)

	timeout := New(ErrCodeTimeout, "x", nil)
	assert.True(t, timeout.Retryable)

	poll := New(ErrCodePollFailed, "x", nil)
	assert.False(t, poll.Retryable)
	assert.Equal(t, SeverityError, poll.Severity)

	internal := New(ErrCodeInternal, "x", nil)
	assert.Equal(t, SeverityFatal, internal.Severity)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWrap_UsesErrorMessage(t *testing.T) {
	se := Wrap(ErrCodePollFailed, errors.New("device busy"))

	assert.Equal(t, "device busy", se.Message)
	assert.Equal(t, ErrCodePollFailed, se.Code)
}

func TestWithDetail_AndSuggestion(t *testing.T) {
	se := New(ErrCodePluginNotFound, "missing", nil).
		WithDetail("plugin", "example.simple").
		WithSuggestion("run 'protoscope plugins list'")

	assert.Equal(t, "example.simple", se.Details["plugin"])
	assert.Equal(t, "run 'protoscope plugins list'", se.Suggestion)
}

func TestHelpers_SeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("session demo: %w", New(ErrCodeTimeout, "poll timed out", nil))

	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrCodeTimeout, GetCode(err))
}

func TestHelpers_PlainError(t *testing.T) {
	err := errors.New("plain")

	assert.False(t, IsRetryable(err))
	assert.False(t, IsRetryable(nil))
	assert.Equal(t, "", GetCode(err))
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, ErrCodeConfigInvalid, ConfigError("bad", nil).Code)
	assert.Equal(t, ErrCodeInvalidInput, ValidationError("bad", nil).Code)
	assert.Equal(t, SeverityFatal, InternalError("boom", nil).Severity)
}
