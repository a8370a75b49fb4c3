// Package errors provides structured error handling for protoscope.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Plugin registration and lookup errors
//   - 3XX: Instance (connect/poll/disconnect) errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryPlugin indicates plugin registration or lookup errors.
	CategoryPlugin Category = "PLUGIN"
	// CategoryInstance indicates failures talking to a plugin instance.
	CategoryInstance Category = "INSTANCE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeLogNotFound    = "ERR_103_LOG_NOT_FOUND"

	// Plugin errors (200-299)
	ErrCodePluginNotFound     = "ERR_201_PLUGIN_NOT_FOUND"
	ErrCodePluginDuplicate    = "ERR_202_PLUGIN_DUPLICATE"
	ErrCodePluginIncompatible = "ERR_203_PLUGIN_INCOMPATIBLE"
	ErrCodePluginInvalid      = "ERR_204_PLUGIN_INVALID"

	// Instance errors (300-399)
	ErrCodeConnectFailed    = "ERR_301_CONNECT_FAILED"
	ErrCodePollFailed       = "ERR_302_POLL_FAILED"
	ErrCodeNotConnected     = "ERR_303_NOT_CONNECTED"
	ErrCodeDisconnectFailed = "ERR_304_DISCONNECT_FAILED"
	ErrCodeTimeout          = "ERR_305_TIMEOUT"

	// Validation errors (400-499)
	ErrCodeInvalidInput    = "ERR_401_INVALID_INPUT"
	ErrCodeFieldRequired   = "ERR_402_FIELD_REQUIRED"
	ErrCodeFieldType       = "ERR_403_FIELD_TYPE"
	ErrCodeFieldConstraint = "ERR_404_FIELD_CONSTRAINT"
	ErrCodeFieldUnknown    = "ERR_405_FIELD_UNKNOWN"
	ErrCodeSchemaInvalid   = "ERR_406_SCHEMA_INVALID"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	// "ERR_" followed by at least one digit
	if len(code) < 5 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryPlugin
	case '3':
		return CategoryInstance
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeInternal:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeConnectFailed, ErrCodeTimeout:
		return true
	default:
		return false
	}
}
