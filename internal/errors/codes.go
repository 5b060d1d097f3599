// Package errors provides structured error handling for claimsync.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Primary store errors
//   - 3XX: Network errors
//   - 4XX: Validation and mapping errors
//   - 5XX: Search index errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStore indicates primary store errors.
	CategoryStore Category = "STORE"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation and mapping errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryIndex indicates search index errors.
	CategoryIndex Category = "INDEX"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid  = "ERR_101_CONFIG_INVALID"
	ErrCodeConfigNotFound = "ERR_102_CONFIG_NOT_FOUND"

	// Store errors (200-299)
	ErrCodeStoreRead = "ERR_201_STORE_READ"
	ErrCodeStoreOpen = "ERR_202_STORE_OPEN"
	ErrCodeLockHeld  = "ERR_203_LOCK_HELD"

	// Network errors (300-399)
	ErrCodeBulkTimeout       = "ERR_301_BULK_TIMEOUT"
	ErrCodeEngineUnavailable = "ERR_302_ENGINE_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeMapping      = "ERR_401_MAPPING"
	ErrCodeInvalidIndex = "ERR_402_INVALID_INDEX"

	// Index errors (500-599)
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeVersionMismatch = "ERR_502_VERSION_MISMATCH"
	ErrCodeIndexAdmin      = "ERR_503_INDEX_ADMIN"
	ErrCodeBulkWrite       = "ERR_504_BULK_WRITE"
	ErrCodeCircuitOpen     = "ERR_505_CIRCUIT_OPEN"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryIndex
	}

	// Extract numeric portion (e.g., "201" from "ERR_201_STORE_READ")
	numStr := code[4:7]

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryIndex
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeIndexAdmin, ErrCodeCircuitOpen:
		return SeverityFatal
	case ErrCodeVersionMismatch:
		// Recovered by the version guard.
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a condition that may
// clear on its own. Nothing in the pipeline retries these automatically
// except the engine health wait.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeBulkTimeout, ErrCodeEngineUnavailable, ErrCodeLockHeld:
		return true
	default:
		return false
	}
}
