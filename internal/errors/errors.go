package errors

import (
	"errors"
	"fmt"
)

// SyncError is the structured error type for claimsync.
// It carries enough context for the CLI, structured logs and callers that
// need to branch on the failure kind.
type SyncError struct {
	// Code is the unique error code (e.g., "ERR_201_STORE_READ").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Store, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if re-running the operation may succeed.
	Retryable bool

	// Suggestion is an actionable suggestion for the operator.
	Suggestion string
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Is matches another SyncError by code, so errors.Is works against sentinels
// built with New(code, "", nil).
func (e *SyncError) Is(target error) bool {
	if t, ok := target.(*SyncError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *SyncError) WithDetail(key, value string) *SyncError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the operator.
func (e *SyncError) WithSuggestion(suggestion string) *SyncError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SyncError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SyncError {
	return &SyncError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SyncError from an existing error.
// The error's message becomes the SyncError message.
func Wrap(code string, err error) *SyncError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SyncError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StoreError creates a primary store read error.
func StoreError(message string, cause error) *SyncError {
	return New(ErrCodeStoreRead, message, cause)
}

// AdminError creates a search index administration error.
func AdminError(message string, cause error) *SyncError {
	return New(ErrCodeIndexAdmin, message, cause)
}

// IsRetryable checks if any SyncError in the chain is retryable.
func IsRetryable(err error) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the code of the outermost SyncError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// HasCode reports whether err carries a SyncError with the given code.
func HasCode(err error, code string) bool {
	return errors.Is(err, &SyncError{Code: code})
}
