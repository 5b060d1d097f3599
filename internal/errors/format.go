package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// asSyncError finds the outermost SyncError in the chain, wrapping plain
// errors as internal errors.
func asSyncError(err error) *SyncError {
	var se *SyncError
	if errors.As(err, &se) {
		return se
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForCLI formats an error for terminal output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	se := asSyncError(err)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", se.Message)
	for _, k := range sortedKeys(se.Details) {
		fmt.Fprintf(&sb, "  %s: %s\n", k, se.Details[k])
	}
	if se.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", se.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", se.Code)
	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error for --json output.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}
	se := asSyncError(err)

	je := jsonError{
		Code:       se.Code,
		Message:    se.Message,
		Category:   string(se.Category),
		Severity:   string(se.Severity),
		Details:    se.Details,
		Suggestion: se.Suggestion,
		Retryable:  se.Retryable,
	}
	if se.Cause != nil {
		je.Cause = se.Cause.Error()
	}
	return json.Marshal(je)
}

// LogAttrs returns slog attributes describing err.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}
	var se *SyncError
	if !errors.As(err, &se) {
		return []any{slog.String("error", err.Error())}
	}

	attrs := []any{
		slog.String("error", se.Message),
		slog.String("error_code", se.Code),
		slog.String("category", string(se.Category)),
		slog.String("severity", string(se.Severity)),
	}
	if se.Cause != nil && se.Cause.Error() != se.Message {
		attrs = append(attrs, slog.String("cause", se.Cause.Error()))
	}
	for _, k := range sortedKeys(se.Details) {
		attrs = append(attrs, slog.String(k, se.Details[k]))
	}
	return attrs
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
