package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Aman-CERP/claimsync/internal/claims"
	"github.com/Aman-CERP/claimsync/internal/searchindex"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status by name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Target is what RunAll checks. Nil Store or Search skips that check.
// SearchPath is the local index root, empty for remote engines.
type Target struct {
	DataDir    string
	SearchPath string
	Store      claims.Opener
	Search     searchindex.Connector
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose bool
	timeout time.Duration
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithTimeout bounds the store and engine checks. Default 10s.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		c.timeout = d
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		timeout: 10 * time.Second,
		output:  os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs all preflight checks and returns the results.
func (c *Checker) RunAll(ctx context.Context, t Target) []CheckResult {
	var results []CheckResult

	results = append(results, c.CheckWritePermissions(t.DataDir))
	results = append(results, c.CheckDiskSpace(
		Volume{Label: "data", Path: t.DataDir},
		Volume{Label: "search", Path: t.SearchPath}))
	results = append(results, c.CheckFileDescriptors())

	if t.Store != nil {
		results = append(results, c.CheckStore(ctx, t.Store))
	}
	if t.Search != nil {
		results = append(results, c.CheckSearchEngine(ctx, t.Search))
	}
	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "claimsync preflight")
	_, _ = fmt.Fprintln(c.output, "===================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	var warnings, errs []string
	for _, r := range results {
		if r.IsCritical() {
			errs = append(errs, r.Name+": "+r.Message)
		} else if r.Status != StatusPass {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}
	printList(c.output, "error(s)", errs)
	printList(c.output, "warning(s)", warnings)
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "%d %s:\n", len(items), label)
	for _, item := range items {
		_, _ = fmt.Fprintf(w, "  - %s\n", item)
	}
}

// CheckWritePermissions checks that the data directory, where run locks
// live, is writable. The directory is created if missing.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{
		Name:     "write_permissions",
		Required: true,
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}
	f, err := os.CreateTemp(dir, ".claimsync-preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Status = StatusPass
	result.Message = "OK"
	result.Details = dir
	return result
}

// CheckStore opens the claim store and closes it again.
func (c *Checker) CheckStore(ctx context.Context, opener claims.Opener) CheckResult {
	result := CheckResult{
		Name:     "claim_store",
		Required: true,
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	store, err := opener.Open(ctx)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		result.Details = "Check store.backend and store.path or store.dsn"
		return result
	}
	if err := store.Close(); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("opened, but close failed: %v", err)
		return result
	}

	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// CheckSearchEngine connects to the search engine and probes its health.
func (c *Checker) CheckSearchEngine(ctx context.Context, connector searchindex.Connector) CheckResult {
	result := CheckResult{
		Name:     "search_engine",
		Required: true,
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	engine, err := connector.Connect(ctx)
	if err == nil {
		defer func() { _ = engine.Close() }()
		err = engine.Health(ctx)
	}
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		result.Details = "Check that the search engine is running and search.url is right"
		return result
	}

	result.Status = StatusPass
	result.Message = "OK"
	return result
}
