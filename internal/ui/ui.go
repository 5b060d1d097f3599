// Package ui renders resync progress on a terminal.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/claimsync/internal/stream"
)

// Stage is a step of a resync run.
type Stage int

const (
	// StageChecking covers the index version check.
	StageChecking Stage = iota
	// StageLoading covers streaming claims into the index.
	StageLoading
	// StageRefreshing covers the final index refresh.
	StageRefreshing
	// StageComplete marks a finished run.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageChecking:
		return "Checking"
	case StageLoading:
		return "Loading"
	case StageRefreshing:
		return "Refreshing"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageChecking:
		return "CHECK"
	case StageLoading:
		return "LOAD"
	case StageRefreshing:
		return "REFRESH"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent is a progress update.
type ProgressEvent struct {
	Stage     Stage
	Index     string
	Documents int
	Message   string
}

// ErrorEvent is a rejected document or a failure.
type ErrorEvent struct {
	ID     string
	Err    error
	IsWarn bool
}

// CompletionStats summarizes a run.
type CompletionStats struct {
	Index     string
	Outcome   string
	Skipped   bool
	Submitted int
	Indexed   int
	Failed    int
	Duration  time.Duration
}

// Renderer displays progress.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates progress display.
	UpdateProgress(event ProgressEvent)

	// AddError adds an error to display.
	AddError(event ErrorEvent)

	// Complete shows the run summary.
	Complete(stats CompletionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	Index      string // shown in the TUI header
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithIndex sets the index name shown in the header.
func WithIndex(index string) ConfigOption {
	return func(c *Config) {
		c.Index = index
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns a TUI renderer for interactive terminals and a plain
// text renderer for CI, pipes, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// ProgressObserver forwards stream progress to r as loading updates.
func ProgressObserver(r Renderer) stream.Observer {
	return stream.ObserverFunc(func(index string, count int) {
		r.UpdateProgress(ProgressEvent{Stage: StageLoading, Index: index, Documents: count})
	})
}

// Discard is a Renderer that shows nothing.
var Discard Renderer = discard{}

type discard struct{}

func (discard) Start(context.Context) error {
	return nil
}

func (discard) UpdateProgress(ProgressEvent) {}

func (discard) AddError(ErrorEvent) {}

func (discard) Complete(CompletionStats) {}

func (discard) Stop() error {
	return nil
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
