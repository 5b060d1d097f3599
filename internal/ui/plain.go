package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer outputs plain text progress (for CI/pipes).
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	errors int
	warns  int
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case event.Documents > 0:
		_, _ = fmt.Fprintf(r.out, "[%s] %s: %d documents\n", event.Stage.Icon(), event.Index, event.Documents)
	case event.Message != "":
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), event.Message)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
		r.warns++
	} else {
		r.errors++
	}

	if event.ID != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.ID, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stats.Skipped {
		_, _ = fmt.Fprintf(r.out, "Skipped: %s is already %s\n", stats.Index, stats.Outcome)
		return
	}

	_, _ = fmt.Fprintf(r.out, "Complete: %d documents indexed into %s in %s",
		stats.Indexed, stats.Index, stats.Duration.Round(100*time.Millisecond))
	if stats.Failed > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d of %d rejected)", stats.Failed, stats.Submitted)
	}
	_, _ = fmt.Fprintln(r.out)

	if secs := stats.Duration.Seconds(); secs > 0 && stats.Indexed > 0 {
		_, _ = fmt.Fprintf(r.out, "  Outcome: %s, %.0f docs/sec\n", stats.Outcome, float64(stats.Indexed)/secs)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}
