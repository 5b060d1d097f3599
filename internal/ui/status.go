package ui

import (
	"encoding/json"
	"fmt"
	"io"
)

// StatusInfo describes a search index without changing it.
type StatusInfo struct {
	Index           string `json:"index"`
	Backend         string `json:"backend"`
	Engine          string `json:"engine"` // "ready" or "unreachable"
	Exists          bool   `json:"exists"`
	StoredVersion   int    `json:"stored_version,omitempty"`
	ExpectedVersion int    `json:"expected_version"`
	Documents       int64  `json:"documents"`
	Error           string `json:"error,omitempty"`
}

// State names what a sync run would do with the index.
func (i StatusInfo) State() string {
	switch {
	case i.Engine != "ready":
		return "unknown"
	case !i.Exists:
		return "missing"
	case i.StoredVersion != i.ExpectedVersion:
		return "outdated"
	default:
		return "current"
	}
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render writes a human-readable report.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Search Index: "+info.Index))
	_, _ = fmt.Fprintf(r.out, "  Backend:  %s\n", info.Backend)
	_, _ = fmt.Fprintf(r.out, "  Engine:   %s\n", r.renderStatus(info.Engine))
	if info.Error != "" {
		_, _ = fmt.Fprintf(r.out, "  Error:    %s\n", r.styles.Error.Render(info.Error))
	}
	_, _ = fmt.Fprintf(r.out, "  State:    %s\n", r.renderStatus(info.State()))
	if info.Exists {
		_, _ = fmt.Fprintf(r.out, "  Version:  %d (expected %d)\n", info.StoredVersion, info.ExpectedVersion)
		_, _ = fmt.Fprintf(r.out, "  Documents: %d\n", info.Documents)
	} else {
		_, _ = fmt.Fprintf(r.out, "  Version:  - (expected %d)\n", info.ExpectedVersion)
	}
	return nil
}

// RenderJSON writes the report as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready", "current":
		return r.styles.Success.Render(status)
	case "missing", "outdated":
		return r.styles.Warning.Render(status)
	case "unreachable", "unknown":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}
