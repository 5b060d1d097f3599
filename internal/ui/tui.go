package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer draws live progress with bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *syncModel
	tracker *ProgressTracker
	started bool
	done    chan struct{}
}

// NewTUIRenderer fails when the output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newSyncModel(tracker, cfg.Index)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	var opts []tea.ProgramOption
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	// The run is cancelled through signals, not keys.
	opts = append(opts, tea.WithInput(nil))

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.tracker.SetStage(event.Stage)
	if event.Documents > 0 || event.Index != "" {
		r.tracker.Update(event.Index, event.Documents)
	}
	r.send(refreshMsg{})
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.tracker.AddError(event)
	r.send(refreshMsg{})
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.tracker.SetStage(StageComplete)
	r.send(completeMsg(stats))
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()

	if p == nil {
		return nil
	}
	p.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		// Do not hang shutdown on an unresponsive terminal.
	}
	return nil
}

type refreshMsg struct{}
type completeMsg CompletionStats
type tickMsg time.Time

// syncModel is the bubbletea model for a resync run.
type syncModel struct {
	tracker  *ProgressTracker
	width    int
	complete bool
	stats    CompletionStats
	spinner  spinner.Model
	styles   Styles
	index    string
}

func newSyncModel(tracker *ProgressTracker, index string) *syncModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent))

	return &syncModel{
		tracker: tracker,
		spinner: s,
		styles:  DefaultStyles(),
		width:   80,
		index:   index,
	}
}

// Init implements tea.Model.
func (m *syncModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *syncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit
	case tickMsg:
		return m, tickCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *syncModel) View() string {
	if m.complete {
		return m.renderComplete()
	}

	width := max(m.width-4, 40)
	divider := m.styles.Border.Render(strings.Repeat("─", width))
	sections := []string{
		m.renderStages(),
		divider,
		m.renderCounts(),
		m.renderSpeed(),
		divider,
		m.styles.Sparkline.Render(m.tracker.RenderSparkline(width-14)) + " " + m.styles.Dim.Render("docs/sec ─"),
	}

	title := "claimsync"
	if m.index != "" {
		title += " • " + m.index
	}
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(0, 1).
		Width(width)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(title),
		panel.Render(strings.Join(sections, "\n")),
	) + "\n" + m.renderStatusBar()
}

func (m *syncModel) renderStages() string {
	current := m.tracker.Stats().Stage
	stages := []struct {
		stage Stage
		name  string
	}{
		{StageChecking, "Check"},
		{StageLoading, "Load"},
		{StageRefreshing, "Refresh"},
	}

	parts := make([]string, 0, len(stages))
	for _, s := range stages {
		switch {
		case s.stage < current:
			parts = append(parts, m.styles.Done.Render("● "+s.name))
		case s.stage == current:
			parts = append(parts, m.styles.Active.Render(m.spinner.View()+" "+s.name))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+s.name))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *syncModel) renderCounts() string {
	stats := m.tracker.Stats()
	return fmt.Sprintf("%s %s   %s %s",
		m.styles.Label.Render("Documents:"), m.styles.Active.Render(fmt.Sprintf("%d", stats.Documents)),
		m.styles.Label.Render("Elapsed:"), formatDuration(stats.Elapsed))
}

func (m *syncModel) renderSpeed() string {
	speed := m.tracker.Stats().Speed
	s := fmt.Sprintf("Speed: %.0f/s", speed.Current)
	if speed.Avg > 0 {
		s += fmt.Sprintf(" (avg: %.0f, peak: %.0f)", speed.Avg, speed.Peak)
	}
	return m.styles.Speed.Render(s)
}

func (m *syncModel) renderStatusBar() string {
	stats := m.tracker.Stats()
	var parts []string
	if stats.WarnCount > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d rejected", stats.WarnCount)))
	}
	if stats.ErrorCount > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", stats.ErrorCount)))
	}
	if len(parts) == 0 {
		return m.styles.Dim.Render("ctrl+c to cancel")
	}
	return strings.Join(parts, m.styles.Dim.Render("  │  "))
}

func (m *syncModel) renderComplete() string {
	var lines []string
	if m.stats.Skipped {
		lines = append(lines, m.styles.Success.Render("✓ Index already "+m.stats.Outcome+", nothing to do"))
	} else {
		lines = append(lines,
			m.styles.Success.Render("✓ Resync Complete"),
			"",
			fmt.Sprintf("%s   %s", m.styles.Label.Render("Index:"), m.stats.Index),
			fmt.Sprintf("%s %s", m.styles.Label.Render("Outcome:"), m.stats.Outcome),
			fmt.Sprintf("%s %s", m.styles.Label.Render("Indexed:"), m.styles.Active.Render(fmt.Sprintf("%d", m.stats.Indexed))),
			fmt.Sprintf("%s    %s", m.styles.Label.Render("Took:"), formatDuration(m.stats.Duration)),
		)
		if m.stats.Failed > 0 {
			lines = append(lines, "", m.styles.Warning.Render(fmt.Sprintf("⚠ %d of %d rejected", m.stats.Failed, m.stats.Submitted)))
		}
	}

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorAccent)).
		Padding(1, 2).
		Width(max(m.width-4, 40))
	return panel.Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		m, s := int(d.Minutes()), int(d.Seconds())%60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

var _ Renderer = (*TUIRenderer)(nil)
