package ui

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestNewTUIRenderer_RejectsNonTTY(t *testing.T) {
	r, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))

	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestSyncModel_StagesAndCounts(t *testing.T) {
	// Given: a model part way through loading
	tracker := NewProgressTracker()
	tracker.SetStage(StageLoading)
	tracker.Update("claims", 12345)
	model := newSyncModel(tracker, "claims")
	model.styles = NoColorStyles()

	// When: rendered
	view := model.View()

	// Then: every stage, the index and the count appear
	assert.Contains(t, view, "● Check")
	assert.Contains(t, view, "Load")
	assert.Contains(t, view, "○ Refresh")
	assert.Contains(t, view, "claimsync • claims")
	assert.Contains(t, view, "12345")
	assert.Contains(t, view, "ctrl+c to cancel")
}

func TestSyncModel_StatusBarCountsRejections(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.AddError(ErrorEvent{ID: "a", IsWarn: true})
	model := newSyncModel(tracker, "")
	model.styles = NoColorStyles()

	assert.Contains(t, model.View(), "⚠ 1 rejected")
}

func TestSyncModel_CompleteQuits(t *testing.T) {
	// Given: a running model
	model := newSyncModel(NewProgressTracker(), "claims")
	model.styles = NoColorStyles()

	// When: the run completes
	_, cmd := model.Update(completeMsg(CompletionStats{
		Index: "claims", Outcome: "created", Submitted: 10, Indexed: 8, Failed: 2, Duration: 90 * time.Second,
	}))

	// Then: the summary is shown and the program quits
	assert.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	view := model.View()
	assert.Contains(t, view, "Resync Complete")
	assert.Contains(t, view, "1m 30s")
	assert.Contains(t, view, "2 of 10 rejected")
}

func TestSyncModel_WindowResize(t *testing.T) {
	model := newSyncModel(NewProgressTracker(), "")

	model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	assert.Equal(t, 120, model.width)
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		42 * time.Second:              "42s",
		3 * time.Minute:               "3m",
		3*time.Minute + 5*time.Second: "3m 5s",
		2*time.Hour + 7*time.Minute:   "2h 7m",
	}
	for d, want := range tests {
		assert.Equal(t, want, formatDuration(d))
	}
}
