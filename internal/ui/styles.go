package ui

import "github.com/charmbracelet/lipgloss"

// Palette (256-color codes).
const (
	ColorAccent    = "39"  // progress, active stage
	ColorAccentDim = "31"  // finished stages
	ColorWhite     = "255" // headers
	ColorGray      = "245" // labels
	ColorDarkGray  = "238" // borders, pending stages
	ColorRed       = "196" // errors
	ColorYellow    = "220" // warnings
)

// Styles holds all UI styles for TUI rendering.
type Styles struct {
	Header    lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Dim       lipgloss.Style
	Done      lipgloss.Style
	Active    lipgloss.Style
	Border    lipgloss.Style
	Sparkline lipgloss.Style
	Speed     lipgloss.Style
	Label     lipgloss.Style
}

// DefaultStyles returns styled components for TUI mode.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),
		Success:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent)),
		Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Done:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccentDim)),
		Active:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Border:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Sparkline: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent)),
		Speed:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Label:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
	}
}

// NoColorStyles returns unstyled components.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header: plain, Success: plain, Warning: plain, Error: plain,
		Dim: plain, Done: plain, Active: plain, Border: plain,
		Sparkline: plain, Speed: plain, Label: plain,
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
