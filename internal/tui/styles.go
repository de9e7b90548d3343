// Package tui provides a bubbletea + lipgloss terminal UI for drover runs.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/droverlabs/drover/internal/loop"
)

// defaultAccentColor is the default accent color (teal).
const defaultAccentColor = "#2BB3A3"

var (
	colorWhite  = lipgloss.Color("#FAFAFA")
	colorGray   = lipgloss.Color("#888888")
	colorGreen  = lipgloss.Color("#6BCB77")
	colorYellow = lipgloss.Color("#FFD93D")
	colorRed    = lipgloss.Color("#FF6B6B")
	colorOrange = lipgloss.Color("#FFA54F")
)

var (
	footerStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	timestampStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	outputStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	alertStyle = lipgloss.NewStyle().
			Foreground(colorOrange).
			Bold(true)
)

// Theme holds accent-color-derived styles.
type Theme struct {
	headerStyle lipgloss.Style
	iterStyle   lipgloss.Style
}

// NewTheme creates a Theme from a hex accent color string (e.g. "#2BB3A3").
// If accentColor is empty, the default accent color is used.
func NewTheme(accentColor string) Theme {
	color := defaultAccentColor
	if accentColor != "" {
		color = accentColor
	}
	c := lipgloss.Color(color)
	return Theme{
		headerStyle: lipgloss.NewStyle().
			Background(c).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true),
		iterStyle: lipgloss.NewStyle().
			Foreground(c).
			Bold(true),
	}
}

// statusStyle returns the badge style for a loop status.
func statusStyle(s loop.Status) lipgloss.Style {
	switch s {
	case loop.StatusCompleted:
		return successStyle
	case loop.StatusBlocked, loop.StatusDecide, loop.StatusPaused:
		return alertStyle
	case loop.StatusError, loop.StatusCancelled, loop.StatusMaxReached:
		return errorStyle
	default:
		return lipgloss.NewStyle().Foreground(colorYellow)
	}
}
