package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// logView is a scrollable log wrapping bubbles/viewport. In follow mode
// (default), new lines cause the view to auto-scroll to the bottom.
type logView struct {
	vp     viewport.Model
	lines  []string // rendered (pre-styled) lines
	follow bool
}

// newLogView creates a logView with the given dimensions, initially in
// follow mode.
func newLogView(w, h int) logView {
	return logView{
		vp:     viewport.New(w, h),
		follow: true,
	}
}

// AppendLine appends a pre-rendered (styled) line to the log. If follow mode
// is enabled, the viewport scrolls to the bottom.
func (v logView) AppendLine(rendered string) logView {
	v.lines = append(v.lines, rendered)
	v.vp.SetContent(strings.Join(v.lines, "\n"))
	if v.follow {
		v.vp.GotoBottom()
	}
	return v
}

// AppendToLast extends the most recent line instead of starting a new one,
// so streamed chunks of the same output block stay together.
func (v logView) AppendToLast(rendered string) logView {
	if len(v.lines) == 0 {
		return v.AppendLine(rendered)
	}
	lines := make([]string, len(v.lines))
	copy(lines, v.lines)
	lines[len(lines)-1] += rendered
	v.lines = lines
	v.vp.SetContent(strings.Join(v.lines, "\n"))
	if v.follow {
		v.vp.GotoBottom()
	}
	return v
}

// ToggleFollow switches follow mode on or off. When turned on, scrolls
// immediately to the bottom.
func (v logView) ToggleFollow() logView {
	v.follow = !v.follow
	if v.follow {
		v.vp.GotoBottom()
	}
	return v
}

// SetSize resizes the log view.
func (v logView) SetSize(w, h int) logView {
	v.vp.Width = w
	v.vp.Height = h
	if v.follow {
		v.vp.GotoBottom()
	}
	return v
}

// Following reports whether follow mode is active.
func (v logView) Following() bool {
	return v.follow
}

// Update handles scroll keys and mouse events.
func (v logView) Update(msg tea.Msg) (logView, tea.Cmd) {
	var cmd tea.Cmd
	v.vp, cmd = v.vp.Update(msg)
	// If the user scrolled away from the bottom, exit follow mode. Only on
	// explicit scroll messages, not on resize.
	if v.follow && !v.vp.AtBottom() {
		switch msg.(type) {
		case tea.KeyMsg, tea.MouseMsg:
			v.follow = false
		}
	}
	return v, cmd
}

// View renders the log content.
func (v logView) View() string {
	return v.vp.View()
}
