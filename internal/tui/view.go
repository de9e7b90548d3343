package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/droverlabs/drover/internal/loop"
)

// View renders the TUI: header bar, scrollable log, optional alert line,
// footer bar.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')
	b.WriteString(m.log.View())
	b.WriteByte('\n')
	if m.status.Intervention() {
		b.WriteString(m.renderAlert())
		b.WriteByte('\n')
	}
	b.WriteString(m.renderFooter())
	return b.String()
}

// logHeight is the viewport height: total minus header, footer, and the
// alert line when one is showing.
func (m Model) logHeight() int {
	h := m.height - 2
	if m.status.Intervention() {
		h--
	}
	if h < 1 {
		h = 1
	}
	return h
}

func (m Model) renderHeader() string {
	name := m.projectName
	if name == "" {
		name = "drover"
	}

	maxLabel := "∞"
	if m.maxIter > 0 {
		maxLabel = fmt.Sprintf("%d", m.maxIter)
	}

	elapsed := m.now.Sub(m.startedAt).Truncate(time.Second)
	badge := statusStyle(m.status).Render(string(m.status))
	if m.status == loop.StatusRunning {
		badge = m.spin.View() + badge
	}

	parts := []string{
		"🐑 " + name,
		badge,
		fmt.Sprintf("iter: %d/%s", m.iteration, maxLabel),
		fmt.Sprintf("elapsed: %s", elapsed),
	}

	return m.theme.headerStyle.Width(m.width).Render(strings.Join(parts, "  │  "))
}

func (m Model) renderAlert() string {
	label := "blocked"
	if m.status == loop.StatusDecide {
		label = "decision needed"
	}
	return alertStyle.Width(m.width).Render(
		fmt.Sprintf("⚠ %s: %s  (press r to resume)", label, m.detail))
}

func (m Model) renderFooter() string {
	hints := "p pause  r resume  s stop  f follow  q quit"
	if m.ctl == nil {
		hints = "f follow  q quit"
	}
	follow := ""
	if !m.log.Following() {
		follow = "  [scroll]"
	}
	return footerStyle.Width(m.width).Render(hints + follow)
}
