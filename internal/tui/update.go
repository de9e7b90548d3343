package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/droverlabs/drover/internal/loop"
)

// Update handles incoming messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.log = m.log.SetSize(msg.Width, m.logHeight())
		return m, nil

	case eventMsg:
		return m.handleEvent(Event(msg))

	case runDoneMsg:
		m.done = true
		return m, tea.Quit

	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.log, cmd = m.log.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.ctl != nil && !m.status.Terminal() {
			m.ctl.Stop()
			// The loop's terminal event will close the channel and quit.
			return m, nil
		}
		return m, tea.Quit
	case "p":
		if m.ctl != nil && m.status == loop.StatusRunning {
			m.ctl.Pause()
		}
		return m, nil
	case "r":
		if m.ctl != nil && (m.status == loop.StatusPaused || m.status.Intervention()) {
			m.ctl.Resume()
		}
		return m, nil
	case "s":
		if m.ctl != nil && !m.status.Terminal() {
			m.ctl.Stop()
		}
		return m, nil
	case "f":
		m.log = m.log.ToggleFollow()
		return m, nil
	}

	var cmd tea.Cmd
	m.log, cmd = m.log.Update(msg)
	return m, cmd
}

func (m Model) handleEvent(ev Event) (tea.Model, tea.Cmd) {
	ts := timestampStyle.Render(fmt.Sprintf("[%s]", ev.Time.Format("15:04:05")))

	switch ev.Kind {
	case EventIterationStart:
		m.iteration = ev.Iteration
		m.inChunk = false
		m.log = m.log.AppendLine(fmt.Sprintf("%s  %s", ts,
			m.theme.iterStyle.Render(fmt.Sprintf("── iteration %d ──", ev.Iteration))))

	case EventIterationEnd:
		m.inChunk = false
		line := fmt.Sprintf("iteration %d done in %.1fs", ev.Iteration, ev.Duration.Seconds())
		style := successStyle
		if ev.Failed {
			line = fmt.Sprintf("iteration %d failed: %s", ev.Iteration, ev.Text)
			style = errorStyle
		}
		m.log = m.log.AppendLine(fmt.Sprintf("%s  %s", ts, style.Render(line)))

	case EventOutput:
		if m.inChunk {
			m.log = m.log.AppendToLast(outputStyle.Render(ev.Text))
		} else {
			m.log = m.log.AppendLine(outputStyle.Render(ev.Text))
			m.inChunk = true
		}

	case EventStatus:
		m.status = ev.Status
		m.detail = ev.Text
		m.inChunk = false
		m.log = m.log.AppendLine(fmt.Sprintf("%s  %s", ts,
			statusStyle(ev.Status).Render(statusLine(ev.Status, ev.Text))))

	case EventNotice:
		m.inChunk = false
		m.log = m.log.AppendLine(fmt.Sprintf("%s  %s", ts, outputStyle.Render(ev.Text)))
	}

	return m, waitForEvent(m.events)
}

// statusLine renders a status transition as a log line.
func statusLine(s loop.Status, detail string) string {
	switch s {
	case loop.StatusRunning:
		return "▶ running"
	case loop.StatusPaused:
		return "⏸ paused"
	case loop.StatusCompleted:
		return "✅ run complete"
	case loop.StatusBlocked:
		return "🚧 blocked: " + detail
	case loop.StatusDecide:
		return "❓ decision needed: " + detail
	case loop.StatusMaxReached:
		return "⏹ iteration cap reached"
	case loop.StatusCancelled:
		return "⏹ stopped"
	case loop.StatusError:
		return "❌ " + detail
	default:
		return string(s)
	}
}
