package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/droverlabs/drover/internal/loop"
)

// Controller lets the TUI drive the running loop. loop.Loop satisfies it.
type Controller interface {
	Pause()
	Resume()
	Stop()
}

// eventMsg wraps an Event as a bubbletea message.
type eventMsg Event

// runDoneMsg signals the event channel has closed.
type runDoneMsg struct{}

// tickMsg is sent every second for the elapsed clock.
type tickMsg time.Time

// Model is the bubbletea model for a drover run: header bar, scrollable
// output log, alert line for blocked/decide, footer with key hints.
type Model struct {
	events <-chan Event
	ctl    Controller

	theme   Theme
	log     logView
	spin    spinner.Model
	width   int
	height  int
	inChunk bool // last log line is an open output block

	projectName string
	status      loop.Status
	detail      string // blocked/decide payload or error text
	iteration   int
	maxIter     int // 0 = unbounded
	startedAt   time.Time
	now         time.Time
	done        bool
}

// New creates a TUI Model that consumes run events from the given channel.
// ctl may be nil to disable the pause/resume/stop keys. maxIter <= 0 renders
// as an unbounded run.
func New(events <-chan Event, ctl Controller, accentColor, projectName string, maxIter int) Model {
	now := time.Now()
	th := NewTheme(accentColor)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(defaultAccentColor))
	return Model{
		events:      events,
		ctl:         ctl,
		theme:       th,
		log:         newLogView(80, 21),
		spin:        sp,
		width:       80,
		height:      24,
		projectName: projectName,
		status:      loop.StatusIdle,
		maxIter:     maxIter,
		startedAt:   now,
		now:         now,
	}
}

// Done reports whether the run finished (the event channel closed).
func (m Model) Done() bool { return m.done }

// Status returns the last status the model observed.
func (m Model) Status() loop.Status { return m.status }

// Init returns the initial commands: event listener, clock, spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tickCmd(), m.spin.Tick)
}

// tickCmd schedules the next one-second clock tick.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForEvent blocks on the event channel and returns the next message.
func waitForEvent(ch <-chan Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return runDoneMsg{}
		}
		return eventMsg(ev)
	}
}
