package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/droverlabs/drover/internal/agent"
	"github.com/droverlabs/drover/internal/config"
	"github.com/droverlabs/drover/internal/loop"
	"github.com/droverlabs/drover/internal/runstate"
	"github.com/droverlabs/drover/internal/tui"
)

// bridgeObserver translates loop observer callbacks into TUI events while
// mirroring state into the runstate tracker. send must not block; events are
// dropped when the channel is full rather than stalling an iteration.
func bridgeObserver(events chan<- tui.Event, tracker *runstate.Tracker, lp *loop.Loop) loop.Observer {
	send := func(ev tui.Event) {
		ev.Time = time.Now()
		select {
		case events <- ev:
		default:
		}
	}

	return loop.Observer{
		OnIterationStart: func(n int) {
			if e, ok := lp.Entry(); ok {
				tracker.SetRunID(e.ID)
			}
			tracker.IterationStarted(n)
			send(tui.Event{Kind: tui.EventIterationStart, Iteration: n})
		},
		OnIterationEnd: func(n int, res agent.Result) {
			send(tui.Event{
				Kind:      tui.EventIterationEnd,
				Iteration: n,
				Duration:  res.Duration,
				Failed:    res.Failed,
				Text:      res.ErrorMsg,
			})
		},
		OnOutputChunk: func(text string) {
			tracker.OutputSeen()
			send(tui.Event{Kind: tui.EventOutput, Text: text})
		},
		OnStatusChange: func(status loop.Status) {
			tracker.StatusChanged(status)
			snap := lp.Snapshot()
			detail := ""
			if status.Intervention() {
				detail = snap.LastSignal.Detail
			} else if status == loop.StatusError {
				detail = snap.LastError
			}
			send(tui.Event{Kind: tui.EventStatus, Status: status, Text: detail})
		},
	}
}

// runPlain drives the loop with line-oriented output on stdout.
func runPlain(ctx context.Context, lp *loop.Loop, tracker *runstate.Tracker, loopCfg loop.Config) error {
	events := make(chan tui.Event, 128)
	lp.Observer = bridgeObserver(events, tracker, lp)

	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		for ev := range events {
			if line := formatLogLine(ev); line != "" {
				fmt.Fprintln(os.Stdout, line)
			}
		}
	}()

	runErr := lp.Start(ctx, loopCfg)
	close(events)
	<-drainDone
	return runErr
}

// runWithTUI drives the loop behind the bubbletea UI. The TUI owns the
// terminal; the loop runs on its own goroutine and closes the event channel
// when it reaches a terminal state.
func runWithTUI(ctx context.Context, lp *loop.Loop, tracker *runstate.Tracker, cfg *config.Config, loopCfg loop.Config) error {
	events := make(chan tui.Event, 128)
	lp.Observer = bridgeObserver(events, tracker, lp)

	maxIter := loopCfg.MaxIterations
	if loopCfg.Unbounded {
		maxIter = 0
	}
	model := tui.New(events, lp, cfg.TUI.AccentColor, cfg.Project.Name, maxIter)
	program := tea.NewProgram(model, tea.WithAltScreen())

	errCh := make(chan error, 1)
	go func() {
		errCh <- lp.Start(ctx, loopCfg)
		close(events)
	}()

	finalModel, tuiErr := program.Run()
	// The TUI can exit before the loop does (render error, force quit).
	// Stop is idempotent and unblocks the Start goroutine either way.
	lp.Stop()
	runErr := <-errCh

	if tuiErr != nil {
		return tuiErr
	}
	if runErr != nil {
		return runErr
	}

	if m, ok := finalModel.(tui.Model); ok {
		printOutcome(m.Status(), lp)
	}
	return nil
}

// printOutcome leaves a one-line summary on the terminal after the
// alt-screen TUI exits.
func printOutcome(status loop.Status, lp *loop.Loop) {
	entry, ok := lp.Entry()
	if !ok {
		return
	}
	fmt.Printf("Run %s: %s after %d iteration(s) in %s\n",
		entry.ID, status, len(entry.Iterations), entry.TotalDuration.Round(time.Second))
}

// formatLogLine renders a TUI event as a plain log line. Output chunks are
// trimmed; empty chunks produce no line.
func formatLogLine(ev tui.Event) string {
	ts := ev.Time.Format("15:04:05")

	switch ev.Kind {
	case tui.EventIterationStart:
		return fmt.Sprintf("[%s] ── iteration %d ──", ts, ev.Iteration)
	case tui.EventIterationEnd:
		if ev.Failed {
			return fmt.Sprintf("[%s] iteration %d failed: %s", ts, ev.Iteration, ev.Text)
		}
		return fmt.Sprintf("[%s] iteration %d done in %.1fs", ts, ev.Iteration, ev.Duration.Seconds())
	case tui.EventOutput:
		text := strings.TrimRight(ev.Text, "\n")
		if strings.TrimSpace(text) == "" {
			return ""
		}
		return text
	case tui.EventStatus:
		line := fmt.Sprintf("[%s] status: %s", ts, ev.Status)
		if ev.Text != "" {
			line += " (" + ev.Text + ")"
		}
		return line
	case tui.EventNotice:
		return fmt.Sprintf("[%s] %s", ts, ev.Text)
	}
	return ""
}
