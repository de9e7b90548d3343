// Package loop implements the iteration control loop: the state machine
// that drives repeated agent invocations until the agent signals
// completion, raises an intervention, or the iteration cap is reached.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/droverlabs/drover/internal/agent"
	"github.com/droverlabs/drover/internal/history"
	"github.com/droverlabs/drover/internal/marker"
)

// maxDisplayChunks bounds the in-memory output ring kept for display.
// The durable record in the history entry is never truncated.
const maxDisplayChunks = 256

// ErrRunActive is returned by Start when a run is already in progress.
var ErrRunActive = errors.New("loop: a run is already active")

// Config is the immutable per-run configuration.
type Config struct {
	Prompt          string
	MaxIterations   int  // ignored when Unbounded
	Unbounded       bool // run until a signal or stop, ignoring the cap
	DoneSignal      string
	Model           string
	SkipPermissions bool
	Sandbox         bool
	Dir             string
	Timeout         time.Duration // per-invocation ceiling; 0 = none
	AutoCommit      bool
}

// State is a snapshot of the loop's mutable run state.
type State struct {
	Status     Status
	Iteration  int
	LastSignal marker.Signal
	LastError  string
	Output     []string // recent chunks of the current iteration, bounded
}

// Loop owns one run at a time. All iteration work happens on the goroutine
// that calls Start; Pause, Resume, Stop, and Reset are safe to call from
// any other goroutine (including a signal-handler path).
type Loop struct {
	Runner   agent.Runner
	Store    *history.Store // nil disables persistence
	Observer Observer
	Notify   Notifier  // nil disables notifications
	Commit   Committer // nil disables auto-commit

	mu       sync.Mutex
	cfg      Config
	state    State
	entry    history.Entry
	hasEntry bool
	active   bool          // run in progress, cleared by Stop and run exit
	paused   bool          // cooperative pause flag
	wakeCh   chan struct{} // closed to release a pause wait
	stopCh   chan struct{} // closed by Stop for the current run
	stopped  bool
}

// New creates a Loop in the idle state.
func New(runner agent.Runner, store *history.Store) *Loop {
	return &Loop{
		Runner: runner,
		Store:  store,
		state:  State{Status: StatusIdle},
	}
}

// Snapshot returns a copy of the current run state.
func (l *Loop) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.state
	s.Output = append([]string(nil), l.state.Output...)
	return s
}

// Entry returns a copy of the in-memory history entry and whether a run has
// one. Useful for status displays; the durable copy lives in the store.
func (l *Loop) Entry() (history.Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entry, l.hasEntry
}

// Start executes the run on the calling goroutine until a terminal status
// is reached. It returns ErrRunActive if a run is already in progress.
// Individual iteration failures never end the run; only a complete signal,
// the iteration cap, or an external stop does.
func (l *Loop) Start(ctx context.Context, cfg Config) error {
	l.mu.Lock()
	if l.active {
		l.mu.Unlock()
		return ErrRunActive
	}
	l.cfg = cfg
	l.state = State{Status: StatusRunning}
	l.entry = history.NewEntry(snapshotConfig(cfg), cfg.Prompt, cfg.Dir)
	l.hasEntry = true
	l.active = true
	l.paused = false
	l.stopped = false
	l.stopCh = make(chan struct{})
	l.wakeCh = nil
	l.mu.Unlock()

	l.Observer.statusChange(StatusRunning)

	start := time.Now()
	prompt := PreparePrompt(cfg.Prompt, cfg.DoneSignal, cfg.AutoCommit)

	for l.shouldContinue(ctx) {
		if !l.waitWhilePaused(ctx) {
			break
		}
		// The continuation condition may have changed while we were parked.
		if !l.shouldContinue(ctx) {
			break
		}

		n := l.beginIteration()
		l.Observer.iterationStart(n)

		iterStart := time.Now()
		res, runErr := l.runIteration(ctx, prompt)
		iterEnd := time.Now()

		l.appendIteration(history.IterationRecord{
			StartedAt: iterStart,
			EndedAt:   iterEnd,
			Duration:  iterEnd.Sub(iterStart),
			Output:    res.Output,
			Signal:    res.Signal,
		})
		l.Observer.iterationEnd(n, res)

		if runErr != nil {
			// Runner invariant breach, not an agent failure. The run cannot
			// proceed coherently; end it in the error state.
			l.setLastError(runErr.Error())
			l.finish(StatusError, history.ResultError, start, runErr.Error())
			return runErr
		}

		l.setLastSignal(res.Signal)
		l.maybeAutoCommit(res.Output)

		switch res.Signal.Kind {
		case marker.Complete:
			// Exits immediately, bypassing any remaining iterations.
			l.finish(StatusCompleted, history.ResultCompleted, start, "")
			return nil
		case marker.Blocked:
			l.park(StatusBlocked, res.Signal.Detail)
		case marker.Decide:
			l.park(StatusDecide, res.Signal.Detail)
		default:
			if res.Failed {
				// Deliberately persistent: record the failure and try again.
				l.setLastError(res.ErrorMsg)
			}
		}
	}

	if l.wasStopped(ctx) {
		l.finish(StatusCancelled, history.ResultCancelled, start, "")
		return nil
	}
	l.finish(StatusMaxReached, history.ResultMaxReached, start, "")
	return nil
}

// Pause sets the pause flag. It only transitions the status when the loop
// is currently running; blocked and decide keep their status while parked.
func (l *Loop) Pause() {
	l.mu.Lock()
	if !l.active || l.paused {
		l.mu.Unlock()
		return
	}
	l.paused = true
	l.wakeCh = make(chan struct{})
	transition := l.state.Status == StatusRunning
	if transition {
		l.state.Status = StatusPaused
	}
	l.mu.Unlock()
	if transition {
		l.Observer.statusChange(StatusPaused)
	}
}

// Resume clears the pause flag and wakes the loop. It is the only way a
// blocked or decide state advances.
func (l *Loop) Resume() {
	l.mu.Lock()
	if !l.paused {
		l.mu.Unlock()
		return
	}
	l.paused = false
	if l.wakeCh != nil {
		close(l.wakeCh)
		l.wakeCh = nil
	}
	transition := l.active && !l.state.Status.Terminal()
	if transition {
		l.state.Status = StatusRunning
	}
	l.mu.Unlock()
	if transition {
		l.Observer.statusChange(StatusRunning)
	}
}

// Stop ends the run: it clears the running and pause flags, releases any
// pause wait, and kills the in-flight invocation. Safe to call at any
// point, from any goroutine, any number of times.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.paused = false
	if l.wakeCh != nil {
		close(l.wakeCh)
		l.wakeCh = nil
	}
	if l.active && !l.stopped {
		l.stopped = true
		close(l.stopCh)
	}
	l.active = false
	l.mu.Unlock()

	if l.Runner != nil {
		l.Runner.Kill()
	}
}

// Reset performs the same teardown as Stop, discards the in-memory history
// handle, and returns the loop to idle so it can start a fresh run.
func (l *Loop) Reset() {
	l.Stop()
	l.mu.Lock()
	l.entry = history.Entry{}
	l.hasEntry = false
	l.state = State{Status: StatusIdle}
	l.mu.Unlock()
	l.Observer.statusChange(StatusIdle)
}

// runIteration invokes the agent once, streaming chunks to observers and
// recovering any panic so a single anomalous iteration cannot crash the run.
func (l *Loop) runIteration(ctx context.Context, prompt string) (res agent.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("iteration panic: %v", r)
			l.setLastError(msg)
			res = agent.Result{Failed: true, ErrorMsg: msg}
			err = nil
		}
	}()

	l.mu.Lock()
	cfg := l.cfg
	l.state.Output = nil
	l.mu.Unlock()

	var chunkCount int
	sink := func(chunk string) {
		chunkCount++
		l.appendOutput(chunk)
		l.Observer.outputChunk(chunk)
	}

	opts := agent.Options{
		Model:           cfg.Model,
		Dir:             cfg.Dir,
		SkipPermissions: cfg.SkipPermissions,
		Sandbox:         cfg.Sandbox,
	}
	res, err = agent.RunWithTimeout(ctx, l.Runner, prompt, opts, sink, cfg.Timeout)
	if err != nil {
		return res, err
	}

	// Buffering edge case: the runner produced the whole output at once with
	// no streamed chunks. Synthesize one so observers still see it.
	if chunkCount == 0 && res.Output != "" {
		l.appendOutput(res.Output)
		l.Observer.outputChunk(res.Output)
	}
	return res, nil
}

// park transitions to an intervention status, notifies the external sink,
// and sets the pause flag so the next loop pass blocks until resumed. A
// snapshot of the entry is persisted with the parked result so the run shows
// up as blocked/decide in history even if the process dies before resuming;
// finish overwrites it with the terminal result later.
func (l *Loop) park(status Status, detail string) {
	l.mu.Lock()
	l.state.Status = status
	l.paused = true
	l.wakeCh = make(chan struct{})
	entry := l.entry
	l.mu.Unlock()

	if l.Store != nil {
		switch status {
		case StatusBlocked:
			entry.Result = history.ResultBlocked
		case StatusDecide:
			entry.Result = history.ResultDecide
		}
		if err := l.Store.Save(entry); err != nil {
			l.setLastError(fmt.Sprintf("persist history: %v", err))
		}
	}

	l.Observer.statusChange(status)
	l.notify(status, detail)
}

// finish finalizes and persists history, then reports the terminal status.
// Persistence failures are recorded and logged via lastError but never
// block the terminal status from reaching the user.
func (l *Loop) finish(status Status, result history.Result, start time.Time, detail string) {
	l.mu.Lock()
	l.entry = l.entry.Finalized(result, time.Since(start))
	entry := l.entry
	l.state.Status = status
	l.active = false
	l.mu.Unlock()

	if l.Store != nil {
		if err := l.Store.Save(entry); err != nil {
			l.setLastError(fmt.Sprintf("persist history: %v", err))
		}
	}

	l.Observer.statusChange(status)
	l.notify(status, detail)
	l.Observer.runComplete(entry)
}

// waitWhilePaused blocks while the pause flag is set, waking on resume,
// stop, or context cancellation. Returns false when the run should end.
func (l *Loop) waitWhilePaused(ctx context.Context) bool {
	for {
		l.mu.Lock()
		if !l.active {
			l.mu.Unlock()
			return false
		}
		if !l.paused {
			l.mu.Unlock()
			return true
		}
		wake := l.wakeCh
		stop := l.stopCh
		l.mu.Unlock()

		select {
		case <-wake:
		case <-stop:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// shouldContinue gates each iteration. Context cancellation ends the run
// here too: without the check, a cancelled context would fail every
// subsequent invocation instantly and the failure-tolerant loop would spin
// through the remaining iterations instead of stopping.
func (l *Loop) shouldContinue(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active {
		return false
	}
	if l.cfg.Unbounded {
		return true
	}
	return l.state.Iteration < l.cfg.MaxIterations
}

func (l *Loop) beginIteration() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Iteration++
	return l.state.Iteration
}

func (l *Loop) appendIteration(rec history.IterationRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entry = l.entry.WithIteration(rec)
}

func (l *Loop) appendOutput(chunk string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Output = append(l.state.Output, chunk)
	if len(l.state.Output) > maxDisplayChunks {
		l.state.Output = l.state.Output[len(l.state.Output)-maxDisplayChunks:]
	}
}

func (l *Loop) setLastSignal(sig marker.Signal) {
	l.mu.Lock()
	l.state.LastSignal = sig
	l.mu.Unlock()
}

func (l *Loop) setLastError(msg string) {
	l.mu.Lock()
	l.state.LastError = msg
	l.mu.Unlock()
}

func (l *Loop) wasStopped(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

// maybeAutoCommit hands a commit-message marker to the committer. Commit
// failures are recorded, never fatal.
func (l *Loop) maybeAutoCommit(output string) {
	l.mu.Lock()
	enabled := l.cfg.AutoCommit && l.Commit != nil
	l.mu.Unlock()
	if !enabled {
		return
	}
	msg, ok := marker.CommitMessage(output)
	if !ok {
		return
	}
	if err := l.Commit.CommitAll(msg); err != nil {
		l.setLastError(fmt.Sprintf("auto-commit: %v", err))
	}
}

func (l *Loop) notify(status Status, detail string) {
	if l.Notify != nil {
		l.Notify(status, detail)
	}
}

func snapshotConfig(cfg Config) history.ConfigSnapshot {
	return history.ConfigSnapshot{
		MaxIterations:   cfg.MaxIterations,
		Unbounded:       cfg.Unbounded,
		DoneSignal:      cfg.DoneSignal,
		Model:           cfg.Model,
		SkipPermissions: cfg.SkipPermissions,
		Sandbox:         cfg.Sandbox,
		TimeoutSeconds:  int(cfg.Timeout / time.Second),
		AutoCommit:      cfg.AutoCommit,
	}
}
