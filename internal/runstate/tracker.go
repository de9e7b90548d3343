package runstate

import (
	"os"
	"sync"
	"time"

	"github.com/droverlabs/drover/internal/loop"
)

// Tracker mirrors the live loop state into .drover/state.json. The file is
// advisory (read by `drover status`), so save failures are swallowed rather
// than interrupting a run.
type Tracker struct {
	mu    sync.Mutex
	dir   string
	state State
}

// NewTracker creates a Tracker for a run rooted at dir.
func NewTracker(dir, runID string) *Tracker {
	return &Tracker{
		dir: dir,
		state: State{
			PID:       os.Getpid(),
			RunID:     runID,
			Status:    string(loop.StatusIdle),
			StartedAt: time.Now(),
			Dir:       dir,
		},
	}
}

// SetRunID records the history entry id once the loop has assigned one.
func (t *Tracker) SetRunID(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.RunID == id {
		return
	}
	t.state.RunID = id
	t.save()
}

// StatusChanged records a loop status transition. Terminal statuses also
// stamp FinishedAt.
func (t *Tracker) StatusChanged(status loop.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Status = string(status)
	if status.Terminal() {
		t.state.FinishedAt = time.Now()
	}
	t.save()
}

// IterationStarted records that iteration n began.
func (t *Tracker) IterationStarted(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Iteration = n
	t.state.LastOutputAt = time.Now()
	t.save()
}

// OutputSeen stamps LastOutputAt. It writes at most once per second to keep
// streaming output from hammering the filesystem.
func (t *Tracker) OutputSeen() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if now.Sub(t.state.LastOutputAt) < time.Second {
		return
	}
	t.state.LastOutputAt = now
	t.save()
}

// Snapshot returns a copy of the tracked state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// save persists under the lock. Errors are discarded; the state file is a
// convenience, not a source of truth.
func (t *Tracker) save() {
	_ = Save(t.dir, t.state)
}
