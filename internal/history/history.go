// Package history records one durable JSON document per run: the run's
// configuration snapshot, every iteration's timing/output/signal, and the
// terminal result. Entries are value types; append and finalize return
// copies so concurrent holders never observe a half-updated entry.
package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/droverlabs/drover/internal/marker"
)

// Result is a run's status as stored on disk. It starts as ResultRunning,
// may pass through ResultBlocked/ResultDecide while the run is parked for
// intervention, and ends on exactly one terminal value.
type Result string

const (
	ResultRunning    Result = "running"
	ResultCompleted  Result = "completed"
	ResultBlocked    Result = "blocked"
	ResultDecide     Result = "decide"
	ResultMaxReached Result = "max_reached"
	ResultCancelled  Result = "cancelled"
	ResultError      Result = "error"
)

// ConfigSnapshot freezes the run configuration inside the entry.
type ConfigSnapshot struct {
	MaxIterations   int    `json:"max_iterations"`
	Unbounded       bool   `json:"unbounded"`
	DoneSignal      string `json:"done_signal,omitempty"`
	Model           string `json:"model,omitempty"`
	SkipPermissions bool   `json:"skip_permissions"`
	Sandbox         bool   `json:"sandbox"`
	TimeoutSeconds  int    `json:"timeout_seconds,omitempty"`
	AutoCommit      bool   `json:"auto_commit"`
}

// IterationRecord is the immutable record of one agent invocation.
// Number is assigned by Entry.WithIteration; callers leave it zero.
type IterationRecord struct {
	Number    int           `json:"number"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  time.Duration `json:"duration"`
	Output    string        `json:"output"`
	Signal    marker.Signal `json:"signal"`
}

// Entry is the durable record of one run.
type Entry struct {
	ID            string            `json:"id"`
	StartedAt     time.Time         `json:"started_at"`
	Dir           string            `json:"dir"`
	Prompt        string            `json:"prompt"`
	Config        ConfigSnapshot    `json:"config"`
	Iterations    []IterationRecord `json:"iterations"`
	Result        Result            `json:"result"`
	TotalDuration time.Duration     `json:"total_duration"`
}

// NewEntry creates a fresh entry with zero iterations and a running result.
func NewEntry(cfg ConfigSnapshot, prompt, dir string) Entry {
	return Entry{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Dir:       dir,
		Prompt:    prompt,
		Config:    cfg,
		Result:    ResultRunning,
	}
}

// WithIteration returns a copy of e with rec assigned the next sequential
// 1-based number and appended. The receiver is not modified.
func (e Entry) WithIteration(rec IterationRecord) Entry {
	rec.Number = len(e.Iterations) + 1
	iterations := make([]IterationRecord, len(e.Iterations), len(e.Iterations)+1)
	copy(iterations, e.Iterations)
	e.Iterations = append(iterations, rec)
	return e
}

// Finalized returns a copy of e with the terminal result and total duration
// set. Finalization happens exactly once per run, enforced by the loop.
func (e Entry) Finalized(result Result, total time.Duration) Entry {
	e.Result = result
	e.TotalDuration = total
	return e
}
