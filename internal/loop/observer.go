package loop

import (
	"github.com/droverlabs/drover/internal/agent"
	"github.com/droverlabs/drover/internal/history"
)

// Observer receives loop lifecycle callbacks. Every field is optional; the
// loop invokes set callbacks from its own goroutine, in order: iteration
// start, zero or more output chunks, iteration end, status changes as they
// happen, and run completion exactly once after history is persisted.
type Observer struct {
	OnIterationStart func(n int)
	OnIterationEnd   func(n int, res agent.Result)
	OnOutputChunk    func(text string)
	OnStatusChange   func(status Status)
	OnRunComplete    func(entry history.Entry)
}

func (o Observer) iterationStart(n int) {
	if o.OnIterationStart != nil {
		o.OnIterationStart(n)
	}
}

func (o Observer) iterationEnd(n int, res agent.Result) {
	if o.OnIterationEnd != nil {
		o.OnIterationEnd(n, res)
	}
}

func (o Observer) outputChunk(text string) {
	if o.OnOutputChunk != nil {
		o.OnOutputChunk(text)
	}
}

func (o Observer) statusChange(status Status) {
	if o.OnStatusChange != nil {
		o.OnStatusChange(status)
	}
}

func (o Observer) runComplete(entry history.Entry) {
	if o.OnRunComplete != nil {
		o.OnRunComplete(entry)
	}
}

// Notifier delivers a human-visible alert for a terminal or intervention
// status. The loop calls it; delivery lives elsewhere.
type Notifier func(status Status, detail string)

// Committer commits the working tree on behalf of the auto-commit
// collaborator when the agent emits a commit-message marker.
type Committer interface {
	CommitAll(message string) error
}
