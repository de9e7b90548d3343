package tui

import (
	"time"

	"github.com/droverlabs/drover/internal/loop"
)

// EventKind identifies what a loop event describes.
type EventKind int

const (
	// EventIterationStart marks the beginning of an iteration.
	EventIterationStart EventKind = iota
	// EventIterationEnd marks the end of an iteration.
	EventIterationEnd
	// EventOutput carries a chunk of streamed agent output.
	EventOutput
	// EventStatus carries a loop status transition.
	EventStatus
	// EventNotice carries a free-text informational line.
	EventNotice
)

// Event is one item on the TUI's event channel. The command layer translates
// loop observer callbacks into Events; closing the channel tells the TUI the
// run is over.
type Event struct {
	Time      time.Time
	Kind      EventKind
	Iteration int
	Status    loop.Status
	Text      string        // output chunk, status detail, or notice text
	Duration  time.Duration // set on EventIterationEnd
	Failed    bool          // set on EventIterationEnd when the invocation failed
}
