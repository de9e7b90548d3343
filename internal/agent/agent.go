// Package agent spawns the external coding agent CLI as a child process,
// streams its output, and classifies the run via the marker package.
package agent

import (
	"context"
	"time"

	"github.com/droverlabs/drover/internal/marker"
)

// Options configures a single agent invocation.
type Options struct {
	Model           string // agent model identifier; empty = CLI default
	Dir             string // working directory for the child process
	SkipPermissions bool   // skip all permission prompts instead of acceptEdits
	Sandbox         bool   // run the agent inside its container sandbox
}

// Result is the outcome of one agent invocation. A non-zero exit with a
// recognized signal is still a success: the agent may legitimately exit
// non-zero after signaling.
type Result struct {
	Output   string        // accumulated stdout
	Stderr   string        // captured stderr
	ExitCode int
	Failed   bool
	ErrorMsg string // set when Failed
	Signal   marker.Signal
	Duration time.Duration
}

// Sink receives stdout chunks as they arrive.
type Sink func(chunk string)

// Runner executes agent invocations. CLIRunner is the real implementation;
// tests substitute fakes. Kill terminates the in-flight invocation and
// reports whether one was active; it never fails on an already-dead process.
type Runner interface {
	Run(ctx context.Context, prompt string, opts Options, sink Sink) (Result, error)
	Kill() bool
}
