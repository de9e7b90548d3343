// Package runstate persists the live state of the current run to
// .drover/state.json so a separate `drover status` invocation can see what
// a running loop is doing.
package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// State is the externally visible snapshot of the active (or most recent) run.
type State struct {
	PID          int       `json:"pid"`
	RunID        string    `json:"run_id"`
	Status       string    `json:"status"`
	Iteration    int       `json:"iteration"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	LastOutputAt time.Time `json:"last_output_at"`
	Dir          string    `json:"dir"`
}

const stateFileName = "state.json"

const stateDirName = ".drover"

// Load reads the run state from .drover/state.json in dir. Returns a zero
// State (not an error) if the file does not exist.
func Load(dir string) (State, error) {
	path := filepath.Join(dir, stateDirName, stateFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("runstate: read state: %w", err)
	}

	var s State
	if jsonErr := json.Unmarshal(data, &s); jsonErr != nil {
		return State{}, fmt.Errorf("runstate: parse state: %w", jsonErr)
	}
	return s, nil
}

// Save writes the run state to .drover/state.json in dir. Creates the
// .drover directory if it does not exist. Uses a write-then-rename pattern
// so concurrent readers never observe a partially-written file.
func Save(dir string, s State) error {
	stateDir := filepath.Join(dir, stateDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("runstate: create state dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("runstate: marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(stateDir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("runstate: create temp state: %w", err)
	}
	if _, writeErr := tmp.Write(data); writeErr != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("runstate: write state: %w", writeErr)
	}
	if closeErr := tmp.Close(); closeErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("runstate: close state: %w", closeErr)
	}
	path := filepath.Join(stateDir, stateFileName)
	if renameErr := os.Rename(tmp.Name(), path); renameErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("runstate: finalize state: %w", renameErr)
	}
	return nil
}

// Alive reports whether the state describes a run whose process still exists.
// A zero PID or a finished run is never alive.
func (s State) Alive() bool {
	if s.PID == 0 || !s.FinishedAt.IsZero() {
		return false
	}
	proc, err := os.FindProcess(s.PID)
	if err != nil {
		return false
	}
	// Signal 0 probes for existence without delivering anything.
	return proc.Signal(syscall.Signal(0)) == nil
}
