package loop

// Status is the control loop's run-level state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
	StatusDecide     Status = "decide"
	StatusMaxReached Status = "max_reached"
	StatusCancelled  Status = "cancelled"
	StatusError      Status = "error"
)

// Terminal reports whether no further iterations will execute for this run.
// Blocked and decide are not terminal: they behave as a paused state that an
// external resume advances.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusMaxReached, StatusCancelled, StatusError:
		return true
	}
	return false
}

// Intervention reports whether the status is waiting on a human: the agent
// raised a blocked or decide marker and the run is parked until resumed.
func (s Status) Intervention() bool {
	return s == StatusBlocked || s == StatusDecide
}
