package process

import "time"

// State represents the current state of a process.
type State string

// Process states.
const (
	StateIdle     State = "idle"     // Not started
	StateRunning  State = "running"  // Active
	StateStopping State = "stopping" // Stop requested
	StateExited   State = "exited"   // Exited on its own or after Stop
	StateError    State = "error"    // Failed to start
)

// Info describes a process.
type Info struct {
	ID        string
	State     State
	PID       int
	StartedAt time.Time
	ExitCode  int
	LastError error
}
