package thread

// State is the lifecycle position of a controller. Interruption is tracked
// separately and may overlay Running or Suspended.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateSuspended
	StateExited
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateExited:
		return "exited"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
