package batch

import "time"

// State is the lifecycle of the job held by an Executor.
type State int

const (
	StateIdle State = iota
	StatePending
	StateConfirming
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateConfirming:
		return "confirming"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// accepting reports whether a new job may start from s.
func (s State) accepting() bool {
	return s == StateIdle || s == StateSuccess || s == StateError
}

// InFlight reports whether a job is being submitted or confirmed.
func (s State) InFlight() bool { return s == StatePending || s == StateConfirming }

// Transition is emitted to subscribers on every state change.
type Transition struct {
	Executor string
	From     State
	To       State
	Kind     Kind
	At       time.Time
}
