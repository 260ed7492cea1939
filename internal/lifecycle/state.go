package lifecycle

// State of the device lifecycle.
type State int

// Lifecycle states.
const (
	StateDetached State = iota
	StateAttached
	StatePermissionRequested
	StatePermissionGranted
	StateOpening
	StateOpen
	StateStreaming
	StateClosed
	StateError
)

var stateNames = [...]string{
	StateDetached:            "detached",
	StateAttached:            "attached",
	StatePermissionRequested: "permission_requested",
	StatePermissionGranted:   "permission_granted",
	StateOpening:             "opening",
	StateOpen:                "open",
	StateStreaming:           "streaming",
	StateClosed:              "closed",
	StateError:               "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// States returns every state in declaration order.
func States() []State {
	states := make([]State, len(stateNames))
	for i := range states {
		states[i] = State(i)
	}
	return states
}

// idle reports whether a new device may take over.
func (s State) idle() bool {
	return s == StateDetached || s == StateClosed
}
