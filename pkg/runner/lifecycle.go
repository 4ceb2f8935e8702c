package runner

import "fmt"

// State is the registration state of one runner identity.
type State int

const (
	// Unregistered means no cached token exists for the identity.
	Unregistered State = iota
	// Registering means a registration call is in flight.
	Registering
	// Registered means a runner token is cached for the identity.
	Registered
)

func (s State) String() string {
	switch s {
	case Unregistered:
		return "UNREGISTERED"
	case Registering:
		return "REGISTERING"
	case Registered:
		return "REGISTERED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// TransitionFunc observes lifecycle transitions.
type TransitionFunc func(identity string, from, to State)

// lifecycle tracks one identity through a single Assemble or RegisterToFile call.
type lifecycle struct {
	identity string
	state    State
	observe  TransitionFunc
}

func newLifecycle(identity string, observe TransitionFunc) *lifecycle {
	return &lifecycle{identity: identity, state: Unregistered, observe: observe}
}

// transition moves the identity from one state to another. The expected prior
// state is passed explicitly so misuse surfaces as an error.
func (l *lifecycle) transition(from, to State) error {
	if l.state != from {
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", l.identity, from, l.state)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", l.identity, from, to)
	}
	l.state = to
	if l.observe != nil {
		l.observe(l.identity, from, to)
	}
	return nil
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case Unregistered:
		// A cache hit goes straight to Registered.
		return to == Registering || to == Registered
	case Registering:
		return to == Registered || to == Unregistered
	default:
		return false
	}
}
