package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/faeterjconnect/connect/internal/bus"
)

// State represents the daemon's session/connection state.
type State string

const (
	Booting      State = "BOOTING"
	LoggedOut    State = "LOGGED_OUT"
	Connecting   State = "CONNECTING"
	Connected    State = "CONNECTED"
	Reconnecting State = "RECONNECTING"
	Error        State = "ERROR"
)

var validTransitions = map[State][]State{
	Booting:      {LoggedOut, Connecting, Error},
	LoggedOut:    {Connecting, Error},
	Connecting:   {Connected, Reconnecting, LoggedOut, Error},
	Connected:    {Reconnecting, LoggedOut, Error},
	Reconnecting: {Connecting, Connected, LoggedOut, Error},
	Error:        {Booting, LoggedOut, Connecting},
}

// Machine tracks and enforces state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Moving to the current state is a
// no-op without an event.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.bus.Emit(bus.KindStatusChanged, StatusChange{From: from, To: to})
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
