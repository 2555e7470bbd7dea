package status

import (
	"testing"

	"github.com/faeterjconnect/connect/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, LoggedOut},
		{Booting, Connecting},
		{Booting, Error},
		{LoggedOut, Connecting},
		{Connecting, Connected},
		{Connected, Reconnecting},
		{Connected, LoggedOut},
		{Reconnecting, Connected},
		{Reconnecting, Connecting},
		{Error, LoggedOut},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Connected); err == nil {
		t.Error("Transition(BOOTING -> CONNECTED) should fail")
	}
	if m.Current() != Booting {
		t.Errorf("state = %s, want BOOTING after rejected transition", m.Current())
	}
}

func TestLoggedOutCannotSkipConnecting(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, LoggedOut)
	if err := m.Transition(Connected); err == nil {
		t.Fatal("Transition(LOGGED_OUT -> CONNECTED) should fail")
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(LoggedOut); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindStatusChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindStatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Booting || change.To != LoggedOut {
		t.Errorf("change = %v -> %v, want BOOTING -> LOGGED_OUT", change.From, change.To)
	}
}

func TestSameStateIsSilent(t *testing.T) {
	b := bus.New()
	m := NewMachine(b)
	walkTo(t, m, Connected)

	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	if err := m.Transition(Connected); err != nil {
		t.Fatalf("Transition(CONNECTED -> CONNECTED) error = %v", err)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected event %v", evt)
	default:
	}
}

// TestReconnectCycle covers a broker drop and recovery:
// CONNECTED → RECONNECTING → CONNECTING → CONNECTED
func TestReconnectCycle(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Connected)

	for _, s := range []State{Reconnecting, Connecting, Connected} {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
}

// TestForcedLogout covers a 401 while reconnecting.
func TestForcedLogout(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Reconnecting)

	if err := m.Transition(LoggedOut); err != nil {
		t.Fatalf("RECONNECTING -> LOGGED_OUT: %v", err)
	}
}

func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:      {},
		LoggedOut:    {LoggedOut},
		Connecting:   {Connecting},
		Connected:    {Connecting, Connected},
		Reconnecting: {Connecting, Connected, Reconnecting},
		Error:        {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
