package chat

import (
	"slices"
	"sync"
	"time"
)

// DefaultTypingWindow is how long a typing signal keeps a user "typing".
const DefaultTypingWindow = 2 * time.Second

type typingEntry struct {
	timer *time.Timer
	seq   uint64
}

// TypingTracker keeps the set of remote users currently composing in the
// active conversation. Each user has one cancellable countdown; Reset bumps
// a generation so countdowns armed for a previous conversation are inert.
type TypingTracker struct {
	mu       sync.Mutex
	window   time.Duration
	selfID   string
	entries  map[string]*typingEntry
	order    []string
	gen      uint64
	seq      uint64
	onExpire func()
}

// NewTypingTracker creates a tracker. onExpire, if set, runs (without the
// tracker lock held) after a countdown removes a user.
func NewTypingTracker(window time.Duration, onExpire func()) *TypingTracker {
	if window <= 0 {
		window = DefaultTypingWindow
	}
	return &TypingTracker{window: window, entries: make(map[string]*typingEntry), onExpire: onExpire}
}

// SetSelf sets the local user, whose signals are ignored.
func (t *TypingTracker) SetSelf(userID string) {
	t.mu.Lock()
	t.selfID = userID
	t.mu.Unlock()
}

// Signal marks userID as typing and restarts its countdown. It returns false
// for the local user.
func (t *TypingTracker) Signal(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if userID == "" || SameUser(userID, t.selfID) {
		return false
	}

	if e, ok := t.entries[userID]; ok {
		e.timer.Stop()
	} else {
		t.order = append(t.order, userID)
	}
	t.seq++
	gen, seq := t.gen, t.seq
	e := &typingEntry{seq: seq}
	e.timer = time.AfterFunc(t.window, func() { t.expire(userID, gen, seq) })
	t.entries[userID] = e
	return true
}

func (t *TypingTracker) expire(userID string, gen, seq uint64) {
	t.mu.Lock()
	e, ok := t.entries[userID]
	if t.gen != gen || !ok || e.seq != seq {
		t.mu.Unlock()
		return
	}
	t.removeLocked(userID)
	cb := t.onExpire
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Remove drops userID immediately, e.g. when their message arrives.
func (t *TypingTracker) Remove(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[userID]
	if !ok {
		return false
	}
	e.timer.Stop()
	t.removeLocked(userID)
	return true
}

func (t *TypingTracker) removeLocked(userID string) {
	delete(t.entries, userID)
	t.order = slices.DeleteFunc(t.order, func(id string) bool { return id == userID })
}

// Reset clears the set and cancels every countdown.
func (t *TypingTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	for _, e := range t.entries {
		e.timer.Stop()
	}
	t.entries = make(map[string]*typingEntry)
	t.order = nil
}

// Users returns typing users in the order they started.
func (t *TypingTracker) Users() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.order)
}

// EmitLimiter allows at most one outbound typing signal per window.
type EmitLimiter struct {
	mu     sync.Mutex
	window time.Duration
	last   time.Time
}

// NewEmitLimiter creates a limiter. A zero window uses DefaultTypingWindow.
func NewEmitLimiter(window time.Duration) *EmitLimiter {
	if window <= 0 {
		window = DefaultTypingWindow
	}
	return &EmitLimiter{window: window}
}

// Allow reports whether a signal may be sent at now, recording it if so.
func (l *EmitLimiter) Allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.last.IsZero() && now.Sub(l.last) <= l.window {
		return false
	}
	l.last = now
	return true
}
