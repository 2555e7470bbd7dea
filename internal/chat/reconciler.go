package chat

import (
	"slices"
	"time"
)

// DefaultMatchWindow bounds how long an optimistic send may wait for its echo.
const DefaultMatchWindow = 10 * time.Second

// Outcome describes what Apply did with an inbound message.
type Outcome int

const (
	Duplicate Outcome = iota
	Appended
	Replaced
)

type pendingSend struct {
	tempID  string
	content string
	at      time.Time
}

// Reconciler owns the ordered message list of the active conversation and
// the registry of optimistic sends awaiting confirmation. It is not safe for
// concurrent use; the Engine serializes access.
type Reconciler struct {
	conversationID string
	messages       []Message
	pending        []pendingSend
	window         time.Duration
}

// NewReconciler creates an empty reconciler. A zero window uses DefaultMatchWindow.
func NewReconciler(window time.Duration) *Reconciler {
	if window <= 0 {
		window = DefaultMatchWindow
	}
	return &Reconciler{window: window}
}

// Reset switches to conversationID, dropping messages and pending records.
func (r *Reconciler) Reset(conversationID string) {
	r.conversationID = conversationID
	r.messages = nil
	r.pending = nil
}

// ConversationID is the conversation the list belongs to.
func (r *Reconciler) ConversationID() string { return r.conversationID }

// Messages returns a copy of the ordered list.
func (r *Reconciler) Messages() []Message {
	return slices.Clone(r.messages)
}

// AddOptimistic appends a local placeholder and registers it for matching.
func (r *Reconciler) AddOptimistic(m Message, now time.Time) {
	r.messages = append(r.messages, m)
	r.pending = append(r.pending, pendingSend{tempID: m.ID, content: m.Content, at: now})
}

// Apply merges a confirmed inbound message. It returns the outcome and, for
// Replaced, the temp id that was removed.
func (r *Reconciler) Apply(m Message, selfID string, now time.Time) (Outcome, string) {
	r.prune(now)

	if r.indexOf(m.ID) >= 0 {
		return Duplicate, ""
	}

	if SameUser(m.SenderID, selfID) {
		if tempID, ok := r.match(m, now, false); ok {
			return Replaced, tempID
		}
	}
	// Second pass for echoes whose sender id does not match the local user.
	if tempID, ok := r.match(m, now, true); ok {
		return Replaced, tempID
	}

	r.messages = append(r.messages, m)
	return Appended, ""
}

// match replaces the oldest eligible optimistic entry with m.
func (r *Reconciler) match(m Message, now time.Time, sameConversation bool) (string, bool) {
	for i, p := range r.pending {
		if p.content != m.Content || now.Sub(p.at) >= r.window {
			continue
		}
		idx := r.indexOf(p.tempID)
		if idx < 0 {
			continue
		}
		if sameConversation && r.messages[idx].ConversationID != m.ConversationID {
			continue
		}
		r.messages = slices.Delete(r.messages, idx, idx+1)
		r.messages = append(r.messages, m)
		r.pending = slices.Delete(r.pending, i, i+1)
		return p.tempID, true
	}
	return "", false
}

// prune forgets records that can no longer match: expired ones and ones
// whose optimistic entry is gone.
func (r *Reconciler) prune(now time.Time) {
	r.pending = slices.DeleteFunc(r.pending, func(p pendingSend) bool {
		return now.Sub(p.at) >= r.window || r.indexOf(p.tempID) < 0
	})
}

// MergeHistory sorts a history page by timestamp ascending and places it
// before anything already in the list, skipping ids already present.
func (r *Reconciler) MergeHistory(page []Message) {
	sorted := slices.Clone(page)
	slices.SortStableFunc(sorted, func(a, b Message) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	seen := make(map[string]struct{}, len(sorted)+len(r.messages))
	merged := make([]Message, 0, len(sorted)+len(r.messages))
	for _, m := range sorted {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	for _, m := range r.messages {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	r.messages = merged
}

func (r *Reconciler) indexOf(id string) int {
	return slices.IndexFunc(r.messages, func(m Message) bool { return m.ID == id })
}
