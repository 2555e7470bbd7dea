package chat

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Store is the in-memory conversation list.
type Store struct {
	mu            sync.RWMutex
	conversations []Conversation
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Replace swaps in a freshly fetched list.
func (s *Store) Replace(list []Conversation) {
	s.mu.Lock()
	s.conversations = slices.Clone(list)
	s.mu.Unlock()
}

// Prepend adds c at the top unless a conversation with its id exists, in
// which case the stored entry is refreshed in place. It reports whether c
// was new.
func (s *Store) Prepend(c Conversation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(c.ID); i >= 0 {
		s.conversations[i] = c
		return false
	}
	s.conversations = append([]Conversation{c}, s.conversations...)
	return true
}

// Get returns the conversation with id.
func (s *Store) Get(id string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.conversations[i], true
	}
	return Conversation{}, false
}

// List returns a copy of the conversations in display order.
func (s *Store) List() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.conversations)
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.conversations, func(c Conversation) bool { return c.ID == id })
}

// TypingHint renders the header line for the users currently typing in c.
func TypingHint(c Conversation, userIDs []string) string {
	if len(userIDs) == 0 {
		return ""
	}
	names := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		name := "user"
		if p, ok := c.Participant(id); ok && p.Username != "" {
			name = p.Username
		}
		names = append(names, name)
	}
	switch {
	case len(names) == 1:
		return fmt.Sprintf("%s is typing…", names[0])
	case len(names) == 2:
		return fmt.Sprintf("%s are typing…", strings.Join(names, ", "))
	default:
		return fmt.Sprintf("%s and others are typing…", strings.Join(names[:2], ", "))
	}
}
