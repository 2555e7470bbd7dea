// Package chat is the client-side chat core: message normalization,
// optimistic-send reconciliation, typing presence and the engine that ties
// them to the broker session.
package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoConversation = errors.New("chat: no conversation selected")
	ErrEmptyMessage   = errors.New("chat: empty message")
)

// KindText is the default message kind.
const KindText = "TEXT"

const tempPrefix = "temp-"

// Participant is a member of a conversation.
type Participant struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Conversation as listed by the backend.
type Conversation struct {
	ID           string        `json:"id"`
	IsGroup      bool          `json:"isGroup"`
	Title        string        `json:"title"`
	Participants []Participant `json:"participants"`
}

// Participant looks up a member by id, comparing normalized ids.
func (c Conversation) Participant(userID string) (Participant, bool) {
	id := normalizeID(userID)
	for _, p := range c.Participants {
		if normalizeID(p.UserID) == id {
			return p, true
		}
	}
	return Participant{}, false
}

// Other returns the first participant that is not selfID.
func (c Conversation) Other(selfID string) (Participant, bool) {
	self := normalizeID(selfID)
	for _, p := range c.Participants {
		if normalizeID(p.UserID) != self {
			return p, true
		}
	}
	return Participant{}, false
}

// DisplayName is the title shown in conversation lists.
func (c Conversation) DisplayName(selfID string) string {
	if c.IsGroup {
		if c.Title != "" {
			return c.Title
		}
		return "Group"
	}
	if p, ok := c.Other(selfID); ok && p.Username != "" {
		return p.Username
	}
	return "Conversation"
}

// Message is one entry of a thread. Optimistic messages carry a temp- id
// until the broker echoes the confirmed copy.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	SenderName     string    `json:"senderUsername"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	Kind           string    `json:"type"`
}

// Optimistic reports whether m is a local placeholder.
func (m Message) Optimistic() bool {
	return IsTempID(m.ID)
}

// IsTempID reports whether id was generated for an optimistic send.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempPrefix)
}

// NewTempID returns temp-<unix ms>-<random>.
func NewTempID(now time.Time) string {
	r := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s%d-%s", tempPrefix, now.UnixMilli(), r[:10])
}

func normalizeID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SameUser compares ids the way the backend emits them: case-insensitive,
// ignoring surrounding whitespace.
func SameUser(a, b string) bool {
	return normalizeID(a) == normalizeID(b)
}
