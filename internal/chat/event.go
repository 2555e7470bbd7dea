package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// TypingSignal is the inbound "user is composing" shape.
type TypingSignal struct {
	ConversationID string
	UserID         string
}

// Inbound is a decoded broker event: exactly one of Typing or Raw is set.
type Inbound struct {
	Typing *TypingSignal
	Raw    map[string]any
}

// DecodeEvent parses a frame body. A body carrying both typingUserId and
// conversationId is a typing signal; anything else is treated as a message.
func DecodeEvent(body []byte) (Inbound, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return Inbound{}, fmt.Errorf("decode event: %w", err)
	}
	if raw == nil {
		return Inbound{}, fmt.Errorf("decode event: not an object")
	}
	typist, hasTypist := raw["typingUserId"]
	conv, hasConv := raw["conversationId"]
	if hasTypist && hasConv {
		return Inbound{Typing: &TypingSignal{ConversationID: stringOf(conv), UserID: stringOf(typist)}}, nil
	}
	return Inbound{Raw: raw}, nil
}

// Resolver maps a sender to a display name.
type Resolver struct {
	Conversation Conversation
	SelfID       string
	SelfName     string
}

// Name resolves senderID against the participants, then the local user, then
// a generic placeholder.
func (r Resolver) Name(senderID string) string {
	if p, ok := r.Conversation.Participant(senderID); ok && p.Username != "" {
		return p.Username
	}
	if SameUser(senderID, r.SelfID) {
		if r.SelfName != "" {
			return r.SelfName
		}
		return "you"
	}
	return "user"
}

// ToMessage normalizes a raw message object. ok is false when the event has
// no content and must be skipped.
func ToMessage(raw map[string]any, r Resolver, now time.Time) (Message, bool) {
	content := stringOf(raw["content"])
	if content == "" {
		return Message{}, false
	}

	id := stringOf(raw["id"])
	if id == "" {
		id = uuid.NewString()
	}

	senderID := stringOf(raw["senderId"])
	if _, present := raw["senderId"]; !present || raw["senderId"] == nil {
		if sender, ok := raw["sender"].(map[string]any); ok {
			senderID = stringOf(sender["userId"])
		}
	}

	conversationID := stringOf(raw["conversationId"])
	if conversationID == "" {
		conversationID = r.Conversation.ID
	}

	kind := stringOf(raw["type"])
	if kind == "" {
		kind = KindText
	}

	return Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     r.Name(senderID),
		Content:        content,
		Timestamp:      NormalizeTimestamp(firstPresent(raw, "sentAt", "createdAt", "timestamp", "created_at"), now),
		Kind:           kind,
	}, true
}

// DecodeMessages normalizes a page of raw history entries, skipping the
// ones that fail to decode or carry no content.
func DecodeMessages(items []json.RawMessage, r Resolver, now time.Time) []Message {
	out := make([]Message, 0, len(items))
	for _, item := range items {
		in, err := DecodeEvent(item)
		if err != nil || in.Raw == nil {
			continue
		}
		if m, ok := ToMessage(in.Raw, r, now); ok {
			out = append(out, m)
		}
	}
	return out
}

func firstPresent(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
