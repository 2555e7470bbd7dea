package rpc

import (
	"encoding/json"

	"github.com/faeterjconnect/connect/internal/backend"
)

// EventEnvelope wraps a bus event for WatchEvents subscribers.
type EventEnvelope struct {
	EventID          string          `json:"eventId"`
	Session          string          `json:"session"`
	OccurredAtUnixMs int64           `json:"occurredAtUnixMs"`
	Kind             string          `json:"kind"`
	PayloadVersion   int             `json:"payloadVersion"`
	Payload          json.RawMessage `json:"payload,omitempty"`
}

type GetStatusRequest struct{}

type GetStatusResponse struct {
	Session           string `json:"session"`
	Status            string `json:"status"`
	UptimeMs          int64  `json:"uptimeMs"`
	Connected         bool   `json:"connected"`
	UserID            string `json:"userId,omitempty"`
	Username          string `json:"username,omitempty"`
	Email             string `json:"email,omitempty"`
	Role              string `json:"role,omitempty"`
	TokenExpiresAtMs  int64  `json:"tokenExpiresAtMs,omitempty"`
	ConversationCount int    `json:"conversationCount"`
	ActiveID          string `json:"activeConversationId,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Turno    string `json:"turno"`
}

type LoginResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// UpdateProfileRequest changes the signed-in profile. Empty fields are kept.
type UpdateProfileRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	Turno    string `json:"turno,omitempty"`
}

type LogoutRequest struct{}

type LogoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Participant is a conversation member.
type Participant struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Conversation is a conversation with its resolved display name.
type Conversation struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	DisplayName  string        `json:"displayName"`
	IsGroup      bool          `json:"isGroup"`
	Participants []Participant `json:"participants"`
}

// Message is one thread entry. Optimistic entries carry a temp- id.
type Message struct {
	ID              string `json:"id"`
	ConversationID  string `json:"conversationId"`
	SenderID        string `json:"senderId"`
	SenderName      string `json:"senderName"`
	Content         string `json:"content"`
	Kind            string `json:"kind"`
	TimestampUnixMs int64  `json:"timestampUnixMs"`
	FromMe          bool   `json:"fromMe"`
	Optimistic      bool   `json:"optimistic"`
}

type ListConversationsRequest struct {
	// Refresh fetches from the backend instead of returning the in-memory list.
	Refresh bool `json:"refresh"`
}

type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	// SyncedAtMs is when the cached list was last refreshed from the backend.
	SyncedAtMs int64 `json:"syncedAtMs,omitempty"`
}

type OpenConversationRequest struct {
	OtherUserID string `json:"otherUserId"`
}

type OpenConversationResponse struct {
	Conversation Conversation `json:"conversation"`
	Created      bool         `json:"created"`
}

type SelectRequest struct {
	ConversationID string `json:"conversationId"`
}

type GetThreadRequest struct{}

type GetThreadResponse struct {
	ConversationID string    `json:"conversationId"`
	DisplayName    string    `json:"displayName"`
	Messages       []Message `json:"messages"`
	TypingHint     string    `json:"typingHint,omitempty"`
	Connected      bool      `json:"connected"`
	// Cached is set when Messages come from the local cache because the
	// backend could not be reached.
	Cached bool `json:"cached,omitempty"`
}

// ListMessagesRequest pages the cached messages of one conversation, newest
// first, strictly before BeforeUnixMs.
type ListMessagesRequest struct {
	ConversationID string `json:"conversationId"`
	BeforeUnixMs   int64  `json:"beforeUnixMs,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

// ListMessagesResponse returns the page oldest first.
type ListMessagesResponse struct {
	ConversationID string    `json:"conversationId"`
	DisplayName    string    `json:"displayName,omitempty"`
	Messages       []Message `json:"messages"`
	HasMore        bool      `json:"hasMore"`
	SyncedAtMs     int64     `json:"syncedAtMs,omitempty"`
}

// SendTextRequest targets ConversationID when set, the active conversation
// otherwise. It never changes the selection.
type SendTextRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	Text           string `json:"text"`
}

type SendTextResponse struct {
	Message Message `json:"message"`
}

type TypingRequest struct{}

type TypingResponse struct {
	Sent bool `json:"sent"`
}

type SearchMessagesRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversationId,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

type SearchResult struct {
	Message Message `json:"message"`
	Snippet string  `json:"snippet"`
}

type SearchMessagesResponse struct {
	Results []SearchResult `json:"results"`
}

type ListUsersRequest struct {
	Page int    `json:"page"`
	Size int    `json:"size"`
	Role string `json:"role,omitempty"`
}

type ListUsersResponse struct {
	Users      []Participant `json:"users"`
	TotalPages int           `json:"totalPages"`
	Last       bool          `json:"last"`
}

// WatchEventsRequest selects event kinds by prefix; empty means all.
type WatchEventsRequest struct {
	Prefixes []string `json:"prefixes,omitempty"`
}

type ListPostsRequest struct {
	Limit    int    `json:"limit,omitempty"`
	Cursor   string `json:"cursor,omitempty"`
	AuthorID string `json:"authorId,omitempty"`
}

type ListPostsResponse struct {
	Posts      []backend.Post `json:"posts"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

type CreatePostRequest struct {
	Content  string `json:"content"`
	RolePost string `json:"rolePost,omitempty"`
}

type PostResponse struct {
	Post backend.Post `json:"post"`
}

type PostRef struct {
	PostID string `json:"postId"`
}

type LikeResponse struct {
	PostID    string `json:"postId"`
	LikeCount int64  `json:"likeCount"`
	LikedByMe bool   `json:"likedByMe"`
}

type Empty struct{}

type ListCommentsRequest struct {
	PostID string `json:"postId"`
	Page   int    `json:"page"`
	Size   int    `json:"size,omitempty"`
}

type ListCommentsResponse struct {
	Comments []backend.Comment `json:"comments"`
	HasNext  bool              `json:"hasNext"`
}

type CreateCommentRequest struct {
	PostID string `json:"postId"`
	Text   string `json:"text"`
}

type CommentResponse struct {
	Comment backend.Comment `json:"comment"`
}

type CommentRef struct {
	CommentID string `json:"commentId"`
}

type NearbyVehiclesRequest struct{}

// Vehicle is one nearby bus with its estimate.
type Vehicle struct {
	Ordem      string  `json:"ordem"`
	Linha      string  `json:"linha"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	SpeedKmh   float64 `json:"speedKmh"`
	DistM      float64 `json:"distM"`
	ETALabel   string  `json:"etaLabel"`
	DistLabel  string  `json:"distLabel"`
	LineColor  string  `json:"lineColor"`
	ETAMinutes float64 `json:"etaMinutes"`
}

// LineSummary is the nearest estimate of one line.
type LineSummary struct {
	Linha    string `json:"linha"`
	ETALabel string `json:"etaLabel"`
	Vehicles int    `json:"vehicles"`
	Color    string `json:"color"`
}

// NearbyVehiclesResponse is one poll. On WatchVehicles a failed poll is sent
// with Error set and the stream continues.
type NearbyVehiclesResponse struct {
	Vehicles  []Vehicle     `json:"vehicles"`
	Lines     []LineSummary `json:"lines"`
	UpdatedAt int64         `json:"updatedAt,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// MessageEventPayload is the payload of chat.message and chat.confirmed events.
type MessageEventPayload struct {
	Message    Message `json:"message"`
	ReplacedID string  `json:"replacedId,omitempty"`
}

// TypingEventPayload is the payload of chat.typing events.
type TypingEventPayload struct {
	ConversationID string   `json:"conversationId"`
	Users          []string `json:"users"`
	Hint           string   `json:"hint"`
}

// NoticePayload is the payload of notice events.
type NoticePayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// StatusPayload is the payload of session.status_changed events.
type StatusPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}
