package store

// Conversation is a cached conversation row. Participants is the JSON array
// as received from the backend.
type Conversation struct {
	ID                 string
	Title              string
	IsGroup            bool
	Participants       string
	LastMessageAt      int64
	LastMessagePreview string
}

// Message is a cached, server-confirmed message.
type Message struct {
	ID             int64
	ConversationID string
	MsgID          string
	SenderID       string
	SenderName     string
	Content        string
	Kind           string
	FromMe         bool
	Timestamp      int64
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
