package bus

import "time"

// Event kinds. Subscribers filter by prefix, e.g. "chat." or "transport.".
const (
	KindStatusChanged = "session.status_changed"
	KindLoggedIn      = "session.logged_in"
	KindLoggedOut     = "session.logged_out"

	KindTransportConnected    = "transport.connected"
	KindTransportDisconnected = "transport.disconnected"
	KindTransportError        = "transport.error"

	KindChatSelected      = "chat.selected"
	KindChatMessage       = "chat.message"
	KindChatConfirmed     = "chat.confirmed"
	KindChatHistory       = "chat.history"
	KindChatTyping        = "chat.typing"
	KindChatConversations = "chat.conversations"

	KindSyncMessage = "sync.message_upserted"
	KindSyncHistory = "sync.history_batch"

	KindNotice = "notice"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Notice is a user-visible notification (the toast of a UI).
type Notice struct {
	Level   string
	Message string
}
