// Package sync persists what the chat engine confirms into the session cache.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/faeterjconnect/connect/internal/bus"
	"github.com/faeterjconnect/connect/internal/chat"
	"github.com/faeterjconnect/connect/internal/store"
)

const previewLen = 100

const (
	conversationsSyncKey = "conversations.synced_at"
	historySyncPrefix    = "history.synced_at:"
)

// Engine handles idempotent ingestion of chat events into the store.
// It subscribes to "chat." events on the bus. Optimistic placeholders are
// never persisted; only server-confirmed messages reach the cache.
type Engine struct {
	db     *store.DB
	bus    *bus.Bus
	selfID func() string
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a new sync engine. selfID reports the signed-in user and
// may be nil.
func NewEngine(db *store.DB, b *bus.Bus, selfID func() string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if selfID == nil {
		selfID = func() string { return "" }
	}
	return &Engine{
		db:     db,
		bus:    b,
		selfID: selfID,
		logger: logger,
	}
}

// Start subscribes to chat events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.Subscribe("chat.", 256)

	go func() {
		defer close(e.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the ingestion loop to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindChatMessage, bus.KindChatConfirmed:
		me, ok := evt.Payload.(chat.MessageEvent)
		if !ok || me.Message.Optimistic() {
			return
		}
		if err := e.IngestMessage(me.Message); err != nil {
			e.logger.Error("failed to ingest message", zap.Error(err), zap.String("msg_id", me.Message.ID))
		}
	case bus.KindChatHistory:
		he, ok := evt.Payload.(chat.HistoryEvent)
		if !ok {
			return
		}
		if err := e.IngestHistoryBatch(he.Messages); err != nil {
			e.logger.Error("failed to ingest history batch", zap.Error(err), zap.Int("count", len(he.Messages)))
		} else {
			e.markSynced(historySyncPrefix + he.ConversationID)
			e.logger.Debug("history batch ingested", zap.String("conversation_id", he.ConversationID), zap.Int("messages", len(he.Messages)))
		}
	case bus.KindChatConversations:
		list, ok := evt.Payload.([]chat.Conversation)
		if !ok {
			return
		}
		if err := e.IngestConversations(list); err != nil {
			e.logger.Error("failed to ingest conversations", zap.Error(err), zap.Int("count", len(list)))
		}
	}
}

// IngestMessage processes a single confirmed message into the store (idempotent).
func (e *Engine) IngestMessage(m chat.Message) error {
	if m.Optimistic() {
		return nil
	}
	sm := e.toStore(m)
	if err := e.db.TouchConversation(sm.ConversationID, sm.Timestamp, truncate(sm.Content, previewLen)); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if err := e.db.UpsertMessage(&sm); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}

	e.bus.Emit(bus.KindSyncMessage, map[string]string{
		"conversation_id": sm.ConversationID,
		"msg_id":          sm.MsgID,
	})
	return nil
}

// IngestHistoryBatch processes a page of history in a transaction.
// Placeholders in the batch are skipped.
func (e *Engine) IngestHistoryBatch(msgs []chat.Message) error {
	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	count := 0
	for _, m := range msgs {
		if m.Optimistic() {
			continue
		}
		sm := e.toStore(m)
		if _, err := tx.Exec(`
			INSERT INTO messages (conversation_id, msg_id, sender_id, sender_name, content, kind, from_me, timestamp, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(conversation_id, msg_id) DO UPDATE SET
				sender_name = excluded.sender_name,
				content = excluded.content,
				kind = excluded.kind`,
			sm.ConversationID, sm.MsgID, sm.SenderID, sm.SenderName, sm.Content, sm.Kind, sm.FromMe, sm.Timestamp, now); err != nil {
			return fmt.Errorf("upsert message in batch: %w", err)
		}
		if _, err := tx.Exec(`
			UPDATE conversations
			SET last_message_at = ?, last_message_preview = ?, updated_at = ?
			WHERE id = ? AND last_message_at <= ?`,
			sm.Timestamp, truncate(sm.Content, previewLen), now, sm.ConversationID, sm.Timestamp); err != nil {
			return fmt.Errorf("touch conversation in batch: %w", err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	e.bus.Emit(bus.KindSyncHistory, map[string]int{"messages_count": count})
	return nil
}

// IngestConversations caches the conversation list. Participants are kept as
// JSON so a cached list can be shown before the backend answers.
func (e *Engine) IngestConversations(list []chat.Conversation) error {
	for _, c := range list {
		parts, err := json.Marshal(c.Participants)
		if err != nil {
			return fmt.Errorf("encode participants: %w", err)
		}
		if err := e.db.UpsertConversation(&store.Conversation{
			ID:           c.ID,
			Title:        c.Title,
			IsGroup:      c.IsGroup,
			Participants: string(parts),
		}); err != nil {
			return fmt.Errorf("upsert conversation %s: %w", c.ID, err)
		}
	}
	e.markSynced(conversationsSyncKey)
	return nil
}

func (e *Engine) markSynced(key string) {
	if err := e.db.SetSyncState(key, strconv.FormatInt(time.Now().UnixMilli(), 10)); err != nil {
		e.logger.Warn("failed to record sync time", zap.String("key", key), zap.Error(err))
	}
}

// LastSynced reports when the conversation list (empty conversationID) or a
// conversation's history was last cached from the backend. It is zero when
// that never happened.
func LastSynced(db *store.DB, conversationID string) (time.Time, error) {
	key := conversationsSyncKey
	if conversationID != "" {
		key = historySyncPrefix + conversationID
	}
	v, err := db.SyncState(key)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("sync marker %s: %w", key, err)
	}
	return time.UnixMilli(ms), nil
}

// CachedConversations returns the cached list in chat form, most recent first.
func CachedConversations(db *store.DB, limit int) ([]chat.Conversation, error) {
	rows, err := db.ListConversations(limit, 0)
	if err != nil {
		return nil, err
	}
	out := make([]chat.Conversation, 0, len(rows))
	for _, r := range rows {
		c, err := fromStore(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// CachedConversation returns one cached conversation; ok is false when the
// id was never cached.
func CachedConversation(db *store.DB, id string) (c chat.Conversation, ok bool, err error) {
	row, err := db.GetConversation(id)
	if err != nil || row == nil {
		return chat.Conversation{}, false, err
	}
	c, err = fromStore(*row)
	if err != nil {
		return chat.Conversation{}, false, err
	}
	return c, true, nil
}

func fromStore(r store.Conversation) (chat.Conversation, error) {
	c := chat.Conversation{ID: r.ID, Title: r.Title, IsGroup: r.IsGroup}
	if r.Participants != "" {
		if err := json.Unmarshal([]byte(r.Participants), &c.Participants); err != nil {
			return chat.Conversation{}, fmt.Errorf("decode participants of %s: %w", r.ID, err)
		}
	}
	return c, nil
}

func (e *Engine) toStore(m chat.Message) store.Message {
	return store.Message{
		ConversationID: m.ConversationID,
		MsgID:          m.ID,
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		Content:        m.Content,
		Kind:           m.Kind,
		FromMe:         m.SenderID != "" && chat.SameUser(m.SenderID, e.selfID()),
		Timestamp:      m.Timestamp.UnixMilli(),
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}
