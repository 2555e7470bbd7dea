package store

import (
	"database/sql"
	"errors"
	"time"
)

// UpsertConversation inserts or updates a conversation. An empty preview or
// zero last-message time keeps the stored values.
func (db *DB) UpsertConversation(c *Conversation) error {
	now := time.Now().UnixMilli()
	participants := c.Participants
	if participants == "" {
		participants = "[]"
	}
	_, err := db.Exec(`
		INSERT INTO conversations (id, title, is_group, participants, last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			is_group = excluded.is_group,
			participants = excluded.participants,
			last_message_at = MAX(conversations.last_message_at, excluded.last_message_at),
			last_message_preview = CASE
				WHEN excluded.last_message_at >= conversations.last_message_at AND excluded.last_message_preview != ''
				THEN excluded.last_message_preview
				ELSE conversations.last_message_preview END,
			updated_at = excluded.updated_at`,
		c.ID, c.Title, c.IsGroup, participants, c.LastMessageAt, c.LastMessagePreview, now)
	return err
}

// TouchConversation records a newer last message on an existing conversation.
func (db *DB) TouchConversation(id string, at int64, preview string) error {
	_, err := db.Exec(`
		UPDATE conversations
		SET last_message_at = ?, last_message_preview = ?, updated_at = ?
		WHERE id = ? AND last_message_at <= ?`,
		at, preview, time.Now().UnixMilli(), id, at)
	return err
}

// ListConversations returns conversations, most recent activity first.
func (db *DB) ListConversations(limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, title, is_group, participants, last_message_at, last_message_preview
		FROM conversations
		ORDER BY last_message_at DESC, updated_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.IsGroup, &c.Participants, &c.LastMessageAt, &c.LastMessagePreview); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// GetConversation returns a single conversation, or nil if unknown.
func (db *DB) GetConversation(id string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT id, title, is_group, participants, last_message_at, last_message_preview
		FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.Title, &c.IsGroup, &c.Participants, &c.LastMessageAt, &c.LastMessagePreview)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SetSyncState stores a small key/value marker.
func (db *DB) SetSyncState(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// SyncState reads a marker; missing keys yield "".
func (db *DB) SyncState(key string) (string, error) {
	var v string
	err := db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}
