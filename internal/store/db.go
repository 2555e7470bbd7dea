// Package store is the per-session SQLite cache: conversations, confirmed
// messages with full-text search, and the persisted login.
package store

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a SQLite database connection for the session's connect.db.
type DB struct {
	*sql.DB
	search bool
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
// The file holds the bearer token, so it is created owner-only.
func Open(path string) (*DB, error) {
	if f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600); err == nil {
		_ = f.Close()
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: db}, nil
}
