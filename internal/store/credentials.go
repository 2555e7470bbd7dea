package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/faeterjconnect/connect/internal/auth"
)

// Credentials adapts DB to auth.CredentialStore. A single row holds the
// current login.
type Credentials struct {
	DB *DB
}

var _ auth.CredentialStore = Credentials{}

// LoadCredentials returns the stored login, or nil when there is none.
func (c Credentials) LoadCredentials() (*auth.Credentials, error) {
	var userJSON, token string
	err := c.DB.QueryRow(`SELECT user_json, token FROM credentials WHERE slot = 1`).Scan(&userJSON, &token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var u auth.User
	if err := json.Unmarshal([]byte(userJSON), &u); err != nil {
		return nil, fmt.Errorf("decode stored user: %w", err)
	}
	return &auth.Credentials{User: u, Token: token}, nil
}

// SaveCredentials replaces the stored login.
func (c Credentials) SaveCredentials(cr auth.Credentials) error {
	userJSON, err := json.Marshal(cr.User)
	if err != nil {
		return err
	}
	_, err = c.DB.Exec(`
		INSERT INTO credentials (slot, user_json, token, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			user_json = excluded.user_json,
			token = excluded.token,
			updated_at = excluded.updated_at`,
		string(userJSON), cr.Token, time.Now().UnixMilli())
	return err
}

// ClearCredentials removes the stored login.
func (c Credentials) ClearCredentials() error {
	_, err := c.DB.Exec(`DELETE FROM credentials`)
	return err
}
