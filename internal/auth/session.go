// Package auth holds the authenticated session of a daemon: the bearer token,
// the signed-in user, and the teardown hooks that run on logout.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/faeterjconnect/connect/internal/bus"
)

var (
	ErrInvalidUserID    = errors.New("auth: user id is not a UUID")
	ErrMissingToken     = errors.New("auth: token missing")
	ErrNotAuthenticated = errors.New("auth: not authenticated")
)

// User is the signed-in account.
type User struct {
	UserID          string `json:"userId"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Role            string `json:"roleEnum"`
	Turno           string `json:"turnoEnum,omitempty"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}

// Credentials pair a token with its user.
type Credentials struct {
	User  User
	Token string
}

// CredentialStore persists credentials between daemon runs.
type CredentialStore interface {
	LoadCredentials() (*Credentials, error)
	SaveCredentials(Credentials) error
	ClearCredentials() error
}

// Session is the single owner of the current credentials. It is passed
// explicitly to the components that need a token instead of being read from
// global state.
type Session struct {
	mu     sync.RWMutex
	creds  *Credentials
	hooks  []func()
	store  CredentialStore
	bus    *bus.Bus
	logger *zap.Logger
}

// NewSession creates an empty session. store may be nil.
func NewSession(store CredentialStore, b *bus.Bus, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{store: store, bus: b, logger: logger}
}

// ValidateUserID accepts canonical RFC 4122 UUIDs of versions 1 through 5.
func ValidateUserID(id string) error {
	if len(id) != 36 {
		return fmt.Errorf("%w: %q", ErrInvalidUserID, id)
	}
	u, err := uuid.Parse(id)
	if err != nil || u.Variant() != uuid.RFC4122 || u.Version() < 1 || u.Version() > 5 {
		return fmt.Errorf("%w: %q", ErrInvalidUserID, id)
	}
	return nil
}

// Restore loads persisted credentials. Invalid stored credentials are cleared
// rather than restored.
func (s *Session) Restore() (bool, error) {
	if s.store == nil {
		return false, nil
	}
	c, err := s.store.LoadCredentials()
	if err != nil {
		return false, fmt.Errorf("load credentials: %w", err)
	}
	if c == nil {
		return false, nil
	}
	if err := validate(*c); err != nil {
		s.logger.Warn("discarding stored credentials", zap.Error(err))
		return false, s.store.ClearCredentials()
	}
	if exp, ok := expiry(c.Token); ok && time.Now().After(exp) {
		s.logger.Info("stored token expired", zap.Time("expired_at", exp))
		return false, s.store.ClearCredentials()
	}

	s.mu.Lock()
	s.creds = c
	s.mu.Unlock()
	return true, nil
}

// Set installs fresh credentials after login or registration.
func (s *Session) Set(c Credentials) error {
	if err := validate(c); err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.SaveCredentials(c); err != nil {
			return fmt.Errorf("save credentials: %w", err)
		}
	}
	s.mu.Lock()
	s.creds = &c
	s.mu.Unlock()

	s.logger.Info("logged in", zap.String("user_id", c.User.UserID))
	s.bus.Emit(bus.KindLoggedIn, c.User)
	return nil
}

// Repair merges a fresher user profile (e.g. from /api/me) into the session.
// Empty fields keep their previous values.
func (s *Session) Repair(u User) error {
	if err := ValidateUserID(u.UserID); err != nil {
		return err
	}
	s.mu.Lock()
	if s.creds == nil {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	prev := s.creds.User
	next := User{
		UserID:          u.UserID,
		Username:        firstNonEmpty(u.Username, prev.Username),
		Email:           firstNonEmpty(u.Email, prev.Email),
		Role:            firstNonEmpty(u.Role, prev.Role),
		Turno:           firstNonEmpty(u.Turno, prev.Turno),
		ProfileImageURL: firstNonEmpty(u.ProfileImageURL, prev.ProfileImageURL),
	}
	s.creds.User = next
	c := *s.creds
	s.mu.Unlock()

	if s.store != nil {
		return s.store.SaveCredentials(c)
	}
	return nil
}

// Token returns the bearer token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return ""
	}
	return s.creds.Token
}

// User returns the signed-in user.
func (s *Session) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return User{}, false
	}
	return s.creds.User, true
}

// Authenticated reports whether credentials are present.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Expiry returns the token's exp claim, if any.
func (s *Session) Expiry() (time.Time, bool) {
	return expiry(s.Token())
}

// Seed is the avatar seed of the signed-in user.
func (s *Session) Seed() string {
	u, _ := s.User()
	if seed := strings.ToLower(strings.TrimSpace(u.UserID)); seed != "" {
		return seed
	}
	return "seed"
}

// OnLogout registers a teardown hook. Hooks run in registration order.
func (s *Session) OnLogout(fn func()) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Logout clears credentials and runs teardown hooks. Calling it while logged
// out is a no-op.
func (s *Session) Logout(reason string) {
	s.mu.Lock()
	if s.creds == nil {
		s.mu.Unlock()
		return
	}
	s.creds = nil
	hooks := append([]func(){}, s.hooks...)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.ClearCredentials(); err != nil {
			s.logger.Error("clear credentials", zap.Error(err))
		}
	}
	for _, fn := range hooks {
		fn()
	}
	s.logger.Info("logged out", zap.String("reason", reason))
	s.bus.Emit(bus.KindLoggedOut, reason)
}

func validate(c Credentials) error {
	if strings.TrimSpace(c.Token) == "" {
		return ErrMissingToken
	}
	return ValidateUserID(c.User.UserID)
}

// expiry reads exp without verifying the signature; the server remains the
// authority on validity.
func expiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
