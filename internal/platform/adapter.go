// Package platform binds the FaeterjConnect backend, the signed-in session
// and the chat engine into one adapter the daemon drives.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/faeterjconnect/connect/internal/auth"
	"github.com/faeterjconnect/connect/internal/backend"
	"github.com/faeterjconnect/connect/internal/bus"
	"github.com/faeterjconnect/connect/internal/chat"
	"github.com/faeterjconnect/connect/internal/status"
	"github.com/faeterjconnect/connect/internal/store"
	intsync "github.com/faeterjconnect/connect/internal/sync"
)

// Broker is the transport the adapter connects and tears down.
type Broker interface {
	Connected() bool
	Connect(ctx context.Context) error
	Disconnect()
}

// Adapter wraps the REST client, auth session and chat engine and manages
// the broker connection around login and logout.
type Adapter struct {
	api     *backend.Client
	auth    *auth.Session
	engine  *chat.Engine
	broker  Broker
	machine *status.Machine
	db      *store.DB
	bus     *bus.Bus
	logger  *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewAdapter wires the adapter. A 401 from any REST call forces a logout,
// and logout tears down the engine and broker and clears the cache.
// db may be nil.
func NewAdapter(api *backend.Client, sess *auth.Session, engine *chat.Engine, broker Broker, machine *status.Machine, db *store.DB, b *bus.Bus, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{
		api:     api,
		auth:    sess,
		engine:  engine,
		broker:  broker,
		machine: machine,
		db:      db,
		bus:     b,
		logger:  logger,
	}
	api.OnUnauthorized = func() {
		if !sess.Authenticated() {
			return
		}
		a.bus.Notify("error", "session expired, please log in again")
		go sess.Logout("unauthorized")
	}
	sess.OnLogout(a.teardown)
	return a
}

// HistoryFunc adapts the REST history endpoint for the chat engine.
func HistoryFunc(api *backend.Client) chat.HistoryFunc {
	return func(ctx context.Context, conversationID string, page, size int) ([]json.RawMessage, error) {
		p, err := api.Messages(ctx, conversationID, page, size)
		if err != nil {
			return nil, err
		}
		return p.Content, nil
	}
}

// IdentityFunc reads the engine's notion of "self" from the auth session.
func IdentityFunc(sess *auth.Session) chat.Identity {
	return func() (string, string) {
		u, _ := sess.User()
		return u.UserID, u.Username
	}
}

// API exposes the REST client for pass-through calls.
func (a *Adapter) API() *backend.Client { return a.api }

// Engine exposes the chat engine.
func (a *Adapter) Engine() *chat.Engine { return a.engine }

// Auth exposes the signed-in session.
func (a *Adapter) Auth() *auth.Session { return a.auth }

// IsLoggedIn reports whether credentials are present.
func (a *Adapter) IsLoggedIn() bool {
	return a.auth.Authenticated()
}

// Start restores persisted credentials and, when present, connects.
func (a *Adapter) Start(ctx context.Context) error {
	ok, err := a.auth.Restore()
	if err != nil {
		a.logger.Warn("restore credentials", zap.Error(err))
	}
	if !ok {
		a.logger.Info("no credentials found, login required")
		_ = a.machine.Transition(status.LoggedOut)
		return nil
	}
	return a.Connect(ctx)
}

// Connect starts the broker connection and refreshes profile and
// conversations in the background.
func (a *Adapter) Connect(ctx context.Context) error {
	if !a.IsLoggedIn() {
		return auth.ErrNotAuthenticated
	}
	if err := a.transition(status.Connecting); err != nil {
		a.logger.Debug("status transition skipped", zap.Error(err))
	}
	a.logger.Info("connecting to broker")
	if err := a.broker.Connect(ctx); err != nil {
		_ = a.machine.Transition(status.Error)
		return fmt.Errorf("connect broker: %w", err)
	}

	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	refreshCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.mu.Unlock()

	go a.refresh(refreshCtx)
	return nil
}

func (a *Adapter) refresh(ctx context.Context) {
	if me, err := a.api.Me(ctx); err == nil {
		if err := a.auth.Repair(me.AuthUser()); err != nil && !errors.Is(err, auth.ErrNotAuthenticated) {
			a.logger.Warn("repair profile", zap.Error(err))
		}
	} else if ctx.Err() == nil {
		a.logger.Warn("fetch profile", zap.Error(err))
	}
	if _, err := a.LoadConversations(ctx); err != nil && ctx.Err() == nil {
		a.logger.Warn("load conversations", zap.Error(err))
	}
}

// LoadConversations fetches the list from the backend. When the backend is
// unreachable the cached list, if any, is installed instead.
func (a *Adapter) LoadConversations(ctx context.Context) ([]chat.Conversation, error) {
	list, err := a.api.Conversations(ctx)
	if err != nil {
		if a.db != nil && !errors.Is(err, backend.ErrUnauthorized) {
			if cached, cerr := intsync.CachedConversations(a.db, 200); cerr == nil && len(cached) > 0 && len(a.engine.Store().List()) == 0 {
				a.engine.SetConversations(cached)
			}
		}
		a.bus.Notify("error", "failed to load conversations")
		return nil, err
	}
	if !a.IsLoggedIn() {
		return nil, auth.ErrNotAuthenticated
	}
	a.engine.SetConversations(list)
	return a.engine.Store().List(), nil
}

// OpenConversation opens or creates the 1:1 conversation with otherUserID
// and prepends it when new.
func (a *Adapter) OpenConversation(ctx context.Context, otherUserID string) (chat.Conversation, bool, error) {
	c, err := a.api.OpenConversation(ctx, otherUserID)
	if err != nil {
		a.bus.Notify("error", "could not open conversation")
		return chat.Conversation{}, false, err
	}
	created := a.engine.AddConversation(*c)
	return *c, created, nil
}

// Login authenticates with email and password, then connects.
func (a *Adapter) Login(ctx context.Context, email, password string) (auth.User, error) {
	res, err := a.api.Login(ctx, email, password)
	if err != nil {
		return auth.User{}, err
	}
	return a.install(ctx, res)
}

// Register creates an account and signs in with it.
func (a *Adapter) Register(ctx context.Context, req backend.RegisterRequest) (auth.User, error) {
	res, err := a.api.Register(ctx, req)
	if err != nil {
		return auth.User{}, err
	}
	return a.install(ctx, res)
}

// UpdateProfile saves profile changes for the signed-in user and merges the
// returned profile into the session.
func (a *Adapter) UpdateProfile(ctx context.Context, req backend.UpdateUserRequest) (auth.User, error) {
	u, ok := a.auth.User()
	if !ok {
		return auth.User{}, auth.ErrNotAuthenticated
	}
	p, err := a.api.UpdateUser(ctx, u.UserID, req)
	if err != nil {
		return auth.User{}, err
	}
	next := p.AuthUser()
	if next.UserID == "" {
		next.UserID = u.UserID
	}
	if err := a.auth.Repair(next); err != nil {
		return auth.User{}, err
	}
	a.logger.Info("profile updated", zap.String("user_id", u.UserID))
	out, _ := a.auth.User()
	return out, nil
}

func (a *Adapter) install(ctx context.Context, res *backend.AuthResponse) (auth.User, error) {
	creds := res.Credentials()
	if err := a.auth.Set(creds); err != nil {
		return auth.User{}, err
	}
	if err := a.Connect(ctx); err != nil {
		return creds.User, err
	}
	return creds.User, nil
}

// Logout clears the session. Teardown runs through the logout hook.
func (a *Adapter) Logout(reason string) {
	a.auth.Logout(reason)
}

// Stop releases the engine and broker without touching credentials.
func (a *Adapter) Stop() {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.mu.Unlock()
	a.engine.Close()
}

func (a *Adapter) teardown() {
	a.Stop()
	a.engine.SetConversations(nil)
	if a.db != nil {
		if err := a.db.PurgeMessages(); err != nil {
			a.logger.Warn("purge cache", zap.Error(err))
		}
	}
	_ = a.machine.Transition(status.LoggedOut)
}

// transition moves to target, treating an already connected session as past
// Connecting.
func (a *Adapter) transition(target status.State) error {
	cur := a.machine.Current()
	if cur == target {
		return nil
	}
	if target == status.Connecting && cur == status.Connected {
		return nil
	}
	return a.machine.Transition(target)
}
