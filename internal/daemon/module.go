package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/faeterjconnect/connect/internal/api"
	"github.com/faeterjconnect/connect/internal/auth"
	"github.com/faeterjconnect/connect/internal/backend"
	"github.com/faeterjconnect/connect/internal/bus"
	"github.com/faeterjconnect/connect/internal/chat"
	"github.com/faeterjconnect/connect/internal/config"
	"github.com/faeterjconnect/connect/internal/lock"
	"github.com/faeterjconnect/connect/internal/logging"
	"github.com/faeterjconnect/connect/internal/mobility"
	"github.com/faeterjconnect/connect/internal/platform"
	"github.com/faeterjconnect/connect/internal/session"
	"github.com/faeterjconnect/connect/internal/status"
	"github.com/faeterjconnect/connect/internal/store"
	intsync "github.com/faeterjconnect/connect/internal/sync"
	"github.com/faeterjconnect/connect/internal/transport"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string         // optional override for testing; empty = use default
	Config      *config.Config // nil = config.Default()
}

func (p Params) config() *config.Config {
	if p.Config == nil {
		return config.Default()
	}
	return p.Config
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideAuth,
			provideBackend,
			provideTransport,
			provideChatEngine,
			provideAdapter,
			provideEventHandler,
			provideSyncEngine,
			providePoller,
			provideSessionService,
			provideChatService,
			provideFeedService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName, logging.ParseLevel(p.config().LogLevel))
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName), p.SessionName)
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore depends on the lock so the database is never opened by a
// second daemon for the same session.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.AppDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed() {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	if !result.Search {
		logger.Warn("full-text index unavailable, message search disabled")
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideAuth(db *store.DB, b *bus.Bus, logger *zap.Logger) *auth.Session {
	return auth.NewSession(store.Credentials{DB: db}, b, logger)
}

func provideBackend(p Params, sess *auth.Session, logger *zap.Logger) *backend.Client {
	cfg := p.config()
	return backend.New(cfg.APIURL, cfg.RequestTimeout.Duration, sess, logger)
}

func provideTransport(p Params, sess *auth.Session, b *bus.Bus, logger *zap.Logger) *transport.Session {
	cfg := p.config()
	dialer := &transport.STOMPDialer{
		URL:            cfg.WSURL,
		Heartbeat:      cfg.Heartbeat.Duration,
		ReceiptTimeout: cfg.ReceiptTimeout.Duration,
		Logger:         logger,
	}
	return transport.NewSession(dialer, sess, cfg.ReconnectDelay.Duration, b, logger)
}

func provideChatEngine(p Params, tr *transport.Session, api *backend.Client, sess *auth.Session, b *bus.Bus, logger *zap.Logger) *chat.Engine {
	return chat.NewEngine(chat.Options{
		Transport: tr,
		History:   platform.HistoryFunc(api),
		Identity:  platform.IdentityFunc(sess),
		Bus:       b,
		Logger:    logger,
		PageSize:  p.config().HistoryPageSize,
	})
}

func provideAdapter(api *backend.Client, sess *auth.Session, engine *chat.Engine, tr *transport.Session, m *status.Machine, db *store.DB, b *bus.Bus, logger *zap.Logger) *platform.Adapter {
	return platform.NewAdapter(api, sess, engine, tr, m, db, b, logger)
}

func provideEventHandler(adapter *platform.Adapter, m *status.Machine, b *bus.Bus, logger *zap.Logger) *platform.EventHandler {
	h := platform.NewEventHandler(b, m, adapter.IsLoggedIn, logger)
	// Messages sent while the broker was down only reach the thread through
	// history.
	h.OnConnected(func(ctx context.Context) {
		if err := adapter.Engine().Resync(ctx); err != nil {
			logger.Debug("resync after connect", zap.Error(err))
		}
	})
	return h
}

func provideSyncEngine(db *store.DB, sess *auth.Session, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	selfID := func() string {
		u, _ := sess.User()
		return u.UserID
	}
	return intsync.NewEngine(db, b, selfID, logger)
}

func providePoller(api *backend.Client, logger *zap.Logger) *mobility.Poller {
	return mobility.NewPoller(api, logger)
}

func provideSessionService(p Params, m *status.Machine, adapter *platform.Adapter) *api.SessionService {
	return api.NewSessionService(p.SessionName, m, adapter)
}

func provideChatService(p Params, adapter *platform.Adapter, db *store.DB, b *bus.Bus, logger *zap.Logger) *api.ChatService {
	return api.NewChatService(adapter, db, b, p.SessionName, logger)
}

func provideFeedService(adapter *platform.Adapter, poller *mobility.Poller) *api.FeedService {
	return api.NewFeedService(adapter, poller)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, adapter *platform.Adapter, handler *platform.EventHandler, engine *intsync.Engine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Cache writes and status transitions must be subscribed before
			// the first transport or chat event can fire.
			engine.Start(context.Background())
			handler.Start(context.Background())

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if err := adapter.Start(context.Background()); err != nil {
				logger.Error("session start failed", zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			adapter.Stop()
			handler.Stop()
			engine.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
