// Package transport maintains the broker session: one authenticated
// STOMP-over-WebSocket connection with a fixed-delay reconnect loop and at
// most one active subscription.
package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/faeterjconnect/connect/internal/bus"
)

// ErrNotConnected is returned by Publish while the session is down. Nothing
// is queued.
var ErrNotConnected = errors.New("transport: not connected")

// Broker destinations.
const (
	DestChatSend   = "/app/chat.send"
	DestChatTyping = "/app/chat.typing"
)

// ConversationTopic is the channel key of a conversation.
func ConversationTopic(conversationID string) string {
	return "/topic/conversations/" + conversationID
}

// Handler receives raw frame bodies of the active subscription.
type Handler func(body []byte)

// TokenSource supplies the bearer token sent on CONNECT.
type TokenSource interface {
	Token() string
}

// Session owns the broker connection.
type Session struct {
	dialer Dialer
	tokens TokenSource
	delay  time.Duration
	bus    *bus.Bus
	logger *zap.Logger

	mu        sync.Mutex
	conn      Conn
	connected bool
	cancel    context.CancelFunc
	loopDone  chan struct{}

	channel string
	handler Handler
	sub     Subscription
	subGen  atomic.Uint64
}

// NewSession creates a disconnected session. reconnectDelay is the fixed wait
// between attempts.
func NewSession(d Dialer, tokens TokenSource, reconnectDelay time.Duration, b *bus.Bus, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{dialer: d, tokens: tokens, delay: reconnectDelay, bus: b, logger: logger}
}

// Connected reports whether the broker connection is up.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Connect starts the connection loop. It is a no-op while connected; otherwise
// any previous loop is torn down first. It returns without waiting for the
// first attempt; progress is reported on the bus.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.stopLoop()

	s.mu.Lock()
	if s.cancel != nil {
		// A concurrent Connect won.
		s.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.cancel = cancel
	s.loopDone = done
	s.mu.Unlock()

	go s.run(loopCtx, done)
	return nil
}

func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	failing := false
	for {
		conn, err := s.dialer.Dial(ctx, s.token())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("broker connect failed", zap.Error(err))
			s.bus.Emit(bus.KindTransportError, err.Error())
			if !failing {
				s.bus.Notify("error", "cannot reach chat server, retrying…")
			}
			failing = true
		} else if s.attach(ctx, conn) {
			failing = false
			select {
			case <-conn.Done():
				s.detach(conn)
				s.logger.Warn("broker connection lost")
				s.bus.Emit(bus.KindTransportDisconnected, "connection lost")
				s.bus.Notify("warn", "chat connection lost, reconnecting…")
			case <-ctx.Done():
				if s.detach(conn) {
					s.logger.Info("broker disconnected")
					s.bus.Emit(bus.KindTransportDisconnected, "disconnect")
				}
				return
			}
		}

		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return
		}
	}
}

// attach installs conn and restores the current subscription.
func (s *Session) attach(ctx context.Context, conn Conn) bool {
	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		_ = conn.Close()
		return false
	}
	s.conn = conn
	s.connected = true
	var err error
	if s.channel != "" {
		err = s.subscribeLocked()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("resubscribe failed", zap.Error(err))
	}
	s.logger.Info("broker connected")
	s.bus.Emit(bus.KindTransportConnected, nil)
	return true
}

// detach closes conn and, if it is still the installed connection, clears
// it. It reports whether conn was installed.
func (s *Session) detach(conn Conn) bool {
	s.mu.Lock()
	installed := s.conn == conn
	if installed {
		s.unsubscribeLocked()
		s.conn = nil
		s.connected = false
	}
	s.mu.Unlock()
	_ = conn.Close()
	return installed
}

// Subscribe makes channel the single active subscription, unsubscribing the
// previous one first. While disconnected the channel is remembered and
// subscribed on the next connect.
func (s *Session) Subscribe(channel string, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribeLocked()
	s.channel = channel
	s.handler = h
	if !s.connected {
		return nil
	}
	return s.subscribeLocked()
}

// Unsubscribe drops the active subscription, if any.
func (s *Session) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribeLocked()
	s.channel = ""
	s.handler = nil
}

func (s *Session) subscribeLocked() error {
	sub, err := s.conn.Subscribe(s.channel)
	if err != nil {
		return err
	}
	gen := s.subGen.Add(1)
	s.sub = sub
	go s.pump(sub, gen, s.handler, s.channel)
	return nil
}

// unsubscribeLocked retires the pump so no late frame is delivered, then
// sends UNSUBSCRIBE off the lock: the broker round trip may wait for a
// receipt.
func (s *Session) unsubscribeLocked() {
	if s.sub == nil {
		return
	}
	s.subGen.Add(1)
	go s.release(s.sub, s.channel)
	s.sub = nil
}

func (s *Session) release(sub Subscription, channel string) {
	if err := sub.Unsubscribe(); err != nil {
		s.logger.Debug("unsubscribe", zap.String("channel", channel), zap.Error(err))
	}
}

func (s *Session) pump(sub Subscription, gen uint64, h Handler, channel string) {
	for f := range sub.Frames() {
		if f.Err != nil {
			s.logger.Warn("subscription error", zap.String("channel", channel), zap.Error(f.Err))
			return
		}
		if s.subGen.Load() != gen {
			continue
		}
		if h != nil {
			h(f.Body)
		}
	}
}

// Publish sends a fire-and-forget frame. It fails fast with ErrNotConnected
// while disconnected.
func (s *Session) Publish(destination string, headers map[string]string, body []byte) error {
	s.mu.Lock()
	conn, ok := s.conn, s.connected
	s.mu.Unlock()
	if !ok {
		return ErrNotConnected
	}
	if err := conn.Send(destination, headers, body); err != nil {
		s.bus.Emit(bus.KindTransportError, err.Error())
		return err
	}
	return nil
}

// Disconnect stops reconnecting and releases the subscription and connection.
func (s *Session) Disconnect() {
	// The loop detaches a live connection on its way out.
	s.stopLoop()

	s.mu.Lock()
	s.unsubscribeLocked()
	s.channel = ""
	s.handler = nil
	conn := s.conn
	s.conn = nil
	s.connected = false
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
		s.logger.Info("broker disconnected")
		s.bus.Emit(bus.KindTransportDisconnected, "disconnect")
	}
}

func (s *Session) stopLoop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.loopDone
	s.cancel, s.loopDone = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Session) token() string {
	if s.tokens == nil {
		return ""
	}
	return s.tokens.Token()
}
