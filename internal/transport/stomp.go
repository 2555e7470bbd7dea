package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
	"go.uber.org/zap"
)

const maxFrameBytes = 1 << 20

// DefaultReceiptTimeout bounds the wait for UNSUBSCRIBE and DISCONNECT
// receipts. Brokers are not required to send them.
const DefaultReceiptTimeout = 2 * time.Second

// Frame is one inbound broker message, or the error that ended a subscription.
type Frame struct {
	Body []byte
	Err  error
}

// Subscription is an active broker subscription.
type Subscription interface {
	Frames() <-chan Frame
	Unsubscribe() error
}

// Conn is an established broker connection.
type Conn interface {
	Subscribe(destination string) (Subscription, error)
	Send(destination string, headers map[string]string, body []byte) error
	// Done is closed when the underlying socket fails or closes.
	Done() <-chan struct{}
	Close() error
}

// Dialer opens broker connections authenticated with a bearer token.
type Dialer interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// STOMPDialer speaks STOMP 1.2 over a raw WebSocket.
type STOMPDialer struct {
	URL            string
	Heartbeat      time.Duration
	ReceiptTimeout time.Duration
	Logger         *zap.Logger
}

// Dial connects the WebSocket and performs the STOMP handshake.
func (d *STOMPDialer) Dial(ctx context.Context, token string) (Conn, error) {
	ws, _, err := websocket.Dial(ctx, d.URL, &websocket.DialOptions{
		Subprotocols: []string{"v12.stomp", "v11.stomp"},
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	ws.SetReadLimit(maxFrameBytes)

	// The NetConn lives until Close, not until the dial context ends.
	netCtx, cancel := context.WithCancel(context.Background())
	wc := &watchedConn{Conn: websocket.NetConn(netCtx, ws, websocket.MessageText), done: make(chan struct{})}

	receipt := d.ReceiptTimeout
	if receipt <= 0 {
		receipt = DefaultReceiptTimeout
	}
	opts := []func(*stomp.Conn) error{
		stomp.ConnOpt.HeartBeat(d.Heartbeat, d.Heartbeat),
		stomp.ConnOpt.UnsubscribeReceiptTimeout(receipt),
		stomp.ConnOpt.DisconnectReceiptTimeout(receipt),
		stomp.ConnOpt.Header("Authorization", "Bearer "+token),
	}
	if d.Logger != nil {
		opts = append(opts, stomp.ConnOpt.Logger(NewStompLogger(d.Logger)))
	}
	sc, err := stomp.Connect(wc, opts...)
	if err != nil {
		cancel()
		_ = wc.Close()
		return nil, fmt.Errorf("stomp connect: %w", err)
	}
	return &stompConn{conn: sc, watched: wc, cancel: cancel, logger: d.Logger}, nil
}

// watchedConn closes done on the first read error so callers can observe a
// dropped socket without a pending subscription.
type watchedConn struct {
	net.Conn
	once sync.Once
	done chan struct{}
}

func (w *watchedConn) Read(p []byte) (int, error) {
	n, err := w.Conn.Read(p)
	if err != nil {
		w.once.Do(func() { close(w.done) })
	}
	return n, err
}

func (w *watchedConn) Close() error {
	w.once.Do(func() { close(w.done) })
	return w.Conn.Close()
}

type stompConn struct {
	conn    *stomp.Conn
	watched *watchedConn
	cancel  context.CancelFunc
	logger  *zap.Logger
}

func (c *stompConn) Subscribe(destination string) (Subscription, error) {
	sub, err := c.conn.Subscribe(destination, stomp.AckAuto)
	if err != nil {
		return nil, err
	}
	s := &stompSubscription{sub: sub, frames: make(chan Frame, 16), stopped: make(chan struct{})}
	go s.forward()
	return s, nil
}

func (c *stompConn) Send(destination string, headers map[string]string, body []byte) error {
	sendOpts := make([]func(*frame.Frame) error, 0, len(headers))
	for k, v := range headers {
		sendOpts = append(sendOpts, stomp.SendOpt.Header(k, v))
	}
	return c.conn.Send(destination, "application/json", body, sendOpts...)
}

func (c *stompConn) Done() <-chan struct{} { return c.watched.done }

func (c *stompConn) Close() error {
	defer c.cancel()
	select {
	case <-c.watched.done:
		// Socket already gone; a DISCONNECT receipt would never arrive.
		_ = c.conn.MustDisconnect()
	default:
		if err := c.conn.Disconnect(); err != nil && c.logger != nil {
			c.logger.Debug("stomp disconnect", zap.Error(err))
		}
	}
	return c.watched.Close()
}

type stompSubscription struct {
	sub     *stomp.Subscription
	frames  chan Frame
	stopped chan struct{}
	once    sync.Once
}

// forward copies broker messages to frames until the first error. It drains
// sub.C until the library closes it, so neither a slow consumer nor a late
// error message can block the library's reader.
func (s *stompSubscription) forward() {
	defer close(s.frames)
	failed := false
	for msg := range s.sub.C {
		if failed {
			continue
		}
		select {
		case s.frames <- Frame{Body: msg.Body, Err: msg.Err}:
		case <-s.stopped:
		}
		failed = msg.Err != nil
	}
}

func (s *stompSubscription) Frames() <-chan Frame { return s.frames }

func (s *stompSubscription) Unsubscribe() error {
	s.once.Do(func() { close(s.stopped) })
	if !s.sub.Active() {
		return nil
	}
	return s.sub.Unsubscribe()
}

// stompLogger routes go-stomp diagnostics into zap.
type stompLogger struct {
	s *zap.SugaredLogger
}

// NewStompLogger adapts logger to the go-stomp Logger interface.
func NewStompLogger(logger *zap.Logger) stomp.Logger {
	return stompLogger{s: logger.Named("stomp").Sugar()}
}

func (l stompLogger) Debugf(format string, v ...interface{})   { l.s.Debugf(format, v...) }
func (l stompLogger) Infof(format string, v ...interface{})    { l.s.Infof(format, v...) }
func (l stompLogger) Warningf(format string, v ...interface{}) { l.s.Warnf(format, v...) }
func (l stompLogger) Errorf(format string, v ...interface{})   { l.s.Errorf(format, v...) }
func (l stompLogger) Debug(msg string)                         { l.s.Debug(msg) }
func (l stompLogger) Info(msg string)                          { l.s.Info(msg) }
func (l stompLogger) Warning(msg string)                       { l.s.Warn(msg) }
func (l stompLogger) Error(msg string)                         { l.s.Error(msg) }
