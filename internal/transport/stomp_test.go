package transport

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3/server"
	"go.uber.org/zap"

	"github.com/faeterjconnect/connect/internal/bus"
)

// wsListener feeds WebSocket connections accepted by an HTTP handler to the
// in-process STOMP server.
type wsListener struct {
	conns  chan net.Conn
	closed chan struct{}
	once   sync.Once
}

func (l *wsListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *wsListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *wsListener) Addr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

type testBroker struct {
	url string

	mu      sync.Mutex
	sockets []*websocket.Conn
}

// startBroker runs a go-stomp server behind an httptest WebSocket endpoint.
func startBroker(t *testing.T) *testBroker {
	t.Helper()
	lis := &wsListener{conns: make(chan net.Conn), closed: make(chan struct{})}
	srv := &server.Server{HeartBeat: time.Minute, Log: NewStompLogger(zap.NewNop())}
	go func() { _ = srv.Serve(lis) }()

	b := &testBroker{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{"v12.stomp"}})
		if err != nil {
			return
		}
		b.mu.Lock()
		b.sockets = append(b.sockets, ws)
		b.mu.Unlock()
		nc := websocket.NetConn(context.Background(), ws, websocket.MessageText)
		select {
		case lis.conns <- nc:
		case <-lis.closed:
			_ = nc.Close()
		}
	}))
	t.Cleanup(func() {
		b.dropAll()
		ts.Close()
		_ = lis.Close()
	})
	b.url = "ws" + strings.TrimPrefix(ts.URL, "http")
	return b
}

// dropAll kills every server-side socket without a STOMP goodbye.
func (b *testBroker) dropAll() {
	b.mu.Lock()
	sockets := b.sockets
	b.sockets = nil
	b.mu.Unlock()
	for _, ws := range sockets {
		_ = ws.CloseNow()
	}
}

func (b *testBroker) dialer(receipt time.Duration) *STOMPDialer {
	return &STOMPDialer{URL: b.url, ReceiptTimeout: receipt, Logger: zap.NewNop()}
}

func dialBroker(t *testing.T, d *STOMPDialer) Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := d.Dial(ctx, "tok")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func nextFrame(t *testing.T, sub Subscription) Frame {
	t.Helper()
	select {
	case f, ok := <-sub.Frames():
		if !ok {
			t.Fatal("frames closed")
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for frame")
	}
	return Frame{}
}

func TestSTOMPRoundTrip(t *testing.T) {
	b := startBroker(t)
	conn := dialBroker(t, b.dialer(200*time.Millisecond))

	topic := ConversationTopic("c1")
	sub, err := conn.Subscribe(topic)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := conn.Send(topic, map[string]string{"conversationId": "c1"}, []byte(`{"id":"m1"}`)); err != nil {
		t.Fatalf("send: %v", err)
	}

	f := nextFrame(t, sub)
	if f.Err != nil {
		t.Fatalf("frame error: %v", f.Err)
	}
	if string(f.Body) != `{"id":"m1"}` {
		t.Errorf("body = %q", f.Body)
	}
}

func TestSTOMPUnsubscribeBoundedByReceiptTimeout(t *testing.T) {
	b := startBroker(t)
	conn := dialBroker(t, b.dialer(150*time.Millisecond))

	sub, err := conn.Subscribe(ConversationTopic("c1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// The broker never acknowledges UNSUBSCRIBE, so this waits out the
	// receipt timeout and no longer.
	start := time.Now()
	_ = sub.Unsubscribe()
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("unsubscribe took %v", elapsed)
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Errorf("second unsubscribe: %v", err)
	}

	_ = conn.Close()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Frames():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("frames not closed after Close")
		}
	}
}

func TestSTOMPSocketDropClosesDone(t *testing.T) {
	b := startBroker(t)
	conn := dialBroker(t, b.dialer(200*time.Millisecond))

	select {
	case <-conn.Done():
		t.Fatal("done before drop")
	default:
	}

	b.dropAll()
	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("done not closed after socket drop")
	}

	start := time.Now()
	_ = conn.Close()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("close after drop took %v", elapsed)
	}
}

func TestSTOMPDialRejected(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	d := &STOMPDialer{URL: "ws" + strings.TrimPrefix(ts.URL, "http")}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := d.Dial(ctx, "tok"); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestSessionSwitchIsNotHeldByReceipt(t *testing.T) {
	b := startBroker(t)
	s, ch := newTestSession(t, b.dialer(5*time.Second))

	first := make(chan string, 4)
	second := make(chan string, 4)
	if err := s.Subscribe(ConversationTopic("c1"), func(body []byte) { first <- string(body) }); err != nil {
		t.Fatal(err)
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitKind(t, ch, bus.KindTransportConnected)

	start := time.Now()
	if err := s.Subscribe(ConversationTopic("c2"), func(body []byte) { second <- string(body) }); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("switch took %v", elapsed)
	}
	if err := s.Publish(ConversationTopic("c2"), nil, []byte("hello")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case got := <-second:
		if got != "hello" {
			t.Errorf("got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("new subscription got nothing")
	}

	if err := s.Publish(ConversationTopic("c1"), nil, []byte("stale")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case got := <-first:
		t.Errorf("retired handler got %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSessionRecoversFromSocketDrop(t *testing.T) {
	b := startBroker(t)
	s, ch := newTestSession(t, b.dialer(200*time.Millisecond))

	got := make(chan string, 4)
	if err := s.Subscribe(ConversationTopic("c1"), func(body []byte) { got <- string(body) }); err != nil {
		t.Fatal(err)
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitKind(t, ch, bus.KindTransportConnected)

	b.dropAll()
	waitKind(t, ch, bus.KindTransportDisconnected)
	waitKind(t, ch, bus.KindTransportConnected)

	if err := s.Publish(ConversationTopic("c1"), nil, []byte("after")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case body := <-got:
		if body != "after" {
			t.Errorf("got %q", body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not restored after reconnect")
	}
}
