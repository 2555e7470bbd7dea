package chat

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/faeterjconnect/connect/internal/bus"
	"github.com/faeterjconnect/connect/internal/transport"
)

type published struct {
	dest    string
	headers map[string]string
	body    string
}

type fakeTransport struct {
	mu           sync.Mutex
	connected    bool
	connects     int
	disconnects  int
	channel      string
	handler      transport.Handler
	unsubscribes int
	published    []published
	// gate, when set, holds Unsubscribe like a broker slow to send its
	// receipt; blocked is signalled on entry.
	gate    chan struct{}
	blocked chan struct{}
}

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return nil
}

func (f *fakeTransport) Subscribe(channel string, h transport.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channel = channel
	f.handler = h
	return nil
}

func (f *fakeTransport) Unsubscribe() {
	f.mu.Lock()
	gate, blocked := f.gate, f.blocked
	f.mu.Unlock()
	if gate != nil {
		select {
		case blocked <- struct{}{}:
		default:
		}
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channel = ""
	f.handler = nil
	f.unsubscribes++
}

func (f *fakeTransport) Publish(dest string, headers map[string]string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return transport.ErrNotConnected
	}
	f.published = append(f.published, published{dest: dest, headers: headers, body: string(body)})
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnects++
}

// deliver pushes a frame through the currently subscribed handler, as the
// broker would.
func (f *fakeTransport) deliver(t *testing.T, body string) {
	t.Helper()
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		t.Fatal("no active subscription")
	}
	h([]byte(body))
}

func (f *fakeTransport) sent() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.published...)
}

const selfID = "me-id"

var (
	convA = Conversation{ID: "A", Participants: []Participant{{UserID: selfID, Username: "Ana"}, {UserID: "bob", Username: "Bob"}}}
	convB = Conversation{ID: "B", Participants: []Participant{{UserID: selfID, Username: "Ana"}, {UserID: "cai", Username: "Caio"}}}
)

type engineFixture struct {
	engine  *Engine
	tr      *fakeTransport
	bus     *bus.Bus
	history map[string][]json.RawMessage
}

func newEngine(t *testing.T, typingWindow time.Duration) *engineFixture {
	t.Helper()
	fx := &engineFixture{
		tr:      &fakeTransport{connected: true},
		bus:     bus.New(),
		history: map[string][]json.RawMessage{},
	}
	fx.engine = NewEngine(Options{
		Transport: fx.tr,
		History: func(_ context.Context, id string, page, size int) ([]json.RawMessage, error) {
			if page != 0 || size != 30 {
				t.Errorf("history page/size = %d/%d, want 0/30", page, size)
			}
			return fx.history[id], nil
		},
		Identity:     func() (string, string) { return selfID, "ana.local" },
		Bus:          fx.bus,
		Logger:       zap.NewNop(),
		TypingWindow: typingWindow,
	})
	fx.engine.SetConversations([]Conversation{convA, convB})
	t.Cleanup(fx.engine.Close)
	return fx
}

func threadIDs(e *Engine) []string {
	_, ms := e.Thread()
	return ids(ms)
}

func TestSendThenEchoLeavesOneBubble(t *testing.T) {
	fx := newEngine(t, 0)
	ctx := context.Background()
	if err := fx.engine.Select(ctx, "A"); err != nil {
		t.Fatal(err)
	}

	sent, err := fx.engine.Send(ctx, "  hello ")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !sent.Optimistic() || sent.Content != "hello" || sent.SenderName != "Ana" {
		t.Errorf("optimistic = %+v", sent)
	}
	if got := threadIDs(fx.engine); len(got) != 1 || got[0] != sent.ID {
		t.Fatalf("thread = %v, want one optimistic bubble", got)
	}

	frames := fx.tr.sent()
	if len(frames) != 1 || frames[0].dest != transport.DestChatSend {
		t.Fatalf("published = %+v", frames)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(frames[0].body), &body); err != nil {
		t.Fatal(err)
	}
	if body["conversationId"] != "A" || body["content"] != "hello" || body["type"] != "TEXT" {
		t.Errorf("body = %v", body)
	}

	fx.tr.deliver(t, `{"id":"m1","senderId":"me-id","content":"hello"}`)
	if got := threadIDs(fx.engine); len(got) != 1 || got[0] != "m1" {
		t.Errorf("thread = %v, want [m1]", got)
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	fx := newEngine(t, 0)
	ctx := context.Background()
	_ = fx.engine.Select(ctx, "A")
	fx.tr.mu.Lock()
	fx.tr.connected = false
	fx.tr.mu.Unlock()

	notices, unsub := fx.bus.Subscribe(bus.KindNotice, 4)
	defer unsub()

	_, err := fx.engine.Send(ctx, "hello")
	if !errors.Is(err, transport.ErrNotConnected) {
		t.Fatalf("Send() = %v, want ErrNotConnected", err)
	}
	if len(threadIDs(fx.engine)) != 0 {
		t.Error("no optimistic message may be added while disconnected")
	}
	if fx.tr.connects != 1 {
		t.Errorf("reconnect attempts = %d, want 1", fx.tr.connects)
	}
	select {
	case <-notices:
	case <-time.After(time.Second):
		t.Error("no user notification")
	}
}

func TestSendValidation(t *testing.T) {
	fx := newEngine(t, 0)
	if _, err := fx.engine.Send(context.Background(), "hi"); !errors.Is(err, ErrNoConversation) {
		t.Errorf("Send without selection = %v", err)
	}
	_ = fx.engine.Select(context.Background(), "A")
	if _, err := fx.engine.Send(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("Send(blank) = %v", err)
	}
	if err := fx.engine.Select(context.Background(), "nope"); !errors.Is(err, ErrNoConversation) {
		t.Errorf("Select(unknown) = %v", err)
	}
}

func TestSendToOtherConversationKeepsSelection(t *testing.T) {
	fx := newEngine(t, 0)
	ctx := context.Background()
	if err := fx.engine.Select(ctx, "A"); err != nil {
		t.Fatal(err)
	}
	events, unsub := fx.bus.Subscribe(bus.KindChatMessage, 4)
	defer unsub()

	sent, err := fx.engine.SendTo(ctx, "B", " oi caio ")
	if err != nil {
		t.Fatalf("SendTo() error = %v", err)
	}
	if sent.ConversationID != "B" || sent.Content != "oi caio" || !sent.Optimistic() {
		t.Errorf("sent = %+v", sent)
	}
	if active, msgs := fx.engine.Thread(); active != "A" || len(msgs) != 0 {
		t.Errorf("thread = %s %v, want A untouched", active, ids(msgs))
	}
	fx.tr.mu.Lock()
	channel := fx.tr.channel
	fx.tr.mu.Unlock()
	if channel != transport.ConversationTopic("A") {
		t.Errorf("subscribed to %q, want the active conversation", channel)
	}
	frames := fx.tr.sent()
	if len(frames) != 1 {
		t.Fatalf("published = %+v", frames)
	}
	var body map[string]string
	_ = json.Unmarshal([]byte(frames[0].body), &body)
	if body["conversationId"] != "B" {
		t.Errorf("body = %v", body)
	}
	select {
	case evt := <-events:
		t.Errorf("unexpected thread event %+v", evt)
	default:
	}

	if _, err := fx.engine.SendTo(ctx, "nope", "hi"); !errors.Is(err, ErrNoConversation) {
		t.Errorf("SendTo(unknown) = %v", err)
	}
	if _, err := fx.engine.SendTo(ctx, "A", "para o ativo"); err != nil {
		t.Fatal(err)
	}
	if got := threadIDs(fx.engine); len(got) != 1 {
		t.Errorf("active send thread = %v, want one placeholder", got)
	}
}

func TestDuplicateEventsAreIdempotent(t *testing.T) {
	fx := newEngine(t, 0)
	_ = fx.engine.Select(context.Background(), "A")

	for i := 0; i < 3; i++ {
		fx.tr.deliver(t, `{"id":"m1","senderId":"bob","content":"hi"}`)
	}
	fx.tr.deliver(t, `{"id":"m2","senderId":"bob","content":""}`)
	fx.tr.deliver(t, `{broken`)
	if got := threadIDs(fx.engine); len(got) != 1 {
		t.Errorf("thread = %v, want [m1]", got)
	}
}

func TestHistoryIsSortedAndSubscribed(t *testing.T) {
	fx := newEngine(t, 0)
	fx.history["A"] = []json.RawMessage{
		json.RawMessage(`{"id":"h2","senderId":"bob","content":"second","sentAt":"2024-01-02T10:01:00Z"}`),
		json.RawMessage(`{"id":"h1","senderId":"me-id","content":"first","sentAt":"2024-01-02T10:00:00Z"}`),
	}
	if err := fx.engine.Select(context.Background(), "A"); err != nil {
		t.Fatal(err)
	}
	if fx.tr.channel != "/topic/conversations/A" {
		t.Errorf("channel = %q", fx.tr.channel)
	}
	_, ms := fx.engine.Thread()
	if len(ms) != 2 || ms[0].ID != "h1" || ms[1].ID != "h2" {
		t.Fatalf("thread = %v", ids(ms))
	}
	if ms[0].SenderName != "Ana" || ms[1].SenderName != "Bob" {
		t.Errorf("names = %q, %q", ms[0].SenderName, ms[1].SenderName)
	}
}

func TestTypingSignalAndMessageClearsIt(t *testing.T) {
	fx := newEngine(t, time.Minute)
	_ = fx.engine.Select(context.Background(), "A")

	fx.tr.deliver(t, `{"typingUserId":"me-id","conversationId":"A"}`)
	if len(fx.engine.typingUsers()) != 0 {
		t.Error("own typing signal must be ignored")
	}

	fx.tr.deliver(t, `{"typingUserId":"bob","conversationId":"A"}`)
	if got := fx.engine.TypingHint(); got != "Bob is typing…" {
		t.Errorf("hint = %q", got)
	}

	fx.tr.deliver(t, `{"id":"m1","senderId":"bob","content":"done"}`)
	if got := fx.engine.typingUsers(); len(got) != 0 {
		t.Errorf("typing = %v, want cleared by message", got)
	}
}

func TestTypingExpiresThroughEngine(t *testing.T) {
	fx := newEngine(t, 30*time.Millisecond)
	_ = fx.engine.Select(context.Background(), "A")

	events, unsub := fx.bus.Subscribe(bus.KindChatTyping, 8)
	defer unsub()

	fx.tr.deliver(t, `{"typingUserId":"bob","conversationId":"A"}`)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-events:
			te := evt.Payload.(TypingEvent)
			if len(te.Users) == 0 {
				if fx.engine.TypingHint() != "" {
					t.Error("hint not cleared after expiry")
				}
				return
			}
		case <-deadline:
			t.Fatal("typing did not expire")
		}
	}
}

func TestSwitchingConversationIsolatesTyping(t *testing.T) {
	fx := newEngine(t, time.Minute)
	ctx := context.Background()
	_ = fx.engine.Select(ctx, "A")
	handlerA := fx.tr.handler

	fx.tr.deliver(t, `{"typingUserId":"bob","conversationId":"A"}`)
	if len(fx.engine.typingUsers()) != 1 {
		t.Fatal("bob should be typing in A")
	}

	_ = fx.engine.Select(ctx, "B")
	if fx.tr.unsubscribes < 2 {
		t.Errorf("unsubscribes = %d, previous channel not released", fx.tr.unsubscribes)
	}
	if len(fx.engine.typingUsers()) != 0 {
		t.Error("typing state leaked into B")
	}

	// A late frame from A's subscription must not reach B.
	handlerA([]byte(`{"typingUserId":"bob","conversationId":"A"}`))
	handlerA([]byte(`{"id":"late","senderId":"bob","content":"stale"}`))
	if len(fx.engine.typingUsers()) != 0 || fx.engine.TypingHint() != "" {
		t.Error("typing from A shown in B")
	}
	if got := threadIDs(fx.engine); len(got) != 0 {
		t.Errorf("thread B = %v, want empty", got)
	}

	// A typing event tagged for another conversation on B's channel is ignored too.
	fx.tr.deliver(t, `{"typingUserId":"bob","conversationId":"A"}`)
	if len(fx.engine.typingUsers()) != 0 {
		t.Error("foreign typing signal accepted")
	}
}

func TestSwitchingConversationDropsPending(t *testing.T) {
	fx := newEngine(t, 0)
	ctx := context.Background()
	_ = fx.engine.Select(ctx, "A")
	_, _ = fx.engine.Send(ctx, "hello")

	_ = fx.engine.Select(ctx, "A")
	fx.tr.deliver(t, `{"id":"m1","senderId":"me-id","content":"hello"}`)
	if got := threadIDs(fx.engine); len(got) != 1 || got[0] != "m1" {
		t.Errorf("thread = %v, want [m1]", got)
	}
}

func TestTypingEmissionIsRateLimited(t *testing.T) {
	fx := newEngine(t, 0)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fx.engine.now = func() time.Time { return now }
	_ = fx.engine.Select(context.Background(), "A")

	if !fx.engine.Typing() {
		t.Fatal("first Typing() should publish")
	}
	now = now.Add(time.Second)
	if fx.engine.Typing() {
		t.Error("Typing() within window should be suppressed")
	}
	now = now.Add(1500 * time.Millisecond)
	if !fx.engine.Typing() {
		t.Error("Typing() after window should publish")
	}

	frames := fx.tr.sent()
	if len(frames) != 2 {
		t.Fatalf("published %d typing frames, want 2", len(frames))
	}
	if frames[0].dest != transport.DestChatTyping || frames[0].headers["conversationId"] != "A" || frames[0].body != "{}" {
		t.Errorf("typing frame = %+v", frames[0])
	}
}

func TestCloseTearsDown(t *testing.T) {
	fx := newEngine(t, time.Minute)
	_ = fx.engine.Select(context.Background(), "A")
	fx.tr.deliver(t, `{"typingUserId":"bob","conversationId":"A"}`)

	fx.engine.Close()
	if fx.tr.handler != nil || fx.tr.disconnects != 1 {
		t.Errorf("handler = %v, disconnects = %d", fx.tr.handler != nil, fx.tr.disconnects)
	}
	if len(fx.engine.typingUsers()) != 0 || fx.engine.Active() != "" {
		t.Error("state survived Close")
	}
}

func TestAddConversationPrepends(t *testing.T) {
	fx := newEngine(t, 0)
	if !fx.engine.AddConversation(Conversation{ID: "N"}) {
		t.Fatal("AddConversation(new) = false")
	}
	if fx.engine.AddConversation(convA) {
		t.Error("AddConversation(existing) = true")
	}
	if list := fx.engine.Store().List(); list[0].ID != "N" || len(list) != 3 {
		t.Errorf("list = %+v", list)
	}
}

func (e *Engine) typingUsers() []string { return e.typing.Users() }

func TestSlowUnsubscribeDoesNotBlockThread(t *testing.T) {
	fx := newEngine(t, 0)
	if err := fx.engine.Select(context.Background(), "A"); err != nil {
		t.Fatal(err)
	}

	gate := make(chan struct{})
	defer close(gate)
	blocked := make(chan struct{}, 1)
	fx.tr.mu.Lock()
	fx.tr.gate, fx.tr.blocked = gate, blocked
	fx.tr.mu.Unlock()

	selected := make(chan error, 1)
	go func() { selected <- fx.engine.Select(context.Background(), "B") }()
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("Select never reached Unsubscribe")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		fx.engine.Thread()
		fx.engine.Typing()
		fx.engine.TypingHint()
		fx.deliverTo(t, `{"id":"late","conversationId":"A","senderId":"bob","content":"x"}`)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine blocked behind a pending unsubscribe")
	}

	fx.tr.mu.Lock()
	fx.tr.gate = nil
	fx.tr.mu.Unlock()
	gate <- struct{}{}
	if err := <-selected; err != nil {
		t.Fatal(err)
	}
	if fx.engine.Active() != "B" || fx.tr.channel != "/topic/conversations/B" {
		t.Errorf("active = %q, channel = %q", fx.engine.Active(), fx.tr.channel)
	}
	if got := threadIDs(fx.engine); len(got) != 0 {
		t.Errorf("thread = %v, want frames of A dropped", got)
	}
}

// deliverTo pushes a frame through whatever handler is installed, if any.
func (fx *engineFixture) deliverTo(t *testing.T, body string) {
	t.Helper()
	fx.tr.mu.Lock()
	h := fx.tr.handler
	fx.tr.mu.Unlock()
	if h != nil {
		h([]byte(body))
	}
}

func TestResyncMergesMessagesMissedWhileOffline(t *testing.T) {
	fx := newEngine(t, 0)
	fx.history["A"] = []json.RawMessage{
		json.RawMessage(`{"id":"h1","senderId":"bob","content":"before","sentAt":"2024-01-02T10:00:00Z"}`),
	}
	if err := fx.engine.Select(context.Background(), "A"); err != nil {
		t.Fatal(err)
	}
	fx.tr.deliver(t, `{"id":"live","conversationId":"A","senderId":"bob","content":"live","sentAt":"2024-01-02T10:01:00Z"}`)

	events, unsub := fx.bus.Subscribe(bus.KindChatHistory, 4)
	defer unsub()
	fx.history["A"] = []json.RawMessage{
		json.RawMessage(`{"id":"missed","senderId":"bob","content":"during outage","sentAt":"2024-01-02T10:02:00Z"}`),
		json.RawMessage(`{"id":"live","senderId":"bob","content":"live","sentAt":"2024-01-02T10:01:00Z"}`),
		json.RawMessage(`{"id":"h1","senderId":"bob","content":"before","sentAt":"2024-01-02T10:00:00Z"}`),
	}
	if err := fx.engine.Resync(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := []string{"h1", "live", "missed"}
	if got := threadIDs(fx.engine); !slices.Equal(got, want) {
		t.Errorf("thread = %v, want %v", got, want)
	}
	select {
	case evt := <-events:
		if p := evt.Payload.(HistoryEvent); len(p.Messages) != 3 {
			t.Errorf("history event carries %d messages, want 3", len(p.Messages))
		}
	case <-time.After(time.Second):
		t.Fatal("no chat.history event after resync")
	}
}

func TestResyncWithoutSelectionIsNoop(t *testing.T) {
	fx := newEngine(t, 0)
	fx.engine.history = func(context.Context, string, int, int) ([]json.RawMessage, error) {
		t.Error("history loaded without an active conversation")
		return nil, nil
	}
	if err := fx.engine.Resync(context.Background()); err != nil {
		t.Fatal(err)
	}
}
