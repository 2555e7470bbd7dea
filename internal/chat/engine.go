package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/faeterjconnect/connect/internal/bus"
	"github.com/faeterjconnect/connect/internal/transport"
)

// Transport is the broker session the engine drives.
type Transport interface {
	Connected() bool
	Connect(ctx context.Context) error
	Subscribe(channel string, h transport.Handler) error
	Unsubscribe()
	Publish(destination string, headers map[string]string, body []byte) error
	Disconnect()
}

// HistoryFunc loads one page of raw history for a conversation.
type HistoryFunc func(ctx context.Context, conversationID string, page, size int) ([]json.RawMessage, error)

// Identity returns the local user's id and display name.
type Identity func() (userID, username string)

// MessageEvent is the payload of chat.message and chat.confirmed.
type MessageEvent struct {
	Message    Message
	ReplacedID string
}

// HistoryEvent is the payload of chat.history.
type HistoryEvent struct {
	ConversationID string
	Messages       []Message
}

// TypingEvent is the payload of chat.typing.
type TypingEvent struct {
	ConversationID string
	Users          []string
	Hint           string
}

// Options configures an Engine. Zero windows use the package defaults.
type Options struct {
	Transport    Transport
	History      HistoryFunc
	Identity     Identity
	Bus          *bus.Bus
	Logger       *zap.Logger
	PageSize     int
	MatchWindow  time.Duration
	TypingWindow time.Duration
	Now          func() time.Time
}

// Engine composes the conversation store, reconciler and typing tracker
// around one broker session. All mutations of the active thread happen under
// mu, including typing countdown expiry.
type Engine struct {
	tr       Transport
	history  HistoryFunc
	identity Identity
	bus      *bus.Bus
	logger   *zap.Logger
	pageSize int
	now      func() time.Time

	store   *Store
	limiter *EmitLimiter

	// selMu orders transport subscription changes. It is never held
	// together with mu across a transport call.
	selMu sync.Mutex

	mu     sync.Mutex
	rec    *Reconciler
	typing *TypingTracker
	active string
	gen    uint64
}

// NewEngine builds an engine from opts.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		tr:       opts.Transport,
		history:  opts.History,
		identity: opts.Identity,
		bus:      opts.Bus,
		logger:   opts.Logger,
		pageSize: opts.PageSize,
		now:      opts.Now,
		store:    NewStore(),
		limiter:  NewEmitLimiter(opts.TypingWindow),
		rec:      NewReconciler(opts.MatchWindow),
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.pageSize <= 0 {
		e.pageSize = 30
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.identity == nil {
		e.identity = func() (string, string) { return "", "" }
	}
	e.typing = NewTypingTracker(opts.TypingWindow, e.typingExpired)
	return e
}

// Store exposes the conversation list.
func (e *Engine) Store() *Store { return e.store }

// Connected reports broker presence.
func (e *Engine) Connected() bool { return e.tr.Connected() }

// SetConversations replaces the conversation list.
func (e *Engine) SetConversations(list []Conversation) {
	e.store.Replace(list)
	e.bus.Emit(bus.KindChatConversations, e.store.List())
}

// AddConversation prepends c if it is new.
func (e *Engine) AddConversation(c Conversation) bool {
	added := e.store.Prepend(c)
	if added {
		e.bus.Emit(bus.KindChatConversations, e.store.List())
	}
	return added
}

// Active returns the selected conversation id.
func (e *Engine) Active() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Select makes conversationID the active thread: typing state and pending
// records are reset, the previous channel is released, the new channel is
// subscribed, and the first history page is merged in.
func (e *Engine) Select(ctx context.Context, conversationID string) error {
	conv, ok := e.store.Get(conversationID)
	if !ok {
		return fmt.Errorf("%w: unknown conversation %q", ErrNoConversation, conversationID)
	}

	e.selMu.Lock()
	e.mu.Lock()
	e.gen++
	gen := e.gen
	e.typing.Reset()
	e.typing.SetSelf(e.selfID())
	e.rec.Reset(conversationID)
	e.active = conversationID
	e.mu.Unlock()

	e.bus.Emit(bus.KindChatSelected, conv)
	e.bus.Emit(bus.KindChatTyping, TypingEvent{ConversationID: conversationID})

	e.tr.Unsubscribe()
	err := e.tr.Subscribe(transport.ConversationTopic(conversationID), e.handler(gen))
	e.selMu.Unlock()
	if err != nil {
		e.logger.Warn("subscribe failed", zap.String("conversation_id", conversationID), zap.Error(err))
		e.bus.Notify("error", "could not subscribe to conversation")
	}

	return e.loadHistory(ctx, gen, conv)
}

// Resync reloads the first history page of the active conversation, as after
// a broker reconnect. Messages already in the thread are kept once.
func (e *Engine) Resync(ctx context.Context) error {
	e.mu.Lock()
	active, gen := e.active, e.gen
	e.mu.Unlock()
	if active == "" {
		return nil
	}
	conv, ok := e.store.Get(active)
	if !ok {
		conv = Conversation{ID: active}
	}
	return e.loadHistory(ctx, gen, conv)
}

func (e *Engine) loadHistory(ctx context.Context, gen uint64, conv Conversation) error {
	if e.history == nil {
		return nil
	}
	raw, err := e.history(ctx, conv.ID, 0, e.pageSize)
	if err != nil {
		e.logger.Warn("load history failed", zap.String("conversation_id", conv.ID), zap.Error(err))
		e.bus.Notify("error", "failed to load messages")
		return fmt.Errorf("load history: %w", err)
	}

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return nil
	}
	page := DecodeMessages(raw, e.resolver(conv), e.now())
	e.rec.MergeHistory(page)
	thread := e.rec.Messages()
	e.mu.Unlock()

	e.bus.Emit(bus.KindChatHistory, HistoryEvent{ConversationID: conv.ID, Messages: thread})
	return nil
}

// handler binds inbound frames to the selection generation they were
// subscribed for.
func (e *Engine) handler(gen uint64) transport.Handler {
	return func(body []byte) {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.gen != gen {
			return
		}
		e.ingestLocked(body)
	}
}

func (e *Engine) ingestLocked(body []byte) {
	if e.active == "" {
		return
	}
	in, err := DecodeEvent(body)
	if err != nil {
		e.logger.Warn("dropping malformed event", zap.Error(err), zap.ByteString("body", truncate(body, 256)))
		return
	}

	if in.Typing != nil {
		if in.Typing.ConversationID != "" && in.Typing.ConversationID != e.active {
			return
		}
		if e.typing.Signal(in.Typing.UserID) {
			e.emitTypingLocked()
		}
		return
	}

	conv, _ := e.store.Get(e.active)
	if conv.ID == "" {
		conv.ID = e.active
	}
	msg, ok := ToMessage(in.Raw, e.resolver(conv), e.now())
	if !ok {
		return
	}
	if msg.ConversationID != e.active {
		return
	}

	selfID, _ := e.identity()
	outcome, replaced := e.rec.Apply(msg, selfID, e.now())
	switch outcome {
	case Appended:
		e.bus.Emit(bus.KindChatMessage, MessageEvent{Message: msg})
	case Replaced:
		e.bus.Emit(bus.KindChatConfirmed, MessageEvent{Message: msg, ReplacedID: replaced})
	}
	if e.typing.Remove(msg.SenderID) {
		e.emitTypingLocked()
	}
}

// Send publishes text to the active conversation behind an optimistic
// placeholder. While disconnected it notifies, triggers a reconnect and
// returns transport.ErrNotConnected without queueing.
func (e *Engine) Send(ctx context.Context, text string) (Message, error) {
	return e.SendTo(ctx, "", text)
}

// SendTo publishes text to conversationID, or to the active conversation
// when it is empty. The selection never changes: only the active thread
// gets an optimistic placeholder, other conversations learn of the message
// through their own history.
func (e *Engine) SendTo(ctx context.Context, conversationID, text string) (Message, error) {
	e.mu.Lock()
	target := conversationID
	if target == "" {
		target = e.active
	}
	if target == "" {
		e.mu.Unlock()
		return Message{}, ErrNoConversation
	}
	conv, known := e.store.Get(target)
	if !known && target != e.active {
		e.mu.Unlock()
		return Message{}, fmt.Errorf("%w: unknown conversation %q", ErrNoConversation, target)
	}
	if !e.tr.Connected() {
		e.mu.Unlock()
		e.bus.Notify("error", "connection unavailable, reconnecting…")
		if err := e.tr.Connect(ctx); err != nil {
			e.logger.Warn("reconnect failed", zap.Error(err))
		}
		return Message{}, transport.ErrNotConnected
	}
	content := strings.TrimSpace(text)
	if content == "" {
		e.mu.Unlock()
		return Message{}, ErrEmptyMessage
	}

	selfID, _ := e.identity()
	now := e.now()
	msg := Message{
		ID:             NewTempID(now),
		ConversationID: target,
		SenderID:       selfID,
		SenderName:     e.resolver(conv).Name(selfID),
		Content:        content,
		Timestamp:      now.UTC().Truncate(time.Millisecond),
		Kind:           KindText,
	}
	inThread := target == e.active
	if inThread {
		e.rec.AddOptimistic(msg, now)
	}
	e.mu.Unlock()

	if inThread {
		e.bus.Emit(bus.KindChatMessage, MessageEvent{Message: msg})
	}

	body, err := json.Marshal(map[string]string{
		"conversationId": msg.ConversationID,
		"content":        msg.Content,
		"type":           KindText,
	})
	if err != nil {
		return msg, err
	}
	if err := e.tr.Publish(transport.DestChatSend, nil, body); err != nil {
		e.logger.Warn("send failed", zap.String("conversation_id", msg.ConversationID), zap.Error(err))
		e.bus.Notify("error", "failed to send message")
		return msg, err
	}
	return msg, nil
}

// Typing emits a typing signal for the active conversation, at most once per
// window. It reports whether a signal was published.
func (e *Engine) Typing() bool {
	active := e.Active()
	if active == "" || !e.tr.Connected() {
		return false
	}
	if !e.limiter.Allow(e.now()) {
		return false
	}
	err := e.tr.Publish(transport.DestChatTyping, map[string]string{"conversationId": active}, []byte("{}"))
	if err != nil {
		e.logger.Debug("typing publish failed", zap.Error(err))
		return false
	}
	return true
}

// Thread returns the active conversation id and its messages.
func (e *Engine) Thread() (string, []Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active, e.rec.Messages()
}

// TypingHint renders the typing line of the active conversation.
func (e *Engine) TypingHint() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	conv, _ := e.store.Get(e.active)
	return TypingHint(conv, e.typing.Users())
}

// Close releases the subscription, stops countdowns and disconnects.
func (e *Engine) Close() {
	e.selMu.Lock()
	defer e.selMu.Unlock()

	e.mu.Lock()
	e.gen++
	e.typing.Reset()
	e.rec.Reset("")
	e.active = ""
	e.mu.Unlock()

	e.tr.Unsubscribe()
	e.tr.Disconnect()
}

func (e *Engine) typingExpired() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitTypingLocked()
}

func (e *Engine) emitTypingLocked() {
	conv, _ := e.store.Get(e.active)
	users := e.typing.Users()
	e.bus.Emit(bus.KindChatTyping, TypingEvent{
		ConversationID: e.active,
		Users:          users,
		Hint:           TypingHint(conv, users),
	})
}

func (e *Engine) resolver(conv Conversation) Resolver {
	id, name := e.identity()
	return Resolver{Conversation: conv, SelfID: id, SelfName: name}
}

func (e *Engine) selfID() string {
	id, _ := e.identity()
	return id
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
