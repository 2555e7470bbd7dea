package model

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/faeterjconnect/connect/internal/backend"
	"github.com/faeterjconnect/connect/internal/rpc"
	"github.com/faeterjconnect/connect/internal/tui/client"
	"github.com/faeterjconnect/connect/internal/tui/ui"
)

// Change flags tell the UI which parts of the view model an event touched.
type Change uint8

const (
	ChangeStatus Change = 1 << iota
	ChangeConversations
	ChangeThread
	ChangeTyping
	ChangeFlash
	ChangeVehicles
)

// Has reports whether c includes any of the flags in o.
func (c Change) Has(o Change) bool { return c&o != 0 }

// ViewModel caches daemon state and folds the WatchEvents stream into it.
type ViewModel struct {
	mu sync.RWMutex

	client        *client.Client
	status        *rpc.GetStatusResponse
	conversations []rpc.Conversation
	thread        rpc.GetThreadResponse
	vehicles      *rpc.NearbyVehiclesResponse
	posts         []backend.Post
	Flash         *ui.FlashModel
}

// NewViewModel creates a new view model connected to the daemon client.
func NewViewModel(c *client.Client) *ViewModel {
	return &ViewModel{
		client: c,
		Flash:  ui.NewFlashModel(),
	}
}

// LoadStatus fetches current session status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.client.Session.GetStatus(ctx, &rpc.GetStatusRequest{})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = resp
	vm.thread.Connected = resp.Connected
	vm.mu.Unlock()
	return nil
}

// LoadConversations fetches the conversation list, from the backend when
// refresh is set.
func (vm *ViewModel) LoadConversations(ctx context.Context, refresh bool) error {
	resp, err := vm.client.Chat.ListConversations(ctx, &rpc.ListConversationsRequest{Refresh: refresh})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.conversations = resp.Conversations
	vm.mu.Unlock()
	return nil
}

// Select makes id the active conversation and loads its first history page.
func (vm *ViewModel) Select(ctx context.Context, id string) error {
	resp, err := vm.client.Chat.Select(ctx, &rpc.SelectRequest{ConversationID: id})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.thread = *resp
	vm.mu.Unlock()
	return nil
}

// OpenConversation opens or creates the 1:1 conversation with a user.
func (vm *ViewModel) OpenConversation(ctx context.Context, otherUserID string) (rpc.Conversation, error) {
	resp, err := vm.client.Chat.OpenConversation(ctx, &rpc.OpenConversationRequest{OtherUserID: otherUserID})
	if err != nil {
		return rpc.Conversation{}, err
	}
	if resp.Created {
		vm.mu.Lock()
		vm.conversations = append([]rpc.Conversation{resp.Conversation}, vm.conversations...)
		vm.mu.Unlock()
	}
	return resp.Conversation, nil
}

// SendText sends text to the active conversation. The optimistic copy is
// merged immediately so the thread does not wait for the event stream.
func (vm *ViewModel) SendText(ctx context.Context, text string) error {
	resp, err := vm.client.Chat.SendText(ctx, &rpc.SendTextRequest{Text: text})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	if resp.Message.ConversationID == vm.thread.ConversationID {
		vm.thread.Messages = upsertMessage(vm.thread.Messages, resp.Message, "")
	}
	vm.mu.Unlock()
	return nil
}

// Typing notifies the daemon of a composer keystroke. The daemon rate-limits.
func (vm *ViewModel) Typing(ctx context.Context) {
	_, _ = vm.client.Chat.Typing(ctx, &rpc.TypingRequest{})
}

// SearchMessages performs a search query over the local cache.
func (vm *ViewModel) SearchMessages(ctx context.Context, query string) ([]rpc.SearchResult, error) {
	resp, err := vm.client.Chat.SearchMessages(ctx, &rpc.SearchMessagesRequest{Query: query, Limit: 50})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Login authenticates the daemon session.
func (vm *ViewModel) Login(ctx context.Context, email, password string) error {
	_, err := vm.client.Session.Login(ctx, &rpc.LoginRequest{Email: email, Password: password})
	return err
}

// Register creates an account and logs in.
func (vm *ViewModel) Register(ctx context.Context, req *rpc.RegisterRequest) error {
	_, err := vm.client.Session.Register(ctx, req)
	return err
}

// Logout ends the daemon session and drops cached state.
func (vm *ViewModel) Logout(ctx context.Context) error {
	if _, err := vm.client.Session.Logout(ctx, &rpc.LogoutRequest{}); err != nil {
		return err
	}
	vm.reset()
	return nil
}

// LoadVehicles fetches nearby buses.
func (vm *ViewModel) LoadVehicles(ctx context.Context) error {
	resp, err := vm.client.Feed.NearbyVehicles(ctx, &rpc.NearbyVehiclesRequest{})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.vehicles = resp
	vm.mu.Unlock()
	return nil
}

// WatchVehicles follows the daemon's vehicle poller until ctx ends or the
// stream fails.
func (vm *ViewModel) WatchVehicles(ctx context.Context, onChange func(Change)) error {
	stream, err := vm.client.Feed.WatchVehicles(ctx, &rpc.NearbyVehiclesRequest{})
	if err != nil {
		return err
	}
	for {
		resp, err := stream.Recv()
		if err != nil {
			return err
		}
		onChange(vm.ApplyVehicles(resp))
	}
}

// ApplyVehicles stores a poll result. A failed poll keeps the previous
// snapshot and raises a flash instead.
func (vm *ViewModel) ApplyVehicles(resp *rpc.NearbyVehiclesResponse) Change {
	if resp.Error != "" {
		vm.Flash.Notice("error", resp.Error)
		return ChangeFlash
	}
	vm.mu.Lock()
	vm.vehicles = resp
	vm.mu.Unlock()
	return ChangeVehicles
}

// LoadPosts fetches the first page of the feed.
func (vm *ViewModel) LoadPosts(ctx context.Context) error {
	resp, err := vm.client.Feed.ListPosts(ctx, &rpc.ListPostsRequest{Limit: 30})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.posts = resp.Posts
	vm.mu.Unlock()
	return nil
}

// ToggleLike likes or unlikes a post and updates its counters.
func (vm *ViewModel) ToggleLike(ctx context.Context, postID string) error {
	liked := false
	vm.mu.RLock()
	for _, p := range vm.posts {
		if p.PostID == postID {
			liked = p.LikedByMe
		}
	}
	vm.mu.RUnlock()

	var (
		resp *rpc.LikeResponse
		err  error
	)
	if liked {
		resp, err = vm.client.Feed.Unlike(ctx, &rpc.PostRef{PostID: postID})
	} else {
		resp, err = vm.client.Feed.Like(ctx, &rpc.PostRef{PostID: postID})
	}
	if err != nil {
		return err
	}
	vm.mu.Lock()
	for i := range vm.posts {
		if vm.posts[i].PostID == postID {
			vm.posts[i].LikeCount = resp.LikeCount
			vm.posts[i].LikedByMe = resp.LikedByMe
		}
	}
	vm.mu.Unlock()
	return nil
}

// Watch streams daemon events into the view model until ctx is done,
// reconnecting after stream failures. onChange runs after each applied event.
func (vm *ViewModel) Watch(ctx context.Context, onChange func(Change)) {
	backoff := time.Second
	for ctx.Err() == nil {
		err := vm.watchOnce(ctx, onChange)
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, io.EOF) {
			vm.Flash.Warn("event stream lost, retrying")
			onChange(ChangeFlash)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
}

func (vm *ViewModel) watchOnce(ctx context.Context, onChange func(Change)) error {
	stream, err := vm.client.Chat.WatchEvents(ctx, &rpc.WatchEventsRequest{
		Prefixes: []string{"chat.", "transport.", "session.", "notice"},
	})
	if err != nil {
		return err
	}
	for {
		env, err := stream.Recv()
		if err != nil {
			return err
		}
		if c := vm.ApplyEvent(env); c != 0 {
			onChange(c)
		}
	}
}

// ApplyEvent folds one daemon event into the cached state.
func (vm *ViewModel) ApplyEvent(env *rpc.EventEnvelope) Change {
	switch env.Kind {
	case "chat.message", "chat.confirmed":
		var p rpc.MessageEventPayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return 0
		}
		vm.mu.Lock()
		defer vm.mu.Unlock()
		if p.Message.ConversationID != "" && p.Message.ConversationID != vm.thread.ConversationID {
			return 0
		}
		vm.thread.Messages = upsertMessage(vm.thread.Messages, p.Message, p.ReplacedID)
		return ChangeThread

	case "chat.history":
		var p rpc.GetThreadResponse
		if json.Unmarshal(env.Payload, &p) != nil {
			return 0
		}
		vm.mu.Lock()
		defer vm.mu.Unlock()
		if p.ConversationID != vm.thread.ConversationID {
			return 0
		}
		vm.thread.Messages = p.Messages
		return ChangeThread

	case "chat.typing":
		var p rpc.TypingEventPayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return 0
		}
		vm.mu.Lock()
		defer vm.mu.Unlock()
		if p.ConversationID != vm.thread.ConversationID {
			return 0
		}
		vm.thread.TypingHint = p.Hint
		return ChangeTyping

	case "chat.conversations":
		var list []rpc.Conversation
		if json.Unmarshal(env.Payload, &list) != nil {
			return 0
		}
		vm.mu.Lock()
		vm.conversations = list
		vm.mu.Unlock()
		return ChangeConversations

	case "transport.connected", "transport.disconnected":
		connected := env.Kind == "transport.connected"
		vm.mu.Lock()
		vm.thread.Connected = connected
		if vm.status != nil {
			vm.status.Connected = connected
		}
		vm.mu.Unlock()
		return ChangeStatus | ChangeTyping

	case "session.status_changed":
		var p rpc.StatusPayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return 0
		}
		vm.mu.Lock()
		if vm.status == nil {
			vm.status = &rpc.GetStatusResponse{Session: env.Session}
		}
		vm.status.Status = p.To
		vm.mu.Unlock()
		return ChangeStatus

	case "session.logged_out":
		vm.reset()
		vm.Flash.Warn("logged out")
		return ChangeStatus | ChangeConversations | ChangeThread | ChangeFlash

	case "notice":
		var p rpc.NoticePayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return 0
		}
		vm.Flash.Notice(p.Level, p.Message)
		return ChangeFlash
	}
	return 0
}

func (vm *ViewModel) reset() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.status != nil {
		vm.status.UserID, vm.status.Username, vm.status.Email = "", "", ""
		vm.status.Connected = false
	}
	vm.conversations = nil
	vm.thread = rpc.GetThreadResponse{}
	vm.posts = nil
}

// upsertMessage replaces the entry with replacedID or m.ID, or appends m.
func upsertMessage(list []rpc.Message, m rpc.Message, replacedID string) []rpc.Message {
	for i := range list {
		if (replacedID != "" && list[i].ID == replacedID) || list[i].ID == m.ID {
			out := append([]rpc.Message(nil), list...)
			out[i] = m
			return out
		}
	}
	return append(list, m)
}

// FindConversation resolves a conversation by id or by a case-insensitive
// match on its display name; exact names win over substrings.
func (vm *ViewModel) FindConversation(query string) (rpc.Conversation, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return rpc.Conversation{}, false
	}
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	var partial *rpc.Conversation
	for i, c := range vm.conversations {
		name := strings.ToLower(c.DisplayName)
		if c.ID == query || name == q {
			return c, true
		}
		if partial == nil && strings.Contains(name, q) {
			partial = &vm.conversations[i]
		}
	}
	if partial != nil {
		return *partial, true
	}
	return rpc.Conversation{}, false
}

// GetStatus returns a snapshot of session status.
func (vm *ViewModel) GetStatus() *rpc.GetStatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.status == nil {
		return nil
	}
	s := *vm.status
	return &s
}

// GetConversations returns a snapshot of the conversation list.
func (vm *ViewModel) GetConversations() []rpc.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return append([]rpc.Conversation(nil), vm.conversations...)
}

// GetThread returns a snapshot of the active thread.
func (vm *ViewModel) GetThread() rpc.GetThreadResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	t := vm.thread
	t.Messages = append([]rpc.Message(nil), vm.thread.Messages...)
	return t
}

// GetVehicles returns the last vehicle snapshot.
func (vm *ViewModel) GetVehicles() *rpc.NearbyVehiclesResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.vehicles
}

// GetPosts returns a snapshot of the feed.
func (vm *ViewModel) GetPosts() []backend.Post {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return append([]backend.Post(nil), vm.posts...)
}
