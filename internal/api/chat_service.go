package api

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/faeterjconnect/connect/internal/bus"
	"github.com/faeterjconnect/connect/internal/chat"
	"github.com/faeterjconnect/connect/internal/platform"
	"github.com/faeterjconnect/connect/internal/rpc"
	"github.com/faeterjconnect/connect/internal/store"
	intsync "github.com/faeterjconnect/connect/internal/sync"
)

const cachedPageSize = 50

// ChatService implements the ChatService gRPC service on top of the chat
// engine, with search served from the local cache.
type ChatService struct {
	adapter     *platform.Adapter
	db          *store.DB
	bus         *bus.Bus
	sessionName string
	logger      *zap.Logger
}

var _ rpc.ChatServiceServer = (*ChatService)(nil)

// NewChatService creates a new chat service.
func NewChatService(adapter *platform.Adapter, db *store.DB, b *bus.Bus, sessionName string, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{adapter: adapter, db: db, bus: b, sessionName: sessionName, logger: logger}
}

func (s *ChatService) selfID() string {
	u, _ := s.adapter.Auth().User()
	return u.UserID
}

func (s *ChatService) requireLogin() error {
	if !s.adapter.IsLoggedIn() {
		return grpcstatus.Errorf(codes.Unauthenticated, "not logged in")
	}
	return nil
}

func (s *ChatService) ListConversations(ctx context.Context, req *rpc.ListConversationsRequest) (*rpc.ListConversationsResponse, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	list := s.adapter.Engine().Store().List()
	if req.Refresh || len(list) == 0 {
		fresh, err := s.adapter.LoadConversations(ctx)
		if err != nil {
			if len(list) == 0 {
				list = s.adapter.Engine().Store().List()
			}
			if len(list) == 0 {
				return nil, toStatus("list conversations", err)
			}
		} else {
			list = fresh
		}
	}
	return &rpc.ListConversationsResponse{
		Conversations: conversationsToRPC(list, s.selfID()),
		SyncedAtMs:    s.syncedAt(""),
	}, nil
}

// syncedAt reads a sync marker; failures only cost the annotation.
func (s *ChatService) syncedAt(conversationID string) int64 {
	if s.db == nil {
		return 0
	}
	at, err := intsync.LastSynced(s.db, conversationID)
	if err != nil {
		s.logger.Debug("read sync marker", zap.String("conversation_id", conversationID), zap.Error(err))
		return 0
	}
	if at.IsZero() {
		return 0
	}
	return at.UnixMilli()
}

func (s *ChatService) OpenConversation(ctx context.Context, req *rpc.OpenConversationRequest) (*rpc.OpenConversationResponse, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.OtherUserID) == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "other user id is required")
	}
	c, created, err := s.adapter.OpenConversation(ctx, strings.TrimSpace(req.OtherUserID))
	if err != nil {
		return nil, toStatus("open conversation", err)
	}
	return &rpc.OpenConversationResponse{Conversation: conversationToRPC(c, s.selfID()), Created: created}, nil
}

func (s *ChatService) Select(ctx context.Context, req *rpc.SelectRequest) (*rpc.GetThreadResponse, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	if err := s.adapter.Engine().Select(ctx, req.ConversationID); err != nil {
		// History failures still leave the conversation selected and subscribed.
		if active := s.adapter.Engine().Active(); active != req.ConversationID {
			return nil, toStatus("select", err)
		}
		s.logger.Warn("select completed without history", zap.String("conversation_id", req.ConversationID), zap.Error(err))
		resp := s.thread()
		if len(resp.Messages) == 0 && s.db != nil {
			if msgs, _, cerr := s.cachedPage(req.ConversationID, 0, cachedPageSize); cerr == nil && len(msgs) > 0 {
				resp.Messages, resp.Cached = msgs, true
			}
		}
		return resp, nil
	}
	return s.thread(), nil
}

func (s *ChatService) GetThread(_ context.Context, _ *rpc.GetThreadRequest) (*rpc.GetThreadResponse, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	return s.thread(), nil
}

func (s *ChatService) thread() *rpc.GetThreadResponse {
	engine := s.adapter.Engine()
	self := s.selfID()
	id, msgs := engine.Thread()
	resp := &rpc.GetThreadResponse{
		ConversationID: id,
		Messages:       messagesToRPC(msgs, self),
		TypingHint:     engine.TypingHint(),
		Connected:      engine.Connected(),
	}
	if c, ok := engine.Store().Get(id); ok {
		resp.DisplayName = c.DisplayName(self)
	}
	return resp
}

func (s *ChatService) SendText(ctx context.Context, req *rpc.SendTextRequest) (*rpc.SendTextResponse, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	m, err := s.adapter.Engine().SendTo(ctx, strings.TrimSpace(req.ConversationID), req.Text)
	if err != nil {
		return nil, toStatus("send", err)
	}
	return &rpc.SendTextResponse{Message: messageToRPC(m, s.selfID())}, nil
}

func (s *ChatService) Typing(_ context.Context, _ *rpc.TypingRequest) (*rpc.TypingResponse, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	return &rpc.TypingResponse{Sent: s.adapter.Engine().Typing()}, nil
}

func (s *ChatService) SearchMessages(_ context.Context, req *rpc.SearchMessagesRequest) (*rpc.SearchMessagesResponse, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	if s.db == nil {
		return nil, grpcstatus.Errorf(codes.Unavailable, "cache not available")
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "query is required")
	}
	results, err := s.db.SearchMessages(req.Query, req.ConversationID, req.Limit)
	if errors.Is(err, store.ErrNoSearchIndex) {
		return nil, grpcstatus.Errorf(codes.Unavailable, "search index not available")
	}
	if err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "search messages: %v", err)
	}
	out := &rpc.SearchMessagesResponse{Results: make([]rpc.SearchResult, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, rpc.SearchResult{Message: storeMessageToRPC(r.Message), Snippet: r.Snippet})
	}
	return out, nil
}

// ListMessages pages the local cache of one conversation, so a thread can be
// read while the backend is unreachable.
func (s *ChatService) ListMessages(_ context.Context, req *rpc.ListMessagesRequest) (*rpc.ListMessagesResponse, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	if s.db == nil {
		return nil, grpcstatus.Errorf(codes.Unavailable, "cache not available")
	}
	id := strings.TrimSpace(req.ConversationID)
	if id == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "conversation id is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = cachedPageSize
	}
	msgs, more, err := s.cachedPage(id, req.BeforeUnixMs, limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list messages: %v", err)
	}
	return &rpc.ListMessagesResponse{
		ConversationID: id,
		DisplayName:    s.displayName(id),
		Messages:       msgs,
		HasMore:        more,
		SyncedAtMs:     s.syncedAt(id),
	}, nil
}

// cachedPage returns up to limit cached messages before beforeMs, oldest
// first.
func (s *ChatService) cachedPage(conversationID string, beforeMs int64, limit int) ([]rpc.Message, bool, error) {
	rows, err := s.db.ListMessages(conversationID, beforeMs, limit)
	if err != nil {
		return nil, false, err
	}
	out := make([]rpc.Message, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = storeMessageToRPC(r)
	}
	return out, len(rows) == limit, nil
}

func (s *ChatService) displayName(conversationID string) string {
	self := s.selfID()
	if c, ok := s.adapter.Engine().Store().Get(conversationID); ok {
		return c.DisplayName(self)
	}
	c, ok, err := intsync.CachedConversation(s.db, conversationID)
	if err != nil {
		s.logger.Debug("cached conversation lookup", zap.String("conversation_id", conversationID), zap.Error(err))
	}
	if !ok {
		return ""
	}
	return c.DisplayName(self)
}

func (s *ChatService) ListUsers(ctx context.Context, req *rpc.ListUsersRequest) (*rpc.ListUsersResponse, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	size := req.Size
	if size <= 0 {
		size = 20
	}
	page, err := s.adapter.API().Users(ctx, req.Page, size, req.Role)
	if err != nil {
		return nil, toStatus("list users", err)
	}
	out := &rpc.ListUsersResponse{TotalPages: page.TotalPages, Last: page.Last}
	self := s.selfID()
	for _, u := range page.Content {
		if chat.SameUser(u.UserID, self) {
			continue
		}
		out.Users = append(out.Users, rpc.Participant{UserID: u.UserID, Username: u.Username, Email: u.Email})
	}
	return out, nil
}

// WatchEvents streams bus events until the client goes away. Slow clients
// lose events rather than stall the daemon.
func (s *ChatService) WatchEvents(req *rpc.WatchEventsRequest, stream grpc.ServerStreamingServer[rpc.EventEnvelope]) error {
	ch, unsub := s.bus.Subscribe("", 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			if !matches(evt.Kind, req.Prefixes) {
				continue
			}
			payload, err := eventPayload(evt, s.selfID())
			if err != nil {
				s.logger.Warn("encode event payload", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if err := stream.Send(&rpc.EventEnvelope{
				EventID:          uuid.New().String(),
				Session:          s.sessionName,
				OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
				Kind:             evt.Kind,
				PayloadVersion:   1,
				Payload:          payload,
			}); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func matches(kind string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(kind, p) {
			return true
		}
	}
	return false
}
