package api

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/faeterjconnect/connect/internal/backend"
	"github.com/faeterjconnect/connect/internal/platform"
	"github.com/faeterjconnect/connect/internal/rpc"
	"github.com/faeterjconnect/connect/internal/status"
)

// SessionService implements the SessionService gRPC service.
type SessionService struct {
	sessionName string
	startedAt   time.Time
	machine     *status.Machine
	adapter     *platform.Adapter
}

var _ rpc.SessionServiceServer = (*SessionService)(nil)

// NewSessionService creates a new session service.
func NewSessionService(sessionName string, machine *status.Machine, adapter *platform.Adapter) *SessionService {
	return &SessionService{
		sessionName: sessionName,
		startedAt:   time.Now(),
		machine:     machine,
		adapter:     adapter,
	}
}

func (s *SessionService) GetStatus(_ context.Context, _ *rpc.GetStatusRequest) (*rpc.GetStatusResponse, error) {
	resp := &rpc.GetStatusResponse{
		Session:  s.sessionName,
		Status:   string(s.machine.Current()),
		UptimeMs: time.Since(s.startedAt).Milliseconds(),
	}
	if s.adapter == nil {
		return resp, nil
	}

	engine := s.adapter.Engine()
	resp.Connected = engine.Connected()
	resp.ConversationCount = len(engine.Store().List())
	resp.ActiveID = engine.Active()
	if u, ok := s.adapter.Auth().User(); ok {
		resp.UserID = u.UserID
		resp.Username = u.Username
		resp.Email = u.Email
		resp.Role = u.Role
	}
	if exp, ok := s.adapter.Auth().Expiry(); ok {
		resp.TokenExpiresAtMs = exp.UnixMilli()
	}
	return resp, nil
}

func (s *SessionService) Login(ctx context.Context, req *rpc.LoginRequest) (*rpc.LoginResponse, error) {
	if s.adapter == nil {
		return nil, grpcstatus.Errorf(codes.Unavailable, "adapter not initialized")
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "email and password are required")
	}
	u, err := s.adapter.Login(ctx, email, req.Password)
	if err != nil {
		return nil, toStatus("login", err)
	}
	return &rpc.LoginResponse{UserID: u.UserID, Username: u.Username, Email: u.Email, Role: u.Role}, nil
}

func (s *SessionService) Register(ctx context.Context, req *rpc.RegisterRequest) (*rpc.LoginResponse, error) {
	if s.adapter == nil {
		return nil, grpcstatus.Errorf(codes.Unavailable, "adapter not initialized")
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "username, email and password are required")
	}
	u, err := s.adapter.Register(ctx, backend.RegisterRequest{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Role:     strings.ToUpper(req.Role),
		Turno:    strings.ToUpper(req.Turno),
	})
	if err != nil {
		return nil, toStatus("register", err)
	}
	return &rpc.LoginResponse{UserID: u.UserID, Username: u.Username, Email: u.Email, Role: u.Role}, nil
}

func (s *SessionService) Logout(_ context.Context, _ *rpc.LogoutRequest) (*rpc.LogoutResponse, error) {
	if s.adapter == nil {
		return nil, grpcstatus.Errorf(codes.Unavailable, "adapter not initialized")
	}
	if !s.adapter.IsLoggedIn() {
		return &rpc.LogoutResponse{Success: true, Message: "already logged out"}, nil
	}
	s.adapter.Logout("user request")
	return &rpc.LogoutResponse{Success: true, Message: "logged out"}, nil
}

func (s *SessionService) UpdateProfile(ctx context.Context, req *rpc.UpdateProfileRequest) (*rpc.LoginResponse, error) {
	if s.adapter == nil {
		return nil, grpcstatus.Errorf(codes.Unavailable, "adapter not initialized")
	}
	if !s.adapter.IsLoggedIn() {
		return nil, grpcstatus.Errorf(codes.Unauthenticated, "not logged in")
	}
	update := backend.UpdateUserRequest{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Turno:    strings.ToUpper(strings.TrimSpace(req.Turno)),
	}
	if update == (backend.UpdateUserRequest{}) {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "nothing to update")
	}
	u, err := s.adapter.UpdateProfile(ctx, update)
	if err != nil {
		return nil, toStatus("update profile", err)
	}
	return &rpc.LoginResponse{UserID: u.UserID, Username: u.Username, Email: u.Email, Role: u.Role}, nil
}
