package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const sessionService = "connect.v1.SessionService"

// SessionServiceServer reports daemon status and owns login and logout.
type SessionServiceServer interface {
	GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Register(context.Context, *RegisterRequest) (*LoginResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
	UpdateProfile(context.Context, *UpdateProfileRequest) (*LoginResponse, error)
}

var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: sessionService,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(sessionService, "GetStatus", func(srv any, ctx context.Context, in *GetStatusRequest) (*GetStatusResponse, error) {
			return srv.(SessionServiceServer).GetStatus(ctx, in)
		}),
		unaryMethod(sessionService, "Login", func(srv any, ctx context.Context, in *LoginRequest) (*LoginResponse, error) {
			return srv.(SessionServiceServer).Login(ctx, in)
		}),
		unaryMethod(sessionService, "Register", func(srv any, ctx context.Context, in *RegisterRequest) (*LoginResponse, error) {
			return srv.(SessionServiceServer).Register(ctx, in)
		}),
		unaryMethod(sessionService, "Logout", func(srv any, ctx context.Context, in *LogoutRequest) (*LogoutResponse, error) {
			return srv.(SessionServiceServer).Logout(ctx, in)
		}),
		unaryMethod(sessionService, "UpdateProfile", func(srv any, ctx context.Context, in *UpdateProfileRequest) (*LoginResponse, error) {
			return srv.(SessionServiceServer).UpdateProfile(ctx, in)
		}),
	},
	Metadata: "connect/v1/session.json",
}

// RegisterSessionServiceServer registers srv on s.
func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}

// SessionServiceClient is the client side of SessionService.
type SessionServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSessionServiceClient(cc grpc.ClientConnInterface) *SessionServiceClient {
	return &SessionServiceClient{cc: cc}
}

func (c *SessionServiceClient) GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*GetStatusResponse, error) {
	return invoke[GetStatusResponse](ctx, c.cc, sessionService, "GetStatus", in, opts)
}

func (c *SessionServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, sessionService, "Login", in, opts)
}

func (c *SessionServiceClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, sessionService, "Register", in, opts)
}

func (c *SessionServiceClient) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*LogoutResponse, error) {
	return invoke[LogoutResponse](ctx, c.cc, sessionService, "Logout", in, opts)
}

func (c *SessionServiceClient) UpdateProfile(ctx context.Context, in *UpdateProfileRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, sessionService, "UpdateProfile", in, opts)
}
