package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const chatService = "connect.v1.ChatService"

// ChatServiceServer drives the chat engine.
type ChatServiceServer interface {
	ListConversations(context.Context, *ListConversationsRequest) (*ListConversationsResponse, error)
	OpenConversation(context.Context, *OpenConversationRequest) (*OpenConversationResponse, error)
	Select(context.Context, *SelectRequest) (*GetThreadResponse, error)
	GetThread(context.Context, *GetThreadRequest) (*GetThreadResponse, error)
	SendText(context.Context, *SendTextRequest) (*SendTextResponse, error)
	Typing(context.Context, *TypingRequest) (*TypingResponse, error)
	SearchMessages(context.Context, *SearchMessagesRequest) (*SearchMessagesResponse, error)
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	ListUsers(context.Context, *ListUsersRequest) (*ListUsersResponse, error)
	WatchEvents(*WatchEventsRequest, grpc.ServerStreamingServer[EventEnvelope]) error
}

var ChatServiceDesc = grpc.ServiceDesc{
	ServiceName: chatService,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(chatService, "ListConversations", func(srv any, ctx context.Context, in *ListConversationsRequest) (*ListConversationsResponse, error) {
			return srv.(ChatServiceServer).ListConversations(ctx, in)
		}),
		unaryMethod(chatService, "OpenConversation", func(srv any, ctx context.Context, in *OpenConversationRequest) (*OpenConversationResponse, error) {
			return srv.(ChatServiceServer).OpenConversation(ctx, in)
		}),
		unaryMethod(chatService, "Select", func(srv any, ctx context.Context, in *SelectRequest) (*GetThreadResponse, error) {
			return srv.(ChatServiceServer).Select(ctx, in)
		}),
		unaryMethod(chatService, "GetThread", func(srv any, ctx context.Context, in *GetThreadRequest) (*GetThreadResponse, error) {
			return srv.(ChatServiceServer).GetThread(ctx, in)
		}),
		unaryMethod(chatService, "SendText", func(srv any, ctx context.Context, in *SendTextRequest) (*SendTextResponse, error) {
			return srv.(ChatServiceServer).SendText(ctx, in)
		}),
		unaryMethod(chatService, "Typing", func(srv any, ctx context.Context, in *TypingRequest) (*TypingResponse, error) {
			return srv.(ChatServiceServer).Typing(ctx, in)
		}),
		unaryMethod(chatService, "SearchMessages", func(srv any, ctx context.Context, in *SearchMessagesRequest) (*SearchMessagesResponse, error) {
			return srv.(ChatServiceServer).SearchMessages(ctx, in)
		}),
		unaryMethod(chatService, "ListMessages", func(srv any, ctx context.Context, in *ListMessagesRequest) (*ListMessagesResponse, error) {
			return srv.(ChatServiceServer).ListMessages(ctx, in)
		}),
		unaryMethod(chatService, "ListUsers", func(srv any, ctx context.Context, in *ListUsersRequest) (*ListUsersResponse, error) {
			return srv.(ChatServiceServer).ListUsers(ctx, in)
		}),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEvents",
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "connect/v1/chat.json",
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchEventsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ChatServiceServer).WatchEvents(in, &grpc.GenericServerStream[WatchEventsRequest, EventEnvelope]{ServerStream: stream})
}

// RegisterChatServiceServer registers srv on s.
func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatServiceDesc, srv)
}

// ChatServiceClient is the client side of ChatService.
type ChatServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewChatServiceClient(cc grpc.ClientConnInterface) *ChatServiceClient {
	return &ChatServiceClient{cc: cc}
}

func (c *ChatServiceClient) ListConversations(ctx context.Context, in *ListConversationsRequest, opts ...grpc.CallOption) (*ListConversationsResponse, error) {
	return invoke[ListConversationsResponse](ctx, c.cc, chatService, "ListConversations", in, opts)
}

func (c *ChatServiceClient) OpenConversation(ctx context.Context, in *OpenConversationRequest, opts ...grpc.CallOption) (*OpenConversationResponse, error) {
	return invoke[OpenConversationResponse](ctx, c.cc, chatService, "OpenConversation", in, opts)
}

func (c *ChatServiceClient) Select(ctx context.Context, in *SelectRequest, opts ...grpc.CallOption) (*GetThreadResponse, error) {
	return invoke[GetThreadResponse](ctx, c.cc, chatService, "Select", in, opts)
}

func (c *ChatServiceClient) GetThread(ctx context.Context, in *GetThreadRequest, opts ...grpc.CallOption) (*GetThreadResponse, error) {
	return invoke[GetThreadResponse](ctx, c.cc, chatService, "GetThread", in, opts)
}

func (c *ChatServiceClient) SendText(ctx context.Context, in *SendTextRequest, opts ...grpc.CallOption) (*SendTextResponse, error) {
	return invoke[SendTextResponse](ctx, c.cc, chatService, "SendText", in, opts)
}

func (c *ChatServiceClient) Typing(ctx context.Context, in *TypingRequest, opts ...grpc.CallOption) (*TypingResponse, error) {
	return invoke[TypingResponse](ctx, c.cc, chatService, "Typing", in, opts)
}

func (c *ChatServiceClient) SearchMessages(ctx context.Context, in *SearchMessagesRequest, opts ...grpc.CallOption) (*SearchMessagesResponse, error) {
	return invoke[SearchMessagesResponse](ctx, c.cc, chatService, "SearchMessages", in, opts)
}

func (c *ChatServiceClient) ListMessages(ctx context.Context, in *ListMessagesRequest, opts ...grpc.CallOption) (*ListMessagesResponse, error) {
	return invoke[ListMessagesResponse](ctx, c.cc, chatService, "ListMessages", in, opts)
}

func (c *ChatServiceClient) ListUsers(ctx context.Context, in *ListUsersRequest, opts ...grpc.CallOption) (*ListUsersResponse, error) {
	return invoke[ListUsersResponse](ctx, c.cc, chatService, "ListUsers", in, opts)
}

// WatchEvents opens the server stream of daemon events.
func (c *ChatServiceClient) WatchEvents(ctx context.Context, in *WatchEventsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[EventEnvelope], error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ChatServiceDesc.Streams[0], "/"+chatService+"/WatchEvents", opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[WatchEventsRequest, EventEnvelope]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
