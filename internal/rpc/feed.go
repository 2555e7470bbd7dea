package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const feedService = "connect.v1.FeedService"

// FeedServiceServer proxies the social feed and the nearby-bus panel.
type FeedServiceServer interface {
	ListPosts(context.Context, *ListPostsRequest) (*ListPostsResponse, error)
	CreatePost(context.Context, *CreatePostRequest) (*PostResponse, error)
	Like(context.Context, *PostRef) (*LikeResponse, error)
	Unlike(context.Context, *PostRef) (*LikeResponse, error)
	DeletePost(context.Context, *PostRef) (*Empty, error)
	ListComments(context.Context, *ListCommentsRequest) (*ListCommentsResponse, error)
	CreateComment(context.Context, *CreateCommentRequest) (*CommentResponse, error)
	DeleteComment(context.Context, *CommentRef) (*Empty, error)
	NearbyVehicles(context.Context, *NearbyVehiclesRequest) (*NearbyVehiclesResponse, error)
	WatchVehicles(*NearbyVehiclesRequest, grpc.ServerStreamingServer[NearbyVehiclesResponse]) error
}

var FeedServiceDesc = grpc.ServiceDesc{
	ServiceName: feedService,
	HandlerType: (*FeedServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(feedService, "ListPosts", func(srv any, ctx context.Context, in *ListPostsRequest) (*ListPostsResponse, error) {
			return srv.(FeedServiceServer).ListPosts(ctx, in)
		}),
		unaryMethod(feedService, "CreatePost", func(srv any, ctx context.Context, in *CreatePostRequest) (*PostResponse, error) {
			return srv.(FeedServiceServer).CreatePost(ctx, in)
		}),
		unaryMethod(feedService, "Like", func(srv any, ctx context.Context, in *PostRef) (*LikeResponse, error) {
			return srv.(FeedServiceServer).Like(ctx, in)
		}),
		unaryMethod(feedService, "Unlike", func(srv any, ctx context.Context, in *PostRef) (*LikeResponse, error) {
			return srv.(FeedServiceServer).Unlike(ctx, in)
		}),
		unaryMethod(feedService, "DeletePost", func(srv any, ctx context.Context, in *PostRef) (*Empty, error) {
			return srv.(FeedServiceServer).DeletePost(ctx, in)
		}),
		unaryMethod(feedService, "ListComments", func(srv any, ctx context.Context, in *ListCommentsRequest) (*ListCommentsResponse, error) {
			return srv.(FeedServiceServer).ListComments(ctx, in)
		}),
		unaryMethod(feedService, "CreateComment", func(srv any, ctx context.Context, in *CreateCommentRequest) (*CommentResponse, error) {
			return srv.(FeedServiceServer).CreateComment(ctx, in)
		}),
		unaryMethod(feedService, "DeleteComment", func(srv any, ctx context.Context, in *CommentRef) (*Empty, error) {
			return srv.(FeedServiceServer).DeleteComment(ctx, in)
		}),
		unaryMethod(feedService, "NearbyVehicles", func(srv any, ctx context.Context, in *NearbyVehiclesRequest) (*NearbyVehiclesResponse, error) {
			return srv.(FeedServiceServer).NearbyVehicles(ctx, in)
		}),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchVehicles",
			Handler:       watchVehiclesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "connect/v1/feed.json",
}

func watchVehiclesHandler(srv any, stream grpc.ServerStream) error {
	in := new(NearbyVehiclesRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(FeedServiceServer).WatchVehicles(in, &grpc.GenericServerStream[NearbyVehiclesRequest, NearbyVehiclesResponse]{ServerStream: stream})
}

// RegisterFeedServiceServer registers srv on s.
func RegisterFeedServiceServer(s grpc.ServiceRegistrar, srv FeedServiceServer) {
	s.RegisterService(&FeedServiceDesc, srv)
}

// FeedServiceClient is the client side of FeedService.
type FeedServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewFeedServiceClient(cc grpc.ClientConnInterface) *FeedServiceClient {
	return &FeedServiceClient{cc: cc}
}

func (c *FeedServiceClient) ListPosts(ctx context.Context, in *ListPostsRequest, opts ...grpc.CallOption) (*ListPostsResponse, error) {
	return invoke[ListPostsResponse](ctx, c.cc, feedService, "ListPosts", in, opts)
}

func (c *FeedServiceClient) CreatePost(ctx context.Context, in *CreatePostRequest, opts ...grpc.CallOption) (*PostResponse, error) {
	return invoke[PostResponse](ctx, c.cc, feedService, "CreatePost", in, opts)
}

func (c *FeedServiceClient) Like(ctx context.Context, in *PostRef, opts ...grpc.CallOption) (*LikeResponse, error) {
	return invoke[LikeResponse](ctx, c.cc, feedService, "Like", in, opts)
}

func (c *FeedServiceClient) Unlike(ctx context.Context, in *PostRef, opts ...grpc.CallOption) (*LikeResponse, error) {
	return invoke[LikeResponse](ctx, c.cc, feedService, "Unlike", in, opts)
}

func (c *FeedServiceClient) DeletePost(ctx context.Context, in *PostRef, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, feedService, "DeletePost", in, opts)
}

func (c *FeedServiceClient) ListComments(ctx context.Context, in *ListCommentsRequest, opts ...grpc.CallOption) (*ListCommentsResponse, error) {
	return invoke[ListCommentsResponse](ctx, c.cc, feedService, "ListComments", in, opts)
}

func (c *FeedServiceClient) CreateComment(ctx context.Context, in *CreateCommentRequest, opts ...grpc.CallOption) (*CommentResponse, error) {
	return invoke[CommentResponse](ctx, c.cc, feedService, "CreateComment", in, opts)
}

func (c *FeedServiceClient) DeleteComment(ctx context.Context, in *CommentRef, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, feedService, "DeleteComment", in, opts)
}

func (c *FeedServiceClient) NearbyVehicles(ctx context.Context, in *NearbyVehiclesRequest, opts ...grpc.CallOption) (*NearbyVehiclesResponse, error) {
	return invoke[NearbyVehiclesResponse](ctx, c.cc, feedService, "NearbyVehicles", in, opts)
}

// WatchVehicles streams a snapshot on every poll until ctx ends.
func (c *FeedServiceClient) WatchVehicles(ctx context.Context, in *NearbyVehiclesRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[NearbyVehiclesResponse], error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &FeedServiceDesc.Streams[0], "/"+feedService+"/WatchVehicles", opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[NearbyVehiclesRequest, NearbyVehiclesResponse]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
