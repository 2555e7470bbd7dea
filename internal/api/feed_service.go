package api

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/faeterjconnect/connect/internal/backend"
	"github.com/faeterjconnect/connect/internal/mobility"
	"github.com/faeterjconnect/connect/internal/platform"
	"github.com/faeterjconnect/connect/internal/rpc"
)

// FeedService implements the FeedService gRPC service as a pass-through to
// the REST API.
type FeedService struct {
	adapter *platform.Adapter
	poller  *mobility.Poller
}

var _ rpc.FeedServiceServer = (*FeedService)(nil)

// NewFeedService creates a new feed service.
func NewFeedService(adapter *platform.Adapter, poller *mobility.Poller) *FeedService {
	return &FeedService{adapter: adapter, poller: poller}
}

func (s *FeedService) api() (*backend.Client, error) {
	if !s.adapter.IsLoggedIn() {
		return nil, grpcstatus.Errorf(codes.Unauthenticated, "not logged in")
	}
	return s.adapter.API(), nil
}

func (s *FeedService) ListPosts(ctx context.Context, req *rpc.ListPostsRequest) (*rpc.ListPostsResponse, error) {
	api, err := s.api()
	if err != nil {
		return nil, err
	}
	page, err := api.Posts(ctx, backend.PostQuery{Limit: req.Limit, Cursor: req.Cursor, AuthorID: req.AuthorID})
	if err != nil {
		return nil, toStatus("list posts", err)
	}
	return &rpc.ListPostsResponse{Posts: page.Items, NextCursor: page.NextCursor}, nil
}

func (s *FeedService) CreatePost(ctx context.Context, req *rpc.CreatePostRequest) (*rpc.PostResponse, error) {
	api, err := s.api()
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "content is required")
	}
	role := req.RolePost
	if role == "" {
		u, _ := s.adapter.Auth().User()
		role = u.Role
	}
	p, err := api.CreatePost(ctx, backend.CreatePostRequest{Content: content, RolePost: role})
	if err != nil {
		return nil, toStatus("create post", err)
	}
	return &rpc.PostResponse{Post: *p}, nil
}

func (s *FeedService) Like(ctx context.Context, req *rpc.PostRef) (*rpc.LikeResponse, error) {
	api, err := s.api()
	if err != nil {
		return nil, err
	}
	r, err := api.Like(ctx, req.PostID)
	if err != nil {
		return nil, toStatus("like", err)
	}
	return &rpc.LikeResponse{PostID: r.PostID, LikeCount: r.LikeCount, LikedByMe: r.LikedByMe}, nil
}

func (s *FeedService) Unlike(ctx context.Context, req *rpc.PostRef) (*rpc.LikeResponse, error) {
	api, err := s.api()
	if err != nil {
		return nil, err
	}
	r, err := api.Unlike(ctx, req.PostID)
	if err != nil {
		return nil, toStatus("unlike", err)
	}
	return &rpc.LikeResponse{PostID: r.PostID, LikeCount: r.LikeCount, LikedByMe: r.LikedByMe}, nil
}

func (s *FeedService) DeletePost(ctx context.Context, req *rpc.PostRef) (*rpc.Empty, error) {
	api, err := s.api()
	if err != nil {
		return nil, err
	}
	if err := api.DeletePost(ctx, req.PostID); err != nil {
		return nil, toStatus("delete post", err)
	}
	return &rpc.Empty{}, nil
}

func (s *FeedService) ListComments(ctx context.Context, req *rpc.ListCommentsRequest) (*rpc.ListCommentsResponse, error) {
	api, err := s.api()
	if err != nil {
		return nil, err
	}
	page, err := api.Comments(ctx, req.PostID, req.Page, req.Size)
	if err != nil {
		return nil, toStatus("list comments", err)
	}
	return &rpc.ListCommentsResponse{Comments: page.Items, HasNext: page.HasNext}, nil
}

func (s *FeedService) CreateComment(ctx context.Context, req *rpc.CreateCommentRequest) (*rpc.CommentResponse, error) {
	api, err := s.api()
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "comment text is required")
	}
	c, err := api.CreateComment(ctx, req.PostID, text)
	if err != nil {
		return nil, toStatus("create comment", err)
	}
	return &rpc.CommentResponse{Comment: *c}, nil
}

func (s *FeedService) DeleteComment(ctx context.Context, req *rpc.CommentRef) (*rpc.Empty, error) {
	api, err := s.api()
	if err != nil {
		return nil, err
	}
	if err := api.DeleteComment(ctx, req.CommentID); err != nil {
		return nil, toStatus("delete comment", err)
	}
	return &rpc.Empty{}, nil
}

func (s *FeedService) NearbyVehicles(ctx context.Context, _ *rpc.NearbyVehiclesRequest) (*rpc.NearbyVehiclesResponse, error) {
	if _, err := s.api(); err != nil {
		return nil, err
	}
	snap, err := s.poller.Fetch(ctx)
	if err != nil {
		return nil, toStatus("nearby vehicles", err)
	}
	resp := snapshotToRPC(snap)
	resp.UpdatedAt = time.Now().UnixMilli()
	return resp, nil
}

// WatchVehicles runs the poller for as long as the client stays on the
// stream. Failed polls are sent with Error set.
func (s *FeedService) WatchVehicles(_ *rpc.NearbyVehiclesRequest, stream grpc.ServerStreamingServer[rpc.NearbyVehiclesResponse]) error {
	if _, err := s.api(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	var sendErr error
	s.poller.Run(ctx, func(snap mobility.Snapshot, err error) {
		resp := &rpc.NearbyVehiclesResponse{Error: "failed to load vehicles"}
		if err == nil {
			resp = snapshotToRPC(snap)
		}
		resp.UpdatedAt = time.Now().UnixMilli()
		if sendErr = stream.Send(resp); sendErr != nil {
			cancel()
		}
	})
	return sendErr
}
