package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Posts returns a cursor page of the feed.
func (c *Client) Posts(ctx context.Context, pq PostQuery) (*PostPage, error) {
	limit := pq.Limit
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	if pq.Cursor != "" {
		q.Set("cursor", pq.Cursor)
	}
	if pq.AuthorID != "" {
		q.Set("authorId", pq.AuthorID)
	}
	var out PostPage
	if err := c.do(ctx, http.MethodGet, "/api/posts", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error) {
	var out Post
	if err := c.do(ctx, http.MethodPost, "/api/posts/create", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Like(ctx context.Context, postID string) (*LikeResponse, error) {
	var out LikeResponse
	if err := c.do(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(postID)+"/likes", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Unlike(ctx context.Context, postID string) (*LikeResponse, error) {
	var out LikeResponse
	if err := c.do(ctx, http.MethodDelete, "/api/posts/"+url.PathEscape(postID)+"/likes", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePost(ctx context.Context, postID string) error {
	return c.do(ctx, http.MethodDelete, "/api/posts/delete/"+url.PathEscape(postID), nil, nil, nil)
}

// Comments returns one page of a post's comments.
func (c *Client) Comments(ctx context.Context, postID string, page, size int) (*CommentPage, error) {
	if size <= 0 {
		size = 10
	}
	var out CommentPage
	if err := c.do(ctx, http.MethodGet, "/api/comments/"+url.PathEscape(postID), pageQuery(page, size), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateComment(ctx context.Context, postID, text string) (*Comment, error) {
	var out Comment
	body := map[string]string{"comment": text}
	if err := c.do(ctx, http.MethodPost, "/api/comments/create/"+url.PathEscape(postID), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteComment(ctx context.Context, commentID string) error {
	return c.do(ctx, http.MethodDelete, "/api/comments/"+url.PathEscape(commentID), nil, nil, nil)
}
