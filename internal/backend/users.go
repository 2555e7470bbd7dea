package backend

import (
	"context"
	"net/http"
	"net/url"
)

// User fetches a profile.
func (c *Client) User(ctx context.Context, userID string) (*UserProfile, error) {
	var out UserProfile
	if err := c.do(ctx, http.MethodGet, "/api/user/"+url.PathEscape(userID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUser patches a profile.
func (c *Client) UpdateUser(ctx context.Context, userID string, req UpdateUserRequest) (*UserProfile, error) {
	var out UserProfile
	if err := c.do(ctx, http.MethodPut, "/api/user/"+url.PathEscape(userID), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Users lists profiles, optionally filtered by role.
func (c *Client) Users(ctx context.Context, page, size int, role string) (*Page[UserProfile], error) {
	q := pageQuery(page, size)
	if role != "" {
		q.Set("role", role)
	}
	var out Page[UserProfile]
	if err := c.do(ctx, http.MethodGet, "/api/user", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
