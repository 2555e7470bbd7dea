package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/faeterjconnect/connect/internal/auth"
)

// Login exchanges email and password for a token. The returned user id must
// be a UUID.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var res AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/user/login", nil, LoginRequest{Email: email, Password: password}, &res); err != nil {
		return nil, err
	}
	if err := checkAuth(res); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &res, nil
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var res AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/user/register", nil, req, &res); err != nil {
		return nil, err
	}
	if err := checkAuth(res); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &res, nil
}

// Me returns the user behind the current token.
func (c *Client) Me(ctx context.Context) (*UserProfile, error) {
	var res UserProfile
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, nil, &res); err != nil {
		return nil, err
	}
	if err := auth.ValidateUserID(res.UserID); err != nil {
		return nil, fmt.Errorf("me: %w", err)
	}
	return &res, nil
}

func checkAuth(res AuthResponse) error {
	if res.Token == "" {
		return errors.New("token missing in response")
	}
	return auth.ValidateUserID(res.UserID)
}
