package backend

import (
	"encoding/json"

	"github.com/faeterjconnect/connect/internal/auth"
)

// LoginRequest is the body of POST /api/user/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /api/user/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"roleEnum"`
	Turno    string `json:"turnoEnum"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"roleEnum"`
	Turno    string `json:"turnoEnum"`
	Token    string `json:"token"`
}

// Credentials converts the response into session credentials.
func (r AuthResponse) Credentials() auth.Credentials {
	return auth.Credentials{
		Token: r.Token,
		User: auth.User{
			UserID:   r.UserID,
			Username: r.Username,
			Email:    r.Email,
			Role:     r.Role,
			Turno:    r.Turno,
		},
	}
}

// UserProfile is a user as returned by /api/user and /api/me.
type UserProfile struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role,omitempty"`
	RoleEnum string `json:"roleEnum,omitempty"`
	Turno    string `json:"turnoEnum"`
}

// AuthUser maps a profile onto auth.User.
func (p UserProfile) AuthUser() auth.User {
	role := p.RoleEnum
	if role == "" {
		role = p.Role
	}
	return auth.User{UserID: p.UserID, Username: p.Username, Email: p.Email, Role: role, Turno: p.Turno}
}

// UpdateUserRequest is the body of PUT /api/user/{id}. Empty fields are omitted.
type UpdateUserRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	Turno    string `json:"turnoEnum,omitempty"`
}

// Page is a Spring Data page.
type Page[T any] struct {
	Content       []T  `json:"content"`
	TotalElements int  `json:"totalElements"`
	TotalPages    int  `json:"totalPages"`
	Size          int  `json:"size"`
	Number        int  `json:"number"`
	First         bool `json:"first"`
	Last          bool `json:"last"`
	Empty         bool `json:"empty"`
}

// MessagePage carries raw messages; normalization happens in the chat package.
type MessagePage = Page[json.RawMessage]

// Post is a feed entry.
type Post struct {
	PostID          string `json:"postId"`
	AuthorID        string `json:"authorId"`
	AuthorUsername  string `json:"authorUsername"`
	Content         string `json:"content"`
	RolePost        string `json:"rolePostEnum"`
	CreatedAt       string `json:"createdAt"`
	CommentsCount   int    `json:"commentsCount"`
	LikeCount       int64  `json:"likeCount"`
	LikedByMe       bool   `json:"likedByMe"`
	AuthorRole      string `json:"authorRole,omitempty"`
	AuthorTurnoEnum string `json:"authorTurnoEnum,omitempty"`
}

// PostPage is a cursor page of posts.
type PostPage struct {
	Items      []Post `json:"items"`
	NextCursor string `json:"nextCursor"`
}

// PostQuery filters the feed. AuthorID is optional.
type PostQuery struct {
	Limit    int
	Cursor   string
	AuthorID string
}

// CreatePostRequest is the body of POST /api/posts/create.
type CreatePostRequest struct {
	Content  string `json:"content"`
	RolePost string `json:"rolePostEnum"`
}

// LikeResponse is returned by like/unlike.
type LikeResponse struct {
	PostID    string `json:"postId"`
	LikeCount int64  `json:"likeCount"`
	LikedByMe bool   `json:"likedByMe"`
}

// Comment is a post comment.
type Comment struct {
	CommentID      string `json:"commentId"`
	PostID         string `json:"postId"`
	AuthorID       string `json:"authorId"`
	AuthorUsername string `json:"authorUsername"`
	Comment        string `json:"comment"`
	CommentTime    string `json:"commentTime"`
}

// CommentPage is a page of comments.
type CommentPage struct {
	Items         []Comment `json:"items"`
	Page          int       `json:"page"`
	Size          int       `json:"size"`
	TotalElements int       `json:"totalElements"`
	TotalPages    int       `json:"totalPages"`
	HasNext       bool      `json:"hasNext"`
	HasPrevious   bool      `json:"hasPrevious"`
}

// NearbyQuery parameterizes GET /api/sppo/near.
type NearbyQuery struct {
	WindowSeconds  int
	RadiusMeters   int
	IncludeStopped bool
	MinSpeedKmh    float64
}

// DefaultNearbyQuery matches what the web client sends.
func DefaultNearbyQuery() NearbyQuery {
	return NearbyQuery{WindowSeconds: 300, RadiusMeters: 300, IncludeStopped: true}
}
