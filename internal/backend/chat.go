package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/faeterjconnect/connect/internal/chat"
)

// Conversations lists the conversations of the signed-in user.
func (c *Client) Conversations(ctx context.Context) ([]chat.Conversation, error) {
	var out []chat.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/chat/conversations", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OpenConversation opens (or creates) the 1:1 conversation with otherUserID.
func (c *Client) OpenConversation(ctx context.Context, otherUserID string) (*chat.Conversation, error) {
	var out chat.Conversation
	if err := c.do(ctx, http.MethodPost, "/api/chat/conversations/"+url.PathEscape(otherUserID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Messages returns one page of a conversation's history, newest page first.
func (c *Client) Messages(ctx context.Context, conversationID string, page, size int) (*MessagePage, error) {
	var out MessagePage
	path := "/api/chat/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, pageQuery(page, size), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
