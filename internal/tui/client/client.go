package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"

	"github.com/faeterjconnect/connect/internal/rpc"
)

// Client wraps gRPC connections to the daemon.
type Client struct {
	conn    *grpc.ClientConn
	Session *rpc.SessionServiceClient
	Chat    *rpc.ChatServiceClient
	Feed    *rpc.FeedServiceClient
}

// New dials the daemon's Unix domain socket and returns typed service clients.
func New(socketPath string) (*Client, error) {
	conn, err := rpc.Dial(socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return FromConn(conn), nil
}

// FromConn wraps an existing connection.
func FromConn(conn *grpc.ClientConn) *Client {
	return &Client{
		conn:    conn,
		Session: rpc.NewSessionServiceClient(conn),
		Chat:    rpc.NewChatServiceClient(conn),
		Feed:    rpc.NewFeedServiceClient(conn),
	}
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Alive reports whether a daemon answers GetStatus on socketPath.
func Alive(socketPath string) bool {
	c, err := New(socketPath)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = c.Session.GetStatus(ctx, &rpc.GetStatusRequest{})
	return err == nil
}

// WaitReady polls Alive until it succeeds or timeout elapses.
func WaitReady(socketPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if Alive(socketPath) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}
