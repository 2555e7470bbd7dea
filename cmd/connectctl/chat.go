package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/faeterjconnect/connect/internal/rpc"
	"github.com/faeterjconnect/connect/internal/tui/client"
)

func newConversationsCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"convs", "ls"},
		Short:   "List conversations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Chat.ListConversations(ctx, &rpc.ListConversationsRequest{Refresh: refresh})
				if err != nil {
					return err
				}
				if jsonFlag {
					outputJSON(resp.Conversations)
					return nil
				}
				if len(resp.Conversations) == 0 {
					fmt.Println("No conversations.")
					return nil
				}
				for _, conv := range resp.Conversations {
					kind := "DM"
					if conv.IsGroup {
						kind = "GROUP"
					}
					fmt.Printf("%-38s %-5s %s\n", conv.ID, kind, conv.DisplayName)
				}
				if resp.SyncedAtMs > 0 {
					fmt.Printf("(synced %s)\n", formatMillis(resp.SyncedAtMs))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "fetch from the backend instead of the daemon cache")
	return cmd
}

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <user-id>",
		Short: "Open or create the direct conversation with a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Chat.OpenConversation(ctx, &rpc.OpenConversationRequest{OtherUserID: args[0]})
				if err != nil {
					return err
				}
				if jsonFlag {
					outputJSON(resp)
					return nil
				}
				verb := "Opened"
				if resp.Created {
					verb = "Created"
				}
				fmt.Printf("%s %s (%s)\n", verb, resp.Conversation.DisplayName, resp.Conversation.ID)
				return nil
			})
		},
	}
}

// resolveConversation accepts a conversation id or a display name.
func resolveConversation(ctx context.Context, c *client.Client, query string) (rpc.Conversation, error) {
	resp, err := c.Chat.ListConversations(ctx, &rpc.ListConversationsRequest{})
	if err != nil {
		return rpc.Conversation{}, err
	}
	q := strings.ToLower(query)
	var partial []rpc.Conversation
	for _, conv := range resp.Conversations {
		if conv.ID == query || strings.ToLower(conv.DisplayName) == q {
			return conv, nil
		}
		if strings.Contains(strings.ToLower(conv.DisplayName), q) {
			partial = append(partial, conv)
		}
	}
	switch len(partial) {
	case 0:
		return rpc.Conversation{}, fmt.Errorf("no conversation matches %q", query)
	case 1:
		return partial[0], nil
	}
	return rpc.Conversation{}, fmt.Errorf("%q is ambiguous (%d matches)", query, len(partial))
}

func printMessage(m rpc.Message) {
	sender := m.SenderName
	if m.FromMe {
		sender = "you"
	}
	mark := ""
	if m.Optimistic {
		mark = " …"
	}
	fmt.Printf("[%s] %s: %s%s\n", formatMillis(m.TimestampUnixMs), sender, m.Content, mark)
}

func newThreadCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "thread <conversation>",
		Aliases: []string{"select"},
		Short:   "Select a conversation and print its history",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				conv, err := resolveConversation(ctx, c, joinArgs(args))
				if err != nil {
					return err
				}
				thread, err := c.Chat.Select(ctx, &rpc.SelectRequest{ConversationID: conv.ID})
				if err != nil {
					return err
				}
				if jsonFlag {
					outputJSON(thread)
					return nil
				}
				fmt.Printf("── %s ──\n", thread.DisplayName)
				for _, m := range thread.Messages {
					printMessage(m)
				}
				return nil
			})
		},
	}
}

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <conversation> <text...>",
		Short: "Send a text message without changing the selected conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				conv, err := resolveConversation(ctx, c, args[0])
				if err != nil {
					return err
				}
				resp, err := c.Chat.SendText(ctx, &rpc.SendTextRequest{ConversationID: conv.ID, Text: joinArgs(args[1:])})
				if err != nil {
					return err
				}
				if jsonFlag {
					outputJSON(resp.Message)
					return nil
				}
				fmt.Printf("Sent to %s (%s)\n", conv.DisplayName, resp.Message.ID)
				return nil
			})
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var (
		before int64
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history <conversation>",
		Short: "Print cached messages of a conversation, also while offline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				id := joinArgs(args)
				if conv, err := resolveConversation(ctx, c, id); err == nil {
					id = conv.ID
				}
				resp, err := c.Chat.ListMessages(ctx, &rpc.ListMessagesRequest{ConversationID: id, BeforeUnixMs: before, Limit: limit})
				if err != nil {
					return err
				}
				if jsonFlag {
					outputJSON(resp)
					return nil
				}
				name := resp.DisplayName
				if name == "" {
					name = resp.ConversationID
				}
				fmt.Printf("── %s (cached, synced %s) ──\n", name, formatMillis(resp.SyncedAtMs))
				for _, m := range resp.Messages {
					printMessage(m)
				}
				if resp.HasMore && len(resp.Messages) > 0 {
					fmt.Printf("(older: --before %d)\n", resp.Messages[0].TimestampUnixMs)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&before, "before", 0, "only messages older than this unix millisecond timestamp")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "page size")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var (
		conversation string
		limit        int
	)
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Full-text search over cached messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				req := &rpc.SearchMessagesRequest{Query: joinArgs(args), Limit: limit}
				if conversation != "" {
					conv, err := resolveConversation(ctx, c, conversation)
					if err != nil {
						return err
					}
					req.ConversationID = conv.ID
				}
				resp, err := c.Chat.SearchMessages(ctx, req)
				if err != nil {
					return err
				}
				if jsonFlag {
					outputJSON(resp.Results)
					return nil
				}
				if len(resp.Results) == 0 {
					fmt.Println("No matches.")
					return nil
				}
				for _, r := range resp.Results {
					fmt.Printf("[%s] %s %s: %s\n", formatMillis(r.Message.TimestampUnixMs),
						r.Message.ConversationID, r.Message.SenderName, r.Snippet)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&conversation, "conversation", "c", "", "restrict to one conversation")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum results")
	return cmd
}

func newUsersCmd() *cobra.Command {
	var req rpc.ListUsersRequest
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Role = strings.ToUpper(req.Role)
			return withClient(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Chat.ListUsers(ctx, &req)
				if err != nil {
					return err
				}
				if jsonFlag {
					outputJSON(resp)
					return nil
				}
				for _, u := range resp.Users {
					fmt.Printf("%-38s %-20s %s\n", u.UserID, u.Username, u.Email)
				}
				if !resp.Last {
					fmt.Printf("(page %d of %d, use --page for more)\n", req.Page+1, resp.TotalPages)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&req.Page, "page", 0, "page number (0-based)")
	cmd.Flags().IntVar(&req.Size, "size", 20, "page size")
	cmd.Flags().StringVar(&req.Role, "role", "", "filter by role")
	return cmd
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [prefix...]",
		Short: "Stream daemon events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClientTimeout(0, func(ctx context.Context, c *client.Client) error {
				stream, err := c.Chat.WatchEvents(ctx, &rpc.WatchEventsRequest{Prefixes: args})
				if err != nil {
					return err
				}
				for {
					env, err := stream.Recv()
					if errors.Is(err, io.EOF) || ctx.Err() != nil {
						return nil
					}
					if err != nil {
						return err
					}
					if jsonFlag {
						outputJSON(env)
						continue
					}
					ts := time.UnixMilli(env.OccurredAtUnixMs).Local().Format("15:04:05")
					fmt.Printf("%s %-26s %s\n", ts, env.Kind, compact(env.Payload))
				}
			})
		},
	}
}

func compact(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	return string(raw)
}
