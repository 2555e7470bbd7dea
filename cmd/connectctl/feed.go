package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/faeterjconnect/connect/internal/backend"
	"github.com/faeterjconnect/connect/internal/rpc"
	"github.com/faeterjconnect/connect/internal/tui/client"
)

func printPost(p backend.Post) {
	liked := ""
	if p.LikedByMe {
		liked = " ♥"
	}
	fmt.Printf("%s  %s  (%d likes%s, %d comments)\n  %s\n\n",
		p.PostID, p.AuthorUsername, p.LikeCount, liked, p.CommentsCount,
		strings.ReplaceAll(p.Content, "\n", "\n  "))
}

func newFeedCmd() *cobra.Command {
	var req rpc.ListPostsRequest
	cmd := &cobra.Command{
		Use:     "feed",
		Aliases: []string{"posts"},
		Short:   "List recent posts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Feed.ListPosts(ctx, &req)
				if err != nil {
					return err
				}
				if jsonFlag {
					outputJSON(resp)
					return nil
				}
				for _, p := range resp.Posts {
					printPost(p)
				}
				if resp.NextCursor != "" {
					fmt.Printf("next: --cursor %s\n", resp.NextCursor)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&req.Limit, "limit", "n", 20, "page size")
	cmd.Flags().StringVar(&req.Cursor, "cursor", "", "continue from a previous page")
	cmd.Flags().StringVar(&req.AuthorID, "author", "", "only posts by this user id")
	return cmd
}

func newPostCmd() *cobra.Command {
	var rolePost string
	cmd := &cobra.Command{
		Use:   "post <content...>",
		Short: "Publish a post",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Feed.CreatePost(ctx, &rpc.CreatePostRequest{Content: joinArgs(args), RolePost: strings.ToUpper(rolePost)})
				if err != nil {
					return err
				}
				if jsonFlag {
					outputJSON(resp.Post)
					return nil
				}
				printPost(resp.Post)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&rolePost, "audience", "", "restrict the post to a role")
	return cmd
}

func newLikeCmd(like bool) *cobra.Command {
	use, short := "like <post-id>", "Like a post"
	if !like {
		use, short = "unlike <post-id>", "Remove a like"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				call := c.Feed.Like
				if !like {
					call = c.Feed.Unlike
				}
				resp, err := call(ctx, &rpc.PostRef{PostID: args[0]})
				if err != nil {
					return err
				}
				if jsonFlag {
					outputJSON(resp)
					return nil
				}
				fmt.Printf("%s: %d likes\n", resp.PostID, resp.LikeCount)
				return nil
			})
		},
	}
}

func newCommentsCmd() *cobra.Command {
	var page, size int
	cmd := &cobra.Command{
		Use:   "comments <post-id>",
		Short: "List comments on a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Feed.ListComments(ctx, &rpc.ListCommentsRequest{PostID: args[0], Page: page, Size: size})
				if err != nil {
					return err
				}
				if jsonFlag {
					outputJSON(resp)
					return nil
				}
				for _, cm := range resp.Comments {
					fmt.Printf("%s  %s: %s\n", cm.CommentTime, cm.AuthorUsername, cm.Comment)
				}
				if resp.HasNext {
					fmt.Printf("(more: --page %d)\n", page+1)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "page number (0-based)")
	cmd.Flags().IntVar(&size, "size", 20, "page size")
	return cmd
}

func newCommentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <post-id> <text...>",
		Short: "Comment on a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Feed.CreateComment(ctx, &rpc.CreateCommentRequest{PostID: args[0], Text: joinArgs(args[1:])})
				if err != nil {
					return err
				}
				if jsonFlag {
					outputJSON(resp.Comment)
					return nil
				}
				fmt.Printf("Commented (%s)\n", resp.Comment.CommentID)
				return nil
			})
		},
	}
}

func newVehiclesCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:     "vehicles",
		Aliases: []string{"bus"},
		Short:   "Show buses approaching the campus",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				return withClientTimeout(0, func(ctx context.Context, c *client.Client) error {
					stream, err := c.Feed.WatchVehicles(ctx, &rpc.NearbyVehiclesRequest{})
					if err != nil {
						return err
					}
					for {
						resp, err := stream.Recv()
						if errors.Is(err, io.EOF) || ctx.Err() != nil {
							return nil
						}
						if err != nil {
							return err
						}
						printVehicles(resp)
					}
				})
			}
			return withClient(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Feed.NearbyVehicles(ctx, &rpc.NearbyVehiclesRequest{})
				if err != nil {
					return err
				}
				printVehicles(resp)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep polling until interrupted")
	return cmd
}

func printVehicles(resp *rpc.NearbyVehiclesResponse) {
	if jsonFlag {
		outputJSON(resp)
		return
	}
	if resp.UpdatedAt > 0 {
		fmt.Printf("── %s ──\n", time.UnixMilli(resp.UpdatedAt).Local().Format("15:04:05"))
	}
	if resp.Error != "" {
		fmt.Printf("! %s\n", resp.Error)
		return
	}
	if len(resp.Vehicles) == 0 {
		fmt.Println("No vehicles nearby.")
		return
	}
	for _, l := range resp.Lines {
		fmt.Printf("Line %-6s next %-10s (%d buses)\n", l.Linha, l.ETALabel, l.Vehicles)
	}
	fmt.Println()
	for _, v := range resp.Vehicles {
		fmt.Printf("%-6s %-10s %-10s %8s %5.0f km/h\n", v.Linha, v.Ordem, v.ETALabel, v.DistLabel, v.SpeedKmh)
	}
}
