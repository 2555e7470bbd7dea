package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/faeterjconnect/connect/internal/session"
	"github.com/faeterjconnect/connect/internal/tui/client"
)

var (
	sessionFlag string
	jsonFlag    bool
	sessionName string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "connectctl",
		Short:         "Control a FaeterjConnect session daemon",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			sessionName = session.Resolve(sessionFlag)
			return session.ValidateName(sessionName)
		},
	}
	root.PersistentFlags().StringVar(&sessionFlag, "session", "", "session name (overrides config default)")
	root.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")

	root.AddCommand(
		newStatusCmd(),
		newLoginCmd(),
		newRegisterCmd(),
		newLogoutCmd(),
		newProfileCmd(),
		newSessionsCmd(),
		newConversationsCmd(),
		newOpenCmd(),
		newThreadCmd(),
		newHistoryCmd(),
		newSendCmd(),
		newSearchCmd(),
		newUsersCmd(),
		newWatchCmd(),
		newFeedCmd(),
		newPostCmd(),
		newLikeCmd(true),
		newLikeCmd(false),
		newCommentsCmd(),
		newCommentCmd(),
		newVehiclesCmd(),
	)
	return root
}

// withClient dials the session daemon and runs fn with a bounded context.
func withClient(fn func(ctx context.Context, c *client.Client) error) error {
	return withClientTimeout(15*time.Second, fn)
}

func withClientTimeout(timeout time.Duration, fn func(ctx context.Context, c *client.Client) error) error {
	c, err := client.New(session.SocketPath(sessionName))
	if err != nil {
		return fmt.Errorf("cannot connect to daemon for session %q: %w", sessionName, err)
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if timeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, timeout)
		defer tcancel()
	}
	return fn(ctx, c)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
