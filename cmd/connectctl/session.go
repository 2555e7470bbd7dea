package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/faeterjconnect/connect/internal/rpc"
	"github.com/faeterjconnect/connect/internal/session"
	"github.com/faeterjconnect/connect/internal/tui/client"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Session.GetStatus(ctx, &rpc.GetStatusRequest{})
				if err != nil {
					return err
				}
				if jsonFlag {
					outputJSON(resp)
					return nil
				}
				user := resp.Username
				if user == "" {
					user = "-"
				}
				fmt.Printf("Session:       %s\n", resp.Session)
				fmt.Printf("Status:        %s\n", resp.Status)
				fmt.Printf("Connected:     %v\n", resp.Connected)
				fmt.Printf("User:          %s %s\n", user, resp.Role)
				fmt.Printf("Token expires: %s\n", formatMillis(resp.TokenExpiresAtMs))
				fmt.Printf("Conversations: %d\n", resp.ConversationCount)
				fmt.Printf("Uptime:        %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
				return nil
			})
		},
	}
}

// readPassword takes the password from the flag, then CONNECT_PASSWORD, then
// prompts on the terminal (or reads a line from piped stdin).
func readPassword(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv("CONNECT_PASSWORD"); env != "" {
		return env, nil
	}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("password required")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printLogin(resp *rpc.LoginResponse) {
	if jsonFlag {
		outputJSON(resp)
		return
	}
	fmt.Printf("Logged in as %s (%s, %s)\n", resp.Username, resp.Email, resp.Role)
}

func newLoginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Log the session in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(password)
			if err != nil {
				return err
			}
			return withClient(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Session.Login(ctx, &rpc.LoginRequest{Email: args[0], Password: pw})
				if err != nil {
					return err
				}
				printLogin(resp)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when empty)")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var req rpc.RegisterRequest
	var password string
	cmd := &cobra.Command{
		Use:   "register <username> <email>",
		Short: "Create an account and log in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(password)
			if err != nil {
				return err
			}
			req.Username, req.Email, req.Password = args[0], args[1], pw
			req.Role = strings.ToUpper(req.Role)
			req.Turno = strings.ToUpper(req.Turno)
			return withClient(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Session.Register(ctx, &req)
				if err != nil {
					return err
				}
				printLogin(resp)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when empty)")
	cmd.Flags().StringVar(&req.Role, "role", "ALUNO", "ALUNO or PROFESSOR")
	cmd.Flags().StringVar(&req.Turno, "turno", "MANHA", "MANHA, TARDE or NOITE")
	return cmd
}

func newProfileCmd() *cobra.Command {
	var (
		req         rpc.UpdateProfileRequest
		setPassword bool
	)
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update the signed-in profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if setPassword {
				pw, err := readPassword("")
				if err != nil {
					return err
				}
				req.Password = pw
			}
			if req == (rpc.UpdateProfileRequest{}) {
				return errors.New("nothing to update: pass --username, --email, --turno or --password")
			}
			return withClient(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Session.UpdateProfile(ctx, &req)
				if err != nil {
					return err
				}
				if jsonFlag {
					outputJSON(resp)
					return nil
				}
				fmt.Printf("Profile updated: %s (%s)\n", resp.Username, resp.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "new username")
	cmd.Flags().StringVar(&req.Email, "email", "", "new email")
	cmd.Flags().StringVar(&req.Turno, "turno", "", "MANHA, TARDE or NOITE")
	cmd.Flags().BoolVar(&setPassword, "password", false, "prompt for a new password")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Session.Logout(ctx, &rpc.LogoutRequest{})
				if err != nil {
					return err
				}
				if jsonFlag {
					outputJSON(resp)
					return nil
				}
				fmt.Println(resp.Message)
				return nil
			})
		},
	}
}

type sessionEntry struct {
	Name          string `json:"name"`
	Path          string `json:"path"`
	DaemonRunning bool   `json:"daemonRunning"`
}

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List known sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := session.List()
			if err != nil {
				return err
			}
			entries := make([]sessionEntry, 0, len(names))
			for _, name := range names {
				entries = append(entries, sessionEntry{
					Name:          name,
					Path:          session.Dir(name),
					DaemonRunning: client.Alive(session.SocketPath(name)),
				})
			}
			if jsonFlag {
				outputJSON(entries)
				return nil
			}
			if len(entries) == 0 {
				fmt.Println("No sessions found.")
				return nil
			}
			for _, s := range entries {
				running := "stopped"
				if s.DaemonRunning {
					running = "running"
				}
				fmt.Printf("%-20s %s (%s)\n", s.Name, s.Path, running)
			}
			return nil
		},
	}
}
