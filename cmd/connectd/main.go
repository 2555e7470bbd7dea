package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/faeterjconnect/connect/internal/config"
	"github.com/faeterjconnect/connect/internal/daemon"
	"github.com/faeterjconnect/connect/internal/session"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	socketFlag := flag.String("socket", "", "gRPC socket path (defaults to the session directory)")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			fl := &fxevent.ZapLogger{Logger: l.Named("fx")}
			fl.UseLogLevel(zap.DebugLevel)
			return fl
		}),
		daemon.Module(daemon.Params{
			SessionName: sessionName,
			SocketPath:  *socketFlag,
			Config:      cfg,
		}),
	)

	app.Run()
}
