package session

import (
	"os"
	"strings"

	"github.com/faeterjconnect/connect/internal/config"
)

const DefaultSessionName = "main"

// SessionEnv names the session when no --session flag is given.
const SessionEnv = "CONNECT_SESSION"

// Resolve picks the session: the flag, then $CONNECT_SESSION, then
// default_session from the config under BaseDir, then "main". The flag is
// returned as given so the caller reports a bad name; invalid names from the
// environment or config fall through to the next source.
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if env := strings.TrimSpace(os.Getenv(SessionEnv)); env != "" && ValidateName(env) == nil {
		return env
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil && cfg.DefaultSession != "" && ValidateName(cfg.DefaultSession) == nil {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}
