package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const fileName = "LOCK"

// HeldError is returned when another daemon owns the session.
type HeldError struct {
	Holder Holder
	Path   string
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("session %q already served by PID %d since %s (%s)",
		e.Holder.Session, e.Holder.PID, e.Holder.Since.Format(time.RFC3339), e.Path)
}

// Holder describes the process recorded in a lock file.
type Holder struct {
	PID     int
	Session string
	Since   time.Time
}

// Lock is an acquired per-session flock. One connectd per session.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive, non-blocking lock on sessionDir/LOCK and records
// the owner. Returns *HeldError if another process already holds it.
func Acquire(sessionDir, sessionName string) (*Lock, error) {
	lockPath := filepath.Join(sessionDir, fileName)

	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		holder, _ := Inspect(sessionDir)
		return nil, &HeldError{Holder: holder, Path: lockPath}
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = f.Close()
		return nil, err
	}
	content := fmt.Sprintf("pid=%d\nsession=%s\ntime=%s\n",
		os.Getpid(), sessionName, time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Lock{file: f, path: lockPath}, nil
}

// Release releases the lock. Safe to call on nil receiver and more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

// Inspect reads the holder recorded in sessionDir/LOCK without locking.
// A zero Holder with nil error means no lock file exists.
func Inspect(sessionDir string) (Holder, error) {
	data, err := os.ReadFile(filepath.Join(sessionDir, fileName))
	if os.IsNotExist(err) {
		return Holder{}, nil
	}
	if err != nil {
		return Holder{}, err
	}
	return parseHolder(string(data)), nil
}

func parseHolder(content string) Holder {
	var h Holder
	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			h.PID, _ = strconv.Atoi(value)
		case "session":
			h.Session = value
		case "time":
			h.Since, _ = time.Parse(time.RFC3339, value)
		}
	}
	return h
}
