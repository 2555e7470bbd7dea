package lock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	tmpDir := t.TempDir()

	l, err := Acquire(tmpDir, "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	holder, err := Inspect(tmpDir)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if holder.PID != os.Getpid() {
		t.Errorf("holder PID = %d, want %d", holder.PID, os.Getpid())
	}
	if holder.Session != "main" {
		t.Errorf("holder session = %q, want main", holder.Session)
	}
	if holder.Since.IsZero() {
		t.Error("holder time not recorded")
	}

	if err := l.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "LOCK")); !os.IsNotExist(err) {
		t.Errorf("lock file still present after Release: %v", err)
	}
}

func TestDoubleAcquireFails(t *testing.T) {
	tmpDir := t.TempDir()

	l1, err := Acquire(tmpDir, "main")
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	defer func() { _ = l1.Release() }()

	_, err = Acquire(tmpDir, "main")
	if err == nil {
		t.Fatal("second Acquire() should fail")
	}

	var held *HeldError
	if !errors.As(err, &held) {
		t.Fatalf("expected HeldError, got %T: %v", err, err)
	}
	if held.Holder.PID != os.Getpid() {
		t.Errorf("HeldError PID = %d, want %d", held.Holder.PID, os.Getpid())
	}
}

func TestInspectMissing(t *testing.T) {
	h, err := Inspect(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if h.PID != 0 {
		t.Errorf("PID = %d, want 0 for missing lock", h.PID)
	}
}

func TestReleaseNilAndIdempotent(t *testing.T) {
	var nilLock *Lock
	if err := nilLock.Release(); err != nil {
		t.Errorf("nil Release() error = %v", err)
	}

	l, err := Acquire(t.TempDir(), "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("first Release() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}
