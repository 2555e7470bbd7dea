package ui

import (
	"errors"
	"testing"
	"time"
)

func TestFlashExpiry(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	f := NewFlashModel()
	f.now = func() time.Time { return now }

	f.Info("saved")
	if got := f.Get(); got != "saved" {
		t.Fatalf("Get = %q, want saved", got)
	}

	now = now.Add(6 * time.Second)
	if f.GetMessage() != nil {
		t.Error("info message should expire after 5s")
	}

	f.Err(errors.New("boom"))
	now = now.Add(9 * time.Second)
	if m := f.GetMessage(); m == nil || m.Level != FlashErr {
		t.Errorf("error message should outlive 9s, got %+v", m)
	}

	f.Clear()
	if f.Get() != "" {
		t.Error("Clear should drop the message")
	}
}

func TestFlashNoticeLevels(t *testing.T) {
	f := NewFlashModel()
	for level, want := range map[string]FlashLevel{
		"error":   FlashErr,
		"warning": FlashWarn,
		"warn":    FlashWarn,
		"info":    FlashInfo,
		"":        FlashInfo,
	} {
		f.Notice(level, "x")
		if m := f.GetMessage(); m == nil || m.Level != want {
			t.Errorf("Notice(%q) level = %+v, want %v", level, m, want)
		}
	}
}
