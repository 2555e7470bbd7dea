package views

import (
	"testing"
	"time"

	"github.com/faeterjconnect/connect/internal/rpc"
)

func msgAt(id string, t time.Time) rpc.Message {
	return rpc.Message{ID: id, TimestampUnixMs: t.UnixMilli()}
}

func TestGroupByDay(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	d1 := time.Date(2026, 3, 10, 23, 30, 0, 0, loc)
	d2 := time.Date(2026, 3, 11, 0, 10, 0, 0, loc)

	groups := GroupByDay([]rpc.Message{
		msgAt("a", d1),
		msgAt("b", d1.Add(time.Minute)),
		msgAt("c", d2),
	}, loc)

	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if len(groups[0].Messages) != 2 || groups[1].Messages[0].ID != "c" {
		t.Errorf("groups = %+v", groups)
	}
	if groups[1].Day.Day() != 11 {
		t.Errorf("second day = %v", groups[1].Day)
	}
}

func TestGroupByDayKeepsOrder(t *testing.T) {
	loc := time.UTC
	day := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)
	// Out-of-order input is not re-sorted: a day that reappears starts a new run.
	groups := GroupByDay([]rpc.Message{
		msgAt("a", day),
		msgAt("b", day.AddDate(0, 0, 1)),
		msgAt("c", day),
	}, loc)
	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(groups))
	}
	if GroupByDay(nil, loc) != nil {
		t.Error("empty input should yield no groups")
	}
}

func TestDayLabel(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		day  time.Time
		want string
	}{
		{day(2026, 3, 10), "Today"},
		{day(2026, 3, 9), "Yesterday"},
		{day(2026, 3, 2), "Mon, 02 Mar"},
		{day(2025, 12, 31), "31 Dec 2025"},
	}
	for _, tt := range tests {
		if got := DayLabel(tt.day, now); got != tt.want {
			t.Errorf("DayLabel(%v) = %q, want %q", tt.day, got, tt.want)
		}
	}
}

func TestSanitizeForTerminal(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"oi", "oi"},
		{"👍\U0001F3FB", "👍"},
		{"❤️", "❤"},
		{"👨‍👩", "👨👩"},
		{"linha 1\nlinha\t2", "linha 1\nlinha\t2"},
		{"a\rb\x1b[31mc", "ab[31mc"},
		{"\u202Eevil", "evil"},
		{"ok\xff", "ok\uFFFD"},
	}
	for _, tt := range tests {
		if got := sanitizeForTerminal(tt.in); got != tt.want {
			t.Errorf("sanitizeForTerminal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
