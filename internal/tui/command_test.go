package tui

import (
	"errors"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		want  Command
	}{
		{"quit", Command{Name: "quit"}},
		{"q", Command{Name: "quit"}},
		{"  Chat   Ana Maria ", Command{Name: "chat", Args: "Ana Maria"}},
		{"c bruno", Command{Name: "chat", Args: "bruno"}},
		{"search oi tudo bem", Command{Name: "search", Args: "oi tudo bem"}},
		{"bus", Command{Name: "vehicles"}},
	}
	for _, tt := range tests {
		got, err := ParseCommand(tt.input)
		if err != nil || got != tt.want {
			t.Errorf("ParseCommand(%q) = %+v, %v, want %+v", tt.input, got, err, tt.want)
		}
	}
}

func TestParseCommandErrors(t *testing.T) {
	if _, err := ParseCommand("dance"); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("unknown = %v", err)
	}
	if _, err := ParseCommand(""); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("empty = %v", err)
	}
	if _, err := ParseCommand("open  "); err == nil || !strings.Contains(err.Error(), ":open <user-id>") {
		t.Errorf("open without id = %v", err)
	}
}

func TestCommandNamesCoverTable(t *testing.T) {
	names := commandNames()
	if len(names) != len(commandTable) || names[0] != "search" || names[len(names)-1] != "quit" {
		t.Errorf("names = %v", names)
	}
}
