package tui

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCommand is returned by ParseCommand for names outside the table.
var ErrUnknownCommand = errors.New("unknown command")

type commandSpec struct {
	name    string
	aliases []string
	usage   string // non-empty when the command needs an argument
}

var commandTable = []commandSpec{
	{name: "search", aliases: []string{"s"}},
	{name: "chat", aliases: []string{"c"}, usage: ":chat <name>"},
	{name: "open", usage: ":open <user-id>"},
	{name: "vehicles", aliases: []string{"bus"}},
	{name: "feed"},
	{name: "logout"},
	{name: "help", aliases: []string{"h", "?"}},
	{name: "quit", aliases: []string{"q"}},
}

// Command is a prompt line with its alias resolved.
type Command struct {
	Name string
	Args string
}

// ParseCommand reads a prompt line without the leading ':'.
func ParseCommand(input string) (Command, error) {
	name, args, _ := strings.Cut(strings.TrimSpace(input), " ")
	name = strings.ToLower(name)
	args = strings.TrimSpace(args)
	for _, spec := range commandTable {
		if name != spec.name && !contains(spec.aliases, name) {
			continue
		}
		if spec.usage != "" && args == "" {
			return Command{}, fmt.Errorf("usage: %s", spec.usage)
		}
		return Command{Name: spec.name, Args: args}, nil
	}
	return Command{}, fmt.Errorf("%w %q", ErrUnknownCommand, name)
}

// commandNames feeds prompt autocompletion.
func commandNames() []string {
	names := make([]string, len(commandTable))
	for i, spec := range commandTable {
		names[i] = spec.name
	}
	return names
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
