package ui

import "github.com/rivo/tview"

// MenuHint is one shortcut listed in the header menu.
type MenuHint struct {
	Key         string
	Description string
	// Numeric hints (the 1-9 jump keys) use the numeric key color.
	Numeric bool
}

// Component is a TUI page: its crumb label, the shortcuts it offers, and the
// widget that takes focus when the page comes to the top.
type Component interface {
	tview.Primitive
	Name() string
	Hints() []MenuHint
	FocusTarget() tview.Primitive
}
