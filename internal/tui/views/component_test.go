package views

import (
	"testing"

	"github.com/rivo/tview"

	"github.com/faeterjconnect/connect/internal/avatar"
	"github.com/faeterjconnect/connect/internal/tui/ui"
)

func TestPagesFocusTheirInput(t *testing.T) {
	theme := ui.DefaultTheme()
	colors := avatar.NewCache()
	thread := NewMessageThread(theme, colors)
	search := NewSearchView(theme, func(string) string { return "" })
	vehicles := NewVehiclesView(theme)
	list := NewConversationList(theme, colors)

	tests := []struct {
		page ui.Component
		want tview.Primitive
	}{
		{thread, thread.Messages()},
		{search, search.Input()},
		{vehicles, vehicles.Table()},
		{list, list},
	}
	for _, tt := range tests {
		if got := tt.page.FocusTarget(); got != tt.want {
			t.Errorf("%s focuses %T, want %T", tt.page.Name(), got, tt.want)
		}
		if len(tt.page.Hints()) == 0 {
			t.Errorf("%s has no menu hints", tt.page.Name())
		}
	}

	var _ ui.Component = NewLoginView(theme)
	var _ ui.Component = NewHelpView(theme)
	var _ ui.Component = NewFeedView(theme)
	var _ ui.Component = NewConversationInfo(theme, colors)
}
