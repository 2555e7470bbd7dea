package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/faeterjconnect/connect/internal/avatar"
	"github.com/faeterjconnect/connect/internal/rpc"
	"github.com/faeterjconnect/connect/internal/tui/ui"
)

// ConversationInfo displays the members of a conversation with their
// avatar initials and colors.
type ConversationInfo struct {
	*tview.TextView
	theme  *ui.Theme
	colors *avatar.Cache
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme, colors *avatar.Cache) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{
		TextView: tv,
		theme:    theme,
		colors:   colors,
	}
}

// Name implements Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// FocusTarget implements Component.
func (ci *ConversationInfo) FocusTarget() tview.Primitive { return ci }

// Hints implements Component.
func (ci *ConversationInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// Update renders conversation details.
func (ci *ConversationInfo) Update(c rpc.Conversation) {
	ci.Clear()

	fg := ui.ColorName(ci.theme.FgColor)
	ct := ui.ColorName(ci.theme.CounterColor)

	convType := "Direct Message"
	if c.IsGroup {
		convType = "Group"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n [%s::b]Name:[-:-:-]    [%s]%s[-]\n", fg, ct, tview.Escape(c.DisplayName))
	fmt.Fprintf(&b, " [%s::b]ID:[-:-:-]      [%s]%s[-]\n", fg, ct, c.ID)
	fmt.Fprintf(&b, " [%s::b]Type:[-:-:-]    [%s]%s[-]\n", fg, ct, convType)
	fmt.Fprintf(&b, " [%s::b]Members:[-:-:-] [%s]%d[-]\n\n", fg, ct, len(c.Participants))

	for _, p := range c.Participants {
		pal := ci.colors.Palette(avatar.ResolveSeed(p.UserID, p.Email, p.Username))
		fmt.Fprintf(&b, "   [%s:%s:b] %-2s [-:-:-] [%s]%s[-]  [::d]%s[-:-:-]\n",
			ui.ColorName(ci.theme.BgColor), pal.Primary().Hex(), avatar.Initials(p.Username),
			ct, tview.Escape(sanitizeForTerminal(p.Username)), p.UserID)
	}

	_, _ = fmt.Fprint(ci, b.String())
	ci.SetTitle(fmt.Sprintf(" %s Details ", tview.Escape(c.DisplayName)))
}
