package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/faeterjconnect/connect/internal/tui/ui"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// FocusTarget implements Component.
func (hv *HelpView) FocusTarget() tview.Primitive { return hv }

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

type helpSection struct {
	title string
	rows  [][2]string
}

var helpSections = []helpSection{
	{"Global Keys", [][2]string{
		{":", "Command mode"},
		{"/", "Filter conversations"},
		{"?", "Help"},
		{"Esc", "Cancel / Go back"},
		{"q", "Quit"},
		{"Ctrl-C", "Quit immediately"},
	}},
	{"Conversation List", [][2]string{
		{"Enter", "Open conversation"},
		{"1-9", "Jump to Nth conversation"},
		{"0", "Clear filter"},
		{"r", "Refresh from server"},
		{"v", "Nearby buses"},
		{"f", "Feed"},
	}},
	{"Message Thread", [][2]string{
		{"i", "Focus composer"},
		{"Enter", "Send message (in composer)"},
		{"Esc", "Leave composer"},
		{"d", "Conversation details"},
	}},
	{"Feed / Vehicles", [][2]string{
		{"l", "Like or unlike post"},
		{"r", "Refresh"},
	}},
	{"Commands (: mode)", [][2]string{
		{":search <query>", "Search cached messages"},
		{":chat <name>", "Open conversation by name"},
		{":open <user-id>", "Start a conversation with a user"},
		{":vehicles", "Nearby buses"},
		{":feed", "Feed"},
		{":logout", "Logout current session"},
		{":help / :h", "Show this help"},
		{":quit / :q", "Quit application"},
	}},
}

func (hv *HelpView) render() {
	kc := ui.ColorName(hv.theme.MenuKeyColor)

	var b strings.Builder
	for _, s := range helpSections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.title)
		for _, r := range s.rows {
			fmt.Fprintf(&b, "  [%s]%-18s[-:-:-] %s\n", kc, tview.Escape(r[0]), r[1])
		}
	}
	_, _ = fmt.Fprint(hv, b.String())
}
