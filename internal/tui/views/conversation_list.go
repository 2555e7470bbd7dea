package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/faeterjconnect/connect/internal/avatar"
	"github.com/faeterjconnect/connect/internal/rpc"
	"github.com/faeterjconnect/connect/internal/tui/ui"
)

// ConversationList is the main conversation list view.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	colors  *avatar.Cache
	convs   []rpc.Conversation
	visible []rpc.Conversation
	filter  string
	selfID  string
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme, colors *avatar.Cache) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Conversations ")
	table.SetTitleColor(theme.TitleColor)

	return &ConversationList{
		Table:  table,
		theme:  theme,
		colors: colors,
	}
}

// Name implements Component.
func (cl *ConversationList) Name() string { return "Conversations" }

// FocusTarget implements Component.
func (cl *ConversationList) FocusTarget() tview.Primitive { return cl }

// Hints implements Component.
func (cl *ConversationList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "r", Description: "Refresh"},
		{Key: "v", Description: "Vehicles"},
		{Key: "f", Description: "Feed"},
		{Key: "?", Description: "Help"},
		{Key: "q", Description: "Quit"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update refreshes the list. selfID picks the "other" member of 1:1 rows.
func (cl *ConversationList) Update(convs []rpc.Conversation, selfID string) {
	cl.convs = convs
	cl.selfID = selfID
	cl.render()
}

// SetFilter sets the active filter text and re-renders.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// ClearFilter clears the active filter.
func (cl *ConversationList) ClearFilter() {
	cl.filter = ""
	cl.render()
}

func (cl *ConversationList) matches(c rpc.Conversation) bool {
	if cl.filter == "" {
		return true
	}
	f := strings.ToLower(cl.filter)
	if strings.Contains(strings.ToLower(c.DisplayName), f) {
		return true
	}
	for _, p := range c.Participants {
		if strings.Contains(strings.ToLower(p.Username), f) {
			return true
		}
	}
	return false
}

func (cl *ConversationList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{"   ", 0},
		{" NAME", 1},
		{" MEMBERS", 2},
		{" TYPE", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		cl.SetCell(0, col, cell)
	}

	cl.visible = cl.visible[:0]
	row := 1
	for _, c := range cl.convs {
		if !cl.matches(c) {
			continue
		}
		cl.visible = append(cl.visible, c)

		convType := "DM"
		if c.IsGroup {
			convType = "GROUP"
		}
		badge := tcell.GetColor(cl.badgeColor(c))

		cl.SetCell(row, 0, tview.NewTableCell(" "+avatar.Initials(c.DisplayName)).SetTextColor(badge).SetAttributes(tcell.AttrBold))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(c.DisplayName))).SetExpansion(1).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(members(c)))).SetExpansion(2).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 3, tview.NewTableCell(convType).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
		row++
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) filter: %s ", len(cl.visible), len(cl.convs), cl.filter))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.convs)))
	}
}

// badgeColor is the avatar hue of the other member of a 1:1, or of the
// conversation title for groups.
func (cl *ConversationList) badgeColor(c rpc.Conversation) string {
	seed := c.DisplayName
	if !c.IsGroup {
		for _, p := range c.Participants {
			if p.UserID != cl.selfID {
				seed = avatar.ResolveSeed(p.UserID, p.Email, p.Username)
				break
			}
		}
	}
	return cl.colors.Palette(seed).Primary().Hex()
}

func members(c rpc.Conversation) string {
	names := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p.Username != "" {
			names = append(names, p.Username)
		}
	}
	return strings.Join(names, ", ")
}

// SelectedConversation returns the id of the currently selected row.
func (cl *ConversationList) SelectedConversation() string {
	row, _ := cl.GetSelection()
	return cl.ConversationByIndex(row)
}

// ConversationByIndex returns the id of the Nth visible conversation (1-based).
func (cl *ConversationList) ConversationByIndex(n int) string {
	if n < 1 || n > len(cl.visible) {
		return ""
	}
	return cl.visible[n-1].ID
}
