package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/faeterjconnect/connect/internal/avatar"
	"github.com/faeterjconnect/connect/internal/rpc"
	"github.com/faeterjconnect/connect/internal/tui/ui"
)

// MessageThread displays the active conversation: a header with presence and
// typing hint, the messages grouped by day, and a composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	colors   *avatar.Cache
	header   *tview.TextView
	messages *tview.TextView
	composer *tview.InputField
	name     string
	convID   string
	onSend   func(text string)
	onTyping func()
	now      func() time.Time
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme, colors *avatar.Cache) *MessageThread {
	header := tview.NewTextView().
		SetDynamicColors(true)
	header.SetBackgroundColor(theme.BgColor)
	header.SetBorderPadding(0, 0, 1, 1)

	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 1, 0, false).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		colors:   colors,
		header:   header,
		messages: messages,
		composer: composer,
		now:      time.Now,
	}

	composer.SetChangedFunc(func(text string) {
		if text != "" && mt.onTyping != nil {
			mt.onTyping()
		}
	})
	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			text := composer.GetText()
			if strings.TrimSpace(text) != "" {
				mt.onSend(text)
				composer.SetText("")
			}
		}
	})

	return mt
}

// Name implements Component.
func (mt *MessageThread) Name() string {
	if mt.name != "" {
		return mt.name
	}
	return "Messages"
}

// FocusTarget implements Component.
func (mt *MessageThread) FocusTarget() tview.Primitive { return mt.Messages() }

// Hints implements Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "d", Description: "Details"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// ConversationID returns the id of the rendered conversation.
func (mt *MessageThread) ConversationID() string {
	return mt.convID
}

// SetOnSend sets the callback when a message is submitted.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// SetOnTyping sets the callback fired on every composer edit.
func (mt *MessageThread) SetOnTyping(fn func()) {
	mt.onTyping = fn
}

// Update renders the thread and header.
func (mt *MessageThread) Update(t rpc.GetThreadResponse) {
	mt.convID = t.ConversationID
	mt.name = t.DisplayName
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(t.DisplayName)))
	mt.UpdateHeader(t)

	mt.messages.Clear()
	_, _ = fmt.Fprint(mt.messages, mt.renderMessages(t.Messages))
	mt.messages.ScrollToEnd()
}

// UpdateHeader renders presence and typing hint only.
func (mt *MessageThread) UpdateHeader(t rpc.GetThreadResponse) {
	mt.header.Clear()
	presence, color := "offline", ui.ColorName(mt.theme.OfflineColor)
	if t.Connected {
		presence, color = "online", ui.ColorName(mt.theme.OnlineColor)
	}
	line := fmt.Sprintf("[::b]%s[-:-:-]  [%s]● %s[-]", tview.Escape(sanitizeForTerminal(t.DisplayName)), color, presence)
	if t.TypingHint != "" {
		line += fmt.Sprintf("  [%s::i]%s[-:-:-]", ui.ColorName(mt.theme.TypingColor), tview.Escape(t.TypingHint))
	}
	_, _ = fmt.Fprint(mt.header, line)
}

func (mt *MessageThread) renderMessages(msgs []rpc.Message) string {
	var b strings.Builder
	rule := ui.ColorName(mt.theme.DayRuleColor)
	for _, g := range GroupByDay(msgs, time.Local) {
		fmt.Fprintf(&b, "[%s]── %s ──[-]\n\n", rule, DayLabel(g.Day, mt.now()))
		for _, m := range g.Messages {
			sender := m.SenderName
			if sender == "" {
				sender = "user"
			}
			color := mt.colors.Palette(avatar.ResolveSeed(m.SenderID, "", m.SenderName)).Primary().Hex()
			if m.FromMe {
				sender = "You"
				color = ui.ColorName(mt.theme.OwnMessageColor)
			}
			ts := time.UnixMilli(m.TimestampUnixMs).Local().Format("15:04")
			if m.Optimistic {
				ts += " …"
			}
			fmt.Fprintf(&b, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n",
				color, tview.Escape(sanitizeForTerminal(sender)), ts,
				tview.Escape(sanitizeForTerminal(m.Content)))
		}
	}
	return b.String()
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

// DayGroup is a run of messages sent on the same calendar day.
type DayGroup struct {
	Day      time.Time
	Messages []rpc.Message
}

// GroupByDay splits msgs, kept in their given order, into runs that share a
// calendar day in loc.
func GroupByDay(msgs []rpc.Message, loc *time.Location) []DayGroup {
	var groups []DayGroup
	for _, m := range msgs {
		t := time.UnixMilli(m.TimestampUnixMs).In(loc)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		if n := len(groups); n > 0 && groups[n-1].Day.Equal(day) {
			groups[n-1].Messages = append(groups[n-1].Messages, m)
			continue
		}
		groups = append(groups, DayGroup{Day: day, Messages: []rpc.Message{m}})
	}
	return groups
}

// DayLabel renders "Today", "Yesterday" or a date relative to now.
func DayLabel(day, now time.Time) string {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, day.Location())
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	case day.Year() == now.Year():
		return day.Format("Mon, 02 Jan")
	}
	return day.Format("02 Jan 2006")
}
