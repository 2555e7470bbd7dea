package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// SessionData holds session information for display.
type SessionData struct {
	Session       string
	User          string
	Status        string
	Connected     bool
	Conversations int
	Uptime        time.Duration
}

// SessionInfo displays session metadata in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &SessionInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the session info.
func (si *SessionInfo) Update(data *SessionData) {
	si.Clear()
	if data == nil {
		return
	}

	fgColor := ColorName(si.theme.FgColor)
	counterColor := ColorName(si.theme.CounterColor)

	user := data.User
	if user == "" {
		user = "-"
	}
	link, linkColor := "offline", ColorName(si.theme.OfflineColor)
	if data.Connected {
		link, linkColor = "online", ColorName(si.theme.OnlineColor)
	}

	text := fmt.Sprintf(
		"[%s::b]Session:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]User:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Status:[-:-:-]  [%s]%s[-]\n"+
			"[%s::b]Link:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Convs:[-:-:-]   [%s]%d[-]\n"+
			"[%s::b]Uptime:[-:-:-]  [%s]%s[-]",
		fgColor, counterColor, data.Session,
		fgColor, counterColor, tview.Escape(user),
		fgColor, counterColor, data.Status,
		fgColor, linkColor, link,
		fgColor, counterColor, data.Conversations,
		fgColor, counterColor, formatDuration(data.Uptime),
	)

	_, _ = fmt.Fprint(si, text)
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
