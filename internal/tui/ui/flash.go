package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// FlashLevel represents the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

var flashTTL = map[FlashLevel]time.Duration{
	FlashInfo: 5 * time.Second,
	FlashWarn: 8 * time.Second,
	FlashErr:  10 * time.Second,
}

// FlashMessage is a transient notification.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

// FlashModel holds the latest notification. It is written from RPC
// goroutines and read on the UI goroutine.
type FlashModel struct {
	mu      sync.RWMutex
	current FlashMessage
	now     func() time.Time
}

// NewFlashModel creates a new flash model.
func NewFlashModel() *FlashModel {
	return &FlashModel{now: time.Now}
}

// Info sets an info-level flash message.
func (f *FlashModel) Info(msg string) { f.set(msg, FlashInfo) }

// Warn sets a warn-level flash message.
func (f *FlashModel) Warn(msg string) { f.set(msg, FlashWarn) }

// Err sets an error-level flash message.
func (f *FlashModel) Err(err error) { f.set(err.Error(), FlashErr) }

// Notice maps a daemon notice level ("error", "warning", anything else is
// info) onto a flash message.
func (f *FlashModel) Notice(level, msg string) {
	switch level {
	case "error":
		f.set(msg, FlashErr)
	case "warning", "warn":
		f.set(msg, FlashWarn)
	default:
		f.set(msg, FlashInfo)
	}
}

// Clear drops the current message.
func (f *FlashModel) Clear() {
	f.mu.Lock()
	f.current = FlashMessage{}
	f.mu.Unlock()
}

func (f *FlashModel) set(msg string, level FlashLevel) {
	f.mu.Lock()
	f.current = FlashMessage{Text: msg, Level: level, Expires: f.now().Add(flashTTL[level])}
	f.mu.Unlock()
}

// Get returns the current flash text, or empty if expired.
func (f *FlashModel) Get() string {
	if m := f.GetMessage(); m != nil {
		return m.Text
	}
	return ""
}

// GetMessage returns the current flash message, or nil if expired.
func (f *FlashModel) GetMessage() *FlashMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current.Text == "" || f.now().After(f.current.Expires) {
		return nil
	}
	m := f.current
	return &m
}

// FlashBar is the one-line notification strip at the bottom of the screen.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

// NewFlashBar creates a new flash notification bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &FlashBar{TextView: tv, theme: theme}
}

// Update renders msg, or clears the bar when msg is nil.
func (fb *FlashBar) Update(msg *FlashMessage) {
	fb.Clear()
	if msg == nil {
		return
	}
	color, icon := fb.theme.FlashInfoColor, "ℹ"
	switch msg.Level {
	case FlashWarn:
		color, icon = fb.theme.FlashWarnColor, "⚠"
	case FlashErr:
		color, icon = fb.theme.FlashErrColor, "✖"
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s %s[-]", ColorName(color), icon, tview.Escape(msg.Text))
}
