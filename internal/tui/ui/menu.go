package ui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rivo/tview"
)

// menuRows matches the header height minus its border padding.
const menuRows = 6

// Menu lists the shortcuts of the current page in the header.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates the shortcut menu.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)
	return &Menu{TextView: tv, theme: theme}
}

// Update renders hints.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	_, _ = fmt.Fprint(m, strings.Join(m.lines(hints), "\n"))
}

// lines fills columns top to bottom, starting a new column once menuRows
// hints are placed. Columns are padded to their widest hint.
func (m *Menu) lines(hints []MenuHint) []string {
	if len(hints) == 0 {
		return nil
	}
	rows := min(len(hints), menuRows)
	cols := (len(hints) + menuRows - 1) / menuRows
	widths := make([]int, cols)
	for i, h := range hints {
		widths[i/menuRows] = max(widths[i/menuRows], hintWidth(h))
	}

	keyColor := ColorName(m.theme.MenuKeyColor)
	numColor := ColorName(m.theme.NumericKeyColor)
	out := make([]string, rows)
	for r := range rows {
		var b strings.Builder
		for c := range cols {
			i := c*menuRows + r
			if i >= len(hints) {
				break
			}
			h := hints[i]
			if c > 0 {
				prev := hints[i-menuRows]
				b.WriteString(strings.Repeat(" ", widths[c-1]-hintWidth(prev)+3))
			}
			kc := keyColor
			if h.Numeric {
				kc = numColor
			}
			fmt.Fprintf(&b, "[%s::b]<%s>[-:-:-] %s", kc, tview.Escape(h.Key), h.Description)
		}
		out[r] = b.String()
	}
	return out
}

func hintWidth(h MenuHint) int {
	return utf8.RuneCountInString(h.Key) + 3 + utf8.RuneCountInString(h.Description)
}
