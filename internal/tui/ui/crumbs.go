package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// maxCrumbs bounds the trail; a conversation title can be long.
const maxCrumbs = 4

// Crumbs shows the page stack under the content, root first.
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

// NewCrumbs creates the crumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &Crumbs{TextView: tv, theme: theme}
}

// Update renders trail with the last page highlighted. Page names are shown
// literally, so a conversation called "[red]" stays text.
func (c *Crumbs) Update(trail []string) {
	c.Clear()
	trail = elideTrail(trail, maxCrumbs)
	var b strings.Builder
	for i, name := range trail {
		if i > 0 {
			b.WriteString(" › ")
		}
		if name == "" {
			b.WriteString("…")
			continue
		}
		fg, bg, attr := c.theme.CrumbInactiveFg, c.theme.CrumbInactiveBg, ""
		if i == len(trail)-1 {
			fg, bg, attr = c.theme.CrumbActiveFg, c.theme.CrumbActiveBg, "b"
		}
		fmt.Fprintf(&b, "[%s:%s:%s] %s [-:-:-]", ColorName(fg), ColorName(bg), attr, tview.Escape(name))
	}
	_, _ = fmt.Fprint(c, b.String())
}

// elideTrail keeps the root and the newest pages of a deep stack. An empty
// entry marks the gap.
func elideTrail(trail []string, limit int) []string {
	if len(trail) <= limit || limit < 3 {
		return trail
	}
	out := make([]string, 0, limit)
	out = append(out, trail[0], "")
	return append(out, trail[len(trail)-(limit-2):]...)
}
