package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/faeterjconnect/connect/internal/backend"
	"github.com/faeterjconnect/connect/internal/tui/ui"
)

// FeedView lists the latest posts.
type FeedView struct {
	*tview.Table
	theme *ui.Theme
	posts []backend.Post
}

// NewFeedView creates a new feed view.
func NewFeedView(theme *ui.Theme) *FeedView {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetTitle(" Feed ")
	table.SetTitleColor(theme.TitleColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	return &FeedView{Table: table, theme: theme}
}

// Name implements Component.
func (fv *FeedView) Name() string { return "Feed" }

// FocusTarget implements Component.
func (fv *FeedView) FocusTarget() tview.Primitive { return fv }

// Hints implements Component.
func (fv *FeedView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "l", Description: "Like"},
		{Key: "r", Description: "Refresh"},
		{Key: "Esc", Description: "Back"},
	}
}

// Update renders the posts.
func (fv *FeedView) Update(posts []backend.Post) {
	fv.posts = posts
	fv.Clear()

	for col, h := range []string{" AUTHOR", " POST", " ♥", " 💬"} {
		fv.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(fv.theme.TableHeaderFg).
			SetBackgroundColor(fv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}
	for i, p := range posts {
		likes := fmt.Sprintf(" %d", p.LikeCount)
		likeColor := fv.theme.FgColor
		if p.LikedByMe {
			likeColor = fv.theme.FlashErrColor
		}
		content := strings.Join(strings.Fields(p.Content), " ")
		fv.SetCell(i+1, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(p.AuthorUsername))).SetMaxWidth(20).SetTextColor(fv.theme.CounterColor))
		fv.SetCell(i+1, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(content))).SetExpansion(1).SetTextColor(fv.theme.FgColor))
		fv.SetCell(i+1, 2, tview.NewTableCell(likes).SetTextColor(likeColor).SetAlign(tview.AlignRight))
		fv.SetCell(i+1, 3, tview.NewTableCell(fmt.Sprintf(" %d", p.CommentsCount)).SetTextColor(fv.theme.FgColor).SetAlign(tview.AlignRight))
	}
	fv.SetTitle(fmt.Sprintf(" Feed (%d) ", len(posts)))
}

// SelectedPost returns the id of the selected post.
func (fv *FeedView) SelectedPost() string {
	row, _ := fv.GetSelection()
	if row < 1 || row > len(fv.posts) {
		return ""
	}
	return fv.posts[row-1].PostID
}
