package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor           tcell.Color
	FgColor           tcell.Color
	BorderColor       tcell.Color
	BorderFocusColor  tcell.Color
	TableHeaderFg     tcell.Color
	TableHeaderBg     tcell.Color
	TableCursorFg     tcell.Color
	TableCursorBg     tcell.Color
	CrumbActiveFg     tcell.Color
	CrumbActiveBg     tcell.Color
	CrumbInactiveFg   tcell.Color
	CrumbInactiveBg   tcell.Color
	MenuKeyColor      tcell.Color
	NumericKeyColor   tcell.Color
	TitleColor        tcell.Color
	CounterColor      tcell.Color
	FlashInfoColor    tcell.Color
	FlashWarnColor    tcell.Color
	FlashErrColor     tcell.Color
	PromptBorderColor tcell.Color
	OwnMessageColor   tcell.Color
	DayRuleColor      tcell.Color
	TypingColor       tcell.Color
	OnlineColor       tcell.Color
	OfflineColor      tcell.Color
}

// DefaultTheme returns the dark terminal theme in the campus purple palette.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:           tcell.ColorDefault,
		FgColor:           tcell.ColorSilver,
		BorderColor:       tcell.ColorMediumPurple,
		BorderFocusColor:  tcell.ColorPlum,
		TableHeaderFg:     tcell.ColorWhite,
		TableHeaderBg:     tcell.ColorDefault,
		TableCursorFg:     tcell.ColorWhite,
		TableCursorBg:     tcell.ColorRebeccaPurple,
		CrumbActiveFg:     tcell.ColorWhite,
		CrumbActiveBg:     tcell.ColorDarkViolet,
		CrumbInactiveFg:   tcell.ColorBlack,
		CrumbInactiveBg:   tcell.ColorThistle,
		MenuKeyColor:      tcell.ColorMediumOrchid,
		NumericKeyColor:   tcell.ColorGold,
		TitleColor:        tcell.ColorViolet,
		CounterColor:      tcell.ColorLightGoldenrodYellow,
		FlashInfoColor:    tcell.ColorLightCyan,
		FlashWarnColor:    tcell.ColorGold,
		FlashErrColor:     tcell.ColorTomato,
		PromptBorderColor: tcell.ColorMediumOrchid,
		OwnMessageColor:   tcell.ColorLightSkyBlue,
		DayRuleColor:      tcell.ColorGray,
		TypingColor:       tcell.ColorMediumPurple,
		OnlineColor:       tcell.ColorLimeGreen,
		OfflineColor:      tcell.ColorTomato,
	}
}

// ColorName returns the tview color tag for c: its tcell name when it has
// one, a hex triplet otherwise.
func ColorName(c tcell.Color) string {
	for name, val := range tcell.ColorNames {
		if val == c {
			return name
		}
	}
	return fmt.Sprintf("#%06x", c.Hex())
}
