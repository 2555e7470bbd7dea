package ui

import (
	"sort"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode indicates the type of prompt (command or filter).
type PromptMode int

const (
	PromptCommand PromptMode = iota
	PromptFilter
)

const historySize = 50

// Prompt is the ":" command / "/" filter input bar. Command mode keeps a
// history (Up/Down) and completes command names.
type Prompt struct {
	*tview.InputField
	theme    *Theme
	mode     PromptMode
	commands []string
	history  []string
	cursor   int
	onSubmit func(mode PromptMode, text string)
	onCancel func()
}

// NewPrompt creates a new prompt input bar.
func NewPrompt(theme *Theme) *Prompt {
	input := tview.NewInputField()
	input.SetBorder(true)
	input.SetBorderColor(theme.PromptBorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	p := &Prompt{
		InputField: input,
		theme:      theme,
	}

	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			text := strings.TrimSpace(p.GetText())
			p.SetText("")
			if text == "" {
				if p.onCancel != nil {
					p.onCancel()
				}
				return
			}
			if p.mode == PromptCommand {
				p.remember(text)
			}
			if p.onSubmit != nil {
				p.onSubmit(p.mode, text)
			}
		case tcell.KeyEscape:
			p.SetText("")
			if p.onCancel != nil {
				p.onCancel()
			}
		}
	})
	input.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if p.mode != PromptCommand {
			return ev
		}
		switch ev.Key() {
		case tcell.KeyUp:
			p.step(-1)
			return nil
		case tcell.KeyDown:
			p.step(1)
			return nil
		}
		return ev
	})
	input.SetAutocompleteFunc(func(text string) []string {
		if p.mode != PromptCommand {
			return nil
		}
		return p.Complete(text)
	})

	return p
}

// SetCommands sets the command names offered for completion.
func (p *Prompt) SetCommands(names []string) {
	p.commands = append([]string(nil), names...)
	sort.Strings(p.commands)
}

// Complete returns the commands starting with the first word of text. Once
// arguments follow the command name nothing is offered.
func (p *Prompt) Complete(text string) []string {
	if text == "" || strings.ContainsRune(text, ' ') {
		return nil
	}
	var out []string
	for _, c := range p.commands {
		if strings.HasPrefix(c, strings.ToLower(text)) && c != text {
			out = append(out, c)
		}
	}
	return out
}

// History returns submitted commands, oldest first.
func (p *Prompt) History() []string {
	return append([]string(nil), p.history...)
}

func (p *Prompt) remember(text string) {
	if n := len(p.history); n > 0 && p.history[n-1] == text {
		p.cursor = len(p.history)
		return
	}
	p.history = append(p.history, text)
	if len(p.history) > historySize {
		p.history = p.history[len(p.history)-historySize:]
	}
	p.cursor = len(p.history)
}

// step moves through history; stepping past the newest entry clears the field.
func (p *Prompt) step(delta int) {
	next := p.cursor + delta
	if next < 0 || next > len(p.history) {
		return
	}
	p.cursor = next
	if next == len(p.history) {
		p.SetText("")
		return
	}
	p.SetText(p.history[next])
}

// SetOnSubmit sets the callback when the prompt is submitted.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) {
	p.onSubmit = fn
}

// SetOnCancel sets the callback when the prompt is cancelled.
func (p *Prompt) SetOnCancel(fn func()) {
	p.onCancel = fn
}

// Activate shows the prompt in the specified mode.
func (p *Prompt) Activate(mode PromptMode) {
	p.mode = mode
	p.cursor = len(p.history)
	p.SetText("")
	switch mode {
	case PromptCommand:
		p.SetLabel(":")
		p.SetTitle(" Command ")
	case PromptFilter:
		p.SetLabel("/")
		p.SetTitle(" Filter ")
	}
}

// Mode returns the current prompt mode.
func (p *Prompt) Mode() PromptMode {
	return p.mode
}
