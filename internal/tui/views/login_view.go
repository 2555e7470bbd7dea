package views

import (
	"strings"

	"github.com/rivo/tview"

	"github.com/faeterjconnect/connect/internal/rpc"
	"github.com/faeterjconnect/connect/internal/tui/ui"
)

var (
	roles  = []string{"ALUNO", "PROFESSOR"}
	turnos = []string{"MANHA", "TARDE", "NOITE"}
)

// LoginView is the sign-in form shown while the session is logged out.
// Username, role and shift are only used by Register.
type LoginView struct {
	*tview.Flex
	theme      *ui.Theme
	form       *tview.Form
	message    *tview.TextView
	onLogin    func(email, password string)
	onRegister func(req *rpc.RegisterRequest)
}

// NewLoginView creates a new login view.
func NewLoginView(theme *ui.Theme) *LoginView {
	form := tview.NewForm()
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetFieldBackgroundColor(theme.BgColor)
	form.SetFieldTextColor(theme.FgColor)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.TableCursorBg)
	form.SetButtonTextColor(theme.TableCursorFg)
	form.SetTitle(" Sign in ")
	form.SetTitleColor(theme.TitleColor)

	message := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	message.SetBackgroundColor(theme.BgColor)

	lv := &LoginView{
		theme:   theme,
		form:    form,
		message: message,
	}

	form.AddInputField("Email", "", 40, nil, nil).
		AddPasswordField("Password", "", 40, '*', nil).
		AddInputField("Username", "", 40, nil, nil).
		AddDropDown("Role", roles, 0, nil).
		AddDropDown("Shift", turnos, 0, nil).
		AddButton("Login", lv.submitLogin).
		AddButton("Register", lv.submitRegister)

	lv.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(form, 60, 0, true).
			AddItem(nil, 0, 1, false), 15, 0, true).
		AddItem(message, 2, 0, false).
		AddItem(nil, 0, 1, false)

	return lv
}

// Name implements Component.
func (lv *LoginView) Name() string { return "Login" }

// FocusTarget implements Component.
func (lv *LoginView) FocusTarget() tview.Primitive { return lv.form }

// Hints implements Component.
func (lv *LoginView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Enter", Description: "Submit"},
		{Key: "Ctrl-C", Description: "Quit"},
	}
}

// SetOnLogin sets the login callback.
func (lv *LoginView) SetOnLogin(fn func(email, password string)) {
	lv.onLogin = fn
}

// SetOnRegister sets the register callback.
func (lv *LoginView) SetOnRegister(fn func(req *rpc.RegisterRequest)) {
	lv.onRegister = fn
}

// ShowMessage displays a status line under the form.
func (lv *LoginView) ShowMessage(msg string) {
	lv.message.Clear()
	lv.message.SetText(tview.Escape(msg))
}

// ShowError displays an error line under the form.
func (lv *LoginView) ShowError(err error) {
	lv.message.Clear()
	lv.message.SetText("[" + ui.ColorName(lv.theme.FlashErrColor) + "]" + tview.Escape(err.Error()) + "[-]")
}

func (lv *LoginView) text(label string) string {
	if f, ok := lv.form.GetFormItemByLabel(label).(*tview.InputField); ok {
		return strings.TrimSpace(f.GetText())
	}
	return ""
}

func (lv *LoginView) option(label string) string {
	if d, ok := lv.form.GetFormItemByLabel(label).(*tview.DropDown); ok {
		_, opt := d.GetCurrentOption()
		return opt
	}
	return ""
}

func (lv *LoginView) submitLogin() {
	email, password := lv.text("Email"), lv.text("Password")
	if email == "" || password == "" {
		lv.ShowMessage("email and password are required")
		return
	}
	lv.ShowMessage("Signing in…")
	if lv.onLogin != nil {
		lv.onLogin(email, password)
	}
}

func (lv *LoginView) submitRegister() {
	req := &rpc.RegisterRequest{
		Username: lv.text("Username"),
		Email:    lv.text("Email"),
		Password: lv.text("Password"),
		Role:     lv.option("Role"),
		Turno:    lv.option("Shift"),
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		lv.ShowMessage("username, email and password are required")
		return
	}
	lv.ShowMessage("Creating account…")
	if lv.onRegister != nil {
		lv.onRegister(req)
	}
}

// Reset clears the password field and status line.
func (lv *LoginView) Reset() {
	if f, ok := lv.form.GetFormItemByLabel("Password").(*tview.InputField); ok {
		f.SetText("")
	}
	lv.message.Clear()
}
