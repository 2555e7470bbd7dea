package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/faeterjconnect/connect/internal/avatar"
	"github.com/faeterjconnect/connect/internal/rpc"
	"github.com/faeterjconnect/connect/internal/tui/client"
	"github.com/faeterjconnect/connect/internal/tui/keys"
	"github.com/faeterjconnect/connect/internal/tui/model"
	"github.com/faeterjconnect/connect/internal/tui/ui"
	"github.com/faeterjconnect/connect/internal/tui/views"
)

const (
	pageLogin         = "login"
	pageConversations = "conversations"
	pageThread        = "thread"
	pageDetails       = "details"
	pageSearch        = "search"
	pageHelp          = "help"
	pageVehicles      = "vehicles"
	pageFeed          = "feed"
)

// typingEvery throttles composer keystrokes before they reach the daemon.
const typingEvery = time.Second

// App is the main TUI application shell.
type App struct {
	app         *tview.Application
	vm          *model.ViewModel
	registry    *keys.Registry
	theme       *ui.Theme
	sessionName string

	root     *tview.Flex
	pages    *ui.Pages
	info     *ui.SessionInfo
	menu     *ui.Menu
	crumbs   *ui.Crumbs
	flashBar *ui.FlashBar
	prompt   *ui.Prompt

	login    *views.LoginView
	convList *views.ConversationList
	thread   *views.MessageThread
	details  *views.ConversationInfo
	search   *views.SearchView
	help     *views.HelpView
	vehicles *views.VehiclesView
	feed     *views.FeedView

	components map[string]ui.Component

	statusAt   time.Time
	lastTyping time.Time

	// stopVehicles ends the vehicle stream while its page is hidden.
	stopVehicles context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c *client.Client, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()
	colors := avatar.NewCache()

	a := &App{
		app:         tview.NewApplication(),
		vm:          model.NewViewModel(c),
		registry:    keys.NewRegistry(),
		theme:       theme,
		sessionName: sessionName,
		pages:       ui.NewPages(),
		info:        ui.NewSessionInfo(theme),
		menu:        ui.NewMenu(theme),
		crumbs:      ui.NewCrumbs(theme),
		flashBar:    ui.NewFlashBar(theme),
		prompt:      ui.NewPrompt(theme),
		login:       views.NewLoginView(theme),
		convList:    views.NewConversationList(theme, colors),
		thread:      views.NewMessageThread(theme, colors),
		details:     views.NewConversationInfo(theme, colors),
		help:        views.NewHelpView(theme),
		vehicles:    views.NewVehiclesView(theme),
		feed:        views.NewFeedView(theme),
		ctx:         ctx,
		cancel:      cancel,
	}
	a.search = views.NewSearchView(theme, a.conversationName)

	a.setupPages()
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupPages() {
	a.components = map[string]ui.Component{
		pageLogin:         a.login,
		pageConversations: a.convList,
		pageThread:        a.thread,
		pageDetails:       a.details,
		pageSearch:        a.search,
		pageHelp:          a.help,
		pageVehicles:      a.vehicles,
		pageFeed:          a.feed,
	}
	for name, c := range a.components {
		a.pages.AddPage(name, c, true, false)
	}
	a.pages.SetOnChange(func(stack []string) {
		crumbs := make([]string, len(stack))
		for i, name := range stack {
			crumbs[i] = a.components[name].Name()
		}
		a.crumbs.Update(crumbs)
		if len(stack) > 0 {
			top := stack[len(stack)-1]
			a.menu.Update(a.components[top].Hints())
			if top == pageVehicles {
				a.watchVehicles()
			} else {
				a.unwatchVehicles()
			}
		}
	})
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(keys.Rune('q', a.Stop))
	a.registry.AddGlobal(keys.Rune('?', func() { a.push(pageHelp) }))
	a.registry.AddGlobal(keys.Rune(':', func() { a.showPrompt(ui.PromptCommand) }))

	a.registry.AddView(pageConversations, keys.Rune('/', func() { a.showPrompt(ui.PromptFilter) }))
	a.registry.AddView(pageConversations, keys.Rune('r', func() { a.refreshConversations(true) }))
	a.registry.AddView(pageConversations, keys.Rune('v', a.showVehicles))
	a.registry.AddView(pageConversations, keys.Rune('f', a.showFeed))
	a.registry.AddView(pageConversations, keys.Rune('0', a.convList.ClearFilter))
	for n := 1; n <= 9; n++ {
		a.registry.AddView(pageConversations, keys.Rune(rune('0'+n), func() {
			if id := a.convList.ConversationByIndex(n); id != "" {
				a.openConversation(id)
			}
		}))
	}

	a.registry.AddView(pageThread, keys.Rune('i', func() { a.app.SetFocus(a.thread.Composer()) }))
	a.registry.AddView(pageThread, keys.Rune('d', a.showDetails))

	a.registry.AddView(pageVehicles, keys.Rune('r', a.loadVehicles))

	a.registry.AddView(pageFeed, keys.Rune('r', a.loadFeed))
	a.registry.AddView(pageFeed, keys.Rune('l', a.toggleLike))
}

func (a *App) setupCallbacks() {
	a.login.SetOnLogin(func(email, password string) {
		go func() {
			if err := a.vm.Login(a.ctx, email, password); err != nil {
				a.app.QueueUpdateDraw(func() { a.login.ShowError(err) })
				return
			}
			a.afterLogin()
		}()
	})
	a.login.SetOnRegister(func(req *rpc.RegisterRequest) {
		go func() {
			if err := a.vm.Register(a.ctx, req); err != nil {
				a.app.QueueUpdateDraw(func() { a.login.ShowError(err) })
				return
			}
			a.afterLogin()
		}()
	})

	a.convList.SetSelectedFunc(func(row, _ int) {
		if id := a.convList.ConversationByIndex(row); id != "" {
			a.openConversation(id)
		}
	})

	a.thread.SetOnSend(func(text string) {
		go func() {
			err := a.vm.SendText(a.ctx, text)
			a.app.QueueUpdateDraw(func() {
				if err != nil {
					a.vm.Flash.Err(fmt.Errorf("send failed: %w", err))
					a.renderFlash()
					return
				}
				a.thread.Update(a.vm.GetThread())
			})
		}()
	})
	a.thread.SetOnTyping(func() {
		if time.Since(a.lastTyping) < typingEvery {
			return
		}
		a.lastTyping = time.Now()
		go a.vm.Typing(a.ctx)
	})

	a.search.SetOnQuery(a.runSearch)
	a.search.Results().SetSelectedFunc(func(_, _ int) {
		if convID, _ := a.search.SelectedResult(); convID != "" {
			a.openConversation(convID)
		}
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptFilter:
			a.convList.SetFilter(text)
		case ui.PromptCommand:
			cmd, err := ParseCommand(text)
			if err != nil {
				a.vm.Flash.Warn(err.Error())
				a.renderFlash()
				return
			}
			a.execCommand(cmd)
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)
	a.prompt.SetCommands(commandNames())
}

func (a *App) setupLayout() {
	logo := ui.NewLogo(a.theme)
	header := tview.NewFlex().
		AddItem(a.info, 0, 2, false).
		AddItem(a.menu, 0, 2, false).
		AddItem(logo, 16, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)

	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	if ev.Key() == tcell.KeyCtrlC {
		a.Stop()
		return nil
	}

	current := a.pages.Current()
	focused := a.app.GetFocus()

	// Forms and the prompt consume every key they receive.
	if current == pageLogin || focused == a.prompt.InputField {
		return ev
	}

	if ev.Key() == tcell.KeyEscape {
		switch {
		case focused == a.thread.Composer():
			a.app.SetFocus(a.thread.Messages())
		case a.pages.Depth() > 1:
			a.pop()
		case current == pageConversations:
			a.convList.ClearFilter()
		}
		return nil
	}

	if _, ok := focused.(*tview.InputField); ok {
		return ev
	}

	if a.registry.HandleEvent(current, ev) {
		return nil
	}
	return ev
}

func (a *App) push(page string) {
	if a.pages.Current() == page {
		return
	}
	a.pages.Push(page)
	a.app.SetFocus(a.components[page].FocusTarget())
}

func (a *App) pop() {
	a.pages.Pop()
	a.app.SetFocus(a.components[a.pages.Current()].FocusTarget())
}

func (a *App) reset(page string) {
	a.pages.Reset(page)
	a.app.SetFocus(a.components[page].FocusTarget())
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt.InputField)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	a.app.SetFocus(a.components[a.pages.Current()].FocusTarget())
}

func (a *App) flash(err error) {
	a.app.QueueUpdateDraw(func() {
		a.vm.Flash.Err(err)
		a.renderFlash()
	})
}

func (a *App) execCommand(cmd Command) {
	switch cmd.Name {
	case "search":
		a.push(pageSearch)
		if cmd.Args != "" {
			a.search.SetQuery(cmd.Args)
			a.runSearch(cmd.Args)
		}
	case "chat":
		conv, ok := a.vm.FindConversation(cmd.Args)
		if !ok {
			a.vm.Flash.Warn(fmt.Sprintf("no conversation matches %q", cmd.Args))
			a.renderFlash()
			return
		}
		a.openConversation(conv.ID)
	case "open":
		go func() {
			conv, err := a.vm.OpenConversation(a.ctx, cmd.Args)
			if err != nil {
				a.flash(err)
				return
			}
			a.app.QueueUpdateDraw(a.renderConversations)
			a.openConversation(conv.ID)
		}()
	case "vehicles":
		a.showVehicles()
	case "feed":
		a.showFeed()
	case "logout":
		go func() {
			if err := a.vm.Logout(a.ctx); err != nil {
				a.flash(err)
				return
			}
			a.app.QueueUpdateDraw(a.showLogin)
		}()
	case "help":
		a.push(pageHelp)
	case "quit":
		a.Stop()
	}
}

func (a *App) openConversation(id string) {
	go func() {
		if err := a.vm.Select(a.ctx, id); err != nil {
			a.flash(err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.thread.Update(a.vm.GetThread())
			if a.pages.Current() != pageThread {
				a.reset(pageConversations)
				a.push(pageThread)
			}
		})
	}()
}

func (a *App) showDetails() {
	conv, ok := a.vm.FindConversation(a.thread.ConversationID())
	if !ok {
		return
	}
	a.details.Update(conv)
	a.push(pageDetails)
}

func (a *App) runSearch(query string) {
	go func() {
		results, err := a.vm.SearchMessages(a.ctx, query)
		if err != nil {
			a.flash(fmt.Errorf("search failed: %w", err))
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.search.Update(results)
			a.app.SetFocus(a.search.Results())
		})
	}()
}

func (a *App) showVehicles() {
	a.vehicles.Update(a.vm.GetVehicles())
	a.push(pageVehicles)
}

// watchVehicles keeps the vehicles page refreshed on the daemon's poll
// interval until unwatchVehicles.
func (a *App) watchVehicles() {
	if a.stopVehicles != nil {
		return
	}
	ctx, cancel := context.WithCancel(a.ctx)
	a.stopVehicles = cancel
	go func() {
		err := a.vm.WatchVehicles(ctx, func(c model.Change) {
			a.app.QueueUpdateDraw(func() { a.apply(c) })
		})
		if err != nil && ctx.Err() == nil {
			a.flash(err)
		}
	}()
}

func (a *App) unwatchVehicles() {
	if a.stopVehicles != nil {
		a.stopVehicles()
		a.stopVehicles = nil
	}
}

func (a *App) loadVehicles() {
	go func() {
		if err := a.vm.LoadVehicles(a.ctx); err != nil {
			a.flash(err)
			return
		}
		a.app.QueueUpdateDraw(func() { a.vehicles.Update(a.vm.GetVehicles()) })
	}()
}

func (a *App) showFeed() {
	a.feed.Update(a.vm.GetPosts())
	a.push(pageFeed)
	a.loadFeed()
}

func (a *App) loadFeed() {
	go func() {
		if err := a.vm.LoadPosts(a.ctx); err != nil {
			a.flash(err)
			return
		}
		a.app.QueueUpdateDraw(func() { a.feed.Update(a.vm.GetPosts()) })
	}()
}

func (a *App) toggleLike() {
	postID := a.feed.SelectedPost()
	if postID == "" {
		return
	}
	go func() {
		if err := a.vm.ToggleLike(a.ctx, postID); err != nil {
			a.flash(err)
			return
		}
		a.app.QueueUpdateDraw(func() { a.feed.Update(a.vm.GetPosts()) })
	}()
}

func (a *App) refreshConversations(fromServer bool) {
	go func() {
		if err := a.vm.LoadConversations(a.ctx, fromServer); err != nil {
			a.flash(err)
			return
		}
		a.app.QueueUpdateDraw(a.renderConversations)
	}()
}

func (a *App) afterLogin() {
	if err := a.vm.LoadStatus(a.ctx); err != nil {
		a.flash(err)
	}
	if err := a.vm.LoadConversations(a.ctx, false); err != nil {
		a.flash(err)
	}
	a.app.QueueUpdateDraw(func() {
		a.statusAt = time.Now()
		a.login.Reset()
		a.renderStatus()
		a.renderConversations()
		a.reset(pageConversations)
	})
}

func (a *App) showLogin() {
	a.login.Reset()
	a.renderStatus()
	a.renderConversations()
	a.reset(pageLogin)
}

func (a *App) conversationName(id string) string {
	for _, c := range a.vm.GetConversations() {
		if c.ID == id {
			return c.DisplayName
		}
	}
	return id
}

func (a *App) selfID() string {
	if st := a.vm.GetStatus(); st != nil {
		return st.UserID
	}
	return ""
}

func (a *App) renderConversations() {
	a.convList.Update(a.vm.GetConversations(), a.selfID())
}

func (a *App) renderStatus() {
	st := a.vm.GetStatus()
	if st == nil {
		a.info.Update(&ui.SessionData{Session: a.sessionName, Status: "BOOTING"})
		return
	}
	a.info.Update(&ui.SessionData{
		Session:       a.sessionName,
		User:          st.Username,
		Status:        st.Status,
		Connected:     st.Connected,
		Conversations: len(a.vm.GetConversations()),
		Uptime:        a.uptime(st),
	})
}

func (a *App) uptime(st *rpc.GetStatusResponse) time.Duration {
	d := time.Duration(st.UptimeMs) * time.Millisecond
	if !a.statusAt.IsZero() {
		d += time.Since(a.statusAt)
	}
	return d
}

func (a *App) renderFlash() {
	a.flashBar.Update(a.vm.Flash.GetMessage())
}

// apply redraws the parts of the screen an event touched. Runs on the UI
// goroutine.
func (a *App) apply(c model.Change) {
	if c.Has(model.ChangeStatus) {
		a.renderStatus()
		st := a.vm.GetStatus()
		loggedOut := st != nil && st.Status == "LOGGED_OUT"
		switch {
		case loggedOut && a.pages.Current() != pageLogin:
			a.showLogin()
		case !loggedOut && a.pages.Current() == pageLogin && st != nil && st.UserID != "":
			a.reset(pageConversations)
		}
	}
	if c.Has(model.ChangeConversations) {
		a.renderConversations()
	}
	if c.Has(model.ChangeThread) {
		a.thread.Update(a.vm.GetThread())
	} else if c.Has(model.ChangeTyping) {
		a.thread.UpdateHeader(a.vm.GetThread())
	}
	if c.Has(model.ChangeVehicles) {
		a.vehicles.Update(a.vm.GetVehicles())
	}
	if c.Has(model.ChangeFlash) {
		a.renderFlash()
	}
}

func (a *App) tick() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() {
				a.renderFlash()
				a.renderStatus()
			})
		}
	}
}

func (a *App) loadInitial() {
	st := a.vm.GetStatus()
	if st.Status == "LOGGED_OUT" {
		a.app.QueueUpdateDraw(func() {
			a.statusAt = time.Now()
			a.showLogin()
		})
		return
	}
	if err := a.vm.LoadConversations(a.ctx, false); err != nil {
		a.flash(err)
	}
	a.app.QueueUpdateDraw(func() {
		a.statusAt = time.Now()
		a.renderStatus()
		a.renderConversations()
	})
	if st.ActiveID != "" {
		a.openConversation(st.ActiveID)
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	a.renderStatus()
	a.reset(pageConversations)

	go func() {
		if err := a.vm.LoadStatus(a.ctx); err != nil {
			a.flash(fmt.Errorf("daemon unavailable: %w", err))
		} else {
			a.loadInitial()
		}
		go a.tick()
		a.vm.Watch(a.ctx, func(c model.Change) {
			a.app.QueueUpdateDraw(func() { a.apply(c) })
		})
	}()

	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
