package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/meszmate/parley/internal/app"
	"github.com/meszmate/parley/internal/logging"
	logview "github.com/meszmate/parley/internal/ui/components/chat"
	"github.com/meszmate/parley/internal/ui/components/commandline"
	occupantlist "github.com/meszmate/parley/internal/ui/components/muc"
	"github.com/meszmate/parley/internal/ui/components/roster"
	"github.com/meszmate/parley/internal/ui/components/statusbar"
	"github.com/meszmate/parley/internal/ui/components/windows"
	"github.com/meszmate/parley/internal/ui/keybindings"
	"github.com/meszmate/parley/internal/ui/theme"
	"github.com/meszmate/parley/internal/xmpp/chat"
)

// NoticeMsg carries a state change from the app into the program
type NoticeMsg struct {
	Notice app.Notice
}

// resultMsg is the outcome of a line run through the app
type resultMsg struct {
	target app.Target
	result app.Result
	err    error
}

// Forward sends every bus notice to the program
func Forward(p *tea.Program, bus *app.EventBus) {
	bus.SubscribeAll(func(n app.Notice) {
		p.Send(NoticeMsg{Notice: n})
	})
}

// Model is the root Bubble Tea model
type Model struct {
	state  State
	ctx    context.Context
	width  int
	height int
	ready  bool

	// Components
	log       logview.Model
	occupants occupantlist.Model
	roster    roster.Model
	statusbar statusbar.Model
	input     commandline.Model
	windows   windows.Model

	// Managers
	keys   *keybindings.Manager
	themes *theme.Manager

	showRoster    bool
	showOccupants bool
	quitting      bool
}

// NewModel creates a new root model. ctx bounds the commands typed by the
// user.
func NewModel(ctx context.Context, state State, themes *theme.Manager) Model {
	cfg := state.Config()
	styles := themes.Styles()

	m := Model{
		state:         state,
		ctx:           ctx,
		keys:          keybindings.NewManager(),
		themes:        themes,
		showRoster:    cfg.UI.ShowRoster,
		showOccupants: true,
		log:           logview.New(styles, cfg.UI.TimeFormat, cfg.UI.ShowTimestamps),
		occupants:     occupantlist.New(styles),
		roster:        roster.New(styles),
		statusbar:     statusbar.New(styles).SetAccount(state.Account().JID),
		input:         commandline.New(styles, app.Commands()),
		windows:       windows.New(styles),
	}
	m.refresh()
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.EnterAltScreen
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.updateComponentSizes()

	case tea.KeyMsg:
		action := m.keys.HandleKey(msg)
		if action == keybindings.ActionNone {
			if m.keys.Mode() == keybindings.ModeInsert {
				m.input, cmd = m.input.Update(msg)
			}
			break
		}
		cmd = m.handleAction(action)

	case NoticeMsg:
		m.handleNotice(msg.Notice)

	case resultMsg:
		cmd = m.handleResult(msg)
	}

	if m.quitting {
		return m, tea.Quit
	}
	m.refresh()
	return m, cmd
}

// handleAction processes keybinding actions
func (m *Model) handleAction(action keybindings.Action) tea.Cmd {
	if n, ok := keybindings.TabNumber(action); ok {
		m.windows = m.windows.GoTo(n)
		m.log = m.log.ScrollToBottom()
		return nil
	}

	switch action {
	case keybindings.ActionScrollUp:
		m.log = m.log.ScrollUp(1)
	case keybindings.ActionScrollDown:
		m.log = m.log.ScrollDown(1)
	case keybindings.ActionPageUp:
		m.log = m.log.ScrollUp(m.log.PageSize())
	case keybindings.ActionPageDown:
		m.log = m.log.ScrollDown(m.log.PageSize())
	case keybindings.ActionScrollTop:
		m.log = m.log.ScrollToTop()
	case keybindings.ActionScrollBottom:
		m.log = m.log.ScrollToBottom()

	case keybindings.ActionEnterInsert:
		m.keys.SetMode(keybindings.ModeInsert)
	case keybindings.ActionEnterCommand:
		m.keys.SetMode(keybindings.ModeInsert)
		m.input = m.input.SetValue("/")
	case keybindings.ActionExitMode:
		m.keys.SetMode(keybindings.ModeNormal)

	case keybindings.ActionNextTab:
		m.windows = m.windows.Next()
		m.log = m.log.ScrollToBottom()
	case keybindings.ActionPrevTab:
		m.windows = m.windows.Prev()
		m.log = m.log.ScrollToBottom()
	case keybindings.ActionCloseTab:
		if m.windows.ActiveNum() == 0 {
			return nil
		}
		return m.run(m.windows.Active().Target, "/close")

	case keybindings.ActionSubmit:
		var line string
		m.input, line = m.input.Submit()
		if line == "" {
			return nil
		}
		m.log = m.log.ScrollToBottom()
		return m.run(m.windows.Active().Target, line)
	case keybindings.ActionComplete:
		m.input = m.input.Complete()
	case keybindings.ActionHistoryPrev:
		m.input = m.input.HistoryPrev()
	case keybindings.ActionHistoryNext:
		m.input = m.input.HistoryNext()

	case keybindings.ActionToggleRoster:
		m.showRoster = !m.showRoster
		m.updateComponentSizes()
	case keybindings.ActionToggleOccupants:
		m.showOccupants = !m.showOccupants
		m.updateComponentSizes()
	case keybindings.ActionQuit:
		m.quitting = true
	}
	return nil
}

// run executes a line in the app without blocking the program
func (m *Model) run(target app.Target, line string) tea.Cmd {
	state, ctx := m.state, m.ctx
	return func() tea.Msg {
		res, err := state.Execute(ctx, target, line)
		return resultMsg{target: target, result: res, err: err}
	}
}

func (m *Model) handleResult(msg resultMsg) tea.Cmd {
	if msg.err != nil {
		if errors.Is(msg.err, app.ErrClosed) {
			m.quitting = true
		}
		logging.Debug("Command in %s failed: %v", msg.target.Key, msg.err)
		return nil
	}

	if msg.result.Close {
		if i := m.windows.Find(msg.target); i > 0 {
			m.windows = m.windows.Close(i)
		}
	}
	if t := msg.result.Open; t != nil {
		m.windows, _ = m.windows.Open(*t, resolve(m.state, *t).title)
		m.log = m.log.ScrollToBottom()
	}
	if msg.result.Quit {
		m.quitting = true
	}
	return nil
}

// handleNotice opens tabs for conversations started by someone else
func (m *Model) handleNotice(n app.Notice) {
	switch n.Type {
	case app.NoticeChat:
		if n.Key == app.ConsoleKey || n.Key == "" || n.Line.Kind != chat.LineMessage || n.Line.Outgoing {
			return
		}
		if _, isRoom := m.state.Room(n.Key); isRoom {
			return
		}
		t := app.Target{Kind: app.TargetContact, Key: n.Key}
		m.windows = m.windows.Add(t, resolve(m.state, t).title)
	}
}

// refresh pulls the current state into the components
func (m *Model) refresh() {
	for _, snap := range m.state.Rooms() {
		t := app.Target{Kind: app.TargetRoom, Key: snap.JID}
		m.windows = m.windows.Add(t, roomTitle(snap.JID))
	}
	for _, c := range m.state.Privates() {
		t := app.Target{Kind: app.TargetPrivate, Key: c.ID}
		m.windows = m.windows.Add(t, c.Nick)
	}

	active := m.windows.Active().Target
	if m.keys.Mode() == keybindings.ModeInsert || m.log.Offset() == 0 {
		m.state.MarkRead(active)
	}
	for _, w := range m.windows.Windows() {
		tb := resolve(m.state, w.Target)
		m.windows = m.windows.Update(w.Target, tb.title, m.state.Unread(w.Target), tb.highlight)
	}

	current := resolve(m.state, active)
	m.log = m.log.SetHeader(current.header).SetTyping(current.typing).SetLines(m.state.History(active, 0))
	if current.room != nil {
		list := current.room.Occupants
		app.SortOccupants(list)
		m.occupants = m.occupants.SetOccupants(list, current.room.OwnNick)
		m.log = m.log.SetNickColor(m.occupants.Color)
		m.input = m.input.SetNicks(nickOrder(list, current.room.OwnNick))
	} else {
		m.log = m.log.SetNickColor(nil)
		m.input = m.input.SetNicks(nil)
	}

	m.roster = m.roster.SetContacts(m.state.Contacts())
	unread := make(map[string]int)
	for _, w := range m.windows.Windows() {
		if w.Target.Kind == app.TargetContact && w.Unread > 0 {
			unread[w.Target.Key] = w.Unread
		}
	}
	m.roster = m.roster.SetUnread(unread)

	m.statusbar = m.statusbar.
		SetMode(m.keys.Mode()).
		SetConnected(m.state.Connected()).
		SetStatus(m.state.Status()).
		SetTab(current.title)
	if off := m.log.Offset(); off > 0 {
		m.statusbar = m.statusbar.SetExtraInfo("-- more --")
	} else {
		m.statusbar = m.statusbar.SetExtraInfo("")
	}

	m.updateComponentSizes()
}

// sideWidths returns the widths of the roster and occupant columns
func (m *Model) sideWidths() (int, int) {
	rosterWidth := 0
	if m.showRoster {
		rosterWidth = m.state.Config().UI.RosterWidth
	}
	occupantsWidth := 0
	if m.showOccupants && m.windows.Active().Target.Kind == app.TargetRoom {
		occupantsWidth = 22
	}
	if rosterWidth+occupantsWidth > m.width/2 {
		rosterWidth, occupantsWidth = 0, min(occupantsWidth, m.width/3)
	}
	return rosterWidth, occupantsWidth
}

// updateComponentSizes updates component dimensions based on window size
func (m *Model) updateComponentSizes() {
	if !m.ready {
		return
	}
	rosterWidth, occupantsWidth := m.sideWidths()
	chatWidth := m.width - rosterWidth - occupantsWidth

	// tab bar, input line and status bar
	mainHeight := m.height - 3

	m.roster = m.roster.SetSize(max(rosterWidth-2, 0), max(mainHeight-2, 0))
	m.occupants = m.occupants.SetSize(max(occupantsWidth-2, 0), max(mainHeight-2, 0))
	m.log = m.log.SetSize(max(chatWidth-2, 0), max(mainHeight-2, 0))
	m.windows = m.windows.SetWidth(m.width)
	m.statusbar = m.statusbar.SetWidth(m.width)
	m.input = m.input.SetWidth(m.width)
}

// View renders the model
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.quitting {
		return "Goodbye!\n"
	}

	styles := m.themes.Styles()
	rosterWidth, occupantsWidth := m.sideWidths()
	chatWidth := m.width - rosterWidth - occupantsWidth
	mainHeight := m.height - 3

	box := func(view string, width int, active bool) string {
		style := styles.WindowInactive
		if active {
			style = styles.WindowActive
		}
		return style.Width(max(width-2, 0)).Height(max(mainHeight-2, 0)).Render(view)
	}

	columns := []string{}
	if rosterWidth > 0 {
		columns = append(columns, box(m.roster.View(), rosterWidth, false))
	}
	columns = append(columns, box(m.log.View(), chatWidth, true))
	if occupantsWidth > 0 {
		columns = append(columns, box(m.occupants.View(), occupantsWidth, false))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.windows.View(),
		lipgloss.JoinHorizontal(lipgloss.Top, columns...),
		m.input.View(),
		m.statusbar.View(),
	)
}
