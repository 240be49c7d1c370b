package statusbar

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/meszmate/parley/internal/ui/keybindings"
	"github.com/meszmate/parley/internal/ui/theme"
	"github.com/meszmate/parley/internal/xmpp/presence"
)

// Model represents the status bar component
type Model struct {
	width     int
	mode      keybindings.Mode
	account   string
	status    presence.Status
	connected bool
	tab       string
	extraInfo string
	styles    *theme.Styles
}

// New creates a new status bar model
func New(styles *theme.Styles) Model {
	return Model{
		styles: styles,
		mode:   keybindings.ModeNormal,
	}
}

// SetWidth sets the status bar width
func (m Model) SetWidth(width int) Model {
	m.width = width
	return m
}

// SetMode sets the current mode
func (m Model) SetMode(mode keybindings.Mode) Model {
	m.mode = mode
	return m
}

// SetAccount sets the current account
func (m Model) SetAccount(account string) Model {
	m.account = account
	return m
}

// SetStatus sets our own presence
func (m Model) SetStatus(status presence.Status) Model {
	m.status = status
	return m
}

// SetConnected sets the connection state
func (m Model) SetConnected(connected bool) Model {
	m.connected = connected
	return m
}

// SetTab sets the title of the focused tab
func (m Model) SetTab(title string) Model {
	m.tab = title
	return m
}

// SetExtraInfo sets extra info to display, such as a scroll hint
func (m Model) SetExtraInfo(info string) Model {
	m.extraInfo = info
	return m
}

// View renders the status bar
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	modeStyle := m.styles.StatusModeNormal
	if m.mode == keybindings.ModeInsert {
		modeStyle = m.styles.StatusModeInsert
	}
	modeText := modeStyle.Render(m.mode.String())

	var accountSection string
	if m.account != "" {
		indicator := m.styles.PresenceOffline.Render("○")
		statusText := " [offline]"
		if m.connected {
			indicator, statusText = m.presence()
		}
		accountSection = fmt.Sprintf(" %s %s%s", indicator, m.account, statusText)
	}

	left := fmt.Sprintf(" %s%s", modeText, accountSection)
	right := m.tab
	if m.extraInfo != "" {
		right += " | " + m.extraInfo
	}
	right += " "

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 0 {
		padding = 0
	}
	return m.styles.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", padding) + right)
}

// presence returns the indicator and the bracketed show text for an online
// account
func (m Model) presence() (string, string) {
	text := ""
	if m.status.Show != presence.ShowAvailable {
		text = " [" + m.status.Show.String()
		if m.status.Message != "" {
			text += ": " + m.status.Message
		}
		text += "]"
	} else if m.status.Message != "" {
		text = " [" + m.status.Message + "]"
	}

	switch m.status.Show {
	case presence.ShowAway:
		return m.styles.PresenceAway.Render("◐"), text
	case presence.ShowDND:
		return m.styles.PresenceDND.Render("⊘"), text
	case presence.ShowXA:
		return m.styles.PresenceXA.Render("◯"), text
	default:
		return m.styles.PresenceOnline.Render("●"), text
	}
}
