package windows

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/meszmate/parley/internal/app"
	"github.com/meszmate/parley/internal/ui/theme"
)

// Window is one tab of the tab bar
type Window struct {
	Target app.Target
	Title  string
	Unread int
	// Highlight marks tabs whose room or conversation left the joined state
	Highlight bool
}

// Model is the ordered list of open tabs. The console is always tab 0.
type Model struct {
	windows    []Window
	active     int
	maxWindows int
	width      int
	styles     *theme.Styles
}

// New creates a new window manager
func New(styles *theme.Styles) Model {
	return Model{
		windows:    []Window{{Target: app.Console, Title: "console"}},
		maxWindows: 30,
		styles:     styles,
	}
}

// Open focuses the tab showing target, creating it if needed. It reports
// whether a new tab was added.
func (m Model) Open(target app.Target, title string) (Model, bool) {
	if i := m.Find(target); i >= 0 {
		m.active = i
		return m, false
	}
	if len(m.windows) >= m.maxWindows {
		return m, false
	}
	m.windows = append(append([]Window(nil), m.windows...), Window{Target: target, Title: title})
	m.active = len(m.windows) - 1
	return m, true
}

// Add creates a tab without focusing it
func (m Model) Add(target app.Target, title string) Model {
	if m.Find(target) >= 0 || len(m.windows) >= m.maxWindows {
		return m
	}
	m.windows = append(append([]Window(nil), m.windows...), Window{Target: target, Title: title})
	return m
}

// Find returns the index of the tab showing target, or -1
func (m Model) Find(target app.Target) int {
	for i, w := range m.windows {
		if w.Target == target {
			return i
		}
	}
	return -1
}

// CloseActive closes the active tab. The console cannot be closed.
func (m Model) CloseActive() Model {
	return m.Close(m.active)
}

// Close closes a tab by index
func (m Model) Close(i int) Model {
	if i <= 0 || i >= len(m.windows) {
		return m
	}
	windows := make([]Window, 0, len(m.windows)-1)
	windows = append(windows, m.windows[:i]...)
	m.windows = append(windows, m.windows[i+1:]...)

	if m.active > i || m.active >= len(m.windows) {
		m.active--
	}
	return m
}

// Next moves to the next tab
func (m Model) Next() Model {
	m.active = (m.active + 1) % len(m.windows)
	return m
}

// Prev moves to the previous tab
func (m Model) Prev() Model {
	m.active = (m.active - 1 + len(m.windows)) % len(m.windows)
	return m
}

// GoTo focuses a tab by index
func (m Model) GoTo(i int) Model {
	if i >= 0 && i < len(m.windows) {
		m.active = i
	}
	return m
}

// Active returns the focused tab
func (m Model) Active() Window {
	return m.windows[m.active]
}

// ActiveNum returns the index of the focused tab
func (m Model) ActiveNum() int {
	return m.active
}

// Count returns the number of tabs
func (m Model) Count() int {
	return len(m.windows)
}

// Windows returns all tabs
func (m Model) Windows() []Window {
	return m.windows
}

// Update replaces the title, unread counter and highlight of a tab
func (m Model) Update(target app.Target, title string, unread int, highlight bool) Model {
	i := m.Find(target)
	if i < 0 {
		return m
	}
	windows := append([]Window(nil), m.windows...)
	windows[i].Title = title
	windows[i].Unread = unread
	windows[i].Highlight = highlight
	m.windows = windows
	return m
}

// SetWidth sets the tab bar width
func (m Model) SetWidth(width int) Model {
	m.width = width
	return m
}

// View renders the tab bar
func (m Model) View() string {
	parts := make([]string, 0, len(m.windows))
	for i, w := range m.windows {
		label := fmt.Sprintf("%d:%s", i+1, w.Title)
		if w.Unread > 0 {
			label += fmt.Sprintf(" (%d)", w.Unread)
		}
		if w.Highlight {
			label += " !"
		}

		style := m.styles.TabInactive
		switch {
		case i == m.active:
			style = m.styles.TabActive
		case w.Unread > 0:
			style = m.styles.TabUnread
		}
		parts = append(parts, style.Render(label))
	}

	bar := strings.Join(parts, "")
	if m.width > 0 {
		bar = lipgloss.NewStyle().MaxWidth(m.width).Render(bar)
	}
	return bar
}
