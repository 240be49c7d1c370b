package roster

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/meszmate/parley/internal/ui/theme"
	"github.com/meszmate/parley/internal/xmpp/presence"
	"github.com/meszmate/parley/internal/xmpp/roster"
)

const ungrouped = "Contacts"

// Model renders the contact list grouped by roster group
type Model struct {
	contacts []roster.Contact
	groups   map[string][]roster.Contact
	names    []string
	unread   map[string]int
	width    int
	height   int
	styles   *theme.Styles
}

// New creates a new roster model
func New(styles *theme.Styles) Model {
	return Model{
		groups: make(map[string][]roster.Contact),
		unread: make(map[string]int),
		styles: styles,
	}
}

// SetContacts sets the roster contacts
func (m Model) SetContacts(contacts []roster.Contact) Model {
	m.contacts = contacts
	m.groups = make(map[string][]roster.Contact)
	for _, c := range contacts {
		if len(c.Groups) == 0 {
			m.groups[ungrouped] = append(m.groups[ungrouped], c)
			continue
		}
		for _, g := range c.Groups {
			m.groups[g] = append(m.groups[g], c)
		}
	}

	m.names = nil
	for g := range m.groups {
		if g != ungrouped {
			m.names = append(m.names, g)
		}
	}
	sort.Strings(m.names)
	if _, ok := m.groups[ungrouped]; ok {
		m.names = append(m.names, ungrouped)
	}

	for _, g := range m.names {
		members := m.groups[g]
		sort.SliceStable(members, func(i, j int) bool {
			oi, oj := members[i].Online(), members[j].Online()
			if oi != oj {
				return oi
			}
			return strings.ToLower(members[i].DisplayName()) < strings.ToLower(members[j].DisplayName())
		})
	}
	return m
}

// SetUnread sets the unread counters keyed by bare JID
func (m Model) SetUnread(unread map[string]int) Model {
	m.unread = unread
	return m
}

// SetSize sets the component size
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	return m
}

// Groups returns the group names in display order
func (m Model) Groups() []string {
	return m.names
}

// View renders the contact list
func (m Model) View() string {
	if len(m.contacts) == 0 {
		return m.styles.ChatInfo.Render("No contacts")
	}

	var rows []string
	for _, g := range m.names {
		members := m.groups[g]
		online := 0
		for _, c := range members {
			if c.Online() {
				online++
			}
		}
		rows = append(rows, m.styles.Group.Render(fmt.Sprintf("%s (%d/%d)", g, online, len(members))))
		for _, c := range members {
			rows = append(rows, m.renderContact(c))
		}
	}

	if m.height > 0 && len(rows) > m.height {
		rows = rows[:m.height]
	}
	return lipgloss.NewStyle().Width(m.width).Render(strings.Join(rows, "\n"))
}

// renderContact renders a single contact
func (m Model) renderContact(c roster.Contact) string {
	indicator := m.statusIndicator(c.Show())

	name := c.DisplayName()
	suffix := ""
	if c.PendingIn {
		suffix = " ?"
	} else if c.Error != "" {
		suffix = " !"
	}
	if n := m.unread[c.JID.String()]; n > 0 {
		suffix += fmt.Sprintf(" (%d)", n)
	}

	room := m.width - 3 - len([]rune(suffix))
	if room > 1 && len([]rune(name)) > room {
		name = string([]rune(name)[:room-1]) + "…"
	}

	style := m.styles.Base
	if !c.Online() {
		style = m.styles.PresenceOffline
	}
	return " " + indicator + " " + style.Render(name) + m.styles.TabUnread.UnsetPadding().Render(suffix)
}

func (m Model) statusIndicator(s presence.Show) string {
	switch s {
	case presence.ShowAvailable, presence.ShowChat:
		return m.styles.PresenceOnline.Render("●")
	case presence.ShowAway:
		return m.styles.PresenceAway.Render("◐")
	case presence.ShowDND:
		return m.styles.PresenceDND.Render("⊘")
	case presence.ShowXA:
		return m.styles.PresenceXA.Render("◯")
	default:
		return m.styles.PresenceOffline.Render("○")
	}
}
