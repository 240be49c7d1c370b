package muc

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/meszmate/parley/internal/ui/theme"
	"github.com/meszmate/parley/internal/xmpp/muc"
	"github.com/meszmate/parley/internal/xmpp/presence"
)

// Model renders the occupant list of a room
type Model struct {
	occupants []muc.Occupant
	ownNick   string
	width     int
	height    int
	styles    *theme.Styles
}

// New creates a new occupant list
func New(styles *theme.Styles) Model {
	return Model{styles: styles, width: 20}
}

// SetOccupants sets the occupants, already in display order
func (m Model) SetOccupants(occupants []muc.Occupant, ownNick string) Model {
	m.occupants = occupants
	m.ownNick = ownNick
	return m
}

// SetSize sets the component size
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	return m
}

// Width returns the list width
func (m Model) Width() int {
	return m.width
}

// Color returns the color of an occupant, or "" when nobody has that nick
func (m Model) Color(nick string) string {
	for _, o := range m.occupants {
		if o.Nick == nick {
			return string(o.Color)
		}
	}
	return ""
}

// View renders the occupant list grouped by role
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Group.Render(truncate(headerText(len(m.occupants)), m.width)))

	rows := 1
	var role muc.Role
	for i, o := range m.occupants {
		if m.height > 0 && rows >= m.height {
			break
		}
		if i == 0 || o.Role != role {
			role = o.Role
			b.WriteString("\n")
			b.WriteString(m.styles.ChatTimestamp.Render(roleTitle(role)))
			rows++
		}
		b.WriteString("\n")
		b.WriteString(m.renderOccupant(o))
		rows++
	}
	return lipgloss.NewStyle().Width(m.width).Render(b.String())
}

func headerText(n int) string {
	if n == 1 {
		return "1 occupant"
	}
	return strconv.Itoa(n) + " occupants"
}

func roleTitle(r muc.Role) string {
	switch r {
	case muc.RoleModerator:
		return "Moderators"
	case muc.RoleParticipant:
		return "Participants"
	case muc.RoleVisitor:
		return "Visitors"
	default:
		return "Others"
	}
}

// renderOccupant renders a single occupant
func (m Model) renderOccupant(o muc.Occupant) string {
	indicator := m.showIndicator(o.Show)

	badge := " "
	switch o.Affiliation {
	case muc.AffiliationOwner:
		badge = "~"
	case muc.AffiliationAdmin:
		badge = "&"
	case muc.AffiliationMember:
		badge = "+"
	}

	nick := truncate(o.Nick, m.width-4)
	style := m.styles.Nick(string(o.Color))
	if o.Nick == m.ownNick {
		style = style.Underline(true)
	}
	return indicator + badge + style.Render(nick)
}

func (m Model) showIndicator(s presence.Show) string {
	switch s {
	case presence.ShowAway:
		return m.styles.PresenceAway.Render("◐")
	case presence.ShowDND:
		return m.styles.PresenceDND.Render("⊘")
	case presence.ShowXA:
		return m.styles.PresenceXA.Render("◯")
	case presence.ShowChat:
		return m.styles.PresenceOnline.Render("◉")
	default:
		return m.styles.PresenceOnline.Render("●")
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 {
		return ""
	}
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
