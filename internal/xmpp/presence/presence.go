package presence

import "strings"

// Show represents the presence show state of an entity
type Show string

const (
	ShowAvailable   Show = "available"
	ShowAway        Show = "away"
	ShowChat        Show = "chat"
	ShowDND         Show = "dnd"
	ShowXA          Show = "xa"
	ShowUnavailable Show = "unavailable"
)

// ParseShow converts the wire value of a <show/> element. An empty element
// means plain availability. Unknown values are reported with ok == false and
// fall back to available.
func ParseShow(s string) (Show, bool) {
	switch strings.TrimSpace(s) {
	case "", "available", "online":
		return ShowAvailable, true
	case "away":
		return ShowAway, true
	case "chat":
		return ShowChat, true
	case "dnd":
		return ShowDND, true
	case "xa":
		return ShowXA, true
	case "unavailable", "offline":
		return ShowUnavailable, true
	default:
		return ShowAvailable, false
	}
}

// Wire returns the value to put in a <show/> element, or "" when the element
// should be omitted.
func (s Show) Wire() string {
	switch s {
	case ShowAway, ShowChat, ShowDND, ShowXA:
		return string(s)
	default:
		return ""
	}
}

// Online reports whether the show value describes a connected resource
func (s Show) Online() bool {
	return s != ShowUnavailable && s != ""
}

// String returns a human-readable name
func (s Show) String() string {
	switch s {
	case ShowAvailable:
		return "available"
	case ShowAway:
		return "away"
	case ShowChat:
		return "chatty"
	case ShowDND:
		return "busy"
	case ShowXA:
		return "not available"
	case ShowUnavailable:
		return "offline"
	default:
		return string(s)
	}
}

// Status is our own broadcast presence
type Status struct {
	Show     Show
	Message  string
	Priority int
}

// DefaultStatus returns the presence sent right after connecting
func DefaultStatus(priority int) Status {
	return Status{Show: ShowAvailable, Priority: priority}
}
