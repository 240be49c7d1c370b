package plugin

import (
	"time"
)

// Event types forwarded to plugins
const (
	EventRoom       = "room"
	EventMessage    = "message"
	EventPrivate    = "private"
	EventRoster     = "roster"
	EventConnection = "connection"
)

// Plugin is the interface that all plugins must implement
type Plugin interface {
	// Info returns the plugin metadata
	Info() (Info, error)

	// HandleEvent is called for every state change of the client. Events
	// are delivered one at a time per plugin.
	HandleEvent(ev Event) error
}

// Info contains plugin metadata
type Info struct {
	Name        string
	Version     string
	Description string
}

// Event is a change in a room, a conversation, the roster or the
// connection
type Event struct {
	Type string
	// Key is the room or contact bare JID, or a private conversation id
	Key string
	// Outcome names the room outcome, such as "self_kicked" or
	// "user_joined"
	Outcome string
	// Text is the line shown to the user
	Text     string
	From     string
	OwnNick  string
	Outgoing bool
	Time     time.Time
}
