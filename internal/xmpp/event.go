package xmpp

import (
	"fmt"
	"time"

	"github.com/meszmate/parley/internal/xmpp/chat"
	"github.com/meszmate/parley/internal/xmpp/presence"
	"mellium.im/xmpp/jid"
	"mellium.im/xmpp/stanza"
)

// Event is a typed, immutable value built once per inbound stanza or
// connection state change.
type Event interface {
	event()
}

// StatusCodes is the set of muc#user status codes carried by a presence
type StatusCodes []int

// Has reports whether code is present
func (c StatusCodes) Has(code int) bool {
	for _, v := range c {
		if v == code {
			return true
		}
	}
	return false
}

// StanzaError is the decoded <error/> child of a stanza
type StanzaError struct {
	Type      string
	Condition string
	Text      string
}

// Error implements error
func (e *StanzaError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("%s: %s", e.Condition, e.Text)
	}
	return e.Condition
}

// MUCItem is the muc#user <item/> of an occupant presence
type MUCItem struct {
	Affiliation string
	Role        string
	JID         jid.JID
	Nick        string
	Actor       string
	Reason      string
}

// PresenceEvent is an inbound presence stanza
type PresenceEvent struct {
	From        jid.JID
	Type        stanza.PresenceType
	Show        presence.Show
	Status      string
	Priority    int
	MUC         *MUCItem
	StatusCodes StatusCodes
	Error       *StanzaError
}

// IsMUC reports whether the presence carries a muc#user payload
func (e PresenceEvent) IsMUC() bool {
	return e.MUC != nil
}

// MessageEvent is an inbound message stanza
type MessageEvent struct {
	ID        string
	From      jid.JID
	Type      stanza.MessageType
	Body      string
	Subject   *string
	ReplaceID string
	ChatState chat.ChatState
	Delay     time.Time
	MUCUser   bool
	Error     *StanzaError
}

// RosterItem is one <item/> of a roster query or push
type RosterItem struct {
	JID          jid.JID
	Name         string
	Subscription string
	Ask          string
	Groups       []string
}

// RosterPushEvent is a roster push (iq set) or the result of a roster get
type RosterPushEvent struct {
	Items []RosterItem
	Full  bool
}

// ConnectedEvent is emitted once the stream is negotiated
type ConnectedEvent struct {
	JID jid.JID
}

// DisconnectedEvent is emitted when the stream ends
type DisconnectedEvent struct {
	Err error
}

func (PresenceEvent) event()     {}
func (MessageEvent) event()      {}
func (RosterPushEvent) event()   {}
func (ConnectedEvent) event()    {}
func (DisconnectedEvent) event() {}
