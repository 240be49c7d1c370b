package muc

import (
	"fmt"
	"time"

	"github.com/meszmate/parley/internal/logging"
	"github.com/meszmate/parley/internal/xmpp/chat"
	"github.com/meszmate/parley/internal/xmpp/presence"
	"mellium.im/xmpp/jid"
)

// State is the lifecycle state of a room
type State int

const (
	StateUnjoined State = iota
	StateJoining
	StateJoined
	StateDisconnected
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Policy controls which outcomes are displayed and whether we rejoin after
// being kicked. HideExitJoin and HideStatusChange are in seconds: -1 always
// displays, 0 hides joins and quiet leaves, N shows leaves and status
// changes only for occupants who talked in the last N seconds.
type Policy struct {
	HideExitJoin     int
	HideStatusChange int
	AutoRejoin       bool
	AutoRejoinDelay  time.Duration
}

// DefaultPolicy shows everything and does not rejoin
func DefaultPolicy() Policy {
	return Policy{
		HideExitJoin:     -1,
		HideStatusChange: -1,
		AutoRejoinDelay:  5 * time.Second,
	}
}

func clampWindow(v int) int {
	if v < -1 {
		return -1
	}
	return v
}

func (p Policy) showJoin() bool {
	return p.HideExitJoin != 0
}

func (p Policy) showLeave(o Occupant, now time.Time) bool {
	h := clampWindow(p.HideExitJoin)
	return h == -1 || o.TalkedWithin(now, time.Duration(h)*time.Second)
}

func (p Policy) showStatus(o Occupant, d StatusDiff, self bool, now time.Time) bool {
	if d.Privileged() || self {
		return true
	}
	h := clampWindow(p.HideStatusChange)
	return h == -1 || o.TalkedWithin(now, time.Duration(h)*time.Second)
}

// PrivateLinker is the seam to the private conversations opened with room
// occupants. The room only notifies it; it never owns conversations.
type PrivateLinker interface {
	Link(room, nick, ownNick string) (string, bool)
	Relabel(room, oldNick, newNick string) bool
	RenameSelf(room, nick string) int
	Deactivate(room, nick, reason string) bool
	Reactivate(room, nick, reason string) bool
	DeactivateRoom(room, reason string) int
	ReactivateRoom(room string, present func(nick string) bool, reason string) int
	MirrorStatus(room, nick, line string) bool
}

type nopLinker struct{}

func (nopLinker) Link(string, string, string) (string, bool)           { return "", false }
func (nopLinker) Relabel(string, string, string) bool                  { return false }
func (nopLinker) RenameSelf(string, string) int                        { return 0 }
func (nopLinker) Deactivate(string, string, string) bool               { return false }
func (nopLinker) Reactivate(string, string, string) bool               { return false }
func (nopLinker) DeactivateRoom(string, string) int                    { return 0 }
func (nopLinker) ReactivateRoom(string, func(string) bool, string) int { return 0 }
func (nopLinker) MirrorStatus(string, string, string) bool             { return false }

// Option configures a Room
type Option func(*Room)

// WithPolicy sets the display and rejoin policy
func WithPolicy(p Policy) Option {
	return func(r *Room) { r.policy = p }
}

// WithColorer sets the nick color allocator
func WithColorer(c *Colorer) Option {
	return func(r *Room) { r.colorer = c }
}

// WithLinker sets the private conversation linker
func WithLinker(l PrivateLinker) Option {
	return func(r *Room) {
		if l != nil {
			r.linker = l
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Room) { r.now = now }
}

// WithPassword sets the room password used on join
func WithPassword(p string) Option {
	return func(r *Room) { r.password = p }
}

// Room tracks one groupchat: its lifecycle, our nick, the subject and the
// occupants. A Room is driven by a single goroutine; Manager guards it for
// readers.
type Room struct {
	jid         jid.JID
	ownNick     string
	password    string
	state       State
	topic       string
	topicSetter string
	occupants   *Registry
	privates    []string

	policy  Policy
	colorer *Colorer
	linker  PrivateLinker
	now     func() time.Time

	// set while rejoining after a disconnect; nicks confirmed present
	seen map[string]bool
}

// NewRoom creates an unjoined room
func NewRoom(addr jid.JID, nick string, opts ...Option) *Room {
	r := &Room{
		jid:       addr.Bare(),
		ownNick:   nick,
		occupants: NewRegistry(),
		policy:    DefaultPolicy(),
		linker:    nopLinker{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.colorer == nil {
		r.colorer = NewColorer(nil, "", false)
	}
	return r
}

// JID returns the bare room address
func (r *Room) JID() jid.JID { return r.jid }

// OwnNick returns our nick in the room
func (r *Room) OwnNick() string { return r.ownNick }

// Password returns the password used to join
func (r *Room) Password() string { return r.password }

// State returns the lifecycle state
func (r *Room) State() State { return r.state }

// Joined reports whether our presence in the room is confirmed
func (r *Room) Joined() bool { return r.state == StateJoined }

// Topic returns the subject and the nick that set it
func (r *Room) Topic() (string, string) { return r.topic, r.topicSetter }

// Occupant looks up an occupant by nick
func (r *Room) Occupant(nick string) (Occupant, bool) { return r.occupants.Find(nick) }

// Occupants returns the occupants in insertion order
func (r *Room) Occupants() []Occupant { return r.occupants.All() }

// Privates returns the identifiers of linked private conversations
func (r *Room) Privates() []string {
	return append([]string(nil), r.privates...)
}

// AddPrivate records a private conversation opened from this room
func (r *Room) AddPrivate(id string) {
	for _, p := range r.privates {
		if p == id {
			return
		}
	}
	r.privates = append(r.privates, id)
}

// Join starts joining the room with nick, or with the current nick when
// nick is empty. Rejoining after a disconnect keeps the known occupants so
// that the new occupant list can be diffed against them.
func (r *Room) Join(nick string) error {
	switch r.state {
	case StateJoined:
		return ErrAlreadyJoined
	case StateJoining:
		return nil
	case StateDisconnected:
		r.seen = make(map[string]bool)
	default:
		r.occupants.Clear()
		r.seen = nil
	}
	if nick != "" {
		r.ownNick = nick
	}
	r.state = StateJoining
	return nil
}

// Leave records an explicit part. The unavailable presence we then receive
// from the room is ignored.
func (r *Room) Leave(status string) error {
	if r.state == StateUnjoined {
		return ErrNotJoined
	}
	reason := "You left the room"
	if status != "" {
		reason += " (" + status + ")"
	}
	r.exit(reason)
	return nil
}

// Disconnect records a transport-level disconnect. Occupants are kept so
// the next join can diff against them.
func (r *Room) Disconnect(reason string) bool {
	if r.state != StateJoined && r.state != StateJoining {
		return false
	}
	r.state = StateDisconnected
	if reason == "" {
		reason = "Disconnected"
	}
	r.linker.DeactivateRoom(r.jid.String(), reason)
	return true
}

// ApplySubject updates the topic. Repeating the current subject, as rooms
// do on every join, is a no-op.
func (r *Room) ApplySubject(nick, subject string) Outcome {
	if subject == r.topic {
		return NoOp{Reason: "subject unchanged"}
	}
	r.topic = subject
	r.topicSetter = nick
	return TopicChanged{Subject: subject, Setter: nick}
}

// ApplyMessage records activity from an occupant. Only live messages with
// a body count as talking; replayed history does not.
func (r *Room) ApplyMessage(nick string, state chat.ChatState, hasBody, delayed bool) bool {
	return r.occupants.update(nick, func(o *Occupant) {
		if state != chat.StateNone {
			o.ChatState = state
		}
		if hasBody && !delayed {
			o.LastTalked = r.now()
			if state == chat.StateNone {
				o.ChatState = chat.StateActive
			}
		}
	})
}

// Ignore hides or shows the lines of an occupant. It reports whether the
// flag changed.
func (r *Room) Ignore(nick string, ignored bool) (bool, error) {
	o, ok := r.occupants.Find(nick)
	if !ok {
		return false, fmt.Errorf("%s is not in the room: %w", nick, ErrNotFound)
	}
	if o.Ignored == ignored {
		return false, nil
	}
	r.occupants.update(nick, func(o *Occupant) { o.Ignored = ignored })
	return true, nil
}

// Recolor reassigns occupant colors by talk recency
func (r *Room) Recolor(random bool) {
	r.colorer.Recolor(r.occupants, r.ownNick, random)
}

// exit moves the room to Unjoined, forgetting occupants and disabling the
// private conversations.
func (r *Room) exit(reason string) {
	r.state = StateUnjoined
	r.occupants.Clear()
	r.seen = nil
	r.linker.DeactivateRoom(r.jid.String(), reason)
}

// checkInvariants repairs a joined room that lost its self occupant
func (r *Room) checkInvariants() {
	if r.state != StateJoined || r.occupants.Has(r.ownNick) {
		return
	}
	logging.Error("muc: %s joined without self occupant %q, restoring", r.jid, r.ownNick)
	r.occupants.Upsert(r.ownNick, Fields{
		Affiliation: AffiliationNone,
		Role:        RoleParticipant,
		Show:        presence.ShowAvailable,
	}, r.now())
	r.occupants.update(r.ownNick, func(o *Occupant) { o.Color = r.colorer.Own() })
}

// Snapshot is a read-only copy of a room for the UI
type Snapshot struct {
	JID         string
	OwnNick     string
	State       State
	Topic       string
	TopicSetter string
	Occupants   []Occupant
	Privates    []string
}

// Snapshot copies the room state
func (r *Room) Snapshot() Snapshot {
	return Snapshot{
		JID:         r.jid.String(),
		OwnNick:     r.ownNick,
		State:       r.state,
		Topic:       r.topic,
		TopicSetter: r.topicSetter,
		Occupants:   r.occupants.All(),
		Privates:    r.Privates(),
	}
}
