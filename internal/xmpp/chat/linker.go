package chat

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoConversation is returned for unknown conversation identifiers
	ErrNoConversation = errors.New("no such private conversation")
	// ErrInactive is returned when sending to a conversation whose occupant
	// is not in the room
	ErrInactive = errors.New("private conversation is inactive")
)

// Conversation is a snapshot of a private conversation with a room occupant
type Conversation struct {
	ID      string
	Room    string
	Nick    string
	OwnNick string
	Active  bool
	Created time.Time
}

// JID returns the occupant address the conversation talks to
func (c Conversation) JID() string {
	return c.Room + "/" + c.Nick
}

type linkKey struct {
	room string
	nick string
}

type conversation struct {
	Conversation
	log *Log
}

// Linker binds (room, nick) pairs to stable private conversations so that
// nick changes and leaves in the room relabel or deactivate the conversation
// instead of destroying it.
type Linker struct {
	mu      sync.RWMutex
	byKey   map[linkKey]string
	convs   map[string]*conversation
	order   []string
	history int
	now     func() time.Time
}

// NewLinker creates an empty linker
func NewLinker(history int) *Linker {
	return &Linker{
		byKey:   make(map[linkKey]string),
		convs:   make(map[string]*conversation),
		history: history,
		now:     time.Now,
	}
}

// Link returns the conversation for room+nick, creating it if needed
func (l *Linker) Link(room, nick, ownNick string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := linkKey{room, nick}
	if id, ok := l.byKey[k]; ok {
		return id, false
	}

	id := uuid.NewString()
	l.convs[id] = &conversation{
		Conversation: Conversation{
			ID:      id,
			Room:    room,
			Nick:    nick,
			OwnNick: ownNick,
			Active:  true,
			Created: l.now(),
		},
		log: newLog(l.history),
	}
	l.byKey[k] = id
	l.order = append(l.order, id)
	return id, true
}

// Get looks up the conversation linked to room+nick
func (l *Linker) Get(room, nick string) (Conversation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.byKey[linkKey{room, nick}]
	if !ok {
		return Conversation{}, false
	}
	return l.convs[id].Conversation, true
}

// ByID looks up a conversation by identifier
func (l *Linker) ByID(id string) (Conversation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.convs[id]
	if !ok {
		return Conversation{}, false
	}
	return c.Conversation, true
}

// All returns every conversation in creation order
func (l *Linker) All() []Conversation {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Conversation, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.convs[id].Conversation)
	}
	return out
}

// Relabel moves the link from oldNick to newNick, keeping history
func (l *Linker) Relabel(room, oldNick, newNick string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, ok := l.byKey[linkKey{room, oldNick}]
	if !ok {
		return false
	}
	// a stale conversation under the new nick loses its link, never its log
	if stale, ok := l.byKey[linkKey{room, newNick}]; ok && stale != id {
		l.setActive(l.convs[stale], false, fmt.Sprintf("%s took the nick %s", oldNick, newNick))
	}
	delete(l.byKey, linkKey{room, newNick})
	delete(l.byKey, linkKey{room, oldNick})
	l.byKey[linkKey{room, newNick}] = id

	c := l.convs[id]
	c.Nick = newNick
	l.info(c, LineInfo, fmt.Sprintf("%s is now known as %s", oldNick, newNick))
	return true
}

// RenameSelf updates our own nick in every conversation of a room
func (l *Linker) RenameSelf(room, nick string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, id := range l.order {
		c := l.convs[id]
		if c.Room != room || c.OwnNick == nick {
			continue
		}
		old := c.OwnNick
		c.OwnNick = nick
		l.info(c, LineInfo, fmt.Sprintf("You (%s) are now known as %s", old, nick))
		n++
	}
	return n
}

// Deactivate marks the conversation read-only because the occupant left
func (l *Linker) Deactivate(room, nick, reason string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, ok := l.byKey[linkKey{room, nick}]
	if !ok {
		return false
	}
	return l.setActive(l.convs[id], false, reason)
}

// Reactivate lets the conversation accept outbound messages again
func (l *Linker) Reactivate(room, nick, reason string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, ok := l.byKey[linkKey{room, nick}]
	if !ok {
		return false
	}
	return l.setActive(l.convs[id], true, reason)
}

// DeactivateRoom deactivates every conversation of a room
func (l *Linker) DeactivateRoom(room, reason string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, id := range l.order {
		if c := l.convs[id]; c.Room == room && l.setActive(c, false, reason) {
			n++
		}
	}
	return n
}

// ReactivateRoom reactivates the linked conversations of a room whose nick
// is reported present. Conversations that lost their link stay inactive.
func (l *Linker) ReactivateRoom(room string, present func(nick string) bool, reason string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, id := range l.order {
		c := l.convs[id]
		if c.Room != room || l.byKey[linkKey{room, c.Nick}] != id || !present(c.Nick) {
			continue
		}
		if l.setActive(c, true, reason) {
			n++
		}
	}
	return n
}

// MirrorStatus copies an occupant status line into its linked conversation
func (l *Linker) MirrorStatus(room, nick, line string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, ok := l.byKey[linkKey{room, nick}]
	if !ok {
		return false
	}
	l.info(l.convs[id], LineInfo, line)
	return true
}

// Append records an incoming line, even on an inactive conversation
func (l *Linker) Append(id string, line Line) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.convs[id]
	if !ok {
		return ErrNoConversation
	}
	c.log.Append(line)
	return nil
}

// AppendOutbound records a line we are about to send. It fails when the
// occupant is not in the room.
func (l *Linker) AppendOutbound(id string, line Line) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.convs[id]
	if !ok {
		return ErrNoConversation
	}
	if !c.Active {
		return ErrInactive
	}
	line.Outgoing = true
	c.log.Append(line)
	return nil
}

// History returns the last lines of a conversation
func (l *Linker) History(id string, limit int) []Line {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.convs[id]
	if !ok {
		return nil
	}
	return c.log.Lines(limit)
}

// Close forgets a conversation entirely
func (l *Linker) Close(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.convs[id]
	if !ok {
		return
	}
	k := linkKey{c.Room, c.Nick}
	if l.byKey[k] == id {
		delete(l.byKey, k)
	}
	delete(l.convs, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *Linker) setActive(c *conversation, active bool, reason string) bool {
	if c.Active == active {
		return false
	}
	c.Active = active
	if reason != "" {
		kind := LineInfo
		if !active {
			kind = LineWarning
		}
		l.info(c, kind, reason)
	}
	return true
}

func (l *Linker) info(c *conversation, kind LineKind, body string) {
	c.log.Append(Line{Time: l.now(), Body: body, Kind: kind})
}
