package muc

import (
	"fmt"
	"sync"
	"time"

	"github.com/meszmate/parley/internal/xmpp"
	"github.com/meszmate/parley/internal/xmpp/chat"
	"mellium.im/xmpp/jid"
)

// Event pairs an outcome with the room it happened in
type Event struct {
	Room    string
	Outcome Outcome
}

// Rejoin describes a room to join again after a reconnect or a kick
type Rejoin struct {
	Room     jid.JID
	Nick     string
	Password string
}

// ManagerConfig configures the rooms created by a Manager
type ManagerConfig struct {
	Policy        Policy
	Palette       []Color
	OwnColor      Color
	Deterministic bool
	Linker        PrivateLinker
	Clock         func() time.Time
}

// Manager manages MUC rooms. Mutations are expected from a single event
// loop; the lock only makes snapshots safe for the UI goroutine.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	order []string
	cfg   ManagerConfig
}

// NewManager creates a new MUC manager
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Manager{
		rooms: make(map[string]*Room),
		cfg:   cfg,
	}
}

func (m *Manager) newRoom(addr jid.JID, nick, password string) *Room {
	return NewRoom(addr, nick,
		WithPolicy(m.cfg.Policy),
		WithColorer(NewColorer(m.cfg.Palette, m.cfg.OwnColor, m.cfg.Deterministic)),
		WithLinker(m.cfg.Linker),
		WithClock(m.cfg.Clock),
		WithPassword(password),
	)
}

// Join creates the room if needed and moves it to Joining
func (m *Manager) Join(addr jid.JID, nick, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bare := addr.Bare().String()
	room, ok := m.rooms[bare]
	if !ok {
		room = m.newRoom(addr, nick, password)
		m.rooms[bare] = room
		m.order = append(m.order, bare)
	} else if password != "" {
		room.password = password
	}
	return room.Join(nick)
}

// Leave parts a room but keeps it listed
func (m *Manager) Leave(addr jid.JID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[addr.Bare().String()]
	if !ok {
		return fmt.Errorf("leave %s: %w", addr.Bare(), ErrNotFound)
	}
	return room.Leave(status)
}

// Remove forgets a room entirely
func (m *Manager) Remove(addr jid.JID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bare := addr.Bare().String()
	delete(m.rooms, bare)
	for i, v := range m.order {
		if v == bare {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// IsRoom reports whether addr belongs to a known room
func (m *Manager) IsRoom(addr jid.JID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.rooms[addr.Bare().String()]
	return ok
}

// ApplyPresence routes a presence to its room. ok is false when the sender
// is not a known room.
func (m *Manager) ApplyPresence(ev xmpp.PresenceEvent) (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bare := ev.From.Bare().String()
	room, ok := m.rooms[bare]
	if !ok {
		return Event{}, false
	}
	return Event{Room: bare, Outcome: room.ApplyPresence(ev)}, true
}

// ApplySubject routes a subject change to its room
func (m *Manager) ApplySubject(addr jid.JID, subject string) (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bare := addr.Bare().String()
	room, ok := m.rooms[bare]
	if !ok {
		return Event{}, false
	}
	return Event{Room: bare, Outcome: room.ApplySubject(addr.Resourcepart(), subject)}, true
}

// ApplyMessage records occupant activity from a groupchat message
func (m *Manager) ApplyMessage(addr jid.JID, state chat.ChatState, hasBody, delayed bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[addr.Bare().String()]
	if !ok {
		return false
	}
	return room.ApplyMessage(addr.Resourcepart(), state, hasBody, delayed)
}

// Recolor reassigns nick colors in a room
func (m *Manager) Recolor(addr jid.JID, random bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[addr.Bare().String()]
	if !ok {
		return fmt.Errorf("recolor %s: %w", addr.Bare(), ErrNotFound)
	}
	room.Recolor(random)
	return nil
}

// Ignore toggles the ignored flag of the occupant at addr (room/nick)
func (m *Manager) Ignore(addr jid.JID, ignored bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[addr.Bare().String()]
	if !ok {
		return false, fmt.Errorf("ignore %s: %w", addr.Bare(), ErrNotFound)
	}
	return room.Ignore(addr.Resourcepart(), ignored)
}

// Occupant looks up the occupant at addr (room/nick)
func (m *Manager) Occupant(addr jid.JID) (Occupant, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[addr.Bare().String()]
	if !ok {
		return Occupant{}, false
	}
	return room.Occupant(addr.Resourcepart())
}

// OpenPrivate links a private conversation with an occupant and records it
// on the room
func (m *Manager) OpenPrivate(addr jid.JID, nick string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[addr.Bare().String()]
	if !ok {
		return "", fmt.Errorf("private %s/%s: %w", addr.Bare(), nick, ErrNotFound)
	}
	if m.cfg.Linker == nil {
		return "", fmt.Errorf("private %s/%s: no linker configured", addr.Bare(), nick)
	}
	id, _ := m.cfg.Linker.Link(room.jid.String(), nick, room.ownNick)
	room.AddPrivate(id)
	return id, nil
}

// Disconnect marks every active room as disconnected, one after another
func (m *Manager) Disconnect(reason string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var affected []string
	for _, bare := range m.order {
		if m.rooms[bare].Disconnect(reason) {
			affected = append(affected, bare)
		}
	}
	return affected
}

// Reconnect moves disconnected rooms back to Joining and returns the join
// presences to send
func (m *Manager) Reconnect() []Rejoin {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Rejoin
	for _, bare := range m.order {
		room := m.rooms[bare]
		if room.state != StateDisconnected {
			continue
		}
		if err := room.Join(""); err != nil {
			continue
		}
		out = append(out, Rejoin{Room: room.jid, Nick: room.ownNick, Password: room.password})
	}
	return out
}

// Rejoin returns what is needed to join a room again with its last nick
func (m *Manager) Rejoin(addr jid.JID) (Rejoin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[addr.Bare().String()]
	if !ok {
		return Rejoin{}, fmt.Errorf("rejoin %s: %w", addr.Bare(), ErrNotFound)
	}
	return Rejoin{Room: room.jid, Nick: room.ownNick, Password: room.password}, nil
}

// Snapshot returns a copy of one room
func (m *Manager) Snapshot(addr jid.JID) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[addr.Bare().String()]
	if !ok {
		return Snapshot{}, false
	}
	return room.Snapshot(), true
}

// Rooms returns copies of all rooms in join order
func (m *Manager) Rooms() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Snapshot, 0, len(m.order))
	for _, bare := range m.order {
		out = append(out, m.rooms[bare].Snapshot())
	}
	return out
}

// Joined returns the addresses of joined rooms, optionally limited to one
// MUC service domain
func (m *Manager) Joined(domain string) []jid.JID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []jid.JID
	for _, bare := range m.order {
		room := m.rooms[bare]
		if !room.Joined() {
			continue
		}
		if domain != "" && room.jid.Domainpart() != domain {
			continue
		}
		out = append(out, room.jid)
	}
	return out
}
