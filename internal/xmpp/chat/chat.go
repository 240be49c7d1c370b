package chat

import (
	"sort"
	"sync"
	"time"
)

// ChatState represents the chat state (typing, etc.)
type ChatState string

const (
	StateNone      ChatState = ""
	StateActive    ChatState = "active"
	StateComposing ChatState = "composing"
	StatePaused    ChatState = "paused"
	StateInactive  ChatState = "inactive"
	StateGone      ChatState = "gone"
)

// NSChatStates is the XEP-0085 namespace
const NSChatStates = "http://jabber.org/protocol/chatstates"

// ParseChatState maps the local name of a chat state element to a ChatState
func ParseChatState(local string) (ChatState, bool) {
	switch ChatState(local) {
	case StateActive, StateComposing, StatePaused, StateInactive, StateGone:
		return ChatState(local), true
	}
	return StateNone, false
}

// LineKind classifies a line in a conversation log
type LineKind int

const (
	LineMessage LineKind = iota
	LineInfo
	LineWarning
	LineError
)

// Line is one entry of a conversation log
type Line struct {
	ID        string
	Time      time.Time
	From      string
	Body      string
	Kind      LineKind
	Outgoing  bool
	Delayed   bool
	Corrected bool
}

// DefaultHistory is the number of lines kept per log
const DefaultHistory = 1000

// Log is a bounded, append-only list of lines. It is not safe for concurrent
// use; owners guard it.
type Log struct {
	lines []Line
	max   int
}

func newLog(max int) *Log {
	if max <= 0 {
		max = DefaultHistory
	}
	return &Log{max: max}
}

// Append adds a line, dropping the oldest when full
func (l *Log) Append(line Line) {
	l.lines = append(l.lines, line)
	if over := len(l.lines) - l.max; over > 0 {
		l.lines = append(l.lines[:0:0], l.lines[over:]...)
	}
}

// Correct replaces the body of the most recent line carrying id
func (l *Log) Correct(id, from, body string) bool {
	if id == "" {
		return false
	}
	for i := len(l.lines) - 1; i >= 0; i-- {
		if l.lines[i].ID == id && l.lines[i].From == from {
			l.lines[i].Body = body
			l.lines[i].Corrected = true
			return true
		}
	}
	return false
}

// Lines returns a copy of the last limit lines (all when limit <= 0)
func (l *Log) Lines(limit int) []Line {
	lines := l.lines
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}

// Len returns the number of stored lines
func (l *Log) Len() int {
	return len(l.lines)
}

// Session represents the log of a room or a one-to-one chat with a contact
type Session struct {
	Key      string
	State    ChatState
	Unread   int
	LastRead time.Time
	log      *Log
}

// Manager manages chat sessions keyed by bare JID
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	history  int
}

// NewManager creates a new chat manager
func NewManager(history int) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		history:  history,
	}
}

func (m *Manager) session(key string) *Session {
	if s, ok := m.sessions[key]; ok {
		return s
	}
	s := &Session{Key: key, log: newLog(m.history)}
	m.sessions[key] = s
	return s
}

// Append adds a line to a session, creating the session on first use
func (m *Manager) Append(key string, line Line) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session(key)
	s.log.Append(line)
	if line.Kind == LineMessage && !line.Outgoing {
		s.Unread++
	}
}

// Correct applies a last message correction
func (m *Manager) Correct(key, id, from, body string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[key]
	if !ok {
		return false
	}
	return s.log.Correct(id, from, body)
}

// SetChatState sets the remote chat state for a session
func (m *Manager) SetChatState(key string, state ChatState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session(key).State = state
}

// ChatState returns the last remote chat state of a session
func (m *Manager) ChatState(key string) ChatState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.sessions[key]; ok {
		return s.State
	}
	return StateNone
}

// History returns the message history for a key
func (m *Manager) History(key string, limit int) []Line {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[key]
	if !ok {
		return nil
	}
	return s.log.Lines(limit)
}

// MarkRead resets the unread counter
func (m *Manager) MarkRead(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[key]; ok {
		s.Unread = 0
		s.LastRead = time.Now()
	}
}

// Unread returns the unread count of a session
func (m *Manager) Unread(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.sessions[key]; ok {
		return s.Unread
	}
	return 0
}

// Delete drops a session and its log
func (m *Manager) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
}

// Keys returns all session keys, sorted
func (m *Manager) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
