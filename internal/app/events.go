package app

import (
	"sync"

	"github.com/meszmate/parley/internal/xmpp/chat"
	"github.com/meszmate/parley/internal/xmpp/muc"
)

// NoticeType tells subscribers what kind of state changed
type NoticeType int

const (
	// NoticeRoom carries a room outcome
	NoticeRoom NoticeType = iota
	// NoticeChat means a line was added to a log
	NoticeChat
	// NoticePrivate means a private conversation changed
	NoticePrivate
	// NoticeRoster means the roster changed
	NoticeRoster
	// NoticeConnection means the connection state changed
	NoticeConnection
)

// Notice is published after the event loop changed state. Subscribers read
// the new state through the App accessors.
type Notice struct {
	Type NoticeType
	// Key is the log the notice refers to: a room or contact bare JID, a
	// private conversation id, or ConsoleKey
	Key     string
	Outcome muc.Outcome
	Line    chat.Line
}

// EventHandler is a function that handles notices
type EventHandler func(n Notice)

// EventBus handles notice subscription and publishing
type EventBus struct {
	mu       sync.RWMutex
	handlers map[NoticeType][]EventHandler
	all      []EventHandler
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[NoticeType][]EventHandler),
	}
}

// Subscribe subscribes to a notice type
func (b *EventBus) Subscribe(t NoticeType, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], handler)
}

// SubscribeAll subscribes to every notice
func (b *EventBus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

// Publish delivers a notice to all subscribers, each on its own goroutine
func (b *EventBus) Publish(n Notice) {
	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.handlers[n.Type])+len(b.all))
	handlers = append(handlers, b.handlers[n.Type]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		go handler(n)
	}
}
