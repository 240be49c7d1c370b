// Package roster keeps the contact list: subscription state per bare JID and
// the connected resources of each contact.
package roster

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/meszmate/parley/internal/xmpp/presence"
	"mellium.im/xmpp/jid"
)

// ErrUnknownContact is returned for bare JIDs that are not in the roster
var ErrUnknownContact = errors.New("unknown contact")

// Subscription represents the subscription state
type Subscription string

const (
	SubscriptionNone   Subscription = "none"
	SubscriptionTo     Subscription = "to"
	SubscriptionFrom   Subscription = "from"
	SubscriptionBoth   Subscription = "both"
	SubscriptionRemove Subscription = "remove"
)

// ParseSubscription maps a wire value, defaulting to none
func ParseSubscription(s string) Subscription {
	switch v := Subscription(s); v {
	case SubscriptionTo, SubscriptionFrom, SubscriptionBoth, SubscriptionRemove:
		return v
	default:
		return SubscriptionNone
	}
}

// ReceivesFrom reports whether we get the contact's presence
func (s Subscription) ReceivesFrom() bool {
	return s == SubscriptionTo || s == SubscriptionBoth
}

// SendsTo reports whether the contact gets our presence
func (s Subscription) SendsTo() bool {
	return s == SubscriptionFrom || s == SubscriptionBoth
}

func (s Subscription) withTo(on bool) Subscription {
	from := s.SendsTo()
	switch {
	case on && from:
		return SubscriptionBoth
	case on:
		return SubscriptionTo
	case from:
		return SubscriptionFrom
	default:
		return SubscriptionNone
	}
}

func (s Subscription) withFrom(on bool) Subscription {
	to := s.ReceivesFrom()
	switch {
	case on && to:
		return SubscriptionBoth
	case on:
		return SubscriptionFrom
	case to:
		return SubscriptionTo
	default:
		return SubscriptionNone
	}
}

// Resource is one connected client of a contact
type Resource struct {
	JID      jid.JID
	Priority int
	Show     presence.Show
	Status   string
	Updated  time.Time

	seq uint64
}

// Name returns the resourcepart
func (r Resource) Name() string {
	return r.JID.Resourcepart()
}

// Item is a roster entry as pushed by the server or restored from the cache
type Item struct {
	JID          jid.JID
	Name         string
	Subscription Subscription
	Groups       []string
	Ask          string
}

// Contact is a snapshot of one roster entry
type Contact struct {
	JID          jid.JID
	Name         string
	Subscription Subscription
	PendingIn    bool
	PendingOut   bool
	Groups       []string
	// Error holds the last presence error reported for the contact
	Error     string
	Resources []Resource
}

// DisplayName returns the name, or the bare JID when unnamed
func (c Contact) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.JID.String()
}

// Online reports whether any resource is connected
func (c Contact) Online() bool {
	return len(c.Resources) > 0
}

// Show returns the show of the best resource
func (c Contact) Show() presence.Show {
	if len(c.Resources) == 0 {
		return presence.ShowUnavailable
	}
	return c.Resources[0].Show
}

// Item converts the contact back to a roster item
func (c Contact) Item() Item {
	ask := ""
	if c.PendingOut {
		ask = "subscribe"
	}
	return Item{
		JID:          c.JID,
		Name:         c.Name,
		Subscription: c.Subscription,
		Groups:       append([]string(nil), c.Groups...),
		Ask:          ask,
	}
}

type contact struct {
	Contact
	resources map[string]*Resource
}

// snapshot copies the contact with its resources best first
func (c *contact) snapshot() Contact {
	out := c.Contact
	out.Groups = append([]string(nil), c.Groups...)
	out.Resources = make([]Resource, 0, len(c.resources))
	for _, r := range c.resources {
		out.Resources = append(out.Resources, *r)
	}
	sort.Slice(out.Resources, func(i, j int) bool {
		return better(out.Resources[i], out.Resources[j])
	})
	return out
}

// better orders resources by priority, the most recently updated first on
// equal priority
func better(a, b Resource) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.seq > b.seq
}

// Manager manages the roster
type Manager struct {
	mu       sync.RWMutex
	contacts map[string]*contact
	seq      uint64
	now      func() time.Time
}

// NewManager creates a new roster manager
func NewManager() *Manager {
	return &Manager{
		contacts: make(map[string]*contact),
		now:      time.Now,
	}
}

func key(addr jid.JID) string {
	return addr.Bare().String()
}

func (m *Manager) upsert(addr jid.JID) *contact {
	k := key(addr)
	c, ok := m.contacts[k]
	if !ok {
		c = &contact{
			Contact:   Contact{JID: addr.Bare(), Subscription: SubscriptionNone},
			resources: make(map[string]*Resource),
		}
		m.contacts[k] = c
	}
	return c
}

// UpsertContact returns the contact for addr, adding it if needed
func (m *Manager) UpsertContact(addr jid.JID) Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsert(addr).snapshot()
}

// RemoveContact removes a contact and its resources
func (m *Manager) RemoveContact(addr jid.JID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(addr)
	if _, ok := m.contacts[k]; !ok {
		return false
	}
	delete(m.contacts, k)
	return true
}

// Get returns a contact by JID
func (m *Manager) Get(addr jid.JID) (Contact, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contacts[key(addr)]
	if !ok {
		return Contact{}, false
	}
	return c.snapshot(), true
}

// SetResource records the presence of one resource of a contact. An
// unavailable show deletes the resource; the contact stays in the roster.
func (m *Manager) SetResource(full jid.JID, show presence.Show, status string, priority int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contacts[key(full)]
	if !ok {
		return fmt.Errorf("presence from %s: %w", full, ErrUnknownContact)
	}
	name := full.Resourcepart()
	if !show.Online() {
		delete(c.resources, name)
		return nil
	}

	m.seq++
	c.resources[name] = &Resource{
		JID:      full,
		Priority: priority,
		Show:     show,
		Status:   status,
		Updated:  m.now(),
		seq:      m.seq,
	}
	c.Error = ""
	return nil
}

// HighestPriorityResource returns the resource with the highest priority.
// On equal priority the most recently updated one wins.
func (m *Manager) HighestPriorityResource(addr jid.JID) (Resource, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contacts[key(addr)]
	if !ok {
		return Resource{}, false
	}
	var best *Resource
	for _, r := range c.resources {
		if best == nil || better(*r, *best) {
			best = r
		}
	}
	if best == nil {
		return Resource{}, false
	}
	return *best, true
}

// SetError stores a presence error on the contact
func (m *Manager) SetError(addr jid.JID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contacts[key(addr)]
	if !ok {
		return fmt.Errorf("error from %s: %w", addr, ErrUnknownContact)
	}
	c.Error = text
	return nil
}

// All returns all contacts sorted by bare JID
func (m *Manager) All() []Contact {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Contact, 0, len(m.contacts))
	for _, c := range m.contacts {
		out = append(out, c.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].JID.String() < out[j].JID.String()
	})
	return out
}

// Items returns the roster entries without presence, for caching
func (m *Manager) Items() []Item {
	contacts := m.All()
	out := make([]Item, len(contacts))
	for i, c := range contacts {
		out[i] = c.Item()
	}
	return out
}

// Clear removes all roster items
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts = make(map[string]*contact)
}

// Count returns the number of roster items
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.contacts)
}

// Groups returns all unique groups, sorted
func (m *Manager) Groups() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	groupSet := make(map[string]bool)
	for _, c := range m.contacts {
		for _, group := range c.Groups {
			groupSet[group] = true
		}
	}

	groups := make([]string, 0, len(groupSet))
	for group := range groupSet {
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool {
		return strings.ToLower(groups[i]) < strings.ToLower(groups[j])
	})
	return groups
}

// ByGroup returns contacts in a specific group
func (m *Manager) ByGroup(group string) []Contact {
	var out []Contact
	for _, c := range m.All() {
		for _, g := range c.Groups {
			if g == group {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Ungrouped returns contacts not in any group
func (m *Manager) Ungrouped() []Contact {
	var out []Contact
	for _, c := range m.All() {
		if len(c.Groups) == 0 {
			out = append(out, c)
		}
	}
	return out
}
