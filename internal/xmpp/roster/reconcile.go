package roster

import (
	"fmt"

	"github.com/meszmate/parley/internal/logging"
	"github.com/meszmate/parley/internal/xmpp"
	"github.com/meszmate/parley/internal/xmpp/presence"
	"mellium.im/xmpp/jid"
	"mellium.im/xmpp/stanza"
)

// UpdateKind tags what a stanza changed in the roster
type UpdateKind int

const (
	UpdateNone UpdateKind = iota
	UpdateResource
	UpdateOffline
	UpdateSubscribeRequest
	UpdateSubscribed
	UpdateUnsubscribed
	UpdateUnsubscribe
	UpdateError
	UpdateAdded
	UpdateChanged
	UpdateRemoved
)

// Reply is an outbound presence the caller should send in response
type Reply int

const (
	ReplyNone Reply = iota
	// ReplyAuthorize sends a subscribed presence to the contact
	ReplyAuthorize
)

// Update is the result of applying one stanza to the roster
type Update struct {
	Kind     UpdateKind
	JID      jid.JID
	Resource string
	Text     string
	Reply    Reply
}

// Describe renders the line shown to the user, or "" for silent updates
func (u Update) Describe() string {
	switch u.Kind {
	case UpdateSubscribeRequest:
		if u.Reply == ReplyAuthorize {
			return fmt.Sprintf("%s wants to subscribe to your presence: accepted automatically", u.JID)
		}
		return fmt.Sprintf("%s wants to subscribe to your presence. Use /accept or /deny", u.JID)
	case UpdateSubscribed:
		return fmt.Sprintf("%s accepted your contact request", u.JID)
	case UpdateUnsubscribed:
		return fmt.Sprintf("%s does not share their presence with you anymore", u.JID)
	case UpdateUnsubscribe:
		return fmt.Sprintf("%s does not want your presence anymore", u.JID)
	case UpdateError:
		return fmt.Sprintf("Error from %s: %s", u.JID, u.Text)
	case UpdateAdded:
		return fmt.Sprintf("%s was added to the roster", u.JID)
	case UpdateRemoved:
		return fmt.Sprintf("%s was removed from the roster", u.JID)
	default:
		return ""
	}
}

// ApplyPresence reconciles a non-MUC presence: resource availability,
// subscription requests and answers, and errors.
func (m *Manager) ApplyPresence(ev xmpp.PresenceEvent) Update {
	from := ev.From
	u := Update{JID: from.Bare(), Resource: from.Resourcepart()}

	switch ev.Type {
	case stanza.ErrorPresence:
		u.Kind = UpdateError
		u.Text = "unknown error"
		if ev.Error != nil {
			u.Text = ev.Error.Error()
		}
		if err := m.SetError(from, u.Text); err != nil {
			logging.Debug("roster: %v", err)
		}
		return u
	case stanza.SubscribePresence:
		return m.applySubscribe(u)
	case stanza.SubscribedPresence:
		m.mutate(from, func(c *contact) {
			c.PendingOut = false
			c.Subscription = c.Subscription.withTo(true)
		})
		u.Kind = UpdateSubscribed
		return u
	case stanza.UnsubscribedPresence:
		m.mutate(from, func(c *contact) {
			c.PendingOut = false
			c.Subscription = c.Subscription.withTo(false)
			c.resources = make(map[string]*Resource)
		})
		u.Kind = UpdateUnsubscribed
		return u
	case stanza.UnsubscribePresence:
		m.mutate(from, func(c *contact) {
			c.PendingIn = false
			c.Subscription = c.Subscription.withFrom(false)
		})
		u.Kind = UpdateUnsubscribe
		return u
	case stanza.UnavailablePresence:
		if err := m.SetResource(from, presence.ShowUnavailable, ev.Status, 0); err != nil {
			logging.Debug("roster: %v", err)
			return Update{}
		}
		u.Kind = UpdateResource
		if c, _ := m.Get(from); !c.Online() {
			u.Kind = UpdateOffline
		}
		return u
	case stanza.AvailablePresence:
		show := ev.Show
		if show == "" {
			show = presence.ShowAvailable
		}
		if err := m.SetResource(from, show, ev.Status, ev.Priority); err != nil {
			logging.Debug("roster: %v", err)
			return Update{}
		}
		u.Kind = UpdateResource
		return u
	default:
		return Update{}
	}
}

// applySubscribe handles an incoming subscription request. A contact we
// already share presence with is ignored; a contact whose presence we
// receive is accepted without asking.
func (m *Manager) applySubscribe(u Update) Update {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contacts[key(u.JID)]
	switch {
	case ok && c.Subscription.SendsTo():
		return Update{}
	case ok && c.Subscription == SubscriptionTo:
		c.PendingIn = false
		c.Subscription = c.Subscription.withFrom(true)
		u.Kind = UpdateSubscribeRequest
		u.Reply = ReplyAuthorize
		return u
	}
	m.upsert(u.JID).PendingIn = true
	u.Kind = UpdateSubscribeRequest
	return u
}

// ApplyRosterPush applies roster items. A full result replaces the roster,
// keeping the resources of contacts that are still listed.
func (m *Manager) ApplyRosterPush(ev xmpp.RosterPushEvent) []Update {
	m.mu.Lock()
	defer m.mu.Unlock()

	var updates []Update
	listed := make(map[string]bool, len(ev.Items))
	for _, it := range ev.Items {
		item := Item{
			JID:          it.JID,
			Name:         it.Name,
			Subscription: ParseSubscription(it.Subscription),
			Groups:       it.Groups,
			Ask:          it.Ask,
		}
		listed[key(item.JID)] = true
		if u := m.applyItem(item); u.Kind != UpdateNone {
			updates = append(updates, u)
		}
	}

	if ev.Full {
		for k, c := range m.contacts {
			if !listed[k] {
				delete(m.contacts, k)
				updates = append(updates, Update{Kind: UpdateRemoved, JID: c.JID})
			}
		}
	}
	return updates
}

// Load restores cached items, replacing the roster
func (m *Manager) Load(items []Item) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.contacts = make(map[string]*contact, len(items))
	for _, it := range items {
		m.applyItem(it)
	}
}

func (m *Manager) applyItem(it Item) Update {
	u := Update{JID: it.JID.Bare()}
	if it.Subscription == SubscriptionRemove {
		if _, ok := m.contacts[key(it.JID)]; !ok {
			return Update{}
		}
		delete(m.contacts, key(it.JID))
		u.Kind = UpdateRemoved
		return u
	}

	_, existed := m.contacts[key(it.JID)]
	c := m.upsert(it.JID)
	c.Name = it.Name
	c.Subscription = it.Subscription
	if c.Subscription == "" {
		c.Subscription = SubscriptionNone
	}
	c.Groups = append([]string(nil), it.Groups...)
	c.PendingOut = it.Ask == "subscribe"
	if c.Subscription.SendsTo() {
		c.PendingIn = false
	}
	if !c.Subscription.ReceivesFrom() {
		c.resources = make(map[string]*Resource)
	}

	if existed {
		u.Kind = UpdateChanged
	} else {
		u.Kind = UpdateAdded
	}
	return u
}

// Subscribe records an outgoing subscription request
func (m *Manager) Subscribe(addr jid.JID) Contact {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.upsert(addr)
	if !c.Subscription.ReceivesFrom() {
		c.PendingOut = true
	}
	return c.snapshot()
}

// Authorize accepts a pending subscription request from addr
func (m *Manager) Authorize(addr jid.JID) error {
	return m.mutateErr(addr, "authorize", func(c *contact) {
		c.PendingIn = false
		c.Subscription = c.Subscription.withFrom(true)
	})
}

// Deny refuses a subscription request, or revokes an accepted one
func (m *Manager) Deny(addr jid.JID) error {
	return m.mutateErr(addr, "deny", func(c *contact) {
		c.PendingIn = false
		c.Subscription = c.Subscription.withFrom(false)
	})
}

// Pending returns contacts with an unanswered subscription request
func (m *Manager) Pending() []Contact {
	var out []Contact
	for _, c := range m.All() {
		if c.PendingIn {
			out = append(out, c)
		}
	}
	return out
}

func (m *Manager) mutate(addr jid.JID, fn func(*contact)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contacts[key(addr)]
	if !ok {
		return false
	}
	fn(c)
	return true
}

func (m *Manager) mutateErr(addr jid.JID, op string, fn func(*contact)) error {
	if !m.mutate(addr, fn) {
		return fmt.Errorf("%s %s: %w", op, addr.Bare(), ErrUnknownContact)
	}
	return nil
}
