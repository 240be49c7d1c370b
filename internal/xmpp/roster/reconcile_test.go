package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mellium.im/xmpp/jid"
	"mellium.im/xmpp/stanza"

	"github.com/meszmate/parley/internal/xmpp"
)

func typed(from string, typ stanza.PresenceType) xmpp.PresenceEvent {
	return xmpp.PresenceEvent{From: jid.MustParse(from), Type: typ}
}

func push(full bool, items ...xmpp.RosterItem) xmpp.RosterPushEvent {
	return xmpp.RosterPushEvent{Items: items, Full: full}
}

func item(addr, sub string) xmpp.RosterItem {
	return xmpp.RosterItem{JID: jid.MustParse(addr), Subscription: sub}
}

func TestSubscribeRequestSetsPendingIn(t *testing.T) {
	m := NewManager()

	u := m.ApplyPresence(typed("u@d", stanza.SubscribePresence))

	assert.Equal(t, UpdateSubscribeRequest, u.Kind)
	assert.Equal(t, ReplyNone, u.Reply)
	assert.Contains(t, u.Describe(), "/accept")
	c, ok := m.Get(jid.MustParse("u@d"))
	require.True(t, ok)
	assert.True(t, c.PendingIn)
	assert.Len(t, m.Pending(), 1)

	require.NoError(t, m.Authorize(jid.MustParse("u@d")))
	c, _ = m.Get(jid.MustParse("u@d"))
	assert.False(t, c.PendingIn)
	assert.Equal(t, SubscriptionFrom, c.Subscription)
	assert.Empty(t, m.Pending())
}

func TestSubscribeFromContactWeFollowIsAccepted(t *testing.T) {
	m := NewManager()
	m.ApplyRosterPush(push(false, item("u@d", "to")))

	u := m.ApplyPresence(typed("u@d/res", stanza.SubscribePresence))

	assert.Equal(t, UpdateSubscribeRequest, u.Kind)
	assert.Equal(t, ReplyAuthorize, u.Reply)
	c, _ := m.Get(jid.MustParse("u@d"))
	assert.Equal(t, SubscriptionBoth, c.Subscription)
	assert.False(t, c.PendingIn)
}

func TestSubscribeFromSubscribedContactIgnored(t *testing.T) {
	m := NewManager()
	m.ApplyRosterPush(push(false, item("u@d", "both")))

	u := m.ApplyPresence(typed("u@d", stanza.SubscribePresence))

	assert.Equal(t, UpdateNone, u.Kind)
	c, _ := m.Get(jid.MustParse("u@d"))
	assert.False(t, c.PendingIn)
}

func TestDenyDowngrades(t *testing.T) {
	m := NewManager()
	m.ApplyRosterPush(push(false, item("u@d", "both")))

	require.NoError(t, m.Deny(jid.MustParse("u@d")))
	c, _ := m.Get(jid.MustParse("u@d"))
	assert.Equal(t, SubscriptionTo, c.Subscription)

	assert.ErrorIs(t, m.Deny(jid.MustParse("nobody@d")), ErrUnknownContact)
}

func TestOutgoingSubscription(t *testing.T) {
	m := NewManager()

	c := m.Subscribe(jid.MustParse("u@d"))
	assert.True(t, c.PendingOut)
	assert.Equal(t, "subscribe", c.Item().Ask)

	u := m.ApplyPresence(typed("u@d", stanza.SubscribedPresence))
	assert.Equal(t, UpdateSubscribed, u.Kind)
	c, _ = m.Get(jid.MustParse("u@d"))
	assert.False(t, c.PendingOut)
	assert.Equal(t, SubscriptionTo, c.Subscription)

	m.ApplyPresence(avail("u@d/r", 0))
	u = m.ApplyPresence(typed("u@d", stanza.UnsubscribedPresence))
	assert.Equal(t, UpdateUnsubscribed, u.Kind)
	c, _ = m.Get(jid.MustParse("u@d"))
	assert.Equal(t, SubscriptionNone, c.Subscription)
	assert.False(t, c.Online())
}

func TestRosterPushRemove(t *testing.T) {
	m := NewManager()
	m.ApplyRosterPush(push(false, item("u@d", "both")))

	updates := m.ApplyRosterPush(push(false, item("u@d", "remove")))

	require.Len(t, updates, 1)
	assert.Equal(t, UpdateRemoved, updates[0].Kind)
	assert.Zero(t, m.Count())
	assert.Empty(t, m.ApplyRosterPush(push(false, item("u@d", "remove"))))
}

func TestRosterPushUpdatesFields(t *testing.T) {
	m := NewManager()
	it := item("u@d", "to")
	it.Name = "Ursula"
	it.Groups = []string{"friends"}
	it.Ask = "subscribe"

	updates := m.ApplyRosterPush(push(false, it))
	require.Len(t, updates, 1)
	assert.Equal(t, UpdateAdded, updates[0].Kind)

	c, _ := m.Get(jid.MustParse("u@d"))
	assert.Equal(t, "Ursula", c.DisplayName())
	assert.Equal(t, []string{"friends"}, c.Groups)
	assert.True(t, c.PendingOut)

	m.ApplyPresence(avail("u@d/r", 0))
	it.Name = ""
	updates = m.ApplyRosterPush(push(false, it))
	assert.Equal(t, UpdateChanged, updates[0].Kind)
	c, _ = m.Get(jid.MustParse("u@d"))
	assert.Equal(t, "u@d", c.DisplayName())
	assert.True(t, c.Online(), "resources survive a push")
}

func TestFullRosterReplaces(t *testing.T) {
	m := NewManager()
	m.Load([]Item{
		{JID: jid.MustParse("old@d"), Subscription: SubscriptionBoth},
		{JID: jid.MustParse("kept@d"), Subscription: SubscriptionBoth},
	})
	m.ApplyPresence(avail("kept@d/r", 0))

	updates := m.ApplyRosterPush(push(true, item("kept@d", "both"), item("new@d", "none")))

	kinds := map[string]UpdateKind{}
	for _, u := range updates {
		kinds[u.JID.String()] = u.Kind
	}
	assert.Equal(t, UpdateRemoved, kinds["old@d"])
	assert.Equal(t, UpdateChanged, kinds["kept@d"])
	assert.Equal(t, UpdateAdded, kinds["new@d"])

	c, _ := m.Get(jid.MustParse("kept@d"))
	assert.True(t, c.Online())
	assert.Equal(t, 2, m.Count())
}

func TestErrorStoredOnContact(t *testing.T) {
	m := NewManager()
	m.UpsertContact(jid.MustParse("u@d"))

	ev := typed("u@d", stanza.ErrorPresence)
	ev.Error = &xmpp.StanzaError{Type: "cancel", Condition: "remote-server-not-found"}
	u := m.ApplyPresence(ev)

	assert.Equal(t, UpdateError, u.Kind)
	assert.Equal(t, "Error from u@d: remote-server-not-found", u.Describe())
	c, _ := m.Get(jid.MustParse("u@d"))
	assert.Equal(t, "remote-server-not-found", c.Error)

	m.ApplyPresence(avail("u@d/r", 0))
	c, _ = m.Get(jid.MustParse("u@d"))
	assert.Empty(t, c.Error, "a live presence clears the error")
}

func TestItemsRoundTripThroughLoad(t *testing.T) {
	m := NewManager()
	it := item("u@d", "from")
	it.Groups = []string{"g"}
	m.ApplyRosterPush(push(false, it))

	other := NewManager()
	other.Load(m.Items())

	c, ok := other.Get(jid.MustParse("u@d"))
	require.True(t, ok)
	assert.Equal(t, SubscriptionFrom, c.Subscription)
	assert.Equal(t, []string{"g"}, c.Groups)
}
