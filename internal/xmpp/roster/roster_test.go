package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mellium.im/xmpp/jid"
	"mellium.im/xmpp/stanza"

	"github.com/meszmate/parley/internal/xmpp"
	"github.com/meszmate/parley/internal/xmpp/presence"
)

func avail(full string, prio int) xmpp.PresenceEvent {
	return xmpp.PresenceEvent{From: jid.MustParse(full), Priority: prio}
}

func TestUpsertContactIsIdempotent(t *testing.T) {
	m := NewManager()
	a := m.UpsertContact(jid.MustParse("u@d/phone"))
	b := m.UpsertContact(jid.MustParse("u@d"))

	assert.Equal(t, "u@d", a.JID.String())
	assert.Equal(t, a.JID.String(), b.JID.String())
	assert.Equal(t, SubscriptionNone, b.Subscription)
	assert.Equal(t, 1, m.Count())
}

func TestHighestPriorityResource(t *testing.T) {
	m := NewManager()
	m.UpsertContact(jid.MustParse("u@d"))

	m.ApplyPresence(avail("u@d/phone", 10))
	m.ApplyPresence(avail("u@d/laptop", 5))

	r, ok := m.HighestPriorityResource(jid.MustParse("u@d"))
	require.True(t, ok)
	assert.Equal(t, "phone", r.Name())
	assert.Equal(t, 10, r.Priority)
}

func TestEqualPriorityMostRecentWins(t *testing.T) {
	m := NewManager()
	m.UpsertContact(jid.MustParse("u@d"))

	m.ApplyPresence(avail("u@d/a", 5))
	m.ApplyPresence(avail("u@d/b", 5))
	r, _ := m.HighestPriorityResource(jid.MustParse("u@d"))
	assert.Equal(t, "b", r.Name())

	m.ApplyPresence(avail("u@d/a", 5))
	r, _ = m.HighestPriorityResource(jid.MustParse("u@d"))
	assert.Equal(t, "a", r.Name())

	c, _ := m.Get(jid.MustParse("u@d"))
	require.Len(t, c.Resources, 2)
	assert.Equal(t, "a", c.Resources[0].Name(), "snapshot is ordered best first")
}

func TestUnavailableDeletesResource(t *testing.T) {
	m := NewManager()
	m.UpsertContact(jid.MustParse("u@d"))
	m.ApplyPresence(avail("u@d/phone", 1))
	m.ApplyPresence(avail("u@d/laptop", 0))

	off := avail("u@d/phone", 0)
	off.Type = stanza.UnavailablePresence
	u := m.ApplyPresence(off)
	assert.Equal(t, UpdateResource, u.Kind)

	c, ok := m.Get(jid.MustParse("u@d"))
	require.True(t, ok)
	require.Len(t, c.Resources, 1)
	assert.Equal(t, "laptop", c.Resources[0].Name())

	off.From = jid.MustParse("u@d/laptop")
	u = m.ApplyPresence(off)
	assert.Equal(t, UpdateOffline, u.Kind)

	c, ok = m.Get(jid.MustParse("u@d"))
	require.True(t, ok, "contact stays in the roster")
	assert.Empty(t, c.Resources)
	assert.False(t, c.Online())
	assert.Equal(t, presence.ShowUnavailable, c.Show())
	_, ok = m.HighestPriorityResource(jid.MustParse("u@d"))
	assert.False(t, ok)
}

func TestPresenceFromStrangerIgnored(t *testing.T) {
	m := NewManager()

	u := m.ApplyPresence(avail("x@y/z", 1))

	assert.Equal(t, UpdateNone, u.Kind)
	assert.Zero(t, m.Count())
	assert.ErrorIs(t, m.SetResource(jid.MustParse("x@y/z"), presence.ShowAway, "", 0), ErrUnknownContact)
}

func TestShowDefaultsToAvailable(t *testing.T) {
	m := NewManager()
	m.UpsertContact(jid.MustParse("u@d"))

	ev := avail("u@d/r", 0)
	ev.Status = "hello"
	m.ApplyPresence(ev)

	c, _ := m.Get(jid.MustParse("u@d"))
	assert.Equal(t, presence.ShowAvailable, c.Show())
	assert.Equal(t, "hello", c.Resources[0].Status)
}

func TestRemoveContact(t *testing.T) {
	m := NewManager()
	m.UpsertContact(jid.MustParse("u@d"))

	assert.True(t, m.RemoveContact(jid.MustParse("u@d")))
	assert.False(t, m.RemoveContact(jid.MustParse("u@d")))
	_, ok := m.Get(jid.MustParse("u@d"))
	assert.False(t, ok)
}

func TestGroups(t *testing.T) {
	m := NewManager()
	m.Load([]Item{
		{JID: jid.MustParse("a@d"), Groups: []string{"work", "Friends"}},
		{JID: jid.MustParse("b@d"), Groups: []string{"work"}},
		{JID: jid.MustParse("c@d")},
	})

	assert.Equal(t, []string{"Friends", "work"}, m.Groups())
	assert.Len(t, m.ByGroup("work"), 2)
	ungrouped := m.Ungrouped()
	require.Len(t, ungrouped, 1)
	assert.Equal(t, "c@d", ungrouped[0].JID.String())
}
