package muc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mellium.im/xmpp/jid"
)

func TestConsistentColorIsStable(t *testing.T) {
	a := ConsistentColor("romeo@montague.lit")
	b := ConsistentColor("romeo@montague.lit")

	assert.Equal(t, a, b)
	assert.Regexp(t, `^#[0-9a-f]{6}$`, string(a))
	assert.Regexp(t, `^#[0-9a-f]{6}$`, string(ConsistentColor("")))
	assert.NotEqual(t, a, ConsistentColor("juliet@capulet.lit"))
}

func TestPickRoundRobin(t *testing.T) {
	palette := []Color{"#000001", "#000002"}
	c := NewColorer(palette, "", false)

	assert.Equal(t, Color("#000001"), c.Pick("a", jid.JID{}))
	assert.Equal(t, Color("#000002"), c.Pick("b", jid.JID{}))
	assert.Equal(t, Color("#000001"), c.Pick("c", jid.JID{}))
	assert.Equal(t, DefaultOwnColor, c.Own())
}

func TestPickDeterministicUsesRealJID(t *testing.T) {
	c := NewColorer(nil, "", true)
	real := jid.MustParse("juliet@capulet.lit/balcony")

	assert.Equal(t, ConsistentColor("juliet@capulet.lit"), c.Pick("jules", real))
	assert.Equal(t, ConsistentColor("nurse"), c.Pick("nurse", jid.JID{}))
}

func TestRecolorByTalkRecency(t *testing.T) {
	palette := []Color{"#000001", "#000002", "#000003"}
	c := NewColorer(palette, "#ffffff", false)
	reg := NewRegistry()
	now := time.Unix(1000, 0)
	for _, nick := range []string{"me", "quiet", "old", "recent"} {
		reg.Upsert(nick, available(AffiliationNone, RoleParticipant), now)
	}
	reg.update("old", func(o *Occupant) { o.LastTalked = now.Add(time.Second) })
	reg.update("recent", func(o *Occupant) { o.LastTalked = now.Add(time.Minute) })

	c.Recolor(reg, "me", false)

	colors := map[string]Color{}
	for _, o := range reg.All() {
		colors[o.Nick] = o.Color
	}
	assert.Equal(t, Color("#ffffff"), colors["me"])
	assert.Equal(t, Color("#000001"), colors["recent"])
	assert.Equal(t, Color("#000002"), colors["old"])
	assert.Equal(t, Color("#000003"), colors["quiet"])
}

func TestRecolorRandomKeepsPalette(t *testing.T) {
	palette := []Color{"#000001", "#000002", "#000003"}
	c := NewColorer(palette, "", false)
	reg := NewRegistry()
	for _, nick := range []string{"a", "b", "c"} {
		reg.Upsert(nick, available(AffiliationNone, RoleParticipant), time.Now())
	}

	c.Recolor(reg, "me", true)

	var got []Color
	for _, o := range reg.All() {
		got = append(got, o.Color)
	}
	require.Len(t, got, 3)
	assert.ElementsMatch(t, palette, got)
	assert.Equal(t, []Color{"#000001", "#000002", "#000003"}, palette, "palette is not shuffled in place")
}

func TestRoomRecolorKeepsOwnColor(t *testing.T) {
	c := newClock()
	r := joinedRoom(t, c, WithColorer(NewColorer([]Color{"#000001"}, "#ffffff", false)))

	r.Recolor(false)

	self, _ := r.Occupant("alice")
	bob, _ := r.Occupant("bob")
	assert.Equal(t, Color("#ffffff"), self.Color)
	assert.Equal(t, Color("#000001"), bob.Color)
}
