package muc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meszmate/parley/internal/xmpp/chat"
	"github.com/meszmate/parley/internal/xmpp/presence"
)

func TestDefaultPolicyShowsEverything(t *testing.T) {
	c := newClock()
	r := joinedRoom(t, c)

	assert.True(t, r.ApplyPresence(pres("carol")).Visible())
	assert.True(t, r.ApplyPresence(pres("carol", show(presence.ShowAway))).Visible())
	assert.True(t, r.ApplyPresence(pres("carol", unavailable())).Visible())
}

func TestHideExitJoinZero(t *testing.T) {
	c := newClock()
	r := joinedRoom(t, c, WithPolicy(Policy{HideExitJoin: 0, HideStatusChange: -1}))

	join := r.ApplyPresence(pres("carol"))
	require.Equal(t, KindUserJoined, join.Kind())
	assert.False(t, join.Visible())

	leave := r.ApplyPresence(pres("carol", unavailable()))
	require.Equal(t, KindUserLeft, leave.Kind())
	assert.False(t, leave.Visible(), "quiet occupant")
}

func TestLeaveWindowIsInclusive(t *testing.T) {
	cases := []struct {
		name    string
		elapsed time.Duration
		visible bool
	}{
		{"inside", 30 * time.Second, true},
		{"boundary", 60 * time.Second, true},
		{"outside", 61 * time.Second, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newClock()
			r := joinedRoom(t, c, WithPolicy(Policy{HideExitJoin: 60, HideStatusChange: -1}))
			r.ApplyMessage("bob", chat.StateNone, true, false)
			c.advance(tc.elapsed)

			out := r.ApplyPresence(pres("bob", unavailable()))

			require.Equal(t, KindUserLeft, out.Kind())
			assert.Equal(t, tc.visible, out.Visible())
		})
	}
}

func TestHideStatusChange(t *testing.T) {
	c := newClock()
	r := joinedRoom(t, c, WithPolicy(Policy{HideExitJoin: -1, HideStatusChange: 10}))

	quiet := r.ApplyPresence(pres("bob", show(presence.ShowAway)))
	require.Equal(t, KindUserStatusChanged, quiet.Kind())
	assert.False(t, quiet.Visible())

	r.ApplyMessage("bob", chat.StateNone, true, false)
	talker := r.ApplyPresence(pres("bob", show(presence.ShowXA)))
	assert.True(t, talker.Visible())

	self := r.ApplyPresence(pres("alice", affiliation("owner"), role("moderator"), show(presence.ShowDND)))
	require.Equal(t, KindUserStatusChanged, self.Kind())
	assert.True(t, self.Visible(), "own changes are always shown")
}

func TestNegativeWindowsClamp(t *testing.T) {
	c := newClock()
	r := joinedRoom(t, c, WithPolicy(Policy{HideExitJoin: -7, HideStatusChange: -30}))

	assert.True(t, r.ApplyPresence(pres("bob", show(presence.ShowAway))).Visible())
	assert.True(t, r.ApplyPresence(pres("bob", unavailable())).Visible())
}
