package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const room = "chat@conf.example"

func TestLinkIsStable(t *testing.T) {
	l := NewLinker(0)

	id, created := l.Link(room, "bob", "alice")
	require.True(t, created)

	again, created := l.Link(room, "bob", "alice")
	assert.False(t, created)
	assert.Equal(t, id, again)

	other, _ := l.Link("other@conf.example", "bob", "alice")
	assert.NotEqual(t, id, other)
}

func TestRelabelKeepsHistory(t *testing.T) {
	l := NewLinker(0)
	id, _ := l.Link(room, "bob", "alice")
	require.NoError(t, l.Append(id, Line{From: "bob", Body: "hi"}))

	require.True(t, l.Relabel(room, "bob", "bobby"))

	_, ok := l.Get(room, "bob")
	assert.False(t, ok)

	c, ok := l.Get(room, "bobby")
	require.True(t, ok)
	assert.Equal(t, id, c.ID)
	assert.Equal(t, "bobby", c.Nick)
	assert.Equal(t, room+"/bobby", c.JID())

	lines := l.History(id, 0)
	require.Len(t, lines, 2)
	assert.Equal(t, "hi", lines[0].Body)
	assert.Equal(t, "bob is now known as bobby", lines[1].Body)

	assert.False(t, l.Relabel(room, "nobody", "someone"))
}

func TestRelabelOntoLinkedNickDetachesStale(t *testing.T) {
	l := NewLinker(0)
	stale, _ := l.Link(room, "bobby", "alice")
	id, _ := l.Link(room, "bob", "alice")

	require.True(t, l.Relabel(room, "bob", "bobby"))

	c, ok := l.Get(room, "bobby")
	require.True(t, ok)
	assert.Equal(t, id, c.ID)

	old, ok := l.ByID(stale)
	require.True(t, ok)
	assert.False(t, old.Active)
	lines := l.History(stale, 0)
	require.Len(t, lines, 1)
	assert.Equal(t, "bob took the nick bobby", lines[0].Body)

	l.DeactivateRoom(room, "disconnected")
	present := func(nick string) bool { return nick == "bobby" }
	assert.Equal(t, 1, l.ReactivateRoom(room, present, "joined"))

	old, _ = l.ByID(stale)
	assert.False(t, old.Active, "unlinked conversation stays inactive")
	c, _ = l.ByID(id)
	assert.True(t, c.Active)
	assert.ErrorIs(t, l.AppendOutbound(stale, Line{Body: "hi"}), ErrInactive)
}

func TestDeactivateBlocksOutbound(t *testing.T) {
	l := NewLinker(0)
	id, _ := l.Link(room, "bob", "alice")

	require.True(t, l.Deactivate(room, "bob", "bob has left the room"))
	assert.False(t, l.Deactivate(room, "bob", "again"), "already inactive")

	err := l.AppendOutbound(id, Line{Body: "still there?"})
	assert.ErrorIs(t, err, ErrInactive)

	// still readable and still receives
	require.NoError(t, l.Append(id, Line{From: "bob", Body: "late line"}))
	assert.Len(t, l.History(id, 0), 2)

	require.True(t, l.Reactivate(room, "bob", "bob joined the room"))
	assert.NoError(t, l.AppendOutbound(id, Line{Body: "welcome back"}))

	assert.ErrorIs(t, l.AppendOutbound("missing", Line{}), ErrNoConversation)
}

func TestRoomWideToggles(t *testing.T) {
	l := NewLinker(0)
	l.Link(room, "bob", "alice")
	l.Link(room, "carol", "alice")
	l.Link("other@conf.example", "dave", "alice")

	assert.Equal(t, 2, l.DeactivateRoom(room, "disconnected"))

	present := func(nick string) bool { return nick == "bob" }
	assert.Equal(t, 1, l.ReactivateRoom(room, present, "joined"))

	bob, _ := l.Get(room, "bob")
	carol, _ := l.Get(room, "carol")
	dave, _ := l.Get("other@conf.example", "dave")
	assert.True(t, bob.Active)
	assert.False(t, carol.Active)
	assert.True(t, dave.Active)

	assert.Equal(t, 2, l.RenameSelf(room, "alicia"))
	bob, _ = l.Get(room, "bob")
	assert.Equal(t, "alicia", bob.OwnNick)
}

func TestCloseForgetsConversation(t *testing.T) {
	l := NewLinker(0)
	id, _ := l.Link(room, "bob", "alice")
	l.Close(id)

	_, ok := l.ByID(id)
	assert.False(t, ok)
	assert.Empty(t, l.All())
	assert.False(t, l.MirrorStatus(room, "bob", "bob is away"))
}

func TestLogBounded(t *testing.T) {
	m := NewManager(3)
	for _, body := range []string{"a", "b", "c", "d"} {
		m.Append(room, Line{ID: body, From: "bob", Body: body})
	}

	lines := m.History(room, 0)
	require.Len(t, lines, 3)
	assert.Equal(t, "b", lines[0].Body)
	assert.Equal(t, 4, m.Unread(room))

	assert.True(t, m.Correct(room, "d", "bob", "D"))
	assert.False(t, m.Correct(room, "d", "mallory", "x"))
	assert.Equal(t, "D", m.History(room, 1)[0].Body)

	m.MarkRead(room)
	assert.Zero(t, m.Unread(room))
}
