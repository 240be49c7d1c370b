package main

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meszmate/parley/internal/app"
	"github.com/meszmate/parley/internal/xmpp/chat"
	"github.com/meszmate/parley/internal/xmpp/muc"
	"github.com/meszmate/parley/pkg/plugin"
)

const room = "chat@conf.example"

func lookup(addr string) (muc.Snapshot, bool) {
	if addr == room {
		return muc.Snapshot{JID: room, OwnNick: "alice"}, true
	}
	return muc.Snapshot{}, false
}

func TestPluginEventForRoomOutcome(t *testing.T) {
	ev, ok := pluginEvent(app.Notice{
		Type:    app.NoticeRoom,
		Key:     room,
		Outcome: muc.SelfKicked{By: "mod", Reason: "spam"},
	}, lookup)
	require.True(t, ok)
	assert.Equal(t, plugin.EventRoom, ev.Type)
	assert.Equal(t, "self_kicked", ev.Outcome)
	assert.Equal(t, room, ev.Key)
	assert.Equal(t, muc.SelfKicked{By: "mod", Reason: "spam"}.Describe(), ev.Text)

	_, ok = pluginEvent(app.Notice{Type: app.NoticeRoom, Key: room, Outcome: muc.NoOp{}}, lookup)
	assert.False(t, ok)
	_, ok = pluginEvent(app.Notice{Type: app.NoticeRoom, Key: room}, lookup)
	assert.False(t, ok)
}

func TestPluginEventForMessages(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	ev, ok := pluginEvent(app.Notice{
		Type: app.NoticeChat,
		Key:  room,
		Line: chat.Line{From: "bob", Body: "alice: ping", Time: at},
	}, lookup)
	require.True(t, ok)
	assert.Equal(t, plugin.EventMessage, ev.Type)
	assert.Equal(t, "alice", ev.OwnNick)
	assert.Equal(t, "bob", ev.From)
	assert.Equal(t, "alice: ping", ev.Text)
	assert.Equal(t, at, ev.Time)

	ev, ok = pluginEvent(app.Notice{
		Type: app.NoticeChat,
		Key:  "bob@example.org",
		Line: chat.Line{From: "Bob", Body: "hi"},
	}, lookup)
	require.True(t, ok)
	assert.Empty(t, ev.OwnNick)

	_, ok = pluginEvent(app.Notice{Type: app.NoticeChat, Key: app.ConsoleKey, Line: chat.Line{Body: "Connected"}}, lookup)
	assert.False(t, ok)
	_, ok = pluginEvent(app.Notice{Type: app.NoticeChat, Key: "bob@example.org"}, lookup)
	assert.False(t, ok)

	ev, ok = pluginEvent(app.Notice{Type: app.NoticePrivate, Key: "priv-1", Line: chat.Line{From: "bob", Body: "psst"}}, lookup)
	require.True(t, ok)
	assert.Equal(t, plugin.EventPrivate, ev.Type)
}

func TestPluginEventForRosterAndConnection(t *testing.T) {
	ev, ok := pluginEvent(app.Notice{Type: app.NoticeRoster}, lookup)
	require.True(t, ok)
	assert.Equal(t, plugin.EventRoster, ev.Type)

	ev, ok = pluginEvent(app.Notice{Type: app.NoticeConnection}, lookup)
	require.True(t, ok)
	assert.Equal(t, plugin.EventConnection, ev.Type)
}

type collector struct {
	mu     sync.Mutex
	events []plugin.Event
}

func (c *collector) Dispatch(ev plugin.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestForwardToPlugins(t *testing.T) {
	bus := app.NewEventBus()
	c := &collector{}
	forwardToPlugins(bus, c, lookup)

	bus.Publish(app.Notice{Type: app.NoticeChat, Key: app.ConsoleKey, Line: chat.Line{Body: "ignored"}})
	bus.Publish(app.Notice{Type: app.NoticeRoom, Key: room, Outcome: muc.SelfBanned{By: "owner"}})

	assert.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 10*time.Millisecond)
	c.mu.Lock()
	assert.Equal(t, "self_banned", c.events[0].Outcome)
	c.mu.Unlock()
}
