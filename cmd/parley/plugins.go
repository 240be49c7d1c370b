package main

import (
	"github.com/meszmate/parley/internal/app"
	"github.com/meszmate/parley/internal/xmpp/muc"
	"github.com/meszmate/parley/pkg/plugin"
)

// dispatcher receives events for plugins. *plugin.Host implements it.
type dispatcher interface {
	Dispatch(ev plugin.Event)
}

// forwardToPlugins relays bus notices to the plugin host
func forwardToPlugins(bus *app.EventBus, host dispatcher, room func(addr string) (muc.Snapshot, bool)) {
	bus.SubscribeAll(func(n app.Notice) {
		if ev, ok := pluginEvent(n, room); ok {
			host.Dispatch(ev)
		}
	})
}

// pluginEvent converts a notice into the event plugins see. Console lines
// and chat state updates are not forwarded.
func pluginEvent(n app.Notice, room func(addr string) (muc.Snapshot, bool)) (plugin.Event, bool) {
	ev := plugin.Event{
		Key:      n.Key,
		Text:     n.Line.Body,
		From:     n.Line.From,
		Outgoing: n.Line.Outgoing,
		Time:     n.Line.Time,
	}

	switch n.Type {
	case app.NoticeRoom:
		if n.Outcome == nil || n.Outcome.Kind() == muc.KindNoOp {
			return ev, false
		}
		ev.Type = plugin.EventRoom
		ev.Outcome = n.Outcome.Kind().String()
		ev.Text = n.Outcome.Describe()

	case app.NoticeChat:
		if n.Key == app.ConsoleKey || n.Line.Body == "" {
			return ev, false
		}
		ev.Type = plugin.EventMessage
		if snap, ok := room(n.Key); ok {
			ev.OwnNick = snap.OwnNick
		}

	case app.NoticePrivate:
		if n.Line.Body == "" {
			return ev, false
		}
		ev.Type = plugin.EventPrivate

	case app.NoticeRoster:
		ev.Type = plugin.EventRoster

	case app.NoticeConnection:
		ev.Type = plugin.EventConnection

	default:
		return ev, false
	}
	return ev, true
}
