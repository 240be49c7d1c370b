package ui

import (
	"context"
	"fmt"
	"sort"

	"mellium.im/xmpp/jid"

	"github.com/meszmate/parley/internal/app"
	"github.com/meszmate/parley/internal/config"
	"github.com/meszmate/parley/internal/xmpp/chat"
	"github.com/meszmate/parley/internal/xmpp/muc"
	"github.com/meszmate/parley/internal/xmpp/presence"
	"github.com/meszmate/parley/internal/xmpp/roster"
)

// State is what the UI reads and drives. *app.App implements it.
type State interface {
	Config() *config.Config
	Account() config.Account
	Connected() bool
	Status() presence.Status

	Room(addr string) (muc.Snapshot, bool)
	Rooms() []muc.Snapshot
	Contacts() []roster.Contact
	Private(id string) (chat.Conversation, bool)
	Privates() []chat.Conversation

	History(t app.Target, limit int) []chat.Line
	Unread(t app.Target) int
	MarkRead(t app.Target)
	ChatState(t app.Target) chat.ChatState

	Execute(ctx context.Context, t app.Target, line string) (app.Result, error)
}

// tab is what a window shows, resolved from the current state
type tab struct {
	title     string
	header    string
	highlight bool
	typing    string
	room      *muc.Snapshot
}

// resolve looks up the state behind a target
func resolve(s State, t app.Target) tab {
	switch t.Kind {
	case app.TargetRoom:
		return roomTab(s, t.Key)
	case app.TargetPrivate:
		return privateTab(s, t.Key)
	case app.TargetContact:
		return contactTab(s, t.Key)
	default:
		return consoleTab(s)
	}
}

func consoleTab(s State) tab {
	header := s.Account().JID
	if s.Connected() {
		header += " (connected)"
	} else {
		header += " (disconnected)"
	}
	return tab{title: "console", header: header}
}

func roomTab(s State, addr string) tab {
	t := tab{title: roomTitle(addr), header: addr}
	snap, ok := s.Room(addr)
	if !ok {
		t.highlight = true
		return t
	}

	if snap.State != muc.StateJoined {
		t.header += " [" + snap.State.String() + "]"
		t.highlight = true
	}
	if snap.Topic != "" {
		t.header += ": " + snap.Topic
	}
	t.typing = typingHint(composing(snap.Occupants, snap.OwnNick))
	t.room = &snap
	return t
}

func privateTab(s State, id string) tab {
	c, ok := s.Private(id)
	if !ok {
		return tab{title: "?", header: "closed conversation", highlight: true}
	}

	t := tab{title: c.Nick, header: c.Nick + " in " + c.Room}
	if !c.Active {
		t.header += " (gone)"
		t.highlight = true
		return t
	}
	if snap, ok := s.Room(c.Room); ok {
		for _, o := range snap.Occupants {
			if o.Nick == c.Nick && o.ChatState == chat.StateComposing {
				t.typing = typingHint([]string{c.Nick})
			}
		}
	}
	return t
}

func contactTab(s State, bare string) tab {
	t := tab{title: bare, header: bare}
	for _, c := range s.Contacts() {
		if c.JID.String() != bare {
			continue
		}
		t.title = c.DisplayName()
		t.header = fmt.Sprintf("%s <%s> (%s)", c.DisplayName(), bare, c.Show())
		if c.Online() && c.Resources[0].Status != "" {
			t.header += ": " + c.Resources[0].Status
		}
		break
	}
	if s.ChatState(app.Target{Kind: app.TargetContact, Key: bare}) == chat.StateComposing {
		t.typing = typingHint([]string{t.title})
	}
	return t
}

func roomTitle(addr string) string {
	j, err := jid.Parse(addr)
	if err != nil || j.Localpart() == "" {
		return addr
	}
	return j.Localpart()
}

func composing(occupants []muc.Occupant, own string) []string {
	var nicks []string
	for _, o := range occupants {
		if o.Nick != own && o.ChatState == chat.StateComposing {
			nicks = append(nicks, o.Nick)
		}
	}
	sort.Strings(nicks)
	return nicks
}

func typingHint(nicks []string) string {
	switch len(nicks) {
	case 0:
		return ""
	case 1:
		return nicks[0] + " is typing..."
	case 2:
		return nicks[0] + " and " + nicks[1] + " are typing..."
	default:
		return fmt.Sprintf("%d people are typing...", len(nicks))
	}
}

// nickOrder returns the nicks of a room for completion, most recent
// speakers first
func nickOrder(occupants []muc.Occupant, own string) []string {
	sorted := append([]muc.Occupant(nil), occupants...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastTalked.After(sorted[j].LastTalked)
	})
	nicks := make([]string, 0, len(sorted))
	for _, o := range sorted {
		if o.Nick != own {
			nicks = append(nicks, o.Nick)
		}
	}
	return nicks
}
