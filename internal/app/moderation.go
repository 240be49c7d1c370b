package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meszmate/parley/internal/logging"
	"github.com/meszmate/parley/internal/xmpp/chat"
	"github.com/meszmate/parley/internal/xmpp/muc"
	"mellium.im/xmpp/jid"
)

const adminTimeout = 30 * time.Second

// joinedRoom returns the room of tab t, which must be joined
func (a *App) joinedRoom(t Target) (jid.JID, error) {
	if err := a.requireConnected(); err != nil {
		return jid.JID{}, err
	}
	room, err := a.roomOf(t)
	if err != nil {
		return jid.JID{}, err
	}
	snap, ok := a.rooms.Snapshot(room)
	if !ok || snap.State != muc.StateJoined {
		return jid.JID{}, fmt.Errorf("%s: %w", room, muc.ErrNotJoined)
	}
	return room, nil
}

// request runs a room request off the loop. The room answers
// asynchronously; a refusal is printed in the room.
func (a *App) request(ctx context.Context, room jid.JID, what string, fn func(context.Context) error) {
	key := room.Bare().String()
	go func() {
		ctx, cancel := context.WithTimeout(ctx, adminTimeout)
		defer cancel()
		err := fn(ctx)
		if err == nil {
			return
		}
		logging.Warn("%s in %s: %v", what, key, err)
		a.post(func(context.Context) {
			a.appendLine(key, chat.Line{Time: a.now(), Body: fmt.Sprintf("Could not %s: %v", what, err), Kind: chat.LineWarning})
		})
	}()
}

// target resolves a nick or address argument for an affiliation change.
// An occupant with a disclosed address is targeted by that address.
func (a *App) target(room jid.JID, who string) (jid.JID, string, error) {
	if addr, err := room.WithResource(who); err == nil {
		if o, ok := a.rooms.Occupant(addr); ok {
			if o.RealJID.String() != "" {
				return o.RealJID.Bare(), "", nil
			}
			return jid.JID{}, o.Nick, nil
		}
	}
	if !strings.Contains(who, "@") {
		return jid.JID{}, "", fmt.Errorf("%s is not in the room", who)
	}
	addr, err := jid.Parse(who)
	if err != nil {
		return jid.JID{}, "", fmt.Errorf("invalid address %q: %w", who, err)
	}
	return addr.Bare(), "", nil
}

func validRole(s string) bool {
	return string(muc.ParseRole(s)) == s
}

func validAffiliation(s string) bool {
	return string(muc.ParseAffiliation(s)) == s
}

func (a *App) setRole(ctx context.Context, room jid.JID, nick, role, reason string) {
	a.request(ctx, room, fmt.Sprintf("set role %s for %s", role, nick), func(ctx context.Context) error {
		return a.tr.SetRole(ctx, room, nick, role, reason)
	})
}

func (a *App) setAffiliation(ctx context.Context, room jid.JID, who, affiliation, reason string) error {
	target, nick, err := a.target(room, who)
	if err != nil {
		return err
	}
	a.request(ctx, room, fmt.Sprintf("set affiliation %s for %s", affiliation, who), func(ctx context.Context) error {
		return a.tr.SetAffiliation(ctx, room, target, nick, affiliation, reason)
	})
	return nil
}

func (a *App) cmdKick(ctx context.Context, t Target, args string) (Result, error) {
	nick, reason, _ := strings.Cut(args, " ")
	if nick == "" {
		return Result{}, errors.New("usage: " + commands["kick"].usage)
	}
	room, err := a.joinedRoom(t)
	if err != nil {
		return Result{}, err
	}
	if addr, err := room.WithResource(nick); err != nil || !hasOccupant(a.rooms, addr) {
		return Result{}, fmt.Errorf("%s is not in the room", nick)
	}
	a.setRole(ctx, room, nick, string(muc.RoleNone), strings.TrimSpace(reason))
	return Result{}, nil
}

func (a *App) cmdBan(ctx context.Context, t Target, args string) (Result, error) {
	who, reason, _ := strings.Cut(args, " ")
	if who == "" {
		return Result{}, errors.New("usage: " + commands["ban"].usage)
	}
	room, err := a.joinedRoom(t)
	if err != nil {
		return Result{}, err
	}
	return Result{}, a.setAffiliation(ctx, room, who, string(muc.AffiliationOutcast), strings.TrimSpace(reason))
}

func (a *App) cmdRole(ctx context.Context, t Target, args string) (Result, error) {
	fields := strings.SplitN(args, " ", 3)
	if len(fields) < 2 {
		return Result{}, errors.New("usage: " + commands["role"].usage)
	}
	nick, role := fields[0], strings.ToLower(fields[1])
	if !validRole(role) {
		return Result{}, errors.New("the role must be one of none, visitor, participant, moderator")
	}
	room, err := a.joinedRoom(t)
	if err != nil {
		return Result{}, err
	}
	var reason string
	if len(fields) == 3 {
		reason = strings.TrimSpace(fields[2])
	}
	a.setRole(ctx, room, nick, role, reason)
	return Result{}, nil
}

func (a *App) cmdAffiliation(ctx context.Context, t Target, args string) (Result, error) {
	fields := strings.SplitN(args, " ", 3)
	if len(fields) < 2 {
		return Result{}, errors.New("usage: " + commands["affiliation"].usage)
	}
	who, affiliation := fields[0], strings.ToLower(fields[1])
	if !validAffiliation(affiliation) {
		return Result{}, errors.New("the affiliation must be one of outcast, none, member, admin, owner")
	}
	room, err := a.joinedRoom(t)
	if err != nil {
		return Result{}, err
	}
	var reason string
	if len(fields) == 3 {
		reason = strings.TrimSpace(fields[2])
	}
	return Result{}, a.setAffiliation(ctx, room, who, affiliation, reason)
}

func (a *App) cmdInvite(ctx context.Context, t Target, args string) (Result, error) {
	who, reason, _ := strings.Cut(args, " ")
	if who == "" {
		return Result{}, errors.New("usage: " + commands["invite"].usage)
	}
	room, err := a.joinedRoom(t)
	if err != nil {
		return Result{}, err
	}
	to, err := jid.Parse(who)
	if err != nil || to.Localpart() == "" {
		return Result{}, fmt.Errorf("invalid address %q", who)
	}
	rj, err := a.rooms.Rejoin(room)
	if err != nil {
		return Result{}, err
	}
	if err := a.tr.Invite(ctx, room, to.Bare(), rj.Password, strings.TrimSpace(reason)); err != nil {
		return Result{}, fmt.Errorf("invite %s: %w", to.Bare(), err)
	}
	a.info(t, "%s has been invited to %s", to.Bare(), room)
	return Result{}, nil
}

func (a *App) cmdIgnore(ctx context.Context, t Target, args string) (Result, error) {
	return a.ignore(t, args, true)
}

func (a *App) cmdUnignore(ctx context.Context, t Target, args string) (Result, error) {
	return a.ignore(t, args, false)
}

func (a *App) ignore(t Target, nick string, on bool) (Result, error) {
	name := "unignore"
	if on {
		name = "ignore"
	}
	if nick == "" {
		return Result{}, errors.New("usage: " + commands[name].usage)
	}
	room, err := a.roomOf(t)
	if err != nil {
		return Result{}, err
	}
	addr, err := room.WithResource(nick)
	if err != nil {
		return Result{}, fmt.Errorf("invalid nick %q: %w", nick, err)
	}
	changed, err := a.rooms.Ignore(addr, on)
	if err != nil {
		return Result{}, fmt.Errorf("%s is not in the room", nick)
	}
	switch {
	case !changed && on:
		a.info(t, "%s is already ignored", nick)
	case !changed:
		a.info(t, "%s is not ignored", nick)
	case on:
		a.info(t, "%s is now ignored", nick)
	default:
		a.info(t, "%s is now unignored", nick)
	}
	return Result{}, nil
}

func hasOccupant(m *muc.Manager, addr jid.JID) bool {
	_, ok := m.Occupant(addr)
	return ok
}
