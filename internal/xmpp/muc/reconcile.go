package muc

import (
	"github.com/meszmate/parley/internal/logging"
	"github.com/meszmate/parley/internal/xmpp"
	"github.com/meszmate/parley/internal/xmpp/presence"
	"mellium.im/xmpp/stanza"
)

// ApplyPresence reconciles one presence from the room against the occupant
// registry and returns what happened. It never fails: malformed or stale
// presences degrade to NoOp.
func (r *Room) ApplyPresence(ev xmpp.PresenceEvent) Outcome {
	out := r.reconcile(ev)
	r.checkInvariants()
	if n, ok := out.(NoOp); ok && n.Reason != "" {
		logging.Debug("muc: %s: ignored presence from %s: %s", r.jid, ev.From, n.Reason)
	}
	return out
}

func (r *Room) reconcile(ev xmpp.PresenceEvent) Outcome {
	nick := ev.From.Resourcepart()

	if ev.Type == stanza.ErrorPresence {
		return r.applyError(ev)
	}
	if nick == "" {
		return NoOp{Reason: "presence from the room itself"}
	}

	switch r.state {
	case StateUnjoined, StateDisconnected:
		return NoOp{Reason: "room is " + r.state.String()}
	case StateJoining:
		return r.applyPreJoin(nick, ev)
	}

	codes := ev.StatusCodes
	unavailable := ev.Type == stanza.UnavailablePresence

	switch {
	case codes.Has(CodeNickChanged):
		return r.applyNickChange(nick, ev)
	case codes.Has(CodeBanned) && unavailable:
		return r.applyBan(nick, ev)
	case codes.Has(CodeKicked) && unavailable:
		return r.applyKick(nick, ev)
	case unavailable && !r.occupants.Has(nick):
		logging.Warn("muc: %s: unavailable presence for unknown occupant %q", r.jid, nick)
		return NoOp{Reason: "leave for unknown occupant"}
	case unavailable:
		return r.applyLeave(nick, ev)
	case !r.occupants.Has(nick):
		return r.applyJoin(nick, ev)
	default:
		return r.applyStatus(nick, ev)
	}
}

func (r *Room) fields(ev xmpp.PresenceEvent) Fields {
	f := Fields{
		Affiliation: AffiliationNone,
		Role:        RoleNone,
		Show:        ev.Show,
		Status:      ev.Status,
	}
	if ev.Type == stanza.UnavailablePresence {
		f.Show = presence.ShowUnavailable
	} else if f.Show == "" {
		f.Show = presence.ShowAvailable
	}
	if ev.MUC != nil {
		f.Affiliation = ParseAffiliation(ev.MUC.Affiliation)
		f.Role = ParseRole(ev.MUC.Role)
		f.RealJID = ev.MUC.JID
	}
	return f
}

func actorReason(ev xmpp.PresenceEvent) (string, string) {
	if ev.MUC == nil {
		return "", ""
	}
	return ev.MUC.Actor, ev.MUC.Reason
}

func (r *Room) applyError(ev xmpp.PresenceEvent) Outcome {
	out := RoomError{Condition: "undefined-condition"}
	if ev.Error != nil {
		out.Type = ev.Error.Type
		out.Condition = ev.Error.Condition
		out.Text = ev.Error.Text
	}
	if r.state == StateJoining {
		// the join was refused; keep what we knew from before a disconnect
		if r.seen != nil {
			r.state = StateDisconnected
		} else {
			r.state = StateUnjoined
		}
	}
	return out
}

// applyPreJoin handles the occupant list sent before our own presence
func (r *Room) applyPreJoin(nick string, ev xmpp.PresenceEvent) Outcome {
	codes := ev.StatusCodes
	self := codes.Has(CodeSelfPresence) || nick == r.ownNick

	if ev.Type == stanza.UnavailablePresence {
		// the service may refuse us with a ban or kick instead of an error
		switch {
		case self && codes.Has(CodeBanned):
			return r.applyBan(r.ownNick, ev)
		case self && codes.Has(CodeKicked):
			return r.applyKick(r.ownNick, ev)
		}
		return NoOp{Reason: "unavailable presence before join"}
	}

	f := r.fields(ev)
	now := r.now()

	if !self {
		prev, known := r.occupants.Find(nick)
		r.occupants.Upsert(nick, f, now)
		if r.seen != nil {
			r.seen[nick] = true
		}
		if !known {
			r.occupants.update(nick, func(o *Occupant) { o.Color = r.colorer.Pick(nick, f.RealJID) })
			return UserJoined{Nick: nick, RealJID: f.RealJID.String(), Initial: true}
		}
		diff := f.diff(&prev)
		if diff.Empty() {
			return NoOp{Reason: "repeated presence before join"}
		}
		// a known occupant changed while we were away
		out := UserStatusChanged{Nick: nick, Diff: diff}
		r.linker.MirrorStatus(r.jid.String(), nick, out.Describe())
		return out
	}

	assigned := nick != r.ownNick
	if assigned {
		// the service rewrote our nick (status 210, or a 110 under another name)
		r.occupants.Remove(r.ownNick)
		r.ownNick = nick
	}
	r.occupants.Upsert(nick, f, now)
	r.occupants.update(nick, func(o *Occupant) { o.Color = r.colorer.Own() })

	var departed []string
	if r.seen != nil {
		for _, o := range r.occupants.All() {
			if o.Nick == nick || r.seen[o.Nick] {
				continue
			}
			r.occupants.Remove(o.Nick)
			departed = append(departed, o.Nick)
		}
		r.seen = nil
	}
	r.state = StateJoined

	for _, d := range departed {
		r.linker.Deactivate(r.jid.String(), d, d+" has left the room")
	}
	r.linker.RenameSelf(r.jid.String(), nick)
	r.linker.ReactivateRoom(r.jid.String(), r.occupants.Has, "You joined the room")

	return SelfJoined{
		Nick:           nick,
		Created:        codes.Has(CodeRoomCreated),
		PubliclyLogged: codes.Has(CodePubliclyLogged),
		NonAnonymous:   codes.Has(CodeNonAnonymous),
		NickAssigned:   assigned || codes.Has(CodeNickAssigned),
		Departed:       departed,
	}
}

func (r *Room) applyNickChange(nick string, ev xmpp.PresenceEvent) Outcome {
	if ev.MUC == nil || ev.MUC.Nick == "" {
		logging.Warn("muc: %s: nick change from %q without a new nick", r.jid, nick)
		return NoOp{Reason: "nick change without new nick"}
	}
	newNick := ev.MUC.Nick
	if r.occupants.Has(newNick) && newNick != nick {
		logging.Warn("muc: %s: nick change %q -> %q replaces a stale occupant", r.jid, nick, newNick)
	}
	if _, err := r.occupants.Rename(nick, newNick); err != nil {
		logging.Warn("muc: %s: %v", r.jid, err)
		return NoOp{Reason: "nick change for unknown occupant"}
	}

	room := r.jid.String()
	self := nick == r.ownNick
	if self {
		r.ownNick = newNick
		r.linker.RenameSelf(room, newNick)
	}
	r.linker.Relabel(room, nick, newNick)
	return NickChanged{Old: nick, New: newNick, Self: self}
}

func (r *Room) applyBan(nick string, ev xmpp.PresenceEvent) Outcome {
	by, reason := actorReason(ev)
	if nick == r.ownNick {
		out := SelfBanned{By: by, Reason: reason}
		r.exit(out.Describe())
		return out
	}
	if _, ok := r.occupants.Remove(nick); !ok {
		return NoOp{Reason: "ban for unknown occupant"}
	}
	out := UserBanned{Nick: nick, By: by, Reason: reason}
	r.linker.Deactivate(r.jid.String(), nick, out.Describe())
	return out
}

func (r *Room) applyKick(nick string, ev xmpp.PresenceEvent) Outcome {
	by, reason := actorReason(ev)
	if nick == r.ownNick {
		out := SelfKicked{By: by, Reason: reason}
		if r.policy.AutoRejoin {
			out.AutoRejoin = true
			out.Delay = r.policy.AutoRejoinDelay
		}
		r.exit(out.Describe())
		return out
	}
	if _, ok := r.occupants.Remove(nick); !ok {
		return NoOp{Reason: "kick for unknown occupant"}
	}
	out := UserKicked{Nick: nick, By: by, Reason: reason}
	r.linker.Deactivate(r.jid.String(), nick, out.Describe())
	return out
}

func (r *Room) applyLeave(nick string, ev xmpp.PresenceEvent) Outcome {
	cause := leaveCause(ev.StatusCodes)
	if nick == r.ownNick {
		out := SelfLeft{Status: ev.Status, Cause: cause}
		r.exit(out.Describe())
		return out
	}

	o, _ := r.occupants.Remove(nick)
	out := UserLeft{
		Nick:    nick,
		RealJID: o.RealJID.String(),
		Status:  ev.Status,
		Cause:   cause,
		Display: r.policy.showLeave(o, r.now()),
	}
	r.linker.Deactivate(r.jid.String(), nick, out.Describe())
	return out
}

func (r *Room) applyJoin(nick string, ev xmpp.PresenceEvent) Outcome {
	f := r.fields(ev)
	r.occupants.Upsert(nick, f, r.now())
	r.occupants.update(nick, func(o *Occupant) { o.Color = r.colorer.Pick(nick, f.RealJID) })

	out := UserJoined{
		Nick:    nick,
		RealJID: f.RealJID.String(),
		Display: r.policy.showJoin(),
	}
	r.linker.Reactivate(r.jid.String(), nick, out.Describe())
	return out
}

func (r *Room) applyStatus(nick string, ev xmpp.PresenceEvent) Outcome {
	f := r.fields(ev)
	prev, _ := r.occupants.Find(nick)
	diff := f.diff(&prev)
	if diff.Empty() {
		if f.RealJID.String() != "" && f.RealJID.String() != prev.RealJID.String() {
			r.occupants.Upsert(nick, f, r.now())
		}
		return NoOp{}
	}

	r.occupants.Upsert(nick, f, r.now())
	self := nick == r.ownNick
	out := UserStatusChanged{
		Nick:    nick,
		Self:    self,
		Diff:    diff,
		Display: r.policy.showStatus(prev, diff, self, r.now()),
	}
	r.linker.MirrorStatus(r.jid.String(), nick, out.Describe())
	return out
}
