package muc

import (
	"fmt"
	"time"

	"github.com/meszmate/parley/internal/xmpp/chat"
	"github.com/meszmate/parley/internal/xmpp/presence"
	"mellium.im/xmpp/jid"
)

// Occupant represents a room occupant
type Occupant struct {
	Nick        string
	Affiliation Affiliation
	Role        Role
	Show        presence.Show
	Status      string
	RealJID     jid.JID // zero unless the room discloses it
	ChatState   chat.ChatState
	Color       Color
	Joined      time.Time
	LastTalked  time.Time
	// Ignored hides the occupant's groupchat lines until they leave
	Ignored bool
}

// TalkedWithin reports whether the occupant spoke in the last window before
// now. The boundary is inclusive; an occupant that never talked has not.
func (o Occupant) TalkedWithin(now time.Time, window time.Duration) bool {
	if o.LastTalked.IsZero() {
		return false
	}
	return !o.LastTalked.Before(now.Add(-window))
}

// Fields are the presence-carried attributes of an occupant
type Fields struct {
	Affiliation Affiliation
	Role        Role
	Show        presence.Show
	Status      string
	RealJID     jid.JID
}

// diff reports which fields of o would change if f were applied
func (f Fields) diff(o *Occupant) StatusDiff {
	d := StatusDiff{}
	if f.Affiliation != o.Affiliation {
		d.Affiliation = &f.Affiliation
	}
	if f.Role != o.Role {
		d.Role = &f.Role
	}
	if f.Show != o.Show {
		d.Show = &f.Show
	}
	if f.Status != o.Status {
		d.Status = &f.Status
	}
	return d
}

// Registry is the per-room collection of occupants, unique by nick and kept
// in insertion order.
type Registry struct {
	order []*Occupant
	index map[string]*Occupant
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]*Occupant)}
}

// Upsert inserts a new occupant or updates the presence fields of an
// existing one. It never creates a second entry for a nick.
func (r *Registry) Upsert(nick string, f Fields, now time.Time) (Occupant, bool) {
	if o, ok := r.index[nick]; ok {
		o.Affiliation = f.Affiliation
		o.Role = f.Role
		o.Show = f.Show
		o.Status = f.Status
		if f.RealJID.String() != "" {
			o.RealJID = f.RealJID
		}
		return *o, false
	}

	o := &Occupant{
		Nick:        nick,
		Affiliation: f.Affiliation,
		Role:        f.Role,
		Show:        f.Show,
		Status:      f.Status,
		RealJID:     f.RealJID,
		Joined:      now,
	}
	r.order = append(r.order, o)
	r.index[nick] = o
	return *o, true
}

// Remove deletes an occupant and returns its last value
func (r *Registry) Remove(nick string) (Occupant, bool) {
	o, ok := r.index[nick]
	if !ok {
		return Occupant{}, false
	}
	delete(r.index, nick)
	r.unlink(o)
	return *o, true
}

// Rename moves an occupant to a new nick, keeping every other field. A stale
// entry already holding newNick is dropped.
func (r *Registry) Rename(oldNick, newNick string) (Occupant, error) {
	o, ok := r.index[oldNick]
	if !ok {
		return Occupant{}, fmt.Errorf("rename %q: %w", oldNick, ErrNotFound)
	}
	if oldNick == newNick {
		return *o, nil
	}
	if stale, ok := r.index[newNick]; ok {
		delete(r.index, newNick)
		r.unlink(stale)
	}

	delete(r.index, oldNick)
	r.unlink(o)
	o.Nick = newNick
	r.order = append(r.order, o)
	r.index[newNick] = o
	return *o, nil
}

// Find returns the occupant with the given nick
func (r *Registry) Find(nick string) (Occupant, bool) {
	o, ok := r.index[nick]
	if !ok {
		return Occupant{}, false
	}
	return *o, true
}

// Has reports whether nick is present
func (r *Registry) Has(nick string) bool {
	_, ok := r.index[nick]
	return ok
}

// All returns the occupants in insertion order
func (r *Registry) All() []Occupant {
	out := make([]Occupant, len(r.order))
	for i, o := range r.order {
		out[i] = *o
	}
	return out
}

// Nicks returns the nicks in insertion order
func (r *Registry) Nicks() []string {
	out := make([]string, len(r.order))
	for i, o := range r.order {
		out[i] = o.Nick
	}
	return out
}

// Len returns the number of occupants
func (r *Registry) Len() int {
	return len(r.order)
}

// Clear removes every occupant
func (r *Registry) Clear() {
	r.order = nil
	r.index = make(map[string]*Occupant)
}

// update applies fn to the stored occupant
func (r *Registry) update(nick string, fn func(*Occupant)) bool {
	o, ok := r.index[nick]
	if !ok {
		return false
	}
	fn(o)
	return true
}

func (r *Registry) unlink(o *Occupant) {
	for i, v := range r.order {
		if v == o {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
