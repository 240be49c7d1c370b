// Package muc keeps the local view of multi-user chat rooms: who is in each
// room, with which affiliation, role and presence, and what happened when a
// presence arrives.
package muc

import "errors"

// Affiliation represents a MUC affiliation
type Affiliation string

const (
	AffiliationOwner   Affiliation = "owner"
	AffiliationAdmin   Affiliation = "admin"
	AffiliationMember  Affiliation = "member"
	AffiliationOutcast Affiliation = "outcast"
	AffiliationNone    Affiliation = "none"
)

// ParseAffiliation maps a wire value, defaulting to none
func ParseAffiliation(s string) Affiliation {
	switch a := Affiliation(s); a {
	case AffiliationOwner, AffiliationAdmin, AffiliationMember, AffiliationOutcast:
		return a
	default:
		return AffiliationNone
	}
}

// Badge is the one character prefix shown before a nick
func (a Affiliation) Badge() string {
	switch a {
	case AffiliationOwner:
		return "~"
	case AffiliationAdmin:
		return "&"
	case AffiliationMember:
		return "+"
	case AffiliationOutcast:
		return "-"
	default:
		return " "
	}
}

// Role represents a MUC role
type Role string

const (
	RoleModerator   Role = "moderator"
	RoleParticipant Role = "participant"
	RoleVisitor     Role = "visitor"
	RoleNone        Role = "none"
)

// ParseRole maps a wire value, defaulting to none
func ParseRole(s string) Role {
	switch r := Role(s); r {
	case RoleModerator, RoleParticipant, RoleVisitor:
		return r
	default:
		return RoleNone
	}
}

// Rank orders roles for display, highest first
func (r Role) Rank() int {
	switch r {
	case RoleModerator:
		return 0
	case RoleParticipant:
		return 1
	case RoleVisitor:
		return 2
	default:
		return 3
	}
}

// Status codes carried in muc#user presences (XEP-0045 §15.6)
const (
	CodeNonAnonymous   = 100
	CodeSelfPresence   = 110
	CodePubliclyLogged = 170
	CodeRoomCreated    = 201
	CodeNickAssigned   = 210
	CodeBanned         = 301
	CodeNickChanged    = 303
	CodeKicked         = 307
	CodeAffiliation    = 321
	CodeMembersOnly    = 322
	CodeShutdown       = 332
	CodeServerError    = 333
)

var (
	// ErrNotFound is returned when a room or occupant is unknown
	ErrNotFound = errors.New("muc: not found")
	// ErrAlreadyJoined is returned when joining a room twice
	ErrAlreadyJoined = errors.New("muc: already joined")
	// ErrNotJoined is returned for operations that need a joined room
	ErrNotJoined = errors.New("muc: not joined")
)
