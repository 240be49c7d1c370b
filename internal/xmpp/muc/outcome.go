package muc

import (
	"fmt"
	"strings"
	"time"

	"github.com/meszmate/parley/internal/xmpp/presence"
)

// Kind tags an Outcome variant
type Kind int

const (
	KindNoOp Kind = iota
	KindRoomError
	KindSelfJoined
	KindNickChanged
	KindSelfBanned
	KindUserBanned
	KindSelfKicked
	KindUserKicked
	KindSelfLeft
	KindUserLeft
	KindUserJoined
	KindUserStatusChanged
	KindTopicChanged
)

var kindNames = map[Kind]string{
	KindNoOp:              "noop",
	KindRoomError:         "room_error",
	KindSelfJoined:        "self_joined",
	KindNickChanged:       "nick_changed",
	KindSelfBanned:        "self_banned",
	KindUserBanned:        "user_banned",
	KindSelfKicked:        "self_kicked",
	KindUserKicked:        "user_kicked",
	KindSelfLeft:          "self_left",
	KindUserLeft:          "user_left",
	KindUserJoined:        "user_joined",
	KindUserStatusChanged: "user_status_changed",
	KindTopicChanged:      "topic_changed",
}

// String returns the snake_case name of the kind
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Outcome is the result of reconciling one stanza against a room. Exactly
// one is produced per stanza.
type Outcome interface {
	Kind() Kind
	// Visible reports whether the UI should print a line for it
	Visible() bool
	// Describe renders the line shown to the user
	Describe() string
}

// LeaveCause qualifies why an occupant left
type LeaveCause int

const (
	LeaveNormal LeaveCause = iota
	LeaveError
	LeaveShutdown
	LeaveMembersOnly
	LeaveAffiliation
)

func leaveCause(codes interface{ Has(int) bool }) LeaveCause {
	switch {
	case codes.Has(CodeShutdown):
		return LeaveShutdown
	case codes.Has(CodeMembersOnly):
		return LeaveMembersOnly
	case codes.Has(CodeAffiliation):
		return LeaveAffiliation
	case codes.Has(CodeServerError):
		return LeaveError
	default:
		return LeaveNormal
	}
}

func (c LeaveCause) suffix() string {
	switch c {
	case LeaveError:
		return " due to an error"
	case LeaveShutdown:
		return " because the MUC service is shutting down"
	case LeaveMembersOnly:
		return " because the room is now members-only"
	case LeaveAffiliation:
		return " because of an affiliation change"
	default:
		return ""
	}
}

// NoOp is produced when nothing observable changed
type NoOp struct {
	Reason string
}

// RoomError reports a stanza-level error returned by the room
type RoomError struct {
	Type      string
	Condition string
	Text      string
}

// SelfJoined reports that our own presence was echoed by the room
type SelfJoined struct {
	Nick           string
	Created        bool
	PubliclyLogged bool
	NonAnonymous   bool
	NickAssigned   bool
	// Departed lists occupants remembered from before a disconnect that
	// were not present again when we rejoined
	Departed []string
}

// NickChanged reports a nick change
type NickChanged struct {
	Old  string
	New  string
	Self bool
}

// SelfBanned reports that we were banned
type SelfBanned struct {
	By     string
	Reason string
}

// UserBanned reports that another occupant was banned
type UserBanned struct {
	Nick   string
	By     string
	Reason string
}

// SelfKicked reports that we were kicked. AutoRejoin asks the caller to
// join again after Delay.
type SelfKicked struct {
	By         string
	Reason     string
	AutoRejoin bool
	Delay      time.Duration
}

// UserKicked reports that another occupant was kicked
type UserKicked struct {
	Nick   string
	By     string
	Reason string
}

// SelfLeft reports that we are no longer in the room
type SelfLeft struct {
	Status string
	Cause  LeaveCause
}

// UserLeft reports a plain leave
type UserLeft struct {
	Nick    string
	RealJID string
	Status  string
	Cause   LeaveCause
	Display bool
}

// UserJoined reports a new occupant. Initial is set for occupants listed
// before our own join completed.
type UserJoined struct {
	Nick    string
	RealJID string
	Initial bool
	Display bool
}

// StatusDiff holds the fields that changed, nil when unchanged
type StatusDiff struct {
	Affiliation *Affiliation
	Role        *Role
	Show        *presence.Show
	Status      *string
}

// Empty reports whether nothing changed
func (d StatusDiff) Empty() bool {
	return d.Affiliation == nil && d.Role == nil && d.Show == nil && d.Status == nil
}

// Privileged reports whether affiliation or role changed
func (d StatusDiff) Privileged() bool {
	return d.Affiliation != nil || d.Role != nil
}

// String renders the diff as "affiliation: x, role: y"
func (d StatusDiff) String() string {
	var parts []string
	if d.Affiliation != nil {
		parts = append(parts, "affiliation: "+string(*d.Affiliation))
	}
	if d.Role != nil {
		parts = append(parts, "role: "+string(*d.Role))
	}
	if d.Show != nil {
		parts = append(parts, "show: "+d.Show.String())
	}
	if d.Status != nil {
		if *d.Status == "" {
			parts = append(parts, "status cleared")
		} else {
			parts = append(parts, "status: "+*d.Status)
		}
	}
	return strings.Join(parts, ", ")
}

// UserStatusChanged reports a change of affiliation, role, show or status
type UserStatusChanged struct {
	Nick    string
	Self    bool
	Diff    StatusDiff
	Display bool
}

// TopicChanged reports a new room subject
type TopicChanged struct {
	Subject string
	Setter  string
}

func (NoOp) Kind() Kind              { return KindNoOp }
func (RoomError) Kind() Kind         { return KindRoomError }
func (SelfJoined) Kind() Kind        { return KindSelfJoined }
func (NickChanged) Kind() Kind       { return KindNickChanged }
func (SelfBanned) Kind() Kind        { return KindSelfBanned }
func (UserBanned) Kind() Kind        { return KindUserBanned }
func (SelfKicked) Kind() Kind        { return KindSelfKicked }
func (UserKicked) Kind() Kind        { return KindUserKicked }
func (SelfLeft) Kind() Kind          { return KindSelfLeft }
func (UserLeft) Kind() Kind          { return KindUserLeft }
func (UserJoined) Kind() Kind        { return KindUserJoined }
func (UserStatusChanged) Kind() Kind { return KindUserStatusChanged }
func (TopicChanged) Kind() Kind      { return KindTopicChanged }

func (NoOp) Visible() bool                { return false }
func (RoomError) Visible() bool           { return true }
func (SelfJoined) Visible() bool          { return true }
func (NickChanged) Visible() bool         { return true }
func (SelfBanned) Visible() bool          { return true }
func (UserBanned) Visible() bool          { return true }
func (SelfKicked) Visible() bool          { return true }
func (UserKicked) Visible() bool          { return true }
func (SelfLeft) Visible() bool            { return true }
func (o UserLeft) Visible() bool          { return o.Display }
func (o UserJoined) Visible() bool        { return o.Display }
func (o UserStatusChanged) Visible() bool { return o.Display }
func (TopicChanged) Visible() bool        { return true }

func (o NoOp) Describe() string {
	return o.Reason
}

func (o RoomError) Describe() string {
	msg := "Error: " + o.Condition
	if o.Text != "" {
		msg += " (" + o.Text + ")"
	}
	return msg
}

func (o SelfJoined) Describe() string {
	lines := []string{fmt.Sprintf("You (%s) joined the room", o.Nick)}
	if o.NickAssigned {
		lines = append(lines, "Info: The service assigned you the nick "+o.Nick)
	}
	if o.Created {
		lines = append(lines, "Info: The room has been created")
	}
	if o.PubliclyLogged {
		lines = append(lines, "Warning: This room is publicly logged")
	}
	if o.NonAnonymous {
		lines = append(lines, "Warning: This room is not anonymous")
	}
	if len(o.Departed) > 0 {
		lines = append(lines, "Left while you were away: "+strings.Join(o.Departed, ", "))
	}
	return strings.Join(lines, "\n")
}

func (o NickChanged) Describe() string {
	if o.Self {
		return fmt.Sprintf("You are now known as %s", o.New)
	}
	return fmt.Sprintf("%s is now known as %s", o.Old, o.New)
}

func (o SelfBanned) Describe() string {
	return withReason(byActor("You have been banned", o.By), o.Reason)
}

func (o UserBanned) Describe() string {
	return withReason(byActor(o.Nick+" has been banned", o.By), o.Reason)
}

func (o SelfKicked) Describe() string {
	msg := withReason(byActor("You have been kicked", o.By), o.Reason)
	if o.AutoRejoin {
		msg += fmt.Sprintf(" (rejoining in %s)", o.Delay)
	}
	return msg
}

func (o UserKicked) Describe() string {
	return withReason(byActor(o.Nick+" has been kicked", o.By), o.Reason)
}

func (o SelfLeft) Describe() string {
	msg := "You have left the room" + o.Cause.suffix()
	if o.Status != "" {
		msg += " (" + o.Status + ")"
	}
	return msg
}

func (o UserLeft) Describe() string {
	who := o.Nick
	if o.RealJID != "" {
		who += " (" + o.RealJID + ")"
	}
	msg := who + " has left the room" + o.Cause.suffix()
	if o.Status != "" {
		msg += " (" + o.Status + ")"
	}
	return msg
}

func (o UserJoined) Describe() string {
	if o.RealJID != "" {
		return fmt.Sprintf("%s (%s) joined the room", o.Nick, o.RealJID)
	}
	return o.Nick + " joined the room"
}

func (o UserStatusChanged) Describe() string {
	who := o.Nick
	if o.Self {
		who = "You"
	}
	return who + " changed: " + o.Diff.String()
}

func (o TopicChanged) Describe() string {
	if o.Setter == "" {
		return "The subject is: " + o.Subject
	}
	return fmt.Sprintf("%s has set the subject to: %s", o.Setter, o.Subject)
}

func byActor(msg, by string) string {
	if by == "" {
		return msg
	}
	return msg + " by " + by
}

func withReason(msg, reason string) string {
	if reason == "" {
		return msg
	}
	return msg + ". Reason: " + reason
}
