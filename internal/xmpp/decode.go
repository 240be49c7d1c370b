package xmpp

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/meszmate/parley/internal/xmpp/chat"
	"github.com/meszmate/parley/internal/xmpp/presence"
	"mellium.im/xmpp/jid"
	"mellium.im/xmpp/roster"
	"mellium.im/xmpp/stanza"
)

// Namespaces of the payloads decoded here
const (
	NSDelay   = "urn:xmpp:delay"
	NSCorrect = "urn:xmpp:message-correct:0"
)

// resourceparts are limited to 1023 bytes
const maxNickLen = 1023

type wireAny struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
}

// stanzaError converts a decoded <error/> into the event form. A missing
// condition becomes undefined-condition; the text without a language, or
// the English one, is preferred.
func stanzaError(se *stanza.Error) *StanzaError {
	if se == nil {
		return nil
	}
	e := &StanzaError{Type: string(se.Type), Condition: string(se.Condition)}
	if e.Condition == "" {
		e.Condition = string(stanza.UndefinedCondition)
	}
	switch {
	case se.Text[""] != "":
		e.Text = se.Text[""]
	case se.Text["en"] != "":
		e.Text = se.Text["en"]
	default:
		langs := make([]string, 0, len(se.Text))
		for lang := range se.Text {
			langs = append(langs, lang)
		}
		sort.Strings(langs)
		if len(langs) > 0 {
			e.Text = se.Text[langs[0]]
		}
	}
	e.Text = strings.TrimSpace(e.Text)
	return e
}

type wireMUCItem struct {
	Affiliation string `xml:"affiliation,attr"`
	Role        string `xml:"role,attr"`
	JID         string `xml:"jid,attr"`
	Nick        string `xml:"nick,attr"`
	Actor       *struct {
		JID  string `xml:"jid,attr"`
		Nick string `xml:"nick,attr"`
	} `xml:"actor"`
	Reason string `xml:"reason"`
}

type wireMUCUser struct {
	Items  []wireMUCItem `xml:"item"`
	Status []struct {
		Code string `xml:"code,attr"`
	} `xml:"status"`
}

type wirePresence struct {
	From     string       `xml:"from,attr"`
	Type     string       `xml:"type,attr"`
	Show     string       `xml:"show"`
	Status   string       `xml:"status"`
	Priority string       `xml:"priority"`
	MUCUser  *wireMUCUser `xml:"http://jabber.org/protocol/muc#user x"`
	Error    *stanza.Error `xml:"error"`
}

// DecodePresence decodes a presence stanza. r must be positioned right after
// start. Unknown or malformed children degrade to zero values; only an
// unparsable sender is an error.
func DecodePresence(r xml.TokenReader, start *xml.StartElement) (PresenceEvent, error) {
	var w wirePresence
	if err := xml.NewTokenDecoder(r).DecodeElement(&w, start); err != nil {
		return PresenceEvent{}, fmt.Errorf("decode presence: %w", err)
	}
	from, err := jid.Parse(w.From)
	if err != nil {
		return PresenceEvent{}, fmt.Errorf("presence from %q: %w", w.From, err)
	}

	ev := PresenceEvent{
		From:   from,
		Type:   stanza.PresenceType(w.Type),
		Status: strings.TrimSpace(w.Status),
		Error:  stanzaError(w.Error),
	}
	if show, ok := presence.ParseShow(w.Show); ok {
		ev.Show = show
	} else {
		ev.Show = presence.ShowAvailable
	}
	if p, err := strconv.Atoi(strings.TrimSpace(w.Priority)); err == nil {
		ev.Priority = clampPriority(p)
	}

	if w.MUCUser != nil {
		for _, s := range w.MUCUser.Status {
			if code, err := strconv.Atoi(s.Code); err == nil {
				ev.StatusCodes = append(ev.StatusCodes, code)
			}
		}
		ev.MUC = &MUCItem{}
		if len(w.MUCUser.Items) > 0 {
			ev.MUC = decodeMUCItem(w.MUCUser.Items[0])
		}
	}
	return ev, nil
}

func decodeMUCItem(w wireMUCItem) *MUCItem {
	item := &MUCItem{
		Affiliation: w.Affiliation,
		Role:        w.Role,
		Nick:        w.Nick,
		Reason:      strings.TrimSpace(w.Reason),
	}
	if len(item.Nick) > maxNickLen {
		item.Nick = ""
	}
	if w.JID != "" {
		if j, err := jid.Parse(w.JID); err == nil {
			item.JID = j
		}
	}
	if w.Actor != nil {
		item.Actor = w.Actor.Nick
		if item.Actor == "" {
			item.Actor = w.Actor.JID
		}
	}
	return item
}

func clampPriority(p int) int {
	switch {
	case p > 127:
		return 127
	case p < -128:
		return -128
	default:
		return p
	}
}

type wireMessage struct {
	ID      string  `xml:"id,attr"`
	From    string  `xml:"from,attr"`
	Type    string  `xml:"type,attr"`
	Body    string  `xml:"body"`
	Subject *string `xml:"subject"`
	Replace *struct {
		ID string `xml:"id,attr"`
	} `xml:"urn:xmpp:message-correct:0 replace"`
	Delay *struct {
		Stamp string `xml:"stamp,attr"`
	} `xml:"urn:xmpp:delay delay"`
	MUCUser *struct{}     `xml:"http://jabber.org/protocol/muc#user x"`
	Error   *stanza.Error `xml:"error"`
	Other   []wireAny     `xml:",any"`
}

// DecodeMessage decodes a message stanza. r must be positioned right after
// start.
func DecodeMessage(r xml.TokenReader, start *xml.StartElement) (MessageEvent, error) {
	var w wireMessage
	if err := xml.NewTokenDecoder(r).DecodeElement(&w, start); err != nil {
		return MessageEvent{}, fmt.Errorf("decode message: %w", err)
	}
	from, err := jid.Parse(w.From)
	if err != nil {
		return MessageEvent{}, fmt.Errorf("message from %q: %w", w.From, err)
	}

	ev := MessageEvent{
		ID:      w.ID,
		From:    from,
		Type:    stanza.MessageType(w.Type),
		Body:    w.Body,
		Subject: w.Subject,
		MUCUser: w.MUCUser != nil,
		Error:   stanzaError(w.Error),
	}
	if ev.Type == "" {
		ev.Type = stanza.NormalMessage
	}
	if w.Replace != nil {
		ev.ReplaceID = w.Replace.ID
	}
	if w.Delay != nil {
		if t, err := time.Parse(time.RFC3339, w.Delay.Stamp); err == nil {
			ev.Delay = t
		}
	}
	for _, o := range w.Other {
		if o.XMLName.Space != chat.NSChatStates {
			continue
		}
		if s, ok := chat.ParseChatState(o.XMLName.Local); ok {
			ev.ChatState = s
		}
	}
	return ev, nil
}

// rosterItem is a roster.Item with the ask attribute and every group.
// Items whose jid does not parse are marked skip instead of failing the
// whole query.
type rosterItem struct {
	roster.Item
	Ask    string   `xml:"ask,attr"`
	Groups []string `xml:"group"`
	skip   bool
}

func (it *rosterItem) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, a := range start.Attr {
		if a.Name.Local != "jid" {
			continue
		}
		if _, err := jid.Parse(a.Value); err != nil {
			it.skip = true
			return d.Skip()
		}
	}
	var w struct {
		roster.Item
		Ask    string   `xml:"ask,attr"`
		Groups []string `xml:"group"`
	}
	if err := d.DecodeElement(&w, &start); err != nil {
		return err
	}
	it.Item, it.Ask, it.Groups = w.Item, w.Ask, w.Groups
	return nil
}

type wireIQ struct {
	ID    string `xml:"id,attr"`
	From  string `xml:"from,attr"`
	Type  string `xml:"type,attr"`
	Query *struct {
		Ver   string       `xml:"ver,attr"`
		Items []rosterItem `xml:"item"`
	} `xml:"jabber:iq:roster query"`
	Error *stanza.Error `xml:"error"`
}

// RosterIQ is an iq stanza that may carry a roster query
type RosterIQ struct {
	ID    string
	From  jid.JID
	Type  stanza.IQType
	Query *RosterPushEvent
	Error *StanzaError
}

// DecodeRosterQuery decodes an iq stanza, extracting a roster query when
// present. Items with an invalid JID are skipped.
func DecodeRosterQuery(r xml.TokenReader, start *xml.StartElement) (RosterIQ, error) {
	var w wireIQ
	if err := xml.NewTokenDecoder(r).DecodeElement(&w, start); err != nil {
		return RosterIQ{}, fmt.Errorf("decode iq: %w", err)
	}

	iq := RosterIQ{
		ID:    w.ID,
		Type:  stanza.IQType(w.Type),
		Error: stanzaError(w.Error),
	}
	if w.From != "" {
		from, err := jid.Parse(w.From)
		if err != nil {
			return RosterIQ{}, fmt.Errorf("iq from %q: %w", w.From, err)
		}
		iq.From = from
	}
	if w.Query == nil {
		return iq, nil
	}

	push := &RosterPushEvent{}
	for _, it := range w.Query.Items {
		if it.skip || it.JID.String() == "" {
			continue
		}
		groups := make([]string, 0, len(it.Groups))
		for _, g := range it.Groups {
			if g = strings.TrimSpace(g); g != "" {
				groups = append(groups, g)
			}
		}
		push.Items = append(push.Items, RosterItem{
			JID:          it.JID.Bare(),
			Name:         it.Name,
			Subscription: it.Subscription,
			Ask:          it.Ask,
			Groups:       groups,
		})
	}
	iq.Query = push
	return iq, nil
}
