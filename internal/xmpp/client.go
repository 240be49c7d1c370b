package xmpp

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meszmate/parley/internal/logging"
	"github.com/meszmate/parley/internal/xmpp/chat"
	"github.com/meszmate/parley/internal/xmpp/presence"
	"mellium.im/sasl"
	"mellium.im/xmlstream"
	"mellium.im/xmpp"
	"mellium.im/xmpp/jid"
	"mellium.im/xmpp/muc"
	"mellium.im/xmpp/roster"
	"mellium.im/xmpp/stanza"
)

// ErrNotConnected is returned by sends while no session is up
var ErrNotConnected = errors.New("not connected")

const eventBuffer = 256

// Client wraps the Mellium XMPP client. Inbound stanzas are decoded once and
// delivered in order on the Events channel.
type Client struct {
	session   *xmpp.Session
	jid       jid.JID
	password  string
	server    string
	port      int
	connected bool
	mu        sync.RWMutex

	events   chan Event
	rosterID string

	ctx    context.Context
	cancel context.CancelFunc
}

// ClientConfig contains configuration for the XMPP client
type ClientConfig struct {
	JID      string
	Password string
	Server   string
	Port     int
	Resource string
}

// NewClient creates a new XMPP client
func NewClient(cfg ClientConfig) (*Client, error) {
	j, err := jid.Parse(cfg.JID)
	if err != nil {
		return nil, fmt.Errorf("invalid JID: %w", err)
	}

	if cfg.Resource != "" {
		j, err = j.WithResource(cfg.Resource)
		if err != nil {
			return nil, fmt.Errorf("invalid resource: %w", err)
		}
	}

	if cfg.Port == 0 {
		cfg.Port = 5222
	}

	return &Client{
		jid:      j,
		password: cfg.Password,
		server:   cfg.Server,
		port:     cfg.Port,
		events:   make(chan Event, eventBuffer),
	}, nil
}

// Events returns the inbound event stream. It is never closed; a
// DisconnectedEvent marks the end of a session.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Connect establishes a connection to the XMPP server
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	server := c.server
	if server == "" {
		server = c.jid.Domain().String()
	}

	addr := net.JoinHostPort(server, strconv.Itoa(c.port))

	dialer := net.Dialer{Timeout: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial server: %w", err)
	}

	tlsConfig := &tls.Config{
		ServerName: c.jid.Domain().String(),
		MinVersion: tls.VersionTLS12,
	}

	negotiator := xmpp.NewNegotiator(func(_ *xmpp.Session, _ *xmpp.StreamConfig) xmpp.StreamConfig {
		return xmpp.StreamConfig{
			Features: []xmpp.StreamFeature{
				xmpp.StartTLS(tlsConfig),
				xmpp.SASL("", c.password, sasl.ScramSha256Plus, sasl.ScramSha256, sasl.ScramSha1Plus, sasl.ScramSha1, sasl.Plain),
				xmpp.BindResource(),
			},
		}
	})

	sessCtx, cancel := context.WithCancel(context.Background())
	session, err := xmpp.NewSession(
		ctx,
		c.jid.Domain(),
		c.jid,
		conn,
		0,
		negotiator,
	)
	if err != nil {
		cancel()
		conn.Close()
		return fmt.Errorf("failed to negotiate session: %w", err)
	}

	c.session = session
	c.connected = true
	c.ctx = sessCtx
	c.cancel = cancel

	// Update JID with resource from server
	c.jid = session.LocalAddr()

	go c.serve(sessCtx, session)

	c.emit(sessCtx, ConnectedEvent{JID: c.jid})
	return nil
}

// Disconnect closes the XMPP connection
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	if c.session != nil {
		_ = c.session.Send(c.ctx, stanza.Presence{Type: stanza.UnavailablePresence}.Wrap(nil))
		_ = c.session.Close()
	}
	// serve emits the DisconnectedEvent once the stream ends
	c.connected = false
	c.session = nil
	return nil
}

// serve reads stanzas until the stream ends
func (c *Client) serve(ctx context.Context, session *xmpp.Session) {
	err := session.Serve(xmpp.HandlerFunc(func(t xmlstream.TokenReadEncoder, start *xml.StartElement) error {
		c.handleStanza(ctx, session, t, start)
		return nil
	}))

	c.mu.Lock()
	if c.session == session {
		c.connected = false
		c.session = nil
	}
	cancel := c.cancel
	c.mu.Unlock()

	c.emit(context.Background(), DisconnectedEvent{Err: err})
	if cancel != nil {
		cancel()
	}
}

// handleStanza decodes one stanza into an event. Undecodable stanzas are
// logged and dropped.
func (c *Client) handleStanza(ctx context.Context, session *xmpp.Session, t xml.TokenReader, start *xml.StartElement) {
	switch start.Name.Local {
	case "message":
		ev, err := DecodeMessage(t, start)
		if err != nil {
			logging.Warn("xmpp: %v", err)
			return
		}
		c.emit(ctx, ev)
	case "presence":
		ev, err := DecodePresence(t, start)
		if err != nil {
			logging.Warn("xmpp: %v", err)
			return
		}
		c.emit(ctx, ev)
	case "iq":
		c.handleIQ(ctx, session, t, start)
	}
}

// handleIQ handles roster results and pushes, and refuses other requests
func (c *Client) handleIQ(ctx context.Context, session *xmpp.Session, t xml.TokenReader, start *xml.StartElement) {
	iq, err := DecodeRosterQuery(t, start)
	if err != nil {
		logging.Warn("xmpp: %v", err)
		return
	}

	c.mu.RLock()
	own := c.jid.Bare()
	rosterID := c.rosterID
	c.mu.RUnlock()

	switch {
	case iq.Type == stanza.ResultIQ && iq.ID == rosterID && iq.Query != nil:
		iq.Query.Full = true
		c.emit(ctx, *iq.Query)
	case iq.Type == stanza.SetIQ && iq.Query != nil:
		if iq.From.String() != "" && !iq.From.Equal(own) {
			logging.Warn("xmpp: ignoring roster push from %s", iq.From)
			return
		}
		c.emit(ctx, *iq.Query)
		reply := stanza.IQ{ID: iq.ID, Type: stanza.ResultIQ}
		if err := session.Send(ctx, reply.Wrap(nil)); err != nil {
			logging.Warn("xmpp: roster push result: %v", err)
		}
	case iq.Type == stanza.ErrorIQ && iq.Error != nil:
		logging.Warn("xmpp: iq %s failed: %v", iq.ID, iq.Error)
	case iq.Type == stanza.GetIQ || iq.Type == stanza.SetIQ:
		reply := stanza.IQ{ID: iq.ID, To: iq.From, Type: stanza.ErrorIQ}
		payload := stanza.Error{Type: stanza.Cancel, Condition: stanza.ServiceUnavailable}
		if err := session.Send(ctx, reply.Wrap(payload.TokenReader())); err != nil {
			logging.Warn("xmpp: iq error reply: %v", err)
		}
	}
}

func (c *Client) emit(ctx context.Context, ev Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

// current returns the live session or ErrNotConnected
func (c *Client) current() (*xmpp.Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected || c.session == nil {
		return nil, ErrNotConnected
	}
	return c.session, nil
}

func (c *Client) send(ctx context.Context, r xml.TokenReader) error {
	session, err := c.current()
	if err != nil {
		return err
	}
	return session.Send(ctx, r)
}

// text wraps a character data payload in an element
func text(local, value string) xml.TokenReader {
	return xmlstream.Wrap(
		xmlstream.Token(xml.CharData(value)),
		xml.StartElement{Name: xml.Name{Local: local}},
	)
}

func statusPayload(st presence.Status) xml.TokenReader {
	var parts []xml.TokenReader
	if show := st.Show.Wire(); show != "" {
		parts = append(parts, text("show", show))
	}
	if st.Message != "" {
		parts = append(parts, text("status", st.Message))
	}
	if st.Priority != 0 {
		parts = append(parts, text("priority", strconv.Itoa(st.Priority)))
	}
	return xmlstream.MultiReader(parts...)
}

// SendMessage sends a message and returns its id
func (c *Client) SendMessage(ctx context.Context, to jid.JID, typ stanza.MessageType, body string) (string, error) {
	id := uuid.NewString()
	msg := stanza.Message{ID: id, To: to, Type: typ}
	payload := xmlstream.MultiReader(
		text("body", body),
		xmlstream.Wrap(nil, xml.StartElement{Name: xml.Name{Space: chat.NSChatStates, Local: string(chat.StateActive)}}),
	)
	if err := c.send(ctx, msg.Wrap(payload)); err != nil {
		return "", fmt.Errorf("send message to %s: %w", to, err)
	}
	return id, nil
}

// SendChatState sends a standalone chat state notification
func (c *Client) SendChatState(ctx context.Context, to jid.JID, typ stanza.MessageType, state chat.ChatState) error {
	if state == chat.StateNone {
		return nil
	}
	msg := stanza.Message{To: to, Type: typ}
	payload := xmlstream.Wrap(nil, xml.StartElement{Name: xml.Name{Space: chat.NSChatStates, Local: string(state)}})
	return c.send(ctx, msg.Wrap(payload))
}

// SendPresence broadcasts our presence, or sends it to one entity when to
// is not the zero JID
func (c *Client) SendPresence(ctx context.Context, to jid.JID, st presence.Status) error {
	p := stanza.Presence{To: to}
	if st.Show == presence.ShowUnavailable {
		p.Type = stanza.UnavailablePresence
	}
	return c.send(ctx, p.Wrap(statusPayload(st)))
}

// JoinRoom sends the join presence to room/nick. maxStanzas limits the
// history replay; a negative value leaves it to the service.
func (c *Client) JoinRoom(ctx context.Context, room jid.JID, nick, password string, maxStanzas int, st presence.Status) error {
	to, err := room.Bare().WithResource(nick)
	if err != nil {
		return fmt.Errorf("join %s as %q: %w", room, nick, err)
	}

	var inner []xml.TokenReader
	if maxStanzas >= 0 {
		inner = append(inner, xmlstream.Wrap(nil, xml.StartElement{
			Name: xml.Name{Local: "history"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "maxstanzas"}, Value: strconv.Itoa(maxStanzas)}},
		}))
	}
	if password != "" {
		inner = append(inner, text("password", password))
	}
	x := xmlstream.Wrap(xmlstream.MultiReader(inner...), xml.StartElement{Name: xml.Name{Space: muc.NS, Local: "x"}})

	p := stanza.Presence{To: to}
	return c.send(ctx, p.Wrap(xmlstream.MultiReader(x, statusPayload(st))))
}

// LeaveRoom sends an unavailable presence to the room
func (c *Client) LeaveRoom(ctx context.Context, room jid.JID, nick, status string) error {
	to, err := room.Bare().WithResource(nick)
	if err != nil {
		return fmt.Errorf("leave %s: %w", room, err)
	}
	p := stanza.Presence{To: to, Type: stanza.UnavailablePresence}
	var payload xml.TokenReader
	if status != "" {
		payload = text("status", status)
	}
	return c.send(ctx, p.Wrap(payload))
}

// ChangeNick asks the room for a new nick
func (c *Client) ChangeNick(ctx context.Context, room jid.JID, nick string, st presence.Status) error {
	to, err := room.Bare().WithResource(nick)
	if err != nil {
		return fmt.Errorf("nick %q: %w", nick, err)
	}
	return c.send(ctx, stanza.Presence{To: to}.Wrap(statusPayload(st)))
}

// SetSubject changes the room subject
func (c *Client) SetSubject(ctx context.Context, room jid.JID, subject string) error {
	msg := stanza.Message{ID: uuid.NewString(), To: room.Bare(), Type: stanza.GroupChatMessage}
	return c.send(ctx, msg.Wrap(text("subject", subject)))
}

func (c *Client) subscription(ctx context.Context, to jid.JID, typ stanza.PresenceType) error {
	return c.send(ctx, stanza.Presence{To: to.Bare(), Type: typ}.Wrap(nil))
}

// Subscribe sends a subscription request
func (c *Client) Subscribe(ctx context.Context, to jid.JID) error {
	return c.subscription(ctx, to, stanza.SubscribePresence)
}

// Authorize accepts a subscription request
func (c *Client) Authorize(ctx context.Context, to jid.JID) error {
	return c.subscription(ctx, to, stanza.SubscribedPresence)
}

// Deny refuses or revokes a subscription
func (c *Client) Deny(ctx context.Context, to jid.JID) error {
	return c.subscription(ctx, to, stanza.UnsubscribedPresence)
}

// rosterSet wraps an item in a roster set request
func rosterSet(item roster.Item) xml.TokenReader {
	iq := stanza.IQ{ID: uuid.NewString(), Type: stanza.SetIQ}
	return iq.Wrap(xmlstream.Wrap(
		item.TokenReader(),
		xml.StartElement{Name: xml.Name{Space: roster.NS, Local: "query"}},
	))
}

// RequestRoster requests the roster from the server. The result arrives as
// a full RosterPushEvent.
func (c *Client) RequestRoster(ctx context.Context) error {
	id := uuid.NewString()
	c.mu.Lock()
	c.rosterID = id
	c.mu.Unlock()

	return c.send(ctx, roster.IQ{IQ: stanza.IQ{ID: id, Type: stanza.GetIQ}}.TokenReader())
}

// SetRosterItem adds or renames a contact
func (c *Client) SetRosterItem(ctx context.Context, contact jid.JID, name string) error {
	return c.send(ctx, rosterSet(roster.Item{JID: contact.Bare(), Name: name}))
}

// RemoveRosterItem removes a contact from the roster
func (c *Client) RemoveRosterItem(ctx context.Context, contact jid.JID) error {
	return c.send(ctx, rosterSet(roster.Item{JID: contact.Bare(), Subscription: "remove"}))
}

// adminRequest wraps one muc#admin item in a set request to the room
func adminRequest(room jid.JID, attrs []xml.Attr, reason string) (stanza.IQ, xml.TokenReader) {
	var inner xml.TokenReader
	if reason != "" {
		inner = text("reason", reason)
	}
	iq := stanza.IQ{ID: uuid.NewString(), To: room.Bare(), Type: stanza.SetIQ}
	return iq, xmlstream.Wrap(
		xmlstream.Wrap(inner, xml.StartElement{Name: xml.Name{Local: "item"}, Attr: attrs}),
		xml.StartElement{Name: xml.Name{Space: muc.NSAdmin, Local: "query"}},
	)
}

func roleRequest(room jid.JID, nick, role, reason string) (stanza.IQ, xml.TokenReader, error) {
	var r muc.Role
	if err := r.UnmarshalXMLAttr(xml.Attr{Value: role}); err != nil {
		return stanza.IQ{}, nil, fmt.Errorf("role %q: %w", role, err)
	}
	attr, err := r.MarshalXMLAttr(xml.Name{Local: "role"})
	if err != nil {
		return stanza.IQ{}, nil, err
	}
	iq, payload := adminRequest(room, []xml.Attr{{Name: xml.Name{Local: "nick"}, Value: nick}, attr}, reason)
	return iq, payload, nil
}

// affiliationRequest targets the occupant's real address when known and
// falls back to its nick
func affiliationRequest(room, target jid.JID, nick, affiliation, reason string) (stanza.IQ, xml.TokenReader, error) {
	var a muc.Affiliation
	if err := a.UnmarshalXMLAttr(xml.Attr{Value: affiliation}); err != nil {
		return stanza.IQ{}, nil, fmt.Errorf("affiliation %q: %w", affiliation, err)
	}
	attr, err := a.MarshalXMLAttr(xml.Name{Local: "affiliation"})
	if err != nil {
		return stanza.IQ{}, nil, err
	}
	attrs := []xml.Attr{attr}
	switch {
	case target.String() != "":
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "jid"}, Value: target.Bare().String()})
	case nick != "":
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "nick"}, Value: nick})
	default:
		return stanza.IQ{}, nil, errors.New("affiliation: no nick or address")
	}
	iq, payload := adminRequest(room, attrs, reason)
	return iq, payload, nil
}

// admin sends a muc#admin request and waits for the room to answer. An error
// reply is returned as a stanza.Error.
func (c *Client) admin(ctx context.Context, iq stanza.IQ, payload xml.TokenReader) error {
	session, err := c.current()
	if err != nil {
		return err
	}
	return session.UnmarshalIQElement(ctx, payload, iq, nil)
}

// SetRole changes the role of an occupant. Role none kicks them.
func (c *Client) SetRole(ctx context.Context, room jid.JID, nick, role, reason string) error {
	iq, payload, err := roleRequest(room, nick, role, reason)
	if err != nil {
		return err
	}
	if err := c.admin(ctx, iq, payload); err != nil {
		return fmt.Errorf("set role %s for %s: %w", role, nick, err)
	}
	return nil
}

// SetAffiliation changes the affiliation of a user, by bare address or by
// nick. Affiliation outcast bans them.
func (c *Client) SetAffiliation(ctx context.Context, room, target jid.JID, nick, affiliation, reason string) error {
	iq, payload, err := affiliationRequest(room, target, nick, affiliation, reason)
	if err != nil {
		return err
	}
	if err := c.admin(ctx, iq, payload); err != nil {
		return fmt.Errorf("set affiliation %s: %w", affiliation, err)
	}
	return nil
}

// invitation is a mediated invite, relayed by the room to the invitee
func invitation(room, to jid.JID, password, reason string) xml.TokenReader {
	msg := stanza.Message{ID: uuid.NewString(), To: room.Bare(), Type: stanza.NormalMessage}
	return msg.Wrap(muc.Invitation{JID: to, Password: password, Reason: reason}.MarshalMediated())
}

// Invite asks the room to invite to
func (c *Client) Invite(ctx context.Context, room, to jid.JID, password, reason string) error {
	return c.send(ctx, invitation(room, to, password, reason))
}

// JID returns the client's JID
func (c *Client) JID() jid.JID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jid
}
