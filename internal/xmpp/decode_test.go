package xmpp

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mellium.im/xmlstream"
	"mellium.im/xmpp/jid"
	"mellium.im/xmpp/roster"
	"mellium.im/xmpp/stanza"

	"github.com/meszmate/parley/internal/xmpp/chat"
	"github.com/meszmate/parley/internal/xmpp/presence"
)

// open returns a decoder positioned after the root start element of s
func open(t *testing.T, s string) (*xml.Decoder, *xml.StartElement) {
	t.Helper()
	d := xml.NewDecoder(strings.NewReader(s))
	for {
		tok, err := d.Token()
		require.NoError(t, err)
		if start, ok := tok.(xml.StartElement); ok {
			return d, &start
		}
	}
}

func TestDecodeMUCPresence(t *testing.T) {
	d, start := open(t, `<presence from="chat@conf.example/bob" type="unavailable">
  <status>gone fishing</status>
  <x xmlns="http://jabber.org/protocol/muc#user">
    <item affiliation="member" role="none" jid="bob@example.org/home">
      <actor nick="alice"/>
      <reason>flooding</reason>
    </item>
    <status code="307"/>
    <status code="bogus"/>
    <status code="110"/>
  </x>
</presence>`)

	ev, err := DecodePresence(d, start)
	require.NoError(t, err)

	assert.Equal(t, "bob", ev.From.Resourcepart())
	assert.Equal(t, stanza.UnavailablePresence, ev.Type)
	assert.Equal(t, "gone fishing", ev.Status)
	assert.Equal(t, StatusCodes{307, 110}, ev.StatusCodes)
	require.True(t, ev.IsMUC())
	assert.Equal(t, "member", ev.MUC.Affiliation)
	assert.Equal(t, "none", ev.MUC.Role)
	assert.Equal(t, "bob@example.org/home", ev.MUC.JID.String())
	assert.Equal(t, "alice", ev.MUC.Actor)
	assert.Equal(t, "flooding", ev.MUC.Reason)
}

func TestDecodeNickChange(t *testing.T) {
	d, start := open(t, `<presence from="chat@conf.example/bob" type="unavailable">
  <x xmlns="http://jabber.org/protocol/muc#user">
    <item affiliation="none" role="participant" nick="bobby"/>
    <status code="303"/>
  </x>
</presence>`)

	ev, err := DecodePresence(d, start)
	require.NoError(t, err)
	assert.True(t, ev.StatusCodes.Has(303))
	assert.Equal(t, "bobby", ev.MUC.Nick)
}

func TestDecodePlainPresence(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		show     presence.Show
		priority int
	}{
		{"bare", `<presence from="u@d/r"/>`, presence.ShowAvailable, 0},
		{"away", `<presence from="u@d/r"><show>away</show><priority>5</priority></presence>`, presence.ShowAway, 5},
		{"bad show", `<presence from="u@d/r"><show>sleepy</show></presence>`, presence.ShowAvailable, 0},
		{"bad priority", `<presence from="u@d/r"><priority>high</priority></presence>`, presence.ShowAvailable, 0},
		{"clamped", `<presence from="u@d/r"><priority>500</priority></presence>`, presence.ShowAvailable, 127},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, start := open(t, tc.in)
			ev, err := DecodePresence(d, start)
			require.NoError(t, err)
			assert.Equal(t, tc.show, ev.Show)
			assert.Equal(t, tc.priority, ev.Priority)
			assert.False(t, ev.IsMUC())
		})
	}
}

func TestDecodePresenceError(t *testing.T) {
	d, start := open(t, `<presence from="chat@conf.example/alice" type="error">
  <error type="cancel">
    <conflict xmlns="urn:ietf:params:xml:ns:xmpp-stanzas"/>
    <text xmlns="urn:ietf:params:xml:ns:xmpp-stanzas">Nickname in use</text>
  </error>
</presence>`)

	ev, err := DecodePresence(d, start)
	require.NoError(t, err)
	require.NotNil(t, ev.Error)
	assert.Equal(t, "cancel", ev.Error.Type)
	assert.Equal(t, "conflict", ev.Error.Condition)
	assert.Equal(t, "Nickname in use", ev.Error.Text)
	assert.Equal(t, "conflict: Nickname in use", ev.Error.Error())
}

func TestDecodePresenceBadSender(t *testing.T) {
	d, start := open(t, `<presence from="@@@"/>`)
	_, err := DecodePresence(d, start)
	assert.Error(t, err)
}

func TestDecodeGroupchatMessage(t *testing.T) {
	d, start := open(t, `<message from="chat@conf.example/bob" type="groupchat" id="m1">
  <body>hello</body>
  <replace xmlns="urn:xmpp:message-correct:0" id="m0"/>
  <composing xmlns="http://jabber.org/protocol/chatstates"/>
  <delay xmlns="urn:xmpp:delay" stamp="2024-03-01T10:00:00Z"/>
</message>`)

	ev, err := DecodeMessage(d, start)
	require.NoError(t, err)
	assert.Equal(t, "m1", ev.ID)
	assert.Equal(t, stanza.GroupChatMessage, ev.Type)
	assert.Equal(t, "hello", ev.Body)
	assert.Nil(t, ev.Subject)
	assert.Equal(t, "m0", ev.ReplaceID)
	assert.Equal(t, chat.StateComposing, ev.ChatState)
	assert.True(t, ev.Delay.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestDecodeSubject(t *testing.T) {
	d, start := open(t, `<message from="chat@conf.example/alice" type="groupchat"><subject/></message>`)

	ev, err := DecodeMessage(d, start)
	require.NoError(t, err)
	require.NotNil(t, ev.Subject, "an empty subject clears the topic")
	assert.Equal(t, "", *ev.Subject)
}

func TestDecodePrivateMessage(t *testing.T) {
	d, start := open(t, `<message from="chat@conf.example/bob" type="chat">
  <body>psst</body>
  <x xmlns="http://jabber.org/protocol/muc#user"/>
</message>`)

	ev, err := DecodeMessage(d, start)
	require.NoError(t, err)
	assert.True(t, ev.MUCUser)
	assert.Equal(t, stanza.ChatMessage, ev.Type)
}

func TestDecodeRosterPush(t *testing.T) {
	d, start := open(t, `<iq type="set" id="push1">
  <query xmlns="jabber:iq:roster" ver="v2">
    <item jid="u@d/ignored" name="Ursula" subscription="both">
      <group>Friends</group>
      <group> </group>
    </item>
    <item jid="v@d" subscription="remove"/>
    <item jid="@@@"/>
  </query>
</iq>`)

	iq, err := DecodeRosterQuery(d, start)
	require.NoError(t, err)
	assert.Equal(t, "push1", iq.ID)
	assert.Equal(t, stanza.SetIQ, iq.Type)
	require.NotNil(t, iq.Query)
	require.Len(t, iq.Query.Items, 2)
	assert.Equal(t, "u@d", iq.Query.Items[0].JID.String())
	assert.Equal(t, []string{"Friends"}, iq.Query.Items[0].Groups)
	assert.Equal(t, "remove", iq.Query.Items[1].Subscription)
}

func TestDecodeIQWithoutRoster(t *testing.T) {
	d, start := open(t, `<iq type="get" id="p1" from="d"><ping xmlns="urn:xmpp:ping"/></iq>`)

	iq, err := DecodeRosterQuery(d, start)
	require.NoError(t, err)
	assert.Nil(t, iq.Query)
	assert.Equal(t, "d", iq.From.String())
}

func TestDecodeErrorText(t *testing.T) {
	d, start := open(t, `<message from="chat@conf.example" type="error">
  <error type="modify">
    <text xmlns="urn:ietf:params:xml:ns:xmpp-stanzas" xml:lang="de">Zu lang</text>
    <text xmlns="urn:ietf:params:xml:ns:xmpp-stanzas" xml:lang="en">Too long</text>
  </error>
</message>`)

	ev, err := DecodeMessage(d, start)
	require.NoError(t, err)
	require.NotNil(t, ev.Error)
	assert.Equal(t, "modify", ev.Error.Type)
	assert.Equal(t, string(stanza.UndefinedCondition), ev.Error.Condition)
	assert.Equal(t, "Too long", ev.Error.Text)
}

func TestDecodeRosterResult(t *testing.T) {
	d, start := open(t, `<iq type="result" id="r1">
  <query xmlns="jabber:iq:roster">
    <item jid="a@d" subscription="none" ask="subscribe"/>
    <item jid="b@d" name="Bea" subscription="to"><group>Work</group><group>Friends</group></item>
  </query>
</iq>`)

	iq, err := DecodeRosterQuery(d, start)
	require.NoError(t, err)
	require.NotNil(t, iq.Query)
	require.Len(t, iq.Query.Items, 2)
	assert.Equal(t, "subscribe", iq.Query.Items[0].Ask)
	assert.Equal(t, "Bea", iq.Query.Items[1].Name)
	assert.Equal(t, []string{"Work", "Friends"}, iq.Query.Items[1].Groups)
}

func encode(t *testing.T, r xml.TokenReader) string {
	t.Helper()
	var buf bytes.Buffer
	e := xml.NewEncoder(&buf)
	_, err := xmlstream.Copy(e, r)
	require.NoError(t, err)
	require.NoError(t, e.Flush())
	return buf.String()
}

func TestRosterSetPayload(t *testing.T) {
	out := encode(t, rosterSet(roster.Item{JID: jid.MustParse("u@d"), Subscription: "remove"}))

	assert.Contains(t, out, `type="set"`)
	assert.Contains(t, out, `<query xmlns="jabber:iq:roster">`)
	assert.Contains(t, out, `jid="u@d"`)
	assert.Contains(t, out, `subscription="remove"`)

	out = encode(t, rosterSet(roster.Item{JID: jid.MustParse("v@d"), Name: "Vic"}))
	assert.Contains(t, out, `name="Vic"`)
	assert.NotContains(t, out, "subscription=")
}
