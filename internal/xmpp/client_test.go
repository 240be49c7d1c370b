package xmpp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mellium.im/xmpp/jid"
)

var testRoom = jid.MustParse("chat@conf.example/alice")

func TestRoleRequest(t *testing.T) {
	iq, payload, err := roleRequest(testRoom, "bob", "none", "flooding")
	require.NoError(t, err)
	out := encode(t, iq.Wrap(payload))

	assert.Contains(t, out, `to="chat@conf.example"`)
	assert.Contains(t, out, `type="set"`)
	assert.Contains(t, out, `<query xmlns="http://jabber.org/protocol/muc#admin">`)
	assert.Contains(t, out, `nick="bob"`)
	assert.Contains(t, out, `role="none"`)
	assert.Contains(t, out, `<reason>flooding</reason>`)

	_, _, err = roleRequest(testRoom, "bob", "king", "")
	assert.Error(t, err)
}

func TestAffiliationRequest(t *testing.T) {
	iq, payload, err := affiliationRequest(testRoom, jid.MustParse("bob@example.org/home"), "bob", "outcast", "")
	require.NoError(t, err)
	out := encode(t, iq.Wrap(payload))

	assert.Contains(t, out, `affiliation="outcast"`)
	assert.Contains(t, out, `jid="bob@example.org"`)
	assert.NotContains(t, out, `nick=`)
	assert.NotContains(t, out, `<reason>`)

	iq, payload, err = affiliationRequest(testRoom, jid.JID{}, "carol", "member", "welcome")
	require.NoError(t, err)
	out = encode(t, iq.Wrap(payload))
	assert.Contains(t, out, `nick="carol"`)
	assert.Contains(t, out, `affiliation="member"`)

	_, _, err = affiliationRequest(testRoom, jid.JID{}, "", "member", "")
	assert.Error(t, err)
	_, _, err = affiliationRequest(testRoom, jid.JID{}, "carol", "friend", "")
	assert.Error(t, err)
}

func TestInvitation(t *testing.T) {
	out := encode(t, invitation(testRoom, jid.MustParse("carol@example.org"), "secret", "come in"))

	assert.Contains(t, out, `to="chat@conf.example"`)
	assert.Contains(t, out, `<x xmlns="http://jabber.org/protocol/muc#user">`)
	assert.Contains(t, out, `<invite to="carol@example.org">`)
	assert.Contains(t, out, `<reason>come in</reason>`)
	assert.Contains(t, out, `<password>secret</password>`)
}
