package sqlite

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meszmate/parley/internal/xmpp/roster"
	"mellium.im/xmpp/jid"
)

const account = "alice@example.org"

func newTestDB(t *testing.T) (*DB, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := New(dir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, dir
}

func TestBookmarksRoundTrip(t *testing.T) {
	db, _ := newTestDB(t)

	in := []Bookmark{
		{JID: jid.MustParse("chat@conf.example/ignored"), Nick: "alice", Autojoin: true, Password: "hunter2"},
		{JID: jid.MustParse("aardvark@conf.example"), Nick: "ali"},
	}
	require.NoError(t, db.SaveLocal(account, in))

	out, err := db.GetLocal(account)
	require.NoError(t, err)
	require.Len(t, out, 2)

	// saved order wins over alphabetical
	assert.Equal(t, "chat@conf.example", out[0].JID.String())
	assert.Equal(t, "alice", out[0].Nick)
	assert.True(t, out[0].Autojoin)
	assert.Equal(t, "hunter2", out[0].Password)
	assert.Equal(t, "aardvark@conf.example", out[1].JID.String())
	assert.Empty(t, out[1].Password)

	other, err := db.GetLocal("bob@example.org")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSaveLocalReplaces(t *testing.T) {
	db, _ := newTestDB(t)

	require.NoError(t, db.SaveLocal(account, []Bookmark{{JID: jid.MustParse("a@conf.example")}}))
	require.NoError(t, db.SaveLocal(account, []Bookmark{{JID: jid.MustParse("b@conf.example")}}))

	out, err := db.GetLocal(account)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b@conf.example", out[0].JID.String())
}

func TestPasswordsAreSealedAtRest(t *testing.T) {
	db, dir := newTestDB(t)

	require.NoError(t, db.SaveLocal(account, []Bookmark{
		{JID: jid.MustParse("chat@conf.example"), Password: "hunter2"},
	}))

	raw, err := sql.Open("sqlite3", "file:"+filepath.Join(dir, "parley.db"))
	require.NoError(t, err)
	defer raw.Close()

	var stored string
	require.NoError(t, raw.QueryRow("SELECT password FROM bookmarks").Scan(&stored))
	assert.NotEmpty(t, stored)
	assert.NotContains(t, stored, "hunter2")

	key, err := os.Stat(filepath.Join(dir, "secret.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), key.Mode().Perm())
}

func TestUnreadablePasswordSkipsBookmark(t *testing.T) {
	db, dir := newTestDB(t)

	require.NoError(t, db.SaveLocal(account, []Bookmark{
		{JID: jid.MustParse("locked@conf.example"), Password: "hunter2"},
		{JID: jid.MustParse("open@conf.example"), Nick: "ali"},
	}))

	raw, err := sql.Open("sqlite3", "file:"+filepath.Join(dir, "parley.db"))
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.Exec("UPDATE bookmarks SET password = ? WHERE jid = ?", "bm90IHNlYWxlZA==", "locked@conf.example")
	require.NoError(t, err)

	out, err := db.GetLocal(account)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "open@conf.example", out[0].JID.String())
	assert.Equal(t, "ali", out[0].Nick)
}

func TestKeyIsReusedAcrossOpens(t *testing.T) {
	dir := t.TempDir()

	db, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, db.SaveLocal(account, []Bookmark{
		{JID: jid.MustParse("chat@conf.example"), Password: "hunter2"},
	}))
	require.NoError(t, db.Close())

	db, err = New(dir)
	require.NoError(t, err)
	defer db.Close()

	out, err := db.GetLocal(account)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "hunter2", out[0].Password)
}

func TestBadKeyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secret.key"), []byte("short"), 0600))

	_, err := New(dir)
	assert.Error(t, err)
}

func TestSealerRejectsTampering(t *testing.T) {
	s, err := loadSealer(filepath.Join(t.TempDir(), "k"))
	require.NoError(t, err)

	sealed, err := s.seal("secret")
	require.NoError(t, err)
	plain, err := s.open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "secret", plain)

	_, err = s.open("bm90IHNlYWxlZA==")
	assert.ErrorIs(t, err, errSealed)

	empty, err := s.seal("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAddAndRemoveBookmark(t *testing.T) {
	db, _ := newTestDB(t)

	room := jid.MustParse("chat@conf.example")
	require.NoError(t, db.AddBookmark(account, Bookmark{JID: jid.MustParse("first@conf.example")}))
	require.NoError(t, db.AddBookmark(account, Bookmark{JID: room, Nick: "alice"}))
	require.NoError(t, db.AddBookmark(account, Bookmark{JID: room, Nick: "ali", Autojoin: true}))

	out, err := db.GetLocal(account)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "first@conf.example", out[0].JID.String())
	assert.Equal(t, "ali", out[1].Nick)
	assert.True(t, out[1].Autojoin)

	require.NoError(t, db.RemoveBookmark(account, room))
	assert.ErrorIs(t, db.RemoveBookmark(account, room), ErrNotFound)
}

func TestRosterCache(t *testing.T) {
	db, _ := newTestDB(t)

	items := []roster.Item{
		{JID: jid.MustParse("bob@example.org"), Name: "Bob", Subscription: roster.SubscriptionBoth, Groups: []string{"Friends", "Work"}},
		{JID: jid.MustParse("carol@example.org"), Subscription: roster.SubscriptionNone, Ask: "subscribe"},
	}
	require.NoError(t, db.SaveRoster(account, items))

	out, err := db.GetRoster(account)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "bob@example.org", out[0].JID.String())
	assert.Equal(t, "Bob", out[0].Name)
	assert.Equal(t, roster.SubscriptionBoth, out[0].Subscription)
	assert.Equal(t, []string{"Friends", "Work"}, out[0].Groups)

	assert.Equal(t, "carol@example.org", out[1].JID.String())
	assert.Equal(t, "subscribe", out[1].Ask)
	assert.Empty(t, out[1].Groups)

	require.NoError(t, db.SaveRoster(account, items[:1]))
	out, err = db.GetRoster(account)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestAppState(t *testing.T) {
	db, _ := newTestDB(t)

	v, err := db.GetAppState("status")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, db.SetAppState("status", "away"))
	v, err = db.GetAppState("status")
	require.NoError(t, err)
	assert.Equal(t, "away", v)

	require.NoError(t, db.DeleteAppState("status"))
	v, err = db.GetAppState("status")
	require.NoError(t, err)
	assert.Empty(t, v)
}
