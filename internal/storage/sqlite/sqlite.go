package sqlite

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/meszmate/parley/internal/logging"
	"github.com/meszmate/parley/internal/xmpp/roster"
	"mellium.im/xmpp/jid"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned when a bookmark does not exist
var ErrNotFound = errors.New("not found")

type DB struct {
	db  *sql.DB
	box *sealer
	now func() time.Time
}

// New opens parley.db in dataDir and brings its schema up to date. The key
// used to seal bookmark passwords lives next to it.
func New(dataDir string) (*DB, error) {
	dbPath := filepath.Join(dataDir, "parley.db")

	box, err := loadSealer(filepath.Join(dataDir, "secret.key"))
	if err != nil {
		return nil, err
	}
	return open("file:"+dbPath+"?_journal_mode=WAL&_foreign_keys=on", box)
}

func open(dsn string, box *sealer) (*DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &DB{db: db, box: box, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate() error {
	if l := logging.Default(); l != nil {
		goose.SetLogger(l)
	} else {
		goose.SetLogger(goose.NopLogger())
	}
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(d.db, "migrations")
}

// Bookmark is a locally stored room
type Bookmark struct {
	JID      jid.JID
	Nick     string
	Autojoin bool
	Password string
}

// GetLocal returns the account's bookmarks in the order they were saved.
// Bookmarks whose password cannot be unsealed are skipped.
func (d *DB) GetLocal(account string) ([]Bookmark, error) {
	rows, err := d.db.Query(`
		SELECT jid, nick, autojoin, password
		FROM bookmarks
		WHERE account = ?
		ORDER BY position, jid
	`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookmarks []Bookmark
	for rows.Next() {
		var (
			raw, sealed string
			b           Bookmark
		)
		if err := rows.Scan(&raw, &b.Nick, &b.Autojoin, &sealed); err != nil {
			return nil, err
		}

		b.JID, err = jid.Parse(raw)
		if err != nil {
			logging.Warn("Skipping bookmark with invalid JID %q: %v", raw, err)
			continue
		}
		if b.Password, err = d.box.open(sealed); err != nil {
			logging.Warn("Skipping bookmark %s: %v", raw, err)
			continue
		}
		bookmarks = append(bookmarks, b)
	}

	return bookmarks, rows.Err()
}

// SaveLocal replaces the account's bookmarks
func (d *DB) SaveLocal(account string, bookmarks []Bookmark) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM bookmarks WHERE account = ?", account); err != nil {
		return err
	}

	for i, b := range bookmarks {
		sealed, err := d.box.seal(b.Password)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT OR REPLACE INTO bookmarks (account, jid, nick, autojoin, password, position)
			VALUES (?, ?, ?, ?, ?, ?)
		`, account, b.JID.Bare().String(), b.Nick, b.Autojoin, sealed, i)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// AddBookmark inserts or updates one bookmark, keeping its position
func (d *DB) AddBookmark(account string, b Bookmark) error {
	sealed, err := d.box.seal(b.Password)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(`
		INSERT INTO bookmarks (account, jid, nick, autojoin, password, position)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM bookmarks WHERE account = ?))
		ON CONFLICT(account, jid) DO UPDATE SET
			nick = excluded.nick,
			autojoin = excluded.autojoin,
			password = excluded.password
	`, account, b.JID.Bare().String(), b.Nick, b.Autojoin, sealed, account)
	return err
}

// RemoveBookmark deletes one bookmark
func (d *DB) RemoveBookmark(account string, room jid.JID) error {
	res, err := d.db.Exec("DELETE FROM bookmarks WHERE account = ? AND jid = ?", account, room.Bare().String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveRoster replaces the cached roster of an account
func (d *DB) SaveRoster(account string, items []roster.Item) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM roster_cache WHERE account = ?", account); err != nil {
		return err
	}

	now := d.now().Unix()
	for _, item := range items {
		groupsJSON := "[]"
		if len(item.Groups) > 0 {
			encoded, err := json.Marshal(item.Groups)
			if err != nil {
				return err
			}
			groupsJSON = string(encoded)
		}

		_, err := tx.Exec(`
			INSERT INTO roster_cache (account, jid, name, groups_json, subscription, ask, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, account, item.JID.Bare().String(), item.Name, groupsJSON, string(item.Subscription), item.Ask, now)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetRoster returns the cached roster of an account
func (d *DB) GetRoster(account string) ([]roster.Item, error) {
	rows, err := d.db.Query(`
		SELECT jid, name, groups_json, subscription, ask
		FROM roster_cache
		WHERE account = ?
		ORDER BY jid
	`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []roster.Item
	for rows.Next() {
		var (
			raw                        string
			name, groupsJSON, sub, ask sql.NullString
		)
		if err := rows.Scan(&raw, &name, &groupsJSON, &sub, &ask); err != nil {
			return nil, err
		}

		addr, err := jid.Parse(raw)
		if err != nil {
			logging.Warn("Skipping cached contact with invalid JID %q: %v", raw, err)
			continue
		}
		item := roster.Item{
			JID:          addr,
			Name:         name.String,
			Subscription: roster.ParseSubscription(sub.String),
			Ask:          ask.String,
		}
		if groupsJSON.Valid && groupsJSON.String != "" {
			_ = json.Unmarshal([]byte(groupsJSON.String), &item.Groups)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (d *DB) SetAppState(key, value string) error {
	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO app_state (key, value)
		VALUES (?, ?)
	`, key, value)
	return err
}

func (d *DB) GetAppState(key string) (string, error) {
	var value string
	err := d.db.QueryRow("SELECT value FROM app_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (d *DB) DeleteAppState(key string) error {
	_, err := d.db.Exec("DELETE FROM app_state WHERE key = ?", key)
	return err
}

func (d *DB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}
