package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/meszmate/parley/internal/config"
	"github.com/meszmate/parley/internal/logging"
	"github.com/meszmate/parley/internal/storage/sqlite"
	"github.com/meszmate/parley/internal/xmpp"
	"github.com/meszmate/parley/internal/xmpp/chat"
	"github.com/meszmate/parley/internal/xmpp/muc"
	"github.com/meszmate/parley/internal/xmpp/presence"
	"github.com/meszmate/parley/internal/xmpp/roster"
	"mellium.im/xmpp/jid"
	"mellium.im/xmpp/stanza"
)

var (
	// ErrNotConnected is returned by commands that need a session
	ErrNotConnected = errors.New("not connected")
	// ErrUnknownCommand is returned for commands nobody handles
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNoStorage is returned by commands that need the local store
	ErrNoStorage = errors.New("local storage is not available")
	// ErrClosed is returned once the event loop has stopped
	ErrClosed = errors.New("app is closed")
)

// ConsoleKey is the log that receives lines not bound to a room or contact
const ConsoleKey = "*console*"

const (
	stateStatus        = "status.show"
	stateStatusMessage = "status.message"
)

// Transport is the XMPP session driven by the app. *xmpp.Client implements
// it.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Events() <-chan xmpp.Event
	JID() jid.JID

	SendMessage(ctx context.Context, to jid.JID, typ stanza.MessageType, body string) (string, error)
	SendChatState(ctx context.Context, to jid.JID, typ stanza.MessageType, state chat.ChatState) error
	SendPresence(ctx context.Context, to jid.JID, st presence.Status) error

	JoinRoom(ctx context.Context, room jid.JID, nick, password string, maxStanzas int, st presence.Status) error
	LeaveRoom(ctx context.Context, room jid.JID, nick, status string) error
	ChangeNick(ctx context.Context, room jid.JID, nick string, st presence.Status) error
	SetSubject(ctx context.Context, room jid.JID, subject string) error
	SetRole(ctx context.Context, room jid.JID, nick, role, reason string) error
	SetAffiliation(ctx context.Context, room, target jid.JID, nick, affiliation, reason string) error
	Invite(ctx context.Context, room, to jid.JID, password, reason string) error

	Subscribe(ctx context.Context, to jid.JID) error
	Authorize(ctx context.Context, to jid.JID) error
	Deny(ctx context.Context, to jid.JID) error
	RequestRoster(ctx context.Context) error
	SetRosterItem(ctx context.Context, contact jid.JID, name string) error
	RemoveRosterItem(ctx context.Context, contact jid.JID) error
}

// Store is the local persistence used by the app. *sqlite.DB implements it.
type Store interface {
	GetLocal(account string) ([]sqlite.Bookmark, error)
	AddBookmark(account string, b sqlite.Bookmark) error
	RemoveBookmark(account string, room jid.JID) error
	SaveRoster(account string, items []roster.Item) error
	GetRoster(account string) ([]roster.Item, error)
	SetAppState(key, value string) error
	GetAppState(key string) (string, error)
}

// Options configures an App
type Options struct {
	Config    *config.Config
	Account   config.Account
	Transport Transport
	// Store may be nil; bookmarks and the roster cache are then disabled
	Store Store
	Bus   *EventBus
	Clock func() time.Time
	// AfterFunc schedules delayed work such as auto-rejoin
	AfterFunc func(time.Duration, func())
}

// App owns the room, roster and conversation state. Rooms and the roster are
// only mutated on the goroutine running Run; other goroutines post work to it
// and read state through the accessors.
type App struct {
	cfg     *config.Config
	account config.Account
	tr      Transport
	store   Store
	bus     *EventBus
	now     func() time.Time
	after   func(time.Duration, func())

	rooms    *muc.Manager
	roster   *roster.Manager
	chats    *chat.Manager
	privates *chat.Linker

	inbox chan func(context.Context)
	done  chan struct{}

	mu        sync.RWMutex
	connected bool
	status    presence.Status
}

// New creates a new App instance
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Transport == nil {
		return nil, errors.New("app: no transport")
	}
	if opts.Bus == nil {
		opts.Bus = NewEventBus()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}

	cfg := opts.Config
	privates := chat.NewLinker(cfg.UI.HistoryLines)

	a := &App{
		cfg:      cfg,
		account:  opts.Account,
		tr:       opts.Transport,
		store:    opts.Store,
		bus:      opts.Bus,
		now:      opts.Clock,
		after:    opts.AfterFunc,
		roster:   roster.NewManager(),
		chats:    chat.NewManager(cfg.UI.HistoryLines),
		privates: privates,
		inbox:    make(chan func(context.Context), 64),
		done:     make(chan struct{}),
		status:   presence.DefaultStatus(opts.Account.Priority),
	}
	a.rooms = muc.NewManager(muc.ManagerConfig{
		Policy:        policy(cfg.MUC),
		Palette:       palette(cfg.MUC.NickColors),
		OwnColor:      ownColor(cfg.MUC.OwnNickColor),
		Deterministic: cfg.MUC.DeterministicNickColors,
		Linker:        privates,
		Clock:         opts.Clock,
	})

	a.restore()
	return a, nil
}

func policy(c config.MUCConfig) muc.Policy {
	return muc.Policy{
		HideExitJoin:     c.HideExitJoin,
		HideStatusChange: c.HideStatusChange,
		AutoRejoin:       c.AutoRejoin,
		AutoRejoinDelay:  c.AutoRejoinDelay.Duration,
	}
}

func palette(colors []string) []muc.Color {
	if len(colors) == 0 {
		return muc.DefaultPalette
	}
	out := make([]muc.Color, len(colors))
	for i, c := range colors {
		out[i] = muc.Color(c)
	}
	return out
}

func ownColor(c string) muc.Color {
	if c == "" {
		return muc.DefaultOwnColor
	}
	return muc.Color(c)
}

// restore loads the cached roster and the last status from the store
func (a *App) restore() {
	if a.store == nil {
		return
	}

	if a.cfg.Storage.CacheRoster {
		items, err := a.store.GetRoster(a.account.JID)
		if err != nil {
			logging.Warn("Failed to load cached roster: %v", err)
		} else {
			a.roster.Load(items)
		}
	}

	show, err := a.store.GetAppState(stateStatus)
	if err != nil || show == "" {
		return
	}
	if s, ok := presence.ParseShow(show); ok && s.Online() {
		a.status.Show = s
	}
	if msg, err := a.store.GetAppState(stateStatusMessage); err == nil {
		a.status.Message = msg
	}
}

// Bus returns the notice bus
func (a *App) Bus() *EventBus {
	return a.bus
}

// Config returns the configuration
func (a *App) Config() *config.Config {
	return a.cfg
}

// Account returns the account in use
func (a *App) Account() config.Account {
	return a.account
}

// Connected returns whether we're connected
func (a *App) Connected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.connected
}

// Status returns our current presence
func (a *App) Status() presence.Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// Rooms returns snapshots of all rooms
func (a *App) Rooms() []muc.Snapshot {
	return a.rooms.Rooms()
}

// Room returns a snapshot of one room
func (a *App) Room(addr string) (muc.Snapshot, bool) {
	j, err := jid.Parse(addr)
	if err != nil {
		return muc.Snapshot{}, false
	}
	return a.rooms.Snapshot(j)
}

// Contacts returns the roster
func (a *App) Contacts() []roster.Contact {
	return a.roster.All()
}

// Groups returns the roster groups
func (a *App) Groups() []string {
	return a.roster.Groups()
}

// Privates returns the private conversations
func (a *App) Privates() []chat.Conversation {
	return a.privates.All()
}

// Private returns one private conversation
func (a *App) Private(id string) (chat.Conversation, bool) {
	return a.privates.ByID(id)
}

// History returns the last lines of a log. Private conversations are looked
// up by id, everything else by key.
func (a *App) History(t Target, limit int) []chat.Line {
	if t.Kind == TargetPrivate {
		return a.privates.History(t.Key, limit)
	}
	return a.chats.History(t.key(), limit)
}

// ChatState returns the last chat state sent by a contact
func (a *App) ChatState(t Target) chat.ChatState {
	if t.Kind != TargetContact {
		return chat.StateNone
	}
	return a.chats.ChatState(t.Key)
}

// MarkRead resets the unread counter of a log
func (a *App) MarkRead(t Target) {
	a.chats.MarkRead(t.key())
}

// Unread returns the unread counter of a log
func (a *App) Unread(t Target) int {
	return a.chats.Unread(t.key())
}

// Run consumes transport events and posted work until ctx is done. It is
// the only goroutine that mutates state.
func (a *App) Run(ctx context.Context) error {
	defer close(a.done)

	events := a.tr.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			a.handleEvent(ctx, ev)
		case fn := <-a.inbox:
			fn(ctx)
		}
	}
}

// post queues work for the event loop without waiting
func (a *App) post(fn func(context.Context)) {
	select {
	case a.inbox <- fn:
	case <-a.done:
	}
}

// call runs fn on the event loop and waits for its result
func (a *App) call(ctx context.Context, fn func(context.Context) error) error {
	result := make(chan error, 1)
	select {
	case a.inbox <- func(loopCtx context.Context) { result <- fn(loopCtx) }:
	case <-a.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-result:
		return err
	case <-a.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect starts the session. ConnectedEvent arrives through the loop.
func (a *App) Connect(ctx context.Context) error {
	a.console(chat.LineInfo, fmt.Sprintf("Connecting as %s...", a.account.JID))
	if err := a.tr.Connect(ctx); err != nil {
		a.console(chat.LineError, fmt.Sprintf("Connection failed: %v", err))
		return err
	}
	return nil
}

// Close disconnects the session
func (a *App) Close() error {
	return a.tr.Disconnect()
}

// console appends a line to the console log
func (a *App) console(kind chat.LineKind, body string) {
	a.appendLine(ConsoleKey, chat.Line{Time: a.now(), Body: body, Kind: kind})
}

func (a *App) appendLine(key string, line chat.Line) {
	a.chats.Append(key, line)
	a.bus.Publish(Notice{Type: NoticeChat, Key: key, Line: line})
}

func (a *App) appendPrivate(id string, line chat.Line) {
	if err := a.privates.Append(id, line); err != nil {
		logging.Warn("Private line for %s dropped: %v", id, err)
		return
	}
	a.bus.Publish(Notice{Type: NoticePrivate, Key: id, Line: line})
}

func (a *App) handleEvent(ctx context.Context, ev xmpp.Event) {
	switch ev := ev.(type) {
	case xmpp.ConnectedEvent:
		a.onConnected(ctx, ev)
	case xmpp.DisconnectedEvent:
		a.onDisconnected(ev)
	case xmpp.PresenceEvent:
		a.onPresence(ctx, ev)
	case xmpp.MessageEvent:
		a.onMessage(ev)
	case xmpp.RosterPushEvent:
		a.onRoster(ev)
	default:
		logging.Debug("Unhandled event %T", ev)
	}
}

func (a *App) onConnected(ctx context.Context, ev xmpp.ConnectedEvent) {
	a.mu.Lock()
	a.connected = true
	st := a.status
	a.mu.Unlock()

	logging.Info("Connected as %s", ev.JID)
	a.console(chat.LineInfo, fmt.Sprintf("Connected as %s", ev.JID))

	if err := a.tr.SendPresence(ctx, jid.JID{}, st); err != nil {
		logging.Warn("Initial presence failed: %v", err)
	}
	if err := a.tr.RequestRoster(ctx); err != nil {
		logging.Warn("Roster request failed: %v", err)
	}

	for _, rj := range a.rooms.Reconnect() {
		a.sendJoin(ctx, rj.Room, rj.Nick, rj.Password)
	}
	a.autojoin(ctx)

	a.bus.Publish(Notice{Type: NoticeConnection})
}

// autojoin joins bookmarked rooms that are not already known
func (a *App) autojoin(ctx context.Context) {
	if a.store == nil {
		return
	}
	bookmarks, err := a.store.GetLocal(a.account.JID)
	if err != nil {
		logging.Warn("Failed to load bookmarks: %v", err)
		return
	}
	for _, b := range bookmarks {
		if !b.Autojoin || a.rooms.IsRoom(b.JID) {
			continue
		}
		nick := b.Nick
		if nick == "" {
			nick = a.defaultNick()
		}
		if err := a.rooms.Join(b.JID, nick, b.Password); err != nil {
			logging.Warn("Autojoin %s: %v", b.JID, err)
			continue
		}
		a.sendJoin(ctx, b.JID, nick, b.Password)
	}
}

func (a *App) onDisconnected(ev xmpp.DisconnectedEvent) {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()

	reason := "Disconnected"
	if ev.Err != nil {
		reason = fmt.Sprintf("Disconnected: %v", ev.Err)
		logging.Warn("Session ended: %v", ev.Err)
	}

	for _, room := range a.rooms.Disconnect(reason) {
		a.appendLine(room, chat.Line{Time: a.now(), Body: reason, Kind: chat.LineWarning})
	}

	// contacts stay listed but lose their resources
	items := a.roster.Items()
	a.roster.Clear()
	a.roster.Load(items)

	a.console(chat.LineWarning, reason)
	a.bus.Publish(Notice{Type: NoticeRoster})
	a.bus.Publish(Notice{Type: NoticeConnection})
}

func (a *App) onPresence(ctx context.Context, ev xmpp.PresenceEvent) {
	if a.rooms.IsRoom(ev.From) {
		if rev, ok := a.rooms.ApplyPresence(ev); ok {
			a.onRoomEvent(rev)
		}
		return
	}

	u := a.roster.ApplyPresence(ev)
	if u.Kind == roster.UpdateNone {
		return
	}
	if u.Reply == roster.ReplyAuthorize {
		if err := a.tr.Authorize(ctx, u.JID); err != nil {
			logging.Warn("Automatic authorization of %s failed: %v", u.JID, err)
		}
	}
	if text := u.Describe(); text != "" {
		a.console(chat.LineInfo, text)
	}
	a.bus.Publish(Notice{Type: NoticeRoster, Key: u.JID.Bare().String()})
}

// onRoomEvent prints visible outcomes and schedules auto-rejoin
func (a *App) onRoomEvent(ev muc.Event) {
	o := ev.Outcome
	logging.Debug("muc: %s %s", ev.Room, o.Kind())

	if o.Visible() {
		kind := chat.LineInfo
		switch o.Kind() {
		case muc.KindRoomError, muc.KindSelfKicked, muc.KindSelfBanned:
			kind = chat.LineError
		case muc.KindSelfLeft:
			kind = chat.LineWarning
		}
		a.appendLine(ev.Room, chat.Line{Time: a.now(), Body: o.Describe(), Kind: kind})
	}

	if kicked, ok := o.(muc.SelfKicked); ok && kicked.AutoRejoin {
		room := ev.Room
		a.after(kicked.Delay, func() {
			a.post(func(ctx context.Context) { a.rejoin(ctx, room) })
		})
	}

	a.bus.Publish(Notice{Type: NoticeRoom, Key: ev.Room, Outcome: o})
}

// rejoin joins a room again with its last nick
func (a *App) rejoin(ctx context.Context, room string) {
	addr, err := jid.Parse(room)
	if err != nil {
		return
	}
	if !a.Connected() {
		logging.Info("Not rejoining %s: not connected", room)
		return
	}
	rj, err := a.rooms.Rejoin(addr)
	if err != nil {
		logging.Warn("Rejoin %s: %v", room, err)
		return
	}
	if err := a.rooms.Join(rj.Room, rj.Nick, rj.Password); err != nil {
		logging.Warn("Rejoin %s: %v", room, err)
		return
	}
	a.sendJoin(ctx, rj.Room, rj.Nick, rj.Password)
}

func (a *App) sendJoin(ctx context.Context, room jid.JID, nick, password string) {
	if err := a.tr.JoinRoom(ctx, room, nick, password, a.cfg.MUC.HistoryMaxStanzas, a.Status()); err != nil {
		logging.Warn("Join %s failed: %v", room, err)
		a.appendLine(room.Bare().String(), chat.Line{Time: a.now(), Body: fmt.Sprintf("Join failed: %v", err), Kind: chat.LineError})
	}
}

func (a *App) onMessage(ev xmpp.MessageEvent) {
	from := ev.From
	bare := from.Bare().String()
	isRoom := a.rooms.IsRoom(from)

	if ev.Error != nil {
		key := bare
		if !isRoom {
			key = a.contactKey(from)
		}
		a.appendLine(key, chat.Line{Time: a.now(), Body: ev.Error.Error(), Kind: chat.LineError})
		return
	}

	switch {
	case isRoom && ev.Type == stanza.GroupChatMessage:
		a.onGroupchat(ev)
	case isRoom && from.Resourcepart() != "":
		a.onPrivate(ev)
	case isRoom:
		// messages from the room itself, such as configuration notices
		if ev.Body != "" {
			a.appendLine(bare, chat.Line{ID: ev.ID, Time: a.lineTime(ev), Body: ev.Body, Kind: chat.LineInfo, Delayed: !ev.Delay.IsZero()})
		}
	default:
		a.onChat(ev)
	}
}

func (a *App) lineTime(ev xmpp.MessageEvent) time.Time {
	if !ev.Delay.IsZero() {
		return ev.Delay
	}
	return a.now()
}

func (a *App) onGroupchat(ev xmpp.MessageEvent) {
	room := ev.From.Bare().String()
	nick := ev.From.Resourcepart()

	if ev.Subject != nil {
		if rev, ok := a.rooms.ApplySubject(ev.From, *ev.Subject); ok {
			a.onRoomEvent(rev)
		}
	}

	delayed := !ev.Delay.IsZero()
	a.rooms.ApplyMessage(ev.From, ev.ChatState, ev.Body != "", delayed)
	if ev.Body == "" {
		return
	}
	if o, ok := a.rooms.Occupant(ev.From); ok && o.Ignored {
		logging.Debug("Dropped line from ignored %s", ev.From)
		return
	}

	own := false
	if snap, ok := a.rooms.Snapshot(ev.From); ok {
		own = snap.OwnNick == nick
	}

	if ev.ReplaceID != "" && a.chats.Correct(room, ev.ReplaceID, nick, ev.Body) {
		a.bus.Publish(Notice{Type: NoticeChat, Key: room})
		return
	}
	a.appendLine(room, chat.Line{
		ID:       ev.ID,
		Time:     a.lineTime(ev),
		From:     nick,
		Body:     ev.Body,
		Outgoing: own,
		Delayed:  delayed,
	})
}

// onPrivate routes a message from a room occupant to its linked conversation
func (a *App) onPrivate(ev xmpp.MessageEvent) {
	nick := ev.From.Resourcepart()
	id, err := a.rooms.OpenPrivate(ev.From, nick)
	if err != nil {
		logging.Warn("Private message from %s: %v", ev.From, err)
		return
	}
	if ev.Body == "" {
		return
	}
	a.appendPrivate(id, chat.Line{
		ID:      ev.ID,
		Time:    a.lineTime(ev),
		From:    nick,
		Body:    ev.Body,
		Delayed: !ev.Delay.IsZero(),
	})
}

func (a *App) contactKey(from jid.JID) string {
	return from.Bare().String()
}

func (a *App) onChat(ev xmpp.MessageEvent) {
	key := a.contactKey(ev.From)
	if ev.ChatState != chat.StateNone {
		a.chats.SetChatState(key, ev.ChatState)
	}
	if ev.Body == "" {
		if ev.ChatState != chat.StateNone {
			a.bus.Publish(Notice{Type: NoticeChat, Key: key})
		}
		return
	}

	name := key
	if c, ok := a.roster.Get(ev.From); ok {
		name = c.DisplayName()
	}
	if ev.ReplaceID != "" && a.chats.Correct(key, ev.ReplaceID, name, ev.Body) {
		a.bus.Publish(Notice{Type: NoticeChat, Key: key})
		return
	}
	a.appendLine(key, chat.Line{
		ID:      ev.ID,
		Time:    a.lineTime(ev),
		From:    name,
		Body:    ev.Body,
		Delayed: !ev.Delay.IsZero(),
	})
}

func (a *App) onRoster(ev xmpp.RosterPushEvent) {
	for _, u := range a.roster.ApplyRosterPush(ev) {
		// a full roster result lists every contact; only pushes are news
		if text := u.Describe(); text != "" && !ev.Full {
			a.console(chat.LineInfo, text)
		}
	}
	a.saveRoster()
	a.bus.Publish(Notice{Type: NoticeRoster})
}

func (a *App) saveRoster() {
	if a.store == nil || !a.cfg.Storage.CacheRoster {
		return
	}
	if err := a.store.SaveRoster(a.account.JID, a.roster.Items()); err != nil {
		logging.Warn("Failed to cache roster: %v", err)
	}
}

// defaultNick picks the nick for joins that do not name one
func (a *App) defaultNick() string {
	switch {
	case a.account.Nick != "":
		return a.account.Nick
	case a.cfg.MUC.DefaultNick != "":
		return a.cfg.MUC.DefaultNick
	}
	if own := a.tr.JID(); own.Localpart() != "" {
		return own.Localpart()
	}
	if j, err := jid.Parse(a.account.JID); err == nil && j.Localpart() != "" {
		return j.Localpart()
	}
	return "parley"
}
