package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/meszmate/parley/internal/logging"
	"github.com/meszmate/parley/internal/storage/sqlite"
	"github.com/meszmate/parley/internal/xmpp/chat"
	"github.com/meszmate/parley/internal/xmpp/muc"
	"github.com/meszmate/parley/internal/xmpp/presence"
	"mellium.im/xmpp/jid"
	"mellium.im/xmpp/stanza"
)

// TargetKind says what a tab shows
type TargetKind int

const (
	TargetConsole TargetKind = iota
	TargetRoom
	TargetPrivate
	TargetContact
)

// Target identifies the tab a command was typed in
type Target struct {
	Kind TargetKind
	// Key is the room or contact bare JID, or the private conversation id
	Key string
}

func (t Target) key() string {
	if t.Kind == TargetConsole || t.Key == "" {
		return ConsoleKey
	}
	return t.Key
}

// Console is the target of the console tab
var Console = Target{Kind: TargetConsole}

// Result tells the UI what to do after a command
type Result struct {
	// Open asks the UI to focus or create a tab
	Open *Target
	// Close asks the UI to drop the current tab
	Close bool
	Quit  bool
}

var errNeedRoom = errors.New("this command only works in a room")

type command struct {
	usage string
	help  string
	run   func(a *App, ctx context.Context, t Target, args string) (Result, error)
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"join":        {"/join room@service[/nick] [password]", "join a room", (*App).cmdJoin},
		"part":        {"/part [message]", "leave the current room", (*App).cmdPart},
		"close":       {"/close", "close the current tab", (*App).cmdClose},
		"cycle":       {"/cycle [message]", "leave and rejoin the current room", (*App).cmdCycle},
		"cycleall":    {"/cycleall [message]", "leave and rejoin every room on the current service", (*App).cmdCycleAll},
		"nick":        {"/nick <nick>", "change your nick in the current room", (*App).cmdNick},
		"kick":        {"/kick <nick> [reason]", "kick an occupant", (*App).cmdKick},
		"ban":         {"/ban <nick|jid> [reason]", "ban a user from the room", (*App).cmdBan},
		"role":        {"/role <nick> <role> [reason]", "change the role of an occupant", (*App).cmdRole},
		"affiliation": {"/affiliation <nick|jid> <affiliation> [reason]", "change the affiliation of a user", (*App).cmdAffiliation},
		"invite":      {"/invite <jid> [reason]", "invite someone to the current room", (*App).cmdInvite},
		"ignore":      {"/ignore <nick>", "hide the messages of an occupant", (*App).cmdIgnore},
		"unignore":    {"/unignore <nick>", "show the messages of an ignored occupant", (*App).cmdUnignore},
		"topic":       {"/topic [subject]", "show or set the room subject", (*App).cmdTopic},
		"names":       {"/names", "list the room occupants", (*App).cmdNames},
		"query":       {"/query <nick|jid> [message]", "open a private conversation", (*App).cmdQuery},
		"msg":         {"/msg <jid> <message>", "send a message to a contact", (*App).cmdMsg},
		"recolor":     {"/recolor [random]", "reassign nick colors by activity", (*App).cmdRecolor},
		"bookmark":    {"/bookmark [noautojoin]", "bookmark the current room", (*App).cmdBookmark},
		"unbookmark":  {"/unbookmark [room]", "remove a bookmark", (*App).cmdUnbookmark},
		"accept":      {"/accept <jid>", "accept a subscription request", (*App).cmdAccept},
		"deny":        {"/deny <jid>", "refuse or revoke a subscription", (*App).cmdDeny},
		"add":         {"/add <jid> [name]", "add a contact and ask for their presence", (*App).cmdAdd},
		"remove":      {"/remove <jid>", "remove a contact", (*App).cmdRemove},
		"status":      {"/status <available|away|chat|dnd|xa> [message]", "change your presence", (*App).cmdStatus},
		"connect":     {"/connect", "connect the account", (*App).cmdConnect},
		"disconnect":  {"/disconnect", "disconnect the account", (*App).cmdDisconnect},
		"help":        {"/help [command]", "list commands", (*App).cmdHelp},
		"quit":        {"/quit", "quit parley", (*App).cmdQuit},
	}
}

// Commands returns the sorted command names
func Commands() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs one line of input typed in tab t. Lines starting with a
// slash are commands, anything else is sent as a message.
func (a *App) Execute(ctx context.Context, t Target, line string) (Result, error) {
	var res Result
	err := a.call(ctx, func(loopCtx context.Context) error {
		var err error
		res, err = a.execute(loopCtx, t, line)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrClosed) {
			a.appendFor(t, chat.Line{Time: a.now(), Body: err.Error(), Kind: chat.LineError})
		}
		return Result{}, err
	}
	return res, nil
}

func (a *App) execute(ctx context.Context, t Target, line string) (Result, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Result{}, nil
	}
	if !strings.HasPrefix(line, "/") || strings.HasPrefix(line, "//") {
		if strings.HasPrefix(line, "//") {
			line = line[1:]
		}
		return Result{}, a.send(ctx, t, line)
	}

	name, args, _ := strings.Cut(line[1:], " ")
	cmd, ok := commands[strings.ToLower(name)]
	if !ok {
		return Result{}, fmt.Errorf("%w: /%s", ErrUnknownCommand, name)
	}
	logging.Debug("Command /%s in %s", name, t.key())
	return cmd.run(a, ctx, t, strings.TrimSpace(args))
}

// appendFor writes a line to the log shown by tab t
func (a *App) appendFor(t Target, line chat.Line) {
	if t.Kind == TargetPrivate {
		a.appendPrivate(t.Key, line)
		return
	}
	a.appendLine(t.key(), line)
}

func (a *App) info(t Target, format string, args ...interface{}) {
	a.appendFor(t, chat.Line{Time: a.now(), Body: fmt.Sprintf(format, args...), Kind: chat.LineInfo})
}

func (a *App) requireConnected() error {
	if !a.Connected() {
		return ErrNotConnected
	}
	return nil
}

// send delivers a plain message to the tab's peer
func (a *App) send(ctx context.Context, t Target, body string) error {
	if err := a.requireConnected(); err != nil {
		return err
	}

	switch t.Kind {
	case TargetRoom:
		room, err := a.roomOf(t)
		if err != nil {
			return err
		}
		snap, ok := a.rooms.Snapshot(room)
		if !ok || snap.State != muc.StateJoined {
			return fmt.Errorf("send to %s: %w", room, muc.ErrNotJoined)
		}
		// the room echoes the message back to us
		_, err = a.tr.SendMessage(ctx, room, stanza.GroupChatMessage, body)
		return err

	case TargetPrivate:
		conv, ok := a.privates.ByID(t.Key)
		if !ok {
			return chat.ErrNoConversation
		}
		if !conv.Active {
			return chat.ErrInactive
		}
		to, err := jid.Parse(conv.JID())
		if err != nil {
			return err
		}
		id, err := a.tr.SendMessage(ctx, to, stanza.ChatMessage, body)
		if err != nil {
			return err
		}
		return a.privates.AppendOutbound(t.Key, chat.Line{ID: id, Time: a.now(), From: conv.OwnNick, Body: body})

	case TargetContact:
		to, err := jid.Parse(t.Key)
		if err != nil {
			return err
		}
		return a.sendChat(ctx, to, body)

	default:
		return errors.New("nothing to send to here, use /msg or /query")
	}
}

func (a *App) sendChat(ctx context.Context, to jid.JID, body string) error {
	id, err := a.tr.SendMessage(ctx, to.Bare(), stanza.ChatMessage, body)
	if err != nil {
		return err
	}
	a.appendLine(to.Bare().String(), chat.Line{ID: id, Time: a.now(), From: a.tr.JID().Localpart(), Body: body, Outgoing: true})
	return nil
}

// roomOf returns the room of a room tab, or the room a private
// conversation belongs to
func (a *App) roomOf(t Target) (jid.JID, error) {
	switch t.Kind {
	case TargetRoom:
		return jid.Parse(t.Key)
	case TargetPrivate:
		if conv, ok := a.privates.ByID(t.Key); ok {
			return jid.Parse(conv.Room)
		}
	}
	return jid.JID{}, errNeedRoom
}

// parseRoom resolves a room argument. A bare name without a service takes
// the service of the current room.
func (a *App) parseRoom(t Target, arg string) (jid.JID, error) {
	if !strings.Contains(arg, "@") && t.Kind == TargetRoom {
		if cur, err := jid.Parse(t.Key); err == nil {
			name, nick, hasNick := strings.Cut(arg, "/")
			arg = name + "@" + cur.Domainpart()
			if hasNick {
				arg += "/" + nick
			}
		}
	}
	room, err := jid.Parse(arg)
	if err != nil {
		return jid.JID{}, fmt.Errorf("invalid room %q: %w", arg, err)
	}
	if room.Localpart() == "" {
		return jid.JID{}, fmt.Errorf("invalid room %q: missing room name", arg)
	}
	return room, nil
}

func (a *App) cmdJoin(ctx context.Context, t Target, args string) (Result, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return Result{}, errors.New("usage: " + commands["join"].usage)
	}
	if err := a.requireConnected(); err != nil {
		return Result{}, err
	}
	addr, err := a.parseRoom(t, fields[0])
	if err != nil {
		return Result{}, err
	}

	nick := addr.Resourcepart()
	if nick == "" {
		nick = a.defaultNick()
	}
	password := ""
	if len(fields) > 1 {
		password = fields[1]
	}

	room := addr.Bare()
	if err := a.rooms.Join(room, nick, password); err != nil {
		if errors.Is(err, muc.ErrAlreadyJoined) {
			return Result{Open: &Target{Kind: TargetRoom, Key: room.String()}}, nil
		}
		return Result{}, err
	}
	a.info(Target{Kind: TargetRoom, Key: room.String()}, "Joining %s as %s...", room, nick)
	a.sendJoin(ctx, room, nick, password)
	return Result{Open: &Target{Kind: TargetRoom, Key: room.String()}}, nil
}

func (a *App) cmdPart(ctx context.Context, t Target, args string) (Result, error) {
	if t.Kind != TargetRoom {
		return Result{}, errNeedRoom
	}
	room, err := a.roomOf(t)
	if err != nil {
		return Result{}, err
	}
	snap, ok := a.rooms.Snapshot(room)
	if !ok {
		return Result{}, fmt.Errorf("part %s: %w", room, muc.ErrNotFound)
	}
	if err := a.rooms.Leave(room, args); err != nil {
		return Result{}, err
	}
	if a.Connected() {
		if err := a.tr.LeaveRoom(ctx, room, snap.OwnNick, args); err != nil {
			logging.Warn("Leave %s: %v", room, err)
		}
	}
	a.bus.Publish(Notice{Type: NoticeRoom, Key: room.String(), Outcome: muc.SelfLeft{Status: args}})
	a.info(t, "You left the room")
	return Result{}, nil
}

// cmdClose drops a tab. Closing a joined room leaves it first.
func (a *App) cmdClose(ctx context.Context, t Target, args string) (Result, error) {
	switch t.Kind {
	case TargetRoom:
		room, err := a.roomOf(t)
		if err != nil {
			return Result{}, err
		}
		if snap, ok := a.rooms.Snapshot(room); ok && snap.State != muc.StateUnjoined {
			if _, err := a.cmdPart(ctx, t, args); err != nil {
				return Result{}, err
			}
		}
		a.rooms.Remove(room)
		a.chats.Delete(t.Key)
	case TargetPrivate:
		a.privates.Close(t.Key)
	case TargetContact:
		a.chats.Delete(t.Key)
	default:
		return Result{}, errors.New("the console cannot be closed")
	}
	return Result{Close: true}, nil
}

func (a *App) cmdCycle(ctx context.Context, t Target, args string) (Result, error) {
	if t.Kind != TargetRoom {
		return Result{}, errNeedRoom
	}
	if err := a.requireConnected(); err != nil {
		return Result{}, err
	}
	room, err := a.roomOf(t)
	if err != nil {
		return Result{}, err
	}
	return Result{}, a.cycle(ctx, room, args)
}

// cmdCycleAll cycles the joined rooms hosted by the service of the current
// room
func (a *App) cmdCycleAll(ctx context.Context, t Target, args string) (Result, error) {
	if t.Kind != TargetRoom {
		return Result{}, errNeedRoom
	}
	if err := a.requireConnected(); err != nil {
		return Result{}, err
	}
	cur, err := a.roomOf(t)
	if err != nil {
		return Result{}, err
	}
	rooms := a.rooms.Joined(cur.Domainpart())
	for _, room := range rooms {
		if err := a.cycle(ctx, room, args); err != nil {
			logging.Warn("Cycle %s: %v", room, err)
		}
	}
	a.info(t, "Cycled %d rooms on %s", len(rooms), cur.Domainpart())
	return Result{}, nil
}

// cycle leaves a room and joins it again with the same nick
func (a *App) cycle(ctx context.Context, room jid.JID, status string) error {
	rj, err := a.rooms.Rejoin(room)
	if err != nil {
		return err
	}

	if err := a.rooms.Leave(room, status); err == nil {
		if err := a.tr.LeaveRoom(ctx, room, rj.Nick, status); err != nil {
			logging.Warn("Leave %s: %v", room, err)
		}
	}
	if err := a.rooms.Join(rj.Room, rj.Nick, rj.Password); err != nil {
		return err
	}
	a.sendJoin(ctx, rj.Room, rj.Nick, rj.Password)
	return nil
}

func (a *App) cmdNick(ctx context.Context, t Target, args string) (Result, error) {
	if args == "" {
		return Result{}, errors.New("usage: " + commands["nick"].usage)
	}
	if err := a.requireConnected(); err != nil {
		return Result{}, err
	}
	room, err := a.roomOf(t)
	if err != nil {
		return Result{}, err
	}
	snap, ok := a.rooms.Snapshot(room)
	if !ok || snap.State != muc.StateJoined {
		return Result{}, fmt.Errorf("nick in %s: %w", room, muc.ErrNotJoined)
	}
	// the room answers with a 303 presence, which renames us
	return Result{}, a.tr.ChangeNick(ctx, room, args, a.Status())
}

func (a *App) cmdTopic(ctx context.Context, t Target, args string) (Result, error) {
	room, err := a.roomOf(t)
	if err != nil {
		return Result{}, err
	}
	if args == "" {
		snap, ok := a.rooms.Snapshot(room)
		if !ok {
			return Result{}, fmt.Errorf("topic %s: %w", room, muc.ErrNotFound)
		}
		if snap.Topic == "" {
			a.info(t, "No subject is set")
		} else {
			a.info(t, "The subject is: %s", snap.Topic)
		}
		return Result{}, nil
	}
	if err := a.requireConnected(); err != nil {
		return Result{}, err
	}
	return Result{}, a.tr.SetSubject(ctx, room, args)
}

// SortOccupants orders occupants by role, moderators first, then by nick
// ignoring case
func SortOccupants(occupants []muc.Occupant) {
	sort.SliceStable(occupants, func(i, j int) bool {
		ri, rj := occupants[i].Role.Rank(), occupants[j].Role.Rank()
		if ri != rj {
			return ri < rj
		}
		return strings.ToLower(occupants[i].Nick) < strings.ToLower(occupants[j].Nick)
	})
}

func (a *App) cmdNames(ctx context.Context, t Target, args string) (Result, error) {
	room, err := a.roomOf(t)
	if err != nil {
		return Result{}, err
	}
	snap, ok := a.rooms.Snapshot(room)
	if !ok {
		return Result{}, fmt.Errorf("names %s: %w", room, muc.ErrNotFound)
	}

	occupants := snap.Occupants
	SortOccupants(occupants)

	var b strings.Builder
	fmt.Fprintf(&b, "%d occupants:", len(occupants))
	var role muc.Role
	for i, o := range occupants {
		if i == 0 || o.Role != role {
			role = o.Role
			fmt.Fprintf(&b, " [%s]", role)
		}
		b.WriteString(" " + o.Nick)
	}
	a.info(t, "%s", b.String())
	return Result{}, nil
}

func (a *App) cmdQuery(ctx context.Context, t Target, args string) (Result, error) {
	who, message, _ := strings.Cut(args, " ")
	if who == "" {
		return Result{}, errors.New("usage: " + commands["query"].usage)
	}
	message = strings.TrimSpace(message)

	// inside a room a bare word is an occupant
	if room, err := a.roomOf(t); err == nil && !strings.Contains(who, "@") {
		id, err := a.rooms.OpenPrivate(room, who)
		if err != nil {
			return Result{}, err
		}
		target := Target{Kind: TargetPrivate, Key: id}
		if message != "" {
			if err := a.send(ctx, target, message); err != nil {
				return Result{}, err
			}
		}
		return Result{Open: &target}, nil
	}

	to, err := jid.Parse(who)
	if err != nil {
		return Result{}, fmt.Errorf("invalid address %q: %w", who, err)
	}
	if a.rooms.IsRoom(to) && to.Resourcepart() != "" {
		id, err := a.rooms.OpenPrivate(to, to.Resourcepart())
		if err != nil {
			return Result{}, err
		}
		return Result{Open: &Target{Kind: TargetPrivate, Key: id}}, nil
	}

	target := Target{Kind: TargetContact, Key: to.Bare().String()}
	if message != "" {
		if err := a.send(ctx, target, message); err != nil {
			return Result{}, err
		}
	}
	return Result{Open: &target}, nil
}

func (a *App) cmdMsg(ctx context.Context, t Target, args string) (Result, error) {
	who, body, _ := strings.Cut(args, " ")
	body = strings.TrimSpace(body)
	if who == "" || body == "" {
		return Result{}, errors.New("usage: " + commands["msg"].usage)
	}
	if err := a.requireConnected(); err != nil {
		return Result{}, err
	}
	to, err := jid.Parse(who)
	if err != nil {
		return Result{}, fmt.Errorf("invalid address %q: %w", who, err)
	}
	return Result{}, a.sendChat(ctx, to, body)
}

func (a *App) cmdRecolor(ctx context.Context, t Target, args string) (Result, error) {
	room, err := a.roomOf(t)
	if err != nil {
		return Result{}, err
	}
	if err := a.rooms.Recolor(room, args == "random"); err != nil {
		return Result{}, err
	}
	a.bus.Publish(Notice{Type: NoticeRoom, Key: room.String(), Outcome: muc.NoOp{Reason: "recolor"}})
	return Result{}, nil
}

func (a *App) cmdBookmark(ctx context.Context, t Target, args string) (Result, error) {
	if a.store == nil {
		return Result{}, ErrNoStorage
	}
	room, err := a.roomOf(t)
	if err != nil {
		return Result{}, err
	}
	rj, err := a.rooms.Rejoin(room)
	if err != nil {
		return Result{}, err
	}
	b := sqlite.Bookmark{
		JID:      rj.Room,
		Nick:     rj.Nick,
		Autojoin: args != "noautojoin",
		Password: rj.Password,
	}
	if err := a.store.AddBookmark(a.account.JID, b); err != nil {
		return Result{}, fmt.Errorf("bookmark %s: %w", room, err)
	}
	a.info(t, "Bookmarked %s", room)
	return Result{}, nil
}

func (a *App) cmdUnbookmark(ctx context.Context, t Target, args string) (Result, error) {
	if a.store == nil {
		return Result{}, ErrNoStorage
	}
	var room jid.JID
	var err error
	if args != "" {
		room, err = a.parseRoom(t, args)
	} else {
		room, err = a.roomOf(t)
	}
	if err != nil {
		return Result{}, err
	}
	if err := a.store.RemoveBookmark(a.account.JID, room); err != nil {
		return Result{}, fmt.Errorf("unbookmark %s: %w", room.Bare(), err)
	}
	a.info(t, "Removed the bookmark for %s", room.Bare())
	return Result{}, nil
}

// contactArg returns the contact named by args, or the contact of the tab
func (a *App) contactArg(t Target, args, usage string) (jid.JID, error) {
	if args == "" && t.Kind == TargetContact {
		args = t.Key
	}
	if args == "" {
		return jid.JID{}, errors.New("usage: " + usage)
	}
	addr, err := jid.Parse(strings.Fields(args)[0])
	if err != nil {
		return jid.JID{}, fmt.Errorf("invalid address %q: %w", args, err)
	}
	return addr.Bare(), nil
}

func (a *App) cmdAccept(ctx context.Context, t Target, args string) (Result, error) {
	addr, err := a.contactArg(t, args, commands["accept"].usage)
	if err != nil {
		return Result{}, err
	}
	if err := a.requireConnected(); err != nil {
		return Result{}, err
	}
	if err := a.roster.Authorize(addr); err != nil {
		return Result{}, err
	}
	if err := a.tr.Authorize(ctx, addr); err != nil {
		return Result{}, err
	}
	a.info(t, "%s can now see your presence", addr)
	a.bus.Publish(Notice{Type: NoticeRoster, Key: addr.String()})
	return Result{}, nil
}

func (a *App) cmdDeny(ctx context.Context, t Target, args string) (Result, error) {
	addr, err := a.contactArg(t, args, commands["deny"].usage)
	if err != nil {
		return Result{}, err
	}
	if err := a.requireConnected(); err != nil {
		return Result{}, err
	}
	if err := a.roster.Deny(addr); err != nil {
		return Result{}, err
	}
	if err := a.tr.Deny(ctx, addr); err != nil {
		return Result{}, err
	}
	a.info(t, "%s can no longer see your presence", addr)
	a.bus.Publish(Notice{Type: NoticeRoster, Key: addr.String()})
	return Result{}, nil
}

func (a *App) cmdAdd(ctx context.Context, t Target, args string) (Result, error) {
	addr, err := a.contactArg(t, args, commands["add"].usage)
	if err != nil {
		return Result{}, err
	}
	if err := a.requireConnected(); err != nil {
		return Result{}, err
	}
	_, name, _ := strings.Cut(args, " ")

	if err := a.tr.SetRosterItem(ctx, addr, strings.TrimSpace(name)); err != nil {
		return Result{}, err
	}
	if err := a.tr.Subscribe(ctx, addr); err != nil {
		return Result{}, err
	}
	a.roster.Subscribe(addr)
	a.info(t, "Asked %s for their presence", addr)
	a.bus.Publish(Notice{Type: NoticeRoster, Key: addr.String()})
	return Result{}, nil
}

func (a *App) cmdRemove(ctx context.Context, t Target, args string) (Result, error) {
	addr, err := a.contactArg(t, args, commands["remove"].usage)
	if err != nil {
		return Result{}, err
	}
	if err := a.requireConnected(); err != nil {
		return Result{}, err
	}
	// the server answers with a roster push that drops the contact
	return Result{}, a.tr.RemoveRosterItem(ctx, addr)
}

func (a *App) cmdStatus(ctx context.Context, t Target, args string) (Result, error) {
	word, message, _ := strings.Cut(args, " ")
	show, ok := presence.ParseShow(word)
	if word == "" || !ok || !show.Online() {
		return Result{}, errors.New("usage: " + commands["status"].usage)
	}

	a.mu.Lock()
	a.status.Show = show
	a.status.Message = strings.TrimSpace(message)
	st := a.status
	a.mu.Unlock()

	if a.store != nil {
		if err := a.store.SetAppState(stateStatus, string(st.Show)); err != nil {
			logging.Warn("Failed to save status: %v", err)
		}
		if err := a.store.SetAppState(stateStatusMessage, st.Message); err != nil {
			logging.Warn("Failed to save status: %v", err)
		}
	}

	if a.Connected() {
		if err := a.tr.SendPresence(ctx, jid.JID{}, st); err != nil {
			return Result{}, err
		}
		// rooms only see directed presence
		for _, snap := range a.rooms.Rooms() {
			if snap.State != muc.StateJoined {
				continue
			}
			to, err := jid.Parse(snap.JID + "/" + snap.OwnNick)
			if err != nil {
				continue
			}
			if err := a.tr.SendPresence(ctx, to, st); err != nil {
				logging.Warn("Presence to %s: %v", snap.JID, err)
			}
		}
	}
	a.info(t, "Your status is now %s", show)
	a.bus.Publish(Notice{Type: NoticeConnection})
	return Result{}, nil
}

func (a *App) cmdConnect(ctx context.Context, t Target, args string) (Result, error) {
	if a.Connected() {
		return Result{}, errors.New("already connected")
	}
	// dialing must not block the event loop
	go func() {
		_ = a.Connect(context.Background())
	}()
	return Result{}, nil
}

func (a *App) cmdDisconnect(ctx context.Context, t Target, args string) (Result, error) {
	if err := a.requireConnected(); err != nil {
		return Result{}, err
	}
	return Result{}, a.tr.Disconnect()
}

func (a *App) cmdHelp(ctx context.Context, t Target, args string) (Result, error) {
	if args != "" {
		cmd, ok := commands[strings.TrimPrefix(args, "/")]
		if !ok {
			return Result{}, fmt.Errorf("%w: /%s", ErrUnknownCommand, args)
		}
		a.info(t, "%s: %s", cmd.usage, cmd.help)
		return Result{}, nil
	}
	for _, name := range Commands() {
		cmd := commands[name]
		a.info(t, "%-45s %s", cmd.usage, cmd.help)
	}
	return Result{}, nil
}

func (a *App) cmdQuit(ctx context.Context, t Target, args string) (Result, error) {
	return Result{Quit: true}, nil
}
