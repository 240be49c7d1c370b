package main

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/meszmate/parley/pkg/plugin"
)

// MUCNotifyPlugin raises desktop notifications for highlights and for
// being removed from a room
type MUCNotifyPlugin struct {
	notify func(title, body string) error
}

// Info returns the plugin metadata
func (p *MUCNotifyPlugin) Info() (plugin.Info, error) {
	return plugin.Info{
		Name:        "mucnotify",
		Version:     "1.0.0",
		Description: "Desktop notifications for room highlights, kicks and bans",
	}, nil
}

// HandleEvent notifies about the events worth interrupting for
func (p *MUCNotifyPlugin) HandleEvent(ev plugin.Event) error {
	title, body, ok := notification(ev)
	if !ok {
		return nil
	}
	return p.notify(title, body)
}

// notification decides whether an event deserves a notification
func notification(ev plugin.Event) (title, body string, ok bool) {
	switch ev.Type {
	case plugin.EventRoom:
		switch ev.Outcome {
		case "self_kicked", "self_banned", "room_error":
			return ev.Key, ev.Text, true
		}

	case plugin.EventMessage:
		if ev.Outgoing || ev.OwnNick == "" || ev.From == ev.OwnNick {
			return "", "", false
		}
		if mentions(ev.Text, ev.OwnNick) {
			return fmt.Sprintf("%s in %s", ev.From, ev.Key), ev.Text, true
		}

	case plugin.EventPrivate:
		if !ev.Outgoing && ev.From != "" {
			return ev.From, ev.Text, true
		}
	}
	return "", "", false
}

// mentions reports whether nick appears in text as a whole word
func mentions(text, nick string) bool {
	text, nick = strings.ToLower(text), strings.ToLower(nick)
	for i := 0; ; {
		j := strings.Index(text[i:], nick)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(nick)
		if boundary(text, start-1) && boundary(text, end) {
			return true
		}
		i = start + 1
	}
}

func boundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' || c == '-')
}

// sendNotification sends a desktop notification
func sendNotification(title, body string) error {
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title %q`, body, title)
		return exec.Command("osascript", "-e", script).Run()

	case "linux":
		return exec.Command("notify-send", title, body).Run()

	default:
		return nil
	}
}

func main() {
	plugin.Serve(&MUCNotifyPlugin{notify: sendNotification})
}
