package plugin

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	name   string
	fail   bool
	events []Event
}

func (r *recorder) Info() (Info, error) {
	return Info{Name: r.name, Version: "0.1.0", Description: "records events"}, nil
}

func (r *recorder) HandleEvent(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("boom")
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) received() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// dispense serves impl over an in-memory RPC connection and returns the
// host side
func dispense(t *testing.T, impl Plugin) Plugin {
	t.Helper()
	client, _ := plugin.TestPluginRPCConn(t, map[string]plugin.Plugin{
		pluginName: &RPCPlugin{Impl: impl},
	}, nil)
	t.Cleanup(func() { client.Close() })

	raw, err := client.Dispense(pluginName)
	require.NoError(t, err)
	return raw.(Plugin)
}

func TestRPCRoundTrip(t *testing.T) {
	impl := &recorder{name: "echo"}
	p := dispense(t, impl)

	info, err := p.Info()
	require.NoError(t, err)
	assert.Equal(t, "echo", info.Name)
	assert.Equal(t, "0.1.0", info.Version)

	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	ev := Event{Type: EventRoom, Key: "chat@conf.example", Outcome: "self_kicked", Text: "You have been kicked", Time: at}
	require.NoError(t, p.HandleEvent(ev))

	got := impl.received()
	require.Len(t, got, 1)
	assert.Equal(t, ev.Key, got[0].Key)
	assert.Equal(t, ev.Outcome, got[0].Outcome)
	assert.True(t, at.Equal(got[0].Time))

	impl.mu.Lock()
	impl.fail = true
	impl.mu.Unlock()
	err = p.HandleEvent(ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestHostDispatch(t *testing.T) {
	var logs bytes.Buffer
	h := NewHost("", hclog.New(&hclog.LoggerOptions{Output: &logs, Level: hclog.Info}))

	good := &recorder{name: "good"}
	bad := &recorder{name: "bad", fail: true}
	require.NoError(t, h.register(dispense(t, good), nil))
	require.NoError(t, h.register(dispense(t, bad), nil))
	assert.Error(t, h.register(dispense(t, &recorder{name: "good"}), nil))
	assert.Error(t, h.register(dispense(t, &recorder{}), nil))

	names := []string{}
	for _, lp := range h.List() {
		names = append(names, lp.Info.Name)
	}
	assert.Equal(t, []string{"bad", "good"}, names)

	h.Dispatch(Event{Type: EventMessage, Key: "chat@conf.example", From: "bob", Text: "alice: ping"})
	require.Len(t, good.received(), 1)
	assert.Equal(t, "bob", good.received()[0].From)
	assert.Contains(t, logs.String(), "plugin event failed")

	require.NoError(t, h.Unload("bad"))
	assert.ErrorIs(t, h.Unload("bad"), ErrNotFound)
	_, ok := h.Get("good")
	assert.True(t, ok)

	h.UnloadAll()
	assert.Empty(t, h.List())
}

func TestLoadAllReportsMissingPlugins(t *testing.T) {
	h := NewHost(t.TempDir(), nil)
	assert.NoError(t, h.LoadAll(nil))

	err := h.LoadAll([]string{"missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plugin missing")
}
