package plugin

import (
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

// Handshake is the plugin handshake config
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "PARLEY_PLUGIN",
	MagicCookieValue: "parley",
}

// pluginName is the key plugins are dispensed under
const pluginName = "parley"

// PluginMap is the plugin type map
var PluginMap = map[string]plugin.Plugin{
	pluginName: &RPCPlugin{},
}

// Serve runs impl as a plugin process. It is called from the plugin's main
// and does not return.
func Serve(impl Plugin) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			pluginName: &RPCPlugin{Impl: impl},
		},
	})
}

// RPCPlugin bridges Plugin over go-plugin's net/rpc protocol
type RPCPlugin struct {
	Impl Plugin
}

// Server returns the RPC server side, run in the plugin process
func (p *RPCPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

// Client returns the RPC client side, used by the host
func (*RPCPlugin) Client(_ *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPC{client: c}, nil
}

// RPC is the host's view of a plugin running in another process
type RPC struct {
	client *rpc.Client
}

// Info implements Plugin
func (r *RPC) Info() (Info, error) {
	var resp Info
	err := r.client.Call("Plugin.Info", new(interface{}), &resp)
	return resp, err
}

// HandleEvent implements Plugin
func (r *RPC) HandleEvent(ev Event) error {
	var ok bool
	return r.client.Call("Plugin.HandleEvent", ev, &ok)
}

// RPCServer serves a Plugin implementation to the host
type RPCServer struct {
	Impl Plugin
}

// Info serves Plugin.Info
func (s *RPCServer) Info(_ interface{}, resp *Info) error {
	info, err := s.Impl.Info()
	*resp = info
	return err
}

// HandleEvent serves Plugin.HandleEvent
func (s *RPCServer) HandleEvent(ev Event, ok *bool) error {
	if err := s.Impl.HandleEvent(ev); err != nil {
		return err
	}
	*ok = true
	return nil
}
