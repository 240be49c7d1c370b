package plugin

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

// ErrNotFound is returned for plugins that are not loaded
var ErrNotFound = errors.New("plugin not found")

// Host manages plugin lifecycle
type Host struct {
	mu        sync.RWMutex
	plugins   map[string]*LoadedPlugin
	pluginDir string
	logger    hclog.Logger
}

// LoadedPlugin represents a loaded plugin
type LoadedPlugin struct {
	Info   Info
	Plugin Plugin

	client *plugin.Client
	// mu serializes events so a plugin sees them in order
	mu sync.Mutex
}

// NewHost creates a new plugin host. A nil logger discards plugin output.
func NewHost(pluginDir string, logger hclog.Logger) *Host {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Host{
		plugins:   make(map[string]*LoadedPlugin),
		pluginDir: pluginDir,
		logger:    logger,
	}
}

// LoadAll loads the enabled plugins from the plugin directory. Each enabled
// name is the file name of a plugin executable.
func (h *Host) LoadAll(enabled []string) error {
	if h.pluginDir == "" || len(enabled) == 0 {
		return nil
	}

	var errs []error
	for _, name := range enabled {
		path := filepath.Join(h.pluginDir, name)
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, fmt.Errorf("plugin %s: %w", name, err))
			continue
		}
		if err := h.Load(path); err != nil {
			errs = append(errs, fmt.Errorf("plugin %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Load starts a plugin executable and registers it
func (h *Host) Load(path string) error {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          PluginMap,
		Cmd:              exec.Command(path),
		Logger:           h.logger.Named(filepath.Base(path)),
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return fmt.Errorf("failed to connect to plugin: %w", err)
	}

	raw, err := rpcClient.Dispense(pluginName)
	if err != nil {
		client.Kill()
		return fmt.Errorf("failed to dispense plugin: %w", err)
	}

	if err := h.register(raw.(Plugin), client); err != nil {
		client.Kill()
		return err
	}
	return nil
}

// register asks a dispensed plugin for its metadata and adds it
func (h *Host) register(p Plugin, client *plugin.Client) error {
	info, err := p.Info()
	if err != nil {
		return fmt.Errorf("failed to query plugin: %w", err)
	}
	if info.Name == "" {
		return errors.New("plugin has no name")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.plugins[info.Name]; ok {
		return fmt.Errorf("plugin %s is already loaded", info.Name)
	}
	h.plugins[info.Name] = &LoadedPlugin{Info: info, Plugin: p, client: client}
	h.logger.Info("plugin loaded", "name", info.Name, "version", info.Version)
	return nil
}

// Dispatch delivers an event to every plugin. Failures are logged and do
// not stop delivery to the others.
func (h *Host) Dispatch(ev Event) {
	for _, lp := range h.List() {
		lp.mu.Lock()
		err := lp.Plugin.HandleEvent(ev)
		lp.mu.Unlock()
		if err != nil {
			h.logger.Warn("plugin event failed", "name", lp.Info.Name, "type", ev.Type, "error", err)
		}
	}
}

// Unload stops a plugin
func (h *Host) Unload(name string) error {
	h.mu.Lock()
	lp, ok := h.plugins[name]
	delete(h.plugins, name)
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if lp.client != nil {
		lp.client.Kill()
	}
	return nil
}

// UnloadAll stops all plugins
func (h *Host) UnloadAll() {
	for _, lp := range h.List() {
		_ = h.Unload(lp.Info.Name)
	}
}

// List returns all loaded plugins sorted by name
func (h *Host) List() []*LoadedPlugin {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]*LoadedPlugin, 0, len(h.plugins))
	for _, lp := range h.plugins {
		result = append(result, lp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Info.Name < result[j].Info.Name })
	return result
}

// Get returns a specific plugin
func (h *Host) Get(name string) (*LoadedPlugin, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	lp, ok := h.plugins[name]
	return lp, ok
}
