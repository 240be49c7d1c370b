package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const appName = "parley"

// Config represents the main application configuration
type Config struct {
	General GeneralConfig `toml:"general"`
	UI      UIConfig      `toml:"ui"`
	MUC     MUCConfig     `toml:"muc"`
	Plugins PluginsConfig `toml:"plugins"`
	Logging LoggingConfig `toml:"logging"`
	Storage StorageConfig `toml:"storage"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	DataDir     string `toml:"data_dir"`
	AutoConnect bool   `toml:"auto_connect"`
	// Account selects the account by JID; empty means the first one
	Account string `toml:"account"`
}

// UIConfig contains UI-related settings
type UIConfig struct {
	Theme          string `toml:"theme" validate:"required"`
	RosterWidth    int    `toml:"roster_width" validate:"min=10,max=120"`
	ShowRoster     bool   `toml:"show_roster"`
	ShowTimestamps bool   `toml:"show_timestamps"`
	TimeFormat     string `toml:"time_format" validate:"required"`
	// HistoryLines is the number of lines kept per tab
	HistoryLines int `toml:"history_lines" validate:"min=10"`
}

// MUCConfig controls groupchat behaviour. The hide thresholds are in
// seconds: -1 always shows, 0 hides joins and quiet leaves, N shows leaves
// and status changes only for occupants who talked in the last N seconds.
type MUCConfig struct {
	DefaultNick             string   `toml:"default_nick"`
	HideExitJoin            int      `toml:"hide_exit_join"`
	HideStatusChange        int      `toml:"hide_status_change"`
	AutoRejoin              bool     `toml:"autorejoin"`
	AutoRejoinDelay         Duration `toml:"autorejoin_delay" validate:"gte=0"`
	DeterministicNickColors bool     `toml:"deterministic_nick_colors"`
	HistoryMaxStanzas       int      `toml:"history_max_stanzas" validate:"gte=-1"`
	NickColors              []string `toml:"nick_colors" validate:"dive,hexcolor"`
	OwnNickColor            string   `toml:"own_nick_color" validate:"omitempty,hexcolor"`
}

// PluginsConfig contains plugin settings
type PluginsConfig struct {
	Enabled   []string `toml:"enabled"`
	PluginDir string   `toml:"plugin_dir"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level   string `toml:"level" validate:"oneof=debug info warn warning error"`
	File    string `toml:"file"`
	Console bool   `toml:"console"`
}

// StorageConfig contains storage settings
type StorageConfig struct {
	// CacheRoster keeps the last roster to show it before the server answers
	CacheRoster bool `toml:"cache_roster"`

	// VacuumOnStartup runs database vacuum on startup
	VacuumOnStartup bool `toml:"vacuum_on_startup"`
}

// Duration is a time.Duration written as a string such as "5s"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Account represents an XMPP account configuration
type Account struct {
	JID         string `toml:"jid" validate:"required,contains=@"`
	Password    string `toml:"password"`
	AutoConnect bool   `toml:"auto_connect"`
	Server      string `toml:"server" validate:"omitempty,hostname|ip"`
	Port        int    `toml:"port" validate:"port"`
	Priority    int    `toml:"priority" validate:"min=-128,max=127"`
	Resource    string `toml:"resource"`
	Nick        string `toml:"nick"`
	Session     bool   `toml:"-"` // Session-only account, not saved to disk
}

// AccountsConfig contains all account configurations
type AccountsConfig struct {
	Accounts []Account `toml:"accounts" validate:"dive"`
}

// Find returns the account with the given JID, or the first account when
// jid is empty
func (a *AccountsConfig) Find(jid string) (Account, bool) {
	for _, acc := range a.Accounts {
		if jid == "" || acc.JID == jid {
			return acc, true
		}
	}
	return Account{}, false
}

// Paths holds the XDG-compliant paths for the application
type Paths struct {
	ConfigDir string
	DataDir   string
	CacheDir  string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			AutoConnect: true,
		},
		UI: UIConfig{
			Theme:          "default",
			RosterWidth:    30,
			ShowRoster:     true,
			ShowTimestamps: true,
			TimeFormat:     "15:04",
			HistoryLines:   1000,
		},
		MUC: MUCConfig{
			HideExitJoin:      -1,
			HideStatusChange:  -1,
			AutoRejoin:        false,
			AutoRejoinDelay:   Duration{5 * time.Second},
			HistoryMaxStanzas: 20,
		},
		Plugins: PluginsConfig{
			Enabled: []string{},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			CacheRoster: true,
		},
	}
}

func xdgDir(env string, fallback ...string) (string, error) {
	dir := os.Getenv(env)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(append([]string{home}, fallback...)...)
	}
	return filepath.Join(dir, appName), nil
}

// GetPaths returns XDG-compliant paths for the application
func GetPaths() (*Paths, error) {
	configDir, err := xdgDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return nil, err
	}
	dataDir, err := xdgDir("XDG_DATA_HOME", ".local", "share")
	if err != nil {
		return nil, err
	}
	cacheDir, err := xdgDir("XDG_CACHE_HOME", ".cache")
	if err != nil {
		return nil, err
	}

	return &Paths{
		ConfigDir: configDir,
		DataDir:   dataDir,
		CacheDir:  cacheDir,
	}, nil
}

// EnsureDirectories creates the necessary directories
func (p *Paths) EnsureDirectories() error {
	dirs := []string{p.ConfigDir, p.DataDir, p.CacheDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Load loads the configuration from the config file
func Load() (*Config, error) {
	paths, err := GetPaths()
	if err != nil {
		return nil, err
	}
	return LoadFrom(paths)
}

// LoadFrom loads config.toml from the given paths, falling back to
// defaults when the file does not exist
func LoadFrom(paths *Paths) (*Config, error) {
	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	configPath := filepath.Join(paths.ConfigDir, "config.toml")

	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if cfg.General.DataDir == "" {
		cfg.General.DataDir = paths.DataDir
	} else {
		cfg.General.DataDir = expandPath(cfg.General.DataDir)
	}

	if cfg.Plugins.PluginDir == "" {
		cfg.Plugins.PluginDir = filepath.Join(cfg.General.DataDir, "plugins")
	} else {
		cfg.Plugins.PluginDir = expandPath(cfg.Plugins.PluginDir)
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.General.DataDir, appName+".log")
	} else {
		cfg.Logging.File = expandPath(cfg.Logging.File)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAccounts loads account configurations
func LoadAccounts() (*AccountsConfig, error) {
	paths, err := GetPaths()
	if err != nil {
		return nil, err
	}
	return LoadAccountsFrom(paths)
}

// LoadAccountsFrom loads accounts.toml from the given paths
func LoadAccountsFrom(paths *Paths) (*AccountsConfig, error) {
	accountsPath := filepath.Join(paths.ConfigDir, "accounts.toml")

	if _, err := os.Stat(accountsPath); os.IsNotExist(err) {
		return &AccountsConfig{Accounts: []Account{}}, nil
	}

	var accounts AccountsConfig
	if _, err := toml.DecodeFile(accountsPath, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file: %w", err)
	}

	for i := range accounts.Accounts {
		if accounts.Accounts[i].Port == 0 {
			accounts.Accounts[i].Port = 5222
		}
		if accounts.Accounts[i].Resource == "" {
			accounts.Accounts[i].Resource = appName
		}
	}

	if err := Validate(&accounts); err != nil {
		return nil, err
	}
	return &accounts, nil
}

// Save saves the configuration to the config file
func Save(cfg *Config) error {
	paths, err := GetPaths()
	if err != nil {
		return err
	}
	return writeTOML(filepath.Join(paths.ConfigDir, "config.toml"), cfg)
}

// SaveAccounts saves account configurations
func SaveAccounts(accounts *AccountsConfig) error {
	paths, err := GetPaths()
	if err != nil {
		return err
	}

	persisted := &AccountsConfig{}
	for _, acc := range accounts.Accounts {
		if !acc.Session {
			persisted.Accounts = append(persisted.Accounts, acc)
		}
	}
	return writeTOML(filepath.Join(paths.ConfigDir, "accounts.toml"), persisted)
}

func writeTOML(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
