package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"

	"github.com/meszmate/parley/internal/app"
	"github.com/meszmate/parley/internal/config"
	"github.com/meszmate/parley/internal/logging"
	"github.com/meszmate/parley/internal/storage/sqlite"
	"github.com/meszmate/parley/internal/ui"
	"github.com/meszmate/parley/internal/ui/theme"
	"github.com/meszmate/parley/internal/xmpp"
	"github.com/meszmate/parley/pkg/plugin"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("parley", pflag.ContinueOnError)
	account := flags.StringP("account", "a", "", "JID of the account to use (default: general.account or the first one)")
	level := flags.StringP("log-level", "l", "", "override logging.level")
	offline := flags.Bool("offline", false, "start without connecting")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *level != "" {
		cfg.Logging.Level = *level
	}

	accounts, err := config.LoadAccounts()
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}
	pick := *account
	if pick == "" {
		pick = cfg.General.Account
	}
	acc, ok := accounts.Find(pick)
	if !ok {
		return errors.New("no account configured, add one to accounts.toml")
	}
	if acc.Password == "" {
		acc.Password = os.Getenv("PARLEY_PASSWORD")
	}

	if err := logging.Init(logging.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
	}); err != nil {
		return err
	}
	defer logging.Close()
	logging.Info("Starting parley for %s", acc.JID)

	opts := app.Options{Config: cfg, Account: acc, Bus: app.NewEventBus()}

	// without the database parley still runs, only bookmarks and the roster
	// cache are lost
	if db, err := sqlite.New(cfg.General.DataDir); err != nil {
		logging.Error("Local storage disabled: %v", err)
	} else {
		defer db.Close()
		if cfg.Storage.VacuumOnStartup {
			if err := db.Vacuum(); err != nil {
				logging.Warn("Vacuum failed: %v", err)
			}
		}
		opts.Store = db
	}

	themes := theme.NewManager(filepath.Join(cfg.General.DataDir, "themes"))
	if err := themes.SetTheme(cfg.UI.Theme); err != nil {
		logging.Warn("Theme %s: %v", cfg.UI.Theme, err)
	}
	if len(cfg.MUC.NickColors) == 0 {
		cfg.MUC.NickColors = themes.Current().NickColors
	}

	client, err := xmpp.NewClient(xmpp.ClientConfig{
		JID:      acc.JID,
		Password: acc.Password,
		Server:   acc.Server,
		Port:     acc.Port,
		Resource: acc.Resource,
	})
	if err != nil {
		return err
	}
	opts.Transport = client

	application, err := app.New(opts)
	if err != nil {
		return err
	}
	defer application.Close()

	host := plugin.NewHost(cfg.Plugins.PluginDir, hclog.New(&hclog.LoggerOptions{
		Name:   "plugins",
		Output: logging.Default().Writer(),
		Level:  hclog.LevelFromString(strings.TrimSuffix(cfg.Logging.Level, "ing")),
	}))
	if err := host.LoadAll(cfg.Plugins.Enabled); err != nil {
		logging.Warn("Plugins: %v", err)
	}
	defer host.UnloadAll()
	forwardToPlugins(opts.Bus, host, application.Room)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error("Event loop stopped: %v", err)
		}
	}()

	if !*offline && (acc.AutoConnect || cfg.General.AutoConnect) {
		go func() {
			if err := application.Connect(ctx); err != nil {
				logging.Warn("Connect failed: %v", err)
			}
		}()
	}

	p := tea.NewProgram(ui.NewModel(ctx, application, themes), tea.WithAltScreen())
	ui.Forward(p, opts.Bus)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
