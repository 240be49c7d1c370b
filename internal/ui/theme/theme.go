package theme

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
)

// Theme represents a complete UI theme
type Theme struct {
	Name        string          `toml:"name"`
	Description string          `toml:"description"`
	Colors      ColorsConfig    `toml:"colors"`
	Chat        ChatConfig      `toml:"chat"`
	StatusBar   StatusBarConfig `toml:"statusbar"`
	Tabs        TabsConfig      `toml:"tabs"`
	// NickColors is the palette rooms pick occupant colors from
	NickColors []string `toml:"nick_colors"`
}

// ColorsConfig contains the base color palette
type ColorsConfig struct {
	Primary    string `toml:"primary"`
	Foreground string `toml:"foreground"`
	Background string `toml:"background"`
	Muted      string `toml:"muted"`
	Border     string `toml:"border"`
	Error      string `toml:"error"`
	Warning    string `toml:"warning"`
	Online     string `toml:"online"`
	Away       string `toml:"away"`
	DND        string `toml:"dnd"`
	XA         string `toml:"xa"`
	Offline    string `toml:"offline"`
}

// ChatConfig contains log view styles
type ChatConfig struct {
	MyMessageFg string `toml:"my_message_fg"`
	MessageFg   string `toml:"message_fg"`
	TimestampFg string `toml:"timestamp_fg"`
	InfoFg      string `toml:"info_fg"`
	TopicFg     string `toml:"topic_fg"`
	GroupFg     string `toml:"group_fg"`
}

// StatusBarConfig contains status bar styles
type StatusBarConfig struct {
	Fg         string `toml:"fg"`
	Bg         string `toml:"bg"`
	ModeNormal string `toml:"mode_normal"`
	ModeInsert string `toml:"mode_insert"`
}

// TabsConfig contains tab bar styles
type TabsConfig struct {
	ActiveFg   string `toml:"active_fg"`
	ActiveBg   string `toml:"active_bg"`
	InactiveFg string `toml:"inactive_fg"`
	UnreadFg   string `toml:"unread_fg"`
}

// Styles contains the compiled lipgloss styles for a theme
type Styles struct {
	Base lipgloss.Style

	// Presence styles
	PresenceOnline  lipgloss.Style
	PresenceAway    lipgloss.Style
	PresenceDND     lipgloss.Style
	PresenceXA      lipgloss.Style
	PresenceOffline lipgloss.Style

	// Log styles
	ChatMyMessage lipgloss.Style
	ChatMessage   lipgloss.Style
	ChatTimestamp lipgloss.Style
	ChatInfo      lipgloss.Style
	ChatWarning   lipgloss.Style
	ChatError     lipgloss.Style
	ChatTopic     lipgloss.Style
	ChatNick      lipgloss.Style
	Group         lipgloss.Style

	StatusBar        lipgloss.Style
	StatusModeNormal lipgloss.Style
	StatusModeInsert lipgloss.Style

	TabActive   lipgloss.Style
	TabInactive lipgloss.Style
	TabUnread   lipgloss.Style

	Input lipgloss.Style

	WindowActive   lipgloss.Style
	WindowInactive lipgloss.Style
}

// Nick returns the style of a nick drawn in the given hex color. An empty
// color falls back to ChatNick.
func (s *Styles) Nick(color string) lipgloss.Style {
	if color == "" {
		return s.ChatNick
	}
	return s.ChatNick.Foreground(lipgloss.Color(color))
}

// Manager handles theme loading and switching
type Manager struct {
	themes      map[string]*Theme
	current     *Theme
	currentName string
	styles      *Styles
	themeDirs   []string
}

// NewManager creates a new theme manager. Themes not built in are looked up
// as <name>.toml in themeDirs.
func NewManager(themeDirs ...string) *Manager {
	m := &Manager{
		themes:    make(map[string]*Theme),
		themeDirs: themeDirs,
	}

	m.themes["default"] = DefaultTheme()
	m.themes["nord"] = NordTheme()
	m.themes["gruvbox"] = GruvboxTheme()

	m.current = m.themes["default"]
	m.currentName = "default"
	m.styles = compileStyles(m.current)

	return m
}

// LoadTheme loads a theme from a TOML file. Missing values are taken from
// the default theme.
func (m *Manager) LoadTheme(name string) error {
	for _, dir := range m.themeDirs {
		path := filepath.Join(dir, name+".toml")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		theme := *DefaultTheme()
		theme.NickColors = nil
		if _, err := toml.DecodeFile(path, &theme); err != nil {
			return fmt.Errorf("failed to parse theme file %s: %w", path, err)
		}
		theme.Name = name
		m.themes[name] = &theme
		return nil
	}
	return fmt.Errorf("theme %s not found", name)
}

// SetTheme switches to a different theme
func (m *Manager) SetTheme(name string) error {
	theme, ok := m.themes[name]
	if !ok {
		if err := m.LoadTheme(name); err != nil {
			return err
		}
		theme = m.themes[name]
	}
	m.current = theme
	m.currentName = name
	m.styles = compileStyles(theme)
	return nil
}

// Current returns the current theme
func (m *Manager) Current() *Theme {
	return m.current
}

// CurrentName returns the current theme name
func (m *Manager) CurrentName() string {
	return m.currentName
}

// Styles returns the compiled styles for the current theme
func (m *Manager) Styles() *Styles {
	return m.styles
}

// AvailableThemes returns the sorted names of loaded themes
func (m *Manager) AvailableThemes() []string {
	names := make([]string, 0, len(m.themes))
	for name := range m.themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fg(c string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
}

// compileStyles compiles a theme into lipgloss styles
func compileStyles(t *Theme) *Styles {
	s := &Styles{}

	s.Base = fg(t.Colors.Foreground)

	s.PresenceOnline = fg(t.Colors.Online)
	s.PresenceAway = fg(t.Colors.Away)
	s.PresenceDND = fg(t.Colors.DND)
	s.PresenceXA = fg(t.Colors.XA)
	s.PresenceOffline = fg(t.Colors.Offline)

	s.ChatMyMessage = fg(t.Chat.MyMessageFg)
	s.ChatMessage = fg(t.Chat.MessageFg)
	s.ChatTimestamp = fg(t.Chat.TimestampFg)
	s.ChatInfo = fg(t.Chat.InfoFg).Italic(true)
	s.ChatWarning = fg(t.Colors.Warning)
	s.ChatError = fg(t.Colors.Error).Bold(true)
	s.ChatTopic = fg(t.Chat.TopicFg).Bold(true)
	s.ChatNick = fg(t.Colors.Primary).Bold(true)
	s.Group = fg(t.Chat.GroupFg).Bold(true)

	s.StatusBar = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.StatusBar.Fg)).
		Background(lipgloss.Color(t.StatusBar.Bg))

	s.StatusModeNormal = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Colors.Background)).
		Background(lipgloss.Color(t.StatusBar.ModeNormal)).
		Bold(true).
		Padding(0, 1)

	s.StatusModeInsert = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Colors.Background)).
		Background(lipgloss.Color(t.StatusBar.ModeInsert)).
		Bold(true).
		Padding(0, 1)

	s.TabActive = lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Tabs.ActiveFg)).
		Background(lipgloss.Color(t.Tabs.ActiveBg)).
		Bold(true).
		Padding(0, 1)

	s.TabInactive = fg(t.Tabs.InactiveFg).Padding(0, 1)
	s.TabUnread = fg(t.Tabs.UnreadFg).Bold(true).Padding(0, 1)

	s.Input = fg(t.Colors.Foreground)

	s.WindowActive = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(t.Colors.Primary))

	s.WindowInactive = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(t.Colors.Border))

	return s
}

// DefaultTheme is a dark theme close to the One Dark palette
func DefaultTheme() *Theme {
	return &Theme{
		Name:        "default",
		Description: "Dark theme with soft colors",
		Colors: ColorsConfig{
			Primary:    "#61afef",
			Foreground: "#abb2bf",
			Background: "#282c34",
			Muted:      "#5c6370",
			Border:     "#3e4451",
			Error:      "#e06c75",
			Warning:    "#e5c07b",
			Online:     "#98c379",
			Away:       "#e5c07b",
			DND:        "#e06c75",
			XA:         "#d19a66",
			Offline:    "#5c6370",
		},
		Chat: ChatConfig{
			MyMessageFg: "#abb2bf",
			MessageFg:   "#dcdfe4",
			TimestampFg: "#5c6370",
			InfoFg:      "#56b6c2",
			TopicFg:     "#c678dd",
			GroupFg:     "#61afef",
		},
		StatusBar: StatusBarConfig{
			Fg:         "#abb2bf",
			Bg:         "#21252b",
			ModeNormal: "#61afef",
			ModeInsert: "#98c379",
		},
		Tabs: TabsConfig{
			ActiveFg:   "#282c34",
			ActiveBg:   "#61afef",
			InactiveFg: "#5c6370",
			UnreadFg:   "#e5c07b",
		},
		NickColors: []string{
			"#e06c75", "#98c379", "#e5c07b", "#61afef", "#c678dd", "#56b6c2",
			"#d19a66", "#be5046", "#7ec699", "#f08d49",
		},
	}
}

// NordTheme follows the Nord palette
func NordTheme() *Theme {
	return &Theme{
		Name:        "nord",
		Description: "Arctic, north-bluish palette",
		Colors: ColorsConfig{
			Primary:    "#88c0d0",
			Foreground: "#d8dee9",
			Background: "#2e3440",
			Muted:      "#4c566a",
			Border:     "#434c5e",
			Error:      "#bf616a",
			Warning:    "#ebcb8b",
			Online:     "#a3be8c",
			Away:       "#ebcb8b",
			DND:        "#bf616a",
			XA:         "#d08770",
			Offline:    "#4c566a",
		},
		Chat: ChatConfig{
			MyMessageFg: "#d8dee9",
			MessageFg:   "#eceff4",
			TimestampFg: "#4c566a",
			InfoFg:      "#8fbcbb",
			TopicFg:     "#b48ead",
			GroupFg:     "#81a1c1",
		},
		StatusBar: StatusBarConfig{
			Fg:         "#d8dee9",
			Bg:         "#3b4252",
			ModeNormal: "#88c0d0",
			ModeInsert: "#a3be8c",
		},
		Tabs: TabsConfig{
			ActiveFg:   "#2e3440",
			ActiveBg:   "#88c0d0",
			InactiveFg: "#4c566a",
			UnreadFg:   "#ebcb8b",
		},
		NickColors: []string{
			"#bf616a", "#d08770", "#ebcb8b", "#a3be8c", "#b48ead",
			"#8fbcbb", "#88c0d0", "#81a1c1", "#5e81ac",
		},
	}
}

// GruvboxTheme follows the dark Gruvbox palette
func GruvboxTheme() *Theme {
	return &Theme{
		Name:        "gruvbox",
		Description: "Retro groove colors",
		Colors: ColorsConfig{
			Primary:    "#83a598",
			Foreground: "#ebdbb2",
			Background: "#282828",
			Muted:      "#928374",
			Border:     "#504945",
			Error:      "#fb4934",
			Warning:    "#fabd2f",
			Online:     "#b8bb26",
			Away:       "#fabd2f",
			DND:        "#fb4934",
			XA:         "#fe8019",
			Offline:    "#928374",
		},
		Chat: ChatConfig{
			MyMessageFg: "#d5c4a1",
			MessageFg:   "#ebdbb2",
			TimestampFg: "#928374",
			InfoFg:      "#8ec07c",
			TopicFg:     "#d3869b",
			GroupFg:     "#83a598",
		},
		StatusBar: StatusBarConfig{
			Fg:         "#ebdbb2",
			Bg:         "#3c3836",
			ModeNormal: "#83a598",
			ModeInsert: "#b8bb26",
		},
		Tabs: TabsConfig{
			ActiveFg:   "#282828",
			ActiveBg:   "#83a598",
			InactiveFg: "#928374",
			UnreadFg:   "#fabd2f",
		},
		NickColors: []string{
			"#fb4934", "#b8bb26", "#fabd2f", "#83a598", "#d3869b",
			"#8ec07c", "#fe8019", "#cc241d", "#98971a", "#d79921",
		},
	}
}
