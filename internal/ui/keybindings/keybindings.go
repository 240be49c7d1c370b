package keybindings

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Mode represents the current input mode
type Mode int

const (
	// ModeNormal moves between tabs and scrolls
	ModeNormal Mode = iota
	// ModeInsert types into the input line
	ModeInsert
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "NORMAL"
	case ModeInsert:
		return "INSERT"
	default:
		return "UNKNOWN"
	}
}

// Action represents a keybinding action
type Action int

const (
	ActionNone Action = iota

	// Scrolling the log
	ActionScrollUp
	ActionScrollDown
	ActionPageUp
	ActionPageDown
	ActionScrollTop
	ActionScrollBottom

	// Mode switching
	ActionEnterInsert
	ActionEnterCommand
	ActionExitMode

	// Tabs
	ActionNextTab
	ActionPrevTab
	ActionCloseTab
	ActionTab1
	ActionTab2
	ActionTab3
	ActionTab4
	ActionTab5
	ActionTab6
	ActionTab7
	ActionTab8
	ActionTab9
	ActionTab10

	// Input line
	ActionSubmit
	ActionComplete
	ActionHistoryPrev
	ActionHistoryNext

	// UI
	ActionToggleRoster
	ActionToggleOccupants
	ActionQuit
)

// Manager handles keybindings and mode management
type Manager struct {
	mode        Mode
	bindings    map[Mode]map[string]Action
	pendingKeys string
}

// NewManager creates a new keybinding manager
func NewManager() *Manager {
	m := &Manager{
		mode:     ModeNormal,
		bindings: make(map[Mode]map[string]Action),
	}
	m.setupDefaultBindings()
	return m
}

// setupDefaultBindings sets up the default vim-like keybindings
func (m *Manager) setupDefaultBindings() {
	m.bindings[ModeNormal] = map[string]Action{
		"j":      ActionScrollDown,
		"k":      ActionScrollUp,
		"down":   ActionScrollDown,
		"up":     ActionScrollUp,
		"ctrl+b": ActionPageUp,
		"ctrl+f": ActionPageDown,
		"pgup":   ActionPageUp,
		"pgdown": ActionPageDown,
		"gg":     ActionScrollTop,
		"G":      ActionScrollBottom,

		"i":     ActionEnterInsert,
		"a":     ActionEnterInsert,
		"enter": ActionEnterInsert,
		":":     ActionEnterCommand,
		"/":     ActionEnterCommand,

		"tab":       ActionNextTab,
		"shift+tab": ActionPrevTab,
		"gt":        ActionNextTab,
		"gT":        ActionPrevTab,
		"l":         ActionNextTab,
		"h":         ActionPrevTab,
		"q":         ActionCloseTab,
		"alt+1":     ActionTab1,
		"alt+2":     ActionTab2,
		"alt+3":     ActionTab3,
		"alt+4":     ActionTab4,
		"alt+5":     ActionTab5,
		"alt+6":     ActionTab6,
		"alt+7":     ActionTab7,
		"alt+8":     ActionTab8,
		"alt+9":     ActionTab9,
		"alt+0":     ActionTab10,

		"ctrl+r": ActionToggleRoster,
		"ctrl+o": ActionToggleOccupants,
		"ctrl+c": ActionQuit,
		"ZZ":     ActionQuit,
	}

	m.bindings[ModeInsert] = map[string]Action{
		"escape": ActionExitMode,
		"enter":  ActionSubmit,
		"tab":    ActionComplete,
		"up":     ActionHistoryPrev,
		"down":   ActionHistoryNext,
		"pgup":   ActionPageUp,
		"pgdown": ActionPageDown,
		"alt+1":  ActionTab1,
		"alt+2":  ActionTab2,
		"alt+3":  ActionTab3,
		"alt+4":  ActionTab4,
		"alt+5":  ActionTab5,
		"alt+6":  ActionTab6,
		"alt+7":  ActionTab7,
		"alt+8":  ActionTab8,
		"alt+9":  ActionTab9,
		"alt+0":  ActionTab10,
		"ctrl+n": ActionNextTab,
		"ctrl+p": ActionPrevTab,
		"ctrl+c": ActionQuit,
	}
}

// Mode returns the current mode
func (m *Manager) Mode() Mode {
	return m.mode
}

// SetMode sets the current mode
func (m *Manager) SetMode(mode Mode) {
	m.mode = mode
	m.pendingKeys = ""
}

// HandleKey maps a key to an action. Plain letters that start a multi-key
// binding such as "gg" return ActionNone until the binding completes or can
// no longer match.
func (m *Manager) HandleKey(msg tea.KeyMsg) Action {
	key := keyToString(msg)
	if msg.Type != tea.KeyRunes || msg.Alt || len(msg.Runes) != 1 {
		m.pendingKeys = ""
		return m.bindings[m.mode][key]
	}

	seq := m.pendingKeys + key
	if action, ok := m.bindings[m.mode][seq]; ok && (seq == key || isSequence(seq)) {
		m.pendingKeys = ""
		return action
	}
	if m.hasSequencePrefix(seq) {
		m.pendingKeys = seq
		return ActionNone
	}

	// a stale prefix must not swallow a single-key binding
	m.pendingKeys = ""
	if action, ok := m.bindings[m.mode][key]; ok {
		return action
	}
	if m.hasSequencePrefix(key) {
		m.pendingKeys = key
	}
	return ActionNone
}

// named are the key names keyToString produces for keys other than runes
var named = map[string]bool{
	"space": true, "enter": true, "backspace": true, "tab": true, "shift+tab": true,
	"escape": true, "up": true, "down": true, "left": true, "right": true,
	"pgup": true, "pgdown": true, "home": true, "end": true, "delete": true,
}

// isSequence reports whether a binding is typed as several plain letters
func isSequence(binding string) bool {
	return len(binding) > 1 && !named[binding] && !strings.Contains(binding, "+")
}

func (m *Manager) hasSequencePrefix(keys string) bool {
	for binding := range m.bindings[m.mode] {
		if isSequence(binding) && strings.HasPrefix(binding, keys) && binding != keys {
			return true
		}
	}
	return false
}

// Bind adds or updates a key binding
func (m *Manager) Bind(mode Mode, key string, action Action) {
	if m.bindings[mode] == nil {
		m.bindings[mode] = make(map[string]Action)
	}
	m.bindings[mode][key] = action
}

// Unbind removes a key binding
func (m *Manager) Unbind(mode Mode, key string) {
	if m.bindings[mode] != nil {
		delete(m.bindings[mode], key)
	}
}

// TabNumber returns the zero-based tab index of a direct tab action
func TabNumber(a Action) (int, bool) {
	if a >= ActionTab1 && a <= ActionTab10 {
		return int(a - ActionTab1), true
	}
	return 0, false
}

// keyToString converts a tea.KeyMsg to a string representation
func keyToString(msg tea.KeyMsg) string {
	switch msg.Type {
	case tea.KeyRunes:
		if msg.Alt {
			return "alt+" + string(msg.Runes)
		}
		return string(msg.Runes)
	case tea.KeySpace:
		return "space"
	case tea.KeyEnter:
		return "enter"
	case tea.KeyBackspace:
		return "backspace"
	case tea.KeyTab:
		return "tab"
	case tea.KeyShiftTab:
		return "shift+tab"
	case tea.KeyEscape:
		return "escape"
	case tea.KeyUp:
		return "up"
	case tea.KeyDown:
		return "down"
	case tea.KeyLeft:
		return "left"
	case tea.KeyRight:
		return "right"
	case tea.KeyPgUp:
		return "pgup"
	case tea.KeyPgDown:
		return "pgdown"
	default:
		return msg.String()
	}
}
