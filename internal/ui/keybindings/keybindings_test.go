package keybindings

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestSingleKeys(t *testing.T) {
	m := NewManager()
	assert.Equal(t, ActionScrollDown, m.HandleKey(runes("j")))
	assert.Equal(t, ActionNextTab, m.HandleKey(tea.KeyMsg{Type: tea.KeyTab}))
	assert.Equal(t, ActionQuit, m.HandleKey(tea.KeyMsg{Type: tea.KeyCtrlC}))
	assert.Equal(t, ActionTab3, m.HandleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("3"), Alt: true}))
}

func TestMultiKeyBindings(t *testing.T) {
	m := NewManager()
	assert.Equal(t, ActionNone, m.HandleKey(runes("g")))
	assert.Equal(t, ActionScrollTop, m.HandleKey(runes("g")))

	assert.Equal(t, ActionNone, m.HandleKey(runes("g")))
	assert.Equal(t, ActionPrevTab, m.HandleKey(runes("T")))

	// a broken sequence still honours the last key
	assert.Equal(t, ActionNone, m.HandleKey(runes("g")))
	assert.Equal(t, ActionScrollDown, m.HandleKey(runes("j")))
}

func TestModes(t *testing.T) {
	m := NewManager()
	assert.Equal(t, "NORMAL", m.Mode().String())
	m.SetMode(ModeInsert)
	assert.Equal(t, "INSERT", m.Mode().String())

	// letters are text in insert mode
	assert.Equal(t, ActionNone, m.HandleKey(runes("j")))
	assert.Equal(t, ActionSubmit, m.HandleKey(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Equal(t, ActionExitMode, m.HandleKey(tea.KeyMsg{Type: tea.KeyEscape}))
}

func TestBindAndUnbind(t *testing.T) {
	m := NewManager()
	m.Bind(ModeNormal, "x", ActionCloseTab)
	assert.Equal(t, ActionCloseTab, m.HandleKey(runes("x")))
	m.Unbind(ModeNormal, "x")
	assert.Equal(t, ActionNone, m.HandleKey(runes("x")))
}

func TestTabNumber(t *testing.T) {
	n, ok := TabNumber(ActionTab1)
	assert.True(t, ok)
	assert.Equal(t, 0, n)
	n, ok = TabNumber(ActionTab10)
	assert.True(t, ok)
	assert.Equal(t, 9, n)
	_, ok = TabNumber(ActionQuit)
	assert.False(t, ok)
}

func TestTypedWordsAreNotKeyNames(t *testing.T) {
	m := NewManager()
	m.SetMode(ModeInsert)
	for _, r := range "down enter" {
		assert.Equal(t, ActionNone, m.HandleKey(runes(string(r))))
	}
	assert.Equal(t, ActionHistoryNext, m.HandleKey(tea.KeyMsg{Type: tea.KeyDown}))
}
