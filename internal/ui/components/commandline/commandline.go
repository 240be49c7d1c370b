package commandline

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/meszmate/parley/internal/ui/theme"
)

const maxHistory = 100

// Model is the input line shared by every tab
type Model struct {
	input       []rune
	cursorPos   int
	prompt      string
	width       int
	styles      *theme.Styles
	commands    []string
	nicks       []string
	completions []string
	compIndex   int
	compStart   int
	history     []string
	historyPos  int
	draft       string
}

// New creates a new input line. commands are the names completed after a
// leading slash.
func New(styles *theme.Styles, commands []string) Model {
	return Model{
		styles:     styles,
		prompt:     "> ",
		commands:   commands,
		historyPos: -1,
	}
}

// SetWidth sets the input width
func (m Model) SetWidth(width int) Model {
	m.width = width
	return m
}

// SetNicks sets the nicks offered by completion, most relevant first
func (m Model) SetNicks(nicks []string) Model {
	m.nicks = nicks
	return m
}

// Value returns the current input
func (m Model) Value() string {
	return string(m.input)
}

// SetValue replaces the input and moves the cursor to its end
func (m Model) SetValue(s string) Model {
	m.input = []rune(s)
	m.cursorPos = len(m.input)
	m.completions = nil
	return m
}

// Clear clears the input
func (m Model) Clear() Model {
	return m.SetValue("")
}

// Submit returns the input, records it in the history and clears the line
func (m Model) Submit() (Model, string) {
	line := string(m.input)
	if strings.TrimSpace(line) != "" {
		if n := len(m.history); n == 0 || m.history[n-1] != line {
			m.history = append(m.history, line)
			if len(m.history) > maxHistory {
				m.history = m.history[len(m.history)-maxHistory:]
			}
		}
	}
	m.historyPos = -1
	m.draft = ""
	return m.Clear(), line
}

// HistoryPrev recalls the previous input
func (m Model) HistoryPrev() Model {
	if m.historyPos >= len(m.history)-1 {
		return m
	}
	if m.historyPos == -1 {
		m.draft = string(m.input)
	}
	m.historyPos++
	return m.SetValue(m.history[len(m.history)-1-m.historyPos])
}

// HistoryNext moves towards newer inputs, ending at the unsent draft
func (m Model) HistoryNext() Model {
	switch {
	case m.historyPos > 0:
		m.historyPos--
		return m.SetValue(m.history[len(m.history)-1-m.historyPos])
	case m.historyPos == 0:
		m.historyPos = -1
		return m.SetValue(m.draft)
	}
	return m
}

// Update handles editing keys
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.Type {
	case tea.KeyRunes:
		m = m.insert(key.Runes)

	case tea.KeySpace:
		m = m.insert([]rune{' '})

	case tea.KeyBackspace:
		if m.cursorPos > 0 {
			m.input = append(m.input[:m.cursorPos-1:m.cursorPos-1], m.input[m.cursorPos:]...)
			m.cursorPos--
			m.completions = nil
		}

	case tea.KeyDelete:
		if m.cursorPos < len(m.input) {
			m.input = append(m.input[:m.cursorPos:m.cursorPos], m.input[m.cursorPos+1:]...)
			m.completions = nil
		}

	case tea.KeyLeft:
		if m.cursorPos > 0 {
			m.cursorPos--
		}

	case tea.KeyRight:
		if m.cursorPos < len(m.input) {
			m.cursorPos++
		}

	case tea.KeyHome, tea.KeyCtrlA:
		m.cursorPos = 0

	case tea.KeyEnd, tea.KeyCtrlE:
		m.cursorPos = len(m.input)

	case tea.KeyCtrlU:
		m.input = append([]rune(nil), m.input[m.cursorPos:]...)
		m.cursorPos = 0
		m.completions = nil

	case tea.KeyCtrlW:
		pos := m.cursorPos
		for pos > 0 && m.input[pos-1] == ' ' {
			pos--
		}
		for pos > 0 && m.input[pos-1] != ' ' {
			pos--
		}
		m.input = append(m.input[:pos:pos], m.input[m.cursorPos:]...)
		m.cursorPos = pos
		m.completions = nil
	}
	return m, nil
}

func (m Model) insert(r []rune) Model {
	input := make([]rune, 0, len(m.input)+len(r))
	input = append(input, m.input[:m.cursorPos]...)
	input = append(input, r...)
	m.input = append(input, m.input[m.cursorPos:]...)
	m.cursorPos += len(r)
	m.completions = nil
	return m
}

// Complete completes the word before the cursor. Repeated calls cycle
// through the candidates.
func (m Model) Complete() Model {
	if m.completions == nil {
		m.compStart = m.wordStart()
		m.completions = m.candidates(string(m.input[m.compStart:m.cursorPos]))
		m.compIndex = 0
	} else {
		m.compIndex = (m.compIndex + 1) % len(m.completions)
	}
	if len(m.completions) == 0 {
		m.completions = nil
		return m
	}

	rest := m.input[m.cursorPos:]
	word := []rune(m.completions[m.compIndex])
	input := make([]rune, 0, m.compStart+len(word)+len(rest))
	input = append(input, m.input[:m.compStart]...)
	input = append(input, word...)
	m.cursorPos = len(input)
	m.input = append(input, rest...)
	return m
}

// Completions returns the candidates of the running completion
func (m Model) Completions() []string {
	return m.completions
}

func (m Model) wordStart() int {
	pos := m.cursorPos
	for pos > 0 && m.input[pos-1] != ' ' {
		pos--
	}
	return pos
}

// candidates lists completions for prefix. A slash at the start of the line
// completes command names, any other word completes nicks. A nick at the
// start of the line is followed by a colon as an address.
func (m Model) candidates(prefix string) []string {
	var out []string
	if m.compStart == 0 && strings.HasPrefix(prefix, "/") {
		for _, name := range m.commands {
			if strings.HasPrefix(name, prefix[1:]) {
				out = append(out, "/"+name+" ")
			}
		}
		return out
	}

	lower := strings.ToLower(prefix)
	for _, nick := range m.nicks {
		if !strings.HasPrefix(strings.ToLower(nick), lower) {
			continue
		}
		if m.compStart == 0 {
			out = append(out, nick+": ")
		} else {
			out = append(out, nick+" ")
		}
	}
	return out
}

// View renders the input line
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	before := string(m.input[:m.cursorPos])
	cursorChar := " "
	after := ""
	if m.cursorPos < len(m.input) {
		cursorChar = string(m.input[m.cursorPos])
		after = string(m.input[m.cursorPos+1:])
	}
	cursor := lipgloss.NewStyle().Reverse(true).Render(cursorChar)

	var hint string
	if len(m.completions) > 1 {
		hint = m.styles.ChatTimestamp.Render(" (" + strings.Join(trimAll(m.completions), " | ") + ")")
	}
	return m.styles.Input.Render(m.prompt + before + cursor + after + hint)
}

func trimAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.TrimRight(w, ": ")
	}
	return out
}
