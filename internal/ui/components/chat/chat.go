package chat

import (
	"fmt"
	"strings"

	"github.com/meszmate/parley/internal/ui/theme"
	"github.com/meszmate/parley/internal/xmpp/chat"
)

// Model renders the log of the active tab
type Model struct {
	header     string
	lines      []chat.Line
	offset     int // lines scrolled up from the bottom
	width      int
	height     int
	styles     *theme.Styles
	timeFormat string
	timestamps bool
	typing     string
	nickColor  func(nick string) string
}

// New creates a new log view
func New(styles *theme.Styles, timeFormat string, timestamps bool) Model {
	return Model{
		styles:     styles,
		timeFormat: timeFormat,
		timestamps: timestamps,
	}
}

// SetHeader sets the line drawn above the log
func (m Model) SetHeader(header string) Model {
	m.header = header
	return m
}

// SetLines replaces the displayed lines, keeping the scroll position
func (m Model) SetLines(lines []chat.Line) Model {
	m.lines = lines
	if limit := m.maxOffset(); m.offset > limit {
		m.offset = limit
	}
	return m
}

// SetNickColor sets the function that picks nick colors
func (m Model) SetNickColor(fn func(nick string) string) Model {
	m.nickColor = fn
	return m
}

// SetTyping sets the chat state hint shown below the log
func (m Model) SetTyping(hint string) Model {
	m.typing = hint
	return m
}

// SetSize sets the component size
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	return m
}

// ScrollUp scrolls one line towards older lines
func (m Model) ScrollUp(n int) Model {
	m.offset += n
	if limit := m.maxOffset(); m.offset > limit {
		m.offset = limit
	}
	return m
}

// ScrollDown scrolls towards the newest line
func (m Model) ScrollDown(n int) Model {
	m.offset -= n
	if m.offset < 0 {
		m.offset = 0
	}
	return m
}

// ScrollToTop shows the oldest lines
func (m Model) ScrollToTop() Model {
	m.offset = m.maxOffset()
	return m
}

// ScrollToBottom follows new lines again
func (m Model) ScrollToBottom() Model {
	m.offset = 0
	return m
}

// Offset returns how far the view is scrolled up
func (m Model) Offset() int {
	return m.offset
}

// PageSize is the number of log rows that fit in the view
func (m Model) PageSize() int {
	rows := m.height - 2 // header and separator
	if m.typing != "" {
		rows--
	}
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (m Model) maxOffset() int {
	n := len(m.rendered()) - m.PageSize()
	if n < 0 {
		return 0
	}
	return n
}

// rendered returns every row of the log after wrapping
func (m Model) rendered() []string {
	var rows []string
	for _, line := range m.lines {
		rows = append(rows, m.renderLine(line)...)
	}
	return rows
}

// View renders the log
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.ChatTopic.Render(truncate(m.header, m.width-2)))
	b.WriteString("\n")
	b.WriteString(m.styles.ChatTimestamp.Render(strings.Repeat("─", max(m.width-2, 0))))
	b.WriteString("\n")

	rows := m.rendered()
	page := m.PageSize()
	end := len(rows) - m.offset
	if end < 0 {
		end = 0
	}
	start := end - page
	if start < 0 {
		start = 0
	}
	visible := rows[start:end]

	// keep the log anchored to the bottom
	for i := len(visible); i < page; i++ {
		b.WriteString("\n")
	}
	for _, row := range visible {
		b.WriteString(row)
		b.WriteString("\n")
	}

	if m.typing != "" {
		b.WriteString(m.styles.ChatInfo.Render(m.typing))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// renderLine renders a single line, wrapped to the view width
func (m Model) renderLine(line chat.Line) []string {
	prefix := ""
	prefixWidth := 0
	if m.timestamps && !line.Time.IsZero() {
		ts := line.Time.Format(m.timeFormat)
		if line.Delayed {
			ts = line.Time.Format("2006-01-02 " + m.timeFormat)
		}
		prefix = m.styles.ChatTimestamp.Render(ts) + " "
		prefixWidth = len(ts) + 1
	}

	switch line.Kind {
	case chat.LineInfo, chat.LineWarning, chat.LineError:
		style := m.styles.ChatInfo
		if line.Kind == chat.LineWarning {
			style = m.styles.ChatWarning
		} else if line.Kind == chat.LineError {
			style = m.styles.ChatError
		}
		var rows []string
		for i, text := range strings.Split(line.Body, "\n") {
			p := prefix
			if i > 0 {
				p = strings.Repeat(" ", prefixWidth)
			}
			for _, w := range wordWrap(text, m.width-prefixWidth-6) {
				rows = append(rows, p+style.Render("*** "+w))
				p = strings.Repeat(" ", prefixWidth)
			}
		}
		return rows
	}

	nick := line.From
	color := ""
	if m.nickColor != nil {
		color = m.nickColor(nick)
	}
	nickStr := m.styles.Nick(color).Render(nick)
	bodyStyle := m.styles.ChatMessage
	if line.Outgoing {
		bodyStyle = m.styles.ChatMyMessage
	}

	body := line.Body
	if line.Corrected {
		body += " (edited)"
	}

	// /me actions render as "* nick does something"
	if rest, ok := strings.CutPrefix(body, "/me "); ok {
		nickStr = "* " + nickStr
		body = rest
		prefixWidth += 2
	} else {
		nickStr += ":"
		prefixWidth++
	}

	indent := prefixWidth + len(nick) + 1
	width := m.width - indent - 2
	if width < 10 {
		width = 10
	}

	var rows []string
	for i, text := range wordWrap(body, width) {
		if i == 0 {
			rows = append(rows, fmt.Sprintf("%s%s %s", prefix, nickStr, bodyStyle.Render(text)))
			continue
		}
		rows = append(rows, strings.Repeat(" ", indent)+bodyStyle.Render(text))
	}
	return rows
}

// truncate shortens s to at most width runes
func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 {
		return ""
	}
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

// wordWrap wraps text to the specified width
func wordWrap(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var currentLine strings.Builder
	for _, word := range words {
		if currentLine.Len() == 0 {
			currentLine.WriteString(word)
		} else if currentLine.Len()+1+len(word) <= width {
			currentLine.WriteString(" ")
			currentLine.WriteString(word)
		} else {
			lines = append(lines, currentLine.String())
			currentLine.Reset()
			currentLine.WriteString(word)
		}
	}
	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}

	return lines
}
