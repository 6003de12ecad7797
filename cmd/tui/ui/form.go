package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type field struct {
	label  string
	value  string
	masked bool
}

// form is a minimal multi-field text input shared by the login, signup and
// profile screens.
type form struct {
	fields  []field
	focused int
}

func newForm(fields ...field) form {
	return form{fields: fields}
}

func (f *form) value(i int) string {
	return f.fields[i].value
}

func (f *form) set(i int, v string) {
	f.fields[i].value = v
}

func (f *form) reset() {
	for i := range f.fields {
		f.fields[i].value = ""
	}
	f.focused = 0
}

// handleKey applies an editing key and reports whether it was consumed.
func (f *form) handleKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "tab", "down":
		f.focused = (f.focused + 1) % len(f.fields)
	case "shift+tab", "up":
		f.focused = (f.focused - 1 + len(f.fields)) % len(f.fields)
	case "backspace":
		v := []rune(f.fields[f.focused].value)
		if len(v) > 0 {
			f.fields[f.focused].value = string(v[:len(v)-1])
		}
	case "ctrl+l":
		f.reset()
	default:
		if msg.Type != tea.KeyRunes {
			return false
		}
		f.fields[f.focused].value += string(msg.Runes)
	}
	return true
}

func (f *form) view() string {
	var b strings.Builder
	for i, fl := range f.fields {
		style := InputStyle
		if i == f.focused {
			style = FocusedInputStyle
		}

		shown := fl.value
		if fl.masked {
			shown = strings.Repeat("•", len([]rune(fl.value)))
		}

		row := lipgloss.JoinHorizontal(lipgloss.Left,
			LabelStyle.Width(15).Render(fl.label+":"),
			style.Width(50).Render(shown),
		)
		b.WriteString(centered(row))
		b.WriteString("\n\n")
	}
	return b.String()
}

func centered(s string) string {
	return lipgloss.NewStyle().Width(80).Align(lipgloss.Center).Render(s)
}

func statusLine(loading bool, busy string, err error) string {
	switch {
	case loading:
		return centered(InfoStyle.Render(busy)) + "\n"
	case err != nil:
		return centered(ErrorStyle.Render("❌ "+err.Error())) + "\n"
	default:
		return ""
	}
}

func panel(title, subtitle, body, help string) string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Width(80).Align(lipgloss.Center).MarginTop(2).
		Render(lipgloss.NewStyle().Foreground(Primary).Bold(true).Render(title)))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Width(80).Align(lipgloss.Center).MarginBottom(2).
		Render(lipgloss.NewStyle().Foreground(Muted).Render(subtitle)))
	b.WriteString("\n\n")
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(centered(InfoStyle.Render(help)))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Primary).
		Padding(2, 4).
		Width(76).
		Render(b.String())
}
