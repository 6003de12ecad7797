package ui

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	Primary   = lipgloss.Color("#7C5CFF")
	Secondary = lipgloss.Color("#A99BFF")
	Accent    = lipgloss.Color("#FF7A59")
	Success   = lipgloss.Color("#3DDC97")
	Warning   = lipgloss.Color("#F5C451")
	Error     = lipgloss.Color("#FF5C7A")
	Muted     = lipgloss.Color("#8A8FA3")
	Text      = lipgloss.Color("#F1F0FF")
	BgDark    = lipgloss.Color("#151326")
)

var (
	TitleStyle    = lipgloss.NewStyle().Foreground(Primary).Bold(true).Padding(0, 1)
	SubtitleStyle = lipgloss.NewStyle().Foreground(Secondary).Padding(0, 1)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2).
			MarginTop(1)

	ItemStyle         = lipgloss.NewStyle().Foreground(Text).PaddingLeft(2)
	SelectedItemStyle = ItemStyle.Foreground(Accent).Bold(true)

	InfoStyle    = lipgloss.NewStyle().Foreground(Muted).Italic(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)

	InputStyle = lipgloss.NewStyle().
			Foreground(Text).
			Border(lipgloss.NormalBorder()).
			BorderForeground(Secondary).
			Padding(0, 1)
	FocusedInputStyle = InputStyle.BorderForeground(Accent)

	LabelStyle = lipgloss.NewStyle().Foreground(Secondary).Width(20)
	ValueStyle = lipgloss.NewStyle().Foreground(Text).Bold(true)
)
