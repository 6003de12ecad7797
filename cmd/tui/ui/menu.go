package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	menuProfile = iota
	menuEditProfile
	menuLogout
)

var menuItems = []string{
	menuProfile:     "View Profile",
	menuEditProfile: "Edit Profile",
	menuLogout:      "Log Out",
}

// MenuModel records the chosen entry in selected until the root model
// consumes it; -1 means nothing chosen.
type MenuModel struct {
	cursor   int
	selected int
}

func NewMenuModel() *MenuModel {
	return &MenuModel{selected: -1}
}

func (m *MenuModel) Init() tea.Cmd {
	return nil
}

func (m *MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		m.cursor = max(m.cursor-1, 0)
	case "down", "j":
		m.cursor = min(m.cursor+1, len(menuItems)-1)
	case "enter":
		m.selected = m.cursor
	}
	return m, nil
}

func (m *MenuModel) View() string {
	rows := make([]string, len(menuItems))
	for i, item := range menuItems {
		if i == m.cursor {
			rows[i] = SelectedItemStyle.Render("> " + item)
		} else {
			rows[i] = ItemStyle.Render("  " + item)
		}
	}

	header := lipgloss.NewStyle().MarginTop(2).MarginBottom(1).
		Render(TitleStyle.Render("TALENTLENS") + " " + SubtitleStyle.Render("Resume Analysis"))

	body := lipgloss.JoinVertical(lipgloss.Center,
		centered(header),
		"",
		centered(BoxStyle.Width(60).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))),
		"",
		centered(InfoStyle.Render("↑/↓ navigate  •  enter select  •  q quit")),
	)

	return lipgloss.NewStyle().
		Width(80).
		Height(20).
		Align(lipgloss.Center, lipgloss.Center).
		Render(body)
}
