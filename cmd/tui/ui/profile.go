package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Varun5711/talentlens/internal/client"
	usermodel "github.com/Varun5711/talentlens/internal/models/user"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type profileLoadedMsg struct {
	profile *usermodel.Profile
	saved   bool
}

type profileErrorMsg struct {
	err error
}

// expiredOr maps a lost session to sessionExpiredMsg so the root model can
// route back to login.
func expiredOr(err error, other tea.Msg) tea.Msg {
	if errors.Is(err, client.ErrSessionExpired) {
		return sessionExpiredMsg{}
	}
	return other
}

func fetchProfileCmd(s *client.SessionManager) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		profile, err := s.Me(ctx)
		if err != nil {
			return expiredOr(err, profileErrorMsg{err: err})
		}
		return profileLoadedMsg{profile: profile}
	}
}

func saveProfileCmd(s *client.SessionManager, req *usermodel.UpdateProfileRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		profile, err := s.UpdateProfile(ctx, req)
		if err != nil {
			return expiredOr(err, profileErrorMsg{err: err})
		}
		return profileLoadedMsg{profile: profile, saved: true}
	}
}

type ProfileModel struct {
	profile *usermodel.Profile
	editing bool
	form    form
	loading bool
	saved   bool
	err     error
	session *client.SessionManager
}

func NewProfileModel(session *client.SessionManager) *ProfileModel {
	return &ProfileModel{
		form: newForm(
			field{label: "Full name"},
			field{label: "Email"},
			field{label: "Title"},
			field{label: "Location"},
		),
		session: session,
	}
}

func (m *ProfileModel) Init() tea.Cmd {
	return nil
}

func (m *ProfileModel) show(p *usermodel.Profile) {
	m.profile = p
	m.editing = false
}

func (m *ProfileModel) startEdit() {
	m.editing = true
	m.saved = false
	m.err = nil
	if m.profile == nil {
		return
	}
	m.form.set(0, m.profile.FullName)
	m.form.set(1, m.profile.Email)
	m.form.set(2, m.profile.Title)
	m.form.set(3, m.profile.Location)
	m.form.focused = 0
}

// changes builds a partial update holding only edited fields.
func (m *ProfileModel) changes() *usermodel.UpdateProfileRequest {
	req := &usermodel.UpdateProfileRequest{}
	if m.profile == nil {
		return req
	}

	diff := func(i int, current string) *string {
		v := strings.TrimSpace(m.form.value(i))
		if v == current {
			return nil
		}
		return &v
	}

	req.FullName = diff(0, m.profile.FullName)
	req.Email = diff(1, m.profile.Email)
	req.Title = diff(2, m.profile.Title)
	req.Location = diff(3, m.profile.Location)
	return req
}

func (m *ProfileModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case profileLoadedMsg:
		m.loading = false
		m.err = nil
		m.saved = msg.saved
		m.show(msg.profile)
		return m, nil

	case profileErrorMsg:
		m.loading = false
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		if m.loading {
			return m, nil
		}

		if !m.editing {
			switch msg.String() {
			case "e":
				m.startEdit()
			case "r":
				m.loading = true
				return m, fetchProfileCmd(m.session)
			}
			return m, nil
		}

		switch msg.String() {
		case "esc":
			m.editing = false
			m.err = nil
		case "enter":
			req := m.changes()
			if req.Empty() {
				m.editing = false
				return m, nil
			}
			m.loading = true
			m.err = nil
			return m, saveProfileCmd(m.session, req)
		default:
			m.form.handleKey(msg)
		}
	}
	return m, nil
}

func (m *ProfileModel) View() string {
	if m.editing {
		body := m.form.view() + statusLine(m.loading, "🔄 Saving...", m.err)
		return panel("✏️  EDIT PROFILE", "Only changed fields are sent.", body,
			"tab switch  •  enter save  •  esc cancel")
	}

	var body string
	switch {
	case m.profile == nil:
		body = statusLine(m.loading, "🔄 Loading profile...", m.err)
	default:
		p := m.profile
		rows := []string{
			profileRow("Name", p.FullName),
			profileRow("Email", p.Email),
			profileRow("Title", p.Title),
			profileRow("Location", p.Location),
			profileRow("Member since", p.CreatedAt.Format("2 Jan 2006")),
			profileRow("Last updated", p.UpdatedAt.Local().Format("2 Jan 2006 15:04")),
		}
		body = centered(BoxStyle.Width(60).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))) + "\n"
		if m.saved {
			body += centered(SuccessStyle.Render("✔ Profile updated")) + "\n"
		}
		body += statusLine(m.loading, "🔄 Refreshing...", m.err)
	}

	return panel("👤 PROFILE", "Your TalentLens account", body,
		"e edit  •  r reload  •  q back  •  ctrl+c quit")
}

func profileRow(label, value string) string {
	if value == "" {
		value = "-"
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, LabelStyle.Render(label), ValueStyle.Render(value))
}
