package ui

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Varun5711/talentlens/internal/client"
	tea "github.com/charmbracelet/bubbletea"
)

type loginErrorMsg struct {
	err error
}

type LoginModel struct {
	form    form
	loading bool
	err     error
	notice  string
	session *client.SessionManager
}

func NewLoginModel(session *client.SessionManager) *LoginModel {
	return &LoginModel{
		form: newForm(
			field{label: "Email"},
			field{label: "Password", masked: true},
		),
		session: session,
	}
}

func (m *LoginModel) Init() tea.Cmd {
	return nil
}

func loginCmd(s *client.SessionManager, email, password string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.Login(ctx, email, password); err != nil {
			if client.StatusOf(err) == http.StatusForbidden {
				err = errors.New("invalid email or password")
			}
			return loginErrorMsg{err: err}
		}

		profile, err := s.Me(ctx)
		if err != nil {
			return loginErrorMsg{err: err}
		}
		return authenticatedMsg{profile: profile}
	}
}

func (m *LoginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case authenticatedMsg:
		m.loading = false
		m.err = nil
		m.notice = ""
		m.form.reset()
		return m, nil

	case loginErrorMsg:
		m.loading = false
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		if m.loading {
			return m, nil
		}

		if msg.String() != "enter" {
			m.form.handleKey(msg)
			return m, nil
		}

		email, password := m.form.value(0), m.form.value(1)
		if email == "" || password == "" {
			m.err = errors.New("email and password are required")
			return m, nil
		}

		m.loading = true
		m.err = nil
		return m, loginCmd(m.session, email, password)
	}
	return m, nil
}

func (m *LoginModel) View() string {
	body := m.form.view()
	if m.notice != "" && m.err == nil && !m.loading {
		body += centered(WarningStyle.Render(m.notice)) + "\n"
	}
	body += statusLine(m.loading, "🔄 Logging in...", m.err)

	return panel("🔐 LOGIN", "Welcome back! Please sign in to continue.", body,
		"tab switch  •  enter login  •  ctrl+l clear  •  ctrl+s signup  •  ctrl+c quit")
}
