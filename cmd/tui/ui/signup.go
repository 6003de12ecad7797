package ui

import (
	"context"
	"errors"
	"time"

	"github.com/Varun5711/talentlens/internal/client"
	tea "github.com/charmbracelet/bubbletea"
)

type signupErrorMsg struct {
	err error
}

type SignupModel struct {
	form    form
	loading bool
	err     error
	session *client.SessionManager
}

func NewSignupModel(session *client.SessionManager) *SignupModel {
	return &SignupModel{
		form: newForm(
			field{label: "Full name"},
			field{label: "Email"},
			field{label: "Password", masked: true},
		),
		session: session,
	}
}

func (m *SignupModel) Init() tea.Cmd {
	return nil
}

func signupCmd(s *client.SessionManager, fullName, email, password string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.Register(ctx, email, password, fullName); err != nil {
			return signupErrorMsg{err: err}
		}

		profile, err := s.Me(ctx)
		if err != nil {
			return signupErrorMsg{err: err}
		}
		return authenticatedMsg{profile: profile}
	}
}

func (m *SignupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case authenticatedMsg:
		m.loading = false
		m.err = nil
		m.form.reset()
		return m, nil

	case signupErrorMsg:
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

		name, email, password := m.form.value(0), m.form.value(1), m.form.value(2)
		switch {
		case name == "" || email == "" || password == "":
			m.err = errors.New("all fields are required")
			return m, nil
		case len(password) < 8:
			m.err = errors.New("password must be at least 8 characters")
			return m, nil
		}

		m.loading = true
		m.err = nil
		return m, signupCmd(m.session, name, email, password)
	}
	return m, nil
}

func (m *SignupModel) View() string {
	body := m.form.view() + statusLine(m.loading, "🔄 Creating account...", m.err)

	return panel("✨ SIGN UP", "Create an account to start analysing resumes.", body,
		"tab switch  •  enter sign up  •  ctrl+l clear  •  ctrl+s login  •  ctrl+c quit")
}
