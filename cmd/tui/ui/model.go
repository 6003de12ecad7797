package ui

import (
	"context"
	"time"

	"github.com/Varun5711/talentlens/internal/client"
	usermodel "github.com/Varun5711/talentlens/internal/models/user"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type View int

const (
	LoginView View = iota
	SignupView
	MenuView
	ProfileView
)

// authenticatedMsg is sent after a login, a signup or a restored session.
type authenticatedMsg struct {
	profile *usermodel.Profile
}

type sessionExpiredMsg struct{}

// SessionExpiredMsg can be sent from outside the program, e.g. from the
// session manager's expiry callback.
type SessionExpiredMsg = sessionExpiredMsg

type loggedOutMsg struct{}

type Model struct {
	currentView View
	login       *LoginModel
	signup      *SignupModel
	menu        *MenuModel
	profile     *ProfileModel
	session     *client.SessionManager
	width       int
	height      int

	user *usermodel.Profile
}

func NewModel(session *client.SessionManager) Model {
	return Model{
		currentView: LoginView,
		login:       NewLoginModel(session),
		signup:      NewSignupModel(session),
		menu:        NewMenuModel(),
		profile:     NewProfileModel(session),
		session:     session,
	}
}

// bootstrapCmd restores a session from the refresh cookie, if any. Failure
// leaves the user on the login screen without an error.
func bootstrapCmd(s *client.SessionManager) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if !s.Bootstrap(ctx) {
			return nil
		}
		profile, err := s.Me(ctx)
		if err != nil {
			return nil
		}
		return authenticatedMsg{profile: profile}
	}
}

func logoutCmd(s *client.SessionManager) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// local state is cleared regardless of the server's answer
		_ = s.Logout(ctx)
		return loggedOutMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return bootstrapCmd(m.session)
}

func (m Model) authenticated() bool {
	return m.user != nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case authenticatedMsg:
		m.login.Update(msg)
		m.signup.Update(msg)
		m.user = msg.profile
		m.profile.show(msg.profile)
		m.currentView = MenuView
		return m, nil

	case profileLoadedMsg:
		m.user = msg.profile
		updated, cmd := m.profile.Update(msg)
		m.profile = updated.(*ProfileModel)
		return m, cmd

	case sessionExpiredMsg:
		m.user = nil
		m.profile.loading = false
		m.login.notice = "Your session has expired. Please log in again."
		m.currentView = LoginView
		return m, nil

	case loggedOutMsg:
		m.user = nil
		m.login.notice = ""
		m.currentView = LoginView
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			switch m.currentView {
			case MenuView:
				return m, tea.Quit
			case ProfileView:
				if !m.profile.editing {
					m.currentView = MenuView
					return m, nil
				}
			}

		case "ctrl+s":
			if m.currentView == LoginView {
				m.currentView = SignupView
				return m, nil
			} else if m.currentView == SignupView {
				m.currentView = LoginView
				return m, nil
			}
		}
	}

	switch m.currentView {
	case LoginView:
		updated, cmd := m.login.Update(msg)
		m.login = updated.(*LoginModel)
		return m, cmd

	case SignupView:
		updated, cmd := m.signup.Update(msg)
		m.signup = updated.(*SignupModel)
		return m, cmd

	case MenuView:
		updated, cmd := m.menu.Update(msg)
		m.menu = updated.(*MenuModel)
		selected := m.menu.selected
		m.menu.selected = -1

		switch selected {
		case menuProfile:
			m.currentView = ProfileView
			m.profile.loading = true
			return m, fetchProfileCmd(m.session)
		case menuEditProfile:
			m.currentView = ProfileView
			m.profile.startEdit()
		case menuLogout:
			return m, logoutCmd(m.session)
		}
		return m, cmd

	case ProfileView:
		updated, cmd := m.profile.Update(msg)
		m.profile = updated.(*ProfileModel)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	var content string
	switch m.currentView {
	case LoginView:
		content = m.login.View()
	case SignupView:
		content = m.signup.View()
	case MenuView:
		content = m.menu.View()
	case ProfileView:
		content = m.profile.View()
	}

	if !m.authenticated() || m.currentView == LoginView || m.currentView == SignupView {
		return content
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.userBar(), "\n", content)
}

// userBar shows who is signed in above every authenticated screen.
func (m Model) userBar() string {
	who := SuccessStyle.Render(m.user.FullName) + InfoStyle.Render(" <"+m.user.Email+">")
	return lipgloss.NewStyle().
		Width(80).
		Background(BgDark).
		Padding(0, 2).
		Render(who)
}
