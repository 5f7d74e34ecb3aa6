// Package register provides the account sign-up form.
package register

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tradebot/dashboard/internal/client"
	"github.com/tradebot/dashboard/internal/nav"
	"github.com/tradebot/dashboard/internal/theme"
)

// RedirectDelay is how long the success message shows before returning to
// the login form.
const RedirectDelay = 2 * time.Second

const (
	successText  = "Registration successful! Redirecting to login..."
	fallbackText = "Registration failed. Please try again."
)

// ResultMsg is returned after the register request.
type ResultMsg struct{ Err error }

// KeyMap holds the form key bindings.
type KeyMap struct {
	Next   key.Binding
	Submit key.Binding
	Back   key.Binding
}

// DefaultKeyMap returns the default form bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Next:   key.NewBinding(key.WithKeys("tab", "shift+tab", "up", "down"), key.WithHelp("tab", "next field")),
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "register")),
		Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back to login")),
	}
}

// Model is the sign-up form.
type Model struct {
	ctx  context.Context
	http *client.HTTPClient
	keys KeyMap

	email    textinput.Model
	password textinput.Model

	submitting bool
	err        string
	success    string
	width      int
}

// New creates an empty sign-up form.
func New(ctx context.Context, http *client.HTTPClient) Model {
	email := textinput.New()
	email.Prompt = "Email     "
	email.Placeholder = "you@example.com"
	email.CharLimit = 254
	email.Focus()

	pw := textinput.New()
	pw.Prompt = "Password  "
	pw.Placeholder = fmt.Sprintf("at least %d characters", client.MinPasswordLength)
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'

	return Model{ctx: ctx, http: http, keys: DefaultKeyMap(), email: email, password: pw}
}

// SetWidth updates the render width.
func (m *Model) SetWidth(w int) { m.width = w }

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ResultMsg:
		m.submitting = false
		if msg.Err != nil {
			m.err = client.Message(msg.Err, fallbackText)
			return m, nil
		}
		m.success = successText
		m.email.Reset()
		m.password.Reset()
		return m, tea.Tick(RedirectDelay, func(time.Time) tea.Msg {
			return nav.NavigateMsg{View: nav.Login}
		})

	case tea.KeyMsg:
		if m.submitting || m.success != "" {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, nav.To(nav.Login)
		case key.Matches(msg, m.keys.Next):
			if m.email.Focused() {
				m.email.Blur()
				m.password.Focus()
			} else {
				m.password.Blur()
				m.email.Focus()
			}
			return m, nil
		case key.Matches(msg, m.keys.Submit):
			return m.submit()
		}
	}

	var cmd tea.Cmd
	if m.email.Focused() {
		m.email, cmd = m.email.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m Model) submit() (Model, tea.Cmd) {
	m.err = ""
	email := strings.TrimSpace(m.email.Value())
	pw := m.password.Value()
	if email == "" {
		m.err = "Email is required."
		return m, nil
	}
	if len(pw) < client.MinPasswordLength {
		m.err = fmt.Sprintf("Password must be at least %d characters long.", client.MinPasswordLength)
		return m, nil
	}
	m.submitting = true
	return m, func() tea.Msg {
		return ResultMsg{Err: m.http.Register(m.ctx, email, pw)}
	}
}

// View renders the form.
func (m Model) View() string {
	lines := []string{theme.StyleHeader.Render("Register"), "", m.email.View(), m.password.View(), ""}
	switch {
	case m.submitting:
		lines = append(lines, theme.StyleDimmed.Render("Registering..."))
	case m.success != "":
		lines = append(lines, theme.StyleSuccess.Render(m.success))
	case m.err != "":
		lines = append(lines, theme.StyleError.Render(m.err))
	}
	lines = append(lines, "", theme.StyleDimmed.Render("Already have an account? esc to login"))

	box := theme.StyleCard.Padding(1, 3).Width(56).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	if m.width > 0 {
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Center, box)
	}
	return box
}
