// Package login provides the email/password sign-in form.
package login

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tradebot/dashboard/internal/client"
	"github.com/tradebot/dashboard/internal/nav"
	"github.com/tradebot/dashboard/internal/theme"
)

// FailedText is shown for any rejected login.
const FailedText = "Login failed. Please check your credentials."

// ResultMsg carries the outcome of the login request. The app adopts
// Token into the session when Err is nil. A 401 here means bad
// credentials, not an expired session.
type ResultMsg struct {
	Token string
	Err   error
}

// KeyMap holds the form key bindings.
type KeyMap struct {
	Next     key.Binding
	Submit   key.Binding
	Register key.Binding
}

// DefaultKeyMap returns the default form bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Next: key.NewBinding(
			key.WithKeys("tab", "shift+tab", "up", "down"),
			key.WithHelp("tab", "next field"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "login"),
		),
		Register: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "register"),
		),
	}
}

// Model is the login form.
type Model struct {
	ctx  context.Context
	http *client.HTTPClient
	keys KeyMap

	email    textinput.Model
	password textinput.Model
	spin     spinner.Model

	submitting bool
	err        string
	width      int
}

// New creates an empty login form focused on the email field.
func New(ctx context.Context, http *client.HTTPClient) Model {
	email := textinput.New()
	email.Prompt = "Email     "
	email.Placeholder = "you@example.com"
	email.CharLimit = 254
	email.Focus()

	pw := textinput.New()
	pw.Prompt = "Password  "
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'

	return Model{
		ctx:      ctx,
		http:     http,
		keys:     DefaultKeyMap(),
		email:    email,
		password: pw,
		spin:     spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

// Reset clears the form, e.g. after logout.
func (m *Model) Reset() {
	m.email.Reset()
	m.password.Reset()
	m.email.Focus()
	m.password.Blur()
	m.submitting = false
	m.err = ""
}

// SetError shows msg under the form.
func (m *Model) SetError(msg string) {
	m.submitting = false
	m.err = msg
}

// SetWidth updates the render width.
func (m *Model) SetWidth(w int) { m.width = w }

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ResultMsg:
		m.submitting = false
		if msg.Err != nil {
			m.err = FailedText
		} else {
			m.password.Reset()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.submitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.submitting {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Register):
			return m, nav.To(nav.Register)
		case key.Matches(msg, m.keys.Next):
			m.toggleFocus()
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

func (m *Model) toggleFocus() {
	if m.email.Focused() {
		m.email.Blur()
		m.password.Focus()
		return
	}
	m.password.Blur()
	m.email.Focus()
}

func (m Model) submit() (Model, tea.Cmd) {
	email := strings.TrimSpace(m.email.Value())
	pw := m.password.Value()
	if email == "" || pw == "" {
		m.err = "Email and password are required."
		return m, nil
	}
	m.err = ""
	m.submitting = true
	return m, tea.Batch(m.spin.Tick, doLogin(m.ctx, m.http, email, pw))
}

// View renders the form.
func (m Model) View() string {
	title := theme.StyleHeader.Render("Login")

	lines := []string{title, "", m.email.View(), m.password.View(), ""}
	switch {
	case m.submitting:
		lines = append(lines, m.spin.View()+" Logging in...")
	case m.err != "":
		lines = append(lines, theme.StyleError.Render(m.err))
	}
	lines = append(lines, "",
		theme.StyleDimmed.Render("Don't have an account? ctrl+r to register"),
		theme.StyleDimmed.Render("tab: next field  enter: login  ctrl+c: quit"))

	box := theme.StyleCard.Padding(1, 3).Width(56).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	if m.width > 0 {
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Center, box)
	}
	return box
}

func doLogin(ctx context.Context, h *client.HTTPClient, email, password string) tea.Cmd {
	return func() tea.Msg {
		tok, err := h.Login(ctx, email, password)
		return ResultMsg{Token: tok, Err: err}
	}
}
