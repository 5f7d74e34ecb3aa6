package register

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tradebot/dashboard/internal/client"
	"github.com/tradebot/dashboard/internal/nav"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func fill(m Model, email, password string) Model {
	m, _ = m.Update(runes(email))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m, _ = m.Update(runes(password))
	return m
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		want     string
	}{
		{"missing email", "", "password123", "Email is required."},
		{"short password", "me@example.com", "short", "Password must be at least 8 characters long."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := fill(New(nil, nil), tt.email, tt.password)
			m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
			if cmd != nil {
				t.Error("expected no request")
			}
			if m.err != tt.want {
				t.Errorf("expected %q, got %q", tt.want, m.err)
			}
		})
	}
}

func TestSubmit(t *testing.T) {
	m := fill(New(nil, nil), "me@example.com", "password123")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil || !m.submitting {
		t.Fatal("expected a register request")
	}
	if !strings.Contains(m.View(), "Registering...") {
		t.Errorf("view = %q", m.View())
	}
}

func TestFailureShowsDetail(t *testing.T) {
	m := New(nil, nil)
	m, _ = m.Update(ResultMsg{Err: &client.RequestError{Status: 400, Detail: "Email already registered"}})
	if m.err != "Email already registered" {
		t.Errorf("err = %q", m.err)
	}
	m, _ = m.Update(ResultMsg{Err: &client.RequestError{Status: 500}})
	if m.err != fallbackText {
		t.Errorf("err = %q", m.err)
	}
}

func TestSuccessSchedulesRedirect(t *testing.T) {
	m := fill(New(nil, nil), "me@example.com", "password123")
	m, cmd := m.Update(ResultMsg{})
	if cmd == nil {
		t.Fatal("expected a redirect timer")
	}
	if m.success != successText {
		t.Errorf("success = %q", m.success)
	}
	if m.email.Value() != "" || m.password.Value() != "" {
		t.Error("expected the form to be cleared")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("keys are ignored after success")
	}
}

func TestBackToLogin(t *testing.T) {
	_, cmd := New(nil, nil).Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("expected a navigation command")
	}
	if msg, ok := cmd().(nav.NavigateMsg); !ok || msg.View != nav.Login {
		t.Errorf("expected navigate to login, got %#v", cmd())
	}
}
