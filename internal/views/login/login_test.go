package login

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tradebot/dashboard/internal/nav"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestSubmitRequiresBothFields(t *testing.T) {
	m := New(nil, nil)
	m, _ = m.Update(runes("me@example.com"))
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("expected no request without a password")
	}
	if !strings.Contains(m.View(), "Email and password are required.") {
		t.Errorf("view = %q", m.View())
	}
}

func TestSubmitStartsRequest(t *testing.T) {
	m := New(nil, nil)
	m, _ = m.Update(runes("me@example.com"))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m, _ = m.Update(runes("password123"))
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a login command")
	}
	if !m.submitting {
		t.Error("expected submitting state")
	}
	if !strings.Contains(m.View(), "Logging in...") {
		t.Errorf("view = %q", m.View())
	}

	// Keys are ignored while the request is in flight.
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("expected no second request")
	}
}

func TestResultMessages(t *testing.T) {
	m := New(nil, nil)
	m.submitting = true

	failed, _ := m.Update(ResultMsg{Err: errors.New("401")})
	if failed.submitting || failed.err != FailedText {
		t.Errorf("failed state: submitting=%v err=%q", failed.submitting, failed.err)
	}

	ok, _ := m.Update(ResultMsg{Token: "tok"})
	if ok.submitting || ok.err != "" {
		t.Errorf("ok state: submitting=%v err=%q", ok.submitting, ok.err)
	}
}

func TestRegisterShortcut(t *testing.T) {
	m := New(nil, nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	if cmd == nil {
		t.Fatal("expected a navigation command")
	}
	if msg, ok := cmd().(nav.NavigateMsg); !ok || msg.View != nav.Register {
		t.Errorf("expected navigate to register, got %#v", cmd())
	}
}

func TestReset(t *testing.T) {
	m := New(nil, nil)
	m, _ = m.Update(runes("me@example.com"))
	m.SetError(FailedText)
	m.Reset()
	if m.email.Value() != "" || m.err != "" || !m.email.Focused() {
		t.Errorf("form not reset: email=%q err=%q", m.email.Value(), m.err)
	}
}
