package settings

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tradebot/dashboard/internal/client"
)

func ptr[T any](v T) *T { return &v }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T) Model {
	t.Helper()
	m := New(nil, nil)
	m, _ = m.Update(ConfigLoadedMsg{Config: &client.Configuration{
		UsdtPerTrade:    ptr(10.0),
		TrailingEnabled: ptr(false),
	}})
	return m
}

func TestEditNumericField(t *testing.T) {
	m := loaded(t)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.Typing() {
		t.Fatal("expected the editor to be open")
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m, _ = m.Update(runes("25"))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if m.Typing() {
		t.Error("enter should close the editor")
	}
	if got := m.Draft().UsdtPerTrade; got == nil || *got != 25 {
		t.Errorf("expected draft usdt_per_trade 25, got %v", got)
	}
	if !strings.Contains(m.View(), "*") {
		t.Error("changed fields should be marked")
	}
}

func TestEditRejectsInvalidValue(t *testing.T) {
	m := loaded(t)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m, _ = m.Update(runes("0.5"))
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if cmd == nil {
		t.Error("expected a status clear timer")
	}
	if !m.statusErr || !strings.Contains(m.status, "must be at least") {
		t.Errorf("status = %q", m.status)
	}
	if !m.Typing() {
		t.Error("editor should stay open on invalid input")
	}
	if *m.Draft().UsdtPerTrade != 10 {
		t.Errorf("draft changed to %v", *m.Draft().UsdtPerTrade)
	}
}

func TestToggleBool(t *testing.T) {
	m := loaded(t)
	m, _ = m.Update(runes("j"))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if got := m.Draft().TrailingEnabled; got == nil || !*got {
		t.Errorf("expected trailing enabled, got %v", got)
	}
	if m.Typing() {
		t.Error("toggling should not open the editor")
	}
}

func TestSaveWithoutChanges(t *testing.T) {
	m := loaded(t)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if m.saving {
		t.Error("nothing to save")
	}
	if m.status != noChangesText {
		t.Errorf("status = %q", m.status)
	}
}

func TestSaveSendsChanges(t *testing.T) {
	m := loaded(t)
	m, _ = m.Update(runes("j"))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if !m.saving || cmd == nil {
		t.Fatal("expected a save request")
	}

	m, _ = m.Update(ConfigSavedMsg{Config: &client.Configuration{UsdtPerTrade: ptr(10.0), TrailingEnabled: ptr(true)}})
	if m.saving || m.status != savedText {
		t.Errorf("status = %q saving=%v", m.status, m.saving)
	}
	if len(client.Diff(m.saved, m.draft)) != 0 {
		t.Error("draft should match the saved configuration")
	}
}

func TestStatusClears(t *testing.T) {
	m := loaded(t)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	seq := m.statusSeq

	m, _ = m.Update(clearStatusMsg{seq: seq - 1})
	if m.status == "" {
		t.Error("stale clear should be ignored")
	}
	m, _ = m.Update(clearStatusMsg{seq: seq})
	if m.status != "" {
		t.Errorf("expected status cleared, got %q", m.status)
	}
}

func TestKeysSection(t *testing.T) {
	m := loaded(t)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if !m.Typing() {
		t.Fatal("the keys form should capture typing")
	}

	m, _ = m.Update(runes("short"))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.saving || !m.statusErr {
		t.Errorf("short keys should be rejected, status %q", m.status)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.Typing() {
		t.Error("esc should return to the configuration form")
	}
}

func TestKeysSavedClearsInputs(t *testing.T) {
	m := loaded(t)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m, _ = m.Update(runes("abcdefghijkl"))
	m, _ = m.Update(KeysSavedMsg{})
	if m.apiKey.Value() != "" || m.status != keysSavedText {
		t.Errorf("key=%q status=%q", m.apiKey.Value(), m.status)
	}
}

func TestLoadError(t *testing.T) {
	m := New(nil, nil)
	if !strings.Contains(m.View(), "Loading configuration...") {
		t.Error("expected loading text")
	}
	m, _ = m.Update(ConfigLoadedMsg{Err: &client.RequestError{Status: 500}})
	if !strings.Contains(m.View(), loadErrText) {
		t.Errorf("view = %q", m.View())
	}
}
