package status

import (
	"strings"
	"testing"

	"github.com/tradebot/dashboard/internal/nav"
)

func TestViewLoggedOut(t *testing.T) {
	m := New()
	m.Width = 100
	out := m.View()
	if !strings.Contains(out, "Trading Bot") {
		t.Errorf("expected app title:\n%s", out)
	}
	if !strings.Contains(out, "feed idle") {
		t.Errorf("expected feed state:\n%s", out)
	}
	if strings.Contains(out, "Signals") {
		t.Error("tabs should be hidden without a session")
	}
}

func TestViewLoggedIn(t *testing.T) {
	m := Model{User: "me@example.com", FeedState: "open", Current: nav.Signals, Width: 120}
	out := m.View()
	for _, want := range []string{"Dashboard", "Signals", "Positions", "Settings", "me@example.com", "● feed open"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "retrying") {
		t.Error("unexpected retry marker")
	}

	m.FeedState = "closed"
	m.Retrying = true
	if out := m.View(); !strings.Contains(out, "(retrying)") {
		t.Errorf("expected retry marker:\n%s", out)
	}
}
