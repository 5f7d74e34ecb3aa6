package session

import (
	"errors"
	"testing"
	"time"

	"github.com/tradebot/dashboard/internal/credential"
	"github.com/tradebot/dashboard/internal/nav"
	"github.com/tradebot/dashboard/internal/store"
)

var t0 = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func issue(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok, err := credential.Issue(sub, exp, []byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func newTestManager(st store.CredentialStore) (*Manager, *nav.Router) {
	r := nav.NewRouter()
	m := NewManager(st, WithClock(func() time.Time { return t0 }), WithNavigator(r))
	return m, r
}

func TestRestoreValid(t *testing.T) {
	tok := issue(t, "trader@example.com", t0.Add(time.Hour))
	st := store.NewMemoryStore(tok)
	m, _ := newTestManager(st)

	s := m.RestoreFromStorage()
	if !s.Authenticated || s.Subject != "trader@example.com" {
		t.Fatalf("session = %+v", s)
	}
	if m.Credential() != tok {
		t.Error("credential not adopted")
	}
}

func TestRestoreExpiredOrMalformedClearsStorage(t *testing.T) {
	tests := map[string]string{
		"expired":     issue(t, "u", t0.Add(-time.Second)),
		"expires now": issue(t, "u", t0),
		"malformed":   "not-a-token",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			st := store.NewMemoryStore(tok)
			m, _ := newTestManager(st)

			s := m.RestoreFromStorage()
			if s.Authenticated {
				t.Fatal("expected unauthenticated")
			}
			if _, err := st.Load(); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("storage not cleared: %v", err)
			}
		})
	}
}

func TestRestoreEmpty(t *testing.T) {
	m, _ := newTestManager(store.NewMemoryStore(""))
	if m.RestoreFromStorage().Authenticated {
		t.Fatal("expected unauthenticated")
	}
}

func TestLogin(t *testing.T) {
	st := store.NewMemoryStore("")
	m, r := newTestManager(st)

	tok := issue(t, "alice@example.com", t0.Add(24*time.Hour))
	if err := m.Login(tok); err != nil {
		t.Fatalf("Login: %v", err)
	}
	s := m.CurrentSession()
	if !s.Authenticated || s.Subject != "alice@example.com" {
		t.Fatalf("session = %+v", s)
	}
	if !m.IsAuthenticated() {
		t.Error("IsAuthenticated = false")
	}
	if got, _ := st.Load(); got != tok {
		t.Error("credential not persisted")
	}
	if r.Current() != nav.Dashboard {
		t.Errorf("view = %s, want dashboard", r.Current())
	}
}

func TestLoginInvalidForcesLogout(t *testing.T) {
	st := store.NewMemoryStore("")
	m, r := newTestManager(st)
	_ = m.Login(issue(t, "bob", t0.Add(time.Hour)))

	err := m.Login("garbage")
	if !errors.Is(err, credential.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
	if m.IsAuthenticated() {
		t.Error("still authenticated after invalid login")
	}
	if _, err := st.Load(); !errors.Is(err, store.ErrNotFound) {
		t.Error("storage not cleared")
	}
	if r.Current() != nav.Login {
		t.Errorf("view = %s, want login", r.Current())
	}
}

func TestLogoutIdempotent(t *testing.T) {
	m, r := newTestManager(store.NewMemoryStore(""))
	m.Logout()
	m.Logout()
	if m.IsAuthenticated() {
		t.Fatal("authenticated after logout")
	}

	_ = m.Login(issue(t, "carol", t0.Add(time.Hour)))
	m.Logout()
	m.Logout()
	if m.IsAuthenticated() || m.Credential() != "" {
		t.Fatal("logout did not reset state")
	}
	if r.Current() != nav.Login {
		t.Errorf("view = %s, want login", r.Current())
	}
}

func TestListenersSeeEveryTransition(t *testing.T) {
	m, _ := newTestManager(store.NewMemoryStore(""))
	var seen []bool
	m.OnChange(func(s Session) { seen = append(seen, s.Authenticated) })

	_ = m.Login(issue(t, "dave", t0.Add(time.Hour)))
	m.Logout()

	if len(seen) != 2 || !seen[0] || seen[1] {
		t.Errorf("transitions = %v, want [true false]", seen)
	}
}
