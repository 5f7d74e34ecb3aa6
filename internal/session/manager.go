// Package session owns the authentication credential and the derived
// authenticated/unauthenticated state of the dashboard.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tradebot/dashboard/internal/credential"
	"github.com/tradebot/dashboard/internal/nav"
	"github.com/tradebot/dashboard/internal/store"
)

// Session is derived from the credential and recomputed on every change.
type Session struct {
	Subject       string
	Authenticated bool
}

// Navigator receives the view changes that login and logout trigger.
type Navigator interface {
	Navigate(v nav.View)
}

// Listener is called synchronously after every state transition.
type Listener func(Session)

// Manager is the only writer of the credential. It is meant to be driven
// from the UI loop; only Credential may be called from other goroutines.
type Manager struct {
	store     store.CredentialStore
	nav       Navigator
	now       func() time.Time
	listeners []Listener

	mu         sync.RWMutex
	credential string

	session   Session
	expiresAt time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithNavigator sets the navigation collaborator.
func WithNavigator(n Navigator) Option {
	return func(m *Manager) { m.nav = n }
}

// NewManager creates a Manager in the unauthenticated state.
func NewManager(st store.CredentialStore, opts ...Option) *Manager {
	m := &Manager{
		store: st,
		now:   time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// OnChange registers fn to run after each transition.
func (m *Manager) OnChange(fn Listener) {
	m.listeners = append(m.listeners, fn)
}

// RestoreFromStorage loads a previously persisted credential. Expired,
// malformed or unreadable credentials leave the manager unauthenticated
// and are removed from storage. It never fails.
func (m *Manager) RestoreFromStorage() Session {
	tok, err := m.store.Load()
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Msg("session: stored credential unreadable")
			m.clearStore()
		}
		m.transition("", credential.Claims{})
		return m.session
	}

	claims, err := credential.Validate(tok, m.now())
	if err != nil {
		log.Info().Err(err).Msg("session: discarding stored credential")
		m.clearStore()
		m.transition("", credential.Claims{})
		return m.session
	}

	log.Info().Str("subject", claims.Subject).Time("expires", claims.ExpiresAt).Msg("session: restored")
	m.transition(tok, claims)
	return m.session
}

// Login adopts a credential obtained from the auth endpoint, persists it
// and navigates to the dashboard. A credential that does not decode or is
// already expired forces a logout and returns an error wrapping
// credential.ErrInvalid.
func (m *Manager) Login(tok string) error {
	claims, err := credential.Validate(tok, m.now())
	if err != nil {
		m.Logout()
		return err
	}
	if err := m.store.Save(tok); err != nil {
		// The session still works for this process.
		log.Error().Err(err).Msg("session: persisting credential")
	}
	log.Info().Str("subject", claims.Subject).Msg("session: logged in")
	m.transition(tok, claims)
	m.navigate(nav.Dashboard)
	return nil
}

// Logout clears the credential and returns to the login view. It is
// idempotent.
func (m *Manager) Logout() {
	m.clearStore()
	if m.session.Authenticated {
		log.Info().Str("subject", m.session.Subject).Msg("session: logged out")
	}
	m.transition("", credential.Claims{})
	m.navigate(nav.Login)
}

// IsAuthenticated reports the current state.
func (m *Manager) IsAuthenticated() bool {
	return m.session.Authenticated
}

// CurrentSession returns a copy of the derived session.
func (m *Manager) CurrentSession() Session {
	return m.session
}

// Credential returns the raw credential, or "" when unauthenticated.
func (m *Manager) Credential() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.credential
}

// ExpiresAt returns the credential expiry, zero when unauthenticated.
func (m *Manager) ExpiresAt() time.Time {
	return m.expiresAt
}

func (m *Manager) transition(tok string, claims credential.Claims) {
	m.mu.Lock()
	m.credential = tok
	m.mu.Unlock()
	m.expiresAt = claims.ExpiresAt
	m.session = Session{
		Subject:       claims.Subject,
		Authenticated: tok != "",
	}
	for _, fn := range m.listeners {
		fn(m.session)
	}
}

func (m *Manager) navigate(v nav.View) {
	if m.nav != nil {
		m.nav.Navigate(v)
	}
}

func (m *Manager) clearStore() {
	if err := m.store.Clear(); err != nil {
		log.Error().Err(err).Msg("session: clearing stored credential")
	}
}

// String is used in the status bar and logs.
func (s Session) String() string {
	if !s.Authenticated {
		return "signed out"
	}
	return fmt.Sprintf("signed in as %s", s.Subject)
}
