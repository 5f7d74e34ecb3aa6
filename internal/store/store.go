// Package store persists the single session credential between runs.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tradebot/dashboard/internal/config"
)

// CredentialKey is the fixed key the credential is stored under.
const CredentialKey = "authToken"

// ErrNotFound is returned by Load when nothing is stored.
var ErrNotFound = errors.New("credential not stored")

// CredentialStore keeps one opaque credential string.
type CredentialStore interface {
	Load() (string, error)
	Save(credential string) error
	Clear() error
}

// Open returns the backend selected in cfg.
func Open(cfg *config.Config) (CredentialStore, error) {
	switch cfg.Storage.Backend {
	case config.StorageFile, "":
		return NewFileStore(cfg.StateDir()), nil
	case config.StorageSQLite:
		return OpenSQLite(cfg.StateDir())
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// MemoryStore is an in-process store for tests and --ephemeral runs.
type MemoryStore struct {
	mu    sync.Mutex
	value string
}

func NewMemoryStore(initial string) *MemoryStore {
	return &MemoryStore{value: initial}
}

func (m *MemoryStore) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.value == "" {
		return "", ErrNotFound
	}
	return m.value, nil
}

func (m *MemoryStore) Save(credential string) error {
	m.mu.Lock()
	m.value = credential
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.value = ""
	m.mu.Unlock()
	return nil
}
