package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const credentialFileName = "session.json"

// FileStore keeps the credential in <dir>/session.json as
// {"authToken": "..."}. Writes go through a temp file and a rename so a
// crash never leaves a half-written token behind.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the full path to the credential file.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, credentialFileName)
}

func (s *FileStore) Load() (string, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading credential: %w", err)
	}
	var doc map[string]string
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parsing credential file: %w", err)
	}
	v := doc[CredentialKey]
	if v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *FileStore) Save(credential string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	data, err := json.Marshal(map[string]string{CredentialKey: credential})
	if err != nil {
		return fmt.Errorf("marshaling credential: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		return fmt.Errorf("renaming credential file: %w", err)
	}
	committed = true
	return nil
}

func (s *FileStore) Clear() error {
	err := os.Remove(s.Path())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing credential: %w", err)
	}
	return nil
}
