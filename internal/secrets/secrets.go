// Package secrets implements a local, cryptographically sealed secrets store:
// a JSON file of NaCl secretbox-sealed values, keyed by name, that falls back to
// environment variables for names it does not hold.
package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var ErrNotFound = errors.New("secret not found")

// Store holds sealed secrets in memory and persists them to path on every change.
// A nil *Store is valid and resolves names from the environment only.
type Store struct {
	mu     sync.RWMutex
	path   string
	key    [32]byte
	sealed map[string]string // name -> base64(nonce || box)
}

// Open loads the store at path, sealed with key. A missing file yields an
// empty store that is created on the first Set.
func Open(path string, key [32]byte) (*Store, error) {
	s := &Store{path: path, key: key, sealed: make(map[string]string)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.sealed); err != nil {
		return nil, fmt.Errorf("parse secrets file %s: %w", path, err)
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

func (s *Store) persist() error {
	b, err := json.MarshalIndent(s.sealed, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".secrets-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
