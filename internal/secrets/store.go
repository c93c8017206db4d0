package secrets

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"os"
	"sort"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

// List returns the names of stored secrets with the given prefix ("" for all), sorted.
// Environment fallbacks are not listed.
func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.sealed))
	for k := range s.sealed {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Set encrypts value with the store key and persists it under name,
// overwriting any existing value.
func (s *Store) Set(_ context.Context, name string, value []byte) error {
	if s == nil {
		return errors.New("secrets store is not configured")
	}
	if name == "" {
		return errors.New("secret name is empty")
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return err
	}
	sealed := secretbox.Seal(nonce[:], value, &nonce, &s.key)

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.sealed[name]
	s.sealed[name] = base64.StdEncoding.EncodeToString(sealed)
	if err := s.persist(); err != nil {
		if had {
			s.sealed[name] = prev
		} else {
			delete(s.sealed, name)
		}
		return err
	}
	return nil
}

// Get returns the plaintext stored under name. Names not in the store are
// looked up in the environment; ErrNotFound is returned if neither has it.
func (s *Store) Get(_ context.Context, name string) ([]byte, error) {
	if s != nil {
		s.mu.RLock()
		b64, ok := s.sealed[name]
		s.mu.RUnlock()
		if ok {
			return s.open(b64)
		}
	}
	if v, ok := os.LookupEnv(name); ok {
		return []byte(v), nil
	}
	return nil, ErrNotFound
}

func (s *Store) open(b64 string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(b64)
	if err != nil || len(sealed) < 24 {
		return nil, errors.New("invalid secret data")
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, &s.key)
	if !ok {
		return nil, errors.New("decryption failed")
	}
	return plain, nil
}

// Delete removes name from the store. Deleting an absent name is not an error.
func (s *Store) Delete(_ context.Context, name string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.sealed[name]
	if !had {
		return nil
	}
	delete(s.sealed, name)
	if err := s.persist(); err != nil {
		s.sealed[name] = prev
		return err
	}
	return nil
}
