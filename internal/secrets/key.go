package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GenerateKey returns a new random store key.
func GenerateKey() ([32]byte, error) {
	var key [32]byte
	_, err := rand.Read(key[:])
	return key, err
}

// EncodeKey renders key as base64, the form ParseKey accepts.
func EncodeKey(key [32]byte) string {
	return base64.StdEncoding.EncodeToString(key[:])
}

// ParseKey decodes a base64 store key.
func ParseKey(s string) ([32]byte, error) {
	var key [32]byte
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return key, fmt.Errorf("decode secrets key: %w", err)
	}
	if len(raw) != 32 {
		return key, errors.New("invalid key length")
	}
	copy(key[:], raw)
	return key, nil
}

// LoadOrGenerateKey reads a base64 key from path, or generates and persists a
// new one (mode 0600) if the file is absent.
func LoadOrGenerateKey(path string) ([32]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return ParseKey(string(data))
	}
	if !errors.Is(err, os.ErrNotExist) {
		return [32]byte{}, err
	}

	key, err := GenerateKey()
	if err != nil {
		return key, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return key, err
	}
	if err := os.WriteFile(path, []byte(EncodeKey(key)+"\n"), 0o600); err != nil {
		return key, err
	}
	return key, nil
}
