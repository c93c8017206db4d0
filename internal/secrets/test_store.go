package secrets

import (
	"path/filepath"
	"testing"
)

// NewTestStore opens an empty store in a temporary directory.
func NewTestStore(t *testing.T) *Store {
	t.Helper()

	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	store, err := Open(filepath.Join(t.TempDir(), "secrets.json"), key)
	if err != nil {
		t.Fatalf("Failed to create Store: %v", err)
	}
	return store
}
