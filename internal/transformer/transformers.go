// Package transformer encodes manifest records describing shipped entries.
package transformer

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

type Transformer interface {
	Transform(record map[string]interface{}) ([]byte, error)

	// Header returns any leading bytes (e.g., header row, opening bracket, etc).
	// Should return nil/empty if not needed.
	Header() ([]byte, error)

	// Footer returns any trailing bytes (e.g., closing bracket, sentinel value, etc).
	// Should return nil/empty if not needed.
	Footer() ([]byte, error)

	// Ext is the file extension of encoded output, including the dot.
	Ext() string
}

type Factory func(opts map[string]interface{}) (Transformer, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

func ForName(name string) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("transformer not found: %s", name)
	}
	return f, nil
}

func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New builds the transformer registered under name.
func New(name string, opts map[string]interface{}) (Transformer, error) {
	f, err := ForName(name)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = map[string]interface{}{}
	}
	return f(opts)
}

// Encode writes header, one encoded record each, then footer.
func Encode(w io.Writer, t Transformer, records []map[string]interface{}) error {
	header, err := t.Header()
	if err != nil {
		return err
	}
	if _, err := w.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		b, err := t.Transform(rec)
		if err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	footer, err := t.Footer()
	if err != nil {
		return err
	}
	_, err = w.Write(footer)
	return err
}
