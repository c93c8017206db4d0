// Package sink provides the named upload destinations processors ship entries to.
package sink

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/chtzvt/dropslurp/internal/secrets"
)

// Sink opens a writer for one named object. The object is complete only once
// the writer has been closed without error.
type Sink interface {
	Open(ctx context.Context, name string) (io.WriteCloser, error)
}

// Factory builds a sink from its options. Credentials are resolved through the
// secrets store, which may be nil.
type Factory func(opts map[string]interface{}, store *secrets.Store) (Sink, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

func ForName(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// Names lists registered sinks.
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

// New builds the sink registered under name.
func New(name string, opts map[string]interface{}, store *secrets.Store) (Sink, error) {
	f, ok := ForName(name)
	if !ok {
		return nil, fmt.Errorf("unknown sink %q", name)
	}
	if opts == nil {
		opts = map[string]interface{}{}
	}
	return f(opts, store)
}
