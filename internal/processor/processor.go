// Package processor holds the processing operations selectable by name in the
// daemon configuration.
package processor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/chtzvt/dropslurp/internal/engine"
	"github.com/chtzvt/dropslurp/internal/secrets"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// Deps are the shared services a processor may need.
type Deps struct {
	Secrets    *secrets.Store
	Logger     zerolog.Logger
	HTTPClient *http.Client
}

type Factory func(opts map[string]interface{}, deps Deps) (engine.Processor, error)

// DirectoryHandler is implemented by processors that accept directory entries.
type DirectoryHandler interface {
	HandlesDirectories() bool
}

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

// New builds the named processor. A positive "dedupe_cache" option wraps it in Dedupe.
func New(name string, opts map[string]interface{}, deps Deps) (engine.Processor, error) {
	f, ok := ForName(name)
	if !ok {
		return nil, fmt.Errorf("unknown processor %q", name)
	}
	if opts == nil {
		opts = map[string]interface{}{}
	}
	p, err := f(opts, deps)
	if err != nil {
		return nil, fmt.Errorf("processor %s: %w", name, err)
	}
	if size, ok := optInt(opts, "dedupe_cache"); ok && size > 0 {
		return NewDedupe(p, size, deps.Logger)
	}
	return p, nil
}

// HandlesDirectories reports whether p accepts directory entries.
func HandlesDirectories(p engine.Processor) bool {
	d, ok := p.(DirectoryHandler)
	return ok && d.HandlesDirectories()
}

// logProcessor only records what it sees. Useful to dry-run routing.
type logProcessor struct {
	logger zerolog.Logger
}

func (l *logProcessor) Process(_ context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	l.logger.Info().Str("path", path).Str("size", humanize.Bytes(uint64(info.Size()))).Bool("dir", info.IsDir()).Msg("entry seen")
	return nil
}

func (l *logProcessor) HandlesDirectories() bool { return true }

func init() {
	Register("log", func(_ map[string]interface{}, deps Deps) (engine.Processor, error) {
		return &logProcessor{logger: deps.Logger}, nil
	})
}

func optString(opts map[string]interface{}, key string) string {
	switch v := opts[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func optInt(opts map[string]interface{}, key string) (int, bool) {
	switch v := opts[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

func optDuration(opts map[string]interface{}, key string, def time.Duration) (time.Duration, error) {
	switch v := opts[key].(type) {
	case nil:
		return def, nil
	case time.Duration:
		return v, nil
	case string:
		if v == "" {
			return def, nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("%s: unsupported value %v", key, v)
	}
}

func optMap(opts map[string]interface{}, key string) map[string]interface{} {
	switch v := opts[key].(type) {
	case map[string]interface{}:
		return v
	case map[string]string:
		m := make(map[string]interface{}, len(v))
		for k, s := range v {
			m[k] = s
		}
		return m
	default:
		return map[string]interface{}{}
	}
}
