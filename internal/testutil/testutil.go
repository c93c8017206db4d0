package testutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Utility: Wait for a condition or timeout
func WaitFor(t *testing.T, cond func() bool, timeout time.Duration, tick time.Duration, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(tick)
	}
	t.Fatalf("WaitFor timeout: %s", msg)
}

// WriteFile creates path (and its parents) with content.
func WriteFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// Age backdates the modification time of path by d.
func Age(t *testing.T, path string, d time.Duration) {
	t.Helper()
	ts := time.Now().Add(-d)
	require.NoError(t, os.Chtimes(path, ts, ts))
}

// Exists reports whether path is present, without failing the test.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Recorder collects the paths passed to a fake processor or completion hook.
type Recorder struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (r *Recorder) Record(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, path)
	if err != nil {
		if r.errs == nil {
			r.errs = make(map[string]error)
		}
		r.errs[path] = err
	}
}

func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *Recorder) Count(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == path {
			n++
		}
	}
	return n
}

func (r *Recorder) Err(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs[path]
}
