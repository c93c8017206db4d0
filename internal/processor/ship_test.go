package processor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chtzvt/dropslurp/internal/compression"
	"github.com/chtzvt/dropslurp/internal/failure"
	"github.com/chtzvt/dropslurp/internal/logging"
	"github.com/chtzvt/dropslurp/internal/secrets"
	"github.com/chtzvt/dropslurp/internal/sink"
	"github.com/chtzvt/dropslurp/internal/testutil"
	"github.com/stretchr/testify/require"
)

type failingSink struct{}

func (failingSink) Open(ctx context.Context, name string) (io.WriteCloser, error) {
	return nil, errors.New("bucket unreachable")
}

func init() {
	sink.Register("failing", func(map[string]interface{}, *secrets.Store) (sink.Sink, error) {
		return failingSink{}, nil
	})
}

func newShip(t *testing.T, out string, extra map[string]interface{}) *Ship {
	t.Helper()
	opts := map[string]interface{}{
		"sink":         "disk",
		"sink_options": map[string]interface{}{"path": out},
	}
	for k, v := range extra {
		opts[k] = v
	}
	p, err := New("ship", opts, Deps{Logger: logging.Nop()})
	require.NoError(t, err)
	return p.(*Ship)
}

func TestShipFile(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	entry := testutil.WriteFile(t, filepath.Join(in, "a.xml"), "<a/>")

	s := newShip(t, out, map[string]interface{}{"prefix": "incoming"})
	require.NoError(t, s.Process(context.Background(), entry))

	b, err := os.ReadFile(filepath.Join(out, "incoming", "a.xml"))
	require.NoError(t, err)
	require.Equal(t, "<a/>", string(b))
	require.FileExists(t, entry, "ship never touches the source")
}

func TestShipCompressed(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	entry := testutil.WriteFile(t, filepath.Join(in, "a.xml"), strings.Repeat("<a/>", 100))

	s := newShip(t, out, map[string]interface{}{"compression": "bzip2"})
	require.NoError(t, s.Process(context.Background(), entry))

	f, err := os.Open(filepath.Join(out, "a.xml.bz2"))
	require.NoError(t, err)
	defer f.Close()
	r, err := compression.NewReader(f, "bzip2")
	require.NoError(t, err)
	plain, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("<a/>", 100), string(plain))
}

func TestShipDirectoryWithManifest(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	batch := filepath.Join(in, "batch-7")
	testutil.WriteFile(t, filepath.Join(batch, "one.csv"), "1")
	testutil.WriteFile(t, filepath.Join(batch, "sub", "two.csv"), "22")

	s := newShip(t, out, map[string]interface{}{"manifest": "jsonl"})
	require.True(t, s.HandlesDirectories())
	require.NoError(t, s.Process(context.Background(), batch))

	require.FileExists(t, filepath.Join(out, "batch-7", "one.csv"))
	require.FileExists(t, filepath.Join(out, "batch-7", "sub", "two.csv"))

	f, err := os.Open(filepath.Join(out, "batch-7.manifest.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var objects []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		require.Equal(t, "batch-7", rec["entry"])
		require.Len(t, rec["sha256"], 64)
		objects = append(objects, rec["object"].(string))
	}
	require.ElementsMatch(t, []string{"batch-7/one.csv", "batch-7/sub/two.csv"}, objects)
}

func TestShipEmptyDirectoryIsTerminal(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	empty := filepath.Join(in, "empty")
	require.NoError(t, os.Mkdir(empty, 0o755))

	err := newShip(t, out, nil).Process(context.Background(), empty)
	require.Error(t, err)
	require.False(t, failure.IsRecoverable(err))
}

func TestShipMissingSourceIsTerminal(t *testing.T) {
	err := newShip(t, t.TempDir(), nil).Process(context.Background(), filepath.Join(t.TempDir(), "gone.xml"))
	require.Error(t, err)
	require.False(t, failure.IsRecoverable(err))
}

func TestShipSinkFailureIsRecoverable(t *testing.T) {
	in := t.TempDir()
	entry := testutil.WriteFile(t, filepath.Join(in, "a.xml"), "x")

	p, err := New("ship", map[string]interface{}{"sink": "failing"}, Deps{Logger: logging.Nop()})
	require.NoError(t, err)
	err = p.Process(context.Background(), entry)
	require.True(t, failure.IsRecoverable(err))
	require.ErrorContains(t, err, "bucket unreachable")
}

func TestShipOptionErrors(t *testing.T) {
	_, err := New("ship", nil, Deps{})
	require.ErrorContains(t, err, "'sink'")
	_, err = New("ship", map[string]interface{}{"sink": "null", "compression": "lz4"}, Deps{})
	require.Error(t, err)
	_, err = New("ship", map[string]interface{}{"sink": "null", "manifest": "xml"}, Deps{})
	require.Error(t, err)
}
