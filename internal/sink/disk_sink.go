package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chtzvt/dropslurp/internal/compression"
	"github.com/chtzvt/dropslurp/internal/secrets"
)

type DiskSink struct {
	baseDir     string
	compression string
}

func NewDiskSink(opts map[string]interface{}, _ *secrets.Store) (Sink, error) {
	baseDir := optString(opts, "path")
	if baseDir == "" {
		return nil, fmt.Errorf("disk sink requires 'path' option")
	}
	comp := optCompression(opts)
	if _, err := compression.NewWriter(io.Discard, comp); err != nil {
		return nil, err
	}
	return &DiskSink{baseDir: baseDir, compression: comp}, nil
}

// Open writes name under the base directory. Data lands in a hidden temporary
// file that is renamed into place on Close.
func (d *DiskSink) Open(ctx context.Context, name string) (io.WriteCloser, error) {
	fullPath := filepath.Join(d.baseDir, filepath.Clean("/"+name))
	if !strings.HasPrefix(fullPath, filepath.Clean(d.baseDir)+string(filepath.Separator)) {
		return nil, fmt.Errorf("disk sink: invalid object name %q", name)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(fullPath), "."+filepath.Base(fullPath)+".*.part")
	if err != nil {
		return nil, err
	}
	w, err := compression.NewWriter(f, d.compression)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &diskSinkWriter{WriteCloser: w, f: f, final: fullPath}, nil
}

type diskSinkWriter struct {
	io.WriteCloser
	f     *os.File
	final string
}

func (d *diskSinkWriter) Close() error {
	err1 := d.WriteCloser.Close()
	err2 := d.f.Close()
	if err1 == nil {
		err1 = err2
	}
	if err1 != nil {
		os.Remove(d.f.Name())
		return err1
	}
	return os.Rename(d.f.Name(), d.final)
}

func init() {
	Register("disk", NewDiskSink)
}
