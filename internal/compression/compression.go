// Package compression wraps sink writers and readers with the configured codec.
package compression

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
)

const (
	None  = "none"
	Gzip  = "gzip"
	Bzip2 = "bzip2"
)

// NewWriter returns an io.WriteCloser that wraps w with the requested compression.
// Supported: "gzip", "bzip2", "none" or "" (no compression). Closing the
// returned writer flushes the codec but does not close w.
func NewWriter(w io.Writer, compression string) (io.WriteCloser, error) {
	switch compression {
	case Gzip:
		return gzip.NewWriter(w), nil
	case Bzip2:
		return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.BestCompression})
	case "", None:
		return plainWriter{w}, nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", compression)
	}
}

// WrapWriteCloser compresses into wc; closing the result closes both.
func WrapWriteCloser(wc io.WriteCloser, compression string) (io.WriteCloser, error) {
	cw, err := NewWriter(wc, compression)
	if err != nil {
		return nil, err
	}
	return &chainedWriter{codec: cw, dst: wc}, nil
}

// plainWriter is the "none" codec.
type plainWriter struct{ io.Writer }

func (plainWriter) Close() error { return nil }

// chainedWriter flushes the codec before closing the destination it writes to.
type chainedWriter struct {
	codec io.WriteCloser
	dst   io.Closer
}

func (c *chainedWriter) Write(p []byte) (int, error) { return c.codec.Write(p) }

func (c *chainedWriter) Close() error {
	return errors.Join(c.codec.Close(), c.dst.Close())
}

// NewReader returns a reader decompressing r with the given compression.
func NewReader(r io.Reader, compression string) (io.ReadCloser, error) {
	switch compression {
	case Gzip:
		return gzip.NewReader(r)
	case Bzip2:
		return bzip2.NewReader(r, nil)
	case "", None:
		return io.NopCloser(r), nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", compression)
	}
}

// Ext returns the file extension appended to objects written with compression.
func Ext(compression string) string {
	switch compression {
	case Gzip:
		return ".gz"
	case Bzip2:
		return ".bz2"
	default:
		return ""
	}
}
