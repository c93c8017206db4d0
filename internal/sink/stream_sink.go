package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/chtzvt/dropslurp/internal/secrets"
)

// streamSink writes every object to one shared stream. Objects are buffered
// and emitted whole on Close, so concurrent uploads never interleave.
type streamSink struct {
	mu     sync.Mutex
	out    io.Writer
	banner bool // precede each object with "==> name <=="
}

// NewStdoutSink prints objects to stdout. Option "banner" labels each one.
func NewStdoutSink(opts map[string]interface{}, _ *secrets.Store) (Sink, error) {
	return &streamSink{out: os.Stdout, banner: toBool(opts["banner"])}, nil
}

// NewNullSink discards every object. Useful to dry-run a processor.
func NewNullSink(_ map[string]interface{}, _ *secrets.Store) (Sink, error) {
	return &streamSink{out: io.Discard}, nil
}

func (s *streamSink) Open(_ context.Context, name string) (io.WriteCloser, error) {
	return &streamObject{sink: s, name: name}, nil
}

type streamObject struct {
	sink   *streamSink
	name   string
	buf    bytes.Buffer
	closed bool
}

func (o *streamObject) Write(p []byte) (int, error) {
	if o.closed {
		return 0, os.ErrClosed
	}
	return o.buf.Write(p)
}

func (o *streamObject) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true

	s := o.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.banner {
		if _, err := fmt.Fprintf(s.out, "==> %s <==\n", o.name); err != nil {
			return err
		}
	}
	_, err := o.buf.WriteTo(s.out)
	return err
}

func init() {
	Register("null", NewNullSink)
	Register("stdout", NewStdoutSink)
}
