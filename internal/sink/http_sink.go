package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chtzvt/dropslurp/internal/compression"
	"github.com/chtzvt/dropslurp/internal/secrets"
)

// HTTPSink POSTs each object to endpoint. A "{name}" placeholder in the
// endpoint is replaced by the escaped object name; otherwise the name is sent
// in the X-Object-Name header.
type HTTPSink struct {
	endpoint    string
	compression string
	maxRetries  int
	backoff     time.Duration
	headers     map[string]string
	client      *http.Client
}

func NewHTTPSink(opts map[string]interface{}, store *secrets.Store) (Sink, error) {
	endpoint := optString(opts, "endpoint")
	if endpoint == "" {
		return nil, errors.New("http sink requires 'endpoint' option")
	}
	comp := optCompression(opts)
	if _, err := compression.NewWriter(io.Discard, comp); err != nil {
		return nil, err
	}
	maxRetries := 3
	if v, ok := toInt(opts["max_retries"]); ok && v > 0 {
		maxRetries = v
	}
	backoff := 200 * time.Millisecond
	if s := optString(opts, "retry_backoff"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("http sink retry_backoff: %w", err)
		}
		backoff = d
	}
	headers := map[string]string{}
	if m, ok := opts["headers"].(map[string]interface{}); ok {
		for k, v := range m {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}
	if name := optString(opts, "token_secret"); name != "" {
		token, err := store.Get(context.Background(), name)
		if err != nil {
			return nil, fmt.Errorf("http sink token %s: %w", name, err)
		}
		headers["Authorization"] = "Bearer " + string(token)
	}
	return &HTTPSink{
		endpoint:    endpoint,
		compression: comp,
		maxRetries:  maxRetries,
		backoff:     backoff,
		headers:     headers,
		client:      &http.Client{Timeout: 120 * time.Second},
	}, nil
}

type httpSinkWriter struct {
	sink   *HTTPSink
	ctx    context.Context
	name   string
	buf    *bytes.Buffer
	w      io.WriteCloser
	closed bool
}

func (s *HTTPSink) Open(ctx context.Context, name string) (io.WriteCloser, error) {
	buf := &bytes.Buffer{}
	w, err := compression.NewWriter(buf, s.compression)
	if err != nil {
		return nil, err
	}
	return &httpSinkWriter{sink: s, ctx: ctx, name: name, buf: buf, w: w}, nil
}

func (w *httpSinkWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("sinkwriter closed")
	}
	return w.w.Write(p)
}

func (w *httpSinkWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.w.Close(); err != nil {
		return err
	}

	target := w.sink.endpoint
	named := strings.Contains(target, "{name}")
	if named {
		target = strings.ReplaceAll(target, "{name}", url.PathEscape(w.name))
	}

	var lastErr error
	for attempt := 1; attempt <= w.sink.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(w.ctx, http.MethodPost, target, bytes.NewReader(w.buf.Bytes()))
		if err != nil {
			return err
		}
		for k, v := range w.sink.headers {
			req.Header.Set(k, v)
		}
		if !named {
			req.Header.Set("X-Object-Name", w.name)
		}
		switch w.sink.compression {
		case compression.Gzip:
			req.Header.Set("Content-Encoding", "gzip")
		case compression.Bzip2:
			req.Header.Set("Content-Encoding", "x-bzip2")
		}
		resp, err := w.sink.client.Do(req)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			lastErr = fmt.Errorf("%s: unexpected response %s", target, resp.Status)
		} else {
			lastErr = err
		}
		if attempt < w.sink.maxRetries {
			select {
			case <-w.ctx.Done():
				return w.ctx.Err()
			case <-time.After(time.Duration(attempt) * w.sink.backoff):
			}
		}
	}
	return fmt.Errorf("all HTTP POST attempts failed: %w", lastErr)
}

func init() {
	Register("http", NewHTTPSink)
}
