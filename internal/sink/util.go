package sink

import (
	"fmt"
	"io"
	"strconv"

	"github.com/chtzvt/dropslurp/internal/compression"
)

// uploadWriter compresses into a pipe whose read side is consumed by an upload
// running in the background. Close waits for the upload and returns its error.
type uploadWriter struct {
	w      io.WriteCloser
	pw     *io.PipeWriter
	done   chan error
	closed bool
}

func pipeUpload(kind string, upload func(body io.Reader) error) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	cw, err := compression.NewWriter(pw, kind)
	if err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() {
		err := upload(pr)
		_ = pr.CloseWithError(err)
		done <- err
	}()
	return &uploadWriter{w: cw, pw: pw, done: done}, nil
}

func (u *uploadWriter) Write(p []byte) (int, error) {
	return u.w.Write(p)
}

func (u *uploadWriter) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	err := u.w.Close()
	if err != nil {
		_ = u.pw.CloseWithError(err)
	} else {
		_ = u.pw.Close()
	}
	uploadErr := <-u.done
	if err != nil {
		return err
	}
	return uploadErr
}

// Helper to support bool/int/bool-string conversion
func toBool(val interface{}) bool {
	switch v := val.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case string:
		return v == "1" || v == "true" || v == "on"
	default:
		return false
	}
}

func toInt(val interface{}) (int, bool) {
	switch v := val.(type) {
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

func optCompression(opts map[string]interface{}) string {
	if c := optString(opts, "compression"); c != "" {
		return c
	}
	return compression.None
}
