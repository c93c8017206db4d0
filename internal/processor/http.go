package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/chtzvt/dropslurp/internal/engine"
	"github.com/chtzvt/dropslurp/internal/failure"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

const maxResponseBody = 1 << 20

// HTTPPost sends a file to an endpoint, either as the raw request body or as
// a multipart form field. Responses map to outcomes:
//
//	2xx          success
//	409          duplicate
//	408 429 5xx  recoverable (as are transport errors)
//	other        terminal
type HTTPPost struct {
	endpoint string
	method   string
	field    string
	headers  map[string]string
	client   *http.Client
	logger   zerolog.Logger
}

func NewHTTPPost(opts map[string]interface{}, deps Deps) (engine.Processor, error) {
	endpoint := optString(opts, "endpoint")
	if endpoint == "" {
		return nil, errors.New("http requires 'endpoint' option")
	}
	method := optString(opts, "method")
	if method == "" {
		method = http.MethodPost
	}
	timeout, err := optDuration(opts, "timeout", 60*time.Second)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{}
	for k, v := range optMap(opts, "headers") {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}
	if name := optString(opts, "token_secret"); name != "" {
		token, err := deps.Secrets.Get(context.Background(), name)
		if err != nil {
			return nil, fmt.Errorf("token %s: %w", name, err)
		}
		headers["Authorization"] = "Bearer " + string(token)
	}

	client := &http.Client{Timeout: timeout}
	if deps.HTTPClient != nil {
		shared := *deps.HTTPClient
		if _, set := opts["timeout"]; set {
			shared.Timeout = timeout
		}
		client = &shared
	}
	return &HTTPPost{
		endpoint: endpoint,
		method:   method,
		field:    optString(opts, "field"),
		headers:  headers,
		client:   client,
		logger:   deps.Logger,
	}, nil
}

func (h *HTTPPost) Process(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return failure.New(err)
	}
	if info.IsDir() {
		return failure.Errorf("%s: directories are not supported by the http processor", filepath.Base(path))
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return failure.New(err)
	}

	req, err := h.request(ctx, filepath.Base(path), body)
	if err != nil {
		return failure.New(err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return failure.Recoverable(fmt.Errorf("%s %s: %w", h.method, h.endpoint, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		h.logger.Info().
			Str("path", path).
			Str("size", humanize.Bytes(uint64(len(body)))).
			Int("status", resp.StatusCode).
			Msg("posted")
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	rerr := &failure.ResponseError{
		URL:        h.endpoint,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       respBody,
	}
	switch {
	case resp.StatusCode == http.StatusConflict:
		return failure.Duplicate(rerr)
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return failure.Recoverable(rerr)
	default:
		return failure.New(rerr)
	}
}

func (h *HTTPPost) request(ctx context.Context, name string, content []byte) (*http.Request, error) {
	var (
		body        io.Reader = bytes.NewReader(content)
		contentType           = "application/octet-stream"
	)
	if h.field != "" {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile(h.field, name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(content); err != nil {
			return nil, err
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}
		body = &buf
		contentType = mw.FormDataContentType()
	}

	req, err := http.NewRequestWithContext(ctx, h.method, h.endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-File-Name", name)
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func init() {
	Register("http", NewHTTPPost)
}
