package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chtzvt/dropslurp/internal/engine"
)

type Client struct {
	BaseURL   string
	AuthToken string
	Client    *http.Client // Allow override for testing
}

// NewClient returns a new API client.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		AuthToken: token,
		Client:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// Error returned by API calls.
type APIError struct {
	Status int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Msg)
}

func parseAPIError(resp *http.Response) error {
	var j struct {
		Error string `json:"error"`
	}
	body, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(body, &j)
	msg := j.Error
	if msg == "" {
		msg = string(body)
	}
	return &APIError{Status: resp.StatusCode, Msg: msg}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, want int) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != want {
		defer resp.Body.Close()
		return nil, parseAPIError(resp)
	}
	return resp, nil
}

func filePath(dir, name string) string {
	return "/api/files/" + url.PathEscape(dir) + "/" + url.PathEscape(name)
}

// Upload streams r into dir/name on the server. With unique set the server
// inserts a UUID into the stored name.
func (c *Client) Upload(ctx context.Context, dir, name string, r io.Reader, unique bool) (*UploadResult, error) {
	q := url.Values{"name": {name}}
	if unique {
		q.Set("unique", "1")
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/upload/"+url.PathEscape(dir)+"?"+q.Encode(), r, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Download copies dir/name into w and returns the byte count.
func (c *Client) Download(ctx context.Context, dir, name string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, filePath(dir, name), nil, http.StatusOK)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(w, resp.Body)
}

func (c *Client) Delete(ctx context.Context, dir, name string) error {
	resp, err := c.do(ctx, http.MethodDelete, filePath(dir, name), nil, http.StatusNoContent)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Metrics fetches the engine counters.
func (c *Client) Metrics(ctx context.Context) (*engine.Snapshot, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/metrics", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var snap engine.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Scan asks the engine for an immediate inbox scan.
func (c *Client) Scan(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/scan", nil, http.StatusAccepted)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
