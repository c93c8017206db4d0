package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/chtzvt/dropslurp/internal/engine"
	"github.com/chtzvt/dropslurp/internal/logging"
	"github.com/chtzvt/dropslurp/internal/storage"
	"github.com/stretchr/testify/require"
)

const testToken = "testtoken"

type stubEngine struct {
	snap    engine.Snapshot
	scans   atomic.Int32
	scanErr atomic.Value
}

func (s *stubEngine) Metrics() engine.Snapshot { return s.snap }

func (s *stubEngine) Refresh(context.Context) error {
	s.scans.Add(1)
	if err, ok := s.scanErr.Load().(error); ok {
		return err
	}
	return nil
}

func setupServer(t *testing.T) (*httptest.Server, *storage.Service, *stubEngine) {
	t.Helper()
	files := storage.New(t.TempDir(), logging.Nop())
	require.NoError(t, files.Init("inbox", "done"))
	eng := &stubEngine{snap: engine.Snapshot{Processed: 3, Failed: 1, InFlight: 2}}
	srv := NewServer(files, eng, Config{AuthTokens: []string{testToken}, MaxUploadMB: 1}, logging.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, files, eng
}

func doRequest(t *testing.T, method, url string, body io.Reader, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func requireUnauthorized(t *testing.T, method, path string, handler http.Handler) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", method, path)
}

func TestAuthRequired_AllEndpoints(t *testing.T) {
	files := storage.New(t.TempDir(), logging.Nop())
	handler := NewServer(files, &stubEngine{}, Config{AuthTokens: []string{testToken}}, logging.Nop()).Handler()

	requireUnauthorized(t, "POST", "/api/upload/inbox?name=a.xml", handler)
	requireUnauthorized(t, "PUT", "/api/upload/inbox?name=a.xml", handler)
	requireUnauthorized(t, "GET", "/api/files/inbox/a.xml", handler)
	requireUnauthorized(t, "DELETE", "/api/files/inbox/a.xml", handler)
	requireUnauthorized(t, "GET", "/api/metrics", handler)
	requireUnauthorized(t, "POST", "/api/scan", handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired_InvalidToken(t *testing.T) {
	handler := TokenAuthMiddleware([]string{testToken}, http.NotFoundHandler())
	req := httptest.NewRequest("GET", "/api/metrics", nil)
	req.Header.Set("Authorization", "Bearer WRONGTOKEN")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRefusesWithoutTokens(t *testing.T) {
	handler := TokenAuthMiddleware(nil, http.NotFoundHandler())
	req := httptest.NewRequest("GET", "/api/metrics", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadRawBody(t *testing.T) {
	ts, files, _ := setupServer(t)
	resp := doRequest(t, "POST", ts.URL+"/api/upload/inbox?name=order.xml", strings.NewReader("<order/>"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out UploadResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, UploadResult{Name: "order.xml", Path: "inbox/order.xml", Size: 8}, out)

	b, err := os.ReadFile(filepath.Join(files.Root(), "inbox", "order.xml"))
	require.NoError(t, err)
	require.Equal(t, "<order/>", string(b))
}

func TestUploadMultipartUnique(t *testing.T) {
	ts, files, _ := setupServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "invoice.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.7"))
	require.NoError(t, mw.Close())

	resp := doRequest(t, "PUT", ts.URL+"/api/upload/inbox?unique=1", &buf, http.Header{"Content-Type": {mw.FormDataContentType()}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out UploadResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.True(t, strings.HasPrefix(out.Name, "invoice_"))
	require.True(t, strings.HasSuffix(out.Name, ".pdf"))
	require.FileExists(t, filepath.Join(files.Root(), "inbox", out.Name))
}

func TestUploadRejections(t *testing.T) {
	ts, _, _ := setupServer(t)

	resp := doRequest(t, "POST", ts.URL+"/api/upload/inbox", strings.NewReader("x"), nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, "missing name")

	resp = doRequest(t, "POST", ts.URL+"/api/upload/inbox?name=empty.xml", strings.NewReader(""), nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, "empty body")

	resp = doRequest(t, "POST", ts.URL+"/api/upload/inbox?name=..%2Fescape", strings.NewReader("x"), nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, "traversal")

}

func TestUploadTooLarge(t *testing.T) {
	files := storage.New(t.TempDir(), logging.Nop())
	require.NoError(t, files.Init("inbox"))
	handler := NewServer(files, &stubEngine{}, Config{AuthTokens: []string{testToken}, MaxUploadMB: 1}, logging.Nop()).Handler()

	req := httptest.NewRequest("POST", "/api/upload/inbox?name=big.bin", bytes.NewReader(make([]byte, 2<<20)))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.NoFileExists(t, filepath.Join(files.Root(), "inbox", "big.bin"))
}

func TestDownloadWithRename(t *testing.T) {
	ts, files, _ := setupServer(t)
	_, _, err := files.Store("done", "a1b2.xml", strings.NewReader("<done/>"))
	require.NoError(t, err)

	resp := doRequest(t, "GET", ts.URL+"/api/files/done/a1b2.xml?as=report.xml", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, `attachment; filename=report.xml`, resp.Header.Get("Content-Disposition"))
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "<done/>", string(b))

	resp = doRequest(t, "GET", ts.URL+"/api/files/done/missing.xml", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteFile(t *testing.T) {
	ts, files, _ := setupServer(t)
	_, _, err := files.Store("inbox", "a.xml", strings.NewReader("x"))
	require.NoError(t, err)

	resp := doRequest(t, "DELETE", ts.URL+"/api/files/inbox/a.xml", nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.NoFileExists(t, filepath.Join(files.Root(), "inbox", "a.xml"))

	resp = doRequest(t, "DELETE", ts.URL+"/api/files/inbox/a.xml", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsAndScan(t *testing.T) {
	ts, _, eng := setupServer(t)

	resp := doRequest(t, "GET", ts.URL+"/api/metrics", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap engine.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.Equal(t, eng.snap, snap)

	resp = doRequest(t, "POST", ts.URL+"/api/scan", nil, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, int32(1), eng.scans.Load())

	eng.scanErr.Store(errors.New("permission denied"))
	resp = doRequest(t, "POST", ts.URL+"/api/scan", nil, nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
