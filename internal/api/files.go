package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/chtzvt/dropslurp/internal/storage"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

const defaultMaxUploadMB = 512

type UploadResult struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// RegisterFileHandlers wires upload, download and delete endpoints into the given mux.
func RegisterFileHandlers(mux *http.ServeMux, files Files, cfg Config, logger zerolog.Logger) {
	maxBytes := cfg.MaxUploadMB << 20
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadMB << 20
	}

	// POST|PUT /api/upload/{dir}?name=...&unique=1
	upload := func(w http.ResponseWriter, r *http.Request) {
		handleUpload(w, r, files, cfg.UniqueNameLen, maxBytes, logger)
	}
	mux.HandleFunc("POST /api/upload/{dir}", upload)
	mux.HandleFunc("PUT /api/upload/{dir}", upload)

	// GET /api/files/{dir}/{name}?as=...
	mux.HandleFunc("GET /api/files/{dir}/{name}", func(w http.ResponseWriter, r *http.Request) {
		handleDownload(w, r, files)
	})
	// DELETE /api/files/{dir}/{name}
	mux.HandleFunc("DELETE /api/files/{dir}/{name}", func(w http.ResponseWriter, r *http.Request) {
		handleDelete(w, r, files, logger)
	})
}

func handleUpload(w http.ResponseWriter, r *http.Request, files Files, uniqueLen int, maxBytes int64, logger zerolog.Logger) {
	dir := r.PathValue("dir")
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	var (
		name = r.URL.Query().Get("name")
		body io.Reader
	)
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			jsonError(w, http.StatusBadRequest, "multipart upload requires a 'file' field: "+err.Error())
			return
		}
		defer file.Close()
		if name == "" {
			name = filepath.Base(header.Filename)
		}
		body = file
	} else {
		body = r.Body
	}
	if name == "" {
		jsonError(w, http.StatusBadRequest, "missing file name")
		return
	}

	var (
		dest string
		n    int64
		err  error
	)
	if r.URL.Query().Get("unique") == "1" {
		dest, n, err = files.StoreWithUniqueID(dir, name, body, uniqueLen)
	} else {
		dest, n, err = files.Store(dir, name, body)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			jsonError(w, http.StatusRequestEntityTooLarge, "upload exceeds limit")
		case errors.Is(err, storage.ErrInvalidPath), errors.Is(err, storage.ErrEmpty):
			jsonError(w, http.StatusBadRequest, err.Error())
		default:
			jsonError(w, http.StatusInternalServerError, "failed to store file: "+err.Error())
		}
		return
	}

	logger.Info().Str("path", dest).Str("size", humanize.Bytes(uint64(n))).Msg("upload stored")
	writeJSON(w, http.StatusCreated, UploadResult{
		Name: filepath.Base(dest),
		Path: filepath.ToSlash(filepath.Join(dir, filepath.Base(dest))),
		Size: n,
	})
}

func handleDownload(w http.ResponseWriter, r *http.Request, files Files) {
	dir, name := r.PathValue("dir"), r.PathValue("name")
	f, info, err := files.Open(dir, name)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidPath):
			jsonError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, storage.ErrNotFound):
			jsonError(w, http.StatusNotFound, err.Error())
		default:
			jsonError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	defer f.Close()

	as := r.URL.Query().Get("as")
	if as == "" {
		as = name
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": as}))
	http.ServeContent(w, r, as, info.ModTime(), f)
}

func handleDelete(w http.ResponseWriter, r *http.Request, files Files, logger zerolog.Logger) {
	dir, name := r.PathValue("dir"), r.PathValue("name")
	existed, err := files.Delete(dir, name)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidPath) {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !existed {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("file not found: %s", name))
		return
	}
	logger.Info().Str("dir", dir).Str("name", name).Msg("file deleted")
	w.WriteHeader(http.StatusNoContent)
}
