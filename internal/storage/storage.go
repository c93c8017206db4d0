// Package storage manages files under the storage root: the inbox and routing
// folders the engine works on, plus uploads and downloads through the API.
//
// Writes go to a hidden temporary file that is renamed into place, so an
// inbox scan never sees a partially written entry.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidPath = errors.New("invalid path")
	ErrEmpty       = errors.New("refusing to store an empty file")
	ErrNotFound    = errors.New("file not found")
)

type Service struct {
	root   string
	logger zerolog.Logger
}

func New(root string, logger zerolog.Logger) *Service {
	return &Service{root: filepath.Clean(root), logger: logger}
}

func (s *Service) Root() string { return s.root }

// Init creates the root and every folder. Relative folders resolve under the root.
func (s *Service) Init(folders ...string) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create storage root: %w", err)
	}
	for _, f := range folders {
		if f == "" {
			continue
		}
		p := f
		if !filepath.IsAbs(p) {
			p = filepath.Join(s.root, p)
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("create folder %s: %w", p, err)
		}
		s.logger.Debug().Str("dir", p).Msg("storage folder ready")
	}
	return nil
}

// Dir resolves a folder relative to the root. "" is the root itself.
func (s *Service) Dir(dir string) (string, error) {
	if dir == "" {
		return s.root, nil
	}
	if !filepath.IsLocal(dir) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, dir)
	}
	return filepath.Join(s.root, dir), nil
}

// Path resolves a file name inside a folder. Names must be a single path element.
func (s *Service) Path(dir, name string) (string, error) {
	base, err := s.Dir(dir)
	if err != nil {
		return "", err
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return filepath.Join(base, name), nil
}

// Store copies r into dir/name, replacing any existing file. Empty content is refused.
func (s *Service) Store(dir, name string, r io.Reader) (string, int64, error) {
	dest, err := s.Path(dir, name)
	if err != nil {
		return "", 0, err
	}
	w, err := newAtomicFile(dest)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(w, r)
	if err != nil {
		w.Abort()
		return "", 0, fmt.Errorf("store %s: %w", name, err)
	}
	if n == 0 {
		w.Abort()
		return "", 0, fmt.Errorf("%w: %s", ErrEmpty, name)
	}
	if err := w.Close(); err != nil {
		return "", 0, fmt.Errorf("store %s: %w", name, err)
	}
	return dest, n, nil
}

// StoreWithUniqueID stores r under name with a UUID inserted before the extension.
func (s *Service) StoreWithUniqueID(dir, name string, r io.Reader, maxLen int) (string, int64, error) {
	return s.Store(dir, UniqueName(name, maxLen), r)
}

// Create returns a writer for dir/name that becomes visible on Close.
func (s *Service) Create(dir, name string) (io.WriteCloser, error) {
	dest, err := s.Path(dir, name)
	if err != nil {
		return nil, err
	}
	return newAtomicFile(dest)
}

// Open returns the regular file dir/name with its info.
func (s *Service) Open(dir, name string) (*os.File, os.FileInfo, error) {
	p, err := s.Path(dir, name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return f, info, nil
}

// Delete removes dir/name and reports whether it existed.
func (s *Service) Delete(dir, name string) (bool, error) {
	p, err := s.Path(dir, name)
	if err != nil {
		return false, err
	}
	err = os.Remove(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not delete file %s: %w", p, err)
	}
	return true, nil
}

// UniqueName returns "<stem>_<uuid><ext>", shortening the stem so the result
// fits maxLen when maxLen > 0.
func UniqueName(name string, maxLen int) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	id := uuid.NewString()
	if maxLen > 0 {
		if room := maxLen - len(id) - len(ext) - 1; room < len(stem) {
			if room < 0 {
				room = 0
			}
			stem = stem[:room]
		}
	}
	if stem == "" {
		return id + ext
	}
	return stem + "_" + id + ext
}

type atomicFile struct {
	*os.File
	dest string
	done bool
}

func newAtomicFile(dest string) (*atomicFile, error) {
	f, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return nil, err
	}
	return &atomicFile{File: f, dest: dest}, nil
}

func (a *atomicFile) Close() error {
	if a.done {
		return nil
	}
	a.done = true
	if err := a.File.Close(); err != nil {
		os.Remove(a.Name())
		return err
	}
	if err := os.Rename(a.Name(), a.dest); err != nil {
		os.Remove(a.Name())
		return err
	}
	return nil
}

// Abort discards the temporary file.
func (a *atomicFile) Abort() {
	if a.done {
		return
	}
	a.done = true
	a.File.Close()
	os.Remove(a.Name())
}
