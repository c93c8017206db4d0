// Package router decides what happens to an inbox entry once its attempt-cycle ends:
// it is deleted, archived (optionally under a per-day directory), moved to an error
// or duplicate directory, or left where it is.
//
// Router never returns errors. Every filesystem failure is logged and swallowed so
// the engine can always release the entry's claim.
package router

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chtzvt/dropslurp/internal/failure"
	"github.com/rs/zerolog"
)

// Config is fixed at construction.
type Config struct {
	DeleteOnSuccess bool   `mapstructure:"delete_on_success"`
	DeleteOnFailure bool   `mapstructure:"delete_on_failure"`
	CompletedDir    string `mapstructure:"completed_dir"`   // optional archive for successful entries
	ArchiveByDate   bool   `mapstructure:"archive_by_date"` // partition CompletedDir by yyyy/MM/d
	FailedDir       string `mapstructure:"failed_dir"`
	DuplicateDir    string `mapstructure:"duplicate_dir"`
	CheckExists     bool   `mapstructure:"check_exists"` // skip quietly when the source vanished
}

const (
	dirReportName = "error.log"
	reportSuffix  = "_error.log"
)

type Router struct {
	cfg     Config
	logger  zerolog.Logger
	archive *datedDir
}

type Option func(*Router)

// WithClock replaces time.Now for the archive partitioning.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if r.archive != nil {
			r.archive.now = now
		}
	}
}

func New(cfg Config, logger zerolog.Logger, opts ...Option) *Router {
	r := &Router{cfg: cfg, logger: logger}
	if cfg.CompletedDir != "" && cfg.ArchiveByDate {
		r.archive = newDatedDir(cfg.CompletedDir)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Config() Config { return r.cfg }

// Completed routes an entry whose processing succeeded.
func (r *Router) Completed(path string) {
	if target := r.completedTarget(); target != "" {
		r.move(path, target)
		return
	}
	if r.cfg.DeleteOnSuccess {
		r.remove(path)
	}
}

// Failed routes an entry whose processing failed terminally.
func (r *Router) Failed(path string, err error) {
	if failure.IsDuplicate(err) {
		if r.cfg.DuplicateDir != "" {
			r.move(path, r.cfg.DuplicateDir)
		} else {
			r.remove(path)
		}
		return
	}

	target := failure.Destination(err)
	if target == "" {
		target = r.cfg.FailedDir
	}
	if target != "" {
		if dest := r.move(path, target); dest != "" {
			r.writeReport(dest, err)
		}
		return
	}
	if r.cfg.DeleteOnFailure {
		r.remove(path)
	}
}

func (r *Router) completedTarget() string {
	if r.archive == nil {
		return r.cfg.CompletedDir
	}
	dir, err := r.archive.path()
	if err != nil {
		r.logger.Error().Err(err).Str("dir", dir).Msg("cannot create archive directory, using base")
		return r.cfg.CompletedDir
	}
	return dir
}

// move places path inside dir and returns the new location, or "" when nothing moved.
func (r *Router) move(path, dir string) string {
	dest := filepath.Join(dir, filepath.Base(path))
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) && r.cfg.CheckExists {
			r.logger.Debug().Str("path", path).Msg("entry vanished before move, skipping")
			return ""
		}
		r.logger.Error().Err(err).Str("path", path).Msg("move failed")
		return ""
	}

	if info.IsDir() {
		err = moveDir(path, dest)
	} else {
		err = moveFile(path, dest)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("path", path).Str("dest", dest).Msg("move failed")
		return ""
	}
	r.logger.Info().Str("path", path).Str("dest", dest).Msg("entry moved")
	return dest
}

func (r *Router) remove(path string) {
	if err := os.RemoveAll(path); err != nil {
		r.logger.Error().Err(err).Str("path", path).Msg("delete failed")
		return
	}
	r.logger.Info().Str("path", path).Msg("entry deleted")
}

// ReportPath returns where the error report for a moved entry is written:
// error.log inside a directory, <stem>_error.log next to a file.
func ReportPath(dest string) string {
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		return filepath.Join(dest, dirReportName)
	}
	return strings.TrimSuffix(dest, filepath.Ext(dest)) + reportSuffix
}

func (r *Router) writeReport(dest string, cause error) {
	if cause == nil {
		return
	}
	reportPath := ReportPath(dest)
	r.logger.Info().Str("report", reportPath).Msg("writing error report")

	f, err := os.Create(reportPath)
	if err != nil {
		r.logger.Error().Err(err).Str("report", reportPath).Msg("write error report failed")
		return
	}
	defer f.Close()

	if err := renderReport(f, cause); err != nil {
		r.logger.Error().Err(err).Str("report", reportPath).Msg("write error report failed")
	}
}

func renderReport(w io.Writer, cause error) error {
	if body, ok := failure.ResponseBody(cause); ok {
		if _, err := fmt.Fprintf(w, "Response body :\n%s\n", body); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, failure.Trace(cause))
	return err
}
