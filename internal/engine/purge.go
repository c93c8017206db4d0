package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Purge removes direct children of the root that do not pass the filter and
// were last modified more than PurgeAge ago. It returns how many were removed.
func (e *Engine) Purge(ctx context.Context) (removed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("purge panic: %v", r)
		}
	}()

	entries, err := os.ReadDir(e.cfg.Root)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", e.cfg.Root, err)
	}

	cutoff := time.Now().Add(-e.cfg.PurgeAge)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if e.cfg.Filter(e.cfg.Root, entry.Name()) {
			continue
		}

		path := filepath.Join(e.cfg.Root, entry.Name())
		// Filters that stat the entry reject it when the stat fails.
		if _, err := os.Stat(path); err != nil {
			e.logger.Warn().Err(err).Str("path", path).Msg("purge: cannot stat entry, skipping")
			continue
		}
		info, err := entry.Info()
		if err != nil {
			e.logger.Warn().Err(err).Str("path", path).Msg("purge: cannot read modification time, skipping")
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if e.cfg.Filter(e.cfg.Root, entry.Name()) {
			e.logger.Warn().Str("path", path).Msg("purge: entry matched on recheck, skipping")
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			e.logger.Error().Err(err).Str("path", path).Msg("purge: delete failed")
			continue
		}
		removed++
		e.logger.Info().Str("path", path).Time("modified", info.ModTime()).Msg("purged stale entry")
	}
	e.logger.Info().Int("removed", removed).Msg("purge finished")
	return removed, nil
}
