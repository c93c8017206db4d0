package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

func (e *Engine) run(ctx context.Context) {
	defer close(e.loopDone)

	for ctx.Err() == nil {
		wait := e.cfg.ScanInterval
		if err := e.iterate(ctx); err != nil {
			e.logger.Error().Err(err).Dur("backoff", e.cfg.ErrorBackoff).Msg("scan failed")
			wait = e.cfg.ErrorBackoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (e *Engine) iterate(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan panic: %v", r)
		}
	}()
	if !e.cfg.Active(time.Now()) {
		return nil
	}
	return e.Refresh(ctx)
}

// Refresh lists the root once and dispatches every matching entry that is not
// already claimed. Concurrent calls are serialized.
func (e *Engine) Refresh(ctx context.Context) (err error) {
	e.scanMu.Lock()
	defer e.scanMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan panic: %v", r)
		}
	}()

	entries, err := os.ReadDir(e.cfg.Root)
	if err != nil {
		return fmt.Errorf("list %s: %w", e.cfg.Root, err)
	}
	for _, entry := range entries {
		if ctx.Err() != nil || e.shutdown.Load() {
			return nil
		}
		if !e.cfg.Filter(e.cfg.Root, entry.Name()) {
			continue
		}
		e.submit(filepath.Join(e.cfg.Root, entry.Name()))
	}
	return nil
}
