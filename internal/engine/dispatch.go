package engine

import (
	"time"

	"github.com/chtzvt/dropslurp/internal/failure"
	"github.com/chtzvt/dropslurp/internal/pool"
)

// submit claims path and hands it to the pool. Claimed paths are skipped.
func (e *Engine) submit(path string) {
	if e.shutdown.Load() {
		return
	}
	if !e.claims.Claim(path) {
		return
	}
	e.logger.Debug().Str("path", path).Msg("entry claimed")
	e.dispatch(path)
}

// dispatch enqueues an attempt for an already claimed path.
func (e *Engine) dispatch(path string) {
	if e.shutdown.Load() {
		e.claims.Release(path)
		return
	}
	if err := e.cfg.Pool.Execute(func() { e.attempt(path) }); err != nil {
		e.claims.Release(path)
		e.metrics.refused.Add(1)
		e.logger.Warn().Err(err).Str("path", path).Msg("dispatch refused, entry will be rediscovered")
	}
}

func (e *Engine) attempt(path string) {
	log := e.logger.With().Str("path", path).Logger()
	start := time.Now()
	log.Info().Msg("processing started")

	err := e.process(path)
	switch {
	case err == nil:
		e.metrics.processed.Add(1)
		e.finish(path, func() {
			if e.cfg.Completion != nil {
				e.cfg.Completion.Completed(path)
			}
		})
	case e.cfg.Retry(path, err):
		e.retry(path, err)
	default:
		if failure.IsDuplicate(err) {
			e.metrics.duplicates.Add(1)
			log.Warn().Err(err).Msg("duplicate entry")
		} else {
			e.metrics.failed.Add(1)
			log.Error().Err(err).Msg("processing failed")
		}
		e.finish(path, func() {
			if e.cfg.Completion != nil {
				e.cfg.Completion.Failed(path, err)
			}
		})
	}

	elapsed := time.Since(start)
	e.metrics.addProcessingTime(elapsed)
	log.Info().Dur("elapsed", elapsed).Bool("ok", err == nil).Msg("processing finished")
}

func (e *Engine) process(path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = failure.Errorf("processor panic: %v", r)
		}
	}()
	return e.cfg.Processor.Process(e.procCtx, path)
}

// finish runs the routing hook and releases the claim even if the hook panics.
func (e *Engine) finish(path string, hook func()) {
	defer e.claims.Release(path)
	hook()
}

// retry re-dispatches path after RetryDelay while keeping it claimed. Pools
// that cannot schedule get the attempt back immediately.
func (e *Engine) retry(path string, cause error) {
	e.metrics.retried.Add(1)
	if e.shutdown.Load() {
		e.claims.Release(path)
		return
	}

	sched, ok := e.cfg.Pool.(pool.Scheduler)
	if !ok {
		e.logger.Warn().Err(cause).Str("path", path).Msg("worker pool cannot schedule, retries are not delayed")
		e.dispatch(path)
		return
	}

	e.logger.Warn().Err(cause).Str("path", path).Dur("delay", e.cfg.RetryDelay).Msg("attempt failed, retry scheduled")
	e.markRetry(path)
	err := sched.Schedule(func() {
		if !e.takeRetry(path) {
			return
		}
		if e.shutdown.Load() {
			e.claims.Release(path)
			return
		}
		e.attempt(path)
	}, e.cfg.RetryDelay)
	if err != nil {
		if e.takeRetry(path) {
			e.claims.Release(path)
		}
		e.logger.Warn().Err(err).Str("path", path).Msg("retry not scheduled, entry will be rediscovered")
	}
}

func (e *Engine) markRetry(path string) {
	e.retryMu.Lock()
	e.retrying[path] = struct{}{}
	e.retryMu.Unlock()
}

// takeRetry removes path from the pending retries. Only the caller that gets
// true owns the claim.
func (e *Engine) takeRetry(path string) bool {
	e.retryMu.Lock()
	defer e.retryMu.Unlock()
	if _, ok := e.retrying[path]; !ok {
		return false
	}
	delete(e.retrying, path)
	return true
}

// dropRetries releases the claims of retries the pool will never run.
func (e *Engine) dropRetries() int {
	e.retryMu.Lock()
	pending := e.retrying
	e.retrying = make(map[string]struct{})
	e.retryMu.Unlock()

	for path := range pending {
		e.claims.Release(path)
	}
	return len(pending)
}
