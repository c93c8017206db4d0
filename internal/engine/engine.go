// Package engine polls an inbox directory and drives every matching entry
// through a processor on a worker pool, holding a claim on the entry until its
// attempt-cycle ends.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chtzvt/dropslurp/internal/failure"
	"github.com/chtzvt/dropslurp/internal/filter"
	"github.com/chtzvt/dropslurp/internal/inflight"
	"github.com/chtzvt/dropslurp/internal/pool"
	"github.com/rs/zerolog"
)

const (
	DefaultScanInterval = 3 * time.Second
	DefaultErrorBackoff = 15 * time.Second
	DefaultRetryDelay   = 15 * time.Minute
	DefaultPurgeAge     = 24 * time.Hour
	DefaultWorkers      = 4
	DefaultQueueSize    = 100
)

var ErrStopped = errors.New("engine is stopped")

// Processor handles one inbox entry. Returning a failure.Failure lets it pick
// retry, duplicate or redirect routing; any other error is terminal.
type Processor interface {
	Process(ctx context.Context, path string) error
}

type ProcessorFunc func(ctx context.Context, path string) error

func (f ProcessorFunc) Process(ctx context.Context, path string) error { return f(ctx, path) }

// Completion receives entries whose attempt-cycle ended. router.Router implements it.
type Completion interface {
	Completed(path string)
	Failed(path string, err error)
}

type Config struct {
	Root       string
	Filter     filter.Filter
	Processor  Processor
	Completion Completion    // nil leaves finished entries in place
	Pool       pool.Executor // nil starts a WorkerPool of DefaultWorkers
	Logger     zerolog.Logger

	ScanInterval time.Duration
	ErrorBackoff time.Duration
	RetryDelay   time.Duration
	PurgeAge     time.Duration

	// SkipStartupPurge disables the sweep of stale non-matching entries on Start.
	SkipStartupPurge bool

	// Active gates each scan iteration. Nil means always active.
	Active func(now time.Time) bool
	// Retry decides whether a failed attempt is retried. Defaults to failure.IsRecoverable.
	Retry func(path string, err error) bool
}

func (c *Config) applyDefaults() {
	if c.ScanInterval <= 0 {
		c.ScanInterval = DefaultScanInterval
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = DefaultErrorBackoff
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.PurgeAge <= 0 {
		c.PurgeAge = DefaultPurgeAge
	}
	if c.Filter == nil {
		c.Filter = filter.All()
	}
	if c.Active == nil {
		c.Active = func(time.Time) bool { return true }
	}
	if c.Retry == nil {
		c.Retry = func(_ string, err error) bool { return failure.IsRecoverable(err) }
	}
	if c.Pool == nil {
		c.Pool = pool.NewWorkerPool(DefaultWorkers, DefaultQueueSize, c.Logger)
	}
}

type Engine struct {
	cfg     Config
	logger  zerolog.Logger
	claims  *inflight.Set
	metrics *Metrics

	scanMu sync.Mutex

	retryMu  sync.Mutex
	retrying map[string]struct{} // claimed paths waiting on a scheduled retry

	mu        sync.Mutex // guards the lifecycle fields below
	started   bool
	stopped   bool
	cancel    context.CancelFunc
	loopDone  chan struct{}
	purgeDone chan struct{}
	procCtx   context.Context

	shutdown atomic.Bool
}

func New(cfg Config) (*Engine, error) {
	if cfg.Root == "" {
		return nil, errors.New("engine: root directory is required")
	}
	if cfg.Processor == nil {
		return nil, errors.New("engine: processor is required")
	}
	cfg.applyDefaults()
	return &Engine{
		cfg:       cfg,
		logger:    cfg.Logger,
		claims:    inflight.New(),
		metrics:   &Metrics{},
		retrying:  make(map[string]struct{}),
		loopDone:  make(chan struct{}),
		purgeDone: make(chan struct{}),
		procCtx:   context.Background(),
	}, nil
}

func (e *Engine) Root() string { return e.cfg.Root }

// Claims exposes the in-flight set, mostly for inspection.
func (e *Engine) Claims() *inflight.Set { return e.claims }

// Start launches the startup purge and the scan loop. It returns once both are
// running. Calling Start on a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return ErrStopped
	}
	if e.started {
		return nil
	}

	info, err := os.Stat(e.cfg.Root)
	if err != nil {
		return fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %s is not a directory", e.cfg.Root)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	// In-flight attempts outlive Stop; only the scan loop follows ctx.
	e.procCtx = context.WithoutCancel(ctx)
	e.started = true

	if e.cfg.SkipStartupPurge {
		close(e.purgeDone)
	} else {
		go func() {
			defer close(e.purgeDone)
			if _, err := e.Purge(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error().Err(err).Msg("startup purge failed")
			}
		}()
	}
	go e.run(loopCtx)

	e.logger.Info().
		Str("root", e.cfg.Root).
		Dur("scan_interval", e.cfg.ScanInterval).
		Dur("retry_delay", e.cfg.RetryDelay).
		Msg("engine started")
	return nil
}

// Stop refuses new dispatches, waits for the scan loop to exit and shuts the
// worker pool down. Attempts already running are left to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.shutdown.Store(true)
	started, cancel := e.started, e.cancel
	e.mu.Unlock()

	if started {
		cancel()
		<-e.loopDone
		<-e.purgeDone
	}
	e.cfg.Pool.Shutdown()
	if n := e.dropRetries(); n > 0 {
		e.logger.Info().Int("dropped", n).Msg("pending retries cancelled")
	}
	e.logger.Info().Int("in_flight", e.claims.Len()).Msg("engine stopped")
}

// Done is closed when the scan loop has exited.
func (e *Engine) Done() <-chan struct{} { return e.loopDone }
