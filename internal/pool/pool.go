// Package pool provides the worker pools the engine submits processing attempts to.
package pool

import (
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrQueueFull = errors.New("worker pool queue is full")
	ErrShutdown  = errors.New("worker pool is shut down")
)

// Executor runs units of work. Shutdown stops accepting new work; queued and
// running tasks are left to finish.
type Executor interface {
	Execute(task func()) error
	Shutdown()
}

// Scheduler is implemented by executors able to run a task after a delay.
type Scheduler interface {
	Schedule(task func(), delay time.Duration) error
}

// WorkerPool is a fixed set of goroutines draining a bounded queue. It also
// implements Scheduler: delayed tasks are enqueued when their timer fires.
type WorkerPool struct {
	workers int
	tasks   chan func()
	wg      sync.WaitGroup

	mu        sync.RWMutex // guards closed and the tasks channel close
	closed    bool
	closing   chan struct{}
	closeOnce sync.Once

	timersMu sync.Mutex
	timers   map[*time.Timer]struct{}

	logger zerolog.Logger
}

// NewWorkerPool starts workers goroutines behind a queue of queueSize tasks.
func NewWorkerPool(workers, queueSize int, logger zerolog.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	p := &WorkerPool{
		workers: workers,
		tasks:   make(chan func(), queueSize),
		closing: make(chan struct{}),
		timers:  make(map[*time.Timer]struct{}),
		logger:  logger,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		runSafely(p.logger, task)
	}
}

// Execute enqueues task without blocking.
func (p *WorkerPool) Execute(task func()) error {
	if task == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrShutdown
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Schedule enqueues task once delay has elapsed. When the timer fires the task
// waits for queue space rather than being dropped; only Shutdown discards it.
func (p *WorkerPool) Schedule(task func(), delay time.Duration) error {
	if task == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrShutdown
	}

	p.timersMu.Lock()
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		p.timersMu.Lock()
		delete(p.timers, t)
		p.timersMu.Unlock()
		p.enqueueWait(task)
	})
	p.timers[t] = struct{}{}
	p.timersMu.Unlock()
	return nil
}

func (p *WorkerPool) enqueueWait(task func()) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn().Msg("scheduled task dropped: pool is shut down")
		return
	}
	select {
	case p.tasks <- task:
	case <-p.closing:
		p.logger.Warn().Msg("scheduled task dropped: pool is shutting down")
	}
}

// Shutdown refuses new work, cancels pending scheduled tasks and lets the
// workers drain what is already queued. It does not block; see Wait.
func (p *WorkerPool) Shutdown() {
	p.closeOnce.Do(func() {
		close(p.closing)

		p.timersMu.Lock()
		for t := range p.timers {
			t.Stop()
			delete(p.timers, t)
		}
		p.timersMu.Unlock()

		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
	})
}

// Wait blocks until every worker has exited. Call after Shutdown.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Pending returns the number of queued tasks and of scheduled tasks not yet due.
func (p *WorkerPool) Pending() (queued, scheduled int) {
	p.timersMu.Lock()
	scheduled = len(p.timers)
	p.timersMu.Unlock()
	return len(p.tasks), scheduled
}

// GoExecutor runs every task on its own goroutine. It has no delayed
// scheduling, so engines using it retry immediately.
type GoExecutor struct {
	wg     sync.WaitGroup
	closed atomic.Bool
	logger zerolog.Logger
}

func NewGoExecutor(logger zerolog.Logger) *GoExecutor {
	return &GoExecutor{logger: logger}
}

func (g *GoExecutor) Execute(task func()) error {
	if task == nil {
		return nil
	}
	if g.closed.Load() {
		return ErrShutdown
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		runSafely(g.logger, task)
	}()
	return nil
}

func (g *GoExecutor) Shutdown() {
	g.closed.Store(true)
}

func (g *GoExecutor) Wait() {
	g.wg.Wait()
}

func runSafely(logger zerolog.Logger, task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("worker recovered panic")
		}
	}()
	task()
}
