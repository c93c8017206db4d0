package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsAllTasks(t *testing.T) {
	p := NewWorkerPool(3, 64, zerolog.Nop())
	defer p.Shutdown()

	var wg sync.WaitGroup
	var done int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		require.NoError(t, p.Execute(func() {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&done, 1)
		}))
	}
	wg.Wait()
	require.Equal(t, int64(50), atomic.LoadInt64(&done))
}

func TestWorkerPoolQueueFull(t *testing.T) {
	p := NewWorkerPool(1, 1, zerolog.Nop())
	defer p.Shutdown()

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Execute(func() { close(started); <-block }))
	<-started
	require.NoError(t, p.Execute(func() {}))
	require.ErrorIs(t, p.Execute(func() {}), ErrQueueFull)
	close(block)
}

func TestWorkerPoolRecoversPanics(t *testing.T) {
	p := NewWorkerPool(1, 4, zerolog.Nop())
	defer p.Shutdown()

	require.NoError(t, p.Execute(func() { panic("boom") }))
	done := make(chan struct{})
	require.NoError(t, p.Execute(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking task")
	}
}

func TestWorkerPoolScheduleRunsAfterDelay(t *testing.T) {
	p := NewWorkerPool(1, 4, zerolog.Nop())
	defer p.Shutdown()

	start := time.Now()
	ran := make(chan time.Duration, 1)
	require.NoError(t, p.Schedule(func() { ran <- time.Since(start) }, 50*time.Millisecond))

	_, scheduled := p.Pending()
	require.Equal(t, 1, scheduled)

	select {
	case d := <-ran:
		require.GreaterOrEqual(t, d, 50*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled task never ran")
	}
}

func TestWorkerPoolShutdown(t *testing.T) {
	p := NewWorkerPool(2, 4, zerolog.Nop())

	var ran atomic.Bool
	require.NoError(t, p.Schedule(func() { ran.Store(true) }, 30*time.Millisecond))
	p.Shutdown()
	p.Shutdown()
	p.Wait()

	require.ErrorIs(t, p.Execute(func() {}), ErrShutdown)
	require.ErrorIs(t, p.Schedule(func() {}, time.Millisecond), ErrShutdown)

	time.Sleep(60 * time.Millisecond)
	require.False(t, ran.Load(), "pending scheduled task must be cancelled by Shutdown")
}

func TestGoExecutor(t *testing.T) {
	g := NewGoExecutor(zerolog.Nop())
	var n int64
	for i := 0; i < 10; i++ {
		require.NoError(t, g.Execute(func() { atomic.AddInt64(&n, 1) }))
	}
	g.Shutdown()
	g.Wait()
	require.Equal(t, int64(10), atomic.LoadInt64(&n))
	require.ErrorIs(t, g.Execute(func() {}), ErrShutdown)

	var _ Executor = g
	_, isScheduler := interface{}(g).(Scheduler)
	require.False(t, isScheduler)
}
