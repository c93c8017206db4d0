package inflight

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClaimRelease(t *testing.T) {
	s := New()
	require.True(t, s.Claim("/in/a"))
	require.False(t, s.Claim("/in/a"))
	require.True(t, s.Contains("/in/a"))
	require.Equal(t, 1, s.Len())

	require.True(t, s.Release("/in/a"))
	require.False(t, s.Release("/in/a"), "double release must report absence")
	require.False(t, s.Contains("/in/a"))
	require.True(t, s.Claim("/in/a"))
}

func TestConcurrentClaimHasSingleWinner(t *testing.T) {
	s := New()
	var winners int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if s.Claim("/in/contended.xml") {
				atomic.AddInt64(&winners, 1)
			}
		}()
	}
	close(start)
	wg.Wait()
	require.Equal(t, int64(1), winners)
}

func TestSnapshotIsCopy(t *testing.T) {
	s := New()
	s.Claim("/in/a")
	snap := s.Snapshot()
	delete(snap, "/in/a")
	require.True(t, s.Contains("/in/a"))
}
