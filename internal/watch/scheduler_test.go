package watch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextIntervalWithinBounds(t *testing.T) {
	s := NewScheduler(60*time.Second, 180*time.Second)
	for i := 0; i < 1000; i++ {
		interval := s.NextInterval()
		require.GreaterOrEqual(t, interval, 60*time.Second)
		require.LessOrEqual(t, interval, 180*time.Second)
	}
}

func TestNextIntervalDegenerateRange(t *testing.T) {
	s := NewScheduler(30*time.Second, 30*time.Second)
	require.Equal(t, 30*time.Second, s.NextInterval())

	// Max below min collapses to min.
	s = NewScheduler(30*time.Second, 10*time.Second)
	require.Equal(t, 30*time.Second, s.NextInterval())
}

func TestTryBeginBlocksOverlap(t *testing.T) {
	s := NewScheduler(time.Second, time.Second)

	require.True(t, s.TryBegin())
	require.False(t, s.TryBegin(), "second pass must be refused while first runs")
	s.End()
	require.True(t, s.TryBegin())
	s.End()
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := NewScheduler(time.Millisecond, 2*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	var passes atomic.Int32
	done := make(chan struct{})
	go func() {
		s.Run(ctx, func(context.Context) { passes.Add(1) })
		close(done)
	}()

	require.Eventually(t, func() bool { return passes.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestRunSkipsTicksDuringLongPass(t *testing.T) {
	s := NewScheduler(time.Millisecond, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var passes atomic.Int32
	release := make(chan struct{})
	go s.Run(ctx, func(context.Context) {
		passes.Add(1)
		<-release
	})

	require.Eventually(t, func() bool { return passes.Load() == 1 }, time.Second, time.Millisecond)

	// Many intervals elapse while the first pass blocks; none may start
	// a second pass.
	time.Sleep(30 * time.Millisecond)
	require.EqualValues(t, 1, passes.Load())

	close(release)
	require.Eventually(t, func() bool { return passes.Load() >= 2 }, time.Second, time.Millisecond)
}

func TestFanOutRunsAllItems(t *testing.T) {
	var mu sync.Mutex
	seen := map[int]bool{}

	FanOut(context.Background(), []int{1, 2, 3, 4, 5}, func(ctx context.Context, n int) {
		mu.Lock()
		seen[n] = true
		mu.Unlock()
	})

	require.Len(t, seen, 5)
}

func TestFanOutContainsPanics(t *testing.T) {
	var completed atomic.Int32

	require.NotPanics(t, func() {
		FanOut(context.Background(), []int{1, 2, 3}, func(ctx context.Context, n int) {
			if n == 2 {
				panic("subject blew up")
			}
			completed.Add(1)
		})
	})
	require.EqualValues(t, 2, completed.Load())
}
