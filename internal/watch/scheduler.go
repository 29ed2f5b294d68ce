package watch

// Poll scheduling. One always-on loop per monitor: run a pass, sleep a
// jittered interval, repeat until the context dies. A pass fans out over
// subjects concurrently; each subject's pipeline fails alone.

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	log "clutch-protocol/internal/infra/log"
)

type Scheduler struct {
	minInterval time.Duration
	maxInterval time.Duration

	mu      sync.Mutex
	running bool
}

func NewScheduler(minInterval, maxInterval time.Duration) *Scheduler {
	if maxInterval < minInterval {
		maxInterval = minInterval
	}
	return &Scheduler{minInterval: minInterval, maxInterval: maxInterval}
}

// NextInterval draws a uniform duration in [min, max].
func (s *Scheduler) NextInterval() time.Duration {
	span := s.maxInterval - s.minInterval
	if span <= 0 {
		return s.minInterval
	}
	return s.minInterval + time.Duration(rand.Int63n(int64(span)+1))
}

// TryBegin marks a pass as running. It returns false while a previous pass
// for this scheduler has not finished.
func (s *Scheduler) TryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) End() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Run drives pass until ctx is cancelled. Passes run off the timing loop;
// a pass that outlives its interval makes the next tick skip, not queue.
func (s *Scheduler) Run(ctx context.Context, pass func(context.Context)) {
	for {
		if s.TryBegin() {
			go func() {
				defer s.End()
				pass(ctx)
			}()
		} else {
			log.LogWarn("Previous poll pass still running, skipping")
		}

		wait := s.NextInterval()
		log.LogInfo("Next poll scheduled", zap.Duration("nextPollIn", wait))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// FanOut runs fn over every item concurrently and waits for all outcomes.
// Panics are contained per item so one subject cannot take down a pass.
func FanOut[T any](ctx context.Context, items []T, fn func(context.Context, T)) {
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func(item T) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.LogError("Subject pipeline panicked", zap.Any("panic", r))
				}
			}()
			fn(ctx, item)
		}(item)
	}
	wg.Wait()
}
