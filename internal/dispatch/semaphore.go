// Package dispatch implements the bounded worker pool and the process-wide
// transcription semaphore (spec §4.5). The semaphore is a simple buffered
// channel of tokens; the worker pool is built on golang.org/x/sync/errgroup
// with SetLimit, the same package the pack already pulls in for bounded
// fan-out (glyphoxa, vice).
package dispatch

import (
	"context"

	"github.com/whisperpipe/transcribe-api/internal/metrics"
)

// GlobalSemaphore bounds the number of in-flight engine calls process-wide
// (spec §5's "global transcription semaphore"; spec §8 property 3). It is a
// process-lifetime singleton constructed once in main and passed down
// explicitly, never an ambient global.
type GlobalSemaphore struct {
	tokens chan struct{}

	// Metrics is optional; when set, Acquire/Release report the current
	// permit occupancy (spec §8 property 3).
	Metrics *metrics.Metrics
}

// NewGlobalSemaphore creates a semaphore with the given number of permits,
// derived from GLOBAL_TRANSCRIBE_LIMIT (spec §4.5/§6).
func NewGlobalSemaphore(limit int) *GlobalSemaphore {
	if limit < 1 {
		limit = 1
	}
	return &GlobalSemaphore{tokens: make(chan struct{}, limit)}
}

// Acquire blocks until a permit is available or ctx is cancelled.
func (s *GlobalSemaphore) Acquire(ctx context.Context) error {
	select {
	case s.tokens <- struct{}{}:
		if s.Metrics != nil {
			s.Metrics.GlobalSemaphoreUsed.Add(ctx, 1)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit to the pool.
func (s *GlobalSemaphore) Release() {
	<-s.tokens
	if s.Metrics != nil {
		s.Metrics.GlobalSemaphoreUsed.Add(context.Background(), -1)
	}
}

// InUse reports the number of permits currently held. Intended for
// diagnostics and tests verifying the global bound (spec §8 property 3); not
// used on any hot path.
func (s *GlobalSemaphore) InUse() int {
	return len(s.tokens)
}

// Limit reports the configured number of permits.
func (s *GlobalSemaphore) Limit() int {
	return cap(s.tokens)
}
