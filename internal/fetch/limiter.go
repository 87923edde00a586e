package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// windowLimiter enforces a strict sliding-window request cap: at most
// maxRequests calls inside any span-long interval. Callers block until the
// oldest recorded request leaves the window. A token-bucket limiter sits in
// front to smooth bursts between window boundaries.
type windowLimiter struct {
	mu          sync.Mutex
	stamps      []time.Time
	maxRequests int
	span        time.Duration
	bucket      *rate.Limiter
	now         func() time.Time
	sleep       func(context.Context, time.Duration) error
}

func newWindowLimiter(maxRequests int, span time.Duration) *windowLimiter {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	if span <= 0 {
		span = time.Second
	}
	perSecond := float64(maxRequests) / span.Seconds()
	return &windowLimiter{
		stamps:      make([]time.Time, 0, maxRequests),
		maxRequests: maxRequests,
		span:        span,
		bucket:      rate.NewLimiter(rate.Limit(perSecond), maxRequests),
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Wait blocks until a request slot is available or the context is cancelled.
// The slot is recorded before returning, so callers must issue the request
// they reserved.
func (l *windowLimiter) Wait(ctx context.Context) error {
	if err := l.bucket.Wait(ctx); err != nil {
		return err
	}
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)
		if len(l.stamps) < l.maxRequests {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}
		wait := l.stamps[0].Add(l.span).Sub(now)
		l.mu.Unlock()
		if wait <= 0 {
			continue
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// prune drops timestamps that have left the window. Caller holds the lock.
func (l *windowLimiter) prune(now time.Time) {
	cutoff := now.Add(-l.span)
	idx := 0
	for idx < len(l.stamps) && !l.stamps[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[idx:]...)
	}
}

// inFlight reports how many requests currently occupy the window.
func (l *windowLimiter) inFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.stamps)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
