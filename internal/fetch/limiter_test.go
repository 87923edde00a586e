package fetch

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestWindowLimiterBlocksAtCapacity(t *testing.T) {
	limiter := newWindowLimiter(39, 10*time.Second)
	limiter.bucket = rate.NewLimiter(rate.Inf, 0)

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return clock }

	var slept []time.Duration
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		clock = clock.Add(d)
		return nil
	}

	ctx := context.Background()
	for i := 0; i < 39; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}
	if len(slept) != 0 {
		t.Fatalf("first 39 requests should not block, slept %v", slept)
	}
	if got := limiter.inFlight(); got != 39 {
		t.Fatalf("inFlight = %d, want 39", got)
	}

	// The 40th request must wait until the oldest timestamp exits the
	// window.
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("Wait 40: %v", err)
	}
	if len(slept) == 0 {
		t.Fatal("40th request should have blocked")
	}
	if slept[0] != 10*time.Second {
		t.Fatalf("expected full-window wait, slept %v", slept[0])
	}
}

func TestWindowLimiterPrunesExpiredStamps(t *testing.T) {
	limiter := newWindowLimiter(2, 10*time.Second)
	limiter.bucket = rate.NewLimiter(rate.Inf, 0)

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return clock }
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		clock = clock.Add(d)
		return nil
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}

	clock = clock.Add(11 * time.Second)
	if got := limiter.inFlight(); got != 0 {
		t.Fatalf("expired stamps should be pruned, inFlight = %d", got)
	}
}

func TestWindowLimiterHonorsCancellation(t *testing.T) {
	limiter := newWindowLimiter(1, 10*time.Second)
	limiter.bucket = rate.NewLimiter(rate.Inf, 0)

	ctx, cancel := context.WithCancel(context.Background())
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	cancel()
	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("expected cancellation error while blocked")
	}
}
