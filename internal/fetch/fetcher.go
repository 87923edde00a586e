package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"artgrab/internal/config"
	"artgrab/internal/logging"
	"artgrab/internal/services"
)

// HTTPDoer describes the HTTP client used by the fetcher.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher issues provider HTTP requests under a per-provider sliding-window
// cap, retrying throttled responses with exponential backoff. Failures carry
// the services error markers so callers can distinguish "nothing there"
// (services.ErrNotFound) from throttling and transport trouble.
type Fetcher struct {
	client      HTTPDoer
	logger      *slog.Logger
	maxRequests int
	span        time.Duration
	attempts    int
	backoffBase time.Duration

	mu       sync.Mutex
	limiters map[string]*windowLimiter

	sleep func(context.Context, time.Duration) error
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithSleep overrides the backoff sleeper (used in tests).
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(f *Fetcher) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

// New constructs a Fetcher from the fetch policy in config.
func New(cfg config.Fetch, logger *slog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      &http.Client{Timeout: 30 * time.Second},
		logger:      logging.WithComponent(logger, "fetch"),
		maxRequests: cfg.WindowRequests,
		span:        time.Duration(cfg.WindowSeconds) * time.Second,
		attempts:    cfg.RetryAttempts,
		backoffBase: time.Duration(cfg.RetryBaseMS) * time.Millisecond,
		limiters:    make(map[string]*windowLimiter),
		sleep:       sleepContext,
	}
	if f.maxRequests <= 0 {
		f.maxRequests = 39
	}
	if f.span <= 0 {
		f.span = 10 * time.Second
	}
	if f.attempts <= 0 {
		f.attempts = 4
	}
	if f.backoffBase <= 0 {
		f.backoffBase = time.Second
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchJSON performs a rate-limited GET against the given provider and
// decodes the response body into out. The provider key selects the sliding
// window; distinct providers never share a window.
func (f *Fetcher) FetchJSON(ctx context.Context, provider, rawURL string, headers map[string]string, out any) error {
	if _, err := url.Parse(rawURL); err != nil {
		return services.Wrap(services.ErrValidation, "fetch", "parse url", rawURL, err)
	}

	limiter := f.limiterFor(provider)

	var lastErr error
	for attempt := 0; attempt < f.attempts; attempt++ {
		if attempt > 0 {
			backoff := f.backoffBase * time.Duration(1<<(attempt-1))
			f.logger.Debug("retrying provider request",
				slog.String("provider", provider),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff))
			if err := f.sleep(ctx, backoff); err != nil {
				return services.Wrap(services.ErrNetwork, "fetch", "backoff", provider, err)
			}
		}

		if err := limiter.Wait(ctx); err != nil {
			return services.Wrap(services.ErrNetwork, "fetch", "rate wait", provider, err)
		}

		done, err := f.doOnce(ctx, provider, rawURL, headers, out)
		if done {
			return err
		}
		lastErr = err
	}

	if errors.Is(lastErr, services.ErrRateLimited) {
		return lastErr
	}
	return services.Wrap(services.ErrNetwork, "fetch", "request", provider, lastErr)
}

// doOnce runs a single request. The bool return signals whether the outcome
// is final; false means the caller may retry.
func (f *Fetcher) doOnce(ctx context.Context, provider, rawURL string, headers map[string]string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return true, services.Wrap(services.ErrValidation, "fetch", "build request", provider, err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return true, services.Wrap(services.ErrNetwork, "fetch", "request", provider, ctx.Err())
		}
		// Transient transport errors are retried alongside throttles.
		if isTransient(err) {
			return false, err
		}
		return true, services.Wrap(services.ErrNetwork, "fetch", "request", provider, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return true, services.Wrap(services.ErrNotFound, "fetch", "request", provider, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return false, services.Wrap(services.ErrRateLimited, "fetch", "request", provider, nil)
	case resp.StatusCode != http.StatusOK:
		io.Copy(io.Discard, resp.Body)
		return true, services.Wrap(services.ErrNetwork, "fetch", "request",
			fmt.Sprintf("%s returned %d", provider, resp.StatusCode), nil)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return true, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return true, services.Wrap(services.ErrValidation, "fetch", "decode response", provider, err)
	}
	return true, nil
}

func (f *Fetcher) limiterFor(provider string) *windowLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	limiter, ok := f.limiters[provider]
	if !ok {
		limiter = newWindowLimiter(f.maxRequests, f.span)
		f.limiters[provider] = limiter
	}
	return limiter
}

func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Temporary() || urlErr.Timeout()
	}
	return false
}
