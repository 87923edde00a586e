// Package precache warms the library's texture cache in bulk so upgrade
// scans can read true artwork dimensions instead of guessing from defaults.
package precache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"

	"artgrab/internal/logging"
)

// TextureCacher is the slice of the library client the pool needs.
type TextureCacher interface {
	CacheTexture(ctx context.Context, artURL string) error
}

// Result summarizes one pre-cache run.
type Result struct {
	Requested int
	Cached    int
	Failed    int
}

// Precacher drives a fixed-size worker pool over texture URLs. Caching an
// already-cached URL is a cheap no-op on the library side, so runs are
// idempotent and safe to repeat after interruption.
type Precacher struct {
	client   TextureCacher
	workers  int
	logger   *slog.Logger
	progress io.Writer
}

// New builds a Precacher with the given pool size. progress receives the
// progress bar; pass nil to disable it.
func New(client TextureCacher, workers int, logger *slog.Logger, progress io.Writer) *Precacher {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Precacher{
		client:   client,
		workers:  workers,
		logger:   logging.WithComponent(logger, "precache"),
		progress: progress,
	}
}

// Run caches every URL, stopping promptly on context cancellation. Workers
// finish their in-flight request and exit; the partial Result is returned
// alongside the context error.
func (p *Precacher) Run(ctx context.Context, urls []string) (Result, error) {
	result := Result{Requested: len(urls)}
	if len(urls) == 0 {
		return result, nil
	}

	var bar *progressbar.ProgressBar
	if p.progress != nil {
		bar = progressbar.NewOptions(len(urls),
			progressbar.OptionSetWriter(p.progress),
			progressbar.OptionSetDescription("pre-caching textures"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	jobs := make(chan string)
	var cached, failed atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range jobs {
				if err := p.client.CacheTexture(ctx, url); err != nil {
					if !errors.Is(err, context.Canceled) {
						p.logger.Warn("texture pre-cache failed",
							slog.String("url", url),
							logging.Error(err))
					}
					failed.Add(1)
				} else {
					cached.Add(1)
				}
				if bar != nil {
					_ = bar.Add(1)
				}
			}
		}()
	}

	var runErr error
feed:
	for _, url := range urls {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break feed
		case jobs <- url:
		}
	}
	close(jobs)
	wg.Wait()

	if bar != nil {
		_ = bar.Finish()
	}

	result.Cached = int(cached.Load())
	result.Failed = int(failed.Load())
	return result, runErr
}
