package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"artgrab/internal/artcache"
	"artgrab/internal/config"
	"artgrab/internal/fetch"
	"artgrab/internal/library"
	"artgrab/internal/logging"
	"artgrab/internal/notifications"
	"artgrab/internal/providers"
	"artgrab/internal/queue"
	"artgrab/internal/sources"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// runtime bundles the dependencies shared by the scan, review, process, and
// precache commands.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *queue.Store
	cache   *artcache.Cache
	lib     library.Client
	fetcher *sources.Fetcher
	notify  notifications.Service

	lock    *flock.Flock
	closers []func() error
}

// openRuntime acquires the instance lock and opens every shared resource.
// Callers must invoke close when done.
func (c *commandContext) openRuntime() (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another artgrab instance holds %s", cfg.LockPath())
	}

	rt := &runtime{cfg: cfg, logger: logger, lock: lock}

	rt.store, err = queue.Open(cfg)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.closers = append(rt.closers, rt.store.Close)

	// A crash mid-review leaves entries stuck in reviewing.
	if restored, err := rt.store.RestorePendingEntries(context.Background()); err != nil {
		rt.close()
		return nil, err
	} else if restored > 0 {
		logger.Info("restored interrupted entries", slog.Int("count", restored))
	}

	rt.cache, err = artcache.Open(cfg.ArtworkCachePath())
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.closers = append(rt.closers, rt.cache.Close)

	rt.lib, err = library.NewJSONRPC(cfg.Library, nil)
	if err != nil {
		rt.close()
		return nil, err
	}

	fetcher := fetch.New(cfg.Fetch, logger)
	clients, resolver, err := buildProviders(cfg, fetcher)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.fetcher = sources.New(clients, resolver, rt.cache, logger)
	rt.notify = notifications.NewService(cfg)
	return rt, nil
}

func (r *runtime) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
	if r.lock != nil {
		_ = r.lock.Unlock()
	}
}

func buildProviders(cfg *config.Config, fetcher *fetch.Fetcher) ([]providers.Client, *providers.TMDBClient, error) {
	var clients []providers.Client
	var resolver *providers.TMDBClient

	if strings.TrimSpace(cfg.TMDB.APIKey) != "" {
		tmdb, err := providers.NewTMDB(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, fetcher)
		if err != nil {
			return nil, nil, err
		}
		clients = append(clients, tmdb)
		resolver = tmdb
	}
	if strings.TrimSpace(cfg.Fanart.APIKey) != "" {
		fanart, err := providers.NewFanart(cfg.Fanart.APIKey, cfg.Fanart.ClientKey, cfg.Fanart.BaseURL, fetcher)
		if err != nil {
			return nil, nil, err
		}
		clients = append(clients, fanart)
	}
	if len(clients) == 0 {
		return nil, nil, fmt.Errorf("no artwork provider configured: set tmdb api_key or fanart api_key")
	}
	return clients, resolver, nil
}

// openStore opens just the queue database for read-mostly maintenance
// commands that do not need the provider stack.
func (c *commandContext) openStore() (*queue.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return queue.Open(cfg)
}

// signalContext cancels on SIGINT or SIGTERM so a run pauses cleanly.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
