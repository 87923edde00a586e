package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLibrary()
	c.normalizeProviders()
	c.normalizeFetch()
	c.normalizeArtwork()
	c.normalizeScanner()
	c.normalizeReview()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TextureCacheDir) == "" {
		c.Paths.TextureCacheDir = defaultTextureCacheDir
	}
	if c.Paths.TextureCacheDir, err = expandPath(c.Paths.TextureCacheDir); err != nil {
		return fmt.Errorf("paths.texture_cache_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLibrary() {
	c.Library.URL = strings.TrimRight(strings.TrimSpace(c.Library.URL), "/")
	if c.Library.URL == "" {
		c.Library.URL = defaultLibraryURL
	}
	if c.Library.RequestTimeout <= 0 {
		c.Library.RequestTimeout = defaultLibraryRequestTimeout
	}
}

func (c *Config) normalizeProviders() {
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = value
		}
	}
	c.TMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.BaseURL), "/")
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}

	if c.Fanart.APIKey == "" {
		if value, ok := os.LookupEnv("FANARTTV_API_KEY"); ok {
			c.Fanart.APIKey = value
		}
	}
	c.Fanart.BaseURL = strings.TrimRight(strings.TrimSpace(c.Fanart.BaseURL), "/")
	if c.Fanart.BaseURL == "" {
		c.Fanart.BaseURL = defaultFanartBaseURL
	}
}

func (c *Config) normalizeFetch() {
	if c.Fetch.WindowRequests <= 0 {
		c.Fetch.WindowRequests = defaultFetchWindowRequests
	}
	if c.Fetch.WindowSeconds <= 0 {
		c.Fetch.WindowSeconds = defaultFetchWindowSeconds
	}
	if c.Fetch.RetryAttempts <= 0 {
		c.Fetch.RetryAttempts = defaultFetchRetryAttempts
	}
	if c.Fetch.RetryBaseMS <= 0 {
		c.Fetch.RetryBaseMS = defaultFetchRetryBaseMS
	}
}

func (c *Config) normalizeArtwork() {
	cleaned := make([]string, 0, len(c.Artwork.Types))
	for _, t := range c.Artwork.Types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	c.Artwork.Types = cleaned
	c.Artwork.PreferredLanguage = strings.ToLower(strings.TrimSpace(c.Artwork.PreferredLanguage))
	if c.Artwork.PreferredLanguage == "" {
		c.Artwork.PreferredLanguage = defaultPreferredLanguage
	}
	c.Artwork.SortMode = strings.ToLower(strings.TrimSpace(c.Artwork.SortMode))
	if c.Artwork.SortMode == "" {
		c.Artwork.SortMode = defaultSortMode
	}
	c.Artwork.SourcePreference = strings.ToLower(strings.TrimSpace(c.Artwork.SourcePreference))
}

func (c *Config) normalizeScanner() {
	cleaned := make([]string, 0, len(c.Scanner.MediaTypes))
	for _, t := range c.Scanner.MediaTypes {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	c.Scanner.MediaTypes = cleaned
	if c.Scanner.PixelUpgradeRatio <= 1 {
		c.Scanner.PixelUpgradeRatio = defaultPixelUpgradeRatio
	}
	if c.Scanner.RatingUpgradeDelta <= 0 {
		c.Scanner.RatingUpgradeDelta = defaultRatingUpgradeDelta
	}
	if c.Scanner.LikesUpgradeDelta <= 0 {
		c.Scanner.LikesUpgradeDelta = defaultLikesUpgradeDelta
	}
	if c.Scanner.PrecacheWorkers <= 0 {
		c.Scanner.PrecacheWorkers = defaultPrecacheWorkers
	}
	if c.Scanner.PrecachePromptMin <= 0 {
		c.Scanner.PrecachePromptMin = defaultPrecachePromptMin
	}
}

func (c *Config) normalizeReview() {
	if c.Review.BatchSize <= 0 {
		c.Review.BatchSize = defaultReviewBatchSize
	}
	if c.Queue.RetentionDays <= 0 {
		c.Queue.RetentionDays = defaultQueueRetentionDays
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
