package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir         string `toml:"data_dir"`
	LogDir          string `toml:"log_dir"`
	TextureCacheDir string `toml:"texture_cache_dir"`
}

// Library contains configuration for the media-center JSON-RPC endpoint.
type Library struct {
	URL            string `toml:"url"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	RequestTimeout int    `toml:"request_timeout"`
}

// TMDB contains configuration for The Movie Database artwork API.
type TMDB struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// Fanart contains configuration for the Fanart.tv artwork API.
type Fanart struct {
	APIKey    string `toml:"api_key"`
	ClientKey string `toml:"client_key"`
	BaseURL   string `toml:"base_url"`
}

// Fetch contains the provider rate-limit and retry policy.
type Fetch struct {
	WindowRequests int `toml:"window_requests"`
	WindowSeconds  int `toml:"window_seconds"`
	RetryAttempts  int `toml:"retry_attempts"`
	RetryBaseMS    int `toml:"retry_base_ms"`
}

// Artwork contains artwork selection policy.
type Artwork struct {
	Types             []string `toml:"types"`
	PreferredLanguage string   `toml:"preferred_language"`
	SortMode          string   `toml:"sort_mode"`
	SourcePreference  string   `toml:"source_preference"`
}

// Scanner contains scan behaviour and upgrade-detection tuning. The upgrade
// thresholds are product tuning inherited from long use, not protocol
// requirements; treat them as defaults worth revisiting.
type Scanner struct {
	MediaTypes         []string `toml:"media_types"`
	IncludeUpgrades    bool     `toml:"include_upgrades"`
	PixelUpgradeRatio  float64  `toml:"pixel_upgrade_ratio"`
	RatingUpgradeDelta float64  `toml:"rating_upgrade_delta"`
	LikesUpgradeDelta  int      `toml:"likes_upgrade_delta"`
	PrecacheWorkers    int      `toml:"precache_workers"`
	PrecachePromptMin  int      `toml:"precache_prompt_min"`
}

// Review contains interactive-review behaviour.
type Review struct {
	BatchSize int `toml:"batch_size"`
}

// Queue contains queue retention policy.
type Queue struct {
	RetentionDays int `toml:"retention_days"`
}

// Notifications contains configuration for optional ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for artgrab.
//
// Configuration sections by subsystem:
//   - Paths: data/log/texture-cache directories
//   - Library: media-center JSON-RPC endpoint and credentials
//   - TMDB / Fanart: artwork provider credentials
//   - Fetch: provider rate-limit window and retry/backoff policy
//   - Artwork: slot selection, preferred language, sort mode
//   - Scanner: scanned media types, upgrade thresholds, pre-cache pool
//   - Review: interactive batch size
//   - Queue: retention for terminal queue rows
//   - Notifications: optional ntfy push on run completion
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Library       Library       `toml:"library"`
	TMDB          TMDB          `toml:"tmdb"`
	Fanart        Fanart        `toml:"fanart"`
	Fetch         Fetch         `toml:"fetch"`
	Artwork       Artwork       `toml:"artwork"`
	Scanner       Scanner       `toml:"scanner"`
	Review        Review        `toml:"review"`
	Queue         Queue         `toml:"queue"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/artgrab/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("artgrab.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.TextureCacheDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDatabasePath returns the location of the queue database.
func (c *Config) QueueDatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// ArtworkCachePath returns the location of the provider-response cache
// database.
func (c *Config) ArtworkCachePath() string {
	return filepath.Join(c.Paths.DataDir, "artcache.db")
}

// LockPath returns the location of the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "artgrab.lock")
}

// SampleConfig returns the embedded sample configuration text.
func SampleConfig() string {
	return sampleConfig
}

// WriteSample writes the embedded sample configuration to the given path,
// refusing to overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
