package testsupport

import (
	"path/filepath"
	"testing"

	"artgrab/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.TextureCacheDir = filepath.Join(base, "textures")
	cfg.Library.URL = "http://127.0.0.1:8080/jsonrpc"
	cfg.TMDB.APIKey = "test"
	cfg.Fanart.APIKey = "test"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithLibraryURL points the test config at a fake media-center endpoint.
func WithLibraryURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Library.URL = url
	}
}

// WithArtTypes overrides the configured artwork slots.
func WithArtTypes(types ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Artwork.Types = types
	}
}

// WithMediaTypes overrides the scanned media types.
func WithMediaTypes(types ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scanner.MediaTypes = types
	}
}
