package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"artgrab/internal/media"
	"artgrab/internal/services"
)

// Validate ensures the configuration is usable. Failures carry the
// services.ErrConfiguration marker.
func (c *Config) Validate() error {
	checks := []func() error{
		c.validateLibrary,
		c.validateProviders,
		c.validateArtwork,
		c.validateScanner,
		c.validateLogging,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return services.Wrap(services.ErrConfiguration, "config", "validate", "", err)
		}
	}
	return nil
}

func (c *Config) validateLibrary() error {
	parsed, err := url.Parse(c.Library.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("library.url %q is not a valid http(s) URL", c.Library.URL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("library.url scheme %q is not supported", parsed.Scheme)
	}
	return nil
}

func (c *Config) validateProviders() error {
	if c.TMDB.APIKey == "" && c.Fanart.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/artgrab/config.toml"
		}
		return fmt.Errorf("at least one provider key is required. Set TMDB_API_KEY or FANARTTV_API_KEY, or edit %s (create with 'artgrab config init')", defaultPath)
	}
	switch c.Artwork.SourcePreference {
	case "", "tmdb", "fanarttv":
	default:
		return fmt.Errorf("artwork.source_preference %q is unknown (expected tmdb or fanarttv)", c.Artwork.SourcePreference)
	}
	return nil
}

func (c *Config) validateArtwork() error {
	if len(c.Artwork.Types) == 0 {
		return errors.New("artwork.types must name at least one art type")
	}
	for _, t := range c.Artwork.Types {
		if _, ok := media.ParseArtType(t); !ok {
			return fmt.Errorf("artwork.types contains unknown art type %q", t)
		}
	}
	switch c.Artwork.SortMode {
	case "popularity", "resolution":
	default:
		return fmt.Errorf("artwork.sort_mode %q is unknown (expected popularity or resolution)", c.Artwork.SortMode)
	}
	return nil
}

func (c *Config) validateScanner() error {
	if len(c.Scanner.MediaTypes) == 0 {
		return errors.New("scanner.media_types must name at least one media type")
	}
	for _, t := range c.Scanner.MediaTypes {
		if _, ok := media.ParseType(t); !ok {
			return fmt.Errorf("scanner.media_types contains unknown media type %q", t)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is unknown (expected console or json)", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is unknown", c.Logging.Level)
	}
	return nil
}

// ArtTypes returns the configured art types in review-priority order.
func (c *Config) ArtTypes() []media.ArtType {
	ordered, ok := media.ParseArtTypes(strings.Join(c.Artwork.Types, ","))
	if !ok {
		return media.AllArtTypes()
	}
	return ordered
}

// MediaTypes returns the configured scan media types.
func (c *Config) MediaTypes() []media.Type {
	types, ok := media.ParseTypes(strings.Join(c.Scanner.MediaTypes, ","))
	if !ok {
		return []media.Type{media.TypeMovie, media.TypeTVShow}
	}
	return types
}
