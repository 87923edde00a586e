// Package config loads, normalizes, and validates artgrab configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TMDB_API_KEY and FANARTTV_API_KEY. The Config type centralizes every knob
// the CLI workflows need, so provider credentials, rate-limit policy, and
// upgrade thresholds are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical art/media type lists, and clear validation
// errors.
package config
