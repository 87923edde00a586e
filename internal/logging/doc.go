// Package logging assembles the structured slog loggers used across the
// pipeline.
//
// It owns console/JSON handler selection, level parsing, and log-file fan-out
// under the configured log directory, and exposes a no-op logger for tests
// and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape and routing.
package logging
