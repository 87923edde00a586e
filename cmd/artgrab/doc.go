// Package main hosts the artgrab CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into scan,
// review, and processing runs plus queue, session, cache, and configuration
// maintenance. It centralizes configuration resolution, instance locking, and
// structured logging setup so subcommands can focus on user experience
// instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
