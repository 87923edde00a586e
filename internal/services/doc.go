// Package services defines shared utilities consumed by the pipeline
// workflows and external integrations.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that classify failures
//     (network/throttle/not-found/stale/storage) for callers that must decide
//     between continuing, skipping, and aborting.
//   - Context helpers that stamp queue entry IDs, session IDs, and workflow
//     names for logging.
//
// Use these helpers when wiring new workflow logic so operational behaviour
// stays uniform across the pipeline.
package services
