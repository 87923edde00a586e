// Package scanner discovers artwork work items by walking the external
// library under a scan session.
//
// A run iterates the configured collections, queues empty slots as missing
// work, and, when upgrade detection is on, compares each occupied slot's
// measured texture size and provider signals against fresh candidates to
// queue materially better assets for manual review. Cancellation pauses the
// session with everything discovered so far already durable; only a failed
// collection listing cancels it.
package scanner
