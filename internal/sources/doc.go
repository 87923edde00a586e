// Package sources merges artwork candidates from the configured providers
// behind the persistent artwork cache.
//
// The Fetcher asks each provider at most once per item and art-type set,
// records the result with a release-age TTL, and marks the (item, source)
// pair complete so later scans answer from the cache alone.
package sources
