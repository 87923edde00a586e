// Package artcache caches normalized provider responses in SQLite.
//
// Records are keyed by (media type, provider media id, source, art type) and
// expire on a TTL tiered by release-year age. A completion pseudo-record per
// (item, source) signals that a full multi-type fetch already happened, which
// lets the source fetcher reassemble results without touching the provider
// again. The Cache owns its database exclusively.
package artcache
