// Package notifications delivers run milestones via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. The Service interface covers the end-of-run milestones so the
// scan, review, and processing commands can emit consistent push messages
// without duplicating HTTP glue.
package notifications
