// Package fetch provides the rate-limited HTTP layer underneath every
// artwork provider client.
//
// Each provider gets its own sliding-window limiter (default 39 requests per
// 10 seconds); callers block until a slot frees rather than receiving an
// error. Throttling responses are retried with exponentially doubling
// backoff, 404 is surfaced as services.ErrNotFound so callers can treat it as
// "no artwork available", and everything else maps to services.ErrNetwork.
package fetch
