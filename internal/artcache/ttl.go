package artcache

import "time"

// TTL tiers by media age. Fresh releases keep gaining artwork, so their
// cached responses go stale quickly; a decades-old catalogue title barely
// changes and can sit for months.
const (
	ttlRecent  = 72 * time.Hour
	ttlSettled = 720 * time.Hour
	ttlMature  = 2160 * time.Hour
	ttlArchive = 4320 * time.Hour
)

// TTLForYear picks the cache lifetime for an item released in the given
// year. Unknown years use the shortest tier.
func TTLForYear(year int, now time.Time) time.Duration {
	if year <= 0 {
		return ttlRecent
	}
	age := now.Year() - year
	switch {
	case age < 2:
		return ttlRecent
	case age < 5:
		return ttlSettled
	case age < 10:
		return ttlMature
	default:
		return ttlArchive
	}
}
