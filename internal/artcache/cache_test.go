package artcache_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"artgrab/internal/artcache"
	"artgrab/internal/media"
	"artgrab/internal/providers"
)

func openCache(t *testing.T) *artcache.Cache {
	t.Helper()
	cache, err := artcache.Open(filepath.Join(t.TempDir(), "artcache.db"))
	if err != nil {
		t.Fatalf("artcache.Open: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func posterKey(id string) artcache.Key {
	return artcache.Key{
		MediaType:  media.TypeMovie,
		ProviderID: id,
		Source:     providers.SourceTMDB,
		ArtType:    media.ArtPoster,
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cache := openCache(t)
	ctx := context.Background()

	candidates := []providers.Candidate{
		{URL: "http://img/a.jpg", Width: 1000, Height: 1500, Rating: 7.2, Votes: 40, HasRating: true, Source: providers.SourceTMDB},
	}
	if err := cache.Put(ctx, posterKey("329865"), candidates, time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := cache.Get(ctx, posterKey("329865"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || len(got) != 1 || got[0].URL != "http://img/a.jpg" || !got[0].HasRating {
		t.Fatalf("unexpected cached value: ok=%v %+v", ok, got)
	}

	_, ok, err = cache.Get(ctx, posterKey("unknown"))
	if err != nil || ok {
		t.Fatalf("miss should be ok=false, got ok=%v err=%v", ok, err)
	}
}

func TestCacheExpiresEntries(t *testing.T) {
	cache := openCache(t)
	ctx := context.Background()

	if err := cache.Put(ctx, posterKey("1"), nil, -time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok, err := cache.Get(ctx, posterKey("1")); err != nil || ok {
		t.Fatalf("expired entry must miss, got ok=%v err=%v", ok, err)
	}

	removed, err := cache.PruneExpired(ctx)
	if err != nil {
		t.Fatalf("PruneExpired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned record, got %d", removed)
	}
}

func TestCompletionMarker(t *testing.T) {
	cache := openCache(t)
	ctx := context.Background()

	complete, err := cache.IsComplete(ctx, media.TypeMovie, "329865", providers.SourceTMDB)
	if err != nil || complete {
		t.Fatalf("fresh item must not be complete, got %v err=%v", complete, err)
	}

	if err := cache.MarkComplete(ctx, media.TypeMovie, "329865", providers.SourceTMDB, time.Hour); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	complete, err = cache.IsComplete(ctx, media.TypeMovie, "329865", providers.SourceTMDB)
	if err != nil || !complete {
		t.Fatalf("expected completion marker, got %v err=%v", complete, err)
	}

	// The marker is scoped to one provider.
	complete, err = cache.IsComplete(ctx, media.TypeMovie, "329865", providers.SourceFanart)
	if err != nil || complete {
		t.Fatalf("marker must not leak across sources, got %v err=%v", complete, err)
	}
}

func TestReadStatsCountsRecords(t *testing.T) {
	cache := openCache(t)
	ctx := context.Background()

	if err := cache.Put(ctx, posterKey("1"), nil, time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := cache.Put(ctx, posterKey("2"), nil, -time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := cache.MarkComplete(ctx, media.TypeMovie, "1", providers.SourceTMDB, time.Hour); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}

	stats, err := cache.ReadStats(ctx)
	if err != nil {
		t.Fatalf("ReadStats: %v", err)
	}
	if stats.Records != 3 || stats.Expired != 1 || stats.Markers != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	removed, err := cache.Clear(ctx)
	if err != nil || removed != 3 {
		t.Fatalf("Clear removed %d err=%v", removed, err)
	}
}

func TestTTLForYearTiers(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		year int
		want time.Duration
	}{
		{2026, 72 * time.Hour},
		{2025, 72 * time.Hour},
		{2023, 720 * time.Hour},
		{2018, 2160 * time.Hour},
		{1999, 4320 * time.Hour},
		{0, 72 * time.Hour},
	}
	for _, tc := range tests {
		if got := artcache.TTLForYear(tc.year, now); got != tc.want {
			t.Fatalf("TTLForYear(%d) = %v, want %v", tc.year, got, tc.want)
		}
	}
}
