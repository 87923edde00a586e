package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"artgrab/internal/artcache"
	"artgrab/internal/library"
	"artgrab/internal/logging"
	"artgrab/internal/media"
	"artgrab/internal/providers"
	"artgrab/internal/ranking"
	"artgrab/internal/services"
)

// Fetcher aggregates artwork candidates from every configured provider with
// a persistent cache in front, so repeated scans of a stable library make no
// provider calls at all. A provider that exhausts its rate-limit retries is
// skipped for the remainder of the run; later fetches proceed with whatever
// providers remain.
type Fetcher struct {
	clients  []providers.Client
	resolver *providers.TMDBClient
	cache    *artcache.Cache
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	throttled map[providers.Source]bool
}

// New builds a Fetcher over the given provider clients. resolver may be nil
// when no TMDB credentials are configured; IMDB-only items then skip TMDB
// resolution.
func New(clients []providers.Client, resolver *providers.TMDBClient, cache *artcache.Cache, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		clients:   clients,
		resolver:  resolver,
		cache:     cache,
		logger:    logging.WithComponent(logger, "sources"),
		now:       time.Now,
		throttled: make(map[providers.Source]bool),
	}
}

// ResolveIDs extracts provider identifiers from a library item's unique-id
// map. showIDs carries the parent show's unique ids for seasons and
// episodes, which providers key by show. A missing TMDB id is resolved from
// IMDB once and reused for the remainder of the run via the caller's item.
func (f *Fetcher) ResolveIDs(ctx context.Context, item library.Item, showIDs map[string]string) (providers.ExternalIDs, error) {
	uniqueIDs := item.UniqueIDs
	if item.Type == media.TypeSeason || item.Type == media.TypeEpisode {
		uniqueIDs = showIDs
	}

	ids := providers.ExternalIDs{
		TMDB:    parseNumericID(uniqueIDs["tmdb"]),
		TVDB:    parseNumericID(uniqueIDs["tvdb"]),
		IMDB:    strings.TrimSpace(uniqueIDs["imdb"]),
		Season:  item.Season,
		Episode: item.Episode,
		Year:    item.Year,
	}

	if ids.TMDB == 0 && ids.IMDB != "" && f.resolver != nil {
		resolved, err := f.resolver.ResolveID(ctx, item.Type, ids.IMDB)
		switch {
		case errors.Is(err, services.ErrNotFound):
			// Leave TMDB empty; Fanart can still serve TVDB-keyed items.
		case err != nil:
			return ids, err
		default:
			ids.TMDB = resolved
		}
	}

	if ids.TMDB == 0 && ids.TVDB == 0 && ids.IMDB == "" {
		return ids, services.Wrap(services.ErrValidation, "sources", "resolve",
			fmt.Sprintf("%s %q has no provider identifiers", item.Type, item.Title), nil)
	}
	return ids, nil
}

// Candidates returns every provider's artwork for the item, merged per art
// type. Each provider is asked at most once per item; results land in the
// cache with a release-age TTL before they are returned. A provider that
// does not know the item contributes nothing and does not fail the fetch.
func (f *Fetcher) Candidates(ctx context.Context, mediaType media.Type, ids providers.ExternalIDs, artTypes []media.ArtType) (map[media.ArtType][]providers.Candidate, error) {
	merged := make(map[media.ArtType][]providers.Candidate, len(artTypes))
	var failures []error

	for _, client := range f.clients {
		if f.isThrottled(client.Source()) {
			continue
		}
		providerID, ok := cacheID(client.Source(), ids)
		if !ok {
			continue
		}

		perType, err := f.fromCache(ctx, mediaType, providerID, client.Source(), artTypes)
		if err == nil && perType != nil {
			mergeCandidates(merged, perType)
			continue
		}

		// One round-trip serves every art type, so fetch and cache the full
		// set; the completion marker promises later requests for any type
		// can be answered from cache.
		allTypes := media.AllArtTypes()
		perType, err = client.FetchArtwork(ctx, mediaType, ids, allTypes)
		if errors.Is(err, services.ErrNotFound) {
			perType = map[media.ArtType][]providers.Candidate{}
		} else if err != nil {
			if errors.Is(err, services.ErrRateLimited) {
				f.markThrottled(client.Source())
				f.logger.Warn("provider exhausted its rate limit, skipping for the rest of the run",
					slog.String("source", string(client.Source())))
			}
			f.logger.Warn("provider fetch failed",
				slog.String("source", string(client.Source())),
				slog.String("media_type", string(mediaType)),
				slog.String("provider_id", providerID),
				logging.Error(err))
			failures = append(failures, err)
			continue
		}

		backfillDimensions(perType)
		f.store(ctx, mediaType, providerID, client.Source(), allTypes, perType, ids.Year)
		mergeCandidates(merged, filterTypes(perType, artTypes))
	}

	if len(failures) == len(f.clients) && len(failures) > 0 {
		return nil, services.Wrap(services.ErrNetwork, "sources", "candidates",
			"every artwork provider failed", errors.Join(failures...))
	}
	return merged, nil
}

// Ranked fetches candidates for one art type and sorts them by the given
// selection policy.
func (f *Fetcher) Ranked(ctx context.Context, mediaType media.Type, ids providers.ExternalIDs, artType media.ArtType, opts ranking.Options) ([]providers.Candidate, error) {
	perType, err := f.Candidates(ctx, mediaType, ids, []media.ArtType{artType})
	if err != nil {
		return nil, err
	}
	opts.ArtType = artType
	return ranking.Rank(perType[artType], opts), nil
}

// fromCache returns the cached per-type lists when the completion marker for
// (item, source) is still live. A nil map means the cache cannot answer and
// the provider must be asked.
func (f *Fetcher) fromCache(ctx context.Context, mediaType media.Type, providerID string, source providers.Source, artTypes []media.ArtType) (map[media.ArtType][]providers.Candidate, error) {
	complete, err := f.cache.IsComplete(ctx, mediaType, providerID, source)
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, nil
	}

	perType := make(map[media.ArtType][]providers.Candidate, len(artTypes))
	for _, artType := range artTypes {
		candidates, ok, err := f.cache.Get(ctx, artcache.Key{
			MediaType:  mediaType,
			ProviderID: providerID,
			Source:     source,
			ArtType:    artType,
		})
		if err != nil {
			return nil, err
		}
		if ok {
			perType[artType] = candidates
		}
	}
	return perType, nil
}

func (f *Fetcher) store(ctx context.Context, mediaType media.Type, providerID string, source providers.Source, artTypes []media.ArtType, perType map[media.ArtType][]providers.Candidate, year int) {
	ttl := artcache.TTLForYear(year, f.now())
	for _, artType := range artTypes {
		key := artcache.Key{MediaType: mediaType, ProviderID: providerID, Source: source, ArtType: artType}
		if err := f.cache.Put(ctx, key, perType[artType], ttl); err != nil {
			f.logger.Warn("cache write failed",
				slog.String("source", string(source)),
				slog.String("art_type", string(artType)),
				logging.Error(err))
			return
		}
	}
	if err := f.cache.MarkComplete(ctx, mediaType, providerID, source, ttl); err != nil {
		f.logger.Warn("cache marker write failed",
			slog.String("source", string(source)),
			logging.Error(err))
	}
}

// cacheID derives the per-source cache identifier. Season and episode scope
// is folded in so a season's artwork never shadows the show's.
func cacheID(source providers.Source, ids providers.ExternalIDs) (string, bool) {
	var base int64
	switch source {
	case providers.SourceTMDB:
		base = ids.TMDB
	case providers.SourceFanart:
		base = ids.TMDB
		if ids.TVDB != 0 {
			base = ids.TVDB
		}
	}
	if base == 0 {
		return "", false
	}

	id := strconv.FormatInt(base, 10)
	if ids.Season > 0 {
		id += "/s" + strconv.Itoa(ids.Season)
	}
	if ids.Episode > 0 {
		id += "e" + strconv.Itoa(ids.Episode)
	}
	return id, true
}

func parseNumericID(value string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

func (f *Fetcher) markThrottled(source providers.Source) {
	f.mu.Lock()
	f.throttled[source] = true
	f.mu.Unlock()
}

func (f *Fetcher) isThrottled(source providers.Source) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.throttled[source]
}

func mergeCandidates(into map[media.ArtType][]providers.Candidate, from map[media.ArtType][]providers.Candidate) {
	for artType, candidates := range from {
		into[artType] = append(into[artType], candidates...)
	}
}

// filterTypes narrows a full provider response down to the requested types.
func filterTypes(perType map[media.ArtType][]providers.Candidate, artTypes []media.ArtType) map[media.ArtType][]providers.Candidate {
	filtered := make(map[media.ArtType][]providers.Candidate, len(artTypes))
	for _, artType := range artTypes {
		if candidates, ok := perType[artType]; ok {
			filtered[artType] = candidates
		}
	}
	return filtered
}

// backfillDimensions substitutes the per-type default size when a provider
// reports no dimensions, so resolution comparisons stay meaningful.
func backfillDimensions(perType map[media.ArtType][]providers.Candidate) {
	for artType, candidates := range perType {
		dims := artType.DefaultDimensions()
		for i := range candidates {
			if candidates[i].Width == 0 || candidates[i].Height == 0 {
				candidates[i].Width = dims.Width
				candidates[i].Height = dims.Height
			}
		}
		perType[artType] = candidates
	}
}

// Sources lists the configured provider names in stable order, for reports.
func (f *Fetcher) Sources() []string {
	names := make([]string, 0, len(f.clients))
	for _, client := range f.clients {
		names = append(names, string(client.Source()))
	}
	sort.Strings(names)
	return names
}
