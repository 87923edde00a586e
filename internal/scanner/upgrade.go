package scanner

import (
	"context"
	"errors"
	"log/slog"

	"artgrab/internal/library"
	"artgrab/internal/logging"
	"artgrab/internal/media"
	"artgrab/internal/providers"
	"artgrab/internal/queue"
	"artgrab/internal/ranking"
	"artgrab/internal/services"
)

// scanUpgrades runs the candidate-detection pass over items whose configured
// slots already hold artwork. It measures the baseline's real pixel size from
// the library's texture cache where possible, pre-caching uncached textures
// first (behind user confirmation when the pass is large), and falls back to
// exact-URL matching against fresh provider candidates otherwise.
func (s *Scanner) scanUpgrades(ctx context.Context, session *queue.Session, mediaType media.Type, items []library.Item, showIDs map[int64]map[string]string, artTypes []media.ArtType) error {
	dims, err := s.measureBaselines(ctx, session, items, artTypes)
	if err != nil {
		return err
	}

	rankOpts := s.rankOptions()
	var specs []queue.EnqueueSpec
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			break
		}

		ids, err := s.fetcher.ResolveIDs(ctx, item, showIDs[item.TVShowID])
		if errors.Is(err, services.ErrValidation) {
			s.logger.Debug("item lacks provider ids, skipping upgrades",
				slog.String("title", item.Title))
			continue
		}
		if err != nil {
			return err
		}

		occupied := occupiedSlots(item, artTypes)
		if len(occupied) == 0 {
			continue
		}
		perType, err := s.fetcher.Candidates(ctx, item.Type, ids, occupied)
		if err != nil {
			session.Stats.Errors++
			s.logger.Warn("candidate fetch failed",
				slog.String("title", item.Title),
				logging.Error(err))
			continue
		}

		var itemSpecs []queue.ArtItemSpec
		for _, artType := range occupied {
			baselineURL := item.Art[string(artType)]
			rankOpts.ArtType = artType
			candidates := ranking.Rank(perType[artType], rankOpts)
			if len(candidates) == 0 {
				continue
			}

			baseDims, haveDims := dims[baselineURL]
			if s.upgradeWorthy(baselineURL, baseDims, haveDims, candidates) {
				itemSpecs = append(itemSpecs, queue.ArtItemSpec{
					ArtType:        artType,
					BaselineURL:    baselineURL,
					ReviewMode:     queue.ModeCandidate,
					RequiresManual: true,
				})
			}
		}
		if len(itemSpecs) > 0 {
			specs = append(specs, queue.EnqueueSpec{
				MediaType: mediaType,
				LibraryID: item.ID,
				Title:     item.Title,
				Year:      item.Year,
				Scope:     session.Scope,
				SessionID: session.ID,
				Items:     itemSpecs,
			})
		}
	}

	return s.flush(ctx, session, specs)
}

// measureBaselines reads the true dimensions of every occupied slot's
// texture. Textures the library has not cached yet are pre-cached first;
// when that pass is large the user must confirm it, and declining simply
// leaves those baselines unmeasured.
func (s *Scanner) measureBaselines(ctx context.Context, session *queue.Session, items []library.Item, artTypes []media.ArtType) (map[string]media.Dimensions, error) {
	dims := make(map[string]media.Dimensions)
	var uncached []string

	for _, item := range items {
		for _, artType := range artTypes {
			url := item.Art[string(artType)]
			if url == "" {
				continue
			}
			if _, seen := dims[url]; seen {
				continue
			}
			d, ok, err := s.lib.TextureDimensions(ctx, url)
			if err != nil {
				return nil, err
			}
			if ok {
				dims[url] = d
			} else {
				uncached = append(uncached, url)
			}
		}
	}

	if len(uncached) == 0 {
		return dims, nil
	}
	if len(uncached) >= s.cfg.Scanner.PrecachePromptMin && !s.confirm(len(uncached)) {
		s.logger.Info("caching pass declined, using URL matching for unmeasured baselines",
			slog.Int("uncached", len(uncached)))
		return dims, nil
	}

	if err := s.precacheBaselines(ctx, session, uncached); err != nil {
		return nil, err
	}

	for _, url := range uncached {
		d, ok, err := s.lib.TextureDimensions(ctx, url)
		if err != nil {
			return nil, err
		}
		if ok {
			dims[url] = d
		}
	}
	return dims, nil
}

// precacheBaselines runs the worker pool over uncached texture URLs. An
// interrupted pass records the list in the session so the next invocation
// resumes caching without repeating discovery.
func (s *Scanner) precacheBaselines(ctx context.Context, session *queue.Session, urls []string) error {
	session.Stats.PendingPrecache = urls
	if err := s.saveStats(session); err != nil {
		return err
	}

	if _, err := s.precacher.Run(ctx, urls); err != nil {
		return err
	}

	session.Stats.PendingPrecache = nil
	return s.saveStats(session)
}

// resumePrecache finishes an interrupted caching pass. Re-caching URLs that
// completed before the interruption is a no-op on the library side.
func (s *Scanner) resumePrecache(ctx context.Context, session *queue.Session, logger *slog.Logger) error {
	pending := session.Stats.PendingPrecache
	logger.Info("resuming texture caching pass", slog.Int("pending", len(pending)))

	if _, err := s.precacher.Run(ctx, pending); err != nil {
		return s.pause(session, err)
	}

	session.Stats.PendingPrecache = nil
	return s.saveStats(session)
}

// upgradeWorthy decides whether the ranked candidates contain a materially
// better asset than the baseline. Pixel comparisons use the measured texture
// size when available; rating and likes comparisons need the baseline to
// still exist among the fresh candidates, found by exact URL match.
func (s *Scanner) upgradeWorthy(baselineURL string, baseDims media.Dimensions, haveDims bool, candidates []providers.Candidate) bool {
	best := candidates[0]

	var baseline *providers.Candidate
	for i := range candidates {
		if candidates[i].URL == baselineURL {
			baseline = &candidates[i]
			break
		}
	}

	basePixels := 0
	switch {
	case haveDims:
		basePixels = baseDims.PixelCount()
	case baseline != nil:
		basePixels = baseline.PixelCount()
	}
	if basePixels > 0 && float64(best.PixelCount()) >= s.cfg.Scanner.PixelUpgradeRatio*float64(basePixels) && best.PixelCount() > basePixels {
		return true
	}

	if baseline == nil {
		return false
	}
	if best.HasRating && baseline.HasRating && best.Rating-baseline.Rating >= s.cfg.Scanner.RatingUpgradeDelta {
		return true
	}
	if best.HasLikes && baseline.HasLikes && best.Likes-baseline.Likes >= s.cfg.Scanner.LikesUpgradeDelta {
		return true
	}
	return false
}

func (s *Scanner) rankOptions() ranking.Options {
	return ranking.Options{
		SortMode:          ranking.SortMode(s.cfg.Artwork.SortMode),
		SourcePreference:  providers.Source(s.cfg.Artwork.SourcePreference),
		PreferredLanguage: s.cfg.Artwork.PreferredLanguage,
	}
}

// occupiedSlots lists the configured art types that already hold artwork on
// the item, in review order.
func occupiedSlots(item library.Item, artTypes []media.ArtType) []media.ArtType {
	var occupied []media.ArtType
	for _, artType := range media.SortByReviewOrder(artTypes) {
		if item.Art[string(artType)] != "" {
			occupied = append(occupied, artType)
		}
	}
	return occupied
}
