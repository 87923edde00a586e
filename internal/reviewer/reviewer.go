package reviewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"artgrab/internal/config"
	"artgrab/internal/library"
	"artgrab/internal/logging"
	"artgrab/internal/media"
	"artgrab/internal/providers"
	"artgrab/internal/queue"
	"artgrab/internal/ranking"
	"artgrab/internal/services"
	"artgrab/internal/sources"
)

// Options configures one review run.
type Options struct {
	MediaTypes []media.Type
}

// Summary aggregates the run for reporting.
type Summary struct {
	Entries  int
	Applied  int
	Skipped  int
	Stale    int
	Errors   int
	Sessions []*queue.Session
}

// Reviewer resolves queued artwork work interactively. Every entry is
// re-validated against live library state both before a choice is presented
// and again before it is applied, because the library mutates underneath the
// queue at any time.
type Reviewer struct {
	cfg     *config.Config
	store   *queue.Store
	lib     library.Client
	fetcher *sources.Fetcher
	chooser Chooser
	logger  *slog.Logger
}

// New builds a Reviewer.
func New(cfg *config.Config, store *queue.Store, lib library.Client, fetcher *sources.Fetcher, chooser Chooser, logger *slog.Logger) *Reviewer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reviewer{
		cfg:     cfg,
		store:   store,
		lib:     lib,
		fetcher: fetcher,
		chooser: chooser,
		logger:  logging.WithComponent(logger, "reviewer"),
	}
}

// Run drains pending queue entries in batches until none remain, the user
// cancels, or the context is cancelled. Cancellation pauses the touched
// sessions with per-item progress already persisted, so a later run resumes
// from the first remaining pending item.
func (r *Reviewer) Run(ctx context.Context, opts Options) (*Summary, error) {
	summary := &Summary{}
	sessions := make(map[string]*queue.Session)

	for {
		if err := ctx.Err(); err != nil {
			r.pauseSessions(sessions)
			return r.finish(summary, sessions), err
		}

		batch, err := r.store.NextBatch(ctx, r.cfg.Review.BatchSize, queue.StatusPending, opts.MediaTypes)
		if err != nil {
			return summary, services.Wrap(services.ErrStorage, "reviewer", "next-batch", "", err)
		}
		if len(batch) == 0 {
			break
		}

		ids := make([]int64, 0, len(batch))
		for _, entry := range batch {
			ids = append(ids, entry.ID)
		}
		itemsByEntry, err := r.store.ArtItemsFor(ctx, ids)
		if err != nil {
			return summary, services.Wrap(services.ErrStorage, "reviewer", "load-items", "", err)
		}

		for _, entry := range batch {
			if err := ctx.Err(); err != nil {
				r.restorePending(entry)
				r.pauseSessions(sessions)
				return r.finish(summary, sessions), err
			}

			session, err := r.sessionFor(ctx, sessions, entry.SessionID)
			if err != nil {
				return summary, err
			}

			if err := r.store.SetEntryStatus(ctx, entry.ID, queue.StatusReviewing); err != nil {
				return summary, services.Wrap(services.ErrStorage, "reviewer", "set-status", "", err)
			}

			entryCtx := services.WithEntryID(ctx, entry.ID)
			outcome, err := r.reviewEntry(entryCtx, entry, itemsByEntry[entry.ID], session)
			summary.Entries++
			summary.Applied += outcome.applied
			summary.Skipped += outcome.skipped
			summary.Stale += outcome.stale

			if err != nil {
				summary.Errors++
				logging.WithContext(entryCtx, r.logger).Error("entry review failed",
					slog.String("title", entry.Title),
					logging.Error(err))
				if storeErr := r.store.SetEntryStatus(ctx, entry.ID, queue.StatusError); storeErr != nil {
					return summary, services.Wrap(services.ErrStorage, "reviewer", "set-status", "", storeErr)
				}
				if services.Fatal(err) {
					return summary, err
				}
				continue
			}

			if outcome.cancelled {
				status := queue.StatusPending
				if outcome.applied > 0 {
					status = queue.StatusCompleted
				}
				if storeErr := r.store.SetEntryStatus(ctx, entry.ID, status); storeErr != nil {
					return summary, services.Wrap(services.ErrStorage, "reviewer", "set-status", "", storeErr)
				}
				r.pauseSessions(sessions)
				return r.finish(summary, sessions), nil
			}

			if storeErr := r.store.SetEntryStatus(ctx, entry.ID, queue.StatusCompleted); storeErr != nil {
				return summary, services.Wrap(services.ErrStorage, "reviewer", "set-status", "", storeErr)
			}
		}
	}

	r.completeSessions(sessions)
	return r.finish(summary, sessions), nil
}

type entryOutcome struct {
	applied   int
	skipped   int
	stale     int
	cancelled bool
}

func (r *Reviewer) reviewEntry(ctx context.Context, entry *queue.Entry, items []*queue.ArtItem, session *queue.Session) (entryOutcome, error) {
	var outcome entryOutcome

	pending := pendingByType(items)
	if len(pending) == 0 {
		return outcome, nil
	}

	liveItem, err := r.lib.GetItem(ctx, entry.MediaType, entry.LibraryID)
	if err != nil {
		return outcome, err
	}

	ids, surviving, err := r.resolveAndValidate(ctx, entry, liveItem, pending, session, &outcome)
	if err != nil || len(surviving) == 0 {
		return outcome, err
	}

	perType, err := r.fetcher.Candidates(ctx, entry.MediaType, ids, surviving)
	if err != nil {
		return outcome, err
	}

	rankOpts := ranking.Options{
		SortMode:          ranking.SortMode(r.cfg.Artwork.SortMode),
		SourcePreference:  providers.Source(r.cfg.Artwork.SourcePreference),
		PreferredLanguage: r.cfg.Artwork.PreferredLanguage,
	}

	for _, artType := range surviving {
		item := pending[artType]
		rankOpts.ArtType = artType
		candidates := ranking.Rank(perType[artType], rankOpts)

		done, err := r.reviewItem(ctx, entry, item, liveItem, candidates, session, &outcome)
		if err != nil {
			return outcome, err
		}
		if done {
			return outcome, nil
		}
	}
	return outcome, nil
}

// resolveAndValidate runs the first staleness pass against live art and
// resolves provider ids. It returns the art types still worth presenting,
// in review order.
func (r *Reviewer) resolveAndValidate(ctx context.Context, entry *queue.Entry, liveItem library.Item, pending map[media.ArtType]*queue.ArtItem, session *queue.Session, outcome *entryOutcome) (providers.ExternalIDs, []media.ArtType, error) {
	var surviving []media.ArtType
	for artType, item := range pending {
		liveURL := liveItem.Art[string(artType)]
		if staleAgainst(item, liveURL) {
			if err := r.markStale(ctx, entry, item, session, outcome); err != nil {
				return providers.ExternalIDs{}, nil, err
			}
			continue
		}
		surviving = append(surviving, artType)
	}
	surviving = media.SortByReviewOrder(surviving)
	if len(surviving) == 0 {
		return providers.ExternalIDs{}, nil, nil
	}

	showIDs, err := r.showIDsFor(ctx, liveItem)
	if err != nil {
		return providers.ExternalIDs{}, nil, err
	}
	ids, err := r.fetcher.ResolveIDs(ctx, liveItem, showIDs)
	if err != nil {
		return providers.ExternalIDs{}, nil, err
	}
	return ids, surviving, nil
}

// reviewItem presents one slot and applies the outcome. done=true means the
// user cancelled the run.
func (r *Reviewer) reviewItem(ctx context.Context, entry *queue.Entry, item *queue.ArtItem, liveItem library.Item, candidates []providers.Candidate, session *queue.Session, outcome *entryOutcome) (bool, error) {
	if len(candidates) == 0 {
		if err := r.store.SetArtItemStatus(ctx, item.ID, queue.ItemSkipped); err != nil {
			return false, services.Wrap(services.ErrStorage, "reviewer", "set-item-status", "", err)
		}
		outcome.skipped++
		r.record(session, queue.SessionEvent{
			Title:   entry.Title,
			ArtType: item.ArtType,
			Outcome: queue.OutcomeAutoSkipped,
			Detail:  "no candidates",
		})
		return false, nil
	}

	decision, err := r.chooser.Present(ctx, PresentRequest{
		Title:      entry.Title,
		MediaType:  entry.MediaType,
		ArtType:    item.ArtType,
		CurrentURL: item.CurrentURL,
		Candidates: candidates,
	})
	if err != nil {
		return false, err
	}

	switch decision.Choice {
	case ChoiceCancel:
		outcome.cancelled = true
		return true, nil

	case ChoiceSkip:
		if err := r.store.SetArtItemStatus(ctx, item.ID, queue.ItemSkipped); err != nil {
			return false, services.Wrap(services.ErrStorage, "reviewer", "set-item-status", "", err)
		}
		outcome.skipped++
		r.record(session, queue.SessionEvent{
			Title:   entry.Title,
			ArtType: item.ArtType,
			Outcome: queue.OutcomeSkipped,
		})
		return false, nil

	case ChoiceSelected:
		return false, r.applySelection(ctx, entry, item, decision, session, outcome)

	default:
		return false, fmt.Errorf("unknown chooser decision %d", decision.Choice)
	}
}

// applySelection re-validates against live state one final time, then writes
// the chosen artwork to the library and resolves the work item.
func (r *Reviewer) applySelection(ctx context.Context, entry *queue.Entry, item *queue.ArtItem, decision Decision, session *queue.Session, outcome *entryOutcome) error {
	liveArt, err := r.lib.GetItemArt(ctx, entry.MediaType, entry.LibraryID)
	if err != nil {
		return err
	}
	if staleAgainst(item, liveArt[string(item.ArtType)]) {
		return r.markStale(ctx, entry, item, session, outcome)
	}

	art := map[string]string{string(item.ArtType): decision.Selected.URL}
	for i, extra := range decision.Extras {
		art[fmt.Sprintf("%s%d", item.ArtType, i+1)] = extra.URL
	}
	if err := r.lib.SetItemArt(ctx, entry.MediaType, entry.LibraryID, art); err != nil {
		return err
	}

	if err := r.store.MarkArtItemSelected(ctx, item.ID, decision.Selected.URL, false); err != nil {
		if errors.Is(err, services.ErrStale) {
			// Another run resolved the slot between the live check and
			// the write. Count it stale without stomping that status.
			outcome.stale++
			r.record(session, queue.SessionEvent{
				Title:   entry.Title,
				ArtType: item.ArtType,
				Outcome: queue.OutcomeStale,
				Detail:  "slot resolved concurrently",
			})
			return nil
		}
		return services.Wrap(services.ErrStorage, "reviewer", "mark-selected", "", err)
	}
	outcome.applied++
	logging.WithContext(ctx, r.logger).Info("artwork applied",
		slog.String("title", entry.Title),
		slog.String("art_type", string(item.ArtType)),
		slog.String("source", string(decision.Selected.Source)),
		slog.String("url", decision.Selected.URL))
	r.record(session, queue.SessionEvent{
		Title:   entry.Title,
		ArtType: item.ArtType,
		Source:  string(decision.Selected.Source),
		URL:     decision.Selected.URL,
		Outcome: queue.OutcomeApplied,
	})
	return nil
}

func (r *Reviewer) markStale(ctx context.Context, entry *queue.Entry, item *queue.ArtItem, session *queue.Session, outcome *entryOutcome) error {
	if err := r.store.SetArtItemStatus(ctx, item.ID, queue.ItemStale); err != nil {
		return services.Wrap(services.ErrStorage, "reviewer", "set-item-status", "", err)
	}
	outcome.stale++
	r.record(session, queue.SessionEvent{
		Title:   entry.Title,
		ArtType: item.ArtType,
		Outcome: queue.OutcomeStale,
		Detail:  "library changed since scan",
	})
	return nil
}

// record appends an event to the owning session and persists immediately so
// a crash loses at most one item's progress. Applied events already present
// in the log (a resumed run) are not duplicated.
func (r *Reviewer) record(session *queue.Session, event queue.SessionEvent) {
	if session == nil {
		return
	}
	if event.Outcome == queue.OutcomeApplied &&
		session.Stats.HasApplied(event.Title, event.ArtType, event.URL) {
		return
	}
	session.Stats.Record(event)
	if err := r.store.SaveSessionStats(context.Background(), session.ID, session.Stats); err != nil {
		r.logger.Warn("session stats save failed", logging.Error(err))
	}
}

func (r *Reviewer) sessionFor(ctx context.Context, sessions map[string]*queue.Session, id string) (*queue.Session, error) {
	if id == "" {
		return nil, nil
	}
	if session, ok := sessions[id]; ok {
		return session, nil
	}
	session, err := r.store.GetSession(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "reviewer", "load-session", "", err)
	}
	sessions[id] = session
	return session, nil
}

func (r *Reviewer) showIDsFor(ctx context.Context, item library.Item) (map[string]string, error) {
	if item.Type != media.TypeSeason && item.Type != media.TypeEpisode {
		return nil, nil
	}
	show, err := r.lib.GetItem(ctx, media.TypeTVShow, item.TVShowID)
	if err != nil {
		return nil, err
	}
	return show.UniqueIDs, nil
}

// restorePending puts an entry claimed for review back to pending, used when
// the run stops before reaching it.
func (r *Reviewer) restorePending(entry *queue.Entry) {
	if err := r.store.SetEntryStatus(context.Background(), entry.ID, queue.StatusPending); err != nil {
		r.logger.Warn("entry restore failed", logging.Error(err))
	}
}

func (r *Reviewer) pauseSessions(sessions map[string]*queue.Session) {
	for _, session := range sessions {
		if session == nil || !session.Status.Open() {
			continue
		}
		if err := r.store.UpdateSessionStatus(context.Background(), session.ID, queue.SessionPaused); err != nil {
			r.logger.Warn("session pause failed", logging.Error(err))
			continue
		}
		session.Status = queue.SessionPaused
	}
}

// completeSessions closes every touched session that has no pending entries
// left.
func (r *Reviewer) completeSessions(sessions map[string]*queue.Session) {
	ctx := context.Background()
	for _, session := range sessions {
		if session == nil || !session.Status.Open() {
			continue
		}
		remaining, err := r.store.CountPendingForSession(ctx, session.ID)
		if err != nil {
			r.logger.Warn("session pending count failed", logging.Error(err))
			continue
		}
		if remaining > 0 {
			continue
		}
		if err := r.store.UpdateSessionStatus(ctx, session.ID, queue.SessionCompleted); err != nil {
			r.logger.Warn("session completion failed", logging.Error(err))
			continue
		}
		session.Status = queue.SessionCompleted
	}
}

func (r *Reviewer) finish(summary *Summary, sessions map[string]*queue.Session) *Summary {
	for _, session := range sessions {
		if session != nil {
			summary.Sessions = append(summary.Sessions, session)
		}
	}
	return summary
}

// pendingByType indexes an entry's unresolved art items by type.
func pendingByType(items []*queue.ArtItem) map[media.ArtType]*queue.ArtItem {
	pending := make(map[media.ArtType]*queue.ArtItem, len(items))
	for _, item := range items {
		if item.Status == queue.ItemPending {
			pending[item.ArtType] = item
		}
	}
	return pending
}

// staleAgainst reports whether live library state invalidates the item's
// scan-time assumption: a missing slot that is now occupied, or a candidate
// whose baseline URL no longer matches.
func staleAgainst(item *queue.ArtItem, liveURL string) bool {
	switch item.ReviewMode {
	case queue.ModeMissing:
		return liveURL != ""
	case queue.ModeCandidate:
		return liveURL != item.BaselineURL
	default:
		return true
	}
}
