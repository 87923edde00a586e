package processor

import (
	"context"
	"errors"
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

// Outcome classifies how the processor resolved one art item.
type Outcome string

const (
	OutcomeAutoApplied        Outcome = "auto_applied"
	OutcomeSkippedNoOptions   Outcome = "skipped_no_options"
	OutcomeSkippedPolicyBlock Outcome = "skipped_policy_blocked"
	OutcomeSkippedNotMissing  Outcome = "skipped_not_missing"
	OutcomeError              Outcome = "error"
)

// ItemResult is one art item's resolution, kept for the end-of-run report.
type ItemResult struct {
	Title   string
	ArtType media.ArtType
	Outcome Outcome
	URL     string
	Detail  string
}

// Summary aggregates an unattended run.
type Summary struct {
	Entries       int
	Applied       int
	NoOptions     int
	PolicyBlocked int
	Stale         int
	Errors        int
	Items         []ItemResult
	Sessions      []*queue.Session
}

// Options configures one processor run.
type Options struct {
	MediaTypes []media.Type
}

// Processor is the unattended counterpart to the reviewer. It resolves only
// missing-mode work: candidate-mode items always need a human decision and
// are left pending, and a slot that turns out to hold any value is never
// overwritten.
type Processor struct {
	cfg     *config.Config
	store   *queue.Store
	lib     library.Client
	fetcher *sources.Fetcher
	logger  *slog.Logger
}

// New builds a Processor.
func New(cfg *config.Config, store *queue.Store, lib library.Client, fetcher *sources.Fetcher, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		cfg:     cfg,
		store:   store,
		lib:     lib,
		fetcher: fetcher,
		logger:  logging.WithComponent(logger, "processor"),
	}
}

// Run drains pending entries and auto-applies the best policy-surviving
// candidate for each missing slot. Entries whose only work is candidate-mode
// are left pending for the reviewer.
func (p *Processor) Run(ctx context.Context, opts Options) (*Summary, error) {
	summary := &Summary{}
	sessions := make(map[string]*queue.Session)
	processed := make(map[int64]bool)

	for {
		if err := ctx.Err(); err != nil {
			return p.finish(summary, sessions), err
		}

		batch, err := p.store.NextBatch(ctx, p.cfg.Review.BatchSize, queue.StatusPending, opts.MediaTypes)
		if err != nil {
			return summary, services.Wrap(services.ErrStorage, "processor", "next-batch", "", err)
		}

		// Entries that stay pending (manual-only work) would repeat forever
		// without tracking what this run has already seen.
		var fresh []*queue.Entry
		for _, entry := range batch {
			if !processed[entry.ID] {
				fresh = append(fresh, entry)
				processed[entry.ID] = true
			}
		}
		if len(fresh) == 0 {
			break
		}

		ids := make([]int64, 0, len(fresh))
		for _, entry := range fresh {
			ids = append(ids, entry.ID)
		}
		itemsByEntry, err := p.store.ArtItemsFor(ctx, ids)
		if err != nil {
			return summary, services.Wrap(services.ErrStorage, "processor", "load-items", "", err)
		}

		for _, entry := range fresh {
			if err := ctx.Err(); err != nil {
				return p.finish(summary, sessions), err
			}
			session, err := p.sessionFor(ctx, sessions, entry.SessionID)
			if err != nil {
				return summary, err
			}
			entryCtx := services.WithEntryID(ctx, entry.ID)
			if err := p.processEntry(entryCtx, entry, itemsByEntry[entry.ID], session, summary); err != nil {
				if services.Fatal(err) {
					return summary, err
				}
				summary.Errors++
				logging.WithContext(entryCtx, p.logger).Error("entry processing failed",
					slog.String("title", entry.Title),
					logging.Error(err))
				summary.Items = append(summary.Items, ItemResult{
					Title:   entry.Title,
					Outcome: OutcomeError,
					Detail:  err.Error(),
				})
				if session != nil {
					session.Stats.Record(queue.SessionEvent{
						Title:   entry.Title,
						Outcome: queue.OutcomeError,
						Detail:  err.Error(),
					})
					p.saveStats(session)
				}
				if storeErr := p.store.SetEntryStatus(ctx, entry.ID, queue.StatusError); storeErr != nil {
					return summary, services.Wrap(services.ErrStorage, "processor", "set-status", "", storeErr)
				}
			}
		}
	}

	return p.finish(summary, sessions), nil
}

func (p *Processor) processEntry(ctx context.Context, entry *queue.Entry, items []*queue.ArtItem, session *queue.Session, summary *Summary) error {
	summary.Entries++

	var missing []*queue.ArtItem
	manualLeft := false
	for _, item := range items {
		if item.Status != queue.ItemPending {
			continue
		}
		if item.ReviewMode != queue.ModeMissing || item.RequiresManual {
			manualLeft = true
			continue
		}
		missing = append(missing, item)
	}
	if len(missing) == 0 {
		// Nothing the processor may touch; the entry stays pending for
		// the reviewer.
		return nil
	}

	liveItem, err := p.lib.GetItem(ctx, entry.MediaType, entry.LibraryID)
	if err != nil {
		return err
	}
	showIDs, err := p.showIDsFor(ctx, liveItem)
	if err != nil {
		return err
	}
	ids, err := p.fetcher.ResolveIDs(ctx, liveItem, showIDs)
	if err != nil {
		return err
	}

	artTypes := make([]media.ArtType, 0, len(missing))
	for _, item := range missing {
		artTypes = append(artTypes, item.ArtType)
	}
	perType, err := p.fetcher.Candidates(ctx, entry.MediaType, ids, artTypes)
	if err != nil {
		return err
	}

	rankOpts := ranking.Options{
		SortMode:          ranking.SortMode(p.cfg.Artwork.SortMode),
		SourcePreference:  providers.Source(p.cfg.Artwork.SourcePreference),
		PreferredLanguage: p.cfg.Artwork.PreferredLanguage,
	}

	for _, item := range missing {
		if err := p.processItem(ctx, entry, item, liveItem, perType[item.ArtType], rankOpts, session, summary); err != nil {
			return err
		}
	}

	if !manualLeft {
		if err := p.store.SetEntryStatus(ctx, entry.ID, queue.StatusCompleted); err != nil {
			return services.Wrap(services.ErrStorage, "processor", "set-status", "", err)
		}
	}
	p.saveStats(session)
	return nil
}

func (p *Processor) processItem(ctx context.Context, entry *queue.Entry, item *queue.ArtItem, liveItem library.Item, candidates []providers.Candidate, rankOpts ranking.Options, session *queue.Session, summary *Summary) error {
	// The slot was empty at scan time; if it holds any value now, it is
	// not the processor's job.
	if liveItem.Art[string(item.ArtType)] != "" {
		if err := p.store.SetArtItemStatus(ctx, item.ID, queue.ItemStale); err != nil {
			return services.Wrap(services.ErrStorage, "processor", "set-item-status", "", err)
		}
		summary.Stale++
		p.recordItem(summary, session, entry, item, OutcomeSkippedNotMissing, queue.SessionEvent{
			Outcome: queue.OutcomeStale,
			Detail:  "slot occupied since scan",
		})
		return nil
	}

	if len(candidates) == 0 {
		if err := p.store.SetArtItemStatus(ctx, item.ID, queue.ItemSkipped); err != nil {
			return services.Wrap(services.ErrStorage, "processor", "set-item-status", "", err)
		}
		summary.NoOptions++
		p.recordItem(summary, session, entry, item, OutcomeSkippedNoOptions, queue.SessionEvent{
			Outcome: queue.OutcomeAutoSkipped,
			Detail:  "no candidates",
		})
		return nil
	}

	survivors := ranking.ApplyLanguagePolicy(candidates, item.ArtType, p.cfg.Artwork.PreferredLanguage)
	rankOpts.ArtType = item.ArtType
	ranked := ranking.Rank(survivors, rankOpts)
	if len(ranked) == 0 {
		if err := p.store.SetArtItemStatus(ctx, item.ID, queue.ItemSkipped); err != nil {
			return services.Wrap(services.ErrStorage, "processor", "set-item-status", "", err)
		}
		summary.PolicyBlocked++
		p.recordItem(summary, session, entry, item, OutcomeSkippedPolicyBlock, queue.SessionEvent{
			Outcome: queue.OutcomePolicyBlocked,
			Detail:  "selection policy left no candidates",
		})
		return nil
	}
	best := ranked[0]

	// Final live check immediately before the write.
	liveArt, err := p.lib.GetItemArt(ctx, entry.MediaType, entry.LibraryID)
	if err != nil {
		return err
	}
	if liveArt[string(item.ArtType)] != "" {
		if err := p.store.SetArtItemStatus(ctx, item.ID, queue.ItemStale); err != nil {
			return services.Wrap(services.ErrStorage, "processor", "set-item-status", "", err)
		}
		summary.Stale++
		p.recordItem(summary, session, entry, item, OutcomeSkippedNotMissing, queue.SessionEvent{
			Outcome: queue.OutcomeStale,
			Detail:  "slot occupied since scan",
		})
		return nil
	}

	if err := p.lib.SetItemArt(ctx, entry.MediaType, entry.LibraryID, map[string]string{
		string(item.ArtType): best.URL,
	}); err != nil {
		return err
	}
	if err := p.store.MarkArtItemSelected(ctx, item.ID, best.URL, true); err != nil {
		if errors.Is(err, services.ErrStale) {
			summary.Stale++
			p.recordItem(summary, session, entry, item, OutcomeSkippedNotMissing, queue.SessionEvent{
				Outcome: queue.OutcomeStale,
				Detail:  "slot resolved concurrently",
			})
			return nil
		}
		return services.Wrap(services.ErrStorage, "processor", "mark-selected", "", err)
	}

	summary.Applied++
	logging.WithContext(ctx, p.logger).Info("artwork auto-applied",
		slog.String("title", entry.Title),
		slog.String("art_type", string(item.ArtType)),
		slog.String("source", string(best.Source)),
		slog.String("url", best.URL))
	p.recordItem(summary, session, entry, item, OutcomeAutoApplied, queue.SessionEvent{
		Source:  string(best.Source),
		URL:     best.URL,
		Outcome: queue.OutcomeAutoApplied,
	})
	return nil
}

func (p *Processor) recordItem(summary *Summary, session *queue.Session, entry *queue.Entry, item *queue.ArtItem, outcome Outcome, event queue.SessionEvent) {
	event.Title = entry.Title
	event.ArtType = item.ArtType
	summary.Items = append(summary.Items, ItemResult{
		Title:   entry.Title,
		ArtType: item.ArtType,
		Outcome: outcome,
		URL:     event.URL,
		Detail:  event.Detail,
	})
	if session == nil {
		return
	}
	session.Stats.Record(event)
}

func (p *Processor) sessionFor(ctx context.Context, sessions map[string]*queue.Session, id string) (*queue.Session, error) {
	if id == "" {
		return nil, nil
	}
	if session, ok := sessions[id]; ok {
		return session, nil
	}
	session, err := p.store.GetSession(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "processor", "load-session", "", err)
	}
	sessions[id] = session
	return session, nil
}

func (p *Processor) showIDsFor(ctx context.Context, item library.Item) (map[string]string, error) {
	if item.Type != media.TypeSeason && item.Type != media.TypeEpisode {
		return nil, nil
	}
	show, err := p.lib.GetItem(ctx, media.TypeTVShow, item.TVShowID)
	if err != nil {
		return nil, err
	}
	return show.UniqueIDs, nil
}

func (p *Processor) saveStats(session *queue.Session) {
	if session == nil {
		return
	}
	if err := p.store.SaveSessionStats(context.Background(), session.ID, session.Stats); err != nil {
		p.logger.Warn("session stats save failed", logging.Error(err))
	}
}

func (p *Processor) finish(summary *Summary, sessions map[string]*queue.Session) *Summary {
	for _, session := range sessions {
		if session != nil {
			summary.Sessions = append(summary.Sessions, session)
		}
	}
	return summary
}
