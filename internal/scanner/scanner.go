package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"artgrab/internal/config"
	"artgrab/internal/library"
	"artgrab/internal/logging"
	"artgrab/internal/media"
	"artgrab/internal/precache"
	"artgrab/internal/queue"
	"artgrab/internal/services"
	"artgrab/internal/sources"
)

// ConfirmFunc asks the user whether a large texture-caching pass may run.
// count is the number of uncached textures involved.
type ConfirmFunc func(count int) bool

// Options configures one scan run.
type Options struct {
	MediaTypes      []media.Type
	ArtTypes        []media.ArtType
	IncludeUpgrades bool
	// Restart cancels an open session on the same scope instead of
	// resuming it.
	Restart bool
}

// Scanner walks the library, derives missing and upgrade work per item, and
// queues it durably under a scan session.
type Scanner struct {
	cfg       *config.Config
	store     *queue.Store
	lib       library.Client
	fetcher   *sources.Fetcher
	precacher *precache.Precacher
	logger    *slog.Logger
	confirm   ConfirmFunc
}

// New builds a Scanner. confirm may be nil, in which case large caching
// passes are declined.
func New(cfg *config.Config, store *queue.Store, lib library.Client, fetcher *sources.Fetcher, precacher *precache.Precacher, logger *slog.Logger, confirm ConfirmFunc) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	if confirm == nil {
		confirm = func(int) bool { return false }
	}
	return &Scanner{
		cfg:       cfg,
		store:     store,
		lib:       lib,
		fetcher:   fetcher,
		precacher: precacher,
		logger:    logging.WithComponent(logger, "scanner"),
		confirm:   confirm,
	}
}

// Run executes one scan. Cancellation pauses the session with everything
// already discovered durably queued; a failed collection listing cancels the
// session and aborts. The finished (or paused) session is returned for
// reporting.
func (s *Scanner) Run(ctx context.Context, opts Options) (*queue.Session, error) {
	session, resume, err := s.openSession(ctx, opts)
	if err != nil {
		return nil, err
	}
	ctx = services.WithSessionID(ctx, session.ID)
	logger := logging.WithContext(ctx, s.logger)

	if resume && len(session.Stats.PendingPrecache) > 0 {
		if err := s.resumePrecache(ctx, session, logger); err != nil {
			return session, err
		}
	}

	// Discovery restarts from the top on resume; enqueue is an upsert, so
	// the counters restart with it instead of stacking on the paused run's.
	session.Stats.Scanned = 0
	session.Stats.Queued = 0

	for _, mediaType := range opts.MediaTypes {
		select {
		case <-ctx.Done():
			return session, s.pause(session, ctx.Err())
		default:
		}

		if err := s.scanCollection(ctx, session, mediaType, opts); err != nil {
			if errors.Is(err, context.Canceled) {
				return session, s.pause(session, err)
			}
			logger.Error("collection scan failed",
				slog.String("media_type", string(mediaType)),
				logging.Error(err))
			s.finishSession(session, queue.SessionCancelled)
			return session, services.Wrap(services.ErrNetwork, "scanner", "scan",
				fmt.Sprintf("scanning %s failed", mediaType), err)
		}
	}

	s.finishSession(session, queue.SessionCompleted)
	logger.Info("scan finished",
		slog.Int("scanned", session.Stats.Scanned),
		slog.Int("queued", session.Stats.Queued))
	return session, nil
}

// openSession resolves the session for this scan's scope. An open session on
// the scope is resumed unless Restart asks for a fresh one; two sessions on
// one scope never coexist.
func (s *Scanner) openSession(ctx context.Context, opts Options) (*queue.Session, bool, error) {
	scope := media.ScopeKey(opts.MediaTypes)

	existing, err := s.store.FindOpenSession(ctx, scope)
	if err != nil {
		return nil, false, services.Wrap(services.ErrStorage, "scanner", "open-session", "", err)
	}
	if existing != nil {
		if !opts.Restart {
			if err := s.store.UpdateSessionStatus(ctx, existing.ID, queue.SessionActive); err != nil {
				return nil, false, services.Wrap(services.ErrStorage, "scanner", "open-session", "", err)
			}
			existing.Status = queue.SessionActive
			s.logger.Info("resuming session", slog.String("session_id", existing.ID))
			return existing, true, nil
		}
		if err := s.store.UpdateSessionStatus(ctx, existing.ID, queue.SessionCancelled); err != nil {
			return nil, false, services.Wrap(services.ErrStorage, "scanner", "open-session", "", err)
		}
		s.logger.Info("cancelled previous session", slog.String("session_id", existing.ID))
	}

	scanType := queue.ScanMissing
	if opts.IncludeUpgrades {
		scanType = queue.ScanUpgrades
	}
	session := &queue.Session{
		ScanType:   scanType,
		MediaTypes: opts.MediaTypes,
		ArtTypes:   media.SortByReviewOrder(opts.ArtTypes),
		Scope:      scope,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, false, services.Wrap(services.ErrStorage, "scanner", "open-session", "", err)
	}
	return session, false, nil
}

func (s *Scanner) scanCollection(ctx context.Context, session *queue.Session, mediaType media.Type, opts Options) error {
	items, err := s.lib.ListItems(ctx, mediaType)
	if err != nil {
		return err
	}

	showIDs, err := s.showIDIndex(ctx, mediaType)
	if err != nil {
		return err
	}

	var specs []queue.EnqueueSpec
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			// Queue what was already discovered before pausing.
			break
		}
		session.Stats.Scanned++

		itemSpecs := s.missingSlots(item, session, opts.ArtTypes)
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

	if err := s.flush(ctx, session, specs); err != nil {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if opts.IncludeUpgrades {
		if err := s.scanUpgrades(ctx, session, mediaType, items, showIDs, opts.ArtTypes); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// missingSlots returns the art-item specs for every configured type with an
// empty slot on the item.
func (s *Scanner) missingSlots(item library.Item, session *queue.Session, artTypes []media.ArtType) []queue.ArtItemSpec {
	var specs []queue.ArtItemSpec
	for _, artType := range media.SortByReviewOrder(artTypes) {
		if item.Art[string(artType)] != "" {
			continue
		}
		specs = append(specs, queue.ArtItemSpec{
			ArtType:    artType,
			ReviewMode: queue.ModeMissing,
		})
	}
	return specs
}

// flush writes a collection's discovered work in one transaction and folds
// the count into the session.
func (s *Scanner) flush(ctx context.Context, session *queue.Session, specs []queue.EnqueueSpec) error {
	if len(specs) == 0 {
		return s.saveStats(session)
	}
	// Enqueue happens even when ctx is already cancelled so a paused scan
	// keeps its partial discovery.
	ids, err := s.store.EnqueueBatch(context.WithoutCancel(ctx), specs)
	if err != nil {
		return services.Wrap(services.ErrStorage, "scanner", "enqueue", "", err)
	}
	session.Stats.Queued += len(ids)
	return s.saveStats(session)
}

// showIDIndex maps library show ids to their unique-id maps, needed to
// resolve provider ids for seasons and episodes.
func (s *Scanner) showIDIndex(ctx context.Context, mediaType media.Type) (map[int64]map[string]string, error) {
	if mediaType != media.TypeSeason && mediaType != media.TypeEpisode {
		return nil, nil
	}
	shows, err := s.lib.ListItems(ctx, media.TypeTVShow)
	if err != nil {
		return nil, err
	}
	index := make(map[int64]map[string]string, len(shows))
	for _, show := range shows {
		index[show.ID] = show.UniqueIDs
	}
	return index, nil
}

// pause transitions the session to paused, keeping everything queued so far.
func (s *Scanner) pause(session *queue.Session, cause error) error {
	if err := s.saveStats(session); err != nil {
		return err
	}
	if err := s.store.UpdateSessionStatus(context.Background(), session.ID, queue.SessionPaused); err != nil {
		return services.Wrap(services.ErrStorage, "scanner", "pause", "", err)
	}
	session.Status = queue.SessionPaused
	s.logger.Info("scan paused",
		slog.String("session_id", session.ID),
		slog.Int("scanned", session.Stats.Scanned),
		slog.Int("queued", session.Stats.Queued))
	return cause
}

func (s *Scanner) finishSession(session *queue.Session, status queue.SessionStatus) {
	_ = s.saveStats(session)
	if err := s.store.UpdateSessionStatus(context.Background(), session.ID, status); err != nil {
		s.logger.Warn("session status update failed", logging.Error(err))
		return
	}
	session.Status = status
}

func (s *Scanner) saveStats(session *queue.Session) error {
	if err := s.store.SaveSessionStats(context.Background(), session.ID, session.Stats); err != nil {
		return services.Wrap(services.ErrStorage, "scanner", "save-stats", "", err)
	}
	return nil
}
