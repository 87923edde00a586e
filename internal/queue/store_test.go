package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"artgrab/internal/media"
	"artgrab/internal/queue"
	"artgrab/internal/services"
	"artgrab/internal/testsupport"
)

func TestEnqueueBatchIsIdempotent(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	spec := testsupport.MovieSpec(42, "Arrival")
	first, err := store.EnqueueBatch(ctx, []queue.EnqueueSpec{spec})
	if err != nil {
		t.Fatalf("EnqueueBatch: %v", err)
	}

	entry, err := store.GetEntry(ctx, first[0])
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if err := store.SetEntryStatus(ctx, entry.ID, queue.StatusCompleted); err != nil {
		t.Fatalf("SetEntryStatus: %v", err)
	}

	spec.Items = append(spec.Items, queue.ArtItemSpec{
		ArtType:    media.ArtClearLogo,
		ReviewMode: queue.ModeMissing,
	})
	second, err := store.EnqueueBatch(ctx, []queue.EnqueueSpec{spec})
	if err != nil {
		t.Fatalf("EnqueueBatch (repeat): %v", err)
	}
	if second[0] != first[0] {
		t.Fatalf("repeat enqueue created a new entry: %d != %d", second[0], first[0])
	}

	entry, err = store.GetEntry(ctx, first[0])
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if entry.Status != queue.StatusPending {
		t.Fatalf("repeat enqueue should reset status to pending, got %s", entry.Status)
	}
	if entry.ProcessedAt != nil {
		t.Fatal("repeat enqueue should clear processed_at")
	}

	items, err := store.ArtItemsFor(ctx, []int64{entry.ID})
	if err != nil {
		t.Fatalf("ArtItemsFor: %v", err)
	}
	if got := len(items[entry.ID]); got != 3 {
		t.Fatalf("expected 3 art items after repeat enqueue, got %d", got)
	}
}

func TestEnqueueRefreshesBaselineAndResetsSelection(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	entry := testsupport.EnqueueEntry(t, store, testsupport.MovieSpec(7, "Dune"))
	items, err := store.ArtItemsFor(ctx, []int64{entry.ID})
	if err != nil {
		t.Fatalf("ArtItemsFor: %v", err)
	}
	poster := items[entry.ID][0]
	if err := store.MarkArtItemSelected(ctx, poster.ID, "http://img/selected.jpg", false); err != nil {
		t.Fatalf("MarkArtItemSelected: %v", err)
	}

	spec := testsupport.MovieSpec(7, "Dune")
	spec.Items[0].BaselineURL = "http://img/new-baseline.jpg"
	spec.Items[0].ReviewMode = queue.ModeCandidate
	if _, err := store.EnqueueBatch(ctx, []queue.EnqueueSpec{spec}); err != nil {
		t.Fatalf("EnqueueBatch: %v", err)
	}

	refreshed, err := store.GetArtItem(ctx, poster.ID)
	if err != nil {
		t.Fatalf("GetArtItem: %v", err)
	}
	if refreshed.BaselineURL != "http://img/new-baseline.jpg" {
		t.Fatalf("baseline not refreshed: %q", refreshed.BaselineURL)
	}
	if refreshed.ReviewMode != queue.ModeCandidate {
		t.Fatalf("review mode not refreshed: %s", refreshed.ReviewMode)
	}
	if !refreshed.RequiresManual {
		t.Fatal("candidate slots must require a manual decision")
	}
	if refreshed.SelectedURL != "" || refreshed.Status != queue.ItemPending {
		t.Fatalf("re-enqueue should reset selection, got %q / %s", refreshed.SelectedURL, refreshed.Status)
	}
}

func TestMarkArtItemSelectedRejectsResolvedSlot(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	entry := testsupport.EnqueueEntry(t, store, testsupport.MovieSpec(9, "Sicario"))
	items, err := store.ArtItemsFor(ctx, []int64{entry.ID})
	if err != nil {
		t.Fatalf("ArtItemsFor: %v", err)
	}
	poster := items[entry.ID][0]
	if err := store.MarkArtItemSelected(ctx, poster.ID, "http://img/first.jpg", false); err != nil {
		t.Fatalf("MarkArtItemSelected: %v", err)
	}

	err = store.MarkArtItemSelected(ctx, poster.ID, "http://img/second.jpg", true)
	if !errors.Is(err, services.ErrStale) {
		t.Fatalf("expected stale marker for a resolved slot, got: %v", err)
	}

	resolved, err := store.GetArtItem(ctx, poster.ID)
	if err != nil {
		t.Fatalf("GetArtItem: %v", err)
	}
	if resolved.SelectedURL != "http://img/first.jpg" || resolved.AutoApplied {
		t.Fatalf("resolved slot overwritten: %q auto=%v", resolved.SelectedURL, resolved.AutoApplied)
	}
}

func TestNextBatchOrdersAndFilters(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	movie := testsupport.EnqueueEntry(t, store, testsupport.MovieSpec(1, "Heat"))
	showSpec := testsupport.MovieSpec(2, "Severance")
	showSpec.MediaType = media.TypeTVShow
	show := testsupport.EnqueueEntry(t, store, showSpec)
	testsupport.EnqueueEntry(t, store, testsupport.MovieSpec(3, "Ronin"))

	batch, err := store.NextBatch(ctx, 2, queue.StatusPending, nil)
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(batch))
	}
	if batch[0].ID != movie.ID || batch[1].ID != show.ID {
		t.Fatalf("batch not in insertion order: %d, %d", batch[0].ID, batch[1].ID)
	}

	shows, err := store.NextBatch(ctx, 10, queue.StatusPending, []media.Type{media.TypeTVShow})
	if err != nil {
		t.Fatalf("NextBatch (filtered): %v", err)
	}
	if len(shows) != 1 || shows[0].ID != show.ID {
		t.Fatalf("media-type filter failed: %+v", shows)
	}
}

func TestSetEntryStatusStampsTerminalStates(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	entry := testsupport.EnqueueEntry(t, store, testsupport.MovieSpec(9, "Sicario"))

	if err := store.SetEntryStatus(ctx, entry.ID, queue.StatusReviewing); err != nil {
		t.Fatalf("SetEntryStatus: %v", err)
	}
	reloaded, _ := store.GetEntry(ctx, entry.ID)
	if reloaded.ProcessedAt != nil {
		t.Fatal("reviewing must not stamp processed_at")
	}

	if err := store.SetEntryStatus(ctx, entry.ID, queue.StatusCompleted); err != nil {
		t.Fatalf("SetEntryStatus: %v", err)
	}
	reloaded, _ = store.GetEntry(ctx, entry.ID)
	if reloaded.ProcessedAt == nil {
		t.Fatal("completed must stamp processed_at")
	}
}

func TestRestorePendingEntries(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	entry := testsupport.EnqueueEntry(t, store, testsupport.MovieSpec(5, "Tenet"))
	done := testsupport.EnqueueEntry(t, store, testsupport.MovieSpec(6, "Memento"))
	if err := store.SetEntryStatus(ctx, entry.ID, queue.StatusReviewing); err != nil {
		t.Fatalf("SetEntryStatus: %v", err)
	}
	if err := store.SetEntryStatus(ctx, done.ID, queue.StatusCompleted); err != nil {
		t.Fatalf("SetEntryStatus: %v", err)
	}

	restored, err := store.RestorePendingEntries(ctx)
	if err != nil {
		t.Fatalf("RestorePendingEntries: %v", err)
	}
	if restored != 1 {
		t.Fatalf("expected 1 restored entry, got %d", restored)
	}
	reloaded, _ := store.GetEntry(ctx, entry.ID)
	if reloaded.Status != queue.StatusPending {
		t.Fatalf("stuck entry not restored: %s", reloaded.Status)
	}
	reloaded, _ = store.GetEntry(ctx, done.ID)
	if reloaded.Status != queue.StatusCompleted {
		t.Fatalf("terminal entry must not be touched: %s", reloaded.Status)
	}
}

func TestPruneInactiveKeepsEntriesWithPendingItems(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	aged := testsupport.EnqueueEntry(t, store, testsupport.MovieSpec(11, "Blade Runner"))
	fresh := testsupport.EnqueueEntry(t, store, testsupport.MovieSpec(12, "Alien"))

	// Complete every slot on the aged entry, only one on the fresh one.
	items, err := store.ArtItemsFor(ctx, []int64{aged.ID, fresh.ID})
	if err != nil {
		t.Fatalf("ArtItemsFor: %v", err)
	}
	for _, item := range items[aged.ID] {
		if err := store.SetArtItemStatus(ctx, item.ID, queue.ItemCompleted); err != nil {
			t.Fatalf("SetArtItemStatus: %v", err)
		}
	}
	if err := store.SetEntryStatus(ctx, aged.ID, queue.StatusCompleted); err != nil {
		t.Fatalf("SetEntryStatus: %v", err)
	}
	if err := store.SetEntryStatus(ctx, fresh.ID, queue.StatusCancelled); err != nil {
		t.Fatalf("SetEntryStatus: %v", err)
	}

	// A negative retention makes every terminal row old enough to prune.
	removed, err := store.PruneInactive(ctx, -time.Hour)
	if err != nil {
		t.Fatalf("PruneInactive: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", removed)
	}
	if entry, _ := store.GetEntry(ctx, aged.ID); entry != nil {
		t.Fatal("completed entry without pending items should be pruned")
	}
	if entry, _ := store.GetEntry(ctx, fresh.ID); entry == nil {
		t.Fatal("entry with pending items must survive pruning")
	}
}

func TestCreateSessionRejectsSecondOpenSessionOnScope(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := &queue.Session{
		ScanType:   queue.ScanMissing,
		MediaTypes: []media.Type{media.TypeMovie},
		ArtTypes:   []media.ArtType{media.ArtPoster},
		Scope:      "movie",
	}
	if err := store.CreateSession(ctx, first); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	second := &queue.Session{ScanType: queue.ScanMissing, Scope: "movie"}
	err := store.CreateSession(ctx, second)
	if !errors.Is(err, queue.ErrSessionOpen) {
		t.Fatalf("expected ErrSessionOpen, got %v", err)
	}

	// A paused session still blocks; a completed one does not.
	if err := store.UpdateSessionStatus(ctx, first.ID, queue.SessionPaused); err != nil {
		t.Fatalf("UpdateSessionStatus: %v", err)
	}
	if err := store.CreateSession(ctx, second); !errors.Is(err, queue.ErrSessionOpen) {
		t.Fatalf("paused session should still block, got %v", err)
	}
	if err := store.UpdateSessionStatus(ctx, first.ID, queue.SessionCompleted); err != nil {
		t.Fatalf("UpdateSessionStatus: %v", err)
	}
	if err := store.CreateSession(ctx, second); err != nil {
		t.Fatalf("completed session must not block, got %v", err)
	}

	// A different scope is never blocked.
	other := &queue.Session{ScanType: queue.ScanMissing, Scope: "tvshow"}
	if err := store.CreateSession(ctx, other); err != nil {
		t.Fatalf("CreateSession (other scope): %v", err)
	}
}

func TestSessionStatsRoundTrip(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	session := &queue.Session{
		ScanType:   queue.ScanUpgrades,
		MediaTypes: []media.Type{media.TypeMovie, media.TypeTVShow},
		ArtTypes:   []media.ArtType{media.ArtPoster, media.ArtFanart},
		Scope:      "movie+tvshow",
	}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	stats := queue.SessionStats{Scanned: 120, Queued: 8}
	stats.Record(queue.SessionEvent{
		Title:   "Arrival",
		ArtType: media.ArtPoster,
		URL:     "http://img/poster.jpg",
		Outcome: queue.OutcomeApplied,
	})
	stats.Record(queue.SessionEvent{
		Title:   "Arrival",
		ArtType: media.ArtFanart,
		Outcome: queue.OutcomeSkipped,
	})
	if err := store.SaveSessionStats(ctx, session.ID, stats); err != nil {
		t.Fatalf("SaveSessionStats: %v", err)
	}

	reloaded, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if reloaded.Stats.Applied != 1 || reloaded.Stats.Skipped != 1 || reloaded.Stats.Scanned != 120 {
		t.Fatalf("stats not preserved: %+v", reloaded.Stats)
	}
	if len(reloaded.Stats.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(reloaded.Stats.Events))
	}
	if !reloaded.Stats.HasApplied("Arrival", media.ArtPoster, "http://img/poster.jpg") {
		t.Fatal("applied event should be detected after reload")
	}
	if len(reloaded.MediaTypes) != 2 || len(reloaded.ArtTypes) != 2 {
		t.Fatalf("type lists not preserved: %+v", reloaded)
	}
}

func TestGetSessionByPrefix(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	session := &queue.Session{ScanType: queue.ScanMissing, Scope: "movie", ID: "aabbccdd-0000-0000-0000-000000000000"}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	found, err := store.GetSession(ctx, "aabbcc")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if found == nil || found.ID != session.ID {
		t.Fatalf("prefix lookup failed: %+v", found)
	}

	missing, err := store.GetSession(ctx, "ffff")
	if err != nil {
		t.Fatalf("GetSession (missing): %v", err)
	}
	if missing != nil {
		t.Fatal("unknown prefix should return nil")
	}
}

func TestStatsGroupsByStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	a := testsupport.EnqueueEntry(t, store, testsupport.MovieSpec(21, "Fargo"))
	testsupport.EnqueueEntry(t, store, testsupport.MovieSpec(22, "Brick"))
	if err := store.SetEntryStatus(ctx, a.ID, queue.StatusSkipped); err != nil {
		t.Fatalf("SetEntryStatus: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.StatusPending] != 1 || stats[queue.StatusSkipped] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Total() != 2 {
		t.Fatalf("unexpected total: %d", stats.Total())
	}
}
