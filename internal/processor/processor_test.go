package processor_test

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"artgrab/internal/artcache"
	"artgrab/internal/config"
	"artgrab/internal/library"
	"artgrab/internal/logging"
	"artgrab/internal/media"
	"artgrab/internal/processor"
	"artgrab/internal/providers"
	"artgrab/internal/queue"
	"artgrab/internal/sources"
	"artgrab/internal/testsupport"
)

type fakeLibrary struct {
	items   map[string]library.Item
	setArt  []map[string]string
	onFetch func()
}

func libKey(mediaType media.Type, id int64) string {
	return string(mediaType) + "/" + strconv.FormatInt(id, 10)
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{items: make(map[string]library.Item)}
}

func (f *fakeLibrary) put(item library.Item) {
	f.items[libKey(item.Type, item.ID)] = item
}

func (f *fakeLibrary) ListItems(ctx context.Context, mediaType media.Type) ([]library.Item, error) {
	var items []library.Item
	for _, item := range f.items {
		if item.Type == mediaType {
			items = append(items, item)
		}
	}
	return items, nil
}

func (f *fakeLibrary) GetItem(ctx context.Context, mediaType media.Type, id int64) (library.Item, error) {
	return f.items[libKey(mediaType, id)], nil
}

func (f *fakeLibrary) GetItemArt(ctx context.Context, mediaType media.Type, id int64) (map[string]string, error) {
	if f.onFetch != nil {
		f.onFetch()
	}
	return f.items[libKey(mediaType, id)].Art, nil
}

func (f *fakeLibrary) SetItemArt(ctx context.Context, mediaType media.Type, id int64, art map[string]string) error {
	f.setArt = append(f.setArt, art)
	item := f.items[libKey(mediaType, id)]
	if item.Art == nil {
		item.Art = map[string]string{}
	}
	for slot, url := range art {
		item.Art[slot] = url
	}
	f.items[libKey(mediaType, id)] = item
	return nil
}

func (f *fakeLibrary) TextureDimensions(ctx context.Context, artURL string) (media.Dimensions, bool, error) {
	return media.Dimensions{}, false, nil
}

func (f *fakeLibrary) CacheTexture(ctx context.Context, artURL string) error { return nil }

type fakeProvider struct {
	art map[media.ArtType][]providers.Candidate
}

func (f *fakeProvider) Source() providers.Source { return providers.SourceTMDB }

func (f *fakeProvider) FetchArtwork(ctx context.Context, mediaType media.Type, ids providers.ExternalIDs, artTypes []media.ArtType) (map[media.ArtType][]providers.Candidate, error) {
	return f.art, nil
}

type fixture struct {
	cfg   *config.Config
	store *queue.Store
	lib   *fakeLibrary
	proc  *processor.Processor
}

func newFixture(t *testing.T, provider providers.Client) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	lib := newFakeLibrary()

	cache, err := artcache.Open(filepath.Join(t.TempDir(), "artcache.db"))
	if err != nil {
		t.Fatalf("artcache.Open: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	var clients []providers.Client
	if provider != nil {
		clients = []providers.Client{provider}
	}
	fetcher := sources.New(clients, nil, cache, logging.NewNop())

	return &fixture{
		cfg:   cfg,
		store: store,
		lib:   lib,
		proc:  processor.New(cfg, store, lib, fetcher, logging.NewNop()),
	}
}

func queueMovie(t *testing.T, f *fixture, id int64, title string, items ...queue.ArtItemSpec) *queue.Entry {
	t.Helper()
	return testsupport.EnqueueEntry(t, f.store, queue.EnqueueSpec{
		MediaType: media.TypeMovie,
		LibraryID: id,
		Title:     title,
		Year:      2016,
		Scope:     "movie",
		Items:     items,
	})
}

func TestProcessorAppliesTopCandidate(t *testing.T) {
	provider := &fakeProvider{art: map[media.ArtType][]providers.Candidate{
		media.ArtPoster: {{
			URL: "http://img/poster.jpg", Width: 1000, Height: 1500,
			Rating: 8.0, Votes: 1000, HasRating: true,
			Language: "en", Source: providers.SourceTMDB,
		}},
	}}
	f := newFixture(t, provider)
	f.lib.put(library.Item{Type: media.TypeMovie, ID: 2, Title: "Arrival",
		Art: map[string]string{}, UniqueIDs: map[string]string{"tmdb": "329865"}})
	entry := queueMovie(t, f, 2, "Arrival",
		queue.ArtItemSpec{ArtType: media.ArtPoster, ReviewMode: queue.ModeMissing})

	summary, err := f.proc.Run(context.Background(), processor.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Applied != 1 || summary.Entries != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(f.lib.setArt) != 1 || f.lib.setArt[0]["poster"] != "http://img/poster.jpg" {
		t.Fatalf("art not applied: %+v", f.lib.setArt)
	}

	ctx := context.Background()
	reloaded, _ := f.store.GetEntry(ctx, entry.ID)
	if reloaded.Status != queue.StatusCompleted {
		t.Fatalf("entry should complete, got %s", reloaded.Status)
	}
	items, _ := f.store.ArtItemsFor(ctx, []int64{entry.ID})
	slot := items[entry.ID][0]
	if slot.Status != queue.ItemCompleted || slot.SelectedURL != "http://img/poster.jpg" || !slot.AutoApplied {
		t.Fatalf("unexpected slot state: %+v", slot)
	}
}

func TestProcessorNeverOverwritesOccupiedSlot(t *testing.T) {
	provider := &fakeProvider{art: map[media.ArtType][]providers.Candidate{
		media.ArtPoster: {{URL: "http://img/new.jpg", Width: 1000, Height: 1500,
			Language: "en", Source: providers.SourceTMDB}},
	}}
	f := newFixture(t, provider)
	f.lib.put(library.Item{Type: media.TypeMovie, ID: 3, Title: "Dune",
		Art:       map[string]string{"poster": "http://img/existing.jpg"},
		UniqueIDs: map[string]string{"tmdb": "438631"}})
	entry := queueMovie(t, f, 3, "Dune",
		queue.ArtItemSpec{ArtType: media.ArtPoster, ReviewMode: queue.ModeMissing})

	summary, err := f.proc.Run(context.Background(), processor.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.lib.setArt) != 0 {
		t.Fatalf("occupied slot must never be written: %+v", f.lib.setArt)
	}
	if summary.Stale != 1 {
		t.Fatalf("expected one stale item, got %+v", summary)
	}

	items, _ := f.store.ArtItemsFor(context.Background(), []int64{entry.ID})
	if items[entry.ID][0].Status != queue.ItemStale {
		t.Fatalf("slot should be stale, got %s", items[entry.ID][0].Status)
	}
}

func TestProcessorRevalidatesBeforeApply(t *testing.T) {
	provider := &fakeProvider{art: map[media.ArtType][]providers.Candidate{
		media.ArtPoster: {{URL: "http://img/new.jpg", Width: 1000, Height: 1500,
			Language: "en", Source: providers.SourceTMDB}},
	}}
	f := newFixture(t, provider)
	f.lib.put(library.Item{Type: media.TypeMovie, ID: 4, Title: "Sicario",
		Art: map[string]string{}, UniqueIDs: map[string]string{"tmdb": "273481"}})
	queueMovie(t, f, 4, "Sicario",
		queue.ArtItemSpec{ArtType: media.ArtPoster, ReviewMode: queue.ModeMissing})

	// Another writer fills the slot between the first read and the final
	// pre-apply check.
	f.lib.onFetch = func() {
		item := f.lib.items[libKey(media.TypeMovie, 4)]
		item.Art = map[string]string{"poster": "http://img/raced.jpg"}
		f.lib.items[libKey(media.TypeMovie, 4)] = item
	}

	summary, err := f.proc.Run(context.Background(), processor.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.lib.setArt) != 0 {
		t.Fatalf("raced slot must not be written: %+v", f.lib.setArt)
	}
	if summary.Stale != 1 || summary.Applied != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestProcessorLeavesCandidateItemsUntouched(t *testing.T) {
	provider := &fakeProvider{art: map[media.ArtType][]providers.Candidate{
		media.ArtPoster: {{URL: "http://img/better.jpg", Width: 2000, Height: 3000,
			Language: "en", Source: providers.SourceTMDB}},
	}}
	f := newFixture(t, provider)
	f.lib.put(library.Item{Type: media.TypeMovie, ID: 5, Title: "Blade Runner 2049",
		Art:       map[string]string{"poster": "http://img/old.jpg"},
		UniqueIDs: map[string]string{"tmdb": "335984"}})
	entry := queueMovie(t, f, 5, "Blade Runner 2049",
		queue.ArtItemSpec{
			ArtType:        media.ArtPoster,
			ReviewMode:     queue.ModeCandidate,
			RequiresManual: true,
			BaselineURL:    "http://img/old.jpg",
		})

	summary, err := f.proc.Run(context.Background(), processor.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.lib.setArt) != 0 {
		t.Fatalf("candidate-mode work must wait for review: %+v", f.lib.setArt)
	}
	if summary.Applied != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	ctx := context.Background()
	reloaded, _ := f.store.GetEntry(ctx, entry.ID)
	if reloaded.Status != queue.StatusPending {
		t.Fatalf("entry should stay pending, got %s", reloaded.Status)
	}
	items, _ := f.store.ArtItemsFor(ctx, []int64{entry.ID})
	if items[entry.ID][0].Status != queue.ItemPending {
		t.Fatalf("candidate item should stay pending, got %s", items[entry.ID][0].Status)
	}
}

func TestProcessorSkipsWithoutCandidates(t *testing.T) {
	provider := &fakeProvider{art: map[media.ArtType][]providers.Candidate{}}
	f := newFixture(t, provider)
	f.lib.put(library.Item{Type: media.TypeMovie, ID: 6, Title: "Enemy",
		Art: map[string]string{}, UniqueIDs: map[string]string{"tmdb": "181886"}})
	entry := queueMovie(t, f, 6, "Enemy",
		queue.ArtItemSpec{ArtType: media.ArtPoster, ReviewMode: queue.ModeMissing})

	summary, err := f.proc.Run(context.Background(), processor.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.NoOptions != 1 || summary.Applied != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	ctx := context.Background()
	items, _ := f.store.ArtItemsFor(ctx, []int64{entry.ID})
	if items[entry.ID][0].Status != queue.ItemSkipped {
		t.Fatalf("slot should be skipped, got %s", items[entry.ID][0].Status)
	}
	reloaded, _ := f.store.GetEntry(ctx, entry.ID)
	if reloaded.Status != queue.StatusCompleted {
		t.Fatalf("entry should complete, got %s", reloaded.Status)
	}
}

func TestProcessorBlocksTextedArtOnLanguageFreeSlots(t *testing.T) {
	// Fanart must be text-free; a candidate carrying a language tag is the
	// only option here, so the policy leaves nothing to apply.
	provider := &fakeProvider{art: map[media.ArtType][]providers.Candidate{
		media.ArtFanart: {{URL: "http://img/texted.jpg", Width: 1920, Height: 1080,
			Language: "en", Source: providers.SourceTMDB}},
	}}
	f := newFixture(t, provider)
	f.lib.put(library.Item{Type: media.TypeMovie, ID: 7, Title: "Prisoners",
		Art: map[string]string{}, UniqueIDs: map[string]string{"tmdb": "146233"}})
	entry := queueMovie(t, f, 7, "Prisoners",
		queue.ArtItemSpec{ArtType: media.ArtFanart, ReviewMode: queue.ModeMissing})

	summary, err := f.proc.Run(context.Background(), processor.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.PolicyBlocked != 1 || summary.Applied != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(f.lib.setArt) != 0 {
		t.Fatalf("policy-blocked slot must not be written: %+v", f.lib.setArt)
	}
	items, _ := f.store.ArtItemsFor(context.Background(), []int64{entry.ID})
	if items[entry.ID][0].Status != queue.ItemSkipped {
		t.Fatalf("slot should be skipped, got %s", items[entry.ID][0].Status)
	}
}

func TestProcessorRecordsSessionEvents(t *testing.T) {
	provider := &fakeProvider{art: map[media.ArtType][]providers.Candidate{
		media.ArtPoster: {{URL: "http://img/poster.jpg", Width: 1000, Height: 1500,
			Language: "en", Source: providers.SourceTMDB}},
	}}
	f := newFixture(t, provider)
	f.lib.put(library.Item{Type: media.TypeMovie, ID: 8, Title: "Arrival",
		Art: map[string]string{}, UniqueIDs: map[string]string{"tmdb": "329865"}})

	ctx := context.Background()
	session := &queue.Session{
		ScanType:   queue.ScanMissing,
		MediaTypes: []media.Type{media.TypeMovie},
		ArtTypes:   []media.ArtType{media.ArtPoster},
		Scope:      "movie",
	}
	if err := f.store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	testsupport.EnqueueEntry(t, f.store, queue.EnqueueSpec{
		MediaType: media.TypeMovie,
		LibraryID: 8,
		Title:     "Arrival",
		Year:      2016,
		Scope:     "movie",
		SessionID: session.ID,
		Items: []queue.ArtItemSpec{
			{ArtType: media.ArtPoster, ReviewMode: queue.ModeMissing},
		},
	})

	if _, err := f.proc.Run(ctx, processor.Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	reloaded, err := f.store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if reloaded.Stats.AutoApplied != 1 {
		t.Fatalf("expected one auto-applied event, got %+v", reloaded.Stats)
	}
	if len(reloaded.Stats.Events) != 1 || reloaded.Stats.Events[0].Outcome != queue.OutcomeAutoApplied {
		t.Fatalf("unexpected events: %+v", reloaded.Stats.Events)
	}
}
