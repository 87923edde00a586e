package testsupport

import (
	"context"
	"testing"

	"artgrab/internal/config"
	"artgrab/internal/media"
	"artgrab/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// EnqueueEntry queues one entry with the given art-type slots and returns it.
func EnqueueEntry(t testing.TB, store *queue.Store, spec queue.EnqueueSpec) *queue.Entry {
	t.Helper()

	ids, err := store.EnqueueBatch(context.Background(), []queue.EnqueueSpec{spec})
	if err != nil {
		t.Fatalf("store.EnqueueBatch: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected one enqueued entry, got %d", len(ids))
	}
	entry, err := store.GetEntry(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("store.GetEntry: %v", err)
	}
	if entry == nil {
		t.Fatalf("enqueued entry %d not found", ids[0])
	}
	return entry
}

// MovieSpec builds an EnqueueSpec for a movie with missing-mode poster and
// fanart slots, the most common shape in tests.
func MovieSpec(libraryID int64, title string) queue.EnqueueSpec {
	return queue.EnqueueSpec{
		MediaType: media.TypeMovie,
		LibraryID: libraryID,
		Title:     title,
		Year:      2020,
		Scope:     "movie",
		Items: []queue.ArtItemSpec{
			{ArtType: media.ArtPoster, ReviewMode: queue.ModeMissing},
			{ArtType: media.ArtFanart, ReviewMode: queue.ModeMissing},
		},
	}
}
