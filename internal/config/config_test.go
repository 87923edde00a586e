package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"artgrab/internal/config"
	"artgrab/internal/media"
	"artgrab/internal/services"
)

func TestLoadDefaultConfigUsesEnvTMDBKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "test-key")
	t.Setenv("FANARTTV_API_KEY", "")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "artgrab")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.TMDB.APIKey != "test-key" {
		t.Fatalf("expected TMDB key from env, got %q", cfg.TMDB.APIKey)
	}
	if cfg.TMDB.BaseURL != config.Default().TMDB.BaseURL {
		t.Fatalf("unexpected TMDB base url: %q", cfg.TMDB.BaseURL)
	}
	if cfg.Fetch.WindowRequests != 39 || cfg.Fetch.WindowSeconds != 10 {
		t.Fatalf("unexpected fetch window: %d/%ds", cfg.Fetch.WindowRequests, cfg.Fetch.WindowSeconds)
	}
	if cfg.Artwork.SortMode != "popularity" {
		t.Fatalf("unexpected sort mode: %q", cfg.Artwork.SortMode)
	}
	if cfg.QueueDatabasePath() != filepath.Join(wantData, "queue.db") {
		t.Fatalf("unexpected queue db path: %q", cfg.QueueDatabasePath())
	}
	if cfg.LockPath() != filepath.Join(wantData, "artgrab.lock") {
		t.Fatalf("unexpected lock path: %q", cfg.LockPath())
	}
}

func TestLoadParsesFileAndNormalizes(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "")
	t.Setenv("FANARTTV_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[tmdb]
api_key = "file-key"

[library]
url = "http://media.local:8080/jsonrpc/"

[artwork]
types = [" Poster ", "FANART"]
preferred_language = " DE "

[scanner]
media_types = ["Movie"]

[review]
batch_size = -3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected resolved existing path, got %q %v", resolved, exists)
	}
	if cfg.Library.URL != "http://media.local:8080/jsonrpc" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Library.URL)
	}
	if got := cfg.Artwork.Types; len(got) != 2 || got[0] != "poster" || got[1] != "fanart" {
		t.Fatalf("unexpected art types: %v", got)
	}
	if cfg.Artwork.PreferredLanguage != "de" {
		t.Fatalf("unexpected preferred language: %q", cfg.Artwork.PreferredLanguage)
	}
	if cfg.Review.BatchSize != config.Default().Review.BatchSize {
		t.Fatalf("expected default batch size, got %d", cfg.Review.BatchSize)
	}
}

func TestLoadRequiresProviderKey(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "")
	t.Setenv("FANARTTV_API_KEY", "")
	t.Setenv("HOME", t.TempDir())

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected error without provider keys")
	}
	if !strings.Contains(err.Error(), "provider key") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsUnknownValues(t *testing.T) {
	cases := []struct {
		name    string
		section string
		want    string
	}{
		{"art type", "[artwork]\ntypes = [\"posterx\"]", "unknown art type"},
		{"sort mode", "[artwork]\nsort_mode = \"newest\"", "sort_mode"},
		{"source preference", "[artwork]\nsource_preference = \"imgur\"", "source_preference"},
		{"media type", "[scanner]\nmedia_types = [\"album\"]", "media type"},
		{"log format", "[logging]\nformat = \"xml\"", "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TMDB_API_KEY", "test-key")
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.section+"\n"), 0o644); err != nil {
				t.Fatal(err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("unexpected error: %v", err)
			}
			if !errors.Is(err, services.ErrConfiguration) {
				t.Fatalf("expected configuration marker, got: %v", err)
			}
		})
	}
}

func TestSampleConfigLoads(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "test-key")
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample returned error: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected refusal to overwrite existing file")
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	// The sample mirrors Default except for expanded paths and the
	// env-provided key.
	want := config.Default()
	if cfg.Fetch != want.Fetch {
		t.Fatalf("sample fetch section diverged: %+v", cfg.Fetch)
	}
	if cfg.Review != want.Review || cfg.Queue != want.Queue {
		t.Fatalf("sample review/queue sections diverged: %+v %+v", cfg.Review, cfg.Queue)
	}
	if cfg.Logging != want.Logging {
		t.Fatalf("sample logging section diverged: %+v", cfg.Logging)
	}
}

func TestArtTypesFollowReviewOrder(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "test-key")
	t.Setenv("HOME", t.TempDir())

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	types := cfg.ArtTypes()
	if len(types) != 3 || types[0] != media.ArtPoster {
		t.Fatalf("unexpected art types: %v", types)
	}
	mediaTypes := cfg.MediaTypes()
	if len(mediaTypes) != 3 || mediaTypes[0] != media.TypeMovie {
		t.Fatalf("unexpected media types: %v", mediaTypes)
	}
}
