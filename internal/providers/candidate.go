package providers

import (
	"context"

	"artgrab/internal/media"
)

// Source identifies an artwork provider.
type Source string

const (
	SourceTMDB   Source = "tmdb"
	SourceFanart Source = "fanarttv"
)

// Candidate is the normalized artwork record every provider client emits.
// Optional signals stay zero when a provider does not supply them; HasRating
// distinguishes "rated 0" from "unrated".
type Candidate struct {
	URL        string
	PreviewURL string
	Width      int
	Height     int
	Rating     float64
	Votes      int
	HasRating  bool
	Likes      int
	HasLikes   bool
	Language   string
	Source     Source
}

// PixelCount returns the candidate's pixel area.
func (c Candidate) PixelCount() int {
	return c.Width * c.Height
}

// ExternalIDs carries the provider identifiers a library item resolves to.
type ExternalIDs struct {
	TMDB int64
	TVDB int64
	IMDB string
	// Season and Episode scope season/episode artwork requests.
	Season  int
	Episode int
	// Year is the release year, used for cache TTL tiering.
	Year int
}

// Client fetches all artwork types for one media item in a single provider
// round-trip.
type Client interface {
	Source() Source
	// FetchArtwork returns every configured art type the provider serves
	// for the item. Art types the provider has nothing for are simply
	// absent from the result; services.ErrNotFound means the item itself
	// is unknown to the provider.
	FetchArtwork(ctx context.Context, mediaType media.Type, ids ExternalIDs, artTypes []media.ArtType) (map[media.ArtType][]Candidate, error)
}
