package library

import (
	"context"
	"net/url"
	"strings"

	"artgrab/internal/media"
)

// Item is one library entry as the pipeline sees it.
type Item struct {
	Type      media.Type
	ID        int64
	Title     string
	Year      int
	Season    int
	Episode   int
	TVShowID  int64
	Art       map[string]string
	UniqueIDs map[string]string
}

// Client is the boundary to the external media library. The library mutates
// underneath the pipeline at any time, so callers must treat every read as a
// snapshot and re-read before acting on it.
type Client interface {
	// ListItems returns every item of the given media type with art,
	// year, and unique-id properties populated.
	ListItems(ctx context.Context, mediaType media.Type) ([]Item, error)
	// GetItem returns one item with art, year, and provider ids populated.
	GetItem(ctx context.Context, mediaType media.Type, id int64) (Item, error)
	// GetItemArt returns the live art map for one item.
	GetItemArt(ctx context.Context, mediaType media.Type, id int64) (map[string]string, error)
	// SetItemArt assigns artwork slots on one item. Setting a slot to the
	// URL it already holds is a no-op on the library side.
	SetItemArt(ctx context.Context, mediaType media.Type, id int64, art map[string]string) error
	// TextureDimensions reports the cached texture's true pixel size for
	// a URL. The second result is false when the texture is not cached.
	TextureDimensions(ctx context.Context, artURL string) (media.Dimensions, bool, error)
	// CacheTexture asks the library to fetch and cache a texture.
	// Fetching an already-cached URL is harmless.
	CacheTexture(ctx context.Context, artURL string) error
}

// DecodeImageURL unwraps the library's image:// VFS encoding, returning the
// original artwork URL. Plain URLs pass through untouched.
func DecodeImageURL(wrapped string) string {
	trimmed := strings.TrimPrefix(wrapped, "image://")
	if trimmed == wrapped {
		return wrapped
	}
	trimmed = strings.TrimSuffix(trimmed, "/")
	decoded, err := url.QueryUnescape(trimmed)
	if err != nil {
		return trimmed
	}
	return decoded
}

// EncodeImageURL wraps an artwork URL for the library's image:// VFS.
func EncodeImageURL(artURL string) string {
	if artURL == "" || strings.HasPrefix(artURL, "image://") {
		return artURL
	}
	return "image://" + url.QueryEscape(artURL) + "/"
}
