package providers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"artgrab/internal/fetch"
	"artgrab/internal/media"
	"artgrab/internal/services"
)

// fanartImage models one entry of a Fanart.tv art list.
type fanartImage struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Lang   string `json:"lang"`
	Likes  string `json:"likes"`
	Season string `json:"season"`
}

// fanartResponse is the per-item payload; art lists are keyed by Fanart.tv's
// own slot names, which differ between movies and shows.
type fanartResponse map[string]any

// FanartClient fetches artwork from Fanart.tv.
type FanartClient struct {
	apiKey    string
	clientKey string
	baseURL   string
	fetcher   *fetch.Fetcher
}

// NewFanart creates a Fanart.tv artwork client. The client key is optional
// and grants personal rate limits when present.
func NewFanart(apiKey, clientKey, baseURL string, fetcher *fetch.Fetcher) (*FanartClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("fanart.tv api key required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("fanart.tv base url required")
	}
	if fetcher == nil {
		return nil, errors.New("fanart.tv fetcher required")
	}
	return &FanartClient{
		apiKey:    apiKey,
		clientKey: strings.TrimSpace(clientKey),
		baseURL:   baseURL,
		fetcher:   fetcher,
	}, nil
}

func (c *FanartClient) Source() Source {
	return SourceFanart
}

// movieSlots and showSlots map Fanart.tv art list names onto library art
// types. Preview URLs swap /fanart/ for /preview/ per the API contract.
var movieSlots = map[string]media.ArtType{
	"movieposter":     media.ArtPoster,
	"moviebackground": media.ArtFanart,
	"hdmovielogo":     media.ArtClearLogo,
	"moviebanner":     media.ArtBanner,
	"moviethumb":      media.ArtLandscape,
	"hdmovieclearart": media.ArtClearArt,
	"moviedisc":       media.ArtDiscArt,
}

var showSlots = map[string]media.ArtType{
	"tvposter":       media.ArtPoster,
	"showbackground": media.ArtFanart,
	"hdtvlogo":       media.ArtClearLogo,
	"tvbanner":       media.ArtBanner,
	"tvthumb":        media.ArtLandscape,
	"hdclearart":     media.ArtClearArt,
	"characterart":   media.ArtCharacterArt,
}

var seasonSlots = map[string]media.ArtType{
	"seasonposter": media.ArtPoster,
	"seasonbanner": media.ArtBanner,
	"seasonthumb":  media.ArtLandscape,
}

// FetchArtwork issues one request for the item and maps every served art
// list onto the requested art types. Fanart.tv has no episode art.
func (c *FanartClient) FetchArtwork(ctx context.Context, mediaType media.Type, ids ExternalIDs, artTypes []media.ArtType) (map[media.ArtType][]Candidate, error) {
	endpoint, slots, err := c.endpointFor(mediaType, ids)
	if err != nil {
		return nil, err
	}
	if endpoint == "" {
		return map[media.ArtType][]Candidate{}, nil
	}

	headers := map[string]string{"api-key": c.apiKey}
	if c.clientKey != "" {
		headers["client-key"] = c.clientKey
	}

	var payload fanartResponse
	if err := c.fetcher.FetchJSON(ctx, string(SourceFanart), endpoint, headers, &payload); err != nil {
		return nil, err
	}

	requested := make(map[media.ArtType]struct{}, len(artTypes))
	for _, a := range artTypes {
		requested[a] = struct{}{}
	}

	result := make(map[media.ArtType][]Candidate)
	for slot, artType := range slots {
		if _, ok := requested[artType]; !ok {
			continue
		}
		for _, img := range decodeArtList(payload[slot]) {
			if img.URL == "" {
				continue
			}
			if mediaType == media.TypeSeason && !seasonMatches(img.Season, ids.Season) {
				continue
			}
			likes, _ := strconv.Atoi(img.Likes)
			result[artType] = append(result[artType], Candidate{
				URL:        img.URL,
				PreviewURL: strings.Replace(img.URL, "/fanart/", "/preview/", 1),
				Likes:      likes,
				HasLikes:   true,
				Language:   normalizeFanartLang(img.Lang),
				Source:     SourceFanart,
			})
		}
	}
	return result, nil
}

func (c *FanartClient) endpointFor(mediaType media.Type, ids ExternalIDs) (string, map[string]media.ArtType, error) {
	switch mediaType {
	case media.TypeMovie, media.TypeMusicVideo:
		id := ""
		if ids.TMDB != 0 {
			id = strconv.FormatInt(ids.TMDB, 10)
		} else if ids.IMDB != "" {
			id = ids.IMDB
		}
		if id == "" {
			return "", nil, services.Wrap(services.ErrNotFound, "fanarttv", "fetch artwork", "no usable id", nil)
		}
		return fmt.Sprintf("%s/movies/%s", c.baseURL, id), movieSlots, nil
	case media.TypeTVShow:
		if ids.TVDB == 0 {
			return "", nil, services.Wrap(services.ErrNotFound, "fanarttv", "fetch artwork", "no tvdb id", nil)
		}
		return fmt.Sprintf("%s/tv/%d", c.baseURL, ids.TVDB), showSlots, nil
	case media.TypeSeason:
		if ids.TVDB == 0 {
			return "", nil, services.Wrap(services.ErrNotFound, "fanarttv", "fetch artwork", "no tvdb id", nil)
		}
		return fmt.Sprintf("%s/tv/%d", c.baseURL, ids.TVDB), seasonSlots, nil
	case media.TypeEpisode:
		return "", nil, nil
	default:
		return "", nil, services.Wrap(services.ErrValidation, "fanarttv", "fetch artwork",
			fmt.Sprintf("unsupported media type %q", mediaType), nil)
	}
}

// decodeArtList coerces the loosely typed art lists Fanart.tv returns.
func decodeArtList(raw any) []fanartImage {
	entries, ok := raw.([]any)
	if !ok {
		return nil
	}
	images := make([]fanartImage, 0, len(entries))
	for _, entry := range entries {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		images = append(images, fanartImage{
			ID:     stringField(fields, "id"),
			URL:    stringField(fields, "url"),
			Lang:   stringField(fields, "lang"),
			Likes:  stringField(fields, "likes"),
			Season: stringField(fields, "season"),
		})
	}
	return images
}

func stringField(fields map[string]any, key string) string {
	if value, ok := fields[key].(string); ok {
		return value
	}
	return ""
}

func seasonMatches(value string, season int) bool {
	if value == "" || value == "all" {
		return true
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return false
	}
	return parsed == season
}

// normalizeFanartLang maps Fanart.tv's "00" (textless) marker to an empty
// language so the ranker treats it as language-free.
func normalizeFanartLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "00" || lang == "none" {
		return ""
	}
	return lang
}
