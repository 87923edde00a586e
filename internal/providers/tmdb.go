package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"artgrab/internal/fetch"
	"artgrab/internal/media"
	"artgrab/internal/services"
)

const (
	tmdbImageBase   = "https://image.tmdb.org/t/p/original"
	tmdbPreviewBase = "https://image.tmdb.org/t/p/w342"
)

// tmdbImage models one entry of a TMDB images response.
type tmdbImage struct {
	FilePath    string  `json:"file_path"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
	Language    string  `json:"iso_639_1"`
}

// tmdbImagesResponse models the TMDB /images payloads for movies, shows,
// seasons, and episodes.
type tmdbImagesResponse struct {
	Backdrops []tmdbImage `json:"backdrops"`
	Posters   []tmdbImage `json:"posters"`
	Logos     []tmdbImage `json:"logos"`
	Stills    []tmdbImage `json:"stills"`
}

// tmdbFindResponse models the TMDB /find payload used for IMDB resolution.
type tmdbFindResponse struct {
	MovieResults []struct {
		ID int64 `json:"id"`
	} `json:"movie_results"`
	TVResults []struct {
		ID int64 `json:"id"`
	} `json:"tv_results"`
}

// TMDBClient fetches artwork from The Movie Database.
type TMDBClient struct {
	apiKey  string
	baseURL string
	fetcher *fetch.Fetcher
}

// NewTMDB creates a TMDB artwork client.
func NewTMDB(apiKey, baseURL string, fetcher *fetch.Fetcher) (*TMDBClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	if fetcher == nil {
		return nil, errors.New("tmdb fetcher required")
	}
	return &TMDBClient{apiKey: apiKey, baseURL: baseURL, fetcher: fetcher}, nil
}

func (c *TMDBClient) Source() Source {
	return SourceTMDB
}

// ResolveID maps an IMDB identifier to a TMDB one.
func (c *TMDBClient) ResolveID(ctx context.Context, mediaType media.Type, imdbID string) (int64, error) {
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return 0, services.Wrap(services.ErrValidation, "tmdb", "resolve id", "empty imdb id", nil)
	}
	endpoint := fmt.Sprintf("%s/find/%s?%s", c.baseURL, url.PathEscape(imdbID), c.query(url.Values{
		"external_source": []string{"imdb_id"},
	}))
	var payload tmdbFindResponse
	if err := c.fetcher.FetchJSON(ctx, string(SourceTMDB), endpoint, nil, &payload); err != nil {
		return 0, err
	}
	switch mediaType {
	case media.TypeMovie, media.TypeMusicVideo:
		if len(payload.MovieResults) > 0 {
			return payload.MovieResults[0].ID, nil
		}
	default:
		if len(payload.TVResults) > 0 {
			return payload.TVResults[0].ID, nil
		}
	}
	return 0, services.Wrap(services.ErrNotFound, "tmdb", "resolve id", imdbID, nil)
}

// FetchArtwork issues exactly one images request for the item and maps the
// response onto the requested art types.
func (c *TMDBClient) FetchArtwork(ctx context.Context, mediaType media.Type, ids ExternalIDs, artTypes []media.ArtType) (map[media.ArtType][]Candidate, error) {
	if ids.TMDB == 0 {
		return nil, services.Wrap(services.ErrNotFound, "tmdb", "fetch artwork", "no tmdb id", nil)
	}

	endpoint, err := c.imagesEndpoint(mediaType, ids)
	if err != nil {
		return nil, err
	}

	var payload tmdbImagesResponse
	if err := c.fetcher.FetchJSON(ctx, string(SourceTMDB), endpoint, nil, &payload); err != nil {
		return nil, err
	}

	requested := make(map[media.ArtType]struct{}, len(artTypes))
	for _, a := range artTypes {
		requested[a] = struct{}{}
	}

	result := make(map[media.ArtType][]Candidate)
	add := func(artType media.ArtType, images []tmdbImage) {
		if _, ok := requested[artType]; !ok {
			return
		}
		for _, img := range images {
			if img.FilePath == "" {
				continue
			}
			result[artType] = append(result[artType], Candidate{
				URL:        tmdbImageBase + img.FilePath,
				PreviewURL: tmdbPreviewBase + img.FilePath,
				Width:      img.Width,
				Height:     img.Height,
				Rating:     img.VoteAverage,
				Votes:      img.VoteCount,
				HasRating:  img.VoteCount > 0 || img.VoteAverage > 0,
				Language:   strings.ToLower(img.Language),
				Source:     SourceTMDB,
			})
		}
	}

	switch mediaType {
	case media.TypeEpisode:
		add(media.ArtThumb, payload.Stills)
	default:
		add(media.ArtPoster, payload.Posters)
		add(media.ArtFanart, payload.Backdrops)
		add(media.ArtClearLogo, payload.Logos)
	}
	return result, nil
}

func (c *TMDBClient) imagesEndpoint(mediaType media.Type, ids ExternalIDs) (string, error) {
	query := c.query(nil)
	switch mediaType {
	case media.TypeMovie, media.TypeMusicVideo:
		return fmt.Sprintf("%s/movie/%d/images?%s", c.baseURL, ids.TMDB, query), nil
	case media.TypeTVShow:
		return fmt.Sprintf("%s/tv/%d/images?%s", c.baseURL, ids.TMDB, query), nil
	case media.TypeSeason:
		return fmt.Sprintf("%s/tv/%d/season/%d/images?%s", c.baseURL, ids.TMDB, ids.Season, query), nil
	case media.TypeEpisode:
		return fmt.Sprintf("%s/tv/%d/season/%d/episode/%d/images?%s", c.baseURL, ids.TMDB, ids.Season, ids.Episode, query), nil
	default:
		return "", services.Wrap(services.ErrValidation, "tmdb", "fetch artwork",
			fmt.Sprintf("unsupported media type %q", mediaType), nil)
	}
}

func (c *TMDBClient) query(extra url.Values) string {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	for key, values := range extra {
		for _, value := range values {
			params.Add(key, value)
		}
	}
	return params.Encode()
}
