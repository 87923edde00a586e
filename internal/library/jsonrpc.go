package library

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"artgrab/internal/config"
	"artgrab/internal/media"
	"artgrab/internal/services"
)

// HTTPDoer describes the HTTP client used by the JSON-RPC service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// JSONRPCClient talks to a Kodi-compatible JSON-RPC endpoint.
type JSONRPCClient struct {
	endpoint string
	username string
	password string
	client   HTTPDoer
	seq      atomic.Int64
}

// NewJSONRPC constructs a library client from config.
func NewJSONRPC(cfg config.Library, client HTTPDoer) (*JSONRPCClient, error) {
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint == "" {
		return nil, errors.New("library url required")
	}
	if client == nil {
		timeout := time.Duration(cfg.RequestTimeout) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &JSONRPCClient{
		endpoint: endpoint,
		username: strings.TrimSpace(cfg.Username),
		password: cfg.Password,
		client:   client,
	}, nil
}

var _ Client = (*JSONRPCClient)(nil)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int64  `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *JSONRPCClient) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.seq.Add(1),
	})
	if err != nil {
		return services.Wrap(services.ErrValidation, "library", method, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return services.Wrap(services.ErrValidation, "library", method, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrNetwork, "library", method, "execute request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrNetwork, "library", method,
			fmt.Sprintf("endpoint returned %d", resp.StatusCode), nil)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return services.Wrap(services.ErrValidation, "library", method, "decode response", err)
	}
	if envelope.Error != nil {
		return services.Wrap(services.ErrNetwork, "library", method,
			fmt.Sprintf("rpc error %d: %s", envelope.Error.Code, envelope.Error.Message), nil)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return services.Wrap(services.ErrValidation, "library", method, "decode result", err)
	}
	return nil
}

// listSpec maps a media type onto its JSON-RPC list method and payload key.
type listSpec struct {
	method     string
	resultKey  string
	idField    string
	properties []string
}

var listSpecs = map[media.Type]listSpec{
	media.TypeMovie: {
		method:     "VideoLibrary.GetMovies",
		resultKey:  "movies",
		idField:    "movieid",
		properties: []string{"title", "year", "art", "uniqueid"},
	},
	media.TypeTVShow: {
		method:     "VideoLibrary.GetTVShows",
		resultKey:  "tvshows",
		idField:    "tvshowid",
		properties: []string{"title", "year", "art", "uniqueid"},
	},
	media.TypeSeason: {
		method:     "VideoLibrary.GetSeasons",
		resultKey:  "seasons",
		idField:    "seasonid",
		properties: []string{"title", "season", "art", "tvshowid"},
	},
	media.TypeEpisode: {
		method:     "VideoLibrary.GetEpisodes",
		resultKey:  "episodes",
		idField:    "episodeid",
		properties: []string{"title", "season", "episode", "art", "uniqueid", "tvshowid"},
	},
	media.TypeMusicVideo: {
		method:     "VideoLibrary.GetMusicVideos",
		resultKey:  "musicvideos",
		idField:    "musicvideoid",
		properties: []string{"title", "year", "art"},
	},
}

// ListItems returns every item of one media type with the properties the
// scanner needs.
func (c *JSONRPCClient) ListItems(ctx context.Context, mediaType media.Type) ([]Item, error) {
	spec, ok := listSpecs[mediaType]
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "library", "list items",
			fmt.Sprintf("unsupported media type %q", mediaType), nil)
	}

	var result map[string]json.RawMessage
	params := map[string]any{"properties": spec.properties}
	if err := c.call(ctx, spec.method, params, &result); err != nil {
		return nil, err
	}

	raw, ok := result[spec.resultKey]
	if !ok {
		return nil, nil
	}
	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, services.Wrap(services.ErrValidation, "library", "list items", "decode rows", err)
	}

	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		item := Item{Type: mediaType}
		item.ID = intField(row, spec.idField)
		item.Title = stringRow(row, "title")
		if item.Title == "" {
			item.Title = stringRow(row, "label")
		}
		item.Year = int(intField(row, "year"))
		item.Season = int(intField(row, "season"))
		item.Episode = int(intField(row, "episode"))
		item.TVShowID = intField(row, "tvshowid")
		item.Art = decodeArtMap(row["art"])
		item.UniqueIDs = decodeStringMap(row["uniqueid"])
		items = append(items, item)
	}
	return items, nil
}

// detailSpec maps a media type onto its JSON-RPC get/set detail methods.
type detailSpec struct {
	getMethod string
	setMethod string
	idField   string
	resultKey string
}

var detailSpecs = map[media.Type]detailSpec{
	media.TypeMovie:      {getMethod: "VideoLibrary.GetMovieDetails", setMethod: "VideoLibrary.SetMovieDetails", idField: "movieid", resultKey: "moviedetails"},
	media.TypeTVShow:     {getMethod: "VideoLibrary.GetTVShowDetails", setMethod: "VideoLibrary.SetTVShowDetails", idField: "tvshowid", resultKey: "tvshowdetails"},
	media.TypeSeason:     {getMethod: "VideoLibrary.GetSeasonDetails", setMethod: "VideoLibrary.SetSeasonDetails", idField: "seasonid", resultKey: "seasondetails"},
	media.TypeEpisode:    {getMethod: "VideoLibrary.GetEpisodeDetails", setMethod: "VideoLibrary.SetEpisodeDetails", idField: "episodeid", resultKey: "episodedetails"},
	media.TypeMusicVideo: {getMethod: "VideoLibrary.GetMusicVideoDetails", setMethod: "VideoLibrary.SetMusicVideoDetails", idField: "musicvideoid", resultKey: "musicvideodetails"},
}

// GetItem returns one item's details, including provider ids.
func (c *JSONRPCClient) GetItem(ctx context.Context, mediaType media.Type, id int64) (Item, error) {
	spec, ok := detailSpecs[mediaType]
	if !ok {
		return Item{}, services.Wrap(services.ErrValidation, "library", "get item",
			fmt.Sprintf("unsupported media type %q", mediaType), nil)
	}
	properties := []string{"title", "art", "uniqueid"}
	switch mediaType {
	case media.TypeSeason:
		properties = []string{"title", "season", "art", "tvshowid"}
	case media.TypeEpisode:
		properties = append(properties, "season", "episode", "tvshowid")
	default:
		properties = append(properties, "year")
	}

	var result map[string]json.RawMessage
	params := map[string]any{spec.idField: id, "properties": properties}
	if err := c.call(ctx, spec.getMethod, params, &result); err != nil {
		return Item{}, err
	}
	var row map[string]json.RawMessage
	if raw, ok := result[spec.resultKey]; ok {
		if err := json.Unmarshal(raw, &row); err != nil {
			return Item{}, services.Wrap(services.ErrValidation, "library", "get item", "decode details", err)
		}
	}

	item := Item{Type: mediaType, ID: id}
	item.Title = stringRow(row, "title")
	if item.Title == "" {
		item.Title = stringRow(row, "label")
	}
	item.Year = int(intField(row, "year"))
	item.Season = int(intField(row, "season"))
	item.Episode = int(intField(row, "episode"))
	item.TVShowID = intField(row, "tvshowid")
	item.Art = decodeArtMap(row["art"])
	item.UniqueIDs = decodeStringMap(row["uniqueid"])
	return item, nil
}

// GetItemArt returns the live art map for one item.
func (c *JSONRPCClient) GetItemArt(ctx context.Context, mediaType media.Type, id int64) (map[string]string, error) {
	spec, ok := detailSpecs[mediaType]
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "library", "get item art",
			fmt.Sprintf("unsupported media type %q", mediaType), nil)
	}
	var result map[string]json.RawMessage
	params := map[string]any{spec.idField: id, "properties": []string{"art"}}
	if err := c.call(ctx, spec.getMethod, params, &result); err != nil {
		return nil, err
	}
	var details map[string]json.RawMessage
	if raw, ok := result[spec.resultKey]; ok {
		if err := json.Unmarshal(raw, &details); err != nil {
			return nil, services.Wrap(services.ErrValidation, "library", "get item art", "decode details", err)
		}
	}
	return decodeArtMap(details["art"]), nil
}

// SetItemArt assigns artwork slots on one item.
func (c *JSONRPCClient) SetItemArt(ctx context.Context, mediaType media.Type, id int64, art map[string]string) error {
	spec, ok := detailSpecs[mediaType]
	if !ok {
		return services.Wrap(services.ErrValidation, "library", "set item art",
			fmt.Sprintf("unsupported media type %q", mediaType), nil)
	}
	if len(art) == 0 {
		return nil
	}
	params := map[string]any{spec.idField: id, "art": art}
	return c.call(ctx, spec.setMethod, params, nil)
}

// TextureDimensions looks up the cached texture's true size via the Textures
// namespace. Absent textures report ok=false, not an error.
func (c *JSONRPCClient) TextureDimensions(ctx context.Context, artURL string) (media.Dimensions, bool, error) {
	params := map[string]any{
		"properties": []string{"url", "sizes"},
		"filter": map[string]any{
			"field":    "url",
			"operator": "is",
			"value":    artURL,
		},
	}
	var result struct {
		Textures []struct {
			Sizes []struct {
				Width  int `json:"width"`
				Height int `json:"height"`
			} `json:"sizes"`
		} `json:"textures"`
	}
	if err := c.call(ctx, "Textures.GetTextures", params, &result); err != nil {
		return media.Dimensions{}, false, err
	}
	best := media.Dimensions{}
	for _, texture := range result.Textures {
		for _, size := range texture.Sizes {
			if size.Width*size.Height > best.PixelCount() {
				best = media.Dimensions{Width: size.Width, Height: size.Height}
			}
		}
	}
	if best.PixelCount() == 0 {
		return media.Dimensions{}, false, nil
	}
	return best, true, nil
}

// CacheTexture makes the library fetch a texture by downloading it through
// the image VFS. Re-fetching a cached URL is a cheap no-op server-side.
func (c *JSONRPCClient) CacheTexture(ctx context.Context, artURL string) error {
	params := map[string]any{
		"path": EncodeImageURL(artURL),
	}
	var result struct {
		Details struct {
			Path string `json:"path"`
		} `json:"details"`
	}
	if err := c.call(ctx, "Files.PrepareDownload", params, &result); err != nil {
		return err
	}
	if result.Details.Path == "" {
		return nil
	}

	base := strings.TrimSuffix(c.endpoint, "/jsonrpc")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/"+strings.TrimPrefix(result.Details.Path, "/"), nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "library", "cache texture", "build request", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrNetwork, "library", "cache texture", artURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrNetwork, "library", "cache texture",
			fmt.Sprintf("download returned %d", resp.StatusCode), nil)
	}
	// Drain so the server finishes writing its cache entry.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func intField(row map[string]json.RawMessage, key string) int64 {
	raw, ok := row[key]
	if !ok {
		return 0
	}
	var value int64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0
	}
	return value
}

func stringRow(row map[string]json.RawMessage, key string) string {
	raw, ok := row[key]
	if !ok {
		return ""
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	return value
}

func decodeStringMap(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return map[string]string{}
	}
	var value map[string]string
	if err := json.Unmarshal(raw, &value); err != nil {
		return map[string]string{}
	}
	return value
}

// decodeArtMap unwraps image:// VFS encoding on every slot value.
func decodeArtMap(raw json.RawMessage) map[string]string {
	decoded := decodeStringMap(raw)
	art := make(map[string]string, len(decoded))
	for slot, value := range decoded {
		art[slot] = DecodeImageURL(value)
	}
	return art
}
