package library_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"artgrab/internal/config"
	"artgrab/internal/library"
	"artgrab/internal/media"
	"artgrab/internal/services"
)

type rpcCall struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// newRPCServer records every call and answers each method with the canned
// result payload.
func newRPCServer(t *testing.T, results map[string]string) (*httptest.Server, *[]rpcCall) {
	t.Helper()
	var calls []rpcCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call rpcCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			t.Errorf("decode request: %v", err)
		}
		calls = append(calls, call)
		result, ok := results[call.Method]
		if !ok {
			result = "{}"
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newClient(t *testing.T, url string) *library.JSONRPCClient {
	t.Helper()
	client, err := library.NewJSONRPC(config.Library{URL: url, RequestTimeout: 5}, nil)
	if err != nil {
		t.Fatalf("NewJSONRPC returned error: %v", err)
	}
	return client
}

func TestListItemsDecodesMovies(t *testing.T) {
	srv, calls := newRPCServer(t, map[string]string{
		"VideoLibrary.GetMovies": `{"movies":[
			{"movieid":11,"title":"Arrival","year":2016,
			 "art":{"poster":"image://https%3a%2f%2fimg.example%2fposter.jpg/"},
			 "uniqueid":{"tmdb":"329865","imdb":"tt2543164"}},
			{"movieid":12,"label":"Dune","year":2021,"art":{},"uniqueid":{}}
		]}`,
	})

	items, err := newClient(t, srv.URL).ListItems(context.Background(), media.TypeMovie)
	if err != nil {
		t.Fatalf("ListItems returned error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != 11 || items[0].Title != "Arrival" || items[0].Year != 2016 {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[0].Art["poster"] != "https://img.example/poster.jpg" {
		t.Fatalf("expected image:// wrapper decoded, got %q", items[0].Art["poster"])
	}
	if items[0].UniqueIDs["tmdb"] != "329865" {
		t.Fatalf("unexpected unique ids: %v", items[0].UniqueIDs)
	}
	if items[1].Title != "Dune" {
		t.Fatalf("expected label fallback, got %q", items[1].Title)
	}
	if (*calls)[0].Method != "VideoLibrary.GetMovies" {
		t.Fatalf("unexpected method: %q", (*calls)[0].Method)
	}
}

func TestGetItemResolvesEpisodeShowID(t *testing.T) {
	srv, _ := newRPCServer(t, map[string]string{
		"VideoLibrary.GetEpisodeDetails": `{"episodedetails":
			{"episodeid":77,"title":"Pilot","season":1,"episode":1,"tvshowid":5,
			 "art":{"thumb":"https://img.example/thumb.jpg"},"uniqueid":{"tvdb":"123"}}}`,
	})

	item, err := newClient(t, srv.URL).GetItem(context.Background(), media.TypeEpisode, 77)
	if err != nil {
		t.Fatalf("GetItem returned error: %v", err)
	}
	if item.TVShowID != 5 || item.Season != 1 || item.Episode != 1 {
		t.Fatalf("unexpected episode fields: %+v", item)
	}
	if item.Art["thumb"] != "https://img.example/thumb.jpg" {
		t.Fatalf("unexpected art: %v", item.Art)
	}
}

func TestGetItemRejectsUnknownMediaType(t *testing.T) {
	srv, _ := newRPCServer(t, nil)
	_, err := newClient(t, srv.URL).GetItem(context.Background(), media.Type("album"), 1)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetItemArtSendsSlotMap(t *testing.T) {
	srv, calls := newRPCServer(t, nil)
	client := newClient(t, srv.URL)

	err := client.SetItemArt(context.Background(), media.TypeMovie, 11, map[string]string{
		"poster": "https://img.example/new.jpg",
	})
	if err != nil {
		t.Fatalf("SetItemArt returned error: %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(*calls))
	}
	var params struct {
		MovieID int64             `json:"movieid"`
		Art     map[string]string `json:"art"`
	}
	if err := json.Unmarshal((*calls)[0].Params, &params); err != nil {
		t.Fatal(err)
	}
	if params.MovieID != 11 || params.Art["poster"] != "https://img.example/new.jpg" {
		t.Fatalf("unexpected params: %+v", params)
	}

	// Empty art maps never reach the endpoint.
	if err := client.SetItemArt(context.Background(), media.TypeMovie, 11, nil); err != nil {
		t.Fatalf("empty SetItemArt returned error: %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("expected no additional call, got %d", len(*calls))
	}
}

func TestCallSurfacesRPCErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).GetItemArt(context.Background(), media.TypeMovie, 1)
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestTextureDimensionsPicksLargestSize(t *testing.T) {
	srv, _ := newRPCServer(t, map[string]string{
		"Textures.GetTextures": `{"textures":[
			{"sizes":[{"width":500,"height":750},{"width":1000,"height":1500}]}
		]}`,
	})
	client := newClient(t, srv.URL)

	dims, ok, err := client.TextureDimensions(context.Background(), "https://img.example/poster.jpg")
	if err != nil {
		t.Fatalf("TextureDimensions returned error: %v", err)
	}
	if !ok || dims.Width != 1000 || dims.Height != 1500 {
		t.Fatalf("unexpected dimensions: %+v %v", dims, ok)
	}
}

func TestTextureDimensionsMissingTexture(t *testing.T) {
	srv, _ := newRPCServer(t, map[string]string{
		"Textures.GetTextures": `{"textures":[]}`,
	})
	_, ok, err := newClient(t, srv.URL).TextureDimensions(context.Background(), "https://img.example/poster.jpg")
	if err != nil {
		t.Fatalf("TextureDimensions returned error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for uncached texture")
	}
}

func TestImageURLRoundTrip(t *testing.T) {
	const raw = "https://img.example/poster.jpg"
	wrapped := library.EncodeImageURL(raw)
	if wrapped == raw {
		t.Fatalf("expected wrapping, got %q", wrapped)
	}
	if library.EncodeImageURL(wrapped) != wrapped {
		t.Fatal("expected double-encode to be a no-op")
	}
	if got := library.DecodeImageURL(wrapped); got != raw {
		t.Fatalf("round trip mismatch: %q", got)
	}
	if got := library.DecodeImageURL(raw); got != raw {
		t.Fatalf("plain URL should pass through, got %q", got)
	}
}
