package jikan

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/animestream/services/catalog/internal/anime"
)

const bebop = `{"data":{"mal_id":1,"title":"Cowboy Bebop","title_english":"Cowboy Bebop (EN)",
"synopsis":"Space bounty hunters.","score":8.75,"year":1998,
"aired":{"from":"1998-04-03T00:00:00+00:00","to":"1999-04-24T00:00:00+00:00"},
"genres":[{"name":"Action"},{"name":" "},{"name":"Sci-Fi"}],
"images":{"jpg":{"image_url":"https://cdn.example.com/s.jpg","large_image_url":"https://cdn.example.com/l.jpg"}}}}`

const bebopCast = `{"data":[{"character":{"mal_id":1,"name":"Spiegel, Spike","images":{"jpg":{"image_url":"https://cdn.example.com/spike.jpg"}}},
"role":"Main","voice_actors":[{"language":"English","person":{"name":"Blum, Steve"}},{"language":"Japanese","person":{"name":"Yamadera, Kouichi"}}]}]}`

func newTestClient(url string) *Client {
	return New(Options{BaseURL: url, RPS: 1000, RetryDelay: time.Millisecond})
}

func TestGetAnimeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/anime/1/full", r.URL.Path)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(bebop))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	defer c.Close()

	resp, err := c.GetAnime(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "Cowboy Bebop (EN)", BestTitle(resp.Data))
}

func TestGetAnimeDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"status":404}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	defer c.Close()

	_, err := c.GetAnime(context.Background(), 999)
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, int32(1), calls.Load())

	_, err = c.GetAnime(context.Background(), 0)
	assert.Error(t, err)
}

func TestEnricherOverlaysExternalData(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/anime/1/full", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(bebop)) })
	mux.HandleFunc("/anime/1/characters", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(bebopCast)) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(srv.URL)
	defer c.Close()
	e := NewEnricher(c, zap.NewNop())

	mal := 1
	stored := "stored"
	got, err := e.Enrich(context.Background(), anime.Anime{ID: "cowboy-bebop", Title: "Cowboy Bebop", MalID: &mal, BannerImage: &stored})
	require.NoError(t, err)

	assert.Equal(t, "Cowboy Bebop (EN)", got.Title)
	assert.Equal(t, "https://cdn.example.com/l.jpg", *got.CoverImage)
	assert.Equal(t, "stored", *got.BannerImage)
	assert.Equal(t, []string{"Action", "Sci-Fi"}, got.Genres)
	assert.Equal(t, 8.75, *got.Rating)
	assert.Equal(t, 1998, *got.Year)
	require.NotNil(t, got.Aired)
	assert.Equal(t, "1998-04-03T00:00:00+00:00", got.Aired.From)
	require.Len(t, got.Cast, 1)
	assert.Equal(t, "Yamadera, Kouichi", got.Cast[0].VoiceActor)
}

func TestEnricherToleratesMissingCharacters(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/anime/1/full", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(bebop)) })
	mux.HandleFunc("/anime/1/characters", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(srv.URL)
	defer c.Close()

	mal := 1
	got, err := NewEnricher(c, zap.NewNop()).Enrich(context.Background(), anime.Anime{MalID: &mal})
	require.NoError(t, err)
	assert.Empty(t, got.Cast)
	assert.Equal(t, "Space bounty hunters.", *got.Synopsis)
}

func TestEnricherSkipsWithoutExternalID(t *testing.T) {
	e := NewEnricher(nil, zap.NewNop())
	in := anime.Anime{ID: "x", Title: "Local Only"}
	got, err := e.Enrich(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}
