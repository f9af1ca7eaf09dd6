package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/animestream/internal/platform/analytics"
	"github.com/example/animestream/internal/platform/api"
	"github.com/example/animestream/internal/platform/auth"
	"github.com/example/animestream/internal/platform/httpserver"
	"github.com/example/animestream/services/catalog/internal/anime"
	"github.com/example/animestream/services/catalog/internal/pages"
)

const (
	defaultFeaturedCount = 10
	defaultSearchCount   = 20
)

type listResponse struct {
	Anime []anime.Anime `json:"anime"`
}

type playbackResponse struct {
	AnimeID    string             `json:"animeId"`
	AnimeTitle string             `json:"animeTitle"`
	Episode    anime.Episode      `json:"episode"`
	Source     *anime.VideoSource `json:"source"`
	Servers    []string           `json:"servers"`
}

// ListAnime handles GET /v1/anime
func ListAnime(catalog *anime.Service, rd Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		count, ok := intParam(w, r, rid, "count", -1, -1)
		if !ok {
			return
		}
		f, ok := parseFilters(w, r, rid)
		if !ok {
			return
		}
		rd.Serve(w, r, pageKey(pages.Browse, "list", r.URL.Query()), func(ctx context.Context) (any, error) {
			items, err := catalog.GetAllAnimes(ctx, count, f)
			if err != nil {
				return nil, err
			}
			return listResponse{Anime: items}, nil
		})
	}
}

// ListFeatured handles GET /v1/anime/featured
func ListFeatured(catalog *anime.Service, rd Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		count, ok := intParam(w, r, rid, "count", defaultFeaturedCount, -1)
		if !ok {
			return
		}
		rd.Serve(w, r, pageKey(pages.Home, "featured", r.URL.Query()), func(ctx context.Context) (any, error) {
			items, err := catalog.GetFeaturedAnimes(ctx, count)
			if err != nil {
				return nil, err
			}
			return listResponse{Anime: items}, nil
		})
	}
}

// Search handles GET /v1/search?q=
func Search(catalog *anime.Service, rd Renderer, events *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		count, ok := intParam(w, r, rid, "count", defaultSearchCount, -1)
		if !ok {
			return
		}
		term := strings.TrimSpace(r.URL.Query().Get("q"))
		if term != "" {
			uid, _ := auth.UserIDFromContext(r.Context())
			events.Publish(analytics.SearchPerformed, uid, map[string]any{"query": term})
		}
		rd.Serve(w, r, pageKey(pages.Browse, "search", r.URL.Query()), func(ctx context.Context) (any, error) {
			items, err := catalog.SearchAnimes(ctx, term, count)
			if err != nil {
				return nil, err
			}
			return listResponse{Anime: items}, nil
		})
	}
}

// GetAnime handles GET /v1/anime/{anime_id}
func GetAnime(catalog *anime.Service, rd Renderer, events *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		animeID, ok := pathParam(w, r, rid, "anime_id")
		if !ok {
			return
		}
		uid, _ := auth.UserIDFromContext(r.Context())
		events.Publish(analytics.AnimeViewed, uid, map[string]any{"anime_id": animeID})

		rd.Serve(w, r, pageKey(pages.Anime(animeID), "", r.URL.Query()), func(ctx context.Context) (any, error) {
			return catalog.GetAnime(ctx, animeID)
		})
	}
}

// GetSimilar handles GET /v1/anime/{anime_id}/similar
func GetSimilar(catalog *anime.Service, rd Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		animeID, ok := pathParam(w, r, rid, "anime_id")
		if !ok {
			return
		}
		limit, ok := intParam(w, r, rid, "count", anime.DefaultSimilarLimit, 1)
		if !ok {
			return
		}
		rd.Serve(w, r, pageKey(pages.Anime(animeID), "similar", r.URL.Query()), func(ctx context.Context) (any, error) {
			a, err := catalog.GetStored(ctx, animeID)
			if err != nil {
				return nil, err
			}
			items, err := catalog.GetSimilarAnimes(ctx, a.ID, a.Genres, limit)
			if err != nil {
				return nil, err
			}
			return listResponse{Anime: items}, nil
		})
	}
}

// GetEpisode handles GET /v1/anime/{anime_id}/episodes/{episode_id}
// (?category=SUB|DUB&server=label).
func GetEpisode(catalog *anime.Service, rd Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		animeID, ok := pathParam(w, r, rid, "anime_id")
		if !ok {
			return
		}
		episodeID, ok := pathParam(w, r, rid, "episode_id")
		if !ok {
			return
		}
		category := anime.Category(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("category"))))
		if category != "" && category != anime.CategorySub && category != anime.CategoryDub {
			api.BadRequest(w, "INVALID_ARGUMENT", "invalid category", rid, map[string]any{"category": "must be SUB or DUB"})
			return
		}
		server := strings.TrimSpace(r.URL.Query().Get("server"))

		q := r.URL.Query()
		q.Set("episode", episodeID)
		rd.Serve(w, r, pageKey(pages.Anime(animeID), "episode", q), func(ctx context.Context) (any, error) {
			a, ep, err := catalog.GetEpisode(ctx, animeID, episodeID)
			if err != nil {
				return nil, err
			}
			resp := playbackResponse{
				AnimeID:    a.ID,
				AnimeTitle: a.Title,
				Episode:    ep,
				Servers:    anime.Servers(ep.Sources, category),
			}
			if src, ok := anime.PickSource(ep.Sources, category, server); ok {
				resp.Source = &src
			}
			return resp, nil
		})
	}
}

func parseFilters(w http.ResponseWriter, r *http.Request, rid string) (anime.Filters, bool) {
	q := r.URL.Query()
	f := anime.Filters{
		Genre:       strings.TrimSpace(q.Get("genre")),
		Type:        strings.TrimSpace(q.Get("type")),
		Status:      strings.TrimSpace(q.Get("status")),
		SortBy:      strings.TrimSpace(q.Get("sort_by")),
		SortOrder:   strings.TrimSpace(q.Get("sort_order")),
		SearchQuery: q.Get("q"),
	}
	if raw := strings.TrimSpace(q.Get("year")); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			api.BadRequest(w, "INVALID_ARGUMENT", "invalid year", rid, map[string]any{"year": "must be an integer"})
			return anime.Filters{}, false
		}
		f.Year = &y
	}
	if raw := strings.TrimSpace(q.Get("featured")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			api.BadRequest(w, "INVALID_ARGUMENT", "invalid featured", rid, map[string]any{"featured": "must be true or false"})
			return anime.Filters{}, false
		}
		f.Featured = &b
	}
	return f, true
}
