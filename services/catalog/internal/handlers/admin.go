package handlers

import (
	"context"
	"net/http"

	"github.com/sourcegraph/conc/pool"

	"github.com/example/animestream/internal/platform/api"
	"github.com/example/animestream/internal/platform/httpserver"
	"github.com/example/animestream/services/catalog/internal/anime"
	"github.com/example/animestream/services/catalog/internal/forms"
	"github.com/example/animestream/services/catalog/internal/pages"
	"github.com/example/animestream/services/catalog/internal/reports"
	"github.com/example/animestream/services/catalog/internal/spotlight"
	"github.com/example/animestream/services/catalog/internal/stats"
)

// CreateAnime handles POST /v1/admin/anime
func CreateAnime(catalog *anime.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		var form forms.AnimeForm
		if !decodeJSON(w, r, rid, &form) {
			return
		}
		if err := forms.Validate(form); err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		a, err := catalog.CreateAnime(r.Context(), form.Input())
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, a)
	}
}

// UpdateAnime handles PATCH /v1/admin/anime/{anime_id}. Only the supplied
// fields are validated and written.
func UpdateAnime(catalog *anime.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		animeID, ok := pathParam(w, r, rid, "anime_id")
		if !ok {
			return
		}
		var form forms.AnimeForm
		if !decodeJSON(w, r, rid, &form) {
			return
		}
		if err := forms.ValidatePartial(form, forms.PresentFields(form)...); err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		a, err := catalog.UpdateAnime(r.Context(), animeID, form.Input())
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, a)
	}
}

// DeleteAnime handles DELETE /v1/admin/anime/{anime_id}
func DeleteAnime(catalog *anime.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		animeID, ok := pathParam(w, r, rid, "anime_id")
		if !ok {
			return
		}
		if err := catalog.DeleteAnime(r.Context(), animeID); err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AddEpisode handles POST /v1/admin/anime/{anime_id}/episodes
func AddEpisode(catalog *anime.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		animeID, ok := pathParam(w, r, rid, "anime_id")
		if !ok {
			return
		}
		var form forms.EpisodeForm
		if !decodeJSON(w, r, rid, &form) {
			return
		}
		if err := forms.Validate(form); err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		ep, err := catalog.AddEpisode(r.Context(), animeID, form.Input())
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, ep)
	}
}

// UpdateEpisode handles PATCH /v1/admin/anime/{anime_id}/episodes/{episode_id}
func UpdateEpisode(catalog *anime.Service) http.HandlerFunc {
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
		var in anime.EpisodeInput
		if !decodeJSON(w, r, rid, &in) {
			return
		}
		if err := forms.ValidatePartial(in, forms.PresentFields(in)...); err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		ep, err := catalog.UpdateAnimeEpisode(r.Context(), animeID, episodeID, in)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, ep)
	}
}

type slidesResponse struct {
	Slides []spotlight.Slide `json:"slides"`
}

// LiveSpotlight handles GET /v1/spotlight
func LiveSpotlight(slides *spotlight.Service, rd Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rd.Serve(w, r, pageKey(pages.Home, "spotlight", nil), func(ctx context.Context) (any, error) {
			live, err := slides.Live(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"slides": live}, nil
		})
	}
}

// ListSlides handles GET /v1/admin/spotlight
func ListSlides(slides *spotlight.Service, rd Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rd.Serve(w, r, pageKey(pages.AdminSpotlight, "", nil), func(ctx context.Context) (any, error) {
			all, err := slides.List(ctx)
			if err != nil {
				return nil, err
			}
			return slidesResponse{Slides: all}, nil
		})
	}
}

// CreateSlide handles POST /v1/admin/spotlight
func CreateSlide(slides *spotlight.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		var in spotlight.SlideInput
		if !decodeJSON(w, r, rid, &in) {
			return
		}
		if err := forms.Validate(in); err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		sl, err := slides.Create(r.Context(), in)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, sl)
	}
}

// UpdateSlide handles PATCH /v1/admin/spotlight/{slide_id}
func UpdateSlide(slides *spotlight.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		slideID, ok := pathParam(w, r, rid, "slide_id")
		if !ok {
			return
		}
		var in spotlight.SlideInput
		if !decodeJSON(w, r, rid, &in) {
			return
		}
		if err := forms.ValidatePartial(in, forms.PresentFields(in)...); err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		sl, err := slides.Update(r.Context(), slideID, in)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, sl)
	}
}

// DeleteSlide handles DELETE /v1/admin/spotlight/{slide_id}
func DeleteSlide(slides *spotlight.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		slideID, ok := pathParam(w, r, rid, "slide_id")
		if !ok {
			return
		}
		if err := slides.Delete(r.Context(), slideID); err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

const dashboardTopViewed = 5

type dashboardResponse struct {
	Anime       int           `json:"anime"`
	Featured    int           `json:"featured"`
	LiveSlides  int           `json:"liveSlides"`
	OpenReports int           `json:"openReports"`
	TopViewed   []stats.Count `json:"topViewed"`
}

// Dashboard handles GET /v1/admin/dashboard. View counts are only as fresh
// as the cached render; views is nil when view counting is off.
func Dashboard(catalog *anime.Service, slides *spotlight.Service, issues *reports.Service, views *stats.Recorder, rd Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rd.Serve(w, r, pageKey(pages.Admin, "dashboard", nil), func(ctx context.Context) (any, error) {
			resp := dashboardResponse{TopViewed: []stats.Count{}}
			p := pool.New().WithContext(ctx).WithMaxGoroutines(4)
			p.Go(func(ctx context.Context) error {
				var err error
				resp.Anime, resp.Featured, err = catalog.CountAnimes(ctx)
				return err
			})
			p.Go(func(ctx context.Context) error {
				var err error
				resp.LiveSlides, err = slides.CountLive(ctx)
				return err
			})
			p.Go(func(ctx context.Context) error {
				var err error
				resp.OpenReports, err = issues.CountOpen(ctx)
				return err
			})
			if views != nil {
				p.Go(func(ctx context.Context) error {
					var err error
					resp.TopViewed, err = views.TopViewed(ctx, dashboardTopViewed)
					return err
				})
			}
			if err := p.Wait(); err != nil {
				return nil, err
			}
			return resp, nil
		})
	}
}
