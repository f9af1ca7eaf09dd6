package handlers

import (
	"github.com/go-chi/chi/v5"

	"github.com/example/animestream/internal/platform/analytics"
	"github.com/example/animestream/internal/platform/auth"
	"github.com/example/animestream/internal/platform/ratelimit"
	"github.com/example/animestream/services/catalog/internal/anime"
	"github.com/example/animestream/services/catalog/internal/reports"
	"github.com/example/animestream/services/catalog/internal/spotlight"
	"github.com/example/animestream/services/catalog/internal/stats"
)

// Deps are the collaborators of the catalog HTTP surface.
type Deps struct {
	Anime     *anime.Service
	Spotlight *spotlight.Service
	Reports   *reports.Service
	// Views is optional.
	Views    *stats.Recorder
	Render   Renderer
	Events   *analytics.Publisher
	Verifier auth.JWTVerifier
	// ReportLimit throttles report submission per client; nil disables it.
	ReportLimit *ratelimit.Limiter
}

// Register mounts the public and admin routes on r.
func Register(r chi.Router, d Deps) {
	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalUser(d.Verifier))

		r.Get("/v1/anime", ListAnime(d.Anime, d.Render))
		r.Get("/v1/anime/featured", ListFeatured(d.Anime, d.Render))
		r.Get("/v1/search", Search(d.Anime, d.Render, d.Events))
		r.Get("/v1/anime/{anime_id}", GetAnime(d.Anime, d.Render, d.Events))
		r.Get("/v1/anime/{anime_id}/similar", GetSimilar(d.Anime, d.Render))
		r.Get("/v1/anime/{anime_id}/episodes/{episode_id}", GetEpisode(d.Anime, d.Render))
		r.Get("/v1/spotlight", LiveSpotlight(d.Spotlight, d.Render))
		submit := SubmitReport(d.Reports, d.Events)
		if d.ReportLimit != nil {
			r.With(d.ReportLimit.Middleware).Post("/v1/reports", submit)
		} else {
			r.Post("/v1/reports", submit)
		}
	})

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(auth.RequireUser(d.Verifier))
		r.Use(auth.RequireAdmin)

		r.Post("/anime", CreateAnime(d.Anime))
		r.Patch("/anime/{anime_id}", UpdateAnime(d.Anime))
		r.Delete("/anime/{anime_id}", DeleteAnime(d.Anime))
		r.Post("/anime/{anime_id}/episodes", AddEpisode(d.Anime))
		r.Patch("/anime/{anime_id}/episodes/{episode_id}", UpdateEpisode(d.Anime))

		r.Get("/spotlight", ListSlides(d.Spotlight, d.Render))
		r.Post("/spotlight", CreateSlide(d.Spotlight))
		r.Patch("/spotlight/{slide_id}", UpdateSlide(d.Spotlight))
		r.Delete("/spotlight/{slide_id}", DeleteSlide(d.Spotlight))

		r.Get("/reports", ListReports(d.Reports, d.Render))
		r.Patch("/reports/{report_id}", SetReportStatus(d.Reports))
		r.Delete("/reports/{report_id}", DeleteReport(d.Reports))

		r.Get("/dashboard", Dashboard(d.Anime, d.Spotlight, d.Reports, d.Views, d.Render))
	})
}
