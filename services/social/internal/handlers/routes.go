package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/animestream/internal/platform/analytics"
	"github.com/example/animestream/internal/platform/auth"
	"github.com/example/animestream/internal/platform/ratelimit"
	"github.com/example/animestream/services/social/internal/comments"
	"github.com/example/animestream/services/social/internal/library"
	"github.com/example/animestream/services/social/internal/users"
)

type Deps struct {
	Comments  *comments.Service
	Favorites *library.Set
	Wishlist  *library.Set
	Users     *users.Moderator
	Events    *analytics.Publisher
	Verifier  auth.JWTVerifier
	// Limiter throttles signed-in callers per user; nil disables it.
	Limiter *ratelimit.Limiter
}

// PerUser buckets rate limits by the signed-in user.
func PerUser(r *http.Request) string {
	if uid, ok := auth.UserIDFromContext(r.Context()); ok && uid != "" {
		return "user:" + uid
	}
	return "ip:" + ratelimit.ClientIP(r)
}

// Register mounts the social routes on r. Reads are public; everything
// else needs a session.
func Register(r chi.Router, d Deps) {
	r.Get("/v1/anime/{anime_id}/episodes/{episode_id}/comments", ListComments(d.Comments))
	r.Get("/v1/comments/{comment_id}/replies", ListReplies(d.Comments))

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(d.Verifier))
		if d.Limiter != nil {
			r.Use(d.Limiter.Middleware)
		}

		r.Post("/v1/anime/{anime_id}/episodes/{episode_id}/comments", PostComment(d.Comments, d.Events))
		r.Patch("/v1/comments/{comment_id}", EditComment(d.Comments))
		r.Delete("/v1/comments/{comment_id}", DeleteComment(d.Comments))
		r.Post("/v1/comments/{comment_id}/like", React(d.Comments, comments.Like))
		r.Post("/v1/comments/{comment_id}/dislike", React(d.Comments, comments.Dislike))

		for _, set := range []*library.Set{d.Favorites, d.Wishlist} {
			base := "/v1/me/" + set.Name()
			r.Get(base, ListMembers(set))
			r.Get(base+"/{anime_id}", CheckMember(set))
			r.Put(base+"/{anime_id}", PutMember(set, d.Events))
			r.Delete(base+"/{anime_id}", RemoveMember(set, d.Events))
			r.Post(base+"/{anime_id}/toggle", ToggleMember(set, d.Events))
		}
	})

	r.Route("/v1/admin/users", func(r chi.Router) {
		r.Use(auth.RequireUser(d.Verifier))
		r.Use(auth.RequireAdmin)

		r.Put("/{user_id}/ban", BanUser(d.Users))
		r.Delete("/{user_id}/ban", UnbanUser(d.Users))
	})
}
