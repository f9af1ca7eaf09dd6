package handlers

import (
	"net/http"

	"github.com/example/animestream/internal/platform/api"
	"github.com/example/animestream/internal/platform/httpserver"
	"github.com/example/animestream/services/social/internal/users"
)

type banRequest struct {
	Reason string `json:"reason"`
}

// BanUser handles PUT /v1/admin/users/{user_id}/ban. The body is optional.
func BanUser(mod *users.Moderator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		admin, ok := session(w, r, rid)
		if !ok {
			return
		}
		userID, ok := pathParam(w, r, rid, "user_id")
		if !ok {
			return
		}
		var req banRequest
		if r.ContentLength != 0 && !decodeJSON(w, r, rid, &req) {
			return
		}
		b, err := mod.Ban(r.Context(), admin, userID, req.Reason)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, b)
	}
}

// UnbanUser handles DELETE /v1/admin/users/{user_id}/ban
func UnbanUser(mod *users.Moderator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		admin, ok := session(w, r, rid)
		if !ok {
			return
		}
		userID, ok := pathParam(w, r, rid, "user_id")
		if !ok {
			return
		}
		b, err := mod.Unban(r.Context(), admin, userID)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, b)
	}
}
