package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/animestream/internal/platform/api"
	"github.com/example/animestream/internal/platform/auth"
)

func decodeJSON[T any](w http.ResponseWriter, r *http.Request, rid string, dst *T) bool {
	if err := api.DecodeJSON(w, r, dst); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
		return false
	}
	return true
}

func pathParam(w http.ResponseWriter, r *http.Request, rid, name string) (string, bool) {
	v := strings.TrimSpace(chi.URLParam(r, name))
	if v == "" {
		api.BadRequest(w, "MISSING_ID", name+" is required", rid, nil)
		return "", false
	}
	return v, true
}

// session returns the caller injected by auth.RequireUser, writing a 401
// when there is none.
func session(w http.ResponseWriter, r *http.Request, rid string) (auth.Session, bool) {
	s, ok := auth.SessionFromContext(r.Context())
	if !ok || s.UserID == "" {
		api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
		return auth.Session{}, false
	}
	return s, true
}
