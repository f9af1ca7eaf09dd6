package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/animestream/internal/platform/api"
)

// decodeJSON decodes a capped JSON body into dst. On failure it writes a 400
// response and returns false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, rid string, dst *T) bool {
	if err := api.DecodeJSON(w, r, dst); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
		return false
	}
	return true
}

// pathParam reads a required route parameter, writing a 400 when blank.
func pathParam(w http.ResponseWriter, r *http.Request, rid, name string) (string, bool) {
	v := strings.TrimSpace(chi.URLParam(r, name))
	if v == "" {
		api.BadRequest(w, "MISSING_ID", name+" is required", rid, nil)
		return "", false
	}
	return v, true
}

// intParam parses an optional integer query parameter. ok is false after a
// 400 has been written.
func intParam(w http.ResponseWriter, r *http.Request, rid, name string, fallback, min int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		api.BadRequest(w, "INVALID_ARGUMENT", "invalid "+name, rid, map[string]any{name: "must be an integer >= " + strconv.Itoa(min)})
		return 0, false
	}
	return n, true
}
