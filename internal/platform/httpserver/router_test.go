package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, cfg ...RouterConfig) chi.Router {
	t.Helper()
	r := chi.NewRouter()
	SetupRouter(r, cfg...)
	return r
}

func do(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestProbes(t *testing.T) {
	rr := do(newRouter(t), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())

	rr = do(newRouter(t), http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	up := newRouter(t, RouterConfig{ReadyFunc: func() error { return nil }})
	assert.Equal(t, http.StatusOK, do(up, http.MethodGet, "/readyz", nil).Code)

	down := newRouter(t, RouterConfig{ReadyFunc: func() error { return errors.New("datastore unreachable") }})
	rr = do(down, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "datastore unreachable")
}

func TestPanicBecomesErrorEnvelope(t *testing.T) {
	r := newRouter(t)
	r.Get("/v1/anime/{id}", func(http.ResponseWriter, *http.Request) { panic("nil map") })

	rr := do(r, http.MethodGet, "/v1/anime/frieren", nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	var body struct {
		Error struct {
			Code      string `json:"code"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL", body.Error.Code)
	assert.Equal(t, rr.Header().Get(RequestIDHeader), body.Error.RequestID)
}

func TestCORSExposesCacheHeader(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	r := newRouter(t)
	r.Get("/v1/home", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Cache", "HIT")
		w.WriteHeader(http.StatusOK)
	})

	rr := do(r, http.MethodGet, "/v1/home", map[string]string{"Origin": "https://animestream.app"})
	assert.NotEmpty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Expose-Headers"), "X-Cache")
}

func TestParseCORSOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, parseCORSOrigins(""))
	assert.Equal(t, []string{"*"}, parseCORSOrigins(" , "))
	assert.Equal(t, []string{"https://animestream.app"}, parseCORSOrigins("https://animestream.app"))
	assert.Equal(t,
		[]string{"https://animestream.app", "https://www.animestream.app"},
		parseCORSOrigins("https://animestream.app , https://www.animestream.app"))
}

func TestRequestID(t *testing.T) {
	r := newRouter(t)
	var seen string
	r.Get("/v1/anime", func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("minted", func(t *testing.T) {
		rr := do(r, http.MethodGet, "/v1/anime", nil)
		id, err := uuid.Parse(seen)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), id.Version())
		assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		rr := do(r, http.MethodGet, "/v1/anime", map[string]string{RequestIDHeader: "edge-7f3a"})
		assert.Equal(t, "edge-7f3a", seen)
		assert.Equal(t, "edge-7f3a", rr.Header().Get(RequestIDHeader))
	})

	for name, bad := range map[string]string{
		"too long":  strings.Repeat("a", maxInboundRequestID+1),
		"space":     "two words",
		"non-ascii": "idé",
	} {
		t.Run("replaced "+name, func(t *testing.T) {
			do(r, http.MethodGet, "/v1/anime", map[string]string{RequestIDHeader: bad})
			assert.NotEqual(t, bad, seen)
			_, err := uuid.Parse(seen)
			assert.NoError(t, err)
		})
	}
}
