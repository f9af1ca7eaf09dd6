package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/example/animestream/internal/platform/api"
	"github.com/example/animestream/internal/platform/httpserver"
	"github.com/example/animestream/internal/platform/rendercache"
)

// Renderer serves JSON reads through the render cache. Only successful
// renders are stored; a nil Cache renders every request.
type Renderer struct {
	Cache rendercache.Cache
	Log   *zap.Logger
}

// Serve writes the cached render for key or builds, stores and writes it.
// The X-Cache header reports HIT or MISS.
func (rd Renderer) Serve(w http.ResponseWriter, r *http.Request, key string, build func(ctx context.Context) (any, error)) {
	rid := httpserver.RequestIDFromContext(r.Context())
	if rd.Cache != nil {
		if b, ok := rd.Cache.Get(r.Context(), key); ok {
			w.Header().Set("X-Cache", "HIT")
			api.WriteRawJSON(w, http.StatusOK, b)
			return
		}
	}

	v, err := build(r.Context())
	if err != nil {
		api.WriteStatusError(w, rid, err)
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		rd.logger().Error("render marshal failed", zap.String("key", key), zap.Error(err))
		api.Internal(w, rid)
		return
	}
	if rd.Cache != nil {
		rd.Cache.Set(r.Context(), key, b)
	}
	w.Header().Set("X-Cache", "MISS")
	api.WriteRawJSON(w, http.StatusOK, b)
}

func (rd Renderer) logger() *zap.Logger {
	if rd.Log == nil {
		return zap.NewNop()
	}
	return rd.Log
}

// pageKey files a render under the logical page it belongs to, so that
// invalidating the page drops it. view separates different renders that
// share a page and query.
func pageKey(page, view string, q url.Values) string {
	vals := url.Values{}
	for k, v := range q {
		vals[k] = append([]string(nil), v...)
	}
	if view != "" {
		vals.Set("view", view)
	}
	return rendercache.Key(page, vals)
}
