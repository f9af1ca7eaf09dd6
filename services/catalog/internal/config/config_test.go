package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalogDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "catalog")
	t.Setenv("DATASTORE", "memory")
	t.Setenv("APP_ENV", "development")
	t.Setenv("JIKAN_RPS", "")
	t.Setenv("RENDER_CACHE_TTL", "")
	t.Setenv("QUERY_MAX_RESULTS", "")
	t.Setenv("JIKAN_BASE_URL", "")
	t.Setenv("RENDER_INVALIDATE_SUBJECT", "")

	cfg, err := LoadCatalog()
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.RenderCacheTTL)
	assert.Equal(t, 3, cfg.JikanRPS)
	assert.Equal(t, 500, cfg.QueryMaxResults)
	assert.Equal(t, "https://api.jikan.moe/v4", cfg.JikanBaseURL)
	assert.Equal(t, "render.invalidate", cfg.InvalidateSubject)
}

func TestLoadCatalogOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "catalog")
	t.Setenv("DATASTORE", "memory")
	t.Setenv("APP_ENV", "development")
	t.Setenv("RENDER_CACHE_TTL", "5")
	t.Setenv("QUERY_MAX_RESULTS", "50")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")

	cfg, err := LoadCatalog()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.RenderCacheTTL)
	assert.Equal(t, 50, cfg.QueryMaxResults)
	assert.Equal(t, "redis://cache:6379/0", cfg.RedisURL)
}

func TestLoadCatalogRequiresServiceName(t *testing.T) {
	t.Setenv("SERVICE_NAME", "")
	_, err := LoadCatalog()
	assert.Error(t, err)
}
