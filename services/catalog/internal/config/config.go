package config

import (
	"time"

	"github.com/example/animestream/internal/platform/config"
	"github.com/example/animestream/internal/platform/rendercache"
	"github.com/example/animestream/services/catalog/internal/anime"
	"github.com/example/animestream/services/catalog/internal/jikan"
)

type CatalogConfig struct {
	App config.AppConfig

	// NATSURL enables cross-replica render invalidation and analytics.
	NATSURL string
	// RedisURL switches the render cache from in-process to shared.
	RedisURL          string
	RenderCacheTTL    time.Duration
	InvalidateSubject string

	JikanBaseURL string
	JikanRPS     int

	QueryMaxResults int

	// ReportsPerMinute and ReportBurst bound report submission per client IP.
	ReportsPerMinute int
	ReportBurst      int
}

func LoadCatalog() (CatalogConfig, error) {
	app, err := config.Load()
	if err != nil {
		return CatalogConfig{}, err
	}
	subject := config.Env("RENDER_INVALIDATE_SUBJECT")
	if subject == "" {
		subject = rendercache.DefaultSubject
	}
	base := config.Env("JIKAN_BASE_URL")
	if base == "" {
		base = jikan.DefaultBaseURL
	}
	return CatalogConfig{
		App:               app,
		NATSURL:           config.Env("NATS_URL"),
		RedisURL:          config.Env("REDIS_URL"),
		RenderCacheTTL:    time.Duration(config.EnvInt("RENDER_CACHE_TTL", 60)) * time.Second,
		InvalidateSubject: subject,
		JikanBaseURL:      base,
		JikanRPS:          config.EnvInt("JIKAN_RPS", 3),
		QueryMaxResults:   config.EnvInt("QUERY_MAX_RESULTS", anime.DefaultMaxResults),
		ReportsPerMinute:  config.EnvInt("REPORTS_PER_MINUTE", 5),
		ReportBurst:       config.EnvInt("REPORT_BURST", 5),
	}, nil
}
