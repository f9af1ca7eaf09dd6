package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/animestream/internal/platform/analytics"
	"github.com/example/animestream/internal/platform/auth"
	"github.com/example/animestream/internal/platform/db"
	"github.com/example/animestream/internal/platform/docstore"
	"github.com/example/animestream/internal/platform/health"
	"github.com/example/animestream/internal/platform/httpserver"
	"github.com/example/animestream/internal/platform/logging"
	"github.com/example/animestream/internal/platform/natsconn"
	"github.com/example/animestream/internal/platform/ratelimit"
	"github.com/example/animestream/internal/platform/rendercache"
	"github.com/example/animestream/internal/platform/run"
	"github.com/example/animestream/services/catalog/internal/anime"
	catalogconfig "github.com/example/animestream/services/catalog/internal/config"
	"github.com/example/animestream/services/catalog/internal/handlers"
	"github.com/example/animestream/services/catalog/internal/jikan"
	"github.com/example/animestream/services/catalog/internal/reports"
	"github.com/example/animestream/services/catalog/internal/spotlight"
	"github.com/example/animestream/services/catalog/internal/stats"
)

func main() {
	cfg, err := catalogconfig.LoadCatalog()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.App.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("service", cfg.App.ServiceName))

	ctx := context.Background()
	store, err := db.Open(ctx, cfg.App.Datastore, log)
	if err != nil {
		log.Error("datastore open", zap.Error(err))
		run.Exit(1)
	}

	// nats is optional: without it the cache is per replica and analytics
	// events are dropped.
	var (
		nc       *nats.Conn
		events   *analytics.Publisher
		counting *stats.Consumer
	)
	views := stats.NewRecorder(store, log)
	if natsconn.Enabled(natsconn.Options{URL: cfg.NATSURL}) {
		nc, err = natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.App.ServiceName, Log: log})
		if err != nil {
			log.Error("nats connect", zap.Error(err))
			run.Exit(1)
		}
		js, err := nc.JetStream()
		if err != nil {
			log.Error("jetstream context", zap.Error(err))
			run.Exit(1)
		}
		if err := analytics.EnsureStream(js); err != nil {
			log.Warn("analytics stream unavailable", zap.Error(err))
		}
		events = analytics.New(js, log)
		counting, err = stats.NewConsumer(js, views, log, stats.ConsumerOptions{})
		if err != nil {
			log.Warn("view counting disabled", zap.Error(err))
		}
	}

	cache, inv, closeCache := renderCache(ctx, cfg, nc, log)

	meta := jikan.New(jikan.Options{BaseURL: cfg.JikanBaseURL, RPS: cfg.JikanRPS})
	catalog := anime.NewService(store, log, anime.Options{
		MaxResults:  cfg.QueryMaxResults,
		Enricher:    jikan.NewEnricher(meta, log),
		Invalidator: inv,
	})
	slides := spotlight.NewService(store, catalog, inv, log)
	issues := reports.NewService(store, inv, log, cfg.QueryMaxResults)

	hs, err := health.Listen(cfg.App.GRPC.Addr, cfg.App.ServiceName, log)
	if err != nil {
		log.Error("health listen", zap.Error(err))
		run.Exit(1)
	}

	ready := health.Probe(func(ctx context.Context) error {
		_, err := store.Query(ctx, docstore.NewQuery(anime.Collection).WithLimit(1))
		return err
	}, 2*time.Second)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{Logger: log, ReadyFunc: ready})
	handlers.Register(r, handlers.Deps{
		Anime:       catalog,
		Spotlight:   slides,
		Reports:     issues,
		Views:       views,
		Render:      handlers.Renderer{Cache: cache, Log: log},
		Events:      events,
		Verifier:    auth.JWTVerifier{Secret: []byte(cfg.App.JWTSecret), Issuer: cfg.App.JWTIssuer, Audience: cfg.App.JWTAudience},
		ReportLimit: ratelimit.New(float64(cfg.ReportsPerMinute)/60, cfg.ReportBurst, nil),
	})
	srv := httpserver.New(httpserver.Options{Addr: cfg.App.HTTP.Addr, ServiceName: cfg.App.ServiceName, Logger: log, Router: r})

	runner := run.New(log).
		Add("health", func(context.Context) error {
			if err := hs.Serve(); err != nil {
				log.Warn("health server stopped", zap.Error(err))
			}
			return nil
		}).
		Add("http", func(context.Context) error {
			hs.SetReady(true)
			return srv.Start()
		})
	if counting != nil {
		runner.Add("view-counter", counting.Run)
	}
	code := runner.Run(ctx)

	hs.SetReady(false)
	runner.Shutdown(
		srv.Shutdown,
		hs.Shutdown,
		func(context.Context) error {
			meta.Close()
			return closeCache()
		},
		events.Flush,
		func(context.Context) error {
			if nc != nil {
				return nc.Drain()
			}
			return nil
		},
		func(context.Context) error { return store.Close() },
	)
	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// renderCache picks the shared redis cache when configured, otherwise an
// in-process TTL cache fed by the NATS invalidation subject. Writes always
// invalidate locally and announce the paths to other replicas.
func renderCache(ctx context.Context, cfg catalogconfig.CatalogConfig, nc *nats.Conn, log *zap.Logger) (rendercache.Cache, rendercache.Invalidator, func() error) {
	var publish rendercache.Invalidator = rendercache.Nop{}
	if nc != nil {
		publish = rendercache.NewPublisher(nc, cfg.InvalidateSubject, log)
	}

	if cfg.RedisURL != "" {
		rc, err := rendercache.NewRedisCache(ctx, cfg.RedisURL, cfg.RenderCacheTTL, log)
		if err == nil {
			return rc, rendercache.Multi{rc, publish}, rc.Close
		}
		log.Warn("redis render cache unavailable; using in-process cache", zap.Error(err))
	}

	local := rendercache.NewTTLCache(cfg.RenderCacheTTL)
	if nc != nil {
		if _, err := local.Subscribe(nc, cfg.InvalidateSubject); err != nil {
			log.Warn("render invalidation subscribe failed", zap.Error(err))
		}
	}
	return local, rendercache.Multi{rendercache.Local{Cache: local}, publish}, func() error { return nil }
}
