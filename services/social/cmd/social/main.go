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
	"github.com/example/animestream/internal/platform/run"
	"github.com/example/animestream/services/social/internal/comments"
	socialconfig "github.com/example/animestream/services/social/internal/config"
	"github.com/example/animestream/services/social/internal/handlers"
	"github.com/example/animestream/services/social/internal/library"
	"github.com/example/animestream/services/social/internal/users"
)

func main() {
	cfg, err := socialconfig.LoadSocial()
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
	if cfg.OwnerUserID == "" {
		log.Warn("OWNER_USER_ID not set; every account can be banned")
	}

	var (
		nc     *nats.Conn
		events *analytics.Publisher
	)
	if natsconn.Enabled(natsconn.Options{URL: cfg.NATSURL}) {
		nc, err = natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.App.ServiceName, Log: log})
		if err != nil {
			log.Warn("nats unavailable; analytics disabled", zap.Error(err))
		} else if js, err := nc.JetStream(); err != nil {
			log.Warn("jetstream context", zap.Error(err))
		} else {
			if err := analytics.EnsureStream(js); err != nil {
				log.Warn("analytics stream unavailable", zap.Error(err))
			}
			events = analytics.New(js, log)
		}
	}

	mod := users.NewModerator(store, log, cfg.OwnerUserID)
	deps := handlers.Deps{
		Comments: comments.NewService(store, log, comments.Options{
			MaxLength:  cfg.CommentMaxLength,
			MaxResults: cfg.QueryMaxResults,
			Bans:       mod,
		}),
		Favorites: library.NewSet(library.Favorites, store, log, cfg.QueryMaxResults),
		Wishlist:  library.NewSet(library.Wishlist, store, log, cfg.QueryMaxResults),
		Users:     mod,
		Events:    events,
		Verifier:  auth.JWTVerifier{Secret: []byte(cfg.App.JWTSecret), Issuer: cfg.App.JWTIssuer, Audience: cfg.App.JWTAudience},
		Limiter:   ratelimit.New(float64(cfg.WriteRatePerMinute)/60, cfg.WriteBurst, handlers.PerUser),
	}

	hs, err := health.Listen(cfg.App.GRPC.Addr, cfg.App.ServiceName, log)
	if err != nil {
		log.Error("health listen", zap.Error(err))
		run.Exit(1)
	}
	ready := health.Probe(func(ctx context.Context) error {
		_, err := store.Query(ctx, docstore.NewQuery(comments.Collection).WithLimit(1))
		return err
	}, 2*time.Second)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{Logger: log, ReadyFunc: ready})
	handlers.Register(r, deps)
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
	code := runner.Run(ctx)

	hs.SetReady(false)
	runner.Shutdown(
		srv.Shutdown,
		hs.Shutdown,
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
