// Package db opens the document store the services run on.
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/example/animestream/internal/platform/config"
	"github.com/example/animestream/internal/platform/docstore"
	"github.com/example/animestream/internal/platform/docstore/fsstore"
	"github.com/example/animestream/internal/platform/docstore/memstore"
	"github.com/example/animestream/internal/platform/docstore/pgstore"
)

// Open returns the document store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatastoreConfig, log *zap.Logger) (docstore.Store, error) {
	switch cfg.Driver {
	case config.DriverFirestore:
		s, err := fsstore.Open(ctx, cfg.ProjectID, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		log.Info("datastore ready", zap.String("driver", cfg.Driver), zap.String("project", cfg.ProjectID))
		return s, nil
	case config.DriverPostgres:
		pool, err := OpenPool(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		s := pgstore.New(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("datastore ready", zap.String("driver", cfg.Driver))
		return s, nil
	case config.DriverMemory:
		log.Warn("using in-memory datastore; data is lost on restart")
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown datastore driver %q", cfg.Driver)
}

// OpenPool opens a pgx pool sized by DB_MAX_CONNS (default 10) and pings
// it, retrying while the database is still starting.
func OpenPool(ctx context.Context, dsn string, log *zap.Logger) (*pgxpool.Pool, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	pc.MaxConns = int32(config.EnvInt("DB_MAX_CONNS", 10))
	pc.MinConns = 1
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}
	err = retry.Do(
		func() error { return pool.Ping(ctx) },
		retry.Context(ctx),
		retry.Attempts(uint(config.EnvInt("DB_CONNECT_ATTEMPTS", 5))),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("postgres not reachable yet", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}
