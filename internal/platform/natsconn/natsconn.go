// Package natsconn opens the NATS connection shared by the render-cache
// invalidation bus, the analytics publisher and the view counter.
package natsconn

import (
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/animestream/internal/platform/config"
)

// Options configures the connection. Zero values fall back to the
// NATS_* environment variables and then to built-in defaults.
type Options struct {
	URL  string
	Name string // client name shown in server monitoring
	// ConnectAttempts bounds the initial dial (NATS_CONNECT_ATTEMPTS, 3).
	ConnectAttempts int
	// MaxReconnects applies once connected (NATS_MAX_RECONNECTS, 5).
	MaxReconnects int
	// ReconnectWait spaces both dials and reconnects (NATS_RECONNECT_WAIT, 2s).
	ReconnectWait time.Duration
	Log           *zap.Logger
}

// Enabled reports whether a server URL is configured. Both services run
// single-replica without NATS.
func Enabled(opts Options) bool {
	return opts.resolve().URL != ""
}

func (o Options) resolve() Options {
	if o.URL == "" {
		o.URL = config.Env("NATS_URL")
	}
	if o.ConnectAttempts <= 0 {
		o.ConnectAttempts = config.EnvInt("NATS_CONNECT_ATTEMPTS", 3)
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = config.EnvInt("NATS_MAX_RECONNECTS", 5)
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = config.EnvDuration("NATS_RECONNECT_WAIT", 2*time.Second)
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	return o
}

// Connect dials the server, retrying the first connection, and installs
// handlers that log connection state changes. The error after the last
// attempt lets the caller fail fast.
func Connect(opts Options) (*nats.Conn, error) {
	opts = opts.resolve()
	if opts.URL == "" {
		opts.URL = nats.DefaultURL
	}
	log := opts.Log.With(zap.String("component", "nats"))

	natsOpts := []nats.Option{
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Info("connection closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			log.Warn("async error", zap.String("subject", subject), zap.Error(err))
		}),
	}
	if opts.Name != "" {
		natsOpts = append(natsOpts, nats.Name(opts.Name))
	}

	var nc *nats.Conn
	err := retry.Do(
		func() error {
			var err error
			nc, err = nats.Connect(opts.URL, natsOpts...)
			return err
		},
		retry.Attempts(uint(opts.ConnectAttempts)),
		retry.Delay(opts.ReconnectWait),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("connect failed, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s after %d attempt(s): %w", opts.URL, opts.ConnectAttempts, err)
	}
	return nc, nil
}
