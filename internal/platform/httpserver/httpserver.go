// Package httpserver holds the HTTP plumbing shared by the catalog and
// social services: the base router, request ids and the server lifecycle.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Timeouts for the underlying http.Server. Zero fields take the defaults.
type Timeouts struct {
	ReadHeader time.Duration
	Read       time.Duration
	Write      time.Duration
	Idle       time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	pick := func(v, def time.Duration) time.Duration {
		if v > 0 {
			return v
		}
		return def
	}
	return Timeouts{
		ReadHeader: pick(t.ReadHeader, 5*time.Second),
		Read:       pick(t.Read, 15*time.Second),
		Write:      pick(t.Write, 30*time.Second),
		Idle:       pick(t.Idle, 60*time.Second),
	}
}

type Options struct {
	Addr        string
	ServiceName string
	Logger      *zap.Logger
	Router      chi.Router
	Timeouts    Timeouts
}

type Server struct {
	HTTP *http.Server
	log  *zap.Logger
}

func New(opts Options) *Server {
	if opts.Router == nil {
		opts.Router = chi.NewRouter()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	t := opts.Timeouts.withDefaults()
	return &Server{
		HTTP: &http.Server{
			Addr:              opts.Addr,
			Handler:           opts.Router,
			ReadHeaderTimeout: t.ReadHeader,
			ReadTimeout:       t.Read,
			WriteTimeout:      t.Write,
			IdleTimeout:       t.Idle,
			ErrorLog:          zap.NewStdLog(log.Named("http")),
		},
		log: log.With(zap.String("component", "http")),
	}
}

// Start serves until Shutdown; a shutdown is not reported as an error.
func (s *Server) Start() error {
	s.log.Info("http server starting", zap.String("addr", s.HTTP.Addr))
	if err := s.HTTP.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server draining")
	return s.HTTP.Shutdown(ctx)
}
