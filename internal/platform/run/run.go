// Package run supervises the long-running parts of a service process: the
// HTTP server, the health server and background consumers.
package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// ShutdownTimeout bounds graceful shutdown of servers and subscriptions.
const ShutdownTimeout = 10 * time.Second

// Component is one supervised goroutine. It should return when ctx ends.
type Component func(ctx context.Context) error

type named struct {
	name string
	fn   Component
}

type Runner struct {
	log   *zap.Logger
	parts []named
}

func New(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{log: log}
}

// Add registers a component started by Run.
func (r *Runner) Add(name string, fn Component) *Runner {
	r.parts = append(r.parts, named{name: name, fn: fn})
	return r
}

// Run starts every component and blocks until SIGINT/SIGTERM arrives or a
// component fails. A component that returns nil, http.ErrServerClosed or a
// context error has simply stopped; anything else, including a panic, ends
// the process with exit code 1.
func (r *Runner) Run(ctx context.Context) int {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed := make(chan error, len(r.parts))
	for _, p := range r.parts {
		go func(p named) {
			err := r.supervise(ctx, p)
			if err != nil {
				failed <- err
			}
		}(p)
	}

	select {
	case <-ctx.Done():
		r.log.Info("shutdown signal received")
		return 0
	case err := <-failed:
		r.log.Error("service exited with error", zap.Error(err))
		return 1
	}
}

func (r *Runner) supervise(ctx context.Context, p named) error {
	var (
		catcher panics.Catcher
		err     error
	)
	catcher.Try(func() { err = p.fn(ctx) })
	if rec := catcher.Recovered(); rec != nil {
		r.log.Error("component panicked", zap.String("component", p.name), zap.String("stack", string(rec.Stack)))
		return rec.AsError()
	}
	switch {
	case err == nil, errors.Is(err, http.ErrServerClosed), errors.Is(err, context.Canceled):
		r.log.Info("component stopped", zap.String("component", p.name))
		return nil
	default:
		return fmt.Errorf("%s: %w", p.name, err)
	}
}

// Shutdown calls each hook in order with a context bounded by
// ShutdownTimeout. Hook errors are logged and do not stop later hooks.
func (r *Runner) Shutdown(hooks ...func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	for i, h := range hooks {
		if err := h(ctx); err != nil {
			r.log.Warn("shutdown hook failed", zap.Int("hook", i), zap.Error(err))
		}
	}
}

func Exit(code int) {
	os.Exit(code)
}
