package rendercache

import (
	"context"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Invalidator is the side-effect hook every successful write calls with the
// logical paths whose renders are now stale.
type Invalidator interface {
	Invalidate(ctx context.Context, paths ...string)
}

// Local invalidates a cache in this process only.
type Local struct {
	Cache Cache
}

func (l Local) Invalidate(ctx context.Context, paths ...string) {
	if l.Cache == nil || len(paths) == 0 {
		return
	}
	l.Cache.InvalidatePaths(ctx, paths...)
}

// Publisher announces invalidated paths on a NATS subject. Subscribed
// TTLCaches (including this replica's own) drop them on receipt.
type Publisher struct {
	nc      *nats.Conn
	subject string
	log     *zap.Logger
}

func NewPublisher(nc *nats.Conn, subject string, log *zap.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{nc: nc, subject: subject, log: log}
}

func (p *Publisher) Invalidate(_ context.Context, paths ...string) {
	if p == nil || p.nc == nil || len(paths) == 0 {
		return
	}
	if err := p.nc.Publish(p.subject, []byte(strings.Join(paths, "\n"))); err != nil {
		p.log.Warn("render invalidation publish failed", zap.Strings("paths", paths), zap.Error(err))
	}
}

// Multi fans an invalidation out to several invalidators.
type Multi []Invalidator

func (m Multi) Invalidate(ctx context.Context, paths ...string) {
	for _, inv := range m {
		if inv != nil {
			inv.Invalidate(ctx, paths...)
		}
	}
}

// Recorder keeps every invalidated path; tests assert against it.
type Recorder struct {
	Paths []string
}

func (r *Recorder) Invalidate(_ context.Context, paths ...string) {
	r.Paths = append(r.Paths, paths...)
}

// Nop discards invalidations.
type Nop struct{}

func (Nop) Invalidate(context.Context, ...string) {}
