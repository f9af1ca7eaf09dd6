// Package analytics emits product events (views, searches, reports,
// comments, list changes) onto a JetStream stream. Publishing never blocks
// or fails a request; the catalog view counter is one consumer.
package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Kind names an event type; each kind has its own subject.
type Kind string

const (
	AnimeViewed     Kind = "anime_viewed"
	SearchPerformed Kind = "search_performed"
	ReportFiled     Kind = "report_filed"
	CommentPosted   Kind = "comment_posted"
	ListChanged     Kind = "list_changed"
)

// Subject returns the subject events of kind k are published on.
func (k Kind) Subject() string {
	switch k {
	case AnimeViewed, SearchPerformed, ReportFiled:
		return "analytics.catalog." + string(k)
	default:
		return "analytics.social." + string(k)
	}
}

const (
	// StreamName is the JetStream stream holding every analytics subject.
	StreamName = "ANALYTICS"
	// SubjectAnimeViewed is consumed by the view counter.
	SubjectAnimeViewed = "analytics.catalog.anime_viewed"

	retention   = 7 * 24 * time.Hour
	dedupWindow = 2 * time.Minute
)

// EnsureStream creates the stream when missing. Messages carry their event
// id as Nats-Msg-Id, so retried publishes inside dedupWindow are dropped.
func EnsureStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(StreamName); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{"analytics.>"},
		MaxAge:     retention,
		Duplicates: dedupWindow,
	})
	return err
}

// Event is the envelope on every analytics subject.
type Event struct {
	EventID    string         `json:"event_id"`
	EventName  string         `json:"event_name"`
	UserID     string         `json:"user_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Publisher is safe to use as a nil pointer, which drops every event.
type Publisher struct {
	js  nats.JetStreamContext
	log *zap.Logger
	now func() time.Time
}

func New(js nats.JetStreamContext, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{js: js, log: log.With(zap.String("component", "analytics")), now: time.Now}
}

func newEventID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// Publish queues an event without waiting for the server ack. Failures are
// logged.
func (p *Publisher) Publish(kind Kind, userID string, props map[string]any) {
	if p == nil || p.js == nil {
		return
	}
	ev := Event{
		EventID:    newEventID(),
		EventName:  string(kind),
		UserID:     userID,
		OccurredAt: p.now().UTC(),
		Properties: props,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("marshal event", zap.String("event", ev.EventName), zap.Error(err))
		return
	}
	if _, err := p.js.PublishAsync(kind.Subject(), data, nats.MsgId(ev.EventID)); err != nil {
		p.log.Warn("publish event", zap.String("subject", kind.Subject()), zap.Error(err))
	}
}

// Flush waits for outstanding publishes to be acknowledged or ctx to end.
func (p *Publisher) Flush(ctx context.Context) error {
	if p == nil || p.js == nil {
		return nil
	}
	select {
	case <-p.js.PublishAsyncComplete():
		return nil
	case <-ctx.Done():
		p.log.Warn("analytics events still pending at shutdown", zap.Int("pending", p.js.PublishAsyncPending()))
		return ctx.Err()
	}
}
