package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/animestream/internal/platform/analytics"
)

const durableName = "catalog_view_counter"

// ErrBadEvent marks a message that can never be processed.
var ErrBadEvent = errors.New("stats: malformed view event")

type ConsumerOptions struct {
	BatchSize int
	MaxWait   time.Duration
}

// Consumer pulls anime_viewed events from the analytics stream and feeds
// them to a Recorder.
type Consumer struct {
	sub   *nats.Subscription
	rec   *Recorder
	batch int
	wait  time.Duration
	log   *zap.Logger
}

func NewConsumer(js nats.JetStreamContext, rec *Recorder, log *zap.Logger, opts ConsumerOptions) (*Consumer, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 2 * time.Second
	}
	sub, err := js.PullSubscribe(analytics.SubjectAnimeViewed, durableName, nats.BindStream(analytics.StreamName))
	if err != nil {
		return nil, fmt.Errorf("stats: subscribe: %w", err)
	}
	return &Consumer{sub: sub, rec: rec, batch: opts.BatchSize, wait: opts.MaxWait, log: log}, nil
}

// Run processes batches until ctx is cancelled. The durable consumer is
// left in place so a restarted replica resumes where this one stopped.
// Malformed events are terminated; failed writes are redelivered.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := c.sub.Fetch(c.batch, nats.MaxWait(c.wait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			c.log.Error("view consumer fetch", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range msgs {
			err := c.handle(ctx, msg.Data)
			switch {
			case errors.Is(err, ErrBadEvent):
				c.log.Warn("dropping view event", zap.Error(err))
				_ = msg.Term()
			case err != nil:
				_ = msg.Nak()
			default:
				if err := msg.Ack(); err != nil {
					c.log.Warn("view consumer ack", zap.Error(err))
				}
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, data []byte) error {
	id, err := ViewedAnime(data)
	if err != nil {
		return err
	}
	return c.rec.RecordView(ctx, id)
}

// ViewedAnime extracts the anime id from an anime_viewed event.
func ViewedAnime(data []byte) (string, error) {
	var ev analytics.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadEvent, err)
	}
	id, _ := ev.Properties["anime_id"].(string)
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: event %s has no anime_id", ErrBadEvent, ev.EventID)
	}
	return strings.TrimSpace(id), nil
}
