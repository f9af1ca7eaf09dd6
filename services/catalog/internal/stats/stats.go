// Package stats counts anime page views from the analytics stream and
// ranks the most viewed titles for the admin dashboard.
package stats

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/example/animestream/internal/platform/apperr"
	"github.com/example/animestream/internal/platform/docstore"
	"github.com/example/animestream/internal/platform/normalize"
)

const Collection = "animeStats"

type Count struct {
	AnimeID      string `json:"animeId"`
	Views        int64  `json:"views"`
	LastViewedAt string `json:"lastViewedAt"`
}

type Recorder struct {
	store docstore.Store
	log   *zap.Logger
}

func NewRecorder(store docstore.Store, log *zap.Logger) *Recorder {
	return &Recorder{store: store, log: log}
}

// RecordView adds one view to animeID's counter, creating it on first use.
func (r *Recorder) RecordView(ctx context.Context, animeID string) error {
	animeID = strings.TrimSpace(animeID)
	if animeID == "" {
		return apperr.InvalidArgument("anime id is required", map[string]string{"anime_id": "required"})
	}
	err := r.store.Set(ctx, Collection, animeID, map[string]any{
		"animeId":      animeID,
		"views":        docstore.Increment(1),
		"lastViewedAt": docstore.ServerTimestamp,
	}, docstore.MergeAll)
	if err != nil {
		r.log.Error("record view failed", zap.String("op", "recordView"), zap.String("anime_id", animeID), zap.Error(err))
		return apperr.Wrap("recordView", err)
	}
	return nil
}

// TopViewed returns up to n counters, most viewed first.
func (r *Recorder) TopViewed(ctx context.Context, n int) ([]Count, error) {
	q := docstore.NewQuery(Collection).OrderBy("views", docstore.Desc).WithLimit(n)
	snaps, err := r.store.Query(ctx, q)
	if err != nil {
		r.log.Error("top viewed failed", zap.String("op", "topViewed"), zap.Error(err))
		return nil, apperr.Wrap("topViewed", err)
	}
	out := make([]Count, 0, len(snaps))
	for _, snap := range snaps {
		views, _ := docstore.ToFloat(snap.Data["views"])
		out = append(out, Count{
			AnimeID:      snap.ID,
			Views:        int64(views),
			LastViewedAt: normalize.Timestamp(snap.Data["lastViewedAt"]),
		})
	}
	return out, nil
}
