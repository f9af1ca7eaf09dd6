package reports

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"github.com/example/animestream/internal/platform/apperr"
	"github.com/example/animestream/internal/platform/docstore/memstore"
	"github.com/example/animestream/internal/platform/rendercache"
)

func newService(t *testing.T) (*Service, *rendercache.Recorder) {
	t.Helper()
	clock := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store := memstore.New(memstore.Options{Now: func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}})
	rec := &rendercache.Recorder{}
	return NewService(store, rec, zap.NewNop(), 0), rec
}

func validInput() Input {
	ep := "ep-1"
	return Input{
		AnimeID:     "frieren",
		EpisodeID:   &ep,
		IssueType:   string(IssueVideoNotPlaying),
		Description: "Stream stops after ten seconds.",
	}
}

func TestSubmitStartsOpen(t *testing.T) {
	svc, rec := newService(t)
	r, err := svc.Submit(context.Background(), Reporter{}, validInput())
	require.NoError(t, err)

	assert.Equal(t, StatusOpen, r.Status)
	assert.Nil(t, r.ReporterID)
	assert.Nil(t, r.SourceID)
	require.NotNil(t, r.EpisodeID)
	assert.Equal(t, "ep-1", *r.EpisodeID)
	assert.NotEmpty(t, r.CreatedAt)
	assert.Contains(t, rec.Paths, "/admin/reports")

	named, err := svc.Submit(context.Background(), Reporter{UserID: "u1", DisplayName: "Ayu"}, validInput())
	require.NoError(t, err)
	assert.Equal(t, "u1", *named.ReporterID)
}

func TestSubmitValidatesDescriptionAndType(t *testing.T) {
	svc, _ := newService(t)
	cases := map[string]func(*Input){
		"short description": func(in *Input) { in.Description = "too short" },
		"long description":  func(in *Input) { in.Description = strings.Repeat("x", 501) },
		"unknown type":      func(in *Input) { in.IssueType = "spoilers" },
		"missing anime":     func(in *Input) { in.AnimeID = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := svc.Submit(context.Background(), Reporter{}, in)
			assert.Equal(t, codes.InvalidArgument, apperr.Code(err))
		})
	}

	in := validInput()
	in.Description = strings.Repeat("é", 500)
	_, err := svc.Submit(context.Background(), Reporter{}, in)
	assert.NoError(t, err)
}

func TestListNewestFirstAndByStatus(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	first, err := svc.Submit(ctx, Reporter{}, validInput())
	require.NoError(t, err)
	second, err := svc.Submit(ctx, Reporter{}, validInput())
	require.NoError(t, err)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)

	_, err = svc.SetStatus(ctx, first.ID, StatusChange{Status: "resolved", AdminNotes: ptr("fixed CDN")})
	require.NoError(t, err)

	open, err := svc.List(ctx, "open")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)

	n, err := svc.CountOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.List(ctx, "archived")
	assert.Equal(t, codes.InvalidArgument, apperr.Code(err))
}

func ptr[T any](v T) *T { return &v }

func TestStatusTransitions(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	r, err := svc.Submit(ctx, Reporter{}, validInput())
	require.NoError(t, err)

	r, err = svc.SetStatus(ctx, r.ID, StatusChange{Status: "wont-fix", AdminNotes: ptr("works on our side")})
	require.NoError(t, err)
	assert.Equal(t, StatusWontFix, r.Status)
	assert.Equal(t, "works on our side", *r.AdminNotes)

	_, err = svc.SetStatus(ctx, r.ID, StatusChange{Status: "resolved"})
	assert.Equal(t, codes.FailedPrecondition, apperr.Code(err))

	r, err = svc.SetStatus(ctx, r.ID, StatusChange{Status: "open"})
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, r.Status)
	assert.Equal(t, "works on our side", *r.AdminNotes)

	_, err = svc.SetStatus(ctx, "missing", StatusChange{Status: "open"})
	assert.Equal(t, codes.NotFound, apperr.Code(err))

	_, err = svc.SetStatus(ctx, r.ID, StatusChange{Status: "closed"})
	assert.Equal(t, codes.InvalidArgument, apperr.Code(err))
}

func TestDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	r, err := svc.Submit(ctx, Reporter{}, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, r.ID))
	assert.Equal(t, codes.NotFound, apperr.Code(svc.Delete(ctx, r.ID)))
}
