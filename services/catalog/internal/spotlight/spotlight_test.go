package spotlight

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"github.com/example/animestream/internal/platform/apperr"
	"github.com/example/animestream/internal/platform/docstore/memstore"
	"github.com/example/animestream/internal/platform/rendercache"
	"github.com/example/animestream/services/catalog/internal/anime"
)

func ptr[T any](v T) *T { return &v }

func setup(t *testing.T) (*Service, *anime.Service, *rendercache.Recorder) {
	t.Helper()
	store := memstore.New()
	catalog := anime.NewService(store, zap.NewNop(), anime.Options{})
	rec := &rendercache.Recorder{}
	return NewService(store, catalog, rec, zap.NewNop()), catalog, rec
}

func TestLiveJoinsAndAppliesOverrides(t *testing.T) {
	svc, catalog, rec := setup(t)
	ctx := context.Background()

	_, err := catalog.CreateAnime(ctx, anime.AnimeInput{Title: ptr("Frieren"), Synopsis: ptr("Stored synopsis")})
	require.NoError(t, err)
	_, err = catalog.CreateAnime(ctx, anime.AnimeInput{Title: ptr("Dandadan")})
	require.NoError(t, err)

	_, err = svc.Create(ctx, SlideInput{Order: ptr(2), Status: ptr("live"), AnimeID: ptr("frieren"),
		Description: ptr("Spotlight copy"), BackgroundImage: ptr("https://cdn.example.com/bg.jpg")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, SlideInput{Order: ptr(1), Status: ptr("live"), AnimeID: ptr("dandadan"), Title: ptr("DAN DA DAN")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, SlideInput{Order: ptr(3), Status: ptr("draft"), AnimeID: ptr("frieren")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, SlideInput{Order: ptr(4), Status: ptr("live"), AnimeID: ptr("deleted-show")})
	require.NoError(t, err)
	assert.Contains(t, rec.Paths, "/admin/spotlight")

	live, err := svc.Live(ctx)
	require.NoError(t, err)
	require.Len(t, live, 2)
	assert.Equal(t, "DAN DA DAN", live[0].Anime.Title)
	assert.Equal(t, "Frieren", live[1].Anime.Title)
	assert.Equal(t, "Spotlight copy", *live[1].Anime.Synopsis)
	assert.Equal(t, "https://cdn.example.com/bg.jpg", *live[1].Anime.BannerImage)

	n, err := svc.CountLive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, 1, all[0].Order)
	assert.Equal(t, StatusDraft, all[2].Status)
}

func TestOrderBounds(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	for _, order := range []int{0, 11} {
		_, err := svc.Create(ctx, SlideInput{Order: ptr(order), Status: ptr("live"), AnimeID: ptr("x")})
		assert.Equal(t, codes.InvalidArgument, apperr.Code(err))
	}
	_, err := svc.Create(ctx, SlideInput{Status: ptr("live"), AnimeID: ptr("x")})
	assert.Equal(t, codes.InvalidArgument, apperr.Code(err))
}

func TestUpdateAndDelete(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	sl, err := svc.Create(ctx, SlideInput{Order: ptr(5), AnimeID: ptr("x"), Title: ptr("Custom")})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, sl.Status)
	assert.NotEmpty(t, sl.CreatedAt)

	sl, err = svc.Update(ctx, sl.ID, SlideInput{Status: ptr("live"), Title: ptr("")})
	require.NoError(t, err)
	assert.Equal(t, StatusLive, sl.Status)
	assert.Nil(t, sl.Title)
	assert.Equal(t, 5, sl.Order)

	_, err = svc.Update(ctx, sl.ID, SlideInput{Order: ptr(42)})
	assert.Equal(t, codes.InvalidArgument, apperr.Code(err))

	require.NoError(t, svc.Delete(ctx, sl.ID))
	assert.Equal(t, codes.NotFound, apperr.Code(svc.Delete(ctx, sl.ID)))
	_, err = svc.Update(ctx, "missing", SlideInput{Title: ptr("x")})
	assert.Equal(t, codes.NotFound, apperr.Code(err))
}
