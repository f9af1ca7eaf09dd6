package library

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"github.com/example/animestream/internal/platform/apperr"
	"github.com/example/animestream/internal/platform/docstore"
	"github.com/example/animestream/internal/platform/docstore/memstore"
)

func newSets(t *testing.T) (*Set, *Set, *memstore.Store) {
	t.Helper()
	clock := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store := memstore.New(memstore.Options{Now: func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}})
	log := zap.NewNop()
	return NewSet(Favorites, store, log, 0), NewSet(Wishlist, store, log, 0), store
}

func TestAddIsIdempotent(t *testing.T) {
	favs, _, store := newSets(t)
	ctx := context.Background()

	require.NoError(t, favs.Add(ctx, "u1", "frieren"))
	require.NoError(t, favs.Add(ctx, "u1", "frieren"))
	assert.Equal(t, 1, store.Len(docstore.Path("users", "u1", "favorites")))

	ok, err := favs.Contains(ctx, "u1", "frieren")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRemoveNonMemberIsNoop(t *testing.T) {
	favs, _, _ := newSets(t)
	ctx := context.Background()

	require.NoError(t, favs.Remove(ctx, "u1", "never-added"))
	require.NoError(t, favs.Add(ctx, "u1", "frieren"))
	require.NoError(t, favs.Remove(ctx, "u1", "frieren"))
	require.NoError(t, favs.Remove(ctx, "u1", "frieren"))

	ok, err := favs.Contains(ctx, "u1", "frieren")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetsAreIndependent(t *testing.T) {
	favs, wish, _ := newSets(t)
	ctx := context.Background()

	require.NoError(t, wish.Add(ctx, "u1", "dandadan"))
	ok, err := favs.Contains(ctx, "u1", "dandadan")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = wish.Contains(ctx, "u2", "dandadan")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEntriesNewestFirst(t *testing.T) {
	favs, _, _ := newSets(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, favs.Add(ctx, "u1", id))
	}
	require.NoError(t, favs.Add(ctx, "u1", "a"))

	ids, err := favs.IDs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, ids)

	entries, err := favs.Entries(ctx, "u1")
	require.NoError(t, err)
	assert.Greater(t, entries[0].AddedAt, entries[1].AddedAt)

	empty, err := favs.IDs(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestToggle(t *testing.T) {
	_, wish, _ := newSets(t)
	ctx := context.Background()

	in, err := wish.Toggle(ctx, "u1", "frieren")
	require.NoError(t, err)
	assert.True(t, in)

	in, err = wish.Toggle(ctx, "u1", "frieren")
	require.NoError(t, err)
	assert.False(t, in)
}

func TestRequiresUserAndAnime(t *testing.T) {
	favs, _, _ := newSets(t)
	ctx := context.Background()
	assert.Equal(t, codes.Unauthenticated, apperr.Code(favs.Add(ctx, "", "x")))
	assert.Equal(t, codes.InvalidArgument, apperr.Code(favs.Add(ctx, "u1", " ")))
	_, err := favs.Entries(ctx, "")
	assert.Equal(t, codes.Unauthenticated, apperr.Code(err))
}

func TestRejectsIDsThatChangeThePath(t *testing.T) {
	favs, wish, _ := newSets(t)
	ctx := context.Background()

	assert.Equal(t, codes.InvalidArgument, apperr.Code(favs.Add(ctx, "u1/wishlist/x", "y")))
	assert.Equal(t, codes.InvalidArgument, apperr.Code(favs.Add(ctx, "u1", "a/b")))
	_, err := favs.Toggle(ctx, "u1/wishlist/x", "y")
	assert.Equal(t, codes.InvalidArgument, apperr.Code(err))
	_, err = favs.Contains(ctx, "u1/x", "y")
	assert.Equal(t, codes.InvalidArgument, apperr.Code(err))
	_, err = favs.Entries(ctx, "u1/wishlist")
	assert.Equal(t, codes.InvalidArgument, apperr.Code(err))

	entries, err := wish.Entries(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
