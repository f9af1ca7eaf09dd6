package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/animestream/internal/platform/docstore"
)

func TestSetGetMerge(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "animes", "a", map[string]any{
		"title":     "A",
		"createdAt": docstore.ServerTimestamp,
	}))
	first, err := s.Get(ctx, "animes", "a")
	require.NoError(t, err)
	created := first.Data["createdAt"]
	require.NotNil(t, created)

	require.NoError(t, s.Set(ctx, "animes", "a", map[string]any{"title": "B"}, docstore.MergeAll))
	snap, err := s.Get(ctx, "animes", "a")
	require.NoError(t, err)
	assert.Equal(t, "B", snap.Data["title"])
	assert.Equal(t, created, snap.Data["createdAt"])

	require.NoError(t, s.Set(ctx, "animes", "a", map[string]any{"title": "C"}))
	snap, err = s.Get(ctx, "animes", "a")
	require.NoError(t, err)
	_, hasCreated := snap.Data["createdAt"]
	assert.False(t, hasCreated, "set without merge replaces the document")
}

func TestGetMissing(t *testing.T) {
	_, err := New().Get(context.Background(), "animes", "nope")
	require.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestUpdateTransforms(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "comments", "c", map[string]any{"likes": 0, "likedBy": []string{}}))

	require.NoError(t, s.Update(ctx, "comments", "c", []docstore.Update{
		{Path: "likes", Value: docstore.Increment(2)},
		{Path: "likedBy", Value: docstore.ArrayUnion("u1", "u2", "u1")},
	}))
	snap, _ := s.Get(ctx, "comments", "c")
	assert.EqualValues(t, 2, snap.Data["likes"])
	assert.Equal(t, []any{"u1", "u2"}, snap.Data["likedBy"])

	require.NoError(t, s.Update(ctx, "comments", "c", []docstore.Update{
		{Path: "likedBy", Value: docstore.ArrayRemove("u1")},
		{Path: "likes", Value: docstore.Increment(-1)},
	}))
	snap, _ = s.Get(ctx, "comments", "c")
	assert.EqualValues(t, 1, snap.Data["likes"])
	assert.Equal(t, []any{"u2"}, snap.Data["likedBy"])

	err := s.Update(ctx, "comments", "missing", []docstore.Update{{Path: "likes", Value: 1}})
	require.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestQueryFiltersAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Set(ctx, "animes", "a", map[string]any{"title": "Alpha", "genres": []string{"Action"}, "popularity": 10})
	_ = s.Set(ctx, "animes", "b", map[string]any{"title": "Beta", "genres": []string{"Action", "Drama"}, "popularity": 30})
	_ = s.Set(ctx, "animes", "c", map[string]any{"title": "Gamma", "genres": []string{"Drama"}, "popularity": 20})

	out, err := s.Query(ctx, docstore.NewQuery("animes").
		Where(docstore.ArrayContains("genres", "Action")).
		OrderBy("popularity", docstore.Desc))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ID)
	assert.Equal(t, "a", out[1].ID)

	out, err = s.Query(ctx, docstore.NewQuery("animes").
		Where(docstore.ArrayContainsAny("genres", []any{"Drama"})).
		OrderBy("popularity", docstore.Asc).WithLimit(1))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "c", out[0].ID)

	out, err = s.Query(ctx, docstore.NewQuery("animes").
		Where(docstore.GreaterOrEqual("title", "B"), docstore.Less("title", "B\uf8ff")))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ID)
}

func TestQueryNullEquality(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Set(ctx, "comments", "root", map[string]any{"parentId": nil})
	_ = s.Set(ctx, "comments", "reply", map[string]any{"parentId": "root"})
	_ = s.Set(ctx, "comments", "legacy", map[string]any{})

	out, err := s.Query(ctx, docstore.NewQuery("comments").Where(docstore.Equal("parentId", nil)))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "root", out[0].ID)
}

func TestQueryEnforcesIndexes(t *testing.T) {
	s := New(Options{EnforceIndexes: true})
	ctx := context.Background()
	_ = s.Set(ctx, "animes", "a", map[string]any{"featured": true, "popularity": 1})

	q := docstore.NewQuery("animes").Where(docstore.Equal("featured", true)).OrderBy("popularity", docstore.Desc)
	_, err := s.Query(ctx, q)
	require.ErrorIs(t, err, docstore.ErrMissingIndex)
	assert.Contains(t, err.Error(), "featured == true")

	// Single-field queries never need a composite index.
	_, err = s.Query(ctx, docstore.NewQuery("animes").Where(docstore.Equal("featured", true)))
	require.NoError(t, err)

	s.DeclareIndex(Index{Collection: "animes", Fields: []string{"popularity", "featured"}})
	out, err := s.Query(ctx, q)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestQueryRejectsWideArrayContainsAny(t *testing.T) {
	vals := make([]any, docstore.MaxArrayContainsAny+1)
	for i := range vals {
		vals[i] = i
	}
	_, err := New().Query(context.Background(), docstore.NewQuery("animes").Where(docstore.ArrayContainsAny("genres", vals)))
	require.Error(t, err)
}

func TestRunTransaction_AppliesOnlyOnSuccess(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Set(ctx, "comments", "c", map[string]any{"likes": 0})

	err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if _, err := tx.Get("comments", "c"); err != nil {
			return err
		}
		_ = tx.Update("comments", "c", []docstore.Update{{Path: "likes", Value: 5}})
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	snap, _ := s.Get(ctx, "comments", "c")
	assert.EqualValues(t, 0, snap.Data["likes"])

	err = s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return tx.Update("comments", "c", []docstore.Update{{Path: "likes", Value: 5}})
	})
	require.NoError(t, err)
	snap, _ = s.Get(ctx, "comments", "c")
	assert.EqualValues(t, 5, snap.Data["likes"])
}

func TestSubcollectionPaths(t *testing.T) {
	s := New()
	ctx := context.Background()
	fav := docstore.Path("users", "u1", "favorites")
	require.NoError(t, s.Set(ctx, fav, "a1", map[string]any{"animeId": "a1"}))
	assert.Equal(t, 1, s.Len(fav))
	assert.Equal(t, 0, s.Len(docstore.Path("users", "u2", "favorites")))
}
