package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"github.com/example/animestream/internal/platform/apperr"
	"github.com/example/animestream/internal/platform/auth"
	"github.com/example/animestream/internal/platform/docstore/memstore"
)

var admin = auth.Session{UserID: "mod", Role: "admin"}

func TestBanAndUnban(t *testing.T) {
	store := memstore.New()
	m := NewModerator(store, zap.NewNop(), "owner")
	ctx := context.Background()

	banned, err := m.IsBanned(ctx, "troll")
	require.NoError(t, err)
	assert.False(t, banned)

	b, err := m.Ban(ctx, admin, "troll", "spam links")
	require.NoError(t, err)
	assert.True(t, b.Banned)
	assert.NotEmpty(t, b.BannedAt)
	assert.Equal(t, "mod", *b.BannedBy)
	assert.Equal(t, "spam links", *b.Reason)

	banned, err = m.IsBanned(ctx, "troll")
	require.NoError(t, err)
	assert.True(t, banned)

	_, err = m.Unban(ctx, admin, "troll")
	require.NoError(t, err)
	b, err = m.Status(ctx, "troll")
	require.NoError(t, err)
	assert.False(t, b.Banned)
	assert.Nil(t, b.BannedBy)
	assert.Empty(t, b.BannedAt)
}

func TestBanKeepsProfileFields(t *testing.T) {
	store := memstore.New()
	m := NewModerator(store, zap.NewNop(), "")
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, Collection, "u1", map[string]any{"displayName": "Ayu"}))

	b, err := m.Ban(ctx, admin, "u1", " ")
	require.NoError(t, err)
	assert.Nil(t, b.Reason)

	snap, err := store.Get(ctx, Collection, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ayu", snap.Data["displayName"])
}

func TestOwnerCannotBeBanned(t *testing.T) {
	store := memstore.New()
	m := NewModerator(store, zap.NewNop(), "owner")
	ctx := context.Background()

	_, err := m.Ban(ctx, admin, "owner", "coup")
	assert.Equal(t, codes.PermissionDenied, apperr.Code(err))
	assert.Zero(t, store.Len(Collection))

	_, err = m.Ban(ctx, admin, "mod", "oops")
	assert.Equal(t, codes.PermissionDenied, apperr.Code(err))
	_, err = m.Ban(ctx, auth.Session{UserID: "u2"}, "u3", "")
	assert.Equal(t, codes.PermissionDenied, apperr.Code(err))
	_, err = m.Ban(ctx, admin, "", "")
	assert.Equal(t, codes.InvalidArgument, apperr.Code(err))
}
