package comments

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"github.com/example/animestream/internal/platform/apperr"
	"github.com/example/animestream/internal/platform/auth"
	"github.com/example/animestream/internal/platform/docstore/memstore"
)

type banList map[string]bool

func (b banList) IsBanned(_ context.Context, uid string) (bool, error) {
	if uid == "broken" {
		return false, errors.New("lookup failed")
	}
	return b[uid], nil
}

var (
	ayu   = auth.Session{UserID: "ayu", DisplayName: "Ayu", Username: "ayu"}
	ren   = auth.Session{UserID: "ren", DisplayName: "Ren"}
	admin = auth.Session{UserID: "mod", Role: "admin"}
)

func newService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	clock := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store := memstore.New(memstore.Options{Now: func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}})
	svc := NewService(store, zap.NewNop(), Options{MaxLength: 50, Bans: banList{"troll": true}})
	return svc, store
}

func post(t *testing.T, svc *Service, who auth.Session, text string, parent *string) Comment {
	t.Helper()
	c, err := svc.Add(context.Background(), who, NewComment{AnimeID: "frieren", EpisodeID: "ep-1", Text: text, ParentID: parent})
	require.NoError(t, err)
	return c
}

func TestReact(t *testing.T) {
	liked, disliked := React(nil, nil, "u", Like)
	assert.Equal(t, []string{"u"}, liked)
	assert.Empty(t, disliked)

	liked, disliked = React(liked, disliked, "u", Like)
	assert.Empty(t, liked)
	assert.Empty(t, disliked)

	liked, disliked = React([]string{"a", "u"}, nil, "u", Dislike)
	assert.Equal(t, []string{"a"}, liked)
	assert.Equal(t, []string{"u"}, disliked)

	liked, disliked = React([]string{"u"}, []string{"u"}, "u", Like)
	assert.Empty(t, liked)
	assert.Empty(t, disliked)
}

func TestReactionOf(t *testing.T) {
	c := Comment{LikedBy: []string{"a"}, DislikedBy: []string{"b"}}
	assert.Equal(t, Like, c.ReactionOf("a"))
	assert.Equal(t, Dislike, c.ReactionOf("b"))
	assert.Equal(t, Reaction(0), c.ReactionOf("c"))
	assert.Equal(t, "like", c.ReactionOf("a").String())
	assert.Equal(t, "none", c.ReactionOf("c").String())
}

func TestAddStartsClean(t *testing.T) {
	svc, _ := newService(t)
	c := post(t, svc, ayu, "  Himmel would have done the same.  ", nil)

	assert.Equal(t, "Himmel would have done the same.", c.Text)
	assert.Equal(t, "ayu", c.UserID)
	require.NotNil(t, c.UserDisplayName)
	assert.Equal(t, "Ayu", *c.UserDisplayName)
	assert.Nil(t, c.UserPhotoURL)
	assert.Nil(t, c.ParentID)
	assert.Zero(t, c.Likes)
	assert.Zero(t, c.ReplyCount)
	assert.Empty(t, c.LikedBy)
	assert.False(t, c.IsEdited)
	assert.NotEmpty(t, c.CreatedAt)
	assert.Equal(t, c.CreatedAt, c.UpdatedAt)
}

func TestAddRejects(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	cases := []struct {
		name string
		who  auth.Session
		in   NewComment
		code codes.Code
	}{
		{"anonymous", auth.Session{}, NewComment{AnimeID: "a", EpisodeID: "e", Text: "hi"}, codes.Unauthenticated},
		{"blank", ayu, NewComment{AnimeID: "a", EpisodeID: "e", Text: "   "}, codes.InvalidArgument},
		{"too long", ayu, NewComment{AnimeID: "a", EpisodeID: "e", Text: strings.Repeat("x", 51)}, codes.InvalidArgument},
		{"no episode", ayu, NewComment{AnimeID: "a", Text: "hi"}, codes.InvalidArgument},
		{"banned", auth.Session{UserID: "troll"}, NewComment{AnimeID: "a", EpisodeID: "e", Text: "hi"}, codes.PermissionDenied},
		{"ban lookup fails", auth.Session{UserID: "broken"}, NewComment{AnimeID: "a", EpisodeID: "e", Text: "hi"}, codes.Internal},
		{"missing parent", ayu, NewComment{AnimeID: "a", EpisodeID: "e", Text: "hi", ParentID: ptr("nope")}, codes.NotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Add(ctx, tc.who, tc.in)
			assert.Equal(t, tc.code, apperr.Code(err))
		})
	}

	_, err := svc.Add(ctx, ayu, NewComment{AnimeID: "a", EpisodeID: "e", Text: strings.Repeat("é", 50)})
	assert.NoError(t, err)
}

func TestReplyMustShareEpisode(t *testing.T) {
	svc, _ := newService(t)
	root := post(t, svc, ayu, "first", nil)
	_, err := svc.Add(context.Background(), ren, NewComment{AnimeID: "frieren", EpisodeID: "ep-2", Text: "wrong ep", ParentID: &root.ID})
	assert.Equal(t, codes.InvalidArgument, apperr.Code(err))
}

func TestRepliesCountAndOrder(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	root := post(t, svc, ayu, "root", nil)
	r1 := post(t, svc, ren, "reply one", &root.ID)
	r2 := post(t, svc, ayu, "reply two", &root.ID)

	got, err := svc.Get(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ReplyCount)

	replies, err := svc.ListReplies(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, r1.ID, replies[0].ID)
	assert.Equal(t, r2.ID, replies[1].ID)

	top, err := svc.ListTopLevel(ctx, "frieren", "ep-1")
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, root.ID, top[0].ID)
}

func TestTopLevelNewestFirst(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	older := post(t, svc, ayu, "older", nil)
	newer := post(t, svc, ren, "newer", nil)
	_, err := svc.Add(ctx, ayu, NewComment{AnimeID: "frieren", EpisodeID: "ep-2", Text: "elsewhere"})
	require.NoError(t, err)

	top, err := svc.ListTopLevel(ctx, "frieren", "ep-1")
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, newer.ID, top[0].ID)
	assert.Equal(t, older.ID, top[1].ID)
}

func TestToggleKeepsCountersInSync(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	c := post(t, svc, ayu, "vote on me", nil)

	c, err := svc.ToggleLike(ctx, c.ID, "ren")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Likes)
	assert.Equal(t, Like, c.ReactionOf("ren"))

	c, err = svc.ToggleDislike(ctx, c.ID, "ren")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Likes)
	assert.Equal(t, 1, c.Dislikes)
	assert.Equal(t, []string{"ren"}, c.DislikedBy)

	c, err = svc.ToggleLike(ctx, c.ID, "ayu")
	require.NoError(t, err)
	c, err = svc.ToggleDislike(ctx, c.ID, "ren")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Likes)
	assert.Equal(t, 0, c.Dislikes)
	assert.Equal(t, Reaction(0), c.ReactionOf("ren"))
	assert.Equal(t, len(c.LikedBy), c.Likes)
	assert.Equal(t, len(c.DislikedBy), c.Dislikes)

	_, err = svc.ToggleLike(ctx, "missing", "ren")
	assert.Equal(t, codes.NotFound, apperr.Code(err))
	_, err = svc.ToggleLike(ctx, c.ID, "")
	assert.Equal(t, codes.Unauthenticated, apperr.Code(err))
}

func TestEditAuthorOnly(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	c := post(t, svc, ayu, "typo hree", nil)

	_, err := svc.Edit(ctx, ren, c.ID, "hijacked")
	assert.Equal(t, codes.PermissionDenied, apperr.Code(err))
	_, err = svc.Edit(ctx, admin, c.ID, "moderated")
	assert.Equal(t, codes.PermissionDenied, apperr.Code(err))

	edited, err := svc.Edit(ctx, ayu, c.ID, "typo here")
	require.NoError(t, err)
	assert.Equal(t, "typo here", edited.Text)
	assert.True(t, edited.IsEdited)
	assert.Equal(t, c.CreatedAt, edited.CreatedAt)
	assert.Greater(t, edited.UpdatedAt, c.UpdatedAt)

	_, err = svc.Edit(ctx, ayu, c.ID, "")
	assert.Equal(t, codes.InvalidArgument, apperr.Code(err))
}

func TestDeleteWithRepliesLeavesTombstone(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	root := post(t, svc, ayu, "root", nil)
	post(t, svc, ren, "reply", &root.ID)

	_, err := svc.Delete(ctx, ren, root.ID)
	assert.Equal(t, codes.PermissionDenied, apperr.Code(err))

	soft, err := svc.Delete(ctx, ayu, root.ID)
	require.NoError(t, err)
	assert.True(t, soft)

	got, err := svc.Get(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, Tombstone, got.Text)
	assert.True(t, got.IsDeleted)
	assert.Equal(t, 1, got.ReplyCount)

	top, err := svc.ListTopLevel(ctx, "frieren", "ep-1")
	require.NoError(t, err)
	assert.Empty(t, top)
	replies, err := svc.ListReplies(ctx, root.ID)
	require.NoError(t, err)
	assert.Len(t, replies, 1)

	_, err = svc.ToggleLike(ctx, root.ID, "ren")
	assert.Equal(t, codes.FailedPrecondition, apperr.Code(err))
	_, err = svc.Edit(ctx, ayu, root.ID, "back")
	assert.Equal(t, codes.FailedPrecondition, apperr.Code(err))
}

func TestDeleteLeafDecrementsParent(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	root := post(t, svc, ayu, "root", nil)
	reply := post(t, svc, ren, "reply", &root.ID)
	require.Equal(t, 2, store.Len(Collection))

	soft, err := svc.Delete(ctx, admin, reply.ID)
	require.NoError(t, err)
	assert.False(t, soft)
	assert.Equal(t, 1, store.Len(Collection))

	got, err := svc.Get(ctx, root.ID)
	require.NoError(t, err)
	assert.Zero(t, got.ReplyCount)

	_, err = svc.Delete(ctx, ayu, reply.ID)
	assert.Equal(t, codes.NotFound, apperr.Code(err))
}

func ptr[T any](v T) *T { return &v }
