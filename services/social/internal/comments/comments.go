// Package comments is the episode discussion engine: threaded comments with
// like/dislike toggles, author-only edits, and deletes that keep a tombstone
// while replies still hang off a comment.
package comments

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"github.com/example/animestream/internal/platform/apperr"
	"github.com/example/animestream/internal/platform/auth"
	"github.com/example/animestream/internal/platform/docstore"
	"github.com/example/animestream/internal/platform/normalize"
)

const Collection = "comments"

// Tombstone replaces the text of a comment deleted while it had replies.
const Tombstone = "[This comment has been deleted]"

const DefaultMaxLength = 2000

type Comment struct {
	ID              string   `json:"id"`
	AnimeID         string   `json:"animeId"`
	EpisodeID       string   `json:"episodeId"`
	UserID          string   `json:"userId"`
	UserDisplayName *string  `json:"userDisplayName"`
	Username        *string  `json:"username"`
	UserPhotoURL    *string  `json:"userPhotoURL"`
	Text            string   `json:"text"`
	ParentID        *string  `json:"parentId"`
	Likes           int      `json:"likes"`
	Dislikes        int      `json:"dislikes"`
	LikedBy         []string `json:"likedBy"`
	DislikedBy      []string `json:"dislikedBy"`
	ReplyCount      int      `json:"replyCount"`
	IsEdited        bool     `json:"isEdited"`
	IsDeleted       bool     `json:"isDeleted"`
	CreatedAt       string   `json:"createdAt"`
	UpdatedAt       string   `json:"updatedAt"`
}

// ReactionOf reports how user reacted to c; zero means no reaction.
func (c Comment) ReactionOf(user string) Reaction {
	switch {
	case contains(c.LikedBy, user):
		return Like
	case contains(c.DislikedBy, user):
		return Dislike
	}
	return 0
}

// NewComment is a comment or reply as posted.
type NewComment struct {
	AnimeID   string  `json:"animeId"`
	EpisodeID string  `json:"episodeId"`
	Text      string  `json:"text"`
	ParentID  *string `json:"parentId"`
}

// BanChecker reports whether a user may no longer post.
type BanChecker interface {
	IsBanned(ctx context.Context, userID string) (bool, error)
}

type Options struct {
	MaxLength  int
	MaxResults int
	Bans       BanChecker
}

type Service struct {
	store      docstore.Store
	log        *zap.Logger
	maxLength  int
	maxResults int
	bans       BanChecker
}

func NewService(store docstore.Store, log *zap.Logger, opts Options) *Service {
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultMaxLength
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 500
	}
	return &Service{store: store, log: log, maxLength: opts.MaxLength, maxResults: opts.MaxResults, bans: opts.Bans}
}

// Add posts a comment, or a reply when in.ParentID is set. A reply bumps
// the parent's replyCount in a second write. The stored record is returned
// with server timestamps resolved.
func (s *Service) Add(ctx context.Context, author auth.Session, in NewComment) (Comment, error) {
	if strings.TrimSpace(author.UserID) == "" {
		return Comment{}, apperr.Unauthenticated("sign in to comment")
	}
	text, err := s.checkText(in.Text)
	if err != nil {
		return Comment{}, err
	}
	in.AnimeID = strings.TrimSpace(in.AnimeID)
	in.EpisodeID = strings.TrimSpace(in.EpisodeID)
	if in.AnimeID == "" || in.EpisodeID == "" {
		return Comment{}, apperr.InvalidArgument("anime and episode are required", map[string]string{"animeId": "required", "episodeId": "required"})
	}
	if err := s.checkBan(ctx, author.UserID); err != nil {
		return Comment{}, err
	}

	var parentID any
	if in.ParentID != nil && strings.TrimSpace(*in.ParentID) != "" {
		parent, err := s.Get(ctx, strings.TrimSpace(*in.ParentID))
		if err != nil {
			return Comment{}, err
		}
		if parent.AnimeID != in.AnimeID || parent.EpisodeID != in.EpisodeID {
			return Comment{}, apperr.InvalidArgument("reply must target a comment on the same episode", map[string]string{"parentId": "different episode"})
		}
		parentID = parent.ID
	}

	data := map[string]any{
		"animeId":         in.AnimeID,
		"episodeId":       in.EpisodeID,
		"userId":          author.UserID,
		"userDisplayName": nonEmpty(author.DisplayName),
		"username":        nonEmpty(author.Username),
		"userPhotoURL":    nonEmpty(author.PhotoURL),
		"text":            text,
		"parentId":        parentID,
		"likes":           0,
		"dislikes":        0,
		"likedBy":         []any{},
		"dislikedBy":      []any{},
		"replyCount":      0,
		"isEdited":        false,
		"isDeleted":       false,
		"createdAt":       docstore.ServerTimestamp,
		"updatedAt":       docstore.ServerTimestamp,
	}
	id, err := s.store.Add(ctx, Collection, data)
	if err != nil {
		s.log.Error("add comment failed", zap.String("op", "addComment"), zap.String("anime_id", in.AnimeID), zap.String("episode_id", in.EpisodeID), zap.Error(err))
		return Comment{}, apperr.Wrap("addComment", err)
	}

	if parentID != nil {
		pid := parentID.(string)
		err := s.store.Update(ctx, Collection, pid, []docstore.Update{{Path: "replyCount", Value: docstore.Increment(1)}})
		if err != nil {
			s.log.Error("increment reply count failed", zap.String("op", "addComment"), zap.String("comment_id", id), zap.String("parent_id", pid), zap.Error(err))
			return Comment{}, apperr.Wrap("addComment", err)
		}
	}
	return s.Get(ctx, id)
}

// ToggleLike and ToggleDislike flip the user's reaction inside a
// transaction and return the comment as re-read afterwards.
func (s *Service) ToggleLike(ctx context.Context, id, userID string) (Comment, error) {
	return s.toggle(ctx, id, userID, Like)
}

func (s *Service) ToggleDislike(ctx context.Context, id, userID string) (Comment, error) {
	return s.toggle(ctx, id, userID, Dislike)
}

func (s *Service) toggle(ctx context.Context, id, userID string, r Reaction) (Comment, error) {
	if strings.TrimSpace(userID) == "" {
		return Comment{}, apperr.Unauthenticated("sign in to react")
	}
	op := "toggleLike"
	if r == Dislike {
		op = "toggleDislike"
	}
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(Collection, id)
		if err != nil {
			return err
		}
		if deleted, _ := snap.Data["isDeleted"].(bool); deleted {
			return apperr.FailedPrecondition("COMMENT_DELETED", "cannot react to a deleted comment")
		}
		liked, disliked := React(stringSet(snap.Data["likedBy"]), stringSet(snap.Data["dislikedBy"]), userID, r)
		return tx.Update(Collection, id, []docstore.Update{
			{Path: "likedBy", Value: toAny(liked)},
			{Path: "likes", Value: len(liked)},
			{Path: "dislikedBy", Value: toAny(disliked)},
			{Path: "dislikes", Value: len(disliked)},
		})
	})
	if err != nil {
		return Comment{}, s.fail(op, id, err)
	}
	return s.Get(ctx, id)
}

// Edit replaces the text of the caller's own comment.
func (s *Service) Edit(ctx context.Context, who auth.Session, id, text string) (Comment, error) {
	text, err := s.checkText(text)
	if err != nil {
		return Comment{}, err
	}
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(Collection, id)
		if err != nil {
			return err
		}
		if owner, _ := snap.Data["userId"].(string); owner != who.UserID || who.UserID == "" {
			return apperr.PermissionDenied("you can only edit your own comments")
		}
		if deleted, _ := snap.Data["isDeleted"].(bool); deleted {
			return apperr.FailedPrecondition("COMMENT_DELETED", "cannot edit a deleted comment")
		}
		return tx.Update(Collection, id, []docstore.Update{
			{Path: "text", Value: text},
			{Path: "isEdited", Value: true},
			{Path: "updatedAt", Value: docstore.ServerTimestamp},
		})
	})
	if err != nil {
		return Comment{}, s.fail("editComment", id, err)
	}
	return s.Get(ctx, id)
}

// Delete removes the author's comment; admins may delete any comment. A
// comment with replies becomes a tombstone that still counts towards its
// parent. Otherwise the document is removed and the parent's replyCount
// is decremented. soft reports which of the two happened.
func (s *Service) Delete(ctx context.Context, who auth.Session, id string) (soft bool, err error) {
	var parentID string
	hard := false
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		hard, parentID = false, ""
		snap, err := tx.Get(Collection, id)
		if err != nil {
			return err
		}
		owner, _ := snap.Data["userId"].(string)
		if who.UserID == "" || (owner != who.UserID && !who.IsAdmin()) {
			return apperr.PermissionDenied("you can only delete your own comments")
		}
		replies, _ := docstore.ToFloat(snap.Data["replyCount"])
		if replies > 0 {
			if deleted, _ := snap.Data["isDeleted"].(bool); deleted {
				return nil
			}
			return tx.Update(Collection, id, []docstore.Update{
				{Path: "text", Value: Tombstone},
				{Path: "isDeleted", Value: true},
				{Path: "isEdited", Value: true},
				{Path: "updatedAt", Value: docstore.ServerTimestamp},
			})
		}
		parentID, _ = snap.Data["parentId"].(string)
		hard = true
		return tx.Delete(Collection, id)
	})
	if err != nil {
		return false, s.fail("deleteComment", id, err)
	}
	if !hard {
		return true, nil
	}

	if parentID != "" {
		err := s.store.Update(ctx, Collection, parentID, []docstore.Update{{Path: "replyCount", Value: docstore.Increment(-1)}})
		switch {
		case docstore.IsNotFound(err):
			s.log.Warn("parent of deleted reply is gone", zap.String("op", "deleteComment"), zap.String("comment_id", id), zap.String("parent_id", parentID))
		case err != nil:
			s.log.Error("decrement reply count failed", zap.String("op", "deleteComment"), zap.String("comment_id", id), zap.String("parent_id", parentID), zap.Error(err))
			return false, apperr.Wrap("deleteComment", err)
		}
	}
	return false, nil
}

func (s *Service) Get(ctx context.Context, id string) (Comment, error) {
	if strings.TrimSpace(id) == "" {
		return Comment{}, apperr.InvalidArgument("comment id is required", map[string]string{"comment_id": "required"})
	}
	snap, err := s.store.Get(ctx, Collection, id)
	if err != nil {
		return Comment{}, s.fail("getComment", id, err)
	}
	return decode(snap)
}

// ListTopLevel returns an episode's top-level comments, newest first.
// Tombstones are left out.
func (s *Service) ListTopLevel(ctx context.Context, animeID, episodeID string) ([]Comment, error) {
	q := docstore.NewQuery(Collection).
		Where(
			docstore.Equal("animeId", animeID),
			docstore.Equal("episodeId", episodeID),
			docstore.Equal("parentId", nil),
		).
		OrderBy("createdAt", docstore.Desc).
		WithLimit(s.maxResults)
	return s.list(ctx, "listComments", q)
}

// ListReplies returns the replies to a comment in reading order, oldest
// first. Tombstones are left out.
func (s *Service) ListReplies(ctx context.Context, parentID string) ([]Comment, error) {
	q := docstore.NewQuery(Collection).
		Where(docstore.Equal("parentId", parentID)).
		OrderBy("createdAt", docstore.Asc).
		WithLimit(s.maxResults)
	return s.list(ctx, "listReplies", q)
}

func (s *Service) list(ctx context.Context, op string, q docstore.Query) ([]Comment, error) {
	snaps, err := s.store.Query(ctx, q)
	if err != nil {
		s.log.Error("list comments failed", zap.String("op", op), zap.String("query", q.String()), zap.Error(err))
		if docstore.IsMissingIndex(err) {
			return nil, apperr.MissingIndex(op, q.String())
		}
		return nil, apperr.Wrap(op, err)
	}
	out := make([]Comment, 0, len(snaps))
	for _, snap := range snaps {
		c, err := decode(snap)
		if err != nil {
			return nil, err
		}
		if !c.IsDeleted {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) checkText(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", apperr.InvalidArgument("comment text is required", map[string]string{"text": "required"})
	}
	if utf8.RuneCountInString(text) > s.maxLength {
		return "", apperr.InvalidArgument("comment is too long", map[string]string{"text": "too long"})
	}
	return text, nil
}

func (s *Service) checkBan(ctx context.Context, userID string) error {
	if s.bans == nil {
		return nil
	}
	banned, err := s.bans.IsBanned(ctx, userID)
	if err != nil {
		s.log.Error("ban lookup failed", zap.String("op", "addComment"), zap.String("user_id", userID), zap.Error(err))
		return apperr.Wrap("addComment", err)
	}
	if banned {
		return apperr.PermissionDenied("your account is not allowed to comment")
	}
	return nil
}

// fail maps a store error for op on comment id, logging unexpected ones.
func (s *Service) fail(op, id string, err error) error {
	if docstore.IsNotFound(err) {
		return apperr.NotFound("comment not found")
	}
	if apperr.Code(err) != codes.Unknown {
		return err
	}
	s.log.Error("comment operation failed", zap.String("op", op), zap.String("comment_id", id), zap.Error(err))
	return apperr.Wrap(op, err)
}

func decode(snap docstore.Snapshot) (Comment, error) {
	data := make(map[string]any, len(snap.Data))
	for k, v := range snap.Data {
		if k != "createdAt" && k != "updatedAt" {
			data[k] = v
		}
	}
	var c Comment
	if err := (docstore.Snapshot{ID: snap.ID, Data: data}).DataTo(&c); err != nil {
		return Comment{}, apperr.Wrap("decodeComment", err)
	}
	c.ID = snap.ID
	c.CreatedAt = normalize.Timestamp(snap.Data["createdAt"])
	c.UpdatedAt = normalize.Timestamp(snap.Data["updatedAt"])
	if c.LikedBy == nil {
		c.LikedBy = []string{}
	}
	if c.DislikedBy == nil {
		c.DislikedBy = []string{}
	}
	return c, nil
}

func stringSet(v any) []string {
	raw := docstore.ToSlice(v)
	out := make([]string, 0, len(raw))
	for _, x := range raw {
		if s, ok := x.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func nonEmpty(s string) any {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}
