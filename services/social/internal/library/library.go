// Package library holds a viewer's per-user anime sets. Favorites and the
// wishlist are the same keyed set stored under different subcollections of
// users/{uid}; a membership document exists exactly while the anime is in
// the set.
package library

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/example/animestream/internal/platform/apperr"
	"github.com/example/animestream/internal/platform/docstore"
	"github.com/example/animestream/internal/platform/normalize"
)

const (
	Favorites = "favorites"
	Wishlist  = "wishlist"
)

const usersCollection = "users"

// Entry is one membership record.
type Entry struct {
	AnimeID string `json:"animeId"`
	AddedAt string `json:"addedAt"`
}

// Set is one named per-user set.
type Set struct {
	name       string
	store      docstore.Store
	log        *zap.Logger
	maxResults int
}

func NewSet(name string, store docstore.Store, log *zap.Logger, maxResults int) *Set {
	if maxResults <= 0 {
		maxResults = 500
	}
	return &Set{name: name, store: store, log: log.With(zap.String("set", name)), maxResults: maxResults}
}

func (s *Set) Name() string { return s.name }

func (s *Set) collection(userID string) string {
	return docstore.Path(usersCollection, userID, s.name)
}

// Contains reports whether animeID is in the user's set.
func (s *Set) Contains(ctx context.Context, userID, animeID string) (bool, error) {
	if err := check(userID, animeID); err != nil {
		return false, err
	}
	_, err := s.store.Get(ctx, s.collection(userID), animeID)
	switch {
	case docstore.IsNotFound(err):
		return false, nil
	case err != nil:
		return false, s.fail("contains", userID, animeID, err)
	}
	return true, nil
}

// Add puts animeID in the set. Adding a member again only refreshes addedAt.
func (s *Set) Add(ctx context.Context, userID, animeID string) error {
	if err := check(userID, animeID); err != nil {
		return err
	}
	err := s.store.Set(ctx, s.collection(userID), animeID, record(animeID))
	if err != nil {
		return s.fail("add", userID, animeID, err)
	}
	return nil
}

// Remove takes animeID out of the set; removing a non-member is a no-op.
func (s *Set) Remove(ctx context.Context, userID, animeID string) error {
	if err := check(userID, animeID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, s.collection(userID), animeID); err != nil {
		return s.fail("remove", userID, animeID, err)
	}
	return nil
}

// Toggle flips membership in one transaction and reports the new state.
func (s *Set) Toggle(ctx context.Context, userID, animeID string) (bool, error) {
	if err := check(userID, animeID); err != nil {
		return false, err
	}
	coll := s.collection(userID)
	var member bool
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		_, err := tx.Get(coll, animeID)
		switch {
		case docstore.IsNotFound(err):
			member = true
			return tx.Set(coll, animeID, record(animeID))
		case err != nil:
			return err
		}
		member = false
		return tx.Delete(coll, animeID)
	})
	if err != nil {
		return false, s.fail("toggle", userID, animeID, err)
	}
	return member, nil
}

// Entries lists the set, most recently added first.
func (s *Set) Entries(ctx context.Context, userID string) ([]Entry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Unauthenticated("sign in to see your " + s.name)
	}
	if strings.Contains(userID, "/") {
		return nil, apperr.InvalidArgument("malformed user id", map[string]string{"user_id": "must not contain '/'"})
	}
	q := docstore.NewQuery(s.collection(userID)).
		OrderBy("addedAt", docstore.Desc).
		WithLimit(s.maxResults)
	snaps, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, s.fail("entries", userID, "", err)
	}
	out := make([]Entry, 0, len(snaps))
	for _, snap := range snaps {
		id, _ := snap.Data["animeId"].(string)
		if id == "" {
			id = snap.ID
		}
		out = append(out, Entry{AnimeID: id, AddedAt: normalize.Timestamp(snap.Data["addedAt"])})
	}
	return out, nil
}

// IDs is Entries without the timestamps.
func (s *Set) IDs(ctx context.Context, userID string) ([]string, error) {
	entries, err := s.Entries(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.AnimeID
	}
	return ids, nil
}

func (s *Set) fail(op, userID, animeID string, err error) error {
	s.log.Error("library operation failed", zap.String("op", op), zap.String("user_id", userID), zap.String("anime_id", animeID), zap.Error(err))
	return apperr.Wrap(s.name+"."+op, err)
}

func record(animeID string) map[string]any {
	return map[string]any{"animeId": animeID, "addedAt": docstore.ServerTimestamp}
}

// check rejects ids that would address a different document path.
func check(userID, animeID string) error {
	if strings.TrimSpace(userID) == "" {
		return apperr.Unauthenticated("sign in to manage your lists")
	}
	violations := map[string]string{}
	if strings.Contains(userID, "/") {
		violations["user_id"] = "must not contain '/'"
	}
	switch {
	case strings.TrimSpace(animeID) == "":
		violations["anime_id"] = "required"
	case strings.Contains(animeID, "/"):
		violations["anime_id"] = "must not contain '/'"
	}
	if len(violations) > 0 {
		return apperr.InvalidArgument("invalid list entry", violations)
	}
	return nil
}
