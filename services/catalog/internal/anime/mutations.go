package anime

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/example/animestream/internal/platform/apperr"
	"github.com/example/animestream/internal/platform/docstore"
	"github.com/example/animestream/internal/platform/normalize"
	"github.com/example/animestream/services/catalog/internal/pages"
)

// CreateAnime stores a title under the slug of its name. Creating a title
// whose slug already exists merges into the stored document and keeps its
// original createdAt.
func (s *Service) CreateAnime(ctx context.Context, in AnimeInput) (Anime, error) {
	title := ""
	if in.Title != nil {
		title = strings.TrimSpace(*in.Title)
	}
	if title == "" {
		return Anime{}, apperr.InvalidArgument("title is required", map[string]string{"title": "required"})
	}
	id := normalize.Slugify(title)
	if id == "" {
		return Anime{}, apperr.InvalidArgument("title must contain letters or digits", map[string]string{"title": "no usable characters"})
	}

	data := sanitize(in, id, false)
	data["updatedAt"] = docstore.ServerTimestamp

	created := false
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		_, err := tx.Get(Collection, id)
		switch {
		case docstore.IsNotFound(err):
			created = true
			fresh := docstore.DeepCopyMap(data)
			fresh["createdAt"] = docstore.ServerTimestamp
			return tx.Set(Collection, id, fresh)
		case err != nil:
			return err
		}
		created = false
		return tx.Set(Collection, id, data, docstore.MergeAll)
	})
	if err != nil {
		s.log.Error("create anime failed", zap.String("op", "createAnime"), zap.String("anime_id", id), zap.Error(err))
		return Anime{}, apperr.Wrap("createAnime", err)
	}
	s.log.Info("anime saved", zap.String("anime_id", id), zap.Bool("created", created))
	s.inv.Invalidate(ctx, pages.AfterAnimeWrite(id)...)
	return s.get(ctx, id)
}

// UpdateAnime applies a partial patch. An episodes array in the patch
// replaces the stored one.
func (s *Service) UpdateAnime(ctx context.Context, id string, in AnimeInput) (Anime, error) {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return Anime{}, apperr.InvalidArgument("title cannot be empty", map[string]string{"title": "required"})
	}
	fields := sanitize(in, id, true)
	fields["updatedAt"] = docstore.ServerTimestamp

	if err := s.store.Update(ctx, Collection, id, toUpdates(fields)); err != nil {
		if docstore.IsNotFound(err) {
			return Anime{}, apperr.NotFound("anime not found")
		}
		s.log.Error("update anime failed", zap.String("op", "updateAnime"), zap.String("anime_id", id), zap.Error(err))
		return Anime{}, apperr.Wrap("updateAnime", err)
	}
	s.inv.Invalidate(ctx, pages.AfterAnimeWrite(id)...)
	return s.get(ctx, id)
}

// UpdateAnimeEpisode patches one episode by reading the whole document and
// writing the full episodes array back. It is not transactional: concurrent
// edits to different episodes of one title can overwrite each other.
func (s *Service) UpdateAnimeEpisode(ctx context.Context, animeID, episodeID string, in EpisodeInput) (Episode, error) {
	snap, err := s.store.Get(ctx, Collection, animeID)
	if err != nil {
		if docstore.IsNotFound(err) {
			return Episode{}, apperr.NotFound("anime not found")
		}
		s.log.Error("read anime for episode update failed", zap.String("op", "updateAnimeEpisode"), zap.String("anime_id", animeID), zap.Error(err))
		return Episode{}, apperr.Wrap("updateAnimeEpisode", err)
	}

	episodes := docstore.ToSlice(snap.Data["episodes"])
	idx := -1
	for i, raw := range episodes {
		if m, ok := raw.(map[string]any); ok && m["id"] == episodeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Episode{}, apperr.NotFound("episode not found")
	}
	merged := mergeEpisode(episodes[idx].(map[string]any), in)
	episodes[idx] = merged

	err = s.store.Update(ctx, Collection, animeID, []docstore.Update{
		{Path: "episodes", Value: episodes},
		{Path: "episodesCount", Value: len(episodes)},
		{Path: "updatedAt", Value: docstore.ServerTimestamp},
	})
	if err != nil {
		s.log.Error("write episode failed", zap.String("op", "updateAnimeEpisode"), zap.String("anime_id", animeID), zap.String("episode_id", episodeID), zap.Error(err))
		return Episode{}, apperr.Wrap("updateAnimeEpisode", err)
	}
	s.inv.Invalidate(ctx, pages.AfterAnimeWrite(animeID)...)
	return decodeEpisode(merged)
}

// AddEpisode appends an episode inside a transaction so concurrent appends
// are not lost.
func (s *Service) AddEpisode(ctx context.Context, animeID string, in EpisodeInput) (Episode, error) {
	ep := sanitizeEpisode(in, animeID)
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(Collection, animeID)
		if err != nil {
			return err
		}
		episodes := append(docstore.ToSlice(snap.Data["episodes"]), ep)
		return tx.Update(Collection, animeID, []docstore.Update{
			{Path: "episodes", Value: episodes},
			{Path: "episodesCount", Value: len(episodes)},
			{Path: "updatedAt", Value: docstore.ServerTimestamp},
		})
	})
	if err != nil {
		if docstore.IsNotFound(err) {
			return Episode{}, apperr.NotFound("anime not found")
		}
		s.log.Error("add episode failed", zap.String("op", "addEpisode"), zap.String("anime_id", animeID), zap.Error(err))
		return Episode{}, apperr.Wrap("addEpisode", err)
	}
	s.inv.Invalidate(ctx, pages.AfterAnimeWrite(animeID)...)
	return decodeEpisode(ep)
}

// DeleteAnime removes the document. Comments, favorites and wishlist
// entries referencing it are left in place.
func (s *Service) DeleteAnime(ctx context.Context, id string) error {
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, Collection, id); err != nil {
		s.log.Error("delete anime failed", zap.String("op", "deleteAnime"), zap.String("anime_id", id), zap.Error(err))
		return apperr.Wrap("deleteAnime", err)
	}
	s.inv.Invalidate(ctx, pages.AfterAnimeWrite(id)...)
	return nil
}

func toUpdates(fields map[string]any) []docstore.Update {
	out := make([]docstore.Update, 0, len(fields))
	for k, v := range fields {
		out = append(out, docstore.Update{Path: k, Value: v})
	}
	return out
}

func decodeEpisode(m map[string]any) (Episode, error) {
	var e Episode
	if err := (docstore.Snapshot{Data: m}).DataTo(&e); err != nil {
		return Episode{}, apperr.Wrap("decodeEpisode", err)
	}
	if e.Sources == nil {
		e.Sources = []VideoSource{}
	}
	return e, nil
}
