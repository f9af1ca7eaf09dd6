package anime

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/example/animestream/internal/platform/apperr"
	"github.com/example/animestream/internal/platform/docstore"
	"github.com/example/animestream/internal/platform/rendercache"
)

// DefaultSimilarLimit is used when the caller passes a non-positive limit.
const DefaultSimilarLimit = 6

// Enricher overlays external catalog metadata onto a stored record.
type Enricher interface {
	Enrich(ctx context.Context, a Anime) (Anime, error)
}

type Options struct {
	// MaxResults caps "unbounded" listings and fallback scans.
	MaxResults  int
	Enricher    Enricher
	Invalidator rendercache.Invalidator
}

type Service struct {
	store      docstore.Store
	log        *zap.Logger
	maxResults int
	enricher   Enricher
	inv        rendercache.Invalidator
}

func NewService(store docstore.Store, log *zap.Logger, opts Options) *Service {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.Invalidator == nil {
		opts.Invalidator = rendercache.Nop{}
	}
	return &Service{
		store:      store,
		log:        log,
		maxResults: opts.MaxResults,
		enricher:   opts.Enricher,
		inv:        opts.Invalidator,
	}
}

// GetAllAnimes runs the listing query. A missing composite index is
// surfaced with a diagnostic naming the filter and sort combination.
func (s *Service) GetAllAnimes(ctx context.Context, count int, f Filters) ([]Anime, error) {
	plan, err := BuildQuery(count, f, s.maxResults)
	if err != nil {
		return nil, apperr.InvalidArgument(err.Error(), map[string]string{"sort": err.Error()})
	}
	if plan.Empty {
		return []Anime{}, nil
	}
	snaps, err := s.store.Query(ctx, plan.Query)
	if err != nil {
		if docstore.IsMissingIndex(err) {
			s.log.Error("composite index required", zap.String("op", "getAllAnimes"), zap.String("query", plan.Query.String()), zap.Error(err))
		} else {
			s.log.Error("list animes failed", zap.String("op", "getAllAnimes"), zap.Error(err))
		}
		return nil, apperr.Wrap("getAllAnimes", err)
	}
	return decodeAll(snaps)
}

// GetFeaturedAnimes lists featured titles by popularity. Without the
// (featured, popularity) index it falls back to the featured filter alone,
// ordered by last update in process.
func (s *Service) GetFeaturedAnimes(ctx context.Context, count int) ([]Anime, error) {
	featured := true
	out, err := s.GetAllAnimes(ctx, count, Filters{Featured: &featured})
	if err == nil || !apperr.IsMissingIndex(err) {
		return out, err
	}
	s.log.Warn("featured query degraded to fallback", zap.String("op", "getFeaturedAnimes"))

	snaps, err := s.store.Query(ctx, docstore.NewQuery(Collection).
		Where(docstore.Equal("featured", true)).
		WithLimit(s.maxResults))
	if err != nil {
		s.log.Error("featured fallback failed", zap.String("op", "getFeaturedAnimes"), zap.Error(err))
		return nil, apperr.Wrap("getFeaturedAnimes", err)
	}
	list, err := decodeAll(snaps)
	if err != nil {
		return nil, apperr.Wrap("getFeaturedAnimes", err)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].UpdatedAt > list[j].UpdatedAt })
	return truncate(list, count, s.maxResults), nil
}

// SearchAnimes matches titles by prefix. When the prefix query cannot run
// or finds nothing, it scans a widened unfiltered page and ranks exact,
// then prefix, then substring matches, each tier by popularity.
func (s *Service) SearchAnimes(ctx context.Context, term string, count int) ([]Anime, error) {
	if strings.TrimSpace(term) == "" || count == 0 {
		return []Anime{}, nil
	}
	out, err := s.GetAllAnimes(ctx, count, Filters{SearchQuery: term})
	switch {
	case err == nil && len(out) > 0:
		return out, nil
	case err != nil && !apperr.IsMissingIndex(err):
		return nil, err
	}
	if err != nil {
		s.log.Warn("search query degraded to fallback", zap.String("op", "searchAnimes"), zap.String("term", term))
	}

	snaps, err := s.store.Query(ctx, docstore.NewQuery(Collection).WithLimit(s.maxResults))
	if err != nil {
		s.log.Error("search fallback failed", zap.String("op", "searchAnimes"), zap.Error(err))
		return nil, apperr.Wrap("searchAnimes", err)
	}
	all, err := decodeAll(snaps)
	if err != nil {
		return nil, apperr.Wrap("searchAnimes", err)
	}
	return truncate(RankByRelevance(all, term), count, s.maxResults), nil
}

// RankByRelevance keeps titles containing term (case-insensitive) ordered
// exact > prefix > substring, and by popularity descending within a tier.
func RankByRelevance(items []Anime, term string) []Anime {
	needle := strings.ToLower(strings.TrimSpace(term))
	tier := func(title string) int {
		t := strings.ToLower(strings.TrimSpace(title))
		switch {
		case t == needle:
			return 0
		case strings.HasPrefix(t, needle):
			return 1
		case strings.Contains(t, needle):
			return 2
		}
		return -1
	}
	type ranked struct {
		a    Anime
		tier int
	}
	var hits []ranked
	for _, a := range items {
		if t := tier(a.Title); t >= 0 {
			hits = append(hits, ranked{a: a, tier: t})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].tier != hits[j].tier {
			return hits[i].tier < hits[j].tier
		}
		return popularityOf(hits[i].a) > popularityOf(hits[j].a)
	})
	out := make([]Anime, len(hits))
	for i, h := range hits {
		out[i] = h.a
	}
	return out
}

// GetAnime reads one title and overlays external metadata when it carries
// an external id. Enrichment failures never fail the read.
func (s *Service) GetAnime(ctx context.Context, id string) (Anime, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return Anime{}, err
	}
	if s.enricher == nil || a.MalID == nil {
		return a, nil
	}
	enriched, err := s.enricher.Enrich(ctx, a)
	if err != nil {
		s.log.Warn("enrichment failed; serving stored record", zap.String("op", "getAnime"), zap.String("anime_id", id), zap.Int("mal_id", *a.MalID), zap.Error(err))
		return a, nil
	}
	return enriched, nil
}

// GetStored reads one title without enrichment.
func (s *Service) GetStored(ctx context.Context, id string) (Anime, error) {
	return s.get(ctx, id)
}

func (s *Service) get(ctx context.Context, id string) (Anime, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Anime{}, apperr.InvalidArgument("anime id is required", map[string]string{"anime_id": "required"})
	}
	snap, err := s.store.Get(ctx, Collection, id)
	if err != nil {
		if docstore.IsNotFound(err) {
			return Anime{}, apperr.NotFound("anime not found")
		}
		s.log.Error("get anime failed", zap.String("op", "getAnime"), zap.String("anime_id", id), zap.Error(err))
		return Anime{}, apperr.Wrap("getAnime", err)
	}
	a, err := decode(snap)
	if err != nil {
		return Anime{}, apperr.Wrap("getAnime", err)
	}
	return a, nil
}

// GetEpisode returns a title together with one of its episodes.
func (s *Service) GetEpisode(ctx context.Context, animeID, episodeID string) (Anime, Episode, error) {
	a, err := s.get(ctx, animeID)
	if err != nil {
		return Anime{}, Episode{}, err
	}
	for _, e := range a.Episodes {
		if e.ID == episodeID {
			return a, e, nil
		}
	}
	return Anime{}, Episode{}, apperr.NotFound("episode not found")
}

// GetSimilarAnimes recommends titles sharing any of up to ten genres,
// most popular first, excluding animeID itself. Without the needed index it
// matches only the first genre; with no genres it returns the most popular
// titles overall.
func (s *Service) GetSimilarAnimes(ctx context.Context, animeID string, genres []string, limit int) ([]Anime, error) {
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}
	genres = dedupe(append([]string(nil), genres...))
	if len(genres) > docstore.MaxArrayContainsAny {
		genres = genres[:docstore.MaxArrayContainsAny]
	}

	var q docstore.Query
	if len(genres) == 0 {
		q = docstore.NewQuery(Collection).OrderBy("popularity", docstore.Desc).WithLimit(limit + 1)
	} else {
		q = docstore.NewQuery(Collection).
			Where(docstore.ArrayContainsAny("genres", stringsToAny(genres))).
			OrderBy("popularity", docstore.Desc).
			WithLimit(limit + 1)
	}

	snaps, err := s.store.Query(ctx, q)
	if err != nil && docstore.IsMissingIndex(err) && len(genres) > 0 {
		s.log.Warn("similar query degraded to first genre", zap.String("op", "getSimilarAnimes"), zap.String("anime_id", animeID))
		snaps, err = s.store.Query(ctx, docstore.NewQuery(Collection).
			Where(docstore.ArrayContains("genres", genres[0])).
			WithLimit(s.maxResults))
		if err == nil {
			list, derr := decodeAll(snaps)
			if derr != nil {
				return nil, apperr.Wrap("getSimilarAnimes", derr)
			}
			sort.SliceStable(list, func(i, j int) bool { return popularityOf(list[i]) > popularityOf(list[j]) })
			return excludeSelf(list, animeID, limit), nil
		}
	}
	if err != nil {
		s.log.Error("similar query failed", zap.String("op", "getSimilarAnimes"), zap.String("anime_id", animeID), zap.Error(err))
		return nil, apperr.Wrap("getSimilarAnimes", err)
	}
	list, err := decodeAll(snaps)
	if err != nil {
		return nil, apperr.Wrap("getSimilarAnimes", err)
	}
	return excludeSelf(list, animeID, limit), nil
}

// CountAnimes reports the number of titles, and how many are featured, up
// to the listing cap.
func (s *Service) CountAnimes(ctx context.Context) (total, featured int, err error) {
	all, err := s.store.Query(ctx, docstore.NewQuery(Collection).WithLimit(s.maxResults))
	if err != nil {
		return 0, 0, apperr.Wrap("countAnimes", err)
	}
	for _, snap := range all {
		if f, _ := snap.Data["featured"].(bool); f {
			featured++
		}
	}
	return len(all), featured, nil
}

func excludeSelf(list []Anime, id string, limit int) []Anime {
	out := make([]Anime, 0, limit)
	for _, a := range list {
		if a.ID == id {
			continue
		}
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out
}

func truncate(list []Anime, count, maxResults int) []Anime {
	limit := count
	if count < 0 || count > maxResults {
		limit = maxResults
	}
	if len(list) > limit {
		return list[:limit]
	}
	return list
}
