// Package spotlight manages the home page slider: admin-ordered slides that
// point at catalog titles and may override their copy and artwork.
package spotlight

import (
	"context"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"github.com/example/animestream/internal/platform/apperr"
	"github.com/example/animestream/internal/platform/docstore"
	"github.com/example/animestream/internal/platform/normalize"
	"github.com/example/animestream/internal/platform/rendercache"
	"github.com/example/animestream/services/catalog/internal/anime"
	"github.com/example/animestream/services/catalog/internal/pages"
)

const Collection = "spotlight"

// MaxOrder is the highest slide position.
const MaxOrder = 10

type Status string

const (
	StatusLive  Status = "live"
	StatusDraft Status = "draft"
)

type Slide struct {
	ID              string  `json:"id"`
	Order           int     `json:"order"`
	Status          Status  `json:"status"`
	AnimeID         string  `json:"animeId"`
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	TrailerURL      *string `json:"trailerUrl"`
	BackgroundImage *string `json:"backgroundImage"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
}

// SlideInput is the create payload and the partial update patch.
type SlideInput struct {
	Order           *int    `json:"order" validate:"required,min=1,max=10"`
	Status          *string `json:"status" validate:"required,oneof=live draft"`
	AnimeID         *string `json:"animeId" validate:"required"`
	Title           *string `json:"title" validate:"omitempty,max=200"`
	Description     *string `json:"description" validate:"omitempty,max=1000"`
	TrailerURL      *string `json:"trailerUrl" validate:"omitempty,optional_url"`
	BackgroundImage *string `json:"backgroundImage" validate:"omitempty,optional_url"`
}

// Rendered is a live slide joined with its title, overrides applied.
type Rendered struct {
	Slide Slide       `json:"slide"`
	Anime anime.Anime `json:"anime"`
}

// Catalog resolves slide targets.
type Catalog interface {
	GetStored(ctx context.Context, id string) (anime.Anime, error)
}

type Service struct {
	store   docstore.Store
	catalog Catalog
	inv     rendercache.Invalidator
	log     *zap.Logger
	// joinWorkers bounds concurrent title lookups while rendering.
	joinWorkers int
}

func NewService(store docstore.Store, catalog Catalog, inv rendercache.Invalidator, log *zap.Logger) *Service {
	if inv == nil {
		inv = rendercache.Nop{}
	}
	return &Service{store: store, catalog: catalog, inv: inv, log: log, joinWorkers: 4}
}

func (s *Service) Create(ctx context.Context, in SlideInput) (Slide, error) {
	if err := checkOrder(in.Order); err != nil {
		return Slide{}, err
	}
	if in.AnimeID == nil || strings.TrimSpace(*in.AnimeID) == "" {
		return Slide{}, apperr.InvalidArgument("animeId is required", map[string]string{"animeId": "required"})
	}
	data := fields(in, false)
	data["createdAt"] = docstore.ServerTimestamp
	data["updatedAt"] = docstore.ServerTimestamp

	id, err := s.store.Add(ctx, Collection, data)
	if err != nil {
		s.log.Error("create slide failed", zap.String("op", "createSlide"), zap.Error(err))
		return Slide{}, apperr.Wrap("createSlide", err)
	}
	s.inv.Invalidate(ctx, pages.AfterSpotlightWrite()...)
	return s.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id string, in SlideInput) (Slide, error) {
	if in.Order != nil {
		if err := checkOrder(in.Order); err != nil {
			return Slide{}, err
		}
	}
	data := fields(in, true)
	updates := make([]docstore.Update, 0, len(data)+1)
	for k, v := range data {
		updates = append(updates, docstore.Update{Path: k, Value: v})
	}
	updates = append(updates, docstore.Update{Path: "updatedAt", Value: docstore.ServerTimestamp})

	if err := s.store.Update(ctx, Collection, id, updates); err != nil {
		if docstore.IsNotFound(err) {
			return Slide{}, apperr.NotFound("slide not found")
		}
		s.log.Error("update slide failed", zap.String("op", "updateSlide"), zap.String("slide_id", id), zap.Error(err))
		return Slide{}, apperr.Wrap("updateSlide", err)
	}
	s.inv.Invalidate(ctx, pages.AfterSpotlightWrite()...)
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, Collection, id); err != nil {
		s.log.Error("delete slide failed", zap.String("op", "deleteSlide"), zap.String("slide_id", id), zap.Error(err))
		return apperr.Wrap("deleteSlide", err)
	}
	s.inv.Invalidate(ctx, pages.AfterSpotlightWrite()...)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (Slide, error) {
	snap, err := s.store.Get(ctx, Collection, id)
	if err != nil {
		if docstore.IsNotFound(err) {
			return Slide{}, apperr.NotFound("slide not found")
		}
		return Slide{}, apperr.Wrap("getSlide", err)
	}
	return decode(snap)
}

// List returns every slide by position, drafts included.
func (s *Service) List(ctx context.Context) ([]Slide, error) {
	snaps, err := s.store.Query(ctx, docstore.NewQuery(Collection).OrderBy("order", docstore.Asc))
	if err != nil {
		s.log.Error("list slides failed", zap.String("op", "listSlides"), zap.Error(err))
		return nil, apperr.Wrap("listSlides", err)
	}
	return decodeAll(snaps)
}

// Live returns live slides by position, each joined with its title.
// Slides whose title no longer exists are skipped.
func (s *Service) Live(ctx context.Context) ([]Rendered, error) {
	slides, err := s.liveSlides(ctx)
	if err != nil {
		return nil, err
	}

	joined := make([]*Rendered, len(slides))
	p := pool.New().WithContext(ctx).WithMaxGoroutines(s.joinWorkers)
	for i, sl := range slides {
		p.Go(func(ctx context.Context) error {
			a, err := s.catalog.GetStored(ctx, sl.AnimeID)
			if err != nil {
				if apperr.Code(err) == codes.NotFound {
					s.log.Warn("spotlight slide points at missing anime", zap.String("slide_id", sl.ID), zap.String("anime_id", sl.AnimeID))
					return nil
				}
				return err
			}
			r := Rendered{Slide: sl, Anime: applyOverrides(a, sl)}
			joined[i] = &r
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		s.log.Error("spotlight join failed", zap.String("op", "liveSpotlight"), zap.Error(err))
		return nil, apperr.Wrap("liveSpotlight", err)
	}

	out := make([]Rendered, 0, len(joined))
	for _, r := range joined {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

// CountLive reports how many slides are live.
func (s *Service) CountLive(ctx context.Context) (int, error) {
	slides, err := s.liveSlides(ctx)
	return len(slides), err
}

// liveSlides filters on status only and orders in process, so no composite
// index is needed.
func (s *Service) liveSlides(ctx context.Context) ([]Slide, error) {
	snaps, err := s.store.Query(ctx, docstore.NewQuery(Collection).Where(docstore.Equal("status", string(StatusLive))))
	if err != nil {
		s.log.Error("list live slides failed", zap.String("op", "liveSpotlight"), zap.Error(err))
		return nil, apperr.Wrap("liveSpotlight", err)
	}
	slides, err := decodeAll(snaps)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(slides, func(i, j int) bool { return slides[i].Order < slides[j].Order })
	return slides, nil
}

func applyOverrides(a anime.Anime, sl Slide) anime.Anime {
	if sl.Title != nil {
		a.Title = *sl.Title
	}
	if sl.Description != nil {
		d := *sl.Description
		a.Synopsis = &d
	}
	if sl.TrailerURL != nil {
		u := *sl.TrailerURL
		a.TrailerURL = &u
	}
	if sl.BackgroundImage != nil {
		u := *sl.BackgroundImage
		a.BannerImage = &u
	}
	return a
}

func checkOrder(order *int) error {
	if order == nil || *order < 1 || *order > MaxOrder {
		return apperr.InvalidArgument("order must be between 1 and 10", map[string]string{"order": "must be between 1 and 10"})
	}
	return nil
}

func fields(in SlideInput, partial bool) map[string]any {
	out := map[string]any{}
	if in.Order != nil {
		out["order"] = int64(*in.Order)
	}
	if !partial || in.Status != nil {
		st := StatusDraft
		if in.Status != nil && Status(strings.ToLower(strings.TrimSpace(*in.Status))) == StatusLive {
			st = StatusLive
		}
		out["status"] = string(st)
	}
	if in.AnimeID != nil {
		out["animeId"] = strings.TrimSpace(*in.AnimeID)
	}
	optional := map[string]*string{
		"title":           in.Title,
		"description":     in.Description,
		"trailerUrl":      in.TrailerURL,
		"backgroundImage": in.BackgroundImage,
	}
	for k, v := range optional {
		if partial && v == nil {
			continue
		}
		out[k] = normalize.NullableString(v)
	}
	return out
}

func decode(snap docstore.Snapshot) (Slide, error) {
	data := make(map[string]any, len(snap.Data))
	for k, v := range snap.Data {
		if k != "createdAt" && k != "updatedAt" {
			data[k] = v
		}
	}
	var sl Slide
	if err := (docstore.Snapshot{ID: snap.ID, Data: data}).DataTo(&sl); err != nil {
		return Slide{}, apperr.Wrap("decodeSlide", err)
	}
	sl.ID = snap.ID
	sl.CreatedAt = normalize.Timestamp(snap.Data["createdAt"])
	sl.UpdatedAt = normalize.Timestamp(snap.Data["updatedAt"])
	return sl, nil
}

func decodeAll(snaps []docstore.Snapshot) ([]Slide, error) {
	out := make([]Slide, 0, len(snaps))
	for _, snap := range snaps {
		sl, err := decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, sl)
	}
	return out, nil
}
