package jikan

import (
	"context"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/example/animestream/services/catalog/internal/anime"
)

// MaxCast bounds how many characters are attached to a title.
const MaxCast = 12

// Source is the subset of Client the enricher needs.
type Source interface {
	GetAnime(ctx context.Context, malID int) (*AnimeResponse, error)
	GetCharacters(ctx context.Context, malID int) (*CharactersResponse, error)
}

// Enricher implements anime.Enricher on top of the Jikan API.
type Enricher struct {
	src Source
	log *zap.Logger
}

var _ anime.Enricher = (*Enricher)(nil)

func NewEnricher(src Source, log *zap.Logger) *Enricher {
	return &Enricher{src: src, log: log}
}

// Enrich fetches the title and its characters concurrently. A failed
// character fetch only drops the cast; a failed title fetch fails the call.
func (e *Enricher) Enrich(ctx context.Context, a anime.Anime) (anime.Anime, error) {
	if a.MalID == nil || *a.MalID <= 0 {
		return a, nil
	}
	malID := *a.MalID

	var (
		details *AnimeResponse
		chars   *CharactersResponse
	)
	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		var err error
		details, err = e.src.GetAnime(ctx, malID)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		chars, err = e.src.GetCharacters(ctx, malID)
		if err != nil {
			e.log.Warn("jikan characters fetch failed", zap.Int("mal_id", malID), zap.Error(err))
			chars = nil
		}
		return nil
	})
	if err := p.Wait(); err != nil {
		return a, err
	}
	return anime.Overlay(a, ToExternal(details, chars)), nil
}

// ToExternal maps Jikan replies onto the overlay shape.
func ToExternal(details *AnimeResponse, chars *CharactersResponse) anime.External {
	var ext anime.External
	if details != nil {
		d := details.Data
		ext.Title = BestTitle(d)
		ext.CoverImage = firstNonEmpty(d.Images.JPG.LargeImageURL, d.Images.JPG.ImageURL)
		ext.Banner = strings.TrimSpace(d.Trailer.Images.MaximumImageURL)
		ext.Synopsis = strings.TrimSpace(d.Synopsis)
		for _, g := range d.Genres {
			if name := strings.TrimSpace(g.Name); name != "" {
				ext.Genres = append(ext.Genres, name)
			}
		}
		ext.Rating = d.Score
		ext.Year = d.Year
		if d.Aired.From != "" || d.Aired.To != "" {
			ext.Aired = &anime.Aired{From: d.Aired.From, To: d.Aired.To}
		}
	}
	if chars != nil {
		for _, c := range chars.Data {
			if len(ext.Cast) == MaxCast {
				break
			}
			m := anime.CastMember{
				Character: strings.TrimSpace(c.Character.Name),
				Role:      c.Role,
				Image:     c.Character.Images.JPG.ImageURL,
			}
			for _, va := range c.VoiceActors {
				if strings.EqualFold(va.Language, "Japanese") {
					m.VoiceActor = va.Person.Name
					break
				}
			}
			if m.Character != "" {
				ext.Cast = append(ext.Cast, m)
			}
		}
	}
	return ext
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
