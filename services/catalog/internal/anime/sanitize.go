package anime

import (
	"strings"

	"github.com/example/animestream/internal/platform/docstore"
	"github.com/example/animestream/internal/platform/normalize"
)

// SourceInput is a video source as submitted by the admin forms.
type SourceInput struct {
	ID       string  `json:"id"`
	URL      string  `json:"url" validate:"required,url"`
	Label    string  `json:"label" validate:"required,notblank"`
	Type     string  `json:"type" validate:"omitempty,oneof=m3u8 mp4 embed"`
	Category string  `json:"category" validate:"omitempty,oneof=SUB DUB sub dub"`
	Quality  *string `json:"quality"`
}

// EpisodeInput is an episode as submitted by the admin forms. For a
// single-episode patch, nil pointers and unset numbers mean "unchanged".
type EpisodeInput struct {
	ID            string           `json:"id"`
	Title         *string          `json:"title"`
	EpisodeNumber normalize.Number `json:"episodeNumber" validate:"omitempty,nonneg_int"`
	SeasonNumber  normalize.Number `json:"seasonNumber" validate:"omitempty,nonneg_int"`
	Thumbnail     *string          `json:"thumbnail" validate:"omitempty,optional_url"`
	Duration      normalize.Number `json:"duration" validate:"omitempty,gte=0"`
	Synopsis      *string          `json:"synopsis"`
	AirDate       *string          `json:"airDate"`
	Sources       []SourceInput    `json:"sources" validate:"dive"`
}

// AnimeInput is both the create payload and the partial update patch: nil
// pointers and unset numbers are absent fields.
type AnimeInput struct {
	Title           *string          `json:"title"`
	Synopsis        *string          `json:"synopsis"`
	CoverImage      *string          `json:"coverImage"`
	BannerImage     *string          `json:"bannerImage"`
	TrailerURL      *string          `json:"trailerUrl"`
	DownloadPageURL *string          `json:"downloadPageUrl"`
	Year            normalize.Number `json:"year"`
	Genres          *[]string        `json:"genres"`
	Status          *string          `json:"status"`
	Type            *string          `json:"type"`
	Popularity      normalize.Number `json:"popularity"`
	Rating          normalize.Number `json:"rating"`
	Featured        *bool            `json:"featured"`
	MalID           normalize.Number `json:"malId"`
	Episodes        *[]EpisodeInput  `json:"episodes"`
}

var optionalText = []struct {
	field string
	get   func(AnimeInput) *string
}{
	{"synopsis", func(in AnimeInput) *string { return in.Synopsis }},
	{"coverImage", func(in AnimeInput) *string { return in.CoverImage }},
	{"bannerImage", func(in AnimeInput) *string { return in.BannerImage }},
	{"trailerUrl", func(in AnimeInput) *string { return in.TrailerURL }},
	{"downloadPageUrl", func(in AnimeInput) *string { return in.DownloadPageURL }},
}

var optionalNumbers = []struct {
	field string
	get   func(AnimeInput) normalize.Number
	asInt bool
}{
	{"year", func(in AnimeInput) normalize.Number { return in.Year }, true},
	{"popularity", func(in AnimeInput) normalize.Number { return in.Popularity }, false},
	{"rating", func(in AnimeInput) normalize.Number { return in.Rating }, false},
	{"malId", func(in AnimeInput) normalize.Number { return in.MalID }, true},
}

// sanitize produces the stored field set. With partial, absent fields are
// omitted; otherwise every field is written: missing or empty text becomes
// null, non-finite numbers become null, missing arrays become [].
func sanitize(in AnimeInput, slug string, partial bool) map[string]any {
	out := map[string]any{}

	if in.Title != nil {
		out["title"] = strings.TrimSpace(*in.Title)
	}
	for _, f := range optionalText {
		v := f.get(in)
		if partial && v == nil {
			continue
		}
		out[f.field] = normalize.NullableString(v)
	}
	for _, f := range optionalNumbers {
		n := f.get(in)
		if partial && !n.Set {
			continue
		}
		out[f.field] = storedNumber(n, f.asInt)
	}
	if !partial || in.Genres != nil {
		var genres []string
		if in.Genres != nil {
			genres = *in.Genres
		}
		out["genres"] = stringsToAny(dedupe(normalize.StringList(genres)))
	}
	if !partial || in.Status != nil {
		out["status"] = string(parseStatus(in.Status))
	}
	if !partial || in.Type != nil {
		out["type"] = string(parseType(in.Type))
	}
	if !partial || in.Featured != nil {
		out["featured"] = in.Featured != nil && *in.Featured
	}
	if !partial || in.Episodes != nil {
		var eps []EpisodeInput
		if in.Episodes != nil {
			eps = *in.Episodes
		}
		list := make([]any, 0, len(eps))
		for _, e := range eps {
			list = append(list, sanitizeEpisode(e, slug))
		}
		out["episodes"] = list
		out["episodesCount"] = len(list)
	}
	return out
}

func storedNumber(n normalize.Number, asInt bool) any {
	if !n.Valid {
		return nil
	}
	if asInt {
		return int64(n.Value)
	}
	return n.Value
}

// sanitizeEpisode builds a full episode record for whole-array writes.
func sanitizeEpisode(in EpisodeInput, slug string) map[string]any {
	season := nonNegative(in.SeasonNumber)
	number := nonNegative(in.EpisodeNumber)
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = normalize.EpisodeID(slug, max(in.SeasonNumber.IntOr(0), 0), max(in.EpisodeNumber.IntOr(0), 0))
	}
	return map[string]any{
		"id":            id,
		"title":         normalize.NullableString(in.Title),
		"episodeNumber": number,
		"seasonNumber":  season,
		"thumbnail":     normalize.NullableString(in.Thumbnail),
		"duration":      in.Duration.Stored(),
		"synopsis":      normalize.NullableString(in.Synopsis),
		"airDate":       normalize.NullableString(in.AirDate),
		"sources":       sanitizeSources(in.Sources),
	}
}

// mergeEpisode applies a patch onto a stored episode. Invalid numbers keep
// the previous value so episode ordering never degrades to null.
func mergeEpisode(current map[string]any, in EpisodeInput) map[string]any {
	out := docstore.DeepCopyMap(current)
	if in.Title != nil {
		out["title"] = normalize.NullableString(in.Title)
	}
	if in.Thumbnail != nil {
		out["thumbnail"] = normalize.NullableString(in.Thumbnail)
	}
	if in.Synopsis != nil {
		out["synopsis"] = normalize.NullableString(in.Synopsis)
	}
	if in.AirDate != nil {
		out["airDate"] = normalize.NullableString(in.AirDate)
	}
	if in.EpisodeNumber.Valid && in.EpisodeNumber.Value >= 0 {
		out["episodeNumber"] = int64(in.EpisodeNumber.Value)
	}
	if in.SeasonNumber.Valid && in.SeasonNumber.Value >= 0 {
		out["seasonNumber"] = int64(in.SeasonNumber.Value)
	}
	if in.Duration.Valid {
		out["duration"] = in.Duration.Value
	}
	if in.Sources != nil {
		out["sources"] = sanitizeSources(in.Sources)
	}
	return out
}

func sanitizeSources(in []SourceInput) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			id = normalize.SourceID()
		}
		out = append(out, map[string]any{
			"id":       id,
			"url":      strings.TrimSpace(s.URL),
			"label":    strings.TrimSpace(s.Label),
			"type":     string(parseSourceType(s.Type, s.URL)),
			"category": string(parseCategory(s.Category)),
			"quality":  normalize.NullableString(s.Quality),
		})
	}
	return out
}

func nonNegative(n normalize.Number) any {
	if !n.Valid || n.Value < 0 {
		return nil
	}
	return int64(n.Value)
}

func parseStatus(s *string) Status {
	if s != nil {
		for _, st := range []Status{StatusOngoing, StatusCompleted, StatusUpcoming, StatusUnknown} {
			if strings.EqualFold(strings.TrimSpace(*s), string(st)) {
				return st
			}
		}
	}
	return StatusUnknown
}

func parseType(s *string) Type {
	if s != nil {
		for _, t := range []Type{TypeTV, TypeMovie, TypeOVA, TypeSpecial, TypeUnknown} {
			if strings.EqualFold(strings.TrimSpace(*s), string(t)) {
				return t
			}
		}
	}
	return TypeUnknown
}

// parseSourceType falls back to sniffing the URL when no type was chosen.
func parseSourceType(s, url string) SourceType {
	switch SourceType(strings.ToLower(strings.TrimSpace(s))) {
	case SourceM3U8:
		return SourceM3U8
	case SourceMP4:
		return SourceMP4
	case SourceEmbed:
		return SourceEmbed
	}
	u := strings.ToLower(url)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	switch {
	case strings.HasSuffix(u, ".m3u8"):
		return SourceM3U8
	case strings.HasSuffix(u, ".mp4"):
		return SourceMP4
	}
	return SourceEmbed
}

func parseCategory(s string) Category {
	if strings.EqualFold(strings.TrimSpace(s), string(CategoryDub)) {
		return CategoryDub
	}
	return CategorySub
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
