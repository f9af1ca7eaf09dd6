// Package anime is the catalog's content layer: the query builder over the
// animes collection, its missing-index fallbacks, and the mutation paths
// that keep stored documents in a consistent shape.
package anime

import (
	"github.com/example/animestream/internal/platform/docstore"
	"github.com/example/animestream/internal/platform/normalize"
)

// Collection holds one document per title, keyed by slug.
const Collection = "animes"

type Status string

const (
	StatusOngoing   Status = "Ongoing"
	StatusCompleted Status = "Completed"
	StatusUpcoming  Status = "Upcoming"
	StatusUnknown   Status = "Unknown"
)

type Type string

const (
	TypeTV      Type = "TV"
	TypeMovie   Type = "Movie"
	TypeOVA     Type = "OVA"
	TypeSpecial Type = "Special"
	TypeUnknown Type = "Unknown"
)

type SourceType string

const (
	SourceM3U8  SourceType = "m3u8"
	SourceMP4   SourceType = "mp4"
	SourceEmbed SourceType = "embed"
)

type Category string

const (
	CategorySub Category = "SUB"
	CategoryDub Category = "DUB"
)

type VideoSource struct {
	ID       string     `json:"id"`
	URL      string     `json:"url"`
	Label    string     `json:"label"`
	Type     SourceType `json:"type"`
	Category Category   `json:"category"`
	Quality  *string    `json:"quality"`
}

type Episode struct {
	ID            string        `json:"id"`
	Title         *string       `json:"title"`
	EpisodeNumber int           `json:"episodeNumber"`
	SeasonNumber  int           `json:"seasonNumber"`
	Thumbnail     *string       `json:"thumbnail"`
	Duration      *float64      `json:"duration"`
	Synopsis      *string       `json:"synopsis"`
	AirDate       *string       `json:"airDate"`
	Sources       []VideoSource `json:"sources"`
}

// Anime is a content item as returned to callers, with portable timestamps.
type Anime struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Synopsis        *string   `json:"synopsis"`
	CoverImage      *string   `json:"coverImage"`
	BannerImage     *string   `json:"bannerImage"`
	TrailerURL      *string   `json:"trailerUrl"`
	DownloadPageURL *string   `json:"downloadPageUrl"`
	Year            *int      `json:"year"`
	Genres          []string  `json:"genres"`
	Status          Status    `json:"status"`
	Type            Type      `json:"type"`
	Popularity      *float64  `json:"popularity"`
	Rating          *float64  `json:"rating"`
	Featured        bool      `json:"featured"`
	MalID           *int      `json:"malId"`
	Episodes        []Episode `json:"episodes"`
	EpisodesCount   int       `json:"episodesCount"`
	CreatedAt       string    `json:"createdAt"`
	UpdatedAt       string    `json:"updatedAt"`

	// Populated only by enrichment.
	Aired *Aired       `json:"aired,omitempty"`
	Cast  []CastMember `json:"cast,omitempty"`
}

type Aired struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

type CastMember struct {
	Character  string `json:"character"`
	Role       string `json:"role,omitempty"`
	Image      string `json:"image,omitempty"`
	VoiceActor string `json:"voiceActor,omitempty"`
}

func popularityOf(a Anime) float64 {
	if a.Popularity == nil {
		return -1
	}
	return *a.Popularity
}

// decode maps a stored document onto Anime. Timestamps are normalized
// separately because drivers store them in different native forms.
func decode(snap docstore.Snapshot) (Anime, error) {
	data := make(map[string]any, len(snap.Data))
	for k, v := range snap.Data {
		if k == "createdAt" || k == "updatedAt" {
			continue
		}
		data[k] = v
	}
	var a Anime
	if err := (docstore.Snapshot{ID: snap.ID, Data: data}).DataTo(&a); err != nil {
		return Anime{}, err
	}
	a.ID = snap.ID
	a.CreatedAt = normalize.Timestamp(snap.Data["createdAt"])
	a.UpdatedAt = normalize.Timestamp(snap.Data["updatedAt"])
	if a.Genres == nil {
		a.Genres = []string{}
	}
	if a.Episodes == nil {
		a.Episodes = []Episode{}
	}
	for i := range a.Episodes {
		if a.Episodes[i].Sources == nil {
			a.Episodes[i].Sources = []VideoSource{}
		}
	}
	if a.Status == "" {
		a.Status = StatusUnknown
	}
	if a.Type == "" {
		a.Type = TypeUnknown
	}
	return a, nil
}

func decodeAll(snaps []docstore.Snapshot) ([]Anime, error) {
	out := make([]Anime, 0, len(snaps))
	for _, s := range snaps {
		a, err := decode(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
