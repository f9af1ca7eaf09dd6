package normalize

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/mozillazg/go-unidecode"
)

// Slugify derives a document id from a title: transliterated to ASCII,
// lower-cased, runs of anything else collapsed to a single hyphen.
// Slugify("Shingeki no Kyojin: Final") == "shingeki-no-kyojin-final".
func Slugify(title string) string {
	ascii := unidecode.Unidecode(title)
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(ascii) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// EpisodeID combines the parent slug, season and episode numbers with a
// time-ordered UUID, so ids sort by creation and never collide.
func EpisodeID(animeSlug string, season, episode int) string {
	return fmt.Sprintf("%s-s%d-e%d-%s", animeSlug, season, episode, newV7())
}

// SourceID identifies a video source within its episode.
func SourceID() string {
	return newV7()
}

func newV7() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
