package anime

import "strings"

var typeRank = map[SourceType]int{SourceM3U8: 0, SourceMP4: 1, SourceEmbed: 2}

// PickSource chooses what the player loads: sources of the requested
// category (SUB when empty), narrowed to the requested server label when
// one matches, then the best playable type (m3u8, mp4, embed). If no
// source has the category, every source is considered.
func PickSource(sources []VideoSource, category Category, label string) (VideoSource, bool) {
	if len(sources) == 0 {
		return VideoSource{}, false
	}
	if category == "" {
		category = CategorySub
	}

	candidates := filter(sources, func(s VideoSource) bool { return s.Category == category })
	if len(candidates) == 0 {
		candidates = sources
	}
	if label = strings.TrimSpace(label); label != "" {
		if byLabel := filter(candidates, func(s VideoSource) bool { return strings.EqualFold(s.Label, label) }); len(byLabel) > 0 {
			candidates = byLabel
		}
	}

	best := candidates[0]
	for _, s := range candidates[1:] {
		if rank(s.Type) < rank(best.Type) {
			best = s
		}
	}
	return best, true
}

// Servers lists the distinct server labels available for a category, in
// stored order.
func Servers(sources []VideoSource, category Category) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, s := range sources {
		if category != "" && s.Category != category {
			continue
		}
		if s.Label == "" || seen[s.Label] {
			continue
		}
		seen[s.Label] = true
		out = append(out, s.Label)
	}
	return out
}

func rank(t SourceType) int {
	if r, ok := typeRank[t]; ok {
		return r
	}
	return len(typeRank)
}

func filter(in []VideoSource, keep func(VideoSource) bool) []VideoSource {
	var out []VideoSource
	for _, s := range in {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
