package anime

import "strings"

// External is metadata fetched from the external catalog. Zero values mean
// the external source had nothing for that field.
type External struct {
	Title      string
	CoverImage string
	Banner     string
	Synopsis   string
	Genres     []string
	Rating     *float64
	Year       *int
	Aired      *Aired
	Cast       []CastMember
}

// Overlay returns a with every field External carries replacing the stored
// value. Fields External lacks keep the stored value.
func Overlay(a Anime, ext External) Anime {
	if t := strings.TrimSpace(ext.Title); t != "" {
		a.Title = t
	}
	if v := strings.TrimSpace(ext.CoverImage); v != "" {
		a.CoverImage = &v
	}
	if v := strings.TrimSpace(ext.Banner); v != "" {
		a.BannerImage = &v
	}
	if v := strings.TrimSpace(ext.Synopsis); v != "" {
		a.Synopsis = &v
	}
	if len(ext.Genres) > 0 {
		a.Genres = append([]string(nil), ext.Genres...)
	}
	if ext.Rating != nil {
		r := *ext.Rating
		a.Rating = &r
	}
	if ext.Year != nil {
		y := *ext.Year
		a.Year = &y
	}
	if ext.Aired != nil {
		aired := *ext.Aired
		a.Aired = &aired
	}
	if len(ext.Cast) > 0 {
		a.Cast = append([]CastMember(nil), ext.Cast...)
	}
	return a
}
