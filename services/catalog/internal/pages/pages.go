// Package pages names the logical render paths whose cached responses a
// write makes stale.
package pages

const (
	Home           = "/"
	Browse         = "/browse"
	Admin          = "/admin"
	AdminAnime     = "/admin/anime"
	AdminSpotlight = "/admin/spotlight"
	AdminReports   = "/admin/reports"
)

func Anime(id string) string { return "/anime/" + id }

func AdminAnimeEdit(id string) string { return AdminAnime + "/" + id }

// AfterAnimeWrite lists the paths a create, update or delete of one title
// invalidates: its own page, the listings that may include it and the
// admin views.
func AfterAnimeWrite(id string) []string {
	return []string{Home, Browse, Anime(id), AdminAnime, AdminAnimeEdit(id), Admin}
}

func AfterSpotlightWrite() []string {
	return []string{Home, AdminSpotlight, Admin}
}

func AfterReportWrite() []string {
	return []string{AdminReports, Admin}
}
