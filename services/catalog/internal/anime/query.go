package anime

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/example/animestream/internal/platform/docstore"
)

// DefaultMaxResults caps a count of -1.
const DefaultMaxResults = 500

// highSuffix closes a prefix range: every string starting with term sorts
// below term+highSuffix.
const highSuffix = "\uf8ff"

// Filters is the declarative listing request. Zero values mean "absent".
type Filters struct {
	Genre       string
	Type        string
	Status      string
	Year        *int
	Featured    *bool
	SortBy      string
	SortOrder   string
	SearchQuery string
}

// Plan is the outcome of BuildQuery.
type Plan struct {
	Query docstore.Query
	// Empty is set for a count of 0; no query should run.
	Empty bool
	// Search is set when the title-prefix path was taken.
	Search bool
}

var sortableFields = map[string]bool{
	"title":         true,
	"popularity":    true,
	"rating":        true,
	"year":          true,
	"createdAt":     true,
	"updatedAt":     true,
	"episodesCount": true,
}

// BuildQuery translates count and filters into an ordered predicate list.
//
// count -1 means up to maxResults, 0 means an explicitly empty result, N > 0
// means at most N. A search query takes precedence over every other filter
// and forces ordering by title.
func BuildQuery(count int, f Filters, maxResults int) (Plan, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	limit := count
	switch {
	case count == 0:
		return Plan{Empty: true}, nil
	case count < 0 || count > maxResults:
		limit = maxResults
	}

	q := docstore.NewQuery(Collection)

	if term := SearchTerm(f.SearchQuery); term != "" {
		q = q.Where(
			docstore.GreaterOrEqual("title", term),
			docstore.Less("title", term+highSuffix),
		).OrderBy("title", docstore.Asc).WithLimit(limit)
		return Plan{Query: q, Search: true}, nil
	}

	sortBy := strings.TrimSpace(f.SortBy)
	if sortBy != "" && !sortableFields[sortBy] {
		return Plan{}, fmt.Errorf("unsupported sort field %q", sortBy)
	}
	dir, err := parseDirection(f.SortOrder)
	if err != nil {
		return Plan{}, err
	}

	explicit := sortBy != ""
	// The first present filter decides the default ordering.
	assign := func(field string) {
		if !explicit && sortBy == "" {
			sortBy, dir = field, docstore.Desc
		}
	}

	if g := strings.TrimSpace(f.Genre); g != "" {
		q = q.Where(docstore.ArrayContains("genres", g))
		assign("popularity")
	}
	if t := strings.TrimSpace(f.Type); t != "" {
		q = q.Where(docstore.Equal("type", t))
		assign("popularity")
	}
	if s := strings.TrimSpace(f.Status); s != "" {
		q = q.Where(docstore.Equal("status", s))
		assign("updatedAt")
	}
	if f.Year != nil {
		q = q.Where(docstore.Equal("year", *f.Year))
		assign("popularity")
	}
	if f.Featured != nil {
		q = q.Where(docstore.Equal("featured", *f.Featured))
		assign("popularity")
	}
	if sortBy == "" {
		sortBy, dir = "updatedAt", docstore.Desc
	}

	return Plan{Query: q.OrderBy(sortBy, dir).WithLimit(limit)}, nil
}

func parseDirection(s string) (docstore.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc":
		return docstore.Desc, nil
	case "asc":
		return docstore.Asc, nil
	}
	return docstore.Desc, fmt.Errorf("unsupported sort order %q", s)
}

// SearchTerm case-folds a user query the way titles are stored: first
// character upper-cased, the rest lower-cased.
func SearchTerm(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
