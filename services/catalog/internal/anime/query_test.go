package anime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/animestream/internal/platform/docstore"
)

func ptr[T any](v T) *T { return &v }

func TestBuildQueryCountSemantics(t *testing.T) {
	plan, err := BuildQuery(0, Filters{Genre: "Action"}, 100)
	require.NoError(t, err)
	assert.True(t, plan.Empty)

	plan, err = BuildQuery(-1, Filters{}, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, plan.Query.Limit)

	plan, err = BuildQuery(5000, Filters{}, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, plan.Query.Limit)

	plan, err = BuildQuery(12, Filters{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 12, plan.Query.Limit)
}

func TestBuildQueryDefaultSorts(t *testing.T) {
	cases := []struct {
		name  string
		f     Filters
		field string
	}{
		{"no filters", Filters{}, "updatedAt"},
		{"genre", Filters{Genre: "Action"}, "popularity"},
		{"type", Filters{Type: "TV"}, "popularity"},
		{"status", Filters{Status: "Ongoing"}, "updatedAt"},
		{"year", Filters{Year: ptr(2025)}, "popularity"},
		{"featured", Filters{Featured: ptr(true)}, "popularity"},
		{"genre before status", Filters{Genre: "Action", Status: "Ongoing"}, "popularity"},
		{"status before year", Filters{Status: "Ongoing", Year: ptr(2024)}, "updatedAt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := BuildQuery(10, tc.f, 100)
			require.NoError(t, err)
			require.Len(t, plan.Query.Orders, 1)
			assert.Equal(t, tc.field, plan.Query.Orders[0].Field)
			assert.Equal(t, docstore.Desc, plan.Query.Orders[0].Dir)
		})
	}
}

func TestBuildQueryPredicateOrder(t *testing.T) {
	plan, err := BuildQuery(10, Filters{
		Featured: ptr(false),
		Year:     ptr(2020),
		Status:   "Completed",
		Type:     "Movie",
		Genre:    "Drama",
	}, 100)
	require.NoError(t, err)

	require.Len(t, plan.Query.Filters, 5)
	assert.Equal(t, docstore.ArrayContains("genres", "Drama"), plan.Query.Filters[0])
	assert.Equal(t, docstore.Equal("type", "Movie"), plan.Query.Filters[1])
	assert.Equal(t, docstore.Equal("status", "Completed"), plan.Query.Filters[2])
	assert.Equal(t, docstore.Equal("year", 2020), plan.Query.Filters[3])
	assert.Equal(t, docstore.Equal("featured", false), plan.Query.Filters[4])
}

func TestBuildQueryExplicitSort(t *testing.T) {
	plan, err := BuildQuery(10, Filters{Status: "Ongoing", SortBy: "title", SortOrder: "asc"}, 100)
	require.NoError(t, err)
	assert.Equal(t, []docstore.Order{{Field: "title", Dir: docstore.Asc}}, plan.Query.Orders)

	_, err = BuildQuery(10, Filters{SortBy: "password"}, 100)
	assert.Error(t, err)

	_, err = BuildQuery(10, Filters{SortBy: "rating", SortOrder: "sideways"}, 100)
	assert.Error(t, err)
}

func TestBuildQuerySearchTakesPrecedence(t *testing.T) {
	plan, err := BuildQuery(10, Filters{
		SearchQuery: "  nARUTO ",
		Genre:       "Action",
		SortBy:      "popularity",
	}, 100)
	require.NoError(t, err)
	assert.True(t, plan.Search)
	assert.Equal(t, []docstore.Filter{
		docstore.GreaterOrEqual("title", "Naruto"),
		docstore.Less("title", "Naruto"+highSuffix),
	}, plan.Query.Filters)
	assert.Equal(t, []docstore.Order{{Field: "title", Dir: docstore.Asc}}, plan.Query.Orders)
}

func TestSearchTerm(t *testing.T) {
	assert.Equal(t, "", SearchTerm("   "))
	assert.Equal(t, "One piece", SearchTerm("ONE PIECE"))
	assert.Equal(t, "Élan", SearchTerm("élan"))
}

func TestPickSource(t *testing.T) {
	sources := []VideoSource{
		{ID: "1", Label: "Server A", Type: SourceEmbed, Category: CategorySub},
		{ID: "2", Label: "Server A", Type: SourceM3U8, Category: CategorySub},
		{ID: "3", Label: "Server B", Type: SourceMP4, Category: CategorySub},
		{ID: "4", Label: "Server B", Type: SourceEmbed, Category: CategoryDub},
	}

	got, ok := PickSource(sources, "", "")
	require.True(t, ok)
	assert.Equal(t, "2", got.ID)

	got, _ = PickSource(sources, CategorySub, "server b")
	assert.Equal(t, "3", got.ID)

	got, _ = PickSource(sources, CategoryDub, "Server A")
	assert.Equal(t, "4", got.ID)

	_, ok = PickSource(nil, CategorySub, "")
	assert.False(t, ok)

	assert.Equal(t, []string{"Server A", "Server B"}, Servers(sources, CategorySub))
}

func TestRankByRelevance(t *testing.T) {
	items := []Anime{
		{ID: "b", Title: "Boruto: Naruto Next Generations", Popularity: ptr(99.0)},
		{ID: "s", Title: "Naruto Shippuden", Popularity: ptr(90.0)},
		{ID: "n", Title: "Naruto", Popularity: ptr(50.0)},
		{ID: "x", Title: "Bleach", Popularity: ptr(100.0)},
		{ID: "m", Title: "Naruto the Movie", Popularity: ptr(95.0)},
	}
	got := RankByRelevance(items, "naruto")
	ids := make([]string, len(got))
	for i, a := range got {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{"n", "m", "s", "b"}, ids)
}
