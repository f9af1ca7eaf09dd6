package normalize

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestTimestamp(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.UTC)
	want := "2024-05-06T07:08:09.123Z"

	assert.Equal(t, want, Timestamp(ts))
	assert.Equal(t, want, Timestamp(&ts))
	assert.Equal(t, want, Timestamp(timestamppb.New(ts)))
	assert.Equal(t, want, Timestamp("2024-05-06T09:08:09.123456789+02:00"))
	assert.Equal(t, want, Timestamp(map[string]any{"seconds": float64(ts.Unix()), "nanoseconds": float64(123456789)}))
	assert.Equal(t, want, Timestamp(map[string]any{"_seconds": ts.Unix(), "_nanoseconds": 123456789}))

	assert.Equal(t, "", Timestamp(nil))
	assert.Equal(t, "", Timestamp(""))
	assert.Equal(t, "", Timestamp("yesterday"))
	assert.Equal(t, "", Timestamp(time.Time{}))
	assert.Equal(t, "", Timestamp(42))
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"My Show":                   "my-show",
		"  My   Show!! ":            "my-show",
		"Shingeki no Kyojin: Final": "shingeki-no-kyojin-final",
		"Pokémon":                   "pokemon",
		"Re:Zero 2nd Season":        "re-zero-2nd-season",
		"!!!":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
	assert.Equal(t, Slugify("My Show"), Slugify("my show"))
}

func TestEpisodeID(t *testing.T) {
	a := EpisodeID("my-show", 1, 3)
	b := EpisodeID("my-show", 1, 3)
	assert.True(t, strings.HasPrefix(a, "my-show-s1-e3-"))
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, SourceID(), SourceID())
}

func TestNumberUnmarshal(t *testing.T) {
	var v struct {
		A Number `json:"a"`
		B Number `json:"b"`
		C Number `json:"c"`
		D Number `json:"d"`
		E Number `json:"e"`
		F Number `json:"f"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":12,"b":"7","c":"","d":null,"e":"NaN","f":true}`), &v))

	assert.True(t, v.A.Valid)
	assert.Equal(t, 12.0, v.A.Value)
	assert.True(t, v.B.Valid)
	assert.Equal(t, 7.0, v.B.Value)
	for _, n := range []Number{v.C, v.D, v.E, v.F} {
		assert.True(t, n.Set)
		assert.False(t, n.Valid)
		assert.Nil(t, n.Stored())
	}

	var missing struct {
		A Number `json:"a"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{}`), &missing))
	assert.False(t, missing.A.Set)
	assert.Equal(t, 5, missing.A.IntOr(5))
}

func TestNullableStringAndList(t *testing.T) {
	empty, blank, val := "", "   ", " x "
	assert.Nil(t, NullableString(nil))
	assert.Nil(t, NullableString(&empty))
	assert.Nil(t, NullableString(&blank))
	assert.Equal(t, "x", NullableString(&val))

	assert.Equal(t, []string{}, StringList(nil))
	assert.Equal(t, []string{"Action"}, StringList([]string{" Action ", ""}))
}
