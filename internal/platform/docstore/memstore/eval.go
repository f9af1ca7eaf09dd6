package memstore

import (
	"sort"
	"time"

	"github.com/example/animestream/internal/platform/docstore"
)

func matches(data map[string]any, q docstore.Query) bool {
	for _, f := range q.Filters {
		v, ok := docstore.Lookup(data, f.Field)
		if !ok {
			return false
		}
		switch f.Op {
		case docstore.OpEqual:
			if !docstore.ValuesEqual(v, f.Value) {
				return false
			}
		case docstore.OpArrayContains:
			if !containsAny(docstore.ToSlice(v), []any{f.Value}) {
				return false
			}
		case docstore.OpArrayContainsAny:
			if !containsAny(docstore.ToSlice(v), docstore.ToSlice(f.Value)) {
				return false
			}
		case docstore.OpGreaterOrEqual:
			c, ok := compare(v, f.Value)
			if !ok || c < 0 {
				return false
			}
		case docstore.OpLess:
			c, ok := compare(v, f.Value)
			if !ok || c >= 0 {
				return false
			}
		default:
			return false
		}
	}
	// Documents lacking an order-by field are not part of the result set.
	for _, o := range q.Orders {
		if _, ok := docstore.Lookup(data, o.Field); !ok {
			return false
		}
	}
	return true
}

func containsAny(arr, wanted []any) bool {
	for _, el := range arr {
		for _, w := range wanted {
			if docstore.ValuesEqual(el, w) {
				return true
			}
		}
	}
	return false
}

func sortSnapshots(snaps []docstore.Snapshot, orders []docstore.Order) {
	sort.SliceStable(snaps, func(i, j int) bool {
		for _, o := range orders {
			a, _ := docstore.Lookup(snaps[i].Data, o.Field)
			b, _ := docstore.Lookup(snaps[j].Data, o.Field)
			c := typeRankCompare(a, b)
			if c == 0 {
				continue
			}
			if o.Dir == docstore.Desc {
				return c > 0
			}
			return c < 0
		}
		return snaps[i].ID < snaps[j].ID
	})
}

// compare orders two values of the same type class. ok is false when the
// values are not comparable (different classes).
func compare(a, b any) (int, bool) {
	if fa, ok := docstore.ToFloat(a); ok {
		fb, ok := docstore.ToFloat(b)
		if !ok {
			return 0, false
		}
		return cmpFloat(fa, fb), true
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	case nil:
		if b == nil {
			return 0, true
		}
	}
	return 0, false
}

// typeRankCompare orders mixed-type values the way the managed database
// does: null < bool < number < timestamp < string < others.
func typeRankCompare(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmpFloat(float64(ra), float64(rb))
	}
	c, _ := compare(a, b)
	return c
}

func typeRank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := docstore.ToFloat(v); ok {
		return 2
	}
	switch v.(type) {
	case bool:
		return 1
	case time.Time:
		return 3
	case string:
		return 4
	}
	return 5
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
