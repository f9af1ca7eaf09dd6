package docstore

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// Field transforms. Drivers resolve them against the stored value at write
// time; Firestore maps them onto its native sentinels.

type ServerTimestampOp struct{}

type DeleteFieldOp struct{}

type IncrementOp struct{ By int64 }

type ArrayUnionOp struct{ Values []any }

type ArrayRemoveOp struct{ Values []any }

var (
	// ServerTimestamp is replaced by the commit time.
	ServerTimestamp = ServerTimestampOp{}
	// DeleteField removes the field.
	DeleteField = DeleteFieldOp{}
)

func Increment(n int64) IncrementOp { return IncrementOp{By: n} }

func ArrayUnion(values ...any) ArrayUnionOp { return ArrayUnionOp{Values: values} }

func ArrayRemove(values ...any) ArrayRemoveOp { return ArrayRemoveOp{Values: values} }

// ApplySet computes the stored document after a Set. existing may be nil.
func ApplySet(existing, data map[string]any, merge bool, now time.Time) map[string]any {
	var out map[string]any
	if merge && existing != nil {
		out = DeepCopyMap(existing)
	} else {
		out = map[string]any{}
	}
	mergeInto(out, data, merge, now)
	return out
}

func mergeInto(dst, src map[string]any, merge bool, now time.Time) {
	for k, v := range src {
		if m, ok := v.(map[string]any); ok && merge {
			cur, _ := dst[k].(map[string]any)
			if cur == nil {
				cur = map[string]any{}
			}
			mergeInto(cur, m, merge, now)
			dst[k] = cur
			continue
		}
		if _, del := v.(DeleteFieldOp); del {
			delete(dst, k)
			continue
		}
		dst[k] = resolve(dst[k], v, now)
	}
}

// ApplyUpdates computes the stored document after an Update.
func ApplyUpdates(existing map[string]any, updates []Update, now time.Time) (map[string]any, error) {
	out := DeepCopyMap(existing)
	for _, u := range updates {
		if strings.TrimSpace(u.Path) == "" {
			return nil, fmt.Errorf("docstore: empty update path")
		}
		parts := strings.Split(u.Path, ".")
		parent := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := parent[p].(map[string]any)
			if !ok {
				next = map[string]any{}
				parent[p] = next
			}
			parent = next
		}
		leaf := parts[len(parts)-1]
		if _, del := u.Value.(DeleteFieldOp); del {
			delete(parent, leaf)
			continue
		}
		parent[leaf] = resolve(parent[leaf], u.Value, now)
	}
	return out, nil
}

func resolve(current, v any, now time.Time) any {
	switch t := v.(type) {
	case ServerTimestampOp:
		return now
	case IncrementOp:
		if f, ok := current.(float64); ok && f != math.Trunc(f) {
			return f + float64(t.By)
		}
		n, _ := ToFloat(current)
		return int64(n) + t.By
	case ArrayUnionOp:
		arr := ToSlice(current)
		for _, val := range t.Values {
			if !containsValue(arr, val) {
				arr = append(arr, DeepCopy(val))
			}
		}
		return arr
	case ArrayRemoveOp:
		arr := ToSlice(current)
		kept := make([]any, 0, len(arr))
		for _, el := range arr {
			if !containsValue(t.Values, el) {
				kept = append(kept, el)
			}
		}
		return kept
	case map[string]any:
		out := map[string]any{}
		for k, el := range t {
			if _, del := el.(DeleteFieldOp); del {
				continue
			}
			out[k] = resolve(nil, el, now)
		}
		return out
	default:
		return DeepCopy(v)
	}
}

func containsValue(arr []any, v any) bool {
	for _, el := range arr {
		if ValuesEqual(el, v) {
			return true
		}
	}
	return false
}

// ToSlice converts any slice value into []any. Non-slices yield an empty slice.
func ToSlice(v any) []any {
	if v == nil {
		return []any{}
	}
	if s, ok := v.([]any); ok {
		return append([]any(nil), s...)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// ToFloat converts any numeric value to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// ValuesEqual compares stored values with numeric and time awareness.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := ToFloat(a); ok {
		fb, ok := ToFloat(b)
		return ok && fa == fb
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(DeepCopy(a), DeepCopy(b))
}

// DeepCopy clones maps and slices, normalizing them to map[string]any / []any.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return DeepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = DeepCopy(el)
		}
		return out
	case string, bool, time.Time:
		return t
	}
	if _, ok := ToFloat(v); ok {
		return v
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = DeepCopy(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			out := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				out[iter.Key().String()] = DeepCopy(iter.Value().Interface())
			}
			return out
		}
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return DeepCopy(rv.Elem().Interface())
	}
	return v
}

func DeepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = DeepCopy(v)
	}
	return out
}

// Lookup reads a possibly dotted field path from a document.
func Lookup(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = data
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
