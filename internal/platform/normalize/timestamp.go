// Package normalize holds the pure conversions shared by the services:
// portable timestamps, slugs and generated identifiers, and lenient numeric
// input.
package normalize

import (
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"
)

// TimeLayout is the portable timestamp form: RFC 3339, UTC, milliseconds.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Timestamp converts a stored timestamp in any of the representations the
// drivers and clients produce into TimeLayout. It returns "" for nil and
// for values it does not recognize.
func Timestamp(v any) string {
	t, ok := ToTime(v)
	if !ok {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// ToTime is the parsing half of Timestamp.
func ToTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	case *timestamppb.Timestamp:
		if t == nil || t.CheckValid() != nil {
			return time.Time{}, false
		}
		return t.AsTime(), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts, true
		}
		return time.Time{}, false
	case map[string]any:
		return fromSecondsMap(t)
	}
	return time.Time{}, false
}

// fromSecondsMap accepts {seconds, nanoseconds} and the serialized
// {_seconds, _nanoseconds} form.
func fromSecondsMap(m map[string]any) (time.Time, bool) {
	sec, ok := number(m["seconds"])
	if !ok {
		sec, ok = number(m["_seconds"])
	}
	if !ok {
		return time.Time{}, false
	}
	nsec, ok := number(m["nanoseconds"])
	if !ok {
		nsec, _ = number(m["_nanoseconds"])
	}
	return time.Unix(int64(sec), int64(nsec)).UTC(), true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
