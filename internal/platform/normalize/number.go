package normalize

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is lenient numeric input from forms. It accepts a JSON number, a
// numeric string, "" or null. Set reports whether the key was present at
// all; Valid reports whether a finite number was supplied.
type Number struct {
	Value float64
	Valid bool
	Set   bool
}

func (n *Number) UnmarshalJSON(b []byte) error {
	n.Set = true
	n.Valid = false
	n.Value = 0
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n.assign(ParseNumber(s))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		// Non-numeric literals (true, objects) are treated as invalid input,
		// not as a decode failure of the whole payload.
		return nil
	}
	n.assign(f, true)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func (n *Number) assign(f float64, ok bool) {
	if ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
		n.Value = f
		n.Valid = true
	}
}

// NumberOf builds a valid Number.
func NumberOf(f float64) Number {
	var n Number
	n.Set = true
	n.assign(f, true)
	return n
}

// Stored returns the value for persistence: nil unless finite.
func (n Number) Stored() any {
	if !n.Valid {
		return nil
	}
	return n.Value
}

// IntOr returns the integer value or fallback when not valid.
func (n Number) IntOr(fallback int) int {
	if !n.Valid {
		return fallback
	}
	return int(n.Value)
}

// ParseNumber parses a trimmed numeric string; "" and garbage are not ok.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// NullableString maps "" (after trimming) to nil.
func NullableString(s *string) any {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return v
}

// StringList trims entries, drops empty ones and never returns nil.
func StringList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
