package pgstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/animestream/internal/platform/docstore"
)

// timeLayout is fixed width so that lexical order of encoded timestamps is
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func buildSelect(q docstore.Query) (string, []any, error) {
	var (
		where []string
		args  = []any{q.Collection}
	)
	where = append(where, "collection = $1")
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	path := func(field string) string {
		return "(data #> " + arg(strings.Split(field, ".")) + "::text[])"
	}
	jsonArg := func(v any) (string, error) {
		raw, err := json.Marshal(encodeValue(v))
		if err != nil {
			return "", fmt.Errorf("pgstore: encode filter value: %w", err)
		}
		return arg(string(raw)) + "::jsonb", nil
	}

	for _, f := range q.Filters {
		p := path(f.Field)
		switch f.Op {
		case docstore.OpEqual:
			v, err := jsonArg(f.Value)
			if err != nil {
				return "", nil, err
			}
			where = append(where, p+" = "+v)
		case docstore.OpArrayContains:
			v, err := jsonArg([]any{f.Value})
			if err != nil {
				return "", nil, err
			}
			where = append(where, "jsonb_typeof("+p+") = 'array' AND "+p+" @> "+v)
		case docstore.OpArrayContainsAny:
			var ors []string
			for _, el := range docstore.ToSlice(f.Value) {
				v, err := jsonArg([]any{el})
				if err != nil {
					return "", nil, err
				}
				ors = append(ors, p+" @> "+v)
			}
			where = append(where, "jsonb_typeof("+p+") = 'array' AND ("+strings.Join(ors, " OR ")+")")
		case docstore.OpGreaterOrEqual, docstore.OpLess:
			v, err := jsonArg(f.Value)
			if err != nil {
				return "", nil, err
			}
			where = append(where, "jsonb_typeof("+p+") = jsonb_typeof("+v+") AND "+p+" "+string(f.Op)+" "+v)
		default:
			return "", nil, fmt.Errorf("pgstore: unsupported operator %q", f.Op)
		}
	}

	var order []string
	for _, o := range q.Orders {
		p := path(o.Field)
		where = append(where, p+" IS NOT NULL")
		order = append(order, p+" "+strings.ToUpper(o.Dir.String()))
	}
	order = append(order, "id ASC")

	sql := "SELECT id, data FROM documents WHERE " + strings.Join(where, " AND ") +
		" ORDER BY " + strings.Join(order, ", ")
	if q.Limit > 0 {
		sql += " LIMIT " + arg(q.Limit)
	}
	return sql, args, nil
}

func encode(data map[string]any) ([]byte, error) {
	raw, err := json.Marshal(encodeValue(data))
	if err != nil {
		return nil, fmt.Errorf("pgstore: encode document: %w", err)
	}
	return raw, nil
}

// encodeValue rewrites timestamps into timeLayout strings.
func encodeValue(v any) any {
	switch t := docstore.DeepCopy(v).(type) {
	case time.Time:
		return t.UTC().Format(timeLayout)
	case map[string]any:
		for k, el := range t {
			t[k] = encodeValue(el)
		}
		return t
	case []any:
		for i, el := range t {
			t[i] = encodeValue(el)
		}
		return t
	default:
		return t
	}
}

func decode(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("pgstore: decode document: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	decodeValue(data)
	return data, nil
}

// decodeValue turns timeLayout strings back into time.Time in place.
func decodeValue(v any) any {
	switch t := v.(type) {
	case string:
		if len(t) == len(timeLayout) && strings.HasSuffix(t, "Z") {
			if ts, err := time.Parse(timeLayout, t); err == nil {
				return ts
			}
		}
		return t
	case map[string]any:
		for k, el := range t {
			t[k] = decodeValue(el)
		}
		return t
	case []any:
		for i, el := range t {
			t[i] = decodeValue(el)
		}
		return t
	}
	return v
}
