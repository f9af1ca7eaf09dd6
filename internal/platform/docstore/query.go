package docstore

import (
	"fmt"
	"strings"
)

// Op is the predicate kind of a Filter.
type Op string

const (
	OpEqual            Op = "=="
	OpArrayContains    Op = "array-contains"
	OpArrayContainsAny Op = "array-contains-any"
	OpGreaterOrEqual   Op = ">="
	OpLess             Op = "<"
)

// MaxArrayContainsAny is the widest value list an array-contains-any
// predicate may carry.
const MaxArrayContainsAny = 10

// Filter is one predicate of a query.
type Filter struct {
	Field string
	Op    Op
	Value any
}

func Equal(field string, v any) Filter { return Filter{Field: field, Op: OpEqual, Value: v} }

func ArrayContains(field string, v any) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: v}
}

func ArrayContainsAny(field string, values []any) Filter {
	return Filter{Field: field, Op: OpArrayContainsAny, Value: values}
}

func GreaterOrEqual(field string, v any) Filter {
	return Filter{Field: field, Op: OpGreaterOrEqual, Value: v}
}

func Less(field string, v any) Filter { return Filter{Field: field, Op: OpLess, Value: v} }

func (f Filter) String() string {
	return fmt.Sprintf("%s %s %v", f.Field, f.Op, f.Value)
}

type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

type Order struct {
	Field string
	Dir   Direction
}

// Query is an ordered list of predicates plus ordering and limit against a
// single collection. The zero Limit means no limit.
type Query struct {
	Collection string
	Filters    []Filter
	Orders     []Order
	Limit      int
}

func NewQuery(collection string) Query { return Query{Collection: collection} }

func (q Query) Where(filters ...Filter) Query {
	out := q.clone()
	out.Filters = append(out.Filters, filters...)
	return out
}

func (q Query) OrderBy(field string, dir Direction) Query {
	out := q.clone()
	out.Orders = append(out.Orders, Order{Field: field, Dir: dir})
	return out
}

func (q Query) WithLimit(n int) Query {
	out := q.clone()
	out.Limit = n
	return out
}

func (q Query) clone() Query {
	out := q
	out.Filters = append([]Filter(nil), q.Filters...)
	out.Orders = append([]Order(nil), q.Orders...)
	return out
}

// Validate rejects predicate lists no backend accepts.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Collection) == "" {
		return fmt.Errorf("docstore: query without collection")
	}
	anyCount := 0
	for _, f := range q.Filters {
		if f.Op != OpArrayContainsAny {
			continue
		}
		anyCount++
		vals, _ := f.Value.([]any)
		if len(vals) == 0 || len(vals) > MaxArrayContainsAny {
			return fmt.Errorf("docstore: array-contains-any on %s needs 1..%d values, got %d", f.Field, MaxArrayContainsAny, len(vals))
		}
	}
	if anyCount > 1 {
		return fmt.Errorf("docstore: at most one array-contains-any predicate per query")
	}
	return nil
}

// Fields returns the distinct fields referenced by filters and orders, in
// first-use order. Composite index requirements are expressed over this set.
func (q Query) Fields() []string {
	seen := map[string]bool{}
	var out []string
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, f := range q.Filters {
		add(f.Field)
	}
	for _, o := range q.Orders {
		add(o.Field)
	}
	return out
}

// String renders the query for diagnostics, e.g.
// "animes where genres array-contains Action order by popularity desc limit 20".
func (q Query) String() string {
	var b strings.Builder
	b.WriteString(q.Collection)
	if len(q.Filters) > 0 {
		parts := make([]string, len(q.Filters))
		for i, f := range q.Filters {
			parts[i] = f.String()
		}
		b.WriteString(" where ")
		b.WriteString(strings.Join(parts, " and "))
	}
	if len(q.Orders) > 0 {
		parts := make([]string, len(q.Orders))
		for i, o := range q.Orders {
			parts[i] = o.Field + " " + o.Dir.String()
		}
		b.WriteString(" order by ")
		b.WriteString(strings.Join(parts, ", "))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " limit %d", q.Limit)
	}
	return b.String()
}
