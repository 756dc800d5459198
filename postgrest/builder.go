// Package postgrest builds and executes read queries against a PostgREST
// endpoint. Builders render to a deterministic string so the connection layer
// can use them as cache keys.
package postgrest

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// CountMethod selects how the server counts the rows matched by a query.
type CountMethod string

const (
	CountNone      CountMethod = ""
	CountExact     CountMethod = "exact"
	CountPlanned   CountMethod = "planned"
	CountEstimated CountMethod = "estimated"
)

type filter struct {
	column string
	op     string
	value  string
}

type order struct {
	column string
	desc   bool
}

// SelectBuilder accumulates the pieces of a SELECT query. All methods return
// the receiver for chaining.
type SelectBuilder struct {
	table   string
	columns []string
	count   CountMethod

	filters []filter
	orders  []order

	limit     int
	hasLimit  bool
	offset    int
	hasOffset bool
}

// Select starts a query on table fetching the given columns. No columns means
// all of them.
func Select(table string, columns ...string) *SelectBuilder {
	return &SelectBuilder{table: table, columns: columns}
}

func (b *SelectBuilder) Table() string { return b.table }

func (b *SelectBuilder) Count(m CountMethod) *SelectBuilder {
	b.count = m
	return b
}

func (b *SelectBuilder) filter(column, op, value string) *SelectBuilder {
	b.filters = append(b.filters, filter{column: column, op: op, value: value})
	return b
}

func (b *SelectBuilder) Eq(column, value string) *SelectBuilder  { return b.filter(column, "eq", value) }
func (b *SelectBuilder) Neq(column, value string) *SelectBuilder { return b.filter(column, "neq", value) }
func (b *SelectBuilder) Gt(column, value string) *SelectBuilder  { return b.filter(column, "gt", value) }
func (b *SelectBuilder) Gte(column, value string) *SelectBuilder { return b.filter(column, "gte", value) }
func (b *SelectBuilder) Lt(column, value string) *SelectBuilder  { return b.filter(column, "lt", value) }
func (b *SelectBuilder) Lte(column, value string) *SelectBuilder { return b.filter(column, "lte", value) }
func (b *SelectBuilder) Like(column, pattern string) *SelectBuilder {
	return b.filter(column, "like", pattern)
}
func (b *SelectBuilder) ILike(column, pattern string) *SelectBuilder {
	return b.filter(column, "ilike", pattern)
}
func (b *SelectBuilder) Is(column, value string) *SelectBuilder { return b.filter(column, "is", value) }

func (b *SelectBuilder) In(column string, values ...string) *SelectBuilder {
	return b.filter(column, "in", "("+strings.Join(values, ",")+")")
}

func (b *SelectBuilder) Order(column string) *SelectBuilder {
	b.orders = append(b.orders, order{column: column})
	return b
}

func (b *SelectBuilder) OrderDesc(column string) *SelectBuilder {
	b.orders = append(b.orders, order{column: column, desc: true})
	return b
}

func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = n
	b.hasLimit = true
	return b
}

func (b *SelectBuilder) Offset(n int) *SelectBuilder {
	b.offset = n
	b.hasOffset = true
	return b
}

// Range fetches rows from index from to index to, both inclusive.
func (b *SelectBuilder) Range(from, to int) *SelectBuilder {
	return b.Offset(from).Limit(to - from + 1)
}

func (b *SelectBuilder) params() url.Values {
	v := url.Values{}

	sel := "*"
	if len(b.columns) > 0 {
		sel = strings.Join(b.columns, ",")
	}
	v.Set("select", sel)

	for _, f := range b.filters {
		v.Add(f.column, f.op+"."+f.value)
	}

	if len(b.orders) > 0 {
		parts := make([]string, len(b.orders))
		for i, o := range b.orders {
			dir := "asc"
			if o.desc {
				dir = "desc"
			}
			parts[i] = o.column + "." + dir
		}
		v.Set("order", strings.Join(parts, ","))
	}

	if b.hasLimit {
		v.Set("limit", strconv.Itoa(b.limit))
	}
	if b.hasOffset {
		v.Set("offset", strconv.Itoa(b.offset))
	}

	return v
}

// encodedParams renders the query string with both parameter names and the
// values of repeated parameters sorted, so two builders describing the same
// logical query encode identically regardless of call order.
func (b *SelectBuilder) encodedParams() string {
	v := b.params()
	for _, values := range v {
		sort.Strings(values)
	}
	return v.Encode()
}

// String renders the full query identity, including the count method, which
// changes the response shape.
func (b *SelectBuilder) String() string {
	s := b.table + "?" + b.encodedParams()
	if b.count != CountNone {
		s += "#count=" + string(b.count)
	}
	return s
}
