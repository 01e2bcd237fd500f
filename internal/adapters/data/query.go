package data

import (
	"net/url"
	"strconv"
)

// Query builds a rest/v1 resource path from field/operator/value triples.
// Call sites construct queries instead of hand-joining strings so the tenant
// filter is hard to get wrong.
type Query struct {
	table  string
	params url.Values
}

// Table starts a query for the given table.
func Table(name string) *Query {
	return &Query{table: name, params: url.Values{}}
}

// Select sets the select= column list.
func (q *Query) Select(cols string) *Query {
	q.params.Set("select", cols)
	return q
}

// Eq adds a field=eq.value equality filter.
func (q *Query) Eq(field, value string) *Query {
	q.params.Set(field, "eq."+value)
	return q
}

// Order sets the order= expression, e.g. "created_at.desc".
func (q *Query) Order(expr string) *Query {
	q.params.Set("order", expr)
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q.params.Set("limit", strconv.Itoa(n))
	return q
}

// Resource renders the query as a resource path for the data client.
func (q *Query) Resource() string {
	if len(q.params) == 0 {
		return q.table
	}
	return q.table + "?" + q.params.Encode()
}
