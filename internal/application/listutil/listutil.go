// Package listutil parses list-view query parameters into the narrowing
// the table engine applies. Unrecognized fields and values are dropped
// rather than rejected, so a stale link still renders the page.
package listutil

import (
	"net/url"

	"fitsutra/internal/application/crud"
	"fitsutra/internal/domain/record"
)

// ParseView extracts search and categorical filter parameters, keeping
// only filters that name a declared select-typed field and one of its
// options.
// POST: the returned View is safe to apply to any row set
func ParseView(q url.Values, fields []record.Field) crud.View {
	view := crud.View{Search: q.Get("q")}

	field := q.Get("filter_field")
	value := q.Get("filter_value")
	if field == "" || value == "" {
		return view
	}
	for _, f := range fields {
		if f.Name != field || !f.IsSelect() {
			continue
		}
		for _, opt := range f.Options {
			if opt.Value == value {
				view.FilterField = field
				view.FilterValue = value
				return view
			}
		}
	}
	return view
}

// FilterableFields returns the select-typed fields a page can offer as
// filter dropdowns.
func FilterableFields(fields []record.Field) []record.Field {
	var out []record.Field
	for _, f := range fields {
		if f.IsSelect() {
			out = append(out, f)
		}
	}
	return out
}
