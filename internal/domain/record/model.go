package record

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Field input kinds. These mirror the HTML input types the form layer renders.
const (
	TypeText     = "text"
	TypeNumber   = "number"
	TypeDate     = "date"
	TypeDateTime = "datetime-local"
	TypeSelect   = "select"
	TypeTextarea = "textarea"
)

// System fields every table carries; they are always selected but never part
// of a field-descriptor list.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldGymID     = "gym_id"
)

// DefaultSelect is the baseline column list prepended to every fetch.
const DefaultSelect = "id,created_at"

// Option is one choice of a select-typed field.
type Option struct {
	Label string
	Value string
}

// Field describes one editable column of a table. The CRUD engine is
// schema-agnostic: it is parameterized by an ordered list of these and never
// hard-codes entity semantics.
type Field struct {
	Name        string
	Label       string
	Type        string // empty means TypeText
	Options     []Option
	Required    bool
	Placeholder string
}

// IsSelect reports whether the field is select-typed (and therefore usable as
// a categorical view filter).
func (f Field) IsSelect() bool {
	return f.Type == TypeSelect
}

// Record is an open mapping from field name to scalar value (string, number
// or null), plus the implicit system fields id and created_at.
type Record map[string]any

// ID returns the row's id, or "" if absent.
func (r Record) ID() string {
	return Stringify(r[FieldID])
}

// Stringify renders a scalar value for display and search. Numbers decoded
// from JSON arrive as float64 and are formatted without a trailing exponent.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Coerce applies the type coercion policy to a raw form value.
// Numeric-typed fields parse to a number; unparsable input becomes null so
// a bad number never blocks submission. All other types pass through.
func Coerce(fieldType, raw string) any {
	if fieldType == TypeNumber {
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil
		}
		return n
	}
	return raw
}

// BuildPayload assembles a write payload from form values: every declared
// field, no fields outside the declared list, plus the injected tenant id.
// PRE: gymID is the caller's resolved tenant id
// POST: payload contains len(fields)+1 keys
func BuildPayload(fields []Field, form map[string]string, gymID string) Record {
	payload := Record{FieldGymID: gymID}
	for _, f := range fields {
		payload[f.Name] = Coerce(f.Type, form[f.Name])
	}
	return payload
}

// ValidateFields checks a descriptor list for mistakes that would otherwise
// surface as confusing runtime behavior.
func ValidateFields(fields []Field) error {
	if len(fields) == 0 {
		return errors.New("field list cannot be empty")
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f.Name) == "" {
			return errors.New("field name cannot be empty")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true
		if f.Type == TypeSelect && len(f.Options) == 0 {
			return fmt.Errorf("select field %q has no options", f.Name)
		}
	}
	return nil
}

// SelectList builds the select= column list for a fetch: the system fields
// followed by every declared field, unless a custom select overrides it.
func SelectList(fields []Field, custom string) string {
	if custom != "" {
		return custom
	}
	names := make([]string, 0, len(fields)+2)
	names = append(names, DefaultSelect)
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return strings.Join(names, ",")
}

// MatchesSearch reports whether any declared field's stringified value
// contains the query, case-insensitively. An empty query matches everything.
func MatchesSearch(r Record, fields []Field, query string) bool {
	if query == "" {
		return true
	}
	needle := strings.ToLower(query)
	for _, f := range fields {
		v, ok := r[f.Name]
		if !ok || v == nil {
			continue
		}
		if strings.Contains(strings.ToLower(Stringify(v)), needle) {
			return true
		}
	}
	return false
}

// MatchesFilter reports whether the row's value for the chosen field equals
// the chosen option value. An unset field or value matches everything.
func MatchesFilter(r Record, field, value string) bool {
	if field == "" || value == "" {
		return true
	}
	return Stringify(r[field]) == value
}

// FilterView applies the search and categorical filter over an already
// fetched page of rows. Both are pure view filters and commute: search then
// filter yields the same rows as filter then search.
func FilterView(rows []Record, fields []Field, search, filterField, filterValue string) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		if MatchesSearch(r, fields, search) && MatchesFilter(r, filterField, filterValue) {
			out = append(out, r)
		}
	}
	return out
}

// UPI payment preview. One recognized field name triggers a derived payment
// QR when the sibling payment-method field equals "upi". This is a view-layer
// derivation only; nothing extra is persisted.
const (
	FieldPaymentMethod = "payment_method"
	FieldUPIID         = "upi_id"
	PaymentMethodUPI   = "upi"
	DefaultUPIID       = "fitsutra@upi"
)

// UPIPayload builds the upi://pay URI for the given payee identifier,
// falling back to the default when blank.
func UPIPayload(upiID string) string {
	cleaned := strings.TrimSpace(upiID)
	if cleaned == "" {
		cleaned = DefaultUPIID
	}
	return "upi://pay?pa=" + url.QueryEscape(cleaned) + "&pn=FitSutra&cu=INR"
}

// ShowUPIPreview reports whether the QR preview should render for the given
// form state.
func ShowUPIPreview(form map[string]string) bool {
	return form[FieldPaymentMethod] == PaymentMethodUPI
}
