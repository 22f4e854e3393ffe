package sync

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// EntityKind
// ---------------------------------------------------------------------------

// EntityKind represents the kind of entity a rule or record refers to
type EntityKind string

const (
	// EntityKindProduct represents product records
	EntityKindProduct EntityKind = "PRODUCT"
	// EntityKindInventory represents inventory level records
	EntityKindInventory EntityKind = "INVENTORY"
	// EntityKindOrder represents order records
	EntityKindOrder EntityKind = "ORDER"
)

// IsValid returns true if the entity kind is valid
func (k EntityKind) IsValid() bool {
	switch k {
	case EntityKindProduct, EntityKindInventory, EntityKindOrder:
		return true
	default:
		return false
	}
}

// String returns the string representation of EntityKind
func (k EntityKind) String() string {
	return string(k)
}

// ---------------------------------------------------------------------------
// InternalRecord
// ---------------------------------------------------------------------------

// InternalRecord is the platform-neutral representation of a product,
// inventory level, or order. Connectors produce it via ToInternal and
// consume it via FromInternal; the matcher and transformation engine
// operate on it exclusively.
type InternalRecord struct {
	// Kind is the entity kind this record represents
	Kind EntityKind
	// ExternalID is the record's id on the store it was fetched from
	ExternalID string
	// Fields holds the record's data as nested maps keyed by field name
	Fields map[string]any
}

// NewInternalRecord creates an internal record with an empty field set
func NewInternalRecord(kind EntityKind, externalID string) *InternalRecord {
	return &InternalRecord{
		Kind:       kind,
		ExternalID: externalID,
		Fields:     make(map[string]any),
	}
}

// Get resolves a dot-separated path ("a.b.c") against the record's fields.
// The second return value is false when any segment of the path is absent.
func (r *InternalRecord) Get(path string) (any, bool) {
	if r == nil || r.Fields == nil || path == "" {
		return nil, false
	}
	var current any = r.Fields
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// GetString resolves a path and stringifies the value found there
func (r *InternalRecord) GetString(path string) (string, bool) {
	v, ok := r.Get(path)
	if !ok {
		return "", false
	}
	return Stringify(v), true
}

// Set writes a value at a dot-separated path, creating intermediate maps
// as needed. Existing non-map intermediates are replaced.
func (r *InternalRecord) Set(path string, value any) {
	if path == "" {
		return
	}
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	segments := strings.Split(path, ".")
	current := r.Fields
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}

// Clone returns a deep copy of the record. Transformations operate on a
// clone so the source record is never mutated.
func (r *InternalRecord) Clone() *InternalRecord {
	if r == nil {
		return nil
	}
	return &InternalRecord{
		Kind:       r.Kind,
		ExternalID: r.ExternalID,
		Fields:     cloneMap(r.Fields),
	}
}

// Variants returns the record's variant sub-records, if present.
// The returned maps alias the record's fields; callers mutating them
// must hold a clone.
func (r *InternalRecord) Variants() []map[string]any {
	raw, ok := r.Get("variants")
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	variants := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			variants = append(variants, m)
		}
	}
	return variants
}

// ---------------------------------------------------------------------------
// Value Helpers
// ---------------------------------------------------------------------------

// Stringify converts a field value to its canonical string form
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case decimal.Decimal:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ToDecimal converts a field value to a decimal, reporting whether the
// value was numeric. Strings are parsed; non-numeric values do not convert.
func ToDecimal(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case decimal.Decimal:
		return val, true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case float64:
		return decimal.NewFromFloat(val), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

// cloneMap deep-copies a field map
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies a field value
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
