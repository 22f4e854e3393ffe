package sync

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// TransformSpec
// ---------------------------------------------------------------------------

// AdjustMode selects how a price adjustment is applied
type AdjustMode string

const (
	// AdjustModeDelta adds a fixed amount to each price
	AdjustModeDelta AdjustMode = "DELTA"
	// AdjustModePercent scales each price by (1 + value/100)
	AdjustModePercent AdjustMode = "PERCENT"
)

// IsValid returns true if the adjust mode is valid
func (m AdjustMode) IsValid() bool {
	return m == AdjustModeDelta || m == AdjustModePercent
}

// PriceAdjustment adjusts a price-bearing field on the record and on every
// variant sub-record carrying the same field.
type PriceAdjustment struct {
	Mode  AdjustMode      `json:"mode"`
	Value decimal.Decimal `json:"value"`
}

// apply returns the adjusted price
func (p PriceAdjustment) apply(price decimal.Decimal) decimal.Decimal {
	if p.Mode == AdjustModePercent {
		factor := decimal.NewFromInt(1).Add(p.Value.Div(decimal.NewFromInt(100)))
		return price.Mul(factor).Round(2)
	}
	return price.Add(p.Value).Round(2)
}

// FieldRule is a single target-field transformation: a literal value, a
// string template with {path.to.field} placeholders, or a price adjustment.
type FieldRule struct {
	// Literal sets the target field to a fixed value
	Literal any `json:"literal,omitempty"`
	// Template sets the target field from a template resolved against the
	// source record; unresolved placeholders are preserved verbatim
	Template *string `json:"template,omitempty"`
	// Adjust applies a numeric adjustment to the target price field on the
	// record and each of its variants
	Adjust *PriceAdjustment `json:"adjust,omitempty"`
}

// TransformSpec maps target field paths to transformation rules
type TransformSpec map[string]FieldRule

// placeholderPattern matches {path.to.field} template placeholders
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+(?:\.[A-Za-z0-9_]+)*)\}`)

// Apply maps a source record through the spec, returning a new record.
// It is deterministic, total, and side-effect free: the source record is
// never mutated and identical inputs yield identical output.
func (s TransformSpec) Apply(record *InternalRecord) *InternalRecord {
	out := record.Clone()
	if len(s) == 0 {
		return out
	}
	for path, rule := range s {
		switch {
		case rule.Adjust != nil && rule.Adjust.Mode.IsValid():
			applyPriceAdjustment(out, path, *rule.Adjust)
		case rule.Template != nil:
			out.Set(path, resolveTemplate(*rule.Template, record))
		case rule.Literal != nil:
			out.Set(path, rule.Literal)
		}
	}
	return out
}

// resolveTemplate replaces {a.b.c} placeholders with the stringified value
// at that path in the source record. Absent paths leave the placeholder
// text unchanged rather than substituting an empty string, so unresolved
// templates stay visible instead of silently corrupting the field.
func resolveTemplate(template string, record *InternalRecord) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(placeholder string) string {
		path := placeholder[1 : len(placeholder)-1]
		if value, ok := record.GetString(path); ok {
			return value
		}
		return placeholder
	})
}

// applyPriceAdjustment adjusts the named price field on the record itself
// and on every variant sub-record where the field is numeric. Non-numeric
// and absent fields are left untouched.
func applyPriceAdjustment(record *InternalRecord, field string, adjust PriceAdjustment) {
	if value, ok := record.Get(field); ok {
		if price, numeric := ToDecimal(value); numeric {
			record.Set(field, adjust.apply(price).StringFixed(2))
		}
	}
	for _, variant := range record.Variants() {
		if value, ok := variant[field]; ok {
			if price, numeric := ToDecimal(value); numeric {
				variant[field] = adjust.apply(price).StringFixed(2)
			}
		}
	}
}

// Validate checks that every rule in the spec is well-formed
func (s TransformSpec) Validate() error {
	for _, rule := range s {
		set := 0
		if rule.Literal != nil {
			set++
		}
		if rule.Template != nil {
			set++
		}
		if rule.Adjust != nil {
			set++
			if !rule.Adjust.Mode.IsValid() {
				return ErrRuleInvalidTransform
			}
		}
		if set != 1 {
			return ErrRuleInvalidTransform
		}
	}
	return nil
}
