package sync

import (
	"regexp"
	"strings"
)

// ---------------------------------------------------------------------------
// PredicateSpec
// ---------------------------------------------------------------------------

// NumericRange matches numeric values within an inclusive [Min, Max] bound.
// A nil bound is unbounded on that side.
type NumericRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Condition is a single field-level matcher. A condition with no matcher
// set is ignored, which keeps older specs forward-compatible with newer
// matcher kinds.
type Condition struct {
	// Equals matches the exact stringified field value, case-insensitively
	Equals *string `json:"equals,omitempty"`
	// Contains matches a case-insensitive substring of the field value
	Contains *string `json:"contains,omitempty"`
	// Pattern matches the field value against a case-insensitive regex
	Pattern *string `json:"pattern,omitempty"`
	// Range matches numeric field values within an inclusive range
	Range *NumericRange `json:"range,omitempty"`
}

// isEmpty returns true if no matcher is set on this condition
func (c Condition) isEmpty() bool {
	return c.Equals == nil && c.Contains == nil && c.Pattern == nil && c.Range == nil
}

// PredicateSpec maps field paths to matchers. Evaluation is conjunctive:
// every present predicate must hold. Absence of a key means "don't filter
// on this field"; the empty spec matches every record.
type PredicateSpec map[string]Condition

// Matches evaluates the spec against a record. It is stateless,
// deterministic, and total: partially populated records never panic, a
// predicate over an absent field simply does not match.
func (s PredicateSpec) Matches(record *InternalRecord) bool {
	if len(s) == 0 {
		return true
	}
	for path, cond := range s {
		if cond.isEmpty() {
			continue
		}
		value, ok := record.Get(path)
		if !ok {
			return false
		}
		if !cond.matches(value) {
			return false
		}
	}
	return true
}

// matches evaluates a single condition against a resolved field value
func (c Condition) matches(value any) bool {
	if c.Equals != nil {
		if !strings.EqualFold(Stringify(value), *c.Equals) {
			return false
		}
	}
	if c.Contains != nil {
		if !strings.Contains(strings.ToLower(Stringify(value)), strings.ToLower(*c.Contains)) {
			return false
		}
	}
	if c.Pattern != nil {
		re, err := regexp.Compile("(?i)" + *c.Pattern)
		if err != nil {
			// A malformed pattern never matches; evaluation stays total.
			return false
		}
		if !re.MatchString(Stringify(value)) {
			return false
		}
	}
	if c.Range != nil {
		d, ok := ToDecimal(value)
		if !ok {
			return false
		}
		f, _ := d.Float64()
		if c.Range.Min != nil && f < *c.Range.Min {
			return false
		}
		if c.Range.Max != nil && f > *c.Range.Max {
			return false
		}
	}
	return true
}

// Validate checks that every condition in the spec is well-formed.
// Malformed specs are rejected before a run starts.
func (s PredicateSpec) Validate() error {
	for _, cond := range s {
		if cond.Pattern != nil {
			if _, err := regexp.Compile("(?i)" + *cond.Pattern); err != nil {
				return ErrRuleInvalidPredicate
			}
		}
		if cond.Range != nil && cond.Range.Min != nil && cond.Range.Max != nil {
			if *cond.Range.Min > *cond.Range.Max {
				return ErrRuleInvalidPredicate
			}
		}
	}
	return nil
}
