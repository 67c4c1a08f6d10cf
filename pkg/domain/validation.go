package domain

import (
	"cmp"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ValidationErrorKind tags the variant carried by a ValidationError.
type ValidationErrorKind string

// Validation error variants.
const (
	KindRequiredFieldMissing  ValidationErrorKind = "required_field_missing"
	KindInvalidFormat         ValidationErrorKind = "invalid_format"
	KindValueOutOfRange       ValidationErrorKind = "value_out_of_range"
	KindDuplicateValue        ValidationErrorKind = "duplicate_value"
	KindInvalidRelationship   ValidationErrorKind = "invalid_relationship"
	KindBusinessRuleViolation ValidationErrorKind = "business_rule_violation"
	KindCustom                ValidationErrorKind = "custom"
)

// Common field patterns.
const (
	EmailPattern           = `^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`
	PhonePattern           = `^\+?[0-9][0-9 ()\-.]{6,19}$`
	SemanticVersionPattern = `^\d+\.\d+\.\d+$`
)

// ValidationError describes a single field-level or rule-level failure. Only the members
// relevant to Kind are populated.
type ValidationError struct {
	Kind    ValidationErrorKind `json:"kind"`
	Field   string              `json:"field,omitempty"`
	Pattern string              `json:"pattern,omitempty"`
	Value   string              `json:"value,omitempty"`
	Range   string              `json:"range,omitempty"`
	Reason  string              `json:"reason,omitempty"`
	Rule    string              `json:"rule,omitempty"`
	Message string              `json:"message,omitempty"`
}

// RequiredFieldMissing reports a missing or blank required field.
func RequiredFieldMissing(field string) ValidationError {
	return ValidationError{Kind: KindRequiredFieldMissing, Field: field}
}

// InvalidFormat reports a value that does not match its expected pattern.
func InvalidFormat(field, pattern string) ValidationError {
	return ValidationError{Kind: KindInvalidFormat, Field: field, Pattern: pattern}
}

// ValueOutOfRange reports a value outside its accepted range.
func ValueOutOfRange(field, value, rng string) ValidationError {
	return ValidationError{Kind: KindValueOutOfRange, Field: field, Value: value, Range: rng}
}

// DuplicateValue reports a value that must be unique but is not.
func DuplicateValue(field, value string) ValidationError {
	return ValidationError{Kind: KindDuplicateValue, Field: field, Value: value}
}

// InvalidRelationship reports a reference that cannot be satisfied.
func InvalidRelationship(field, reason string) ValidationError {
	return ValidationError{Kind: KindInvalidRelationship, Field: field, Reason: reason}
}

// BusinessRuleViolation reports a cross-field rule failure.
func BusinessRuleViolation(rule string) ValidationError {
	return ValidationError{Kind: KindBusinessRuleViolation, Rule: rule}
}

// Custom carries a free-form message.
func Custom(message string) ValidationError {
	return ValidationError{Kind: KindCustom, Message: message}
}

// Description returns a human-readable summary of the failure.
func (e ValidationError) Description() string {
	switch e.Kind {
	case KindRequiredFieldMissing:
		return fmt.Sprintf("%s is required", e.Field)
	case KindInvalidFormat:
		return fmt.Sprintf("%s has an invalid format (expected %s)", e.Field, e.Pattern)
	case KindValueOutOfRange:
		return fmt.Sprintf("%s value %s is out of range (%s)", e.Field, e.Value, e.Range)
	case KindDuplicateValue:
		return fmt.Sprintf("%s value %s already exists", e.Field, e.Value)
	case KindInvalidRelationship:
		return fmt.Sprintf("%s has an invalid relationship: %s", e.Field, e.Reason)
	case KindBusinessRuleViolation:
		return fmt.Sprintf("business rule violated: %s", e.Rule)
	default:
		return e.Message
	}
}

func (e ValidationError) Error() string { return e.Description() }

// FieldName returns the associated field, if the variant carries one.
func (e ValidationError) FieldName() (string, bool) {
	if e.Field == "" {
		return "", false
	}
	return e.Field, true
}

// withFieldPrefix qualifies the field name, e.g. "configuration" + "minPasswordLength".
func (e ValidationError) withFieldPrefix(prefix string) ValidationError {
	if prefix == "" || e.Field == "" {
		return e
	}
	e.Field = prefix + "." + e.Field
	return e
}

// Validator is implemented by every self-validating record. An empty result means valid.
type Validator interface {
	Validate() []ValidationError
}

// IsValid reports whether v produces no validation errors.
func IsValid(v Validator) bool {
	return len(v.Validate()) == 0
}

var (
	patternMu    sync.Mutex
	patternCache = make(map[string]*regexp.Regexp)
)

func compiledPattern(pattern string) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()
	if re, ok := patternCache[pattern]; ok {
		return re
	}
	re := regexp.MustCompile(pattern)
	patternCache[pattern] = re
	return re
}

// ValidateRequiredString fails when value is nil or blank after trimming whitespace.
func ValidateRequiredString(value *string, field string) *ValidationError {
	if value == nil || strings.TrimSpace(*value) == "" {
		err := RequiredFieldMissing(field)
		return &err
	}
	return nil
}

// ValidateStringPattern fails when a present value does not fully match pattern. Nil passes.
func ValidateStringPattern(value *string, pattern, field string) *ValidationError {
	if value == nil {
		return nil
	}
	if !compiledPattern(`^(?:` + pattern + `)$`).MatchString(*value) {
		err := InvalidFormat(field, pattern)
		return &err
	}
	return nil
}

// Number is the set of numeric kinds accepted by range validation.
type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// ValidateNumericRange fails when a present value lies outside [lower, upper].
func ValidateNumericRange[T Number](value *T, lower, upper T, field string) *ValidationError {
	if value == nil {
		return nil
	}
	if cmp.Less(*value, lower) || cmp.Less(upper, *value) {
		err := ValueOutOfRange(field, fmt.Sprint(*value), fmt.Sprintf("%v to %v", lower, upper))
		return &err
	}
	return nil
}

// ValidateDateRange fails when a present date lies outside [earliest, latest].
func ValidateDateRange(date *time.Time, earliest, latest time.Time, field string) *ValidationError {
	if date == nil {
		return nil
	}
	if date.Before(earliest) || date.After(latest) {
		err := ValueOutOfRange(field, date.Format(time.RFC3339), fmt.Sprintf("%s to %s", earliest.Format(time.RFC3339), latest.Format(time.RFC3339)))
		return &err
	}
	return nil
}

// ValidationRule evaluates one check and returns any failures.
type ValidationRule func() []ValidationError

// RuleSet is an ordered list of rules evaluated uniformly. Every rule runs even when an
// earlier one failed.
type RuleSet []ValidationRule

// Rules builds a RuleSet.
func Rules(rules ...ValidationRule) RuleSet { return rules }

// Validate runs every rule and concatenates the failures.
func (rs RuleSet) Validate() []ValidationError {
	var out []ValidationError
	for _, rule := range rs {
		out = append(out, rule()...)
	}
	return out
}

func single(err *ValidationError) []ValidationError {
	if err == nil {
		return nil
	}
	return []ValidationError{*err}
}

// Check pairs a predicate with the error produced when the predicate does not hold.
func Check(ok func() bool, build func() ValidationError) ValidationRule {
	return func() []ValidationError {
		if ok() {
			return nil
		}
		return []ValidationError{build()}
	}
}

// Required wraps ValidateRequiredString for a non-optional string.
func Required(value, field string) ValidationRule {
	return func() []ValidationError { return single(ValidateRequiredString(&value, field)) }
}

// Pattern wraps ValidateStringPattern.
func Pattern(value *string, pattern, field string) ValidationRule {
	return func() []ValidationError { return single(ValidateStringPattern(value, pattern, field)) }
}

// InRange wraps ValidateNumericRange for a non-optional value.
func InRange[T Number](value, lower, upper T, field string) ValidationRule {
	return func() []ValidationError { return single(ValidateNumericRange(&value, lower, upper, field)) }
}

// OptionalInRange wraps ValidateNumericRange for an optional value.
func OptionalInRange[T Number](value *T, lower, upper T, field string) ValidationRule {
	return func() []ValidationError { return single(ValidateNumericRange(value, lower, upper, field)) }
}

// Nested flattens the errors of a composed validator, qualifying field names with prefix.
func Nested(prefix string, v Validator) ValidationRule {
	return func() []ValidationError {
		errs := v.Validate()
		if len(errs) == 0 {
			return nil
		}
		out := make([]ValidationError, len(errs))
		for i, err := range errs {
			out[i] = err.withFieldPrefix(prefix)
		}
		return out
	}
}

// EachEmail validates every list element against EmailPattern using "field[i]" names.
func EachEmail(values []string, field string) ValidationRule {
	return func() []ValidationError {
		var out []ValidationError
		for i := range values {
			out = append(out, single(ValidateStringPattern(&values[i], EmailPattern, fmt.Sprintf("%s[%d]", field, i)))...)
		}
		return out
	}
}
