// Package domain defines the vivarium entity model, identity scheme, validation engine,
// configuration records and the rule evaluation primitives used by vivariumcore.
package domain

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks the mutation.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Change describes a mutation applied to an entity.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// ID returns the identifier of the changed record.
func (c Change) ID() string {
	for _, v := range []any{c.After, c.Before} {
		switch rec := v.(type) {
		case Facility:
			return rec.ID
		case Building:
			return rec.ID
		}
	}
	return ""
}

// FacilityID returns the owning facility of the changed record, which is the record itself
// for facilities.
func (c Change) FacilityID() string {
	for _, v := range []any{c.After, c.Before} {
		switch rec := v.(type) {
		case Facility:
			return rec.ID
		case Building:
			return rec.FacilityID
		}
	}
	return ""
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity"`
	EntityID string     `json:"entityId"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "mutation blocked by rules: " + v.Rule + ": " + v.Message
		}
	}
	return "mutation blocked by rules"
}
