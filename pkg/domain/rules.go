package domain

import (
	"context"
	"fmt"
)

// RuleView provides read-only access to the candidate state for rule evaluation.
type RuleView interface {
	ListFacilities() []Facility
	ListBuildings() []Building
	FindFacility(id string) (Facility, bool)
	FindBuilding(id string) (Building, bool)
}

// Rule defines an evaluation executed before a mutation commits.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// NewDefaultRulesEngine returns an engine with the built-in referential rules registered.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(BuildingFacilityReferenceRule())
	engine.Register(FacilityOrphanedBuildingsRule())
	return engine
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rule names in evaluation order.
func (e *RulesEngine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name()
	}
	return names
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		combined.Merge(res)
	}
	return combined, nil
}

// RuleFunc adapts a function into a Rule.
type RuleFunc struct {
	RuleName string
	Fn       func(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// Name implements Rule.
func (r RuleFunc) Name() string { return r.RuleName }

// Evaluate implements Rule.
func (r RuleFunc) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	return r.Fn(ctx, view, changes)
}

// Built-in rule names.
const (
	RuleBuildingFacilityReference = "building_facility_reference"
	RuleFacilityOrphanedBuildings = "facility_orphaned_buildings"
)

// BuildingFacilityReferenceRule blocks any building whose facility is missing from the
// candidate state.
func BuildingFacilityReferenceRule() Rule {
	return RuleFunc{RuleName: RuleBuildingFacilityReference, Fn: func(_ context.Context, view RuleView, changes []Change) (Result, error) {
		var res Result
		for _, change := range changes {
			if change.Entity != EntityBuilding || change.Action == ActionDelete {
				continue
			}
			b, ok := change.After.(Building)
			if !ok {
				continue
			}
			if _, exists := view.FindFacility(b.FacilityID); !exists {
				res.Violations = append(res.Violations, Violation{
					Rule:     RuleBuildingFacilityReference,
					Severity: SeverityBlock,
					Message:  fmt.Sprintf("facility %s does not exist", b.FacilityID),
					Entity:   EntityBuilding,
					EntityID: b.ID,
				})
			}
		}
		return res, nil
	}}
}

// FacilityOrphanedBuildingsRule warns when a deleted facility still owns buildings.
func FacilityOrphanedBuildingsRule() Rule {
	return RuleFunc{RuleName: RuleFacilityOrphanedBuildings, Fn: func(_ context.Context, view RuleView, changes []Change) (Result, error) {
		var res Result
		for _, change := range changes {
			if change.Entity != EntityFacility || change.Action != ActionDelete {
				continue
			}
			id := change.ID()
			owned := 0
			for _, b := range view.ListBuildings() {
				if b.FacilityID == id {
					owned++
				}
			}
			if owned > 0 {
				res.Violations = append(res.Violations, Violation{
					Rule:     RuleFacilityOrphanedBuildings,
					Severity: SeverityWarn,
					Message:  fmt.Sprintf("facility still owns %d building(s)", owned),
					Entity:   EntityFacility,
					EntityID: id,
				})
			}
		}
		return res, nil
	}}
}
