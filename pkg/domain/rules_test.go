package domain

import (
	"context"
	"testing"
)

type sliceView struct {
	facilities []Facility
	buildings  []Building
}

func (v sliceView) ListFacilities() []Facility { return v.facilities }
func (v sliceView) ListBuildings() []Building  { return v.buildings }

func (v sliceView) FindFacility(id string) (Facility, bool) {
	for _, f := range v.facilities {
		if f.ID == id {
			return f, true
		}
	}
	return Facility{}, false
}

func (v sliceView) FindBuilding(id string) (Building, bool) {
	for _, b := range v.buildings {
		if b.ID == id {
			return b, true
		}
	}
	return Building{}, false
}

func TestDefaultRulesEngineBlocksDanglingBuilding(t *testing.T) {
	engine := NewDefaultRulesEngine()
	if names := engine.Rules(); len(names) != 2 || names[0] != RuleBuildingFacilityReference {
		t.Fatalf("unexpected rules %v", names)
	}
	b := Building{ID: "building_1_0001", FacilityID: "facility_1_0001"}
	changes := []Change{{Entity: EntityBuilding, Action: ActionCreate, After: b}}
	res, err := engine.Evaluate(context.Background(), sliceView{buildings: []Building{b}}, changes)
	mustNoError(t, "evaluate", err)
	if !res.HasBlocking() || res.Violations[0].EntityID != b.ID {
		t.Fatalf("expected blocking violation, got %+v", res)
	}
	view := sliceView{facilities: []Facility{{ID: "facility_1_0001"}}, buildings: []Building{b}}
	res, err = engine.Evaluate(context.Background(), view, changes)
	mustNoError(t, "evaluate", err)
	if len(res.Violations) != 0 {
		t.Fatalf("expected no violations, got %+v", res)
	}
}

func TestDefaultRulesEngineWarnsOnOrphans(t *testing.T) {
	engine := NewDefaultRulesEngine()
	f := Facility{ID: "facility_1_0001"}
	view := sliceView{buildings: []Building{{ID: "b1", FacilityID: f.ID}, {ID: "b2", FacilityID: f.ID}}}
	res, err := engine.Evaluate(context.Background(), view, []Change{{Entity: EntityFacility, Action: ActionDelete, Before: f}})
	mustNoError(t, "evaluate", err)
	if len(res.Violations) != 1 || res.HasBlocking() || res.Violations[0].Rule != RuleFacilityOrphanedBuildings {
		t.Fatalf("expected orphan warning, got %+v", res)
	}
}

func TestChangeIdentifiers(t *testing.T) {
	c := Change{Entity: EntityBuilding, Action: ActionDelete, Before: Building{ID: "b", FacilityID: "f"}}
	if c.ID() != "b" || c.FacilityID() != "f" {
		t.Fatalf("unexpected identifiers %q %q", c.ID(), c.FacilityID())
	}
	if (Change{}).ID() != "" {
		t.Fatalf("empty change has no id")
	}
}
