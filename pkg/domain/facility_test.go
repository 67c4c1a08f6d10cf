package domain

import (
	"testing"
	"time"
)

var testNow = time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

func TestNewFacilityDefaults(t *testing.T) {
	f := NewFacility(validFacilityFields(), testNow)
	if !IsValidID(f.ID, EntityFacility) {
		t.Fatalf("expected generated facility id, got %q", f.ID)
	}
	if !f.CreatedAt.Equal(testNow) || !f.UpdatedAt.Equal(testNow) || f.LastAccessedAt != nil {
		t.Fatalf("unexpected timestamps %+v", f)
	}
	if !f.Configuration.IsDefault() || f.Status != FacilityActive {
		t.Fatalf("expected default configuration and active status")
	}
	fields := validFacilityFields()
	fields.ID = "facility_1_0001"
	cfg := MinimalFacilityConfiguration()
	fields.Configuration = &cfg
	f = NewFacility(fields, testNow)
	if f.ID != "facility_1_0001" || f.Configuration.IsDefault() {
		t.Fatalf("explicit id and configuration must be kept")
	}
}

func TestFacilityValidateScenario(t *testing.T) {
	f := NewFacility(validFacilityFields(), testNow)
	if errs := f.Validate(); len(errs) != 0 {
		t.Fatalf("expected valid facility, got %v", errs)
	}
	if !IsValid(f) {
		t.Fatalf("IsValid disagrees with Validate")
	}
	f.ContactInfo.Email = ""
	errs := f.Validate()
	if !hasKind(errs, KindRequiredFieldMissing, "contactInfo.email") {
		t.Fatalf("expected missing contact email, got %v", errs)
	}
}

func TestFacilityValidateCollectsAll(t *testing.T) {
	f := NewFacility(validFacilityFields(), testNow)
	f.Name = "  "
	f.ContactInfo.Email = "nobody"
	f.ContactInfo.Phone = StringPtr("x")
	f.Configuration.MaxAnimalsPerRoom = 0
	errs := f.Validate()
	for _, want := range []struct {
		kind  ValidationErrorKind
		field string
	}{
		{KindRequiredFieldMissing, "name"},
		{KindInvalidFormat, "contactInfo.email"},
		{KindInvalidFormat, "contactInfo.phone"},
		{KindValueOutOfRange, "configuration.maxAnimalsPerRoom"},
	} {
		if !hasKind(errs, want.kind, want.field) {
			t.Fatalf("missing %s for %s in %v", want.kind, want.field, errs)
		}
	}
}

func TestFacilityHierarchyAndAccess(t *testing.T) {
	f := NewFacility(validFacilityFields(), testNow)
	if f.HierarchyLevel() != 0 || len(f.HierarchyPath()) != 1 || f.HierarchyPath()[0] != f.ID {
		t.Fatalf("unexpected hierarchy %d %v", f.HierarchyLevel(), f.HierarchyPath())
	}
	f.MarkAccessed(testNow.Add(time.Minute))
	if f.LastAccessedAt == nil || !f.LastAccessedAt.Equal(testNow.Add(time.Minute)) {
		t.Fatalf("last access not recorded")
	}
	cp := f.Clone()
	*cp.LastAccessedAt = testNow
	*cp.ContactInfo.Phone = "changed"
	if f.LastAccessedAt.Equal(testNow) || *f.ContactInfo.Phone == "changed" {
		t.Fatalf("clone shares pointers with original")
	}
}

func TestFacilityStatusOperational(t *testing.T) {
	want := map[FacilityStatus]bool{FacilityActive: true, FacilityMaintenance: true}
	for _, s := range FacilityStatuses() {
		if s.IsOperational() != want[s] {
			t.Fatalf("unexpected operational flag for %s", s)
		}
	}
	if !FacilityBreeding.Valid() || FacilityType("zoo").Valid() {
		t.Fatalf("facility type validity mismatch")
	}
}

func TestFacilityMatchesQuery(t *testing.T) {
	f := NewFacility(validFacilityFields(), testNow)
	f.Description = StringPtr("Primary Rodent Barrier")
	for _, q := range []string{"test", "FACILITY", "rodent"} {
		if !f.MatchesQuery(q) {
			t.Fatalf("expected match for %q", q)
		}
	}
	if f.MatchesQuery("zebrafish") {
		t.Fatalf("unexpected match")
	}
}

func TestNewBuildingAndValidate(t *testing.T) {
	b := NewBuilding(BuildingFields{
		Name:       "North Wing",
		Type:       BuildingAnimalHousing,
		FacilityID: "facility_1_0001",
		Specifications: Specifications{
			TotalAreaSqM:     1200,
			Floors:           3,
			YearBuilt:        IntPtr(1998),
			ConstructionType: ConstructionConcrete,
		},
	}, testNow)
	if !IsValidID(b.ID, EntityBuilding) || b.Status != BuildingActive {
		t.Fatalf("unexpected building %+v", b)
	}
	if errs := b.Validate(); len(errs) != 0 {
		t.Fatalf("expected valid building, got %v", errs)
	}
	if b.HierarchyLevel() != 1 || b.FacilityScope() != "facility_1_0001" {
		t.Fatalf("unexpected hierarchy")
	}
	if path := b.HierarchyPath(); len(path) != 2 || path[0] != "facility_1_0001" || path[1] != b.ID {
		t.Fatalf("unexpected path %v", path)
	}

	b.Name = ""
	b.FacilityID = ""
	b.Specifications.Floors = 0
	b.Specifications.YearBuilt = IntPtr(1700)
	b.Configuration.HumidityMinPercent = 90
	errs := b.Validate()
	for _, field := range []string{"name", "facilityId", "specifications.floors", "specifications.yearBuilt"} {
		if !hasAnyField(errs, field) {
			t.Fatalf("missing error for %s in %v", field, errs)
		}
	}
	if countKind(errs, KindBusinessRuleViolation) != 1 {
		t.Fatalf("expected humidity band violation, got %v", errs)
	}
}

func TestSpecificationsYearUpperBound(t *testing.T) {
	s := Specifications{TotalAreaSqM: 10, Floors: 1, YearBuilt: IntPtr(2031)}
	if errs := s.validateAt(2030); !hasAnyField(errs, "yearBuilt") {
		t.Fatalf("future year should fail, got %v", errs)
	}
	if errs := s.validateAt(2031); len(errs) != 0 {
		t.Fatalf("current year should pass, got %v", errs)
	}
}

func TestBuildingUpdateConfiguration(t *testing.T) {
	b := NewBuilding(BuildingFields{Name: "B", FacilityID: "f", Specifications: Specifications{TotalAreaSqM: 1, Floors: 1}}, testNow)
	bad := DefaultBuildingConfiguration()
	bad.MaxOccupancy = 0
	if err := b.UpdateConfiguration(bad, testNow); err == nil {
		t.Fatalf("expected failure")
	}
	if b.Configuration.MaxOccupancy != DefaultBuildingConfiguration().MaxOccupancy {
		t.Fatalf("configuration changed on failure")
	}
	mustNoError(t, "update", b.UpdateConfiguration(SecureBuildingConfiguration(), testNow.Add(time.Hour)))
	if !b.Configuration.RequireBadgeAccess {
		t.Fatalf("secure configuration not applied")
	}
}

func hasAnyField(errs []ValidationError, field string) bool {
	for _, err := range errs {
		if err.Field == field {
			return true
		}
	}
	return false
}
