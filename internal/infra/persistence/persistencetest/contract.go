// Package persistencetest holds the behavioural contract every domain.Repository
// implementation is expected to satisfy.
package persistencetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"vivariumcore/pkg/domain"
)

// Fixture timestamps are UTC and truncated so every backend round-trips them exactly.
var fixtureTime = time.Date(2025, 1, 6, 9, 30, 0, 0, time.UTC)

// Facility returns a fully populated facility fixture.
func Facility(id string) domain.Facility {
	cfg := domain.SecureFacilityConfiguration()
	cfg.NotificationRecipients = []string{"ops@vivarium.test"}
	f := domain.NewFacility(domain.FacilityFields{
		ID:          id,
		Name:        "Facility " + id,
		Description: domain.StringPtr("barrier suite"),
		Type:        domain.FacilityBreeding,
		Status:      domain.FacilityActive,
		ContactInfo: domain.ContactInfo{
			PrimaryContact: "A. Curator",
			Email:          "curator@vivarium.test",
			Phone:          domain.StringPtr("+44 20 7946 0000"),
		},
		Address: domain.Address{
			Street: "2 Lab Road", City: "Cambridge", State: "CB", PostalCode: "CB2 1TN", Country: "UK",
		},
		OperatingHours: domain.StandardOperatingHours(),
		Configuration:  &cfg,
	}, fixtureTime)
	f.MarkAccessed(fixtureTime.Add(time.Hour))
	return f
}

// Building returns a building fixture owned by facilityID.
func Building(id, facilityID string) domain.Building {
	return domain.NewBuilding(domain.BuildingFields{
		ID:         id,
		Name:       "Building " + id,
		Type:       domain.BuildingAnimalHousing,
		FacilityID: facilityID,
		Address: domain.Address{
			Street: "2 Lab Road", City: "Cambridge", State: "CB", PostalCode: "CB2 1TN", Country: "UK",
		},
		Specifications: domain.Specifications{
			TotalAreaSqM:     2500.5,
			Floors:           4,
			YearBuilt:        domain.IntPtr(2004),
			ConstructionType: domain.ConstructionSteel,
			Systems:          domain.BuildingSystems{HVAC: true, BackupPower: true},
		},
	}, fixtureTime)
}

// RunRepositoryContract exercises CRUD, ordering, round-trip fidelity and error
// classification against repositories produced by newRepo.
func RunRepositoryContract(t *testing.T, newRepo func(t *testing.T) domain.Repository) {
	t.Helper()
	ctx := context.Background()

	t.Run("facility round trip", func(t *testing.T) {
		repo := newRepo(t)
		want := Facility("facility_1_0001")
		if err := repo.CreateFacility(ctx, want); err != nil {
			t.Fatalf("create: %v", err)
		}
		got, err := repo.GetFacility(ctx, want.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("facility mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("building round trip", func(t *testing.T) {
		repo := newRepo(t)
		want := Building("building_1_0001", "facility_1_0001")
		if err := repo.CreateBuilding(ctx, want); err != nil {
			t.Fatalf("create: %v", err)
		}
		got, err := repo.GetBuilding(ctx, want.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("building mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("conflict and not found", func(t *testing.T) {
		repo := newRepo(t)
		f := Facility("facility_1_0002")
		if err := repo.CreateFacility(ctx, f); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := repo.CreateFacility(ctx, f); domain.KindOf(err) != domain.ErrorKindAlreadyExists {
			t.Fatalf("expected already exists, got %v", err)
		}
		if _, err := repo.GetFacility(ctx, "facility_9_9999"); domain.KindOf(err) != domain.ErrorKindNotFound {
			t.Fatalf("expected not found on get, got %v", err)
		}
		missing := Facility("facility_9_9999")
		if err := repo.UpdateFacility(ctx, missing); domain.KindOf(err) != domain.ErrorKindNotFound {
			t.Fatalf("expected not found on update, got %v", err)
		}
		if err := repo.DeleteFacility(ctx, missing.ID); domain.KindOf(err) != domain.ErrorKindNotFound {
			t.Fatalf("expected not found on delete, got %v", err)
		}
		if err := repo.DeleteBuilding(ctx, "building_9_9999"); domain.KindOf(err) != domain.ErrorKindNotFound {
			t.Fatalf("expected not found on building delete, got %v", err)
		}
		list, err := repo.ListFacilities(ctx)
		if err != nil || len(list) != 1 {
			t.Fatalf("failed operations must not change the store: %d %v", len(list), err)
		}
	})

	t.Run("update delete and order", func(t *testing.T) {
		repo := newRepo(t)
		ids := []string{"facility_3_0003", "facility_1_0001", "facility_2_0002"}
		for _, id := range ids {
			if err := repo.CreateFacility(ctx, Facility(id)); err != nil {
				t.Fatalf("create %s: %v", id, err)
			}
		}
		updated := Facility(ids[1])
		updated.Name = "Renamed"
		if err := repo.UpdateFacility(ctx, updated); err != nil {
			t.Fatalf("update: %v", err)
		}
		if err := repo.DeleteFacility(ctx, ids[2]); err != nil {
			t.Fatalf("delete: %v", err)
		}
		list, err := repo.ListFacilities(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		var got []string
		for _, f := range list {
			got = append(got, f.ID)
		}
		if diff := cmp.Diff(ids[:2], got); diff != "" {
			t.Fatalf("order mismatch (-want +got):\n%s", diff)
		}
		if list[1].Name != "Renamed" {
			t.Fatalf("update not visible: %+v", list[1])
		}

		b := Building("building_1_0001", ids[0])
		if err := repo.CreateBuilding(ctx, b); err != nil {
			t.Fatalf("create building: %v", err)
		}
		b.Status = domain.BuildingRenovation
		if err := repo.UpdateBuilding(ctx, b); err != nil {
			t.Fatalf("update building: %v", err)
		}
		buildings, err := repo.ListBuildings(ctx)
		if err != nil || len(buildings) != 1 || buildings[0].Status != domain.BuildingRenovation {
			t.Fatalf("unexpected buildings %+v %v", buildings, err)
		}
		if err := repo.DeleteBuilding(ctx, b.ID); err != nil {
			t.Fatalf("delete building: %v", err)
		}
		if _, err := repo.GetBuilding(ctx, b.ID); domain.KindOf(err) != domain.ErrorKindNotFound {
			t.Fatalf("expected building gone, got %v", err)
		}
	})

	t.Run("returned values are copies", func(t *testing.T) {
		repo := newRepo(t)
		f := Facility("facility_1_0004")
		if err := repo.CreateFacility(ctx, f); err != nil {
			t.Fatalf("create: %v", err)
		}
		got, err := repo.GetFacility(ctx, f.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		got.Configuration.NotificationRecipients[0] = "mutated@vivarium.test"
		*got.ContactInfo.Phone = "0"
		again, err := repo.GetFacility(ctx, f.ID)
		if err != nil {
			t.Fatalf("get again: %v", err)
		}
		if diff := cmp.Diff(f, again); diff != "" {
			t.Fatalf("stored facility was mutated through a returned value:\n%s", diff)
		}
	})
}
