package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"vivariumcore/internal/blob"
	"vivariumcore/internal/core"
	"vivariumcore/internal/export"
	"vivariumcore/internal/infra/persistence/persistencetest"
)

// TestIntegrationSmoke runs a write, reload and export cycle for each in-process storage
// and blob backend.
func TestIntegrationSmoke(t *testing.T) {
	ctx := context.Background()

	storageVariants := []struct {
		name string
		opts func(t *testing.T) core.StorageOptions
	}{
		{name: "memory", opts: func(*testing.T) core.StorageOptions {
			return core.StorageOptions{Driver: core.StorageMemory}
		}},
		{name: "sqlite", opts: func(t *testing.T) core.StorageOptions {
			return core.StorageOptions{Driver: core.StorageSQLite, SQLitePath: filepath.Join(t.TempDir(), "core.db")}
		}},
	}
	blobVariants := []struct {
		name string
		open func(t *testing.T) blob.Store
	}{
		{name: "memory", open: func(*testing.T) blob.Store { return blob.NewMemory() }},
		{name: "filesystem", open: func(t *testing.T) blob.Store {
			store, err := blob.NewFilesystem(t.TempDir())
			if err != nil {
				t.Fatalf("filesystem blob: %v", err)
			}
			return store
		}},
	}

	for _, sv := range storageVariants {
		for _, bv := range blobVariants {
			t.Run(sv.name+"/"+bv.name, func(t *testing.T) {
				repo, closer, err := core.OpenRepository(ctx, sv.opts(t))
				if err != nil {
					t.Fatalf("open repository: %v", err)
				}
				t.Cleanup(func() { _ = closer.Close() })

				manager := core.NewFacilityManager(core.WithRepository(repo))
				f := persistencetest.Facility("facility_1_0001")
				if _, _, err := manager.CreateFacility(ctx, f); err != nil {
					t.Fatalf("create facility: %v", err)
				}
				if _, _, err := manager.CreateBuilding(ctx, persistencetest.Building("building_1_0001", f.ID)); err != nil {
					t.Fatalf("create building: %v", err)
				}

				reloaded := core.NewFacilityManager(core.WithRepository(repo))
				if err := reloaded.Load(ctx); err != nil {
					t.Fatalf("load: %v", err)
				}
				want := manager.Snapshot()
				if diff := cmp.Diff(want, reloaded.Snapshot()); diff != "" {
					t.Fatalf("reloaded state mismatch (-want +got):\n%s", diff)
				}

				store := bv.open(t)
				record, err := export.New(reloaded, store).Export(ctx, export.Request{})
				if err != nil {
					t.Fatalf("export: %v", err)
				}
				got, err := export.ReadSnapshot(ctx, store, record.ID)
				if err != nil {
					t.Fatalf("read snapshot: %v", err)
				}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Fatalf("exported snapshot mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}
