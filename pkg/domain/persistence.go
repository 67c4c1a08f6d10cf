package domain

import "context"

// Repository is the durable collaborator behind the facility manager. Implementations must
// return stored records unchanged, report a missing record as *NotFoundError and an id
// clash on create as *AlreadyExistsError, and wrap transport failures in *UnavailableError.
type Repository interface {
	CreateFacility(ctx context.Context, f Facility) error
	GetFacility(ctx context.Context, id string) (Facility, error)
	UpdateFacility(ctx context.Context, f Facility) error
	DeleteFacility(ctx context.Context, id string) error
	ListFacilities(ctx context.Context) ([]Facility, error)

	CreateBuilding(ctx context.Context, b Building) error
	GetBuilding(ctx context.Context, id string) (Building, error)
	UpdateBuilding(ctx context.Context, b Building) error
	DeleteBuilding(ctx context.Context, id string) error
	ListBuildings(ctx context.Context) ([]Building, error)
}

// Snapshot is the serialisable state of a repository. Slices keep insertion order.
type Snapshot struct {
	Facilities []Facility `json:"facilities"`
	Buildings  []Building `json:"buildings"`
}

// SnapshotRepository is implemented by repositories that can export and restore their state
// wholesale.
type SnapshotRepository interface {
	Repository
	ExportSnapshot(ctx context.Context) (Snapshot, error)
	ImportSnapshot(ctx context.Context, s Snapshot) error
}
