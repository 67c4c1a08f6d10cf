// Package memory provides an in-memory implementation of the facility repository used for
// tests, ephemeral environments and as the working set of the snapshotting SQL stores.
package memory

import (
	"context"
	"sync"

	"vivariumcore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.SnapshotRepository = (*Store)(nil)

type (
	// Facility aliases domain.Facility.
	Facility = domain.Facility
	// Building aliases domain.Building.
	Building = domain.Building
	// Snapshot aliases domain.Snapshot.
	Snapshot = domain.Snapshot
)

// CommitHook receives the full candidate state before it becomes visible. Returning an error
// discards the mutation.
type CommitHook func(ctx context.Context, snapshot Snapshot) error

// Option configures a Store.
type Option func(*Store)

// WithCommitHook installs a hook run under the write lock after every mutation.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) { s.onCommit = hook }
}

type memoryState struct {
	facilities []Facility
	buildings  []Building
}

func (st memoryState) clone() memoryState {
	out := memoryState{
		facilities: make([]Facility, len(st.facilities)),
		buildings:  make([]Building, len(st.buildings)),
	}
	for i, f := range st.facilities {
		out.facilities[i] = f.Clone()
	}
	for i, b := range st.buildings {
		out.buildings[i] = b.Clone()
	}
	return out
}

func (st memoryState) snapshot() Snapshot {
	c := st.clone()
	return Snapshot{Facilities: c.facilities, Buildings: c.buildings}
}

func (st memoryState) facilityIndex(id string) int {
	for i, f := range st.facilities {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func (st memoryState) buildingIndex(id string) int {
	for i, b := range st.buildings {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// Store keeps facilities and buildings in insertion order and hands out clones.
type Store struct {
	mu       sync.RWMutex
	state    memoryState
	onCommit CommitHook
}

// NewStore constructs an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) mutate(ctx context.Context, operation string, fn func(*memoryState) error) error {
	if err := ctx.Err(); err != nil {
		return &domain.UnavailableError{Operation: operation, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if s.onCommit != nil {
		if err := s.onCommit(ctx, next.snapshot()); err != nil {
			return &domain.UnavailableError{Operation: operation, Err: err}
		}
	}
	s.state = next
	return nil
}

// CreateFacility implements domain.Repository.
func (s *Store) CreateFacility(ctx context.Context, f Facility) error {
	return s.mutate(ctx, "create_facility", func(st *memoryState) error {
		if st.facilityIndex(f.ID) >= 0 {
			return &domain.AlreadyExistsError{Entity: domain.EntityFacility, ID: f.ID}
		}
		st.facilities = append(st.facilities, f.Clone())
		return nil
	})
}

// GetFacility implements domain.Repository.
func (s *Store) GetFacility(_ context.Context, id string) (Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.state.facilityIndex(id); i >= 0 {
		return s.state.facilities[i].Clone(), nil
	}
	return Facility{}, &domain.NotFoundError{Entity: domain.EntityFacility, ID: id}
}

// UpdateFacility implements domain.Repository.
func (s *Store) UpdateFacility(ctx context.Context, f Facility) error {
	return s.mutate(ctx, "update_facility", func(st *memoryState) error {
		i := st.facilityIndex(f.ID)
		if i < 0 {
			return &domain.NotFoundError{Entity: domain.EntityFacility, ID: f.ID}
		}
		st.facilities[i] = f.Clone()
		return nil
	})
}

// DeleteFacility implements domain.Repository.
func (s *Store) DeleteFacility(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_facility", func(st *memoryState) error {
		i := st.facilityIndex(id)
		if i < 0 {
			return &domain.NotFoundError{Entity: domain.EntityFacility, ID: id}
		}
		st.facilities = append(st.facilities[:i], st.facilities[i+1:]...)
		return nil
	})
}

// ListFacilities implements domain.Repository.
func (s *Store) ListFacilities(_ context.Context) ([]Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Facility, len(s.state.facilities))
	for i, f := range s.state.facilities {
		out[i] = f.Clone()
	}
	return out, nil
}

// CreateBuilding implements domain.Repository.
func (s *Store) CreateBuilding(ctx context.Context, b Building) error {
	return s.mutate(ctx, "create_building", func(st *memoryState) error {
		if st.buildingIndex(b.ID) >= 0 {
			return &domain.AlreadyExistsError{Entity: domain.EntityBuilding, ID: b.ID}
		}
		st.buildings = append(st.buildings, b.Clone())
		return nil
	})
}

// GetBuilding implements domain.Repository.
func (s *Store) GetBuilding(_ context.Context, id string) (Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.state.buildingIndex(id); i >= 0 {
		return s.state.buildings[i].Clone(), nil
	}
	return Building{}, &domain.NotFoundError{Entity: domain.EntityBuilding, ID: id}
}

// UpdateBuilding implements domain.Repository.
func (s *Store) UpdateBuilding(ctx context.Context, b Building) error {
	return s.mutate(ctx, "update_building", func(st *memoryState) error {
		i := st.buildingIndex(b.ID)
		if i < 0 {
			return &domain.NotFoundError{Entity: domain.EntityBuilding, ID: b.ID}
		}
		st.buildings[i] = b.Clone()
		return nil
	})
}

// DeleteBuilding implements domain.Repository.
func (s *Store) DeleteBuilding(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_building", func(st *memoryState) error {
		i := st.buildingIndex(id)
		if i < 0 {
			return &domain.NotFoundError{Entity: domain.EntityBuilding, ID: id}
		}
		st.buildings = append(st.buildings[:i], st.buildings[i+1:]...)
		return nil
	})
}

// ListBuildings implements domain.Repository.
func (s *Store) ListBuildings(_ context.Context) ([]Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Building, len(s.state.buildings))
	for i, b := range s.state.buildings {
		out[i] = b.Clone()
	}
	return out, nil
}

// ExportSnapshot returns a deep copy of the current state.
func (s *Store) ExportSnapshot(_ context.Context) (Snapshot, error) {
	return s.ExportState(), nil
}

// ImportSnapshot replaces the current state, running the commit hook like any mutation.
func (s *Store) ImportSnapshot(ctx context.Context, snapshot Snapshot) error {
	return s.mutate(ctx, "import_snapshot", func(st *memoryState) error {
		*st = stateFromSnapshot(snapshot)
		return nil
	})
}

// ExportState returns a deep copy of the current state without a context.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.snapshot()
}

// ImportState replaces the state directly, bypassing the commit hook. Stores use it to
// hydrate from their own durable copy.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateFromSnapshot(snapshot)
}

func stateFromSnapshot(snapshot Snapshot) memoryState {
	return memoryState{facilities: snapshot.Facilities, buildings: snapshot.Buildings}.clone()
}
