// Package firestore persists facilities and buildings as Cloud Firestore documents, one
// collection per entity type.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vivariumcore/pkg/domain"
)

var _ domain.Repository = (*Store)(nil)

const (
	collectionFacilities = "facilities"
	collectionBuildings  = "buildings"
)

var (
	errDocumentMissing = errors.New("document missing")
	errDocumentExists  = errors.New("document exists")
)

// document wraps an entity with the sequence number that preserves insertion order.
type document[T any] struct {
	Sequence int64 `firestore:"seq" json:"seq"`
	Entity   T     `firestore:"entity" json:"entity"`
}

// documentBackend is the slice of the Firestore client the store depends on.
type documentBackend interface {
	create(ctx context.Context, collection, id string, data any) error
	replace(ctx context.Context, collection, id string, build func(sequence int64) any) error
	get(ctx context.Context, collection, id string, dest any) error
	remove(ctx context.Context, collection, id string) error
	list(ctx context.Context, collection string, each func(decode func(dest any) error) error) error
	close() error
}

// Store implements domain.Repository on top of Firestore documents.
type Store struct {
	backend documentBackend
	now     func() time.Time

	seqMu   sync.Mutex
	lastSeq int64
}

func newStore(backend documentBackend) *Store {
	return &Store{backend: backend, now: time.Now}
}

// Close releases the underlying client.
func (s *Store) Close() error { return s.backend.close() }

func (s *Store) nextSequence() int64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	seq := s.now().UnixNano()
	if seq <= s.lastSeq {
		seq = s.lastSeq + 1
	}
	s.lastSeq = seq
	return seq
}

func (s *Store) classify(op string, entity domain.EntityType, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errDocumentMissing):
		return &domain.NotFoundError{Entity: entity, ID: id}
	case errors.Is(err, errDocumentExists):
		return &domain.AlreadyExistsError{Entity: entity, ID: id}
	default:
		return &domain.UnavailableError{Operation: op, Err: err}
	}
}

func createEntity[T any](ctx context.Context, s *Store, op, collection string, entity domain.EntityType, id string, value T) error {
	doc := document[T]{Sequence: s.nextSequence(), Entity: value}
	return s.classify(op, entity, id, s.backend.create(ctx, collection, id, doc))
}

func getEntity[T any](ctx context.Context, s *Store, op, collection string, entity domain.EntityType, id string) (T, error) {
	var doc document[T]
	if err := s.backend.get(ctx, collection, id, &doc); err != nil {
		var zero T
		return zero, s.classify(op, entity, id, err)
	}
	return doc.Entity, nil
}

func replaceEntity[T any](ctx context.Context, s *Store, op, collection string, entity domain.EntityType, id string, value T) error {
	err := s.backend.replace(ctx, collection, id, func(sequence int64) any {
		return document[T]{Sequence: sequence, Entity: value}
	})
	return s.classify(op, entity, id, err)
}

func listEntities[T any](ctx context.Context, s *Store, op, collection string) ([]T, error) {
	out := []T{}
	err := s.backend.list(ctx, collection, func(decode func(dest any) error) error {
		var doc document[T]
		if err := decode(&doc); err != nil {
			return fmt.Errorf("decode %s: %w", collection, err)
		}
		out = append(out, doc.Entity)
		return nil
	})
	if err != nil {
		return nil, &domain.UnavailableError{Operation: op, Err: err}
	}
	return out, nil
}

// CreateFacility implements domain.Repository.
func (s *Store) CreateFacility(ctx context.Context, f domain.Facility) error {
	return createEntity(ctx, s, "create_facility", collectionFacilities, domain.EntityFacility, f.ID, f)
}

// GetFacility implements domain.Repository.
func (s *Store) GetFacility(ctx context.Context, id string) (domain.Facility, error) {
	return getEntity[domain.Facility](ctx, s, "get_facility", collectionFacilities, domain.EntityFacility, id)
}

// UpdateFacility implements domain.Repository.
func (s *Store) UpdateFacility(ctx context.Context, f domain.Facility) error {
	return replaceEntity(ctx, s, "update_facility", collectionFacilities, domain.EntityFacility, f.ID, f)
}

// DeleteFacility implements domain.Repository.
func (s *Store) DeleteFacility(ctx context.Context, id string) error {
	return s.classify("delete_facility", domain.EntityFacility, id, s.backend.remove(ctx, collectionFacilities, id))
}

// ListFacilities implements domain.Repository.
func (s *Store) ListFacilities(ctx context.Context) ([]domain.Facility, error) {
	return listEntities[domain.Facility](ctx, s, "list_facilities", collectionFacilities)
}

// CreateBuilding implements domain.Repository.
func (s *Store) CreateBuilding(ctx context.Context, b domain.Building) error {
	return createEntity(ctx, s, "create_building", collectionBuildings, domain.EntityBuilding, b.ID, b)
}

// GetBuilding implements domain.Repository.
func (s *Store) GetBuilding(ctx context.Context, id string) (domain.Building, error) {
	return getEntity[domain.Building](ctx, s, "get_building", collectionBuildings, domain.EntityBuilding, id)
}

// UpdateBuilding implements domain.Repository.
func (s *Store) UpdateBuilding(ctx context.Context, b domain.Building) error {
	return replaceEntity(ctx, s, "update_building", collectionBuildings, domain.EntityBuilding, b.ID, b)
}

// DeleteBuilding implements domain.Repository.
func (s *Store) DeleteBuilding(ctx context.Context, id string) error {
	return s.classify("delete_building", domain.EntityBuilding, id, s.backend.remove(ctx, collectionBuildings, id))
}

// ListBuildings implements domain.Repository.
func (s *Store) ListBuildings(ctx context.Context) ([]domain.Building, error) {
	return listEntities[domain.Building](ctx, s, "list_buildings", collectionBuildings)
}
