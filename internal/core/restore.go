package core

import (
	"context"
	"errors"
	"fmt"

	"vivariumcore/pkg/domain"
)

// ErrRestoreUnsupported is returned by Restore when the repository cannot import snapshots.
var ErrRestoreUnsupported = errors.New("repository does not support snapshot restore")

// Restore replaces the whole working set with snap. Every entity is validated, ids must be
// unique and the rules run as if each entity were created, so a snapshot with a building whose
// facility is missing is refused. A repository must implement domain.SnapshotRepository; the
// working set only changes after it accepted the import.
func (m *FacilityManager) Restore(ctx context.Context, snap Snapshot) (res Result, err error) {
	ctx, finish := m.observe(ctx, "restore_snapshot")
	defer func() { finish("", err) }()

	var repo domain.SnapshotRepository
	if m.repo != nil {
		var ok bool
		if repo, ok = m.repo.(domain.SnapshotRepository); !ok {
			return Result{}, fmt.Errorf("%w: %T", ErrRestoreUnsupported, m.repo)
		}
	}

	candidate := managerState{facilities: snap.Facilities, buildings: snap.Buildings}.clone()
	changes := make([]Change, 0, len(candidate.facilities)+len(candidate.buildings))
	seen := make(map[string]struct{}, cap(changes))
	for _, f := range candidate.facilities {
		if err := checkRestored(seen, EntityFacility, f.ID, f.Validate()); err != nil {
			return Result{}, err
		}
		changes = append(changes, Change{Entity: EntityFacility, Action: ActionCreate, After: f.Clone()})
	}
	for _, b := range candidate.buildings {
		if err := checkRestored(seen, EntityBuilding, b.ID, b.Validate()); err != nil {
			return Result{}, err
		}
		changes = append(changes, Change{Entity: EntityBuilding, Action: ActionCreate, After: b.Clone()})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	res, err = m.rules.Evaluate(ctx, candidate, changes)
	if err != nil {
		return res, err
	}
	if res.HasBlocking() {
		return res, RuleViolationError{Result: res}
	}
	if repo != nil {
		if err := repo.ImportSnapshot(ctx, Snapshot{Facilities: snap.Facilities, Buildings: snap.Buildings}); err != nil {
			if domain.KindOf(err) == domain.ErrorKindUnknown {
				err = &domain.UnavailableError{Operation: "restore_snapshot", Err: err}
			}
			m.lastErr = err
			return res, err
		}
	}
	m.state = candidate
	m.lastErr = nil
	m.logger.Info("facility state restored", "facilities", len(candidate.facilities), "buildings", len(candidate.buildings))
	return res, nil
}

func checkRestored(seen map[string]struct{}, entity EntityType, id string, errs []domain.ValidationError) error {
	if err := validationFailed(entity, id, errs); err != nil {
		return err
	}
	if _, dup := seen[id]; dup {
		return &domain.AlreadyExistsError{Entity: entity, ID: id}
	}
	seen[id] = struct{}{}
	return nil
}
