package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"vivariumcore/pkg/domain"
)

// Option configures a FacilityManager.
type Option func(*FacilityManager)

// WithRepository writes every committed mutation through to repo and lets Load hydrate from it.
func WithRepository(repo Repository) Option {
	return func(m *FacilityManager) {
		m.repo = repo
	}
}

// WithRulesEngine replaces the default rules engine.
func WithRulesEngine(engine *RulesEngine) Option {
	return func(m *FacilityManager) {
		if engine != nil {
			m.rules = engine
		}
	}
}

// WithClock overrides the time source used for timestamps and durations.
func WithClock(clock Clock) Option {
	return func(m *FacilityManager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithLogger installs a structured logger.
func WithLogger(logger Logger) Option {
	return func(m *FacilityManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetricsRecorder installs an operation metrics recorder.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(m *FacilityManager) {
		if recorder != nil {
			m.metrics = recorder
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) Option {
	return func(m *FacilityManager) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

// WithAuditRecorder installs an audit recorder.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(m *FacilityManager) {
		if recorder != nil {
			m.audit = recorder
		}
	}
}

// WithEventPublisher installs the publisher notified after each commit.
func WithEventPublisher(publisher EventPublisher) Option {
	return func(m *FacilityManager) {
		if publisher != nil {
			m.events = publisher
		}
	}
}

// managerState is the committed working set. It doubles as the rule view over a candidate.
type managerState struct {
	facilities []Facility
	buildings  []Building
}

var _ domain.RuleView = managerState{}

func (st managerState) clone() managerState {
	out := managerState{
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

func (st managerState) facilityIndex(id string) int {
	for i := range st.facilities {
		if st.facilities[i].ID == id {
			return i
		}
	}
	return -1
}

func (st managerState) buildingIndex(id string) int {
	for i := range st.buildings {
		if st.buildings[i].ID == id {
			return i
		}
	}
	return -1
}

func (st managerState) ListFacilities() []Facility { return st.facilities }
func (st managerState) ListBuildings() []Building { return st.buildings }

func (st managerState) FindFacility(id string) (Facility, bool) {
	if i := st.facilityIndex(id); i >= 0 {
		return st.facilities[i], true
	}
	return Facility{}, false
}

func (st managerState) FindBuilding(id string) (Building, bool) {
	if i := st.buildingIndex(id); i >= 0 {
		return st.buildings[i], true
	}
	return Building{}, false
}

// FacilityManager coordinates facilities and their buildings. Mutations are serialized and
// become visible only after rules pass and the repository, if any, accepted the write.
type FacilityManager struct {
	mu      sync.RWMutex
	state   managerState
	loading atomic.Bool
	lastErr error

	repo    Repository
	rules   *RulesEngine
	clock   Clock
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	events  EventPublisher
}

// NewFacilityManager constructs an empty manager using the default rules engine.
func NewFacilityManager(opts ...Option) *FacilityManager {
	m := &FacilityManager{
		rules:   domain.NewDefaultRulesEngine(),
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:  noopLogger{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		audit:   noopAuditRecorder{},
		events:  noopEventPublisher{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RulesEngine exposes the engine so callers can register additional rules.
func (m *FacilityManager) RulesEngine() *RulesEngine { return m.rules }

// Now returns the manager's current time.
func (m *FacilityManager) Now() time.Time { return m.clock.Now() }

// IsLoading reports whether Load is in progress.
func (m *FacilityManager) IsLoading() bool { return m.loading.Load() }

// LastError returns the error of the most recent failed mutation or load, cleared by the next
// success.
func (m *FacilityManager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// commit applies fn to a candidate copy of the state, evaluates rules, writes through to the
// repository and swaps the candidate in.
func (m *FacilityManager) commit(ctx context.Context, operation, entityID string, fn func(*managerState) (Change, error)) (Result, error) {
	ctx, finish := m.observe(ctx, operation)
	change, res, err := m.apply(ctx, fn)
	finish(entityID, err)
	if err != nil {
		return res, err
	}
	m.publish(ctx, change)
	return res, nil
}

func (m *FacilityManager) apply(ctx context.Context, fn func(*managerState) (Change, error)) (change Change, res Result, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() {
		if err != nil {
			m.lastErr = err
		}
	}()
	candidate := m.state.clone()
	change, err = fn(&candidate)
	if err != nil {
		return change, res, err
	}
	res, err = m.rules.Evaluate(ctx, candidate, []Change{change})
	if err != nil {
		return change, res, err
	}
	if res.HasBlocking() {
		return change, res, RuleViolationError{Result: res}
	}
	for _, v := range res.Violations {
		m.logger.Warn("rule violation", "rule", v.Rule, "severity", v.Severity, "entity", v.Entity, "id", v.EntityID, "message", v.Message)
	}
	if err = m.writeThrough(ctx, change); err != nil {
		return change, res, err
	}
	m.state = candidate
	m.lastErr = nil
	return change, res, nil
}

func (m *FacilityManager) writeThrough(ctx context.Context, change Change) error {
	if m.repo == nil {
		return nil
	}
	var err error
	switch change.Entity {
	case EntityFacility:
		switch change.Action {
		case ActionCreate:
			err = m.repo.CreateFacility(ctx, change.After.(Facility))
		case ActionUpdate:
			err = m.repo.UpdateFacility(ctx, change.After.(Facility))
		case ActionDelete:
			err = m.repo.DeleteFacility(ctx, change.ID())
		}
	case EntityBuilding:
		switch change.Action {
		case ActionCreate:
			err = m.repo.CreateBuilding(ctx, change.After.(Building))
		case ActionUpdate:
			err = m.repo.UpdateBuilding(ctx, change.After.(Building))
		case ActionDelete:
			err = m.repo.DeleteBuilding(ctx, change.ID())
		}
	}
	if err != nil && domain.KindOf(err) == domain.ErrorKindUnknown {
		return &domain.UnavailableError{Operation: string(change.Action) + "_" + string(change.Entity), Err: err}
	}
	return err
}

func (m *FacilityManager) publish(ctx context.Context, change Change) {
	event := ChangeEvent{
		Entity:     change.Entity,
		Action:     change.Action,
		ID:         change.ID(),
		FacilityID: change.FacilityID(),
		At:         m.clock.Now(),
	}
	if err := m.events.Publish(ctx, event); err != nil {
		m.logger.Error("publish change event", "entity", event.Entity, "action", event.Action, "id", event.ID, "error", err)
	}
}

// Load replaces the working set with the repository's contents. Without a repository it is a
// no-op.
func (m *FacilityManager) Load(ctx context.Context) (err error) {
	if m.repo == nil {
		return nil
	}
	ctx, finish := m.observe(ctx, "load")
	defer func() { finish("", err) }()
	m.loading.Store(true)
	defer m.loading.Store(false)

	// Mutations wait for the swap so nothing committed mid-load is lost.
	m.mu.Lock()
	defer m.mu.Unlock()
	facilities, err := m.repo.ListFacilities(ctx)
	if err == nil {
		var buildings []Building
		buildings, err = m.repo.ListBuildings(ctx)
		if err == nil {
			m.state = managerState{facilities: facilities, buildings: buildings}.clone()
			m.lastErr = nil
			m.logger.Info("facility state loaded", "facilities", len(facilities), "buildings", len(buildings))
			return nil
		}
	}
	m.lastErr = err
	return err
}

func validationFailed(entity EntityType, id string, errs []domain.ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	return &domain.ValidationFailedError{Entity: entity, ID: id, Errors: errs}
}

// CreateFacility validates f and appends it. An existing id fails with *AlreadyExistsError.
func (m *FacilityManager) CreateFacility(ctx context.Context, f Facility) (Facility, Result, error) {
	created := f.Clone()
	res, err := m.commit(ctx, "create_facility", f.ID, func(st *managerState) (Change, error) {
		if err := validationFailed(EntityFacility, f.ID, created.Validate()); err != nil {
			return Change{}, err
		}
		if st.facilityIndex(created.ID) >= 0 {
			return Change{}, &domain.AlreadyExistsError{Entity: EntityFacility, ID: created.ID}
		}
		st.facilities = append(st.facilities, created.Clone())
		return Change{Entity: EntityFacility, Action: ActionCreate, After: created.Clone()}, nil
	})
	if err != nil {
		return Facility{}, res, err
	}
	return created, res, nil
}

// UpdateFacility validates f and replaces the stored record in place. CreatedAt is kept from
// the stored record and UpdatedAt is stamped.
func (m *FacilityManager) UpdateFacility(ctx context.Context, f Facility) (Facility, Result, error) {
	updated := f.Clone()
	res, err := m.commit(ctx, "update_facility", f.ID, func(st *managerState) (Change, error) {
		if err := validationFailed(EntityFacility, f.ID, updated.Validate()); err != nil {
			return Change{}, err
		}
		i := st.facilityIndex(updated.ID)
		if i < 0 {
			return Change{}, &domain.NotFoundError{Entity: EntityFacility, ID: updated.ID}
		}
		before := st.facilities[i]
		updated.CreatedAt = before.CreatedAt
		updated.UpdatedAt = m.clock.Now()
		st.facilities[i] = updated.Clone()
		return Change{Entity: EntityFacility, Action: ActionUpdate, Before: before.Clone(), After: updated.Clone()}, nil
	})
	if err != nil {
		return Facility{}, res, err
	}
	return updated, res, nil
}

// DeleteFacility removes the facility with id. Buildings it owns are kept; the orphaned
// buildings rule reports them.
func (m *FacilityManager) DeleteFacility(ctx context.Context, id string) (Result, error) {
	return m.commit(ctx, "delete_facility", id, func(st *managerState) (Change, error) {
		i := st.facilityIndex(id)
		if i < 0 {
			return Change{}, &domain.NotFoundError{Entity: EntityFacility, ID: id}
		}
		before := st.facilities[i]
		st.facilities = append(st.facilities[:i], st.facilities[i+1:]...)
		return Change{Entity: EntityFacility, Action: ActionDelete, Before: before}, nil
	})
}

// UpdateFacilityConfiguration validates cfg and swaps it into the facility.
func (m *FacilityManager) UpdateFacilityConfiguration(ctx context.Context, id string, cfg FacilityConfiguration) (Facility, Result, error) {
	var updated Facility
	res, err := m.commit(ctx, "update_facility_configuration", id, func(st *managerState) (Change, error) {
		i := st.facilityIndex(id)
		if i < 0 {
			return Change{}, &domain.NotFoundError{Entity: EntityFacility, ID: id}
		}
		before := st.facilities[i].Clone()
		if err := st.facilities[i].UpdateConfiguration(cfg, m.clock.Now()); err != nil {
			return Change{}, err
		}
		updated = st.facilities[i].Clone()
		return Change{Entity: EntityFacility, Action: ActionUpdate, Before: before, After: updated.Clone()}, nil
	})
	if err != nil {
		return Facility{}, res, err
	}
	return updated, res, nil
}

// TouchFacility records an access to the facility.
func (m *FacilityManager) TouchFacility(ctx context.Context, id string) (Facility, error) {
	var touched Facility
	_, err := m.commit(ctx, "touch_facility", id, func(st *managerState) (Change, error) {
		i := st.facilityIndex(id)
		if i < 0 {
			return Change{}, &domain.NotFoundError{Entity: EntityFacility, ID: id}
		}
		before := st.facilities[i].Clone()
		st.facilities[i].MarkAccessed(m.clock.Now())
		touched = st.facilities[i].Clone()
		return Change{Entity: EntityFacility, Action: ActionUpdate, Before: before, After: touched.Clone()}, nil
	})
	if err != nil {
		return Facility{}, err
	}
	return touched, nil
}

// CreateBuilding validates b and appends it. The owning facility must exist.
func (m *FacilityManager) CreateBuilding(ctx context.Context, b Building) (Building, Result, error) {
	created := b.Clone()
	res, err := m.commit(ctx, "create_building", b.ID, func(st *managerState) (Change, error) {
		if err := validationFailed(EntityBuilding, b.ID, created.Validate()); err != nil {
			return Change{}, err
		}
		if st.buildingIndex(created.ID) >= 0 {
			return Change{}, &domain.AlreadyExistsError{Entity: EntityBuilding, ID: created.ID}
		}
		st.buildings = append(st.buildings, created.Clone())
		return Change{Entity: EntityBuilding, Action: ActionCreate, After: created.Clone()}, nil
	})
	if err != nil {
		return Building{}, res, err
	}
	return created, res, nil
}

// UpdateBuilding validates b and replaces the stored record in place.
func (m *FacilityManager) UpdateBuilding(ctx context.Context, b Building) (Building, Result, error) {
	updated := b.Clone()
	res, err := m.commit(ctx, "update_building", b.ID, func(st *managerState) (Change, error) {
		if err := validationFailed(EntityBuilding, b.ID, updated.Validate()); err != nil {
			return Change{}, err
		}
		i := st.buildingIndex(updated.ID)
		if i < 0 {
			return Change{}, &domain.NotFoundError{Entity: EntityBuilding, ID: updated.ID}
		}
		before := st.buildings[i]
		updated.CreatedAt = before.CreatedAt
		updated.UpdatedAt = m.clock.Now()
		st.buildings[i] = updated.Clone()
		return Change{Entity: EntityBuilding, Action: ActionUpdate, Before: before.Clone(), After: updated.Clone()}, nil
	})
	if err != nil {
		return Building{}, res, err
	}
	return updated, res, nil
}

// DeleteBuilding removes the building with id.
func (m *FacilityManager) DeleteBuilding(ctx context.Context, id string) (Result, error) {
	return m.commit(ctx, "delete_building", id, func(st *managerState) (Change, error) {
		i := st.buildingIndex(id)
		if i < 0 {
			return Change{}, &domain.NotFoundError{Entity: EntityBuilding, ID: id}
		}
		before := st.buildings[i]
		st.buildings = append(st.buildings[:i], st.buildings[i+1:]...)
		return Change{Entity: EntityBuilding, Action: ActionDelete, Before: before}, nil
	})
}

// UpdateBuildingConfiguration validates cfg and swaps it into the building.
func (m *FacilityManager) UpdateBuildingConfiguration(ctx context.Context, id string, cfg BuildingConfiguration) (Building, Result, error) {
	var updated Building
	res, err := m.commit(ctx, "update_building_configuration", id, func(st *managerState) (Change, error) {
		i := st.buildingIndex(id)
		if i < 0 {
			return Change{}, &domain.NotFoundError{Entity: EntityBuilding, ID: id}
		}
		before := st.buildings[i].Clone()
		if err := st.buildings[i].UpdateConfiguration(cfg, m.clock.Now()); err != nil {
			return Change{}, err
		}
		updated = st.buildings[i].Clone()
		return Change{Entity: EntityBuilding, Action: ActionUpdate, Before: before, After: updated.Clone()}, nil
	})
	if err != nil {
		return Building{}, res, err
	}
	return updated, res, nil
}

// Facility returns a copy of the facility with id.
func (m *FacilityManager) Facility(id string) (Facility, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.state.FindFacility(id)
	if !ok {
		return Facility{}, false
	}
	return f.Clone(), true
}

// FacilityExists reports whether a facility with id is committed.
func (m *FacilityManager) FacilityExists(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.facilityIndex(id) >= 0
}

// Facilities returns copies of all facilities in insertion order.
func (m *FacilityManager) Facilities() []Facility {
	return m.filterFacilities(func(Facility) bool { return true })
}

// FacilitiesByType returns facilities of type t.
func (m *FacilityManager) FacilitiesByType(t FacilityType) []Facility {
	return m.filterFacilities(func(f Facility) bool { return f.Type == t })
}

// OperationalFacilities returns facilities whose status is operational.
func (m *FacilityManager) OperationalFacilities() []Facility {
	return m.filterFacilities(Facility.IsOperational)
}

// SearchFacilities matches q against name and description, ignoring case.
func (m *FacilityManager) SearchFacilities(q string) []Facility {
	return m.filterFacilities(func(f Facility) bool { return f.MatchesQuery(q) })
}

func (m *FacilityManager) filterFacilities(keep func(Facility) bool) []Facility {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Facility, 0, len(m.state.facilities))
	for _, f := range m.state.facilities {
		if keep(f) {
			out = append(out, f.Clone())
		}
	}
	return out
}

// Building returns a copy of the building with id.
func (m *FacilityManager) Building(id string) (Building, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.state.FindBuilding(id)
	if !ok {
		return Building{}, false
	}
	return b.Clone(), true
}

// Buildings returns copies of all buildings in insertion order.
func (m *FacilityManager) Buildings() []Building {
	return m.filterBuildings(func(Building) bool { return true })
}

// BuildingsForFacility returns the buildings owned by facilityID.
func (m *FacilityManager) BuildingsForFacility(facilityID string) []Building {
	return m.filterBuildings(func(b Building) bool { return b.FacilityID == facilityID })
}

func (m *FacilityManager) filterBuildings(keep func(Building) bool) []Building {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Building, 0, len(m.state.buildings))
	for _, b := range m.state.buildings {
		if keep(b) {
			out = append(out, b.Clone())
		}
	}
	return out
}

// Snapshot returns a deep copy of the committed state.
func (m *FacilityManager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := m.state.clone()
	return Snapshot{Facilities: st.facilities, Buildings: st.buildings}
}
