package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"vivariumcore/pkg/domain"
)

var testEpoch = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

// fixedClock advances one second per call so durations and UpdatedAt stamps are observable.
func fixedClock() ClockFunc {
	var mu sync.Mutex
	now := testEpoch
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func testAddress() domain.Address {
	return domain.Address{Street: "1 Animal Way", City: "Leeds", State: "WY", PostalCode: "LS1 4AP", Country: "UK"}
}

func newTestFacility(name string, typ domain.FacilityType) Facility {
	return domain.NewFacility(domain.FacilityFields{
		Name: name,
		Type: typ,
		ContactInfo: domain.ContactInfo{
			PrimaryContact: "Facility Lead",
			Email:          "lead@facility.test",
		},
		Address:        testAddress(),
		OperatingHours: domain.StandardOperatingHours(),
	}, testEpoch)
}

func newTestBuilding(name, facilityID string) Building {
	return domain.NewBuilding(domain.BuildingFields{
		Name:       name,
		Type:       domain.BuildingAnimalHousing,
		FacilityID: facilityID,
		Address:    testAddress(),
		Specifications: domain.Specifications{
			TotalAreaSqM:     1200,
			Floors:           2,
			ConstructionType: domain.ConstructionConcrete,
		},
	}, testEpoch)
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

func (l *captureLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

func (l *captureLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

type capturePublisher struct {
	mu     sync.Mutex
	events []ChangeEvent
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, event ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

// failingRepository wraps a repository and fails the selected operations.
type failingRepository struct {
	Repository
	failCreate bool
	failList   bool
}

var errRepositoryDown = errors.New("repository down")

func (r *failingRepository) CreateFacility(ctx context.Context, f Facility) error {
	if r.failCreate {
		return errRepositoryDown
	}
	return r.Repository.CreateFacility(ctx, f)
}

func (r *failingRepository) ListFacilities(ctx context.Context) ([]Facility, error) {
	if r.failList {
		return nil, errRepositoryDown
	}
	return r.Repository.ListFacilities(ctx)
}

// gatedRepository parks ListBuildings until release is closed.
type gatedRepository struct {
	Repository
	listing chan struct{}
	release chan struct{}
}

func (r *gatedRepository) ListBuildings(ctx context.Context) ([]Building, error) {
	close(r.listing)
	<-r.release
	return r.Repository.ListBuildings(ctx)
}
