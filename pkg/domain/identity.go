package domain

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"sync"
	"time"
)

// EntityType identifies the kind of record managed by the vivarium core.
type EntityType string

// Supported entity kinds. Only facilities and buildings carry full models today; the rest
// participate in identity and scoping checks.
const (
	EntityFacility      EntityType = "facility"
	EntityBuilding      EntityType = "building"
	EntityLocation      EntityType = "location"
	EntityRoom          EntityType = "room"
	EntityEquipment     EntityType = "equipment"
	EntityAnimal        EntityType = "animal"
	EntityUser          EntityType = "user"
	EntityRole          EntityType = "role"
	EntityConfiguration EntityType = "configuration"
	EntityAudit         EntityType = "audit"
)

// AllEntityTypes returns every supported entity type in declaration order.
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityFacility,
		EntityBuilding,
		EntityLocation,
		EntityRoom,
		EntityEquipment,
		EntityAnimal,
		EntityUser,
		EntityRole,
		EntityConfiguration,
		EntityAudit,
	}
}

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	for _, known := range AllEntityTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// SupportsHierarchy reports whether records of this type form part of the
// facility → building → location → room tree.
func (t EntityType) SupportsHierarchy() bool {
	switch t {
	case EntityFacility, EntityBuilding, EntityLocation, EntityRoom:
		return true
	default:
		return false
	}
}

// RequiresFacilityScope reports whether records of this type must name exactly one owning facility.
func (t EntityType) RequiresFacilityScope() bool {
	return t != EntityFacility
}

const idSuffixSpace = 10000

var (
	idRandMu sync.Mutex
	idRand   = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))

	idPatternMu    sync.Mutex
	idPatternCache = make(map[EntityType]*regexp.Regexp)
)

// GenerateID returns a fresh identifier of the form "{type}_{epochMillis}_{NNNN}".
// Identifiers are not guaranteed unique; callers detect collisions against their own store.
func GenerateID(t EntityType) string {
	idRandMu.Lock()
	suffix := idRand.IntN(idSuffixSpace)
	idRandMu.Unlock()
	return FormatID(t, time.Now(), suffix)
}

// FormatID renders an identifier for the supplied instant and random suffix.
func FormatID(t EntityType, at time.Time, suffix int) string {
	if suffix < 0 {
		suffix = -suffix
	}
	return fmt.Sprintf("%s_%d_%04d", t, at.UnixMilli(), suffix%idSuffixSpace)
}

// IsValidID reports whether id has the exact identifier shape for entity type t.
func IsValidID(id string, t EntityType) bool {
	return idPattern(t).MatchString(id)
}

func idPattern(t EntityType) *regexp.Regexp {
	idPatternMu.Lock()
	defer idPatternMu.Unlock()
	if re, ok := idPatternCache[t]; ok {
		return re
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(string(t)) + `_\d+_\d{4}$`)
	idPatternCache[t] = re
	return re
}

// HierarchyNode is implemented by records that sit in the facility tree.
type HierarchyNode interface {
	HierarchyLevel() int
	HierarchyPath() []string
}

// FacilityScoped is implemented by records owned by exactly one facility.
type FacilityScoped interface {
	FacilityScope() string
}
