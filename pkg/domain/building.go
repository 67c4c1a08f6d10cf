package domain

import "time"

// BuildingType classifies a building.
type BuildingType string

// Building types.
const (
	BuildingLaboratory    BuildingType = "laboratory"
	BuildingAnimalHousing BuildingType = "animal_housing"
	BuildingOffice        BuildingType = "office"
	BuildingStorage       BuildingType = "storage"
	BuildingQuarantine    BuildingType = "quarantine"
	BuildingMixed         BuildingType = "mixed"
	BuildingOther         BuildingType = "other"
)

// BuildingStatus is the operating state of a building.
type BuildingStatus string

// Building statuses.
const (
	BuildingActive         BuildingStatus = "active"
	BuildingInactive       BuildingStatus = "inactive"
	BuildingMaintenance    BuildingStatus = "maintenance"
	BuildingRenovation     BuildingStatus = "renovation"
	BuildingEmergency      BuildingStatus = "emergency"
	BuildingDecommissioned BuildingStatus = "decommissioned"
)

// IsOperational is true for active and maintenance buildings.
func (s BuildingStatus) IsOperational() bool {
	return s == BuildingActive || s == BuildingMaintenance
}

// ConstructionType is the primary structural material.
type ConstructionType string

// Construction types.
const (
	ConstructionConcrete ConstructionType = "concrete"
	ConstructionSteel    ConstructionType = "steel"
	ConstructionMasonry  ConstructionType = "masonry"
	ConstructionWood     ConstructionType = "wood"
	ConstructionModular  ConstructionType = "modular"
	ConstructionOther    ConstructionType = "other"
)

// BuildingSystems flags the installed building services.
type BuildingSystems struct {
	HVAC            bool `json:"hvac" firestore:"hvac"`
	BackupPower     bool `json:"backupPower" firestore:"backupPower"`
	FireSuppression bool `json:"fireSuppression" firestore:"fireSuppression"`
	SecuritySystem  bool `json:"securitySystem" firestore:"securitySystem"`
	WaterTreatment  bool `json:"waterTreatment" firestore:"waterTreatment"`
}

// Specification bounds.
const (
	TotalAreaLower = 1.0
	TotalAreaUpper = 10_000_000.0
	FloorsLower    = 1
	FloorsUpper    = 200
	YearBuiltLower = 1800
)

// Specifications describes the physical building.
type Specifications struct {
	TotalAreaSqM     float64          `json:"totalAreaSqM" firestore:"totalAreaSqM"`
	Floors           int              `json:"floors" firestore:"floors"`
	YearBuilt        *int             `json:"yearBuilt,omitempty" firestore:"yearBuilt,omitempty"`
	ConstructionType ConstructionType `json:"constructionType" firestore:"constructionType"`
	Systems          BuildingSystems  `json:"systems" firestore:"systems"`
}

// Validate checks area, floor count and, when present, the construction year against the
// current calendar year.
func (s Specifications) Validate() []ValidationError {
	return s.validateAt(time.Now().Year())
}

func (s Specifications) validateAt(currentYear int) []ValidationError {
	return Rules(
		InRange(s.TotalAreaSqM, TotalAreaLower, TotalAreaUpper, "totalAreaSqM"),
		InRange(s.Floors, FloorsLower, FloorsUpper, "floors"),
		OptionalInRange(s.YearBuilt, YearBuiltLower, currentYear, "yearBuilt"),
	).Validate()
}

// Building belongs to exactly one facility and sits one level below it.
type Building struct {
	ID             string                `json:"id" firestore:"id"`
	Name           string                `json:"name" firestore:"name"`
	Description    *string               `json:"description,omitempty" firestore:"description,omitempty"`
	Type           BuildingType          `json:"type" firestore:"type"`
	Status         BuildingStatus        `json:"status" firestore:"status"`
	FacilityID     string                `json:"facilityId" firestore:"facilityId"`
	Address        Address               `json:"address" firestore:"address"`
	Specifications Specifications        `json:"specifications" firestore:"specifications"`
	Configuration  BuildingConfiguration `json:"configuration" firestore:"configuration"`
	CreatedAt      time.Time             `json:"createdAt" firestore:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt" firestore:"updatedAt"`
	LastAccessedAt *time.Time            `json:"lastAccessedAt,omitempty" firestore:"lastAccessedAt,omitempty"`
}

var (
	_ Validator      = Building{}
	_ HierarchyNode  = Building{}
	_ FacilityScoped = Building{}
)

// BuildingFields carries the business fields accepted by NewBuilding.
type BuildingFields struct {
	ID             string
	Name           string
	Description    *string
	Type           BuildingType
	Status         BuildingStatus
	FacilityID     string
	Address        Address
	Specifications Specifications
	Configuration  *BuildingConfiguration
}

// NewBuilding builds a building stamped at now, generating the ID and defaulting the
// configuration when they are omitted.
func NewBuilding(fields BuildingFields, now time.Time) Building {
	id := fields.ID
	if id == "" {
		id = GenerateID(EntityBuilding)
	}
	cfg := DefaultBuildingConfiguration()
	if fields.Configuration != nil {
		cfg = fields.Configuration.Clone()
	}
	status := fields.Status
	if status == "" {
		status = BuildingActive
	}
	return Building{
		ID:             id,
		Name:           fields.Name,
		Description:    cloneString(fields.Description),
		Type:           fields.Type,
		Status:         status,
		FacilityID:     fields.FacilityID,
		Address:        fields.Address,
		Specifications: fields.Specifications.clone(),
		Configuration:  cfg,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Validate checks the name, owning facility, specifications and configuration.
func (b Building) Validate() []ValidationError {
	return Rules(
		Required(b.Name, "name"),
		Required(b.FacilityID, "facilityId"),
		Nested("specifications", b.Specifications),
		Nested("configuration", b.Configuration),
	).Validate()
}

// IsOperational reports whether the building's status is operational.
func (b Building) IsOperational() bool { return b.Status.IsOperational() }

// MarkAccessed records an access at now.
func (b *Building) MarkAccessed(now time.Time) {
	t := now
	b.LastAccessedAt = &t
}

// UpdateConfiguration validates cfg and swaps it in whole.
func (b *Building) UpdateConfiguration(cfg BuildingConfiguration, now time.Time) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return &ConfigurationValidationError{ConfigurationType: ConfigurationTypeBuilding, Errors: errs}
	}
	b.Configuration = cfg.Clone()
	b.UpdatedAt = now
	return nil
}

// HierarchyLevel implements HierarchyNode.
func (b Building) HierarchyLevel() int { return 1 }

// HierarchyPath implements HierarchyNode.
func (b Building) HierarchyPath() []string { return []string{b.FacilityID, b.ID} }

// FacilityScope implements FacilityScoped.
func (b Building) FacilityScope() string { return b.FacilityID }

// Clone returns a deep copy.
func (b Building) Clone() Building {
	cp := b
	cp.Description = cloneString(b.Description)
	cp.Specifications = b.Specifications.clone()
	cp.Configuration = b.Configuration.Clone()
	if b.LastAccessedAt != nil {
		t := *b.LastAccessedAt
		cp.LastAccessedAt = &t
	}
	return cp
}

func (s Specifications) clone() Specifications {
	cp := s
	if s.YearBuilt != nil {
		y := *s.YearBuilt
		cp.YearBuilt = &y
	}
	return cp
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
