package domain

import (
	"strings"
	"time"
)

// FacilityType classifies what a facility is used for.
type FacilityType string

// Facility types.
const (
	FacilityResearch   FacilityType = "research"
	FacilityBreeding   FacilityType = "breeding"
	FacilityQuarantine FacilityType = "quarantine"
	FacilityStorage    FacilityType = "storage"
	FacilityMixed      FacilityType = "mixed"
	FacilityOther      FacilityType = "other"
)

// FacilityTypes lists every facility type in declaration order.
func FacilityTypes() []FacilityType {
	return []FacilityType{FacilityResearch, FacilityBreeding, FacilityQuarantine, FacilityStorage, FacilityMixed, FacilityOther}
}

// Valid reports whether t is a known facility type.
func (t FacilityType) Valid() bool {
	for _, known := range FacilityTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// FacilityStatus is the operating state of a facility.
type FacilityStatus string

// Facility statuses.
const (
	FacilityActive         FacilityStatus = "active"
	FacilityInactive       FacilityStatus = "inactive"
	FacilityMaintenance    FacilityStatus = "maintenance"
	FacilityEmergency      FacilityStatus = "emergency"
	FacilityDecommissioned FacilityStatus = "decommissioned"
)

// FacilityStatuses lists every facility status in declaration order.
func FacilityStatuses() []FacilityStatus {
	return []FacilityStatus{FacilityActive, FacilityInactive, FacilityMaintenance, FacilityEmergency, FacilityDecommissioned}
}

// Valid reports whether s is a known facility status.
func (s FacilityStatus) Valid() bool {
	for _, known := range FacilityStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// IsOperational is true for active and maintenance facilities.
func (s FacilityStatus) IsOperational() bool {
	return s == FacilityActive || s == FacilityMaintenance
}

// Facility is the root of the ownership tree. It is not itself facility scoped.
type Facility struct {
	ID             string                `json:"id" firestore:"id"`
	Name           string                `json:"name" firestore:"name"`
	Description    *string               `json:"description,omitempty" firestore:"description,omitempty"`
	Type           FacilityType          `json:"type" firestore:"type"`
	Status         FacilityStatus        `json:"status" firestore:"status"`
	ContactInfo    ContactInfo           `json:"contactInfo" firestore:"contactInfo"`
	Address        Address               `json:"address" firestore:"address"`
	OperatingHours OperatingHours        `json:"operatingHours" firestore:"operatingHours"`
	Configuration  FacilityConfiguration `json:"configuration" firestore:"configuration"`
	CreatedAt      time.Time             `json:"createdAt" firestore:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt" firestore:"updatedAt"`
	LastAccessedAt *time.Time            `json:"lastAccessedAt,omitempty" firestore:"lastAccessedAt,omitempty"`
}

var (
	_ Validator     = Facility{}
	_ HierarchyNode = Facility{}
)

// FacilityFields carries the business fields accepted by NewFacility. ID and Configuration
// are optional.
type FacilityFields struct {
	ID             string
	Name           string
	Description    *string
	Type           FacilityType
	Status         FacilityStatus
	ContactInfo    ContactInfo
	Address        Address
	OperatingHours OperatingHours
	Configuration  *FacilityConfiguration
}

// NewFacility builds a facility stamped at now. A missing ID is generated and a missing
// configuration takes the default preset. The result is not validated.
func NewFacility(fields FacilityFields, now time.Time) Facility {
	id := fields.ID
	if id == "" {
		id = GenerateID(EntityFacility)
	}
	cfg := DefaultFacilityConfiguration()
	if fields.Configuration != nil {
		cfg = fields.Configuration.Clone()
	}
	status := fields.Status
	if status == "" {
		status = FacilityActive
	}
	return Facility{
		ID:             id,
		Name:           fields.Name,
		Description:    cloneString(fields.Description),
		Type:           fields.Type,
		Status:         status,
		ContactInfo:    fields.ContactInfo.Clone(),
		Address:        fields.Address,
		OperatingHours: fields.OperatingHours.Clone(),
		Configuration:  cfg,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Validate checks the name, contact email and phone, and the nested configuration.
func (f Facility) Validate() []ValidationError {
	email := f.ContactInfo.Email
	return Rules(
		Required(f.Name, "name"),
		Required(f.ContactInfo.Email, "contactInfo.email"),
		Pattern(&email, EmailPattern, "contactInfo.email"),
		Pattern(f.ContactInfo.Phone, PhonePattern, "contactInfo.phone"),
		Nested("configuration", f.Configuration),
	).Validate()
}

// MatchesQuery reports whether q occurs in the name or description, ignoring case.
func (f Facility) MatchesQuery(q string) bool {
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(f.Name), q) {
		return true
	}
	return f.Description != nil && strings.Contains(strings.ToLower(*f.Description), q)
}

// IsOperational reports whether the facility's status is operational.
func (f Facility) IsOperational() bool { return f.Status.IsOperational() }

// MarkAccessed records an access at now.
func (f *Facility) MarkAccessed(now time.Time) {
	t := now
	f.LastAccessedAt = &t
}

// UpdateConfiguration validates cfg and swaps it in whole. On failure the current
// configuration is left untouched.
func (f *Facility) UpdateConfiguration(cfg FacilityConfiguration, now time.Time) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return &ConfigurationValidationError{ConfigurationType: ConfigurationTypeFacility, Errors: errs}
	}
	f.Configuration = cfg.Clone()
	f.UpdatedAt = now
	return nil
}

// HierarchyLevel implements HierarchyNode; facilities are the root.
func (f Facility) HierarchyLevel() int { return 0 }

// HierarchyPath implements HierarchyNode.
func (f Facility) HierarchyPath() []string { return []string{f.ID} }

// Clone returns a deep copy.
func (f Facility) Clone() Facility {
	cp := f
	cp.Description = cloneString(f.Description)
	cp.ContactInfo = f.ContactInfo.Clone()
	cp.OperatingHours = f.OperatingHours.Clone()
	cp.Configuration = f.Configuration.Clone()
	if f.LastAccessedAt != nil {
		t := *f.LastAccessedAt
		cp.LastAccessedAt = &t
	}
	return cp
}
