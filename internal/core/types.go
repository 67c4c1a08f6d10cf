package core

import "vivariumcore/pkg/domain"

type (
	EntityType            = domain.EntityType
	Severity              = domain.Severity
	Facility              = domain.Facility
	FacilityType          = domain.FacilityType
	FacilityStatus        = domain.FacilityStatus
	FacilityConfiguration = domain.FacilityConfiguration
	Building              = domain.Building
	BuildingConfiguration = domain.BuildingConfiguration
	Change                = domain.Change
	Action                = domain.Action
	Violation             = domain.Violation
	Result                = domain.Result
	RuleViolationError    = domain.RuleViolationError
	RulesEngine           = domain.RulesEngine
	Repository            = domain.Repository
	Snapshot              = domain.Snapshot
)

const (
	EntityFacility = domain.EntityFacility
	EntityBuilding = domain.EntityBuilding
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
