package core

import "brewcore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Batch              = domain.Batch
	BatchStatus        = domain.BatchStatus
	Stage              = domain.Stage
	StageLog           = domain.StageLog
	Recipe             = domain.Recipe
	Location           = domain.Location
	MasterItem         = domain.MasterItem
	WarehouseItem      = domain.WarehouseItem
	StockMovement      = domain.StockMovement
	LotAssignment      = domain.LotAssignment
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
)

const (
	EntityBatch         = domain.EntityBatch
	EntityRecipe        = domain.EntityRecipe
	EntityLocation      = domain.EntityLocation
	EntityMasterItem    = domain.EntityMasterItem
	EntityWarehouseItem = domain.EntityWarehouseItem
)

const (
	StatusPlanned    = domain.StatusPlanned
	StatusInProgress = domain.StatusInProgress
	StatusFermenting = domain.StatusFermenting
	StatusPackaged   = domain.StatusPackaged
	StatusCompleted  = domain.StatusCompleted
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
