package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinels for the recoverable error kinds. Typed errors below match them
// through errors.Is.
var (
	ErrSchedulingConflict   = errors.New("scheduling conflict")
	ErrCapacityExceeded     = errors.New("capacity exceeded")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrIncompleteAssignment = errors.New("incomplete lot assignment")
	ErrAlreadyProcessed     = errors.New("already processed")
	ErrNegativeStock        = errors.New("negative stock rejected")
	ErrInvariant            = errors.New("invariant violated")
	ErrNotFound             = errors.New("not found")
	ErrArchived             = errors.New("batch is archived")
	ErrBatchReferenced      = errors.New("batch has turns")
	ErrValidation           = errors.New("validation failed")
)

// SchedulingConflictError reports that a tank is occupied on the requested day.
type SchedulingConflictError struct {
	TankID        string
	BatchID       string
	LotCode       string
	AvailableFrom time.Time
}

func (e SchedulingConflictError) Error() string {
	return fmt.Sprintf("tank %s occupied by batch %s (lot %s) until %s; available from %s",
		e.TankID, e.BatchID, e.LotCode,
		e.AvailableFrom.AddDate(0, 0, -1).Format(time.DateOnly),
		e.AvailableFrom.Format(time.DateOnly))
}

func (e SchedulingConflictError) Is(target error) bool { return target == ErrSchedulingConflict }

// CapacityExceededError reports that a tank cannot hold the requested volume.
type CapacityExceededError struct {
	TankID    string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e CapacityExceededError) Error() string {
	return fmt.Sprintf("tank %s capacity exceeded: required %s, available %s",
		e.TankID, e.Required.String(), e.Available.String())
}

func (e CapacityExceededError) Is(target error) bool { return target == ErrCapacityExceeded }

// InvalidTransitionError reports a status change that is not the single valid successor.
type InvalidTransitionError struct {
	BatchID string
	From    BatchStatus
	To      BatchStatus
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("batch %s cannot move from %s to %s", e.BatchID, e.From, e.To)
}

func (e InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// IncompleteAssignmentError reports ingredients lacking full lot assignments.
type IncompleteAssignmentError struct {
	BatchID string
	Stage   Stage
	Pending []string
}

func (e IncompleteAssignmentError) Error() string {
	if len(e.Pending) == 0 {
		return fmt.Sprintf("batch %s %s: nothing to process", e.BatchID, e.Stage)
	}
	return fmt.Sprintf("batch %s %s: ingredients not fully assigned: %s",
		e.BatchID, e.Stage, strings.Join(e.Pending, ", "))
}

func (e IncompleteAssignmentError) Is(target error) bool { return target == ErrIncompleteAssignment }

// AlreadyProcessedError reports a repeated one-shot operation.
type AlreadyProcessedError struct {
	BatchID   string
	Operation string
}

func (e AlreadyProcessedError) Error() string {
	return fmt.Sprintf("batch %s: %s already processed", e.BatchID, e.Operation)
}

func (e AlreadyProcessedError) Is(target error) bool { return target == ErrAlreadyProcessed }

// NegativeStockError reports a deduction larger than the available stock.
type NegativeStockError struct {
	MaterialID string
	LotNumber  string
	Requested  decimal.Decimal
	Available  decimal.Decimal
}

func (e NegativeStockError) Error() string {
	return fmt.Sprintf("material %s lot %s: requested %s, available %s",
		e.MaterialID, e.LotNumber, e.Requested.String(), e.Available.String())
}

func (e NegativeStockError) Is(target error) bool { return target == ErrNegativeStock }

// InvariantError signals corrupted data rather than a user mistake.
type InvariantError struct {
	Detail string
}

func (e InvariantError) Error() string {
	return "invariant violated: " + e.Detail
}

func (e InvariantError) Is(target error) bool { return target == ErrInvariant }

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// BatchReferencedError reports that a batch cannot be deleted while turns
// still name it as their parent.
type BatchReferencedError struct {
	BatchID string
	TurnIDs []string
}

func (e BatchReferencedError) Error() string {
	return fmt.Sprintf("batch %s still referenced by turns %s", e.BatchID, strings.Join(e.TurnIDs, ", "))
}

func (e BatchReferencedError) Is(target error) bool { return target == ErrBatchReferenced }
