package core

import (
	"brewcore/pkg/domain"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ingredientLog resolves the stage log of a stage that consumes lots.
func ingredientLog(b *Batch, stage Stage) (*StageLog, error) {
	if stage == domain.StagePackaging || !stage.Valid() {
		return nil, fmt.Errorf("%w: stage %q has no lot-tracked ingredients", domain.ErrValidation, stage)
	}
	log, _ := b.StageLog(stage)
	return log, nil
}

// actualEntry finds the actual record for a planned ingredient. A planned
// ingredient without an actual record means the batch was built or edited
// inconsistently.
func actualEntry(b *Batch, stage Stage, log *StageLog, ingredientID string) (*domain.ActualIngredient, error) {
	if _, ok := log.ExpectedIngredient(ingredientID); !ok {
		return nil, fmt.Errorf("%w: ingredient %s not planned for %s of batch %s", domain.ErrNotFound, ingredientID, stage, b.ID)
	}
	entry, ok := log.ActualIngredient(ingredientID)
	if !ok {
		return nil, domain.InvariantError{Detail: fmt.Sprintf("batch %s %s: ingredient %s has no actual entry", b.ID, stage, ingredientID)}
	}
	return entry, nil
}

// AssignLot records that quantity of an ingredient came from a lot. An
// existing assignment for the same lot is replaced.
func AssignLot(b *Batch, stage Stage, ingredientID string, assignment LotAssignment) (domain.ActualIngredient, error) {
	if err := ensureEditable(*b); err != nil {
		return domain.ActualIngredient{}, err
	}
	log, err := ingredientLog(b, stage)
	if err != nil {
		return domain.ActualIngredient{}, err
	}
	if log.Unloaded() {
		return domain.ActualIngredient{}, domain.AlreadyProcessedError{BatchID: b.ID, Operation: "unload " + string(stage)}
	}
	assignment.LotNumber = strings.TrimSpace(assignment.LotNumber)
	if assignment.LotNumber == "" {
		return domain.ActualIngredient{}, fmt.Errorf("%w: lot number required", domain.ErrValidation)
	}
	if assignment.Quantity.IsNegative() {
		return domain.ActualIngredient{}, fmt.Errorf("%w: lot quantity must not be negative", domain.ErrValidation)
	}
	entry, err := actualEntry(b, stage, log, ingredientID)
	if err != nil {
		return domain.ActualIngredient{}, err
	}
	for i := range entry.Assignments {
		if entry.Assignments[i].LotNumber == assignment.LotNumber {
			entry.Assignments[i].Quantity = assignment.Quantity
			return *entry, nil
		}
	}
	entry.Assignments = append(entry.Assignments, assignment)
	return *entry, nil
}

// UnassignLot removes the assignment of lotNumber from an ingredient.
func UnassignLot(b *Batch, stage Stage, ingredientID, lotNumber string) (domain.ActualIngredient, error) {
	if err := ensureEditable(*b); err != nil {
		return domain.ActualIngredient{}, err
	}
	log, err := ingredientLog(b, stage)
	if err != nil {
		return domain.ActualIngredient{}, err
	}
	if log.Unloaded() {
		return domain.ActualIngredient{}, domain.AlreadyProcessedError{BatchID: b.ID, Operation: "unload " + string(stage)}
	}
	entry, err := actualEntry(b, stage, log, ingredientID)
	if err != nil {
		return domain.ActualIngredient{}, err
	}
	for i, existing := range entry.Assignments {
		if existing.LotNumber == lotNumber {
			entry.Assignments = append(entry.Assignments[:i], entry.Assignments[i+1:]...)
			return *entry, nil
		}
	}
	return domain.ActualIngredient{}, fmt.Errorf("%w: lot %s not assigned to ingredient %s", domain.ErrNotFound, lotNumber, ingredientID)
}

// lotDemand is the total quantity a stage draws from one lot.
type lotDemand struct {
	key      domain.LotKey
	quantity decimal.Decimal
}

// stageDemand validates that a stage can be unloaded and aggregates its
// assignments per material lot in first-seen order.
func stageDemand(b *Batch, stage Stage) (*StageLog, []lotDemand, error) {
	log, err := ingredientLog(b, stage)
	if err != nil {
		return nil, nil, err
	}
	if log.Unloaded() {
		return nil, nil, domain.AlreadyProcessedError{BatchID: b.ID, Operation: "unload " + string(stage)}
	}
	if dups := log.DuplicateIngredientIDs(); len(dups) > 0 {
		return nil, nil, domain.InvariantError{Detail: fmt.Sprintf("batch %s %s: duplicate ingredient ids %s", b.ID, stage, strings.Join(dups, ", "))}
	}
	for _, entry := range log.Actual.Ingredients {
		if _, ok := log.ExpectedIngredient(entry.IngredientID); !ok {
			return nil, nil, domain.InvariantError{Detail: fmt.Sprintf("batch %s %s: actual ingredient %s has no expected entry", b.ID, stage, entry.IngredientID)}
		}
	}
	if !log.ReadyToUnload() {
		return nil, nil, domain.IncompleteAssignmentError{BatchID: b.ID, Stage: stage, Pending: log.PendingIngredients()}
	}
	var demands []lotDemand
	index := make(map[domain.LotKey]int)
	for _, entry := range log.Actual.Ingredients {
		for _, assignment := range entry.Assignments {
			key := domain.LotKey{MaterialID: entry.MaterialID, LotNumber: assignment.LotNumber}
			if i, ok := index[key]; ok {
				demands[i].quantity = demands[i].quantity.Add(assignment.Quantity)
				continue
			}
			index[key] = len(demands)
			demands = append(demands, lotDemand{key: key, quantity: assignment.Quantity})
		}
	}
	return log, demands, nil
}

// UnloadStage deducts every lot assignment of a fully assigned stage from the
// warehouse ledger and marks the stage unloaded. All lots are checked before
// any row is touched.
func UnloadStage(tx domain.Transaction, batchID string, stage Stage, now time.Time) ([]StockMovement, error) {
	current, ok := tx.FindBatch(batchID)
	if !ok {
		return nil, domain.NotFoundError{Entity: EntityBatch, ID: batchID}
	}
	if err := ensureEditable(current); err != nil {
		return nil, err
	}
	_, demands, err := stageDemand(&current, stage)
	if err != nil {
		return nil, err
	}
	view := tx.Snapshot()
	for _, demand := range demands {
		if err := checkStock(view, demand.key, demand.quantity); err != nil {
			return nil, err
		}
	}
	var movements []StockMovement
	for _, demand := range demands {
		moved, err := deductStock(tx, demand.key, demand.quantity)
		if err != nil {
			return nil, err
		}
		movements = append(movements, moved...)
	}
	unloadedAt := now.UTC()
	if _, err := tx.UpdateBatch(batchID, func(b *Batch) error {
		log, _ := b.StageLog(stage)
		log.Actual.UnloadStatus = domain.UnloadUnloaded
		log.Actual.UnloadedAt = &unloadedAt
		return nil
	}); err != nil {
		return nil, err
	}
	return movements, nil
}

// LoadPackagedGoods books the packaged quantities of a batch into a warehouse
// location under the batch's own lot code. It runs once per batch.
func LoadPackagedGoods(tx domain.Transaction, batchID, locationID string) ([]StockMovement, error) {
	current, ok := tx.FindBatch(batchID)
	if !ok {
		return nil, domain.NotFoundError{Entity: EntityBatch, ID: batchID}
	}
	if current.FinishedGoodsLoaded {
		return nil, domain.AlreadyProcessedError{BatchID: batchID, Operation: "load finished goods"}
	}
	if current.Status != StatusPackaged {
		return nil, fmt.Errorf("%w: batch %s is %s, finished goods load requires %s", domain.ErrInvalidTransition, batchID, current.Status, StatusPackaged)
	}
	if _, err := lookupWarehouse(tx.Snapshot(), locationID); err != nil {
		return nil, err
	}
	var movements []StockMovement
	for _, item := range current.Packaging.Actual.PackagedItems {
		if !item.Quantity.IsPositive() {
			continue
		}
		key := domain.LotKey{MaterialID: item.ItemID, LotNumber: current.LotCode}
		movement, err := addStock(tx, key, locationID, item.Quantity)
		if err != nil {
			return nil, err
		}
		movements = append(movements, movement)
	}
	if len(movements) == 0 {
		return nil, fmt.Errorf("%w: batch %s has no packaged quantities", domain.ErrValidation, batchID)
	}
	if _, err := tx.UpdateBatch(batchID, func(b *Batch) error {
		b.FinishedGoodsLoaded = true
		return nil
	}); err != nil {
		return nil, err
	}
	return movements, nil
}

// lotKeys lists the material lots a stage unload would touch.
func lotKeys(b Batch, stage Stage) []domain.LotKey {
	log, ok := b.StageLog(stage)
	if !ok {
		return nil
	}
	var keys []domain.LotKey
	for _, entry := range log.Actual.Ingredients {
		for _, assignment := range entry.Assignments {
			keys = append(keys, domain.LotKey{MaterialID: entry.MaterialID, LotNumber: assignment.LotNumber})
		}
	}
	return keys
}

// packagedKeys lists the finished good lots a batch would load.
func packagedKeys(b Batch) []domain.LotKey {
	var keys []domain.LotKey
	for _, item := range b.Packaging.Actual.PackagedItems {
		keys = append(keys, domain.LotKey{MaterialID: item.ItemID, LotNumber: b.LotCode})
	}
	return keys
}
