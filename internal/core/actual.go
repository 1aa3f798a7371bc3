package core

import (
	"brewcore/pkg/domain"
	"fmt"
	"time"
)

// checkActualEdit rejects edits to the actual side of a stage that would
// detach it from its plan or from stock movements already booked.
func checkActualEdit(b Batch, stage Stage, before, after domain.StageActual) error {
	if after.UnloadStatus != before.UnloadStatus || !sameTime(before.UnloadedAt, after.UnloadedAt) {
		return fmt.Errorf("%w: %s unload state changes only through unload confirmation", domain.ErrValidation, stage)
	}
	if len(after.Ingredients) != len(before.Ingredients) {
		return fmt.Errorf("%w: %s actual ingredients cannot be added or removed", domain.ErrValidation, stage)
	}
	for i, entry := range after.Ingredients {
		prev := before.Ingredients[i]
		if entry.IngredientID != prev.IngredientID || entry.MaterialID != prev.MaterialID {
			return fmt.Errorf("%w: %s ingredient %s cannot change identity", domain.ErrValidation, stage, prev.IngredientID)
		}
		if before.UnloadStatus == domain.UnloadUnloaded && !sameAssignments(prev.Assignments, entry.Assignments) {
			return domain.AlreadyProcessedError{BatchID: b.ID, Operation: "unload " + string(stage)}
		}
	}
	if len(after.PackagedItems) != len(before.PackagedItems) {
		return fmt.Errorf("%w: packaged items cannot be added or removed", domain.ErrValidation)
	}
	for i, item := range after.PackagedItems {
		prev := before.PackagedItems[i]
		if item.SplitID != prev.SplitID || item.ItemID != prev.ItemID {
			return fmt.Errorf("%w: packaged item %s cannot change identity", domain.ErrValidation, prev.SplitID)
		}
		if item.Quantity.IsNegative() {
			return fmt.Errorf("%w: packaged quantity of %s must not be negative", domain.ErrValidation, prev.SplitID)
		}
		if b.FinishedGoodsLoaded && !item.Quantity.Equal(prev.Quantity) {
			return domain.AlreadyProcessedError{BatchID: b.ID, Operation: "load finished goods"}
		}
	}
	return nil
}

func sameAssignments(a, b []LotAssignment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].LotNumber != b[i].LotNumber || !a[i].Quantity.Equal(b[i].Quantity) {
			return false
		}
	}
	return true
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
