package core

import (
	"brewcore/pkg/domain"
	"fmt"
	"time"
)

// AdvanceBatch moves b to the requested status. Only the single successor of
// the current status is accepted and completed batches never move. Entering
// packaged stamps the packaging date with today when it is still unset, or
// with the cook date when the batch was planned for a later day.
func AdvanceBatch(b *Batch, to BatchStatus, today time.Time) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrValidation, to)
	}
	if b.Status.Terminal() || !b.Status.CanTransitionTo(to) {
		return domain.InvalidTransitionError{BatchID: b.ID, From: b.Status, To: to}
	}
	if to == StatusPackaged && b.PackagingDate == nil {
		stamp := domain.Day(today)
		if stamp.Before(b.CookDate) {
			stamp = b.CookDate
		}
		ApplyPackagingDate(b, stamp)
	}
	b.Status = to
	return nil
}

// ApplyPackagingDate sets the packaging date and recomputes best-before from
// the shelf life frozen into the packaging plan.
func ApplyPackagingDate(b *Batch, date time.Time) {
	day := domain.Day(date)
	bestBefore := domain.AddDays(day, b.Packaging.Expected.ShelfLifeDays)
	b.PackagingDate = &day
	b.BestBefore = &bestBefore
}

func ensureEditable(b Batch) error {
	if b.Archived() {
		return fmt.Errorf("%w: %s (lot %s)", domain.ErrArchived, b.ID, b.LotCode)
	}
	return nil
}
