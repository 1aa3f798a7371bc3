package core

import (
	"brewcore/pkg/domain"
	"context"
	"fmt"
)

// LifecycleTransitionRule blocks illegal batch status changes: new batches
// start planned, updates move at most one step forward and completed batches
// are frozen.
func LifecycleTransitionRule() domain.Rule {
	return lifecycleTransitionRule{}
}

type lifecycleTransitionRule struct{}

func (lifecycleTransitionRule) Name() string { return "lifecycle_transition" }

func (lifecycleTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	block := func(id, format string, args ...any) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "lifecycle_transition",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf(format, args...),
			Entity:   domain.EntityBatch,
			EntityID: id,
		})
	}
	for _, change := range changes {
		if change.Entity != domain.EntityBatch {
			continue
		}
		before, hasBefore := changedBatch(change.Before)
		after, hasAfter := changedBatch(change.After)
		switch {
		case hasAfter && !after.Status.Valid():
			block(after.ID, "batch %s is set to invalid status %s", after.ID, after.Status)
		case change.Action == domain.ActionCreate && hasAfter && after.Status != domain.StatusPlanned:
			block(after.ID, "batch %s must be created %s, got %s", after.ID, domain.StatusPlanned, after.Status)
		case hasBefore && before.Status.Terminal():
			if change.Action == domain.ActionDelete {
				block(before.ID, "batch %s is %s and cannot be deleted", before.ID, before.Status)
			} else if hasAfter && !frozenEqual(before, after) {
				block(before.ID, "batch %s is %s and cannot be modified", before.ID, before.Status)
			}
		case hasBefore && hasAfter && before.Status != after.Status && !before.Status.CanTransitionTo(after.Status):
			block(after.ID, "cannot move batch %s from %s to %s", after.ID, before.Status, after.Status)
		}
	}
	return res, nil
}

// frozenEqual compares the fields an archived batch must keep.
func frozenEqual(a, b Batch) bool {
	return a.Status == b.Status &&
		a.TankID == b.TankID &&
		a.LotCode == b.LotCode &&
		a.FinishedGoodsLoaded == b.FinishedGoodsLoaded &&
		sameTime(a.PackagingDate, b.PackagingDate) &&
		sameTime(a.BestBefore, b.BestBefore)
}
