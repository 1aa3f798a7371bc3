package core

import (
	"brewcore/pkg/domain"
	"context"
	"fmt"
)

// NewTankOccupancyRule blocks transactions that move or extend a batch into
// days its tank already holds for a batch of another turn group. A batch
// packaged late through its status change keeps the beer it already holds,
// so that overlap is reported as a warning.
func NewTankOccupancyRule() domain.Rule {
	return tankOccupancyRule{}
}

type tankOccupancyRule struct{}

func (tankOccupancyRule) Name() string { return "tank_occupancy" }

func (tankOccupancyRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	changed := changedBatchIDs(changes)
	if len(changed) == 0 {
		return res, nil
	}
	before := priorBatches(changes)
	stamped := packagingStamps(changes)
	batches := view.ListBatches()
	index := indexBatches(batches)
	reported := make(map[[2]string]struct{})
	for _, b := range batches {
		if _, ok := changed[b.ID]; !ok || !b.Status.OccupiesTank() {
			continue
		}
		occ := OccupancyOf(b)
		if prev, ok := before[b.ID]; ok && withinPrior(occ, prev) {
			continue
		}
		group := rootBatch(index, b).ID
		for _, other := range batches {
			if other.ID == b.ID || other.TankID != b.TankID || !other.Status.OccupiesTank() {
				continue
			}
			if rootBatch(index, other).ID == group || !occ.Overlaps(OccupancyOf(other)) {
				continue
			}
			pair := [2]string{b.ID, other.ID}
			if other.ID < b.ID {
				pair = [2]string{other.ID, b.ID}
			}
			if _, seen := reported[pair]; seen {
				continue
			}
			reported[pair] = struct{}{}
			severity := domain.SeverityBlock
			if _, ok := stamped[b.ID]; ok {
				severity = domain.SeverityWarn
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "tank_occupancy",
				Severity: severity,
				Message: fmt.Sprintf("batch %s (lot %s) overlaps batch %s (lot %s) in tank %s",
					b.ID, b.LotCode, other.ID, other.LotCode, b.TankID),
				Entity:   domain.EntityBatch,
				EntityID: b.ID,
			})
		}
	}
	return res, nil
}

// priorBatches returns the committed state of the batches updated by a
// change set.
func priorBatches(changes []domain.Change) map[string]Batch {
	out := make(map[string]Batch)
	for _, change := range changes {
		if change.Entity != domain.EntityBatch {
			continue
		}
		if b, ok := changedBatch(change.Before); ok {
			if _, seen := out[b.ID]; !seen {
				out[b.ID] = b
			}
		}
	}
	return out
}

// packagingStamps lists the batches whose packaging date was stamped by the
// fermenting to packaged transition.
func packagingStamps(changes []domain.Change) map[string]struct{} {
	out := make(map[string]struct{})
	for _, change := range changes {
		if change.Entity != domain.EntityBatch {
			continue
		}
		prev, okBefore := changedBatch(change.Before)
		next, okAfter := changedBatch(change.After)
		if !okBefore || !okAfter {
			continue
		}
		if prev.Status == StatusFermenting && prev.PackagingDate == nil && next.Status == StatusPackaged {
			out[next.ID] = struct{}{}
		}
	}
	return out
}

// withinPrior reports whether occ holds no day of its tank that prev did not
// already hold.
func withinPrior(occ Occupancy, prev Batch) bool {
	if prev.TankID != occ.TankID || !prev.Status.OccupiesTank() {
		return false
	}
	was := OccupancyOf(prev)
	return !occ.CookDate.Before(was.CookDate) && !occ.LastOccupiedDay.After(was.LastOccupiedDay)
}
