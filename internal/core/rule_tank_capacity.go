package core

import (
	"brewcore/pkg/domain"
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// NewTankCapacityRule blocks transactions leaving a tank holding more volume
// than its gross volume. A batch and its turns count together.
func NewTankCapacityRule() domain.Rule {
	return tankCapacityRule{}
}

type tankCapacityRule struct{}

func (tankCapacityRule) Name() string { return "tank_capacity" }

func (tankCapacityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	tanks := touchedTanks(changes)
	if len(tanks) == 0 {
		return res, nil
	}
	batches := view.ListBatches()
	index := indexBatches(batches)
	load := make(map[string]map[string]decimal.Decimal)
	for _, b := range batches {
		if _, ok := tanks[b.TankID]; !ok || !b.Status.OccupiesTank() {
			continue
		}
		root := rootBatch(index, b)
		if load[b.TankID] == nil {
			load[b.TankID] = make(map[string]decimal.Decimal)
		}
		load[b.TankID][root.ID] = load[b.TankID][root.ID].Add(b.Volume())
	}
	ids := make([]string, 0, len(load))
	for id := range load {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, tankID := range ids {
		tank, ok := view.FindLocation(tankID)
		if !ok {
			continue
		}
		roots := make([]string, 0, len(load[tankID]))
		for root := range load[tankID] {
			roots = append(roots, root)
		}
		sort.Strings(roots)
		for _, root := range roots {
			volume := load[tankID][root]
			if volume.LessThanOrEqual(tank.GrossVolume) {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "tank_capacity",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("tank %s over capacity: batch %s needs %s of %s", tank.ID, root, volume, tank.GrossVolume),
				Entity:   domain.EntityLocation,
				EntityID: tank.ID,
			})
		}
	}
	return res, nil
}
