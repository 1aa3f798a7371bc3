package core

import (
	"brewcore/pkg/domain"
	"context"
	"fmt"
	"reflect"
)

// NewExpectedImmutableRule blocks updates that rewrite the recipe snapshot
// frozen into a batch at creation.
func NewExpectedImmutableRule() domain.Rule {
	return expectedImmutableRule{}
}

type expectedImmutableRule struct{}

func (expectedImmutableRule) Name() string { return "expected_immutable" }

func (expectedImmutableRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityBatch || change.Action != domain.ActionUpdate {
			continue
		}
		before, ok := changedBatch(change.Before)
		if !ok {
			continue
		}
		after, ok := changedBatch(change.After)
		if !ok {
			continue
		}
		for _, stage := range []Stage{domain.StageMash, domain.StageBoil, domain.StageFermentation, domain.StagePackaging} {
			prev, _ := before.StageLog(stage)
			next, _ := after.StageLog(stage)
			if reflect.DeepEqual(prev.Expected, next.Expected) {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "expected_immutable",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("batch %s %s plan is frozen", after.ID, stage),
				Entity:   domain.EntityBatch,
				EntityID: after.ID,
			})
		}
		if before.RecipeID != after.RecipeID || before.LotCode != after.LotCode || !before.Target.Volume.Equal(after.Target.Volume) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "expected_immutable",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("batch %s recipe, lot code and target are frozen", after.ID),
				Entity:   domain.EntityBatch,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}
