package core

import (
	"brewcore/pkg/domain"
	"context"
	"fmt"
)

// NewStockNonNegativeRule blocks transactions leaving a warehouse row below zero.
func NewStockNonNegativeRule() domain.Rule {
	return stockNonNegativeRule{}
}

type stockNonNegativeRule struct{}

func (stockNonNegativeRule) Name() string { return "stock_non_negative" }

func (stockNonNegativeRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityWarehouseItem {
			continue
		}
		item, ok := change.After.(WarehouseItem)
		if !ok || !item.Quantity.IsNegative() {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "stock_non_negative",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("material %s lot %s at %s would hold %s", item.MaterialID, item.LotNumber, item.LocationID, item.Quantity),
			Entity:   domain.EntityWarehouseItem,
			EntityID: item.ID,
		})
	}
	return res, nil
}
