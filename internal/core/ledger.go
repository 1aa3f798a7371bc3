package core

import (
	"brewcore/pkg/domain"
	"fmt"

	"github.com/shopspring/decimal"
)

// lotRows returns the stock rows holding key, ordered by location then id.
func lotRows(view domain.TransactionView, key domain.LotKey) []WarehouseItem {
	var rows []WarehouseItem
	for _, item := range view.ListWarehouseItems() {
		if item.MaterialID == key.MaterialID && item.LotNumber == key.LotNumber {
			rows = append(rows, item)
		}
	}
	return rows
}

// AvailableStock sums the quantity on hand of a material lot across locations.
func AvailableStock(view domain.TransactionView, key domain.LotKey) decimal.Decimal {
	total := decimal.Zero
	for _, row := range lotRows(view, key) {
		total = total.Add(row.Quantity)
	}
	return total
}

func checkStock(view domain.TransactionView, key domain.LotKey, quantity decimal.Decimal) error {
	available := AvailableStock(view, key)
	if quantity.GreaterThan(available) {
		return domain.NegativeStockError{
			MaterialID: key.MaterialID,
			LotNumber:  key.LotNumber,
			Requested:  quantity,
			Available:  available,
		}
	}
	return nil
}

// deductStock removes quantity of a lot, draining rows in order. Rows left at
// or below StockEpsilon are deleted. A deduction larger than the stock on hand
// fails without touching any row.
func deductStock(tx domain.Transaction, key domain.LotKey, quantity decimal.Decimal) ([]StockMovement, error) {
	if quantity.IsNegative() {
		return nil, fmt.Errorf("%w: negative deduction %s", domain.ErrValidation, quantity)
	}
	view := tx.Snapshot()
	if err := checkStock(view, key, quantity); err != nil {
		return nil, err
	}
	var movements []StockMovement
	remaining := quantity
	for _, row := range lotRows(view, key) {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(row.Quantity, remaining)
		left := row.Quantity.Sub(take)
		if left.LessThanOrEqual(domain.StockEpsilon) {
			if err := tx.DeleteWarehouseItem(row.ID); err != nil {
				return nil, err
			}
		} else if _, err := tx.UpdateWarehouseItem(row.ID, func(item *WarehouseItem) error {
			item.Quantity = left
			return nil
		}); err != nil {
			return nil, err
		}
		remaining = remaining.Sub(take)
		movements = append(movements, StockMovement{
			MaterialID: key.MaterialID,
			LotNumber:  key.LotNumber,
			LocationID: row.LocationID,
			Delta:      take.Neg(),
		})
	}
	return movements, nil
}

// addStock books quantity of a lot into location, merging into an existing row.
func addStock(tx domain.Transaction, key domain.LotKey, locationID string, quantity decimal.Decimal) (StockMovement, error) {
	if !quantity.IsPositive() {
		return StockMovement{}, fmt.Errorf("%w: stock quantity must be positive", domain.ErrValidation)
	}
	movement := StockMovement{
		MaterialID: key.MaterialID,
		LotNumber:  key.LotNumber,
		LocationID: locationID,
		Delta:      quantity,
	}
	for _, row := range lotRows(tx.Snapshot(), key) {
		if row.LocationID != locationID {
			continue
		}
		_, err := tx.UpdateWarehouseItem(row.ID, func(item *WarehouseItem) error {
			item.Quantity = item.Quantity.Add(quantity)
			return nil
		})
		return movement, err
	}
	_, err := tx.CreateWarehouseItem(WarehouseItem{
		MaterialID: key.MaterialID,
		LotNumber:  key.LotNumber,
		LocationID: locationID,
		Quantity:   quantity,
	})
	return movement, err
}

func lookupWarehouse(view domain.TransactionView, id string) (Location, error) {
	location, ok := view.FindLocation(id)
	if !ok {
		return Location{}, domain.NotFoundError{Entity: EntityLocation, ID: id}
	}
	if location.Kind != domain.LocationWarehouse {
		return Location{}, fmt.Errorf("%w: location %s is not a warehouse", domain.ErrValidation, id)
	}
	return location, nil
}
