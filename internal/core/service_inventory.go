package core

import (
	"brewcore/pkg/domain"
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// PutRecipe creates or replaces a recipe. Issued batches keep the snapshot
// taken when they were created.
func (s *Service) PutRecipe(ctx context.Context, recipe Recipe) (Recipe, Result, error) {
	var (
		stored Recipe
		res    Result
	)
	err := s.run(ctx, "put_recipe", func(ctx context.Context) (string, error) {
		if err := validateStruct(s.validate, recipe); err != nil {
			return recipe.ID, err
		}
		if !recipe.Target.Volume.IsPositive() {
			return recipe.ID, ValidationError{Fields: map[string]string{"Volume": "gt"}}
		}
		if err := validateLineIDs(recipe); err != nil {
			return recipe.ID, err
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			stored, err = tx.PutRecipe(recipe)
			return err
		})
		return stored.ID, err
	})
	if err != nil {
		return Recipe{}, res, err
	}
	return stored, res, nil
}

// ListRecipes returns all recipes ordered by id.
func (s *Service) ListRecipes(ctx context.Context) ([]Recipe, error) {
	var out []Recipe
	err := s.run(ctx, "list_recipes", func(context.Context) (string, error) {
		out = s.store.ListRecipes()
		return "", nil
	})
	return out, err
}

// PutLocation creates or replaces a tank or warehouse location. Shrinking a
// tank below the volume it currently holds is blocked by the capacity rule.
func (s *Service) PutLocation(ctx context.Context, location Location) (Location, Result, error) {
	var (
		stored Location
		res    Result
	)
	err := s.run(ctx, "put_location", func(ctx context.Context) (string, error) {
		if err := validateStruct(s.validate, location); err != nil {
			return location.ID, err
		}
		if location.IsTank() && !location.GrossVolume.IsPositive() {
			return location.ID, ValidationError{Fields: map[string]string{"GrossVolume": "gt"}}
		}
		put := func() error {
			var err error
			res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
				var err error
				stored, err = tx.PutLocation(location)
				return err
			})
			return err
		}
		if location.ID == "" || !location.IsTank() {
			return stored.ID, put()
		}
		err := s.withLocks(ctx, []string{tankLockKey(location.ID)}, put)
		return location.ID, err
	})
	if err != nil {
		return Location{}, res, err
	}
	return stored, res, nil
}

// ListLocations returns all locations ordered by id.
func (s *Service) ListLocations(ctx context.Context) ([]Location, error) {
	var out []Location
	err := s.run(ctx, "list_locations", func(context.Context) (string, error) {
		out = s.store.ListLocations()
		return "", nil
	})
	return out, err
}

// PutMasterItem creates or replaces a material or finished good.
func (s *Service) PutMasterItem(ctx context.Context, item MasterItem) (MasterItem, Result, error) {
	var (
		stored MasterItem
		res    Result
	)
	err := s.run(ctx, "put_master_item", func(ctx context.Context) (string, error) {
		if err := validateStruct(s.validate, item); err != nil {
			return item.ID, err
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			stored, err = tx.PutMasterItem(item)
			return err
		})
		return stored.ID, err
	})
	if err != nil {
		return MasterItem{}, res, err
	}
	return stored, res, nil
}

// ReceiveStockRequest books incoming material into a warehouse.
type ReceiveStockRequest struct {
	MaterialID string          `json:"material_id" validate:"required"`
	LotNumber  string          `json:"lot_number" validate:"required"`
	LocationID string          `json:"location_id" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// ReceiveStock adds a received lot to a warehouse location, merging into an
// existing row of the same lot and location.
func (s *Service) ReceiveStock(ctx context.Context, req ReceiveStockRequest) (StockMovement, Result, error) {
	var (
		movement StockMovement
		res      Result
	)
	err := s.run(ctx, "receive_stock", func(ctx context.Context) (string, error) {
		if err := validateStruct(s.validate, req); err != nil {
			return req.MaterialID, err
		}
		key := domain.LotKey{MaterialID: req.MaterialID, LotNumber: req.LotNumber}
		err := s.withLocks(ctx, []string{lotLockKey(key)}, func() error {
			var err error
			res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
				view := tx.Snapshot()
				if _, ok := view.FindMasterItem(req.MaterialID); !ok {
					return domain.NotFoundError{Entity: EntityMasterItem, ID: req.MaterialID}
				}
				if _, err := lookupWarehouse(view, req.LocationID); err != nil {
					return err
				}
				var err error
				movement, err = addStock(tx, key, req.LocationID, req.Quantity)
				return err
			})
			return err
		})
		return req.MaterialID, err
	})
	if err != nil {
		return StockMovement{}, res, err
	}
	return movement, res, nil
}

// StockFilter narrows ListStock. Empty fields match everything.
type StockFilter struct {
	MaterialID string
	LotNumber  string
	LocationID string
}

func (f StockFilter) match(item WarehouseItem) bool {
	switch {
	case f.MaterialID != "" && item.MaterialID != f.MaterialID:
		return false
	case f.LotNumber != "" && item.LotNumber != f.LotNumber:
		return false
	case f.LocationID != "" && item.LocationID != f.LocationID:
		return false
	}
	return true
}

// ListStock returns warehouse rows ordered by location then id.
func (s *Service) ListStock(ctx context.Context, filter StockFilter) ([]WarehouseItem, error) {
	out := []WarehouseItem{}
	err := s.run(ctx, "list_stock", func(context.Context) (string, error) {
		for _, item := range s.store.ListWarehouseItems() {
			if filter.match(item) {
				out = append(out, item)
			}
		}
		return "", nil
	})
	return out, err
}

// AvailableLot sums the quantity on hand of a material lot.
func (s *Service) AvailableLot(ctx context.Context, materialID, lotNumber string) (decimal.Decimal, error) {
	total := decimal.Zero
	err := s.run(ctx, "available_lot", func(ctx context.Context) (string, error) {
		if materialID == "" || lotNumber == "" {
			return materialID, fmt.Errorf("%w: material and lot required", domain.ErrValidation)
		}
		return materialID, s.store.View(ctx, func(view TransactionView) error {
			total = AvailableStock(view, domain.LotKey{MaterialID: materialID, LotNumber: lotNumber})
			return nil
		})
	})
	return total, err
}
