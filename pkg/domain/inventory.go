package domain

import "github.com/shopspring/decimal"

// LocationKind distinguishes fermentation tanks from storage locations.
type LocationKind string

// Location kinds.
const (
	LocationTank      LocationKind = "tank"
	LocationWarehouse LocationKind = "warehouse"
)

// Location is a tank or a warehouse area.
type Location struct {
	Base
	Name        string          `json:"name" validate:"required"`
	Kind        LocationKind    `json:"kind" validate:"required,oneof=tank warehouse"`
	GrossVolume decimal.Decimal `json:"gross_volume"`
}

// IsTank reports whether the location can hold batches.
func (l Location) IsTank() bool { return l.Kind == LocationTank }

// MasterItem is catalogue data for a raw material or finished good.
type MasterItem struct {
	Base
	Name     string `json:"name" validate:"required"`
	Category string `json:"category"`
	Unit     string `json:"unit"`
}

// WarehouseItem is one stock row: a quantity of a material lot at a location.
type WarehouseItem struct {
	Base
	MaterialID string          `json:"material_id" validate:"required"`
	LotNumber  string          `json:"lot_number" validate:"required"`
	LocationID string          `json:"location_id" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// StockMovement describes a signed change applied to a stock row.
type StockMovement struct {
	MaterialID string          `json:"material_id"`
	LotNumber  string          `json:"lot_number"`
	LocationID string          `json:"location_id"`
	Delta      decimal.Decimal `json:"delta"`
}

// LotKey identifies a material lot irrespective of location.
type LotKey struct {
	MaterialID string
	LotNumber  string
}
