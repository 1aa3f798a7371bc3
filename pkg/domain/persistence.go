package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateBatch(Batch) (Batch, error)
	UpdateBatch(id string, mutator func(*Batch) error) (Batch, error)
	DeleteBatch(id string) error
	PutRecipe(Recipe) (Recipe, error)
	PutLocation(Location) (Location, error)
	PutMasterItem(MasterItem) (MasterItem, error)
	CreateWarehouseItem(WarehouseItem) (WarehouseItem, error)
	UpdateWarehouseItem(id string, mutator func(*WarehouseItem) error) (WarehouseItem, error)
	DeleteWarehouseItem(id string) error
	FindBatch(id string) (Batch, bool)
	FindRecipe(id string) (Recipe, bool)
	FindLocation(id string) (Location, bool)
}

// TransactionView provides read-only access to snapshot data for rules and queries.
type TransactionView interface {
	ListBatches() []Batch
	ListRecipes() []Recipe
	ListLocations() []Location
	ListMasterItems() []MasterItem
	ListWarehouseItems() []WarehouseItem
	FindBatch(id string) (Batch, bool)
	FindRecipe(id string) (Recipe, bool)
	FindLocation(id string) (Location, bool)
	FindMasterItem(id string) (MasterItem, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetBatch(id string) (Batch, bool)
	ListBatches() []Batch
	GetRecipe(id string) (Recipe, bool)
	ListRecipes() []Recipe
	ListLocations() []Location
	ListMasterItems() []MasterItem
	ListWarehouseItems() []WarehouseItem
}
