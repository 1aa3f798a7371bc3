// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"brewcore/pkg/domain"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Batch aliases domain.Batch for in-memory persistence operations.
	Batch = domain.Batch
	// Recipe aliases domain.Recipe.
	Recipe = domain.Recipe
	// Location aliases domain.Location.
	Location = domain.Location
	// MasterItem aliases domain.MasterItem.
	MasterItem = domain.MasterItem
	// WarehouseItem aliases domain.WarehouseItem.
	WarehouseItem = domain.WarehouseItem
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	batches   map[string]Batch
	recipes   map[string]Recipe
	locations map[string]Location
	items     map[string]MasterItem
	stock     map[string]WarehouseItem
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Batches   map[string]Batch         `json:"batches"`
	Recipes   map[string]Recipe        `json:"recipes"`
	Locations map[string]Location      `json:"locations"`
	Items     map[string]MasterItem    `json:"items"`
	Stock     map[string]WarehouseItem `json:"stock"`
}

func newMemoryState() memoryState {
	return memoryState{
		batches:   make(map[string]Batch),
		recipes:   make(map[string]Recipe),
		locations: make(map[string]Location),
		items:     make(map[string]MasterItem),
		stock:     make(map[string]WarehouseItem),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.batches {
		cloned.batches[k] = v.Clone()
	}
	for k, v := range s.recipes {
		cloned.recipes[k] = v.Clone()
	}
	for k, v := range s.locations {
		cloned.locations[k] = v
	}
	for k, v := range s.items {
		cloned.items[k] = v
	}
	for k, v := range s.stock {
		cloned.stock[k] = v
	}
	return cloned
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cloned := state.clone()
	return Snapshot{
		Batches:   cloned.batches,
		Recipes:   cloned.recipes,
		Locations: cloned.locations,
		Items:     cloned.items,
		Stock:     cloned.stock,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := memoryState{
		batches:   s.Batches,
		recipes:   s.Recipes,
		locations: s.Locations,
		items:     s.Items,
		stock:     s.Stock,
	}
	if state.batches == nil {
		state.batches = map[string]Batch{}
	}
	if state.recipes == nil {
		state.recipes = map[string]Recipe{}
	}
	if state.locations == nil {
		state.locations = map[string]Location{}
	}
	if state.items == nil {
		state.items = map[string]MasterItem{}
	}
	if state.stock == nil {
		state.stock = map[string]WarehouseItem{}
	}
	return state.clone()
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the time provider used to stamp records.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces committed state only when fn succeeds and no blocking rule
// violation is reported.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := transactionView{state: &tx.state}
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindBatch exposes batch lookup within the transaction scope.
func (tx *transaction) FindBatch(id string) (Batch, bool) {
	b, ok := tx.state.batches[id]
	if !ok {
		return Batch{}, false
	}
	return b.Clone(), true
}

// FindRecipe exposes recipe lookup within the transaction scope.
func (tx *transaction) FindRecipe(id string) (Recipe, bool) {
	r, ok := tx.state.recipes[id]
	if !ok {
		return Recipe{}, false
	}
	return r.Clone(), true
}

// FindLocation exposes location lookup within the transaction scope.
func (tx *transaction) FindLocation(id string) (Location, bool) {
	l, ok := tx.state.locations[id]
	return l, ok
}

// CreateBatch stores a new batch within the transaction.
func (tx *transaction) CreateBatch(b Batch) (Batch, error) {
	if b.ID == "" {
		b.ID = tx.store.newID()
	}
	if _, exists := tx.state.batches[b.ID]; exists {
		return Batch{}, fmt.Errorf("batch %q already exists", b.ID)
	}
	if b.IsTurn() {
		if _, ok := tx.state.batches[*b.ParentBatchID]; !ok {
			return Batch{}, domain.NotFoundError{Entity: domain.EntityBatch, ID: *b.ParentBatchID}
		}
	}
	b.CreatedAt = tx.now
	b.UpdatedAt = tx.now
	tx.state.batches[b.ID] = b.Clone()
	tx.recordChange(Change{Entity: domain.EntityBatch, Action: domain.ActionCreate, After: b.Clone()})
	return b.Clone(), nil
}

// UpdateBatch mutates a batch using the provided mutator function.
func (tx *transaction) UpdateBatch(id string, mutator func(*Batch) error) (Batch, error) {
	current, ok := tx.state.batches[id]
	if !ok {
		return Batch{}, domain.NotFoundError{Entity: domain.EntityBatch, ID: id}
	}
	before := current.Clone()
	current = current.Clone()
	if err := mutator(&current); err != nil {
		return Batch{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.batches[id] = current.Clone()
	tx.recordChange(Change{Entity: domain.EntityBatch, Action: domain.ActionUpdate, Before: before, After: current.Clone()})
	return current.Clone(), nil
}

// DeleteBatch removes a batch that no turn references.
func (tx *transaction) DeleteBatch(id string) error {
	current, ok := tx.state.batches[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityBatch, ID: id}
	}
	var turns []string
	for _, other := range tx.state.batches {
		if other.IsTurn() && *other.ParentBatchID == id {
			turns = append(turns, other.ID)
		}
	}
	if len(turns) > 0 {
		sort.Strings(turns)
		return domain.BatchReferencedError{BatchID: id, TurnIDs: turns}
	}
	delete(tx.state.batches, id)
	tx.recordChange(Change{Entity: domain.EntityBatch, Action: domain.ActionDelete, Before: current.Clone()})
	return nil
}

// PutRecipe creates or replaces a recipe.
func (tx *transaction) PutRecipe(r Recipe) (Recipe, error) {
	if r.ID == "" {
		r.ID = tx.store.newID()
	}
	action := domain.ActionCreate
	var before any
	r.CreatedAt = tx.now
	if existing, ok := tx.state.recipes[r.ID]; ok {
		action = domain.ActionUpdate
		before = existing.Clone()
		r.CreatedAt = existing.CreatedAt
	}
	r.UpdatedAt = tx.now
	tx.state.recipes[r.ID] = r.Clone()
	tx.recordChange(Change{Entity: domain.EntityRecipe, Action: action, Before: before, After: r.Clone()})
	return r.Clone(), nil
}

// PutLocation creates or replaces a location.
func (tx *transaction) PutLocation(l Location) (Location, error) {
	if l.ID == "" {
		l.ID = tx.store.newID()
	}
	action := domain.ActionCreate
	var before any
	l.CreatedAt = tx.now
	if existing, ok := tx.state.locations[l.ID]; ok {
		action = domain.ActionUpdate
		before = existing
		l.CreatedAt = existing.CreatedAt
	}
	l.UpdatedAt = tx.now
	tx.state.locations[l.ID] = l
	tx.recordChange(Change{Entity: domain.EntityLocation, Action: action, Before: before, After: l})
	return l, nil
}

// PutMasterItem creates or replaces a master item.
func (tx *transaction) PutMasterItem(item MasterItem) (MasterItem, error) {
	if item.ID == "" {
		item.ID = tx.store.newID()
	}
	action := domain.ActionCreate
	var before any
	item.CreatedAt = tx.now
	if existing, ok := tx.state.items[item.ID]; ok {
		action = domain.ActionUpdate
		before = existing
		item.CreatedAt = existing.CreatedAt
	}
	item.UpdatedAt = tx.now
	tx.state.items[item.ID] = item
	tx.recordChange(Change{Entity: domain.EntityMasterItem, Action: action, Before: before, After: item})
	return item, nil
}

// CreateWarehouseItem stores a new stock row.
func (tx *transaction) CreateWarehouseItem(item WarehouseItem) (WarehouseItem, error) {
	if item.ID == "" {
		item.ID = tx.store.newID()
	}
	if _, exists := tx.state.stock[item.ID]; exists {
		return WarehouseItem{}, fmt.Errorf("warehouse item %q already exists", item.ID)
	}
	if _, ok := tx.state.locations[item.LocationID]; !ok {
		return WarehouseItem{}, domain.NotFoundError{Entity: domain.EntityLocation, ID: item.LocationID}
	}
	item.CreatedAt = tx.now
	item.UpdatedAt = tx.now
	tx.state.stock[item.ID] = item
	tx.recordChange(Change{Entity: domain.EntityWarehouseItem, Action: domain.ActionCreate, After: item})
	return item, nil
}

// UpdateWarehouseItem mutates a stock row.
func (tx *transaction) UpdateWarehouseItem(id string, mutator func(*WarehouseItem) error) (WarehouseItem, error) {
	current, ok := tx.state.stock[id]
	if !ok {
		return WarehouseItem{}, domain.NotFoundError{Entity: domain.EntityWarehouseItem, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return WarehouseItem{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.stock[id] = current
	tx.recordChange(Change{Entity: domain.EntityWarehouseItem, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteWarehouseItem removes a stock row.
func (tx *transaction) DeleteWarehouseItem(id string) error {
	current, ok := tx.state.stock[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityWarehouseItem, ID: id}
	}
	delete(tx.state.stock, id)
	tx.recordChange(Change{Entity: domain.EntityWarehouseItem, Action: domain.ActionDelete, Before: current})
	return nil
}

// ListBatches returns all batches ordered by cook date then ID.
func (v transactionView) ListBatches() []Batch {
	return sortedBatches(v.state.batches)
}

// ListRecipes returns all recipes ordered by ID.
func (v transactionView) ListRecipes() []Recipe {
	return sortedRecipes(v.state.recipes)
}

// ListLocations returns all locations ordered by ID.
func (v transactionView) ListLocations() []Location {
	return sortedByID(v.state.locations, func(l Location) string { return l.ID })
}

// ListMasterItems returns all master items ordered by ID.
func (v transactionView) ListMasterItems() []MasterItem {
	return sortedByID(v.state.items, func(i MasterItem) string { return i.ID })
}

// ListWarehouseItems returns stock rows ordered by location then ID.
func (v transactionView) ListWarehouseItems() []WarehouseItem {
	return sortedStock(v.state.stock)
}

// FindBatch retrieves a batch by ID from the snapshot.
func (v transactionView) FindBatch(id string) (Batch, bool) {
	b, ok := v.state.batches[id]
	if !ok {
		return Batch{}, false
	}
	return b.Clone(), true
}

// FindRecipe retrieves a recipe by ID from the snapshot.
func (v transactionView) FindRecipe(id string) (Recipe, bool) {
	r, ok := v.state.recipes[id]
	if !ok {
		return Recipe{}, false
	}
	return r.Clone(), true
}

// FindLocation retrieves a location by ID from the snapshot.
func (v transactionView) FindLocation(id string) (Location, bool) {
	l, ok := v.state.locations[id]
	return l, ok
}

// FindMasterItem retrieves a master item by ID from the snapshot.
func (v transactionView) FindMasterItem(id string) (MasterItem, bool) {
	item, ok := v.state.items[id]
	return item, ok
}

// GetBatch retrieves a batch from committed state.
func (s *Store) GetBatch(id string) (Batch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.state.batches[id]
	if !ok {
		return Batch{}, false
	}
	return b.Clone(), true
}

// ListBatches returns all batches from committed state.
func (s *Store) ListBatches() []Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedBatches(s.state.batches)
}

// GetRecipe retrieves a recipe from committed state.
func (s *Store) GetRecipe(id string) (Recipe, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.recipes[id]
	if !ok {
		return Recipe{}, false
	}
	return r.Clone(), true
}

// ListRecipes returns all recipes from committed state.
func (s *Store) ListRecipes() []Recipe {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedRecipes(s.state.recipes)
}

// ListLocations returns all locations from committed state.
func (s *Store) ListLocations() []Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByID(s.state.locations, func(l Location) string { return l.ID })
}

// ListMasterItems returns all master items from committed state.
func (s *Store) ListMasterItems() []MasterItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByID(s.state.items, func(i MasterItem) string { return i.ID })
}

// ListWarehouseItems returns all stock rows from committed state.
func (s *Store) ListWarehouseItems() []WarehouseItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedStock(s.state.stock)
}

func sortedBatches(in map[string]Batch) []Batch {
	out := make([]Batch, 0, len(in))
	for _, b := range in {
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CookDate.Equal(out[j].CookDate) {
			return out[i].CookDate.Before(out[j].CookDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedRecipes(in map[string]Recipe) []Recipe {
	out := make([]Recipe, 0, len(in))
	for _, r := range in {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedStock(in map[string]WarehouseItem) []WarehouseItem {
	out := make([]WarehouseItem, 0, len(in))
	for _, item := range in {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LocationID != out[j].LocationID {
			return out[i].LocationID < out[j].LocationID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedByID[T any](in map[string]T, id func(T) string) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}
