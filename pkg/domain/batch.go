package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnloadStatus records whether a stage's lot assignments were deducted from stock.
type UnloadStatus string

// Unload states. A stage moves from pending to unloaded exactly once.
const (
	UnloadPending  UnloadStatus = "pending"
	UnloadUnloaded UnloadStatus = "unloaded"
)

var (
	// AssignmentTolerance is the maximum difference between assigned and
	// expected quantity for an ingredient to count as fully assigned.
	AssignmentTolerance = decimal.New(1, -3)
	// StockEpsilon is the quantity at or below which a warehouse row is
	// considered empty and removed.
	StockEpsilon = decimal.New(1, -2)
)

// LotAssignment records that a quantity of an ingredient came from a lot.
type LotAssignment struct {
	LotNumber string          `json:"lot_number"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// ActualIngredient mirrors an expected ingredient and carries its lot assignments.
type ActualIngredient struct {
	IngredientID string          `json:"ingredient_id"`
	MaterialID   string          `json:"material_id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Assignments  []LotAssignment `json:"assignments"`
}

// AssignedQuantity sums all lot assignment quantities.
func (a ActualIngredient) AssignedQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, assignment := range a.Assignments {
		total = total.Add(assignment.Quantity)
	}
	return total
}

// IsFullyAssigned reports whether entry has at least one assignment, every
// assignment names a lot, and the assigned total matches expected within
// AssignmentTolerance.
func IsFullyAssigned(entry ActualIngredient, expected Ingredient) bool {
	if len(entry.Assignments) == 0 {
		return false
	}
	for _, assignment := range entry.Assignments {
		if assignment.LotNumber == "" {
			return false
		}
	}
	diff := entry.AssignedQuantity().Sub(expected.Quantity).Abs()
	return diff.LessThan(AssignmentTolerance)
}

// ActualStep records when a planned step actually ran.
type ActualStep struct {
	Name         string     `json:"name"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	TemperatureC *float64   `json:"temperature_c,omitempty"`
}

// LogEntry is a free-form measurement taken during a stage.
type LogEntry struct {
	RecordedAt   time.Time `json:"recorded_at"`
	Gravity      *float64  `json:"gravity,omitempty"`
	TemperatureC *float64  `json:"temperature_c,omitempty"`
	PH           *float64  `json:"ph,omitempty"`
	Note         string    `json:"note,omitempty"`
}

// PackagedItem records the quantity actually packaged for a split.
type PackagedItem struct {
	SplitID  string          `json:"split_id"`
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
}

// StagePlan is the frozen recipe snapshot for a stage.
type StagePlan struct {
	Ingredients     []Ingredient     `json:"ingredients"`
	Steps           []ProcessStep    `json:"steps"`
	PackagingSplits []PackagingSplit `json:"packaging_splits,omitempty"`
	ShelfLifeDays   int              `json:"shelf_life_days,omitempty"`
}

// StageActual is the operator-recorded side of a stage.
type StageActual struct {
	Ingredients   []ActualIngredient `json:"ingredients"`
	Steps         []ActualStep       `json:"steps"`
	Entries       []LogEntry         `json:"entries"`
	PackagedItems []PackagedItem     `json:"packaged_items,omitempty"`
	Notes         string             `json:"notes,omitempty"`
	UnloadStatus  UnloadStatus       `json:"unload_status"`
	UnloadedAt    *time.Time         `json:"unloaded_at,omitempty"`
}

// StageLog pairs the expected plan with what actually happened.
type StageLog struct {
	Expected StagePlan   `json:"expected"`
	Actual   StageActual `json:"actual"`
}

// ExpectedIngredient finds the planned ingredient with the given id.
func (l StageLog) ExpectedIngredient(id string) (Ingredient, bool) {
	for _, ingredient := range l.Expected.Ingredients {
		if ingredient.ID == id {
			return ingredient, true
		}
	}
	return Ingredient{}, false
}

// ActualIngredient returns a pointer to the actual entry with the given id.
func (l *StageLog) ActualIngredient(id string) (*ActualIngredient, bool) {
	for i := range l.Actual.Ingredients {
		if l.Actual.Ingredients[i].IngredientID == id {
			return &l.Actual.Ingredients[i], true
		}
	}
	return nil, false
}

// Unloaded reports whether the stage's assignments were already deducted.
func (l StageLog) Unloaded() bool {
	return l.Actual.UnloadStatus == UnloadUnloaded
}

// ReadyToUnload reports whether the actual entry count equals the expected
// count and every entry is fully assigned.
func (l StageLog) ReadyToUnload() bool {
	if len(l.Actual.Ingredients) != len(l.Expected.Ingredients) {
		return false
	}
	return len(l.PendingIngredients()) == 0
}

// PendingIngredients lists ingredient ids that are not fully assigned, in
// expected order. Expected ingredients without an actual entry are included.
func (l StageLog) PendingIngredients() []string {
	var pending []string
	for i, expected := range l.Expected.Ingredients {
		entry, ok := l.findActual(i, expected.ID)
		if !ok || !IsFullyAssigned(entry, expected) {
			pending = append(pending, expected.ID)
		}
	}
	return pending
}

// findActual pairs the expected ingredient at position i with its actual
// entry. Entries are built in expected order, so the entry at the same
// position wins over an earlier entry carrying the same id.
func (l StageLog) findActual(i int, id string) (ActualIngredient, bool) {
	if i < len(l.Actual.Ingredients) && l.Actual.Ingredients[i].IngredientID == id {
		return l.Actual.Ingredients[i], true
	}
	for _, entry := range l.Actual.Ingredients {
		if entry.IngredientID == id {
			return entry, true
		}
	}
	return ActualIngredient{}, false
}

// DuplicateIngredientIDs lists ids carried by more than one expected or
// actual ingredient of the stage.
func (l StageLog) DuplicateIngredientIDs() []string {
	var dups []string
	seen := make(map[string]struct{})
	check := func(counts map[string]int, id string) {
		counts[id]++
		if counts[id] != 2 {
			return
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			dups = append(dups, id)
		}
	}
	expected := make(map[string]int, len(l.Expected.Ingredients))
	for _, ingredient := range l.Expected.Ingredients {
		check(expected, ingredient.ID)
	}
	actual := make(map[string]int, len(l.Actual.Ingredients))
	for _, entry := range l.Actual.Ingredients {
		check(actual, entry.IngredientID)
	}
	return dups
}

// Batch is one production run of a recipe in a tank.
type Batch struct {
	Base
	RecipeID            string      `json:"recipe_id"`
	RecipeName          string      `json:"recipe_name"`
	Style               string      `json:"style,omitempty"`
	TankID              string      `json:"tank_id"`
	ParentBatchID       *string     `json:"parent_batch_id,omitempty"`
	CookDate            time.Time   `json:"cook_date"`
	CookNumber          int         `json:"cook_number"`
	LotCode             string      `json:"lot_code"`
	Status              BatchStatus `json:"status"`
	Target              TargetSpec  `json:"target"`
	PackagingDate       *time.Time  `json:"packaging_date,omitempty"`
	BestBefore          *time.Time  `json:"best_before,omitempty"`
	FinishedGoodsLoaded bool        `json:"finished_goods_loaded"`
	Mash                StageLog    `json:"mash"`
	Boil                StageLog    `json:"boil"`
	Fermentation        StageLog    `json:"fermentation"`
	Packaging           StageLog    `json:"packaging"`
}

// StageLog returns a pointer to the log of the given stage.
func (b *Batch) StageLog(stage Stage) (*StageLog, bool) {
	switch stage {
	case StageMash:
		return &b.Mash, true
	case StageBoil:
		return &b.Boil, true
	case StageFermentation:
		return &b.Fermentation, true
	case StagePackaging:
		return &b.Packaging, true
	}
	return nil, false
}

// IsTurn reports whether the batch shares its parent's tank.
func (b Batch) IsTurn() bool {
	return b.ParentBatchID != nil && *b.ParentBatchID != ""
}

// Volume is the planned output volume used for tank capacity.
func (b Batch) Volume() decimal.Decimal {
	return b.Target.Volume
}

// FermentationDays sums the expected fermentation step durations.
func (b Batch) FermentationDays() int {
	return sumDays(b.Fermentation.Expected.Steps)
}

// LastOccupiedDay is the final calendar day the batch holds its tank: the
// packaging date when set, otherwise the cook date plus the planned
// fermentation days.
func (b Batch) LastOccupiedDay() time.Time {
	if b.PackagingDate != nil {
		return Day(*b.PackagingDate)
	}
	return AddDays(b.CookDate, b.FermentationDays())
}

// Archived reports whether the batch is closed to edits.
func (b Batch) Archived() bool {
	return b.Status == StatusCompleted
}
