package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestIsFullyAssigned(t *testing.T) {
	expected := Ingredient{ID: "malt", MaterialID: "pilsner", Quantity: dec("100")}
	cases := []struct {
		name        string
		assignments []LotAssignment
		want        bool
	}{
		{"no assignments", nil, false},
		{"exact", []LotAssignment{{LotNumber: "L1", Quantity: dec("60")}, {LotNumber: "L2", Quantity: dec("40")}}, true},
		{"within tolerance", []LotAssignment{{LotNumber: "L1", Quantity: dec("100.0009")}}, true},
		{"at tolerance", []LotAssignment{{LotNumber: "L1", Quantity: dec("100.001")}}, false},
		{"short", []LotAssignment{{LotNumber: "L1", Quantity: dec("99")}}, false},
		{"blank lot", []LotAssignment{{LotNumber: "", Quantity: dec("100")}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entry := ActualIngredient{IngredientID: "malt", Assignments: tc.assignments}
			if got := IsFullyAssigned(entry, expected); got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestStageLogReadyToUnload(t *testing.T) {
	log := StageLog{
		Expected: StagePlan{Ingredients: []Ingredient{
			{ID: "a", Quantity: dec("10")},
			{ID: "b", Quantity: dec("5")},
		}},
		Actual: StageActual{Ingredients: []ActualIngredient{
			{IngredientID: "a", Assignments: []LotAssignment{{LotNumber: "A1", Quantity: dec("10")}}},
			{IngredientID: "b"},
		}},
	}
	if log.ReadyToUnload() {
		t.Fatalf("expected stage not ready")
	}
	if pending := log.PendingIngredients(); len(pending) != 1 || pending[0] != "b" {
		t.Fatalf("unexpected pending %v", pending)
	}
	entry, ok := log.ActualIngredient("b")
	if !ok {
		t.Fatalf("expected actual entry b")
	}
	entry.Assignments = append(entry.Assignments, LotAssignment{LotNumber: "B1", Quantity: dec("5")})
	if !log.ReadyToUnload() {
		t.Fatalf("expected stage ready after assigning b")
	}

	log.Actual.Ingredients = log.Actual.Ingredients[:1]
	if log.ReadyToUnload() {
		t.Fatalf("count mismatch must not be ready")
	}
}

func TestStageLogDuplicateIngredientIDs(t *testing.T) {
	log := StageLog{
		Expected: StagePlan{Ingredients: []Ingredient{
			{ID: "malt", Quantity: dec("100")},
			{ID: "malt", Quantity: dec("100")},
		}},
		Actual: StageActual{Ingredients: []ActualIngredient{
			{IngredientID: "malt", Assignments: []LotAssignment{{LotNumber: "L1", Quantity: dec("100")}}},
			{IngredientID: "malt"},
		}},
	}
	if pending := log.PendingIngredients(); len(pending) != 1 || pending[0] != "malt" {
		t.Fatalf("expected second line pending, got %v", pending)
	}
	if log.ReadyToUnload() {
		t.Fatalf("expected duplicated stage not ready")
	}
	if dups := log.DuplicateIngredientIDs(); len(dups) != 1 || dups[0] != "malt" {
		t.Fatalf("expected malt reported once, got %v", dups)
	}
	log.Expected.Ingredients[1].ID = "malt-2"
	log.Actual.Ingredients[1].IngredientID = "malt-2"
	if dups := log.DuplicateIngredientIDs(); len(dups) != 0 {
		t.Fatalf("expected no duplicates, got %v", dups)
	}
}

func TestStageWithoutIngredientsIsReady(t *testing.T) {
	if !(StageLog{}).ReadyToUnload() {
		t.Fatalf("empty stage should be ready")
	}
}

func TestBatchLastOccupiedDay(t *testing.T) {
	cook := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	b := Batch{CookDate: cook}
	b.Fermentation.Expected.Steps = []ProcessStep{{Name: "primary", Days: 7}, {Name: "conditioning", Days: 5}}
	if got := b.LastOccupiedDay(); !got.Equal(time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected last day %v", got)
	}
	packaged := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	b.PackagingDate = &packaged
	if got := b.LastOccupiedDay(); !got.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("packaging date should win, got %v", got)
	}
}

func TestBatchCloneIsDeep(t *testing.T) {
	parent := "p1"
	now := time.Now()
	b := Batch{ParentBatchID: &parent, PackagingDate: &now}
	b.Mash.Actual.Ingredients = []ActualIngredient{{IngredientID: "a", Assignments: []LotAssignment{{LotNumber: "L", Quantity: dec("1")}}}}
	cp := b.Clone()
	*cp.ParentBatchID = "changed"
	cp.Mash.Actual.Ingredients[0].Assignments[0].LotNumber = "X"
	if *b.ParentBatchID != "p1" || b.Mash.Actual.Ingredients[0].Assignments[0].LotNumber != "L" {
		t.Fatalf("clone shares memory with original")
	}
	if cp.PackagingDate == b.PackagingDate {
		t.Fatalf("expected packaging date pointer to be copied")
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cases := []struct {
		err    error
		target error
	}{
		{SchedulingConflictError{TankID: "t", BatchID: "b", AvailableFrom: time.Now()}, ErrSchedulingConflict},
		{CapacityExceededError{Required: dec("2"), Available: dec("1")}, ErrCapacityExceeded},
		{InvalidTransitionError{From: StatusPlanned, To: StatusCompleted}, ErrInvalidTransition},
		{IncompleteAssignmentError{Pending: []string{"a"}}, ErrIncompleteAssignment},
		{AlreadyProcessedError{Operation: "unload"}, ErrAlreadyProcessed},
		{NegativeStockError{Requested: dec("2"), Available: dec("1")}, ErrNegativeStock},
		{InvariantError{Detail: "x"}, ErrInvariant},
		{NotFoundError{Entity: EntityBatch, ID: "x"}, ErrNotFound},
		{BatchReferencedError{BatchID: "p", TurnIDs: []string{"t1", "t2"}}, ErrBatchReferenced},
	}
	for _, tc := range cases {
		wrapped := errors.Join(errors.New("context"), tc.err)
		if !errors.Is(wrapped, tc.target) {
			t.Fatalf("%T does not match %v", tc.err, tc.target)
		}
		if tc.err.Error() == "" {
			t.Fatalf("%T has empty message", tc.err)
		}
	}
	var conflict SchedulingConflictError
	if !errors.As(error(SchedulingConflictError{BatchID: "b"}), &conflict) || conflict.BatchID != "b" {
		t.Fatalf("expected errors.As to recover conflict details")
	}
}
