package core

import (
	"brewcore/pkg/domain"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var baseDay = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(n int) time.Time { return domain.AddDays(baseDay, n) }

// paleAle is a 1000 L recipe with a 12-day fermentation, one ingredient per
// stage and a single keg split.
func paleAle(id string) Recipe {
	return Recipe{
		Base:  Base{ID: id},
		Name:  "Pale Ale",
		Style: "APA",
		MashIngredients: []domain.Ingredient{
			{ID: "malt", MaterialID: "malt-pils", Name: "Pilsner malt", Quantity: dec("250"), Unit: "kg"},
		},
		BoilIngredients: []domain.Ingredient{
			{MaterialID: "hop-cascade", Name: "Cascade", Quantity: dec("2"), Unit: "kg"},
		},
		FermentationIngredients: []domain.Ingredient{
			{ID: "yeast", MaterialID: "yeast-us05", Name: "US-05", Quantity: dec("1"), Unit: "kg"},
		},
		MashSteps: []domain.ProcessStep{{Name: "saccharification", TemperatureC: 66, Minutes: 60}},
		FermentationSteps: []domain.ProcessStep{
			{Name: "primary", TemperatureC: 19, Days: 10},
			{Name: "conditioning", TemperatureC: 2, Days: 2},
		},
		Target:          domain.TargetSpec{Volume: dec("1000"), OriginalGravity: 1.052},
		PackagingSplits: []domain.PackagingSplit{{ItemID: "keg-pale", Name: "Pale Ale keg 30L", Quantity: dec("33"), Unit: "keg"}},
		ShelfLifeDays:   90,
	}
}

func withVolume(r Recipe, volume string) Recipe {
	r.Target.Volume = dec(volume)
	return r
}

func tank(id, volume string) Location {
	return Location{Base: Base{ID: id}, Name: "Tank " + id, Kind: domain.LocationTank, GrossVolume: dec(volume)}
}

func warehouse(id string) Location {
	return Location{Base: Base{ID: id}, Name: "Warehouse " + id, Kind: domain.LocationWarehouse}
}

// schedulingStub serves the scheduler from fixed data.
type schedulingStub struct {
	batches   []Batch
	locations map[string]Location
}

func (s schedulingStub) ListBatches() []Batch { return s.batches }

func (s schedulingStub) FindLocation(id string) (Location, bool) {
	l, ok := s.locations[id]
	return l, ok
}

func newSchedulingStub(batches []Batch, locations ...Location) schedulingStub {
	stub := schedulingStub{batches: batches, locations: make(map[string]Location)}
	for _, l := range locations {
		stub.locations[l.ID] = l
	}
	return stub
}

// scheduledBatch builds a batch of paleAle in tankID cooked on start.
func scheduledBatch(id, tankID string, start time.Time) Batch {
	b := BuildBatch(paleAle("pale"), start, tankID, nil)
	b.ID = id
	return b
}

func fixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

// newTestService returns a service over a memory store seeded with a 1000 L
// tank, a 2000 L tank, a warehouse, the pale ale recipe and its materials.
func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock(day(0).Add(9 * time.Hour)))}, opts...)
	svc := NewInMemoryService(NewDefaultRulesEngine(), opts...)
	ctx := context.Background()
	for _, l := range []Location{tank("fv1", "1000"), tank("fv2", "2000"), warehouse("wh1")} {
		if _, _, err := svc.PutLocation(ctx, l); err != nil {
			t.Fatalf("put location %s: %v", l.ID, err)
		}
	}
	if _, _, err := svc.PutRecipe(ctx, paleAle("pale")); err != nil {
		t.Fatalf("put recipe: %v", err)
	}
	for _, item := range []MasterItem{
		{Base: Base{ID: "malt-pils"}, Name: "Pilsner malt", Category: "malt", Unit: "kg"},
		{Base: Base{ID: "hop-cascade"}, Name: "Cascade pellets", Category: "hops", Unit: "kg"},
		{Base: Base{ID: "yeast-us05"}, Name: "Safale US-05", Category: "yeast", Unit: "kg"},
		{Base: Base{ID: "keg-pale"}, Name: "Pale Ale keg", Category: "finished", Unit: "keg"},
	} {
		if _, _, err := svc.PutMasterItem(ctx, item); err != nil {
			t.Fatalf("put item %s: %v", item.ID, err)
		}
	}
	return svc
}

func receive(t *testing.T, svc *Service, material, lot, quantity string) {
	t.Helper()
	_, _, err := svc.ReceiveStock(context.Background(), ReceiveStockRequest{
		MaterialID: material, LotNumber: lot, LocationID: "wh1", Quantity: dec(quantity),
	})
	if err != nil {
		t.Fatalf("receive %s/%s: %v", material, lot, err)
	}
}

func mustCreateBatch(t *testing.T, svc *Service, tankID string, start time.Time) Batch {
	t.Helper()
	b, _, err := svc.CreateBatch(context.Background(), CreateBatchRequest{RecipeID: "pale", TankID: tankID, StartDate: start})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return b
}

// assignAll fully assigns every ingredient of stage from lot.
func assignAll(t *testing.T, svc *Service, b Batch, stage Stage, lot string) {
	t.Helper()
	log, _ := b.StageLog(stage)
	for _, ingredient := range log.Expected.Ingredients {
		if _, _, err := svc.AddLotAssignment(context.Background(), b.ID, stage, ingredient.ID,
			LotAssignment{LotNumber: lot, Quantity: ingredient.Quantity}); err != nil {
			t.Fatalf("assign %s: %v", ingredient.ID, err)
		}
	}
}

func advanceTo(t *testing.T, svc *Service, id string, to BatchStatus) Batch {
	t.Helper()
	var (
		b   Batch
		err error
	)
	for _, status := range []BatchStatus{StatusInProgress, StatusFermenting, StatusPackaged, StatusCompleted} {
		b, _, err = svc.AdvanceStatus(context.Background(), id, status)
		if err != nil {
			t.Fatalf("advance to %s: %v", status, err)
		}
		if status == to {
			return b
		}
	}
	return b
}
