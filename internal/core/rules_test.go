package core

import (
	"brewcore/internal/infra/persistence/memory"
	"context"
	"errors"
	"testing"
)

// ruleStore seeds a memory store with two tanks and the given batches,
// bypassing the scheduler so the rules are the only line of defence.
func ruleStore(t *testing.T, batches ...Batch) *memory.Store {
	t.Helper()
	store := memory.NewStore(NewDefaultRulesEngine())
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		for _, l := range []Location{tank("fv1", "1000"), tank("fv2", "2000"), warehouse("wh1")} {
			if _, err := tx.PutLocation(l); err != nil {
				return err
			}
		}
		for _, b := range batches {
			if _, err := tx.CreateBatch(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store
}

func violatedRules(t *testing.T, err error) map[string]bool {
	t.Helper()
	var ruleErr RuleViolationError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	out := map[string]bool{}
	for _, v := range ruleErr.Result.Violations {
		out[v.Rule] = true
	}
	return out
}

func TestDefaultRulesEngineRegistersBuiltins(t *testing.T) {
	got := NewDefaultRulesEngine().Rules()
	want := []string{"tank_capacity", "tank_occupancy", "lifecycle_transition", "expected_immutable", "stock_non_negative"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if len(NewRulesEngine().Rules()) != 0 {
		t.Fatalf("expected empty engine")
	}
}

func TestTankOccupancyRuleBlocksOverlap(t *testing.T) {
	store := ruleStore(t, scheduledBatch("a", "fv1", day(0)))
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateBatch(scheduledBatch("b", "fv1", day(12)))
		return err
	})
	if !violatedRules(t, err)["tank_occupancy"] {
		t.Fatalf("expected tank_occupancy, got %v", err)
	}
	if _, ok := store.GetBatch("b"); ok {
		t.Fatalf("blocked batch must not be committed")
	}

	_, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateBatch(scheduledBatch("c", "fv1", day(13)))
		return err
	})
	if err != nil {
		t.Fatalf("expected adjacent batch accepted: %v", err)
	}
}

func TestTankOccupancyRuleIgnoresTurnsAndCompleted(t *testing.T) {
	done := scheduledBatch("done", "fv2", day(0))
	done.Status = StatusCompleted
	store := ruleStore(t, scheduledBatch("root", "fv2", day(0)))
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		turn := scheduledBatch("turn", "fv2", day(0))
		parent := "root"
		turn.ParentBatchID = &parent
		_, err := tx.CreateBatch(turn)
		return err
	})
	if err != nil {
		t.Fatalf("expected turn to share its parent's days: %v", err)
	}

	res, err := NewTankOccupancyRule().Evaluate(context.Background(), storeView(t, store), []Change{
		{Entity: EntityBatch, Action: ActionCreate, After: done},
	})
	if err != nil || len(res.Violations) != 0 {
		t.Fatalf("expected completed batch ignored, got %+v (%v)", res, err)
	}
}

func TestTankCapacityRuleSumsTurnGroup(t *testing.T) {
	store := ruleStore(t, scheduledBatch("root", "fv1", day(0)))
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		turn := scheduledBatch("turn", "fv1", day(0))
		parent := "root"
		turn.ParentBatchID = &parent
		_, err := tx.CreateBatch(turn)
		return err
	})
	if !violatedRules(t, err)["tank_capacity"] {
		t.Fatalf("expected tank_capacity, got %v", err)
	}

	res, err := NewTankCapacityRule().Evaluate(context.Background(), storeView(t, store), []Change{
		{Entity: EntityMasterItem, Action: ActionCreate, After: MasterItem{}},
	})
	if err != nil || len(res.Violations) != 0 {
		t.Fatalf("expected no tanks touched, got %+v", res)
	}
}

func TestLifecycleTransitionRule(t *testing.T) {
	ctx := context.Background()
	completed := scheduledBatch("done", "fv2", day(-30))
	cases := []struct {
		name string
		fn   func(tx Transaction) error
	}{
		{"create not planned", func(tx Transaction) error {
			b := scheduledBatch("x", "fv2", day(40))
			b.Status = StatusFermenting
			_, err := tx.CreateBatch(b)
			return err
		}},
		{"skip status", func(tx Transaction) error {
			_, err := tx.UpdateBatch("a", func(b *Batch) error {
				b.Status = StatusPackaged
				return nil
			})
			return err
		}},
		{"unknown status", func(tx Transaction) error {
			_, err := tx.UpdateBatch("a", func(b *Batch) error {
				b.Status = "brewing"
				return nil
			})
			return err
		}},
		{"edit completed", func(tx Transaction) error {
			_, err := tx.UpdateBatch("done", func(b *Batch) error {
				b.TankID = "fv1"
				return nil
			})
			return err
		}},
		{"delete completed", func(tx Transaction) error {
			return tx.DeleteBatch("done")
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := completedStore(t, completed)
			_, err := store.RunInTransaction(ctx, tc.fn)
			if !violatedRules(t, err)["lifecycle_transition"] {
				t.Fatalf("expected lifecycle_transition, got %v", err)
			}
		})
	}
}

// completedStore holds batch a planned on fv1 and done already completed.
// The state is built without rules and imported into a guarded store.
func completedStore(t *testing.T, done Batch) *memory.Store {
	t.Helper()
	done.Status = StatusCompleted
	loose := memory.NewStore(NewRulesEngine())
	_, err := loose.RunInTransaction(context.Background(), func(tx Transaction) error {
		for _, l := range []Location{tank("fv1", "1000"), tank("fv2", "2000")} {
			if _, err := tx.PutLocation(l); err != nil {
				return err
			}
		}
		if _, err := tx.CreateBatch(scheduledBatch("a", "fv1", day(0))); err != nil {
			return err
		}
		_, err := tx.CreateBatch(done)
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	store := memory.NewStore(NewDefaultRulesEngine())
	store.ImportState(loose.ExportState())
	return store
}

func TestExpectedImmutableRule(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		mutate func(*Batch) error
	}{
		{"ingredient quantity", func(b *Batch) error {
			b.Mash.Expected.Ingredients[0].Quantity = dec("300")
			return nil
		}},
		{"fermentation days", func(b *Batch) error {
			b.Fermentation.Expected.Steps[0].Days = 2
			return nil
		}},
		{"lot code", func(b *Batch) error {
			b.LotCode = "24999"
			return nil
		}},
		{"target volume", func(b *Batch) error {
			b.Target.Volume = dec("10")
			return nil
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := ruleStore(t, scheduledBatch("a", "fv1", day(0)))
			_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
				_, err := tx.UpdateBatch("a", tc.mutate)
				return err
			})
			if !violatedRules(t, err)["expected_immutable"] {
				t.Fatalf("expected expected_immutable, got %v", err)
			}
		})
	}

	store := ruleStore(t, scheduledBatch("a", "fv1", day(0)))
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateBatch("a", func(b *Batch) error {
			b.Mash.Actual.Notes = "stuck sparge"
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("expected actual edits allowed: %v", err)
	}
}

func TestStockNonNegativeRule(t *testing.T) {
	store := ruleStore(t)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateWarehouseItem(WarehouseItem{Base: Base{ID: "r1"}, MaterialID: "malt-pils", LotNumber: "L1", LocationID: "wh1", Quantity: dec("5")})
		return err
	}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateWarehouseItem("r1", func(item *WarehouseItem) error {
			item.Quantity = item.Quantity.Sub(dec("6"))
			return nil
		})
		return err
	})
	if !violatedRules(t, err)["stock_non_negative"] {
		t.Fatalf("expected stock_non_negative, got %v", err)
	}
	if got := AvailableStock(storeView(t, store), maltL1); !got.Equal(dec("5")) {
		t.Fatalf("expected stock untouched, got %s", got)
	}
}

func TestChangedBatchAcceptsPointers(t *testing.T) {
	b := scheduledBatch("a", "fv1", day(0))
	if got, ok := changedBatch(&b); !ok || got.ID != "a" {
		t.Fatalf("expected pointer payload decoded")
	}
	if _, ok := changedBatch((*Batch)(nil)); ok {
		t.Fatalf("expected nil pointer rejected")
	}
	if _, ok := changedBatch(Location{}); ok {
		t.Fatalf("expected non-batch payload rejected")
	}
	moved := b
	moved.TankID = "fv2"
	tanks := touchedTanks([]Change{
		{Entity: EntityBatch, Action: ActionUpdate, Before: b, After: moved},
		{Entity: EntityLocation, Action: ActionUpdate, After: warehouse("wh1")},
		{Entity: EntityLocation, Action: ActionUpdate, After: tank("fv3", "10")},
	})
	for _, id := range []string{"fv1", "fv2", "fv3"} {
		if _, ok := tanks[id]; !ok {
			t.Fatalf("expected %s touched, got %v", id, tanks)
		}
	}
	if _, ok := tanks["wh1"]; ok {
		t.Fatalf("warehouse must not count as a tank")
	}
}
