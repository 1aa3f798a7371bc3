package memory

import (
	"brewcore/pkg/domain"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type blockingRule struct{}

func (blockingRule) Name() string { return "block_all_batches" }

func (blockingRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	if len(view.ListBatches()) == 0 {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{Rule: "block_all_batches", Severity: domain.SeverityBlock}}}, nil
}

func seedTank(t *testing.T, store *Store) Location {
	t.Helper()
	var tank Location
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		tank, err = tx.PutLocation(Location{Base: domain.Base{ID: "fv1"}, Name: "FV1", Kind: domain.LocationTank, GrossVolume: decimal.NewFromInt(1000)})
		return err
	})
	if err != nil {
		t.Fatalf("seed tank: %v", err)
	}
	return tank
}

func TestStoreBatchCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })

	var created Batch
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateBatch(Batch{LotCode: "24001", Status: domain.StatusPlanned})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || !created.CreatedAt.Equal(fixed) {
		t.Fatalf("expected id and timestamps, got %+v", created.Base)
	}

	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateBatch(created.ID, func(b *Batch) error {
			b.Status = domain.StatusInProgress
			b.ID = "ignored"
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, ok := store.GetBatch(created.ID)
	if !ok || got.Status != domain.StatusInProgress {
		t.Fatalf("expected updated batch, got %+v ok=%v", got, ok)
	}

	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteBatch(created.ID)
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := store.GetBatch(created.ID); ok {
		t.Fatalf("expected batch removed")
	}
}

func TestStoreRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	boom := errors.New("boom")
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.CreateBatch(Batch{LotCode: "x"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(store.ListBatches()) != 0 {
		t.Fatalf("expected no batches after rollback")
	}
}

func TestStoreRollsBackOnBlockingRule(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockingRule{})
	store := NewStore(engine)
	res, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateBatch(Batch{LotCode: "x"})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result")
	}
	if len(store.ListBatches()) != 0 {
		t.Fatalf("blocked transaction must not commit")
	}
}

func TestStoreDeleteBatchGuardsTurns(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		parent, err := tx.CreateBatch(Batch{Base: domain.Base{ID: "parent"}})
		if err != nil {
			return err
		}
		_, err = tx.CreateBatch(Batch{Base: domain.Base{ID: "child"}, ParentBatchID: &parent.ID})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteBatch("parent")
	})
	var referenced domain.BatchReferencedError
	if !errors.As(err, &referenced) || referenced.BatchID != "parent" || len(referenced.TurnIDs) != 1 || referenced.TurnIDs[0] != "child" {
		t.Fatalf("expected referenced parent rejected with its turns, got %v", err)
	}
	if !errors.Is(err, domain.ErrBatchReferenced) {
		t.Fatalf("expected ErrBatchReferenced, got %v", err)
	}
	missing := "missing"
	_, err = store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateBatch(Batch{ParentBatchID: &missing})
		return err
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown parent, got %v", err)
	}
}

func TestStoreWarehouseItems(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateWarehouseItem(WarehouseItem{MaterialID: "m", LotNumber: "l", LocationID: "nowhere"})
		return err
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected unknown location rejection, got %v", err)
	}

	seedTank(t, store)
	var row WarehouseItem
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		row, err = tx.CreateWarehouseItem(WarehouseItem{MaterialID: "m", LotNumber: "l", LocationID: "fv1", Quantity: decimal.NewFromInt(5)})
		if err != nil {
			return err
		}
		_, err = tx.UpdateWarehouseItem(row.ID, func(w *WarehouseItem) error {
			w.Quantity = w.Quantity.Sub(decimal.NewFromInt(2))
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("stock: %v", err)
	}
	rows := store.ListWarehouseItems()
	if len(rows) != 1 || !rows[0].Quantity.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("unexpected stock %+v", rows)
	}
}

func TestStorePutIsUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return first })
	seedTank(t, store)
	second := first.Add(time.Hour)
	store.SetNowFunc(func() time.Time { return second })
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.PutLocation(Location{Base: domain.Base{ID: "fv1"}, Name: "FV1b", Kind: domain.LocationTank})
		return err
	}); err != nil {
		t.Fatalf("put: %v", err)
	}
	locations := store.ListLocations()
	if len(locations) != 1 || locations[0].Name != "FV1b" {
		t.Fatalf("expected replaced location, got %+v", locations)
	}
	if !locations[0].CreatedAt.Equal(first) || !locations[0].UpdatedAt.Equal(second) {
		t.Fatalf("expected created_at preserved, got %+v", locations[0].Base)
	}
}

func TestStoreExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	seedTank(t, store)
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.PutRecipe(Recipe{Base: domain.Base{ID: "ipa"}, Name: "IPA"}); err != nil {
			return err
		}
		_, err := tx.CreateBatch(Batch{Base: domain.Base{ID: "b1"}, RecipeID: "ipa"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	snapshot := store.ExportState()

	restored := NewStore(nil)
	restored.ImportState(snapshot)
	if _, ok := restored.GetBatch("b1"); !ok {
		t.Fatalf("expected batch after import")
	}
	if _, ok := restored.GetRecipe("ipa"); !ok {
		t.Fatalf("expected recipe after import")
	}
	if len(restored.ListLocations()) != 1 {
		t.Fatalf("expected location after import")
	}

	snapshot.Batches["b1"] = Batch{LotCode: "mutated"}
	if b, _ := restored.GetBatch("b1"); b.LotCode == "mutated" {
		t.Fatalf("import must not alias the snapshot maps")
	}

	restored.ImportState(Snapshot{})
	if len(restored.ListBatches()) != 0 {
		t.Fatalf("expected empty state from empty snapshot")
	}
}

func TestViewSeesCommittedStateOnly(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	seedTank(t, store)
	err := store.View(ctx, func(view TransactionView) error {
		if _, ok := view.FindLocation("fv1"); !ok {
			t.Fatalf("expected tank visible in view")
		}
		if _, ok := view.FindMasterItem("nope"); ok {
			t.Fatalf("unexpected master item")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
