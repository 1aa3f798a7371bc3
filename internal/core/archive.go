package core

import (
	"brewcore/internal/blob"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// BatchArchive keeps a durable record of completed batches.
type BatchArchive interface {
	Archive(ctx context.Context, b Batch) error
	Contains(ctx context.Context, b Batch) (bool, error)
}

// BlobArchive writes completed batches as JSON documents to a blob store.
type BlobArchive struct {
	store blob.Store
}

// NewBlobArchive constructs an archive over store.
func NewBlobArchive(store blob.Store) *BlobArchive {
	return &BlobArchive{store: store}
}

// ArchiveKey returns the blob key of a batch record.
func ArchiveKey(b Batch) string {
	return fmt.Sprintf("batches/%04d/%s.json", b.CookDate.UTC().Year(), b.LotCode)
}

// Archive stores the batch record. Archiving an already archived batch is a no-op.
func (a *BlobArchive) Archive(ctx context.Context, b Batch) error {
	payload, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encode batch %s: %w", b.ID, err)
	}
	_, err = a.store.Put(ctx, ArchiveKey(b), bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"batch-id": b.ID,
			"lot-code": b.LotCode,
			"recipe":   b.RecipeID,
		},
	})
	if errors.Is(err, blob.ErrExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("archive batch %s: %w", b.ID, err)
	}
	return nil
}

// Contains reports whether the batch record is already archived.
func (a *BlobArchive) Contains(ctx context.Context, b Batch) (bool, error) {
	_, err := a.store.Head(ctx, ArchiveKey(b))
	if errors.Is(err, blob.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type noopArchive struct{}

func (noopArchive) Archive(context.Context, Batch) error { return nil }

func (noopArchive) Contains(context.Context, Batch) (bool, error) { return true, nil }
