package memory

import (
	"encoding/json"
	"fmt"
)

// Buckets lists the snapshot partitions written by durable backends, one row each.
var Buckets = []string{"batches", "recipes", "locations", "items", "stock"}

func (s *Snapshot) bucketTarget(bucket string) (any, bool) {
	switch bucket {
	case "batches":
		return &s.Batches, true
	case "recipes":
		return &s.Recipes, true
	case "locations":
		return &s.Locations, true
	case "items":
		return &s.Items, true
	case "stock":
		return &s.Stock, true
	}
	return nil, false
}

// EncodeBucket marshals one partition of the snapshot.
func (s Snapshot) EncodeBucket(bucket string) ([]byte, error) {
	target, ok := s.bucketTarget(bucket)
	if !ok {
		return nil, fmt.Errorf("unknown bucket %s", bucket)
	}
	return json.Marshal(target)
}

// DecodeBucket fills one partition of the snapshot. Unknown buckets are ignored
// so older databases with retired buckets still load.
func (s *Snapshot) DecodeBucket(bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	target, ok := s.bucketTarget(bucket)
	if !ok {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
