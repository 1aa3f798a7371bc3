package domain

import (
	"context"
	"errors"
	"sort"
)

// ErrLockNotObtained is returned when a resource lock cannot be acquired
// before the context expires.
var ErrLockNotObtained = errors.New("lock not obtained")

// Locker serializes check-then-act operations on named resources. Acquire
// blocks until every key is held or ctx is done. The returned release func
// must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (release func(), err error)
}

// NormalizeLockKeys sorts keys and drops blanks and duplicates so every
// caller acquires overlapping key sets in the same order.
func NormalizeLockKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
