package core

import (
	"brewcore/pkg/domain"
	"context"
	"fmt"
	"sync"
)

// ErrLockNotObtained is returned when a resource lock cannot be acquired in time.
var ErrLockNotObtained = domain.ErrLockNotObtained

// LocalLocker is an in-process keyed mutex. It serializes operations within
// one service instance; deployments running several instances use a shared
// locker instead.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

var _ domain.Locker = (*LocalLocker)(nil)

// NewLocalLocker constructs an empty keyed mutex.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Acquire holds every key in sorted order, waiting until ctx is done.
func (l *LocalLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	var held []chan struct{}
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
		held = nil
	}
	for _, key := range domain.NormalizeLockKeys(keys) {
		ch := l.slot(key)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, fmt.Errorf("%w: %s: %v", ErrLockNotObtained, key, ctx.Err())
		}
	}
	var once sync.Once
	return func() { once.Do(release) }, nil
}

func tankLockKey(id string) string  { return "tank:" + id }
func batchLockKey(id string) string { return "batch:" + id }

func lotLockKey(key domain.LotKey) string {
	return "lot:" + key.MaterialID + ":" + key.LotNumber
}

func lotLockKeys(keys []domain.LotKey) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, lotLockKey(key))
	}
	return out
}
