// Package redis implements the resource locker on top of Redis so several
// brewcore instances can share tank, batch and lot locks.
package redis

import (
	"brewcore/pkg/domain"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultPrefix        = "brewcore:lock:"
	defaultTTL           = 30 * time.Second
	defaultRetryInterval = 50 * time.Millisecond
	releaseTimeout       = 5 * time.Second
)

var _ domain.Locker = (*Locker)(nil)

// Options tunes a Locker. Zero values select the defaults.
type Options struct {
	Prefix        string
	TTL           time.Duration
	RetryInterval time.Duration
	Logger        *zap.Logger
}

type lease interface {
	Release(ctx context.Context) error
}

type obtainFunc func(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (lease, error)

// Locker holds one Redis lock per key. Keys are taken in sorted order and a
// failed acquisition releases whatever it already held.
type Locker struct {
	obtain obtainFunc
	opts   Options
	log    *zap.Logger
}

// NewLocker builds a locker over client.
func NewLocker(client goredis.UniversalClient, opts Options) *Locker {
	rl := redislock.New(client)
	return newLocker(func(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (lease, error) {
		lock, err := rl.Obtain(ctx, key, ttl, opt)
		if err != nil {
			return nil, err
		}
		return lock, nil
	}, opts)
}

func newLocker(obtain obtainFunc, opts Options) *Locker {
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Locker{obtain: obtain, opts: opts, log: log.Named("redislock")}
}

// Acquire blocks until every key is held or ctx is done.
func (l *Locker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = domain.NormalizeLockKeys(keys)
	held := make([]lease, 0, len(keys))
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		name := l.opts.Prefix + key
		lock, err := l.obtain(ctx, name, l.opts.TTL, &redislock.Options{
			RetryStrategy: redislock.LinearBackoff(l.opts.RetryInterval),
		})
		if err != nil {
			l.releaseAll(names, held)
			if errors.Is(err, redislock.ErrNotObtained) || ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s", domain.ErrLockNotObtained, key)
			}
			return nil, fmt.Errorf("obtain lock %s: %w", key, err)
		}
		held = append(held, lock)
		names = append(names, name)
	}
	var once sync.Once
	return func() {
		once.Do(func() { l.releaseAll(names, held) })
	}, nil
}

func (l *Locker) releaseAll(names []string, held []lease) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	for i := len(held) - 1; i >= 0; i-- {
		if err := held[i].Release(ctx); err != nil {
			// An expired TTL means another holder may have run concurrently.
			l.log.Warn("release lock", zap.String("key", names[i]), zap.Error(err))
		}
	}
}

// Connect dials addr and verifies the server answers before returning.
func Connect(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}
