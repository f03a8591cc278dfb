package distlock

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned by Wait when the lock stayed held by someone
// else for the whole wait.
var ErrNotAcquired = errors.New("lock not acquired")

// DefaultPollInterval is how often Wait retries a held lock.
const DefaultPollInterval = 250 * time.Millisecond

// DistLock is one named critical section. A DistLock instance belongs to a
// single holder; concurrent holders need their own instances.
type DistLock interface {
	// Acquire tries once to take the lock and never blocks on a holder.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock up if this instance still owns it.
	Release(ctx context.Context) error
}

// Factory hands out locks on the best configured backend: Redis first, then
// PostgreSQL advisory locks, then an in-process keyed mutex.
type Factory struct {
	redis *redis.Client
	db    *sql.DB
	ttl   time.Duration
	local *LocalLocks
}

// NewFactory builds a Factory. Both redisClient and db may be nil.
func NewFactory(redisClient *redis.Client, db *sql.DB, ttl time.Duration) *Factory {
	return &Factory{redis: redisClient, db: db, ttl: ttl, local: NewLocalLocks()}
}

// Backend names the backend new locks will use.
func (f *Factory) Backend() string {
	switch {
	case f.redis != nil:
		return "redis"
	case f.db != nil:
		return "postgres"
	default:
		return "local"
	}
}

// Lock returns a fresh lock instance for key.
func (f *Factory) Lock(key string) DistLock {
	return NewLock(f.redis, f.db, f.local, key, f.ttl)
}

// NewLock creates a lock using the best available backend.
func NewLock(redisClient *redis.Client, db *sql.DB, local *LocalLocks, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	if db != nil {
		return NewPGAdvisoryLock(db, key)
	}
	if local == nil {
		local = NewLocalLocks()
	}
	return local.Lock(key)
}

// Wait polls Acquire every poll interval until it succeeds, wait elapses or
// ctx is done. On success the returned func releases the lock with a fresh
// context so cancellation of ctx does not leak the lock.
func Wait(ctx context.Context, l DistLock, wait, poll time.Duration) (func(), error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	deadline := time.Now().Add(wait)
	for {
		ok, err := l.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = l.Release(rctx)
			}, nil
		}
		if !time.Now().Add(poll).Before(deadline) {
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(poll):
		}
	}
}
