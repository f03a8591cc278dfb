package distlock

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLockExcludesSecondHolder(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	first := NewRedisLock(client, "stage:acc-1:birthday", time.Minute)
	second := NewRedisLock(client, "stage:acc-1:birthday", time.Minute)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("lock:stage:acc-1:birthday"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// a non-owner release leaves the key alone
	require.NoError(t, second.Release(ctx))
	assert.True(t, mr.Exists("lock:stage:acc-1:birthday"))

	require.NoError(t, first.Release(ctx))
	assert.False(t, mr.Exists("lock:stage:acc-1:birthday"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockExpires(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	l := NewRedisLock(client, "k", 10*time.Second)
	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(5 * time.Second)
	assert.True(t, mr.Exists("lock:k"))

	mr.FastForward(6 * time.Second)
	assert.False(t, mr.Exists("lock:k"))

	ok, err = NewRedisLock(client, "k", time.Second).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockSurfacesBackendErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	_, err := NewRedisLock(client, "k", time.Second).Acquire(context.Background())
	assert.Error(t, err)
}

func TestPGAdvisoryLockPinsConnection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, "stage:acc-1:loyalty")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_lock($1)")).
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_unlock($1)")).
		WithArgs(l.lockID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	// re-acquire on the same handle does not hit the database
	ok, err = l.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(context.Background()))
	require.NoError(t, l.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLockDiscardsConnectionWhenUnlockFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, "stage:acc-1:loyalty")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_lock($1)")).
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_unlock($1)")).
		WithArgs(l.lockID).
		WillReturnError(errors.New("canceling statement due to statement timeout"))
	mock.ExpectClose()

	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	assert.Error(t, l.Release(context.Background()))
	assert.Equal(t, 0, db.Stats().OpenConnections)
	assert.Equal(t, 0, db.Stats().Idle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLockHeldElsewhere(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_lock($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	ok, err := NewPGAdvisoryLock(db, "k").Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGLockIDIsStable(t *testing.T) {
	assert.Equal(t, NewPGAdvisoryLock(nil, "a").lockID, NewPGAdvisoryLock(nil, "a").lockID)
	assert.NotEqual(t, NewPGAdvisoryLock(nil, "a").lockID, NewPGAdvisoryLock(nil, "b").lockID)
}

func TestLocalLocks(t *testing.T) {
	locks := NewLocalLocks()
	ctx := context.Background()

	a := locks.Lock("stage:1:welcome")
	b := locks.Lock("stage:1:welcome")
	other := locks.Lock("stage:2:welcome")

	ok, _ := a.Acquire(ctx)
	assert.True(t, ok)
	ok, _ = b.Acquire(ctx)
	assert.False(t, ok)
	ok, _ = other.Acquire(ctx)
	assert.True(t, ok)

	require.NoError(t, b.Release(ctx))
	ok, _ = b.Acquire(ctx)
	assert.False(t, ok, "releasing an unheld handle must not unlock the holder")

	require.NoError(t, a.Release(ctx))
	ok, _ = b.Acquire(ctx)
	assert.True(t, ok)
}

func TestWaitTimesOut(t *testing.T) {
	locks := NewLocalLocks()
	holder := locks.Lock("k")
	ok, _ := holder.Acquire(context.Background())
	require.True(t, ok)

	start := time.Now()
	release, err := Wait(context.Background(), locks.Lock("k"), 200*time.Millisecond, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.Nil(t, release)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitAcquiresAfterRelease(t *testing.T) {
	locks := NewLocalLocks()
	holder := locks.Lock("k")
	ok, _ := holder.Acquire(context.Background())
	require.True(t, ok)

	go func() {
		time.Sleep(50 * time.Millisecond)
		holder.Release(context.Background())
	}()

	waiter := locks.Lock("k")
	release, err := Wait(context.Background(), waiter, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	release()

	ok, _ = locks.Lock("k").Acquire(context.Background())
	assert.True(t, ok)
}

func TestWaitHonoursContext(t *testing.T) {
	locks := NewLocalLocks()
	holder := locks.Lock("k")
	holder.Acquire(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Wait(ctx, locks.Lock("k"), time.Minute, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFactoryBackend(t *testing.T) {
	_, client := newRedis(t)
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "redis", NewFactory(client, db, time.Minute).Backend())
	assert.IsType(t, &RedisLock{}, NewFactory(client, db, time.Minute).Lock("k"))
	assert.Equal(t, "postgres", NewFactory(nil, db, time.Minute).Backend())
	assert.IsType(t, &PGAdvisoryLock{}, NewFactory(nil, db, time.Minute).Lock("k"))

	f := NewFactory(nil, nil, time.Minute)
	assert.Equal(t, "local", f.Backend())
	ok, _ := f.Lock("k").Acquire(context.Background())
	assert.True(t, ok)
	ok, _ = f.Lock("k").Acquire(context.Background())
	assert.False(t, ok)
}
