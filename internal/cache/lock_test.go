package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerExclusive(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "consignment:1")
	require.NoError(t, err)

	// a different key is independent
	other, err := l.Acquire(ctx, "consignment:2")
	require.NoError(t, err)
	other()

	// same key stays busy until released
	_, err = l.Acquire(ctx, "consignment:1")
	assert.ErrorIs(t, err, ErrLockBusy)

	release()
	release() // idempotent

	again, err := l.Acquire(ctx, "consignment:1")
	require.NoError(t, err)
	again()
}

func TestLocalLockerWaitsForRelease(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()

	next, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	next()
}

func TestLocalLockerSerializesCounter(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		acquired int
	)
	counter := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "counter")
			if err != nil {
				return
			}
			defer release()
			mu.Lock()
			acquired++
			mu.Unlock()
			v := counter
			time.Sleep(time.Millisecond)
			counter = v + 1
		}()
	}
	wg.Wait()
	require.GreaterOrEqual(t, acquired, 1)
	assert.Equal(t, acquired, counter, "no lost updates while holding the lock")
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker()
	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisLockerBusyUntilReleased(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := NewRedisLocker(rdb, time.Minute)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "lock:consignment:1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "lock:consignment:1")
	assert.ErrorIs(t, err, ErrLockBusy)

	other, err := l.Acquire(ctx, "lock:consignment:2")
	require.NoError(t, err)
	other()

	release()
	again, err := l.Acquire(ctx, "lock:consignment:1")
	require.NoError(t, err)
	again()
}

func TestRedisLockerExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewRedisLocker(rdb, 5*time.Second)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "lock:consignment:7")
	require.NoError(t, err)

	mr.FastForward(6 * time.Second)
	require.False(t, mr.Exists("lock:consignment:7"))

	fresh, err := l.Acquire(ctx, "lock:consignment:7")
	require.NoError(t, err)

	// the first holder comes back late and must not free the new owner's key
	stale()
	assert.True(t, mr.Exists("lock:consignment:7"))

	_, err = l.Acquire(ctx, "lock:consignment:7")
	assert.ErrorIs(t, err, ErrLockBusy)

	fresh()
	assert.False(t, mr.Exists("lock:consignment:7"))
}

func TestNewRedisParsesURL(t *testing.T) {
	mr, _ := newTestRedis(t)

	rdb, err := NewRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	_ = rdb.Close()

	_, err = NewRedis(context.Background(), "not a url")
	assert.Error(t, err)
}
