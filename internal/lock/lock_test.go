package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-lunch/internal/logger"
)

func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewRedis(client, 5*time.Second, 3, logger.Discard()), mr
}

func TestAcquireRelease(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()

	token, ok, err := r.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = r.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	// A stale token must not release someone else's lock.
	require.NoError(t, r.Release(ctx, "k", "not-mine"))
	assert.True(t, mr.Exists("k"))

	require.NoError(t, r.Release(ctx, "k", token))
	assert.False(t, mr.Exists("k"))
}

func TestWithGroupLockSerializes(t *testing.T) {
	r, _ := setupTestRedis(t)
	r.Retries = 200
	r.RetryDelay = time.Millisecond

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.WithGroupLock(context.Background(), "g1", func() error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestWithGroupLockGivesUp(t *testing.T) {
	r, mr := setupTestRedis(t)
	r.RetryDelay = time.Millisecond
	require.NoError(t, mr.Set(joinLockKey("g1"), "other"))

	called := false
	err := r.WithGroupLock(context.Background(), "g1", func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.False(t, called)
}

func TestScheduleGroupExpiry(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.ScheduleGroupExpiry(ctx, "g1", time.Now().Add(30*time.Minute)))
	assert.True(t, mr.Exists("group_expiry:g1"))
	ttl := mr.TTL("group_expiry:g1")
	assert.InDelta(t, (30 * time.Minute).Seconds(), ttl.Seconds(), 5)

	mr.FastForward(31 * time.Minute)
	assert.False(t, mr.Exists("group_expiry:g1"))

	require.NoError(t, r.ScheduleGroupExpiry(ctx, "g2", time.Now().Add(time.Hour)))
	require.NoError(t, r.CancelGroupExpiry(ctx, "g2"))
	assert.False(t, mr.Exists("group_expiry:g2"))
}
