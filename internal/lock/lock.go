package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"ms-lunch/internal/logger"
)

// ErrNotAcquired is returned by WithLock when the lock stays held by someone else.
var ErrNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another caller is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Redis struct {
	Client     *redis.Client
	TTL        time.Duration
	Retries    int
	RetryDelay time.Duration
	Logger     *logger.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, retries int, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if retries <= 0 {
		retries = 1
	}
	return &Redis{
		Client:     client,
		TTL:        ttl,
		Retries:    retries,
		RetryDelay: 50 * time.Millisecond,
		Logger:     log,
	}
}

func joinLockKey(groupID string) string {
	return "group_join_lock:" + groupID
}

// Acquire tries once. The returned token is needed to release.
func (r *Redis) Acquire(ctx context.Context, key string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.Client.SetNX(ctx, key, token, r.TTL).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (r *Redis) Release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, r.Client, []string{key}, token).Err()
}

// WithGroupLock runs fn while holding the join lock of groupID.
func (r *Redis) WithGroupLock(ctx context.Context, groupID string, fn func() error) error {
	key := joinLockKey(groupID)

	var token string
	for attempt := 0; attempt < r.Retries; attempt++ {
		t, ok, err := r.Acquire(ctx, key)
		if err != nil {
			return fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			token = t
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.RetryDelay):
		}
	}
	if token == "" {
		r.Logger.Warn("REDIS", fmt.Sprintf("Gave up waiting for %s after %d attempts", key, r.Retries))
		return ErrNotAcquired
	}

	defer func() {
		if err := r.Release(context.Background(), key, token); err != nil {
			r.Logger.Error("REDIS", fmt.Sprintf("Failed to release %s: %v", key, err))
		}
	}()
	return fn()
}
