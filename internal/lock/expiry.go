package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-lunch/internal/logger"
)

const groupExpiryPrefix = "group_expiry:"

// ScheduleGroupExpiry sets a key that expires at endAt. The expiry
// notification drives the close of the group; the periodic sweep remains the
// fallback when notifications are lost.
func (r *Redis) ScheduleGroupExpiry(ctx context.Context, groupID string, endAt time.Time) error {
	ttl := time.Until(endAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	return r.Client.Set(ctx, groupExpiryPrefix+groupID, endAt.UTC().Format(time.RFC3339), ttl).Err()
}

func (r *Redis) CancelGroupExpiry(ctx context.Context, groupID string) error {
	return r.Client.Del(ctx, groupExpiryPrefix+groupID).Err()
}

// EnableKeyspaceNotifications turns on expired-key events. Managed redis
// often forbids CONFIG SET, so failure is only logged.
func EnableKeyspaceNotifications(ctx context.Context, rdb *redis.Client, log *logger.Logger) {
	if _, err := rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Result(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Failed to enable keyspace notifications: %v", err))
		return
	}
	log.Info("REDIS", "Keyspace notifications enabled for expired events")
}

// SubscribeGroupExpiry calls onExpire with the group id of every expired
// group_expiry key until ctx is cancelled.
func SubscribeGroupExpiry(ctx context.Context, rdb *redis.Client, log *logger.Logger, onExpire func(groupID string)) {
	channel := fmt.Sprintf("__keyevent@%d__:expired", rdb.Options().DB)
	pubsub := rdb.PSubscribe(ctx, channel)
	log.Info("REDIS", fmt.Sprintf("Subscribed to %s", channel))

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if !strings.HasPrefix(msg.Payload, groupExpiryPrefix) {
					continue
				}
				groupID := strings.TrimPrefix(msg.Payload, groupExpiryPrefix)
				log.LogGroup("EXPIRED", groupID, "Expiry key fired")
				onExpire(groupID)
			}
		}
	}()
}
