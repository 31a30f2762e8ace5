package lock

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"ms-lunch/internal/logger"
)

func TestRedisIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Docker unavailable, skipping: %v", err)
	}
	defer container.Terminate(ctx)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	defer client.Close()

	log := logger.Discard()
	r := NewRedis(client, 5*time.Second, 1, log)

	token, ok, err := r.Acquire(ctx, joinLockKey("g1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.ErrorIs(t, r.WithGroupLock(ctx, "g1", func() error { return nil }), ErrNotAcquired)
	require.NoError(t, r.Release(ctx, joinLockKey("g1"), token))
	assert.NoError(t, r.WithGroupLock(ctx, "g1", func() error { return nil }))

	// Real redis delivers expiry notifications.
	EnableKeyspaceNotifications(ctx, client, log)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	expired := make(chan string, 1)
	SubscribeGroupExpiry(subCtx, client, log, func(groupID string) { expired <- groupID })
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, r.ScheduleGroupExpiry(ctx, "g7", time.Now()))
	select {
	case id := <-expired:
		assert.Equal(t, "g7", id)
	case <-time.After(10 * time.Second):
		t.Fatal("no expiry notification received")
	}
}
