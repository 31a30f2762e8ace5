package sse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-lunch/internal/models"
)

func TestBroadcastReachesOnlyGroupSubscribers(t *testing.T) {
	hub := NewGroupEventHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := hub.Subscribe(ctx, "g1")
	b := hub.Subscribe(ctx, "g2")

	hub.Broadcast(models.DomainEvent{Type: models.EventCartUpdated, GroupID: "g1"})

	select {
	case evt := <-a:
		assert.Equal(t, models.EventCartUpdated, evt.Type)
	case <-time.After(time.Second):
		t.Fatal("subscriber of g1 did not receive event")
	}

	select {
	case <-b:
		t.Fatal("subscriber of g2 received an event for g1")
	default:
	}
}

func TestSubscriptionClosedOnCancel(t *testing.T) {
	hub := NewGroupEventHub()
	ctx, cancel := context.WithCancel(context.Background())

	ch := hub.Subscribe(ctx, "g1")
	assert.Equal(t, 1, hub.ClientCount("g1"))

	cancel()
	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	assert.Equal(t, 0, hub.ClientCount("g1"))
}

func TestBroadcastDoesNotBlockOnFullClient(t *testing.T) {
	hub := NewGroupEventHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = hub.Subscribe(ctx, "g1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < clientBuffer*3; i++ {
			hub.Broadcast(models.DomainEvent{Type: models.EventCartUpdated, GroupID: "g1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
}
