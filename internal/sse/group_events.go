package sse

import (
	"context"
	"sync"

	"ms-lunch/internal/models"
)

const clientBuffer = 16

// GroupEventHub fans domain events out to the SSE clients watching a group.
type GroupEventHub struct {
	clients map[string][]chan models.DomainEvent
	mu      sync.RWMutex
}

func NewGroupEventHub() *GroupEventHub {
	return &GroupEventHub{
		clients: make(map[string][]chan models.DomainEvent),
	}
}

// Subscribe registers a client for groupID. The returned channel is closed
// once ctx is done.
func (h *GroupEventHub) Subscribe(ctx context.Context, groupID string) <-chan models.DomainEvent {
	ch := make(chan models.DomainEvent, clientBuffer)

	h.mu.Lock()
	h.clients[groupID] = append(h.clients[groupID], ch)
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(groupID, ch)
	}()

	return ch
}

// Broadcast delivers evt to the subscribers of evt.GroupID. Events without a
// group are dropped. Slow clients miss events rather than block the sender.
func (h *GroupEventHub) Broadcast(evt models.DomainEvent) {
	if evt.GroupID == "" {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients[evt.GroupID] {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (h *GroupEventHub) remove(groupID string, ch chan models.DomainEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[groupID]
	for i, c := range clients {
		if c == ch {
			h.clients[groupID] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(h.clients[groupID]) == 0 {
		delete(h.clients, groupID)
	}
}

func (h *GroupEventHub) ClientCount(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[groupID])
}
