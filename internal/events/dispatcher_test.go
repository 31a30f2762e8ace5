package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-lunch/internal/logger"
	"ms-lunch/internal/metrics"
	"ms-lunch/internal/models"
)

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value []byte) error {
	args := m.Called(topic, key, value)
	return args.Error(0)
}

type recordingHub struct {
	events []models.DomainEvent
}

func (h *recordingHub) Broadcast(evt models.DomainEvent) {
	h.events = append(h.events, evt)
}

var topics = map[string]string{"groups": "lunch.groups", "carts": "lunch.carts"}

func TestPublishGoesToKafkaTopicByStream(t *testing.T) {
	producer := new(MockProducer)
	hub := &recordingHub{}
	d := NewDispatcher(producer, topics, hub, metrics.New(), logger.Discard())

	producer.On("Publish", "lunch.groups", "g1", mock.MatchedBy(func(v []byte) bool {
		var evt models.DomainEvent
		return json.Unmarshal(v, &evt) == nil && evt.Type == models.EventGroupClosed && evt.ID != ""
	})).Return(nil).Once()

	d.Publish(context.Background(), models.DomainEvent{Type: models.EventGroupClosed, GroupID: "g1"})

	producer.AssertExpectations(t)
	assert.Empty(t, hub.events)
}

func TestPublishFallsBackToHubOnKafkaError(t *testing.T) {
	producer := new(MockProducer)
	hub := &recordingHub{}
	d := NewDispatcher(producer, topics, hub, nil, logger.Discard())

	producer.On("Publish", "lunch.carts", "g1", mock.Anything).Return(errors.New("broker down"))

	d.Publish(context.Background(), models.DomainEvent{Type: models.EventCartUpdated, GroupID: "g1"})

	require.Len(t, hub.events, 1)
	assert.Equal(t, models.EventCartUpdated, hub.events[0].Type)
	assert.False(t, hub.events[0].OccurredAt.IsZero())
}

func TestPublishWithoutKafkaBroadcasts(t *testing.T) {
	hub := &recordingHub{}
	d := NewDispatcher(nil, topics, hub, nil, logger.Discard())

	d.Publish(context.Background(), models.DomainEvent{Type: models.EventPaymentUpdated, GroupID: "g9"})

	require.Len(t, hub.events, 1)
	assert.Equal(t, "g9", hub.events[0].GroupID)
}
