package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-lunch/internal/logger"
	"ms-lunch/internal/metrics"
	"ms-lunch/internal/models"
)

// Publisher is what services depend on to announce state changes.
type Publisher interface {
	Publish(ctx context.Context, evt models.DomainEvent)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, models.DomainEvent) {}

type KafkaProducer interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

type Broadcaster interface {
	Broadcast(evt models.DomainEvent)
}

// Dispatcher sends events to Kafka when a producer is configured; the Kafka
// consumer then feeds the SSE hub. Without Kafka, or when a publish fails,
// events go straight to the hub.
type Dispatcher struct {
	producer KafkaProducer
	topics   map[string]string
	hub      Broadcaster
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

func NewDispatcher(producer KafkaProducer, topics map[string]string, hub Broadcaster, m *metrics.Metrics, log *logger.Logger) *Dispatcher {
	return &Dispatcher{producer: producer, topics: topics, hub: hub, metrics: m, logger: log}
}

// Publish never fails the caller: the state change has already been committed.
func (d *Dispatcher) Publish(ctx context.Context, evt models.DomainEvent) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	if d.producer != nil {
		if topic, ok := d.topics[evt.Stream()]; ok {
			err := d.publishKafka(ctx, topic, evt)
			if err == nil {
				d.count(evt.Type, "kafka")
				return
			}
			d.logger.Error("EVENTS", fmt.Sprintf("Kafka publish of %s failed, broadcasting locally: %v", evt.Type, err))
		}
	}

	if d.hub != nil {
		d.hub.Broadcast(evt)
		d.count(evt.Type, "hub")
	}
}

func (d *Dispatcher) publishKafka(ctx context.Context, topic string, evt models.DomainEvent) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	key := evt.GroupID
	if key == "" {
		key = evt.UserID
	}
	return d.producer.Publish(ctx, topic, key, value)
}

func (d *Dispatcher) count(eventType, sink string) {
	if d.metrics != nil {
		d.metrics.EventsPublished.WithLabelValues(eventType, sink).Inc()
	}
}
