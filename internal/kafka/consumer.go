package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-lunch/internal/logger"
	"ms-lunch/internal/models"
)

type Consumer struct {
	reader *kafka.Reader
	logger *logger.Logger
}

// NewConsumer reads domain events from every topic in topics as one consumer group.
func NewConsumer(brokers, topics []string, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupTopics: topics,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})
	return &Consumer{reader: reader, logger: log}
}

// Start blocks until ctx is cancelled, handing every decoded event to handler.
func (c *Consumer) Start(ctx context.Context, handler func(models.DomainEvent)) {
	c.logger.Info("KAFKA", "🔄 Kafka consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("KAFKA", "Kafka consumer stopped")
				return
			}
			c.logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			continue
		}

		var evt models.DomainEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal message from %s: %v", msg.Topic, err))
			continue
		}

		c.logger.Debug("KAFKA", fmt.Sprintf("Received %s event for group %s", evt.Type, evt.GroupID))
		handler(evt)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
