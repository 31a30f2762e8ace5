package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-lunch/internal/logger"
)

// Producer writes to any topic; the topic is chosen per message.
type Producer struct {
	Writer *kafka.Writer
	logger *logger.Logger
}

func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return &Producer{Writer: writer, logger: log}
}

// Publish sends one keyed message. Messages sharing a key land on the same partition.
func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	err := p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.logger.LogKafka("PUBLISH", topic, fmt.Sprintf("key=%s bytes=%d", key, len(value)))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
