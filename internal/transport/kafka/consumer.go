package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"marketpulse/internal/domain"
)

// Consumer reads trade events from a Kafka topic as part of a consumer
// group. Offsets are committed automatically after each read.
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a consumer for the given brokers, topic and group.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader}
}

// ReadTrade blocks until the next trade event arrives or the context is
// canceled.
func (c *Consumer) ReadTrade(ctx context.Context) (*domain.TradeEvent, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	return decodeTrade(msg.Value)
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
