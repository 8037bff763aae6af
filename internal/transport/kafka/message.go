// Package kafka moves trade events between the producer and the processor
// over a Kafka topic. Messages are keyed by symbol so that all trades of one
// symbol land on the same partition in order.
package kafka

import (
	"encoding/json"
	"fmt"

	"marketpulse/internal/domain"
)

// tradeMessage is the wire representation of a trade event.
type tradeMessage struct {
	Symbol          string  `json:"symbol"`
	Price           float64 `json:"price"`
	Quantity        float64 `json:"quantity"`
	EventTimeMillis int64   `json:"event_time_ms"`
}

// encodeTrade serializes a trade event for publishing.
func encodeTrade(ev *domain.TradeEvent) ([]byte, error) {
	msg := tradeMessage{
		Symbol:          ev.Symbol,
		Price:           ev.Price,
		Quantity:        ev.Quantity,
		EventTimeMillis: ev.EventTimeMillis,
	}
	return json.Marshal(msg)
}

// decodeTrade deserializes a trade event from a message value.
func decodeTrade(value []byte) (*domain.TradeEvent, error) {
	var msg tradeMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal trade message: %w", err)
	}
	return &domain.TradeEvent{
		Symbol:          msg.Symbol,
		Price:           msg.Price,
		Quantity:        msg.Quantity,
		EventTimeMillis: msg.EventTimeMillis,
	}, nil
}
