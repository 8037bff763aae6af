package ingestion

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"marketpulse/internal/domain"
)

// tradeMessage is the payload of a Binance @trade stream event. Price and
// quantity arrive as decimal strings.
type tradeMessage struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
}

// combinedMessage wraps a stream event on the combined-stream endpoint.
type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// ParseTrade decodes a raw WebSocket payload into a TradeEvent. Both the
// single-stream and the combined-stream ({"stream":...,"data":...}) framings
// are accepted.
func ParseTrade(raw []byte) (*domain.TradeEvent, error) {
	var wrapper combinedMessage
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Stream != "" && len(wrapper.Data) > 0 {
		raw = wrapper.Data
	}

	var msg tradeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal trade: %w", err)
	}

	if msg.EventType != "trade" {
		return nil, fmt.Errorf("unexpected event type %q", msg.EventType)
	}
	if msg.Symbol == "" {
		return nil, fmt.Errorf("missing symbol")
	}

	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", msg.Price, err)
	}

	qty, err := strconv.ParseFloat(msg.Quantity, 64)
	if err != nil {
		return nil, fmt.Errorf("parse quantity %q: %w", msg.Quantity, err)
	}

	return &domain.TradeEvent{
		Symbol:          msg.Symbol,
		Price:           price,
		Quantity:        qty,
		EventTimeMillis: msg.EventTime,
	}, nil
}

// StreamURL builds the combined-stream URL for the given trade symbols.
func StreamURL(baseURL string, symbols []string) string {
	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		streams = append(streams, strings.ToLower(s)+"@trade")
	}
	return strings.TrimRight(baseURL, "/") + "/stream?streams=" + strings.Join(streams, "/")
}
