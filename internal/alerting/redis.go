package alerting

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"marketpulse/internal/domain"
)

// redisAlert is the payload published to the alert channel.
type redisAlert struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Symbol      string  `json:"symbol"`
	Severity    string  `json:"severity"`
	Threshold   float64 `json:"threshold"`
	TimestampMs int64   `json:"timestamp_ms"`
	Subject     string  `json:"subject"`
	Message     string  `json:"message"`
}

// RedisNotifier publishes alerts to a Redis pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

var _ Notifier = (*RedisNotifier)(nil)

// NewRedisNotifier creates a notifier publishing to the given channel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, rec *domain.AnomalyRecord) error {
	payload, err := json.Marshal(redisAlert{
		ID:          rec.ID,
		Type:        rec.Type,
		Symbol:      rec.Symbol,
		Severity:    rec.Severity,
		Threshold:   rec.Threshold,
		TimestampMs: rec.TimestampMs,
		Subject:     Subject(rec),
		Message:     FormatAlert(rec),
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}
