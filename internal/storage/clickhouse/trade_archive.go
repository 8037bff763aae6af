package clickhouse

import (
	"context"
	"fmt"

	"marketpulse/internal/domain"
	"marketpulse/internal/storage"
)

// TradeArchive implements storage.TradeArchive using ClickHouse. Raw trades
// are a high-volume append-only stream; MergeTree handles that better than
// the relational store holding candles.
type TradeArchive struct {
	conn *Conn
}

// NewTradeArchive creates a new TradeArchive.
func NewTradeArchive(conn *Conn) *TradeArchive {
	return &TradeArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeArchive = (*TradeArchive)(nil)

// InsertBulk appends a batch of trade events.
func (s *TradeArchive) InsertBulk(ctx context.Context, trades []*domain.TradeEvent) error {
	if len(trades) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trades (symbol, price, quantity, event_time_ms)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range trades {
		if t == nil || t.Symbol == "" {
			return storage.ErrInvalidInput
		}
		err = batch.Append(t.Symbol, t.Price, t.Quantity, uint64(t.EventTimeMillis))
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves archived trades for a symbol within [start, end],
// ordered by event time ASC.
func (s *TradeArchive) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.TradeEvent, error) {
	query := `
		SELECT symbol, price, quantity, event_time_ms
		FROM trades
		WHERE symbol = ? AND event_time_ms >= ? AND event_time_ms <= ?
		ORDER BY event_time_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("get trades by time range: %w", err)
	}
	defer rows.Close()

	var result []*domain.TradeEvent
	for rows.Next() {
		var (
			t           domain.TradeEvent
			eventTimeMs uint64
		)
		if err := rows.Scan(&t.Symbol, &t.Price, &t.Quantity, &eventTimeMs); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.EventTimeMillis = int64(eventTimeMs)
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return result, nil
}
