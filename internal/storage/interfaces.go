package storage

import (
	"context"

	"marketpulse/internal/domain"
)

// CandleStore persists closed OHLCV candles keyed by (symbol, interval_start).
type CandleStore interface {
	// Insert adds a closed candle. Returns ErrDuplicateKey if
	// (symbol, interval_start) exists.
	Insert(ctx context.Context, c *domain.Candle) error

	// GetBySymbol retrieves up to limit candles for a symbol, most recent
	// first. limit <= 0 means no limit.
	GetBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Candle, error)

	// GetByTimeRange retrieves candles for a symbol with interval_start
	// within [start, end] (inclusive), ordered by interval_start ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Candle, error)

	// GetLatest retrieves the most recent candle per symbol, ordered by
	// symbol ASC.
	GetLatest(ctx context.Context) ([]*domain.Candle, error)
}

// AnomalyStore persists detected anomaly records.
type AnomalyStore interface {
	// Insert adds an anomaly record. Returns ErrDuplicateKey if the record
	// ID exists, ErrInvalidInput if the ID is empty.
	Insert(ctx context.Context, r *domain.AnomalyRecord) error

	// GetRecent retrieves up to limit records across all symbols, most
	// recent first. limit <= 0 means no limit.
	GetRecent(ctx context.Context, limit int) ([]*domain.AnomalyRecord, error)

	// GetBySymbol retrieves up to limit records for a symbol, most recent
	// first. limit <= 0 means no limit.
	GetBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.AnomalyRecord, error)
}

// TradeArchive persists raw trade events for offline analysis. Duplicates
// are tolerated; the archive is a best-effort audit trail, not a ledger.
type TradeArchive interface {
	// InsertBulk appends a batch of trade events.
	InsertBulk(ctx context.Context, trades []*domain.TradeEvent) error

	// GetByTimeRange retrieves archived trades for a symbol within
	// [start, end] (inclusive), ordered by event time ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.TradeEvent, error)
}
