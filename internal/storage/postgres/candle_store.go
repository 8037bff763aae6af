package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"marketpulse/internal/domain"
	"marketpulse/internal/storage"
)

// CandleStore implements storage.CandleStore using PostgreSQL.
type CandleStore struct {
	pool *Pool
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(pool *Pool) *CandleStore {
	return &CandleStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// Insert adds a closed candle. Returns ErrDuplicateKey if (symbol, interval_start) exists.
func (s *CandleStore) Insert(ctx context.Context, c *domain.Candle) error {
	if c == nil || c.Symbol == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO candles (
			symbol, interval_start, open, high, low, close, volume, trade_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		c.Symbol,
		c.IntervalStart,
		c.Open,
		c.High,
		c.Low,
		c.Close,
		c.Volume,
		c.TradeCount,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert candle: %w", err)
	}
	return nil
}

// GetBySymbol retrieves up to limit candles for a symbol, most recent first.
func (s *CandleStore) GetBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Candle, error) {
	query := `
		SELECT symbol, interval_start, open, high, low, close, volume, trade_count
		FROM candles
		WHERE symbol = $1
		ORDER BY interval_start DESC
	`
	args := []any{symbol}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get candles by symbol: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetByTimeRange retrieves candles for a symbol within [start, end], ordered ASC.
func (s *CandleStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Candle, error) {
	query := `
		SELECT symbol, interval_start, open, high, low, close, volume, trade_count
		FROM candles
		WHERE symbol = $1 AND interval_start >= $2 AND interval_start <= $3
		ORDER BY interval_start ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("get candles by time range: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetLatest retrieves the most recent candle per symbol, ordered by symbol ASC.
func (s *CandleStore) GetLatest(ctx context.Context) ([]*domain.Candle, error) {
	query := `
		SELECT DISTINCT ON (symbol)
			symbol, interval_start, open, high, low, close, volume, trade_count
		FROM candles
		ORDER BY symbol ASC, interval_start DESC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get latest candles: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// scanCandles reads candle rows into domain objects.
func scanCandles(rows pgx.Rows) ([]*domain.Candle, error) {
	var result []*domain.Candle
	for rows.Next() {
		var c domain.Candle
		err := rows.Scan(
			&c.Symbol,
			&c.IntervalStart,
			&c.Open,
			&c.High,
			&c.Low,
			&c.Close,
			&c.Volume,
			&c.TradeCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}
	return result, nil
}
