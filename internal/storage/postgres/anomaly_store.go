package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"marketpulse/internal/domain"
	"marketpulse/internal/storage"
)

// AnomalyStore implements storage.AnomalyStore using PostgreSQL.
type AnomalyStore struct {
	pool *Pool
}

// NewAnomalyStore creates a new AnomalyStore.
func NewAnomalyStore(pool *Pool) *AnomalyStore {
	return &AnomalyStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AnomalyStore = (*AnomalyStore)(nil)

// Insert adds an anomaly record. Returns ErrDuplicateKey if the ID exists.
func (s *AnomalyStore) Insert(ctx context.Context, r *domain.AnomalyRecord) error {
	if r == nil || r.ID == "" || r.Symbol == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO anomalies (
			id, type, symbol, severity, threshold, timestamp_ms,
			current_price, previous_price, price_change_pct,
			current_volume, average_volume, volume_ratio,
			short_sma, long_sma, divergence_pct
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ID,
		r.Type,
		r.Symbol,
		r.Severity,
		r.Threshold,
		r.TimestampMs,
		r.CurrentPrice,
		r.PreviousPrice,
		r.PriceChangePct,
		r.CurrentVolume,
		r.AverageVolume,
		r.VolumeRatio,
		r.ShortSMA,
		r.LongSMA,
		r.DivergencePct,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert anomaly: %w", err)
	}
	return nil
}

// GetRecent retrieves up to limit records across all symbols, most recent first.
func (s *AnomalyStore) GetRecent(ctx context.Context, limit int) ([]*domain.AnomalyRecord, error) {
	query := anomalySelect + `
		ORDER BY timestamp_ms DESC, created_at DESC
	`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get recent anomalies: %w", err)
	}
	defer rows.Close()

	return scanAnomalies(rows)
}

// GetBySymbol retrieves up to limit records for a symbol, most recent first.
func (s *AnomalyStore) GetBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.AnomalyRecord, error) {
	query := anomalySelect + `
		WHERE symbol = $1
		ORDER BY timestamp_ms DESC, created_at DESC
	`
	args := []any{symbol}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get anomalies by symbol: %w", err)
	}
	defer rows.Close()

	return scanAnomalies(rows)
}

const anomalySelect = `
	SELECT id, type, symbol, severity, threshold, timestamp_ms,
		current_price, previous_price, price_change_pct,
		current_volume, average_volume, volume_ratio,
		short_sma, long_sma, divergence_pct
	FROM anomalies
`

// scanAnomalies reads anomaly rows into domain objects.
func scanAnomalies(rows pgx.Rows) ([]*domain.AnomalyRecord, error) {
	var result []*domain.AnomalyRecord
	for rows.Next() {
		var r domain.AnomalyRecord
		err := rows.Scan(
			&r.ID,
			&r.Type,
			&r.Symbol,
			&r.Severity,
			&r.Threshold,
			&r.TimestampMs,
			&r.CurrentPrice,
			&r.PreviousPrice,
			&r.PriceChangePct,
			&r.CurrentVolume,
			&r.AverageVolume,
			&r.VolumeRatio,
			&r.ShortSMA,
			&r.LongSMA,
			&r.DivergencePct,
		)
		if err != nil {
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate anomaly rows: %w", err)
	}
	return result, nil
}
