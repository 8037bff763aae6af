package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"marketpulse/internal/domain"
	"marketpulse/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Candle // keyed by (symbol, interval_start)
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[string]*domain.Candle),
	}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// candleKey generates a unique key for a candle.
func candleKey(symbol string, intervalStart int64) string {
	return fmt.Sprintf("%s|%d", symbol, intervalStart)
}

// Insert adds a closed candle. Returns ErrDuplicateKey if (symbol, interval_start) exists.
func (s *CandleStore) Insert(_ context.Context, c *domain.Candle) error {
	if c == nil || c.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := candleKey(c.Symbol, c.IntervalStart)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	candleCopy := *c
	s.data[key] = &candleCopy
	return nil
}

// GetBySymbol retrieves up to limit candles for a symbol, most recent first.
func (s *CandleStore) GetBySymbol(_ context.Context, symbol string, limit int) ([]*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candle
	for _, c := range s.data {
		if c.Symbol == symbol {
			candleCopy := *c
			result = append(result, &candleCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].IntervalStart > result[j].IntervalStart
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetByTimeRange retrieves candles for a symbol within [start, end], ordered ASC.
func (s *CandleStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candle
	for _, c := range s.data {
		if c.Symbol == symbol && c.IntervalStart >= start && c.IntervalStart <= end {
			candleCopy := *c
			result = append(result, &candleCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].IntervalStart < result[j].IntervalStart
	})

	return result, nil
}

// GetLatest retrieves the most recent candle per symbol, ordered by symbol ASC.
func (s *CandleStore) GetLatest(_ context.Context) ([]*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]*domain.Candle)
	for _, c := range s.data {
		cur, ok := latest[c.Symbol]
		if !ok || c.IntervalStart > cur.IntervalStart {
			latest[c.Symbol] = c
		}
	}

	result := make([]*domain.Candle, 0, len(latest))
	for _, c := range latest {
		candleCopy := *c
		result = append(result, &candleCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})

	return result, nil
}
