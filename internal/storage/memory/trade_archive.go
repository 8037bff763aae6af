package memory

import (
	"context"
	"sort"
	"sync"

	"marketpulse/internal/domain"
	"marketpulse/internal/storage"
)

// TradeArchive is an in-memory implementation of storage.TradeArchive.
type TradeArchive struct {
	mu     sync.RWMutex
	trades []domain.TradeEvent
}

// NewTradeArchive creates a new in-memory trade archive.
func NewTradeArchive() *TradeArchive {
	return &TradeArchive{}
}

// Compile-time interface check.
var _ storage.TradeArchive = (*TradeArchive)(nil)

// InsertBulk appends a batch of trade events.
func (s *TradeArchive) InsertBulk(_ context.Context, trades []*domain.TradeEvent) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range trades {
		if t == nil || t.Symbol == "" {
			return storage.ErrInvalidInput
		}
		s.trades = append(s.trades, *t)
	}
	return nil
}

// GetByTimeRange retrieves archived trades for a symbol within [start, end],
// ordered by event time ASC.
func (s *TradeArchive) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.TradeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeEvent
	for i := range s.trades {
		t := s.trades[i]
		if t.Symbol == symbol && t.EventTimeMillis >= start && t.EventTimeMillis <= end {
			tradeCopy := t
			result = append(result, &tradeCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].EventTimeMillis < result[j].EventTimeMillis
	})

	return result, nil
}
